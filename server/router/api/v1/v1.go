// Package v1 exposes the trip assistant over HTTP. Handlers are thin: they
// resolve a per-user session object and delegate to the service layer.
package v1

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/yonder-travel/yonder/internal/profile"
	"github.com/yonder-travel/yonder/server/assistant"
	cerr "github.com/yonder-travel/yonder/server/internal/errors"
	"github.com/yonder-travel/yonder/server/middleware"
	"github.com/yonder-travel/yonder/server/service/action"
	"github.com/yonder-travel/yonder/server/service/chat"
	"github.com/yonder-travel/yonder/server/service/poll"
	"github.com/yonder-travel/yonder/store"
)

// APIV1Service holds the per-session service objects behind the v1 routes.
type APIV1Service struct {
	profile *profile.Profile
	store   *store.Store
	gateway assistant.Gateway

	// watchCtx bounds the lifetime of every session watcher.
	watchCtx    context.Context
	watchCancel context.CancelFunc

	mu          sync.Mutex
	engines     map[string]*chat.Engine
	executors   map[int32]*action.Executor
	reconcilers map[string]*poll.Reconciler
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(profile *profile.Profile, s *store.Store, gateway assistant.Gateway) *APIV1Service {
	watchCtx, watchCancel := context.WithCancel(context.Background())
	return &APIV1Service{
		profile:     profile,
		store:       s,
		gateway:     gateway,
		watchCtx:    watchCtx,
		watchCancel: watchCancel,
		engines:     make(map[string]*chat.Engine),
		executors:   make(map[int32]*action.Executor),
		reconcilers: make(map[string]*poll.Reconciler),
	}
}

// RegisterRoutes mounts the v1 routes on the given group.
func (s *APIV1Service) RegisterRoutes(g *echo.Group) {
	g.Use(middleware.JWTAuth(s.profile.JWTSecret))

	g.POST("/trips/:tripId/assistant/messages", s.sendMessage)
	g.GET("/trips/:tripId/assistant/messages", s.listMessages)
	g.DELETE("/trips/:tripId/assistant/messages", s.clearHistory)

	g.POST("/trips/:tripId/messages/:messageId/actions/:index/execute", s.executeAction)
	g.POST("/trips/:tripId/messages/:messageId/actions/:index/reject", s.rejectAction)

	g.POST("/polls/:pollId/votes", s.vote)
	g.GET("/polls/:pollId/tally", s.tally)

	g.GET("/trips/:tripId/itinerary.ics", s.itineraryICS)
}

// conversationID scopes each user's assistant thread to one trip.
func conversationID(tripID int32, userID string) string {
	return fmt.Sprintf("trip-%d:%s", tripID, userID)
}

func (s *APIV1Service) engineFor(c echo.Context, tripID int32) (*chat.Engine, error) {
	userID := middleware.UserID(c)
	key := conversationID(tripID, userID)

	s.mu.Lock()
	engine, ok := s.engines[key]
	s.mu.Unlock()
	if ok {
		return engine, nil
	}

	// Build outside the lock; Load hits the store and must not serialize
	// unrelated requests behind it.
	engine = chat.NewEngine(s.store, s.gateway, key, userID, tripID)
	if err := engine.Load(c.Request().Context()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.engines[key]; ok {
		// A concurrent request built the session first; ours never started
		// watching, so it can simply be dropped.
		return existing, nil
	}
	// Sessions outlive the request; the watch runs until server shutdown.
	engine.Watch(s.watchCtx)
	s.engines[key] = engine
	return engine, nil
}

func (s *APIV1Service) executorFor(tripID int32) *action.Executor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if executor, ok := s.executors[tripID]; ok {
		return executor
	}
	executor := action.NewExecutor(s.store, action.NewStoreDispatcher(s.store, tripID))
	s.executors[tripID] = executor
	return executor
}

func (s *APIV1Service) reconcilerFor(c echo.Context, pollID int32) (*poll.Reconciler, error) {
	userID := middleware.UserID(c)
	key := fmt.Sprintf("poll-%d:%s", pollID, userID)

	s.mu.Lock()
	reconciler, ok := s.reconcilers[key]
	s.mu.Unlock()
	if ok {
		return reconciler, nil
	}

	reconciler, err := poll.NewReconciler(c.Request().Context(), s.store, pollID, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.reconcilers[key]; ok {
		return existing, nil
	}
	reconciler.Watch(s.watchCtx)
	s.reconcilers[key] = reconciler
	return reconciler, nil
}

// Shutdown stops all session watchers.
func (s *APIV1Service) Shutdown() {
	s.watchCancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, engine := range s.engines {
		engine.Stop()
	}
	for _, reconciler := range s.reconcilers {
		reconciler.Stop()
	}
}

// toHTTPError maps service error codes onto HTTP statuses.
func toHTTPError(err error) error {
	status := http.StatusInternalServerError
	switch cerr.GetCodeFromError(err, cerr.ErrCodeWriteFailed) {
	case cerr.ErrCodeNotFound:
		status = http.StatusNotFound
	case cerr.ErrCodeInvalidArgument, cerr.ErrCodeUnrecognizedAction:
		status = http.StatusBadRequest
	case cerr.ErrCodeActionConflict:
		status = http.StatusConflict
	case cerr.ErrCodeRateLimitExceeded:
		status = http.StatusTooManyRequests
	case cerr.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case cerr.ErrCodeGatewayFailed:
		status = http.StatusBadGateway
	}
	return echo.NewHTTPError(status, err.Error())
}
