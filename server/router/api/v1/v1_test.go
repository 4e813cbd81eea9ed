package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/yonder-travel/yonder/internal/profile"
	"github.com/yonder-travel/yonder/server/assistant"
	"github.com/yonder-travel/yonder/server/middleware"
	"github.com/yonder-travel/yonder/server/service/chat"
	"github.com/yonder-travel/yonder/server/service/poll"
	"github.com/yonder-travel/yonder/store"
	"github.com/yonder-travel/yonder/store/test"
)

func newTestService(ctx context.Context, t *testing.T) (*APIV1Service, *store.Store) {
	ts := test.NewTestingStore(ctx, t)
	svc := NewAPIV1Service(&profile.Profile{Mode: "dev"}, ts, assistant.NewDisabledGateway())
	t.Cleanup(svc.Shutdown)
	return svc, ts
}

func newEchoContext(userID string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set(middleware.UserIDContextKey, userID)
	return c
}

func TestEngineForSharesOneSession(t *testing.T) {
	ctx := context.Background()
	svc, ts := newTestService(ctx, t)
	trip := test.CreateTestingTrip(ctx, t, ts)

	var wg sync.WaitGroup
	start := make(chan struct{})
	engines := make([]*chat.Engine, 4)
	errs := make([]error, len(engines))
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			engines[i], errs[i] = svc.engineFor(newEchoContext("user-1"), trip.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, engine := range engines[1:] {
		require.Same(t, engines[0], engine, "racing requests converge on one session")
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.engines, 1)
}

func TestReconcilerForSharesOneSession(t *testing.T) {
	ctx := context.Background()
	svc, ts := newTestService(ctx, t)
	trip := test.CreateTestingTrip(ctx, t, ts)

	options, err := store.EncodePollOptions([]store.PollOption{
		{ID: "opt-a", Text: "Saturday"},
		{ID: "opt-b", Text: "Sunday"},
	})
	require.NoError(t, err)
	created, err := ts.CreatePoll(ctx, &store.Poll{
		UID:      "poll-fixture",
		TripID:   trip.ID,
		Question: "Which day works?",
		Options:  options,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	start := make(chan struct{})
	reconcilers := make([]*poll.Reconciler, 4)
	errs := make([]error, len(reconcilers))
	for i := range reconcilers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			reconcilers[i], errs[i] = svc.reconcilerFor(newEchoContext("user-1"), created.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, reconciler := range reconcilers[1:] {
		require.Same(t, reconcilers[0], reconciler, "racing requests converge on one session")
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.reconcilers, 1)
}
