package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/yonder-travel/yonder/internal/profile"
)

// Store provides database access to all raw objects and is the single
// source of truth once a row is durable. Every successful write publishes a
// change event on the row's topic, which is how the in-memory reconcilers
// learn about mutations from other sessions.
type Store struct {
	profile *profile.Profile
	driver  Driver
	watcher *Watcher
	fanout  *RedisFanout

	// Caches for rarely-changing lookups
	pollCache *gocache.Cache
	tripCache *gocache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:    driver,
		profile:   profile,
		watcher:   NewWatcher(),
		pollCache: gocache.New(10*time.Minute, 5*time.Minute),
		tripCache: gocache.New(10*time.Minute, 5*time.Minute),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// SetFanout attaches a redis fanout for cross-instance change delivery.
func (s *Store) SetFanout(fanout *RedisFanout) {
	s.fanout = fanout
}

// Watcher exposes the per-topic change event bus.
func (s *Store) Watcher() *Watcher {
	return s.watcher
}

// Subscribe registers for change events on one topic.
func (s *Store) Subscribe(topic string) (<-chan ChangeEvent, func()) {
	return s.watcher.Subscribe(topic)
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	s.watcher.Close()
	if s.fanout != nil {
		_ = s.fanout.Close()
	}
	return s.driver.Close()
}

func (s *Store) publish(ctx context.Context, event ChangeEvent) {
	s.watcher.Publish(event)
	if s.fanout != nil {
		if err := s.fanout.Publish(ctx, event); err != nil {
			slog.Warn("failed to fan out change event",
				slog.String("topic", event.Topic),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Store) CreateMessage(ctx context.Context, create *Message) (*Message, error) {
	message, err := s.driver.CreateMessage(ctx, create)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, ChangeEvent{Type: EventTypeInsert, Topic: MessageTopic(message.ConversationID), Row: message})
	return message, nil
}

func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	return s.driver.ListMessages(ctx, find)
}

// GetMessage returns the single matching message or nil.
func (s *Store) GetMessage(ctx context.Context, find *FindMessage) (*Message, error) {
	list, err := s.driver.ListMessages(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateMessage(ctx context.Context, update *UpdateMessage) (*Message, error) {
	message, err := s.driver.UpdateMessage(ctx, update)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, ChangeEvent{Type: EventTypeUpdate, Topic: MessageTopic(message.ConversationID), Row: message})
	return message, nil
}

func (s *Store) DeleteMessage(ctx context.Context, delete *DeleteMessage) error {
	message, err := s.GetMessage(ctx, &FindMessage{ID: &delete.ID})
	if err != nil {
		return err
	}
	if err := s.driver.DeleteMessage(ctx, delete); err != nil {
		return err
	}
	if message != nil {
		s.publish(ctx, ChangeEvent{Type: EventTypeDelete, Topic: MessageTopic(message.ConversationID), Row: message})
	}
	return nil
}

// DeleteMessages bulk-deletes by filter. A delete event is published per
// removed row so other sessions on the same conversation drop the entries
// instead of serving cleared history until restart.
func (s *Store) DeleteMessages(ctx context.Context, filter *DeleteMessagesFilter) (int64, error) {
	deleted, err := s.driver.DeleteMessages(ctx, filter)
	if err != nil {
		return 0, err
	}
	for _, id := range deleted {
		s.publish(ctx, ChangeEvent{
			Type:  EventTypeDelete,
			Topic: MessageTopic(filter.ConversationID),
			Row:   &Message{ID: id, ConversationID: filter.ConversationID},
		})
	}
	return int64(len(deleted)), nil
}

func (s *Store) CreatePoll(ctx context.Context, create *Poll) (*Poll, error) {
	return s.driver.CreatePoll(ctx, create)
}

func (s *Store) GetPoll(ctx context.Context, find *FindPoll) (*Poll, error) {
	if find.ID != nil {
		key := fmt.Sprintf("poll:%d", *find.ID)
		if cached, ok := s.pollCache.Get(key); ok {
			return cached.(*Poll), nil
		}
		poll, err := s.driver.GetPoll(ctx, find)
		if err != nil {
			return nil, err
		}
		if poll != nil {
			s.pollCache.SetDefault(key, poll)
		}
		return poll, nil
	}
	return s.driver.GetPoll(ctx, find)
}

func (s *Store) CreateVote(ctx context.Context, create *Vote) (*Vote, error) {
	vote, err := s.driver.CreateVote(ctx, create)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, ChangeEvent{Type: EventTypeInsert, Topic: VoteTopic(vote.PollID), Row: vote})
	return vote, nil
}

func (s *Store) ListVotes(ctx context.Context, find *FindVote) ([]*Vote, error) {
	return s.driver.ListVotes(ctx, find)
}

func (s *Store) DeleteVote(ctx context.Context, vote *Vote) error {
	if err := s.driver.DeleteVote(ctx, &DeleteVote{ID: vote.ID}); err != nil {
		return err
	}
	s.publish(ctx, ChangeEvent{Type: EventTypeDelete, Topic: VoteTopic(vote.PollID), Row: vote})
	return nil
}

func (s *Store) DeleteVotes(ctx context.Context, filter *DeleteVotesFilter) (int64, error) {
	deleted, err := s.driver.DeleteVotes(ctx, filter)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.publish(ctx, ChangeEvent{
			Type:  EventTypeDelete,
			Topic: VoteTopic(filter.PollID),
			Row:   &Vote{PollID: filter.PollID, UserID: filter.UserID},
		})
	}
	return deleted, nil
}

func (s *Store) CreateTrip(ctx context.Context, create *Trip) (*Trip, error) {
	return s.driver.CreateTrip(ctx, create)
}

func (s *Store) GetTrip(ctx context.Context, find *FindTrip) (*Trip, error) {
	if find.ID != nil {
		key := fmt.Sprintf("trip:%d", *find.ID)
		if cached, ok := s.tripCache.Get(key); ok {
			return cached.(*Trip), nil
		}
		trip, err := s.driver.GetTrip(ctx, find)
		if err != nil {
			return nil, err
		}
		if trip != nil {
			s.tripCache.SetDefault(key, trip)
		}
		return trip, nil
	}
	return s.driver.GetTrip(ctx, find)
}

func (s *Store) CreateExpense(ctx context.Context, create *Expense) (*Expense, error) {
	return s.driver.CreateExpense(ctx, create)
}

func (s *Store) ListExpenses(ctx context.Context, find *FindTripItems) ([]*Expense, error) {
	return s.driver.ListExpenses(ctx, find)
}

func (s *Store) CreateActivity(ctx context.Context, create *Activity) (*Activity, error) {
	return s.driver.CreateActivity(ctx, create)
}

func (s *Store) ListActivities(ctx context.Context, find *FindTripItems) ([]*Activity, error) {
	return s.driver.ListActivities(ctx, find)
}

func (s *Store) CreateTransportation(ctx context.Context, create *Transportation) (*Transportation, error) {
	return s.driver.CreateTransportation(ctx, create)
}

func (s *Store) ListTransportations(ctx context.Context, find *FindTripItems) ([]*Transportation, error) {
	return s.driver.ListTransportations(ctx, find)
}

func (s *Store) CreateLodging(ctx context.Context, create *Lodging) (*Lodging, error) {
	return s.driver.CreateLodging(ctx, create)
}

func (s *Store) ListLodgings(ctx context.Context, find *FindTripItems) ([]*Lodging, error) {
	return s.driver.ListLodgings(ctx, find)
}

func (s *Store) CreateNote(ctx context.Context, create *Note) (*Note, error) {
	return s.driver.CreateNote(ctx, create)
}

func (s *Store) ListNotes(ctx context.Context, find *FindTripItems) ([]*Note, error) {
	return s.driver.ListNotes(ctx, find)
}

func (s *Store) CreateChecklistItem(ctx context.Context, create *ChecklistItem) (*ChecklistItem, error) {
	return s.driver.CreateChecklistItem(ctx, create)
}

func (s *Store) ListChecklistItems(ctx context.Context, find *FindTripItems) ([]*ChecklistItem, error) {
	return s.driver.ListChecklistItems(ctx, find)
}
