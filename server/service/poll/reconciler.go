// Package poll keeps an in-memory tally of one poll's votes and reconciles
// optimistic toggles against the store. Votes are simpler than messages: any
// doubt about the state is resolved by refetching the whole vote set.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/singleflight"

	cerr "github.com/yonder-travel/yonder/server/internal/errors"
	"github.com/yonder-travel/yonder/store"
)

// Tally is a read-only snapshot of the poll state for one viewer.
type Tally struct {
	Counts   map[string]int // option id -> vote count
	Selected []string       // option ids the viewer has voted for
}

type state struct {
	// voters maps option id to the set of user ids that picked it.
	voters map[string]map[string]struct{}
}

func newState() *state {
	return &state{voters: make(map[string]map[string]struct{})}
}

func (s *state) add(optionID, userID string) {
	if s.voters[optionID] == nil {
		s.voters[optionID] = make(map[string]struct{})
	}
	s.voters[optionID][userID] = struct{}{}
}

func (s *state) remove(optionID, userID string) {
	delete(s.voters[optionID], userID)
}

func (s *state) has(optionID, userID string) bool {
	_, ok := s.voters[optionID][userID]
	return ok
}

// Reconciler owns the vote view of one poll for one viewer.
type Reconciler struct {
	store  *store.Store
	pollID int32
	userID string

	allowMultiple bool
	options       map[string]struct{}

	mu    sync.Mutex // held only for state swaps, never across I/O
	cur   *state
	gen   uint64 // bumped on every refetch; stale rollbacks check it
	group singleflight.Group

	watchCancel func()
	watchDone   chan struct{}
}

// NewReconciler creates a reconciler and loads the poll definition plus the
// current vote set.
func NewReconciler(ctx context.Context, s *store.Store, pollID int32, userID string) (*Reconciler, error) {
	poll, err := s.GetPoll(ctx, &store.FindPoll{ID: &pollID})
	if err != nil {
		return nil, cerr.WriteFailed("failed to load poll", err)
	}
	if poll == nil {
		return nil, cerr.NotFound("poll not found")
	}
	options, err := poll.DecodeOptions()
	if err != nil {
		return nil, cerr.InvalidArgument("poll options are malformed")
	}

	r := &Reconciler{
		store:         s,
		pollID:        pollID,
		userID:        userID,
		allowMultiple: poll.AllowMultiple,
		options:       make(map[string]struct{}, len(options)),
		cur:           newState(),
	}
	for _, option := range options {
		r.options[option.ID] = struct{}{}
	}
	if err := r.Refetch(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Watch subscribes to the poll's change topic. Every notification triggers a
// full refetch; per-event merging is not worth the race surface here.
func (r *Reconciler) Watch(ctx context.Context) {
	events, cancel := r.store.Subscribe(store.VoteTopic(r.pollID))
	r.watchCancel = cancel
	r.watchDone = make(chan struct{})

	go func() {
		defer close(r.watchDone)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				if err := r.Refetch(ctx); err != nil {
					slog.Warn("failed to refetch poll votes",
						slog.Int("poll_id", int(r.pollID)),
						slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// Stop unsubscribes from change events.
func (r *Reconciler) Stop() {
	if r.watchCancel != nil {
		r.watchCancel()
		<-r.watchDone
		r.watchCancel = nil
	}
}

// Vote toggles the viewer's vote on the given option. The tally is updated
// optimistically before the store writes; a failed write reverts exactly this
// call's toggle unless a refetch has superseded it. Overlapping calls on
// other options are left alone, so one failure never undoes another call's
// acknowledged change.
func (r *Reconciler) Vote(ctx context.Context, optionID string) error {
	if _, ok := r.options[optionID]; !ok {
		return cerr.InvalidArgument("unknown poll option")
	}

	r.mu.Lock()
	snapshotGen := r.gen
	removing := r.cur.has(optionID, r.userID)
	var stripped []string
	if removing {
		r.cur.remove(optionID, r.userID)
	} else {
		if !r.allowMultiple {
			for existing := range r.cur.voters {
				if existing != optionID && r.cur.has(existing, r.userID) {
					r.cur.remove(existing, r.userID)
					stripped = append(stripped, existing)
				}
			}
		}
		r.cur.add(optionID, r.userID)
	}
	r.mu.Unlock()

	var err error
	if removing {
		err = r.removeVote(ctx, optionID)
	} else if r.allowMultiple {
		err = r.insertVote(ctx, optionID)
	} else {
		err = r.switchVote(ctx, optionID)
	}
	if err == nil {
		return nil
	}

	r.mu.Lock()
	if r.gen == snapshotGen {
		if removing {
			r.cur.add(optionID, r.userID)
		} else {
			r.cur.remove(optionID, r.userID)
			for _, existing := range stripped {
				r.cur.add(existing, r.userID)
			}
		}
	}
	r.mu.Unlock()
	return err
}

func (r *Reconciler) insertVote(ctx context.Context, optionID string) error {
	_, err := r.store.CreateVote(ctx, &store.Vote{
		UID:       shortuuid.New(),
		PollID:    r.pollID,
		OptionID:  optionID,
		UserID:    r.userID,
		CreatedTs: time.Now().Unix(),
	})
	if err != nil {
		return cerr.WriteFailed("failed to record vote", err)
	}
	return nil
}

func (r *Reconciler) removeVote(ctx context.Context, optionID string) error {
	votes, err := r.store.ListVotes(ctx, &store.FindVote{
		PollID:   &r.pollID,
		OptionID: &optionID,
		UserID:   &r.userID,
	})
	if err != nil {
		return cerr.WriteFailed("failed to find vote", err)
	}
	if len(votes) == 0 {
		return nil
	}
	if err := r.store.DeleteVote(ctx, votes[0]); err != nil {
		return cerr.WriteFailed("failed to remove vote", err)
	}
	return nil
}

// switchVote moves a single-answer poll vote: clear the viewer's previous
// rows, then insert the new one. The two writes are not atomic; a failure
// between them leaves the viewer voteless, which the rollback then corrects
// visually and the next refetch confirms.
func (r *Reconciler) switchVote(ctx context.Context, optionID string) error {
	if _, err := r.store.DeleteVotes(ctx, &store.DeleteVotesFilter{
		PollID: r.pollID,
		UserID: r.userID,
	}); err != nil {
		return cerr.WriteFailed("failed to clear previous vote", err)
	}
	return r.insertVote(ctx, optionID)
}

// Refetch rebuilds the tally from the store. Concurrent calls collapse into
// one query.
func (r *Reconciler) Refetch(ctx context.Context) error {
	_, err, _ := r.group.Do("refetch", func() (any, error) {
		votes, err := r.store.ListVotes(ctx, &store.FindVote{PollID: &r.pollID})
		if err != nil {
			return nil, cerr.WriteFailed("failed to list votes", err)
		}

		fresh := newState()
		for _, vote := range votes {
			fresh.add(vote.OptionID, vote.UserID)
		}

		r.mu.Lock()
		r.cur = fresh
		r.gen++
		r.mu.Unlock()
		return nil, nil
	})
	return err
}

// Tally returns the current counts and the viewer's selections.
func (r *Reconciler) Tally() Tally {
	r.mu.Lock()
	defer r.mu.Unlock()

	tally := Tally{Counts: make(map[string]int, len(r.options))}
	for optionID := range r.options {
		tally.Counts[optionID] = len(r.cur.voters[optionID])
		if r.cur.has(optionID, r.userID) {
			tally.Selected = append(tally.Selected, optionID)
		}
	}
	return tally
}
