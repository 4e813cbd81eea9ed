package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cerr "github.com/yonder-travel/yonder/server/internal/errors"
	"github.com/yonder-travel/yonder/store"
	"github.com/yonder-travel/yonder/store/test"
)

func createTestingPoll(ctx context.Context, t *testing.T, ts *store.Store, allowMultiple bool) *store.Poll {
	options, err := store.EncodePollOptions([]store.PollOption{
		{ID: "opt-a", Text: "Saturday"},
		{ID: "opt-b", Text: "Sunday"},
		{ID: "opt-c", Text: "Either"},
	})
	require.NoError(t, err)

	trip := test.CreateTestingTrip(ctx, t, ts)
	poll, err := ts.CreatePoll(ctx, &store.Poll{
		UID:           "poll-fixture",
		TripID:        trip.ID,
		Question:      "Which day works?",
		AllowMultiple: allowMultiple,
		Options:       options,
	})
	require.NoError(t, err)
	return poll
}

func castVote(ctx context.Context, t *testing.T, ts *store.Store, pollID int32, optionID, userID string) {
	_, err := ts.CreateVote(ctx, &store.Vote{
		UID:      userID + "-" + optionID,
		PollID:   pollID,
		OptionID: optionID,
		UserID:   userID,
	})
	require.NoError(t, err)
}

func TestVoteToggleOnAndOff(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	poll := createTestingPoll(ctx, t, ts, true)

	r, err := NewReconciler(ctx, ts, poll.ID, "user-1")
	require.NoError(t, err)

	require.NoError(t, r.Vote(ctx, "opt-a"))
	tally := r.Tally()
	require.Equal(t, 1, tally.Counts["opt-a"])
	require.Equal(t, []string{"opt-a"}, tally.Selected)

	rows, err := ts.ListVotes(ctx, &store.FindVote{PollID: &poll.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, r.Vote(ctx, "opt-a"))
	tally = r.Tally()
	require.Equal(t, 0, tally.Counts["opt-a"])
	require.Empty(t, tally.Selected)

	rows, err = ts.ListVotes(ctx, &store.FindVote{PollID: &poll.ID})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestVoteMultiAnswerAccumulates(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	poll := createTestingPoll(ctx, t, ts, true)

	r, err := NewReconciler(ctx, ts, poll.ID, "user-1")
	require.NoError(t, err)

	require.NoError(t, r.Vote(ctx, "opt-a"))
	require.NoError(t, r.Vote(ctx, "opt-b"))

	tally := r.Tally()
	require.Equal(t, 1, tally.Counts["opt-a"])
	require.Equal(t, 1, tally.Counts["opt-b"])
	require.ElementsMatch(t, []string{"opt-a", "opt-b"}, tally.Selected)
}

func TestVoteSingleAnswerSwitches(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	poll := createTestingPoll(ctx, t, ts, false)

	r, err := NewReconciler(ctx, ts, poll.ID, "user-1")
	require.NoError(t, err)

	require.NoError(t, r.Vote(ctx, "opt-a"))
	require.NoError(t, r.Vote(ctx, "opt-b"))

	tally := r.Tally()
	require.Equal(t, 0, tally.Counts["opt-a"])
	require.Equal(t, 1, tally.Counts["opt-b"])
	require.Equal(t, []string{"opt-b"}, tally.Selected)

	// The previous row is gone from the store, not just the view.
	rows, err := ts.ListVotes(ctx, &store.FindVote{PollID: &poll.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "opt-b", rows[0].OptionID)
}

func TestVoteSingleAnswerKeepsOtherVoters(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	poll := createTestingPoll(ctx, t, ts, false)
	castVote(ctx, t, ts, poll.ID, "opt-a", "user-2")

	r, err := NewReconciler(ctx, ts, poll.ID, "user-1")
	require.NoError(t, err)

	require.NoError(t, r.Vote(ctx, "opt-a"))
	require.NoError(t, r.Vote(ctx, "opt-b"))

	tally := r.Tally()
	require.Equal(t, 1, tally.Counts["opt-a"], "the switch only clears the caller's rows")
	require.Equal(t, 1, tally.Counts["opt-b"])
}

func TestVoteRollbackOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	poll := createTestingPoll(ctx, t, ts, true)
	castVote(ctx, t, ts, poll.ID, "opt-b", "user-2")

	r, err := NewReconciler(ctx, ts, poll.ID, "user-1")
	require.NoError(t, err)

	require.NoError(t, ts.GetDriver().Close())

	err = r.Vote(ctx, "opt-a")
	require.Error(t, err)
	require.True(t, cerr.IsCode(err, cerr.ErrCodeWriteFailed))

	tally := r.Tally()
	require.Equal(t, 0, tally.Counts["opt-a"], "optimistic toggle must be rolled back")
	require.Equal(t, 1, tally.Counts["opt-b"], "other voters are untouched by the rollback")
	require.Empty(t, tally.Selected)
}

// votingFaultDriver passes every operation through to the wrapped driver
// except CreateVote, which consults the hook first.
type votingFaultDriver struct {
	store.Driver
	onCreateVote func(create *store.Vote) error
}

func (d *votingFaultDriver) CreateVote(ctx context.Context, create *store.Vote) (*store.Vote, error) {
	if err := d.onCreateVote(create); err != nil {
		return nil, err
	}
	return d.Driver.CreateVote(ctx, create)
}

func TestVoteRollbackSparesOverlappingVote(t *testing.T) {
	ctx := context.Background()
	inFlight := make(chan struct{})
	release := make(chan struct{})
	ts := test.NewFaultableStore(ctx, t, func(d store.Driver) store.Driver {
		return &votingFaultDriver{Driver: d, onCreateVote: func(create *store.Vote) error {
			if create.OptionID == "opt-a" {
				close(inFlight)
				<-release
				return errors.New("disk full")
			}
			return nil
		}}
	})
	poll := createTestingPoll(ctx, t, ts, true)

	r, err := NewReconciler(ctx, ts, poll.ID, "user-1")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- r.Vote(ctx, "opt-a")
	}()
	// The opt-a call has applied its optimistic toggle and is stuck in the
	// failing write; the opt-b call now starts and completes.
	<-inFlight
	require.NoError(t, r.Vote(ctx, "opt-b"))
	close(release)

	err = <-done
	require.Error(t, err)
	require.True(t, cerr.IsCode(err, cerr.ErrCodeWriteFailed))

	tally := r.Tally()
	require.Equal(t, 0, tally.Counts["opt-a"], "the failed toggle is reverted")
	require.Equal(t, 1, tally.Counts["opt-b"], "the acknowledged overlapping vote survives the rollback")
	require.Equal(t, []string{"opt-b"}, tally.Selected)
}

func TestVoteUnknownOption(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	poll := createTestingPoll(ctx, t, ts, true)

	r, err := NewReconciler(ctx, ts, poll.ID, "user-1")
	require.NoError(t, err)

	err = r.Vote(ctx, "opt-z")
	require.Error(t, err)
	require.True(t, cerr.IsCode(err, cerr.ErrCodeInvalidArgument))
}

func TestRefetchPicksUpForeignVotes(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)
	poll := createTestingPoll(ctx, t, ts, true)

	r, err := NewReconciler(ctx, ts, poll.ID, "user-1")
	require.NoError(t, err)
	require.NoError(t, r.Vote(ctx, "opt-a"))

	castVote(ctx, t, ts, poll.ID, "opt-a", "user-2")
	castVote(ctx, t, ts, poll.ID, "opt-c", "user-3")

	require.NoError(t, r.Refetch(ctx))
	tally := r.Tally()
	require.Equal(t, 2, tally.Counts["opt-a"])
	require.Equal(t, 1, tally.Counts["opt-c"])
	require.Equal(t, []string{"opt-a"}, tally.Selected)
}

func TestWatchRefetchesOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts := test.NewTestingStore(ctx, t)
	poll := createTestingPoll(ctx, t, ts, true)

	r, err := NewReconciler(ctx, ts, poll.ID, "user-1")
	require.NoError(t, err)
	r.Watch(ctx)
	defer r.Stop()

	castVote(ctx, t, ts, poll.ID, "opt-b", "user-2")

	require.Eventually(t, func() bool {
		return r.Tally().Counts["opt-b"] == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewReconcilerMissingPoll(t *testing.T) {
	ctx := context.Background()
	ts := test.NewTestingStore(ctx, t)

	_, err := NewReconciler(ctx, ts, 777, "user-1")
	require.Error(t, err)
	require.True(t, cerr.IsCode(err, cerr.ErrCodeNotFound))
}
