package action

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	cerr "github.com/yonder-travel/yonder/server/internal/errors"
	"github.com/yonder-travel/yonder/store"
	"github.com/yonder-travel/yonder/store/test"
)

func newTestExecutor(ctx context.Context, t *testing.T) (*Executor, *store.Store, *store.Trip) {
	ts := test.NewTestingStore(ctx, t)
	trip := test.CreateTestingTrip(ctx, t, ts)
	executor := NewExecutor(ts, NewStoreDispatcher(ts, trip.ID))
	return executor, ts, trip
}

func createProposalMessage(ctx context.Context, t *testing.T, ts *store.Store, actions []store.ProposedAction) *store.Message {
	encoded, err := (&store.MessageMetadata{ProposedActions: actions}).Encode()
	require.NoError(t, err)
	message, err := ts.CreateMessage(ctx, &store.Message{
		UID:            "msg-fixture",
		ConversationID: "conv-1",
		SenderID:       store.AssistantSenderID,
		Content:        "Want me to add these?",
		Metadata:       encoded,
	})
	require.NoError(t, err)
	return message
}

func actionStatuses(t *testing.T, ts *store.Store, messageID int32) []store.ActionStatus {
	ctx := context.Background()
	row, err := ts.GetMessage(ctx, &store.FindMessage{ID: &messageID})
	require.NoError(t, err)
	require.NotNil(t, row)
	metadata, err := store.DecodeMessageMetadata(row.Metadata)
	require.NoError(t, err)
	statuses := make([]store.ActionStatus, 0, len(metadata.ProposedActions))
	for _, a := range metadata.ProposedActions {
		statuses = append(statuses, a.Status)
	}
	return statuses
}

func TestExecuteCreatesRowAndFlipsStatus(t *testing.T) {
	ctx := context.Background()
	executor, ts, trip := newTestExecutor(ctx, t)
	message := createProposalMessage(ctx, t, ts, []store.ProposedAction{
		{
			Name:   store.ActionKindCreateExpense,
			Args:   json.RawMessage(`{"name":"Dinner","amount":42.5,"paidBy":"Ana"}`),
			Status: store.ActionStatusProposed,
		},
	})

	updated, err := executor.Execute(ctx, message.ID, 0)
	require.NoError(t, err)
	require.Equal(t,
		[]store.ActionStatus{store.ActionStatusExecuted},
		actionStatuses(t, ts, updated.ID))

	expenses, err := ts.ListExpenses(ctx, &store.FindTripItems{TripID: trip.ID})
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	require.Equal(t, "Dinner", expenses[0].Name)
	require.Equal(t, 42.5, expenses[0].Amount)
	require.Equal(t, "EUR", expenses[0].Currency, "defaults to the trip currency")
	require.Equal(t, "Ana", expenses[0].PaidBy)
}

func TestExecuteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	executor, ts, trip := newTestExecutor(ctx, t)
	message := createProposalMessage(ctx, t, ts, []store.ProposedAction{
		{
			Name:   store.ActionKindCreateExpense,
			Args:   json.RawMessage(`{"name":"Taxi","amount":18}`),
			Status: store.ActionStatusProposed,
		},
	})

	_, err := executor.Execute(ctx, message.ID, 0)
	require.NoError(t, err)
	_, err = executor.Execute(ctx, message.ID, 0)
	require.NoError(t, err, "re-executing a resolved action is a no-op")

	expenses, err := ts.ListExpenses(ctx, &store.FindTripItems{TripID: trip.ID})
	require.NoError(t, err)
	require.Len(t, expenses, 1, "the mutation must not run twice")
}

func TestRejectAfterExecuteConflicts(t *testing.T) {
	ctx := context.Background()
	executor, ts, _ := newTestExecutor(ctx, t)
	message := createProposalMessage(ctx, t, ts, []store.ProposedAction{
		{
			Name:   store.ActionKindCreateNote,
			Args:   json.RawMessage(`{"content":"pack sunscreen"}`),
			Status: store.ActionStatusProposed,
		},
	})

	_, err := executor.Execute(ctx, message.ID, 0)
	require.NoError(t, err)

	_, err = executor.Reject(ctx, message.ID, 0)
	require.Error(t, err)
	require.True(t, cerr.IsCode(err, cerr.ErrCodeActionConflict))
	require.Equal(t,
		[]store.ActionStatus{store.ActionStatusExecuted},
		actionStatuses(t, ts, message.ID))
}

func TestActionsResolveIndependently(t *testing.T) {
	ctx := context.Background()
	executor, ts, trip := newTestExecutor(ctx, t)
	message := createProposalMessage(ctx, t, ts, []store.ProposedAction{
		{
			Name:   store.ActionKindCreateChecklistItems,
			Args:   json.RawMessage(`{"items":["passport","adapter"]}`),
			Status: store.ActionStatusProposed,
		},
		{
			Name:   store.ActionKindCreateNote,
			Args:   json.RawMessage(`{"title":"Museums","content":"MAAT closes Mondays"}`),
			Status: store.ActionStatusProposed,
		},
	})

	_, err := executor.Execute(ctx, message.ID, 0)
	require.NoError(t, err)
	_, err = executor.Reject(ctx, message.ID, 1)
	require.NoError(t, err)

	require.Equal(t,
		[]store.ActionStatus{store.ActionStatusExecuted, store.ActionStatusRejected},
		actionStatuses(t, ts, message.ID))

	items, err := ts.ListChecklistItems(ctx, &store.FindTripItems{TripID: trip.ID})
	require.NoError(t, err)
	require.Len(t, items, 2)

	notes, err := ts.ListNotes(ctx, &store.FindTripItems{TripID: trip.ID})
	require.NoError(t, err)
	require.Empty(t, notes, "rejected actions perform no mutation")
}

func TestExecuteUnknownActionLeavesProposed(t *testing.T) {
	ctx := context.Background()
	executor, ts, _ := newTestExecutor(ctx, t)
	message := createProposalMessage(ctx, t, ts, []store.ProposedAction{
		{
			Name:   store.ActionKind("book_flight"),
			Args:   json.RawMessage(`{}`),
			Status: store.ActionStatusProposed,
		},
	})

	_, err := executor.Execute(ctx, message.ID, 0)
	require.Error(t, err)
	require.True(t, cerr.IsCode(err, cerr.ErrCodeUnrecognizedAction))
	require.Equal(t,
		[]store.ActionStatus{store.ActionStatusProposed},
		actionStatuses(t, ts, message.ID))
}

func TestExecuteHonorsForeignResolution(t *testing.T) {
	ctx := context.Background()
	executor, ts, trip := newTestExecutor(ctx, t)
	message := createProposalMessage(ctx, t, ts, []store.ProposedAction{
		{
			Name:   store.ActionKindCreateExpense,
			Args:   json.RawMessage(`{"name":"Ferry","amount":12}`),
			Status: store.ActionStatusProposed,
		},
	})

	// Another session resolved the action; its update is already durable.
	metadata, err := store.DecodeMessageMetadata(message.Metadata)
	require.NoError(t, err)
	metadata.ProposedActions[0].Status = store.ActionStatusRejected
	encoded, err := metadata.Encode()
	require.NoError(t, err)
	_, err = ts.UpdateMessage(ctx, &store.UpdateMessage{ID: message.ID, Metadata: &encoded})
	require.NoError(t, err)

	_, err = executor.Execute(ctx, message.ID, 0)
	require.Error(t, err)
	require.True(t, cerr.IsCode(err, cerr.ErrCodeActionConflict),
		"stale in-memory state must lose to the re-read")

	expenses, err := ts.ListExpenses(ctx, &store.FindTripItems{TripID: trip.ID})
	require.NoError(t, err)
	require.Empty(t, expenses)
}

func TestRacingExecutorsRunMutationOnce(t *testing.T) {
	ctx := context.Background()
	executor, ts, trip := newTestExecutor(ctx, t)
	// A second executor over the same database, as a second server process
	// would hold. The in-process lock of either cannot see the other; only
	// the conditional claim write arbitrates.
	other := NewExecutor(ts, NewStoreDispatcher(ts, trip.ID))
	message := createProposalMessage(ctx, t, ts, []store.ProposedAction{
		{
			Name:   store.ActionKindCreateExpense,
			Args:   json.RawMessage(`{"name":"Surf lessons","amount":80}`),
			Status: store.ActionStatusProposed,
		},
	})

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, 2)
	for i, ex := range []*Executor{executor, other} {
		wg.Add(1)
		go func(i int, ex *Executor) {
			defer wg.Done()
			<-start
			_, errs[i] = ex.Execute(ctx, message.ID, 0)
		}(i, ex)
	}
	close(start)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1], "the losing claim resolves as an idempotent no-op")
	require.Equal(t,
		[]store.ActionStatus{store.ActionStatusExecuted},
		actionStatuses(t, ts, message.ID))

	expenses, err := ts.ListExpenses(ctx, &store.FindTripItems{TripID: trip.ID})
	require.NoError(t, err)
	require.Len(t, expenses, 1, "exactly one claimant may run the mutation")
}

func TestClaimRejectsStaleExpectation(t *testing.T) {
	ctx := context.Background()
	_, ts, _ := newTestExecutor(ctx, t)
	message := createProposalMessage(ctx, t, ts, []store.ProposedAction{
		{
			Name:   store.ActionKindCreateNote,
			Args:   json.RawMessage(`{"content":"check tide tables"}`),
			Status: store.ActionStatusProposed,
		},
	})
	original := message.Metadata

	// Another writer lands between our read and our conditional write.
	metadata, err := store.DecodeMessageMetadata(message.Metadata)
	require.NoError(t, err)
	metadata.ProposedActions[0].Status = store.ActionStatusExecuted
	encoded, err := metadata.Encode()
	require.NoError(t, err)
	_, err = ts.UpdateMessage(ctx, &store.UpdateMessage{ID: message.ID, Metadata: &encoded})
	require.NoError(t, err)

	rejected, err := (&store.MessageMetadata{}).Encode()
	require.NoError(t, err)
	_, err = ts.UpdateMessage(ctx, &store.UpdateMessage{
		ID:               message.ID,
		Metadata:         &rejected,
		ExpectedMetadata: &original,
	})
	require.ErrorIs(t, err, store.ErrStaleMetadata)
	require.Equal(t,
		[]store.ActionStatus{store.ActionStatusExecuted},
		actionStatuses(t, ts, message.ID),
		"the stale write must not land")
}

func TestMessageLocksPrunedAfterResolution(t *testing.T) {
	ctx := context.Background()
	executor, ts, _ := newTestExecutor(ctx, t)
	message := createProposalMessage(ctx, t, ts, []store.ProposedAction{
		{
			Name:   store.ActionKindCreateNote,
			Args:   json.RawMessage(`{"content":"renew passport"}`),
			Status: store.ActionStatusProposed,
		},
	})

	_, err := executor.Execute(ctx, message.ID, 0)
	require.NoError(t, err)
	_, err = executor.Execute(ctx, message.ID, 0)
	require.NoError(t, err)

	executor.mu.Lock()
	defer executor.mu.Unlock()
	require.Empty(t, executor.locks, "per-message locks are dropped once idle")
}

func TestExecuteOutOfRangeIndex(t *testing.T) {
	ctx := context.Background()
	executor, ts, _ := newTestExecutor(ctx, t)
	message := createProposalMessage(ctx, t, ts, nil)

	_, err := executor.Execute(ctx, message.ID, 0)
	require.Error(t, err)
	require.True(t, cerr.IsCode(err, cerr.ErrCodeInvalidArgument))
}

func TestExecuteMissingMessage(t *testing.T) {
	ctx := context.Background()
	executor, _, _ := newTestExecutor(ctx, t)

	_, err := executor.Execute(ctx, 12345, 0)
	require.Error(t, err)
	require.True(t, cerr.IsCode(err, cerr.ErrCodeNotFound))
}
