// Package action executes assistant-proposed tool calls against the trip.
// Each proposed action lives in its owning message's metadata and moves
// Proposed -> Executed or Proposed -> Rejected exactly once.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	cerr "github.com/yonder-travel/yonder/server/internal/errors"
	"github.com/yonder-travel/yonder/store"
)

// maxClaimAttempts bounds the re-read/claim loop when concurrent writers keep
// changing the message metadata between our read and our conditional write.
const maxClaimAttempts = 3

// Dispatcher performs the domain mutations behind each action kind. The
// executor treats every target as an opaque call returning success/failure.
type Dispatcher interface {
	CreateExpense(ctx context.Context, args *ExpenseArgs) error
	CreateActivity(ctx context.Context, args *ActivityArgs) error
	CreateTransportation(ctx context.Context, args *TransportationArgs) error
	CreateLodging(ctx context.Context, args *LodgingArgs) error
	CreateNote(ctx context.Context, args *NoteArgs) error
	CreateChecklistItems(ctx context.Context, args *ChecklistArgs) error
}

// Executor drives the per-action state machine. The domain mutations are not
// naturally idempotent (a duplicated expense double-charges), so the action is
// claimed with a conditional store write before dispatch: exactly one caller
// wins the claim, no matter how many processes share the database.
type Executor struct {
	store      *store.Store
	dispatcher Dispatcher

	// One lock per in-flight message serializes racing calls within this
	// process so they queue instead of burning claim attempts. Entries are
	// refcounted and dropped once the last caller releases.
	mu    sync.Mutex
	locks map[int32]*messageLock
}

type messageLock struct {
	sync.Mutex
	refs int
}

// NewExecutor creates an executor over the given dispatcher.
func NewExecutor(s *store.Store, dispatcher Dispatcher) *Executor {
	return &Executor{
		store:      s,
		dispatcher: dispatcher,
		locks:      make(map[int32]*messageLock),
	}
}

func (e *Executor) acquireMessageLock(messageID int32) *messageLock {
	e.mu.Lock()
	lock, ok := e.locks[messageID]
	if !ok {
		lock = &messageLock{}
		e.locks[messageID] = lock
	}
	lock.refs++
	e.mu.Unlock()

	lock.Lock()
	return lock
}

func (e *Executor) releaseMessageLock(messageID int32, lock *messageLock) {
	lock.Unlock()

	e.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(e.locks, messageID)
	}
	e.mu.Unlock()
}

// Execute runs the action at actionIndex of the given message. Calling it
// again after success is a no-op; calling it on a rejected action is a
// conflict. Sibling actions in the same message are untouched either way.
func (e *Executor) Execute(ctx context.Context, messageID int32, actionIndex int) (*store.Message, error) {
	return e.resolve(ctx, messageID, actionIndex, store.ActionStatusExecuted)
}

// Reject marks the action rejected without performing any domain mutation.
func (e *Executor) Reject(ctx context.Context, messageID int32, actionIndex int) (*store.Message, error) {
	return e.resolve(ctx, messageID, actionIndex, store.ActionStatusRejected)
}

func (e *Executor) resolve(ctx context.Context, messageID int32, actionIndex int, target store.ActionStatus) (*store.Message, error) {
	lock := e.acquireMessageLock(messageID)
	defer e.releaseMessageLock(messageID, lock)

	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		// Re-read the authoritative metadata immediately before claiming;
		// cached in-memory state may miss a concurrent update from another
		// tab or session.
		row, err := e.store.GetMessage(ctx, &store.FindMessage{ID: &messageID})
		if err != nil {
			return nil, cerr.WriteFailed("failed to load message", err)
		}
		if row == nil {
			return nil, cerr.NotFound("message not found")
		}

		metadata, err := store.DecodeMessageMetadata(row.Metadata)
		if err != nil {
			return nil, cerr.InvalidArgument("message metadata is malformed")
		}
		if actionIndex < 0 || actionIndex >= len(metadata.ProposedActions) {
			return nil, cerr.InvalidArgument("action index out of range")
		}

		proposed := metadata.ProposedActions[actionIndex]
		switch proposed.Status {
		case target:
			// Already resolved to the requested status: idempotent no-op.
			return row, nil
		case store.ActionStatusProposed:
			// Fall through to resolution.
		default:
			return nil, cerr.ActionConflict("action already resolved to " + string(proposed.Status))
		}

		// Claim the action before dispatching: the write applies only while
		// the stored blob still equals what we read, so of any number of
		// racing callers, in this process or another, exactly one claims and
		// runs the mutation.
		metadata.ProposedActions[actionIndex].Status = target
		encoded, err := metadata.Encode()
		if err != nil {
			return nil, cerr.InvalidArgument("failed to encode message metadata")
		}
		updated, err := e.store.UpdateMessage(ctx, &store.UpdateMessage{
			ID:               messageID,
			Metadata:         &encoded,
			ExpectedMetadata: &row.Metadata,
		})
		if errors.Is(err, store.ErrStaleMetadata) {
			// Lost the claim; re-read and let the status gate decide.
			continue
		}
		if err != nil {
			return nil, cerr.WriteFailed("failed to persist action status", err)
		}

		if target == store.ActionStatusExecuted {
			if err := e.dispatch(ctx, &proposed); err != nil {
				e.releaseClaim(ctx, messageID, row.Metadata, encoded)
				return nil, err
			}
		}

		slog.Debug("proposed action resolved",
			slog.Int("message_id", int(messageID)),
			slog.Int("action_index", actionIndex),
			slog.String("name", string(proposed.Name)),
			slog.String("status", string(target)),
			slog.Duration("age", time.Since(time.Unix(row.CreatedTs, 0))))
		return updated, nil
	}

	return nil, cerr.ActionConflict("action contended by concurrent updates")
}

// releaseClaim restores the pre-claim metadata after a failed mutation, so
// the action reads Proposed again. Conditional on our own claim blob, it can
// never clobber a later writer.
func (e *Executor) releaseClaim(ctx context.Context, messageID int32, previous, claimed string) {
	if _, err := e.store.UpdateMessage(ctx, &store.UpdateMessage{
		ID:               messageID,
		Metadata:         &previous,
		ExpectedMetadata: &claimed,
	}); err != nil {
		slog.Warn("failed to release action claim",
			slog.Int("message_id", int(messageID)),
			slog.String("error", err.Error()))
	}
}

// dispatch maps the action kind to its domain mutation. The switch is
// exhaustive over store.ActionKind; unknown names are execution failures.
func (e *Executor) dispatch(ctx context.Context, proposed *store.ProposedAction) error {
	switch proposed.Name {
	case store.ActionKindCreateExpense:
		args := &ExpenseArgs{}
		if err := json.Unmarshal(proposed.Args, args); err != nil {
			return cerr.InvalidArgument("malformed expense args")
		}
		return e.dispatcher.CreateExpense(ctx, args)
	case store.ActionKindCreateActivity:
		args := &ActivityArgs{}
		if err := json.Unmarshal(proposed.Args, args); err != nil {
			return cerr.InvalidArgument("malformed activity args")
		}
		return e.dispatcher.CreateActivity(ctx, args)
	case store.ActionKindCreateTransportation:
		args := &TransportationArgs{}
		if err := json.Unmarshal(proposed.Args, args); err != nil {
			return cerr.InvalidArgument("malformed transportation args")
		}
		return e.dispatcher.CreateTransportation(ctx, args)
	case store.ActionKindCreateLodging:
		args := &LodgingArgs{}
		if err := json.Unmarshal(proposed.Args, args); err != nil {
			return cerr.InvalidArgument("malformed lodging args")
		}
		return e.dispatcher.CreateLodging(ctx, args)
	case store.ActionKindCreateNote:
		args := &NoteArgs{}
		if err := json.Unmarshal(proposed.Args, args); err != nil {
			return cerr.InvalidArgument("malformed note args")
		}
		return e.dispatcher.CreateNote(ctx, args)
	case store.ActionKindCreateChecklistItems:
		args := &ChecklistArgs{}
		if err := json.Unmarshal(proposed.Args, args); err != nil {
			return cerr.InvalidArgument("malformed checklist args")
		}
		return e.dispatcher.CreateChecklistItems(ctx, args)
	default:
		return cerr.UnrecognizedAction(string(proposed.Name))
	}
}
