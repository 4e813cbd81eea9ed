// Package chat owns the in-memory view of one conversation and reconciles
// three independently-arriving sources of truth: optimistic local appends,
// store write acknowledgments, and row change notifications. The store stays
// the single authority for everything durable; the view is a cache with a
// defined merge policy.
package chat

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/samber/lo"

	"github.com/yonder-travel/yonder/server/assistant"
	cerr "github.com/yonder-travel/yonder/server/internal/errors"
	"github.com/yonder-travel/yonder/store"
)

// Message is one entry of the ordered conversation view.
type Message struct {
	// ID is the durable row id once confirmed, or a "local-" prefixed id
	// while the write is pending. Entries under a local id are not durable.
	ID        string
	RowID     int32
	SenderID  string
	Content   string
	Metadata  *store.MessageMetadata
	CreatedTs int64
}

// Draft is a message to append, before it has any identity.
type Draft struct {
	Content     string
	Attachments []store.Attachment
}

type entry struct {
	id        string
	rowID     int32
	senderID  string
	content   string
	metadata  *store.MessageMetadata
	createdTs int64
}

// Engine reconciles one conversation. It exclusively owns its in-memory
// state; the presentation layer only reads snapshots.
type Engine struct {
	store          *store.Store
	gateway        assistant.Gateway
	conversationID string
	userID         string
	tripID         int32

	mu      sync.Mutex
	entries []*entry

	watchCancel func()
	watchDone   chan struct{}
}

// NewEngine creates an engine for one conversation scoped to one viewer.
func NewEngine(s *store.Store, gateway assistant.Gateway, conversationID, userID string, tripID int32) *Engine {
	return &Engine{
		store:          s,
		gateway:        gateway,
		conversationID: conversationID,
		userID:         userID,
		tripID:         tripID,
	}
}

// Load rebuilds the view from the store.
func (e *Engine) Load(ctx context.Context) error {
	messages, err := e.store.ListMessages(ctx, &store.FindMessage{ConversationID: &e.conversationID})
	if err != nil {
		return cerr.WriteFailed("failed to load conversation", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = lo.Map(messages, func(m *store.Message, _ int) *entry {
		return entryFromRow(m)
	})
	return nil
}

// Watch subscribes to the conversation's change topic and merges events
// until Stop is called or the context ends.
func (e *Engine) Watch(ctx context.Context) {
	events, cancel := e.store.Subscribe(store.MessageTopic(e.conversationID))
	e.watchCancel = cancel
	e.watchDone = make(chan struct{})

	go func() {
		defer close(e.watchDone)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				e.HandleChange(ev)
			}
		}
	}()
}

// Stop unsubscribes from change events.
func (e *Engine) Stop() {
	if e.watchCancel != nil {
		e.watchCancel()
		<-e.watchDone
		e.watchCancel = nil
	}
}

// Append optimistically inserts the draft under a local id, then issues the
// durable write. On acknowledgment the entry's id is replaced in place; on
// failure the entry is removed entirely and the error surfaced.
func (e *Engine) Append(ctx context.Context, draft *Draft) (string, error) {
	return e.append(ctx, e.userID, draft.Content, &store.MessageMetadata{Attachments: draft.Attachments})
}

func (e *Engine) append(ctx context.Context, senderID, content string, metadata *store.MessageMetadata) (string, error) {
	if metadata == nil {
		metadata = &store.MessageMetadata{}
	}
	localID := store.LocalIDPrefix + uuid.New().String()

	e.mu.Lock()
	e.entries = append(e.entries, &entry{
		id:        localID,
		senderID:  senderID,
		content:   content,
		metadata:  metadata,
		createdTs: time.Now().Unix(),
	})
	e.mu.Unlock()

	encoded, err := metadata.Encode()
	if err != nil {
		e.removeIfLocal(localID)
		return "", cerr.InvalidArgument("failed to encode message metadata")
	}

	row, err := e.store.CreateMessage(ctx, &store.Message{
		UID:            shortuuid.New(),
		ConversationID: e.conversationID,
		SenderID:       senderID,
		Content:        content,
		Metadata:       encoded,
		CreatedTs:      time.Now().Unix(),
	})
	if err != nil {
		// No error placeholder in the view: the optimistic entry goes away.
		e.removeIfLocal(localID)
		return "", cerr.WriteFailed("failed to persist message", err)
	}

	e.fold(localID, row)
	return localID, nil
}

// fold replaces the optimistic entry's identity with the durable row,
// preserving its position. If a change notification already folded the row,
// this is a no-op.
func (e *Engine) fold(localID string, row *store.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ent := range e.entries {
		if ent.rowID == row.ID {
			// Notification won the race; the entry is durable already.
			return
		}
	}
	for _, ent := range e.entries {
		if ent.id == localID {
			ent.id = strconv.Itoa(int(row.ID))
			ent.rowID = row.ID
			ent.createdTs = row.CreatedTs
			return
		}
	}
}

// removeIfLocal drops the optimistic entry unless it has been folded into a
// durable row in the meantime.
func (e *Engine) removeIfLocal(localID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = lo.Reject(e.entries, func(ent *entry, _ int) bool {
		return ent.id == localID && store.IsLocalID(ent.id)
	})
}

// HandleChange merges one change notification into the view. Safe to call
// concurrently with Append; neither path assumes it runs first.
func (e *Engine) HandleChange(ev store.ChangeEvent) {
	row, ok := ev.Row.(*store.Message)
	if !ok || row.ConversationID != e.conversationID {
		return
	}

	switch ev.Type {
	case store.EventTypeInsert:
		e.mergeInsert(row)
	case store.EventTypeUpdate:
		e.mergeUpdate(row)
	case store.EventTypeDelete:
		e.mergeDelete(row)
	}
}

func (e *Engine) mergeInsert(row *store.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ent := range e.entries {
		if ent.rowID == row.ID {
			return
		}
	}

	// Fold into a still-pending optimistic entry announcing the same
	// logical message: same sender, equal content, id still local.
	for _, ent := range e.entries {
		if store.IsLocalID(ent.id) && ent.senderID == row.SenderID && ent.content == row.Content {
			ent.id = strconv.Itoa(int(row.ID))
			ent.rowID = row.ID
			ent.createdTs = row.CreatedTs
			if metadata, err := store.DecodeMessageMetadata(row.Metadata); err == nil {
				ent.metadata = metadata
			}
			return
		}
	}

	e.entries = append(e.entries, entryFromRow(row))
}

func (e *Engine) mergeUpdate(row *store.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ent := range e.entries {
		if ent.rowID == row.ID {
			ent.content = row.Content
			if metadata, err := store.DecodeMessageMetadata(row.Metadata); err == nil {
				ent.metadata = metadata
			} else {
				slog.Warn("failed to decode updated message metadata",
					slog.Int("message_id", int(row.ID)),
					slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (e *Engine) mergeDelete(row *store.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = lo.Reject(e.entries, func(ent *entry, _ int) bool {
		return ent.rowID == row.ID
	})
}

// Messages returns a snapshot of the ordered view.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	return lo.Map(e.entries, func(ent *entry, _ int) Message {
		return Message{
			ID:        ent.id,
			RowID:     ent.rowID,
			SenderID:  ent.senderID,
			Content:   ent.content,
			Metadata:  ent.metadata.Clone(),
			CreatedTs: ent.createdTs,
		}
	})
}

// Send appends the user's draft, asks the assistant for a reply, and appends
// the assistant turn. A gateway failure leaves the user's message durable
// and appends nothing.
func (e *Engine) Send(ctx context.Context, draft *Draft) error {
	if _, err := e.Append(ctx, draft); err != nil {
		return err
	}

	tripContext, err := assistant.BuildTripContext(ctx, e.store, e.tripID)
	if err != nil {
		return cerr.GatewayFailed("failed to assemble trip context", err)
	}

	response, err := e.gateway.Generate(ctx, &assistant.GenerateRequest{
		UserID:      e.userID,
		TripContext: tripContext,
		Transcript:  e.transcript(),
		Tools:       assistant.TripToolSchemas(),
	})
	if err != nil {
		return err
	}

	metadata := &store.MessageMetadata{
		ProposedActions: lo.Map(response.ProposedCalls, func(call assistant.ProposedCall, _ int) store.ProposedAction {
			return store.ProposedAction{
				Name:   store.ActionKind(call.Name),
				Args:   call.Args,
				Status: store.ActionStatusProposed,
			}
		}),
	}
	if _, err := e.append(ctx, store.AssistantSenderID, response.Content, metadata); err != nil {
		return err
	}
	return nil
}

func (e *Engine) transcript() []assistant.TranscriptMessage {
	e.mu.Lock()
	defer e.mu.Unlock()

	transcript := make([]assistant.TranscriptMessage, 0, len(e.entries))
	for _, ent := range e.entries {
		role := "user"
		if ent.senderID == store.AssistantSenderID {
			role = "assistant"
		}
		turn := assistant.TranscriptMessage{Role: role, Content: ent.content}
		if ent.metadata != nil {
			turn.Attachments = ent.metadata.Attachments
		}
		transcript = append(transcript, turn)
	}
	return transcript
}

// ClearHistory bulk-deletes the viewer's conversation and resets the view.
// The view is untouched if the delete fails.
func (e *Engine) ClearHistory(ctx context.Context) error {
	_, err := e.store.DeleteMessages(ctx, &store.DeleteMessagesFilter{
		ConversationID:   e.conversationID,
		SenderID:         e.userID,
		IncludeAssistant: true,
	})
	if err != nil {
		return cerr.WriteFailed("failed to clear history", err)
	}

	e.mu.Lock()
	e.entries = nil
	e.mu.Unlock()
	return nil
}

func entryFromRow(row *store.Message) *entry {
	metadata, err := store.DecodeMessageMetadata(row.Metadata)
	if err != nil {
		slog.Warn("failed to decode message metadata",
			slog.Int("message_id", int(row.ID)),
			slog.String("error", err.Error()))
		metadata = &store.MessageMetadata{}
	}
	return &entry{
		id:        strconv.Itoa(int(row.ID)),
		rowID:     row.ID,
		senderID:  row.SenderID,
		content:   row.Content,
		metadata:  metadata,
		createdTs: row.CreatedTs,
	}
}
