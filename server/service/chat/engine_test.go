package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/yonder-travel/yonder/server/assistant"
	cerr "github.com/yonder-travel/yonder/server/internal/errors"
	"github.com/yonder-travel/yonder/store"
	"github.com/yonder-travel/yonder/store/test"
)

type fakeGateway struct {
	response *assistant.GenerateResponse
	err      error
	requests []*assistant.GenerateRequest
}

func (g *fakeGateway) Generate(_ context.Context, req *assistant.GenerateRequest) (*assistant.GenerateResponse, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.response, nil
}

func newTestEngine(ctx context.Context, t *testing.T, gateway assistant.Gateway) (*Engine, *store.Store) {
	ts := test.NewTestingStore(ctx, t)
	trip := test.CreateTestingTrip(ctx, t, ts)
	engine := NewEngine(ts, gateway, "conv-1", "user-1", trip.ID)
	require.NoError(t, engine.Load(ctx))
	return engine, ts
}

func TestAppendConfirmsInPlace(t *testing.T) {
	ctx := context.Background()
	engine, ts := newTestEngine(ctx, t, &fakeGateway{})

	_, err := engine.Append(ctx, &Draft{Content: "first"})
	require.NoError(t, err)
	_, err = engine.Append(ctx, &Draft{Content: "second"})
	require.NoError(t, err)

	messages := engine.Messages()
	require.Len(t, messages, 2)
	require.Equal(t, "first", messages[0].Content)
	require.Equal(t, "second", messages[1].Content)
	for _, m := range messages {
		require.False(t, store.IsLocalID(m.ID), "entry should be durable after ack: %s", m.ID)
		require.NotZero(t, m.RowID)
	}

	rows, err := ts.ListMessages(ctx, &store.FindMessage{ConversationID: lo.ToPtr("conv-1")})
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestAppendWriteFailureRemovesEntry(t *testing.T) {
	ctx := context.Background()
	engine, ts := newTestEngine(ctx, t, &fakeGateway{})

	require.NoError(t, ts.GetDriver().Close())

	_, err := engine.Append(ctx, &Draft{Content: "doomed"})
	require.Error(t, err)
	require.True(t, cerr.IsCode(err, cerr.ErrCodeWriteFailed))
	require.Empty(t, engine.Messages(), "failed append must leave no placeholder")
}

func TestHandleChangeDeduplicatesOwnInsert(t *testing.T) {
	ctx := context.Background()
	engine, ts := newTestEngine(ctx, t, &fakeGateway{})

	_, err := engine.Append(ctx, &Draft{Content: "hello"})
	require.NoError(t, err)

	rows, err := ts.ListMessages(ctx, &store.FindMessage{ConversationID: lo.ToPtr("conv-1")})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// The notification for a write this session already acknowledged must
	// not create a second entry.
	engine.HandleChange(store.ChangeEvent{
		Type:  store.EventTypeInsert,
		Topic: store.MessageTopic("conv-1"),
		Row:   rows[0],
	})
	require.Len(t, engine.Messages(), 1)
}

func TestHandleChangeFoldsIntoPendingEntry(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(ctx, t, &fakeGateway{})

	// Simulate the notification arriving while the write is still pending:
	// the view holds a local-id entry announcing the same logical message.
	engine.mu.Lock()
	engine.entries = append(engine.entries, &entry{
		id:       store.LocalIDPrefix + "pending",
		senderID: "user-1",
		content:  "hello",
		metadata: &store.MessageMetadata{},
	})
	engine.mu.Unlock()

	engine.HandleChange(store.ChangeEvent{
		Type:  store.EventTypeInsert,
		Topic: store.MessageTopic("conv-1"),
		Row: &store.Message{
			ID:             7,
			ConversationID: "conv-1",
			SenderID:       "user-1",
			Content:        "hello",
			Metadata:       "{}",
		},
	})

	messages := engine.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, int32(7), messages[0].RowID)
	require.False(t, store.IsLocalID(messages[0].ID))
}

func TestHandleChangeRemoteInsertPreservesOrder(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(ctx, t, &fakeGateway{})

	_, err := engine.Append(ctx, &Draft{Content: "mine"})
	require.NoError(t, err)

	engine.HandleChange(store.ChangeEvent{
		Type:  store.EventTypeInsert,
		Topic: store.MessageTopic("conv-1"),
		Row: &store.Message{
			ID:             99,
			ConversationID: "conv-1",
			SenderID:       "user-2",
			Content:        "theirs",
			Metadata:       "{}",
		},
	})

	messages := engine.Messages()
	require.Len(t, messages, 2)
	require.Equal(t, "mine", messages[0].Content)
	require.Equal(t, "theirs", messages[1].Content)
}

func TestHandleChangeUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	engine, ts := newTestEngine(ctx, t, &fakeGateway{})

	_, err := engine.Append(ctx, &Draft{Content: "hello"})
	require.NoError(t, err)
	rowID := engine.Messages()[0].RowID

	metadata := &store.MessageMetadata{
		ProposedActions: []store.ProposedAction{
			{Name: store.ActionKindCreateNote, Args: json.RawMessage(`{}`), Status: store.ActionStatusExecuted},
		},
	}
	encoded, err := metadata.Encode()
	require.NoError(t, err)
	engine.HandleChange(store.ChangeEvent{
		Type:  store.EventTypeUpdate,
		Topic: store.MessageTopic("conv-1"),
		Row: &store.Message{
			ID:             rowID,
			ConversationID: "conv-1",
			SenderID:       "user-1",
			Content:        "hello",
			Metadata:       encoded,
		},
	})

	messages := engine.Messages()
	require.Len(t, messages, 1)
	require.Len(t, messages[0].Metadata.ProposedActions, 1)
	require.Equal(t, store.ActionStatusExecuted, messages[0].Metadata.ProposedActions[0].Status)

	engine.HandleChange(store.ChangeEvent{
		Type:  store.EventTypeDelete,
		Topic: store.MessageTopic("conv-1"),
		Row:   &store.Message{ID: rowID, ConversationID: "conv-1"},
	})
	require.Empty(t, engine.Messages())

	// The store row is untouched; only the view reacted.
	rows, err := ts.ListMessages(ctx, &store.FindMessage{ConversationID: lo.ToPtr("conv-1")})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestSendAppendsAssistantReply(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{
		response: &assistant.GenerateResponse{
			Content: "I added it.",
			ProposedCalls: []assistant.ProposedCall{
				{Name: "create_expense", Args: json.RawMessage(`{"name":"Dinner","amount":42}`)},
			},
		},
	}
	engine, _ := newTestEngine(ctx, t, gateway)

	require.NoError(t, engine.Send(ctx, &Draft{Content: "dinner was 42 euros"}))

	messages := engine.Messages()
	require.Len(t, messages, 2)
	require.Equal(t, "user-1", messages[0].SenderID)
	require.Equal(t, store.AssistantSenderID, messages[1].SenderID)
	require.Len(t, messages[1].Metadata.ProposedActions, 1)
	require.Equal(t, store.ActionStatusProposed, messages[1].Metadata.ProposedActions[0].Status)

	require.Len(t, gateway.requests, 1)
	require.NotEmpty(t, gateway.requests[0].TripContext)
	require.Len(t, gateway.requests[0].Tools, 6)
}

func TestSendGatewayFailureKeepsUserMessage(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{err: cerr.GatewayFailed("model unavailable", errors.New("boom"))}
	engine, ts := newTestEngine(ctx, t, gateway)

	err := engine.Send(ctx, &Draft{Content: "hello?"})
	require.Error(t, err)
	require.True(t, cerr.IsCode(err, cerr.ErrCodeGatewayFailed))

	messages := engine.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "user-1", messages[0].SenderID)
	require.False(t, store.IsLocalID(messages[0].ID), "user message must stay durable")

	rows, err := ts.ListMessages(ctx, &store.FindMessage{ConversationID: lo.ToPtr("conv-1")})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestClearHistory(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{response: &assistant.GenerateResponse{Content: "sure"}}
	engine, ts := newTestEngine(ctx, t, gateway)

	require.NoError(t, engine.Send(ctx, &Draft{Content: "hi"}))
	require.Len(t, engine.Messages(), 2)

	require.NoError(t, engine.ClearHistory(ctx))
	require.Empty(t, engine.Messages())

	rows, err := ts.ListMessages(ctx, &store.FindMessage{ConversationID: lo.ToPtr("conv-1")})
	require.NoError(t, err)
	require.Empty(t, rows, "assistant replies are cleared together with the user's messages")
}

func TestClearHistoryPropagatesToOtherSessions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine, ts := newTestEngine(ctx, t, &fakeGateway{})

	// A second session on the same conversation, kept current by watching.
	other := NewEngine(ts, &fakeGateway{}, "conv-1", "user-1", engine.tripID)
	require.NoError(t, other.Load(ctx))
	other.Watch(ctx)
	defer other.Stop()

	_, err := engine.Append(ctx, &Draft{Content: "first"})
	require.NoError(t, err)
	_, err = engine.Append(ctx, &Draft{Content: "second"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(other.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, engine.ClearHistory(ctx))
	require.Eventually(t, func() bool {
		return len(other.Messages()) == 0
	}, 2*time.Second, 10*time.Millisecond, "the delete events must empty the other session's view")
}

func TestClearHistoryFailureLeavesView(t *testing.T) {
	ctx := context.Background()
	engine, ts := newTestEngine(ctx, t, &fakeGateway{})

	_, err := engine.Append(ctx, &Draft{Content: "keep me"})
	require.NoError(t, err)

	require.NoError(t, ts.GetDriver().Close())
	err = engine.ClearHistory(ctx)
	require.Error(t, err)
	require.True(t, cerr.IsCode(err, cerr.ErrCodeWriteFailed))
	require.Len(t, engine.Messages(), 1)
}
