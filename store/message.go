package store

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrStaleMetadata is returned by a conditional message update whose
// expected-metadata predicate no longer matches the stored row. The caller
// re-reads and decides whether to retry.
var ErrStaleMetadata = errors.New("message metadata changed concurrently")

// AssistantSenderID is the sender id recorded on assistant-authored messages.
const AssistantSenderID = "assistant"

// LocalIDPrefix marks message ids that exist only in memory, before the
// store has confirmed the write.
const LocalIDPrefix = "local-"

// IsLocalID reports whether id is a synthetic optimistic id.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

type ActionStatus string

const (
	ActionStatusProposed ActionStatus = "PROPOSED"
	ActionStatusExecuted ActionStatus = "EXECUTED"
	ActionStatusRejected ActionStatus = "REJECTED"
)

// ActionKind enumerates the domain mutations the assistant may propose.
type ActionKind string

const (
	ActionKindCreateExpense        ActionKind = "create_expense"
	ActionKindCreateActivity       ActionKind = "create_activity"
	ActionKindCreateTransportation ActionKind = "create_transportation"
	ActionKindCreateLodging        ActionKind = "create_lodging"
	ActionKindCreateNote           ActionKind = "create_note"
	ActionKindCreateChecklistItems ActionKind = "create_checklist_items"
)

// ProposedAction is a side-effecting operation suggested by the assistant.
// It lives inside the owning message's metadata, never as its own row, so a
// status change is a message update rather than an insert.
type ProposedAction struct {
	Name   ActionKind      `json:"name"`
	Args   json.RawMessage `json:"args"`
	Status ActionStatus    `json:"status"`
}

// Attachment is an inlined binary carried by a message, handed to the
// assistant for multi-modal extraction.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// MessageMetadata is the JSON blob stored alongside a message row.
type MessageMetadata struct {
	Attachments     []Attachment     `json:"attachments,omitempty"`
	ProposedActions []ProposedAction `json:"proposedActions,omitempty"`
	PollID          int32            `json:"pollId,omitempty"`
}

// Encode serializes the metadata blob. A nil receiver encodes as "{}".
func (m *MessageMetadata) Encode() (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Clone returns a deep copy so view snapshots cannot alias engine state.
func (m *MessageMetadata) Clone() *MessageMetadata {
	if m == nil {
		return nil
	}
	clone := &MessageMetadata{PollID: m.PollID}
	if m.Attachments != nil {
		clone.Attachments = make([]Attachment, len(m.Attachments))
		copy(clone.Attachments, m.Attachments)
	}
	if m.ProposedActions != nil {
		clone.ProposedActions = make([]ProposedAction, len(m.ProposedActions))
		copy(clone.ProposedActions, m.ProposedActions)
	}
	return clone
}

// DecodeMessageMetadata parses a stored metadata blob. An empty blob decodes
// to an empty metadata object.
func DecodeMessageMetadata(raw string) (*MessageMetadata, error) {
	metadata := &MessageMetadata{}
	if strings.TrimSpace(raw) == "" {
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(raw), metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

type Message struct {
	ID             int32
	UID            string
	ConversationID string
	SenderID       string
	Content        string
	Metadata       string // JSON string, see MessageMetadata
	CreatedTs      int64
}

type FindMessage struct {
	ID             *int32
	UID            *string
	ConversationID *string
}

type UpdateMessage struct {
	ID       int32
	Metadata *string
	// ExpectedMetadata makes the update a compare-and-swap: it applies only
	// while the stored blob still equals this value, otherwise the driver
	// returns ErrStaleMetadata. Nil skips the predicate.
	ExpectedMetadata *string
}

type DeleteMessage struct {
	ID int32
}

// DeleteMessagesFilter is the bulk "clear history" filter: all messages of
// one sender within one conversation, assistant replies included.
type DeleteMessagesFilter struct {
	ConversationID   string
	SenderID         string
	IncludeAssistant bool
}
