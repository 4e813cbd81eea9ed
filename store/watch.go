package store

import (
	"fmt"
	"log/slog"
	"sync"
)

// EventType classifies a row-level change.
type EventType string

const (
	EventTypeInsert EventType = "INSERT"
	EventTypeUpdate EventType = "UPDATE"
	EventTypeDelete EventType = "DELETE"
)

// ChangeEvent describes one row mutation on a logical topic. Row holds the
// affected row (*Message or *Vote); for deletes it carries at least the id
// fields of the removed row.
type ChangeEvent struct {
	Type  EventType `json:"type"`
	Topic string    `json:"topic"`
	Row   any       `json:"row"`
}

// MessageTopic is the subscription topic for one conversation's messages.
func MessageTopic(conversationID string) string {
	return "messages/" + conversationID
}

// VoteTopic is the subscription topic for one poll's votes.
func VoteTopic(pollID int32) string {
	return fmt.Sprintf("votes/%d", pollID)
}

const subscriberBuffer = 64

type subscriber struct {
	topic string
	ch    chan ChangeEvent
}

// Watcher fans row change events out to per-topic subscribers. Delivery is
// asynchronous and best-effort: a subscriber that stops draining its channel
// loses events rather than blocking writers.
type Watcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
	closed      bool
}

func NewWatcher() *Watcher {
	return &Watcher{
		subscribers: make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe registers for change events on one topic. The returned cancel
// function unregisters the subscription and closes the channel.
func (w *Watcher) Subscribe(topic string) (<-chan ChangeEvent, func()) {
	sub := &subscriber{
		topic: topic,
		ch:    make(chan ChangeEvent, subscriberBuffer),
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	subs, ok := w.subscribers[topic]
	if !ok {
		subs = make(map[*subscriber]struct{})
		w.subscribers[topic] = subs
	}
	subs[sub] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if w.closed {
				// Close already closed every channel.
				return
			}
			if subs, ok := w.subscribers[topic]; ok {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(w.subscribers, topic)
				}
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers an event to every subscriber of its topic.
func (w *Watcher) Publish(event ChangeEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	for sub := range w.subscribers[event.Topic] {
		select {
		case sub.ch <- event:
		default:
			slog.Warn("change event dropped for slow subscriber",
				slog.String("topic", event.Topic),
				slog.String("type", string(event.Type)))
		}
	}
}

// Close stops the watcher and closes all subscriber channels.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for topic, subs := range w.subscribers {
		for sub := range subs {
			close(sub.ch)
		}
		delete(w.subscribers, topic)
	}
}
