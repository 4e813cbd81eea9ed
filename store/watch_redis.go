package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// RedisFanout bridges change events across instances over redis pub/sub.
// Local events are republished to the shared channel; remote events are
// injected into the local watcher so every instance sees the same stream.
// Single-instance deployments run fine without it.
type RedisFanout struct {
	rdb      *goredis.Client
	channel  string
	origin   string
	watcher  *Watcher
	cancelFn context.CancelFunc
}

type fanoutEnvelope struct {
	Origin string          `json:"origin"`
	Type   EventType       `json:"type"`
	Topic  string          `json:"topic"`
	Kind   string          `json:"kind"`
	Row    json.RawMessage `json:"row"`
}

// NewRedisFanout connects to redis and verifies the connection.
func NewRedisFanout(addr, channel string, watcher *Watcher) (*RedisFanout, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = "yonder:changes"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisFanout{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.New().String(),
		watcher: watcher,
	}, nil
}

// Publish republishes a local change event to the shared channel.
func (f *RedisFanout) Publish(ctx context.Context, event ChangeEvent) error {
	if f == nil || f.rdb == nil {
		return fmt.Errorf("redis fanout not initialized")
	}

	env := fanoutEnvelope{
		Origin: f.origin,
		Type:   event.Type,
		Topic:  event.Topic,
	}
	switch row := event.Row.(type) {
	case *Message:
		env.Kind = "message"
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		env.Row = data
	case *Vote:
		env.Kind = "vote"
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		env.Row = data
	default:
		return fmt.Errorf("unsupported row type %T", event.Row)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, f.channel, raw).Err()
}

// Start subscribes to the shared channel and forwards remote events into the
// local watcher until the context is cancelled.
func (f *RedisFanout) Start(ctx context.Context) error {
	if f == nil || f.rdb == nil {
		return fmt.Errorf("redis fanout not initialized")
	}

	ctx, f.cancelFn = context.WithCancel(ctx)
	sub := f.rdb.Subscribe(ctx, f.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				f.forward([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (f *RedisFanout) forward(payload []byte) {
	var env fanoutEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		slog.Warn("failed to decode fanout envelope", slog.String("error", err.Error()))
		return
	}
	if env.Origin == f.origin {
		// Our own publication, already delivered locally.
		return
	}

	event := ChangeEvent{Type: env.Type, Topic: env.Topic}
	switch env.Kind {
	case "message":
		row := &Message{}
		if err := json.Unmarshal(env.Row, row); err != nil {
			slog.Warn("failed to decode fanout message row", slog.String("error", err.Error()))
			return
		}
		event.Row = row
	case "vote":
		row := &Vote{}
		if err := json.Unmarshal(env.Row, row); err != nil {
			slog.Warn("failed to decode fanout vote row", slog.String("error", err.Error()))
			return
		}
		event.Row = row
	default:
		slog.Warn("unknown fanout row kind", slog.String("kind", env.Kind))
		return
	}

	f.watcher.Publish(event)
}

// Close stops the forwarder and releases the redis connection.
func (f *RedisFanout) Close() error {
	if f.cancelFn != nil {
		f.cancelFn()
	}
	if f.rdb != nil {
		return f.rdb.Close()
	}
	return nil
}
