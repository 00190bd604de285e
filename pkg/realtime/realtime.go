package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("realtime", fx.Provide(NewRedisBus))

const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
)

// Event is a row change pushed to subscribers of a channel.
type Event struct {
	Type   string          `json:"type"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record"`
	At     time.Time       `json:"at"`
}

func NewEvent(eventType, table string, record any) (Event, error) {
	b, err := json.Marshal(record)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Table: table, Record: b, At: time.Now().UTC()}, nil
}

// Bus fans events out to every subscriber of a channel, across processes
// when backed by redis.
type Bus interface {
	Publish(ctx context.Context, channel string, ev Event) error
	Subscribe(ctx context.Context, channel string) (<-chan Event, func(), error)
}

type redisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) Bus {
	return &redisBus{rdb: rdb}
}

func (b *redisBus) Publish(ctx context.Context, channel string, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channel, raw).Err()
}

func (b *redisBus) Subscribe(ctx context.Context, channel string) (<-chan Event, func(), error) {
	sub := b.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Event, 16)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					zap.L().Warn("bad realtime payload", zap.String("channel", channel), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				default:
					zap.L().Warn("realtime subscriber slow, dropping event", zap.String("channel", channel))
				}
			}
		}
	}()

	return out, cancel, nil
}

type memoryBus struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewMemoryBus is an in-process Bus for single-node runs and tests.
func NewMemoryBus() Bus {
	return &memoryBus{subs: make(map[string]map[chan Event]struct{})}
}

func (b *memoryBus) Publish(_ context.Context, channel string, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[channel] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (b *memoryBus) Subscribe(ctx context.Context, channel string) (<-chan Event, func(), error) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan Event]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[channel], ch)
			b.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}
