// Package notify broadcasts subject status changes to live listeners.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is published whenever a subject's status changes.
type Event struct {
	SubjectID int64     `json:"subject_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

// Bus fans events out to every current subscriber.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	// Subscribe returns a stream of events until ctx ends or cancel is called.
	Subscribe(ctx context.Context) (<-chan Event, func(), error)
}

// Memory is an in-process Bus. Slow subscribers miss events rather than block publishers.
type Memory struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func NewMemory() *Memory {
	return &Memory{subs: map[int]chan Event{}}
}

func (m *Memory) Publish(_ context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	ch := make(chan Event, 16)
	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			close(ch)
			m.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}

// Redis publishes events on a pub/sub channel so every API replica sees them.
type Redis struct {
	client  *redis.Client
	channel string
}

func NewRedis(client *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = "rollcall:subjects"
	}
	return &Redis{client: client, channel: channel}
}

func (r *Redis) Publish(ctx context.Context, evt Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, raw).Err()
}

func (r *Redis) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	ps := r.client.Subscribe(ctx, r.channel)
	// wait for the subscription to be confirmed so no event published afterwards is lost
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan Event, 16)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(m.Payload), &evt); err != nil {
					continue
				}
				select {
				case out <- evt:
				default:
				}
			}
		}
	}()
	return out, cancel, nil
}
