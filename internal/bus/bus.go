// Package bus propagates "device data changed" signals to local observers and,
// through an optional Relay, to other processes.
package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Relay forwards a change signal to peers outside this process.
type Relay interface {
	Relay(ctx context.Context) error
}

type subscription struct {
	mu sync.Mutex // serializes invocations of fn
	fn func()
}

// Bus is an explicit observer registry. Every Publish invokes each registered
// callback exactly once; a callback never runs concurrently with itself.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	relay  Relay
	log    *zap.Logger
}

func New(log *zap.Logger) *Bus {
	return &Bus{
		subs: make(map[uint64]*subscription),
		log:  log,
	}
}

// SetRelay attaches the cross-process forwarder used by Announce.
func (b *Bus) SetRelay(r Relay) {
	b.mu.Lock()
	b.relay = r
	b.mu.Unlock()
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (b *Bus) Subscribe(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscription{fn: fn}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish invokes every subscriber synchronously. Ordering across subscribers
// is unspecified.
func (b *Bus) Publish() {
	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		b.invoke(s)
	}
}

// Announce publishes locally and forwards the signal through the relay, if any.
// Relay failures are logged; local subscribers are always notified.
func (b *Bus) Announce(ctx context.Context) {
	b.Publish()

	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()
	if relay == nil {
		return
	}
	if err := relay.Relay(ctx); err != nil {
		b.log.Warn("relay change signal", zap.Error(err))
	}
}

func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) invoke(s *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bus subscriber panicked", zap.Any("panic", r))
		}
	}()
	s.fn()
}
