package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler receives a published event. A returned error is reported to the
// publisher but never stops the remaining handlers.
type Handler[E any] func(ctx context.Context, event E) error

type subscriber[E any] struct {
	id      uint64
	handler Handler[E]
}

// Bus delivers events synchronously, in subscription order, on the
// publisher's goroutine.
type Bus[E any] struct {
	mu          sync.RWMutex
	log         *logrus.Entry
	nextID      uint64
	subscribers []subscriber[E]
}

func New[E any](log *logrus.Entry) *Bus[E] {
	return &Bus[E]{log: log}
}

// Subscribe registers h and returns a function removing it again.
func (b *Bus[E]) Subscribe(h Handler[E]) func() {
	if h == nil {
		panic("eventbus: handler must not be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscriber[E]{id: id, handler: h})
	return func() { b.unsubscribe(id) }
}

func (b *Bus[E]) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s.id == id {
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish runs every handler and joins their errors. Panics are recovered,
// logged and reported as errors.
func (b *Bus[E]) Publish(ctx context.Context, event E) error {
	b.mu.RLock()
	subs := make([]subscriber[E], len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	if len(subs) == 0 {
		if b.log != nil {
			b.log.WithContext(ctx).Debugf("eventbus.Publish: no subscribers for %T", event)
		}
		return nil
	}

	var errs []error
	for _, s := range subs {
		if err := b.call(ctx, s, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus[E]) call(ctx context.Context, s subscriber[E], event E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventbus: handler %d panicked: %v", s.id, r)
			if b.log != nil {
				b.log.WithContext(ctx).Errorf("eventbus: handler %d panicked with event %+v: %v", s.id, event, r)
			}
		}
	}()
	return s.handler(ctx, event)
}

func (b *Bus[E]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = nil
}

func (b *Bus[E]) SubscribersCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
