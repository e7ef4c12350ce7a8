// Package livequery holds the handle types for standing queries against the
// document backend. A backend delivers the full current result of a query every
// time it changes until the subscription is cancelled.
package livequery

import (
	"context"
	"sync"
)

// Subscription is one cancellable live query. The zero value is not usable,
// create it with Run.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Run starts loop in its own goroutine under a context derived from parent.
// loop is expected to block while delivering snapshots and to return once its
// context is cancelled. If loop fails while the subscription is still wanted,
// onError receives the error and the subscription ends without affecting any
// other subscription.
func Run(parent context.Context, loop func(ctx context.Context) error, onError func(error)) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	s := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer cancel()

		err := loop(ctx)
		if err != nil && ctx.Err() == nil && onError != nil {
			onError(err)
		}
	}()

	return s
}

// Cancel stops the subscription. It is safe to call more than once and from
// within the subscription's own callbacks.
func (s *Subscription) Cancel() {
	s.cancel()
}

// Done is closed once the subscription goroutine has exited
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Set owns the subscriptions of one consumer so they can be released together.
type Set struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewSet creates an empty, open Set
func NewSet() *Set {
	return &Set{subs: make(map[*Subscription]struct{})}
}

// Add takes ownership of sub. Once the set has been cancelled, sub is cancelled
// right away and Add reports false.
func (s *Set) Add(sub *Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		sub.Cancel()
		return false
	}
	s.subs[sub] = struct{}{}
	return true
}

// Len reports how many held subscriptions are still running. Subscriptions
// that ended on their own are released.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs {
		select {
		case <-sub.done:
			delete(s.subs, sub)
		default:
		}
	}
	return len(s.subs)
}

// CancelAll cancels every held subscription and closes the set. It returns the
// cancelled subscriptions so callers can Wait on them.
func (s *Set) CancelAll() []*Subscription {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[*Subscription]struct{})
	s.closed = true
	s.mu.Unlock()

	cancelled := make([]*Subscription, 0, len(subs))
	for sub := range subs {
		sub.Cancel()
		cancelled = append(cancelled, sub)
	}
	return cancelled
}

// Wait blocks until every given subscription has exited or ctx ends
func Wait(ctx context.Context, subs ...*Subscription) error {
	for _, sub := range subs {
		select {
		case <-sub.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
