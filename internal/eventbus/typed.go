package eventbus

import (
	"context"
	"sync"
)

// fanout is the delivery core: buffered subscriber channels, non-blocking
// publish, close-once semantics. A subscriber with a full buffer misses the
// event rather than stalling the publisher.
type fanout[T any] struct {
	mu     sync.RWMutex
	subs   []chan T
	closed bool
}

// Publish sends the event to all subscribers.
func (f *fanout[T]) Publish(e T) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for _, ch := range f.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel.
func (f *fanout[T]) Subscribe() <-chan T {
	ch := make(chan T, 8)
	f.mu.Lock()
	if f.closed {
		close(ch)
	} else {
		f.subs = append(f.subs, ch)
	}
	f.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (f *fanout[T]) Unsubscribe(sub <-chan T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ch := range f.subs {
		if ch == sub {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			if !f.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes all subscriber channels and clears the list.
func (f *fanout[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}

// SubscribeTo returns a channel delivering only the bus events of type T,
// sparing consumers the type switch over the whole event set. The channel
// closes when the context is canceled or the bus closes; the underlying
// subscription is released either way.
func SubscribeTo[T any](ctx context.Context, bus EventBus) <-chan T {
	raw := bus.Subscribe()
	out := make(chan T, 8)
	go func() {
		defer close(out)
		defer bus.Unsubscribe(raw)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-raw:
				if !ok {
					return
				}
				e, ok := ev.(T)
				if !ok {
					continue
				}
				select {
				case out <- e:
				default:
				}
			}
		}
	}()
	return out
}
