package utils

import (
	"context"
	"errors"
	"sync"
)

var ErrMailboxClosed = errors.New("[liveobjects] mailbox is closed")

// Mailbox is an unbounded single-consumer FIFO. Push never blocks, so
// a producer on the mutation path is never stalled by a slow consumer.
type Mailbox[T any] struct {
	lock   sync.Mutex
	items  []T
	signal chan struct{}
	closed bool
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{signal: make(chan struct{}, 1)}
}

func (m *Mailbox[T]) Push(item T) error {
	m.lock.Lock()
	if m.closed {
		m.lock.Unlock()
		return ErrMailboxClosed
	}
	m.items = append(m.items, item)
	m.lock.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
	return nil
}

// Pop waits for the next item. Items pushed before Close are still
// handed out; after that Pop returns ErrMailboxClosed.
func (m *Mailbox[T]) Pop(ctx context.Context) (item T, err error) {
	for {
		m.lock.Lock()
		if len(m.items) > 0 {
			item = m.items[0]
			var zero T
			m.items[0] = zero
			m.items = m.items[1:]
			m.lock.Unlock()
			return item, nil
		}
		if m.closed {
			m.lock.Unlock()
			return item, ErrMailboxClosed
		}
		m.lock.Unlock()
		select {
		case <-m.signal:
		case <-ctx.Done():
			return item, ctx.Err()
		}
	}
}

func (m *Mailbox[T]) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.items)
}

func (m *Mailbox[T]) Close() error {
	m.lock.Lock()
	if m.closed {
		m.lock.Unlock()
		return ErrMailboxClosed
	}
	m.closed = true
	m.lock.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
	return nil
}
