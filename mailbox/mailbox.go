// Package mailbox carries messages between ring nodes.
//
// Every node slot owns one unbounded FIFO mailbox, and MAIN additionally
// reads from a command mailbox fed by the outside world. Senders never
// block. Receivers block on Ready or Pop.
package mailbox

import (
	"container/list"
	"context"
	"sync"

	"github.com/JWilliamson45/chord/message"
	"github.com/pkg/errors"
)

var ErrClosed = errors.New("mailbox closed")

type Mailbox struct {
	mx     sync.Mutex
	closed bool
	l      *list.List
	notify chan struct{}
}

func New() *Mailbox {
	return &Mailbox{
		l:      list.New(),
		notify: make(chan struct{}, 1),
	}
}

func (mailbox *Mailbox) Push(msg message.Message) error {
	mailbox.mx.Lock()
	defer mailbox.mx.Unlock()
	if mailbox.closed {
		return ErrClosed
	}
	mailbox.l.PushBack(msg)
	select {
	case mailbox.notify <- struct{}{}:
	default:
	}
	return nil
}

// TryPop removes the oldest message without blocking.
func (mailbox *Mailbox) TryPop() (message.Message, bool) {
	mailbox.mx.Lock()
	defer mailbox.mx.Unlock()
	front := mailbox.l.Front()
	if front == nil {
		return message.Message{}, false
	}
	mailbox.l.Remove(front)
	if mailbox.l.Len() > 0 {
		// keep the signal raised for the next receive
		select {
		case mailbox.notify <- struct{}{}:
		default:
		}
	}
	return front.Value.(message.Message), true
}

func (mailbox *Mailbox) Pop(ctx context.Context) (message.Message, error) {
	for ctx.Err() == nil {
		if msg, ok := mailbox.TryPop(); ok {
			return msg, nil
		}
		if mailbox.isClosed() {
			return message.Message{}, ErrClosed
		}
		select {
		case <-mailbox.notify:
		case <-ctx.Done():
		}
	}
	return message.Message{}, ctx.Err()
}

// Ready fires when a message may be available. A receive on Ready must be
// followed by TryPop, which can still come back empty.
func (mailbox *Mailbox) Ready() <-chan struct{} {
	return mailbox.notify
}

func (mailbox *Mailbox) Len() int {
	mailbox.mx.Lock()
	defer mailbox.mx.Unlock()
	return mailbox.l.Len()
}

// Close rejects further pushes and drops whatever is still queued.
// It returns the number of dropped messages.
func (mailbox *Mailbox) Close() int {
	mailbox.mx.Lock()
	defer mailbox.mx.Unlock()
	if mailbox.closed {
		return 0
	}
	mailbox.closed = true
	dropped := mailbox.l.Len()
	mailbox.l.Init()
	select {
	case mailbox.notify <- struct{}{}:
	default:
	}
	return dropped
}

func (mailbox *Mailbox) isClosed() bool {
	mailbox.mx.Lock()
	defer mailbox.mx.Unlock()
	return mailbox.closed
}
