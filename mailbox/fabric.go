package mailbox

import (
	"context"
	"sync"

	"github.com/JWilliamson45/chord/message"
	"github.com/JWilliamson45/chord/telemetry"
	"github.com/pkg/errors"
)

var ErrNoRoute = errors.New("no mailbox for node")

// Fabric is the set of mailboxes of one ring, indexed by node id, plus
// the command mailbox read by MAIN.
//
// It also counts messages that were sent but not yet fully handled. A
// receiver must call Done once for every message it popped, after its
// handler returned. The ring is quiescent when the count drops to zero.
type Fabric struct {
	boxes    [message.MaxNodes]*Mailbox
	commands *Mailbox

	mx      sync.Mutex
	pending int
	idle    chan struct{}
	closed  bool
}

func NewFabric() *Fabric {
	fabric := &Fabric{
		commands: New(),
		idle:     make(chan struct{}),
	}
	for i := range fabric.boxes {
		fabric.boxes[i] = New()
	}
	close(fabric.idle)
	return fabric
}

func (fabric *Fabric) Mailbox(id int) (*Mailbox, bool) {
	if !message.ValidNode(id) {
		return nil, false
	}
	return fabric.boxes[id], true
}

func (fabric *Fabric) Commands() *Mailbox {
	return fabric.commands
}

// Send queues msg on the mailbox of node to.
func (fabric *Fabric) Send(to int, msg message.Message) error {
	box, ok := fabric.Mailbox(to)
	if !ok {
		return errors.Wrapf(ErrNoRoute, "send %s to %d", msg, to)
	}
	return fabric.push(box, msg)
}

// Submit queues msg on the command mailbox.
func (fabric *Fabric) Submit(msg message.Message) error {
	return fabric.push(fabric.commands, msg)
}

func (fabric *Fabric) push(box *Mailbox, msg message.Message) error {
	if !fabric.acquire() {
		return ErrClosed
	}
	if err := box.Push(msg); err != nil {
		fabric.Done()
		return err
	}
	return nil
}

func (fabric *Fabric) acquire() bool {
	fabric.mx.Lock()
	defer fabric.mx.Unlock()
	if fabric.closed {
		return false
	}
	if fabric.pending == 0 {
		fabric.idle = make(chan struct{})
	}
	fabric.pending++
	telemetry.MailboxPending.Set(float64(fabric.pending))
	return true
}

// Done marks one popped message as handled.
func (fabric *Fabric) Done() {
	fabric.release(1)
}

func (fabric *Fabric) release(n int) {
	if n <= 0 {
		return
	}
	fabric.mx.Lock()
	defer fabric.mx.Unlock()
	fabric.pending -= n
	if fabric.pending < 0 {
		fabric.pending = 0
	}
	telemetry.MailboxPending.Set(float64(fabric.pending))
	if fabric.pending == 0 {
		select {
		case <-fabric.idle:
		default:
			close(fabric.idle)
		}
	}
}

func (fabric *Fabric) Pending() int {
	fabric.mx.Lock()
	defer fabric.mx.Unlock()
	return fabric.pending
}

// Idle is closed while no message is queued or being handled.
func (fabric *Fabric) Idle() <-chan struct{} {
	fabric.mx.Lock()
	defer fabric.mx.Unlock()
	return fabric.idle
}

func (fabric *Fabric) WaitIdle(ctx context.Context) error {
	for {
		idle := fabric.Idle()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
		}
		// a message may have been sent between the close and our wake up
		if fabric.Pending() == 0 {
			return nil
		}
	}
}

// Close closes every mailbox. Queued messages are dropped and no longer
// count as pending.
func (fabric *Fabric) Close() {
	fabric.mx.Lock()
	if fabric.closed {
		fabric.mx.Unlock()
		return
	}
	fabric.closed = true
	fabric.mx.Unlock()

	dropped := fabric.commands.Close()
	for _, box := range fabric.boxes {
		dropped += box.Close()
	}
	fabric.release(dropped)
}
