// Package ring assembles nodes into a running ring: it creates MAIN, owns
// the mailbox fabric and spawns the nodes MAIN and its successors ask for.
package ring

import (
	"context"
	"sort"
	"sync"

	"github.com/JWilliamson45/chord/mailbox"
	"github.com/JWilliamson45/chord/message"
	"github.com/JWilliamson45/chord/node"
	"github.com/JWilliamson45/chord/telemetry"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrClosed      = errors.New("ring closed")
	ErrNodeRunning = errors.New("node already running")
)

type Option struct {
	Logger   *zap.Logger
	Output   node.Emitter
	Debug    node.Debugger
	Launcher Launcher
}

func (opt Option) SetLogger(logger *zap.Logger) Option {
	opt.Logger = logger
	return opt
}

func (opt Option) SetOutput(output node.Emitter) Option {
	opt.Output = output
	return opt
}

func (opt Option) SetDebug(debug node.Debugger) Option {
	opt.Debug = debug
	return opt
}

func (opt Option) SetLauncher(launcher Launcher) Option {
	opt.Launcher = launcher
	return opt
}

type Ring struct {
	fabric *mailbox.Fabric
	opt    Option
	logger *zap.Logger

	mx       sync.Mutex
	handles  map[int]node.Handle
	failures map[int]error
	closed   bool

	snapshotMx sync.Mutex
	collected  *[]node.DumpRecord
}

// New creates the ring with MAIN as its only member.
func New(opt Option) (*Ring, error) {
	if opt.Logger == nil {
		opt.Logger = zap.L()
	}
	if opt.Launcher == nil {
		opt.Launcher = ProbLauncher{}
	}
	ring := &Ring{
		fabric:   mailbox.NewFabric(),
		opt:      opt,
		logger:   opt.Logger,
		handles:  make(map[int]node.Handle),
		failures: make(map[int]error),
	}
	if _, err := ring.Spawn(node.Config{ID: message.Main, Successor: message.Unset}); err != nil {
		ring.fabric.Close()
		return nil, errors.Wrap(err, "create ring")
	}
	return ring, nil
}

// Spawn starts a node. It is called by the node that found the insertion
// point, from inside its handler.
func (ring *Ring) Spawn(cfg node.Config) (node.Handle, error) {
	ring.mx.Lock()
	defer ring.mx.Unlock()

	err := ring.spawnLocked(cfg)
	if err != nil {
		ring.failures[cfg.ID] = err
		return nil, err
	}
	return ring.handles[cfg.ID], nil
}

func (ring *Ring) spawnLocked(cfg node.Config) error {
	if ring.closed {
		return ErrClosed
	}
	if !message.ValidNode(cfg.ID) {
		return errors.Errorf("node id %d out of range", cfg.ID)
	}
	if _, ok := ring.handles[cfg.ID]; ok {
		return errors.Wrapf(ErrNodeRunning, "spawn %d", cfg.ID)
	}

	n := node.New(cfg, node.Option{
		Fabric:  ring.fabric,
		Spawner: ring,
		Output:  ring,
		Debug:   ring.opt.Debug,
		Logger:  ring.logger,
	})
	handle, err := ring.opt.Launcher.Launch(cfg.ID, n.Run)
	if err != nil {
		return errors.Wrapf(err, "launch node %d", cfg.ID)
	}
	ring.handles[cfg.ID] = handle
	delete(ring.failures, cfg.ID)
	telemetry.RingNodes.Set(float64(len(ring.handles)))
	ring.logger.Debug("node spawned", zap.Int("node", cfg.ID), zap.Int("successor", cfg.Successor))
	return nil
}

// SpawnErr returns and forgets the last spawn failure for id.
func (ring *Ring) SpawnErr(id int) error {
	ring.mx.Lock()
	defer ring.mx.Unlock()
	err := ring.failures[id]
	delete(ring.failures, id)
	return err
}

// Submit hands a command to MAIN as if typed by the user.
func (ring *Ring) Submit(cmd message.Command, payload int) error {
	err := ring.fabric.Submit(message.New(cmd, payload, message.External))
	if errors.Cause(err) == mailbox.ErrClosed {
		return ErrClosed
	}
	return err
}

// WaitIdle blocks until no message is queued or being handled.
func (ring *Ring) WaitIdle(ctx context.Context) error {
	return ring.fabric.WaitIdle(ctx)
}

func (ring *Ring) Size() int {
	ring.mx.Lock()
	defer ring.mx.Unlock()
	return len(ring.handles)
}

// Nodes returns the running node ids in ascending order.
func (ring *Ring) Nodes() []int {
	ring.mx.Lock()
	defer ring.mx.Unlock()
	ids := make([]int, 0, len(ring.handles))
	for id := range ring.handles {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Emit routes dump records to the snapshot in progress, or to the
// configured output.
func (ring *Ring) Emit(record node.DumpRecord) {
	ring.mx.Lock()
	collected := ring.collected
	if collected != nil {
		*collected = append(*collected, record)
	}
	ring.mx.Unlock()

	if collected == nil && ring.opt.Output != nil {
		ring.opt.Output.Emit(record)
	}
}

// Snapshot runs a Dump lap and returns the records instead of printing
// them, in visitation order.
func (ring *Ring) Snapshot(ctx context.Context) ([]node.DumpRecord, error) {
	ring.snapshotMx.Lock()
	defer ring.snapshotMx.Unlock()

	if err := ring.WaitIdle(ctx); err != nil {
		return nil, err
	}

	records := []node.DumpRecord{}
	ring.mx.Lock()
	ring.collected = &records
	ring.mx.Unlock()
	defer func() {
		ring.mx.Lock()
		ring.collected = nil
		ring.mx.Unlock()
	}()

	if err := ring.Submit(message.Dump, 0); err != nil {
		return nil, err
	}
	if err := ring.WaitIdle(ctx); err != nil {
		return nil, err
	}

	ring.mx.Lock()
	defer ring.mx.Unlock()
	return append([]node.DumpRecord(nil), records...), nil
}

// CloseWithContext stops every node and closes the fabric.
func (ring *Ring) CloseWithContext(ctx context.Context) error {
	ring.mx.Lock()
	if ring.closed {
		ring.mx.Unlock()
		return nil
	}
	ring.closed = true
	handles := make([]node.Handle, 0, len(ring.handles))
	for _, h := range ring.handles {
		h.Stop()
		handles = append(handles, h)
	}
	ring.mx.Unlock()

	var err error
	for _, h := range handles {
		select {
		case <-h.Stopped():
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			break
		}
	}
	ring.fabric.Close()

	ring.mx.Lock()
	ring.handles = map[int]node.Handle{}
	ring.mx.Unlock()
	telemetry.RingNodes.Set(0)
	return err
}
