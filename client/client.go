// Package client is the command boundary of the ring. It validates
// commands against its own bookkeeping before anything is sent, so a
// rejected command never reaches a node.
package client

import (
	"context"
	"time"

	"github.com/JWilliamson45/chord/keyset"
	"github.com/JWilliamson45/chord/message"
	"github.com/JWilliamson45/chord/mutex"
	"github.com/JWilliamson45/chord/node"
	"github.com/JWilliamson45/chord/ring"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/pkg/errors"
	"github.com/valyala/fastrand"
	"go.uber.org/zap"
)

const defaultSettleTimeout = 5 * time.Second

// Ring is what the client needs from a running ring.
type Ring interface {
	Submit(cmd message.Command, payload int) error
	WaitIdle(ctx context.Context) error
	SpawnErr(id int) error
	Nodes() []int
	Snapshot(ctx context.Context) ([]node.DumpRecord, error)
}

type Option struct {
	Middles       []DoMiddle
	Logger        *zap.Logger
	SettleTimeout time.Duration
}

func (opt Option) AddMiddle(middle ...DoMiddle) Option {
	opt.Middles = append(opt.Middles, middle...)
	return opt
}

func (opt Option) SetLogger(logger *zap.Logger) Option {
	opt.Logger = logger
	return opt
}

// SetSettleTimeout bounds how long a command waits for the ring to become
// quiescent before it reports back.
func (opt Option) SetSettleTimeout(timeout time.Duration) Option {
	opt.SettleTimeout = timeout
	return opt
}

type Client struct {
	ring   Ring
	option Option
	logger *zap.Logger

	mx        *mutex.Mutex
	directory *Directory
	// inserted ids whose spawn outcome was not seen before settle timed out
	unsettled map[int]struct{}
	keys      keyset.KeySet
	debug     bool
}

func New(r Ring, option Option) *Client {
	logger := option.Logger
	if logger == nil {
		logger = zap.L()
	}
	if option.SettleTimeout <= 0 {
		option.SettleTimeout = defaultSettleTimeout
	}
	return &Client{
		ring:      r,
		option:    option,
		logger:    logger,
		mx:        &mutex.Mutex{},
		directory: NewDirectory(),
		unsettled: make(map[int]struct{}),
	}
}

// AddNode inserts a node with a random free id and returns that id.
func (client *Client) AddNode(ctx context.Context) (int, error) {
	if !client.lock(ctx) {
		return message.Unset, ctx.Err()
	}
	defer client.mx.Release()

	if client.directory.Full() {
		return message.Unset, ErrRingFull
	}
	free := client.directory.Free()
	id := free[fastrand.Uint32n(uint32(len(free)))]
	if err := client.addNode(ctx, id); err != nil {
		return message.Unset, err
	}
	return id, nil
}

func (client *Client) AddNodeWithID(ctx context.Context, id int) error {
	if !client.lock(ctx) {
		return ctx.Err()
	}
	defer client.mx.Release()

	if client.directory.Full() {
		return ErrRingFull
	}
	if id < 0 || id >= message.Main {
		return errors.Wrapf(ErrInvalidNode, "node %d", id)
	}
	if client.directory.Contains(id) {
		return errors.Wrapf(ErrNodeExists, "node %d", id)
	}
	return client.addNode(ctx, id)
}

// addNode waits for the insertion to settle so a failed spawn is reported
// to the caller and the id is released. When settling times out the id
// stays reserved until reconcile sees the spawn outcome.
func (client *Client) addNode(ctx context.Context, id int) error {
	client.directory.Add(id)
	if err := client.send(ctx, "add_node", message.AddNode, id); err != nil {
		client.directory.Remove(id)
		return err
	}
	if err := client.settle(ctx); err != nil {
		client.unsettled[id] = struct{}{}
		return errors.Wrapf(err, "add node %d", id)
	}
	if err := client.ring.SpawnErr(id); err != nil {
		client.directory.Remove(id)
		client.logger.Error("node spawn failed", zap.Int("node", id), zap.Error(err))
		return errors.Wrapf(ErrSpawnFailed, "node %d: %v", id, err)
	}
	return nil
}

func (client *Client) AddKey(ctx context.Context, key int) error {
	if !client.lock(ctx) {
		return ctx.Err()
	}
	defer client.mx.Release()

	if !keyset.Valid(key) {
		return errors.Wrapf(ErrInvalidKey, "key %d", key)
	}
	if client.keys.Contains(key) {
		return errors.Wrapf(ErrKeyExists, "key %d", key)
	}
	if err := client.send(ctx, "add_key", message.AddKey, key); err != nil {
		return err
	}
	client.keys.Add(key)
	return nil
}

func (client *Client) DeleteKey(ctx context.Context, key int) error {
	if !client.lock(ctx) {
		return ctx.Err()
	}
	defer client.mx.Release()

	if !keyset.Valid(key) {
		return errors.Wrapf(ErrInvalidKey, "key %d", key)
	}
	if !client.keys.Contains(key) {
		return errors.Wrapf(ErrNoSuchKey, "key %d", key)
	}
	if err := client.send(ctx, "delete_key", message.DeleteKey, key); err != nil {
		return err
	}
	client.keys.Remove(key)
	return nil
}

// Dump prints every node and returns once the lap is complete.
func (client *Client) Dump(ctx context.Context) error {
	if !client.lock(ctx) {
		return ctx.Err()
	}
	defer client.mx.Release()

	if err := client.send(ctx, "dump", message.Dump, 0); err != nil {
		return err
	}
	return errors.Wrap(client.settle(ctx), "dump")
}

// ToggleDebug flips diagnostic tracing and returns the new state.
func (client *Client) ToggleDebug(ctx context.Context) (bool, error) {
	if !client.lock(ctx) {
		return false, ctx.Err()
	}
	defer client.mx.Release()

	on := !client.debug
	payload := 0
	if on {
		payload = 1
	}
	if err := client.send(ctx, "toggle_debug", message.ToggleDebug, payload); err != nil {
		return client.debug, err
	}
	client.debug = on
	return on, nil
}

// Populate sends keys as one burst of AddKey. Invalid and duplicate keys
// are skipped with a warning. It returns how many keys were sent.
func (client *Client) Populate(ctx context.Context, keys []int) (int, error) {
	if !client.lock(ctx) {
		return 0, ctx.Err()
	}
	defer client.mx.Release()

	added := 0
	for _, key := range keys {
		if !keyset.Valid(key) {
			client.logger.Warn("skip invalid key", zap.Int("key", key))
			continue
		}
		if client.keys.Contains(key) {
			client.logger.Warn("skip duplicate key", zap.Int("key", key))
			continue
		}
		if err := client.send(ctx, "add_key", message.AddKey, key); err != nil {
			return added, err
		}
		client.keys.Add(key)
		added++
	}
	return added, nil
}

// Snapshot returns what a Dump would print, once the ring is quiescent.
func (client *Client) Snapshot(ctx context.Context) ([]node.DumpRecord, error) {
	if !client.lock(ctx) {
		return nil, ctx.Err()
	}
	defer client.mx.Release()

	records, err := client.ring.Snapshot(ctx)
	if errors.Cause(err) == ring.ErrClosed {
		return nil, ErrClosed
	}
	return records, errors.Wrap(err, "snapshot")
}

// Nodes returns inserted ids in ring order, MAIN last.
func (client *Client) Nodes() []int {
	client.hold()
	defer client.mx.Release()
	return client.directory.IDs()
}

func (client *Client) Keys() []int {
	client.hold()
	defer client.mx.Release()
	return client.keys.Keys()
}

// Owner returns the node expected to own key at quiescence.
func (client *Client) Owner(key int) (int, error) {
	if !keyset.Valid(key) {
		return message.Unset, errors.Wrapf(ErrInvalidKey, "key %d", key)
	}
	client.hold()
	defer client.mx.Release()
	return client.directory.Owner(key), nil
}

func (client *Client) Debug() bool {
	client.hold()
	defer client.mx.Release()
	return client.debug
}

func (client *Client) lock(ctx context.Context) bool {
	if !client.mx.Hold(ctx) {
		return false
	}
	client.reconcile()
	return true
}

func (client *Client) hold() {
	client.lock(context.Background())
}

// reconcile settles insertions that timed out earlier. A spawn that failed
// in the meantime releases its id.
func (client *Client) reconcile() {
	if len(client.unsettled) == 0 {
		return
	}
	running := make(map[int]bool)
	for _, id := range client.ring.Nodes() {
		running[id] = true
	}
	for id := range client.unsettled {
		if err := client.ring.SpawnErr(id); err != nil {
			client.directory.Remove(id)
			delete(client.unsettled, id)
			client.logger.Error("node spawn failed", zap.Int("node", id), zap.Error(err))
			continue
		}
		if running[id] {
			delete(client.unsettled, id)
		}
	}
}

func (client *Client) send(ctx context.Context, name string, cmd message.Command, payload int) error {
	op := func(ctx context.Context) error {
		err := client.ring.Submit(cmd, payload)
		if errors.Cause(err) == ring.ErrClosed {
			return ErrClosed
		}
		if err != nil {
			return errors.Wrapf(err, "submit %s", cmd)
		}
		ctxzap.Extract(ctx).Debug("command submitted", zap.Stringer("command", cmd), zap.Int("payload", payload))
		return nil
	}
	for _, mid := range client.option.Middles {
		op = mid.WrapDo(op, name)
	}
	return op(ctx)
}

func (client *Client) settle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, client.option.SettleTimeout)
	defer cancel()
	return client.ring.WaitIdle(ctx)
}
