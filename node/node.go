// Package node is the protocol engine of a single ring member.
//
// A node knows its id, its successor and the keys it owns. It never looks
// at another node's state: everything it learns arrives as a message in
// its mailbox, and everything it changes elsewhere leaves as a message.
package node

import (
	"context"

	"github.com/JWilliamson45/chord/keyset"
	"github.com/JWilliamson45/chord/mailbox"
	"github.com/JWilliamson45/chord/message"
	"github.com/JWilliamson45/chord/telemetry"
	"go.uber.org/zap"
)

const (
	actionForward = "forward"
	actionLocal   = "local"
	actionSpawn   = "spawn"
	actionIgnore  = "ignore"
	actionFailed  = "failed"
)

type Option struct {
	Fabric  *mailbox.Fabric
	Spawner Spawner
	Output  Emitter
	Debug   Debugger
	Logger  *zap.Logger
}

func (opt Option) SetLogger(logger *zap.Logger) Option {
	opt.Logger = logger
	return opt
}

func (opt Option) SetOutput(output Emitter) Option {
	opt.Output = output
	return opt
}

func (opt Option) SetDebug(debug Debugger) Option {
	opt.Debug = debug
	return opt
}

type Node struct {
	id        int
	successor int
	keys      keyset.KeySet

	fabric  *mailbox.Fabric
	spawner Spawner
	output  Emitter
	debug   Debugger
	logger  *zap.Logger
}

func New(cfg Config, opt Option) *Node {
	logger := opt.Logger
	if logger == nil {
		logger = zap.L()
	}
	return &Node{
		id:        cfg.ID,
		successor: cfg.Successor,
		fabric:    opt.Fabric,
		spawner:   opt.Spawner,
		output:    opt.Output,
		debug:     opt.Debug,
		logger:    logger.With(zap.Int("node", cfg.ID)),
	}
}

func (node *Node) ID() int {
	return node.id
}

// Run consumes messages until ctx is done. MAIN also reads the command
// mailbox and takes at most one message from each source per turn.
func (node *Node) Run(ctx context.Context) {
	own, ok := node.fabric.Mailbox(node.id)
	if !ok {
		node.logger.Error("no mailbox for node")
		return
	}
	node.logger.Debug("node running", zap.Int("successor", node.successor))
	if node.id != message.Main {
		for {
			msg, err := own.Pop(ctx)
			if err != nil {
				return
			}
			node.process(msg)
		}
	}

	commands := node.fabric.Commands()
	commandReady := commands.Ready()
	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			return
		case <-own.Ready():
		case <-commandReady:
		}
		if msg, ok := commands.TryPop(); ok {
			node.process(msg)
		}
		if msg, ok := own.TryPop(); ok {
			node.process(msg)
		}
	}
}

func (node *Node) process(msg message.Message) {
	defer node.fabric.Done()
	node.Handle(msg)
}

// Handle applies one message to the node state.
func (node *Node) Handle(msg message.Message) {
	node.logger.Debug("handle", zap.Stringer("msg", msg), zap.Int("successor", node.successor))

	switch msg.Command {
	case message.AddNode:
		node.addNode(msg)
	case message.Announce:
		node.announce(msg)
	case message.RedistKey:
		node.redistKey(msg)
	case message.AddKey:
		node.addKey(msg)
	case message.DeleteKey:
		node.deleteKey(msg)
	case message.Dump:
		node.dump(msg)
	case message.ToggleDebug:
		node.toggleDebug(msg)
	default:
		node.logger.Warn("unknown command", zap.Stringer("msg", msg))
		node.count(msg, actionIgnore)
	}
}

func (node *Node) addNode(msg message.Message) {
	newID := msg.Payload
	if node.successor != message.Unset && newID >= node.successor {
		node.forward(msg)
		return
	}

	announceTo, childSuccessor := node.successor, node.successor
	if node.successor == message.Unset {
		announceTo, childSuccessor = node.id, message.Main
	}

	_, err := node.spawner.Spawn(Config{ID: newID, Successor: childSuccessor})
	if err != nil {
		node.logger.Error("spawn node", zap.Int("new_node", newID), zap.Error(err))
		telemetry.SpawnFailures.Inc()
		node.count(msg, actionFailed)
		return
	}

	node.send(announceTo, message.New(message.Announce, newID, node.id))
	node.successor = newID
	node.logger.Debug("node inserted", zap.Int("new_node", newID), zap.Int("announce_to", announceTo))
	node.count(msg, actionSpawn)
}

// announce hands every key the new node now covers to the successor. The
// keys circle the ring until the new node claims them.
func (node *Node) announce(msg message.Message) {
	if node.successor == message.Unset {
		node.count(msg, actionIgnore)
		return
	}
	newID := msg.Payload
	node.keys.Each(func(key int) {
		if key > newID {
			return
		}
		node.keys.Remove(key)
		node.send(node.successor, message.New(message.RedistKey, key, node.id))
	})
	node.count(msg, actionLocal)
}

func (node *Node) redistKey(msg message.Message) {
	if node.id > msg.Sender || msg.Payload > node.id {
		node.forward(msg)
		return
	}
	node.keys.Add(msg.Payload)
	node.count(msg, actionLocal)
}

func (node *Node) addKey(msg message.Message) {
	if node.id == message.Main {
		node.atMain(msg, func() { node.keys.Add(msg.Payload) })
		return
	}
	if msg.Payload > node.id {
		node.forward(msg)
		return
	}
	node.keys.Add(msg.Payload)
	node.count(msg, actionLocal)
}

func (node *Node) deleteKey(msg message.Message) {
	if node.id == message.Main {
		node.atMain(msg, func() { node.keys.Remove(msg.Payload) })
		return
	}
	if !node.keys.Contains(msg.Payload) {
		node.forward(msg)
		return
	}
	node.keys.Remove(msg.Payload)
	node.count(msg, actionLocal)
}

func (node *Node) dump(msg message.Message) {
	if node.id == message.Main {
		node.atMain(msg, node.emit)
		return
	}
	node.emit()
	node.forward(msg)
}

// atMain routes a lap message at MAIN. A command starts a lap unless MAIN
// is alone, and the lap ends when the message comes back to MAIN.
func (node *Node) atMain(msg message.Message, local func()) {
	switch msg.Sender {
	case message.External:
		if node.successor == message.Unset {
			local()
			node.count(msg, actionLocal)
			return
		}
		node.forward(msg.From(message.Main))
	case message.Main:
		local()
		node.count(msg, actionLocal)
	default:
		node.logger.Debug("ignore message from unexpected sender", zap.Stringer("msg", msg))
		node.count(msg, actionIgnore)
	}
}

func (node *Node) toggleDebug(msg message.Message) {
	on := msg.Payload != 0
	if node.debug != nil {
		node.debug.SetDebug(on)
	}
	node.logger.Info("debug toggled", zap.Bool("debug", on))
	node.count(msg, actionLocal)
}

func (node *Node) emit() {
	if node.output == nil {
		return
	}
	node.output.Emit(DumpRecord{
		ID:        node.id,
		Successor: node.successor,
		Keys:      node.keys.Keys(),
	})
}

func (node *Node) forward(msg message.Message) {
	node.send(node.successor, msg)
	node.count(msg, actionForward)
}

func (node *Node) send(to int, msg message.Message) {
	if err := node.fabric.Send(to, msg); err != nil {
		node.logger.Warn("send message", zap.Int("to", to), zap.Stringer("msg", msg), zap.Error(err))
		telemetry.SendFailures.WithLabelValues(msg.Command.String()).Inc()
	}
}

func (node *Node) count(msg message.Message, action string) {
	telemetry.MessagesHandled.WithLabelValues(msg.Command.String(), action).Inc()
}
