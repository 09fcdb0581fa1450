package message

import (
	"fmt"

	"github.com/JWilliamson45/chord/keyset"
)

const (
	// MaxNodes bounds the node id space to [0, MaxNodes).
	MaxNodes = 64
	// KeySpace bounds keys to [0, KeySpace).
	KeySpace = keyset.Capacity

	// Main is the bootstrap node. It is always present.
	Main = MaxNodes - 1
	// External marks messages produced by the command source. It is
	// never the id of a node.
	External = MaxNodes
	// Unset is the successor of a node that is alone in the ring.
	Unset = -1
)

type Command uint8

// zero is reserved
const (
	AddNode Command = iota + 1
	AddKey
	DeleteKey
	Dump
	Announce
	RedistKey
	ToggleDebug
)

func (cmd Command) String() string {
	switch cmd {
	case AddNode:
		return "add_node"
	case AddKey:
		return "add_key"
	case DeleteKey:
		return "delete_key"
	case Dump:
		return "dump"
	case Announce:
		return "announce"
	case RedistKey:
		return "redist_key"
	case ToggleDebug:
		return "toggle_debug"
	default:
		return "unknown"
	}
}

// Message is the unit exchanged between nodes. Payload is a node id or a
// key depending on Command.
type Message struct {
	Command Command
	Payload int
	Sender  int
}

func New(cmd Command, payload int, sender int) Message {
	return Message{
		Command: cmd,
		Payload: payload,
		Sender:  sender,
	}
}

// From returns a copy of msg carrying a different sender.
func (msg Message) From(sender int) Message {
	msg.Sender = sender
	return msg
}

func (msg Message) String() string {
	return fmt.Sprintf("%s<%d> from %d", msg.Command, msg.Payload, msg.Sender)
}

func ValidNode(id int) bool {
	return id >= 0 && id < MaxNodes
}
