package node

// Config is everything a new node starts from. Keys always start empty.
type Config struct {
	ID        int
	Successor int
}

// Handle controls a running node.
type Handle interface {
	Stop()
	Stopped() <-chan struct{}
}

// Spawner materializes a node as an independently scheduled unit. The
// node must be reachable through its mailbox when Spawn returns.
type Spawner interface {
	Spawn(cfg Config) (Handle, error)
}

type SpawnFunc func(cfg Config) (Handle, error)

func (f SpawnFunc) Spawn(cfg Config) (Handle, error) {
	return f(cfg)
}

// Debugger receives ToggleDebug.
type Debugger interface {
	SetDebug(on bool)
}
