package client

import "github.com/pkg/errors"

var (
	ErrRingFull    = errors.New("maximum number of nodes reached")
	ErrInvalidKey  = errors.New("invalid key")
	ErrKeyExists   = errors.New("key already exists")
	ErrNoSuchKey   = errors.New("key does not exist")
	ErrSpawnFailed = errors.New("node spawn failed")
	ErrInvalidNode = errors.New("invalid node id")
	ErrNodeExists  = errors.New("node already exists")
	ErrClosed      = errors.New("ring closed")
)
