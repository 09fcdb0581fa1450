package ring

import (
	"context"

	"github.com/JWilliamson45/chord/node"
	"github.com/JWilliamson45/chord/syncrun/prob"
	"github.com/pkg/errors"
)

// Launcher runs a node loop as an independent unit.
type Launcher interface {
	Launch(id int, run func(ctx context.Context)) (node.Handle, error)
}

type LaunchFunc func(id int, run func(ctx context.Context)) (node.Handle, error)

func (f LaunchFunc) Launch(id int, run func(ctx context.Context)) (node.Handle, error) {
	return f(id, run)
}

// ProbLauncher gives every node its own goroutine.
type ProbLauncher struct{}

func (ProbLauncher) Launch(id int, run func(ctx context.Context)) (node.Handle, error) {
	pb := prob.New(run)
	if !pb.Start() {
		return nil, errors.Errorf("start node %d", id)
	}
	return pb, nil
}
