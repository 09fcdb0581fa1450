// Package prob runs one function on its own goroutine and lets the owner
// stop it and wait for it.
package prob

import (
	"context"
	"sync"

	"github.com/JWilliamson45/chord/richclose"
)

const (
	_EXPECT_STATE_INIT = 0
	_EXPECT_STATE_UP   = 1
	_EXPECT_STATE_DOWN = 2
)

type Prob struct {
	rw          sync.RWMutex
	cancel      func()
	expectState int32
	stopChan    chan struct{}
	runningChan chan struct{}
	f           func(ctx context.Context)
}

func New(f func(ctx context.Context)) *Prob {
	return &Prob{
		stopChan:    make(chan struct{}),
		runningChan: make(chan struct{}),
		f:           f,
	}
}

// Start launches the goroutine. It returns false if the prob was already
// started or stopped.
func (prob *Prob) Start() bool {
	prob.rw.Lock()
	defer prob.rw.Unlock()

	if prob.expectState != _EXPECT_STATE_INIT {
		return false
	}
	prob.expectState = _EXPECT_STATE_UP
	runCtx, cancel := context.WithCancel(context.Background())
	prob.cancel = cancel
	close(prob.runningChan)
	go prob.run(runCtx)
	return true
}

func (prob *Prob) run(ctx context.Context) {
	defer prob.didStopped()
	if prob.f != nil {
		prob.f(ctx)
	}
}

// Stop cancels the context of the running function. Stopping a prob that
// never started marks it stopped at once.
func (prob *Prob) Stop() {
	prob.rw.Lock()
	defer prob.rw.Unlock()

	switch prob.expectState {
	case _EXPECT_STATE_INIT:
		prob.expectState = _EXPECT_STATE_DOWN
		close(prob.stopChan)
	case _EXPECT_STATE_UP:
		prob.expectState = _EXPECT_STATE_DOWN
		if prob.cancel != nil {
			prob.cancel()
		}
	case _EXPECT_STATE_DOWN:
	}
}

func (prob *Prob) Stopped() <-chan struct{} {
	return prob.stopChan
}

func (prob *Prob) Running() <-chan struct{} {
	return prob.runningChan
}

func (prob *Prob) IsStopped() bool {
	select {
	case <-prob.stopChan:
		return true
	default:
		return false
	}
}

func (prob *Prob) IsRunning() bool {
	select {
	case <-prob.stopChan:
		return false
	case <-prob.runningChan:
		return true
	default:
		return false
	}
}

func (prob *Prob) didStopped() {
	prob.rw.Lock()
	defer prob.rw.Unlock()

	if prob.cancel != nil {
		prob.cancel()
		prob.cancel = nil
	}
	prob.expectState = _EXPECT_STATE_DOWN
	select {
	case <-prob.stopChan:
	default:
		close(prob.stopChan)
	}
}

func (prob *Prob) StopAndWait(ctx context.Context) error {
	prob.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-prob.Stopped():
		return nil
	}
}

// WrapCloser closes pb by stopping it and waiting for the function to return.
func WrapCloser(pb *Prob) richclose.WithContextCloser {
	return closer{pb}
}

type closer struct {
	pb *Prob
}

func (c closer) CloseWithContext(ctx context.Context) error {
	return c.pb.StopAndWait(ctx)
}
