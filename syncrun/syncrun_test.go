package syncrun

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunCancelsSiblings(t *testing.T) {
	var stopped int32
	done := make(chan struct{})
	go func() {
		Run(context.Background(), func(ctx context.Context) {
			time.Sleep(20 * time.Millisecond)
		}, func(ctx context.Context) {
			<-ctx.Done()
			atomic.StoreInt32(&stopped, 1)
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expect run to return")
	}
	if atomic.LoadInt32(&stopped) != 1 {
		t.Fatal("expect sibling cancelled")
	}
}

func TestFuncWithRandomStart(t *testing.T) {
	var count int32
	f := FuncWithRandomStart(func(ctx context.Context) bool {
		return atomic.AddInt32(&count, 1) < 3
	}, RandRestart(time.Millisecond, 5*time.Millisecond))

	f(context.Background())
	if atomic.LoadInt32(&count) != 3 {
		t.Fatal("expect three runs")
	}
}
