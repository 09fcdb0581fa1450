package prob

import (
	"context"
	"time"
)

func ExampleProb() {
	pb := New(func(ctx context.Context) {
		// serve a mailbox until cancelled
		select {
		case <-ctx.Done():
		case <-time.After(time.Minute):
		}
	})

	pb.Start()

	// stop cancels the context
	pb.Stop()

	<-pb.Stopped()
}
