package client

import (
	"context"
	"time"

	"github.com/JWilliamson45/chord/record"
	"golang.org/x/time/rate"
)

// Operation is one submission to the ring.
type Operation func(ctx context.Context) error

type DoMiddle interface {
	WrapDo(op Operation, name string) Operation
}

type limiterMiddle struct {
	limiter *rate.Limiter
	maxWait time.Duration
}

// LimiterMiddle throttles submissions. A zero maxWait waits as long as ctx
// allows.
func LimiterMiddle(limiter *rate.Limiter, maxWait time.Duration) DoMiddle {
	return limiterMiddle{limiter, maxWait}
}

func (lm limiterMiddle) WrapDo(op Operation, name string) Operation {
	return func(ctx context.Context) error {
		if lm.maxWait != 0 {
			var cancel func()
			ctx, cancel = context.WithTimeout(ctx, lm.maxWait)
			defer cancel()
		}
		if err := lm.limiter.Wait(ctx); err != nil {
			return err
		}
		return op(ctx)
	}
}

func NewRecorderMiddle(factory record.Factory) DoMiddle {
	return &recorderMiddle{
		factory: factory,
	}
}

type recorderMiddle struct {
	factory record.Factory
}

func (md *recorderMiddle) WrapDo(op Operation, name string) Operation {
	return func(ctx context.Context) error {
		return record.Do(ctx, md.factory, name, op)
	}
}
