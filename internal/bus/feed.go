package bus

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Feed is a push source of change signals. Listen blocks, calling onChange for
// every change it observes, until ctx is cancelled or the source disconnects.
type Feed interface {
	Listen(ctx context.Context, onChange func()) error
}

// Backoff bounds the reconnect delay of RunFeed.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

var DefaultBackoff = Backoff{Initial: time.Second, Max: time.Minute}

func (b Backoff) next(cur time.Duration) time.Duration {
	if cur <= 0 {
		return b.Initial
	}
	cur *= 2
	if cur > b.Max {
		return b.Max
	}
	return cur
}

// RunFeed keeps feed attached to the bus until ctx is done. A disconnect never
// propagates: it is logged, onDisconnect (if set) is called, and the feed is
// retried after a capped exponential delay. Meanwhile consumers rely on their
// periodic refresh.
func (b *Bus) RunFeed(ctx context.Context, name string, feed Feed, backoff Backoff, onDisconnect func()) {
	log := b.log.With(zap.String("feed", name))
	var delay time.Duration

	for {
		started := time.Now()
		err := feed.Listen(ctx, b.Publish)
		if ctx.Err() != nil {
			log.Info("change feed stopped")
			return
		}

		if onDisconnect != nil {
			onDisconnect()
		}
		// A feed that stayed up for a while earns a fresh backoff.
		if time.Since(started) > backoff.Max {
			delay = 0
		}
		delay = backoff.next(delay)
		log.Warn("change feed disconnected, falling back to periodic refresh",
			zap.Error(err), zap.Duration("retry_in", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("change feed stopped")
			return
		case <-timer.C:
		}
	}
}

// Retry calls fn until it succeeds or ctx is done, sleeping a capped
// exponential delay between attempts. onFailure, if set, sees each failure and
// the delay before the next attempt. It returns ctx.Err() when cancelled.
func Retry(ctx context.Context, backoff Backoff, fn func(ctx context.Context) error, onFailure func(err error, retryIn time.Duration)) error {
	var delay time.Duration
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay = backoff.next(delay)
		if onFailure != nil {
			onFailure(err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
