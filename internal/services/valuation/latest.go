package valuation

import (
	"context"
	"sync"
)

// switchLatest runs compute for every kick and delivers only results that are
// still the newest when they finish. A kick cancels the computation in flight,
// and anything it returns afterwards is discarded. The output holds at most one
// undelivered result, which is replaced by newer ones. The channel is closed
// after ctx is done and every computation has returned.
func switchLatest[T any](ctx context.Context, kicks <-chan struct{}, compute func(ctx context.Context, seq uint64) T) <-chan T {
	out := make(chan T, 1)

	var (
		mu     sync.Mutex
		seq    uint64
		cancel context.CancelFunc = func() {}
		wg     sync.WaitGroup
	)

	run := func(cctx context.Context, gen uint64) {
		defer wg.Done()
		v := compute(cctx, gen)

		mu.Lock()
		defer mu.Unlock()
		if gen != seq || cctx.Err() != nil {
			return
		}
		select {
		case <-out:
		default:
		}
		out <- v
	}

	go func() {
		defer func() {
			mu.Lock()
			cancel()
			mu.Unlock()
			wg.Wait()
			close(out)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-kicks:
				if !ok {
					return
				}
				mu.Lock()
				cancel()
				seq++
				gen := seq
				var cctx context.Context
				cctx, cancel = context.WithCancel(ctx)
				mu.Unlock()

				wg.Add(1)
				go run(cctx, gen)
			}
		}
	}()

	return out
}

// kicker coalesces triggers from several sources into one channel.
type kicker struct {
	ch chan struct{}
}

func newKicker() *kicker {
	return &kicker{ch: make(chan struct{}, 1)}
}

func (k *kicker) kick() {
	select {
	case k.ch <- struct{}{}:
	default:
	}
}

// follow kicks on every value of in and calls done once in is closed.
func follow[T any](k *kicker, in <-chan T, done func()) {
	go func() {
		for range in {
			k.kick()
		}
		done()
	}()
}
