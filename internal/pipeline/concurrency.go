package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// forEachBounded runs fn once per item in items, at most concurrency
// goroutines at a time, and returns the first error encountered. It is the
// shape every stage's fan-out reuses: a semaphore channel, a WaitGroup, and
// a sync.Once-guarded first-error capture, generalized from the teacher's
// processChunksParallel.
func forEachBounded(ctx context.Context, concurrency, n int, fn func(ctx context.Context, i int) error) error {
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, concurrency)
		firstErr error
		errOnce  sync.Once
	)

	setErr := func(err error) {
		errOnce.Do(func() {
			mu.Lock()
			firstErr = err
			mu.Unlock()
		})
	}

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			setErr(fmt.Errorf("context cancelled: %w", ctx.Err()))
		default:
		}

		mu.Lock()
		hasErr := firstErr != nil
		mu.Unlock()
		if hasErr {
			break
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				setErr(fmt.Errorf("context cancelled: %w", ctx.Err()))
				return
			}

			mu.Lock()
			hasErr := firstErr != nil
			mu.Unlock()
			if hasErr {
				return
			}

			if err := fn(ctx, idx); err != nil {
				setErr(err)
			}
		}(i)
	}

	wg.Wait()
	return firstErr
}

// raceFirstTrue launches probe(i) for every i in [0,n) concurrently (bounded
// by concurrency), cancelling the rest as soon as one reports true. It
// returns the winning index, or -1 if every probe reported false. This is
// the Phase A "first bucket whose comparison returns true" race (§4.5).
func raceFirstTrue(ctx context.Context, concurrency, n int, probe func(ctx context.Context, i int) (bool, error)) (int, error) {
	if n == 0 {
		return -1, nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		idx int
		ok  bool
		err error
	}

	results := make(chan result, n)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-raceCtx.Done():
				results <- result{idx: idx, err: raceCtx.Err()}
				return
			}

			ok, err := probe(raceCtx, idx)
			results <- result{idx: idx, ok: ok, err: err}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	winner := -1
	var firstErr error
	seen := 0
	for r := range results {
		seen++
		if r.err != nil {
			if firstErr == nil && r.err != context.Canceled {
				firstErr = r.err
			}
			continue
		}
		if r.ok && winner == -1 {
			winner = r.idx
			cancel()
		}
	}

	if winner == -1 && firstErr != nil {
		return -1, firstErr
	}
	return winner, nil
}
