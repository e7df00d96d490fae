package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BatchLocker serializes mutation per batch id. Every component that
// touches quantity or state must go through Acquire; the database row lock
// (FOR UPDATE on postgres) backs this up inside the transaction, but the
// in-process lock is what bounds the wait and keeps sqlite-backed tests
// honest.
type BatchLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]chan struct{}
}

// NewBatchLocker creates an empty lock table
func NewBatchLocker() *BatchLocker {
	return &BatchLocker{locks: make(map[uuid.UUID]chan struct{})}
}

func (l *BatchLocker) sem(id uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.locks[id]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[id] = sem
	}
	return sem
}

// Acquire takes the lock for one batch, waiting at most wait per attempt
// and retrying `retries` times with linear backoff. Exhaustion surfaces a
// transient error so the caller (or the client, with the same idempotency
// key) can retry safely.
func (l *BatchLocker) Acquire(ctx context.Context, id uuid.UUID, wait time.Duration, retries int) (func(), error) {
	sem := l.sem(id)
	for attempt := 0; ; attempt++ {
		timer := time.NewTimer(wait)
		select {
		case sem <- struct{}{}:
			timer.Stop()
			return func() { <-sem }, nil
		case <-ctx.Done():
			timer.Stop()
			return nil, Transientf("lock wait cancelled for batch %s: %v", id, ctx.Err())
		case <-timer.C:
		}
		if attempt >= retries {
			return nil, Transientf("could not lock batch %s after %d attempts", id, attempt+1)
		}
		backoff := time.Duration(attempt+1) * 50 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, Transientf("lock wait cancelled for batch %s: %v", id, ctx.Err())
		case <-time.After(backoff):
		}
	}
}

// AcquireAll locks a set of batches in a stable order so two steps
// touching overlapping lots cannot deadlock. On any failure everything
// already held is released.
func (l *BatchLocker) AcquireAll(ctx context.Context, ids []uuid.UUID, wait time.Duration, retries int) (func(), error) {
	ordered := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	releases := make([]func(), 0, len(ordered))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, id := range ordered {
		release, err := l.Acquire(ctx, id, wait, retries)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
