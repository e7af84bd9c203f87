package worker

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// SharedPool is the single bounded-concurrency resource spec §5 requires:
// "A bounded worker pool of configurable size (WHISPER_PARALLEL, default 3)
// is shared by the ASR orchestrator and Gap Repair Engine." It generalizes
// the teacher's buffered-channel semaphore (internal/limiter/cpu.go) into a
// weighted semaphore (golang.org/x/sync/semaphore, already a pack
// dependency via alnah-go-transcript's golang.org/x/sync) so callers from
// either component acquire the same slots.
type SharedPool struct {
	sem *semaphore.Weighted
	n   int64
}

func NewSharedPool(size int) *SharedPool {
	if size <= 0 {
		size = 1
	}
	return &SharedPool{sem: semaphore.NewWeighted(int64(size)), n: int64(size)}
}

// Acquire blocks for one slot until ctx is done.
func (p *SharedPool) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

func (p *SharedPool) Release() {
	p.sem.Release(1)
}

// Do runs fn while holding one slot, releasing it when fn returns. If ctx
// is done before a slot is free, fn is not run and ctx's error is returned.
func (p *SharedPool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()
	return fn(ctx)
}

func (p *SharedPool) Size() int {
	return int(p.n)
}
