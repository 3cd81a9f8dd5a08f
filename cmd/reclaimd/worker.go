package main

import (
	"context"
	"math/rand/v2"
	"time"

	"reclaim/domain/addr"
	"reclaim/infra/heap"
	"reclaim/infra/logging"
	"reclaim/service"
)

const workerSlots = 16

// worker is a synthetic thread: it keeps a few objects reachable from its
// stack and retires whatever it overwrites.
type worker struct {
	r     *service.Reclaimer
	h     *heap.Heap
	delay time.Duration
	stack addr.Range
	log   *logging.Logger
}

func newWorker(r *service.Reclaimer, h *heap.Heap, delay time.Duration, log *logging.Logger) *worker {
	return &worker{r: r, h: h, delay: delay, stack: h.Stack(workerSlots), log: log.Component("worker")}
}

func (w *worker) run(ctx context.Context) error {
	th := w.r.RegisterThread(w.stack)
	defer func() {
		if err := w.r.DeregisterThread(th); err != nil {
			w.log.WarnContext(ctx, "deregister failed", "thread", th.ID(), "error", err)
		}
	}()

	ticker := time.NewTicker(w.delay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		a, err := w.h.Allocate(uint64(16 + rand.IntN(8)*16))
		if err != nil {
			return err
		}
		slot := w.stack.Low + addr.Address(rand.IntN(workerSlots))*addr.WordSize
		old := w.h.Load(slot)
		w.h.Store(slot, uint64(a))
		if old != 0 {
			th.Retire(addr.Address(old))
		} else {
			th.Checkpoint()
		}
	}
}
