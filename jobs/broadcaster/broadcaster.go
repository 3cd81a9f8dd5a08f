package broadcaster

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"reclaim/infra/journal"
	"reclaim/infra/logging"
)

// Publisher delivers one message to the sink.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// Source is the outbox the broadcaster drains. Acknowledged entries are
// removed from it, except the newest cycle, which Last must keep
// reporting so a restarted reclaimer resumes numbering after it.
type Source interface {
	ScanByState(fn func(journal.Entry) error, states ...journal.State) error
	UpdateState(cycle uint64, state journal.State, retries uint32) error
	Delete(cycle uint64) error
	Prune(before uint64) (int, error)
	Last() (uint64, error)
}

type Config struct {
	Interval time.Duration
	// MaxRetries is how many failed publishes move an entry to FAILED.
	MaxRetries uint32
}

func DefaultConfig() Config {
	return Config{Interval: 250 * time.Millisecond, MaxRetries: 5}
}

type Broadcaster struct {
	src Source
	pub Publisher
	cfg Config
	log *logging.Logger
}

func New(src Source, pub Publisher, cfg Config, log *logging.Logger) *Broadcaster {
	if log == nil {
		log = logging.Noop()
	}
	return &Broadcaster{
		src: src,
		pub: pub,
		cfg: cfg,
		log: log.Component("broadcaster"),
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run replays the outbox every Interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.InfoContext(ctx, "started", "interval", b.cfg.Interval)

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.InfoContext(ctx, "stopped")
			return
		case <-ticker.C:
			if _, err := b.ReplayOnce(ctx); err != nil {
				b.log.ErrorContext(ctx, "replay failed", "error", err)
			}
		}
	}
}

// ------------------------------------------------
// REPLAY
// ------------------------------------------------

// ReplayOnce publishes every NEW entry, and every SENT entry left behind
// by a crash between send and ack, in cycle order. Acknowledged entries
// below the newest cycle are deleted. It returns how many were
// acknowledged.
func (b *Broadcaster) ReplayOnce(ctx context.Context) (int, error) {
	last, err := b.src.Last()
	if err != nil {
		return 0, errors.Wrap(err, "broadcaster: last cycle")
	}

	var todo []journal.Entry
	err = b.src.ScanByState(func(e journal.Entry) error {
		todo = append(todo, e)
		return nil
	}, journal.StateSent, journal.StateNew)
	if err != nil {
		return 0, errors.Wrap(err, "broadcaster: scan outbox")
	}

	acked := 0
	for _, e := range todo {
		if ctx.Err() != nil {
			return acked, ctx.Err()
		}
		ok, err := b.publish(ctx, e, last)
		if err != nil {
			return acked, err
		}
		if ok {
			acked++
		}
	}

	// The entry that was newest on an earlier pass stays ACKED until a
	// later cycle overtakes it.
	pruned, err := b.src.Prune(last)
	if err != nil {
		return acked, errors.Wrapf(err, "broadcaster: prune below cycle %d", last)
	}
	if pruned > 0 {
		b.log.DebugContext(ctx, "pruned outbox", "entries", pruned, "below", last)
	}
	return acked, nil
}

func (b *Broadcaster) publish(ctx context.Context, e journal.Entry, last uint64) (bool, error) {
	key, value, err := Encode(e)
	if err != nil {
		return false, errors.Wrapf(err, "broadcaster: encode cycle %d", e.Cycle)
	}

	// Mark SENT first so a crash mid-publish is retried, not lost.
	if err := b.src.UpdateState(e.Cycle, journal.StateSent, e.Retries); err != nil {
		return false, err
	}

	if err := b.pub.Publish(ctx, key, value); err != nil {
		b.log.LogPublish(ctx, e.Cycle, err)
		retries := e.Retries + 1
		state := journal.StateNew
		if retries >= b.cfg.MaxRetries {
			state = journal.StateFailed
		}
		return false, b.src.UpdateState(e.Cycle, state, retries)
	}

	b.log.LogPublish(ctx, e.Cycle, nil)
	if e.Cycle < last {
		return true, b.src.Delete(e.Cycle)
	}
	return true, b.src.UpdateState(e.Cycle, journal.StateAcked, e.Retries)
}

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
