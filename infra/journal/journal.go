package journal

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

const (
	keyPrefix = "cycle/"
	keyUpper  = "cycle/~"
)

var ErrNotFound = errors.New("journal: cycle not found")

type Config struct {
	Dir string

	// Sync makes every write durable before it returns.
	Sync bool
}

func DefaultConfig(dir string) Config {
	return Config{Dir: dir, Sync: true}
}

// Journal is a pebble-backed outbox of cycle reports. The reclaimer appends
// to it; the broadcaster moves entries through SENT and ACKED.
type Journal struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

func Open(cfg Config) (*Journal, error) {
	if cfg.Dir == "" {
		return nil, errors.New("journal: empty directory")
	}
	db, err := pebble.Open(cfg.Dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "journal: open %s", cfg.Dir)
	}
	opts := pebble.NoSync
	if cfg.Sync {
		opts = pebble.Sync
	}
	return &Journal{db: db, writeOpts: opts}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append records a new cycle in state NEW.
func (j *Journal) Append(e Entry) error {
	e.State = StateNew
	e.Retries = 0
	e.LastAttempt = 0
	return errors.Wrapf(j.db.Set(keyFor(e.Cycle), encodeEntry(e), j.writeOpts),
		"journal: append cycle %d", e.Cycle)
}

// UpdateState moves a cycle to state after a send, ack or failure.
func (j *Journal) UpdateState(cycle uint64, state State, retries uint32) error {
	e, err := j.Get(cycle)
	if err != nil {
		return err
	}
	e.State = state
	e.Retries = retries
	e.LastAttempt = time.Now().UnixNano()
	return errors.Wrapf(j.db.Set(keyFor(cycle), encodeEntry(e), j.writeOpts),
		"journal: update cycle %d", cycle)
}

func (j *Journal) Get(cycle uint64) (Entry, error) {
	val, closer, err := j.db.Get(keyFor(cycle))
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, errors.Wrapf(ErrNotFound, "cycle %d", cycle)
	}
	if err != nil {
		return Entry{}, errors.Wrapf(err, "journal: get cycle %d", cycle)
	}
	defer closer.Close()
	return decodeEntry(val)
}

// Delete removes one cycle.
func (j *Journal) Delete(cycle uint64) error {
	return errors.Wrapf(j.db.Delete(keyFor(cycle), j.writeOpts), "journal: delete cycle %d", cycle)
}

// Prune removes every ACKED cycle below before in one batch and returns
// how many it removed. Entries in any other state are left alone.
func (j *Journal) Prune(before uint64) (int, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: keyFor(before),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	batch := j.db.NewBatch()
	defer batch.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		e, err := decodeEntry(iter.Value())
		if err != nil {
			return 0, errors.Wrapf(err, "key %s", iter.Key())
		}
		if e.State != StateAcked {
			continue
		}
		if err := batch.Delete(iter.Key(), nil); err != nil {
			return 0, err
		}
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, errors.Wrapf(batch.Commit(j.writeOpts), "journal: prune below %d", before)
}

// ScanByState calls fn for every entry in one of states, in cycle order.
func (j *Journal) ScanByState(fn func(Entry) error, states ...State) error {
	return j.scan(func(e Entry) error {
		if !slices.Contains(states, e.State) {
			return nil
		}
		return fn(e)
	})
}

// Last returns the highest journaled cycle number, or 0 if the journal is
// empty.
func (j *Journal) Last() (uint64, error) {
	iter, err := j.newIter()
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

func (j *Journal) scan(fn func(Entry) error) error {
	iter, err := j.newIter()
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		e, err := decodeEntry(iter.Value())
		if err != nil {
			return errors.Wrapf(err, "key %s", iter.Key())
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (j *Journal) newIter() (*pebble.Iterator, error) {
	return j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
}

func keyFor(cycle uint64) []byte {
	return []byte(fmt.Sprintf(keyPrefix+"%020d", cycle))
}

func parseKey(b []byte) (uint64, error) {
	id, err := strconv.ParseUint(string(bytes.TrimPrefix(b, []byte(keyPrefix))), 10, 64)
	return id, errors.Wrapf(err, "journal: bad key %q", b)
}
