package service

import (
	"github.com/cockroachdb/errors"

	"reclaim/domain/index"
	"reclaim/domain/registry"
	"reclaim/infra/logging"
)

type Config struct {
	// Backend selects the retired-address index.
	Backend index.Backend

	// BufferCapacity is the size of each thread's retirement ring. It must
	// be a power of two.
	BufferCapacity uint64

	// PressureThreshold is the pending-queue length at which forced drains
	// start signalling Pressure.
	PressureThreshold int

	// StallThreshold is the number of consecutive cycles without a
	// checkpoint after which a thread is reported as stalled.
	StallThreshold int
}

func DefaultConfig() Config {
	return Config{
		Backend:           index.BackendAVL,
		BufferCapacity:    1024,
		PressureThreshold: 4096,
		StallThreshold:    3,
	}
}

func (c Config) Validate() error {
	if c.BufferCapacity == 0 || c.BufferCapacity&(c.BufferCapacity-1) != 0 {
		return errors.Newf("service: buffer capacity %d is not a power of two", c.BufferCapacity)
	}
	if c.PressureThreshold <= 0 {
		return errors.Newf("service: pressure threshold %d must be positive", c.PressureThreshold)
	}
	if c.StallThreshold <= 0 {
		return errors.Newf("service: stall threshold %d must be positive", c.StallThreshold)
	}
	return nil
}

type Option func(*Reclaimer)

// WithJournal appends every cycle report to j.
func WithJournal(j Journal) Option {
	return func(r *Reclaimer) { r.journal = j }
}

func WithLogger(l *logging.Logger) Option {
	return func(r *Reclaimer) { r.log = l.Component("reclaimer") }
}

// WithRecordPool shares a thread record pool between reclaimers or lets a
// test inspect it. The pool's buffer capacity overrides Config's.
func WithRecordPool(p *registry.RecordPool) Option {
	return func(r *Reclaimer) { r.pool = p }
}
