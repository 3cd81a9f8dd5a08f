// Package collector drives reclamation cycles from a fixed-interval ticker
// and from the reclaimer's pressure signal.
package collector

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"reclaim/infra/logging"
	"reclaim/service"
)

// Reclaimer is the part of service.Reclaimer the collector drives.
type Reclaimer interface {
	Collect(ctx context.Context) (service.CycleReport, error)
	Pressure() <-chan struct{}
}

type Config struct {
	Interval time.Duration
	// PressureRate limits how many extra cycles per second pressure may
	// trigger; PressureBurst is the bucket size.
	PressureRate  rate.Limit
	PressureBurst int
}

func DefaultConfig() Config {
	return Config{
		Interval:      time.Second,
		PressureRate:  rate.Limit(10),
		PressureBurst: 1,
	}
}

type Collector struct {
	r       Reclaimer
	cfg     Config
	limiter *rate.Limiter
	log     *logging.Logger
}

func New(r Reclaimer, cfg Config, log *logging.Logger) *Collector {
	if log == nil {
		log = logging.Noop()
	}
	return &Collector{
		r:       r,
		cfg:     cfg,
		limiter: rate.NewLimiter(cfg.PressureRate, cfg.PressureBurst),
		log:     log.Component("collector"),
	}
}

// Run collects every Interval, and early when pressure is signalled and
// the limiter allows it, until ctx is done.
func (c *Collector) Run(ctx context.Context) {
	c.log.InfoContext(ctx, "started", "interval", c.cfg.Interval)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.InfoContext(ctx, "stopped")
			return
		case <-ticker.C:
			c.collect(ctx, "interval")
		case <-c.r.Pressure():
			if !c.limiter.Allow() {
				c.log.DebugContext(ctx, "pressure cycle throttled")
				continue
			}
			c.collect(ctx, "pressure")
		}
	}
}

func (c *Collector) collect(ctx context.Context, trigger string) {
	// Errors are already logged by the reclaimer with the cycle report.
	if _, err := c.r.Collect(ctx); err != nil && ctx.Err() == nil {
		c.log.DebugContext(ctx, "cycle returned error", "trigger", trigger, "error", err)
	}
}
