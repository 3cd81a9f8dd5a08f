// Package config loads reclaimd settings from RECLAIM_* environment
// variables, optionally seeded from .env files.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"reclaim/domain/addr"
	"reclaim/domain/index"
	"reclaim/infra/heap"
	"reclaim/infra/journal"
	"reclaim/infra/logging"
	"reclaim/infra/scan"
	"reclaim/jobs/broadcaster"
	"reclaim/jobs/collector"
	"reclaim/service"
)

const (
	PublisherNone    = "none"
	PublisherKafkaGo = "kafka-go"
	PublisherSarama  = "sarama"
)

type Config struct {
	LogLevel  string
	LogFormat string // text or json

	Backend           string
	BufferCapacity    uint64
	PressureThreshold int
	StallThreshold    int

	CollectInterval time.Duration
	PressureRate    float64

	ScanWorkers       int
	ScanMaxRangeWords int

	HeapBase uint64

	JournalDir  string
	JournalSync bool

	Publisher         string
	Brokers           []string
	Topic             string
	BroadcastInterval time.Duration
	MaxRetries        uint32

	GRPCAddr string

	// Workers runs synthetic retiring threads against the in-process heap.
	Workers     int
	WorkerDelay time.Duration
}

func Default() Config {
	svc := service.DefaultConfig()
	return Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Backend:           svc.Backend.String(),
		BufferCapacity:    svc.BufferCapacity,
		PressureThreshold: svc.PressureThreshold,
		StallThreshold:    svc.StallThreshold,
		CollectInterval:   time.Second,
		PressureRate:      10,
		ScanWorkers:       4,
		ScanMaxRangeWords: 512,
		HeapBase:          0x10000,
		JournalSync:       true,
		Publisher:         PublisherNone,
		Topic:             "reclaim.cycles",
		BroadcastInterval: 250 * time.Millisecond,
		MaxRetries:        5,
		GRPCAddr:          ":50051",
		WorkerDelay:       time.Millisecond,
	}
}

// Load reads envFiles into the process environment, without overriding
// variables that are already set, and parses the RECLAIM_* variables
// over the defaults.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			return Config{}, errors.Wrapf(err, "config: load %s", f)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv parses configuration from lookup.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.strVar("RECLAIM_LOG_LEVEL", &cfg.LogLevel)
	p.strVar("RECLAIM_LOG_FORMAT", &cfg.LogFormat)
	p.strVar("RECLAIM_BACKEND", &cfg.Backend)
	p.uintVar("RECLAIM_BUFFER_CAPACITY", &cfg.BufferCapacity)
	p.intVar("RECLAIM_PRESSURE_THRESHOLD", &cfg.PressureThreshold)
	p.intVar("RECLAIM_STALL_THRESHOLD", &cfg.StallThreshold)
	p.durationVar("RECLAIM_COLLECT_INTERVAL", &cfg.CollectInterval)
	p.floatVar("RECLAIM_PRESSURE_RATE", &cfg.PressureRate)
	p.intVar("RECLAIM_SCAN_WORKERS", &cfg.ScanWorkers)
	p.intVar("RECLAIM_SCAN_MAX_RANGE_WORDS", &cfg.ScanMaxRangeWords)
	p.uintVar("RECLAIM_HEAP_BASE", &cfg.HeapBase)
	p.strVar("RECLAIM_JOURNAL_DIR", &cfg.JournalDir)
	p.boolVar("RECLAIM_JOURNAL_SYNC", &cfg.JournalSync)
	p.strVar("RECLAIM_PUBLISHER", &cfg.Publisher)
	p.listVar("RECLAIM_KAFKA_BROKERS", &cfg.Brokers)
	p.strVar("RECLAIM_KAFKA_TOPIC", &cfg.Topic)
	p.durationVar("RECLAIM_BROADCAST_INTERVAL", &cfg.BroadcastInterval)
	retries := uint64(cfg.MaxRetries)
	p.uintVar("RECLAIM_MAX_RETRIES", &retries)
	cfg.MaxRetries = uint32(retries)
	p.strVar("RECLAIM_GRPC_ADDR", &cfg.GRPCAddr)
	p.intVar("RECLAIM_WORKERS", &cfg.Workers)
	p.durationVar("RECLAIM_WORKER_DELAY", &cfg.WorkerDelay)

	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, err := index.ParseBackend(c.Backend); err != nil {
		return errors.Wrap(err, "config")
	}
	if _, err := c.Service(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "config: log level %q", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.Newf("config: log format %q must be text or json", c.LogFormat)
	}
	if c.CollectInterval <= 0 {
		return errors.New("config: collect interval must be positive")
	}
	switch c.Publisher {
	case PublisherNone:
	case PublisherKafkaGo, PublisherSarama:
		if len(c.Brokers) == 0 {
			return errors.Newf("config: publisher %s needs RECLAIM_KAFKA_BROKERS", c.Publisher)
		}
		if c.JournalDir == "" {
			return errors.Newf("config: publisher %s needs RECLAIM_JOURNAL_DIR", c.Publisher)
		}
	default:
		return errors.Newf("config: unknown publisher %q", c.Publisher)
	}
	return nil
}

// Service returns the reclaimer configuration.
func (c Config) Service() (service.Config, error) {
	b, err := index.ParseBackend(c.Backend)
	if err != nil {
		return service.Config{}, errors.Wrap(err, "config")
	}
	cfg := service.Config{
		Backend:           b,
		BufferCapacity:    c.BufferCapacity,
		PressureThreshold: c.PressureThreshold,
		StallThreshold:    c.StallThreshold,
	}
	return cfg, errors.Wrap(cfg.Validate(), "config")
}

func (c Config) Scan() scan.Config {
	return scan.Config{Workers: c.ScanWorkers, MaxRangeWords: c.ScanMaxRangeWords}
}

func (c Config) Heap() heap.Config {
	cfg := heap.DefaultConfig()
	cfg.Base = addr.Address(c.HeapBase)
	return cfg
}

func (c Config) Journal() journal.Config {
	return journal.Config{Dir: c.JournalDir, Sync: c.JournalSync}
}

func (c Config) Collector() collector.Config {
	return collector.Config{
		Interval:      c.CollectInterval,
		PressureRate:  rate.Limit(c.PressureRate),
		PressureBurst: 1,
	}
}

func (c Config) Broadcaster() broadcaster.Config {
	return broadcaster.Config{Interval: c.BroadcastInterval, MaxRetries: c.MaxRetries}
}

// Logger builds the process logger on stderr.
func (c Config) Logger() *logging.Logger {
	level, _ := logging.ParseLevel(c.LogLevel)
	if c.LogFormat == "json" {
		return logging.NewJSON(os.Stderr, level)
	}
	return logging.NewText(os.Stderr, level)
}

type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(key)
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

func (p *parser) fail(key, v string, err error) {
	p.err = errors.Wrapf(err, "config: %s=%q", key, v)
}

func (p *parser) strVar(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) listVar(key string, dst *[]string) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func (p *parser) intVar(key string, dst *int) {
	if v, ok := p.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (p *parser) uintVar(key string, dst *uint64) {
	if v, ok := p.get(key); ok {
		n, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (p *parser) floatVar(key string, dst *float64) {
	if v, ok := p.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (p *parser) boolVar(key string, dst *bool) {
	if v, ok := p.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (p *parser) durationVar(key string, dst *time.Duration) {
	if v, ok := p.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.fail(key, v, err)
			return
		}
		*dst = d
	}
}
