package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"reclaim/api/grpcserver"
	"reclaim/config"
	"reclaim/infra/heap"
	"reclaim/infra/journal"
	"reclaim/infra/kafka"
	"reclaim/infra/scan"
	"reclaim/jobs/broadcaster"
	"reclaim/jobs/collector"
	"reclaim/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reclaimer, its background jobs and the admin API.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg config.Config) error {
	log := cfg.Logger()

	// ---------------- Heap + Scanner ----------------

	h := heap.New(cfg.Heap())
	scanner := scan.New(h, cfg.Scan())

	// ---------------- Journal ----------------

	var opts []service.Option
	opts = append(opts, service.WithLogger(log))

	var j *journal.Journal
	if cfg.JournalDir != "" {
		var err error
		j, err = journal.Open(cfg.Journal())
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, service.WithJournal(j))
	}

	// ---------------- Reclaimer ----------------

	svcCfg, err := cfg.Service()
	if err != nil {
		return err
	}
	r, err := service.New(svcCfg, h, scanner, opts...)
	if err != nil {
		return err
	}

	// ---------------- Publisher ----------------

	var bc *broadcaster.Broadcaster
	if j != nil && cfg.Publisher != config.PublisherNone {
		pub, err := newPublisher(cfg)
		if err != nil {
			return err
		}
		bc = broadcaster.New(j, pub, cfg.Broadcaster(), log)
		defer bc.Close()
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", cfg.GRPCAddr)
	}

	// ---------------- Background Jobs ----------------

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		collector.New(r, cfg.Collector(), log).Run(ctx)
		return nil
	})
	if bc != nil {
		g.Go(func() error {
			bc.Run(ctx)
			return nil
		})
	}

	for i := 0; i < cfg.Workers; i++ {
		w := newWorker(r, h, cfg.WorkerDelay, log)
		g.Go(func() error { return w.run(ctx) })
	}

	// ---------------- gRPC ----------------

	gs := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.UnaryLogger(log)))
	grpcserver.NewServer(r).Register(gs)

	g.Go(func() error {
		<-ctx.Done()
		gs.GracefulStop()
		return nil
	})
	g.Go(func() error {
		log.Info("reclaimd running",
			"addr", lis.Addr().String(),
			"instance", r.Instance(),
			"backend", svcCfg.Backend.String(),
			"publisher", cfg.Publisher,
		)
		return gs.Serve(lis)
	})

	err = g.Wait()
	log.Info("reclaimd stopped", "stats", r.Stats())
	return err
}

func newPublisher(cfg config.Config) (broadcaster.Publisher, error) {
	switch cfg.Publisher {
	case config.PublisherSarama:
		return broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
	case config.PublisherKafkaGo:
		p, err := kafka.NewProducer(kafka.DefaultConfig(cfg.Brokers, cfg.Topic))
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, errors.Newf("unknown publisher %q", cfg.Publisher)
	}
}
