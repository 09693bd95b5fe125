package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gigadex/api/grpcserver"
	"gigadex/api/httpserver"
	"gigadex/config"
	"gigadex/infra/accountstore"
	"gigadex/infra/cache"
	"gigadex/infra/journal"
	"gigadex/infra/kafka"
	"gigadex/infra/logger"
	"gigadex/infra/metrics"
	"gigadex/infra/solrpc"
	"gigadex/jobs/broadcaster"
	"gigadex/jobs/ingest"
	"gigadex/jobs/refresher"
	"gigadex/service"
	"gigadex/snapshot"
)

func main() {
	path := flag.String("config", "", "YAML config file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("quoter exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := cfg.MarketKey()
	if err != nil {
		return err
	}

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ---------------- Storage ----------------

	store, err := accountstore.Open(cfg.Store.Dir)
	if err != nil {
		return err
	}
	defer store.Close()

	j, err := journal.Open(journal.Config{
		Dir:            cfg.Journal.Dir,
		SegmentSize:    cfg.Journal.SegmentSize,
		SyncEveryWrite: cfg.Journal.SyncEveryWrite,
	})
	if err != nil {
		return err
	}
	defer j.Close()

	// ---------------- Service ----------------

	fetcher := solrpc.New(cfg.RPC.Endpoint, cfg.RPC.Timeout)
	marketAcc, err := fetcher.Account(ctx, key)
	if err != nil {
		return fmt.Errorf("load market: %w", err)
	}

	svc, err := service.FromMarketAccount(key, marketAcc.Data, service.Deps{Log: log, Metrics: m, Journal: j})
	if err != nil {
		return err
	}
	if n, err := svc.Restore(store); err != nil {
		log.Warn("warm start skipped", zap.Error(err))
	} else if n > 0 {
		log.Info("warm start", zap.Int("accounts", n), zap.Bool("ready", svc.Ready()))
	}
	if n, err := store.Retain(svc.AccountsToUpdate()); err != nil {
		log.Warn("prune account store", zap.Error(err))
	} else if n > 0 {
		log.Info("pruned untracked accounts", zap.Int("accounts", n))
	}

	// ---------------- Background Jobs ----------------

	svc.StartSnapshotJob(ctx, &snapshot.Writer{Sink: store}, j, 30*time.Second)

	go refresher.New(fetcher, svc, cfg.RPC.Interval, log, m).Run(ctx)

	if cfg.Kafka.Enabled() && cfg.Kafka.AccountsTopic != "" {
		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.AccountsTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer consumer.Close()
		go ingest.New(consumer, svc, log, m).Run(ctx)
	}

	var (
		topCache    broadcaster.Cache
		httpOptions []httpserver.Option
	)
	if cfg.Redis.Enabled() {
		rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rc.Close()
		tc := cache.New(rc, cfg.Redis.TTL)
		topCache = tc
		httpOptions = append(httpOptions, httpserver.WithTopCache(tc, key.String()))
	}
	var producer sarama.SyncProducer
	if cfg.Kafka.Enabled() && cfg.Kafka.EventsTopic != "" {
		if producer, err = broadcaster.NewProducer(cfg.Kafka.Brokers); err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
	}
	if producer != nil || topCache != nil {
		bc := broadcaster.New(svc, producer, cfg.Kafka.EventsTopic, topCache, cfg.Broadcast.Interval, log)
		defer bc.Close()
		go bc.Run(ctx)
	}

	// ---------------- gRPC / HTTP ----------------

	api := grpcserver.NewServer(svc)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return err
	}
	gs := grpcserver.NewGRPCServer(log)
	grpcserver.Register(gs, api)

	hs := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpserver.NewRouter(api, svc, reg, log, httpOptions...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 2)
	go func() { errc <- gs.Serve(lis) }()
	go func() {
		if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	log.Info("quoter running",
		zap.Stringer("market", key),
		zap.String("grpc", cfg.GRPC.Addr),
		zap.String("http", cfg.HTTP.Addr),
	)

	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shutdown)
	gs.GracefulStop()
	log.Info("quoter stopped")
	return err
}
