// Package main — cmd/frauddetect/main.go
//
// Fraud detection pipeline entrypoint.
//
// Wires Producer -> Buffer1 -> Consumer -> (Modelizer, Alarm) -> Buffer2
// -> Logger -> Storage, plus the operational surface: Prometheus
// metrics/health/stats over HTTP, an optional Unix-socket admin
// control plane, and an optional WebSocket live alert feed.
//
// Shutdown cascade (grounded on the original pipeline's exact
// ordering): SIGINT/SIGTERM or an admin "shutdown" command closes
// Buffer1 only. The Producer observes this on its next write and
// returns cleanly. The Consumer drains whatever remains in Buffer1,
// then its wrapper closes Buffer2 so the Logger drains and stops in
// turn. No stage is force-killed; the cascade always runs to
// completion.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fraudpipeline/core/internal/admin"
	"github.com/fraudpipeline/core/internal/alarm"
	"github.com/fraudpipeline/core/internal/buffer"
	"github.com/fraudpipeline/core/internal/config"
	"github.com/fraudpipeline/core/internal/consumer"
	"github.com/fraudpipeline/core/internal/domain"
	"github.com/fraudpipeline/core/internal/logger"
	"github.com/fraudpipeline/core/internal/model"
	"github.com/fraudpipeline/core/internal/modelizer"
	"github.com/fraudpipeline/core/internal/observability"
	"github.com/fraudpipeline/core/internal/producer"
	"github.com/fraudpipeline/core/internal/risk"
	"github.com/fraudpipeline/core/internal/storage"
	"github.com/fraudpipeline/core/internal/streaming"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "Path to config.yaml")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("frauddetect %s (commit=%s built=%s)\n", config.Version, config.GitCommit, config.BuildTime)
		os.Exit(0)
	}

	if path := os.Getenv("FRAUDDETECT_CONFIG"); path != "" {
		*configPath = path
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := buildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("frauddetect starting",
		zap.String("version", config.Version),
		zap.String("node_id", cfg.NodeID),
		zap.String("config", *configPath),
	)

	store, closeStore, err := openStorage(cfg.Storage)
	if err != nil {
		log.Fatal("storage open failed", zap.Error(err))
	}
	defer closeStore()

	modelFactory, err := model.Get(cfg.Model.Name)
	if err != nil {
		log.Fatal("model resolution failed", zap.Error(err))
	}
	var modelSeed *uint64
	if cfg.Model.Seed != 0 {
		modelSeed = &cfg.Model.Seed
	}
	mdl := modelFactory(modelSeed)
	mdlz := modelizer.New(mdl)

	baseAlarm, closeAlarm, err := openAlarm(cfg.Alarm, log)
	if err != nil {
		log.Fatal("alarm sink open failed", zap.Error(err))
	}
	defer closeAlarm()

	var hub *streaming.Hub
	streamStop := make(chan struct{})
	if cfg.Streaming.Enabled {
		hub = streaming.NewHub(log)
		go hub.Run(streamStop)
	}
	defer close(streamStop)

	sinks := []domain.Alarm{baseAlarm}
	if hub != nil {
		sinks = append(sinks, streaming.NewAlarmSink(hub))
	}
	fanoutAlarm := alarm.NewFanout(sinks...)

	var alarmSink domain.Alarm = fanoutAlarm
	if cfg.Alarm.ThrottleEnabled {
		throttled := alarm.NewThrottled(fanoutAlarm, int(cfg.Alarm.ThrottleCapacity), cfg.Alarm.ThrottleRefillPeriod)
		defer throttled.Close()
		alarmSink = throttled
	}

	var tracker *risk.Tracker
	if cfg.Risk.Enabled {
		thresholds := risk.Thresholds{
			Watched:    cfg.Risk.ThresholdWatched,
			Restricted: cfg.Risk.ThresholdRestricted,
			Blocked:    cfg.Risk.ThresholdBlocked,
		}
		tracker = risk.NewTracker(cfg.Risk.Alpha, thresholds, cfg.Risk.DecayAfter)
	}

	buf1 := buffer.NewConcurrent()
	buf2 := buffer.NewConcurrent2()

	prodCfg, err := buildProducerConfig(cfg.Producer)
	if err != nil {
		log.Fatal("producer config invalid", zap.Error(err))
	}
	consCfg, err := buildConsumerConfig(cfg.Consumer)
	if err != nil {
		log.Fatal("consumer config invalid", zap.Error(err))
	}
	logCfg, err := buildLoggerConfig(cfg.Logger)
	if err != nil {
		log.Fatal("logger config invalid", zap.Error(err))
	}

	prod := producer.New(*prodCfg, log)
	cons := consumer.New(*consCfg, log, tracker)
	lg := logger.New(*logCfg, log)

	p := newPipeline(mdl, mdlz, buf1, buf2)

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := metrics.ServeHTTP(ctx, cfg.Observability.MetricsAddr, p); err != nil {
			log.Error("observability server error", zap.Error(err))
		}
	}()
	log.Info("observability server started", zap.String("addr", cfg.Observability.MetricsAddr))

	if hub != nil {
		go func() {
			if err := serveStreaming(ctx, cfg.Streaming.Addr, hub); err != nil {
				log.Error("streaming server error", zap.Error(err))
			}
		}()
		log.Info("streaming server started", zap.String("addr", cfg.Streaming.Addr))
	}

	if cfg.Admin.Enabled {
		adminSrv := admin.NewServer(cfg.Admin.SocketPath, p, log)
		go func() {
			if err := adminSrv.ListenAndServe(ctx); err != nil {
				log.Error("admin server error", zap.Error(err))
			}
		}()
		log.Info("admin socket started", zap.String("path", cfg.Admin.SocketPath))
	}

	if tracker != nil {
		go runRiskSweeper(ctx, tracker, cfg.Risk.DecayAfter)
		log.Info("risk decay sweeper started", zap.Duration("decay_after", cfg.Risk.DecayAfter))
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		err := prod.Run(ctx, buf1)
		buf1.Close()
		if err != nil {
			log.Error("producer exited with error", zap.Error(err))
		}
	}()

	go func() {
		defer wg.Done()
		err := cons.Run(ctx, buf1, mdlz, alarmSink, buf2)
		buf2.Close()
		if err != nil {
			log.Error("consumer exited with error", zap.Error(err))
		}
	}()

	go func() {
		defer wg.Done()
		if err := lg.Run(ctx, buf2, store); err != nil {
			log.Error("logger exited with error", zap.Error(err))
		}
	}()

	pipelineDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(pipelineDone)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		buf1.Close()
		<-pipelineDone
	case <-p.shutdownRequested:
		log.Info("admin shutdown requested")
		buf1.Close()
		<-pipelineDone
	case <-pipelineDone:
	}

	cancel()
	log.Info("frauddetect shutdown complete")
}

// buildLogger constructs a zap.Logger with the given level and format.
func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return zcfg.Build()
}

func buildProducerConfig(cfg config.ProducerConfig) (*producer.Config, error) {
	pc, err := producer.NewConfig(int(cfg.N1Max))
	if err != nil {
		return nil, err
	}
	pc.WithPollInterval(time.Duration(cfg.PollIntervalMillis) * time.Millisecond)
	if cfg.Seed != 0 {
		pc.WithSeed(cfg.Seed)
	}
	return pc, nil
}

func buildConsumerConfig(cfg config.ConsumerConfig) (*consumer.Config, error) {
	cc, err := consumer.NewConfig(int(cfg.N2Max))
	if err != nil {
		return nil, err
	}
	cc.WithSpeed(time.Duration(cfg.PollIntervalMillis) * time.Millisecond)
	if cfg.Seed != 0 {
		cc.WithSeed(cfg.Seed)
	}
	return cc, nil
}

func buildLoggerConfig(cfg config.LoggerConfig) (*logger.Config, error) {
	lc, err := logger.NewConfig(int(cfg.N3Max))
	if err != nil {
		return nil, err
	}
	lc.WithPollInterval(time.Duration(cfg.PollIntervalMillis) * time.Millisecond)
	if cfg.Seed != 0 {
		lc.WithSeed(cfg.Seed)
	}
	return lc, nil
}

func openStorage(cfg config.StorageConfig) (domain.Storage, func(), error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemory(cfg.Capacity), func() {}, nil
	case "discard":
		return storage.NewDiscard(), func() {}, nil
	case "bolt":
		b, err := storage.OpenBolt(cfg.Path, cfg.RetentionDays)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	case "sqlite":
		s, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		pg, err := storage.OpenPostgres(cfg.ConnString)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func openAlarm(cfg config.AlarmConfig, log *zap.Logger) (domain.Alarm, func(), error) {
	switch cfg.Sink {
	case "redis":
		r, err := alarm.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannel)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	case "log":
		return alarm.NewLog(log), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown alarm sink %q", cfg.Sink)
	}
}

// runRiskSweeper periodically decays idle accounts in tracker. It
// polls at 1/5th of decayAfter (floored at one second) so an account
// that goes quiet is demoted within a handful of sweeps rather than
// sitting at its escalated state indefinitely (BLOCKED accounts never
// decay). Returns when ctx is cancelled.
func runRiskSweeper(ctx context.Context, tracker *risk.Tracker, decayAfter time.Duration) {
	interval := decayAfter / 5
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			tracker.Sweep(now)
		}
	}
}

// serveStreaming exposes the WebSocket alert feed on addr at /ws.
// Blocks until ctx is cancelled.
func serveStreaming(ctx context.Context, addr string, hub *streaming.Hub) error {
	r := mux.NewRouter()
	r.HandleFunc("/ws", hub.HandleWebSocket)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("streaming server on %s: %w", addr, err)
	}
	return nil
}

// pipeline exposes the running pipeline's status and a cooperative
// shutdown hook to both the admin socket and the observability /stats
// endpoint, without the admin/observability packages needing to know
// about the producer/consumer/logger/buffer types directly.
type pipeline struct {
	model interface {
		Name() string
		ActiveVersion() string
	}
	modelizer interface {
		SwitchVersion(domain.ModelVersion) error
	}
	buf1 interface{ Len() int }
	buf2 interface{ Len() int }

	shutdownOnce      sync.Once
	shutdownRequested chan struct{}
}

func newPipeline(
	mdl domain.Model,
	mdlz *modelizer.Modelizer,
	buf1 *buffer.Concurrent,
	buf2 *buffer.Concurrent2,
) *pipeline {
	return &pipeline{
		model:             mdl,
		modelizer:         mdlz,
		buf1:              buf1,
		buf2:              buf2,
		shutdownRequested: make(chan struct{}),
	}
}

func (p *pipeline) SwitchModelVersion(version domain.ModelVersion) error {
	return p.modelizer.SwitchVersion(version)
}

func (p *pipeline) Status() admin.Status {
	return admin.Status{
		ModelVersion: p.model.ActiveVersion(),
		ModelName:    p.model.Name(),
		Buffer1Depth: p.buf1.Len(),
		Buffer2Depth: p.buf2.Len(),
	}
}

func (p *pipeline) Shutdown() {
	p.shutdownOnce.Do(func() { close(p.shutdownRequested) })
}

func (p *pipeline) Stats() map[string]any {
	return map[string]any{
		"model_version": p.model.ActiveVersion(),
		"model_name":    p.model.Name(),
		"buffer1_depth": p.buf1.Len(),
		"buffer2_depth": p.buf2.Len(),
	}
}
