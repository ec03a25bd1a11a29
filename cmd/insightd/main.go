package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"insightd/internal/analyzer"
	"insightd/internal/collector"
	"insightd/internal/config"
	"insightd/internal/decision"
	"insightd/internal/delivery"
	"insightd/internal/engine"
	"insightd/internal/httpserver"
	"insightd/internal/repository"
	"insightd/pkg/circuitbreaker"
	"insightd/pkg/db"
	"insightd/pkg/logger"
	"insightd/pkg/mq"
	pkgredis "insightd/pkg/redis"
)

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting insightd...",
		zap.String("timezone", cfg.Timezone),
		zap.String("db_host", cfg.DB.Host),
		zap.Int("collectors", len(cfg.Collectors)),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()
	if err := repository.InitSchema(initCtx, dbConn); err != nil {
		log.Fatal("Failed to init schema", zap.Error(err))
	}
	log.Info("Database ready")

	// Repositories
	snapshotRepo := repository.NewSnapshotRepository(dbConn, log)
	insightRepo := repository.NewInsightRepository(dbConn, log)
	deliveryRepo := repository.NewDeliveryRepository(dbConn, log)
	reportSendRepo := repository.NewReportSendRepository(dbConn, log)

	// Redis is optional. Without it dedup falls back to the SQL path.
	var deduper *decision.Deduper
	if cfg.Redis.Addr != "" {
		rdb := pkgredis.NewClient(cfg.Redis)
		defer rdb.Close()
		deduper = decision.NewDeduper(rdb, deliveryRepo, cfg.Decision.Cooldown(), log)
		log.Info("Redis dedup cache enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		deduper = decision.NewDeduper(nil, deliveryRepo, cfg.Decision.Cooldown(), log)
		log.Info("Redis not configured, dedup uses the delivery store only")
	}

	// Delivery channel: AMQP when configured, log output otherwise.
	var channel delivery.Channel
	if cfg.MQ.URL != "" {
		publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer publisher.Close()
		channel = delivery.NewAMQPChannel(publisher, "")
		log.Info("AMQP delivery channel enabled", zap.String("exchange", cfg.MQ.Exchange))
	} else {
		channel = delivery.NewLogChannel(log)
		log.Info("MQ not configured, notifications go to the log")
	}

	// Decision engine
	budget := decision.NewBudgetManager(cfg.Decision, deliveryRepo, cfg.Location(), log)
	decisionEngine := decision.NewEngine(budget, deduper, log)

	// Delivery manager
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
	manager := delivery.NewManager(decisionEngine, channel, breaker, insightRepo, deliveryRepo, log)

	// Collectors
	registry := collector.NewRegistry()
	collectorTimeout := time.Duration(cfg.Engine.CollectorTimeoutSeconds) * time.Second
	for name, ccfg := range cfg.Collectors {
		if !ccfg.IsEnabled() || ccfg.URL == "" {
			continue
		}
		c := collector.NewHTTPCollector(name, ccfg.URL, collectorTimeout, log)
		if err := registry.Register(c); err != nil {
			log.Fatal("Failed to register collector", zap.String("collector", name), zap.Error(err))
		}
	}
	log.Info("Collectors registered", zap.Int("count", len(registry.All())))

	// Analyzers
	analyzers := []analyzer.Analyzer{
		analyzer.NewThresholdAnalyzer(cfg, log),
		analyzer.NewSustainedAnalyzer(cfg, log),
		analyzer.NewResourceTrendAnalyzer(cfg, snapshotRepo, log),
	}

	// Scheduled reports
	defs, err := delivery.BuildReportDefs(cfg)
	if err != nil {
		log.Fatal("Failed to build report definitions", zap.Error(err))
	}
	reporter := delivery.NewReporter(defs, registry, insightRepo, reportSendRepo, channel, cfg.Location(), collectorTimeout, log)

	// Engine loop
	eng := engine.New(cfg, registry, analyzers, snapshotRepo, manager, reporter, log)
	engineCtx, engineCancel := context.WithCancel(context.Background())
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run(engineCtx)
	}()

	// HTTP server (health checks and metrics)
	router := httpserver.NewRouter(dbConn)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.Engine,
	}
	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("insightd is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down insightd gracefully...")

	engineCancel()
	<-engineDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("insightd shutdown complete")
}
