package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Application
	"github.com/dreschagin/risk-dashboard/internal/application/port"
	"github.com/dreschagin/risk-dashboard/internal/application/usecase"

	// Domain
	"github.com/dreschagin/risk-dashboard/internal/domain/service"

	// Infrastructure
	"github.com/dreschagin/risk-dashboard/internal/infrastructure/analytics"
	redisCache "github.com/dreschagin/risk-dashboard/internal/infrastructure/cache/redis"
	"github.com/dreschagin/risk-dashboard/internal/infrastructure/discovery"
	k8sDiscovery "github.com/dreschagin/risk-dashboard/internal/infrastructure/discovery/k8s"
	natsInfra "github.com/dreschagin/risk-dashboard/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/risk-dashboard/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/risk-dashboard/internal/infrastructure/observability/cloudwatch"
	"github.com/dreschagin/risk-dashboard/internal/infrastructure/observability/metrics"

	// Interfaces
	httpInterface "github.com/dreschagin/risk-dashboard/internal/interfaces/http"
	"github.com/dreschagin/risk-dashboard/internal/interfaces/http/handler"
	"github.com/dreschagin/risk-dashboard/internal/interfaces/http/middleware"

	// Shared
	"github.com/dreschagin/risk-dashboard/pkg/config"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

func main() {
	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализируем logger
	log := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	log.Info("Starting Risk Dashboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Метрики Prometheus
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	// 4. Поиск backend сервисов аналитики
	var resolver discovery.Resolver
	if cfg.Discovery.Enabled {
		resolver, err = k8sDiscovery.NewInClusterResolver(
			cfg.Discovery.Namespace,
			cfg.Discovery.RCASelector,
			cfg.Discovery.UEBASelector,
		)
		if err != nil {
			log.Error("Failed to initialize kubernetes discovery", err)
			os.Exit(1)
		}
		log.Info("Kubernetes discovery enabled", "namespace", cfg.Discovery.Namespace)
	} else {
		resolver, err = discovery.NewStaticResolver(cfg.Analytics.RCABaseURL, cfg.Analytics.UEBABaseURL)
		if err != nil {
			log.Error("Invalid analytics base URL", err)
			os.Exit(1)
		}
	}

	refreshInterval := time.Duration(0)
	if cfg.Discovery.Enabled {
		refreshInterval = cfg.Discovery.RefreshInterval
	}
	endpoints := discovery.NewManager(resolver, refreshInterval)
	endpoints.SetObserver(appMetrics.RecordDiscovery)

	// Ошибка первого поиска не фатальна: readiness вернет 503 до успешного обновления
	initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := endpoints.Refresh(initCtx); err != nil {
		log.Error("Initial discovery failed", err)
	}
	initCancel()
	go endpoints.Start(ctx, log)

	// 5. Dependency Injection - Infrastructure Layer

	var clientOpts []analytics.Option

	var cache port.Cache
	if cfg.Cache.Enabled {
		rc, err := redisCache.NewRedisCache(ctx, redisCache.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      cfg.Cache.TTL,
			PoolSize: cfg.Cache.PoolSize,
		})
		if err != nil {
			log.Error("Failed to connect to redis, cache disabled", err)
		} else {
			cache = rc
			clientOpts = append(clientOpts, analytics.WithCache(rc))
			log.Info("Redis cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL.String())
		}
	}

	client := analytics.NewClient(endpoints, analytics.Config{
		RequestTimeout: cfg.Analytics.RequestTimeout,
		RetryAttempts:  cfg.Analytics.RetryAttempts,
		RetryDelay:     cfg.Analytics.RetryDelay,
		RequestsPerSec: cfg.Analytics.RequestsPerSec,
		Burst:          cfg.Analytics.Burst,
		BreakerTimeout: cfg.Analytics.BreakerTimeout,
		MaxBodyBytes:   cfg.Analytics.MaxBodyBytes,
	}, log, clientOpts...)

	var events port.EventPublisher
	if cfg.NATS.Enabled {
		publisher, err := natsInfra.NewNATSPublisher(natsInfra.Options{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			JetStream:     cfg.NATS.JetStream,
		}, log)
		if err != nil {
			log.Error("Failed to connect to NATS, attention events disabled", err)
		} else {
			events = publisher
		}
	}

	var gauges *cloudwatch.RiskGaugePublisher
	if cfg.CloudWatch.Enabled {
		gauges, err = cloudwatch.NewRiskGaugePublisher(ctx, cloudwatch.RiskGaugePublisherConfig{
			Namespace:     cfg.CloudWatch.Namespace,
			Region:        cfg.CloudWatch.Region,
			BufferSize:    cfg.CloudWatch.BatchSize,
			FlushInterval: cfg.CloudWatch.FlushInterval,
		}, log)
		if err != nil {
			log.Error("Failed to initialize CloudWatch gauges", err)
			gauges = nil
		}
	}

	// WebSocket Hub
	hub := wsInfra.NewHub(log)

	// 6. Dependency Injection - Domain Layer

	classifier := service.NewSeverityClassifier(log)
	insightResolver := service.NewInsightResolver()
	factorClassifier := service.NewRiskFactorClassifier()
	riskAggregator := service.NewRiskAggregator()
	graphValidator := service.NewGraphValidator()

	// 7. Dependency Injection - Application Layer (Use Cases)

	dashboardCfg := usecase.DashboardConfig{
		Interval:      cfg.Polling.Interval,
		Notifier:      hub,
		Events:        events,
		Recorder:      appMetrics,
		CycleObserver: appMetrics,
		StaleRecorder: appMetrics,
	}
	if gauges != nil {
		dashboardCfg.Gauges = gauges
	}

	rcaDashboard := usecase.NewRCADashboardUseCase(
		analytics.NewRCASources(client, graphValidator, log),
		dashboardCfg,
		classifier,
		insightResolver,
		log,
	)

	uebaDashboard := usecase.NewUEBADashboardUseCase(
		analytics.NewUEBASources(client),
		analytics.NewUEBADependentSources(client),
		dashboardCfg,
		classifier,
		factorClassifier,
		riskAggregator,
		log,
	)

	// Новый WebSocket клиент сразу получает текущие модели обоих экранов
	hub.SetSnapshotProvider(func() []wsInfra.Message {
		messages := make([]wsInfra.Message, 0, 2)
		if view, err := rcaDashboard.View(); err == nil {
			messages = append(messages, wsInfra.Message{Type: wsInfra.MessageRCA, Data: view})
		}
		if view, err := uebaDashboard.View(); err == nil {
			messages = append(messages, wsInfra.Message{Type: wsInfra.MessageUEBA, Data: view})
		}
		return messages
	})

	// 8. Dependency Injection - Interfaces Layer (HTTP Handlers)

	authConfig := middleware.AuthConfig{
		Enabled:     cfg.Security.AuthEnabled,
		BearerToken: cfg.Security.AuthToken,
	}

	router := httpInterface.NewRouter(
		handler.NewRCAHandler(rcaDashboard, log),
		handler.NewUEBAHandler(uebaDashboard, log),
		handler.NewHealthHandler(endpoints),
		handler.NewWebSocketHandler(hub, cfg.Security.AllowedOrigins, authConfig, log),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		appMetrics,
		cfg.Security,
		cfg.RateLimit,
		log,
	)

	// 9. Запускаем фоновые процессы

	go hub.Run(ctx)
	log.Info("WebSocket hub started")

	rcaDashboard.Mount(ctx)
	uebaDashboard.Mount(ctx)
	log.Info("Dashboards mounted", "poll_interval", cfg.Polling.Interval.String())

	// 10. Настраиваем HTTP сервер

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Канал для получения сигналов ОС
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Запускаем сервер в отдельной goroutine
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}()

	// 11. Ожидаем сигнал для graceful shutdown

	<-sigChan
	log.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}

	// Останавливаем опрос; поздние ответы будут отброшены
	rcaDashboard.Unmount()
	uebaDashboard.Unmount()
	cancel()

	if gauges != nil {
		if err := gauges.Close(shutdownCtx); err != nil {
			log.Error("Failed to flush CloudWatch gauges", err)
		}
	}
	if events != nil {
		if err := events.Close(); err != nil {
			log.Error("Failed to close NATS publisher", err)
		}
	}
	if cache != nil {
		if err := cache.Close(); err != nil {
			log.Error("Failed to close redis cache", err)
		}
	}

	log.Info("Server stopped gracefully")
}
