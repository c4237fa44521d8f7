package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"projectnotify/internal/broker"
	"projectnotify/internal/config"
	"projectnotify/internal/constants"
	"projectnotify/internal/directory"
	"projectnotify/internal/logger"
	"projectnotify/internal/notification"
	"projectnotify/internal/pipeline"
	"projectnotify/pkg/health"
	"projectnotify/pkg/metrics"
)

type App struct {
	cfg    *config.Config
	logger logger.Logger

	producer *broker.RabbitMQProducer
	consumer *broker.RabbitMQConsumer
	pipeline *pipeline.Pipeline
	server   *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("notifier")
	}
	return &App{
		cfg:    cfg,
		logger: log,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.RegisterPipelineMetrics()
	metrics.RegisterDirectoryMetrics()
	if a.cfg.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	producer, err := broker.NewRabbitMQProducer(a.cfg.Broker.RabbitMQ, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize producer: %w", err)
	}
	a.producer = producer

	a.consumer = broker.NewRabbitMQConsumer(
		a.cfg.Broker.RabbitMQ,
		sourceRoutingKeys(),
		a.cfg.Reminder.RoutingKey,
		a.logger,
	)

	var dir directory.Client = directory.NewHTTPClient(a.cfg.Directory, a.logger)
	if a.cfg.CircuitBreaker.Enabled {
		dir = directory.NewCircuitBreakerClient(dir, a.cfg.CircuitBreaker)
	}

	engine := notification.NewEngine(dir, a.cfg.Notifications, a.logger)
	mirror := notification.NewSlackMirror(a.cfg.Notifications.SlackWebhookURL, a.logger)

	a.pipeline = pipeline.New(engine, producer, dir, mirror, a.cfg.Reminder, a.logger)

	a.initHTTPServer()
	return nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewFuncChecker("broker", func(ctx context.Context) error {
		return a.producer.Healthy()
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(h)
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: mux,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.consumer.Consume(ctx, a.pipeline.Handle)
	})

	g.Go(func() error {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Errorw("HTTP server shutdown failed", "error", err)
		}
		return ctx.Err()
	})

	err := g.Wait()

	a.shutdown()
	return err
}

// shutdown stops accepting deliveries and lets in-flight handlers finish;
// unsettled messages are the bus's to redeliver.
func (a *App) shutdown() {
	a.logger.Info("Shutting down notification relay...")

	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Errorw("Consumer close failed", "error", err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Errorw("Producer close failed", "error", err)
		}
	}

	a.logger.Info("Notification relay exited")
}

// sourceRoutingKeys lists the event bindings on the source exchange. The
// reminder key is bound through the delay exchange instead.
func sourceRoutingKeys() []string {
	return []string{
		constants.EventProjectDraftCreated,
		constants.EventProjectUpdated,
		constants.EventProjectMemberAdded,
		constants.EventProjectMemberRemoved,
		constants.EventProjectMemberUpdated,
	}
}
