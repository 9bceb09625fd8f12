// Package server assembles the silo-core background service: database,
// message queue clients, the telemetry simulator, the prediction engine,
// the reading retention janitor, and the metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gorm.io/gorm"

	"preservia.dev/silo-core/internal/events"
	"preservia.dev/silo-core/internal/notify"
	"preservia.dev/silo-core/internal/prediction"
	"preservia.dev/silo-core/internal/simulator"
	"preservia.dev/silo-core/internal/store"
	"preservia.dev/silo-core/pkg/metrics"
	"preservia.dev/silo-core/pkg/mq"
)

// retentionSweepInterval is how often the janitor prunes expired readings.
const retentionSweepInterval = time.Hour

// metricsNamespace prefixes every Prometheus metric.
const metricsNamespace = "preservia"

// Config holds the configuration for the Server.
type Config struct {
	Logger *slog.Logger

	// Database configuration
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPort     int

	// RabbitMQ configuration
	RabbitMQURL        string
	EventsQueue        string
	NotificationsQueue string

	// Engine intervals
	SimulationInterval     time.Duration
	PredictionInterval     time.Duration
	PredictionInitialDelay time.Duration

	// PushEnabled forwards notifications to the delivery queue when true;
	// otherwise they are dropped.
	PushEnabled bool

	// MetricsPort serves /metrics.
	MetricsPort int
}

// Server runs the background engines and blocks until shutdown.
type Server struct {
	logger      *slog.Logger
	config      *Config
	db          *gorm.DB
	eventClient *mq.Client
	notifClient *mq.Client
	simulator   *simulator.Engine
	prediction  *prediction.Engine
	metricsSrv  *http.Server
	wg          sync.WaitGroup
}

// NewServer creates a new Server instance.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}
	if cfg.EventsQueue == "" {
		return nil, errors.New("events queue name cannot be empty")
	}
	if cfg.DBHost == "" {
		return nil, errors.New("database host cannot be empty")
	}
	if cfg.DBPort <= 0 {
		return nil, errors.New("database port must be positive")
	}
	if cfg.DBUser == "" {
		return nil, errors.New("database user cannot be empty")
	}
	if cfg.DBName == "" {
		return nil, errors.New("database name cannot be empty")
	}
	if cfg.SimulationInterval <= 0 {
		return nil, errors.New("simulation interval must be positive")
	}
	if cfg.PredictionInterval <= 0 {
		return nil, errors.New("prediction interval must be positive")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run starts the server and blocks until a shutdown signal is received.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting silo-core server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Database
	db, err := store.NewDB(&store.DBConfig{
		Host:     s.config.DBHost,
		Port:     s.config.DBPort,
		User:     s.config.DBUser,
		Password: s.config.DBPassword,
		DBName:   s.config.DBName,
		SSLMode:  s.config.DBSSLMode,
		Logger:   s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db
	st := store.New(db)

	// MQ clients
	mqMetrics := metrics.NewMQMetrics(metricsNamespace)

	s.eventClient = mq.New(s.config.EventsQueue, s.config.RabbitMQURL, s.logger.With(
		slog.String("component", "events-mq-client"),
	))
	s.eventClient.SetMetrics(mqMetrics)
	publisher := events.NewAMQPPublisher(s.eventClient, s.logger.With(
		slog.String("component", "event-publisher"),
	))

	var notifier notify.Notifier = notify.NoopNotifier{}
	if s.config.PushEnabled {
		if s.config.NotificationsQueue == "" {
			return errors.New("notifications queue name cannot be empty when push is enabled")
		}
		s.notifClient = mq.New(s.config.NotificationsQueue, s.config.RabbitMQURL, s.logger.With(
			slog.String("component", "notifications-mq-client"),
		))
		s.notifClient.SetMetrics(mqMetrics)
		notifier = notify.NewQueueNotifier(s.notifClient, s.logger.With(
			slog.String("component", "notifier"),
		))
	} else {
		s.logger.Info("push notifications disabled, jobs will be dropped")
	}

	// Engines
	sim, err := simulator.NewEngine(&simulator.Config{
		Logger:    s.logger.With(slog.String("component", "simulator")),
		Store:     st,
		Publisher: publisher,
		Notifier:  notifier,
		Metrics:   metrics.NewSimulatorMetrics(metricsNamespace),
		Interval:  s.config.SimulationInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to create simulator engine: %w", err)
	}
	s.simulator = sim

	pred, err := prediction.NewEngine(&prediction.Config{
		Logger:       s.logger.With(slog.String("component", "prediction")),
		Store:        st,
		Publisher:    publisher,
		Notifier:     notifier,
		Metrics:      metrics.NewPredictionMetrics(metricsNamespace),
		Interval:     s.config.PredictionInterval,
		InitialDelay: s.config.PredictionInitialDelay,
	})
	if err != nil {
		return fmt.Errorf("failed to create prediction engine: %w", err)
	}
	s.prediction = pred

	s.simulator.Start(ctx)
	s.prediction.Start(ctx)

	s.wg.Add(1)
	go s.runRetentionJanitor(ctx, st)

	// Metrics endpoint
	metricsErr := make(chan error, 1)
	if s.config.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		s.metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", s.config.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.logger.Info("serving metrics", "addr", s.metricsSrv.Addr)
			if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- fmt.Errorf("metrics server error: %w", err)
			}
			close(metricsErr)
		}()
	}

	s.logger.Info("silo-core server started successfully")

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-metricsErr:
		if err != nil {
			s.logger.Error("metrics server error", "error", err)
			cancel()
			return err
		}
	}

	return s.Shutdown()
}

// runRetentionJanitor periodically deletes readings past the retention
// window. This replaces a storage-level TTL so expiry works on any backend.
func (s *Server) runRetentionJanitor(ctx context.Context, st *store.Store) {
	defer s.wg.Done()

	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-store.ReadingRetention)
			pruned, err := st.PruneReadings(ctx, cutoff)
			if err != nil {
				s.logger.Error("retention sweep failed", "error", err)
				continue
			}
			if pruned > 0 {
				s.logger.Info("pruned expired readings",
					"count", pruned,
					"cutoff", cutoff,
				)
			}
		}
	}
}

// Shutdown gracefully stops the engines, the janitor, the MQ clients and
// the database. In-flight ticks are allowed to finish.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down silo-core server")

	var shutdownErr error

	if s.simulator != nil {
		s.simulator.Stop()
	}
	if s.prediction != nil {
		s.prediction.Stop()
	}
	s.wg.Wait()

	if s.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metricsSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to stop metrics server", "error", err)
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
		}
		cancel()
	}

	for _, client := range []*mq.Client{s.eventClient, s.notifClient} {
		if client == nil {
			continue
		}
		if err := client.Close(); err != nil {
			s.logger.Error("failed to close MQ client", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; mq close error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("mq close error: %w", err)
			}
		}
	}

	if s.db != nil {
		if err := store.CloseDB(s.db, s.logger); err != nil {
			s.logger.Error("failed to close database", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; database close error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("database close error: %w", err)
			}
		}
	}

	if shutdownErr != nil {
		s.logger.Error("silo-core server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("silo-core server shutdown completed successfully")
	return nil
}
