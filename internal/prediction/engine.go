package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"preservia.dev/silo-core/internal/events"
	"preservia.dev/silo-core/internal/notify"
	"preservia.dev/silo-core/internal/store"
	"preservia.dev/silo-core/pkg/metrics"
)

// Window is the trailing span of readings one prediction is computed from.
const Window = 24 * time.Hour

// minReadings is the minimum window population required for a prediction.
const minReadings = 2

// highRiskThreshold is the overall spoilage risk above which a critical
// alert is raised.
const highRiskThreshold = 60

// Store is the persistence contract the prediction engine consumes.
type Store interface {
	ActiveSilos(ctx context.Context) ([]store.Silo, error)
	ReadingsSince(ctx context.Context, siloID uint, since time.Time) ([]store.SensorReading, error)
	CreatePrediction(ctx context.Context, prediction *store.Prediction) error
	CreateAlert(ctx context.Context, alert *store.Alert) error
	CreateEventLog(ctx context.Context, event *store.EventLog) error
	DeviceTokens(ctx context.Context, ownerID uint) ([]string, error)
}

// Config holds the configuration for the prediction engine.
type Config struct {
	// Logger is the structured logger.
	Logger *slog.Logger
	// Store reads recent telemetry and persists predictions.
	Store Store
	// Publisher fans out prediction events.
	Publisher events.Publisher
	// Notifier forwards high-risk alerts to the owner's devices.
	Notifier notify.Notifier
	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.PredictionMetrics
	// Interval is the time between prediction runs.
	Interval time.Duration
	// InitialDelay is the wait before the first run after startup, so the
	// simulator has produced a usable window.
	InitialDelay time.Duration
}

var (
	errStoreRequired     = errors.New("store is required")
	errPublisherRequired = errors.New("publisher is required")
	errNotifierRequired  = errors.New("notifier is required")
	errLoggerRequired    = errors.New("logger is required")
	errInvalidInterval   = errors.New("interval must be greater than 0")
)

// Engine periodically assesses every active silo's spoilage risk.
type Engine struct {
	logger       *slog.Logger
	store        Store
	publisher    events.Publisher
	notifier     notify.Notifier
	metrics      *metrics.PredictionMetrics
	interval     time.Duration
	initialDelay time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewEngine creates a prediction engine from the given configuration.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil || cfg.Logger == nil {
		return nil, errLoggerRequired
	}
	if cfg.Store == nil {
		return nil, errStoreRequired
	}
	if cfg.Publisher == nil {
		return nil, errPublisherRequired
	}
	if cfg.Notifier == nil {
		return nil, errNotifierRequired
	}
	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	return &Engine{
		logger:       cfg.Logger,
		store:        cfg.Store,
		publisher:    cfg.Publisher,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		interval:     cfg.Interval,
		initialDelay: cfg.InitialDelay,
	}, nil
}

// Start launches the run loop: one delayed initial run, then fixed-interval
// runs until Stop.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(ctx)

	e.logger.Info("prediction engine started",
		"interval", e.interval,
		"initial_delay", e.initialDelay,
	)
}

// Stop cancels the run loop and blocks until an in-flight run has finished.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.logger.Info("prediction engine stopped")
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	if e.initialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.initialDelay):
			e.runOnce(ctx)
		}
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runOnce(ctx)
		}
	}
}

func (e *Engine) runOnce(ctx context.Context) {
	if err := e.Run(ctx); err != nil {
		// Whole-run failure: skip, the next scheduled run proceeds.
		e.logger.Error("prediction run failed", "error", err)
	}
}

// Run assesses every active silo once. Per-silo failures are logged and do
// not abort the run.
func (e *Engine) Run(ctx context.Context) error {
	var timer *prometheus.Timer
	if e.metrics != nil {
		e.metrics.RunsTotal.Inc()
		timer = prometheus.NewTimer(e.metrics.RunDuration)
		defer timer.ObserveDuration()
	}

	silos, err := e.store.ActiveSilos(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active silos: %w", err)
	}

	for i := range silos {
		silo := &silos[i]
		if err := e.predictSilo(ctx, silo); err != nil {
			e.logger.Error("prediction failed for silo",
				"silo_id", silo.ID,
				"error", err,
			)
			if e.metrics != nil {
				e.metrics.SiloFailures.Inc()
			}
		}
	}

	return nil
}

type predictionUpdatePayload struct {
	Prediction *store.Prediction `json:"prediction"`
	SiloID     uint              `json:"siloId"`
}

func (e *Engine) predictSilo(ctx context.Context, silo *store.Silo) error {
	now := time.Now().UTC()

	readings, err := e.store.ReadingsSince(ctx, silo.ID, now.Add(-Window))
	if err != nil {
		return err
	}
	if len(readings) < minReadings {
		e.logger.Debug("skipping silo with sparse window",
			"silo_id", silo.ID,
			"readings", len(readings),
		)
		if e.metrics != nil {
			e.metrics.SilosSkipped.Inc()
		}
		return nil
	}

	aggregates := Aggregate(readings, silo.CreatedAt, now)
	assessment := Assess(aggregates)

	prediction := &store.Prediction{
		SiloID:            silo.ID,
		OwnerID:           silo.OwnerID,
		SpoilageRisk:      assessment.SpoilageRisk,
		EstimatedSafeDays: assessment.EstimatedSafeDays,
		SproutingRisk:     assessment.SproutingRisk,
		DecayRisk:         assessment.DecayRisk,
		Co2Risk:           assessment.Co2Risk,
		HumidityRisk:      assessment.HumidityRisk,
		Recommendation:    assessment.Recommendation,
		Inputs: store.PredictionInputs{
			AvgTemperature:      aggregates.AvgTemperature,
			AvgHumidity:         aggregates.AvgHumidity,
			AvgCo2:              aggregates.AvgCo2,
			AvgO2:               aggregates.AvgO2,
			StorageDurationDays: aggregates.StorageDays,
		},
		GeneratedAt: now,
	}

	if err := e.store.CreatePrediction(ctx, prediction); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.PredictionsGenerated.Inc()
	}

	description := fmt.Sprintf("AI prediction: spoilage risk %d%%, %d safe days remaining.",
		assessment.SpoilageRisk, assessment.EstimatedSafeDays)
	if err := e.store.CreateEventLog(ctx, &store.EventLog{
		SiloID:      silo.ID,
		OwnerID:     silo.OwnerID,
		EventType:   store.EventPredictionGenerated,
		Description: description,
		TriggeredBy: "system",
		Meta: map[string]any{
			"spoilageRisk":      assessment.SpoilageRisk,
			"estimatedSafeDays": assessment.EstimatedSafeDays,
			"recommendation":    assessment.Recommendation,
		},
	}); err != nil {
		e.logger.Error("failed to write prediction event log",
			"silo_id", silo.ID,
			"error", err,
		)
	}

	if err := e.publisher.Publish(ctx, silo.OwnerID, events.PredictionUpdate, predictionUpdatePayload{
		SiloID:     silo.ID,
		Prediction: prediction,
	}); err != nil {
		e.logger.Error("failed to publish prediction update",
			"silo_id", silo.ID,
			"error", err,
		)
	}

	if assessment.SpoilageRisk > highRiskThreshold {
		e.raiseHighRiskAlert(ctx, silo, assessment)
	}

	return nil
}

// raiseHighRiskAlert creates a critical alert and attempts a push
// notification when the overall spoilage risk crosses the high-risk line.
func (e *Engine) raiseHighRiskAlert(ctx context.Context, silo *store.Silo, assessment Assessment) {
	message := fmt.Sprintf("Spoilage risk increased to %d%% in %s. %s",
		assessment.SpoilageRisk, silo.Name, assessment.Recommendation)

	if err := e.store.CreateAlert(ctx, &store.Alert{
		SiloID:      silo.ID,
		SiloName:    silo.Name,
		OwnerID:     silo.OwnerID,
		Type:        store.AlertSproutingRisk,
		Message:     message,
		Severity:    store.SeverityCritical,
		TriggeredBy: "system",
	}); err != nil {
		e.logger.Error("failed to create high-risk alert",
			"silo_id", silo.ID,
			"error", err,
		)
		return
	}

	if e.metrics != nil {
		e.metrics.HighRiskAlerts.Inc()
	}

	tokens, err := e.store.DeviceTokens(ctx, silo.OwnerID)
	if err != nil {
		e.logger.Error("failed to load device tokens",
			"owner_id", silo.OwnerID,
			"error", err,
		)
		return
	}

	body := fmt.Sprintf("Risk: %d%% in %s", assessment.SpoilageRisk, silo.Name)
	if err := e.notifier.Send(ctx, tokens, "Spoilage Risk Alert", body, map[string]string{
		"siloId": strconv.FormatUint(uint64(silo.ID), 10),
	}); err != nil {
		e.logger.Error("failed to send high-risk push notification",
			"silo_id", silo.ID,
			"error", err,
		)
	}
}
