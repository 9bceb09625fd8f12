package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"preservia.dev/silo-core/internal/events"
	"preservia.dev/silo-core/internal/notify"
	"preservia.dev/silo-core/internal/store"
	"preservia.dev/silo-core/pkg/metrics"
)

// Store is the persistence contract the simulator consumes.
type Store interface {
	ActiveSilos(ctx context.Context) ([]store.Silo, error)
	CreateReading(ctx context.Context, reading *store.SensorReading) error
	UpdateLastReading(ctx context.Context, siloID uint, last store.LastReading) error
	HasRecentAlert(ctx context.Context, siloID uint, alertType string, since time.Time) (bool, error)
	CreateAlert(ctx context.Context, alert *store.Alert) error
	CreateEventLog(ctx context.Context, event *store.EventLog) error
}

// Config holds the configuration for the simulator engine.
type Config struct {
	// Logger is the structured logger.
	Logger *slog.Logger
	// Store persists readings and alerts.
	Store Store
	// Publisher fans out sensor and alert events.
	Publisher events.Publisher
	// Notifier forwards breach alerts to the owner's devices.
	Notifier notify.Notifier
	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.SimulatorMetrics
	// Rand is the randomness source for the walk. A nil value gets a
	// time-seeded source; tests inject a fixed seed.
	Rand *rand.Rand
	// Interval is the time between ticks.
	Interval time.Duration
	// AlertCooldown is the dedup window for repeat alerts of one type.
	AlertCooldown time.Duration
	// Dynamics tunes the state model. Zero value means DefaultDynamics.
	Dynamics Dynamics
	// Defaults are the threshold bounds for silos without overrides. Zero
	// value means store.DefaultThresholds.
	Defaults store.Thresholds
}

// DefaultAlertCooldown is the dedup window for repeat alerts.
const DefaultAlertCooldown = 5 * time.Minute

var (
	errStoreRequired     = errors.New("store is required")
	errPublisherRequired = errors.New("publisher is required")
	errNotifierRequired  = errors.New("notifier is required")
	errLoggerRequired    = errors.New("logger is required")
	errInvalidInterval   = errors.New("interval must be greater than 0")
)

// Engine owns the per-silo synthetic state and advances it once per tick.
// Nothing outside the engine reads or writes the state map; only persisted
// readings are visible externally.
type Engine struct {
	logger    *slog.Logger
	store     Store
	publisher events.Publisher
	notifier  notify.Notifier
	metrics   *metrics.SimulatorMetrics
	rng       *rand.Rand
	interval  time.Duration
	cooldown  time.Duration
	dynamics  Dynamics
	defaults  store.Thresholds

	mu     sync.Mutex
	states map[uint]State

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewEngine creates a simulator engine from the given configuration.
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

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404 - simulation data
	}

	cooldown := cfg.AlertCooldown
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}

	dynamics := cfg.Dynamics
	if dynamics == (Dynamics{}) {
		dynamics = DefaultDynamics
	}

	defaults := cfg.Defaults
	if defaults == (store.Thresholds{}) {
		defaults = store.DefaultThresholds
	}

	return &Engine{
		logger:    cfg.Logger,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		notifier:  cfg.Notifier,
		metrics:   cfg.Metrics,
		rng:       rng,
		interval:  cfg.Interval,
		cooldown:  cooldown,
		dynamics:  dynamics,
		defaults:  defaults,
		states:    make(map[uint]State),
	}, nil
}

// Start launches the tick loop. It returns immediately; Stop shuts the loop
// down and waits for an in-flight tick to finish.
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

	e.logger.Info("simulation engine started", "interval", e.interval)
}

// Stop cancels the tick loop and blocks until it has drained.
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
	e.logger.Info("simulation engine stopped")
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				// Whole-run failure: skip this tick, the next one proceeds.
				e.logger.Error("tick failed", "error", err)
			}
		}
	}
}

// Tick advances every active silo once. A failure on one silo is logged and
// does not abort the remaining silos.
func (e *Engine) Tick(ctx context.Context) error {
	var timer *prometheus.Timer
	if e.metrics != nil {
		e.metrics.TicksTotal.Inc()
		timer = prometheus.NewTimer(e.metrics.TickDuration)
		defer timer.ObserveDuration()
	}

	silos, err := e.store.ActiveSilos(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active silos: %w", err)
	}

	if e.metrics != nil {
		e.metrics.ActiveSilos.Set(float64(len(silos)))
	}

	for i := range silos {
		silo := &silos[i]
		if err := e.processSilo(ctx, silo); err != nil {
			e.logger.Error("silo tick failed",
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

// RemoveSilo evicts a silo's simulation state. Call when a silo is deleted
// or deactivated so the state map does not grow unboundedly.
func (e *Engine) RemoveSilo(siloID uint) {
	e.mu.Lock()
	delete(e.states, siloID)
	e.mu.Unlock()
}

// stateFor returns the silo's current state, lazily initializing it on the
// first tick the silo is seen.
func (e *Engine) stateFor(siloID uint) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[siloID]
	if !ok {
		st = NewState(e.rng)
		e.states[siloID] = st
	}
	return st
}

func (e *Engine) setState(siloID uint, st State) {
	e.mu.Lock()
	e.states[siloID] = st
	e.mu.Unlock()
}

type sensorUpdatePayload struct {
	Reading *store.SensorReading `json:"reading"`
	SiloID  uint                 `json:"siloId"`
}

func (e *Engine) processSilo(ctx context.Context, silo *store.Silo) error {
	prev := e.stateFor(silo.ID)
	next := prev.Advance(e.rng, silo.State, e.dynamics)
	e.setState(silo.ID, next)

	healthScore := HealthScore(next.Temperature, next.Humidity, next.Co2, next.O2, next.Battery)

	now := time.Now().UTC()
	reading := &store.SensorReading{
		SiloID:                 silo.ID,
		OwnerID:                silo.OwnerID,
		Temperature:            roundTo(next.Temperature, 2),
		Humidity:               roundTo(next.Humidity, 2),
		Co2:                    roundTo(next.Co2, 3),
		O2:                     roundTo(next.O2, 3),
		Battery:                roundTo(next.Battery, 1),
		HealthScore:            healthScore,
		EstimatedDaysRemaining: EstimatedDaysRemaining(healthScore),
		Source:                 store.SourceSimulation,
	}

	if err := e.store.CreateReading(ctx, reading); err != nil {
		return err
	}

	last := store.LastReading{
		Temperature:            reading.Temperature,
		Humidity:               reading.Humidity,
		Co2:                    reading.Co2,
		O2:                     reading.O2,
		Battery:                reading.Battery,
		HealthScore:            reading.HealthScore,
		EstimatedDaysRemaining: reading.EstimatedDaysRemaining,
		ReadingAt:              now,
	}
	if err := e.store.UpdateLastReading(ctx, silo.ID, last); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.ReadingsGenerated.Inc()
	}

	// The reading is persisted; a fan-out failure is not a silo failure.
	if err := e.publisher.Publish(ctx, silo.OwnerID, events.SensorUpdate, sensorUpdatePayload{
		SiloID:  silo.ID,
		Reading: reading,
	}); err != nil {
		e.logger.Error("failed to publish sensor update",
			"silo_id", silo.ID,
			"error", err,
		)
	}

	e.evaluateThresholds(ctx, silo, reading)
	return nil
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
