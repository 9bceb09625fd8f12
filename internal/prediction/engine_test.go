package prediction_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"preservia.dev/silo-core/internal/events"
	eventsmock "preservia.dev/silo-core/internal/events/mock"
	notifymock "preservia.dev/silo-core/internal/notify/mock"
	"preservia.dev/silo-core/internal/prediction"
	"preservia.dev/silo-core/internal/store"
)

// fakeStore is an in-memory prediction.Store for unit tests.
type fakeStore struct {
	mu sync.Mutex

	silos       []store.Silo
	readings    map[uint][]store.SensorReading
	tokens      map[uint][]string
	predictions []*store.Prediction
	alerts      []*store.Alert
	events      []*store.EventLog

	activeSilosErr   error
	readingsErr      map[uint]error
	createPredictErr error
}

func newFakeStore(silos ...store.Silo) *fakeStore {
	return &fakeStore{
		silos:       silos,
		readings:    make(map[uint][]store.SensorReading),
		tokens:      make(map[uint][]string),
		readingsErr: make(map[uint]error),
	}
}

func (f *fakeStore) ActiveSilos(_ context.Context) ([]store.Silo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeSilosErr != nil {
		return nil, f.activeSilosErr
	}
	out := make([]store.Silo, len(f.silos))
	copy(out, f.silos)
	return out, nil
}

func (f *fakeStore) ReadingsSince(_ context.Context, siloID uint, _ time.Time) ([]store.SensorReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readingsErr[siloID]; err != nil {
		return nil, err
	}
	return f.readings[siloID], nil
}

func (f *fakeStore) CreatePrediction(_ context.Context, p *store.Prediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createPredictErr != nil {
		return f.createPredictErr
	}
	f.predictions = append(f.predictions, p)
	return nil
}

func (f *fakeStore) CreateAlert(_ context.Context, alert *store.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeStore) CreateEventLog(_ context.Context, event *store.EventLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) DeviceTokens(_ context.Context, ownerID uint) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[ownerID], nil
}

func (f *fakeStore) predictionsSnapshot() []*store.Prediction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*store.Prediction, len(f.predictions))
	copy(out, f.predictions)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func siloAgedDays(id, ownerID uint, days int) store.Silo {
	return store.Silo{
		ID:        id,
		OwnerID:   ownerID,
		Name:      "Silo A",
		IsActive:  true,
		CreatedAt: time.Now().Add(-time.Duration(days) * 24 * time.Hour),
	}
}

// nominalReadings fills a silo's window with in-band telemetry.
func nominalReadings(n int) []store.SensorReading {
	out := make([]store.SensorReading, n)
	for i := range out {
		out[i] = store.SensorReading{
			Temperature: 18.5,
			Humidity:    65,
			Co2:         4.5,
			O2:          2,
			Battery:     90,
		}
	}
	return out
}

// riskyReadings fills a silo's window with telemetry that assesses above the
// high-risk line for a 30-day-old silo.
func riskyReadings(n int) []store.SensorReading {
	out := make([]store.SensorReading, n)
	for i := range out {
		out[i] = store.SensorReading{
			Temperature: 25,
			Humidity:    85,
			Co2:         7,
			O2:          2,
			Battery:     90,
		}
	}
	return out
}

var _ = Describe("Engine", func() {
	var (
		st        *fakeStore
		publisher *eventsmock.Publisher
		notifier  *notifymock.Notifier
	)

	BeforeEach(func() {
		st = newFakeStore(siloAgedDays(1, 7, 10))
		st.readings[1] = nominalReadings(10)
		publisher = eventsmock.NewPublisher()
		notifier = notifymock.NewNotifier()
	})

	newEngine := func(cfg *prediction.Config) *prediction.Engine {
		if cfg.Logger == nil {
			cfg.Logger = testLogger()
		}
		if cfg.Store == nil {
			cfg.Store = st
		}
		if cfg.Publisher == nil {
			cfg.Publisher = publisher
		}
		if cfg.Notifier == nil {
			cfg.Notifier = notifier
		}
		if cfg.Interval == 0 {
			cfg.Interval = time.Minute
		}
		eng, err := prediction.NewEngine(cfg)
		Expect(err).NotTo(HaveOccurred())
		return eng
	}

	Describe("NewEngine", func() {
		It("should reject a nil config", func() {
			_, err := prediction.NewEngine(nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject a missing store", func() {
			_, err := prediction.NewEngine(&prediction.Config{
				Logger:    testLogger(),
				Publisher: publisher,
				Notifier:  notifier,
				Interval:  time.Minute,
			})
			Expect(err).To(MatchError("store is required"))
		})

		It("should reject a missing publisher", func() {
			_, err := prediction.NewEngine(&prediction.Config{
				Logger:   testLogger(),
				Store:    st,
				Notifier: notifier,
				Interval: time.Minute,
			})
			Expect(err).To(MatchError("publisher is required"))
		})

		It("should reject a non-positive interval", func() {
			_, err := prediction.NewEngine(&prediction.Config{
				Logger:    testLogger(),
				Store:     st,
				Publisher: publisher,
				Notifier:  notifier,
			})
			Expect(err).To(MatchError("interval must be greater than 0"))
		})
	})

	Describe("Run", func() {
		It("should persist one prediction per assessable silo", func() {
			eng := newEngine(&prediction.Config{})

			Expect(eng.Run(context.Background())).To(Succeed())

			predictions := st.predictionsSnapshot()
			Expect(predictions).To(HaveLen(1))
			p := predictions[0]
			Expect(p.SiloID).To(Equal(uint(1)))
			Expect(p.OwnerID).To(Equal(uint(7)))
			Expect(p.GeneratedAt).NotTo(BeZero())
			Expect(p.Inputs.AvgTemperature).To(BeNumerically("~", 18.5, 0.001))
			Expect(p.Inputs.StorageDurationDays).To(Equal(10))
			Expect(p.Recommendation).To(Equal(prediction.RecommendOptimal))
		})

		It("should publish a prediction update", func() {
			eng := newEngine(&prediction.Config{})

			Expect(eng.Run(context.Background())).To(Succeed())

			calls := publisher.CallsFor(events.PredictionUpdate)
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].OwnerID).To(Equal(uint(7)))
		})

		It("should write a prediction event log entry", func() {
			eng := newEngine(&prediction.Config{})

			Expect(eng.Run(context.Background())).To(Succeed())

			Expect(st.events).To(HaveLen(1))
			Expect(st.events[0].EventType).To(Equal(store.EventPredictionGenerated))
			Expect(st.events[0].Description).To(ContainSubstring("spoilage risk"))
		})

		It("should skip silos with a sparse reading window", func() {
			st.readings[1] = nominalReadings(1)
			eng := newEngine(&prediction.Config{})

			Expect(eng.Run(context.Background())).To(Succeed())
			Expect(st.predictionsSnapshot()).To(BeEmpty())
			Expect(publisher.Calls()).To(BeEmpty())
		})

		It("should return an error when active silos cannot be listed", func() {
			st.activeSilosErr = errors.New("db down")
			eng := newEngine(&prediction.Config{})

			err := eng.Run(context.Background())
			Expect(err).To(MatchError(ContainSubstring("db down")))
		})

		It("should continue with remaining silos when one fails", func() {
			st = newFakeStore(siloAgedDays(1, 7, 10), siloAgedDays(2, 7, 10))
			st.readings[1] = nominalReadings(10)
			st.readings[2] = nominalReadings(10)
			st.readingsErr[1] = errors.New("query failed")
			eng := newEngine(&prediction.Config{Store: st})

			Expect(eng.Run(context.Background())).To(Succeed())

			predictions := st.predictionsSnapshot()
			Expect(predictions).To(HaveLen(1))
			Expect(predictions[0].SiloID).To(Equal(uint(2)))
		})

		It("should not raise alerts for low-risk silos", func() {
			eng := newEngine(&prediction.Config{})

			Expect(eng.Run(context.Background())).To(Succeed())
			Expect(st.alerts).To(BeEmpty())
			Expect(notifier.Calls()).To(BeEmpty())
		})
	})

	Describe("high spoilage risk", func() {
		BeforeEach(func() {
			st = newFakeStore(siloAgedDays(1, 7, 30))
			st.readings[1] = riskyReadings(10)
			st.tokens[7] = []string{"token-1", "token-2"}
		})

		It("should raise a critical sprouting risk alert", func() {
			eng := newEngine(&prediction.Config{Store: st})

			Expect(eng.Run(context.Background())).To(Succeed())

			predictions := st.predictionsSnapshot()
			Expect(predictions).To(HaveLen(1))
			Expect(predictions[0].SpoilageRisk).To(BeNumerically(">", 60))

			Expect(st.alerts).To(HaveLen(1))
			alert := st.alerts[0]
			Expect(alert.Type).To(Equal(store.AlertSproutingRisk))
			Expect(alert.Severity).To(Equal(store.SeverityCritical))
			Expect(alert.Message).To(ContainSubstring("Spoilage risk increased to"))
		})

		It("should push a spoilage notification to the owner's devices", func() {
			eng := newEngine(&prediction.Config{Store: st})

			Expect(eng.Run(context.Background())).To(Succeed())

			sends := notifier.Calls()
			Expect(sends).To(HaveLen(1))
			Expect(sends[0].Tokens).To(Equal([]string{"token-1", "token-2"}))
			Expect(sends[0].Title).To(Equal("Spoilage Risk Alert"))
			Expect(sends[0].Body).To(ContainSubstring("Risk:"))
			Expect(sends[0].Body).To(ContainSubstring("Silo A"))
		})
	})

	Describe("Start and Stop", func() {
		It("should run after the initial delay", func() {
			eng := newEngine(&prediction.Config{
				Interval:     time.Hour,
				InitialDelay: 10 * time.Millisecond,
			})

			eng.Start(context.Background())
			Eventually(func() int {
				return len(st.predictionsSnapshot())
			}, time.Second).Should(Equal(1))
			eng.Stop()
		})

		It("should run on the interval when no delay is configured", func() {
			eng := newEngine(&prediction.Config{Interval: 10 * time.Millisecond})

			eng.Start(context.Background())
			Eventually(func() int {
				return len(st.predictionsSnapshot())
			}, time.Second).Should(BeNumerically(">=", 2))
			eng.Stop()
		})

		It("should be safe to stop twice", func() {
			eng := newEngine(&prediction.Config{Interval: time.Hour})
			eng.Start(context.Background())
			eng.Stop()
			eng.Stop()
		})
	})
})
