// Package simulator evolves a synthetic per-silo sensor state on a fixed
// tick, persists the resulting readings, and evaluates threshold breaches.
package simulator

import (
	"math"
	"math/rand"

	"preservia.dev/silo-core/internal/store"
)

// Nominal walk bounds. The random walk is clamped to these each tick; only
// anomaly spikes may exceed them, up to the hard physical bounds below.
const (
	tempWalkMin     = 14
	tempWalkMax     = 26
	humidityWalkMin = 50
	humidityWalkMax = 85
	co2WalkMin      = 2.5
	co2WalkMax      = 7
	o2WalkMin       = 0.5
	o2WalkMax       = 4
)

// Hard physical bounds. No value ever leaves these.
const (
	TempHardMax     = 30
	HumidityHardMax = 90
	Co2HardMax      = 8
	O2HardMax       = 5
	batteryFloor    = 5
)

// Ideal set-points the mean reversion pulls toward.
const (
	tempSetpoint     = 18.5
	humiditySetpoint = 65
	co2Setpoint      = 4.5
	o2Setpoint       = 2.0
)

// Dynamics holds the tunable parts of the state model. Probability and spike
// magnitudes are tuned constants, not physical law, so they are configurable.
type Dynamics struct {
	// AnomalyChance is the per-tick probability of a one-time excursion on a
	// single randomly chosen metric.
	AnomalyChance float64
	// Spike base magnitudes per metric. Batteries drop instead of spiking.
	TempSpike     float64
	HumiditySpike float64
	Co2Spike      float64
	O2Spike       float64
	BatteryDrop   float64
}

// DefaultDynamics is tuned so breaches are sustained long enough to exercise
// downstream alerting without making the data look synthetic.
var DefaultDynamics = Dynamics{
	AnomalyChance: 0.03,
	TempSpike:     4,
	HumiditySpike: 8,
	Co2Spike:      1,
	O2Spike:       1.5,
	BatteryDrop:   10,
}

// State is the synthetic sensor state of one silo. The trend fields are
// bounded drift velocities that give the walk short-term autocorrelation.
type State struct {
	Temperature float64
	Humidity    float64
	Co2         float64
	O2          float64
	Battery     float64
	TempTrend   float64
	HumidTrend  float64
	Co2Trend    float64
	O2Trend     float64
}

// NewState initializes a silo's state near the ideal operating point.
func NewState(rng *rand.Rand) State {
	return State{
		Temperature: 18 + rng.Float64()*2,
		Humidity:    63 + rng.Float64()*5,
		Co2:         4.0 + rng.Float64()*0.8,
		O2:          2.0 + rng.Float64()*0.5,
		Battery:     85 + rng.Float64()*15,
	}
}

// Advance produces the next state for one tick: trend perturbation, value
// walk, actuator coupling, anomaly injection, then mean reversion.
func (s State) Advance(rng *rand.Rand, ctrl store.ControlState, dyn Dynamics) State {
	next := s

	// Autocorrelated drift rather than white noise.
	next.TempTrend = clamp(s.TempTrend+(rng.Float64()-0.5)*0.05, -0.3, 0.3)
	next.HumidTrend = clamp(s.HumidTrend+(rng.Float64()-0.5)*0.08, -0.4, 0.4)
	next.Co2Trend = clamp(s.Co2Trend+(rng.Float64()-0.5)*0.03, -0.15, 0.15)
	next.O2Trend = clamp(s.O2Trend+(rng.Float64()-0.5)*0.02, -0.1, 0.1)

	next.Temperature = clamp(s.Temperature+next.TempTrend+(rng.Float64()-0.5)*0.1, tempWalkMin, tempWalkMax)
	next.Humidity = clamp(s.Humidity+next.HumidTrend+(rng.Float64()-0.5)*0.2, humidityWalkMin, humidityWalkMax)
	next.Co2 = clamp(s.Co2+next.Co2Trend+(rng.Float64()-0.5)*0.05, co2WalkMin, co2WalkMax)
	next.O2 = clamp(s.O2+next.O2Trend+(rng.Float64()-0.5)*0.03, o2WalkMin, o2WalkMax)
	next.Battery = clamp(s.Battery-0.001+(rng.Float64()-0.7)*0.02, 0, 100)

	// Actuators move the atmosphere deterministically.
	if ctrl.VentOpen {
		next.Co2 = clamp(next.Co2-0.1, co2WalkMin, co2WalkMax)
		next.O2 = clamp(next.O2+0.05, o2WalkMin, o2WalkMax)
		next.Humidity = clamp(next.Humidity-0.3, humidityWalkMin, humidityWalkMax)
	}
	if ctrl.Co2Active {
		next.Co2 = clamp(next.Co2+0.2, co2WalkMin, co2WalkMax)
	}

	// Sensor fault or environmental shock on one metric.
	if rng.Float64() < dyn.AnomalyChance {
		switch rng.Intn(5) {
		case 0:
			next.Humidity = clamp(next.Humidity+dyn.HumiditySpike+rng.Float64()*5, humidityWalkMin, HumidityHardMax)
		case 1:
			next.Temperature = clamp(next.Temperature+dyn.TempSpike+rng.Float64()*3, tempWalkMin, TempHardMax)
		case 2:
			next.Co2 = clamp(next.Co2+dyn.Co2Spike+rng.Float64()*0.8, co2WalkMin, Co2HardMax)
		case 3:
			next.O2 = clamp(next.O2+dyn.O2Spike+rng.Float64(), o2WalkMin, O2HardMax)
		default:
			next.Battery = math.Max(next.Battery-dyn.BatteryDrop, batteryFloor)
		}
	}

	// Mean reversion keeps the walk stationary over long horizons.
	next.Temperature += (tempSetpoint - next.Temperature) * 0.005
	next.Humidity += (humiditySetpoint - next.Humidity) * 0.008
	next.Co2 += (co2Setpoint - next.Co2) * 0.005
	next.O2 += (o2Setpoint - next.O2) * 0.005

	return next
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}
