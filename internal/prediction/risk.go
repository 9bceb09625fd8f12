// Package prediction aggregates recent telemetry per silo into a heuristic
// multi-factor spoilage risk assessment. The scoring function is a
// deterministic, explainable weighted sum; its thresholds and weights are
// part of the observable contract.
package prediction

import (
	"math"
	"time"

	"preservia.dev/silo-core/internal/store"
)

// Recommendation texts, in priority order. Exactly one is chosen per
// assessment; the first matching rule wins.
const (
	RecommendVentilation = "CO₂ levels are approaching unsafe limits. Schedule a ventilation cycle within 12–18 hours to reduce CO₂ breach risk."
	RecommendSprouting   = "Sprouting risk is elevated. Verify CO₂ concentration is maintained above 3.5% and review temperature stability."
	RecommendDecay       = "Decay risk detected. Check humidity levels and ensure ventilation is not causing rapid moisture changes."
	RecommendDesiccation = "Humidity is elevated. Activate desiccation mode and monitor for condensation on produce surface."
	RecommendSystemCheck = "Multiple parameters are drifting from optimal. Consider scheduling a full system check and recalibration."
	RecommendOptimal     = "Atmospheric conditions are within optimal range. Continue automated monitoring."
)

// riskCap bounds every score.
const riskCap = 95

// Aggregates are the averaged inputs a prediction is computed from.
type Aggregates struct {
	AvgTemperature float64
	AvgHumidity    float64
	AvgCo2         float64
	AvgO2          float64
	StorageDays    int
}

// Assessment is the result of the risk heuristic.
type Assessment struct {
	Recommendation    string
	SpoilageRisk      int
	SproutingRisk     int
	DecayRisk         int
	Co2Risk           int
	HumidityRisk      int
	EstimatedSafeDays int
}

// Aggregate averages a window of readings and computes the storage age in
// whole days.
func Aggregate(readings []store.SensorReading, siloCreatedAt, now time.Time) Aggregates {
	var temp, humidity, co2, o2 float64
	for _, r := range readings {
		temp += r.Temperature
		humidity += r.Humidity
		co2 += r.Co2
		o2 += r.O2
	}
	n := float64(len(readings))

	return Aggregates{
		AvgTemperature: temp / n,
		AvgHumidity:    humidity / n,
		AvgCo2:         co2 / n,
		AvgO2:          o2 / n,
		StorageDays:    int(math.Round(now.Sub(siloCreatedAt).Hours() / 24)),
	}
}

// Assess applies the weighted-sum heuristic to the aggregated inputs.
func Assess(in Aggregates) Assessment {
	var risk, sproutRisk, decayRisk, co2Risk, humidRisk float64

	// Temperature deviation drives overall and decay risk.
	tempDev := math.Abs(in.AvgTemperature - 18.5)
	risk += tempDev * 3
	decayRisk += tempDev * 5

	// Humidity: excess rots, deficit desiccates.
	switch {
	case in.AvgHumidity > 72:
		risk += (in.AvgHumidity - 72) * 2
		decayRisk += (in.AvgHumidity - 72) * 3
		humidRisk += (in.AvgHumidity - 72) * 5
	case in.AvgHumidity < 60:
		risk += (60 - in.AvgHumidity) * 1.5
	}

	// CO2: too low lets onions sprout, too high breaches safety limits.
	switch {
	case in.AvgCo2 < 3:
		risk += (3 - in.AvgCo2) * 12
		sproutRisk += (3 - in.AvgCo2) * 20
	case in.AvgCo2 > 5.5:
		risk += (in.AvgCo2 - 5.5) * 8
		co2Risk += (in.AvgCo2 - 5.5) * 15
	}

	// O2: too low suffocates tissue, too high feeds sprouting.
	switch {
	case in.AvgO2 < 1:
		risk += (1 - in.AvgO2) * 15
		decayRisk += (1 - in.AvgO2) * 20
	case in.AvgO2 > 3:
		risk += (in.AvgO2 - 3) * 10
		sproutRisk += (in.AvgO2 - 3) * 12
	}

	// Storage age contributes to overall risk only.
	risk += float64(in.StorageDays) * 0.3

	risk = clampRisk(risk)
	sproutRisk = clampRisk(sproutRisk)
	decayRisk = clampRisk(decayRisk)
	co2Risk = clampRisk(co2Risk)
	humidRisk = clampRisk(humidRisk)

	safeDays := int(math.Round(math.Max(1, 60-float64(in.StorageDays)-risk*0.4)))

	recommendation := RecommendOptimal
	switch {
	case co2Risk > 30:
		recommendation = RecommendVentilation
	case sproutRisk > 25:
		recommendation = RecommendSprouting
	case decayRisk > 20:
		recommendation = RecommendDecay
	case humidRisk > 20:
		recommendation = RecommendDesiccation
	case risk > 40:
		recommendation = RecommendSystemCheck
	}

	return Assessment{
		SpoilageRisk:      int(math.Round(risk)),
		SproutingRisk:     int(math.Round(sproutRisk)),
		DecayRisk:         int(math.Round(decayRisk)),
		Co2Risk:           int(math.Round(co2Risk)),
		HumidityRisk:      int(math.Round(humidRisk)),
		EstimatedSafeDays: safeDays,
		Recommendation:    recommendation,
	}
}

func clampRisk(v float64) float64 {
	return math.Max(0, math.Min(riskCap, v))
}
