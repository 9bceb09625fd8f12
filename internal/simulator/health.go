package simulator

import "math"

// HealthScore derives a 0–100 score from post-update sensor values. Each
// metric deducts proportionally to its distance from the optimal band, with
// an independent cap per metric.
func HealthScore(temperature, humidity, co2, o2, battery float64) int {
	score := 100.0

	if temperature < 15 || temperature > 22 {
		score -= math.Min(20, math.Abs(temperature-18.5)*3)
	}
	if humidity < 60 || humidity > 72 {
		score -= math.Min(20, math.Abs(humidity-66)*1.5)
	}
	if co2 < 3 || co2 > 5.5 {
		score -= math.Min(25, math.Abs(co2-4.5)*8)
	}
	if o2 < 1 || o2 > 3 {
		score -= math.Min(25, math.Abs(o2-2)*15)
	}
	if battery < 20 {
		score -= 10
	}

	return int(math.Round(clamp(score, 0, 100)))
}

// EstimatedDaysRemaining maps the health score onto a shelf-life estimate,
// floored at zero.
func EstimatedDaysRemaining(healthScore int) int {
	return int(math.Round(math.Max(0, float64(healthScore)/100*60)))
}
