package prediction_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"preservia.dev/silo-core/internal/prediction"
	"preservia.dev/silo-core/internal/store"
)

var _ = Describe("Aggregate", func() {
	It("should average the window's readings", func() {
		now := time.Now()
		readings := []store.SensorReading{
			{Temperature: 18, Humidity: 60, Co2: 4, O2: 2},
			{Temperature: 20, Humidity: 70, Co2: 5, O2: 3},
		}

		agg := prediction.Aggregate(readings, now.Add(-10*24*time.Hour), now)

		Expect(agg.AvgTemperature).To(Equal(19.0))
		Expect(agg.AvgHumidity).To(Equal(65.0))
		Expect(agg.AvgCo2).To(Equal(4.5))
		Expect(agg.AvgO2).To(Equal(2.5))
	})

	It("should compute storage age in whole days", func() {
		now := time.Now()
		readings := []store.SensorReading{{}, {}}

		agg := prediction.Aggregate(readings, now.Add(-30*24*time.Hour), now)
		Expect(agg.StorageDays).To(Equal(30))
	})

	It("should round partial days to the nearest whole day", func() {
		now := time.Now()
		readings := []store.SensorReading{{}, {}}

		agg := prediction.Aggregate(readings, now.Add(-36*time.Hour), now)
		Expect(agg.StorageDays).To(Equal(2))
	})
})

var _ = Describe("Assess", func() {
	optimal := prediction.Aggregates{
		AvgTemperature: 18.5,
		AvgHumidity:    65,
		AvgCo2:         4.5,
		AvgO2:          2,
		StorageDays:    0,
	}

	It("should report near-zero risk under optimal conditions", func() {
		out := prediction.Assess(optimal)

		Expect(out.SpoilageRisk).To(BeZero())
		Expect(out.SproutingRisk).To(BeZero())
		Expect(out.DecayRisk).To(BeZero())
		Expect(out.Co2Risk).To(BeZero())
		Expect(out.HumidityRisk).To(BeZero())
		Expect(out.Recommendation).To(Equal(prediction.RecommendOptimal))
		Expect(out.EstimatedSafeDays).To(Equal(60))
	})

	It("should cap every risk score at 95", func() {
		out := prediction.Assess(prediction.Aggregates{
			AvgTemperature: 30,
			AvgHumidity:    90,
			AvgCo2:         8,
			AvgO2:          5,
			StorageDays:    120,
		})

		Expect(out.SpoilageRisk).To(BeNumerically("<=", 95))
		Expect(out.SproutingRisk).To(BeNumerically("<=", 95))
		Expect(out.DecayRisk).To(BeNumerically("<=", 95))
		Expect(out.Co2Risk).To(BeNumerically("<=", 95))
		Expect(out.HumidityRisk).To(BeNumerically("<=", 95))
	})

	It("should never estimate fewer than one safe day", func() {
		out := prediction.Assess(prediction.Aggregates{
			AvgTemperature: 30,
			AvgHumidity:    90,
			AvgCo2:         8,
			AvgO2:          5,
			StorageDays:    120,
		})

		Expect(out.EstimatedSafeDays).To(BeNumerically(">=", 1))
	})

	It("should weigh temperature deviation into overall and decay risk", func() {
		in := optimal
		in.AvgTemperature = 22.5 // deviation 4

		out := prediction.Assess(in)
		Expect(out.SpoilageRisk).To(Equal(12)) // 4 * 3
		Expect(out.DecayRisk).To(Equal(20))    // 4 * 5
	})

	It("should score high humidity as decay and humidity risk", func() {
		in := optimal
		in.AvgHumidity = 76 // 4 over the band

		out := prediction.Assess(in)
		Expect(out.SpoilageRisk).To(Equal(8)) // 4 * 2
		Expect(out.DecayRisk).To(Equal(12))   // 4 * 3
		Expect(out.HumidityRisk).To(Equal(20))
	})

	It("should score low humidity into overall risk only", func() {
		in := optimal
		in.AvgHumidity = 56 // 4 under the band

		out := prediction.Assess(in)
		Expect(out.SpoilageRisk).To(Equal(6)) // 4 * 1.5
		Expect(out.HumidityRisk).To(BeZero())
	})

	It("should score low CO2 as sprouting risk", func() {
		in := optimal
		in.AvgCo2 = 2 // 1 under the band

		out := prediction.Assess(in)
		Expect(out.SpoilageRisk).To(Equal(12))
		Expect(out.SproutingRisk).To(Equal(20))
	})

	It("should score high CO2 as CO2 breach risk", func() {
		in := optimal
		in.AvgCo2 = 6.5 // 1 over the band

		out := prediction.Assess(in)
		Expect(out.SpoilageRisk).To(Equal(8))
		Expect(out.Co2Risk).To(Equal(15))
	})

	It("should score low O2 as decay risk", func() {
		in := optimal
		in.AvgO2 = 0.5

		out := prediction.Assess(in)
		Expect(out.SpoilageRisk).To(Equal(8))  // 0.5 * 15 = 7.5 rounds to 8
		Expect(out.DecayRisk).To(Equal(10))
	})

	It("should score high O2 as sprouting risk", func() {
		in := optimal
		in.AvgO2 = 4

		out := prediction.Assess(in)
		Expect(out.SpoilageRisk).To(Equal(10))
		Expect(out.SproutingRisk).To(Equal(12))
	})

	It("should add storage age to overall risk", func() {
		in := optimal
		in.StorageDays = 40

		out := prediction.Assess(in)
		Expect(out.SpoilageRisk).To(Equal(12)) // 40 * 0.3
	})

	It("should shrink safe days with storage age and risk", func() {
		in := optimal
		in.StorageDays = 20

		out := prediction.Assess(in)
		// 60 - 20 - (20*0.3)*0.4 = 37.6 rounds to 38
		Expect(out.EstimatedSafeDays).To(Equal(38))
	})

	Describe("recommendation priority", func() {
		It("should recommend ventilation when CO2 risk dominates", func() {
			in := optimal
			in.AvgCo2 = 8 // co2Risk 37.5 > 30

			out := prediction.Assess(in)
			Expect(out.Recommendation).To(Equal(prediction.RecommendVentilation))
		})

		It("should prefer ventilation over sprouting when both trip", func() {
			in := optimal
			in.AvgCo2 = 8
			in.AvgO2 = 5 // sproutRisk 24, under its own trip line anyway

			out := prediction.Assess(in)
			Expect(out.Recommendation).To(Equal(prediction.RecommendVentilation))
		})

		It("should recommend sprouting checks for low CO2", func() {
			in := optimal
			in.AvgCo2 = 1.5 // sproutRisk 30 > 25, co2Risk 0

			out := prediction.Assess(in)
			Expect(out.Recommendation).To(Equal(prediction.RecommendSprouting))
		})

		It("should recommend decay checks for hot, wet conditions", func() {
			in := optimal
			in.AvgTemperature = 24 // decayRisk 27.5 > 20

			out := prediction.Assess(in)
			Expect(out.Recommendation).To(Equal(prediction.RecommendDecay))
		})

		It("should recommend desiccation for high humidity alone", func() {
			in := optimal
			in.AvgHumidity = 77 // humidRisk 25 > 20, decayRisk 15 under its line

			out := prediction.Assess(in)
			Expect(out.Recommendation).To(Equal(prediction.RecommendDesiccation))
		})

		It("should recommend a system check when only the overall risk is high", func() {
			in := optimal
			in.AvgHumidity = 58  // overall 3, no category risk
			in.StorageDays = 130 // overall + 39

			out := prediction.Assess(in)
			Expect(out.Recommendation).To(Equal(prediction.RecommendSystemCheck))
		})
	})
})
