package simulator_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"preservia.dev/silo-core/internal/simulator"
)

var _ = Describe("HealthScore", func() {
	It("should score perfect conditions at 100", func() {
		Expect(simulator.HealthScore(18.5, 65, 4.5, 2, 90)).To(Equal(100))
	})

	It("should not deduct at the band edges", func() {
		Expect(simulator.HealthScore(22, 72, 5.5, 3, 20)).To(Equal(100))
		Expect(simulator.HealthScore(15, 60, 3, 1, 100)).To(Equal(100))
	})

	It("should deduct proportionally to temperature deviation", func() {
		// |23 - 18.5| * 3 = 13.5 -> 86.5 rounds to 87
		Expect(simulator.HealthScore(23, 65, 4.5, 2, 90)).To(Equal(87))
	})

	It("should cap the temperature deduction at 20", func() {
		// |30 - 18.5| * 3 = 34.5, capped
		Expect(simulator.HealthScore(30, 65, 4.5, 2, 90)).To(Equal(80))
	})

	It("should deduct for humidity out of band", func() {
		// |80 - 66| * 1.5 = 21, capped at 20
		Expect(simulator.HealthScore(18.5, 80, 4.5, 2, 90)).To(Equal(80))
	})

	It("should deduct for CO2 out of band", func() {
		// |6.5 - 4.5| * 8 = 16 -> 84
		Expect(simulator.HealthScore(18.5, 65, 6.5, 2, 90)).To(Equal(84))
	})

	It("should deduct for O2 out of band", func() {
		// |0.5 - 2| * 15 = 22.5 -> 77.5 rounds to 78
		Expect(simulator.HealthScore(18.5, 65, 4.5, 0.5, 90)).To(Equal(78))
	})

	It("should deduct a flat 10 for low battery", func() {
		Expect(simulator.HealthScore(18.5, 65, 4.5, 2, 19)).To(Equal(90))
	})

	It("should combine deductions across metrics", func() {
		// temp 13.5 + battery 10 = 23.5 -> 76.5 rounds to 77
		Expect(simulator.HealthScore(23, 65, 4.5, 2, 10)).To(Equal(77))
	})

	It("should never go below zero", func() {
		Expect(simulator.HealthScore(30, 90, 8, 5, 0)).To(BeNumerically(">=", 0))
	})
})

var _ = Describe("EstimatedDaysRemaining", func() {
	It("should map a full score to the full shelf life", func() {
		Expect(simulator.EstimatedDaysRemaining(100)).To(Equal(60))
	})

	It("should scale linearly with the score", func() {
		Expect(simulator.EstimatedDaysRemaining(50)).To(Equal(30))
		Expect(simulator.EstimatedDaysRemaining(75)).To(Equal(45))
	})

	It("should floor at zero", func() {
		Expect(simulator.EstimatedDaysRemaining(0)).To(Equal(0))
	})
})
