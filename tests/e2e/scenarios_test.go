package e2e

import (
	"context"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/sri0013/vnf-project/internal/scenarios"
)

// runScenario drives a scenarios.Scenario and asserts it passed, surfacing its Detail
// (or Err) in the ginkgo failure message the way the teacher's suite logged assertion
// context via testify's require.
func runScenario(s scenarios.Scenario) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res := s.Run(ctx)
	gomega.Expect(res.Err).NotTo(gomega.HaveOccurred(), s.Name)
	gomega.Expect(res.Passed).To(gomega.BeTrue(), "%s: %s", s.Name, res.Detail)
}

var _ = ginkgo.Describe("Scaling control loop", func() {
	ginkgo.It("scales out proactively ahead of a forecasted CPU breach", func() {
		runScenario(scenarios.A)
	})

	ginkgo.It("never drains the last instance of a VNF type under an active chain", func() {
		runScenario(scenarios.B)
	})
})

var _ = ginkgo.Describe("Chain allocation", func() {
	ginkgo.It("rolls back every reservation and flow rule when a hop overflows capacity", func() {
		runScenario(scenarios.C)
	})
})

var _ = ginkgo.Describe("Rolling update", func() {
	ginkgo.It("keeps next_instance resolving to an active instance through scale-out, drain, and destroy", func() {
		runScenario(scenarios.D)
	})
})

var _ = ginkgo.Describe("Forecast fallback", func() {
	ginkgo.It("falls back to threshold-only decisions when the forecast window is too short", func() {
		runScenario(scenarios.E)
	})
})

var _ = ginkgo.Describe("Metrics exposition", func() {
	ginkgo.It("reports deterministic label series with the process-start gauge present", func() {
		runScenario(scenarios.F)
	})
})
