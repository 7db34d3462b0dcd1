// Package e2e runs spec §8's black-box scenario checks end-to-end against the real
// control-plane wiring, the way the teacher's own tests/e2e package drove full intent
// flows with ginkgo/gomega rather than bare *testing.T assertions.
package e2e

import (
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func TestE2E(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Orchestrator Control Plane E2E Suite")
}
