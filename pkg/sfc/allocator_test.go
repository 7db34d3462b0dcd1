package sfc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sri0013/vnf-project/pkg/flowcontrol"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

// fakeDriver is a deterministic, in-memory vnf.Driver, mirroring pkg/vnf's own test fake.
type fakeDriver struct {
	mu      sync.Mutex
	seq     int
	healthy map[string]bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{healthy: make(map[string]bool)}
}

func (d *fakeDriver) Create(image string, env map[string]string, limits vnf.ResourceLimits) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	id := image + "-container"
	d.healthy[id] = true
	return id, nil
}

func (d *fakeDriver) Destroy(containerID string) error { return nil }

func (d *fakeDriver) Inspect(containerID string) (bool, error) { return true, nil }

func (d *fakeDriver) ExecProbe(containerID string, command []string) (vnf.ProbeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.healthy[containerID] {
		return vnf.ProbeResult{ExitCode: 0}, nil
	}
	return vnf.ProbeResult{ExitCode: 1}, nil
}

type fakeRewardSink struct {
	mu        sync.Mutex
	satisfied int
	dropped   int
}

func (s *fakeRewardSink) NoteChainOutcome(satisfied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if satisfied {
		s.satisfied++
	} else {
		s.dropped++
	}
}

// testHarness wires a real vnf.Controller + flowcontrol.Controller over two catalogued
// types, with one active instance each, ready for allocator tests.
type testHarness struct {
	vnfCtrl  *vnf.Controller
	flowCtrl *flowcontrol.Controller
	reward   *fakeRewardSink
}

func newHarness(t *testing.T, types ...vnf.VNFType) *testHarness {
	t.Helper()
	entries := make([]vnf.CatalogEntry, len(types))
	for i, vt := range types {
		entries[i] = vnf.CatalogEntry{Type: vt, Image: string(vt), ProbeCommand: []string{"healthcheck"}}
	}
	catalog := vnf.NewCatalog(entries)
	driver := newFakeDriver()
	vnfCtrl := vnf.NewController(driver, catalog, vnf.Timeouts{HealthCheckTimeout: 3 * time.Second, DrainTimeout: time.Second, GracePeriod: 0}, 1, 5)
	flowCtrl := flowcontrol.NewController(vnfCtrl.Pool)

	for _, vt := range types {
		inst, err := vnfCtrl.Create(context.Background(), vt)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return inst.State() == "active" }, 3*time.Second, 20*time.Millisecond)
	}

	return &testHarness{vnfCtrl: vnfCtrl, flowCtrl: flowCtrl, reward: &fakeRewardSink{}}
}

func TestAllocateSucceedsAndActivatesChain(t *testing.T) {
	h := newHarness(t, "firewall", "encryption")
	alloc := New(h.vnfCtrl, h.flowCtrl, 4, h.reward, nil)

	req := ChainRequest{RequestID: "r1", Types: []vnf.VNFType{"firewall", "encryption"}, Priority: 5}
	ci, err := alloc.Allocate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, ci.Status)
	assert.Len(t, ci.FlowRuleIDs, 2)
	assert.Equal(t, 1, h.reward.satisfied)
}

func TestAllocateFailsFastOnMissingType(t *testing.T) {
	h := newHarness(t, "firewall")
	alloc := New(h.vnfCtrl, h.flowCtrl, 4, h.reward, nil)

	req := ChainRequest{RequestID: "r2", Types: []vnf.VNFType{"firewall", "spamfilter"}, Priority: 5}
	_, err := alloc.Allocate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 1, h.reward.dropped)
	assert.Empty(t, alloc.List())
}

func TestAllocateRevertsReservationsOnCapOverflow(t *testing.T) {
	h := newHarness(t, "firewall", "encryption")
	alloc := New(h.vnfCtrl, h.flowCtrl, 1, h.reward, nil)

	req1 := ChainRequest{RequestID: "r3", Types: []vnf.VNFType{"firewall", "encryption"}, Priority: 3}
	ci1, err := alloc.Allocate(context.Background(), req1)
	require.NoError(t, err)

	req2 := ChainRequest{RequestID: "r4", Types: []vnf.VNFType{"firewall", "encryption"}, Priority: 3}
	_, err = alloc.Allocate(context.Background(), req2)
	require.Error(t, err)

	rules := h.flowCtrl.ListRules("firewall")
	active := 0
	for _, r := range rules {
		if r.Status == flowcontrol.StatusActive {
			active++
		}
	}
	assert.Equal(t, 1, active, "the failed second request must leave no extra active rule behind")
	assert.Len(t, ci1.FlowRuleIDs, 2)

	for _, vt := range []vnf.VNFType{"firewall", "encryption"} {
		pool, ok := h.vnfCtrl.Pool(vt)
		require.True(t, ok)
		for _, inst := range pool.List() {
			assert.Equal(t, 1, inst.Reservations(), "the failed second request must leave only the first request's reservation")
		}
	}
}

func TestAllocateBidirectionalBuildsComplementaryChain(t *testing.T) {
	h := newHarness(t, "firewall", "encryption")
	alloc := New(h.vnfCtrl, h.flowCtrl, 4, h.reward, nil)

	req := ChainRequest{
		RequestID:     "r5",
		Types:         []vnf.VNFType{"firewall", "encryption"},
		Priority:      5,
		Bidirectional: true,
	}
	ci, err := alloc.Allocate(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, ci.ReverseChainID)

	reverse, ok := alloc.Get(ci.ReverseChainID)
	require.True(t, ok)
	assert.Equal(t, StatusActive, reverse.Status)
	assert.Equal(t, ci.ChainID, reverse.ReverseChainID)
}

func TestTeardownReleasesRulesAndReservations(t *testing.T) {
	h := newHarness(t, "firewall", "encryption")
	alloc := New(h.vnfCtrl, h.flowCtrl, 4, h.reward, nil)

	req := ChainRequest{RequestID: "r6", Types: []vnf.VNFType{"firewall", "encryption"}, Priority: 5}
	ci, err := alloc.Allocate(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, alloc.Teardown(context.Background(), ci.ChainID))

	for _, id := range ci.FlowRuleIDs {
		rule, ok := h.flowCtrl.RuleByID(id)
		require.True(t, ok)
		assert.Equal(t, flowcontrol.StatusRemoved, rule.Status)
	}
	for _, vt := range []vnf.VNFType{"firewall", "encryption"} {
		pool, ok := h.vnfCtrl.Pool(vt)
		require.True(t, ok)
		for _, inst := range pool.List() {
			assert.Equal(t, 0, inst.Reservations())
		}
	}
	_, ok := alloc.Get(ci.ChainID)
	assert.False(t, ok)
}

func TestReverseOrderDefaultsToReversedTypesAndRespectsOverride(t *testing.T) {
	req := ChainRequest{Types: []vnf.VNFType{"firewall", "encryption", "spamfilter"}}
	assert.Equal(t, []vnf.VNFType{"spamfilter", "encryption", "firewall"}, req.reverseOrder())

	req.ReverseTypes = []vnf.VNFType{"encryption", "firewall"}
	assert.Equal(t, []vnf.VNFType{"encryption", "firewall"}, req.reverseOrder())
}
