package vnf

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sri0013/vnf-project/pkg/apierrors"
)

// fakeDriver is a deterministic, in-memory Driver for tests.
type fakeDriver struct {
	mu          sync.Mutex
	nextID      int
	healthy     map[string]bool
	destroyed   map[string]bool
	createErr   error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{healthy: make(map[string]bool), destroyed: make(map[string]bool)}
}

func (d *fakeDriver) Create(image string, env map[string]string, limits ResourceLimits) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return "", d.createErr
	}
	d.nextID++
	id := image + "-container"
	d.healthy[id] = true
	return id, nil
}

func (d *fakeDriver) Destroy(containerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed[containerID] = true
	return nil
}

func (d *fakeDriver) Inspect(containerID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.destroyed[containerID], nil
}

func (d *fakeDriver) ExecProbe(containerID string, command []string) (ProbeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.healthy[containerID] {
		return ProbeResult{ExitCode: 0}, nil
	}
	return ProbeResult{ExitCode: 1}, nil
}

func testCatalog() *Catalog {
	return NewCatalog([]CatalogEntry{
		{Type: "firewall", Image: "firewall", ProbeCommand: []string{"healthcheck"}},
	})
}

func TestCreateTransitionsToActiveOnSuccessfulProbe(t *testing.T) {
	driver := newFakeDriver()
	ctrl := NewController(driver, testCatalog(), Timeouts{HealthCheckTimeout: 3 * time.Second, DrainTimeout: time.Second, GracePeriod: 0}, 1, 5)

	inst, err := ctrl.Create(context.Background(), "firewall")
	require.NoError(t, err)
	assert.Equal(t, "starting", string(inst.State()))

	require.Eventually(t, func() bool {
		return inst.State() == "active"
	}, 3*time.Second, 50*time.Millisecond)
}

func TestCreateHealthTimeoutDestroysAndNotifies(t *testing.T) {
	driver := newFakeDriver()
	ctrl := NewController(driver, testCatalog(), Timeouts{HealthCheckTimeout: 1200 * time.Millisecond, DrainTimeout: time.Second, GracePeriod: 0}, 1, 5)

	var notifiedID string
	var mu sync.Mutex
	ctrl.OnHealthTimeout = func(inst *Instance, err *apierrors.Error) {
		mu.Lock()
		notifiedID = inst.ID
		mu.Unlock()
	}

	inst, err := ctrl.Create(context.Background(), "firewall")
	require.NoError(t, err)

	// mark the backing container unhealthy so the probe never succeeds
	driver.mu.Lock()
	for id := range driver.healthy {
		driver.healthy[id] = false
	}
	driver.mu.Unlock()

	require.Eventually(t, func() bool {
		return inst.State() == "removed"
	}, 3*time.Second, 50*time.Millisecond)

	pool, _ := ctrl.Pool("firewall")
	_, stillPresent := pool.Get(inst.ID)
	assert.False(t, stillPresent)

	mu.Lock()
	assert.Equal(t, inst.ID, notifiedID)
	mu.Unlock()
}

func TestDrainThenDestroyIsIdempotent(t *testing.T) {
	driver := newFakeDriver()
	ctrl := NewController(driver, testCatalog(), Timeouts{HealthCheckTimeout: time.Second, DrainTimeout: 50 * time.Millisecond, GracePeriod: 0}, 1, 5)

	inst, err := ctrl.Create(context.Background(), "firewall")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return inst.State() == "active" }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, ctrl.Drain(context.Background(), inst.ID, 10*time.Millisecond))
	assert.Equal(t, "draining", string(inst.State()))

	require.Eventually(t, func() bool { return inst.State() == "removed" }, 2*time.Second, 20*time.Millisecond)

	// the drained instance has left its pool; destroying it again is a no-op that succeeds.
	err = ctrl.Destroy(context.Background(), inst.ID)
	assert.NoError(t, err)
}

func TestPoolEnforcesMaxInstances(t *testing.T) {
	driver := newFakeDriver()
	ctrl := NewController(driver, testCatalog(), DefaultTimeouts(), 1, 1)

	_, err := ctrl.Create(context.Background(), "firewall")
	require.NoError(t, err)

	_, err = ctrl.Create(context.Background(), "firewall")
	assert.Error(t, err)
}

func TestCreateUnknownTypeIsInvalidAction(t *testing.T) {
	driver := newFakeDriver()
	ctrl := NewController(driver, testCatalog(), DefaultTimeouts(), 1, 5)

	_, err := ctrl.Create(context.Background(), "nonexistent")
	assert.Error(t, err)
}
