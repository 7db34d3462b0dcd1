package vnf

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sri0013/vnf-project/pkg/apierrors"
	"github.com/sri0013/vnf-project/pkg/lifecycle"
)

// Timeouts bundles the create/drain durations configured under rolling_update.* (spec §6).
type Timeouts struct {
	HealthCheckTimeout time.Duration
	DrainTimeout       time.Duration
	GracePeriod        time.Duration
}

// DefaultTimeouts matches the spec's literal defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		HealthCheckTimeout: 30 * time.Second,
		DrainTimeout:       60 * time.Second,
		GracePeriod:        10 * time.Second,
	}
}

// Controller implements C3: instance creation/draining/destruction over a Driver.
type Controller struct {
	driver   Driver
	catalog  *Catalog
	timeouts Timeouts
	machines *lifecycle.Manager
	pools    map[VNFType]*Pool
	log      *logrus.Entry

	// OnHealthTimeout, if set, is invoked (from the probe goroutine) when an instance
	// fails to become active within HealthCheckTimeout: "caller notified with
	// health-timeout" per spec §4.3.
	OnHealthTimeout func(inst *Instance, err *apierrors.Error)
}

// NewController wires a Controller over driver/catalog, with one Pool per VNFType bound
// to minInstances/maxInstances.
func NewController(driver Driver, catalog *Catalog, timeouts Timeouts, minInstances, maxInstances int) *Controller {
	machines := lifecycle.NewInstanceManager()
	pools := make(map[VNFType]*Pool)
	for _, t := range catalog.Types() {
		pools[t] = NewPool(t, minInstances, maxInstances, machines)
	}
	return &Controller{
		driver:   driver,
		catalog:  catalog,
		timeouts: timeouts,
		machines: machines,
		pools:    pools,
		log:      logrus.WithField("component", "vnf_controller"),
	}
}

// Pool returns the InstancePool for t, if catalogued.
func (c *Controller) Pool(t VNFType) (*Pool, bool) {
	p, ok := c.pools[t]
	return p, ok
}

// Create launches a container for t and returns immediately with state "starting"; the
// health probe runs in the background until HealthCheckTimeout.
func (c *Controller) Create(ctx context.Context, t VNFType) (*Instance, error) {
	entry, ok := c.catalog.Lookup(t)
	if !ok {
		return nil, apierrors.InvalidAction(fmt.Sprintf("unknown vnf type %q", t), map[string]interface{}{"vnf_type": string(t)})
	}
	pool, ok := c.pools[t]
	if !ok {
		return nil, apierrors.InvalidAction(fmt.Sprintf("no pool for vnf type %q", t), nil)
	}

	containerID, err := c.driver.Create(entry.Image, entry.Env, entry.Limits)
	if err != nil {
		return nil, classifyCreateError(t, err)
	}

	id := uuid.NewString()
	if _, err := c.machines.Create(id, lifecycle.InstanceStarting); err != nil {
		return nil, apierrors.Fatal("instance id collision", err)
	}
	inst := &Instance{ID: id, Type: t, CreatedAt: time.Now()}
	m, _ := c.machines.Get(id)
	inst.machine = m
	m.SetMeta("container_id", containerID)

	if err := pool.Add(inst); err != nil {
		c.machines.Remove(id)
		_ = c.driver.Destroy(containerID)
		return nil, err
	}

	go c.runHealthProbe(inst, containerID, entry.ProbeCommand)
	return inst, nil
}

func (c *Controller) runHealthProbe(inst *Instance, containerID string, probeCmd []string) {
	deadline := time.Now().Add(c.timeouts.HealthCheckTimeout)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		<-ticker.C
		result, err := c.driver.ExecProbe(containerID, probeCmd)
		if err == nil && result.ExitCode == 0 {
			ctx, cancel := context.WithTimeout(context.Background(), c.timeouts.HealthCheckTimeout)
			_ = c.machines.Fire(ctx, inst.ID, lifecycle.EventProbeSucceeded, nil)
			cancel()
			return
		}
	}

	elapsed := c.timeouts.HealthCheckTimeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = c.machines.Fire(ctx, inst.ID, lifecycle.EventProbeTimedOut, nil)
	cancel()
	_ = c.driver.Destroy(containerID)

	if pool, ok := c.pools[inst.Type]; ok {
		pool.Remove(inst.ID)
	}

	if c.OnHealthTimeout != nil {
		c.OnHealthTimeout(inst, apierrors.HealthTimeout(inst.ID, elapsed))
	}
}

// Drain marks inst "draining" and schedules destroy after DrainTimeout+GracePeriod. The
// flow controller stops routing to it immediately because NextInstance only selects
// active instances.
func (c *Controller) Drain(ctx context.Context, id string, grace time.Duration) error {
	pool, inst, err := c.lookup(id)
	if err != nil {
		return err
	}
	if err := c.machines.Fire(ctx, id, lifecycle.EventDrainStarted, nil); err != nil {
		if err == lifecycle.ErrNoTransition {
			return apierrors.InvalidAction("instance is not active", map[string]interface{}{"instance_id": id})
		}
		return err
	}

	if grace <= 0 {
		grace = c.timeouts.GracePeriod
	}
	go func() {
		time.Sleep(c.timeouts.DrainTimeout + grace)
		containerID, _ := inst.machine.Meta("container_id")
		cid, _ := containerID.(string)
		destroyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = c.destroyLocked(destroyCtx, pool, inst, cid)
	}()
	return nil
}

// Destroy removes the container for id; idempotent — destroying an already-removed
// instance succeeds without error.
func (c *Controller) Destroy(ctx context.Context, id string) error {
	pool, inst, err := c.lookup(id)
	if err != nil {
		// a removed instance has left its pool but its machine still records the state
		if m, ok := c.machines.Get(id); ok && m.Current() == lifecycle.InstanceRemoved {
			return nil
		}
		return err
	}
	containerID, _ := inst.machine.Meta("container_id")
	cid, _ := containerID.(string)
	return c.destroyLocked(ctx, pool, inst, cid)
}

func (c *Controller) destroyLocked(ctx context.Context, pool *Pool, inst *Instance, containerID string) error {
	if inst.State() == lifecycle.InstanceRemoved {
		return nil
	}
	if err := c.driver.Destroy(containerID); err != nil {
		return apierrors.TransientIO("destroy", err)
	}
	if inst.State() != lifecycle.InstanceDraining {
		_ = c.machines.Fire(ctx, inst.ID, lifecycle.EventDrainStarted, nil)
	}
	if err := c.machines.Fire(ctx, inst.ID, lifecycle.EventDestroyed, nil); err != nil && err != lifecycle.ErrNoTransition {
		return err
	}
	pool.Remove(inst.ID)
	return nil
}

// ContainerID returns the backing container id for an instance, for callers (e.g. the
// scraper's ProbeFunc) that need to address the Driver directly by instance id.
func (c *Controller) ContainerID(id string) (string, bool) {
	_, inst, err := c.lookup(id)
	if err != nil {
		return "", false
	}
	v, ok := inst.machine.Meta("container_id")
	if !ok {
		return "", false
	}
	cid, ok := v.(string)
	return cid, ok
}

// List returns a snapshot of every known instance of t.
func (c *Controller) List(t VNFType) []*Instance {
	pool, ok := c.pools[t]
	if !ok {
		return nil
	}
	return pool.List()
}

func (c *Controller) lookup(id string) (*Pool, *Instance, error) {
	for _, pool := range c.pools {
		if inst, ok := pool.Get(id); ok {
			return pool, inst, nil
		}
	}
	return nil, nil, apierrors.Capacity("instance not found", map[string]interface{}{"instance_id": id})
}
