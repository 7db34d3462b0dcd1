package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceLifecycleHappyPath(t *testing.T) {
	mgr := NewInstanceManager()
	m, err := mgr.Create("inst-1", InstanceStarting)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Fire(ctx, "inst-1", EventProbeSucceeded, nil))
	assert.Equal(t, InstanceActive, m.Current())

	require.NoError(t, mgr.Fire(ctx, "inst-1", EventDrainStarted, nil))
	assert.Equal(t, InstanceDraining, m.Current())

	require.NoError(t, mgr.Fire(ctx, "inst-1", EventDestroyed, nil))
	assert.Equal(t, InstanceRemoved, m.Current())

	assert.Len(t, m.History(), 3)
}

func TestInstanceProbeTimeoutBypassesActive(t *testing.T) {
	mgr := NewInstanceManager()
	_, err := mgr.Create("inst-2", InstanceStarting)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Fire(ctx, "inst-2", EventProbeTimedOut, nil))

	m, ok := mgr.Get("inst-2")
	require.True(t, ok)
	assert.Equal(t, InstanceRemoved, m.Current())

	// removed is terminal: no further edges defined.
	err = mgr.Fire(ctx, "inst-2", EventDrainStarted, nil)
	assert.ErrorIs(t, err, ErrNoTransition)
}

func TestFireRejectsUndefinedTransition(t *testing.T) {
	mgr := NewInstanceManager()
	_, err := mgr.Create("inst-3", InstanceActive)
	require.NoError(t, err)

	ctx := context.Background()
	err = mgr.Fire(ctx, "inst-3", EventProbeSucceeded, nil)
	assert.ErrorIs(t, err, ErrNoTransition)
}

func TestGuardVetoesTransition(t *testing.T) {
	table := NewTable(
		Transition{
			From:  ScalingSteady,
			Event: EventScaleOutStarted,
			To:    ScalingOut,
			Guard: func(ctx context.Context, m *Machine, data interface{}) bool {
				return false
			},
		},
	)
	mgr := NewManager(table)
	_, err := mgr.Create("firewall", ScalingSteady)
	require.NoError(t, err)

	err = mgr.Fire(context.Background(), "firewall", EventScaleOutStarted, nil)
	assert.ErrorIs(t, err, ErrGuardVetoed)

	m, _ := mgr.Get("firewall")
	assert.Equal(t, ScalingSteady, m.Current())
}

func TestActionFailureLeavesStateUnchanged(t *testing.T) {
	boom := assert.AnError
	table := NewTable(
		Transition{
			From:  ScalingSteady,
			Event: EventScaleOutStarted,
			To:    ScalingOut,
			Action: func(ctx context.Context, m *Machine, data interface{}) error {
				return boom
			},
		},
	)
	mgr := NewManager(table)
	_, err := mgr.Create("firewall", ScalingSteady)
	require.NoError(t, err)

	err = mgr.Fire(context.Background(), "firewall", EventScaleOutStarted, nil)
	assert.ErrorIs(t, err, boom)

	m, _ := mgr.Get("firewall")
	assert.Equal(t, ScalingSteady, m.Current())
}

type recordingListener struct {
	records []Record
}

func (l *recordingListener) OnTransition(ctx context.Context, m *Machine, rec Record) {
	l.records = append(l.records, rec)
}

func TestManagerNotifiesListeners(t *testing.T) {
	mgr := NewScalingManager()
	listener := &recordingListener{}
	mgr.AddListener(listener)

	_, err := mgr.Create("firewall", ScalingSteady)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Fire(ctx, "firewall", EventScaleOutStarted, nil))
	require.NoError(t, mgr.Fire(ctx, "firewall", EventScaleSucceeded, nil))

	require.Len(t, listener.records, 2)
	assert.Equal(t, ScalingOut, listener.records[0].To)
	assert.Equal(t, ScalingCooldown, listener.records[1].To)
}

func TestManagerCreateRejectsDuplicateID(t *testing.T) {
	mgr := NewChainManager()
	_, err := mgr.Create("chain-1", ChainInitialState)
	require.NoError(t, err)

	_, err = mgr.Create("chain-1", ChainInitialState)
	assert.Error(t, err)
}

func TestChainLifecycleFailurePath(t *testing.T) {
	mgr := NewChainManager()
	_, err := mgr.Create("chain-2", ChainInitialState)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Fire(ctx, "chain-2", EventChainFailed, nil))
	require.NoError(t, mgr.Fire(ctx, "chain-2", EventChainTornDown, nil))

	m, _ := mgr.Get("chain-2")
	assert.Equal(t, ChainTornDown, m.Current())
}
