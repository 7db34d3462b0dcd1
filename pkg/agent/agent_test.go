package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sri0013/vnf-project/pkg/config"
	"github.com/sri0013/vnf-project/pkg/pathsafe"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

func testConfig() Config {
	return Config{
		LearningRate:     0.01,
		Gamma:            0.9,
		BatchSize:        4,
		MemorySize:       100,
		Alpha:            0.6,
		BetaStart:        0.4,
		BetaEnd:          1.0,
		BetaAnnealSteps:  1000,
		EpsilonStart:     1.0,
		EpsilonMin:       0.01,
		EpsilonDecay:     0.995,
		TargetUpdateFreq: 10,
		GradClipNorm:     1.0,
		Hidden:           8,
		NumHeads:         2,
	}
}

func testSpace() ActionSpace {
	return NewActionSpace([]vnf.VNFType{"firewall", "dpi"})
}

func randomState(space ActionSpace) State {
	s := make(State, len(space.Types())*FeaturesPerType)
	for i := range s {
		s[i] = float64(i%7) - 3
	}
	return s
}

func TestActionSpaceEncodeDecodeRoundTrips(t *testing.T) {
	space := testSpace()
	require.Equal(t, 6, space.Size())
	for i := 0; i < space.Size(); i++ {
		act := space.Decode(i)
		assert.Equal(t, i, space.Encode(act))
	}
}

func TestSelectActionIsDeterministicGivenSeed(t *testing.T) {
	cfg := testConfig()
	cfg.EpsilonStart, cfg.EpsilonMin = 0, 0 // force pure greedy selection

	a1 := New(cfg, testSpace(), 42)
	a2 := New(cfg, testSpace(), 42)

	state := randomState(testSpace())
	assert.Equal(t, a1.SelectAction(state), a2.SelectAction(state))
}

func TestTrainStepRequiresFullBatch(t *testing.T) {
	cfg := testConfig()
	a := New(cfg, testSpace(), 1)
	space := testSpace()

	assert.False(t, a.TrainStep())

	for i := 0; i < cfg.BatchSize-1; i++ {
		a.Observe(randomState(space), space.Decode(0), 1.0, randomState(space), false)
	}
	assert.False(t, a.TrainStep())

	a.Observe(randomState(space), space.Decode(0), 1.0, randomState(space), false)
	assert.True(t, a.TrainStep())
}

func TestTrainStepReducesTDErrorOnRepeatedTransition(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.LearningRate = 0.05
	a := New(cfg, testSpace(), 3)
	space := testSpace()

	s := randomState(space)
	ns := randomState(space)
	act := space.Decode(0)

	qBefore, _ := a.online.forward(s)
	for i := 0; i < 20; i++ {
		a.replay.Add(Experience{State: s, ActionIdx: space.Encode(act), Reward: 5, NextState: ns, Done: true})
		a.TrainStep()
	}
	qAfter, _ := a.online.forward(s)

	errBefore := qBefore[space.Encode(act)] - 5
	errAfter := qAfter[space.Encode(act)] - 5
	assert.Less(t, abs(errAfter), abs(errBefore))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestRewardSumsWeightedOutcomes(t *testing.T) {
	weights := config.RewardWeights{
		ChainSatisfied:     2.0,
		ChainDropped:       -1.5,
		InvalidAction:      -1.0,
		UnnecessaryDrain:   -0.5,
		ResourceEfficiency: 0.3,
		SLAViolation:       -0.8,
	}
	r := Reward(weights, Outcome{ChainSatisfied: true, SLAViolation: true})
	assert.InDelta(t, 2.0-0.8, r, 1e-9)
}

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.ckpt")

	validator := pathsafe.NewValidator()
	validator.AddAllowedDirectory(pathsafe.AllowedDirectory{Path: dir, Recursive: false})

	cfg := testConfig()
	space := testSpace()
	a := New(cfg, space, 9)

	require.NoError(t, a.Save(validator, path, 5))

	restored := New(cfg, space, 123) // different seed, weights should be overwritten by Load
	episode, err := restored.Load(validator, path)
	require.NoError(t, err)
	assert.Equal(t, 5, episode)

	_, err = os.Stat(path)
	require.NoError(t, err)

	state := randomState(space)
	qOriginal, _ := a.online.forward(state)
	qRestored, _ := restored.online.forward(state)
	assert.InDeltaSlice(t, qOriginal, qRestored, 1e-9)
}

func TestLoadOrNewFallsBackToRandomWeightsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.ckpt")
	validator := pathsafe.NewValidator()
	validator.AddAllowedDirectory(pathsafe.AllowedDirectory{Path: dir, Recursive: false})

	a, episode, err := LoadOrNew(testConfig(), testSpace(), 1, validator, path)
	require.NoError(t, err)
	assert.Equal(t, 0, episode)
	assert.NotNil(t, a)
}
