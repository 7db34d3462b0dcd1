package agent

import (
	"math"
	"math/rand"
	"sync"

	"github.com/sri0013/vnf-project/pkg/config"
)

// Config bundles the agent's hyperparameters, mirroring spec §4.6's defaults.
type Config struct {
	LearningRate     float64
	Gamma            float64
	BatchSize        int
	MemorySize       int
	Alpha            float64 // replay priority exponent, default 0.6
	BetaStart        float64 // importance-sampling beta, default 0.4
	BetaEnd          float64 // default 1.0
	BetaAnnealSteps  int
	EpsilonStart     float64
	EpsilonMin       float64
	EpsilonDecay     float64
	TargetUpdateFreq int
	GradClipNorm     float64 // default 1.0
	Hidden           int
	NumHeads         int
}

// FromDRLConfig builds an agent.Config from the loaded drl_config section.
func FromDRLConfig(c config.DRLConfig) Config {
	return Config{
		LearningRate:     c.LearningRate,
		Gamma:            c.Gamma,
		BatchSize:        c.BatchSize,
		MemorySize:       c.MemorySize,
		Alpha:            0.6,
		BetaStart:        0.4,
		BetaEnd:          1.0,
		BetaAnnealSteps:  100000,
		EpsilonStart:     c.EpsilonStart,
		EpsilonMin:       c.EpsilonMin,
		EpsilonDecay:     c.EpsilonDecay,
		TargetUpdateFreq: c.TargetUpdateFreq,
		GradClipNorm:     1.0,
		Hidden:           64,
		NumHeads:         2,
	}
}

// Agent is the learning agent (C6): select_action / observe / train_step per spec §4.6,
// backed by a dueling DQN with attention, a prioritized replay buffer, and a double-DQN
// target network soft-synced every TargetUpdateFreq steps.
type Agent struct {
	mu sync.Mutex

	cfg    Config
	space  ActionSpace
	online *qNetwork
	target *qNetwork
	replay *PrioritizedReplay
	rnd    *rand.Rand

	epsilon   float64
	step      int
	betaStep  int
}

// New builds an Agent over the given action space.
func New(cfg Config, space ActionSpace, seed int64) *Agent {
	rnd := rand.New(rand.NewSource(seed))
	online := newQNetwork(len(space.Types()), FeaturesPerType, cfg.NumHeads, cfg.Hidden, space.Size(), rnd)
	target := newQNetwork(len(space.Types()), FeaturesPerType, cfg.NumHeads, cfg.Hidden, space.Size(), rnd)
	target.cloneFrom(online, 1.0)

	return &Agent{
		cfg:     cfg,
		space:   space,
		online:  online,
		target:  target,
		replay:  NewPrioritizedReplay(cfg.MemorySize, cfg.Alpha, rnd),
		rnd:     rnd,
		epsilon: cfg.EpsilonStart,
	}
}

// SelectAction is deterministic given the internal RNG state: ties are broken by action
// index, and exploration draws come from the Agent's own seeded source, per spec §4.6's
// contract that select_action is deterministic given state and seed.
func (a *Agent) SelectAction(state State) Action {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rnd.Float64() < a.epsilon {
		idx := a.rnd.Intn(a.space.Size())
		return a.space.Decode(idx)
	}

	q, _ := a.online.forward(state)
	best := 0
	for i := 1; i < len(q); i++ {
		if q[i] > q[best] {
			best = i
		}
	}
	return a.space.Decode(best)
}

// Observe stores a transition and decays epsilon. It is non-blocking: it only appends to
// the in-memory replay buffer.
func (a *Agent) Observe(state State, action Action, reward float64, next State, done bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.replay.Add(Experience{
		State:     state,
		ActionIdx: a.space.Encode(action),
		Reward:    reward,
		NextState: next,
		Done:      done,
	})

	a.epsilon = math.Max(a.cfg.EpsilonMin, a.epsilon*a.cfg.EpsilonDecay)
}

// TrainStep runs one optimization step if the buffer holds at least BatchSize
// transitions, per spec §4.6's "runs opportunistically" contract. Returns false if no
// step was taken.
func (a *Agent) TrainStep() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.replay.Len() < a.cfg.BatchSize {
		return false
	}

	beta := a.cfg.BetaStart + (a.cfg.BetaEnd-a.cfg.BetaStart)*math.Min(1, float64(a.betaStep)/float64(maxInt1(a.cfg.BetaAnnealSteps)))
	a.betaStep++

	batch, idxs, isWeights := a.replay.Sample(a.cfg.BatchSize, beta)
	tdErrors := make([]float64, len(batch))

	for i, exp := range batch {
		qOnline, cache := a.online.forward(exp.State)

		var target float64
		if exp.Done {
			target = exp.Reward
		} else {
			qNextOnline, _ := a.online.forward(exp.NextState)
			bestNext := argmax(qNextOnline)
			qNextTarget, _ := a.target.forward(exp.NextState)
			target = exp.Reward + a.cfg.Gamma*qNextTarget[bestNext]
		}

		tdError := qOnline[exp.ActionIdx] - target
		tdErrors[i] = tdError

		dQ := make([]float64, len(qOnline))
		dQ[exp.ActionIdx] = tdError * isWeights[i]

		grads := a.online.backward(cache, dQ)
		grads.clipNorm(a.cfg.GradClipNorm)
		a.online.applyGradients(grads, a.cfg.LearningRate)
	}

	a.replay.UpdatePriorities(idxs, tdErrors)

	a.step++
	if a.step%a.cfg.TargetUpdateFreq == 0 {
		a.target.cloneFrom(a.online, 1.0)
	}
	return true
}

func argmax(xs []float64) int {
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}

func maxInt1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
