package agent

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/sri0013/vnf-project/pkg/pathsafe"
)

// networkSnapshot is qNetwork's gob-serializable form; gonum's matrix types carry
// unexported internals that do not round-trip through encoding/gob, so Save/Load copy
// weights into and out of plain slices.
type networkSnapshot struct {
	HeadWeights [][]float64
	W1          []float64
	W1Rows      int
	W1Cols      int
	B1          []float64
	Wv          []float64
	Bv          float64
	Wa          []float64
	WaRows      int
	WaCols      int
	Ba          []float64
}

func (n *qNetwork) snapshot() networkSnapshot {
	heads := make([][]float64, len(n.headWeights))
	for i, h := range n.headWeights {
		heads[i] = append([]float64(nil), h.RawVector().Data...)
	}
	waRows, waCols := n.wa.Dims()
	return networkSnapshot{
		HeadWeights: heads,
		W1:          append([]float64(nil), n.w1.RawMatrix().Data...),
		W1Rows:      n.hidden,
		W1Cols:      n.numHeads * n.blockDim,
		B1:          append([]float64(nil), n.b1.RawVector().Data...),
		Wv:          append([]float64(nil), n.wv.RawVector().Data...),
		Bv:          n.bv,
		Wa:          append([]float64(nil), n.wa.RawMatrix().Data...),
		WaRows:      waRows,
		WaCols:      waCols,
		Ba:          append([]float64(nil), n.ba.RawVector().Data...),
	}
}

// checkpointState is the top-level gob payload: both networks plus the exploration and
// step counters. The replay buffer is not saved, so a resumed agent starts with an empty one.
type checkpointState struct {
	Online  networkSnapshot
	Target  networkSnapshot
	Epsilon float64
	Step    int
	Episode int
}

// Save persists the agent's weights and training counters to path every CheckpointEvery
// episodes, per spec §4.6's "Persistence" clause. path is validated through pathsafe
// before any file is touched.
func (a *Agent) Save(validator *pathsafe.Validator, path string, episode int) error {
	if err := validator.ValidatePath(path); err != nil {
		return fmt.Errorf("checkpoint path rejected: %w", err)
	}

	a.mu.Lock()
	state := checkpointState{
		Online:  a.online.snapshot(),
		Target:  a.target.snapshot(),
		Epsilon: a.epsilon,
		Step:    a.step,
		Episode: episode,
	}
	a.mu.Unlock()

	f, err := pathsafe.SecureCreateFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(state)
}

// Load restores weights and counters from path, returning the episode number the
// checkpoint was taken at.
func (a *Agent) Load(validator *pathsafe.Validator, path string) (int, error) {
	if err := validator.ValidatePath(path); err != nil {
		return 0, fmt.Errorf("checkpoint path rejected: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var state checkpointState
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.online.restore(state.Online)
	a.target.restore(state.Target)
	a.epsilon = state.Epsilon
	a.step = state.Step
	return state.Episode, nil
}

// LoadOrNew builds an Agent from the checkpoint at path if it exists, otherwise starts
// from random weights, per spec §4.6's fallback contract. Returns the resumed episode
// count (0 for a fresh agent).
func LoadOrNew(cfg Config, space ActionSpace, seed int64, validator *pathsafe.Validator, path string) (*Agent, int, error) {
	a := New(cfg, space, seed)
	if path == "" {
		return a, 0, nil
	}
	if _, err := os.Stat(path); err != nil {
		return a, 0, nil
	}
	episode, err := a.Load(validator, path)
	if err != nil {
		return nil, 0, err
	}
	return a, episode, nil
}

func (n *qNetwork) restore(s networkSnapshot) {
	for i, h := range s.HeadWeights {
		if i < len(n.headWeights) {
			n.headWeights[i] = mat.NewVecDense(n.blockDim, append([]float64(nil), h...))
		}
	}
	n.w1 = mat.NewDense(s.W1Rows, s.W1Cols, append([]float64(nil), s.W1...))
	n.b1 = mat.NewVecDense(len(s.B1), append([]float64(nil), s.B1...))
	n.wv = mat.NewVecDense(len(s.Wv), append([]float64(nil), s.Wv...))
	n.bv = s.Bv
	n.wa = mat.NewDense(s.WaRows, s.WaCols, append([]float64(nil), s.Wa...))
	n.ba = mat.NewVecDense(len(s.Ba), append([]float64(nil), s.Ba...))
}
