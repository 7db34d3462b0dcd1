package agent

import (
	"math"
	"math/rand"
)

// replayEntry pairs an experience with its current priority.
type replayEntry struct {
	exp      Experience
	priority float64
}

// PrioritizedReplay is a fixed-capacity ring buffer whose sampling probability is
// proportional to |TD error|^alpha (spec §4.6, default alpha = 0.6), with importance
// sampling weights correcting the resulting bias (beta annealed 0.4 -> 1.0).
type PrioritizedReplay struct {
	capacity int
	alpha    float64
	entries  []replayEntry
	next     int
	maxPrio  float64
	rnd      *rand.Rand
}

// NewPrioritizedReplay builds a buffer of the given capacity.
func NewPrioritizedReplay(capacity int, alpha float64, rnd *rand.Rand) *PrioritizedReplay {
	return &PrioritizedReplay{
		capacity: capacity,
		alpha:    alpha,
		entries:  make([]replayEntry, 0, capacity),
		maxPrio:  1.0,
		rnd:      rnd,
	}
}

func (r *PrioritizedReplay) Len() int { return len(r.entries) }

// Add stores a new transition at maximum current priority, so it is sampled at least once
// before its true TD error is known.
func (r *PrioritizedReplay) Add(exp Experience) {
	entry := replayEntry{exp: exp, priority: r.maxPrio}
	if len(r.entries) < r.capacity {
		r.entries = append(r.entries, entry)
	} else {
		r.entries[r.next] = entry
		r.next = (r.next + 1) % r.capacity
	}
}

// Sample draws n indices with replacement, weighted by priority^alpha, returning the
// experiences, their buffer indices (for UpdatePriorities), and normalized importance
// sampling weights at the given beta.
func (r *PrioritizedReplay) Sample(n int, beta float64) ([]Experience, []int, []float64) {
	if len(r.entries) == 0 || n <= 0 {
		return nil, nil, nil
	}

	weights := make([]float64, len(r.entries))
	total := 0.0
	for i, e := range r.entries {
		w := math.Pow(e.priority, r.alpha)
		weights[i] = w
		total += w
	}

	exps := make([]Experience, n)
	idxs := make([]int, n)
	isWeights := make([]float64, n)

	minProb := math.Inf(1)
	for _, w := range weights {
		p := w / total
		if p < minProb {
			minProb = p
		}
	}
	if minProb == 0 {
		minProb = 1e-8
	}
	maxWeight := math.Pow(float64(len(r.entries))*minProb, -beta)

	for i := 0; i < n; i++ {
		idx := weightedChoice(weights, total, r.rnd)
		exps[i] = r.entries[idx].exp
		idxs[i] = idx
		prob := weights[idx] / total
		isWeights[i] = math.Pow(float64(len(r.entries))*prob, -beta) / maxWeight
	}
	return exps, idxs, isWeights
}

func weightedChoice(weights []float64, total float64, rnd *rand.Rand) int {
	target := rnd.Float64() * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if target <= cum {
			return i
		}
	}
	return len(weights) - 1
}

// UpdatePriorities writes back |TD error|-derived priorities after a train step.
func (r *PrioritizedReplay) UpdatePriorities(idxs []int, tdErrors []float64) {
	const epsilon = 1e-3
	for i, idx := range idxs {
		p := math.Abs(tdErrors[i]) + epsilon
		r.entries[idx].priority = p
		if p > r.maxPrio {
			r.maxPrio = p
		}
	}
}
