package agent

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// qNetwork is the dueling architecture of spec §4.6: a multi-head additive-attention
// pooling layer over the per-VNFType state blocks, feeding a shared trunk whose output
// splits into a scalar value head and a per-action advantage head, recombined as
// Q(s,a) = V(s) + (A(s,a) - mean_a A(s,a)).
type qNetwork struct {
	numBlocks, blockDim, numHeads, hidden, numActions int

	headWeights []*mat.VecDense // numHeads vectors of length blockDim
	w1          *mat.Dense      // hidden x (numHeads*blockDim)
	b1          *mat.VecDense   // hidden
	wv          *mat.VecDense   // hidden (value head row)
	bv          float64
	wa          *mat.Dense    // numActions x hidden
	ba          *mat.VecDense // numActions
}

func newQNetwork(numBlocks, blockDim, numHeads, hidden, numActions int, rnd *rand.Rand) *qNetwork {
	scale := func(fanIn int) float64 { return 1.0 / math.Sqrt(float64(fanIn)) }

	randVec := func(n int, s float64) *mat.VecDense {
		v := make([]float64, n)
		for i := range v {
			v[i] = rnd.NormFloat64() * s
		}
		return mat.NewVecDense(n, v)
	}
	randMat := func(r, c int, s float64) *mat.Dense {
		v := make([]float64, r*c)
		for i := range v {
			v[i] = rnd.NormFloat64() * s
		}
		return mat.NewDense(r, c, v)
	}

	headWeights := make([]*mat.VecDense, numHeads)
	for h := range headWeights {
		headWeights[h] = randVec(blockDim, scale(blockDim))
	}

	inDim := numHeads * blockDim
	return &qNetwork{
		numBlocks:   numBlocks,
		blockDim:    blockDim,
		numHeads:    numHeads,
		hidden:      hidden,
		numActions:  numActions,
		headWeights: headWeights,
		w1:          randMat(hidden, inDim, scale(inDim)),
		b1:          mat.NewVecDense(hidden, nil),
		wv:          randVec(hidden, scale(hidden)),
		bv:          0,
		wa:          randMat(numActions, hidden, scale(hidden)),
		ba:          mat.NewVecDense(numActions, nil),
	}
}

// fwdCache retains every intermediate activation forward needs to replay for backward.
type fwdCache struct {
	blocks       [][]float64
	attn         [][]float64 // per head, length numBlocks
	pooled       []*mat.VecDense
	concatPooled *mat.VecDense
	z1, h1       *mat.VecDense
	v            float64
	adv          *mat.VecDense
}

func softmax(scores []float64) []float64 {
	maxV := math.Inf(-1)
	for _, s := range scores {
		if s > maxV {
			maxV = s
		}
	}
	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp(s - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func (n *qNetwork) forward(state State) ([]float64, *fwdCache) {
	blocks := make([][]float64, n.numBlocks)
	for i := 0; i < n.numBlocks; i++ {
		blocks[i] = state[i*n.blockDim : (i+1)*n.blockDim]
	}

	attn := make([][]float64, n.numHeads)
	pooled := make([]*mat.VecDense, n.numHeads)
	for h := 0; h < n.numHeads; h++ {
		scores := make([]float64, n.numBlocks)
		for i, block := range blocks {
			scores[i] = mat.Dot(n.headWeights[h], mat.NewVecDense(n.blockDim, block))
		}
		a := softmax(scores)
		attn[h] = a

		p := mat.NewVecDense(n.blockDim, nil)
		for i, block := range blocks {
			bv := mat.NewVecDense(n.blockDim, block)
			p.AddScaledVec(p, a[i], bv)
		}
		pooled[h] = p
	}

	concatData := make([]float64, 0, n.numHeads*n.blockDim)
	for _, p := range pooled {
		concatData = append(concatData, p.RawVector().Data...)
	}
	concatPooled := mat.NewVecDense(len(concatData), concatData)

	z1 := mat.NewVecDense(n.hidden, nil)
	z1.MulVec(n.w1, concatPooled)
	z1.AddVec(z1, n.b1)

	h1Data := make([]float64, n.hidden)
	for i := 0; i < n.hidden; i++ {
		h1Data[i] = math.Max(0, z1.AtVec(i))
	}
	h1 := mat.NewVecDense(n.hidden, h1Data)

	v := mat.Dot(n.wv, h1) + n.bv

	adv := mat.NewVecDense(n.numActions, nil)
	adv.MulVec(n.wa, h1)
	adv.AddVec(adv, n.ba)

	meanAdv := mat.Sum(adv) / float64(n.numActions)
	q := make([]float64, n.numActions)
	for i := 0; i < n.numActions; i++ {
		q[i] = v + adv.AtVec(i) - meanAdv
	}

	return q, &fwdCache{
		blocks:       blocks,
		attn:         attn,
		pooled:       pooled,
		concatPooled: concatPooled,
		z1:           z1,
		h1:           h1,
		v:            v,
		adv:          adv,
	}
}

// gradients mirrors qNetwork's trainable parameters.
type gradients struct {
	headWeights []*mat.VecDense
	w1          *mat.Dense
	b1          *mat.VecDense
	wv          *mat.VecDense
	bv          float64
	wa          *mat.Dense
	ba          *mat.VecDense
}

// backward computes dL/dparams given dL/dQ (dQ, length numActions) and the forward cache.
func (n *qNetwork) backward(c *fwdCache, dQ []float64) *gradients {
	sumDQ := 0.0
	for _, d := range dQ {
		sumDQ += d
	}
	dV := sumDQ
	dAdv := mat.NewVecDense(n.numActions, nil)
	for i := 0; i < n.numActions; i++ {
		dAdv.SetVec(i, dQ[i]-sumDQ/float64(n.numActions))
	}

	gWa := mat.NewDense(n.numActions, n.hidden, nil)
	gWa.Outer(1, dAdv, c.h1)
	gBa := mat.NewVecDense(n.numActions, append([]float64(nil), dAdv.RawVector().Data...))

	gWv := mat.NewVecDense(n.hidden, nil)
	gWv.ScaleVec(dV, c.h1)
	gBv := dV

	dh1 := mat.NewVecDense(n.hidden, nil)
	dh1.MulVec(c.wa.T(), dAdv)
	dh1FromV := mat.NewVecDense(n.hidden, nil)
	dh1FromV.ScaleVec(dV, n.wv)
	dh1.AddVec(dh1, dh1FromV)

	dz1 := mat.NewVecDense(n.hidden, nil)
	for i := 0; i < n.hidden; i++ {
		if c.z1.AtVec(i) > 0 {
			dz1.SetVec(i, dh1.AtVec(i))
		}
	}

	gW1 := mat.NewDense(n.hidden, n.numHeads*n.blockDim, nil)
	gW1.Outer(1, dz1, c.concatPooled)
	gB1 := mat.NewVecDense(n.hidden, append([]float64(nil), dz1.RawVector().Data...))

	dConcat := mat.NewVecDense(n.numHeads*n.blockDim, nil)
	dConcat.MulVec(n.w1.T(), dz1)

	gHeadWeights := make([]*mat.VecDense, n.numHeads)

	for h := 0; h < n.numHeads; h++ {
		g := mat.NewVecDense(n.blockDim, dConcat.RawVector().Data[h*n.blockDim:(h+1)*n.blockDim])
		a := c.attn[h]

		dA := make([]float64, n.numBlocks)
		for i, block := range c.blocks {
			dA[i] = mat.Dot(g, mat.NewVecDense(n.blockDim, block))
		}
		var weightedSum float64
		for i, ai := range a {
			weightedSum += dA[i] * ai
		}
		dScores := make([]float64, n.numBlocks)
		for i, ai := range a {
			dScores[i] = ai * (dA[i] - weightedSum)
		}

		gw := mat.NewVecDense(n.blockDim, nil)
		for i, block := range c.blocks {
			bv := mat.NewVecDense(n.blockDim, block)
			gw.AddScaledVec(gw, dScores[i], bv)
		}
		gHeadWeights[h] = gw
	}

	return &gradients{
		headWeights: gHeadWeights,
		w1:          gW1,
		b1:          gB1,
		wv:          gWv,
		bv:          gBv,
		wa:          gWa,
		ba:          gBa,
	}
}

// clipNorm rescales g in place so its global L2 norm does not exceed maxNorm, per
// spec §4.6's gradient-clipping requirement.
func (g *gradients) clipNorm(maxNorm float64) {
	sumSq := 0.0
	accumulate := func(v mat.Matrix) {
		r, c := v.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				x := v.At(i, j)
				sumSq += x * x
			}
		}
	}
	for _, hw := range g.headWeights {
		accumulate(hw)
	}
	accumulate(g.w1)
	accumulate(g.b1)
	accumulate(g.wv)
	accumulate(g.wa)
	accumulate(g.ba)
	sumSq += g.bv * g.bv

	norm := math.Sqrt(sumSq)
	if norm <= maxNorm || norm == 0 {
		return
	}
	scale := maxNorm / norm
	for _, hw := range g.headWeights {
		hw.ScaleVec(scale, hw)
	}
	g.w1.Scale(scale, g.w1)
	g.b1.ScaleVec(scale, g.b1)
	g.wv.ScaleVec(scale, g.wv)
	g.wa.Scale(scale, g.wa)
	g.ba.ScaleVec(scale, g.ba)
	g.bv *= scale
}

// applyGradients performs one SGD step of the given learning rate.
func (n *qNetwork) applyGradients(g *gradients, lr float64) {
	for h := range n.headWeights {
		n.headWeights[h].AddScaledVec(n.headWeights[h], -lr, g.headWeights[h])
	}
	n.w1.Sub(n.w1, scaledDense(g.w1, lr))
	n.b1.AddScaledVec(n.b1, -lr, g.b1)
	n.wv.AddScaledVec(n.wv, -lr, g.wv)
	n.bv -= lr * g.bv
	n.wa.Sub(n.wa, scaledDense(g.wa, lr))
	n.ba.AddScaledVec(n.ba, -lr, g.ba)
}

func scaledDense(m *mat.Dense, lr float64) *mat.Dense {
	var out mat.Dense
	out.Scale(lr, m)
	return &out
}

// cloneFrom hard-copies src's weights into n, used for the target network sync.
func (n *qNetwork) cloneFrom(src *qNetwork, tau float64) {
	blend := func(dst, s mat.Matrix) *mat.Dense {
		r, c := s.Dims()
		out := mat.NewDense(r, c, nil)
		out.Scale(1-tau, dst)
		var scaledSrc mat.Dense
		scaledSrc.Scale(tau, s)
		out.Add(out, &scaledSrc)
		return out
	}
	for h := range n.headWeights {
		blended := blend(n.headWeights[h], src.headWeights[h])
		n.headWeights[h] = mat.NewVecDense(n.blockDim, blended.RawMatrix().Data)
	}
	n.w1 = blend(n.w1, src.w1)
	b1 := blend(n.b1, src.b1)
	n.b1 = mat.NewVecDense(n.hidden, b1.RawMatrix().Data)
	wv := blend(n.wv, src.wv)
	n.wv = mat.NewVecDense(n.hidden, wv.RawMatrix().Data)
	n.bv = (1-tau)*n.bv + tau*src.bv
	n.wa = blend(n.wa, src.wa)
	ba := blend(n.ba, src.ba)
	n.ba = mat.NewVecDense(n.numActions, ba.RawMatrix().Data)
}
