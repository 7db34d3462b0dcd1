package forecast

import (
	"gonum.org/v1/gonum/mat"
)

// olsFit solves beta = (X'X)^-1 X'y by ordinary least squares via gonum, returning
// the coefficient vector, the residual variance estimate, and whether the solve
// succeeded (false on a singular design matrix).
func olsFit(X [][]float64, y []float64) (beta []float64, residVar float64, ok bool) {
	n := len(X)
	if n == 0 {
		return nil, 0, false
	}
	p := len(X[0])

	flatX := make([]float64, 0, n*p)
	for _, row := range X {
		flatX = append(flatX, row...)
	}
	xm := mat.NewDense(n, p, flatX)
	ym := mat.NewVecDense(n, y)

	var xtx mat.Dense
	xtx.Mul(xm.T(), xm)

	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, 0, false
	}

	var xty mat.VecDense
	xty.MulVec(xm.T(), ym)

	var betaVec mat.VecDense
	betaVec.MulVec(&xtxInv, &xty)

	beta = make([]float64, p)
	for i := 0; i < p; i++ {
		beta[i] = betaVec.AtVec(i)
	}

	// residual sum of squares -> variance estimate with (n - p) degrees of freedom.
	var fitted mat.VecDense
	fitted.MulVec(xm, &betaVec)
	rss := 0.0
	for i := 0; i < n; i++ {
		e := y[i] - fitted.AtVec(i)
		rss += e * e
	}
	dof := n - p
	if dof <= 0 {
		dof = 1
	}
	residVar = rss / float64(dof)
	return beta, residVar, true
}

// computeXtXInverse returns the diagonal of (X'X)^-1, used to build coefficient standard
// errors; returns nil on a singular design matrix.
func computeXtXInverse(X [][]float64) []float64 {
	n := len(X)
	if n == 0 {
		return nil
	}
	p := len(X[0])
	flatX := make([]float64, 0, n*p)
	for _, row := range X {
		flatX = append(flatX, row...)
	}
	xm := mat.NewDense(n, p, flatX)

	var xtx mat.Dense
	xtx.Mul(xm.T(), xm)

	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil
	}
	diag := make([]float64, p)
	for i := 0; i < p; i++ {
		diag[i] = xtxInv.At(i, i)
	}
	return diag
}
