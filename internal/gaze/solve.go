package gaze

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PivotEpsilon is the smallest pivot magnitude Invert accepts.
const PivotEpsilon = 1e-10

// Invert returns the inverse of a square matrix by Gauss-Jordan elimination
// with partial pivoting on the augmented matrix [A | I].
func Invert(a *mat.Dense) (*mat.Dense, error) {
	n, c := a.Dims()
	if n != c {
		return nil, fmt.Errorf("invert %dx%d: matrix is not square", n, c)
	}

	aug := mat.NewDense(n, 2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			aug.Set(i, j, a.At(i, j))
		}
		aug.Set(i, n+i, 1)
	}

	for col := 0; col < n; col++ {
		// Partial pivot
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug.At(r, col)) > math.Abs(aug.At(pivot, col)) {
				pivot = r
			}
		}
		pv := aug.At(pivot, col)
		if math.Abs(pv) < PivotEpsilon {
			return nil, fmt.Errorf("%w: pivot %g in column %d", ErrSingularMatrix, pv, col)
		}
		if pivot != col {
			swapRows(aug, pivot, col)
		}

		for j := 0; j < 2*n; j++ {
			aug.Set(col, j, aug.At(col, j)/pv)
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			f := aug.At(r, col)
			if f == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				aug.Set(r, j, aug.At(r, j)-f*aug.At(col, j))
			}
		}
	}

	inv := mat.NewDense(n, n, nil)
	inv.Copy(aug.Slice(0, n, n, 2*n))
	return inv, nil
}

func swapRows(m *mat.Dense, i, j int) {
	ri := mat.Row(nil, i, m)
	rj := mat.Row(nil, j, m)
	m.SetRow(i, rj)
	m.SetRow(j, ri)
}

// Ridge solves w = (XᵗX + λI)⁻¹ Xᵗ y.
func Ridge(x *mat.Dense, y []float64, lambda float64) ([]float64, error) {
	if x == nil {
		return nil, fmt.Errorf("ridge: empty design matrix")
	}
	r, c := x.Dims()
	if len(y) != r {
		return nil, fmt.Errorf("ridge: %d targets for %d rows", len(y), r)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for i := 0; i < c; i++ {
		xtx.Set(i, i, xtx.At(i, i)+lambda)
	}

	inv, err := Invert(&xtx)
	if err != nil {
		return nil, err
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), mat.NewVecDense(r, y))

	var w mat.VecDense
	w.MulVec(inv, &xty)
	return mat.Col(nil, 0, &w), nil
}
