package pupil

import (
	"fmt"
	"image"
	"math"
	"math/cmplx"

	"gaze-tracker/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// minFitPoints is the smallest boundary that determines a conic.
const minFitPoints = 5

// FitEllipse fits the rotated ellipse minimising algebraic distance to the
// points, using the direct least-squares method of Fitzgibbon, Pilu and
// Fisher in the numerically stable split form of Halir and Flusser.
//
// Fewer than five points return ErrTooFewPoints. Collinear or otherwise
// singular scatter, and scatter whose best conic is not a real ellipse,
// return ErrDegenerateFit.
func FitEllipse(pts []image.Point) (geometry.Ellipse, error) {
	n := len(pts)
	if n < minFitPoints {
		return geometry.Ellipse{}, fmt.Errorf("%w: %d points", ErrTooFewPoints, n)
	}

	// Center and scale the scatter so the scatter matrices stay well
	// conditioned regardless of where the contour sits in the image.
	var mx, my float64
	for _, p := range pts {
		mx += float64(p.X)
		my += float64(p.Y)
	}
	mx /= float64(n)
	my /= float64(n)
	var spread float64
	for _, p := range pts {
		dx, dy := float64(p.X)-mx, float64(p.Y)-my
		spread += dx*dx + dy*dy
	}
	spread = math.Sqrt(spread / float64(n))
	if spread < 1e-9 {
		return geometry.Ellipse{}, fmt.Errorf("%w: all points coincide", ErrDegenerateFit)
	}

	// Quadratic (D1) and linear (D2) parts of the design matrix.
	d1 := mat.NewDense(n, 3, nil)
	d2 := mat.NewDense(n, 3, nil)
	for i, p := range pts {
		x := (float64(p.X) - mx) / spread
		y := (float64(p.Y) - my) / spread
		d1.SetRow(i, []float64{x * x, x * y, y * y})
		d2.SetRow(i, []float64{x, y, 1})
	}

	var s1, s2, s3 mat.Dense
	s1.Mul(d1.T(), d1)
	s2.Mul(d1.T(), d2)
	s3.Mul(d2.T(), d2)

	var s3inv mat.Dense
	if err := s3inv.Inverse(&s3); err != nil {
		return geometry.Ellipse{}, fmt.Errorf("%w: %v", ErrDegenerateFit, err)
	}

	// T = -S3⁻¹ S2ᵀ maps quadratic coefficients to linear ones.
	var tm mat.Dense
	tm.Mul(&s3inv, s2.T())
	tm.Scale(-1, &tm)

	// Reduced scatter M = S1 + S2 T, premultiplied by the inverse of the
	// ellipse constraint matrix C1 = [[0 0 2] [0 -1 0] [2 0 0]].
	var m mat.Dense
	m.Mul(&s2, &tm)
	m.Add(&s1, &m)
	reduced := mat.NewDense(3, 3, nil)
	for c := 0; c < 3; c++ {
		reduced.Set(0, c, m.At(2, c)/2)
		reduced.Set(1, c, -m.At(1, c))
		reduced.Set(2, c, m.At(0, c)/2)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(reduced, mat.EigenRight); !ok {
		return geometry.Ellipse{}, fmt.Errorf("%w: eigen decomposition failed", ErrDegenerateFit)
	}
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	// Exactly one eigenvector satisfies the ellipse constraint 4ac - b² > 0.
	best := -1
	bestCond := 0.0
	for j := 0; j < 3; j++ {
		a, b, c := vecs.At(0, j), vecs.At(1, j), vecs.At(2, j)
		if math.Abs(imag(a))+math.Abs(imag(b))+math.Abs(imag(c)) > 1e-9*(cmplx.Abs(a)+cmplx.Abs(b)+cmplx.Abs(c)+1e-300) {
			continue
		}
		cond := 4*real(a)*real(c) - real(b)*real(b)
		if cond > bestCond {
			best, bestCond = j, cond
		}
	}
	if best < 0 {
		return geometry.Ellipse{}, fmt.Errorf("%w: no elliptic solution", ErrDegenerateFit)
	}

	a1 := mat.NewVecDense(3, []float64{
		real(vecs.At(0, best)),
		real(vecs.At(1, best)),
		real(vecs.At(2, best)),
	})
	var a2 mat.VecDense
	a2.MulVec(&tm, a1)

	e, err := conicToEllipse(a1.AtVec(0), a1.AtVec(1), a1.AtVec(2), a2.AtVec(0), a2.AtVec(1), a2.AtVec(2))
	if err != nil {
		return geometry.Ellipse{}, err
	}

	e.Center = geometry.Point2D{X: e.Center.X*spread + mx, Y: e.Center.Y*spread + my}
	e.Major *= spread
	e.Minor *= spread
	return e, nil
}

// conicToEllipse converts A x² + B xy + C y² + D x + E y + F = 0 to center,
// full axis lengths and major-axis angle.
func conicToEllipse(a, b, c, d, e, f float64) (geometry.Ellipse, error) {
	if a+c < 0 {
		a, b, c, d, e, f = -a, -b, -c, -d, -e, -f
	}
	den := b*b - 4*a*c
	if den >= 0 {
		return geometry.Ellipse{}, fmt.Errorf("%w: conic is not an ellipse", ErrDegenerateFit)
	}

	x0 := (2*c*d - b*e) / den
	y0 := (2*a*e - b*d) / den
	// Conic value at the center.
	fc := f + (d*x0+e*y0)/2
	if fc >= 0 {
		return geometry.Ellipse{}, fmt.Errorf("%w: imaginary ellipse", ErrDegenerateFit)
	}

	// Eigenvalues of the quadratic form [[a b/2] [b/2 c]], lo <= hi.
	mid := (a + c) / 2
	rad := math.Hypot((a-c)/2, b/2)
	lo, hi := mid-rad, mid+rad
	if lo <= 0 {
		return geometry.Ellipse{}, fmt.Errorf("%w: conic is not an ellipse", ErrDegenerateFit)
	}

	semiMajor := math.Sqrt(-fc / lo)
	semiMinor := math.Sqrt(-fc / hi)

	// 0.5·atan2(b, a-c) points along the hi eigenvector, the minor axis.
	angle := 0.5*math.Atan2(b, a-c)*180/math.Pi + 90
	for angle >= 180 {
		angle -= 180
	}
	for angle < 0 {
		angle += 180
	}

	return geometry.Ellipse{
		Center: geometry.Point2D{X: x0, Y: y0},
		Major:  2 * semiMajor,
		Minor:  2 * semiMinor,
		Angle:  angle,
	}, nil
}
