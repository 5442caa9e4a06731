package pupil

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ellipsePoints samples n integer boundary points of an ellipse with the
// given center, semi-axes and rotation in degrees.
func ellipsePoints(cx, cy, a, b, angle float64, n int) []image.Point {
	rad := angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	pts := make([]image.Point, 0, n)
	for i := 0; i < n; i++ {
		t := 2 * math.Pi * float64(i) / float64(n)
		u, v := a*math.Cos(t), b*math.Sin(t)
		x := cx + u*cos - v*sin
		y := cy + u*sin + v*cos
		pts = append(pts, image.Point{int(math.Round(x)), int(math.Round(y))})
	}
	return pts
}

// angleDiff is the distance between two axis directions modulo 180°.
func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 180)
	return math.Min(d, 180-d)
}

func TestFitEllipse_RecoversShape(t *testing.T) {
	tests := []struct {
		name       string
		cx, cy     float64
		a, b       float64
		angle      float64
		checkAngle bool
	}{
		{"axis aligned", 60, 50, 40, 20, 0, true},
		{"rotated", 100, 80, 45, 25, 30, true},
		{"tall", 50, 70, 18, 36, 0, false},
		{"circle", 40, 40, 30, 30, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts := ellipsePoints(tt.cx, tt.cy, tt.a, tt.b, tt.angle, 180)
			e, err := FitEllipse(pts)
			require.NoError(t, err)

			assert.InDelta(t, tt.cx, e.Center.X, 0.5)
			assert.InDelta(t, tt.cy, e.Center.Y, 0.5)
			assert.InDelta(t, 2*math.Max(tt.a, tt.b), e.Major, 1.5)
			assert.InDelta(t, 2*math.Min(tt.a, tt.b), e.Minor, 1.5)
			assert.GreaterOrEqual(t, e.Major, e.Minor)
			if tt.checkAngle {
				assert.Less(t, angleDiff(tt.angle, e.Angle), 3.0)
			}
		})
	}
}

func TestFitEllipse_TallMajorAxisIsVertical(t *testing.T) {
	e, err := FitEllipse(ellipsePoints(50, 50, 15, 35, 0, 120))
	require.NoError(t, err)
	assert.Less(t, angleDiff(90, e.Angle), 3.0)
	assert.GreaterOrEqual(t, e.Major, e.Minor)
	assert.GreaterOrEqual(t, e.AspectRatio(), 1.0)
}

func TestFitEllipse_TooFewPoints(t *testing.T) {
	pts := []image.Point{{0, 0}, {1, 2}, {3, 1}, {2, 5}}
	_, err := FitEllipse(pts)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestFitEllipse_Collinear(t *testing.T) {
	var pts []image.Point
	for i := 0; i < 12; i++ {
		pts = append(pts, image.Point{i, 2 * i})
	}
	_, err := FitEllipse(pts)
	assert.ErrorIs(t, err, ErrDegenerateFit)
}

func TestFitEllipse_CoincidentPoints(t *testing.T) {
	pts := make([]image.Point, 8)
	for i := range pts {
		pts[i] = image.Point{7, 7}
	}
	_, err := FitEllipse(pts)
	assert.ErrorIs(t, err, ErrDegenerateFit)
}

func TestConicToEllipse(t *testing.T) {
	t.Run("circle", func(t *testing.T) {
		// x² + y² - 100 = 0
		e, err := conicToEllipse(1, 0, 1, 0, 0, -100)
		require.NoError(t, err)
		assert.InDelta(t, 0, e.Center.X, 1e-9)
		assert.InDelta(t, 0, e.Center.Y, 1e-9)
		assert.InDelta(t, 20, e.Major, 1e-9)
		assert.InDelta(t, 20, e.Minor, 1e-9)
	})

	t.Run("shifted wide ellipse", func(t *testing.T) {
		// (x-3)²/16 + (y+2)²/4 = 1, scaled by 16
		e, err := conicToEllipse(1, 0, 4, -6, 16, 9+16-16)
		require.NoError(t, err)
		assert.InDelta(t, 3, e.Center.X, 1e-9)
		assert.InDelta(t, -2, e.Center.Y, 1e-9)
		assert.InDelta(t, 8, e.Major, 1e-9)
		assert.InDelta(t, 4, e.Minor, 1e-9)
		assert.Less(t, angleDiff(0, e.Angle), 1e-6)
	})

	t.Run("sign flipped", func(t *testing.T) {
		e, err := conicToEllipse(-1, 0, -1, 0, 0, 100)
		require.NoError(t, err)
		assert.InDelta(t, 20, e.Major, 1e-9)
	})

	t.Run("hyperbola", func(t *testing.T) {
		_, err := conicToEllipse(1, 0, -1, 0, 0, -1)
		assert.ErrorIs(t, err, ErrDegenerateFit)
	})

	t.Run("imaginary", func(t *testing.T) {
		_, err := conicToEllipse(1, 0, 1, 0, 0, 1)
		assert.ErrorIs(t, err, ErrDegenerateFit)
	})
}
