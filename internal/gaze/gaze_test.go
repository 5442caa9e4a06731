package gaze

import (
	"math"
	"path/filepath"
	"sync"
	"testing"

	"gaze-tracker/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// linearSamples returns a 5×5 grid with sx = 100·dx and sy = 100·dy.
func linearSamples() []Sample {
	var out []Sample
	for dy := 1.0; dy <= 5; dy++ {
		for dx := 1.0; dx <= 5; dx++ {
			out = append(out, Sample{DX: dx, DY: dy, SX: 100 * dx, SY: 100 * dy})
		}
	}
	return out
}

func norm(w []float64) float64 {
	var s float64
	for _, v := range w {
		s += v * v
	}
	return math.Sqrt(s)
}

func TestFeatures(t *testing.T) {
	assert.Equal(t, [NumFeatures]float64{2, 3, 6, 4, 9, 1}, Features(2, 3))
}

func TestDesignMatrix(t *testing.T) {
	x := DesignMatrix([]Sample{{DX: 1, DY: 2}, {DX: -1, DY: 0}})
	r, c := x.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, NumFeatures, c)
	assert.Equal(t, []float64{1, 2, 2, 1, 4, 1}, mat.Row(nil, 0, x))
	assert.Equal(t, []float64{-1, 0, 0, 1, 0, 1}, mat.Row(nil, 1, x))

	assert.Nil(t, DesignMatrix(nil))
}

func TestInvert(t *testing.T) {
	t.Run("needs pivoting", func(t *testing.T) {
		a := mat.NewDense(3, 3, []float64{
			0, 2, 1,
			1, 1, 0,
			3, 0, 1,
		})
		inv, err := Invert(a)
		require.NoError(t, err)

		var id mat.Dense
		id.Mul(a, inv)
		assert.True(t, mat.EqualApprox(&id, eye(3), 1e-12))
	})

	t.Run("singular", func(t *testing.T) {
		a := mat.NewDense(2, 2, []float64{1, 2, 2, 4})
		_, err := Invert(a)
		assert.ErrorIs(t, err, ErrSingularMatrix)
	})

	t.Run("not square", func(t *testing.T) {
		_, err := Invert(mat.NewDense(2, 3, nil))
		assert.Error(t, err)
	})
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func TestFit_RecoversLinearMapping(t *testing.T) {
	m, err := Fit(linearSamples(), DefaultFitOptions().WithLambda(0))
	require.NoError(t, err)

	wx, wy := m.Coefficients()
	assert.InDelta(t, 100, wx[0], 1e-6)
	assert.InDelta(t, 100, wy[1], 1e-6)
	for i := 2; i < NumFeatures; i++ {
		assert.InDelta(t, 0, wx[i], 1e-6)
		assert.InDelta(t, 0, wy[i], 1e-6)
	}

	raw := m.Raw(3.5, 2.25)
	assert.InDelta(t, 350, raw.X, 1e-6)
	assert.InDelta(t, 225, raw.Y, 1e-6)

	// First prediction after a fit is the clamped raw estimate.
	p := m.Predict(3.5, 2.25)
	assert.InDelta(t, 350, p.X, 1e-6)
	assert.InDelta(t, 225, p.Y, 1e-6)
}

func TestFit_ShrinkageGrowsWithLambda(t *testing.T) {
	samples := linearSamples()
	x := DesignMatrix(samples)
	sx, _ := targets(samples)

	prev := math.Inf(1)
	for _, lambda := range []float64{0.01, 0.1, 1, 10, 100} {
		w, err := Ridge(x, sx, lambda)
		require.NoError(t, err)
		n := norm(w)
		assert.Less(t, n, prev, "lambda=%g", lambda)
		prev = n
	}
}

func TestFit_FewSamplesNeedRegularization(t *testing.T) {
	samples := []Sample{
		{DX: 1, DY: 1, SX: 100, SY: 100},
		{DX: 2, DY: 1, SX: 200, SY: 100},
		{DX: 1, DY: 3, SX: 100, SY: 300},
	}

	_, err := Fit(samples, DefaultFitOptions().WithLambda(0))
	assert.ErrorIs(t, err, ErrSingularMatrix)

	m, err := Fit(samples, DefaultFitOptions().WithLambda(1e-3))
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestFit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
		opts    FitOptions
		want    error
	}{
		{"no samples", nil, DefaultFitOptions(), ErrInsufficientCalibrationData},
		{"two samples", linearSamples()[:2], DefaultFitOptions(), ErrInsufficientCalibrationData},
		{"negative lambda", linearSamples(), DefaultFitOptions().WithLambda(-1), ErrInvalidOptions},
		{"zero bounds", linearSamples(), DefaultFitOptions().WithBounds(0, 1000), ErrInvalidOptions},
		{"zero smoothing", linearSamples(), FitOptions{Bounds: Bounds{MaxX: 10, MaxY: 10}}, ErrInvalidOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Fit(tt.samples, tt.opts)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, m)
		})
	}
}

// constModel maps every displacement to raw = (100·dx, 100·dy).
func constModel(t *testing.T) *Model {
	t.Helper()
	m, err := NewModel(
		[NumFeatures]float64{100, 0, 0, 0, 0, 0},
		[NumFeatures]float64{0, 100, 0, 0, 0, 0},
		DefaultFitOptions(),
	)
	require.NoError(t, err)
	return m
}

func TestPredict_Smoothing(t *testing.T) {
	m := constModel(t)
	assert.False(t, m.Warm())

	first := m.Predict(5, 5)
	assert.Equal(t, geometry.Point2D{X: 500, Y: 500}, first)
	assert.True(t, m.Warm())

	second := m.Predict(6, 5)
	assert.InDelta(t, 510, second.X, 1e-9)
	assert.InDelta(t, 500, second.Y, 1e-9)
}

func TestPredict_ConvergesGeometrically(t *testing.T) {
	m := constModel(t)
	m.Predict(5, 5)

	for n := 1; n <= 30; n++ {
		p := m.Predict(6, 5)
		assert.InDelta(t, 600-100*math.Pow(0.9, float64(n)), p.X, 1e-9, "n=%d", n)
	}
}

func TestPredict_Clamps(t *testing.T) {
	tests := []struct {
		name   string
		dx, dy float64
		want   geometry.Point2D
	}{
		{"negative", -3, -1, geometry.Point2D{X: 0, Y: 0}},
		{"beyond screen", 50, 20, geometry.Point2D{X: 1900, Y: 1000}},
		{"mixed", -1, 4, geometry.Point2D{X: 0, Y: 400}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := constModel(t)
			assert.Equal(t, tt.want, m.Predict(tt.dx, tt.dy))
		})
	}
}

func TestPredict_ZeroIsNotCold(t *testing.T) {
	m := constModel(t)
	assert.Equal(t, geometry.Point2D{}, m.Predict(0, 0))

	// A legitimate (0,0) estimate still warms the filter.
	p := m.Predict(10, 0)
	assert.InDelta(t, 100, p.X, 1e-9)
}

func TestReset(t *testing.T) {
	m := constModel(t)
	m.Predict(5, 5)
	m.Reset()
	assert.False(t, m.Warm())
	assert.Equal(t, geometry.Point2D{X: 900, Y: 100}, m.Predict(9, 1))
}

func TestPredict_NilModelPanics(t *testing.T) {
	var m *Model
	assert.PanicsWithValue(t, ErrModelNotFit, func() { m.Predict(1, 1) })
}

func TestHandle(t *testing.T) {
	h := NewHandle()
	assert.False(t, h.Fitted())

	_, err := h.Predict(1, 1)
	assert.ErrorIs(t, err, ErrModelNotFit)

	_, err = h.Refit(linearSamples()[:2], DefaultFitOptions())
	assert.ErrorIs(t, err, ErrInsufficientCalibrationData)
	assert.False(t, h.Fitted(), "failed refit publishes nothing")

	m, err := h.Refit(linearSamples(), DefaultFitOptions())
	require.NoError(t, err)
	assert.Same(t, m, h.Current())

	p, err := h.Predict(2, 3)
	require.NoError(t, err)
	assert.InDelta(t, 200, p.X, 1e-3)
	assert.InDelta(t, 300, p.Y, 1e-3)

	_, err = h.Refit(nil, DefaultFitOptions())
	assert.Error(t, err)
	assert.Same(t, m, h.Current(), "old model survives a failed refit")
}

func TestHandle_ConcurrentPredictAndPublish(t *testing.T) {
	h := NewHandle()
	h.Publish(constModel(t))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				p, err := h.Predict(5, 5)
				if err != nil {
					t.Error(err)
					return
				}
				if p.X != 500 || p.Y != 500 {
					t.Errorf("torn prediction %v", p)
					return
				}
			}
		}()
	}
	for j := 0; j < 50; j++ {
		h.Publish(constModel(t))
	}
	wg.Wait()
}

func TestCollector(t *testing.T) {
	var c Collector
	c.Add(geometry.Point2D{X: 1, Y: 2}, geometry.Point2D{X: 100, Y: 200})
	c.Add(geometry.Point2D{X: 3, Y: 4}, geometry.Point2D{X: 300, Y: 400})

	require.Equal(t, 2, c.Len())
	s := c.Samples()
	assert.Equal(t, Sample{DX: 1, DY: 2, SX: 100, SY: 200}, s[0])
	assert.Equal(t, Sample{DX: 3, DY: 4, SX: 300, SY: 400}, s[1])

	s[0].DX = 99
	assert.Equal(t, 1.0, c.Samples()[0].DX, "Samples returns a copy")

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestTargetGrid(t *testing.T) {
	b := Bounds{MaxX: 1900, MaxY: 1000}

	grid := TargetGrid(b, 3)
	require.Len(t, grid, 9)
	assert.Equal(t, geometry.Point2D{X: 190, Y: 100}, grid[0])
	assert.Equal(t, geometry.Point2D{X: 950, Y: 500}, grid[4])
	assert.Equal(t, geometry.Point2D{X: 1710, Y: 900}, grid[8])

	assert.Equal(t, []geometry.Point2D{{X: 950, Y: 500}}, TargetGrid(b, 1))
	assert.Nil(t, TargetGrid(b, 0))
}

func TestSampleFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.json")
	b := Bounds{MaxX: 1920, MaxY: 1080}
	samples := linearSamples()[:4]

	require.NoError(t, SaveSamples(path, b, samples))
	f, err := LoadSamples(path)
	require.NoError(t, err)
	assert.Equal(t, b, f.Bounds)
	assert.Equal(t, samples, f.Samples)
}

func TestModelFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	m, err := Fit(linearSamples(), DefaultFitOptions())
	require.NoError(t, err)
	m.Predict(1, 1)

	require.NoError(t, SaveModel(path, m, 25))
	loaded, err := LoadModel(path)
	require.NoError(t, err)

	wx, wy := m.Coefficients()
	lx, ly := loaded.Coefficients()
	assert.Equal(t, wx, lx)
	assert.Equal(t, wy, ly)
	assert.Equal(t, m.Options(), loaded.Options())
	assert.False(t, loaded.Warm())

	assert.ErrorIs(t, SaveModel(path, nil, 0), ErrModelNotFit)
}
