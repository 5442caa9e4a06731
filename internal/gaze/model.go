package gaze

import (
	"fmt"
	"math"
	"sync"

	"gaze-tracker/pkg/geometry"
)

// Bounds is the screen extent predictions are clamped to, [0, Max] per axis.
type Bounds struct {
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// FitOptions configures a fit and the predictions made with the result.
type FitOptions struct {
	Lambda    float64 `json:"lambda"`    // Ridge penalty, >= 0
	Bounds    Bounds  `json:"bounds"`    // Clamp extent
	Smoothing float64 `json:"smoothing"` // Low-pass factor in (0, 1]
}

// DefaultFitOptions returns the standard calibration settings.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Lambda:    1e-6,
		Bounds:    Bounds{MaxX: 1900, MaxY: 1000},
		Smoothing: 0.1,
	}
}

// WithLambda returns a copy with a custom ridge penalty.
func (o FitOptions) WithLambda(lambda float64) FitOptions {
	o.Lambda = lambda
	return o
}

// WithBounds returns a copy clamping to a custom screen size.
func (o FitOptions) WithBounds(maxX, maxY float64) FitOptions {
	o.Bounds = Bounds{MaxX: maxX, MaxY: maxY}
	return o
}

// Validate checks the option ranges.
func (o FitOptions) Validate() error {
	switch {
	case o.Lambda < 0 || math.IsNaN(o.Lambda):
		return fmt.Errorf("%w: lambda %g", ErrInvalidOptions, o.Lambda)
	case o.Bounds.MaxX <= 0 || o.Bounds.MaxY <= 0:
		return fmt.Errorf("%w: bounds %gx%g", ErrInvalidOptions, o.Bounds.MaxX, o.Bounds.MaxY)
	case o.Smoothing <= 0 || o.Smoothing > 1:
		return fmt.Errorf("%w: smoothing %g", ErrInvalidOptions, o.Smoothing)
	}
	return nil
}

// Model is a fitted displacement-to-screen mapping. Coefficients never
// change after construction; only the smoothing state does.
type Model struct {
	wx, wy [NumFeatures]float64
	opts   FitOptions

	mu   sync.Mutex
	last geometry.Point2D
	warm bool // false until the first prediction after a fit or Reset
}

// Fit solves both screen axes by ridge regression. It needs at least
// MinSamples samples; with fewer than NumFeatures samples only a positive
// lambda keeps the normal equations solvable.
func Fit(samples []Sample, opts FitOptions) (*Model, error) {
	if len(samples) < MinSamples {
		return nil, fmt.Errorf("%w: have %d samples, need %d",
			ErrInsufficientCalibrationData, len(samples), MinSamples)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	x := DesignMatrix(samples)
	sx, sy := targets(samples)

	wx, err := Ridge(x, sx, opts.Lambda)
	if err != nil {
		return nil, fmt.Errorf("fit screen x: %w", err)
	}
	wy, err := Ridge(x, sy, opts.Lambda)
	if err != nil {
		return nil, fmt.Errorf("fit screen y: %w", err)
	}

	m := &Model{opts: opts}
	copy(m.wx[:], wx)
	copy(m.wy[:], wy)
	return m, nil
}

// NewModel builds a model from known coefficients, as read from a model
// file.
func NewModel(wx, wy [NumFeatures]float64, opts FitOptions) (*Model, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Model{wx: wx, wy: wy, opts: opts}, nil
}

// Raw returns the unclamped, unsmoothed estimate.
func (m *Model) Raw(dx, dy float64) geometry.Point2D {
	if m == nil {
		panic(ErrModelNotFit)
	}
	f := Features(dx, dy)
	var x, y float64
	for i := range f {
		x += m.wx[i] * f[i]
		y += m.wy[i] * f[i]
	}
	return geometry.Point2D{X: x, Y: y}
}

// Predict returns the clamped estimate passed through the first-order
// low-pass filter. The first call after a fit or Reset returns the clamped
// estimate unchanged.
func (m *Model) Predict(dx, dy float64) geometry.Point2D {
	raw := m.Raw(dx, dy)
	clamped := geometry.Point2D{
		X: clamp(raw.X, 0, m.opts.Bounds.MaxX),
		Y: clamp(raw.Y, 0, m.opts.Bounds.MaxY),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.warm {
		m.last = clamped
		m.warm = true
		return clamped
	}
	m.last = m.last.Add(clamped.Sub(m.last).Scale(m.opts.Smoothing))
	return m.last
}

// Reset clears the smoothing state so the next prediction is unsmoothed.
func (m *Model) Reset() {
	m.mu.Lock()
	m.last = geometry.Point2D{}
	m.warm = false
	m.mu.Unlock()
}

// Warm reports whether a previous estimate exists.
func (m *Model) Warm() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warm
}

// Coefficients returns copies of the per-axis weights.
func (m *Model) Coefficients() (wx, wy [NumFeatures]float64) {
	return m.wx, m.wy
}

// Options returns the options the model was built with.
func (m *Model) Options() FitOptions {
	return m.opts
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
