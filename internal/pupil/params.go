package pupil

import (
	"fmt"
	"runtime"
)

// ThresholdMode selects how the first pass binarizes the eye image.
type ThresholdMode int

const (
	// ThresholdOtsu picks the threshold maximizing between-class variance.
	ThresholdOtsu ThresholdMode = iota
	// ThresholdFixed uses Params.FixedThreshold.
	ThresholdFixed
)

func (m ThresholdMode) String() string {
	if m == ThresholdFixed {
		return "fixed"
	}
	return "otsu"
}

// MarshalText implements encoding.TextMarshaler.
func (m ThresholdMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ThresholdMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "otsu", "":
		*m = ThresholdOtsu
	case "fixed":
		*m = ThresholdFixed
	default:
		return fmt.Errorf("unknown threshold mode %q", b)
	}
	return nil
}

// Params holds parameters for threshold-contour-ellipse detection.
type Params struct {
	// Preprocessing
	BlurSize int `json:"blur_size"` // Gaussian kernel size (odd)

	// First pass binarization. Otsu by default; the fixed value is only
	// used in ThresholdFixed mode.
	Threshold      ThresholdMode `json:"threshold"`
	FixedThreshold float64       `json:"fixed_threshold"`

	// Canny hysteresis thresholds
	CannyLow  float64 `json:"canny_low"`
	CannyHigh float64 `json:"canny_high"`

	// Ellipse acceptance, exclusive bounds
	MinArea   float64 `json:"min_area"` // px²
	MaxArea   float64 `json:"max_area"` // px²
	// Fitted ellipses have Major >= Minor, so MinAspect only rejects
	// ellipses built elsewhere with Minor > Major.
	MinAspect float64 `json:"min_aspect"`
	MaxAspect float64 `json:"max_aspect"`

	// Centers closer than this to an accepted center are duplicates.
	DedupDistance float64 `json:"dedup_distance"`

	// Second pass inside each accepted ellipse. BlobThreshold is
	// independent of the first-pass threshold.
	InnerBlobs    bool    `json:"inner_blobs"`
	BlobThreshold float64 `json:"blob_threshold"`
	BlobMinArea   float64 `json:"blob_min_area"`
	BlobMaxArea   float64 `json:"blob_max_area"`
}

// DefaultParams returns default TCE parameters.
func DefaultParams() Params {
	return Params{
		BlurSize: 5,

		Threshold:      ThresholdOtsu,
		FixedThreshold: 50,

		CannyLow:  50,
		CannyHigh: 150,

		// Pupils in a typical IR eye crop span roughly 12-35 px
		MinArea:   100,
		MaxArea:   1000,
		MinAspect: 0.5,
		MaxAspect: 2.0,

		DedupDistance: 10,

		InnerBlobs:    false,
		BlobThreshold: 105,
		BlobMinArea:   3,
		BlobMaxArea:   10,
	}
}

// WithFixedThreshold returns a copy using a manual first-pass threshold.
func (p Params) WithFixedThreshold(t float64) Params {
	p.Threshold = ThresholdFixed
	p.FixedThreshold = t
	return p
}

// WithAreaRange returns a copy with custom area bounds in px².
func (p Params) WithAreaRange(minArea, maxArea float64) Params {
	p.MinArea = minArea
	p.MaxArea = maxArea
	return p
}

// WithInnerBlobs returns a copy that runs the in-ellipse blob pass.
func (p Params) WithInnerBlobs(threshold float64) Params {
	p.InnerBlobs = true
	p.BlobThreshold = threshold
	return p
}

// GVParams holds parameters for gradient-vote localization.
type GVParams struct {
	Sigma   float64 `json:"sigma"`   // Gaussian sigma of the darkness weight
	Step    int     `json:"step"`    // Candidate grid step
	Window  int     `json:"window"`  // Half-size of the scoring window around each candidate
	Workers int     `json:"workers"` // Scoring goroutines, 0 means one per CPU
}

// DefaultGVParams returns default gradient-vote parameters.
func DefaultGVParams() GVParams {
	return GVParams{
		Sigma:   2,
		Step:    1,
		Window:  15,
		Workers: runtime.NumCPU(),
	}
}

// WithWorkers returns a copy with a fixed worker count.
func (p GVParams) WithWorkers(n int) GVParams {
	p.Workers = n
	return p
}
