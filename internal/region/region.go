// Package region finds the eye regions of a frame. Detection is delegated to
// cascade classifiers; this package owns the geometry around them: side
// assignment, anatomical eye boxes and plausibility checks on eye pairs.
package region

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"gaze-tracker/internal/frame"
	"gaze-tracker/pkg/geometry"
)

var (
	// ErrNoRegionFound means no face or eye could be located.
	ErrNoRegionFound = errors.New("no eye region found")
	// ErrOverlap means the right eye starts inside the left one.
	ErrOverlap = fmt.Errorf("%w: eye boxes overlap", ErrNoRegionFound)
	// ErrSizeMismatch means the two eye boxes differ too much in area.
	ErrSizeMismatch = fmt.Errorf("%w: eye sizes differ", ErrNoRegionFound)
	// ErrMisaligned means the eyes are not on one horizontal line.
	ErrMisaligned = fmt.Errorf("%w: eyes not aligned", ErrNoRegionFound)
)

// Side tells the eyes apart in image order.
type Side int

const (
	// SideLeft is the eye with the smaller x.
	SideLeft Side = iota
	// SideRight is the eye with the larger x.
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// EyeRegion is one eye bounding box in frame coordinates.
type EyeRegion struct {
	Rect geometry.RectInt `json:"rect"`
	Side Side             `json:"side"`
}

// Locator finds up to two eye regions, sorted by ascending x.
type Locator interface {
	Locate(img frame.GrayImage) ([]EyeRegion, error)
	Close() error
}

// Strategy selects the detector behind a Locator.
type Strategy int

const (
	// StrategyEye runs an eye cascade over the whole frame.
	StrategyEye Strategy = iota
	// StrategyFace finds a face (frontal, then profile) and derives eye
	// boxes from its proportions, falling back to the eye cascade.
	StrategyFace
	// StrategyPigo finds a face with the pigo pixel-comparison cascade and
	// derives eye boxes from its proportions.
	StrategyPigo
	// StrategyFixed returns configured boxes, for head-mounted rigs.
	StrategyFixed
)

func (s Strategy) String() string {
	switch s {
	case StrategyEye:
		return "eye"
	case StrategyFace:
		return "face"
	case StrategyPigo:
		return "pigo"
	case StrategyFixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStrategy maps a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "eye", "":
		return StrategyEye, nil
	case "face":
		return StrategyFace, nil
	case "pigo":
		return StrategyPigo, nil
	case "fixed":
		return StrategyFixed, nil
	}
	return StrategyEye, fmt.Errorf("unknown region strategy %q", s)
}

// DetectParams are multi-scale cascade settings.
type DetectParams struct {
	ScaleFactor  float64 `json:"scale_factor"`
	MinNeighbors int     `json:"min_neighbors"`
	MinSize      int     `json:"min_size"` // px, square
}

// Config configures New.
type Config struct {
	Strategy   Strategy `json:"strategy"`
	CascadeDir string   `json:"cascade_dir"`

	EyeCascade     string `json:"eye_cascade"`
	FrontalCascade string `json:"frontal_cascade"`
	ProfileCascade string `json:"profile_cascade"`
	PigoCascade    string `json:"pigo_cascade"`

	Eye  DetectParams `json:"eye"`
	Face DetectParams `json:"face"`

	// Pigo back end: frames are downscaled so the longer side is at most
	// MaxDim before detection. Detections scoring below MinQuality are
	// ignored.
	MaxDim     int     `json:"max_dim"`
	MinQuality float64 `json:"min_quality"`

	Fixed []geometry.RectInt `json:"fixed,omitempty"`

	Validation ValidationParams `json:"validation"`
}

// DefaultConfig returns the stock cascade names and detector settings.
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategyEye,
		CascadeDir:     "haarcascades",
		EyeCascade:     "haarcascade_eye.xml",
		FrontalCascade: "haarcascade_frontalface_alt.xml",
		ProfileCascade: "haarcascade_profileface.xml",
		PigoCascade:    "facefinder",
		Eye:            DetectParams{ScaleFactor: 1.05, MinNeighbors: 6, MinSize: 40},
		Face:           DetectParams{ScaleFactor: 1.1, MinNeighbors: 3, MinSize: 150},
		MaxDim:         640,
		MinQuality:     5,
		Validation:     DefaultValidationParams(),
	}
}

func (c Config) path(name string) string {
	if filepath.IsAbs(name) || c.CascadeDir == "" {
		return name
	}
	return filepath.Join(c.CascadeDir, name)
}

// New builds the Locator for cfg.Strategy. Cascade files are loaded once
// here; Close releases them.
func New(cfg Config) (Locator, error) {
	switch cfg.Strategy {
	case StrategyEye:
		return newEyeCascade(cfg)
	case StrategyFace:
		return newFaceCascade(cfg)
	case StrategyPigo:
		return newPigoFace(cfg)
	case StrategyFixed:
		return NewFixed(cfg.Fixed...), nil
	}
	return nil, fmt.Errorf("unknown region strategy %d", cfg.Strategy)
}

// Fixed returns the same boxes for every frame, clipped to it.
type Fixed struct {
	rects []geometry.RectInt
}

// NewFixed returns a Locator for pre-positioned eye boxes.
func NewFixed(rects ...geometry.RectInt) *Fixed {
	return &Fixed{rects: append([]geometry.RectInt(nil), rects...)}
}

// Locate implements Locator.
func (f *Fixed) Locate(img frame.GrayImage) ([]EyeRegion, error) {
	var rects []geometry.RectInt
	for _, r := range f.rects {
		if c := r.Intersect(img.Bounds()); !c.Empty() {
			rects = append(rects, c)
		}
	}
	if len(rects) == 0 {
		return nil, ErrNoRegionFound
	}
	return assignSides(rects), nil
}

// Close implements Locator.
func (f *Fixed) Close() error { return nil }

func sortByX(rects []geometry.RectInt) []geometry.RectInt {
	sorted := append([]geometry.RectInt(nil), rects...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })
	return sorted
}

// assignSides sorts boxes by x, keeps at most two and labels them.
func assignSides(rects []geometry.RectInt) []EyeRegion {
	sorted := sortByX(rects)
	if len(sorted) > 2 {
		sorted = sorted[:2]
	}

	out := make([]EyeRegion, len(sorted))
	for i, r := range sorted {
		out[i] = EyeRegion{Rect: r, Side: SideLeft}
		if i == 1 {
			out[i].Side = SideRight
		}
	}
	return out
}
