// Package pupil locates the pupil center inside an eye region, either by
// threshold-contour-ellipse fitting or by gradient voting.
package pupil

import (
	"errors"
	"fmt"

	"gaze-tracker/pkg/geometry"
)

var (
	// ErrDetectionFailure means no contour survived the ellipse filters.
	ErrDetectionFailure = errors.New("no pupil candidate found")
	// ErrDegenerateFit means the boundary points cannot determine an ellipse.
	ErrDegenerateFit = errors.New("degenerate ellipse fit")
	// ErrTooFewPoints means a contour is too short to fit.
	ErrTooFewPoints = errors.New("too few points for ellipse fit")
	// ErrEmptyImage is returned for zero-sized input.
	ErrEmptyImage = errors.New("empty eye image")
	// ErrSizeMismatch is returned when the light and dark images differ in size.
	ErrSizeMismatch = errors.New("light and dark images differ in size")
)

// Method selects the pupil localization algorithm.
type Method int

const (
	// MethodTCE is threshold, contour trace and ellipse fit.
	MethodTCE Method = iota
	// MethodGV is gradient-vote center localization.
	MethodGV
)

func (m Method) String() string {
	switch m {
	case MethodTCE:
		return "TCE"
	case MethodGV:
		return "GV"
	default:
		return "Unknown"
	}
}

// ParseMethod maps a configuration string to a Method.
func ParseMethod(s string) (Method, bool) {
	switch s {
	case "tce", "TCE", "":
		return MethodTCE, true
	case "gv", "GV", "gradient":
		return MethodGV, true
	}
	return MethodTCE, false
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	switch m {
	case MethodTCE:
		return []byte("tce"), nil
	case MethodGV:
		return []byte("gv"), nil
	}
	return nil, fmt.Errorf("unknown pupil method %d", int(m))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(b []byte) error {
	v, ok := ParseMethod(string(b))
	if !ok {
		return fmt.Errorf("unknown pupil method %q", b)
	}
	*m = v
	return nil
}

// Pupil is one accepted ellipse candidate, in eye-region coordinates.
type Pupil struct {
	Ellipse geometry.Ellipse `json:"ellipse"`

	// Bright blobs inside the ellipse from the second, fixed-threshold pass.
	// Only filled when Params.InnerBlobs is set.
	Reflections []geometry.Point2D `json:"reflections,omitempty"`

	// Brightest pixel inside the ellipse on the light image.
	Brightest      geometry.Point2D `json:"brightest"`
	BrightestValue uint8            `json:"brightest_value"`
}

// Center returns the ellipse center.
func (p Pupil) Center() geometry.Point2D {
	return p.Ellipse.Center
}

// TCEResult holds the candidates from one threshold-contour-ellipse run.
type TCEResult struct {
	Pupils     []Pupil // Deduplicated, in contour discovery order
	Contours   int     // Contours traced from the edge map
	Skipped    int     // Contours shorter than five points
	Degenerate int     // Contours whose fit was degenerate
	Rejected   int     // Fitted ellipses failing the area/aspect filter
	Threshold  float64 // Binarization threshold actually applied
}

// Best returns the first accepted candidate.
func (r TCEResult) Best() (Pupil, bool) {
	if len(r.Pupils) == 0 {
		return Pupil{}, false
	}
	return r.Pupils[0], true
}

// Centers returns the candidate centers in order.
func (r TCEResult) Centers() []geometry.Point2D {
	out := make([]geometry.Point2D, len(r.Pupils))
	for i, p := range r.Pupils {
		out[i] = p.Center()
	}
	return out
}
