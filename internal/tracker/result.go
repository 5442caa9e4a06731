package tracker

import (
	"gaze-tracker/internal/glint"
	"gaze-tracker/internal/region"
	"gaze-tracker/pkg/geometry"
)

// Status is the outcome of processing one eye.
type Status int

const (
	// StatusOK means pupil and glint were both found.
	StatusOK Status = iota
	// StatusNoRegion means the region locator found nothing.
	StatusNoRegion
	// StatusNoPupil means no pupil candidate survived the filters.
	StatusNoPupil
	// StatusDegenerate means every fitted contour was degenerate.
	StatusDegenerate
	// StatusNoGlint means the pupil was found but no reflection.
	StatusNoGlint
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoRegion:
		return "no region"
	case StatusNoPupil:
		return "no pupil"
	case StatusDegenerate:
		return "degenerate fit"
	case StatusNoGlint:
		return "no glint"
	default:
		return "unknown"
	}
}

// EyeResult holds the measurements for one eye in region-local
// coordinates.
type EyeResult struct {
	Region  region.EyeRegion  `json:"region"`
	Status  Status            `json:"status"`
	Pupil   geometry.Point2D  `json:"pupil"`
	Ellipse *geometry.Ellipse `json:"ellipse,omitempty"` // TCE only
	Glints  []glint.Candidate `json:"glints,omitempty"`
	Glint   geometry.Point2D  `json:"glint"` // largest glint

	// Displacement is pupil minus glint. Only meaningful for StatusOK.
	Displacement geometry.Point2D `json:"displacement"`
}

// OK reports whether the eye produced a displacement.
func (e EyeResult) OK() bool {
	return e.Status == StatusOK
}

// Absolute returns a copy with every point translated into frame
// coordinates. The displacement is a difference and stays unchanged.
func (e EyeResult) Absolute() EyeResult {
	origin := e.Region.Rect.Origin()
	out := e
	out.Pupil = e.Pupil.Add(origin)
	out.Glint = e.Glint.Add(origin)
	out.Glints = glint.Offset(e.Glints, origin)
	if e.Ellipse != nil {
		el := *e.Ellipse
		el.Center = el.Center.Add(origin)
		out.Ellipse = &el
	}
	return out
}

// FrameResult is the pipeline output for one frame.
type FrameResult struct {
	Index int               `json:"index"`
	Eyes  []EyeResult       `json:"eyes"`
	Gaze  *geometry.Point2D `json:"gaze,omitempty"`
	Err   error             `json:"-"`
}

// Displacement returns the displacement of the left-most usable eye.
func (f FrameResult) Displacement() (geometry.Point2D, bool) {
	for _, e := range f.Eyes {
		if e.OK() {
			return e.Displacement, true
		}
	}
	return geometry.Point2D{}, false
}
