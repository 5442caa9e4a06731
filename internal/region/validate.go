package region

import (
	"image"

	"gaze-tracker/pkg/geometry"
)

// ValidationParams bound what a plausible eye box and eye pair look like.
type ValidationParams struct {
	// Per eye
	MinAspect  float64 `json:"min_aspect"`   // width/height
	MaxAspect  float64 `json:"max_aspect"`
	MinRelSize float64 `json:"min_rel_size"` // box area / frame area
	MaxRelSize float64 `json:"max_rel_size"`

	// Per pair
	MinAreaRatio float64 `json:"min_area_ratio"` // left area / right area
	MaxAreaRatio float64 `json:"max_area_ratio"`
}

// DefaultValidationParams returns the stock plausibility bounds.
func DefaultValidationParams() ValidationParams {
	return ValidationParams{
		MinAspect:    0.4,
		MaxAspect:    2.5,
		MinRelSize:   0.01,
		MaxRelSize:   0.15,
		MinAreaRatio: 0.5,
		MaxAreaRatio: 2.0,
	}
}

// AcceptEye reports whether one detection has a plausible shape and size
// for the frame.
func (p ValidationParams) AcceptEye(r, frame geometry.RectInt) bool {
	if r.Empty() || frame.Empty() {
		return false
	}
	aspect := float64(r.Width) / float64(r.Height)
	if aspect < p.MinAspect || aspect > p.MaxAspect {
		return false
	}
	rel := float64(r.Area()) / float64(frame.Area())
	return rel >= p.MinRelSize && rel <= p.MaxRelSize
}

// ValidatePair checks a left/right pair (left.X <= right.X) for overlap,
// size similarity and vertical alignment. Every failure wraps
// ErrNoRegionFound.
func ValidatePair(left, right geometry.RectInt, p ValidationParams) error {
	if right.X < left.Right() {
		return ErrOverlap
	}
	if right.Area() == 0 {
		return ErrSizeMismatch
	}
	ratio := float64(left.Area()) / float64(right.Area())
	if ratio < p.MinAreaRatio || ratio > p.MaxAreaRatio {
		return ErrSizeMismatch
	}
	dy := left.Y - right.Y
	if dy < 0 {
		dy = -dy
	}
	if dy > left.Height {
		return ErrMisaligned
	}
	return nil
}

// SelectEyes turns raw eye detections into at most two validated regions.
// Detections are sorted by x and filtered one by one; the first two
// survivors must then pass ValidatePair. A single survivor is returned on
// its own.
func SelectEyes(dets []image.Rectangle, bounds geometry.RectInt, p ValidationParams) ([]EyeRegion, error) {
	rects := make([]geometry.RectInt, 0, len(dets))
	for _, d := range dets {
		rects = append(rects, geometry.RectFrom(d))
	}
	sorted := sortByX(rects)

	var kept []geometry.RectInt
	for _, r := range sorted {
		if p.AcceptEye(r, bounds) {
			kept = append(kept, r)
		}
	}

	switch len(kept) {
	case 0:
		return nil, ErrNoRegionFound
	case 1:
		return assignSides(kept), nil
	}
	if err := ValidatePair(kept[0], kept[1], p); err != nil {
		return nil, err
	}
	return assignSides(kept[:2]), nil
}

// EyeBoxes derives both eye boxes from a face box: each a third of the face
// in width and height, starting a quarter of the way down, the left one a
// sixth of the way in and the right one at the middle. Boxes are clipped to
// bounds; fully clipped boxes are dropped.
func EyeBoxes(face, bounds geometry.RectInt) []EyeRegion {
	w, h := face.Width/3, face.Height/3
	top := face.Y + face.Height/4

	left := geometry.RectInt{X: face.X + face.Width/6, Y: top, Width: w, Height: h}
	right := geometry.RectInt{X: face.X + face.Width/2, Y: top, Width: w, Height: h}

	var rects []geometry.RectInt
	for _, r := range []geometry.RectInt{left, right} {
		if c := r.Intersect(bounds); !c.Empty() {
			rects = append(rects, c)
		}
	}
	return assignSides(rects)
}
