// Package glint finds corneal reflections: small, compact bright spots that
// stand out from their surround.
package glint

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gaze-tracker/internal/debug"
	"gaze-tracker/internal/frame"
	"gaze-tracker/pkg/geometry"

	"gocv.io/x/gocv"
)

// ErrInvalidCentroid marks a component whose zeroth moment is zero.
var ErrInvalidCentroid = errors.New("component has zero area")

// Candidate is one bright-spot centroid in eye-region coordinates.
type Candidate struct {
	Center geometry.Point2D `json:"center"`
	Area   float64          `json:"area"` // zeroth raster moment of the filled component
}

// Params holds parameters for glint isolation.
type Params struct {
	MaxKernel    int     `json:"max_kernel"`    // Elliptical dilation kernel size (odd)
	MedianKernel int     `json:"median_kernel"` // Median filter size (odd)
	Threshold    float64 `json:"threshold"`     // Binarization level on the max-minus-median image
}

// DefaultParams returns default glint parameters.
func DefaultParams() Params {
	return Params{
		MaxKernel:    3,
		MedianKernel: 3,
		Threshold:    50,
	}
}

// WithThreshold returns a copy with a custom binarization level.
func (p Params) WithThreshold(t float64) Params {
	p.Threshold = t
	return p
}

// WithKernels returns a copy with custom filter sizes. Even sizes are bumped
// to the next odd size when applied.
func (p Params) WithKernels(maxKernel, medianKernel int) Params {
	p.MaxKernel = maxKernel
	p.MedianKernel = medianKernel
	return p
}

// Locate returns every bright-spot centroid in img. The result may be empty.
func Locate(img frame.GrayImage, params Params) ([]Candidate, error) {
	if img.Empty() {
		return nil, frame.ErrEmpty
	}

	src, err := img.Mat()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	isolate(src, &diff, params)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(diff, &binary, float32(params.Threshold), 255, gocv.ThresholdBinary)

	cands, invalid := Components(binary, gocv.RetrievalExternal)
	if invalid > 0 {
		debug.Log("glint: discarded %d components: %v", invalid, ErrInvalidCentroid)
	}
	return cands, nil
}

// DifferenceImage returns the max-minus-median response for debug dumps.
func DifferenceImage(img frame.GrayImage, params Params) (frame.GrayImage, error) {
	src, err := img.Mat()
	if err != nil {
		return frame.GrayImage{}, err
	}
	defer src.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	isolate(src, &diff, params)
	return frame.FromMat(diff)
}

// isolate writes dilate(src) - median(src) into dst. The subtraction
// saturates at zero.
func isolate(src gocv.Mat, dst *gocv.Mat, params Params) {
	mk := oddKernel(params.MaxKernel)
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{mk, mk})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(src, &dilated, kernel)

	median := gocv.NewMat()
	defer median.Close()
	gocv.MedianBlur(src, &median, oddKernel(params.MedianKernel))

	gocv.Subtract(dilated, median, dst)
}

// Components traces the connected components of a binary image and returns
// their raster-moment centroids. Each contour is filled before the moments
// are taken so holes count toward the area. The second return value counts
// components dropped for a zero moment.
func Components(binary gocv.Mat, mode gocv.RetrievalMode) ([]Candidate, int) {
	contours := gocv.FindContours(binary, mode, gocv.ChainApproxSimple)
	defer contours.Close()

	var out []Candidate
	invalid := 0
	for i := 0; i < contours.Size(); i++ {
		c, err := centroid(binary.Rows(), binary.Cols(), contours, i)
		if err != nil {
			invalid++
			continue
		}
		out = append(out, c)
	}
	return out, invalid
}

func centroid(rows, cols int, contours gocv.PointsVector, idx int) (Candidate, error) {
	mask := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)
	defer mask.Close()
	mask.SetTo(gocv.NewScalar(0, 0, 0, 0))
	gocv.DrawContours(&mask, contours, idx, color.RGBA{255, 255, 255, 255}, -1)

	m := gocv.Moments(mask, true)
	m00 := m["m00"]
	if m00 == 0 {
		return Candidate{}, fmt.Errorf("contour %d: %w", idx, ErrInvalidCentroid)
	}
	return Candidate{
		Center: geometry.Point2D{X: m["m10"] / m00, Y: m["m01"] / m00},
		Area:   m00,
	}, nil
}

// Largest returns the candidate with the greatest area. The first one wins
// ties.
func Largest(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Area > best.Area {
			best = c
		}
	}
	return best, true
}

// Offset translates candidates by the region origin.
func Offset(cands []Candidate, origin geometry.Point2D) []Candidate {
	out := make([]Candidate, len(cands))
	for i, c := range cands {
		out[i] = Candidate{Center: c.Center.Add(origin), Area: c.Area}
	}
	return out
}

// oddKernel bumps even kernel sizes to the next odd size.
func oddKernel(k int) int {
	if k < 1 {
		return 1
	}
	if k%2 == 0 {
		return k + 1
	}
	return k
}
