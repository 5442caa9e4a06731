package pupil

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gaze-tracker/internal/frame"
	"gaze-tracker/internal/glint"
	"gaze-tracker/pkg/geometry"

	"gocv.io/x/gocv"
)

// LocateTCE finds pupil ellipses in an eye region. When dark is non-nil the
// absolute difference of the two illuminations is segmented instead of the
// light image alone.
//
// The pipeline is: optional differencing, Gaussian blur, binarization
// (Otsu or fixed), Canny edges, contour tracing, direct ellipse fit per
// contour, area/aspect filter and distance deduplication. An empty result
// is a normal outcome, not an error.
func LocateTCE(light frame.GrayImage, dark *frame.GrayImage, params Params) (TCEResult, error) {
	var result TCEResult
	if light.Empty() {
		return result, ErrEmptyImage
	}

	src, err := light.Mat()
	if err != nil {
		return result, err
	}
	defer src.Close()

	work := gocv.NewMat()
	defer work.Close()
	if dark != nil {
		if dark.Width() != light.Width() || dark.Height() != light.Height() {
			return result, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch,
				light.Width(), light.Height(), dark.Width(), dark.Height())
		}
		dm, err := dark.Mat()
		if err != nil {
			return result, err
		}
		defer dm.Close()
		gocv.AbsDiff(src, dm, &work)
		gocv.Normalize(work, &work, 0, 255, gocv.NormMinMax)
	} else {
		src.CopyTo(&work)
	}

	// Light blur to suppress sensor noise before binarization
	k := oddKernel(params.BlurSize)
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(work, &blurred, image.Point{k, k}, 0, 0, gocv.BorderDefault)

	binary := gocv.NewMat()
	defer binary.Close()
	result.Threshold = binarize(blurred, &binary, params)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(binary, &edges, float32(params.CannyLow), float32(params.CannyHigh))

	contours := gocv.FindContours(edges, gocv.RetrievalList, gocv.ChainApproxNone)
	defer contours.Close()
	result.Contours = contours.Size()

	var accepted []geometry.Point2D
	for i := 0; i < contours.Size(); i++ {
		e, err := FitEllipse(contours.At(i).ToPoints())
		if errors.Is(err, ErrTooFewPoints) {
			result.Skipped++
			continue
		}
		if err != nil {
			result.Degenerate++
			continue
		}
		e = compensateEdgeBias(e)
		if !params.Accept(e) {
			result.Rejected++
			continue
		}
		if isDuplicate(e.Center, accepted, params.DedupDistance) {
			continue
		}
		accepted = append(accepted, e.Center)

		p := Pupil{Ellipse: e}
		masked := maskEllipse(light, e, &p)
		if params.InnerBlobs {
			p.Reflections = innerBlobs(masked, params)
		}
		result.Pupils = append(result.Pupils, p)
	}

	return result, nil
}

// Accept reports whether an ellipse passes the area and aspect-ratio filter.
// Both ranges are exclusive.
func (p Params) Accept(e geometry.Ellipse) bool {
	area := e.Area()
	if area <= p.MinArea || area >= p.MaxArea {
		return false
	}
	aspect := e.AspectRatio()
	return aspect > p.MinAspect && aspect < p.MaxAspect
}

// Dedup keeps each center whose distance to every previously kept center is
// at least minDist. Order is preserved.
func Dedup(centers []geometry.Point2D, minDist float64) []geometry.Point2D {
	var kept []geometry.Point2D
	for _, c := range centers {
		if !isDuplicate(c, kept, minDist) {
			kept = append(kept, c)
		}
	}
	return kept
}

func isDuplicate(c geometry.Point2D, kept []geometry.Point2D, minDist float64) bool {
	for _, k := range kept {
		if c.Distance(k) < minDist {
			return true
		}
	}
	return false
}

// cannyTieOffset is the mean displacement of Canny edge pixels from a step
// boundary. Non-maximum suppression keeps the lower-coordinate pixel of the
// two equal-magnitude pixels straddling a binary step, so traced edges sit
// half a pixel up and to the left of the true boundary.
const cannyTieOffset = 0.5

// compensateEdgeBias moves an ellipse fitted to Canny edge pixels back onto
// the step boundary. The fit is translation equivariant, so shifting the
// center is the same as shifting every contour point.
func compensateEdgeBias(e geometry.Ellipse) geometry.Ellipse {
	e.Center = e.Center.Add(geometry.Point2D{X: cannyTieOffset, Y: cannyTieOffset})
	return e
}

// binarize thresholds src into dst and returns the threshold used.
func binarize(src gocv.Mat, dst *gocv.Mat, params Params) float64 {
	if params.Threshold == ThresholdFixed {
		gocv.Threshold(src, dst, float32(params.FixedThreshold), 255, gocv.ThresholdBinary)
		return params.FixedThreshold
	}
	t := gocv.Threshold(src, dst, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	return float64(t)
}

// maskEllipse returns the light image with everything outside e zeroed and
// records the brightest pixel inside e on p.
func maskEllipse(light frame.GrayImage, e geometry.Ellipse, p *Pupil) frame.GrayImage {
	w, h := light.Width(), light.Height()
	pix := make([]uint8, w*h)

	reach := math.Max(e.Major, e.Minor)/2 + 1
	x0 := max(0, int(math.Floor(e.Center.X-reach)))
	x1 := min(w-1, int(math.Ceil(e.Center.X+reach)))
	y0 := max(0, int(math.Floor(e.Center.Y-reach)))
	y1 := min(h-1, int(math.Ceil(e.Center.Y+reach)))

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if !e.Contains(geometry.Point2D{X: float64(x), Y: float64(y)}) {
				continue
			}
			v := light.At(x, y)
			pix[y*w+x] = v
			if v > p.BrightestValue {
				p.BrightestValue = v
				p.Brightest = geometry.Point2D{X: float64(x), Y: float64(y)}
			}
		}
	}

	masked, _ := frame.FromPixels(w, h, pix)
	return masked
}

// innerBlobs runs the second, fixed-threshold pass over the masked pupil
// and returns small bright blob centroids.
func innerBlobs(masked frame.GrayImage, params Params) []geometry.Point2D {
	m, err := masked.Mat()
	if err != nil {
		return nil
	}
	defer m.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(m, &binary, float32(params.BlobThreshold), 255, gocv.ThresholdBinary)

	blobs, _ := glint.Components(binary, gocv.RetrievalList)
	var out []geometry.Point2D
	for _, c := range blobs {
		if c.Area > params.BlobMinArea && c.Area < params.BlobMaxArea {
			out = append(out, c.Center)
		}
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
