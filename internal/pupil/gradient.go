package pupil

import (
	"fmt"
	"image"
	"math"
	"runtime"
	"sync"

	"gaze-tracker/internal/frame"
	"gaze-tracker/pkg/geometry"

	"gocv.io/x/gocv"
)

// gradientField holds the read-only inputs shared by all scoring workers.
type gradientField struct {
	width, height int
	gx, gy        []float32 // unit gradient, zero where flat
	weight        []float32 // darkness weight 1 - blurred intensity
}

// LocateGV returns the point from which image gradients point radially most
// consistently, weighted toward dark pixels. Every candidate on the grid is
// scored over a square window of radius params.Window around it.
//
// A uniform image yields a flat score surface; the first maximum in row-major
// order is returned and no error is reported.
func LocateGV(img frame.GrayImage, params GVParams) (geometry.Point2D, error) {
	if img.Empty() {
		return geometry.Point2D{}, ErrEmptyImage
	}

	field, err := newGradientField(img, params.Sigma)
	if err != nil {
		return geometry.Point2D{}, err
	}

	step := max(params.Step, 1)
	cols := (field.width + step - 1) / step
	rows := (field.height + step - 1) / step
	scores := make([]float64, rows*cols)

	workers := params.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > rows {
		workers = rows
	}

	// Each worker owns a contiguous band of grid rows and writes only there.
	var wg sync.WaitGroup
	band := (rows + workers - 1) / workers
	for start := 0; start < rows; start += band {
		end := min(start+band, rows)
		wg.Add(1)
		go func(r0, r1 int) {
			defer wg.Done()
			for r := r0; r < r1; r++ {
				for c := 0; c < cols; c++ {
					scores[r*cols+c] = field.score(c*step, r*step, params.Window)
				}
			}
		}(start, end)
	}
	wg.Wait()

	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return geometry.Point2D{
		X: float64((best % cols) * step),
		Y: float64((best / cols) * step),
	}, nil
}

// GradientMagnitudeImage renders the unit-gradient magnitude as an 8-bit
// image: 255 where the intensity changes, 0 on flat areas. Used for debug
// dumps.
func GradientMagnitudeImage(img frame.GrayImage) (frame.GrayImage, error) {
	if img.Empty() {
		return frame.GrayImage{}, ErrEmptyImage
	}
	field, err := newGradientField(img, DefaultGVParams().Sigma)
	if err != nil {
		return frame.GrayImage{}, err
	}
	pix := make([]uint8, len(field.gx))
	for i := range pix {
		m := math.Hypot(float64(field.gx[i]), float64(field.gy[i]))
		pix[i] = uint8(math.Min(m, 1)*255 + 0.5)
	}
	return frame.FromPixels(field.width, field.height, pix)
}

// score evaluates w(c) · Σ (d̂(p,c) · g(p))² over the window around (cx, cy).
func (f *gradientField) score(cx, cy, window int) float64 {
	wc := float64(f.weight[cy*f.width+cx])
	if wc <= 0 {
		return 0
	}

	x0, x1 := max(cx-window, 0), min(cx+window, f.width-1)
	y0, y1 := max(cy-window, 0), min(cy+window, f.height-1)

	var sum float64
	for y := y0; y <= y1; y++ {
		row := y * f.width
		dy := float64(y - cy)
		for x := x0; x <= x1; x++ {
			gx, gy := f.gx[row+x], f.gy[row+x]
			if gx == 0 && gy == 0 {
				continue
			}
			dx := float64(x - cx)
			n := math.Hypot(dx, dy)
			if n == 0 {
				continue
			}
			dot := (dx*float64(gx) + dy*float64(gy)) / n
			sum += dot * dot
		}
	}
	return wc * sum
}

func newGradientField(img frame.GrayImage, sigma float64) (*gradientField, error) {
	src, err := img.Mat()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	// Intensity in [0,1]
	norm := gocv.NewMat()
	defer norm.Close()
	src.ConvertTo(&norm, gocv.MatTypeCV32F)
	gocv.Normalize(norm, &norm, 0, 1, gocv.NormMinMax)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(norm, &blurred, image.Point{}, sigma, sigma, gocv.BorderDefault)

	sx := gocv.NewMat()
	defer sx.Close()
	sy := gocv.NewMat()
	defer sy.Close()
	gocv.Sobel(norm, &sx, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(norm, &sy, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	w, h := img.Width(), img.Height()
	if sx.Rows() != h || sx.Cols() != w || blurred.Rows() != h {
		return nil, fmt.Errorf("gradient field is %dx%d, want %dx%d", sx.Cols(), sx.Rows(), w, h)
	}

	f := &gradientField{
		width:  w,
		height: h,
		gx:     make([]float32, w*h),
		gy:     make([]float32, w*h),
		weight: make([]float32, w*h),
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			f.weight[i] = 1 - blurred.GetFloatAt(y, x)

			gx, gy := sx.GetFloatAt(y, x), sy.GetFloatAt(y, x)
			m := float32(math.Hypot(float64(gx), float64(gy)))
			if m > 0 {
				f.gx[i] = gx / m
				f.gy[i] = gy / m
			}
		}
	}
	return f, nil
}
