// Package gaze maps pupil-glint displacement vectors to screen coordinates
// with a second-order polynomial fitted by ridge regression.
package gaze

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// NumFeatures is the width of one design-matrix row.
const NumFeatures = 6

// MinSamples is the fewest calibration samples Fit accepts.
const MinSamples = 3

var (
	// ErrInsufficientCalibrationData is returned by Fit for fewer than
	// MinSamples samples.
	ErrInsufficientCalibrationData = errors.New("insufficient calibration data")
	// ErrSingularMatrix is returned when a pivot falls below PivotEpsilon.
	ErrSingularMatrix = errors.New("singular matrix")
	// ErrModelNotFit is returned when predicting without a fitted model.
	ErrModelNotFit = errors.New("gaze model not fit")
	// ErrInvalidOptions is returned for out-of-range fit options.
	ErrInvalidOptions = errors.New("invalid fit options")
)

// Sample pairs one displacement with the screen point the user fixated.
type Sample struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
	SX float64 `json:"sx"`
	SY float64 `json:"sy"`
}

// Features returns [dx, dy, dx·dy, dx², dy², 1].
func Features(dx, dy float64) [NumFeatures]float64 {
	return [NumFeatures]float64{dx, dy, dx * dy, dx * dx, dy * dy, 1}
}

// DesignMatrix builds one feature row per sample.
func DesignMatrix(samples []Sample) *mat.Dense {
	if len(samples) == 0 {
		return nil
	}
	x := mat.NewDense(len(samples), NumFeatures, nil)
	for i, s := range samples {
		f := Features(s.DX, s.DY)
		x.SetRow(i, f[:])
	}
	return x
}

// targets splits the screen coordinates into per-axis vectors.
func targets(samples []Sample) (sx, sy []float64) {
	sx = make([]float64, len(samples))
	sy = make([]float64, len(samples))
	for i, s := range samples {
		sx[i] = s.SX
		sy[i] = s.SY
	}
	return sx, sy
}
