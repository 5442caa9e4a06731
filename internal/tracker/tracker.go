// Package tracker runs the per-frame pipeline: eye regions, pupil, glint,
// displacement and, once calibrated, the gaze estimate.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"gaze-tracker/internal/debug"
	"gaze-tracker/internal/frame"
	"gaze-tracker/internal/gaze"
	"gaze-tracker/internal/glint"
	"gaze-tracker/internal/pupil"
	"gaze-tracker/internal/region"
	"gaze-tracker/pkg/geometry"
)

// Config selects the algorithms and their parameters.
type Config struct {
	PupilMethod pupil.Method
	Pupil       pupil.Params
	GV          pupil.GVParams
	Glint       glint.Params
	Gaze        gaze.FitOptions
}

// DefaultConfig returns TCE pupil detection with stock parameters.
func DefaultConfig() Config {
	return Config{
		PupilMethod: pupil.MethodTCE,
		Pupil:       pupil.DefaultParams(),
		GV:          pupil.DefaultGVParams(),
		Glint:       glint.DefaultParams(),
		Gaze:        gaze.DefaultFitOptions(),
	}
}

// Tracker processes frames one at a time. Process is not safe for
// concurrent use; the gaze model handle is.
type Tracker struct {
	locator region.Locator
	cfg     Config
	model   *gaze.Handle
}

// New creates a tracker around a region locator. The tracker does not own
// the locator.
func New(locator region.Locator, cfg Config) *Tracker {
	return &Tracker{
		locator: locator,
		cfg:     cfg,
		model:   gaze.NewHandle(),
	}
}

// Model returns the gaze model handle.
func (t *Tracker) Model() *gaze.Handle {
	return t.model
}

// Calibrate fits a new gaze model and publishes it. The previous model, if
// any, stays in use when fitting fails.
func (t *Tracker) Calibrate(samples []gaze.Sample) error {
	m, err := t.model.Refit(samples, t.cfg.Gaze)
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}
	wx, wy := m.Coefficients()
	log.Printf("Calibrated from %d samples: wx=%.4g wy=%.4g", len(samples), wx, wy)
	return nil
}

// Process runs the pipeline on one frame. dark may be nil. Per-eye failures
// are reported through EyeResult.Status; FrameResult.Err is set only when
// no eye could be processed at all.
func (t *Tracker) Process(ctx context.Context, light frame.GrayImage, dark *frame.GrayImage) FrameResult {
	var res FrameResult

	regions, err := t.locator.Locate(light)
	if err != nil {
		res.Err = err
		if errors.Is(err, region.ErrNoRegionFound) {
			res.Eyes = []EyeResult{{Status: StatusNoRegion}}
		}
		return res
	}

	for _, r := range regions {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		eye, err := t.processEye(light, dark, r)
		if err != nil {
			res.Err = err
			return res
		}
		res.Eyes = append(res.Eyes, eye)
	}

	if disp, ok := res.Displacement(); ok {
		if p, err := t.model.Predict(disp.X, disp.Y); err == nil {
			res.Gaze = &p
		}
	}
	return res
}

func (t *Tracker) processEye(light frame.GrayImage, dark *frame.GrayImage, r region.EyeRegion) (EyeResult, error) {
	eye := EyeResult{Region: r}

	crop := light.Crop(r.Rect)
	if crop.Empty() {
		eye.Status = StatusNoRegion
		return eye, nil
	}
	var darkCrop *frame.GrayImage
	if dark != nil {
		dc := dark.Crop(r.Rect)
		darkCrop = &dc
	}

	switch t.cfg.PupilMethod {
	case pupil.MethodGV:
		c, err := pupil.LocateGV(crop, t.cfg.GV)
		if err != nil {
			return eye, err
		}
		eye.Pupil = c
	default:
		tce, err := pupil.LocateTCE(crop, darkCrop, t.cfg.Pupil)
		if err != nil {
			return eye, err
		}
		best, ok := tce.Best()
		if !ok {
			eye.Status = StatusNoPupil
			if tce.Degenerate > 0 && tce.Rejected == 0 {
				eye.Status = StatusDegenerate
			}
			debug.FrameLog("tracker: %s eye: %v (%d contours, %d degenerate, %d rejected)",
				r.Side, pupil.ErrDetectionFailure, tce.Contours, tce.Degenerate, tce.Rejected)
			return eye, nil
		}
		el := best.Ellipse
		eye.Ellipse = &el
		eye.Pupil = best.Center()
	}

	glints, err := glint.Locate(crop, t.cfg.Glint)
	if err != nil {
		return eye, err
	}
	eye.Glints = glints
	g, ok := glint.Largest(glints)
	if !ok {
		eye.Status = StatusNoGlint
		return eye, nil
	}
	eye.Glint = g.Center
	eye.Displacement = eye.Pupil.Sub(g.Center)
	eye.Status = StatusOK
	return eye, nil
}

// Run processes frames from src until it is exhausted or ctx is done,
// handing every result to sink.
func (t *Tracker) Run(ctx context.Context, src frame.Source, sink func(FrameResult)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		res := t.Process(ctx, f.Light, f.Dark)
		res.Index = f.Index
		if res.Err != nil {
			debug.FrameLog("tracker: frame %d: %v", f.Index, res.Err)
		}
		sink(res)
	}
}

// Sample turns a frame result into a calibration sample for a fixation
// target. It fails when no eye produced a displacement.
func Sample(res FrameResult, target geometry.Point2D) (gaze.Sample, bool) {
	d, ok := res.Displacement()
	if !ok {
		return gaze.Sample{}, false
	}
	return gaze.Sample{DX: d.X, DY: d.Y, SX: target.X, SY: target.Y}, true
}
