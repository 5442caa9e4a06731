package region

import (
	"fmt"
	"image"
	"os"

	"gaze-tracker/internal/debug"
	"gaze-tracker/internal/frame"
	"gaze-tracker/pkg/geometry"

	"gocv.io/x/gocv"
)

// loadCascade loads one OpenCV cascade XML file.
func loadCascade(path string) (gocv.CascadeClassifier, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.CascadeClassifier{}, fmt.Errorf("cascade %s: %w", path, err)
	}
	c := gocv.NewCascadeClassifier()
	if !c.Load(path) {
		c.Close()
		return gocv.CascadeClassifier{}, fmt.Errorf("failed to load cascade %s", path)
	}
	return c, nil
}

func detect(c *gocv.CascadeClassifier, m gocv.Mat, p DetectParams) []image.Rectangle {
	return c.DetectMultiScaleWithParams(m, p.ScaleFactor, p.MinNeighbors, 0,
		image.Point{p.MinSize, p.MinSize}, image.Point{})
}

// EyeCascade detects eyes directly with a Haar eye cascade.
type EyeCascade struct {
	eyes       gocv.CascadeClassifier
	params     DetectParams
	validation ValidationParams
}

func newEyeCascade(cfg Config) (*EyeCascade, error) {
	eyes, err := loadCascade(cfg.path(cfg.EyeCascade))
	if err != nil {
		return nil, err
	}
	return &EyeCascade{eyes: eyes, params: cfg.Eye, validation: cfg.Validation}, nil
}

// Locate implements Locator.
func (e *EyeCascade) Locate(img frame.GrayImage) ([]EyeRegion, error) {
	m, err := img.Mat()
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return e.locateMat(m, img.Bounds())
}

func (e *EyeCascade) locateMat(m gocv.Mat, bounds geometry.RectInt) ([]EyeRegion, error) {
	dets := detect(&e.eyes, m, e.params)
	debug.FrameLog("region: %d eye detections", len(dets))
	return SelectEyes(dets, bounds, e.validation)
}

// Close implements Locator.
func (e *EyeCascade) Close() error {
	return e.eyes.Close()
}

// FaceCascade finds a frontal or profile face and derives the eye boxes
// from it. When neither face cascade fires it falls back to eye detection.
type FaceCascade struct {
	frontal  gocv.CascadeClassifier
	profile  gocv.CascadeClassifier
	params   DetectParams
	fallback *EyeCascade
}

func newFaceCascade(cfg Config) (*FaceCascade, error) {
	frontal, err := loadCascade(cfg.path(cfg.FrontalCascade))
	if err != nil {
		return nil, err
	}
	profile, err := loadCascade(cfg.path(cfg.ProfileCascade))
	if err != nil {
		frontal.Close()
		return nil, err
	}
	fallback, err := newEyeCascade(cfg)
	if err != nil {
		frontal.Close()
		profile.Close()
		return nil, err
	}
	return &FaceCascade{frontal: frontal, profile: profile, params: cfg.Face, fallback: fallback}, nil
}

// Locate implements Locator.
func (f *FaceCascade) Locate(img frame.GrayImage) ([]EyeRegion, error) {
	m, err := img.Mat()
	if err != nil {
		return nil, err
	}
	defer m.Close()

	bounds := img.Bounds()
	if faces := detect(&f.frontal, m, f.params); len(faces) > 0 {
		debug.FrameLog("region: frontal face at %v", faces[0])
		return eyeBoxesOrFail(geometry.RectFrom(faces[0]), bounds)
	}
	if faces := detect(&f.profile, m, f.params); len(faces) > 0 {
		debug.FrameLog("region: profile face at %v", faces[0])
		return eyeBoxesOrFail(geometry.RectFrom(faces[0]), bounds)
	}

	debug.FrameLog("region: no face, trying eye cascade")
	return f.fallback.locateMat(m, bounds)
}

// Close implements Locator.
func (f *FaceCascade) Close() error {
	f.frontal.Close()
	f.profile.Close()
	return f.fallback.Close()
}

func eyeBoxesOrFail(face, bounds geometry.RectInt) ([]EyeRegion, error) {
	regions := EyeBoxes(face, bounds)
	if len(regions) == 0 {
		return nil, ErrNoRegionFound
	}
	return regions, nil
}
