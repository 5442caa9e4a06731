package region

import (
	"fmt"
	"os"

	"gaze-tracker/internal/debug"
	"gaze-tracker/internal/frame"
	"gaze-tracker/pkg/geometry"

	pigo "github.com/esimov/pigo/core"
)

// PigoFace finds faces with the pigo pixel-intensity-comparison cascade,
// which needs no OpenCV model files, and derives eye boxes from the best
// face.
type PigoFace struct {
	classifier *pigo.Pigo
	maxDim     int
	minQuality float32
	minSize    int
}

func newPigoFace(cfg Config) (*PigoFace, error) {
	data, err := os.ReadFile(cfg.path(cfg.PigoCascade))
	if err != nil {
		return nil, fmt.Errorf("error reading the pigo cascade file: %w", err)
	}
	return NewPigoFace(data, cfg)
}

// NewPigoFace unpacks a facefinder cascade held in memory.
func NewPigoFace(cascade []byte, cfg Config) (*PigoFace, error) {
	// Unpack returns the tree count, depth, thresholds and leaf predictions.
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("error unpacking the pigo cascade file: %w", err)
	}
	return &PigoFace{
		classifier: classifier,
		maxDim:     cfg.MaxDim,
		minQuality: float32(cfg.MinQuality),
		minSize:    cfg.Face.MinSize,
	}, nil
}

// Locate implements Locator.
func (p *PigoFace) Locate(img frame.GrayImage) ([]EyeRegion, error) {
	if img.Empty() {
		return nil, frame.ErrEmpty
	}

	small, scale := img.Resize(p.maxDim)
	cols, rows := small.Width(), small.Height()

	minSize := max(int(float64(p.minSize)*scale), 20)
	cParams := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     max(cols, rows),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: small.Pixels(),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := p.classifier.RunCascade(cParams, 0.0)
	// Merge overlapping windows by intersection over union.
	dets = p.classifier.ClusterDetections(dets, 0.2)

	face, ok := bestFace(dets, p.minQuality)
	if !ok {
		return nil, ErrNoRegionFound
	}
	debug.FrameLog("region: pigo face row=%d col=%d scale=%d q=%.1f", face.Row, face.Col, face.Scale, face.Q)

	return eyeBoxesOrFail(faceRect(face, scale), img.Bounds())
}

// Close implements Locator.
func (p *PigoFace) Close() error { return nil }

// bestFace returns the highest scoring detection above minQuality.
func bestFace(dets []pigo.Detection, minQuality float32) (pigo.Detection, bool) {
	var best pigo.Detection
	found := false
	for _, d := range dets {
		if d.Q < minQuality {
			continue
		}
		if !found || d.Q > best.Q {
			best, found = d, true
		}
	}
	return best, found
}

// faceRect converts a pigo detection (center and side length in the
// downscaled frame) to a box in full-resolution coordinates.
func faceRect(d pigo.Detection, scale float64) geometry.RectInt {
	inv := 1 / scale
	side := int(float64(d.Scale) * inv)
	return geometry.RectInt{
		X:      int(float64(d.Col-d.Scale/2) * inv),
		Y:      int(float64(d.Row-d.Scale/2) * inv),
		Width:  side,
		Height: side,
	}
}
