// Package export writes tracker results for downstream tools: plain-text
// coordinate tables and BMP debug images.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gaze-tracker/internal/frame"
	"gaze-tracker/internal/glint"
	"gaze-tracker/internal/pupil"
	"gaze-tracker/internal/tracker"
	"gaze-tracker/pkg/geometry"
)

// Header is the first line written by a Writer.
const Header = "# frame eye status pupil_x pupil_y glint_x glint_y dx dy gaze_x gaze_y"

// Writer emits one whitespace-separated line per eye with three decimals.
// Points are in frame coordinates. Missing values are written as "-".
type Writer struct {
	w      *bufio.Writer
	header bool
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteFrame writes every eye of res.
func (w *Writer) WriteFrame(res tracker.FrameResult) error {
	if !w.header {
		if _, err := fmt.Fprintln(w.w, Header); err != nil {
			return err
		}
		w.header = true
	}

	gazeCols := "- -"
	if res.Gaze != nil {
		gazeCols = fmt.Sprintf("%.3f %.3f", res.Gaze.X, res.Gaze.Y)
	}

	for _, e := range res.Eyes {
		abs := e.Absolute()
		pupilCols, glintCols, dispCols := "- -", "- -", "- -"
		switch e.Status {
		case tracker.StatusOK:
			pupilCols = point(abs.Pupil)
			glintCols = point(abs.Glint)
			dispCols = point(e.Displacement)
		case tracker.StatusNoGlint:
			pupilCols = point(abs.Pupil)
		}
		_, err := fmt.Fprintf(w.w, "%d %s %q %s %s %s %s\n",
			res.Index, e.Region.Side, e.Status.String(), pupilCols, glintCols, dispCols, gazeCols)
		if err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any buffered lines.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// WritePoints writes "x y" lines, the format of the legacy center files.
func WritePoints(w io.Writer, pts []geometry.Point2D) error {
	bw := bufio.NewWriter(w)
	for _, p := range pts {
		if _, err := fmt.Fprintln(bw, point(p)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func point(p geometry.Point2D) string {
	return fmt.Sprintf("%.3f %.3f", p.X, p.Y)
}

// Dumper saves intermediate images of each processed eye under Dir.
type Dumper struct {
	Dir   string
	Glint glint.Params
}

// DumpEye writes the eye crop, its glint filter response and its gradient
// magnitude as BMP files named after the frame index and side.
func (d Dumper) DumpEye(light frame.GrayImage, index int, eye tracker.EyeResult) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	crop := light.Crop(eye.Region.Rect)
	if crop.Empty() {
		return frame.ErrEmpty
	}
	prefix := filepath.Join(d.Dir, fmt.Sprintf("%05d_%s", index, eye.Region.Side))

	if err := frame.SaveBMP(prefix+"_eye.bmp", crop); err != nil {
		return err
	}
	diff, err := glint.DifferenceImage(crop, d.Glint)
	if err != nil {
		return fmt.Errorf("glint response: %w", err)
	}
	if err := frame.SaveBMP(prefix+"_glint.bmp", diff); err != nil {
		return err
	}
	grad, err := pupil.GradientMagnitudeImage(crop)
	if err != nil {
		return fmt.Errorf("gradient image: %w", err)
	}
	return frame.SaveBMP(prefix+"_grad.bmp", grad)
}
