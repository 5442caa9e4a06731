package frame

import (
	"fmt"
	"io"

	"gocv.io/x/gocv"
)

// Frame is one tracker input: a primary image and, for bright/dark pupil
// rigs, a second image of the same scene under the other illumination.
type Frame struct {
	Index int
	Light GrayImage
	Dark  *GrayImage
}

// Source yields frames until it returns io.EOF.
type Source interface {
	Next() (Frame, error)
	Close() error
}

// PairSource serves frames from image files on disk. Each entry is a light
// image path and an optional dark image path ("" for single-image frames).
type PairSource struct {
	pairs [][2]string
	next  int
}

// NewPairSource creates a source over light/dark path pairs.
func NewPairSource(pairs [][2]string) *PairSource {
	return &PairSource{pairs: pairs}
}

// Next loads the next pair.
func (s *PairSource) Next() (Frame, error) {
	if s.next >= len(s.pairs) {
		return Frame{}, io.EOF
	}
	idx := s.next
	s.next++

	light, err := Load(s.pairs[idx][0])
	if err != nil {
		return Frame{}, err
	}
	f := Frame{Index: idx, Light: light}
	if s.pairs[idx][1] != "" {
		dark, err := Load(s.pairs[idx][1])
		if err != nil {
			return Frame{}, err
		}
		if dark.Width() != light.Width() || dark.Height() != light.Height() {
			return Frame{}, fmt.Errorf("frame %d: dark image is %dx%d, light is %dx%d",
				idx, dark.Width(), dark.Height(), light.Width(), light.Height())
		}
		f.Dark = &dark
	}
	return f, nil
}

// Close is a no-op for file sources.
func (s *PairSource) Close() error { return nil }

// CaptureSource reads frames from a camera index or a video file.
// When Interleaved is set, consecutive frames are paired: even frames are
// the light illumination, odd frames the dark one.
type CaptureSource struct {
	cap         *gocv.VideoCapture
	interleaved bool
	buf         gocv.Mat
	gray        gocv.Mat
	count       int
}

// OpenCapture opens a camera (int) or video path (string).
func OpenCapture(device interface{}, interleaved bool) (*CaptureSource, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %v: %w", device, err)
	}
	return &CaptureSource{
		cap:         vc,
		interleaved: interleaved,
		buf:         gocv.NewMat(),
		gray:        gocv.NewMat(),
	}, nil
}

// Next reads one frame, or two in interleaved mode.
func (s *CaptureSource) Next() (Frame, error) {
	light, err := s.read()
	if err != nil {
		return Frame{}, err
	}
	f := Frame{Index: s.count, Light: light}
	s.count++
	if !s.interleaved {
		return f, nil
	}
	dark, err := s.read()
	if err != nil {
		return Frame{}, err
	}
	f.Dark = &dark
	return f, nil
}

func (s *CaptureSource) read() (GrayImage, error) {
	if ok := s.cap.Read(&s.buf); !ok || s.buf.Empty() {
		return GrayImage{}, io.EOF
	}
	if s.buf.Channels() == 1 {
		return FromMat(s.buf)
	}
	gocv.CvtColor(s.buf, &s.gray, gocv.ColorBGRToGray)
	return FromMat(s.gray)
}

// Close releases the capture device.
func (s *CaptureSource) Close() error {
	s.buf.Close()
	s.gray.Close()
	return s.cap.Close()
}
