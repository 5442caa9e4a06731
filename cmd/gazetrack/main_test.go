package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"gaze-tracker/internal/export"
	"gaze-tracker/internal/frame"
	"gaze-tracker/internal/gaze"
	"gaze-tracker/internal/region"
	"gaze-tracker/internal/tracker"
	"gaze-tracker/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnplugged = errors.New("camera unplugged")

// flakySource serves n uniform frames, then fails.
type flakySource struct {
	n, next int
	fail    error
}

func (s *flakySource) Next() (frame.Frame, error) {
	if s.next >= s.n {
		return frame.Frame{}, s.fail
	}
	pix := make([]uint8, 60*60)
	for i := range pix {
		pix[i] = 128
	}
	img, err := frame.FromPixels(60, 60, pix)
	if err != nil {
		return frame.Frame{}, err
	}
	f := frame.Frame{Index: s.next, Light: img}
	s.next++
	return f, nil
}

func (s *flakySource) Close() error { return nil }

func newSession(w io.Writer) *session {
	loc := region.NewFixed(geometry.RectInt{X: 10, Y: 10, Width: 30, Height: 30})
	return &session{
		tracker: tracker.New(loc, tracker.DefaultConfig()),
		writer:  export.NewWriter(w),
	}
}

func TestSessionProcess(t *testing.T) {
	tests := []struct {
		name    string
		frames  int
		fail    error
		wantErr error
	}{
		{"source exhausted", 2, io.EOF, nil},
		{"source fails mid run", 2, errUnplugged, errUnplugged},
		{"source fails at once", 0, errUnplugged, errUnplugged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := newSession(&buf)

			err := s.process(context.Background(), &flakySource{n: tt.frames, fail: tt.fail})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.frames, s.frames)

			// Rows written before a failure reach the writer.
			out := strings.TrimSpace(buf.String())
			if tt.frames == 0 {
				assert.Empty(t, out)
				return
			}
			lines := strings.Split(out, "\n")
			require.Len(t, lines, tt.frames+1)
			assert.Equal(t, export.Header, lines[0])
			assert.True(t, strings.HasPrefix(lines[1], "0 left "), lines[1])
		})
	}
}

func TestSessionProcess_Cancelled(t *testing.T) {
	var buf bytes.Buffer
	s := newSession(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.process(ctx, &flakySource{n: 3, fail: io.EOF})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.frames)
}

func TestSessionRecord_CollectsOnlyDisplacements(t *testing.T) {
	var buf bytes.Buffer
	s := newSession(&buf)
	s.fixation = geometry.Point2D{X: 950, Y: 500}
	s.collector = &gaze.Collector{}

	s.record(tracker.FrameResult{Index: 0, Eyes: []tracker.EyeResult{{Status: tracker.StatusNoPupil}}}, frame.GrayImage{})
	s.record(tracker.FrameResult{Index: 1, Eyes: []tracker.EyeResult{{
		Status:       tracker.StatusOK,
		Displacement: geometry.Point2D{X: -2, Y: 1},
	}}}, frame.GrayImage{})

	assert.Equal(t, 2, s.frames)
	assert.Equal(t, 1, s.ok)
	require.Equal(t, 1, s.collector.Len())
	assert.Equal(t, gaze.Sample{DX: -2, DY: 1, SX: 950, SY: 500}, s.collector.Samples()[0])
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint(" 190, 100.5")
	require.NoError(t, err)
	assert.Equal(t, geometry.Point2D{X: 190, Y: 100.5}, p)

	for _, bad := range []string{"", "1", "1,2,3", "x,2", "1,y"} {
		_, err := parsePoint(bad)
		assert.Error(t, err, bad)
	}
}
