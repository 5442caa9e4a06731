package pupil

import (
	"testing"

	"gaze-tracker/internal/frame"
	"gaze-tracker/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateGV_DarkDisk(t *testing.T) {
	img := mustFrame(t, 40, 40, drawEllipse(40, 40, 20, 20, 6, 6, 20, 200))

	for _, workers := range []int{1, 3, 8} {
		got, err := LocateGV(img, DefaultGVParams().WithWorkers(workers))
		require.NoError(t, err)
		assert.LessOrEqual(t, got.Distance(geometry.Point2D{X: 20, Y: 20}), 1.0, "workers=%d", workers)
	}
}

func TestLocateGV_OffCenterDisk(t *testing.T) {
	img := mustFrame(t, 48, 36, drawEllipse(48, 36, 30, 14, 5, 5, 10, 220))

	got, err := LocateGV(img, DefaultGVParams())
	require.NoError(t, err)
	assert.LessOrEqual(t, got.Distance(geometry.Point2D{X: 30, Y: 14}), 1.0)
}

func TestLocateGV_WorkerCountDoesNotChangeResult(t *testing.T) {
	img := mustFrame(t, 40, 40, drawEllipse(40, 40, 17, 22, 7, 5, 40, 180))

	want, err := LocateGV(img, DefaultGVParams().WithWorkers(1))
	require.NoError(t, err)
	got, err := LocateGV(img, DefaultGVParams().WithWorkers(5))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLocateGV_UniformImage(t *testing.T) {
	flat := make([]uint8, 20*20)
	for i := range flat {
		flat[i] = 90
	}
	got, err := LocateGV(mustFrame(t, 20, 20, flat), DefaultGVParams())
	require.NoError(t, err)
	// Flat score surface: first cell in row-major order.
	assert.Equal(t, geometry.Point2D{}, got)
}

func TestLocateGV_Step(t *testing.T) {
	img := mustFrame(t, 40, 40, drawEllipse(40, 40, 20, 20, 6, 6, 20, 200))
	p := DefaultGVParams()
	p.Step = 2

	got, err := LocateGV(img, p)
	require.NoError(t, err)
	assert.Equal(t, 0, int(got.X)%2)
	assert.Equal(t, 0, int(got.Y)%2)
	assert.LessOrEqual(t, got.Distance(geometry.Point2D{X: 20, Y: 20}), 2.0)
}

func TestLocateGV_Empty(t *testing.T) {
	_, err := LocateGV(frame.GrayImage{}, DefaultGVParams())
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestGradientMagnitudeImage(t *testing.T) {
	img := mustFrame(t, 40, 40, drawEllipse(40, 40, 20, 20, 6, 6, 20, 200))

	mag, err := GradientMagnitudeImage(img)
	require.NoError(t, err)
	assert.Equal(t, 40, mag.Width())
	assert.Equal(t, uint8(0), mag.At(20, 20), "flat interior")
	assert.Equal(t, uint8(0), mag.At(2, 2), "flat background")
	assert.Equal(t, uint8(255), mag.At(14, 20), "disk edge")
}
