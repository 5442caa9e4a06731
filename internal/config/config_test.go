package config

import (
	"os"
	"path/filepath"
	"testing"

	"gaze-tracker/internal/debug"
	"gaze-tracker/internal/pupil"
	"gaze-tracker/internal/region"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, pupil.MethodTCE, f.PupilMethod)
	assert.Equal(t, 1900.0, f.Gaze.Bounds.MaxX)
	assert.Equal(t, 1000.0, f.Gaze.Bounds.MaxY)
	assert.Equal(t, 0.1, f.Gaze.Smoothing)
	assert.Equal(t, 105.0, f.Pupil.BlobThreshold)
	assert.Equal(t, 50.0, f.Glint.Threshold)
	assert.Equal(t, region.StrategyEye, f.Region.Strategy)
}

func TestLoad_PartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	doc := `{
  "pupil_method": "gv",
  "region": {"strategy": "face"},
  "pupil": {"threshold": "fixed", "fixed_threshold": 70},
  "gaze": {"bounds": {"max_x": 2560, "max_y": 1440}}
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, pupil.MethodGV, f.PupilMethod)
	assert.Equal(t, region.StrategyFace, f.Region.Strategy)
	assert.Equal(t, pupil.ThresholdFixed, f.Pupil.Threshold)
	assert.Equal(t, 70.0, f.Pupil.FixedThreshold)
	assert.Equal(t, 100.0, f.Pupil.MinArea, "untouched field keeps default")
	assert.Equal(t, 2560.0, f.Gaze.Bounds.MaxX)
	assert.Equal(t, 0.1, f.Gaze.Smoothing)
	assert.Equal(t, "haarcascade_eye.xml", f.Region.EyeCascade)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad json", `{"pupil": `},
		{"unknown method", `{"pupil_method": "hough"}`},
		{"negative lambda", `{"gaze": {"lambda": -1}}`},
		{"empty area range", `{"pupil": {"min_area": 500, "max_area": 400}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GAZE_CASCADE_DIR", "/opt/cascades")
	t.Setenv("GAZE_SCREEN_W", "1280")
	t.Setenv("GAZE_SCREEN_H", "720")
	t.Setenv("GAZE_LAMBDA", "0.5")
	t.Setenv("GAZE_DEBUG", "frames")

	f, err := Load(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Equal(t, "/opt/cascades", f.Region.CascadeDir)
	assert.Equal(t, 1280.0, f.Gaze.Bounds.MaxX)
	assert.Equal(t, 720.0, f.Gaze.Bounds.MaxY)
	assert.Equal(t, 0.5, f.Gaze.Lambda)
	assert.True(t, f.Debug)
	assert.True(t, f.DebugFrames)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("GAZE_SCREEN_W", "wide")
	_, err := Load(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	f := Default()
	f.PupilMethod = pupil.MethodGV
	f.Region.Strategy = region.StrategyPigo
	f.Pupil = f.Pupil.WithInnerBlobs(120)

	require.NoError(t, f.Save(path))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestTrackerAndDebug(t *testing.T) {
	f := Default()
	f.PupilMethod = pupil.MethodGV
	assert.Equal(t, pupil.MethodGV, f.Tracker().PupilMethod)

	defer func() { debug.Enabled, debug.Frames = false, false }()
	f.DebugFrames = true
	f.ApplyDebug()
	assert.True(t, debug.Enabled)
	assert.True(t, debug.Frames)
}
