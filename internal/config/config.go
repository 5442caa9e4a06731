// Package config loads the tracker configuration: one JSON document with a
// section per pipeline stage, overridable from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gaze-tracker/internal/debug"
	"gaze-tracker/internal/gaze"
	"gaze-tracker/internal/glint"
	"gaze-tracker/internal/pupil"
	"gaze-tracker/internal/region"
	"gaze-tracker/internal/tracker"
)

// DefaultFile is the configuration file name looked up by the commands.
const DefaultFile = "config.json"

// File is the on-disk configuration.
type File struct {
	Region      region.Config   `json:"region"`
	PupilMethod pupil.Method    `json:"pupil_method"`
	Pupil       pupil.Params    `json:"pupil"`
	GV          pupil.GVParams  `json:"gv"`
	Glint       glint.Params    `json:"glint"`
	Gaze        gaze.FitOptions `json:"gaze"`

	// Model is an optional fitted model file loaded at startup.
	Model string `json:"model,omitempty"`
	// DumpDir receives debug images when set.
	DumpDir string `json:"dump_dir,omitempty"`

	Debug       bool `json:"debug"`
	DebugFrames bool `json:"debug_frames"`
}

// Default returns the configuration used when no file exists.
func Default() *File {
	t := tracker.DefaultConfig()
	return &File{
		Region:      region.DefaultConfig(),
		PupilMethod: t.PupilMethod,
		Pupil:       t.Pupil,
		GV:          t.GV,
		Glint:       t.Glint,
		Gaze:        t.Gaze,
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*File, error) {
	f := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := f.applyEnv(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Save writes the configuration as indented JSON.
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks values that would otherwise fail deep in the pipeline.
func (f *File) Validate() error {
	if err := f.Gaze.Validate(); err != nil {
		return err
	}
	if f.Pupil.MinArea >= f.Pupil.MaxArea {
		return fmt.Errorf("pupil area range [%g, %g] is empty", f.Pupil.MinArea, f.Pupil.MaxArea)
	}
	if f.Pupil.MinAspect >= f.Pupil.MaxAspect {
		return fmt.Errorf("pupil aspect range [%g, %g] is empty", f.Pupil.MinAspect, f.Pupil.MaxAspect)
	}
	if f.GV.Sigma <= 0 {
		return fmt.Errorf("gv sigma must be positive, got %g", f.GV.Sigma)
	}
	return nil
}

// Tracker returns the pipeline settings.
func (f *File) Tracker() tracker.Config {
	return tracker.Config{
		PupilMethod: f.PupilMethod,
		Pupil:       f.Pupil,
		GV:          f.GV,
		Glint:       f.Glint,
		Gaze:        f.Gaze,
	}
}

// ApplyDebug sets the process-wide logging switches.
func (f *File) ApplyDebug() {
	debug.Enabled = f.Debug || f.DebugFrames
	debug.Frames = f.DebugFrames
}

func (f *File) applyEnv() error {
	f.Region.CascadeDir = getEnv("GAZE_CASCADE_DIR", f.Region.CascadeDir)

	var err error
	if f.Gaze.Bounds.MaxX, err = getEnvFloat("GAZE_SCREEN_W", f.Gaze.Bounds.MaxX); err != nil {
		return err
	}
	if f.Gaze.Bounds.MaxY, err = getEnvFloat("GAZE_SCREEN_H", f.Gaze.Bounds.MaxY); err != nil {
		return err
	}
	if f.Gaze.Lambda, err = getEnvFloat("GAZE_LAMBDA", f.Gaze.Lambda); err != nil {
		return err
	}
	if v := os.Getenv("GAZE_DEBUG"); v != "" {
		switch v {
		case "frames":
			f.Debug, f.DebugFrames = true, true
		default:
			on, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("GAZE_DEBUG: %w", err)
			}
			f.Debug = on
		}
	}
	return nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvFloat(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return f, nil
}
