package gaze

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SampleFile is the on-disk form of a calibration session.
type SampleFile struct {
	Created time.Time `json:"created"`
	Bounds  Bounds    `json:"bounds"`
	Samples []Sample  `json:"samples"`
}

// LoadSamples reads a calibration sample file.
func LoadSamples(path string) (*SampleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f SampleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

// SaveSamples writes a calibration sample file.
func SaveSamples(path string, b Bounds, samples []Sample) error {
	f := SampleFile{
		Created: time.Now(),
		Bounds:  b,
		Samples: samples,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ModelFile is the on-disk form of a fitted model.
type ModelFile struct {
	Created time.Time            `json:"created"`
	Options FitOptions           `json:"options"`
	WX      [NumFeatures]float64 `json:"wx"`
	WY      [NumFeatures]float64 `json:"wy"`
	Samples int                  `json:"samples,omitempty"`
}

// SaveModel writes the model coefficients and options.
func SaveModel(path string, m *Model, samples int) error {
	if m == nil {
		return ErrModelNotFit
	}
	wx, wy := m.Coefficients()
	f := ModelFile{
		Created: time.Now(),
		Options: m.Options(),
		WX:      wx,
		WY:      wy,
		Samples: samples,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadModel reads a model file. The returned model starts cold.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f ModelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewModel(f.WX, f.WY, f.Options)
}
