package gaze

import (
	"sync/atomic"

	"gaze-tracker/pkg/geometry"
)

// Handle holds the model currently used for prediction. A new model is
// fitted off to the side and swapped in whole, so callers always see either
// the old or the new model.
type Handle struct {
	current atomic.Pointer[Model]
}

// NewHandle returns an empty handle.
func NewHandle() *Handle {
	return &Handle{}
}

// Publish makes m the current model. A nil m unpublishes.
func (h *Handle) Publish(m *Model) {
	h.current.Store(m)
}

// Current returns the published model, or nil.
func (h *Handle) Current() *Model {
	return h.current.Load()
}

// Fitted reports whether a model has been published.
func (h *Handle) Fitted() bool {
	return h.current.Load() != nil
}

// Refit fits a new model and publishes it on success. On error the current
// model stays in place.
func (h *Handle) Refit(samples []Sample, opts FitOptions) (*Model, error) {
	m, err := Fit(samples, opts)
	if err != nil {
		return nil, err
	}
	h.Publish(m)
	return m, nil
}

// Predict runs the current model, or returns ErrModelNotFit.
func (h *Handle) Predict(dx, dy float64) (geometry.Point2D, error) {
	m := h.current.Load()
	if m == nil {
		return geometry.Point2D{}, ErrModelNotFit
	}
	return m.Predict(dx, dy), nil
}
