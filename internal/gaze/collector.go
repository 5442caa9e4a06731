package gaze

import (
	"sync"

	"gaze-tracker/pkg/geometry"
)

// Collector accumulates calibration samples in the order they arrive. It is
// safe to Add from a capture goroutine while another reads.
type Collector struct {
	mu      sync.Mutex
	samples []Sample
}

// Add appends one sample.
func (c *Collector) Add(disp, target geometry.Point2D) {
	c.mu.Lock()
	c.samples = append(c.samples, Sample{DX: disp.X, DY: disp.Y, SX: target.X, SY: target.Y})
	c.mu.Unlock()
}

// Samples returns a copy of the collected samples.
func (c *Collector) Samples() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// Len returns the number of samples collected.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// Reset discards all samples.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.samples = nil
	c.mu.Unlock()
}

// TargetGrid returns n×n fixation targets spread over the screen, row by
// row, inset by a tenth of each axis. n = 1 yields the screen center.
func TargetGrid(b Bounds, n int) []geometry.Point2D {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []geometry.Point2D{{X: b.MaxX / 2, Y: b.MaxY / 2}}
	}

	mx, my := b.MaxX/10, b.MaxY/10
	stepX := (b.MaxX - 2*mx) / float64(n-1)
	stepY := (b.MaxY - 2*my) / float64(n-1)

	out := make([]geometry.Point2D, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			out = append(out, geometry.Point2D{X: mx + float64(c)*stepX, Y: my + float64(r)*stepY})
		}
	}
	return out
}
