// Package geometry provides basic geometric types used throughout the tracker.
package geometry

import (
	"image"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// PointFrom converts an integer image point.
func PointFrom(p image.Point) Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// RectInt represents a rectangle with integer coordinates.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RectFrom converts an image.Rectangle.
func RectFrom(r image.Rectangle) RectInt {
	return RectInt{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Image returns the rectangle as an image.Rectangle.
func (r RectInt) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Right returns the exclusive right edge.
func (r RectInt) Right() int {
	return r.X + r.Width
}

// Area returns width × height.
func (r RectInt) Area() int {
	return r.Width * r.Height
}

// Empty reports whether the rectangle has no pixels.
func (r RectInt) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Origin returns the top-left corner.
func (r RectInt) Origin() Point2D {
	return Point2D{X: float64(r.X), Y: float64(r.Y)}
}

// Intersect returns the overlap of r and other, or an empty rectangle.
func (r RectInt) Intersect(other RectInt) RectInt {
	return RectFrom(r.Image().Intersect(other.Image()))
}

// Ellipse is a rotated ellipse. Major and Minor are full axis lengths, the
// same convention as an OpenCV RotatedRect size; Angle is the direction of
// the Major axis.
type Ellipse struct {
	Center Point2D `json:"center"`
	Major  float64 `json:"major"`
	Minor  float64 `json:"minor"`
	Angle  float64 `json:"angle"` // degrees
}

// Area returns π·Major·Minor/4.
func (e Ellipse) Area() float64 {
	return math.Pi * e.Major * e.Minor / 4
}

// AspectRatio returns Major/Minor, or +Inf for a flat ellipse.
func (e Ellipse) AspectRatio() float64 {
	if e.Minor == 0 {
		return math.Inf(1)
	}
	return math.Abs(e.Major / e.Minor)
}

// Contains reports whether p lies inside the ellipse.
func (e Ellipse) Contains(p Point2D) bool {
	if e.Major <= 0 || e.Minor <= 0 {
		return false
	}
	rad := e.Angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	dx, dy := p.X-e.Center.X, p.Y-e.Center.Y
	u := dx*cos + dy*sin
	v := -dx*sin + dy*cos
	a, b := e.Major/2, e.Minor/2
	return (u*u)/(a*a)+(v*v)/(b*b) <= 1
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}
