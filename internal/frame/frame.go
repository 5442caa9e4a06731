// Package frame provides the grayscale frame type consumed by the tracker,
// along with image loading, gocv conversion and frame sources.
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"gaze-tracker/pkg/geometry"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
	"golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrEmpty is returned when an operation needs at least one pixel.
var ErrEmpty = errors.New("empty frame")

// GrayImage is an immutable 8-bit grayscale frame stored row-major with
// stride equal to width.
type GrayImage struct {
	pix    []uint8
	width  int
	height int
}

// FromGray copies an *image.Gray into a GrayImage.
func FromGray(src *image.Gray) GrayImage {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		copy(pix[y*w:(y+1)*w], row)
	}
	return GrayImage{pix: pix, width: w, height: h}
}

// FromImage converts any image to grayscale. Gray sources are copied as is;
// everything else goes through luminance conversion.
func FromImage(src image.Image) GrayImage {
	if g, ok := src.(*image.Gray); ok {
		return FromGray(g)
	}
	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), imaging.Grayscale(src), image.Point{}, draw.Src)
	return FromGray(gray)
}

// FromPixels wraps a row-major pixel buffer. The buffer is copied.
func FromPixels(width, height int, pix []uint8) (GrayImage, error) {
	if width < 0 || height < 0 || len(pix) != width*height {
		return GrayImage{}, fmt.Errorf("pixel buffer is %d bytes, want %dx%d", len(pix), width, height)
	}
	buf := make([]uint8, len(pix))
	copy(buf, pix)
	return GrayImage{pix: buf, width: width, height: height}, nil
}

// FromMat copies a single-channel 8-bit Mat.
func FromMat(m gocv.Mat) (GrayImage, error) {
	if m.Empty() {
		return GrayImage{}, ErrEmpty
	}
	if m.Type() != gocv.MatTypeCV8U {
		return GrayImage{}, fmt.Errorf("unsupported mat type %v", m.Type())
	}
	c := m.Clone()
	defer c.Close()
	return FromPixels(c.Cols(), c.Rows(), c.ToBytes())
}

// Load reads an image file (BMP, TIFF, PNG or JPEG) and converts it to
// grayscale. EXIF orientation is applied.
func Load(path string) (GrayImage, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return GrayImage{}, fmt.Errorf("failed to open image: %w", err)
	}
	return FromImage(img), nil
}

// SaveBMP writes the frame as an 8-bit BMP, used for debug dumps.
func SaveBMP(path string, g GrayImage) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bmp.Encode(f, g.Gray()); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// Width returns the frame width in pixels.
func (g GrayImage) Width() int { return g.width }

// Height returns the frame height in pixels.
func (g GrayImage) Height() int { return g.height }

// Empty reports whether the frame has no pixels.
func (g GrayImage) Empty() bool { return g.width == 0 || g.height == 0 }

// Bounds returns the frame rectangle anchored at the origin.
func (g GrayImage) Bounds() geometry.RectInt {
	return geometry.RectInt{Width: g.width, Height: g.height}
}

// At returns the intensity at (x, y), or 0 outside the frame.
func (g GrayImage) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return 0
	}
	return g.pix[y*g.width+x]
}

// Pixels returns a copy of the pixel buffer.
func (g GrayImage) Pixels() []uint8 {
	out := make([]uint8, len(g.pix))
	copy(out, g.pix)
	return out
}

// Gray returns a copy as a standard library image.
func (g GrayImage) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.width, g.height))
	copy(img.Pix, g.pix)
	return img
}

// Mat returns a new CV_8UC1 Mat holding a copy of the frame. The caller
// owns the Mat and must Close it.
func (g GrayImage) Mat() (gocv.Mat, error) {
	if g.Empty() {
		return gocv.NewMat(), ErrEmpty
	}
	m, err := gocv.NewMatFromBytes(g.height, g.width, gocv.MatTypeCV8U, g.Pixels())
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to build mat: %w", err)
	}
	// NewMatFromBytes aliases Go memory; detach it.
	defer m.Close()
	return m.Clone(), nil
}

// Crop returns the part of the frame inside r, clamped to the frame.
func (g GrayImage) Crop(r geometry.RectInt) GrayImage {
	c := r.Intersect(g.Bounds())
	if c.Empty() {
		return GrayImage{}
	}
	pix := make([]uint8, c.Width*c.Height)
	for y := 0; y < c.Height; y++ {
		src := (c.Y+y)*g.width + c.X
		copy(pix[y*c.Width:(y+1)*c.Width], g.pix[src:src+c.Width])
	}
	return GrayImage{pix: pix, width: c.Width, height: c.Height}
}

// Resize scales the frame so its larger side is at most maxDim. Frames
// already small enough are returned unchanged with scale 1.
func (g GrayImage) Resize(maxDim int) (GrayImage, float64) {
	longest := max(g.width, g.height)
	if maxDim <= 0 || longest <= maxDim {
		return g, 1
	}
	scale := float64(maxDim) / float64(longest)
	w := int(float64(g.width)*scale + 0.5)
	h := int(float64(g.height)*scale + 0.5)
	return FromImage(imaging.Resize(g.Gray(), w, h, imaging.Linear)), scale
}
