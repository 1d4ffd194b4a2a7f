// Package geom converts between rendered page coordinates (pixels, origin top
// left, y down, page rotation applied) and PDF user space (points, origin
// bottom left, y up, unrotated).
package geom

import (
	"fmt"
	"math"
)

// PointsPerInch is the PDF user space unit density.
const PointsPerInch = 72.0

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis aligned rectangle given by two corners.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Normalize orders the corners so that X0 <= X1 and Y0 <= Y1.
func (r Rect) Normalize() Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

func (r Rect) Width() float64  { return math.Abs(r.X1 - r.X0) }
func (r Rect) Height() float64 { return math.Abs(r.Y1 - r.Y0) }

// Viewport describes how a page box was rendered.
type Viewport struct {
	Box      Rect
	Rotation int
	Scale    float64
}

// NormalizeRotation maps any multiple of 90 to 0, 90, 180 or 270.
func NormalizeRotation(deg int) (int, error) {
	if deg%90 != 0 {
		return 0, fmt.Errorf("rotation %d is not a multiple of 90", deg)
	}
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg, nil
}

// NewViewport validates the parameters of a rendered page.
func NewViewport(box Rect, rotation int, scale float64) (Viewport, error) {
	rot, err := NormalizeRotation(rotation)
	if err != nil {
		return Viewport{}, err
	}
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return Viewport{}, fmt.Errorf("invalid scale %v", scale)
	}
	box = box.Normalize()
	if box.Width() == 0 || box.Height() == 0 {
		return Viewport{}, fmt.Errorf("empty page box")
	}
	return Viewport{Box: box, Rotation: rot, Scale: scale}, nil
}

// ScaleForDPI returns the viewport scale of a page rendered at dpi.
func ScaleForDPI(dpi float64) float64 { return dpi / PointsPerInch }

func (v Viewport) swapped() bool { return v.Rotation == 90 || v.Rotation == 270 }

// Width of the rendered page in pixels.
func (v Viewport) Width() float64 {
	if v.swapped() {
		return v.Box.Height() * v.Scale
	}
	return v.Box.Width() * v.Scale
}

// Height of the rendered page in pixels.
func (v Viewport) Height() float64 {
	if v.swapped() {
		return v.Box.Width() * v.Scale
	}
	return v.Box.Height() * v.Scale
}

// ToDocument converts a viewport pixel position to PDF user space.
func (v Viewport) ToDocument(vx, vy float64) Point {
	w, h := v.Box.Width(), v.Box.Height()
	dx, dy := vx/v.Scale, vy/v.Scale
	var x, y float64
	switch v.Rotation {
	case 90:
		x, y = dy, dx
	case 180:
		x, y = w-dx, dy
	case 270:
		x, y = w-dy, h-dx
	default:
		x, y = dx, h-dy
	}
	return Point{X: x + v.Box.X0, Y: y + v.Box.Y0}
}

// ToViewport converts a PDF user space position to viewport pixels.
func (v Viewport) ToViewport(x, y float64) Point {
	w, h := v.Box.Width(), v.Box.Height()
	x -= v.Box.X0
	y -= v.Box.Y0
	var dx, dy float64
	switch v.Rotation {
	case 90:
		dx, dy = y, x
	case 180:
		dx, dy = w-x, y
	case 270:
		dx, dy = h-y, w-x
	default:
		dx, dy = x, h-y
	}
	return Point{X: dx * v.Scale, Y: dy * v.Scale}
}

// RectToDocument converts a viewport rectangle to a normalized PDF user space rectangle.
func (v Viewport) RectToDocument(r Rect) Rect {
	a := v.ToDocument(r.X0, r.Y0)
	b := v.ToDocument(r.X1, r.Y1)
	return Rect{X0: a.X, Y0: a.Y, X1: b.X, Y1: b.Y}.Normalize()
}

// RectToViewport converts a PDF user space rectangle to a normalized viewport rectangle.
func (v Viewport) RectToViewport(r Rect) Rect {
	a := v.ToViewport(r.X0, r.Y0)
	b := v.ToViewport(r.X1, r.Y1)
	return Rect{X0: a.X, Y0: a.Y, X1: b.X, Y1: b.Y}.Normalize()
}
