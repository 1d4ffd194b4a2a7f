package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

var letter = Rect{X0: 0, Y0: 0, X1: 612, Y1: 792}

func TestNormalizeRotation(t *testing.T) {
	for in, want := range map[int]int{0: 0, 90: 90, 360: 0, 450: 90, -90: 270, -180: 180} {
		got, err := NormalizeRotation(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "rotation %d", in)
	}
	_, err := NormalizeRotation(45)
	assert.Error(t, err)
}

func TestNewViewportRejects(t *testing.T) {
	_, err := NewViewport(letter, 0, 0)
	assert.Error(t, err)
	_, err = NewViewport(Rect{X0: 10, Y0: 10, X1: 10, Y1: 50}, 0, 1)
	assert.Error(t, err)
	_, err = NewViewport(letter, 30, 1)
	assert.Error(t, err)
}

func TestViewportSize(t *testing.T) {
	v, err := NewViewport(letter, 0, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1224, v.Width(), eps)
	assert.InDelta(t, 1584, v.Height(), eps)

	v, err = NewViewport(letter, 90, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1584, v.Width(), eps)
	assert.InDelta(t, 1224, v.Height(), eps)
}

func TestToDocumentCorners(t *testing.T) {
	tests := []struct {
		rot    int
		vx, vy float64
		wantX  float64
		wantY  float64
	}{
		// top-left of the rendering
		{0, 0, 0, 0, 792},
		{90, 0, 0, 0, 0},
		{180, 0, 0, 612, 0},
		{270, 0, 0, 612, 792},
		// bottom-left of an unrotated rendering is the origin
		{0, 0, 792, 0, 0},
	}
	for _, tt := range tests {
		v, err := NewViewport(letter, tt.rot, 1)
		require.NoError(t, err)
		p := v.ToDocument(tt.vx, tt.vy)
		assert.InDelta(t, tt.wantX, p.X, eps, "rot %d x", tt.rot)
		assert.InDelta(t, tt.wantY, p.Y, eps, "rot %d y", tt.rot)
	}
}

func TestRoundTrip(t *testing.T) {
	box := Rect{X0: 10, Y0: 20, X1: 605, Y1: 830}
	for _, rot := range []int{0, 90, 180, 270} {
		v, err := NewViewport(box, rot, 1.5)
		require.NoError(t, err)
		for _, p := range []Point{{10, 20}, {100, 700}, {605, 830}, {333.3, 44.4}} {
			vp := v.ToViewport(p.X, p.Y)
			back := v.ToDocument(vp.X, vp.Y)
			assert.InDelta(t, p.X, back.X, 1e-6, "rot %d", rot)
			assert.InDelta(t, p.Y, back.Y, 1e-6, "rot %d", rot)

			assert.GreaterOrEqual(t, vp.X, -1e-6)
			assert.GreaterOrEqual(t, vp.Y, -1e-6)
			assert.LessOrEqual(t, vp.X, v.Width()+1e-6)
			assert.LessOrEqual(t, vp.Y, v.Height()+1e-6)
		}
	}
}

func TestRectToDocument(t *testing.T) {
	v, err := NewViewport(letter, 0, ScaleForDPI(144))
	require.NoError(t, err)
	r := v.RectToDocument(Rect{X0: 100, Y0: 100, X1: 300, Y1: 140})
	assert.InDelta(t, 50, r.X0, eps)
	assert.InDelta(t, 150, r.X1, eps)
	assert.InDelta(t, 722, r.Y0, eps)
	assert.InDelta(t, 742, r.Y1, eps)
	assert.InDelta(t, 100, r.Width(), eps)
	assert.InDelta(t, 20, r.Height(), eps)

	back := v.RectToViewport(r)
	assert.InDelta(t, 100, back.X0, eps)
	assert.InDelta(t, 140, back.Y1, eps)
}
