package core

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Viewport is the render surface's bounding rectangle in window (client)
// pixels. Pointer positions are made relative to it before conversion to
// normalized device coordinates.
type Viewport struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

func (v Viewport) Aspect() float64 {
	if v.Height <= 0 {
		return 1.0
	}
	return v.Width / v.Height
}

// NDC converts a client-space pointer position to normalized device
// coordinates. ok is false when the viewport has no area.
func (v Viewport) NDC(clientX, clientY float64) (mgl64.Vec2, bool) {
	if v.Width <= 0 || v.Height <= 0 {
		return mgl64.Vec2{}, false
	}
	x := ((clientX-v.Left)/v.Width)*2 - 1
	y := -((clientY-v.Top)/v.Height)*2 + 1
	return mgl64.Vec2{x, y}, true
}

// Client is the inverse of NDC.
func (v Viewport) Client(ndc mgl64.Vec2) (float64, float64) {
	x := v.Left + (ndc.X()+1)/2*v.Width
	y := v.Top + (1-ndc.Y())/2*v.Height
	return x, y
}
