package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// PerspectiveCamera is a Y-up look-at camera. FovY is the vertical field of
// view in degrees.
type PerspectiveCamera struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3
	Up       mgl64.Vec3
	FovY     float64
	Aspect   float64
	Near     float64
	Far      float64
}

func NewPerspectiveCamera(fovY, aspect, near, far float64) *PerspectiveCamera {
	return &PerspectiveCamera{
		Position: mgl64.Vec3{0, 0, 5},
		Target:   mgl64.Vec3{0, 0, 0},
		Up:       mgl64.Vec3{0, 1, 0},
		FovY:     fovY,
		Aspect:   aspect,
		Near:     near,
		Far:      far,
	}
}

func (c *PerspectiveCamera) Forward() mgl64.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}

func (c *PerspectiveCamera) Right() mgl64.Vec3 {
	return c.Forward().Cross(c.Up).Normalize()
}

func (c *PerspectiveCamera) ViewMatrix() mgl64.Mat4 {
	return mgl64.LookAtV(c.Position, c.Target, c.Up)
}

func (c *PerspectiveCamera) ProjectionMatrix() mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(c.FovY), c.aspect(), c.Near, c.Far)
}

func (c *PerspectiveCamera) aspect() float64 {
	if c.Aspect <= 0 {
		return 1.0
	}
	return c.Aspect
}

// Ray casts from the camera through a point in normalized device
// coordinates (x right, y up, both in [-1, 1]).
func (c *PerspectiveCamera) Ray(ndc mgl64.Vec2) Ray {
	forward := c.Forward()
	right := c.Right()
	up := right.Cross(forward)

	tanHalfFov := math.Tan(mgl64.DegToRad(c.FovY) / 2.0)
	aspect := c.aspect()

	dir := forward.
		Add(right.Mul(ndc.X() * aspect * tanHalfFov)).
		Add(up.Mul(ndc.Y() * tanHalfFov))

	return Ray{Origin: c.Position, Direction: dir.Normalize()}
}

// Project maps a world point to normalized device coordinates. ok is false
// for points behind the camera.
func (c *PerspectiveCamera) Project(pos mgl64.Vec3) (mgl64.Vec2, bool) {
	vp := c.ProjectionMatrix().Mul4(c.ViewMatrix())
	clip := vp.Mul4x1(pos.Vec4(1.0))
	if clip.W() <= 0 {
		return mgl64.Vec2{}, false
	}
	return mgl64.Vec2{clip.X() / clip.W(), clip.Y() / clip.W()}, true
}
