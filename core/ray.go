package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Plane holds the points p with Normal·p + D = 0.
type Plane struct {
	Normal mgl64.Vec3
	D      float64
}

// Horizontal returns the Y-up plane through height y.
func Horizontal(y float64) Plane {
	return Plane{Normal: mgl64.Vec3{0, 1, 0}, D: -y}
}

// Distance is signed: positive on the side the normal points to.
func (p Plane) Distance(point mgl64.Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// Project drops point onto the plane along the normal.
func (p Plane) Project(point mgl64.Vec3) mgl64.Vec3 {
	return point.Sub(p.Normal.Mul(p.Distance(point)))
}

// IntersectRay returns where the ray crosses the plane. Rays parallel to the
// plane or pointing away from it report no intersection.
func (p Plane) IntersectRay(ray Ray) (mgl64.Vec3, bool) {
	denom := p.Normal.Dot(ray.Direction)
	if math.Abs(denom) < 1e-9 {
		return mgl64.Vec3{}, false
	}
	t := -(p.Normal.Dot(ray.Origin) + p.D) / denom
	if t < 0 {
		return mgl64.Vec3{}, false
	}
	return ray.At(t), true
}
