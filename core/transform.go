package core

import (
	"github.com/go-gl/mathgl/mgl64"
)

type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

func NewTransform() *Transform {
	return &Transform{
		Position: mgl64.Vec3{0, 0, 0},
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

func (t *Transform) ObjectToWorld() mgl64.Mat4 {
	// M = T * R * S
	translate := mgl64.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl64.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())

	return translate.Mul4(rotate).Mul4(scale)
}

// WorldBounds returns the conservative world-space box of a local box under
// this transform.
func (t *Transform) WorldBounds(local AABB) AABB {
	if local.Empty() {
		return local
	}
	o2w := t.ObjectToWorld()
	corners := local.Corners()
	world := make([]mgl64.Vec3, len(corners))
	for i, c := range corners {
		world[i] = o2w.Mul4x1(c.Vec4(1.0)).Vec3()
	}
	return BoundsOf(world)
}
