package pointcloud

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// OriginPolicy decides where the normalized object's origin sits.
type OriginPolicy int

const (
	// OriginCenter moves the bounding-box center to the origin.
	OriginCenter OriginPolicy = iota
	// OriginFloor centers X and Z and puts the lowest point at y = 0.
	OriginFloor
)

func (p OriginPolicy) String() string {
	switch p {
	case OriginCenter:
		return "center"
	case OriginFloor:
		return "floor"
	}
	return fmt.Sprintf("OriginPolicy(%d)", int(p))
}

// ParseOriginPolicy accepts "center" and "floor".
func ParseOriginPolicy(s string) (OriginPolicy, error) {
	switch s {
	case "", "center":
		return OriginCenter, nil
	case "floor":
		return OriginFloor, nil
	}
	return 0, fmt.Errorf("%w: unknown origin policy %q", ErrInvalidOptions, s)
}

// ColorPolicy decides how vertex colors are assigned.
type ColorPolicy int

const (
	// ColorHeightGradient replaces source colors with a warm-to-cool
	// gradient over the final Y range.
	ColorHeightGradient ColorPolicy = iota
	// ColorSource keeps the source's colors and falls back to the gradient
	// when the source has none.
	ColorSource
)

func (p ColorPolicy) String() string {
	switch p {
	case ColorHeightGradient:
		return "height-gradient"
	case ColorSource:
		return "source"
	}
	return fmt.Sprintf("ColorPolicy(%d)", int(p))
}

func ParseColorPolicy(s string) (ColorPolicy, error) {
	switch s {
	case "", "height-gradient":
		return ColorHeightGradient, nil
	case "source":
		return ColorSource, nil
	}
	return 0, fmt.Errorf("%w: unknown color policy %q", ErrInvalidOptions, s)
}

// Orientation is a fixed re-orientation applied after scaling, used when the
// source's up axis differs from the scene's (Y up). Only axis-aligned
// quarter turns are representable, so extents are permuted, never changed.
type Orientation struct {
	Name     string
	Rotation mgl64.Mat3
}

var (
	OrientationIdentity = mustOrientation("identity", mgl64.QuatIdent())
	// OrientationTrellis turns the furniture generator's output upright and
	// facing -Z: half turn about X, then a quarter turn clockwise about Y.
	OrientationTrellis = mustOrientation("trellis",
		mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{0, 1, 0}).Mul(mgl64.QuatRotate(math.Pi, mgl64.Vec3{1, 0, 0})))
	// OrientationZUp maps a Z-up source onto Y-up.
	OrientationZUp = mustOrientation("z-up", mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{1, 0, 0}))
	// OrientationZDown is OrientationZUp inverted, for sources that come out
	// upside down with it.
	OrientationZDown = mustOrientation("z-down", mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0}))
)

var namedOrientations = []Orientation{OrientationIdentity, OrientationTrellis, OrientationZUp, OrientationZDown}

// OrientationByName looks up one of the named orientations.
func OrientationByName(name string) (Orientation, error) {
	if name == "" {
		return OrientationIdentity, nil
	}
	for _, o := range namedOrientations {
		if o.Name == name {
			return o, nil
		}
	}
	return Orientation{}, fmt.Errorf("%w: unknown orientation %q", ErrInvalidOptions, name)
}

// NewOrientation snaps q to an exact signed permutation matrix. It fails if
// q is not a multiple of 90 degrees about the coordinate axes.
func NewOrientation(name string, q mgl64.Quat) (Orientation, error) {
	m, err := snapQuarterTurn(q.Normalize().Mat4().Mat3())
	if err != nil {
		return Orientation{}, fmt.Errorf("%w: %s", err, name)
	}
	return Orientation{Name: name, Rotation: m}, nil
}

func snapQuarterTurn(m mgl64.Mat3) (mgl64.Mat3, error) {
	var snapped mgl64.Mat3
	for i := range m {
		r := math.Round(m[i])
		if math.Abs(m[i]-r) > 1e-9 {
			return mgl64.Mat3{}, ErrInvalidOrientation
		}
		snapped[i] = r
	}
	for k := 0; k < 3; k++ {
		var rowNZ, colNZ int
		for j := 0; j < 3; j++ {
			if snapped.At(k, j) != 0 {
				rowNZ++
			}
			if snapped.At(j, k) != 0 {
				colNZ++
			}
		}
		if rowNZ != 1 || colNZ != 1 {
			return mgl64.Mat3{}, ErrInvalidOrientation
		}
	}
	return snapped, nil
}

func mustOrientation(name string, q mgl64.Quat) Orientation {
	o, err := NewOrientation(name, q)
	if err != nil {
		panic(err)
	}
	return o
}

func (o Orientation) IsIdentity() bool {
	return o.Rotation == mgl64.Ident3() || o.Rotation == mgl64.Mat3{}
}

func (o Orientation) Apply(p mgl64.Vec3) mgl64.Vec3 {
	if o.IsIdentity() {
		return p
	}
	return o.Rotation.Mul3x1(p)
}

// Options configures Normalize.
type Options struct {
	// TargetSize is the length the longest bounding-box extent is scaled to.
	TargetSize  float64
	Origin      OriginPolicy
	Color       ColorPolicy
	Orientation Orientation
}

// DefaultOptions is unit size, centered, height gradient colors and no
// rotation. Furniture configs opt into OrientationTrellis by name.
func DefaultOptions() Options {
	return Options{
		TargetSize:  1.0,
		Origin:      OriginCenter,
		Color:       ColorHeightGradient,
		Orientation: OrientationIdentity,
	}
}

func (o Options) Validate() error {
	if !(o.TargetSize > 0) || math.IsInf(o.TargetSize, 0) {
		return fmt.Errorf("%w: target size must be positive and finite, got %g", ErrInvalidOptions, o.TargetSize)
	}
	if o.Origin != OriginCenter && o.Origin != OriginFloor {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, o.Origin)
	}
	if o.Color != ColorHeightGradient && o.Color != ColorSource {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, o.Color)
	}
	if !o.Orientation.IsIdentity() {
		if _, err := snapQuarterTurn(o.Orientation.Rotation); err != nil {
			return fmt.Errorf("%w: %s", err, o.Orientation.Name)
		}
	}
	return nil
}
