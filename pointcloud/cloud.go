// Package pointcloud ingests raw point-cloud assets and normalizes them into
// centered, uniformly scaled, colorized geometry of a fixed size.
package pointcloud

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/renderspace/roomview/core"
)

var (
	// ErrInvalidAsset marks assets that can never be registered: empty
	// vertex buffers, malformed data or unrecognized formats.
	ErrInvalidAsset = errors.New("invalid asset")
	// ErrUnsupportedFormat is an ErrInvalidAsset for locators whose format
	// the pipeline does not decode.
	ErrUnsupportedFormat = wrapInvalid("unsupported format")
	// ErrAssetLoad reports a failure of the asset source itself.
	ErrAssetLoad = errors.New("asset load failed")
	// ErrInvalidOptions rejects normalization options that cannot be applied.
	ErrInvalidOptions = errors.New("invalid normalization options")
	// ErrInvalidOrientation rejects rotations that are not axis-aligned
	// quarter turns.
	ErrInvalidOrientation = errors.New("orientation must be an axis-aligned quarter-turn rotation")
)

type invalidKind struct{ msg string }

func wrapInvalid(msg string) error { return &invalidKind{msg: msg} }

func (e *invalidKind) Error() string { return e.msg }
func (e *invalidKind) Unwrap() error { return ErrInvalidAsset }

// RawPointCloud is vertex data as delivered by a loader. Colors is either
// empty or holds one RGB triple in [0, 1] per position.
type RawPointCloud struct {
	Positions []mgl64.Vec3
	Colors    []mgl64.Vec3
	Source    string
}

func (c RawPointCloud) Len() int { return len(c.Positions) }

func (c RawPointCloud) HasColors() bool { return len(c.Colors) > 0 }

// NormalizedAsset is the output of Normalize. It owns its buffers and is
// never modified after it is returned; placement happens on the object that
// wraps it.
type NormalizedAsset struct {
	Positions []mgl64.Vec3
	// Colors holds Count RGB triples, flattened.
	Colors []float32
	Count  int
	// Bounds is the local bounding box after normalization.
	Bounds core.AABB
	// Scale is the uniform factor that was applied.
	Scale float64
	// Degenerate is set when the source had zero extent and Scale fell
	// back to 1.
	Degenerate bool
	Source     string
}

func (a *NormalizedAsset) Valid() bool {
	return a != nil && a.Count > 0 && len(a.Positions) == a.Count && len(a.Colors) == 3*a.Count
}

func (a *NormalizedAsset) Color(i int) mgl32.Vec3 {
	return mgl32.Vec3{a.Colors[3*i], a.Colors[3*i+1], a.Colors[3*i+2]}
}

// PositionBuffer flattens positions into an x,y,z float32 buffer for upload.
func (a *NormalizedAsset) PositionBuffer() []float32 {
	buf := make([]float32, 0, 3*a.Count)
	for _, p := range a.Positions {
		buf = append(buf, float32(p.X()), float32(p.Y()), float32(p.Z()))
	}
	return buf
}

// Raw returns the asset as a point cloud again, e.g. to renormalize it.
func (a *NormalizedAsset) Raw() RawPointCloud {
	out := RawPointCloud{
		Positions: append([]mgl64.Vec3(nil), a.Positions...),
		Colors:    make([]mgl64.Vec3, a.Count),
		Source:    a.Source,
	}
	for i := range out.Colors {
		c := a.Color(i)
		out.Colors[i] = mgl64.Vec3{float64(c.X()), float64(c.Y()), float64(c.Z())}
	}
	return out
}
