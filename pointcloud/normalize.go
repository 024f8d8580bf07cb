package pointcloud

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"

	"github.com/renderspace/roomview/core"
)

// Normalize centers, scales, reorients and colors a point cloud. The steps
// run in a fixed order, each on the output of the previous one:
//
//  1. reject empty clouds
//  2. compute the bounding box
//  3. translate per opts.Origin
//  4. scale = TargetSize / longest extent (1 when the extent is zero)
//  5. apply the scale
//  6. apply opts.Orientation (OriginFloor anchors again afterwards)
//  7. assign colors per opts.Color
//
// raw is not modified; the returned asset has its own buffers.
func Normalize(raw RawPointCloud, opts Options) (*NormalizedAsset, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	n := len(raw.Positions)
	if n == 0 {
		return nil, fmt.Errorf("%w: %s has no vertices", ErrInvalidAsset, sourceName(raw))
	}
	if len(raw.Colors) != 0 && len(raw.Colors) != n {
		return nil, fmt.Errorf("%w: %s has %d colors for %d vertices", ErrInvalidAsset, sourceName(raw), len(raw.Colors), n)
	}

	positions := make([]mgl64.Vec3, n)
	for i, p := range raw.Positions {
		if !finite(p) {
			return nil, fmt.Errorf("%w: %s vertex %d is not finite", ErrInvalidAsset, sourceName(raw), i)
		}
		positions[i] = p
	}

	// Coordinates are halved before subtracting so clouds spanning most of
	// the float64 range stay finite.
	box := bounds(positions)
	anchor := box.Center()
	if opts.Origin == OriginFloor {
		anchor[1] = box.Min.Y()
	}

	scale := 1.0
	half := box.HalfSize()
	halfExtent := math.Max(half.X(), math.Max(half.Y(), half.Z()))
	degenerate := halfExtent == 0
	if !degenerate {
		scale = (opts.TargetSize / 2) / halfExtent
	}

	for i, p := range positions {
		positions[i] = p.Mul(0.5).Sub(anchor.Mul(0.5)).Mul(2 * scale)
	}

	if !opts.Orientation.IsIdentity() {
		for i, p := range positions {
			positions[i] = opts.Orientation.Apply(p)
		}
		if opts.Origin == OriginFloor {
			// The rotation is about the origin and can swap the floor
			// anchored axis with a centered one; anchor again.
			rotated := bounds(positions)
			shift := rotated.Center()
			shift[1] = rotated.Min.Y()
			for i, p := range positions {
				positions[i] = p.Sub(shift)
			}
		}
	}

	asset := &NormalizedAsset{
		Positions:  positions,
		Count:      n,
		Bounds:     bounds(positions),
		Scale:      scale,
		Degenerate: degenerate,
		Source:     raw.Source,
	}

	if opts.Color == ColorSource && raw.HasColors() {
		asset.Colors = sourceColors(raw.Colors)
	} else {
		asset.Colors = HeightGradient(positions)
	}
	return asset, nil
}

// HeightGradient colors points by normalized height t in [0, 1]:
// r = 1, g = 0.5 + 0.5t, b = 0.2 + 0.8(1 - t). A flat cloud gets t = 0
// everywhere.
func HeightGradient(positions []mgl64.Vec3) []float32 {
	colors := make([]float32, 3*len(positions))
	if len(positions) == 0 {
		return colors
	}
	_, ys, _ := columns(positions)
	minY, maxY := floats.Min(ys), floats.Max(ys)
	rangeY := maxY - minY

	for i, y := range ys {
		t := 0.0
		if rangeY > 0 {
			t = (y - minY) / rangeY
		}
		colors[3*i+0] = 1.0
		colors[3*i+1] = float32(0.5 + 0.5*t)
		colors[3*i+2] = float32(0.2 + 0.8*(1.0-t))
	}
	return colors
}

func sourceColors(src []mgl64.Vec3) []float32 {
	colors := make([]float32, 3*len(src))
	for i, c := range src {
		for k := 0; k < 3; k++ {
			colors[3*i+k] = float32(mgl64.Clamp(c[k], 0, 1))
		}
	}
	return colors
}

func bounds(positions []mgl64.Vec3) core.AABB {
	xs, ys, zs := columns(positions)
	return core.AABB{
		Min: mgl64.Vec3{floats.Min(xs), floats.Min(ys), floats.Min(zs)},
		Max: mgl64.Vec3{floats.Max(xs), floats.Max(ys), floats.Max(zs)},
	}
}

func columns(positions []mgl64.Vec3) (xs, ys, zs []float64) {
	xs = make([]float64, len(positions))
	ys = make([]float64, len(positions))
	zs = make([]float64, len(positions))
	for i, p := range positions {
		xs[i], ys[i], zs[i] = p[0], p[1], p[2]
	}
	return xs, ys, zs
}

func finite(p mgl64.Vec3) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func sourceName(raw RawPointCloud) string {
	if raw.Source == "" {
		return "point cloud"
	}
	return raw.Source
}
