package pointcloud

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityOptions() Options {
	opts := DefaultOptions()
	opts.Orientation = OrientationIdentity
	return opts
}

func trellisOptions() Options {
	opts := DefaultOptions()
	opts.Orientation = OrientationTrellis
	return opts
}

func boxCloud(sx, sy, sz float64, offset mgl64.Vec3) RawPointCloud {
	var pts []mgl64.Vec3
	for _, x := range []float64{0, sx / 3, sx} {
		for _, y := range []float64{0, sy} {
			for _, z := range []float64{0, sz / 2, sz} {
				pts = append(pts, mgl64.Vec3{x, y, z}.Add(offset))
			}
		}
	}
	return RawPointCloud{Positions: pts, Source: "box"}
}

func randomCloud(rng *rand.Rand, n int) RawPointCloud {
	pts := make([]mgl64.Vec3, n)
	scale := mgl64.Vec3{rng.Float64() * 100, rng.Float64() * 10, rng.Float64()}
	offset := mgl64.Vec3{rng.NormFloat64() * 50, rng.NormFloat64() * 50, rng.NormFloat64() * 50}
	for i := range pts {
		pts[i] = mgl64.Vec3{
			rng.Float64() * scale.X(),
			rng.Float64() * scale.Y(),
			rng.Float64() * scale.Z(),
		}.Add(offset)
	}
	return RawPointCloud{Positions: pts}
}

func TestNormalize_ScalesLongestExtent(t *testing.T) {
	raw := boxCloud(4, 2, 1, mgl64.Vec3{10, -3, 7})

	asset, err := Normalize(raw, identityOptions())
	require.NoError(t, err)

	assert.InDelta(t, 0.25, asset.Scale, 1e-12)
	size := asset.Bounds.Size()
	assert.InDelta(t, 1.0, size.X(), 1e-12)
	assert.InDelta(t, 0.5, size.Y(), 1e-12)
	assert.InDelta(t, 0.25, size.Z(), 1e-12)

	center := asset.Bounds.Center()
	assert.InDelta(t, 0, center.Len(), 1e-12, "centered at the origin")
	assert.Equal(t, raw.Len(), asset.Count)
	assert.Len(t, asset.Colors, 3*asset.Count)
	assert.True(t, asset.Valid())
}

func TestNormalize_LongestExtentProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	orientations := []Orientation{OrientationIdentity, OrientationTrellis, OrientationZUp, OrientationZDown}

	for i := 0; i < 40; i++ {
		raw := randomCloud(rng, 1+rng.Intn(200))
		opts := Options{
			TargetSize:  0.1 + rng.Float64()*5,
			Origin:      OriginPolicy(i % 2),
			Color:       ColorHeightGradient,
			Orientation: orientations[i%len(orientations)],
		}

		asset, err := Normalize(raw, opts)
		require.NoError(t, err)
		if asset.Degenerate {
			continue
		}

		got := asset.Bounds.MaxExtent()
		assert.InEpsilon(t, opts.TargetSize, got, 1e-6, "iteration %d", i)

		if opts.Origin == OriginFloor {
			assert.InDelta(t, 0, asset.Bounds.Min.Y(), 1e-9, "floor aligned")
			assert.InDelta(t, 0, asset.Bounds.Center().X(), 1e-9)
			assert.InDelta(t, 0, asset.Bounds.Center().Z(), 1e-9)
		} else {
			assert.InDelta(t, 0, asset.Bounds.Center().Len(), 1e-9)
		}
	}
}

func TestNormalize_FlatCloudColors(t *testing.T) {
	raw := RawPointCloud{Positions: []mgl64.Vec3{{0, 2, 0}, {1, 2, 0}, {3, 2, 5}}}

	asset, err := Normalize(raw, identityOptions())
	require.NoError(t, err)

	for i := 0; i < asset.Count; i++ {
		c := asset.Color(i)
		assert.Equal(t, float32(1.0), c.X())
		assert.Equal(t, float32(0.5), c.Y())
		assert.Equal(t, float32(1.0), c.Z())
	}
}

func TestHeightGradient(t *testing.T) {
	colors := HeightGradient([]mgl64.Vec3{{0, 0, 0}, {0, 1, 0}, {0, 0.5, 0}})

	assert.Equal(t, []float32{
		1, 0.5, 1.0,
		1, 1.0, 0.2,
		1, 0.75, 0.6,
	}, colors)
	assert.Empty(t, HeightGradient(nil))
}

func TestNormalize_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	raw := randomCloud(rng, 150)

	for _, origin := range []OriginPolicy{OriginCenter, OriginFloor} {
		opts := identityOptions()
		opts.Origin = origin
		opts.TargetSize = 1.5

		first, err := Normalize(raw, opts)
		require.NoError(t, err)
		second, err := Normalize(first.Raw(), opts)
		require.NoError(t, err)

		assert.InDelta(t, 1.0, second.Scale, 1e-9)
		assert.InDelta(t, 1.5, second.Bounds.MaxExtent(), 1e-9)
		assert.True(t, first.Bounds.Min.ApproxEqualThreshold(second.Bounds.Min, 1e-9))
		assert.True(t, first.Bounds.Max.ApproxEqualThreshold(second.Bounds.Max, 1e-9))
		require.Len(t, second.Colors, len(first.Colors))
		for i := range first.Colors {
			assert.InDelta(t, first.Colors[i], second.Colors[i], 1e-6)
		}
	}
}

func TestNormalize_IdempotentWithDefaults(t *testing.T) {
	raw := boxCloud(4, 2, 1, mgl64.Vec3{10, -3, 7})

	first, err := Normalize(raw, DefaultOptions())
	require.NoError(t, err)
	second, err := Normalize(first.Raw(), DefaultOptions())
	require.NoError(t, err)

	assert.InDelta(t, 1.0, second.Scale, 1e-12)
	require.Len(t, second.Positions, len(first.Positions))
	for i := range first.Positions {
		assert.True(t, first.Positions[i].ApproxEqualThreshold(second.Positions[i], 1e-12), "vertex %d", i)
	}
	assert.InDeltaSlice(t, first.Colors, second.Colors, 1e-6)
}

func TestNormalize_TrellisIsAppliedPerPass(t *testing.T) {
	raw := boxCloud(4, 2, 1, mgl64.Vec3{})

	first, err := Normalize(raw, trellisOptions())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, first.Bounds.Size().Z(), 1e-12, "source X ends up on Z")

	second, err := Normalize(first.Raw(), trellisOptions())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, second.Bounds.Size().X(), 1e-12, "a second pass rotates again")
}

func TestNormalize_HugeFiniteCloud(t *testing.T) {
	raw := RawPointCloud{Positions: []mgl64.Vec3{{-1e308, 0, 0}, {1e308, 1, 0}}}

	for _, origin := range []OriginPolicy{OriginCenter, OriginFloor} {
		opts := DefaultOptions()
		opts.Origin = origin

		asset, err := Normalize(raw, opts)
		require.NoError(t, err)

		assert.False(t, asset.Degenerate)
		assert.Greater(t, asset.Scale, 0.0)
		for _, p := range asset.Positions {
			assert.True(t, finite(p), "%v", p)
		}
		assert.InDelta(t, 1.0, asset.Bounds.MaxExtent(), 1e-9)
		assert.InDelta(t, -0.5, asset.Positions[0].X(), 1e-9)
		assert.InDelta(t, 0.5, asset.Positions[1].X(), 1e-9)
	}
}

func TestNormalize_DoesNotAliasInput(t *testing.T) {
	raw := boxCloud(2, 2, 2, mgl64.Vec3{5, 5, 5})
	before := append([]mgl64.Vec3(nil), raw.Positions...)

	asset, err := Normalize(raw, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, before, raw.Positions)
	asset.Positions[0] = mgl64.Vec3{99, 99, 99}
	assert.Equal(t, before[0], raw.Positions[0])
}

func TestNormalize_DegenerateCloud(t *testing.T) {
	raw := RawPointCloud{Positions: []mgl64.Vec3{{3, 4, 5}, {3, 4, 5}}}

	asset, err := Normalize(raw, DefaultOptions())
	require.NoError(t, err)

	assert.True(t, asset.Degenerate)
	assert.Equal(t, 1.0, asset.Scale)
	for _, p := range asset.Positions {
		assert.InDelta(t, 0, p.Len(), 1e-12)
	}
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  RawPointCloud
		opts Options
		want error
	}{
		{"empty", RawPointCloud{Source: "empty.ply"}, DefaultOptions(), ErrInvalidAsset},
		{"color count mismatch", RawPointCloud{
			Positions: []mgl64.Vec3{{0, 0, 0}, {1, 1, 1}},
			Colors:    []mgl64.Vec3{{1, 0, 0}},
		}, DefaultOptions(), ErrInvalidAsset},
		{"non-finite vertex", RawPointCloud{
			Positions: []mgl64.Vec3{{0, 0, 0}, {math.NaN(), 1, 1}},
		}, DefaultOptions(), ErrInvalidAsset},
		{"zero target", boxCloud(1, 1, 1, mgl64.Vec3{}), Options{TargetSize: 0}, ErrInvalidOptions},
		{"bad orientation", boxCloud(1, 1, 1, mgl64.Vec3{}), Options{
			TargetSize:  1,
			Orientation: Orientation{Name: "skew", Rotation: mgl64.Rotate3DY(0.3)},
		}, ErrInvalidOrientation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := Normalize(tt.raw, tt.opts)
			assert.Nil(t, asset)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestNormalize_ColorSourcePolicy(t *testing.T) {
	raw := RawPointCloud{
		Positions: []mgl64.Vec3{{0, 0, 0}, {1, 1, 1}},
		Colors:    []mgl64.Vec3{{0.1, 0.2, 0.3}, {2, -1, 0.5}},
	}
	opts := identityOptions()
	opts.Color = ColorSource

	asset, err := Normalize(raw, opts)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 1, 0, 0.5}, asset.Colors)

	raw.Colors = nil
	asset, err = Normalize(raw, opts)
	require.NoError(t, err)
	assert.Equal(t, HeightGradient(asset.Positions), asset.Colors, "falls back to the gradient")
}

func TestOrientations(t *testing.T) {
	p := mgl64.Vec3{1, 2, 3}

	assert.Equal(t, mgl64.Vec3{3, -2, 1}, OrientationTrellis.Apply(p))
	assert.Equal(t, mgl64.Vec3{1, 3, -2}, OrientationZUp.Apply(p))
	assert.Equal(t, mgl64.Vec3{1, -3, 2}, OrientationZDown.Apply(p))
	assert.Equal(t, p, OrientationIdentity.Apply(p))
	assert.Equal(t, p, Orientation{}.Apply(p), "zero value is the identity")

	_, err := NewOrientation("tilted", mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0}))
	assert.ErrorIs(t, err, ErrInvalidOrientation)

	o, err := OrientationByName("z-up")
	require.NoError(t, err)
	assert.Equal(t, OrientationZUp, o)
	_, err = OrientationByName("sideways")
	assert.ErrorIs(t, err, ErrInvalidOptions)

	origin, err := ParseOriginPolicy("floor")
	require.NoError(t, err)
	assert.Equal(t, OriginFloor, origin)
	_, err = ParseColorPolicy("rainbow")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestNormalize_FloorOriginWithRotation(t *testing.T) {
	raw := boxCloud(1, 4, 2, mgl64.Vec3{-2, 5, 1})
	opts := DefaultOptions()
	opts.Origin = OriginFloor
	opts.Orientation = OrientationTrellis
	opts.TargetSize = 2

	asset, err := Normalize(raw, opts)
	require.NoError(t, err)

	assert.InDelta(t, 0, asset.Bounds.Min.Y(), 1e-12)
	assert.InDelta(t, 2, asset.Bounds.MaxExtent(), 1e-12)
	// Trellis maps (x, y, z) to (z, -y, x): the source's Y extent (4 -> 2)
	// stays vertical.
	assert.InDelta(t, 2, asset.Bounds.Size().Y(), 1e-12)
}
