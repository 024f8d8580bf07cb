package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderspace/roomview/core"
)

const tol = 1e-9

func TestGenerate_ReferenceApartment(t *testing.T) {
	spec := DefaultSpec()
	spec.WallHeight = 2.5

	l, err := Generate(spec)
	require.NoError(t, err)

	require.Len(t, l.Floors, 3)
	require.Len(t, l.Walls, 9)
	require.Len(t, l.Doorways, 3)

	front := l.WallSegments(WallFront)
	require.Len(t, front, 2)
	for _, w := range front {
		assert.InDelta(t, 3.9, w.Length, tol)
		assert.InDelta(t, 4.5+0.025, w.Center.Y(), tol, "front wall sits just outside the boundary")
		assert.Equal(t, Horizontal, w.Orientation)
	}
	assert.InDelta(t, -4.5+1.95, front[0].Center.X(), tol)
	assert.InDelta(t, 4.5-1.95, front[1].Center.X(), tol)

	for _, id := range []WallID{WallLivingBedroom, WallBedroomBath} {
		segs := l.WallSegments(id)
		require.Len(t, segs, 2, id.String())
		for _, w := range segs {
			assert.InDelta(t, 1.0, w.Length, tol)
		}
		// Segments are flush with the room sides, leaving [-0.5, 0.5] open.
		lo, _ := segs[0].Span()
		_, hi := segs[1].Span()
		assert.InDelta(t, -1.5, lo, tol)
		assert.InDelta(t, 1.5, hi, tol)
	}
	assert.InDelta(t, 1.5, l.WallSegments(WallLivingBedroom)[0].Center.Y(), tol)
	assert.InDelta(t, -1.5, l.WallSegments(WallBedroomBath)[0].Center.Y(), tol)

	back := l.WallSegments(WallBack)
	require.Len(t, back, 1)
	assert.InDelta(t, 9.0, back[0].Length, tol)
	assert.InDelta(t, -4.525, back[0].Center.Y(), tol)

	left := l.WallSegments(WallLeft)
	require.Len(t, left, 1)
	assert.Equal(t, Vertical, left[0].Orientation)
	assert.InDelta(t, -4.525, left[0].Center.X(), tol)

	assert.Equal(t, []float64{3, 0, -3}, []float64{l.Floors[0].Center.Y(), l.Floors[1].Center.Y(), l.Floors[2].Center.Y()})
	assert.Equal(t, ColorTag(0x3c3c3c), l.Floors[RoomLiving].Color)
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := Generate(DefaultSpec())
	require.NoError(t, err)
	b, err := Generate(DefaultSpec())
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("layout differs between runs (-first +second):\n%s", diff)
	}
}

func TestGenerate_SpanProperty(t *testing.T) {
	for _, spec := range specGrid() {
		l, err := Generate(spec)
		require.NoError(t, err, "%+v", spec)

		for _, d := range l.Doorways {
			segs := l.WallSegments(d.Wall)
			require.Len(t, segs, 2)

			full := spec.RoomSize
			if d.Wall == WallFront {
				full = spec.ApartmentSize
			}
			sum := segs[0].Length + segs[1].Length + d.Width
			assert.InDelta(t, full, sum, tol*full, "wall %s of %+v", d.Wall, spec)

			// Segments and gap tile the span in order without overlap.
			_, firstHi := segs[0].Span()
			secondLo, _ := segs[1].Span()
			gapLo, gapHi := d.Span()
			assert.InDelta(t, firstHi, gapLo, tol*full)
			assert.InDelta(t, gapHi, secondLo, tol*full)
		}
	}
}

func TestGenerate_NoOverlappingWalls(t *testing.T) {
	for _, spec := range specGrid() {
		l, err := Generate(spec)
		require.NoError(t, err)

		for i := 0; i < len(l.Walls); i++ {
			for j := i + 1; j < len(l.Walls); j++ {
				if overlapVolume(l.Walls[i].Box(), l.Walls[j].Box()) {
					t.Errorf("walls %d (%s) and %d (%s) overlap for %+v", i, l.Walls[i].Wall, j, l.Walls[j].Wall, spec)
				}
			}
		}
	}
}

func TestGenerate_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ApartmentSpec)
	}{
		{"entrance as wide as the wall", func(s *ApartmentSpec) { s.DoorWidth = s.ApartmentSize }},
		{"entrance wider than the wall", func(s *ApartmentSpec) { s.DoorWidth = 12 }},
		{"interior door as wide as the room", func(s *ApartmentSpec) { s.InteriorDoorWidth = 3 }},
		{"zero entrance", func(s *ApartmentSpec) { s.DoorWidth = 0 }},
		{"negative interior door", func(s *ApartmentSpec) { s.InteriorDoorWidth = -1 }},
		{"zero wall height", func(s *ApartmentSpec) { s.WallHeight = 0 }},
		{"NaN thickness", func(s *ApartmentSpec) { s.WallThickness = math.NaN() }},
		{"infinite height", func(s *ApartmentSpec) { s.WallHeight = math.Inf(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := DefaultSpec()
			tt.modify(&spec)

			l, err := Generate(spec)
			assert.Nil(t, l)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration), "got %v", err)
		})
	}
}

func TestGenerate_OversizedRoomsAreAccepted(t *testing.T) {
	spec := DefaultSpec()
	spec.RoomSize = 4
	assert.Empty(t, DefaultSpec().Warnings())

	l, err := Generate(spec)
	require.NoError(t, err)
	require.Len(t, l.Floors, 3)
	assert.Len(t, spec.Warnings(), 1)

	living, ok := l.Floor(RoomLiving)
	require.True(t, ok)
	assert.InDelta(t, 6, living.Box().Max.Z(), 1e-12, "floor reaches past the front wall at 4.5")

	// Same-line segments still add up to the room width around the doorway.
	var run float64
	for _, w := range l.WallSegments(WallLivingBedroom) {
		run += w.Length
	}
	assert.InDelta(t, spec.RoomSize-spec.InteriorDoorWidth, run, 1e-12)

	spec.RoomSize = 10
	spec.InteriorDoorWidth = 1
	assert.Len(t, spec.Warnings(), 2)
	_, err = Generate(spec)
	assert.NoError(t, err)
}

func TestLayout_RoomAtAndBounds(t *testing.T) {
	l, err := Generate(DefaultSpec())
	require.NoError(t, err)

	room, ok := l.RoomAt(0.5, 3.2)
	require.True(t, ok)
	assert.Equal(t, RoomLiving, room)

	room, ok = l.RoomAt(-1, -2.9)
	require.True(t, ok)
	assert.Equal(t, RoomBath, room)

	_, ok = l.RoomAt(3.5, 0)
	assert.False(t, ok, "outside the room strip")

	b := l.Bounds()
	assert.InDelta(t, -4.55, b.Min.X(), tol)
	assert.InDelta(t, 4.55, b.Max.Z(), tol)
	assert.InDelta(t, 2.5, b.Max.Y(), tol)
	assert.Equal(t, "bedroom", RoomBedroom.String())
	assert.Equal(t, [3]float32{60.0 / 255, 60.0 / 255, 60.0 / 255}, ColorTag(0x3c3c3c).RGB())
}

func TestLayout_FloorLookup(t *testing.T) {
	l, err := Generate(DefaultSpec())
	require.NoError(t, err)

	f, ok := l.Floor(RoomBedroom)
	require.True(t, ok)
	assert.InDelta(t, 0, f.Center.Y(), tol)

	room, err := ParseRoomID("living")
	require.NoError(t, err)
	f, ok = l.Floor(room)
	require.True(t, ok)
	assert.InDelta(t, 3, f.Center.Y(), tol)

	_, err = ParseRoomID("garage")
	assert.Error(t, err)

	text, err := RoomBath.MarshalText()
	require.NoError(t, err)
	var back RoomID
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, RoomBath, back)
}

func specGrid() []ApartmentSpec {
	var out []ApartmentSpec
	for _, room := range []float64{1, 2.5, 3, 4.2} {
		for _, apt := range []float64{3 * room, 9, 13.7, 20} {
			if apt < 3*room {
				continue
			}
			for _, doorFrac := range []float64{0.01, 0.133, 0.5, 0.97} {
				for _, innerFrac := range []float64{0.05, 0.333, 0.9} {
					out = append(out, ApartmentSpec{
						RoomSize:          room,
						ApartmentSize:     apt,
						WallHeight:        2.5,
						WallThickness:     0.05,
						DoorWidth:         apt * doorFrac,
						InteriorDoorWidth: room * innerFrac,
					})
				}
			}
		}
	}
	return out
}

func overlapVolume(a, b core.AABB) bool {
	for axis := 0; axis < 3; axis++ {
		lo := math.Max(a.Min[axis], b.Min[axis])
		hi := math.Min(a.Max[axis], b.Max[axis])
		if hi-lo <= 1e-9 {
			return false
		}
	}
	return true
}
