package layout

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Generate builds floors, walls and doorways for the spec. The result is a
// pure function of the input: the same spec always yields identical output
// in the same order.
//
// Rooms are centered at z = +RoomSize (living), 0 (bedroom) and -RoomSize
// (bath). Outer walls sit just outside the apartment boundary; the front wall
// (z = +ApartmentSize/2) carries the entrance. Interior walls straddle the
// room boundaries at z = ±RoomSize/2 and leave a centered doorway.
func Generate(spec ApartmentSpec) (*Layout, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	l := &Layout{Spec: spec}

	roomCenters := [...]float64{spec.RoomSize, 0, -spec.RoomSize}
	for i, z := range roomCenters {
		l.Floors = append(l.Floors, FloorPanel{
			Room:   RoomID(i),
			Width:  spec.RoomSize,
			Depth:  spec.RoomSize,
			Center: mgl64.Vec2{0, z},
			Color:  roomColors[i],
		})
	}

	half := spec.ApartmentSize / 2
	offset := spec.WallThickness / 2

	// Front wall with the entrance gap centered at x = 0.
	l.splitWall(WallFront, Horizontal, -half, half, half+offset, spec.DoorWidth)

	l.Walls = append(l.Walls,
		l.wall(WallBack, Horizontal, spec.ApartmentSize, 0, -half-offset),
		l.wall(WallLeft, Vertical, spec.ApartmentSize, -half-offset, 0),
		l.wall(WallRight, Vertical, spec.ApartmentSize, half+offset, 0),
	)

	roomHalf := spec.RoomSize / 2
	l.splitWall(WallLivingBedroom, Horizontal, -roomHalf, roomHalf, roomHalf, spec.InteriorDoorWidth)
	l.splitWall(WallBedroomBath, Horizontal, -roomHalf, roomHalf, -roomHalf, spec.InteriorDoorWidth)

	return l, nil
}

func (l *Layout) wall(id WallID, o Orientation, length, x, z float64) WallSegment {
	return WallSegment{
		Wall:        id,
		Orientation: o,
		Length:      length,
		Center:      mgl64.Vec2{x, z},
		Height:      l.Spec.WallHeight,
		Thickness:   l.Spec.WallThickness,
	}
}

// splitWall emits two equal segments covering [lo, hi] along the run axis
// with a centered gap of width gap. at is the position on the other axis.
func (l *Layout) splitWall(id WallID, o Orientation, lo, hi, at, gap float64) {
	segLen := (hi - lo - gap) / 2
	mid := (lo + hi) / 2

	place := func(run float64) mgl64.Vec2 {
		if o == Horizontal {
			return mgl64.Vec2{run, at}
		}
		return mgl64.Vec2{at, run}
	}

	first := l.wall(id, o, segLen, 0, 0)
	first.Center = place(lo + segLen/2)
	second := l.wall(id, o, segLen, 0, 0)
	second.Center = place(hi - segLen/2)

	l.Walls = append(l.Walls, first, second)
	l.Doorways = append(l.Doorways, Doorway{
		Wall:        id,
		Orientation: o,
		Center:      place(mid),
		Width:       gap,
	})
}
