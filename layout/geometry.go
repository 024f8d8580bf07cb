package layout

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/renderspace/roomview/core"
)

// Orientation is the axis a wall runs along.
type Orientation int

const (
	// Horizontal walls run along X.
	Horizontal Orientation = iota
	// Vertical walls run along Z.
	Vertical
)

func (o Orientation) String() string {
	switch o {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

func (o Orientation) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// WallID names the boundary a segment belongs to. A boundary with a doorway
// is made of two segments sharing the same WallID.
type WallID int

const (
	WallFront WallID = iota
	WallBack
	WallLeft
	WallRight
	WallLivingBedroom
	WallBedroomBath
)

var wallNames = [...]string{"front", "back", "left", "right", "living-bedroom", "bedroom-bath"}

func (w WallID) String() string {
	if int(w) >= 0 && int(w) < len(wallNames) {
		return wallNames[w]
	}
	return fmt.Sprintf("WallID(%d)", int(w))
}

func (w WallID) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

// RoomID identifies one of the three stacked rooms, front to back.
type RoomID int

const (
	RoomLiving RoomID = iota
	RoomBedroom
	RoomBath
)

var roomNames = [...]string{"living", "bedroom", "bath"}

func (r RoomID) String() string {
	if int(r) >= 0 && int(r) < len(roomNames) {
		return roomNames[r]
	}
	return fmt.Sprintf("RoomID(%d)", int(r))
}

// ParseRoomID accepts the names returned by RoomID.String.
func ParseRoomID(s string) (RoomID, error) {
	for i, name := range roomNames {
		if name == s {
			return RoomID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown room %q", s)
}

func (r RoomID) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RoomID) UnmarshalText(b []byte) error {
	id, err := ParseRoomID(string(b))
	if err != nil {
		return err
	}
	*r = id
	return nil
}

// ColorTag is a 0xRRGGBB color identifying a room's floor.
type ColorTag uint32

// RGB returns the color as floats in [0, 1].
func (c ColorTag) RGB() [3]float32 {
	return [3]float32{
		float32((c>>16)&0xff) / 255,
		float32((c>>8)&0xff) / 255,
		float32(c&0xff) / 255,
	}
}

var roomColors = [...]ColorTag{0x3c3c3c, 0x2f2f2f, 0x262626}

// WallSegment is one rectangular wall prism standing on the floor. Center
// holds the (x, z) position of the prism's center.
type WallSegment struct {
	Wall        WallID      `json:"wall"`
	Orientation Orientation `json:"orientation"`
	Length      float64     `json:"length"`
	Center      mgl64.Vec2  `json:"center"`
	Height      float64     `json:"height"`
	Thickness   float64     `json:"thickness"`
}

// Span returns the interval the segment covers along its run axis.
func (w WallSegment) Span() (float64, float64) {
	c := w.runCenter()
	return c - w.Length/2, c + w.Length/2
}

func (w WallSegment) runCenter() float64 {
	if w.Orientation == Horizontal {
		return w.Center.X()
	}
	return w.Center.Y()
}

// Box returns the segment's 3D extent. Walls stand on y = 0.
func (w WallSegment) Box() core.AABB {
	halfL, halfT := w.Length/2, w.Thickness/2
	x, z := w.Center.X(), w.Center.Y()
	if w.Orientation == Horizontal {
		return core.AABB{
			Min: mgl64.Vec3{x - halfL, 0, z - halfT},
			Max: mgl64.Vec3{x + halfL, w.Height, z + halfT},
		}
	}
	return core.AABB{
		Min: mgl64.Vec3{x - halfT, 0, z - halfL},
		Max: mgl64.Vec3{x + halfT, w.Height, z + halfL},
	}
}

// Doorway is a gap between two segments of the same wall.
type Doorway struct {
	Wall        WallID      `json:"wall"`
	Orientation Orientation `json:"orientation"`
	Center      mgl64.Vec2  `json:"center"`
	Width       float64     `json:"width"`
}

func (d Doorway) Span() (float64, float64) {
	c := d.Center.X()
	if d.Orientation == Vertical {
		c = d.Center.Y()
	}
	return c - d.Width/2, c + d.Width/2
}

// FloorPanel is a flat rectangle at y = 0 covering one room.
type FloorPanel struct {
	Room   RoomID     `json:"room"`
	Width  float64    `json:"width"`
	Depth  float64    `json:"depth"`
	Center mgl64.Vec2 `json:"center"`
	Color  ColorTag   `json:"color"`
}

func (f FloorPanel) Contains(x, z float64) bool {
	return x >= f.Center.X()-f.Width/2 && x <= f.Center.X()+f.Width/2 &&
		z >= f.Center.Y()-f.Depth/2 && z <= f.Center.Y()+f.Depth/2
}

func (f FloorPanel) Box() core.AABB {
	return core.AABB{
		Min: mgl64.Vec3{f.Center.X() - f.Width/2, 0, f.Center.Y() - f.Depth/2},
		Max: mgl64.Vec3{f.Center.X() + f.Width/2, 0, f.Center.Y() + f.Depth/2},
	}
}

// Layout is the generated static geometry of an apartment.
type Layout struct {
	Spec     ApartmentSpec `json:"spec"`
	Floors   []FloorPanel  `json:"floors"`
	Walls    []WallSegment `json:"walls"`
	Doorways []Doorway     `json:"doorways"`
}

// WallSegments returns the segments that make up one boundary.
func (l *Layout) WallSegments(id WallID) []WallSegment {
	var out []WallSegment
	for _, w := range l.Walls {
		if w.Wall == id {
			out = append(out, w)
		}
	}
	return out
}

// Floor returns the floor panel of a room.
func (l *Layout) Floor(room RoomID) (FloorPanel, bool) {
	for _, f := range l.Floors {
		if f.Room == room {
			return f, true
		}
	}
	return FloorPanel{}, false
}

// RoomAt returns the room whose floor contains the point (x, z).
func (l *Layout) RoomAt(x, z float64) (RoomID, bool) {
	for _, f := range l.Floors {
		if f.Contains(x, z) {
			return f.Room, true
		}
	}
	return 0, false
}

// Bounds returns the box enclosing all floors and walls.
func (l *Layout) Bounds() core.AABB {
	b := core.EmptyAABB()
	for _, f := range l.Floors {
		b = b.Union(f.Box())
	}
	for _, w := range l.Walls {
		b = b.Union(w.Box())
	}
	return b
}
