// Package layout generates the static floor and wall geometry of a
// three-room apartment from a handful of dimensions.
package layout

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfiguration is returned when apartment dimensions cannot
// produce valid wall segments. Geometry is never emitted in that case.
var ErrInvalidConfiguration = errors.New("invalid apartment configuration")

// ApartmentSpec describes the apartment. The outer square has side
// ApartmentSize; three square rooms of side RoomSize are stacked along Z.
type ApartmentSpec struct {
	RoomSize          float64 `json:"room_size" yaml:"room_size"`
	ApartmentSize     float64 `json:"apartment_size" yaml:"apartment_size"`
	WallHeight        float64 `json:"wall_height" yaml:"wall_height"`
	WallThickness     float64 `json:"wall_thickness" yaml:"wall_thickness"`
	DoorWidth         float64 `json:"door_width" yaml:"door_width"`
	InteriorDoorWidth float64 `json:"interior_door_width" yaml:"interior_door_width"`
}

// DefaultSpec is the reference 9x9 unit with three 3x3 rooms, a 1.2 wide
// entrance and 1.0 wide interior doorways.
func DefaultSpec() ApartmentSpec {
	return ApartmentSpec{
		RoomSize:          3,
		ApartmentSize:     9,
		WallHeight:        2.5,
		WallThickness:     0.05,
		DoorWidth:         1.2,
		InteriorDoorWidth: 1.0,
	}
}

// Validate reports every dimension that would yield negative or degenerate
// wall segments.
func (s ApartmentSpec) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if !(v > 0) || math.IsInf(v, 1) {
			errs = append(errs, fmt.Errorf("%s must be positive and finite, got %g", name, v))
		}
	}
	positive("room_size", s.RoomSize)
	positive("apartment_size", s.ApartmentSize)
	positive("wall_height", s.WallHeight)
	positive("wall_thickness", s.WallThickness)
	positive("door_width", s.DoorWidth)
	positive("interior_door_width", s.InteriorDoorWidth)

	if s.DoorWidth >= s.ApartmentSize {
		errs = append(errs, fmt.Errorf("door_width %g must be smaller than apartment_size %g", s.DoorWidth, s.ApartmentSize))
	}
	if s.InteriorDoorWidth >= s.RoomSize {
		errs = append(errs, fmt.Errorf("interior_door_width %g must be smaller than room_size %g", s.InteriorDoorWidth, s.RoomSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, errors.Join(errs...))
	}
	return nil
}

// Warnings lists dimensions that still generate a layout but one whose
// rooms do not sit inside the outer walls.
func (s ApartmentSpec) Warnings() []string {
	var out []string
	if 3*s.RoomSize > s.ApartmentSize {
		out = append(out, fmt.Sprintf("three rooms of size %g span %g, more than apartment_size %g: floors extend past the front and back walls",
			s.RoomSize, 3*s.RoomSize, s.ApartmentSize))
	}
	if s.RoomSize > s.ApartmentSize {
		out = append(out, fmt.Sprintf("room_size %g exceeds apartment_size %g: interior walls cross the side walls",
			s.RoomSize, s.ApartmentSize))
	}
	return out
}
