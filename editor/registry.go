package editor

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/renderspace/roomview/core"
	"github.com/renderspace/roomview/pointcloud"
)

var ErrUnknownObject = errors.New("unknown object")

// ObjectID is the stable identity of a registered object.
type ObjectID string

func newObjectID() ObjectID {
	return ObjectID(uuid.NewString())
}

// DraggableObject places a normalized asset in the world. Only the registry
// and the drag controller move it.
type DraggableObject struct {
	ID          ObjectID
	Asset       *pointcloud.NormalizedAsset
	Transform   *core.Transform
	Interactive bool
}

func (o *DraggableObject) Position() mgl64.Vec3 {
	return o.Transform.Position
}

// WorldBounds is the asset's box at the object's current placement. It is
// the geometry used for hit-testing.
func (o *DraggableObject) WorldBounds() core.AABB {
	return o.Transform.WorldBounds(o.Asset.Bounds)
}

// Target is one hit-test candidate.
type Target struct {
	ID     ObjectID
	Bounds core.AABB
}

// Registry tracks the replaceable, interactive objects of a scene. Every
// position it stores has y equal to the floor offset.
type Registry struct {
	floorOffset float64
	objects     map[ObjectID]*DraggableObject
	order       []ObjectID
	generation  uint64
}

func NewRegistry(floorOffset float64) *Registry {
	return &Registry{
		floorOffset: floorOffset,
		objects:     make(map[ObjectID]*DraggableObject),
	}
}

func (r *Registry) FloorOffset() float64 { return r.floorOffset }

// Generation changes every time the registry is cleared.
func (r *Registry) Generation() uint64 { return r.generation }

func (r *Registry) Len() int { return len(r.order) }

// Register adds a fully normalized asset in one step and returns its id.
func (r *Registry) Register(asset *pointcloud.NormalizedAsset, initial mgl64.Vec3) (ObjectID, error) {
	if !asset.Valid() {
		return "", fmt.Errorf("register: %w", pointcloud.ErrInvalidAsset)
	}
	id := newObjectID()
	tr := core.NewTransform()
	tr.Position = r.pin(initial)
	r.objects[id] = &DraggableObject{
		ID:          id,
		Asset:       asset,
		Transform:   tr,
		Interactive: true,
	}
	r.order = append(r.order, id)
	return id, nil
}

// UnregisterAll removes every object and returns how many were removed.
func (r *Registry) UnregisterAll() int {
	n := len(r.order)
	clear(r.objects)
	r.order = r.order[:0]
	r.generation++
	return n
}

// ListInteractive returns hit-test candidates in registration order.
func (r *Registry) ListInteractive() []Target {
	out := make([]Target, 0, len(r.order))
	for _, id := range r.order {
		obj := r.objects[id]
		if !obj.Interactive {
			continue
		}
		out = append(out, Target{ID: id, Bounds: obj.WorldBounds()})
	}
	return out
}

// Objects returns all registered objects in registration order.
func (r *Registry) Objects() []*DraggableObject {
	out := make([]*DraggableObject, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.objects[id])
	}
	return out
}

func (r *Registry) Object(id ObjectID) (*DraggableObject, bool) {
	obj, ok := r.objects[id]
	return obj, ok
}

// SetPosition moves an object; the vertical coordinate is always replaced
// by the floor offset.
func (r *Registry) SetPosition(id ObjectID, pos mgl64.Vec3) error {
	obj, ok := r.objects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	obj.Transform.Position = r.pin(pos)
	return nil
}

func (r *Registry) Position(id ObjectID) (mgl64.Vec3, error) {
	obj, ok := r.objects[id]
	if !ok {
		return mgl64.Vec3{}, fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	return obj.Transform.Position, nil
}

func (r *Registry) SetInteractive(id ObjectID, interactive bool) error {
	obj, ok := r.objects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	obj.Interactive = interactive
	return nil
}

func (r *Registry) pin(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{p.X(), r.floorOffset, p.Z()}
}
