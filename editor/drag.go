// Package editor turns pointer input into selection and floor-constrained
// movement of registered scene objects.
package editor

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/renderspace/roomview/core"
)

type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RayCaster converts normalized device coordinates into a world-space ray
// using the current camera. core.PerspectiveCamera implements it.
type RayCaster interface {
	Ray(ndc mgl64.Vec2) core.Ray
}

var _ RayCaster = (*core.PerspectiveCamera)(nil)

// Navigation is the free camera control that must be suspended while an
// object is being dragged.
type Navigation interface {
	SetEnabled(enabled bool)
}

// PointerEvent carries a pointer position in window (client) pixels.
type PointerEvent struct {
	ClientX float64 `json:"client_x"`
	ClientY float64 `json:"client_y"`
}

// DragSession is the state of one drag, from pointer-down on an object to
// pointer-up or leave.
type DragSession struct {
	Object ObjectID
	Plane  core.Plane
	// Offset is object position minus the initial ray/plane intersection.
	Offset mgl64.Vec3
}

// DragController is a two-state machine (Idle, Dragging). It is not safe
// for concurrent use; drive it from the goroutine that owns the scene.
type DragController struct {
	registry *Registry
	camera   RayCaster
	nav      Navigation
	viewport core.Viewport

	state   State
	session DragSession
}

func NewDragController(registry *Registry, camera RayCaster, nav Navigation, viewport core.Viewport) *DragController {
	return &DragController{
		registry: registry,
		camera:   camera,
		nav:      nav,
		viewport: viewport,
	}
}

func (c *DragController) State() State { return c.state }

func (c *DragController) Session() (DragSession, bool) {
	return c.session, c.state == Dragging
}

// SetViewport updates the render surface rectangle, e.g. after a resize.
func (c *DragController) SetViewport(v core.Viewport) { c.viewport = v }

func (c *DragController) Viewport() core.Viewport { return c.viewport }

// SetCamera swaps the ray caster, e.g. when the camera is replaced.
func (c *DragController) SetCamera(camera RayCaster) { c.camera = camera }

// Pick returns the interactive object whose bounds the ray enters first.
func (c *DragController) Pick(ray core.Ray) (ObjectID, float64, bool) {
	bestT := math.Inf(1)
	var best ObjectID
	for _, target := range c.registry.ListInteractive() {
		t, ok := target.Bounds.IntersectRay(ray)
		if ok && t < bestT {
			bestT = t
			best = target.ID
		}
	}
	return best, bestT, best != ""
}

// PointerDown starts a drag when the pointer is over an interactive object.
// It reports whether the event was consumed; unconsumed events belong to
// the camera controller.
func (c *DragController) PointerDown(ev PointerEvent) bool {
	if c.state == Dragging {
		return true
	}
	ray, ok := c.ray(ev)
	if !ok {
		return false
	}
	id, t, hit := c.Pick(ray)
	if !hit {
		return false
	}
	pos, err := c.registry.Position(id)
	if err != nil {
		return false
	}

	plane := core.Horizontal(pos.Y())
	start, ok := plane.IntersectRay(ray)
	if !ok {
		// The ray runs parallel to the floor. Use the hit point dropped
		// onto the drag plane so the object does not jump.
		start = plane.Project(ray.At(t))
	}

	c.session = DragSession{
		Object: id,
		Plane:  plane,
		Offset: pos.Sub(start),
	}
	c.state = Dragging
	c.setNavigation(false)
	return true
}

// PointerMove moves the dragged object so that it keeps its initial offset
// from the point under the pointer. Rays that miss the drag plane leave the
// object where it is.
func (c *DragController) PointerMove(ev PointerEvent) bool {
	if c.state != Dragging {
		return false
	}
	if _, ok := c.registry.Object(c.session.Object); !ok {
		c.end()
		return false
	}
	ray, ok := c.ray(ev)
	if !ok {
		return true
	}
	hit, ok := c.session.Plane.IntersectRay(ray)
	if !ok {
		return true
	}
	_ = c.registry.SetPosition(c.session.Object, hit.Add(c.session.Offset))
	return true
}

// PointerUp ends the drag, if any.
func (c *DragController) PointerUp() {
	if c.state == Dragging {
		c.end()
	}
}

// PointerLeave is handled exactly like PointerUp so a pointer leaving the
// surface never leaves a drag behind.
func (c *DragController) PointerLeave() {
	c.PointerUp()
}

func (c *DragController) end() {
	c.state = Idle
	c.session = DragSession{}
	c.setNavigation(true)
}

func (c *DragController) setNavigation(enabled bool) {
	if c.nav != nil {
		c.nav.SetEnabled(enabled)
	}
}

func (c *DragController) ray(ev PointerEvent) (core.Ray, bool) {
	if c.camera == nil {
		return core.Ray{}, false
	}
	ndc, ok := c.viewport.NDC(ev.ClientX, ev.ClientY)
	if !ok {
		return core.Ray{}, false
	}
	return c.camera.Ray(ndc), true
}
