// Package roomview assembles an apartment scene: the generated floor plan,
// point-cloud furniture loaded in the background and the drag controller
// that moves it across the floor.
//
// A SceneContext belongs to one goroutine. Everything except the asset
// loaders runs there, so no scene state is locked.
package roomview

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/renderspace/roomview/core"
	"github.com/renderspace/roomview/editor"
	"github.com/renderspace/roomview/layout"
	"github.com/renderspace/roomview/pointcloud"
)

var ErrSceneClosed = errors.New("scene closed")

type SceneOption func(*SceneContext)

func WithLogger(l Logger) SceneOption {
	return func(s *SceneContext) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSource replaces the default file/HTTP asset source.
func WithSource(src pointcloud.Source) SceneOption {
	return func(s *SceneContext) { s.source = src }
}

// WithNavigation forwards navigation enable/disable to an external camera
// controller.
func WithNavigation(n editor.Navigation) SceneOption {
	return func(s *SceneContext) { s.nav.next = n }
}

type navigationState struct {
	enabled bool
	next    editor.Navigation
}

func (n *navigationState) SetEnabled(enabled bool) {
	n.enabled = enabled
	if n.next != nil {
		n.next.SetEnabled(enabled)
	}
}

// SceneContext is the explicit state of one viewer scene.
type SceneContext struct {
	cfg      Config
	logger   Logger
	layout   *layout.Layout
	camera   *core.PerspectiveCamera
	registry *editor.Registry
	drag     *editor.DragController
	nav      *navigationState
	source   pointcloud.Source
	loads    *loader
}

func NewSceneContext(cfg Config, opts ...SceneOption) (*SceneContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l, err := layout.Generate(cfg.Apartment)
	if err != nil {
		return nil, err
	}

	vp := cfg.Viewport.Viewport()
	s := &SceneContext{
		cfg:      cfg,
		logger:   NewNopLogger(),
		layout:   l,
		camera:   cfg.Camera.Camera(vp.Aspect()),
		registry: editor.NewRegistry(cfg.FloorOffset),
		nav:      &navigationState{enabled: true},
		source: pointcloud.MuxSource{
			Files: pointcloud.FileSource{},
			HTTP:  pointcloud.NewHTTPSource(""),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.drag = editor.NewDragController(s.registry, s.camera, s.nav, vp)
	s.loads = newLoader(s.source, cfg.Workers, s.logger)

	for _, w := range cfg.Apartment.Warnings() {
		s.logger.Warnf("apartment: %s", w)
	}
	s.logger.Infof("scene ready: %d floors, %d wall segments, %d doorways",
		len(l.Floors), len(l.Walls), len(l.Doorways))
	return s, nil
}

// Logger never returns nil.
func (s *SceneContext) Logger() Logger { return s.logger }

func (s *SceneContext) Config() Config { return s.cfg }

func (s *SceneContext) Layout() *layout.Layout { return s.layout }

func (s *SceneContext) Camera() *core.PerspectiveCamera { return s.camera }

func (s *SceneContext) Registry() *editor.Registry { return s.registry }

func (s *SceneContext) Drag() *editor.DragController { return s.drag }

func (s *SceneContext) Objects() []*editor.DraggableObject { return s.registry.Objects() }

// NavigationEnabled reports whether free camera navigation is currently
// allowed. It is false for the duration of a drag.
func (s *SceneContext) NavigationEnabled() bool { return s.nav.enabled }

// SetViewport records a new render surface rectangle and keeps the camera
// aspect in step with it.
func (s *SceneContext) SetViewport(vp core.Viewport) {
	s.camera.Aspect = vp.Aspect()
	s.drag.SetViewport(vp)
}

func (s *SceneContext) PointerDown(ev editor.PointerEvent) bool {
	return s.drag.PointerDown(ev)
}

func (s *SceneContext) PointerMove(ev editor.PointerEvent) bool {
	return s.drag.PointerMove(ev)
}

func (s *SceneContext) PointerUp() {
	if session, ok := s.drag.Session(); ok {
		s.logDrop(session.Object)
	}
	s.drag.PointerUp()
}

func (s *SceneContext) PointerLeave() {
	if session, ok := s.drag.Session(); ok {
		s.logDrop(session.Object)
	}
	s.drag.PointerLeave()
}

func (s *SceneContext) logDrop(id editor.ObjectID) {
	if !s.logger.DebugEnabled() {
		return
	}
	pos, err := s.registry.Position(id)
	if err != nil {
		return
	}
	room := "outside"
	if r, ok := s.layout.RoomAt(pos.X(), pos.Z()); ok {
		room = r.String()
	}
	s.logger.Debugf("dropped %s at (%.2f, %.2f) in %s", id, pos.X(), pos.Z(), room)
}

// ClearAssets removes every replaceable object. Loads started before the
// call are discarded when they complete.
func (s *SceneContext) ClearAssets() int {
	s.drag.PointerUp()
	n := s.registry.UnregisterAll()
	s.logger.Debugf("cleared %d objects, generation %d", n, s.registry.Generation())
	return n
}

// Close stops accepting loads and waits for in-flight ones to return.
func (s *SceneContext) Close() {
	s.loads.close()
}

// ObjectInfo is a read-only view of a registered object.
type ObjectInfo struct {
	ID          editor.ObjectID `json:"id"`
	Source      string          `json:"source"`
	Points      int             `json:"points"`
	Scale       float64         `json:"scale"`
	Position    [3]float64      `json:"position"`
	Min         [3]float64      `json:"min"`
	Max         [3]float64      `json:"max"`
	Room        string          `json:"room,omitempty"`
	Interactive bool            `json:"interactive"`
}

func (s *SceneContext) Describe() []ObjectInfo {
	objects := s.registry.Objects()
	out := make([]ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		pos := obj.Position()
		b := obj.WorldBounds()
		info := ObjectInfo{
			ID:          obj.ID,
			Source:      obj.Asset.Source,
			Points:      obj.Asset.Count,
			Scale:       obj.Asset.Scale,
			Position:    pos,
			Min:         b.Min,
			Max:         b.Max,
			Interactive: obj.Interactive,
		}
		if r, ok := s.layout.RoomAt(pos.X(), pos.Z()); ok {
			info.Room = r.String()
		}
		out = append(out, info)
	}
	return out
}

// MoveObject places an object directly, bypassing the pointer path.
func (s *SceneContext) MoveObject(id editor.ObjectID, x, z float64) error {
	if err := s.registry.SetPosition(id, mgl64.Vec3{x, 0, z}); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return nil
}
