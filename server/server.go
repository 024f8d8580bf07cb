// Package server exposes a scene over HTTP so an external renderer can read
// the floor plan and object placements and forward pointer input.
package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/renderspace/roomview"
	"github.com/renderspace/roomview/editor"
	"github.com/renderspace/roomview/layout"
)

// maxTrackedLoads bounds the requests kept for GET /api/loads/:id. Finished
// requests are dropped first once it is reached.
const maxTrackedLoads = 1024

type Options struct {
	AppName        string
	AccessLog      bool
	RequestTimeout time.Duration
}

type Server struct {
	app     *fiber.App
	loop    *SceneLoop
	logger  roomview.Logger
	timeout time.Duration

	// loads is only touched on the scene goroutine.
	loads map[string]*roomview.LoadRequest
}

func New(loop *SceneLoop, log roomview.Logger, opts Options) *Server {
	if log == nil {
		log = roomview.NewNopLogger()
	}
	if opts.AppName == "" {
		opts.AppName = "roomview"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}

	app := fiber.New(fiber.Config{
		AppName:      opts.AppName,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})
	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}

	s := &Server{
		app:     app,
		loop:    loop,
		logger:  log,
		timeout: opts.RequestTimeout,
		loads:   make(map[string]*roomview.LoadRequest),
	}
	s.routes()
	return s
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.logger.Infof("listening on %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	s.app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})
	s.app.Get("/health/ready", s.ready)

	api := s.app.Group("/api")
	api.Get("/layout", s.getLayout)
	api.Get("/layout.geojson", s.getPlan)
	api.Get("/objects", s.listObjects)
	api.Post("/objects", s.loadObject)
	api.Delete("/objects", s.clearObjects)
	api.Get("/objects/:id/points", s.getPoints)
	api.Put("/objects/:id/position", s.moveObject)
	api.Get("/loads/:id", s.getLoad)
	api.Post("/pointer", s.pointer)
	api.Put("/viewport", s.setViewport)
}

// scene runs fn on the scene goroutine with the request timeout.
func (s *Server) scene(fn func(*roomview.SceneContext)) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.loop.Do(ctx, fn)
}

func (s *Server) unavailable(c fiber.Ctx, err error) error {
	s.logger.Warnf("%s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func (s *Server) ready(c fiber.Ctx) error {
	var objects int
	if err := s.scene(func(sc *roomview.SceneContext) { objects = sc.Registry().Len() }); err != nil {
		return s.unavailable(c, err)
	}
	return c.JSON(fiber.Map{"status": "ready", "objects": objects})
}

func (s *Server) getLayout(c fiber.Ctx) error {
	var l *layout.Layout
	if err := s.scene(func(sc *roomview.SceneContext) { l = sc.Layout() }); err != nil {
		return s.unavailable(c, err)
	}
	return c.JSON(l)
}

func (s *Server) getPlan(c fiber.Ctx) error {
	var l *layout.Layout
	if err := s.scene(func(sc *roomview.SceneContext) { l = sc.Layout() }); err != nil {
		return s.unavailable(c, err)
	}
	raw, err := l.FeatureCollection().MarshalJSON()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set("Content-Type", "application/geo+json")
	return c.Send(raw)
}

func (s *Server) listObjects(c fiber.Ctx) error {
	var infos []roomview.ObjectInfo
	if err := s.scene(func(sc *roomview.SceneContext) { infos = sc.Describe() }); err != nil {
		return s.unavailable(c, err)
	}
	return c.JSON(fiber.Map{"objects": infos})
}

type loadBody struct {
	Locator   string                    `json:"locator"`
	X         float64                   `json:"x"`
	Z         float64                   `json:"z"`
	Normalize *roomview.NormalizeConfig `json:"normalize,omitempty"`
}

func (s *Server) loadObject(c fiber.Ctx) error {
	var body loadBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return badRequest(c, "invalid JSON payload")
	}
	if body.Locator == "" {
		return badRequest(c, "locator required")
	}

	var (
		req    *roomview.LoadRequest
		optErr error
	)
	err := s.scene(func(sc *roomview.SceneContext) {
		cfg := sc.Config()
		norm := cfg.Normalize
		if body.Normalize != nil {
			norm = *body.Normalize
		}
		opts, err := norm.Options()
		if err != nil {
			optErr = err
			return
		}
		if len(s.loads) >= maxTrackedLoads {
			s.pruneFinished()
		}
		req = sc.LoadAsync(context.Background(), body.Locator, mgl64.Vec3{body.X, 0, body.Z}, opts)
		s.loads[req.ID] = req
	})
	if err != nil {
		return s.unavailable(c, err)
	}
	if optErr != nil {
		return badRequest(c, optErr.Error())
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"request_id": req.ID})
}

func (s *Server) getLoad(c fiber.Ctx) error {
	id := c.Params("id")
	var (
		req    *roomview.LoadRequest
		object editor.ObjectID
		err    error
	)
	if doErr := s.scene(func(sc *roomview.SceneContext) {
		req = s.loads[id]
		if req == nil {
			return
		}
		// The outcome is reported once; after that the id is forgotten.
		if object, err = req.Result(); !errors.Is(err, roomview.ErrLoadPending) {
			delete(s.loads, id)
		}
	}); doErr != nil {
		return s.unavailable(c, doErr)
	}
	if req == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown load"})
	}

	switch {
	case errors.Is(err, roomview.ErrLoadPending):
		return c.JSON(fiber.Map{"status": "pending", "locator": req.Locator})
	case err != nil:
		return c.JSON(fiber.Map{"status": "failed", "locator": req.Locator, "error": err.Error(), "stale": errors.Is(err, roomview.ErrStaleCompletion)})
	}
	return c.JSON(fiber.Map{"status": "done", "locator": req.Locator, "object": object})
}

func (s *Server) clearObjects(c fiber.Ctx) error {
	var removed int
	if err := s.scene(func(sc *roomview.SceneContext) {
		removed = sc.ClearAssets()
		s.pruneFinished()
	}); err != nil {
		return s.unavailable(c, err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}

// pruneFinished drops every request that has an outcome. Call it on the
// scene goroutine.
func (s *Server) pruneFinished() {
	for id, req := range s.loads {
		if _, err := req.Result(); !errors.Is(err, roomview.ErrLoadPending) {
			delete(s.loads, id)
		}
	}
}

type pointsResult struct {
	ID        editor.ObjectID `json:"id"`
	Count     int             `json:"count"`
	Position  [3]float64      `json:"position"`
	Positions []float32       `json:"positions"`
	Colors    []float32       `json:"colors"`
}

// getPoints serves an object's normalized geometry in object space. With
// ?format=binary the body is the x,y,z float32 little-endian position
// buffer and the vertex count is in X-Point-Count.
func (s *Server) getPoints(c fiber.Ctx) error {
	id := editor.ObjectID(c.Params("id"))
	var (
		res   pointsResult
		found bool
	)
	if err := s.scene(func(sc *roomview.SceneContext) {
		obj, ok := sc.Registry().Object(id)
		if !ok {
			return
		}
		found = true
		res = pointsResult{
			ID:        obj.ID,
			Count:     obj.Asset.Count,
			Position:  [3]float64(obj.Position()),
			Positions: obj.Asset.PositionBuffer(),
			Colors:    append([]float32(nil), obj.Asset.Colors...),
		}
	}); err != nil {
		return s.unavailable(c, err)
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": editor.ErrUnknownObject.Error()})
	}

	switch c.Query("format") {
	case "", "json":
		return c.JSON(res)
	case "binary":
		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.LittleEndian, res.Positions); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		c.Set("Content-Type", "application/octet-stream")
		c.Set("X-Point-Count", strconv.Itoa(res.Count))
		return c.Send(buf.Bytes())
	default:
		return badRequest(c, "format must be json or binary")
	}
}

type positionBody struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func (s *Server) moveObject(c fiber.Ctx) error {
	var body positionBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return badRequest(c, "invalid JSON payload")
	}
	id := editor.ObjectID(c.Params("id"))
	var moveErr error
	if err := s.scene(func(sc *roomview.SceneContext) { moveErr = sc.MoveObject(id, body.X, body.Z) }); err != nil {
		return s.unavailable(c, err)
	}
	if errors.Is(moveErr, editor.ErrUnknownObject) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": moveErr.Error()})
	}
	if moveErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": moveErr.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type pointerBody struct {
	Type string `json:"type"`
	editor.PointerEvent
}

type pointerResult struct {
	Consumed   bool            `json:"consumed"`
	State      string          `json:"state"`
	Navigation bool            `json:"navigation"`
	Object     editor.ObjectID `json:"object,omitempty"`
	Position   *[3]float64     `json:"position,omitempty"`
}

func (s *Server) pointer(c fiber.Ctx) error {
	var body pointerBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return badRequest(c, "invalid JSON payload")
	}
	switch body.Type {
	case "down", "move", "up", "leave":
	default:
		return badRequest(c, "type must be one of down, move, up, leave")
	}

	var res pointerResult
	err := s.scene(func(sc *roomview.SceneContext) {
		switch body.Type {
		case "down":
			res.Consumed = sc.PointerDown(body.PointerEvent)
		case "move":
			res.Consumed = sc.PointerMove(body.PointerEvent)
		case "up":
			sc.PointerUp()
		case "leave":
			sc.PointerLeave()
		}
		res.State = sc.Drag().State().String()
		res.Navigation = sc.NavigationEnabled()
		if session, ok := sc.Drag().Session(); ok {
			res.Object = session.Object
			if pos, err := sc.Registry().Position(session.Object); err == nil {
				p := [3]float64(pos)
				res.Position = &p
			}
		}
	})
	if err != nil {
		return s.unavailable(c, err)
	}
	return c.JSON(res)
}

func (s *Server) setViewport(c fiber.Ctx) error {
	var vp roomview.ViewportConfig
	if err := json.Unmarshal(c.Body(), &vp); err != nil {
		return badRequest(c, "invalid JSON payload")
	}
	if !(vp.Width > 0 && vp.Height > 0) {
		return badRequest(c, "viewport must have a positive size")
	}
	if err := s.scene(func(sc *roomview.SceneContext) { sc.SetViewport(vp.Viewport()) }); err != nil {
		return s.unavailable(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
