package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderspace/roomview"
	"github.com/renderspace/roomview/pointcloud"
)

func boxSource() pointcloud.Source {
	return pointcloud.SourceFunc(func(ctx context.Context, locator string) (pointcloud.RawPointCloud, error) {
		if strings.HasSuffix(locator, ".obj") {
			return pointcloud.RawPointCloud{}, pointcloud.ErrUnsupportedFormat
		}
		return pointcloud.RawPointCloud{
			Positions: []mgl64.Vec3{{-1, 0, 0}, {1, 1, 0.5}},
			Source:    locator,
		}, nil
	})
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := roomview.DefaultConfig()
	cfg.Furniture = nil
	scene, err := roomview.NewSceneContext(cfg, roomview.WithSource(boxSource()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	loop := NewSceneLoop(scene, time.Millisecond)
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.stopped
		scene.Close()
	})
	return New(loop, nil, Options{})
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func waitLoad(t *testing.T, s *Server, id string) map[string]any {
	t.Helper()
	var last map[string]any
	require.Eventually(t, func() bool {
		_, last = do(t, s, http.MethodGet, "/api/loads/"+id, "")
		return last["status"] != "pending"
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, body := do(t, s, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alive", body["status"])

	code, body = do(t, s, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), body["objects"])
}

func TestLayoutEndpoint(t *testing.T) {
	s := newTestServer(t)
	code, body := do(t, s, http.MethodGet, "/api/layout", "")
	require.Equal(t, http.StatusOK, code)

	walls, ok := body["walls"].([]any)
	require.True(t, ok)
	assert.Len(t, walls, 9)
	first := walls[0].(map[string]any)
	assert.Equal(t, "front", first["wall"])
	assert.Equal(t, "horizontal", first["orientation"])

	floors := body["floors"].([]any)
	assert.Equal(t, "living", floors[0].(map[string]any)["room"])
}

func TestPlanEndpoint(t *testing.T) {
	s := newTestServer(t)
	code, body := do(t, s, http.MethodGet, "/api/layout.geojson", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FeatureCollection", body["type"])
	assert.Len(t, body["features"], 15)
}

func TestLoadMoveAndDrag(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/api/objects", `{"locator": "couch.ply", "x": 0, "z": 3}`)
	require.Equal(t, http.StatusAccepted, code)
	load := waitLoad(t, s, body["request_id"].(string))
	require.Equal(t, "done", load["status"], load)
	id := load["object"].(string)

	code, body = do(t, s, http.MethodGet, "/api/objects", "")
	require.Equal(t, http.StatusOK, code)
	objects := body["objects"].([]any)
	require.Len(t, objects, 1)
	obj := objects[0].(map[string]any)
	assert.Equal(t, id, obj["id"])
	assert.Equal(t, "living", obj["room"])
	assert.Equal(t, []any{0.0, 0.3, 3.0}, obj["position"])

	// Point at the object's anchor, then drag towards the bedroom.
	var down, move [2]float64
	require.NoError(t, s.loop.Do(context.Background(), func(sc *roomview.SceneContext) {
		vp := sc.Drag().Viewport()
		ndc, _ := sc.Camera().Project(mgl64.Vec3{0, 0.3, 3})
		down[0], down[1] = vp.Client(ndc)
		ndc, _ = sc.Camera().Project(mgl64.Vec3{0.5, 0.3, 0})
		move[0], move[1] = vp.Client(ndc)
	}))

	code, body = do(t, s, http.MethodPost, "/api/pointer", pointerJSON("down", down))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["consumed"])
	assert.Equal(t, "dragging", body["state"])
	assert.Equal(t, false, body["navigation"])

	_, body = do(t, s, http.MethodPost, "/api/pointer", pointerJSON("move", move))
	pos := body["position"].([]any)
	assert.InDelta(t, 0.5, pos[0].(float64), 1e-6)
	assert.Equal(t, 0.3, pos[1])
	assert.InDelta(t, 0, pos[2].(float64), 1e-6)

	_, body = do(t, s, http.MethodPost, "/api/pointer", `{"type": "leave"}`)
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, true, body["navigation"])

	code, _ = do(t, s, http.MethodPut, "/api/objects/"+id+"/position", `{"x": -1, "z": -3}`)
	assert.Equal(t, http.StatusNoContent, code)
	_, body = do(t, s, http.MethodGet, "/api/objects", "")
	obj = body["objects"].([]any)[0].(map[string]any)
	assert.Equal(t, "bath", obj["room"])

	code, _ = do(t, s, http.MethodPut, "/api/objects/missing/position", `{"x": 0, "z": 0}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = do(t, s, http.MethodDelete, "/api/objects", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["removed"])
}

func TestPointerMissLeavesNavigation(t *testing.T) {
	s := newTestServer(t)
	_, body := do(t, s, http.MethodPost, "/api/pointer", `{"type": "down", "client_x": 3, "client_y": 4}`)
	assert.Equal(t, false, body["consumed"])
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, true, body["navigation"])
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/objects", `{`},
		{http.MethodPost, "/api/objects", `{"x": 1}`},
		{http.MethodPost, "/api/objects", `{"locator": "a.ply", "normalize": {"origin": "ceiling"}}`},
		{http.MethodPost, "/api/pointer", `{"type": "click"}`},
		{http.MethodPut, "/api/viewport", `{"width": 0, "height": 10}`},
		{http.MethodPut, "/api/objects/x/position", `nope`},
	}
	for _, tt := range tests {
		code, body := do(t, s, tt.method, tt.path, tt.body)
		assert.Equal(t, http.StatusBadRequest, code, tt.path+" "+tt.body)
		assert.NotEmpty(t, body["error"])
	}
}

func TestFailedLoadIsReported(t *testing.T) {
	s := newTestServer(t)
	_, body := do(t, s, http.MethodPost, "/api/objects", `{"locator": "chair.obj"}`)
	load := waitLoad(t, s, body["request_id"].(string))
	assert.Equal(t, "failed", load["status"])
	assert.Equal(t, false, load["stale"])

	code, _ := do(t, s, http.MethodGet, "/api/loads/unknown", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestFinishedLoadIsReportedOnce(t *testing.T) {
	s := newTestServer(t)
	_, body := do(t, s, http.MethodPost, "/api/objects", `{"locator": "lamp.ply"}`)
	id := body["request_id"].(string)
	load := waitLoad(t, s, id)
	require.Equal(t, "done", load["status"])

	code, _ := do(t, s, http.MethodGet, "/api/loads/"+id, "")
	assert.Equal(t, http.StatusNotFound, code)

	var tracked int
	require.NoError(t, s.loop.Do(context.Background(), func(*roomview.SceneContext) {
		tracked = len(s.loads)
	}))
	assert.Equal(t, 0, tracked)
}

func TestObjectPoints(t *testing.T) {
	s := newTestServer(t)
	_, body := do(t, s, http.MethodPost, "/api/objects", `{"locator": "table.ply", "x": 1, "z": -2}`)
	load := waitLoad(t, s, body["request_id"].(string))
	require.Equal(t, "done", load["status"], load)
	id := load["object"].(string)

	code, body := do(t, s, http.MethodGet, "/api/objects/"+id+"/points", "")
	require.Equal(t, http.StatusOK, code)
	count := int(body["count"].(float64))
	assert.Equal(t, 2, count)
	assert.Len(t, body["positions"], 3*count)
	assert.Len(t, body["colors"], 3*count)
	assert.Equal(t, []any{1.0, 0.3, -2.0}, body["position"])

	req := httptest.NewRequest(http.MethodGet, "/api/objects/"+id+"/points?format=binary", nil)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("X-Point-Count"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Len(t, raw, 4*3*count)

	buf := make([]float32, 3*count)
	require.NoError(t, binary.Read(bytes.NewReader(raw), binary.LittleEndian, buf))
	for i, v := range body["positions"].([]any) {
		assert.InDelta(t, v.(float64), float64(buf[i]), 1e-6)
	}

	code, _ = do(t, s, http.MethodGet, "/api/objects/nope/points", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, s, http.MethodGet, "/api/objects/"+id+"/points?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestViewportUpdate(t *testing.T) {
	s := newTestServer(t)
	code, _ := do(t, s, http.MethodPut, "/api/viewport", `{"left": 10, "top": 20, "width": 300, "height": 150}`)
	require.Equal(t, http.StatusNoContent, code)

	var aspect float64
	require.NoError(t, s.loop.Do(context.Background(), func(sc *roomview.SceneContext) {
		aspect = sc.Camera().Aspect
	}))
	assert.Equal(t, 2.0, aspect)
}

func TestDoAfterStop(t *testing.T) {
	cfg := roomview.DefaultConfig()
	cfg.Furniture = nil
	scene, err := roomview.NewSceneContext(cfg)
	require.NoError(t, err)
	defer scene.Close()

	loop := NewSceneLoop(scene, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop.Run(ctx)

	err = loop.Do(context.Background(), func(*roomview.SceneContext) {})
	assert.ErrorIs(t, err, ErrLoopStopped)
}

func pointerJSON(kind string, at [2]float64) string {
	b, _ := json.Marshal(map[string]any{"type": kind, "client_x": at[0], "client_y": at[1]})
	return string(b)
}
