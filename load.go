package roomview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/renderspace/roomview/editor"
	"github.com/renderspace/roomview/pointcloud"
)

var (
	// ErrStaleCompletion is the result of a load that finished after the
	// scene's assets were cleared.
	ErrStaleCompletion = errors.New("stale completion")
	ErrLoadPending     = errors.New("load pending")
)

// LoadRequest is the future of one asynchronous asset load. It is completed
// exactly once, by SceneContext.Pump.
type LoadRequest struct {
	ID       string
	Locator  string
	Position mgl64.Vec3
	Options  pointcloud.Options

	generation uint64
	done       chan struct{}
	object     editor.ObjectID
	err        error
}

func (r *LoadRequest) Done() <-chan struct{} { return r.done }

// Result returns ErrLoadPending until Done is closed.
func (r *LoadRequest) Result() (editor.ObjectID, error) {
	select {
	case <-r.done:
		return r.object, r.err
	default:
		return "", ErrLoadPending
	}
}

func (r *LoadRequest) finish(id editor.ObjectID, err error) {
	r.object = id
	r.err = err
	close(r.done)
}

type completion struct {
	req   *LoadRequest
	asset *pointcloud.NormalizedAsset
	err   error
}

// loader runs Source.Load and Normalize off the scene goroutine. Workers
// never touch the scene; finished work waits in pending until Pump.
type loader struct {
	source pointcloud.Source
	logger Logger
	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending []completion
	ready   chan struct{}
	closed  bool
}

func newLoader(source pointcloud.Source, workers int, logger Logger) *loader {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &loader{
		source: source,
		logger: logger,
		sem:    make(chan struct{}, workers),
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan struct{}, 1),
	}
}

func (l *loader) submit(ctx context.Context, req *LoadRequest) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.push(completion{req: req, err: ErrSceneClosed})
		return
	}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		asset, err := l.run(ctx, req)
		l.push(completion{req: req, asset: asset, err: err})
	}()
}

func (l *loader) run(ctx context.Context, req *LoadRequest) (*pointcloud.NormalizedAsset, error) {
	ctx, stop := mergeCancel(ctx, l.ctx)
	defer stop()

	select {
	case l.sem <- struct{}{}:
		defer func() { <-l.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return loadAsset(ctx, l.source, req, l.logger)
}

func loadAsset(ctx context.Context, source pointcloud.Source, req *LoadRequest, logger Logger) (*pointcloud.NormalizedAsset, error) {
	start := time.Now()
	raw, err := source.Load(ctx, req.Locator)
	if err != nil {
		return nil, err
	}
	asset, err := pointcloud.Normalize(raw, req.Options)
	if err != nil {
		return nil, err
	}
	if asset.Degenerate {
		logger.Debugf("%s has zero extent, scale left at 1", req.Locator)
	}
	logger.Debugf("loaded %s: %d points, scale %.4f in %s", req.Locator, asset.Count, asset.Scale, time.Since(start))
	return asset, nil
}

func (l *loader) push(c completion) {
	l.mu.Lock()
	l.pending = append(l.pending, c)
	l.mu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *loader) drain() []completion {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.pending
	l.pending = nil
	return out
}

func (l *loader) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	l.cancel()
	l.wg.Wait()
}

// mergeCancel returns a context that is done when either parent is.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(a)
	stop := context.AfterFunc(b, func() { cancel(context.Cause(b)) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// LoadAsync starts loading one asset. The object is registered at pos by a
// later Pump unless ClearAssets runs first. It never blocks.
func (s *SceneContext) LoadAsync(ctx context.Context, locator string, pos mgl64.Vec3, opts pointcloud.Options) *LoadRequest {
	req := &LoadRequest{
		ID:         uuid.NewString(),
		Locator:    locator,
		Position:   pos,
		Options:    opts,
		generation: s.registry.Generation(),
		done:       make(chan struct{}),
	}
	s.loads.submit(ctx, req)
	return req
}

// LoadSync loads, normalizes and registers an asset on the calling
// goroutine, which must be the scene goroutine.
func (s *SceneContext) LoadSync(ctx context.Context, locator string, pos mgl64.Vec3, opts pointcloud.Options) (editor.ObjectID, error) {
	asset, err := loadAsset(ctx, s.source, &LoadRequest{Locator: locator, Options: opts}, s.logger)
	if err != nil {
		s.logger.Warnf("load %s: %v", locator, err)
		return "", err
	}
	return s.registry.Register(asset, pos)
}

// Pump publishes finished loads. Call it from the scene goroutine, e.g. once
// per frame. It returns the number of objects registered.
func (s *SceneContext) Pump() int {
	registered := 0
	for _, c := range s.loads.drain() {
		switch {
		case c.err != nil:
			s.logger.Warnf("load %s: %v", c.req.Locator, c.err)
			c.req.finish("", c.err)
		case c.req.generation != s.registry.Generation():
			s.logger.Debugf("dropping %s: scene cleared while loading", c.req.Locator)
			c.req.finish("", fmt.Errorf("%s: %w", c.req.Locator, ErrStaleCompletion))
		default:
			id, err := s.registry.Register(c.asset, c.req.Position)
			if err != nil {
				s.logger.Errorf("register %s: %v", c.req.Locator, err)
			} else {
				registered++
			}
			c.req.finish(id, err)
		}
	}
	return registered
}

// Settle pumps until every request is done or ctx ends. Like Pump it must run
// on the scene goroutine.
func (s *SceneContext) Settle(ctx context.Context, reqs ...*LoadRequest) error {
	for {
		s.Pump()
		if allDone(reqs) {
			return nil
		}
		select {
		case <-s.loads.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func allDone(reqs []*LoadRequest) bool {
	for _, r := range reqs {
		select {
		case <-r.done:
		default:
			return false
		}
	}
	return true
}

// LoadFurniture starts loading every configured furniture piece.
func (s *SceneContext) LoadFurniture(ctx context.Context) ([]*LoadRequest, error) {
	reqs := make([]*LoadRequest, 0, len(s.cfg.Furniture))
	for _, f := range s.cfg.Furniture {
		pos, err := f.Placement(s.layout)
		if err != nil {
			return reqs, err
		}
		opts, err := s.cfg.Options(f)
		if err != nil {
			return reqs, fmt.Errorf("%w: furniture %q: %w", ErrInvalidConfig, f.Name, err)
		}
		reqs = append(reqs, s.LoadAsync(ctx, s.cfg.AssetLocator(f), pos, opts))
	}
	return reqs, nil
}
