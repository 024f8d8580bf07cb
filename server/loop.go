package server

import (
	"context"
	"errors"
	"time"

	"github.com/renderspace/roomview"
)

var ErrLoopStopped = errors.New("scene loop stopped")

// SceneLoop owns a SceneContext on a single goroutine. Other goroutines
// reach the scene only through Do.
type SceneLoop struct {
	scene    *roomview.SceneContext
	ops      chan func(*roomview.SceneContext)
	stopped  chan struct{}
	interval time.Duration
}

// NewSceneLoop pumps finished loads every interval (one frame).
func NewSceneLoop(scene *roomview.SceneContext, interval time.Duration) *SceneLoop {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &SceneLoop{
		scene:    scene,
		ops:      make(chan func(*roomview.SceneContext)),
		stopped:  make(chan struct{}),
		interval: interval,
	}
}

// Run processes operations and frame ticks until ctx ends.
func (l *SceneLoop) Run(ctx context.Context) {
	defer close(l.stopped)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case op := <-l.ops:
			op(l.scene)
		case <-ticker.C:
			l.scene.Pump()
		case <-ctx.Done():
			return
		}
	}
}

// Do runs fn on the scene goroutine and waits for it to return.
func (l *SceneLoop) Do(ctx context.Context, fn func(*roomview.SceneContext)) error {
	finished := make(chan struct{})
	op := func(s *roomview.SceneContext) {
		defer close(finished)
		fn(s)
	}
	select {
	case l.ops <- op:
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}
