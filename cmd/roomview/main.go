package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/renderspace/roomview"
	"github.com/renderspace/roomview/server"
)

func main() {
	configPath := flag.String("config", "", "Scene config file (.json, .yaml or .yml); defaults to the built-in living room")
	assetRoot := flag.String("assets", "", "Override the directory or base URL furniture assets are loaded from")
	addr := flag.String("listen", "", "Serve the scene over HTTP on this address instead of printing a summary")
	timeout := flag.Duration("timeout", time.Minute, "Time allowed for furniture loads")
	asJSON := flag.Bool("json", false, "Print the summary as JSON")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger := roomview.NewDefaultLogger("roomview", *debug)
	if err := run(*configPath, *assetRoot, *addr, *timeout, *asJSON, *debug); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(configPath, assetRoot, addr string, timeout time.Duration, asJSON, debug bool) error {
	cfg := roomview.DefaultConfig()
	if configPath != "" {
		loaded, err := roomview.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if assetRoot != "" {
		cfg.AssetRoot = assetRoot
	}
	logger := roomview.NewConfigLogger(cfg, debug)

	scene, err := roomview.NewSceneContext(cfg, roomview.WithLogger(logger.Named("scene")))
	if err != nil {
		return err
	}
	defer scene.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	reqs, err := scene.LoadFurniture(loadCtx)
	if err != nil {
		return err
	}
	if err := scene.Settle(loadCtx, reqs...); err != nil {
		return fmt.Errorf("waiting for furniture: %w", err)
	}
	failed := 0
	for _, req := range reqs {
		if _, err := req.Result(); err != nil {
			failed++
		}
	}
	logger.Infof("loaded %d of %d furniture pieces", len(reqs)-failed, len(reqs))

	if addr == "" {
		return printSummary(scene, asJSON)
	}
	return serve(ctx, scene, logger.Named("http"), addr)
}

func serve(ctx context.Context, scene *roomview.SceneContext, logger roomview.Logger, addr string) error {
	loop := server.NewSceneLoop(scene, 16*time.Millisecond)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go loop.Run(loopCtx)

	srv := server.New(loop, logger, server.Options{AccessLog: logger.DebugEnabled()})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printSummary(scene *roomview.SceneContext, asJSON bool) error {
	l := scene.Layout()
	objects := scene.Describe()
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Layout  any                   `json:"layout"`
			Objects []roomview.ObjectInfo `json:"objects"`
		}{l, objects})
	}

	fmt.Printf("apartment %.2f x %.2f, rooms %.2f, walls %.2f high\n",
		l.Spec.ApartmentSize, l.Spec.ApartmentSize, l.Spec.RoomSize, l.Spec.WallHeight)
	for _, f := range l.Floors {
		fmt.Printf("  floor %-8s center (%.2f, %.2f)\n", f.Room, f.Center.X(), f.Center.Y())
	}
	for _, w := range l.Walls {
		lo, hi := w.Span()
		fmt.Printf("  wall  %-15s %-10s length %.3f span [%.3f, %.3f]\n", w.Wall, w.Orientation, w.Length, lo, hi)
	}
	for _, d := range l.Doorways {
		fmt.Printf("  door  %-15s width %.3f\n", d.Wall, d.Width)
	}
	for _, o := range objects {
		room := o.Room
		if room == "" {
			room = "outside"
		}
		fmt.Printf("  object %s %s: %d points at (%.2f, %.2f, %.2f) in %s\n",
			o.ID, o.Source, o.Points, o.Position[0], o.Position[1], o.Position[2], room)
	}
	return nil
}
