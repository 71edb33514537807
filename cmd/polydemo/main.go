// Command polydemo renders a procedural field of outlined polygons
// offscreen and reports frame statistics.
//
//	polydemo -config polydemo.toml -watch -frames 600
//
// Settings come from defaults, then the TOML file, then flags. With -watch
// the file is reloaded on change and applied between frames.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/allbackends"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/schollz/progressbar/v3"

	polyoutline "github.com/mache102/gl-poly-outline"
	"github.com/mache102/gl-poly-outline/internal/gpu"
	"github.com/mache102/gl-poly-outline/render"
	"github.com/mache102/gl-poly-outline/scene"
)

func main() {
	var (
		config     = flag.String("config", "", "settings file (TOML)")
		watch      = flag.Bool("watch", false, "reload the settings file on change")
		dumpConfig = flag.Bool("dump-config", false, "print the effective settings as TOML and exit")
		frames     = flag.Int("frames", 0, "stop after n frames (0 runs until interrupted)")
		backend    = flag.String("backend", "auto", "GPU backend: auto or noop")
		polygons   = flag.Int("polygons", -1, "override the polygon count")
		mode       = flag.String("mode", "", "override the render mode: attr or vstore")
		circles    = flag.Bool("circles", false, "render circles instead of polygons")
		animate    = flag.Bool("animate", false, "rotate the polygons every frame")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	polyoutline.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	polyoutline.RegisterLogSink(hal.SetLogger)

	settings, err := loadSettings(*config)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "polygons":
			settings.Polygons = *polygons
		case "mode":
			settings.Mode = polyoutline.Mode(*mode)
		case "circles":
			settings.Circles = *circles
		case "animate":
			settings.Animate = *animate
		}
	})
	if err := settings.Validate(); err != nil {
		log.Fatalf("settings: %v", err)
	}
	if *dumpConfig {
		if err := settings.Encode(os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings, *config, *watch, *backend, *frames); err != nil {
		log.Fatal(err)
	}
}

func loadSettings(path string) (polyoutline.Settings, error) {
	if path == "" {
		return polyoutline.DefaultSettings(), nil
	}
	return polyoutline.LoadSettings(path)
}

func run(ctx context.Context, settings polyoutline.Settings, configPath string, watch bool, backend string, frames int) error {
	device, queue, closeDevice, err := openDevice(backend)
	if err != nil {
		return err
	}
	defer closeDevice()

	bar := progressbar.Default(int64(settings.Polygons), "generating")
	sc, err := scene.Generate(settings, rand.New(rand.NewPCG(uint64(settings.Seed), 0)),
		scene.WithProgress(func(int) { _ = bar.Add(1) }))
	_ = bar.Close()
	if err != nil {
		return err
	}
	stats := sc.Batch.Stats()
	fmt.Fprintf(os.Stderr, "batch: %s\n", stats)

	renderer, err := gpu.NewRenderer(device, queue)
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	driver, err := render.NewDriver(renderer, sc.Batch, sc.Store, settings)
	if err != nil {
		return err
	}

	var updates <-chan polyoutline.Settings
	if watch {
		if configPath == "" {
			return errors.New("-watch needs -config")
		}
		if updates, err = polyoutline.WatchSettings(ctx, configPath); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	defer close(done)
	go reportStats(driver, done)

	start := time.Now()
	if err := driver.Run(ctx, updates, frames); err != nil {
		return err
	}
	if err := renderer.Wait(); err != nil {
		return err
	}
	final := driver.Stats()
	polyoutline.Logger().Info("polydemo: done", "stats", final, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// openDevice opens the first adapter of the selected backend.
func openDevice(name string) (hal.Device, hal.Queue, func(), error) {
	var (
		b   hal.Backend
		err error
	)
	switch name {
	case "noop":
		b = noop.API{}
	case "auto":
		if b, err = hal.SelectBestBackend(); err != nil {
			return nil, nil, nil, fmt.Errorf("select backend: %w", err)
		}
	default:
		return nil, nil, nil, fmt.Errorf("unknown backend %q", name)
	}

	instance, err := b.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create %s instance: %w", b.Variant(), err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("%s: no adapters", b.Variant())
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("open %s: %w", adapters[0].Info.Name, err)
	}
	polyoutline.Logger().Info("polydemo: device opened",
		"backend", b.Variant().String(), "adapter", adapters[0].Info.Name)

	return open.Device, open.Queue, func() {
		open.Device.Destroy()
		instance.Destroy()
	}, nil
}

// reportStats logs frame statistics once a second.
func reportStats(d *render.Driver, done <-chan struct{}) {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-done:
			return
		case <-tick.C:
			polyoutline.Logger().Info("polydemo: frame stats", "stats", d.Stats())
		}
	}
}
