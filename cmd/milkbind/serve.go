package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coreman2200/milkbind/internal/activity"
	"github.com/coreman2200/milkbind/internal/audio"
	"github.com/coreman2200/milkbind/internal/config"
	"github.com/coreman2200/milkbind/internal/controller"
	"github.com/coreman2200/milkbind/internal/diagnostics"
	"github.com/coreman2200/milkbind/internal/host"
	"github.com/coreman2200/milkbind/internal/presets"
	"github.com/coreman2200/milkbind/internal/render"
	"github.com/coreman2200/milkbind/internal/render/scenes/calib"
	"github.com/coreman2200/milkbind/internal/render/scenes/grad"
	"github.com/coreman2200/milkbind/internal/render/scenes/ripple"
	"github.com/coreman2200/milkbind/internal/render/scenes/solid"
	"github.com/coreman2200/milkbind/internal/surface/led"
	"github.com/coreman2200/milkbind/internal/surface/sim"
	"github.com/coreman2200/milkbind/internal/transition"
	"github.com/coreman2200/milkbind/internal/ws"
)

type serveOptions struct {
	*rootOptions
	ConfigPath string
	BPM        float64
	Flags      config.Config
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the visualizer and its control server",
		Long: `Run the visualizer: one engine bound to a synthetic beat, a render
surface (in-memory preview or an LED strip) and a websocket control server.

Values in the config file override the flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.ConfigPath, "config", "config.yaml", "path to config.yaml")
	f.Float64Var(&opts.BPM, "bpm", 120, "tempo of the synthetic beat")
	f.StringVar(&opts.Flags.Addr, "addr", ":8080", "HTTP listen address")
	f.IntVar(&opts.Flags.FPS, "fps", 60, "target frames per second")
	f.StringVar(&opts.Flags.Surface.Driver, "driver", "sim", "surface: sim | led")
	f.IntVar(&opts.Flags.Surface.Width, "width", 64, "render width")
	f.IntVar(&opts.Flags.Surface.Height, "height", 48, "render height")
	f.IntVar(&opts.Flags.Surface.LEDs, "leds", 150, "LED count for driver=led")
	f.StringVar(&opts.Flags.Presets.Dir, "presets", "presets", "preset directory")
	f.BoolVar(&opts.Flags.Presets.Watch, "watch", false, "reload presets when files change")
	f.StringVar(&opts.Flags.Presets.Initial, "preset", "", "preset to load at start")
	f.StringVar(&opts.Flags.Activity.Sink, "activity", "none", "activity sink: none | http | sqlite")
	f.StringVar(&opts.Flags.Activity.URL, "activity-url", "", "endpoint for the http activity sink")
	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	cfg := opts.Flags
	if err := config.LoadInto(opts.ConfigPath, &cfg); err != nil {
		log.Warn().Err(err).Str("path", opts.ConfigPath).Msg("config load failed; proceeding with flags")
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	// hub is assigned once the controller exists; the closures below only
	// run after that.
	var hub *ws.Hub

	reporter := diagnostics.Fanout{
		diagnostics.LogReporter{Logger: log.Logger},
		diagnostics.ReporterFunc(func(d diagnostics.Diagnostic) { hub.Report(d) }),
	}

	sink, err := openSink(cfg.Activity)
	if err != nil {
		return err
	}
	if c, ok := sink.(io.Closer); ok {
		defer c.Close()
	}
	tracker := activity.NewTracker(sink, reporter, time.Duration(cfg.Activity.TimeoutMs)*time.Millisecond)

	preview := sim.New(func(f render.Frame) { hub.BroadcastFrame(f) })
	out := selectSurface(cfg.Surface, preview, led.Open)
	if out.strip != nil {
		defer out.strip.Close()
	}
	surface, post := out.surface, out.post

	reg := render.NewRegistry()
	reg.Register(solid.New("solid"))
	reg.Register(grad.New("grad"))
	reg.Register(ripple.New("ripple"))
	reg.Register(calib.New("calib"))

	var lib ws.Presets
	library, err := presets.Open(cfg.Presets.Dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.Presets.Dir).Msg("no presets loaded")
	} else {
		lib = library
		log.Info().Int("count", len(library.List())).Str("dir", cfg.Presets.Dir).Msg("presets loaded")
	}

	loop := host.NewLoop(cfg.FPS)
	ctrl := controller.New(controller.Options{
		Factory: func(a render.AudioSource, s render.Surface, c render.Config) (controller.Engine, error) {
			e, err := render.NewEngine(a, s, c, reg)
			if err != nil {
				return nil, err
			}
			e.Post = post
			return e, nil
		},
		Frames:     loop,
		MeshWidth:  cfg.Engine.MeshWidth,
		MeshHeight: cfg.Engine.MeshHeight,
		PixelRatio: cfg.Engine.PixelRatio,
		Activity:   tracker,
		Logger:     &log.Logger,
	})
	hub = ws.NewHub(loop, ctrl, lib, controller.Inputs{
		Audio:      audio.NewSynth(44100, opts.BPM),
		Surface:    surface,
		Width:      cfg.Surface.Width,
		Height:     cfg.Surface.Height,
		Enabled:    true,
		Visible:    true,
		Transition: transition.Default,
	}, log.Logger)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go loop.Run(loopCtx)
	go hub.Run(loopCtx)

	initial := cfg.Presets.Initial
	loop.Post(func() { _ = hub.Apply(ws.Control{Preset: &initial}) })

	if cfg.Presets.Watch && library != nil {
		go func() {
			err := library.Watch(loopCtx, func(names []string) {
				loop.Post(func() { _ = hub.Refresh(names) })
			})
			if err != nil {
				log.Warn().Err(err).Msg("preset watch stopped")
			}
		}()
	}

	mux := http.NewServeMux()
	hub.Routes(mux)
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      withCORS(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("driver", out.driver).Str("controller", ctrl.ID).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-sigCtx.Done():
		log.Info().Msg("shutting down")
	case err = <-serveErr:
		log.Error().Err(err).Msg("http server crashed")
	}

	_ = srv.Close()
	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	if cerr := loop.Call(closeCtx, ctrl.Close); cerr != nil {
		log.Warn().Err(cerr).Msg("controller close")
	}
	cancel()
	stopLoop()
	<-loop.Done()
	tracker.Wait()
	return err
}

type surfaceChoice struct {
	surface render.Surface
	post    func([]render.Color, *render.Uniforms)
	// driver names what actually draws: "sim", "led" or "led-console".
	driver string
	strip  *led.Surface
}

type openStrip func(dev string, leds, speedHz int) (*led.Surface, error)

// selectSurface always keeps the preview; driver=led adds the strip in front
// of it and falls back to the preview alone when the strip cannot be opened.
func selectSurface(c config.Surface, preview render.Surface, open openStrip) surfaceChoice {
	out := surfaceChoice{surface: preview, post: render.ToneMap, driver: "sim"}
	if c.Driver != "led" {
		return out
	}
	strip, err := open(c.SPI.Dev, c.LEDs, c.SPI.SpeedHz)
	if err != nil {
		log.Warn().Err(err).Str("driver", "led").Str("dev", c.SPI.Dev).Msg("LED init failed; falling back to SIM")
		return out
	}
	out.surface = render.Surfaces{strip, preview}
	out.post = render.Linear
	out.strip = strip
	out.driver = "led"
	if !strip.SPI {
		out.driver = "led-console"
	}
	return out
}

func openSink(c config.Activity) (activity.Sink, error) {
	switch c.Sink {
	case "http":
		return &activity.HTTPSink{URL: c.URL, Client: &http.Client{}}, nil
	case "sqlite":
		s, err := activity.OpenSQLite(c.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("activity sink: %w", err)
		}
		return s, nil
	default:
		return activity.Discard{}, nil
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
