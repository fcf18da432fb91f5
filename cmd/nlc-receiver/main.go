// Command nlc-receiver drives an IIDC camera from the command line:
// enumerate the bus, configure a device, capture frames, optionally
// save them as PNG, serve a status/snapshot HTTP endpoint, and emit
// capture statistics over MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/y3nr1ng/NLC-Receiver/camera"
	"github.com/y3nr1ng/NLC-Receiver/internal/config"
	"github.com/y3nr1ng/NLC-Receiver/internal/emitter"
	"github.com/y3nr1ng/NLC-Receiver/internal/server"
)

const version = "v0.1.0"

// simGUID is the camera present on the simulated bus (--sim).
const simGUID = camera.GUID(0x00b09d0100a01234)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	list := flag.Bool("list", false, "Enumerate cameras on the bus and exit")
	sim := flag.Bool("sim", false, "Use the simulated bus instead of FireWire hardware")
	guidFlag := flag.String("guid", "", "Camera GUID in hex (default: first on the bus)")
	outputDir := flag.String("output", "", "Directory to save captured frames as PNG (optional)")
	maxFrames := flag.Int("max-frames", 0, "Stop after this many frames (0 = unlimited)")
	dmaBuffers := flag.Int("dma", 0, "DMA ring buffer count (0 = config default)")
	statsInterval := flag.Int("stats-interval", 0, "Seconds between stats reports (0 = config default)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("nlc-receiver %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Flag overrides.
	if *guidFlag != "" {
		cfg.Camera.GUID = *guidFlag
	}
	if *sim {
		cfg.Camera.Simulated = true
	}
	if *outputDir != "" {
		cfg.Capture.OutputDir = *outputDir
	}
	if *maxFrames > 0 {
		cfg.Capture.MaxFrames = *maxFrames
	}
	if *dmaBuffers > 0 {
		cfg.Capture.DMABuffers = *dmaBuffers
	}
	if *statsInterval > 0 {
		cfg.Capture.StatsIntervalS = *statsInterval
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := run(cfg, *list, logger); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cfg *config.Config, listOnly bool, logger *slog.Logger) error {
	opts := []camera.Option{camera.WithLogger(logger)}
	if cfg.Camera.Simulated {
		opts = append(opts, camera.WithSimulatedBus(simGUID))
	}

	drv, err := camera.New(opts...)
	if err != nil {
		return fmt.Errorf("initialize driver: %w", err)
	}
	defer func() {
		if err := drv.Close(); err != nil {
			slog.Warn("driver close failed", "error", err)
		}
	}()

	guids, err := drv.ListDevices()
	if err != nil {
		return fmt.Errorf("enumerate bus: %w", err)
	}
	if listOnly {
		if len(guids) == 0 {
			fmt.Println("No cameras on the bus.")
			return nil
		}
		for i, g := range guids {
			fmt.Printf("%d: %s\n", i, g)
		}
		return nil
	}
	if len(guids) == 0 {
		return fmt.Errorf("no cameras on the bus")
	}

	guid, ok, err := cfg.Camera.GUIDValue()
	if err != nil {
		return err
	}
	if !ok {
		guid = guids[0]
	}

	cam, err := drv.Open(guid)
	if err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer cam.Close()

	speed, err := cfg.Camera.Speed()
	if err != nil {
		return err
	}
	rate, err := cfg.Camera.Rate()
	if err != nil {
		return err
	}
	roi := cfg.Camera.ROI
	err = cam.Apply(
		speed,
		camera.Resolution{Left: roi.Left, Top: roi.Top, Width: roi.Width, Height: roi.Height},
		rate,
	)
	if err != nil {
		return fmt.Errorf("configure camera: %w", err)
	}

	session, err := cam.StartAcquisition(cfg.Capture.DMABuffers)
	if err != nil {
		return fmt.Errorf("start acquisition: %w", err)
	}
	defer func() {
		if err := session.StopAcquisition(); err != nil {
			slog.Warn("acquisition stop reported errors", "error", err)
		}
	}()

	// Sink: count frames, save PNGs when requested, signal completion
	// once max-frames is reached.
	limitReached := make(chan struct{})
	var shown atomic.Uint64
	sink := camera.SinkFunc(func(img *camera.DecodedImage) {
		n := shown.Add(1)
		if cfg.Capture.OutputDir != "" {
			if err := savePNG(cfg.Capture.OutputDir, img); err != nil {
				slog.Error("frame save failed", "seq", img.Seq, "error", err)
			}
		}
		if cfg.Capture.MaxFrames > 0 && n == uint64(cfg.Capture.MaxFrames) {
			close(limitReached)
		}
	})

	loop := camera.NewCaptureLoop(logger)
	if err := loop.Start(session, sink); err != nil {
		return fmt.Errorf("start capture loop: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.HTTP != nil {
		srv := server.New(server.Config{
			Addr:       fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
			InstanceID: cfg.InstanceID,
			GUID:       guid.String(),
		}, loop)
		go func() {
			if err := srv.Run(ctx); err != nil {
				slog.Error("http server failed", "error", err)
			}
		}()
	}

	var emit *emitter.Emitter
	if cfg.MQTT != nil {
		emit = emitter.New(emitter.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.InstanceID,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		})
		if err := emit.Connect(); err != nil {
			slog.Warn("mqtt unavailable, continuing without stats emission", "error", err)
			emit = nil
		} else {
			defer emit.Disconnect()
		}
	}

	statsTicker := time.NewTicker(time.Duration(cfg.Capture.StatsIntervalS) * time.Second)
	defer statsTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("capturing", "guid", guid.String(), "instance", cfg.InstanceID)

	for {
		select {
		case sig := <-sigCh:
			slog.Info("signal received, stopping", "signal", sig.String())
			return shutdown(loop, shown.Load())

		case <-limitReached:
			slog.Info("frame limit reached", "max_frames", cfg.Capture.MaxFrames)
			return shutdown(loop, shown.Load())

		case <-loop.Done():
			// The loop terminated on its own: a fatal grab error.
			err := loop.Err()
			slog.Error("capture terminated", "error", err)
			return fmt.Errorf("capture terminated: %w", err)

		case <-statsTicker.C:
			reportStats(loop, emit, cfg, guid)
		}
	}
}

func shutdown(loop *camera.CaptureLoop, frames uint64) error {
	if err := loop.Stop(); err != nil {
		return fmt.Errorf("capture terminated: %w", err)
	}
	slog.Info("capture stopped", "frames", frames)
	return nil
}

func reportStats(loop *camera.CaptureLoop, emit *emitter.Emitter, cfg *config.Config, guid camera.GUID) {
	stats := loop.Stats()
	slog.Info("capture stats",
		"frames", stats.Frames,
		"fps_mean", fmt.Sprintf("%.2f", stats.Rate.FPSMean),
		"fps_stable", stats.Rate.Stable,
		"avg_grab", stats.AvgGrab,
	)
	if emit == nil {
		return
	}
	err := emit.Publish(emitter.StatsPayload{
		InstanceID:  cfg.InstanceID,
		GUID:        guid.String(),
		Frames:      stats.Frames,
		FPSMean:     stats.Rate.FPSMean,
		FPSStdDev:   stats.Rate.FPSStdDev,
		Stable:      stats.Rate.Stable,
		AvgGrabMS:   float64(stats.AvgGrab) / float64(time.Millisecond),
		LastFrameAt: stats.LastFrameAt,
		Timestamp:   time.Now(),
	})
	if err != nil {
		slog.Warn("stats publish failed", "error", err)
	}
}

func savePNG(dir string, img *camera.DecodedImage) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", img.Seq))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img.RGBA())
}
