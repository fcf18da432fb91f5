// Package server exposes the receiver's state over HTTP: health,
// capture status, and a downscaled snapshot of the latest frame. This
// is shell-layer tooling around the camera core; the core itself has
// no network surface.
package server

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/image/draw"

	"github.com/y3nr1ng/NLC-Receiver/camera"
)

// snapshotMaxWidth bounds the /api/snapshot image size; larger frames
// are downscaled preserving aspect ratio.
const snapshotMaxWidth = 640

// FrameSource provides the latest decoded frame and capture progress.
// *camera.CaptureLoop satisfies it.
type FrameSource interface {
	LatestFrame() *camera.DecodedImage
	Running() bool
	Stats() camera.CaptureStats
}

// Config selects the listen address and identity fields reported by
// the status endpoint.
type Config struct {
	Addr       string
	InstanceID string
	GUID       string
}

// Server is the HTTP status/snapshot surface.
type Server struct {
	cfg    Config
	src    FrameSource
	engine *gin.Engine
	http   *http.Server
}

// New builds the server and its routes.
func New(cfg Config, src FrameSource) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		src:    src,
		engine: engine,
		http: &http.Server{
			Addr:         cfg.Addr,
			Handler:      engine,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/api/status", s.handleStatus)
	engine.GET("/api/snapshot", s.handleSnapshot)
	return s
}

// Handler returns the route handler, for tests driving it through
// httptest without a listener.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server: listening", "addr", s.cfg.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server: listen: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	slog.Info("server: stopped")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	stats := s.src.Stats()
	c.JSON(http.StatusOK, gin.H{
		"instance_id":   s.cfg.InstanceID,
		"guid":          s.cfg.GUID,
		"capturing":     s.src.Running(),
		"frames":        stats.Frames,
		"fps_mean":      stats.Rate.FPSMean,
		"fps_stable":    stats.Rate.Stable,
		"avg_grab_ms":   float64(stats.AvgGrab) / float64(time.Millisecond),
		"last_frame_at": stats.LastFrameAt,
		"timestamp":     time.Now(),
	})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	img := s.src.LatestFrame()
	if img == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "no_frame",
			"message": "no frame captured yet",
		})
		return
	}

	rgba := img.RGBA()
	if rgba.Bounds().Dx() > snapshotMaxWidth {
		rgba = downscale(rgba, snapshotMaxWidth)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "encode_failed",
			"message": err.Error(),
		})
		return
	}

	c.Header("X-Frame-Seq", fmt.Sprintf("%d", img.Seq))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// downscale resizes to the given width, preserving aspect ratio.
func downscale(src *image.RGBA, width int) *image.RGBA {
	b := src.Bounds()
	height := b.Dy() * width / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
