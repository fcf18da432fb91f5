package camera

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// countingSink records every frame it is shown.
type countingSink struct {
	mu      sync.Mutex
	frames  int
	lastSeq uint64
}

func (s *countingSink) Show(img *DecodedImage) {
	s.mu.Lock()
	s.frames++
	s.lastSeq = img.Seq
	s.mu.Unlock()
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func startTestLoop(t *testing.T) (*CaptureLoop, *countingSink, *Session) {
	t.Helper()
	cam, _ := openTestCamera(t)
	session, err := cam.StartAcquisition(4)
	if err != nil {
		t.Fatalf("StartAcquisition() error = %v", err)
	}

	loop := NewCaptureLoop(quietLogger())
	sink := &countingSink{}
	if err := loop.Start(session, sink); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { loop.Stop() })
	return loop, sink, session
}

func TestCaptureLoopDeliversFrames(t *testing.T) {
	loop, sink, _ := startTestLoop(t)

	waitFor(t, 5*time.Second, func() bool { return sink.count() >= 3 }, "3 frames")

	if !loop.Running() {
		t.Error("Running() = false while loop is delivering")
	}
	if loop.LatestFrame() == nil {
		t.Error("LatestFrame() = nil after frames were delivered")
	}
	if got := loop.Stats().Frames; got < 3 {
		t.Errorf("Stats().Frames = %d, want >= 3", got)
	}

	if err := loop.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// No Show call may happen after Stop returns.
	after := sink.count()
	time.Sleep(3 * frameInterval)
	if got := sink.count(); got != after {
		t.Errorf("sink saw %d frames after Stop(), had %d at Stop()", got, after)
	}
	if loop.Running() {
		t.Error("Running() = true after Stop()")
	}
}

func TestCaptureLoopStartWhileRunning(t *testing.T) {
	loop, _, session := startTestLoop(t)

	if err := loop.Start(session, &countingSink{}); !errors.Is(err, ErrLoopActive) {
		t.Fatalf("Start() while running error = %v, want ErrLoopActive", err)
	}
}

func TestCaptureLoopStopNeverStarted(t *testing.T) {
	loop := NewCaptureLoop(quietLogger())
	if err := loop.Stop(); err != nil {
		t.Fatalf("Stop() on idle loop error = %v", err)
	}
	if loop.Err() != nil {
		t.Errorf("Err() on idle loop = %v, want nil", loop.Err())
	}
}

func TestCaptureLoopFatalGrabError(t *testing.T) {
	cam, tb := openTestCamera(t)
	session, err := cam.StartAcquisition(4)
	if err != nil {
		t.Fatalf("StartAcquisition() error = %v", err)
	}

	dev := tb.device()
	dev.FailDequeue = errIO
	dev.FailDequeueAfter = 3

	loop := NewCaptureLoop(quietLogger())
	sink := &countingSink{}
	if err := loop.Start(session, sink); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-loop.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not terminate on fatal grab error")
	}

	var grabErr *FrameGrabError
	if err := loop.Err(); !errors.As(err, &grabErr) {
		t.Fatalf("Err() = %v, want *FrameGrabError", err)
	}
	// Stop after self-termination reports the same error.
	if err := loop.Stop(); !errors.As(err, &grabErr) {
		t.Fatalf("Stop() = %v, want *FrameGrabError", err)
	}
	if got := sink.count(); got != 2 {
		t.Errorf("sink saw %d frames before the fatal grab, want 2", got)
	}
	if cam.Open() {
		t.Error("handle still open after fatal grab error")
	}
}

func TestCaptureLoopRestart(t *testing.T) {
	loop, sink, session := startTestLoop(t)

	waitFor(t, 5*time.Second, func() bool { return sink.count() >= 1 }, "first frame")
	if err := loop.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// A finished loop is restartable over the still-active session.
	sink2 := &countingSink{}
	if err := loop.Start(session, sink2); err != nil {
		t.Fatalf("restart Start() error = %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return sink2.count() >= 1 }, "frame after restart")
	if err := loop.Stop(); err != nil {
		t.Fatalf("Stop() after restart error = %v", err)
	}
}

func TestCaptureLoopStats(t *testing.T) {
	loop, sink, _ := startTestLoop(t)

	waitFor(t, 5*time.Second, func() bool { return sink.count() >= 4 }, "4 frames")
	if err := loop.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	stats := loop.Stats()
	if stats.Frames < 4 {
		t.Errorf("Stats().Frames = %d, want >= 4", stats.Frames)
	}
	if stats.LastFrameAt.IsZero() {
		t.Error("Stats().LastFrameAt is zero")
	}
	if stats.Rate.Frames < 4 {
		t.Errorf("Stats().Rate.Frames = %d, want >= 4", stats.Rate.Frames)
	}
	if stats.Rate.FPSMean <= 0 {
		t.Errorf("Stats().Rate.FPSMean = %f, want > 0", stats.Rate.FPSMean)
	}
}
