package camera

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// frameInterval is the minimum delay between loop iterations. A simple
// rate cap, not frame-accurate pacing.
const frameInterval = 33 * time.Millisecond

// rateWindow is how many recent frame timestamps feed Stats().Rate.
const rateWindow = 120

// Sink receives decoded images from the capture loop. Show is called
// synchronously from the capture goroutine and must not block
// indefinitely, or it stalls capture.
type Sink interface {
	Show(img *DecodedImage)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(img *DecodedImage)

// Show implements Sink.
func (f SinkFunc) Show(img *DecodedImage) { f(img) }

// CaptureLoop runs one background goroutine that repeatedly grabs
// frames from an active session and forwards them to a sink, capped at
// roughly 30 frames per second.
//
// A fatal grab error terminates the loop on its own; the error is
// never swallowed: it is returned from Stop, readable via Err, and
// Done closes. Cancellation is cooperative: Stop cannot interrupt a
// grab already blocked on the hardware dequeue, so it returns only
// after the in-flight grab does.
type CaptureLoop struct {
	log *slog.Logger

	mu     sync.Mutex
	active atomic.Bool
	done   chan struct{}
	err    error

	latest    atomic.Pointer[DecodedImage]
	frames    atomic.Uint64
	grabNanos atomic.Uint64

	timesMu    sync.Mutex
	frameTimes []time.Time
}

// NewCaptureLoop creates an idle capture loop. A nil logger means
// slog.Default().
func NewCaptureLoop(logger *slog.Logger) *CaptureLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureLoop{log: logger}
}

// Start spawns the capture goroutine over the given session and sink.
// It fails with ErrLoopActive if the loop is already running. A loop
// that has finished (stopped or failed) can be started again.
func (l *CaptureLoop) Start(session *Session, sink Sink) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active.Load() {
		return ErrLoopActive
	}

	l.done = make(chan struct{})
	l.err = nil
	l.active.Store(true)

	go l.run(session, sink)

	l.log.Info("camera: capture loop started")
	return nil
}

func (l *CaptureLoop) run(session *Session, sink Sink) {
	defer close(l.done)

	for l.active.Load() {
		start := time.Now()
		img, err := session.GrabFrame()
		if err != nil {
			l.mu.Lock()
			l.err = err
			l.mu.Unlock()
			l.active.Store(false)
			l.log.Error("camera: capture loop terminated", "error", err)
			return
		}

		l.grabNanos.Add(uint64(time.Since(start).Nanoseconds()))
		l.frames.Add(1)
		l.latest.Store(img)
		l.recordFrameTime(img.Timestamp)

		sink.Show(img)

		time.Sleep(frameInterval)
	}

	l.log.Debug("camera: capture loop exited", "frames", l.frames.Load())
}

// Stop clears the active flag and joins the capture goroutine. When it
// returns, no further Show call will occur. It returns the fatal loop
// error if the loop terminated on one, nil otherwise. Calling Stop on
// a never-started loop is a no-op.
func (l *CaptureLoop) Stop() error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done == nil {
		return nil
	}

	l.active.Store(false)
	<-done

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Done is closed once the capture goroutine has exited, whether by
// Stop or by a fatal grab error. Nil before the first Start.
func (l *CaptureLoop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Err returns the fatal loop error once the goroutine has exited, nil
// while it is still running or if it stopped cleanly.
func (l *CaptureLoop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == nil {
		return nil
	}
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

// Running reports whether the capture goroutine is active.
func (l *CaptureLoop) Running() bool { return l.active.Load() }

// LatestFrame returns the most recently delivered image, nil before
// the first frame.
func (l *CaptureLoop) LatestFrame() *DecodedImage { return l.latest.Load() }

// Stats returns a snapshot of loop progress and the measured delivery
// rate over the recent window.
func (l *CaptureLoop) Stats() CaptureStats {
	frames := l.frames.Load()
	var avg time.Duration
	if frames > 0 {
		avg = time.Duration(l.grabNanos.Load() / frames)
	}

	l.timesMu.Lock()
	times := make([]time.Time, len(l.frameTimes))
	copy(times, l.frameTimes)
	l.timesMu.Unlock()

	var last time.Time
	var rate RateStats
	if n := len(times); n > 0 {
		last = times[n-1]
		rate = CalculateRateStats(times, times[n-1].Sub(times[0]))
	}

	return CaptureStats{
		Frames:      frames,
		AvgGrab:     avg,
		LastFrameAt: last,
		Rate:        rate,
	}
}

func (l *CaptureLoop) recordFrameTime(t time.Time) {
	l.timesMu.Lock()
	l.frameTimes = append(l.frameTimes, t)
	if len(l.frameTimes) > rateWindow {
		l.frameTimes = l.frameTimes[len(l.frameTimes)-rateWindow:]
	}
	l.timesMu.Unlock()
}
