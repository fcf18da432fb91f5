package camera

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/y3nr1ng/NLC-Receiver/internal/hal"
)

// minDMABuffers is substituted when StartAcquisition is asked for a
// non-positive ring size. A zero-buffer ring would "succeed" with no
// way to ever deliver a frame.
const minDMABuffers = 4

// SessionState is the acquisition state machine position.
type SessionState int

// Session states.
const (
	StateIdle SessionState = iota
	StateCaptureReady
	StateTransmitting
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCaptureReady:
		return "capture-ready"
	case StateTransmitting:
		return "transmitting"
	default:
		return "unknown"
	}
}

// Session is the transient acquisition state attached to an open
// camera while frames are being produced: the DMA ring is allocated
// and isochronous transmission runs. At most one session exists per
// camera; it must not be copied.
//
// The state is derived from the camera's capture and transmission
// flags, so a forced stop elsewhere (Apply, Close) is reflected here
// immediately.
type Session struct {
	cam *Camera
	seq atomic.Uint64
}

// StartAcquisition allocates the DMA frame ring with dmaBuffers
// buffers and immediately starts isochronous transmission, moving the
// session Idle → CaptureReady → Transmitting in one call.
//
// A non-positive dmaBuffers is substituted with the minimum usable
// ring (4 buffers) and logged. Either sub-step failing is fatal: the
// device is released and the handle must be reopened; the ring
// allocation failing reports *CaptureSetupError, the transmission
// switch failing reports *TransmissionError.
func (c *Camera) StartAcquisition(dmaBuffers int) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unusable {
		return nil, ErrHandleUnusable
	}
	if !c.open {
		return nil, ErrNotOpen
	}
	if c.session != nil {
		return nil, ErrAcquisitionActive
	}

	if dmaBuffers <= 0 {
		c.log.Warn("camera: non-positive DMA buffer count, substituting minimum",
			"guid", c.guid.String(), "requested", dmaBuffers, "substituted", minDMABuffers)
		dmaBuffers = minDMABuffers
	}

	if err := c.dev.CaptureSetup(dmaBuffers); err != nil {
		c.releaseUnusableLocked()
		return nil, &CaptureSetupError{Err: err}
	}
	c.capturing = true

	if err := c.dev.SetTransmission(true); err != nil {
		c.releaseUnusableLocked()
		return nil, &TransmissionError{Err: err}
	}
	c.transmitting = true

	s := &Session{cam: c}
	c.session = s

	c.log.Info("camera: acquisition started",
		"guid", c.guid.String(), "dma_buffers", dmaBuffers)
	return s, nil
}

// State returns the current state machine position.
func (s *Session) State() SessionState {
	c := s.cam
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() SessionState {
	c := s.cam
	switch {
	// A detached session (forced stop, or a newer acquisition on the
	// same camera) is permanently Idle.
	case c.session != s || c.unusable || !c.capturing:
		return StateIdle
	case !c.transmitting:
		return StateCaptureReady
	default:
		return StateTransmitting
	}
}

// GrabFrame dequeues one frame from the DMA ring, converts it into an
// owned DecodedImage, re-enqueues the ring buffer, and returns the
// image. Valid only in the Transmitting state.
//
// The dequeue blocks until the hardware fills a buffer; the bound is
// frame delivery, not a caller timeout. Any dequeue or enqueue failure
// is fatal: transmission and capture are stopped, the device is
// released, and *FrameGrabError propagates.
func (s *Session) GrabFrame() (*DecodedImage, error) {
	c := s.cam
	c.mu.Lock()
	if c.unusable {
		c.mu.Unlock()
		return nil, ErrHandleUnusable
	}
	if s.stateLocked() != StateTransmitting {
		c.mu.Unlock()
		return nil, ErrNotTransmitting
	}
	dev := c.dev
	c.mu.Unlock()

	// Blocking call: the mutex is not held here, but the package
	// contract keeps control-plane calls out until the grab returns.
	raw, err := dev.DequeueFrame()
	if err != nil {
		s.failGrab()
		return nil, &FrameGrabError{Err: fmt.Errorf("dequeue: %w", err)}
	}

	img := s.convert(raw)

	if err := dev.EnqueueFrame(raw); err != nil {
		s.failGrab()
		return nil, &FrameGrabError{Err: fmt.Errorf("enqueue: %w", err)}
	}

	return img, nil
}

// convert copies the borrowed ring buffer into an owned interleaved
// RGB image. The copy is what frees the ring slot for re-enqueue.
func (s *Session) convert(raw *hal.RawFrame) *DecodedImage {
	row := raw.Width * 3
	pix := make([]byte, raw.Height*row)
	if raw.Stride == row {
		copy(pix, raw.Data[:len(pix)])
	} else {
		for y := 0; y < raw.Height; y++ {
			copy(pix[y*row:(y+1)*row], raw.Data[y*raw.Stride:y*raw.Stride+row])
		}
	}
	return &DecodedImage{
		Width:     raw.Width,
		Height:    raw.Height,
		Stride:    row,
		Pix:       pix,
		Seq:       s.seq.Add(1),
		Timestamp: time.Now(),
		TraceID:   uuid.New().String(),
	}
}

// failGrab runs the fatal teardown for a failed dequeue or enqueue.
func (s *Session) failGrab() {
	c := s.cam
	c.mu.Lock()
	c.releaseUnusableLocked()
	c.mu.Unlock()
}

// StopAcquisition stops isochronous transmission, then releases the
// capture buffers, returning the session to Idle. Sub-step failures
// are collected into a *StopError but never interrupt the teardown:
// the session is considered stopped regardless, mirroring the forced
// stop paths. Calling it on an already stopped session is a no-op.
func (s *Session) StopAcquisition() error {
	c := s.cam
	c.mu.Lock()
	defer c.mu.Unlock()

	// A session detached by a forced stop is already stopped; it must
	// not touch an acquisition started after it.
	if c.session != s {
		return nil
	}
	if !c.transmitting && !c.capturing {
		c.session = nil
		return nil
	}

	var errs []error
	if c.transmitting {
		if err := c.dev.SetTransmission(false); err != nil {
			errs = append(errs, fmt.Errorf("stop transmission: %w", err))
		}
		c.transmitting = false
	}
	if c.capturing {
		if err := c.dev.CaptureStop(); err != nil {
			errs = append(errs, fmt.Errorf("release capture buffers: %w", err))
		}
		c.capturing = false
	}
	c.session = nil

	if len(errs) > 0 {
		err := &StopError{Errs: errs}
		c.log.Warn("camera: acquisition stopped with errors",
			"guid", c.guid.String(), "error", err)
		return err
	}

	c.log.Info("camera: acquisition stopped", "guid", c.guid.String())
	return nil
}
