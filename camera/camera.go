package camera

import (
	"log/slog"
	"sync"

	"github.com/y3nr1ng/NLC-Receiver/internal/hal"
)

// Camera is one exclusively opened device. It tracks the open,
// capturing and transmitting flags as explicit state so that illegal
// transitions (configuring while transmitting, grabbing while idle)
// are checked preconditions instead of ordering assumptions.
//
// A Camera is not safe for unsequenced concurrent use; see the package
// documentation for the two-goroutine contract.
type Camera struct {
	drv  *Driver
	guid GUID
	dev  hal.Device
	log  *slog.Logger

	mu           sync.Mutex
	open         bool
	capturing    bool
	transmitting bool
	unusable     bool
	session      *Session
}

// GUID returns the device identifier this camera was opened with.
func (c *Camera) GUID() GUID { return c.guid }

// Open reports whether the native resource is currently held.
func (c *Camera) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Transmitting reports whether isochronous transmission is active.
// Transmitting implies open.
func (c *Camera) Transmitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transmitting
}

// Close releases the camera. If transmission or capture is still
// active it is stopped first, best-effort: teardown failures are
// logged, never propagated, and never prevent the release. Close is
// idempotent; the second call is a no-op.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}

	c.forceStopLocked()
	c.dev.Release()
	c.open = false
	c.session = nil
	c.drv.forget(c.guid)

	c.log.Info("camera: device closed", "guid", c.guid.String())
	return nil
}

// forceStopLocked turns transmission off, releases capture buffers if
// either is active, and detaches the session so the camera can start a
// fresh acquisition. Idempotent; secondary failures during forced
// teardown are logged only. Callers hold c.mu.
func (c *Camera) forceStopLocked() {
	if c.transmitting {
		if err := c.dev.SetTransmission(false); err != nil {
			c.log.Warn("camera: forced transmission stop failed",
				"guid", c.guid.String(), "error", err)
		}
		c.transmitting = false
	}
	if c.capturing {
		if err := c.dev.CaptureStop(); err != nil {
			c.log.Warn("camera: forced capture stop failed",
				"guid", c.guid.String(), "error", err)
		}
		c.capturing = false
	}
	c.session = nil
}

// releaseUnusableLocked is the single teardown funnel for every fatal
// error path: stop whatever is running, release the native resource,
// and mark the handle unusable. Every further operation on the camera
// fails with ErrHandleUnusable. Callers hold c.mu.
func (c *Camera) releaseUnusableLocked() {
	c.forceStopLocked()
	if c.open {
		c.dev.Release()
		c.open = false
		c.drv.forget(c.guid)
	}
	c.session = nil
	c.unusable = true

	c.log.Error("camera: device released after fatal error", "guid", c.guid.String())
}
