// Package hal defines the hardware abstraction boundary for IIDC bus
// access. The camera package talks to this interface only; concrete
// backends live in subpackages (dc1394 for real hardware, sim for an
// in-memory bus used by tests and demos).
//
// Speed and frame-rate values cross this boundary as raw IIDC register
// codes so that backends do not depend on the camera package's typed
// enumerations.
package hal

import "errors"

// Backend-independent sentinel errors.
var (
	// ErrNoDevice indicates the requested GUID is not present on the bus.
	ErrNoDevice = errors.New("hal: device not present")

	// ErrDeviceClaimed indicates the device is already opened exclusively.
	ErrDeviceClaimed = errors.New("hal: device already claimed")

	// ErrBusReleased indicates the bus handle has been released.
	ErrBusReleased = errors.New("hal: bus released")

	// ErrNotCapturing indicates a frame operation without capture set up.
	ErrNotCapturing = errors.New("hal: capture not set up")

	// ErrNotTransmitting indicates a dequeue while transmission is off.
	ErrNotTransmitting = errors.New("hal: transmission not active")

	// ErrForeignFrame indicates an enqueue of a frame that does not
	// belong to the device's DMA ring.
	ErrForeignFrame = errors.New("hal: frame not from this ring")

	// ErrNotSupported indicates the backend is unavailable in this build.
	ErrNotSupported = errors.New("hal: backend not supported in this build")
)

// RawFrame is one buffer of the fixed-size DMA ring, borrowed from the
// backend by DequeueFrame. Data is owned by the ring: it must not be
// retained after EnqueueFrame returns the buffer, or the ring stalls
// and capture eventually blocks.
type RawFrame struct {
	Width  int
	Height int
	Stride int // bytes per row
	Data   []byte

	// Handle is an opaque backend token identifying the ring buffer.
	Handle uintptr
}

// Bus is a process-wide handle to the IIDC subsystem. It enumerates
// devices and claims them; it does not own opened devices.
type Bus interface {
	// Enumerate returns the GUIDs of all cameras currently on the bus,
	// in bus order. An empty result with a nil error means no cameras
	// are attached.
	Enumerate() ([]uint64, error)

	// Open claims the camera with the given GUID exclusively.
	Open(guid uint64) (Device, error)

	// Release frees the subsystem handle. The caller must have released
	// all devices claimed through this bus first.
	Release()
}

// Device is one exclusively claimed camera. Calls are not safe for
// concurrent use; the caller sequences control and capture access.
type Device interface {
	// SetISOSpeed selects the isochronous bus speed (IIDC speed code).
	SetISOSpeed(code int) error

	// SetROI programs the Format7 region of interest in RGB8 coding.
	SetROI(left, top, width, height int) error

	// SetFrameRate selects the fixed frame rate (IIDC rate code).
	SetFrameRate(code int) error

	// CaptureSetup allocates the DMA ring with the given buffer count.
	CaptureSetup(dmaBuffers int) error

	// CaptureStop releases the DMA ring.
	CaptureStop() error

	// SetTransmission switches isochronous transmission on or off.
	SetTransmission(on bool) error

	// DequeueFrame blocks until the hardware fills a ring buffer and
	// returns it. The bound is hardware frame delivery; there is no
	// caller-supplied timeout.
	DequeueFrame() (*RawFrame, error)

	// EnqueueFrame returns a dequeued buffer to the ring.
	EnqueueFrame(f *RawFrame) error

	// Release frees the native camera resource. Idempotent.
	Release()
}
