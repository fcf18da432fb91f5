package camera

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrHandleUnusable is reported by every operation on a camera that
	// went through a fatal error path. The camera must be reopened.
	ErrHandleUnusable = errors.New("camera: handle unusable, reopen the device")

	// ErrDriverClosed is reported by operations on a closed Driver.
	ErrDriverClosed = errors.New("camera: driver closed")

	// ErrDevicesOpen is reported by Driver.Close while cameras opened
	// through it are still open.
	ErrDevicesOpen = errors.New("camera: cameras still open")

	// ErrNotOpen is reported by operations that require an open camera.
	ErrNotOpen = errors.New("camera: device not open")

	// ErrAcquisitionActive is reported by StartAcquisition while a
	// session already exists on the camera.
	ErrAcquisitionActive = errors.New("camera: acquisition already active")

	// ErrNotTransmitting is reported by GrabFrame outside the
	// Transmitting state.
	ErrNotTransmitting = errors.New("camera: session not transmitting")

	// ErrLoopActive is reported by CaptureLoop.Start while the loop is
	// already running.
	ErrLoopActive = errors.New("camera: capture loop already running")
)

// InitError indicates the underlying camera subsystem could not be
// initialized (no driver support present, library failure).
type InitError struct {
	Err error
}

func (e *InitError) Error() string { return "camera: driver init failed: " + e.Err.Error() }
func (e *InitError) Unwrap() error { return e.Err }

// EnumerationError indicates the subsystem could not query the bus.
// An empty bus is not an error.
type EnumerationError struct {
	Err error
}

func (e *EnumerationError) Error() string { return "camera: device enumeration failed: " + e.Err.Error() }
func (e *EnumerationError) Unwrap() error { return e.Err }

// DeviceOpenError indicates a camera could not be claimed: the GUID is
// stale or the device is already opened exclusively elsewhere.
type DeviceOpenError struct {
	GUID GUID
	Err  error
}

func (e *DeviceOpenError) Error() string {
	return fmt.Sprintf("camera: open device %s: %v", e.GUID, e.Err)
}
func (e *DeviceOpenError) Unwrap() error { return e.Err }

// InvalidParameterError indicates Apply received a parameter variant it
// does not recognize. Nothing applied before it is rolled back.
type InvalidParameterError struct {
	Param Parameter
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("camera: unknown configuration parameter %T", e.Param)
}

// ConfigKind identifies which parameter variant a ConfigurationError
// refers to.
type ConfigKind int

// Parameter variants.
const (
	KindBusSpeed ConfigKind = iota
	KindResolution
	KindFrameRate
)

// String returns the variant name.
func (k ConfigKind) String() string {
	switch k {
	case KindBusSpeed:
		return "bus speed"
	case KindResolution:
		return "resolution"
	case KindFrameRate:
		return "frame rate"
	default:
		return "unknown"
	}
}

// ConfigurationError indicates a parameter could not be applied. A
// resolution or frame rate failure is fatal to the handle; a bus speed
// failure leaves the handle open but in an undefined capture-readiness
// state, and the caller should close it.
type ConfigurationError struct {
	Kind ConfigKind
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("camera: set %s: %v", e.Kind, e.Err)
}
func (e *ConfigurationError) Unwrap() error { return e.Err }

// CaptureSetupError indicates the DMA ring could not be allocated.
// Fatal to the handle.
type CaptureSetupError struct {
	Err error
}

func (e *CaptureSetupError) Error() string { return "camera: capture setup failed: " + e.Err.Error() }
func (e *CaptureSetupError) Unwrap() error { return e.Err }

// TransmissionError indicates isochronous transmission could not be
// started. Fatal to the handle.
type TransmissionError struct {
	Err error
}

func (e *TransmissionError) Error() string {
	return "camera: start transmission failed: " + e.Err.Error()
}
func (e *TransmissionError) Unwrap() error { return e.Err }

// FrameGrabError indicates a frame dequeue or re-enqueue failed. Fatal
// to the handle; the capture loop terminates on it.
type FrameGrabError struct {
	Err error
}

func (e *FrameGrabError) Error() string { return "camera: frame grab failed: " + e.Err.Error() }
func (e *FrameGrabError) Unwrap() error { return e.Err }

// StopError collects teardown failures from StopAcquisition. The
// session is considered stopped regardless.
type StopError struct {
	Errs []error
}

func (e *StopError) Error() string {
	return "camera: stop acquisition: " + errors.Join(e.Errs...).Error()
}
func (e *StopError) Unwrap() []error { return e.Errs }
