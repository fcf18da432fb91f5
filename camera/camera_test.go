package camera

import (
	"testing"
)

func TestCameraCloseIdempotent(t *testing.T) {
	drv, bus := newTestDriver(t, testGUID)
	cam, err := drv.Open(GUID(testGUID))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := cam.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := cam.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if got := bus.Camera(testGUID).Releases(); got != 1 {
		t.Errorf("device released %d times, want exactly 1", got)
	}
	if cam.Open() {
		t.Error("Open() = true after Close()")
	}
}

func TestCameraCloseStopsActiveAcquisition(t *testing.T) {
	drv, bus := newTestDriver(t, testGUID)
	cam, err := drv.Open(GUID(testGUID))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := cam.StartAcquisition(4); err != nil {
		t.Fatalf("StartAcquisition() error = %v", err)
	}

	if err := cam.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	dev := bus.Camera(testGUID)
	if dev.Transmitting() {
		t.Error("transmission still on after Close()")
	}
	if dev.Capturing() {
		t.Error("capture buffers still held after Close()")
	}
	if got := dev.Releases(); got != 1 {
		t.Errorf("device released %d times, want exactly 1", got)
	}
}

func TestCameraCloseSurvivesTeardownFailures(t *testing.T) {
	drv, bus := newTestDriver(t, testGUID)
	cam, err := drv.Open(GUID(testGUID))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := cam.StartAcquisition(4); err != nil {
		t.Fatalf("StartAcquisition() error = %v", err)
	}

	dev := bus.Camera(testGUID)
	dev.FailTransmissionOff = errIO
	dev.FailCaptureStop = errIO

	// Teardown failures are logged, never propagated; the release must
	// still happen so the driver can close afterwards.
	if err := cam.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil despite teardown failures", err)
	}
	if got := dev.Releases(); got != 1 {
		t.Errorf("device released %d times, want exactly 1", got)
	}
	if err := drv.Close(); err != nil {
		t.Fatalf("driver Close() error = %v", err)
	}
}
