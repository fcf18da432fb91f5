package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/y3nr1ng/NLC-Receiver/internal/hal"
)

func TestBusEnumerateOrder(t *testing.T) {
	bus := NewBus(0x30, 0x10, 0x20)

	guids, err := bus.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	want := []uint64{0x30, 0x10, 0x20}
	if len(guids) != len(want) {
		t.Fatalf("Enumerate() returned %d, want %d", len(guids), len(want))
	}
	for i := range want {
		if guids[i] != want[i] {
			t.Errorf("Enumerate()[%d] = %#x, want %#x", i, guids[i], want[i])
		}
	}
}

func TestBusOpenClaim(t *testing.T) {
	bus := NewBus(0x01)

	if _, err := bus.Open(0x99); !errors.Is(err, hal.ErrNoDevice) {
		t.Fatalf("Open(unknown) error = %v, want hal.ErrNoDevice", err)
	}

	dev, err := bus.Open(0x01)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := bus.Open(0x01); !errors.Is(err, hal.ErrDeviceClaimed) {
		t.Fatalf("second Open() error = %v, want hal.ErrDeviceClaimed", err)
	}

	dev.Release()
	if _, err := bus.Open(0x01); err != nil {
		t.Fatalf("Open() after Release() error = %v", err)
	}
}

func TestBusReleased(t *testing.T) {
	bus := NewBus(0x01)
	bus.Release()

	if _, err := bus.Enumerate(); !errors.Is(err, hal.ErrBusReleased) {
		t.Errorf("Enumerate() on released bus error = %v, want hal.ErrBusReleased", err)
	}
	if _, err := bus.Open(0x01); !errors.Is(err, hal.ErrBusReleased) {
		t.Errorf("Open() on released bus error = %v, want hal.ErrBusReleased", err)
	}
}

func setupCapture(t *testing.T, buffers int) *Camera {
	t.Helper()
	bus := NewBus(0x01)
	dev, err := bus.Open(0x01)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	cam := dev.(*Camera)
	if err := cam.CaptureSetup(buffers); err != nil {
		t.Fatalf("CaptureSetup() error = %v", err)
	}
	if err := cam.SetTransmission(true); err != nil {
		t.Fatalf("SetTransmission() error = %v", err)
	}
	return cam
}

func TestDequeueRequiresCaptureAndTransmission(t *testing.T) {
	bus := NewBus(0x01)
	dev, err := bus.Open(0x01)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	cam := dev.(*Camera)

	if _, err := cam.DequeueFrame(); !errors.Is(err, hal.ErrNotCapturing) {
		t.Fatalf("DequeueFrame() before setup error = %v, want hal.ErrNotCapturing", err)
	}

	if err := cam.CaptureSetup(4); err != nil {
		t.Fatalf("CaptureSetup() error = %v", err)
	}
	if _, err := cam.DequeueFrame(); !errors.Is(err, hal.ErrNotTransmitting) {
		t.Fatalf("DequeueFrame() before transmission error = %v, want hal.ErrNotTransmitting", err)
	}
}

func TestRingAccounting(t *testing.T) {
	cam := setupCapture(t, 2)

	f1, err := cam.DequeueFrame()
	if err != nil {
		t.Fatalf("DequeueFrame() #1 error = %v", err)
	}
	f2, err := cam.DequeueFrame()
	if err != nil {
		t.Fatalf("DequeueFrame() #2 error = %v", err)
	}
	if got := cam.Outstanding(); got != 2 {
		t.Fatalf("Outstanding() = %d, want 2", got)
	}

	// With every buffer outstanding the next dequeue blocks until a
	// buffer is returned.
	got := make(chan *hal.RawFrame, 1)
	go func() {
		f, err := cam.DequeueFrame()
		if err != nil {
			got <- nil
			return
		}
		got <- f
	}()

	select {
	case <-got:
		t.Fatal("DequeueFrame() returned with all buffers outstanding")
	case <-time.After(50 * time.Millisecond):
	}

	if err := cam.EnqueueFrame(f1); err != nil {
		t.Fatalf("EnqueueFrame() error = %v", err)
	}

	select {
	case f := <-got:
		if f == nil {
			t.Fatal("blocked DequeueFrame() failed after enqueue")
		}
	case <-time.After(time.Second):
		t.Fatal("DequeueFrame() still blocked after enqueue")
	}

	if err := cam.EnqueueFrame(f2); err != nil {
		t.Fatalf("EnqueueFrame() #2 error = %v", err)
	}
	if got := cam.Outstanding(); got != 1 {
		t.Errorf("Outstanding() = %d, want 1", got)
	}
}

func TestEnqueueForeignFrame(t *testing.T) {
	cam := setupCapture(t, 2)

	err := cam.EnqueueFrame(&hal.RawFrame{Handle: 99})
	if !errors.Is(err, hal.ErrForeignFrame) {
		t.Fatalf("EnqueueFrame(foreign) error = %v, want hal.ErrForeignFrame", err)
	}
}

func TestFrameDimensionsFollowROI(t *testing.T) {
	bus := NewBus(0x01)
	dev, err := bus.Open(0x01)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	cam := dev.(*Camera)
	if err := cam.SetROI(0, 0, 320, 240); err != nil {
		t.Fatalf("SetROI() error = %v", err)
	}
	if err := cam.CaptureSetup(2); err != nil {
		t.Fatalf("CaptureSetup() error = %v", err)
	}
	if err := cam.SetTransmission(true); err != nil {
		t.Fatalf("SetTransmission() error = %v", err)
	}

	f, err := cam.DequeueFrame()
	if err != nil {
		t.Fatalf("DequeueFrame() error = %v", err)
	}
	if f.Width != 320 || f.Height != 240 {
		t.Errorf("frame = %dx%d, want 320x240", f.Width, f.Height)
	}
	if f.Stride != 320*3 {
		t.Errorf("Stride = %d, want %d", f.Stride, 320*3)
	}
	if len(f.Data) != 320*240*3 {
		t.Errorf("len(Data) = %d, want %d", len(f.Data), 320*240*3)
	}
}

func TestFailDequeueAfter(t *testing.T) {
	cam := setupCapture(t, 4)
	cause := errors.New("dma overrun")
	cam.FailDequeue = cause
	cam.FailDequeueAfter = 2

	f, err := cam.DequeueFrame()
	if err != nil {
		t.Fatalf("DequeueFrame() #1 error = %v", err)
	}
	if err := cam.EnqueueFrame(f); err != nil {
		t.Fatalf("EnqueueFrame() error = %v", err)
	}

	if _, err := cam.DequeueFrame(); !errors.Is(err, cause) {
		t.Fatalf("DequeueFrame() #2 error = %v, want injected failure", err)
	}
}

func TestFailDequeueAfterWithoutError(t *testing.T) {
	cam := setupCapture(t, 4)
	// The threshold alone must not inject: without an error to return
	// the knob is disarmed and dequeues keep delivering frames.
	cam.FailDequeueAfter = 1

	f, err := cam.DequeueFrame()
	if err != nil {
		t.Fatalf("DequeueFrame() error = %v", err)
	}
	if f == nil {
		t.Fatal("DequeueFrame() returned nil frame with nil error")
	}
}

func TestReleaseCounts(t *testing.T) {
	bus := NewBus(0x01)
	dev, err := bus.Open(0x01)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	cam := dev.(*Camera)

	cam.Release()
	cam.Release()
	if got := cam.Releases(); got != 2 {
		t.Errorf("Releases() = %d, want 2 (double release is counted)", got)
	}
	if cam.Opened() {
		t.Error("Opened() = true after Release()")
	}
}
