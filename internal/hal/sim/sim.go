// Package sim implements an in-memory IIDC bus backend.
//
// It exists so the camera package can be exercised without FireWire
// hardware: package tests drive the full state machine against it, and
// the receiver CLI uses it for demo runs. Each simulated camera keeps a
// real fixed-size frame ring with outstanding-buffer accounting, and
// every operation has a fault-injection knob so failure paths can be
// tested deterministically.
package sim

import (
	"sync"

	"github.com/y3nr1ng/NLC-Receiver/internal/hal"
)

const (
	defaultWidth  = 640
	defaultHeight = 480
)

// Bus is an in-memory hal.Bus holding a fixed set of simulated cameras.
type Bus struct {
	mu       sync.Mutex
	cams     map[uint64]*Camera
	order    []uint64
	released bool

	// FailEnumerate, when set, is returned by every Enumerate call.
	FailEnumerate error
}

// NewBus creates a bus with one simulated camera per GUID. No GUIDs is
// a valid, empty bus.
func NewBus(guids ...uint64) *Bus {
	b := &Bus{cams: make(map[uint64]*Camera, len(guids))}
	for _, g := range guids {
		b.cams[g] = &Camera{
			guid:   g,
			Width:  defaultWidth,
			Height: defaultHeight,
		}
		b.order = append(b.order, g)
	}
	return b
}

// Camera returns the simulated camera for a GUID so tests can reach its
// fault-injection knobs and state accessors. Nil if the GUID is unknown.
func (b *Bus) Camera(guid uint64) *Camera {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cams[guid]
}

// Enumerate implements hal.Bus.
func (b *Bus) Enumerate() ([]uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, hal.ErrBusReleased
	}
	if b.FailEnumerate != nil {
		return nil, b.FailEnumerate
	}
	out := make([]uint64, len(b.order))
	copy(out, b.order)
	return out, nil
}

// Open implements hal.Bus.
func (b *Bus) Open(guid uint64) (hal.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, hal.ErrBusReleased
	}
	cam, ok := b.cams[guid]
	if !ok {
		return nil, hal.ErrNoDevice
	}
	if err := cam.claim(); err != nil {
		return nil, err
	}
	return cam, nil
}

// Release implements hal.Bus.
func (b *Bus) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
}

// Released reports whether the bus handle has been released.
func (b *Bus) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// Camera is one simulated device. The exported Fail* fields inject
// errors into the corresponding hal.Device calls; the exported
// accessors expose state for test assertions.
type Camera struct {
	mu   sync.Mutex
	guid uint64

	// Width and Height describe the frames the camera produces. The
	// Format7 ROI call overrides them.
	Width  int
	Height int

	opened   bool
	released bool
	releases int

	capturing    bool
	transmitting bool

	speed int
	rate  int

	ringRequested int
	ring          [][]byte
	ready         chan int
	outstanding   int
	dequeues      int

	// Fault injection.
	FailISOSpeed        error
	FailROI             error
	FailFrameRate       error
	FailCaptureSetup    error
	FailCaptureStop     error
	FailTransmissionOn  error
	FailTransmissionOff error
	FailEnqueue         error

	// FailDequeue fails the n-th DequeueFrame call (1-based) with the
	// given error. A zero count or a nil error disables injection.
	FailDequeue      error
	FailDequeueAfter int
}

func (c *Camera) claim() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return hal.ErrDeviceClaimed
	}
	c.opened = true
	c.released = false
	return nil
}

// SetISOSpeed implements hal.Device.
func (c *Camera) SetISOSpeed(code int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailISOSpeed != nil {
		return c.FailISOSpeed
	}
	c.speed = code
	return nil
}

// SetROI implements hal.Device.
func (c *Camera) SetROI(left, top, width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailROI != nil {
		return c.FailROI
	}
	c.Width = width
	c.Height = height
	return nil
}

// SetFrameRate implements hal.Device.
func (c *Camera) SetFrameRate(code int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailFrameRate != nil {
		return c.FailFrameRate
	}
	c.rate = code
	return nil
}

// CaptureSetup implements hal.Device. The ring starts full: a free
// running camera has filled every buffer by the time the first dequeue
// happens.
func (c *Camera) CaptureSetup(dmaBuffers int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ringRequested = dmaBuffers
	if c.FailCaptureSetup != nil {
		return c.FailCaptureSetup
	}
	c.ring = make([][]byte, dmaBuffers)
	c.ready = make(chan int, dmaBuffers)
	for i := range c.ring {
		c.ring[i] = make([]byte, c.Width*c.Height*3)
		c.ready <- i
	}
	c.outstanding = 0
	c.capturing = true
	return nil
}

// CaptureStop implements hal.Device.
func (c *Camera) CaptureStop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailCaptureStop != nil {
		return c.FailCaptureStop
	}
	c.capturing = false
	c.ring = nil
	c.ready = nil
	c.outstanding = 0
	return nil
}

// SetTransmission implements hal.Device.
func (c *Camera) SetTransmission(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on && c.FailTransmissionOn != nil {
		return c.FailTransmissionOn
	}
	if !on && c.FailTransmissionOff != nil {
		return c.FailTransmissionOff
	}
	c.transmitting = on
	return nil
}

// DequeueFrame implements hal.Device. It blocks on ring availability
// like the real DMA dequeue; the simulated camera refills a buffer as
// soon as it is enqueued, so the block is bounded unless every buffer
// is outstanding.
func (c *Camera) DequeueFrame() (*hal.RawFrame, error) {
	c.mu.Lock()
	if !c.capturing {
		c.mu.Unlock()
		return nil, hal.ErrNotCapturing
	}
	if !c.transmitting {
		c.mu.Unlock()
		return nil, hal.ErrNotTransmitting
	}
	c.dequeues++
	if c.FailDequeue != nil && c.FailDequeueAfter > 0 && c.dequeues >= c.FailDequeueAfter {
		err := c.FailDequeue
		c.mu.Unlock()
		return nil, err
	}
	ready := c.ready
	width, height := c.Width, c.Height
	n := c.dequeues
	c.mu.Unlock()

	slot := <-ready

	c.mu.Lock()
	if c.ring == nil {
		c.mu.Unlock()
		return nil, hal.ErrNotCapturing
	}
	buf := c.ring[slot]
	// Synthetic sensor pattern so consumers see distinguishable frames.
	for i := range buf {
		buf[i] = byte(n + i%3)
	}
	c.outstanding++
	c.mu.Unlock()

	return &hal.RawFrame{
		Width:  width,
		Height: height,
		Stride: width * 3,
		Data:   buf,
		Handle: uintptr(slot),
	}, nil
}

// EnqueueFrame implements hal.Device.
func (c *Camera) EnqueueFrame(f *hal.RawFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailEnqueue != nil {
		return c.FailEnqueue
	}
	if !c.capturing {
		return hal.ErrNotCapturing
	}
	slot := int(f.Handle)
	if slot < 0 || slot >= len(c.ring) {
		return hal.ErrForeignFrame
	}
	c.outstanding--
	c.ready <- slot
	return nil
}

// Release implements hal.Device. The camera returns to the bus and can
// be claimed again.
func (c *Camera) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		// Counted so tests can detect a double release.
		c.releases++
		return
	}
	c.released = true
	c.releases++
	c.opened = false
	c.capturing = false
	c.transmitting = false
	c.ring = nil
	c.ready = nil
	c.outstanding = 0
}

// Opened reports whether the camera is currently claimed.
func (c *Camera) Opened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// Transmitting reports the isochronous transmission state.
func (c *Camera) Transmitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transmitting
}

// Capturing reports whether the DMA ring is allocated.
func (c *Camera) Capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

// Releases returns how many times Release has been called.
func (c *Camera) Releases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}

// Outstanding returns the number of dequeued-but-unreturned buffers.
func (c *Camera) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outstanding
}

// RingRequested returns the buffer count passed to the last CaptureSetup.
func (c *Camera) RingRequested() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ringRequested
}

// Speed returns the last ISO speed code applied.
func (c *Camera) Speed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Rate returns the last frame-rate code applied.
func (c *Camera) Rate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}
