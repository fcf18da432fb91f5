package camera

import (
	"log/slog"
	"sync"

	"github.com/y3nr1ng/NLC-Receiver/internal/hal"
	"github.com/y3nr1ng/NLC-Receiver/internal/hal/dc1394"
	"github.com/y3nr1ng/NLC-Receiver/internal/hal/sim"
)

// Driver is the process-wide handle to the IIDC subsystem. Create one
// at startup, release it at shutdown, after every camera opened through
// it has been closed.
type Driver struct {
	log *slog.Logger
	bus hal.Bus

	mu     sync.Mutex
	open   map[GUID]*Camera
	closed bool
}

type driverOptions struct {
	logger *slog.Logger
	bus    hal.Bus
}

// Option configures a Driver at construction time.
type Option func(*driverOptions)

// WithLogger routes the driver's structured logging to l instead of
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *driverOptions) { o.logger = l }
}

// WithSimulatedBus replaces the hardware backend with an in-memory bus
// carrying one simulated camera per GUID. Intended for demo runs and
// environments without FireWire hardware.
func WithSimulatedBus(guids ...GUID) Option {
	return func(o *driverOptions) {
		raw := make([]uint64, len(guids))
		for i, g := range guids {
			raw[i] = uint64(g)
		}
		o.bus = sim.NewBus(raw...)
	}
}

// withBus injects an arbitrary backend. Test hook.
func withBus(bus hal.Bus) Option {
	return func(o *driverOptions) { o.bus = bus }
}

// New initializes the camera subsystem. Without options it binds the
// real libdc1394 backend and fails with *InitError when the subsystem
// cannot initialize.
func New(opts ...Option) (*Driver, error) {
	var o driverOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	bus := o.bus
	backend := "sim"
	if bus == nil {
		b, err := dc1394.NewBus()
		if err != nil {
			return nil, &InitError{Err: err}
		}
		bus = b
		backend = "dc1394"
	}

	o.logger.Info("camera: driver initialized", "backend", backend)

	return &Driver{
		log:  o.logger,
		bus:  bus,
		open: make(map[GUID]*Camera),
	}, nil
}

// ListDevices enumerates the cameras currently on the bus, in bus
// order. An empty slice with a nil error means no cameras are attached.
func (d *Driver) ListDevices() ([]GUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDriverClosed
	}

	raw, err := d.bus.Enumerate()
	if err != nil {
		return nil, &EnumerationError{Err: err}
	}

	guids := make([]GUID, len(raw))
	for i, g := range raw {
		guids[i] = GUID(g)
	}
	d.log.Debug("camera: bus enumerated", "devices", len(guids))
	return guids, nil
}

// Open claims the camera with the given GUID exclusively. The returned
// Camera owns the native resource until Close.
func (d *Driver) Open(guid GUID) (*Camera, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDriverClosed
	}

	dev, err := d.bus.Open(uint64(guid))
	if err != nil {
		return nil, &DeviceOpenError{GUID: guid, Err: err}
	}

	cam := &Camera{
		drv:  d,
		guid: guid,
		dev:  dev,
		log:  d.log,
		open: true,
	}
	d.open[guid] = cam

	d.log.Info("camera: device opened", "guid", guid.String())
	return cam, nil
}

// Close releases the subsystem handle. It is a checked precondition
// that all cameras opened through this driver are closed first; Close
// fails with ErrDevicesOpen otherwise. Idempotent.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	if n := len(d.open); n > 0 {
		d.log.Warn("camera: driver close refused", "open_devices", n)
		return ErrDevicesOpen
	}

	d.bus.Release()
	d.closed = true
	d.log.Info("camera: driver released")
	return nil
}

// forget removes a camera from the open set once its native resource
// has been released.
func (d *Driver) forget(guid GUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.open, guid)
}
