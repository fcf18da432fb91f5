package camera

// Parameter is one typed configuration setting. The variants are
// Speed (bus speed), Resolution (Format7 region of interest) and
// FrameRate; they are validated by construction, replacing the
// count-plus-varargs register calls of the underlying API.
type Parameter interface {
	isParameter()
}

func (Speed) isParameter()      {}
func (Resolution) isParameter() {}
func (FrameRate) isParameter()  {}

// Resolution selects the Format7 region of interest in RGB8 coding.
// The four values are validated by the hardware, not here.
type Resolution struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// Apply writes a batch of configuration parameters to the device, in
// order. As a safety step it first forces transmission off and capture
// stopped (idempotent if already stopped); the hardware rejects
// register writes mid-transmission.
//
// Settings are independent on the wire, so there is no rollback of
// already-applied parameters when a later one fails. Failure handling
// differs by variant:
//
//   - Speed: *ConfigurationError, the handle stays open but its
//     capture readiness is undefined; the caller should close it.
//   - Resolution, FrameRate: fatal. The device is released through the
//     unusable-teardown funnel and the handle must be reopened.
//   - Unrecognized variant: *InvalidParameterError, nothing further is
//     applied.
func (c *Camera) Apply(params ...Parameter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unusable {
		return ErrHandleUnusable
	}
	if !c.open {
		return ErrNotOpen
	}

	c.forceStopLocked()

	for _, p := range params {
		switch p := p.(type) {
		case Speed:
			c.log.Debug("camera: set bus speed", "guid", c.guid.String(), "speed", p.String())
			if err := c.dev.SetISOSpeed(int(p)); err != nil {
				return &ConfigurationError{Kind: KindBusSpeed, Err: err}
			}

		case Resolution:
			c.log.Debug("camera: set resolution", "guid", c.guid.String(),
				"left", p.Left, "top", p.Top, "width", p.Width, "height", p.Height)
			if err := c.dev.SetROI(p.Left, p.Top, p.Width, p.Height); err != nil {
				c.releaseUnusableLocked()
				return &ConfigurationError{Kind: KindResolution, Err: err}
			}

		case FrameRate:
			c.log.Debug("camera: set frame rate", "guid", c.guid.String(), "rate", p.String())
			if err := c.dev.SetFrameRate(int(p)); err != nil {
				c.releaseUnusableLocked()
				return &ConfigurationError{Kind: KindFrameRate, Err: err}
			}

		default:
			return &InvalidParameterError{Param: p}
		}
	}

	return nil
}
