package camera

import (
	"fmt"
	"image"
	"time"
)

// GUID is the 64-bit globally unique identifier of a camera on the
// bus. Enumeration results are stable only for the duration of one
// ListDevices call.
type GUID uint64

// String formats the GUID the way bus tools print it.
func (g GUID) String() string {
	return fmt.Sprintf("%016x", uint64(g))
}

// Speed is the isochronous bus speed. Values are IIDC speed codes and
// cross the hardware boundary unchanged.
type Speed int

// Bus speed constants (IIDC v1.31).
const (
	Speed100 Speed = iota // 100 Mbit/s
	Speed200              // 200 Mbit/s
	Speed400              // 400 Mbit/s
	Speed800              // 800 Mbit/s, 1394b only
)

// String returns a human-readable speed name.
func (s Speed) String() string {
	switch s {
	case Speed100:
		return "S100"
	case Speed200:
		return "S200"
	case Speed400:
		return "S400"
	case Speed800:
		return "S800"
	default:
		return fmt.Sprintf("Speed(%d)", int(s))
	}
}

// FrameRate is a fixed camera frame rate. Values are IIDC rate codes
// (the register enumeration starts at 32).
type FrameRate int

// Frame rate constants (IIDC v1.31).
const (
	Rate1_875 FrameRate = iota + 32 // 1.875 fps
	Rate3_75                        // 3.75 fps
	Rate7_5                         // 7.5 fps
	Rate15                          // 15 fps
	Rate30                          // 30 fps
	Rate60                          // 60 fps
	Rate120                         // 120 fps
	Rate240                         // 240 fps
)

// String returns the rate in frames per second.
func (r FrameRate) String() string {
	switch r {
	case Rate1_875:
		return "1.875fps"
	case Rate3_75:
		return "3.75fps"
	case Rate7_5:
		return "7.5fps"
	case Rate15:
		return "15fps"
	case Rate30:
		return "30fps"
	case Rate60:
		return "60fps"
	case Rate120:
		return "120fps"
	case Rate240:
		return "240fps"
	default:
		return fmt.Sprintf("FrameRate(%d)", int(r))
	}
}

// DecodedImage is an owned interleaved RGB buffer produced from one
// DMA ring frame. Unlike the ring buffer it was converted from, it has
// no lifetime constraint; ownership transfers to whoever receives it.
type DecodedImage struct {
	Width  int
	Height int
	Stride int    // bytes per row, Width*3
	Pix    []byte // RGBRGB..., Height*Stride bytes

	// Seq is the monotonic sequence number within one session.
	Seq uint64
	// Timestamp is when the frame was dequeued.
	Timestamp time.Time
	// TraceID uniquely identifies the frame for tracing.
	TraceID string
}

// RGBA expands the RGB pixels into a standard *image.RGBA for sinks
// that draw or encode.
func (img *DecodedImage) RGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for i := 0; i < img.Width*img.Height; i++ {
		out.Pix[i*4+0] = img.Pix[i*3+0]
		out.Pix[i*4+1] = img.Pix[i*3+1]
		out.Pix[i*4+2] = img.Pix[i*3+2]
		out.Pix[i*4+3] = 0xff
	}
	return out
}

// CaptureStats is a snapshot of capture loop progress.
type CaptureStats struct {
	// Frames is the total number of frames delivered to the sink.
	Frames uint64
	// AvgGrab is the mean time spent inside GrabFrame.
	AvgGrab time.Duration
	// LastFrameAt is the timestamp of the most recent frame.
	LastFrameAt time.Time
	// Rate summarizes the measured delivery rate over the recent window.
	Rate RateStats
}
