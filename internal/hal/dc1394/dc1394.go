//go:build dc1394

package dc1394

/*
#cgo pkg-config: libdc1394-2
#include <dc1394/dc1394.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/y3nr1ng/NLC-Receiver/internal/hal"
)

// bus wraps a dc1394_t subsystem handle.
type bus struct {
	h *C.dc1394_t
}

// NewBus initializes the libdc1394 subsystem.
func NewBus() (hal.Bus, error) {
	h := C.dc1394_new()
	if h == nil {
		return nil, fmt.Errorf("dc1394: subsystem init failed (no driver support?)")
	}
	return &bus{h: h}, nil
}

func (b *bus) Enumerate() ([]uint64, error) {
	if b.h == nil {
		return nil, hal.ErrBusReleased
	}
	var list *C.dc1394camera_list_t
	if err := C.dc1394_camera_enumerate(b.h, &list); err != C.DC1394_SUCCESS {
		return nil, fmt.Errorf("dc1394: camera enumerate: %s", errString(err))
	}
	defer C.dc1394_camera_free_list(list)

	n := int(list.num)
	guids := make([]uint64, 0, n)
	ids := unsafe.Slice(list.ids, n)
	for i := 0; i < n; i++ {
		guids = append(guids, uint64(ids[i].guid))
	}
	return guids, nil
}

func (b *bus) Open(guid uint64) (hal.Device, error) {
	if b.h == nil {
		return nil, hal.ErrBusReleased
	}
	cam := C.dc1394_camera_new(b.h, C.uint64_t(guid))
	if cam == nil {
		return nil, hal.ErrNoDevice
	}
	return &device{h: cam}, nil
}

func (b *bus) Release() {
	if b.h != nil {
		C.dc1394_free(b.h)
		b.h = nil
	}
}

// device wraps a dc1394camera_t handle.
type device struct {
	h *C.dc1394camera_t
}

func (d *device) SetISOSpeed(code int) error {
	if err := C.dc1394_video_set_iso_speed(d.h, C.dc1394speed_t(code)); err != C.DC1394_SUCCESS {
		return fmt.Errorf("dc1394: set iso speed: %s", errString(err))
	}
	return nil
}

func (d *device) SetROI(left, top, width, height int) error {
	err := C.dc1394_format7_set_roi(d.h,
		C.DC1394_VIDEO_MODE_FORMAT7_4,
		C.DC1394_COLOR_CODING_RGB8,
		C.DC1394_USE_MAX_AVAIL,
		C.int32_t(left), C.int32_t(top),
		C.int32_t(width), C.int32_t(height))
	if err != C.DC1394_SUCCESS {
		return fmt.Errorf("dc1394: set format7 roi: %s", errString(err))
	}
	return nil
}

func (d *device) SetFrameRate(code int) error {
	if err := C.dc1394_video_set_framerate(d.h, C.dc1394framerate_t(code)); err != C.DC1394_SUCCESS {
		return fmt.Errorf("dc1394: set framerate: %s", errString(err))
	}
	return nil
}

func (d *device) CaptureSetup(dmaBuffers int) error {
	err := C.dc1394_capture_setup(d.h, C.uint32_t(dmaBuffers), C.DC1394_CAPTURE_FLAGS_DEFAULT)
	if err != C.DC1394_SUCCESS {
		return fmt.Errorf("dc1394: capture setup: %s", errString(err))
	}
	return nil
}

func (d *device) CaptureStop() error {
	if err := C.dc1394_capture_stop(d.h); err != C.DC1394_SUCCESS {
		return fmt.Errorf("dc1394: capture stop: %s", errString(err))
	}
	return nil
}

func (d *device) SetTransmission(on bool) error {
	sw := C.dc1394switch_t(C.DC1394_OFF)
	if on {
		sw = C.dc1394switch_t(C.DC1394_ON)
	}
	if err := C.dc1394_video_set_transmission(d.h, sw); err != C.DC1394_SUCCESS {
		return fmt.Errorf("dc1394: set transmission: %s", errString(err))
	}
	return nil
}

func (d *device) DequeueFrame() (*hal.RawFrame, error) {
	var frame *C.dc1394video_frame_t
	err := C.dc1394_capture_dequeue(d.h, C.DC1394_CAPTURE_POLICY_WAIT, &frame)
	if err != C.DC1394_SUCCESS || frame == nil {
		return nil, fmt.Errorf("dc1394: capture dequeue: %s", errString(err))
	}
	width := int(frame.size[0])
	height := int(frame.size[1])
	return &hal.RawFrame{
		Width:  width,
		Height: height,
		Stride: int(frame.stride),
		Data:   unsafe.Slice((*byte)(unsafe.Pointer(frame.image)), int(frame.image_bytes)),
		Handle: uintptr(unsafe.Pointer(frame)),
	}, nil
}

func (d *device) EnqueueFrame(f *hal.RawFrame) error {
	if f == nil || f.Handle == 0 {
		return hal.ErrForeignFrame
	}
	frame := (*C.dc1394video_frame_t)(unsafe.Pointer(f.Handle))
	if err := C.dc1394_capture_enqueue(d.h, frame); err != C.DC1394_SUCCESS {
		return fmt.Errorf("dc1394: capture enqueue: %s", errString(err))
	}
	return nil
}

func (d *device) Release() {
	if d.h != nil {
		C.dc1394_camera_free(d.h)
		d.h = nil
	}
}

func errString(err C.dc1394error_t) string {
	return C.GoString(C.dc1394_error_get_string(err))
}
