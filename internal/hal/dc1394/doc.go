// Package dc1394 implements the hal backend for real IIDC cameras by
// binding libdc1394 through cgo.
//
// The binding is opt-in: build with -tags dc1394 on a host with
// libdc1394-2 development headers installed. Default builds compile a
// stub whose NewBus returns hal.ErrNotSupported, so the rest of the
// module (and its tests, which run against the sim backend) never needs
// the C toolchain or the library.
//
// Cameras are driven in Format7 mode 4 with RGB8 color coding, matching
// the ROI call surface exposed by hal.Device.
package dc1394
