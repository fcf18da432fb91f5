// Package camera controls IIDC (DCAM) cameras on a FireWire bus:
// enumeration, exclusive open, typed parameter configuration,
// isochronous acquisition, and a background capture loop that feeds
// decoded frames to a display sink.
//
// # Quick Start
//
//	drv, err := camera.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	guids, err := drv.ListDevices()
//	if err != nil || len(guids) == 0 {
//	    log.Fatal("no cameras on the bus")
//	}
//
//	cam, err := drv.Open(guids[0])
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cam.Close()
//
//	err = cam.Apply(
//	    camera.Speed400,
//	    camera.Resolution{Width: 1024, Height: 768},
//	    camera.Rate30,
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session, err := cam.StartAcquisition(8)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.StopAcquisition()
//
//	loop := camera.NewCaptureLoop(nil)
//	loop.Start(session, camera.SinkFunc(func(img *camera.DecodedImage) {
//	    viewer.Draw(img.RGBA())
//	}))
//	...
//	if err := loop.Stop(); err != nil {
//	    log.Printf("capture terminated: %v", err)
//	}
//
// # Lifecycle Ordering
//
// The hardware imposes strict ordering: open before configure,
// configure with transmission off, capture buffers before transmission,
// teardown in reverse. The package encodes these as checked
// preconditions rather than implicit call-order assumptions: a Driver
// refuses to Close while cameras are open, Apply forces transmission
// off before touching registers, and a Session walks
// Idle → CaptureReady → Transmitting and back.
//
// # Fatal Errors and Handle Reuse
//
// Setup errors (open, configure, start) are fatal to the operation and
// force a best-effort release of the device before they propagate. A
// camera that has been through a fatal path reports ErrHandleUnusable
// from every further call and must be reopened from the Driver.
// Teardown errors (StopAcquisition, forced stop inside Close) are
// logged and collected but never prevent teardown from completing.
//
// # Concurrency
//
// Exactly two goroutines may touch a camera: the owning control
// goroutine and the one capture goroutine spawned by CaptureLoop.Start.
// The control side must not configure or tear down while a grab is in
// flight; CaptureLoop.Stop sequences this by joining the capture
// goroutine before returning. Cancellation is cooperative: a grab
// already blocked on hardware dequeue cannot be interrupted, so
// shutdown completes only after the in-flight grab returns. This is a
// known latency bound, not a defect.
//
// # Backends
//
// Real hardware goes through the libdc1394 cgo binding (build tag
// dc1394). Tests and demo runs use the in-memory simulated bus via
// WithSimulatedBus.
package camera
