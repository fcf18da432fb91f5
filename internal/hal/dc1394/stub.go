//go:build !dc1394

package dc1394

import "github.com/y3nr1ng/NLC-Receiver/internal/hal"

// NewBus reports that the binding was not compiled in. Build with
// -tags dc1394 to enable real hardware access.
func NewBus() (hal.Bus, error) {
	return nil, hal.ErrNotSupported
}
