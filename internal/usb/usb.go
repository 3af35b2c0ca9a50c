// Package usb provides raw, protocol-agnostic byte I/O against the recorder's
// vendor bulk interface: enumeration by vendor/product ID, exclusive open with
// guaranteed release, and timed read/write. It knows nothing about framing.
package usb

import (
	"errors"
	"time"
)

var (
	ErrTimeout      = errors.New("usb: operation timed out")
	ErrBusy         = errors.New("usb: device claimed elsewhere")
	ErrNotFound     = errors.New("usb: device not found")
	ErrDisconnected = errors.New("usb: device disconnected")
)

// Info identifies one physically connected device.
type Info struct {
	Path      string
	VendorID  uint16
	ProductID uint16
	Serial    string
}

// Transport is an open byte pipe to a device. Read returns ErrTimeout when no
// data arrives within the given window (non-fatal; callers poll again) and
// ErrDisconnected when the device is gone (fatal). Implementations release
// OS-level claims on Close, on every path.
type Transport interface {
	Write(p []byte, timeout time.Duration) error
	Read(max int, timeout time.Duration) ([]byte, error)
	Close() error
}
