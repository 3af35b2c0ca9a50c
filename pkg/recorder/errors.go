package recorder

import (
	"errors"
	"fmt"
)

// Protocol-level errors surfaced by Session calls.
var (
	ErrTimeout      = errors.New("recorder: request timed out")
	ErrDesynced     = errors.New("recorder: request lost to stream desync")
	ErrCancelled    = errors.New("recorder: cancelled")
	ErrDisconnected = errors.New("recorder: device disconnected")
)

// File command errors.
var (
	ErrFileNotFound = errors.New("recorder: no such file on device")
	ErrDeviceBusy   = errors.New("recorder: device busy")
)

// Transfer engine errors.
var (
	ErrStalledTransfer = errors.New("recorder: transfer stalled")
	ErrShortRead       = errors.New("recorder: device ended stream before declared length")
)

// DeviceError is a nonzero status code returned by the device for a command.
type DeviceError struct {
	Command uint16
	Code    byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("recorder: device rejected command 0x%04x (status 0x%02x)", e.Command, e.Code)
}

// ConnectError wraps failures between enumeration and the first successful
// liveness probe.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("recorder: connect: %v", e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }
