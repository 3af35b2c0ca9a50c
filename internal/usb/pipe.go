package usb

import (
	"sync"
	"time"
)

// Pipe is an in-memory Transport pair used by tests: the host side satisfies
// Transport, and the device side gives a simulated device raw access to both
// directions. No framing knowledge on either side.
type Pipe struct {
	toDevice chan []byte
	toHost   chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func NewPipe() *Pipe {
	return &Pipe{
		toDevice: make(chan []byte, 64),
		toHost:   make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (p *Pipe) Write(b []byte, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.closed:
		return ErrDisconnected
	default:
	}

	out := append([]byte(nil), b...)
	select {
	case p.toDevice <- out:
		return nil
	case <-p.closed:
		return ErrDisconnected
	case <-timer.C:
		return ErrTimeout
	}
}

func (p *Pipe) Read(_ int, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b := <-p.toHost:
		return b, nil
	case <-p.closed:
		// Deliver bytes the device emitted before unplugging.
		select {
		case b := <-p.toHost:
			return b, nil
		default:
		}
		return nil, ErrDisconnected
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (p *Pipe) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

// DeviceRecv returns the next host→device chunk, or false after close or the
// timeout elapses.
func (p *Pipe) DeviceRecv(timeout time.Duration) ([]byte, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b := <-p.toDevice:
		return b, true
	case <-p.closed:
		return nil, false
	case <-timer.C:
		return nil, false
	}
}

// DeviceSend queues bytes for the host to read.
func (p *Pipe) DeviceSend(b []byte) {
	out := append([]byte(nil), b...)
	select {
	case p.toHost <- out:
	case <-p.closed:
	}
}

// Closed reports whether either side has closed or unplugged the pipe.
func (p *Pipe) Closed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// Unplug simulates physical removal: both sides observe ErrDisconnected.
func (p *Pipe) Unplug() {
	p.closeOnce.Do(func() { close(p.closed) })
}
