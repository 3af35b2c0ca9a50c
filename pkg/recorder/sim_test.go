package recorder

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/seagrayinc/gorec/internal/frame"
	"github.com/seagrayinc/gorec/internal/usb"
)

// simDevice emulates a recorder on the far side of a pipe transport. Command
// behavior is a handler table with sensible defaults, so each test overrides
// only what it exercises.
type simDevice struct {
	pipe *usb.Pipe

	mu       sync.Mutex
	handlers map[uint16]simHandler
	silent   map[uint16]bool
}

// simHandler returns the response body for a request; reply is sent on the
// request's sequence number. Handlers needing multi-frame behavior (transfer
// streams) send through d.send directly and return nil, false.
type simHandler func(d *simDevice, seq uint32, body []byte) ([]byte, bool)

func newSimDevice() *simDevice {
	d := &simDevice{
		pipe:     usb.NewPipe(),
		handlers: make(map[uint16]simHandler),
		silent:   make(map[uint16]bool),
	}
	go d.run()
	return d
}

func (d *simDevice) handle(cmd uint16, h simHandler) {
	d.mu.Lock()
	d.handlers[cmd] = h
	d.mu.Unlock()
}

func (d *simDevice) silence(cmd uint16) {
	d.mu.Lock()
	d.silent[cmd] = true
	d.mu.Unlock()
}

func (d *simDevice) run() {
	cur := frame.NewCursor()
	for {
		chunk, ok := d.pipe.DeviceRecv(200 * time.Millisecond)
		if !ok {
			if d.pipe.Closed() {
				return
			}
			continue
		}
		cur.Feed(chunk)
		for {
			f, ok, err := cur.Next()
			if err != nil {
				cur.Reset()
				break
			}
			if !ok {
				break
			}
			d.dispatch(f)
		}
	}
}

func (d *simDevice) dispatch(f frame.Frame) {
	d.mu.Lock()
	quiet := d.silent[f.Command]
	h := d.handlers[f.Command]
	d.mu.Unlock()

	if quiet {
		return
	}
	if h != nil {
		if body, reply := h(d, f.Sequence, f.Body); reply {
			d.send(f.Command, f.Sequence, body)
		}
		return
	}
	d.defaultReply(f)
}

func (d *simDevice) defaultReply(f frame.Frame) {
	switch f.Command {
	case cmdGetDeviceInfo:
		d.send(f.Command, f.Sequence, simInfoBody("1.00", "SG-TEST-0001"))
	case cmdGetDeviceTime:
		d.send(f.Command, f.Sequence, encodeBCDTime(time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)))
	case cmdGetFileCount:
		d.send(f.Command, f.Sequence, binary.LittleEndian.AppendUint32(nil, 0))
	case cmdGetFileList:
		d.send(f.Command, f.Sequence, nil)
	default:
		// Status-style commands succeed by default.
		d.send(f.Command, f.Sequence, []byte{0})
	}
}

func (d *simDevice) send(cmd uint16, seq uint32, body []byte) {
	wire, err := frame.Encode(cmd, seq, body)
	if err != nil {
		panic(err)
	}
	d.pipe.DeviceSend(wire)
}

// sendRaw pushes unframed bytes at the host, used to inject desync garbage.
func (d *simDevice) sendRaw(b []byte) {
	d.pipe.DeviceSend(b)
}

func simInfoBody(version, serial string) []byte {
	b := make([]byte, 20)
	// "1.00" encodes as reserved, major 1, minor 0, patch 0.
	if version == "1.00" {
		b[1] = 1
	} else {
		b[1], b[2], b[3] = 2, 1, 3
	}
	copy(b[4:], serial)
	return b
}

func simFileEntry(fd FileDescriptor) []byte {
	b := appendString(nil, fd.Name)
	b = binary.LittleEndian.AppendUint32(b, uint32(fd.Size))
	b = binary.LittleEndian.AppendUint32(b, uint32(fd.Duration/(100*time.Millisecond)))
	return append(b, encodeBCDTime(fd.CreatedAt)...)
}

// connectSim brings up a Session against the simulated device with timings
// tightened for tests.
func connectSim(t *testing.T, d *simDevice, opts ...Option) *Session {
	t.Helper()

	base := []Option{
		withTransport(d.pipe),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithCallTimeout(500 * time.Millisecond),
		WithChunkTimeout(200 * time.Millisecond),
		withConfig(func(c *config) {
			c.probeTimeout = 500 * time.Millisecond
			c.readPoll = 20 * time.Millisecond
			c.flushWindow = 20 * time.Millisecond
		}),
	}
	s, err := Connect(context.Background(), DeviceSummary{Model: ModelH1E}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
