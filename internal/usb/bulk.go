package usb

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/karalabe/usb"
)

// Enumerate lists connected devices matching the vendor ID. Ordering is made
// stable by platform path so repeated scans agree; it is not otherwise
// meaningful.
func Enumerate(vendor uint16) ([]Info, error) {
	infos, err := usb.EnumerateRaw(vendor, 0)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}

	out := make([]Info, 0, len(infos))
	for _, d := range infos {
		out = append(out, Info{
			Path:      d.Path,
			VendorID:  d.VendorID,
			ProductID: d.ProductID,
			Serial:    d.Serial,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Bulk is a Transport over the device's two vendor bulk endpoints. A single
// pump goroutine performs the blocking endpoint reads so that Read can honor
// caller timeouts; the pump exits when the device is closed or removed.
type Bulk struct {
	dev usb.Device

	incoming chan []byte
	quit     chan struct{}
	gone     chan struct{}

	closeOnce sync.Once
	writeMu   sync.Mutex
}

// Open claims the vendor interface of the identified device. The claim is
// exclusive: a second open of the same device fails with ErrBusy. The claim
// is released by Close on every path.
func Open(info Info) (*Bulk, error) {
	raws, err := usb.EnumerateRaw(info.VendorID, info.ProductID)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}

	var match *usb.DeviceInfo
	for i := range raws {
		if raws[i].Path == info.Path {
			match = &raws[i]
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, info.Path)
	}

	dev, err := match.Open()
	if err != nil {
		// The device was present a moment ago, so a failed open almost
		// always means another process holds the interface claim.
		if strings.Contains(strings.ToLower(err.Error()), "busy") ||
			strings.Contains(strings.ToLower(err.Error()), "access") {
			return nil, fmt.Errorf("%w: %v", ErrBusy, err)
		}
		return nil, fmt.Errorf("usb open: %w", err)
	}

	b := &Bulk{
		dev:      dev,
		incoming: make(chan []byte, 16),
		quit:     make(chan struct{}),
		gone:     make(chan struct{}),
	}
	go b.pump()
	return b, nil
}

// pump performs the blocking endpoint reads. Each successful read is handed
// to Read via the incoming channel; any read error marks the device gone.
func (b *Bulk) pump() {
	defer close(b.gone)
	for {
		buf := make([]byte, 4096)
		n, err := b.dev.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		select {
		case b.incoming <- buf[:n]:
		case <-b.quit:
			return
		}
	}
}

// Write sends bytes to the host→device endpoint. karalabe/usb transfers
// synchronously with its own internal timeout, so the caller's window is not
// separately enforced here; a failed write after removal maps to
// ErrDisconnected.
func (b *Bulk) Write(p []byte, _ time.Duration) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	select {
	case <-b.gone:
		return ErrDisconnected
	default:
	}

	if _, err := b.dev.Write(p); err != nil {
		return fmt.Errorf("%w: write: %v", ErrDisconnected, err)
	}
	return nil
}

// Read returns the next chunk from the device→host endpoint. max is advisory:
// an endpoint read larger than max is returned whole, since the codec cursor
// absorbs arbitrary read sizes.
func (b *Bulk) Read(_ int, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case p := <-b.incoming:
		return p, nil
	case <-b.gone:
		// Drain anything the pump handed off before it died.
		select {
		case p := <-b.incoming:
			return p, nil
		default:
		}
		return nil, ErrDisconnected
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (b *Bulk) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.quit)
		err = b.dev.Close()
		<-b.gone
	})
	return err
}
