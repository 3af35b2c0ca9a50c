// Package recorder implements the host side of the Seagray pocket recorder
// USB protocol: device discovery, the framed command catalog (clock, file
// listing, settings, storage management, schedule push), and chunked file
// download with progress and cancellation. Collaborating layers (GUIs,
// transcription pipelines) consume only this package's typed API.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seagrayinc/gorec/internal/usb"
)

const VendorID uint16 = 0x10D6

const (
	ProductIDH1  uint16 = 0xB00C
	ProductIDH1E uint16 = 0xB00D
	ProductIDP1  uint16 = 0xB00E
)

// Model is the product identity resolved from vendor/product IDs.
type Model int

const (
	ModelUnknown Model = iota
	ModelH1
	ModelH1E
	ModelP1
)

func (m Model) String() string {
	switch m {
	case ModelH1:
		return "H1"
	case ModelH1E:
		return "H1E"
	case ModelP1:
		return "P1"
	default:
		return "unknown"
	}
}

func modelFor(productID uint16) Model {
	switch productID {
	case ProductIDH1:
		return ModelH1
	case ProductIDH1E:
		return ModelH1E
	case ProductIDP1:
		return ModelP1
	default:
		return ModelUnknown
	}
}

// DeviceSummary identifies one connected recorder, valid until it is
// unplugged. Ordering from Enumerate is stable by platform path.
type DeviceSummary struct {
	Path   string
	Model  Model
	Serial string

	info usb.Info
}

// Enumerate scans for connected recorders by vendor ID.
func Enumerate() ([]DeviceSummary, error) {
	infos, err := usb.Enumerate(VendorID)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}

	out := make([]DeviceSummary, 0, len(infos))
	for _, in := range infos {
		out = append(out, DeviceSummary{
			Path:   in.Path,
			Model:  modelFor(in.ProductID),
			Serial: in.Serial,
			info:   in,
		})
	}
	return out, nil
}

type config struct {
	logger *slog.Logger

	callTimeout        time.Duration
	probeTimeout       time.Duration
	destructiveTimeout time.Duration
	writeTimeout       time.Duration

	chunkTimeout    time.Duration
	transferTimeout time.Duration

	readPoll      time.Duration
	flushWindow   time.Duration
	watchInterval time.Duration

	transport usb.Transport // tests inject a pipe here
}

func defaultConfig() config {
	return config{
		logger:             slog.Default(),
		callTimeout:        5 * time.Second,
		probeTimeout:       3 * time.Second,
		destructiveTimeout: 60 * time.Second,
		writeTimeout:       2 * time.Second,
		chunkTimeout:       5 * time.Second,
		transferTimeout:    15 * time.Minute,
		readPoll:           250 * time.Millisecond,
		flushWindow:        50 * time.Millisecond,
		watchInterval:      time.Second,
	}
}

type Option func(*config)

// WithLogger routes session logs to the given logger instead of
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithCallTimeout overrides the default per-command response deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(c *config) { c.callTimeout = d }
}

// WithChunkTimeout overrides the deadline for each transfer data chunk.
func WithChunkTimeout(d time.Duration) Option {
	return func(c *config) { c.chunkTimeout = d }
}

// WithTransferTimeout overrides the whole-transfer deadline.
func WithTransferTimeout(d time.Duration) Option {
	return func(c *config) { c.transferTimeout = d }
}

// withTransport substitutes the bulk transport; used by tests to drive a
// session against a simulated device.
func withTransport(tr usb.Transport) Option {
	return func(c *config) { c.transport = tr }
}

// withConfig gives tests access to the remaining knobs.
func withConfig(f func(*config)) Option {
	return func(c *config) { f(c) }
}

// Connect opens the device's vendor interface, starts the session's reader
// goroutine, and probes the device with GET_DEVICE_INFO to establish
// liveness. The context bounds the connect sequence only, not the session
// lifetime; release the claim with Close.
func Connect(ctx context.Context, dev DeviceSummary, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	tr := cfg.transport
	if tr == nil {
		bulk, err := usb.Open(dev.info)
		if err != nil {
			return nil, &ConnectError{Err: err}
		}
		tr = bulk
	}

	s := newSession(tr, dev.Model, cfg)

	if cfg.transport == nil {
		s.startWatcher(dev.info.VendorID, dev.info.ProductID)
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.probeTimeout)
	defer cancel()
	if _, err := s.DeviceInfo(probeCtx); err != nil {
		_ = s.Close()
		return nil, &ConnectError{Err: err}
	}

	s.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected))
	s.log.Info("device connected", slog.String("model", dev.Model.String()))
	return s, nil
}

// startWatcher begins the presence poll that converts physical removal into
// session teardown.
func (s *Session) startWatcher(vendor, product uint16) {
	s.grp.Go(func() error {
		usb.Watch(s.lifeCtx, vendor, product, s.cfg.watchInterval, s.log, func() {
			s.teardown(ErrDisconnected)
		})
		return nil
	})
}
