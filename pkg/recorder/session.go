package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seagrayinc/gorec/internal/frame"
	"github.com/seagrayinc/gorec/internal/usb"
)

// ConnectionState describes the current link status.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateDegraded
	StateClosing
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

// Session owns one open device link: the transport, the background reader
// goroutine, sequence-number allocation, and the table of requests awaiting a
// response. All device commands go through its call primitive; the typed
// wrappers live in the cmd_* files.
type Session struct {
	tr    usb.Transport
	log   *slog.Logger
	cfg   config
	model Model

	state atomic.Int32
	seq   atomic.Uint32

	mu       sync.Mutex
	pending  map[uint32]*pendingCall
	transfer *transferRoute

	// Consecutive call timeouts; two in a row degrade the link.
	timeoutStreak atomic.Int32
	wantFlush     atomic.Bool
	reprobing     atomic.Bool

	closed   chan struct{}
	closeErr error
	downOnce sync.Once

	grp     *errgroup.Group
	lifeCtx context.Context
	cancel  context.CancelFunc

	destructiveMu sync.Mutex
	transferMu    sync.Mutex
}

type pendingCall struct {
	command uint16
	ch      chan callResult // capacity 1; completed exactly once
}

type callResult struct {
	f   frame.Frame
	err error
}

type transferRoute struct {
	sequence uint32
	frames   chan frame.Frame
}

func newSession(tr usb.Transport, model Model, cfg config) *Session {
	s := &Session{
		tr:      tr,
		log:     cfg.logger,
		cfg:     cfg,
		model:   model,
		pending: make(map[uint32]*pendingCall),
		closed:  make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))

	ctx, cancel := context.WithCancel(context.Background())
	s.lifeCtx = ctx
	s.cancel = cancel
	s.grp, _ = errgroup.WithContext(ctx)
	s.grp.Go(func() error {
		s.readLoop(ctx)
		return nil
	})
	return s
}

// State reports the current connection state. Collaborators use it for status
// display; it is advisory and may change immediately after the read.
func (s *Session) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

// Model reports the product identity resolved at enumeration time.
func (s *Session) Model() Model {
	return s.model
}

// Close tears the session down: every pending request and in-flight transfer
// completes with ErrCancelled, the reader goroutine is joined, and the
// transport claim is released. Safe to call more than once.
func (s *Session) Close() error {
	if s.state.CompareAndSwap(int32(StateConnected), int32(StateClosing)) ||
		s.state.CompareAndSwap(int32(StateDegraded), int32(StateClosing)) ||
		s.state.CompareAndSwap(int32(StateConnecting), int32(StateClosing)) {
		s.log.Debug("closing session")
	}
	s.teardown(ErrCancelled)
	_ = s.grp.Wait()
	return s.tr.Close()
}

// teardown is the single terminal path: removal, close, and failed recovery
// all funnel here. Runs at most once.
func (s *Session) teardown(cause error) {
	s.downOnce.Do(func() {
		s.closeErr = cause
		s.state.Store(int32(StateDisconnected))
		s.failPending(cause)
		close(s.closed)
		s.cancel()
	})
}

// call sends one framed request and waits for its correlated response. The
// deadline is enforced here, caller-side; the reader goroutine only delivers.
func (s *Session) call(ctx context.Context, command uint16, body []byte, timeout time.Duration) (frame.Frame, error) {
	switch s.State() {
	case StateDisconnected, StateClosing:
		if s.closeErr != nil {
			return frame.Frame{}, s.closeErr
		}
		return frame.Frame{}, ErrDisconnected
	}

	seq := s.seq.Add(1)
	wire, err := frame.Encode(command, seq, body)
	if err != nil {
		return frame.Frame{}, err
	}

	p := &pendingCall{command: command, ch: make(chan callResult, 1)}
	s.mu.Lock()
	s.pending[seq] = p
	s.mu.Unlock()

	if err := s.tr.Write(wire, s.cfg.writeTimeout); err != nil {
		s.unregister(seq)
		if errors.Is(err, usb.ErrDisconnected) {
			s.teardown(ErrDisconnected)
			return frame.Frame{}, ErrDisconnected
		}
		return frame.Frame{}, fmt.Errorf("recorder: write command 0x%04x: %w", command, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-p.ch:
		if r.err == nil {
			s.timeoutStreak.Store(0)
			if r.f.Command != command {
				return frame.Frame{}, fmt.Errorf("recorder: response command 0x%04x for request 0x%04x", r.f.Command, command)
			}
		}
		return r.f, r.err

	case <-timer.C:
		if !s.unregister(seq) {
			// The reader delivered while the timer fired; take the result.
			r := <-p.ch
			return r.f, r.err
		}
		if s.timeoutStreak.Add(1) >= 2 {
			s.wantFlush.Store(true)
		}
		return frame.Frame{}, fmt.Errorf("%w: command 0x%04x after %v", ErrTimeout, command, timeout)

	case <-ctx.Done():
		if !s.unregister(seq) {
			r := <-p.ch
			return r.f, r.err
		}
		return frame.Frame{}, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())

	case <-s.closed:
		if !s.unregister(seq) {
			r := <-p.ch
			return r.f, r.err
		}
		return frame.Frame{}, s.closeErr
	}
}

// unregister removes a pending entry, reporting whether it was still present.
// If not, the reader won the race and a result is in the channel.
func (s *Session) unregister(seq uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[seq]; !ok {
		return false
	}
	delete(s.pending, seq)
	return true
}

func (s *Session) failPending(cause error) {
	s.mu.Lock()
	drained := s.pending
	s.pending = make(map[uint32]*pendingCall)
	s.mu.Unlock()

	for _, p := range drained {
		p.ch <- callResult{err: cause}
	}
}

// readLoop is the only transport reader. It feeds the codec cursor, routes
// complete frames, and handles desync and removal in place.
func (s *Session) readLoop(ctx context.Context) {
	cur := frame.NewCursor()
	for {
		if ctx.Err() != nil {
			return
		}
		if s.wantFlush.CompareAndSwap(true, false) {
			s.degrade(cur, "consecutive request timeouts")
		}

		chunk, err := s.tr.Read(frame.MaxBodySize, s.cfg.readPoll)
		if errors.Is(err, usb.ErrTimeout) {
			continue
		}
		if err != nil {
			s.log.Warn("transport read failed", slog.Any("error", err))
			s.teardown(ErrDisconnected)
			return
		}

		cur.Feed(chunk)
		for {
			f, ok, derr := cur.Next()
			if derr != nil {
				s.log.Warn("stream desynchronized", slog.Any("error", derr))
				s.degrade(cur, "undecodable bytes")
				break
			}
			if !ok {
				break
			}
			s.route(f)
		}
	}
}

// route hands a decoded frame to whoever is waiting on its sequence number:
// a pending call, the active transfer, or nobody (stray frames are dropped).
func (s *Session) route(f frame.Frame) {
	s.mu.Lock()
	if p, ok := s.pending[f.Sequence]; ok {
		delete(s.pending, f.Sequence)
		s.mu.Unlock()
		p.ch <- callResult{f: f}
		return
	}
	if t := s.transfer; t != nil && t.sequence == f.Sequence {
		s.mu.Unlock()
		select {
		case t.frames <- f:
		default:
			// A full buffer means the consumer stopped draining; the
			// transfer will surface a stall rather than block the reader.
			s.log.Warn("transfer backlog full, dropping chunk",
				slog.Int("seq", int(f.Sequence)), slog.Int("len", len(f.Body)))
		}
		return
	}
	s.mu.Unlock()
	s.log.Debug("stray frame dropped",
		slog.Int("command", int(f.Command)), slog.Int("seq", int(f.Sequence)))
}

// degrade flushes the link after desync: pending requests fail with
// ErrDesynced, buffered and unread bytes are discarded, and a liveness
// reprobe decides between recovery and teardown. Runs on the reader
// goroutine; the reprobe round-trip runs off it so the reader can route the
// probe response.
func (s *Session) degrade(cur *frame.Cursor, reason string) {
	switch s.State() {
	case StateDisconnected, StateClosing:
		return
	}
	s.state.Store(int32(StateDegraded))
	s.log.Warn("link degraded, flushing", slog.String("reason", reason))

	s.failPending(ErrDesynced)
	cur.Reset()
	for {
		if _, err := s.tr.Read(frame.MaxBodySize, s.cfg.flushWindow); err != nil {
			break
		}
	}
	s.timeoutStreak.Store(0)

	if s.reprobing.CompareAndSwap(false, true) {
		go s.reprobe()
	}
}

func (s *Session) reprobe() {
	defer s.reprobing.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.probeTimeout)
	defer cancel()
	if _, err := s.DeviceInfo(ctx); err != nil {
		s.log.Error("liveness probe failed after desync", slog.Any("error", err))
		s.teardown(ErrDisconnected)
		return
	}

	s.state.CompareAndSwap(int32(StateDegraded), int32(StateConnected))
	s.log.Info("link recovered")
}
