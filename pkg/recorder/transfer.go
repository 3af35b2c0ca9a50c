package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/seagrayinc/gorec/internal/frame"
	"github.com/seagrayinc/gorec/internal/usb"
)

// TransferState is the lifecycle of one download.
type TransferState int32

const (
	TransferPending TransferState = iota
	TransferStreaming
	TransferCompleted
	TransferCancelled
	TransferFailed
)

func (s TransferState) String() string {
	switch s {
	case TransferPending:
		return "pending"
	case TransferStreaming:
		return "streaming"
	case TransferCompleted:
		return "completed"
	case TransferCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// TransferHandle tracks one in-progress download. The caller observes
// progress through the callback passed to DownloadFile and collects the
// terminal result with Join.
type TransferHandle struct {
	file  FileDescriptor
	token *CancelToken

	received atomic.Uint64
	state    atomic.Int32

	done chan struct{}
	err  error // set before done closes
}

func (h *TransferHandle) File() FileDescriptor  { return h.file }
func (h *TransferHandle) BytesReceived() uint64 { return h.received.Load() }
func (h *TransferHandle) State() TransferState  { return TransferState(h.state.Load()) }

// Cancel requests cancellation. Idempotent; a no-op once the transfer has
// reached a terminal state.
func (h *TransferHandle) Cancel() { h.token.Cancel() }

// Join blocks until the transfer reaches a terminal state and returns nil for
// Completed, ErrCancelled for Cancelled, or the failure cause.
func (h *TransferHandle) Join() error {
	<-h.done
	return h.err
}

// ProgressFunc observes download progress after each appended chunk.
type ProgressFunc func(received, total uint64)

// DownloadFile streams the named recording into sink. Data frames arrive on
// the request's sequence number and are appended chunk by chunk, so the whole
// file is never held in memory. One download runs at a time per session.
//
// token may be nil when the caller never cancels. onProgress may be nil.
func (s *Session) DownloadFile(ctx context.Context, file FileDescriptor, sink io.Writer, onProgress ProgressFunc, token *CancelToken) (*TransferHandle, error) {
	switch s.State() {
	case StateDisconnected, StateClosing:
		if s.closeErr != nil {
			return nil, s.closeErr
		}
		return nil, ErrDisconnected
	}
	if token == nil {
		token = NewCancelToken()
	}

	if !s.transferMu.TryLock() {
		return nil, fmt.Errorf("%w: another transfer in progress", ErrDeviceBusy)
	}

	seq := s.seq.Add(1)
	rt := &transferRoute{sequence: seq, frames: make(chan frame.Frame, 64)}

	// The route must exist before the command is written: the first data
	// frame can beat the registration otherwise.
	s.mu.Lock()
	s.transfer = rt
	s.mu.Unlock()

	wire, err := frame.Encode(cmdTransferFile, seq, appendString(nil, file.Name))
	if err != nil {
		s.clearRoute(rt)
		s.transferMu.Unlock()
		return nil, err
	}
	if err := s.tr.Write(wire, s.cfg.writeTimeout); err != nil {
		s.clearRoute(rt)
		s.transferMu.Unlock()
		if errors.Is(err, usb.ErrDisconnected) {
			s.teardown(ErrDisconnected)
			return nil, ErrDisconnected
		}
		return nil, fmt.Errorf("recorder: start transfer: %w", err)
	}

	h := &TransferHandle{file: file, token: token, done: make(chan struct{})}
	h.state.Store(int32(TransferPending))
	go s.runTransfer(ctx, h, rt, sink, onProgress)
	return h, nil
}

// runTransfer is the consuming side of the stream: the reader goroutine
// drops correlated frames into rt.frames, this goroutine appends them to the
// sink. Cancellation is honored between chunks only.
func (s *Session) runTransfer(ctx context.Context, h *TransferHandle, rt *transferRoute, sink io.Writer, onProgress ProgressFunc) {
	h.state.Store(int32(TransferStreaming))
	total := h.file.Size

	finish := func(state TransferState, err error) {
		s.clearRoute(rt)
		h.state.Store(int32(state))
		h.err = err
		close(h.done)
		s.transferMu.Unlock()
		s.log.Debug("transfer finished",
			slog.String("file", h.file.Name),
			slog.String("state", state.String()),
			slog.Uint64("bytes", h.received.Load()))
	}

	deadline := time.NewTimer(s.cfg.transferTimeout)
	defer deadline.Stop()

	chunkTimer := time.NewTimer(s.cfg.chunkTimeout)
	defer chunkTimer.Stop()
	retried := false

	for h.received.Load() < total {
		select {
		case f := <-rt.frames:
			retried = false
			if len(f.Body) == 0 {
				// Device closed the logical stream early.
				finish(TransferFailed, fmt.Errorf("%w: %d of %d bytes", ErrShortRead, h.received.Load(), total))
				return
			}

			body := f.Body
			if over := h.received.Load() + uint64(len(body)); over > total {
				s.log.Warn("device sent more than declared, clipping",
					slog.Uint64("declared", total), slog.Uint64("delivered", over))
				body = body[:total-h.received.Load()]
			}
			if _, err := sink.Write(body); err != nil {
				finish(TransferFailed, fmt.Errorf("recorder: sink: %w", err))
				return
			}
			got := h.received.Add(uint64(len(body)))
			if onProgress != nil {
				onProgress(got, total)
			}

			if !chunkTimer.Stop() {
				select {
				case <-chunkTimer.C:
				default:
				}
			}
			chunkTimer.Reset(s.cfg.chunkTimeout)

		case <-h.token.Done():
			finish(TransferCancelled, ErrCancelled)
			return

		case <-ctx.Done():
			finish(TransferCancelled, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
			return

		case <-s.closed:
			if errors.Is(s.closeErr, ErrCancelled) {
				finish(TransferCancelled, ErrCancelled)
			} else {
				finish(TransferFailed, s.closeErr)
			}
			return

		case <-chunkTimer.C:
			// One grace window before declaring a stall: the wait is
			// retried, the command is never re-issued.
			if retried {
				finish(TransferFailed, fmt.Errorf("%w: no chunk within %v", ErrStalledTransfer, s.cfg.chunkTimeout))
				return
			}
			retried = true
			chunkTimer.Reset(s.cfg.chunkTimeout)

		case <-deadline.C:
			finish(TransferFailed, fmt.Errorf("%w: transfer deadline %v exceeded", ErrStalledTransfer, s.cfg.transferTimeout))
			return
		}
	}

	finish(TransferCompleted, nil)
}

func (s *Session) clearRoute(rt *transferRoute) {
	s.mu.Lock()
	if s.transfer == rt {
		s.transfer = nil
	}
	s.mu.Unlock()
}
