package recorder

import "sync"

// CancelToken requests cancellation of a long-running operation. Cancel is
// idempotent and safe from any goroutine; the operation honors it at its next
// suspension point (between chunks for transfers), never mid-chunk.
type CancelToken struct {
	once sync.Once
	ch   chan struct{}
}

func NewCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.ch) })
}

// Done is closed once Cancel has been called.
func (t *CancelToken) Done() <-chan struct{} {
	return t.ch
}

// ConfirmToken gates destructive commands. The only way to obtain a valid one
// is Confirm(), so a call site that formats the card or factory-resets the
// device carries its intent in the signature.
type ConfirmToken struct {
	ok bool
}

// Confirm produces the token required by FormatCard and FactoryReset.
func Confirm() ConfirmToken {
	return ConfirmToken{ok: true}
}

// confirmMagic is the wire payload the device requires alongside a
// destructive command.
var confirmMagic = []byte{0x01, 0x02, 0x03, 0x04}
