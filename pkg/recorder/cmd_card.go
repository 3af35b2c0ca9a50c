package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

// Filesystem identifies the storage card's format.
type Filesystem byte

const (
	FilesystemUnknown Filesystem = 0
	FilesystemFAT32   Filesystem = 1
	FilesystemExFAT   Filesystem = 2
)

func (fs Filesystem) String() string {
	switch fs {
	case FilesystemFAT32:
		return "FAT32"
	case FilesystemExFAT:
		return "exFAT"
	default:
		return "unknown"
	}
}

// CardInfo reports storage capacity and format.
type CardInfo struct {
	TotalMiB   uint32
	FreeMiB    uint32
	Filesystem Filesystem
}

func (s *Session) CardInfo(ctx context.Context) (CardInfo, error) {
	f, err := s.call(ctx, cmdGetCardInfo, nil, s.cfg.callTimeout)
	if err != nil {
		return CardInfo{}, err
	}
	if len(f.Body) < 9 {
		return CardInfo{}, fmt.Errorf("recorder: card info body is %d bytes, want 9", len(f.Body))
	}
	return CardInfo{
		TotalMiB:   binary.LittleEndian.Uint32(f.Body[0:4]),
		FreeMiB:    binary.LittleEndian.Uint32(f.Body[4:8]),
		Filesystem: Filesystem(f.Body[8]),
	}, nil
}

// FormatCard erases the storage card. The ConfirmToken must come from
// Confirm(); the command refuses to run while a download is streaming and
// serializes against FactoryReset.
func (s *Session) FormatCard(ctx context.Context, confirm ConfirmToken) error {
	return s.destructive(ctx, cmdFormatCard, confirm)
}

// FactoryReset restores the device to factory defaults, erasing settings and
// recordings. Same confirmation and serialization rules as FormatCard.
func (s *Session) FactoryReset(ctx context.Context, confirm ConfirmToken) error {
	return s.destructive(ctx, cmdFactoryReset, confirm)
}

var errNotConfirmed = errors.New("recorder: destructive command requires Confirm()")

func (s *Session) destructive(ctx context.Context, command uint16, confirm ConfirmToken) error {
	if !confirm.ok {
		return errNotConfirmed
	}

	s.destructiveMu.Lock()
	defer s.destructiveMu.Unlock()

	// An in-flight download would race the erase on the device side.
	if !s.transferMu.TryLock() {
		return fmt.Errorf("%w: transfer in progress", ErrDeviceBusy)
	}
	defer s.transferMu.Unlock()

	f, err := s.call(ctx, command, confirmMagic, s.cfg.destructiveTimeout)
	if err != nil {
		return err
	}
	return statusErr(command, f)
}
