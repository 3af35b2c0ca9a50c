package recorder

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"
)

// FileDescriptor describes one recording on the device. Read-only value
// type; a zero CreatedAt means the device did not record a timestamp.
type FileDescriptor struct {
	Name      string
	Size      uint64
	Duration  time.Duration
	CreatedAt time.Time
}

// ListFiles returns the device's recordings in the order the device reports
// them (newest first on current firmware, but callers should not rely on it).
func (s *Session) ListFiles(ctx context.Context) ([]FileDescriptor, error) {
	f, err := s.call(ctx, cmdGetFileList, nil, s.cfg.callTimeout)
	if err != nil {
		return nil, err
	}
	return parseFileList(f.Body)
}

func parseFileList(b []byte) ([]FileDescriptor, error) {
	var files []FileDescriptor
	for len(b) > 0 {
		name, rest, err := takeString(b)
		if err != nil {
			return nil, fmt.Errorf("recorder: file list entry %d: %w", len(files), err)
		}
		if len(rest) < 8+bcdTimeLen {
			return nil, fmt.Errorf("recorder: file list entry %d truncated", len(files))
		}

		size := binary.LittleEndian.Uint32(rest[0:4])
		deciseconds := binary.LittleEndian.Uint32(rest[4:8])
		created, err := decodeBCDTime(rest[8 : 8+bcdTimeLen])
		if err != nil {
			return nil, fmt.Errorf("recorder: file list entry %d: %w", len(files), err)
		}

		files = append(files, FileDescriptor{
			Name:      name,
			Size:      uint64(size),
			Duration:  time.Duration(deciseconds) * 100 * time.Millisecond,
			CreatedAt: created,
		})
		b = rest[8+bcdTimeLen:]
	}
	return files, nil
}

// FileCount returns the number of recordings without transferring the full
// listing.
func (s *Session) FileCount(ctx context.Context) (uint32, error) {
	f, err := s.call(ctx, cmdGetFileCount, nil, s.cfg.callTimeout)
	if err != nil {
		return 0, err
	}
	if len(f.Body) < 4 {
		return 0, fmt.Errorf("recorder: file count body is %d bytes, want 4", len(f.Body))
	}
	return binary.LittleEndian.Uint32(f.Body), nil
}

// DeleteFile removes a recording by name. A missing name is ErrFileNotFound;
// a recording in use (e.g. currently being captured) is ErrDeviceBusy.
func (s *Session) DeleteFile(ctx context.Context, name string) error {
	f, err := s.call(ctx, cmdDeleteFile, appendString(nil, name), s.cfg.callTimeout)
	if err != nil {
		return err
	}
	if len(f.Body) < 1 {
		return fmt.Errorf("recorder: delete: empty status response")
	}
	switch f.Body[0] {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%w: %q", ErrFileNotFound, name)
	case 2:
		return fmt.Errorf("%w: delete %q", ErrDeviceBusy, name)
	default:
		return &DeviceError{Command: cmdDeleteFile, Code: f.Body[0]}
	}
}
