package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestListFilesThreeEntries(t *testing.T) {
	want := []FileDescriptor{
		{Name: "REC0003.wav", Size: 480044, Duration: 30 * time.Second,
			CreatedAt: time.Date(2026, 8, 29, 9, 30, 0, 0, time.Local)},
		{Name: "REC0002.wav", Size: 960044, Duration: 60 * time.Second,
			CreatedAt: time.Date(2026, 8, 28, 14, 5, 30, 0, time.Local)},
		{Name: "REC0001.wav", Size: 44, Duration: 100 * time.Millisecond},
	}

	d := newSimDevice()
	d.handle(cmdGetFileList, func(dev *simDevice, seq uint32, body []byte) ([]byte, bool) {
		var out []byte
		for _, fd := range want {
			out = append(out, simFileEntry(fd)...)
		}
		return out, true
	})
	s := connectSim(t, d)

	got, err := s.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("%d files, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("file %d mismatch:\ngot:  %+v\nwant: %+v", i, got[i], want[i])
		}
		if got[i].Size == 0 {
			t.Errorf("file %d has zero size", i)
		}
	}
}

func TestListFilesEmpty(t *testing.T) {
	d := newSimDevice()
	s := connectSim(t, d)

	got, err := s.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty listing, got %d files", len(got))
	}
}

func TestFileCount(t *testing.T) {
	d := newSimDevice()
	d.handle(cmdGetFileCount, func(dev *simDevice, seq uint32, body []byte) ([]byte, bool) {
		return binary.LittleEndian.AppendUint32(nil, 17), true
	})
	s := connectSim(t, d)

	n, err := s.FileCount(context.Background())
	if err != nil {
		t.Fatalf("file count: %v", err)
	}
	if n != 17 {
		t.Fatalf("count %d, want 17", n)
	}
}

func TestDeleteFileStatuses(t *testing.T) {
	d := newSimDevice()
	d.handle(cmdDeleteFile, func(dev *simDevice, seq uint32, body []byte) ([]byte, bool) {
		name, _, err := takeString(body)
		if err != nil {
			return []byte{0xFF}, true
		}
		switch name {
		case "REC0001.wav":
			return []byte{0}, true
		case "held.wav":
			return []byte{2}, true
		default:
			return []byte{1}, true
		}
	})
	s := connectSim(t, d)

	if err := s.DeleteFile(context.Background(), "REC0001.wav"); err != nil {
		t.Fatalf("delete existing: %v", err)
	}
	if err := s.DeleteFile(context.Background(), "ghost.wav"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if err := s.DeleteFile(context.Background(), "held.wav"); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("expected ErrDeviceBusy, got %v", err)
	}
}

func TestClockRoundTrip(t *testing.T) {
	d := newSimDevice()

	var clock time.Time
	d.handle(cmdSetDeviceTime, func(dev *simDevice, seq uint32, body []byte) ([]byte, bool) {
		t2, err := decodeBCDTime(body)
		if err != nil {
			return []byte{1}, true
		}
		clock = t2
		return []byte{0}, true
	})
	d.handle(cmdGetDeviceTime, func(dev *simDevice, seq uint32, body []byte) ([]byte, bool) {
		return encodeBCDTime(clock), true
	})
	s := connectSim(t, d)

	want := time.Date(2026, 8, 30, 23, 59, 58, 0, time.Local)
	if err := s.SetTime(context.Background(), want); err != nil {
		t.Fatalf("set time: %v", err)
	}
	got, err := s.GetTime(context.Background())
	if err != nil {
		t.Fatalf("get time: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("clock %v, want %v", got, want)
	}
}

func TestGetTimeUnsetClock(t *testing.T) {
	d := newSimDevice()
	d.handle(cmdGetDeviceTime, func(dev *simDevice, seq uint32, body []byte) ([]byte, bool) {
		return make([]byte, bcdTimeLen), true
	})
	s := connectSim(t, d)

	got, err := s.GetTime(context.Background())
	if err != nil {
		t.Fatalf("get time: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero time for unset clock, got %v", got)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	d := newSimDevice()

	stored := DeviceSettings{SampleRateHz: 16000, AutoRecord: true, NotificationSound: true}
	d.handle(cmdGetSettings, func(dev *simDevice, seq uint32, body []byte) ([]byte, bool) {
		return encodeSettings(stored), true
	})
	d.handle(cmdSetSettings, func(dev *simDevice, seq uint32, body []byte) ([]byte, bool) {
		got, err := parseSettings(body)
		if err != nil {
			return []byte{1}, true
		}
		stored = got
		return []byte{0}, true
	})
	s := connectSim(t, d)

	got, err := s.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.SampleRateHz != 16000 || !got.AutoRecord || got.AutoPlay {
		t.Fatalf("settings mismatch: %+v", got)
	}

	got.AutoPlay = true
	got.SampleRateHz = 48000
	if err := s.SetSettings(context.Background(), got); err != nil {
		t.Fatalf("set settings: %v", err)
	}
	if stored != got {
		t.Fatalf("device stored %+v, want %+v", stored, got)
	}
}

func TestCardInfo(t *testing.T) {
	d := newSimDevice()
	d.handle(cmdGetCardInfo, func(dev *simDevice, seq uint32, body []byte) ([]byte, bool) {
		out := binary.LittleEndian.AppendUint32(nil, 29696)
		out = binary.LittleEndian.AppendUint32(out, 12001)
		return append(out, byte(FilesystemExFAT)), true
	})
	s := connectSim(t, d)

	info, err := s.CardInfo(context.Background())
	if err != nil {
		t.Fatalf("card info: %v", err)
	}
	want := CardInfo{TotalMiB: 29696, FreeMiB: 12001, Filesystem: FilesystemExFAT}
	if info != want {
		t.Fatalf("card info %+v, want %+v", info, want)
	}
}

func TestDestructiveRequiresConfirm(t *testing.T) {
	d := newSimDevice()
	s := connectSim(t, d)

	if err := s.FormatCard(context.Background(), ConfirmToken{}); !errors.Is(err, errNotConfirmed) {
		t.Fatalf("zero token accepted: %v", err)
	}
	if err := s.FactoryReset(context.Background(), ConfirmToken{}); !errors.Is(err, errNotConfirmed) {
		t.Fatalf("zero token accepted: %v", err)
	}
}

func TestFormatCardSendsConfirmMagic(t *testing.T) {
	d := newSimDevice()
	d.handle(cmdFormatCard, func(dev *simDevice, seq uint32, body []byte) ([]byte, bool) {
		if len(body) != 4 || body[0] != 1 || body[1] != 2 || body[2] != 3 || body[3] != 4 {
			return []byte{0x20}, true
		}
		return []byte{0}, true
	})
	s := connectSim(t, d)

	if err := s.FormatCard(context.Background(), Confirm()); err != nil {
		t.Fatalf("format card: %v", err)
	}
}

func TestFormatCardRefusedDuringTransfer(t *testing.T) {
	d := newSimDevice()
	chunkedFile(d, unevenChunks(2000, []int{1000, 1000}), 100*time.Millisecond, false)
	s := connectSim(t, d)

	h, err := s.DownloadFile(context.Background(),
		FileDescriptor{Name: "REC0009.wav", Size: 2000}, &discardSink{}, nil, nil)
	if err != nil {
		t.Fatalf("start download: %v", err)
	}

	if err := s.FormatCard(context.Background(), Confirm()); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("expected ErrDeviceBusy during transfer, got %v", err)
	}

	if err := h.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}
}

func TestDeviceRejection(t *testing.T) {
	d := newSimDevice()
	d.handle(cmdSendSchedule, func(dev *simDevice, seq uint32, body []byte) ([]byte, bool) {
		return []byte{0x42}, true
	})
	s := connectSim(t, d)

	err := s.SendSchedule(context.Background(), ScheduleInfo{
		Start: time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local),
		End:   time.Date(2026, 9, 1, 11, 0, 0, 0, time.Local),
		Title: "standup",
	})
	var de *DeviceError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if de.Command != cmdSendSchedule || de.Code != 0x42 {
		t.Fatalf("device error %+v", de)
	}
}

func TestSendScheduleValidation(t *testing.T) {
	d := newSimDevice()
	s := connectSim(t, d)

	if err := s.SendSchedule(context.Background(), ScheduleInfo{Title: "no times"}); err == nil {
		t.Fatal("schedule without times accepted")
	}
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local)
	if err := s.SendSchedule(context.Background(), ScheduleInfo{Start: start, End: start, Title: "zero length"}); err == nil {
		t.Fatal("zero-length schedule accepted")
	}
}

type discardSink struct{}

func (discardSink) Write(p []byte) (int, error) { return len(p), nil }
