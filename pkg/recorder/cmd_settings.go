package recorder

import (
	"context"
	"encoding/binary"
	"fmt"
)

// DeviceSettings mirrors the device's settings block. Writes go through
// SetSettings and take effect only once the device acknowledges them.
type DeviceSettings struct {
	SampleRateHz      uint32
	AutoRecord        bool
	AutoPlay          bool
	BluetoothTone     bool
	NotificationSound bool
}

func (s *Session) GetSettings(ctx context.Context) (DeviceSettings, error) {
	f, err := s.call(ctx, cmdGetSettings, nil, s.cfg.callTimeout)
	if err != nil {
		return DeviceSettings{}, err
	}
	return parseSettings(f.Body)
}

func (s *Session) SetSettings(ctx context.Context, set DeviceSettings) error {
	f, err := s.call(ctx, cmdSetSettings, encodeSettings(set), s.cfg.callTimeout)
	if err != nil {
		return err
	}
	return statusErr(cmdSetSettings, f)
}

func parseSettings(b []byte) (DeviceSettings, error) {
	if len(b) < 8 {
		return DeviceSettings{}, fmt.Errorf("recorder: settings body is %d bytes, want 8", len(b))
	}
	return DeviceSettings{
		SampleRateHz:      binary.LittleEndian.Uint32(b[0:4]),
		AutoRecord:        b[4] != 0,
		AutoPlay:          b[5] != 0,
		BluetoothTone:     b[6] != 0,
		NotificationSound: b[7] != 0,
	}, nil
}

func encodeSettings(set DeviceSettings) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], set.SampleRateHz)
	b[4] = boolByte(set.AutoRecord)
	b[5] = boolByte(set.AutoPlay)
	b[6] = boolByte(set.BluetoothTone)
	b[7] = boolByte(set.NotificationSound)
	return b
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
