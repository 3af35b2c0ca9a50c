package recorder

import (
	"bytes"
	"context"
	"fmt"
)

// DeviceInfo is the identity block every session starts with: it doubles as
// the liveness probe during connect and desync recovery.
type DeviceInfo struct {
	Model           Model
	FirmwareVersion string
	Serial          string
}

// DeviceInfo fetches the device identity. Model comes from enumeration
// (vendor/product IDs), not from the response body.
func (s *Session) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	f, err := s.call(ctx, cmdGetDeviceInfo, nil, s.cfg.callTimeout)
	if err != nil {
		return DeviceInfo{}, err
	}
	return parseDeviceInfo(s.model, f.Body)
}

func parseDeviceInfo(model Model, b []byte) (DeviceInfo, error) {
	if len(b) < 20 {
		return DeviceInfo{}, fmt.Errorf("recorder: device info body is %d bytes, want 20", len(b))
	}
	return DeviceInfo{
		Model:           model,
		FirmwareVersion: formatVersionCode(b[:4]),
		Serial:          string(bytes.TrimRight(b[4:20], "\x00")),
	}, nil
}

// formatVersionCode renders the 4-byte firmware version code the way the
// vendor tools print it: major, then minor and patch as one two-digit field
// (code 00 01 00 00 reads "1.00"). Byte 0 is reserved.
func formatVersionCode(b []byte) string {
	return fmt.Sprintf("%d.%d%d", b[1], b[2], b[3])
}
