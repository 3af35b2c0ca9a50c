package recorder

import (
	"encoding/binary"
	"fmt"

	"github.com/seagrayinc/gorec/internal/frame"
)

// The documented command set. Identifiers outside this table have no defined
// behavior and are never probed.
const (
	cmdGetDeviceInfo uint16 = 0x0001
	cmdGetDeviceTime uint16 = 0x0002
	cmdSetDeviceTime uint16 = 0x0003
	cmdGetFileList   uint16 = 0x0004
	cmdTransferFile  uint16 = 0x0005
	cmdGetFileCount  uint16 = 0x0006
	cmdDeleteFile    uint16 = 0x0007
	cmdGetSettings   uint16 = 0x000B
	cmdSetSettings   uint16 = 0x000C
	cmdGetCardInfo   uint16 = 0x0010
	cmdFormatCard    uint16 = 0x0011
	cmdFactoryReset  uint16 = 0x0013
	cmdSendSchedule  uint16 = 0x0014
)

// statusErr maps a one-byte status response: zero is success, anything else
// is a device rejection.
func statusErr(command uint16, f frame.Frame) error {
	if len(f.Body) < 1 {
		return fmt.Errorf("recorder: command 0x%04x: empty status response", command)
	}
	if f.Body[0] != 0 {
		return &DeviceError{Command: command, Code: f.Body[0]}
	}
	return nil
}

// appendString writes the wire form of a string: u16 length then bytes.
func appendString(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(len(s)))
	return append(b, s...)
}

// takeString reads a u16-length-prefixed string and returns the remainder.
func takeString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, fmt.Errorf("recorder: short string header")
	}
	n := int(binary.LittleEndian.Uint16(b))
	if len(b) < 2+n {
		return "", nil, fmt.Errorf("recorder: string length %d exceeds body", n)
	}
	return string(b[2 : 2+n]), b[2+n:], nil
}
