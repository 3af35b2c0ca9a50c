package recorder

import (
	"fmt"
	"time"
)

// Timestamps cross the wire as 7 packed-BCD bytes: two for the year, then
// month, day, hour, minute, second. An all-zero field means "not set".

const bcdTimeLen = 7

func toBCD(v int) byte {
	return byte(v/10<<4 | v%10)
}

func fromBCD(b byte) (int, error) {
	hi, lo := int(b>>4), int(b&0x0F)
	if hi > 9 || lo > 9 {
		return 0, fmt.Errorf("recorder: invalid BCD byte 0x%02x", b)
	}
	return hi*10 + lo, nil
}

func encodeBCDTime(t time.Time) []byte {
	out := make([]byte, bcdTimeLen)
	if t.IsZero() {
		return out
	}
	out[0] = toBCD(t.Year() / 100)
	out[1] = toBCD(t.Year() % 100)
	out[2] = toBCD(int(t.Month()))
	out[3] = toBCD(t.Day())
	out[4] = toBCD(t.Hour())
	out[5] = toBCD(t.Minute())
	out[6] = toBCD(t.Second())
	return out
}

func decodeBCDTime(b []byte) (time.Time, error) {
	if len(b) < bcdTimeLen {
		return time.Time{}, fmt.Errorf("recorder: timestamp field is %d bytes, want %d", len(b), bcdTimeLen)
	}

	allZero := true
	for _, c := range b[:bcdTimeLen] {
		if c != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return time.Time{}, nil
	}

	var parts [bcdTimeLen]int
	for i := 0; i < bcdTimeLen; i++ {
		v, err := fromBCD(b[i])
		if err != nil {
			return time.Time{}, err
		}
		parts[i] = v
	}

	year := parts[0]*100 + parts[1]
	month := time.Month(parts[2])
	if month < time.January || month > time.December {
		return time.Time{}, fmt.Errorf("recorder: invalid month %d in timestamp", parts[2])
	}
	return time.Date(year, month, parts[3], parts[4], parts[5], parts[6], 0, time.Local), nil
}
