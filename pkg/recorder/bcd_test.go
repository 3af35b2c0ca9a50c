package recorder

import (
	"testing"
	"time"
)

func TestBCDTimeRoundTrip(t *testing.T) {
	tests := []time.Time{
		time.Date(2026, 8, 30, 0, 0, 0, 0, time.Local),
		time.Date(2026, 12, 31, 23, 59, 59, 0, time.Local),
		time.Date(1999, 1, 1, 1, 2, 3, 0, time.Local),
	}
	for _, want := range tests {
		b := encodeBCDTime(want)
		got, err := decodeBCDTime(b)
		if err != nil {
			t.Fatalf("%v: %v", want, err)
		}
		if !got.Equal(want) {
			t.Fatalf("round trip %v != %v", got, want)
		}
	}
}

func TestBCDTimeZero(t *testing.T) {
	b := encodeBCDTime(time.Time{})
	for _, c := range b {
		if c != 0 {
			t.Fatalf("zero time encoded as %x", b)
		}
	}
	got, err := decodeBCDTime(b)
	if err != nil {
		t.Fatalf("decode zero: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("zero field decoded as %v", got)
	}
}

func TestBCDTimeInvalid(t *testing.T) {
	if _, err := decodeBCDTime([]byte{0x20, 0x26, 0x1A, 0x01, 0x00, 0x00, 0x00}); err == nil {
		t.Fatal("invalid BCD nibble accepted")
	}
	if _, err := decodeBCDTime([]byte{0x20, 0x26, 0x13, 0x01, 0x00, 0x00, 0x00}); err == nil {
		t.Fatal("month 13 accepted")
	}
	if _, err := decodeBCDTime([]byte{0x20}); err == nil {
		t.Fatal("short field accepted")
	}
}

func TestFormatVersionCode(t *testing.T) {
	if got := formatVersionCode([]byte{0, 1, 0, 0}); got != "1.00" {
		t.Fatalf("version %q, want 1.00", got)
	}
	if got := formatVersionCode([]byte{0, 2, 1, 3}); got != "2.13" {
		t.Fatalf("version %q, want 2.13", got)
	}
}
