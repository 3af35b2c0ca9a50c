package usb

import (
	"context"
	"log/slog"
	"time"

	usbhid "rafaelmartins.com/p/usbhid"
)

// The recorders are composite devices: the audio and button (HID) interfaces
// sit next to the vendor bulk interface we claim. Enumerating the HID side
// never touches our claim, which makes it a cheap presence probe.

// Watch polls for the vendor's HID interface and invokes gone once when the
// device stops appearing for two consecutive polls (one miss can be a transient
// enumeration hiccup on some hosts). It returns when the context is done or
// after reporting removal. Enumeration errors are logged and treated as a
// miss, never as fatal.
func Watch(ctx context.Context, vendor, product uint16, interval time.Duration, log *slog.Logger, gone func()) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	misses := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		present, err := hidPresent(vendor, product)
		if err != nil {
			log.Debug("presence poll failed", slog.Any("error", err))
		}
		if present {
			misses = 0
			continue
		}

		misses++
		if misses >= 2 {
			log.Info("device removed",
				slog.Int("vendor", int(vendor)), slog.Int("product", int(product)))
			gone()
			return
		}
	}
}

func hidPresent(vendor, product uint16) (bool, error) {
	devs, err := usbhid.Enumerate(func(d *usbhid.Device) bool {
		return d.VendorId() == vendor && d.ProductId() == product
	})
	if err != nil {
		return false, err
	}
	return len(devs) > 0, nil
}
