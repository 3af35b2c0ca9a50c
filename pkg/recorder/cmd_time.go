package recorder

import (
	"context"
	"time"
)

// GetTime reads the device clock. A zero return with nil error means the
// clock has never been set.
func (s *Session) GetTime(ctx context.Context) (time.Time, error) {
	f, err := s.call(ctx, cmdGetDeviceTime, nil, s.cfg.callTimeout)
	if err != nil {
		return time.Time{}, err
	}
	return decodeBCDTime(f.Body)
}

// SetTime writes the device clock. The update is not assumed effective until
// the device acknowledges it.
func (s *Session) SetTime(ctx context.Context, t time.Time) error {
	f, err := s.call(ctx, cmdSetDeviceTime, encodeBCDTime(t), s.cfg.callTimeout)
	if err != nil {
		return err
	}
	return statusErr(cmdSetDeviceTime, f)
}
