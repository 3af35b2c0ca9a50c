package recorder

import (
	"context"
	"fmt"
	"time"
)

// ScheduleInfo is one upcoming meeting pushed to the device so it can badge
// and auto-start the recording.
type ScheduleInfo struct {
	Start time.Time
	End   time.Time
	Title string
}

// SendSchedule pushes a meeting slot to the device.
func (s *Session) SendSchedule(ctx context.Context, info ScheduleInfo) error {
	if info.Start.IsZero() || info.End.IsZero() {
		return fmt.Errorf("recorder: schedule needs both start and end times")
	}
	if !info.End.After(info.Start) {
		return fmt.Errorf("recorder: schedule end %v not after start %v", info.End, info.Start)
	}

	body := encodeBCDTime(info.Start)
	body = append(body, encodeBCDTime(info.End)...)
	body = appendString(body, info.Title)

	f, err := s.call(ctx, cmdSendSchedule, body, s.cfg.callTimeout)
	if err != nil {
		return err
	}
	return statusErr(cmdSendSchedule, f)
}
