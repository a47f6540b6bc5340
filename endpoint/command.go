package endpoint

import (
	"fmt"
	"strings"
	"time"
)

// StartRecordingCommand 定时录制请求体
type StartRecordingCommand struct {
	Duration int64  `json:"duration"`
	TimeUnit string `json:"timeUnit"`
}

// ToDuration 把时长数值和单位换算为time.Duration
// 时长必须为正数，单位必须是已知取值之一
func (c StartRecordingCommand) ToDuration() (time.Duration, error) {
	if c.Duration <= 0 {
		return 0, fmt.Errorf("duration must be positive: %d", c.Duration)
	}
	switch strings.ToLower(c.TimeUnit) {
	case "millis":
		return time.Duration(c.Duration) * time.Millisecond, nil
	case "seconds":
		return time.Duration(c.Duration) * time.Second, nil
	case "minutes":
		return time.Duration(c.Duration) * time.Minute, nil
	case "hours":
		return time.Duration(c.Duration) * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported time unit: %s", c.TimeUnit)
	}
}
