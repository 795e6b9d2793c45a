package cycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// periodSchedule fires a fixed duration after the previous start.
// Unlike cron.Every it keeps sub-second precision.
type periodSchedule struct {
	period time.Duration
}

func (p periodSchedule) Next(t time.Time) time.Time { return t.Add(p.period) }

// Every returns a schedule that fires d after each cycle start.
func Every(d time.Duration) cron.Schedule {
	return periodSchedule{period: d}
}

// ParseSchedule accepts a Go duration ("300s", "5m") or a cron spec
// ("@every 5m", "*/5 * * * *").
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("schedule %q: period must be positive", spec)
		}
		return Every(d), nil
	}
	s, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Describe renders a schedule for status output.
func Describe(s cron.Schedule) string {
	switch v := s.(type) {
	case periodSchedule:
		return v.period.String()
	case cron.ConstantDelaySchedule:
		return "@every " + v.Delay.String()
	default:
		return "cron"
	}
}
