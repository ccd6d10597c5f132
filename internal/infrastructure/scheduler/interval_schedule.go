package scheduler

import (
	"fmt"
	"time"
)

// MinInterval is the shortest accepted interval.
const MinInterval = time.Second

// IntervalSchedule runs a job a fixed time after the previous start.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every returns an IntervalSchedule, raising d to MinInterval.
func Every(d time.Duration) *IntervalSchedule {
	if d < MinInterval {
		d = MinInterval
	}
	return &IntervalSchedule{Interval: d}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
