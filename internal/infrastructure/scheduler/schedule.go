package scheduler

import (
	"fmt"
	"time"
)

// Schedule decides whether a job is due. since is the last trigger, or the scheduler start
// time when the job has not fired yet.
type Schedule interface {
	Due(since, now time.Time) bool
	String() string
}

// Daily fires once per day at a wall-clock time in UTC
type Daily struct {
	Hour   int
	Minute int
}

// DailyAt builds a Daily schedule, validating the clock time
func DailyAt(hour, minute int) (Daily, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Daily{}, fmt.Errorf("%w: daily time %02d:%02d", ErrInvalidConfig, hour, minute)
	}
	return Daily{Hour: hour, Minute: minute}, nil
}

// Due reports whether the most recent slot at or before now lies after since.
// A slot that passed while the scheduler was down is not replayed.
func (d Daily) Due(since, now time.Time) bool {
	now = now.UTC()
	slot := time.Date(now.Year(), now.Month(), now.Day(), d.Hour, d.Minute, 0, 0, time.UTC)
	if now.Before(slot) {
		slot = slot.AddDate(0, 0, -1)
	}
	return since.Before(slot)
}

func (d Daily) String() string {
	return fmt.Sprintf("daily at %02d:%02d UTC", d.Hour, d.Minute)
}

// Every fires at a fixed interval measured from the previous trigger
type Every time.Duration

// Due reports whether a full interval has elapsed
func (e Every) Due(since, now time.Time) bool {
	if e <= 0 {
		return false
	}
	return now.Sub(since) >= time.Duration(e)
}

func (e Every) String() string {
	return "every " + time.Duration(e).String()
}
