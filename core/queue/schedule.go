package queue

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule computes when a periodic job should next run.
type Schedule interface {
	// Next returns the first fire time strictly after the given time.
	Next(after time.Time) time.Time
	String() string
}

// Every returns a fixed-interval schedule.
func Every(d time.Duration) Schedule {
	return intervalSchedule{interval: d}
}

type intervalSchedule struct {
	interval time.Duration
}

func (s intervalSchedule) Next(after time.Time) time.Time {
	return after.Add(s.interval)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %s", s.interval)
}

// DailyAt returns a schedule that fires once a day at the given local time.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(after time.Time) time.Time {
	next := time.Date(after.Year(), after.Month(), after.Day(), s.hour, s.minute, 0, 0, after.Location())
	if !next.After(after) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

// Cron returns a schedule driven by a standard 5-field cron expression,
// used for recurring broadcast campaigns authored by operators.
func Cron(expr string) (Schedule, error) {
	parsed, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return cronSchedule{expr: expr, schedule: parsed}, nil
}

type cronSchedule struct {
	expr     string
	schedule cron.Schedule
}

func (s cronSchedule) Next(after time.Time) time.Time {
	return s.schedule.Next(after)
}

func (s cronSchedule) String() string {
	return fmt.Sprintf("cron %q", s.expr)
}
