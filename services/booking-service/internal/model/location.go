package model

import (
	"fmt"
	"time"
)

type Location struct {
	ID        string
	OwnerID   string
	Name      string
	Address   string
	Phone     string
	CreatedAt time.Time
}

type Service struct {
	ID              string
	LocationID      string
	Name            string
	DurationMinutes int
	Price           string
	Description     string
	CreatedAt       time.Time
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// WeeklyScheduleEntry holds one weekday's hours for a location. Weekday follows
// time.Weekday (0 = Sunday). Open and close are minutes after midnight.
type WeeklyScheduleEntry struct {
	LocationID  string
	Weekday     time.Weekday
	OpenMinute  int
	CloseMinute int
	IsClosed    bool
}

// DefaultWeeklySchedule is seeded for new locations: 09:00-20:00, closed on Sunday.
func DefaultWeeklySchedule(locationID string) []WeeklyScheduleEntry {
	out := make([]WeeklyScheduleEntry, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		e := WeeklyScheduleEntry{LocationID: locationID, Weekday: wd, OpenMinute: 9 * 60, CloseMinute: 20 * 60}
		if wd == time.Sunday {
			e = WeeklyScheduleEntry{LocationID: locationID, Weekday: wd, IsClosed: true}
		}
		out = append(out, e)
	}
	return out
}

func (e WeeklyScheduleEntry) Validate() error {
	if e.Weekday < time.Sunday || e.Weekday > time.Saturday {
		return fmt.Errorf("weekday must be between 0 and 6")
	}
	if e.IsClosed {
		return nil
	}
	if e.OpenMinute < 0 || e.OpenMinute >= 1440 || e.CloseMinute <= 0 || e.CloseMinute > 1440 || e.OpenMinute >= e.CloseMinute {
		return fmt.Errorf("invalid open_minute/close_minute")
	}
	return nil
}

// FormatClock renders minutes after midnight as HH:MM. 1440 renders as 24:00.
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseClock parses HH:MM into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
