package availability

import (
	"time"

	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/model"
)

// DefaultStep is the distance between consecutive candidate starts.
const DefaultStep = 30 * time.Minute

type Interval struct {
	Start time.Time
	End   time.Time
}

type Slot struct {
	Start time.Time
	End   time.Time
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration would not overlap any of the busy intervals and would start after now.
//
// All times are expected to be in the same location (timezone).
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		// A slot starting exactly now is already gone.
		if !t.After(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

// ComputeSlots tiles one day's opening hours with candidate windows of the given
// duration, stepping by step, and drops candidates that collide with a blocking
// reservation or do not start after now. A nil or closed entry yields no slots.
//
// Each reservation occupies its own [StartMinute, EndMinute) window; the duration
// being requested plays no part in that.
//
// The cutoff is the instant now, not the calendar day: on today only elapsed
// starts drop out, and a date before today yields no slots at all rather than the
// full day of hours.
func ComputeSlots(entry *model.WeeklyScheduleEntry, date time.Time, duration, step time.Duration, reservations []model.Reservation, now time.Time) []Slot {
	if entry == nil || entry.IsClosed {
		return nil
	}
	if entry.Weekday != date.Weekday() {
		return nil
	}

	open := AtMinute(date, entry.OpenMinute)
	closeAt := AtMinute(date, entry.CloseMinute)
	busy := BlockingIntervals(date, reservations)

	starts := AvailableSlots(open, closeAt, duration, step, busy, now)
	if len(starts) == 0 {
		return nil
	}
	out := make([]Slot, 0, len(starts))
	for _, s := range starts {
		out = append(out, Slot{Start: s, End: s.Add(duration)})
	}
	return out
}

// BlockingIntervals converts the reservations on date that still hold their window
// into absolute intervals. Reservations for other days and non-blocking statuses are skipped.
func BlockingIntervals(date time.Time, reservations []model.Reservation) []Interval {
	busy := make([]Interval, 0, len(reservations))
	for _, r := range reservations {
		if !r.Status.Blocking() {
			continue
		}
		if !r.Date.IsZero() && !SameDay(r.Date, date) {
			continue
		}
		if r.EndMinute <= r.StartMinute {
			continue
		}
		busy = append(busy, Interval{Start: AtMinute(date, r.StartMinute), End: AtMinute(date, r.EndMinute)})
	}
	return busy
}

// AtMinute combines the calendar day of date with a minute-of-day in date's location.
// Minute 1440 is midnight at the end of the day.
func AtMinute(date time.Time, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minute/60, minute%60, 0, 0, date.Location())
}

// SameDay compares calendar dates, ignoring the clock and the location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
