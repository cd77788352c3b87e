package models

import "time"

// CalendarStatus is the lifecycle state shared by sessions and terms.
type CalendarStatus string

const (
	CalendarStatusPending  CalendarStatus = "pending"
	CalendarStatusActive   CalendarStatus = "active"
	CalendarStatusClosed   CalendarStatus = "closed"
	CalendarStatusArchived CalendarStatus = "archived"
)

// CalendarAction names a lifecycle transition.
type CalendarAction string

const (
	CalendarActionActivate CalendarAction = "activate"
	CalendarActionClose    CalendarAction = "close"
	CalendarActionReopen   CalendarAction = "reopen"
	CalendarActionArchive  CalendarAction = "archive"
)

type calendarTransition struct {
	From   CalendarStatus
	To     CalendarStatus
	Action CalendarAction
}

// closed -> active (reopen) is the only backward edge.
var calendarTransitions = []calendarTransition{
	{From: CalendarStatusPending, To: CalendarStatusActive, Action: CalendarActionActivate},
	{From: CalendarStatusActive, To: CalendarStatusActive, Action: CalendarActionActivate},
	{From: CalendarStatusActive, To: CalendarStatusClosed, Action: CalendarActionClose},
	{From: CalendarStatusClosed, To: CalendarStatusActive, Action: CalendarActionReopen},
	{From: CalendarStatusClosed, To: CalendarStatusArchived, Action: CalendarActionArchive},
}

// NextCalendarStatus returns the state reached by applying action in from.
func NextCalendarStatus(from CalendarStatus, action CalendarAction) (CalendarStatus, bool) {
	for _, t := range calendarTransitions {
		if t.From == from && t.Action == action {
			return t.To, true
		}
	}
	return "", false
}

// Valid reports whether s is a known status.
func (s CalendarStatus) Valid() bool {
	switch s {
	case CalendarStatusPending, CalendarStatusActive, CalendarStatusClosed, CalendarStatusArchived:
		return true
	}
	return false
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween counts whole months from start to end, the way a calendar
// diff does: a month only counts once its day-of-month has been reached.
func MonthsBetween(start, end time.Time) int {
	if end.Before(start) {
		return -MonthsBetween(end, start)
	}
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if end.Day() < start.Day() {
		months--
	}
	return months
}

// DateRange is an inclusive span of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SplitIntoThirds divides [start, end] into three consecutive ranges. The
// first two each span floor(MonthsBetween/3) months and the last one absorbs
// the remainder, ending on end. Spans under three whole months are split by
// days instead. It returns false when the span has fewer than three days.
func SplitIntoThirds(start, end time.Time) ([]DateRange, bool) {
	start, end = DateOnly(start), DateOnly(end)
	if end.Before(start) {
		return nil, false
	}

	if step := MonthsBetween(start, end) / 3; step >= 1 {
		first := addMonthsClamped(start, step)
		second := addMonthsClamped(start, 2*step)
		return []DateRange{
			{Start: start, End: first.AddDate(0, 0, -1)},
			{Start: first, End: second.AddDate(0, 0, -1)},
			{Start: second, End: end},
		}, true
	}

	days := int(end.Sub(start).Hours()/24) + 1
	if days < 3 {
		return nil, false
	}
	per := days / 3
	first := start.AddDate(0, 0, per)
	second := start.AddDate(0, 0, 2*per)
	return []DateRange{
		{Start: start, End: first.AddDate(0, 0, -1)},
		{Start: first, End: second.AddDate(0, 0, -1)},
		{Start: second, End: end},
	}, true
}

// addMonthsClamped adds n months, pinning the day to the target month's last
// day instead of rolling into the following month.
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := target.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, 0, 0, 0, 0, time.UTC)
}
