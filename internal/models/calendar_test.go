package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextCalendarStatus(t *testing.T) {
	cases := []struct {
		from   CalendarStatus
		action CalendarAction
		want   CalendarStatus
		ok     bool
	}{
		{CalendarStatusPending, CalendarActionActivate, CalendarStatusActive, true},
		{CalendarStatusActive, CalendarActionActivate, CalendarStatusActive, true},
		{CalendarStatusActive, CalendarActionClose, CalendarStatusClosed, true},
		{CalendarStatusClosed, CalendarActionReopen, CalendarStatusActive, true},
		{CalendarStatusClosed, CalendarActionArchive, CalendarStatusArchived, true},
		{CalendarStatusPending, CalendarActionClose, "", false},
		{CalendarStatusClosed, CalendarActionActivate, "", false},
		{CalendarStatusArchived, CalendarActionReopen, "", false},
		{CalendarStatusActive, CalendarActionReopen, "", false},
	}
	for _, tc := range cases {
		got, ok := NextCalendarStatus(tc.from, tc.action)
		assert.Equal(t, tc.ok, ok, "%s --%s-->", tc.from, tc.action)
		assert.Equal(t, tc.want, got)
	}
}

func TestMonthsBetween(t *testing.T) {
	assert.Equal(t, 10, MonthsBetween(date(2025, 9, 1), date(2026, 7, 31)))
	assert.Equal(t, 11, MonthsBetween(date(2025, 9, 1), date(2026, 8, 1)))
	assert.Equal(t, 0, MonthsBetween(date(2025, 1, 31), date(2025, 2, 28)))
	assert.Equal(t, -2, MonthsBetween(date(2025, 3, 1), date(2025, 1, 1)))
}

func TestSessionContains(t *testing.T) {
	s := &AcademicSession{StartDate: date(2025, 9, 1), EndDate: date(2026, 7, 31)}
	assert.True(t, s.Contains(date(2025, 9, 1), date(2026, 7, 31)))
	assert.False(t, s.Contains(date(2025, 8, 31), date(2025, 12, 1)))
	assert.False(t, s.Contains(date(2026, 1, 1), date(2026, 8, 1)))
	assert.False(t, s.Contains(date(2026, 1, 2), date(2026, 1, 1)))
}

func TestValidIDPattern(t *testing.T) {
	assert.True(t, ValidIDPattern(DefaultIDPattern))
	assert.True(t, ValidIDPattern("{SCHOOL}/{YEAR}/{SEQUENCE}"))
	assert.True(t, ValidIDPattern("ST{UNKNOWN}{SEQUENCE}"))
	assert.False(t, ValidIDPattern("{PREFIX}-{YEAR}"))
	assert.False(t, ValidIDPattern("{ PREFIX }-{SEQUENCE}"))
	assert.False(t, ValidIDPattern("ID {SEQUENCE}"))
	assert.False(t, ValidIDPattern(""))
}

func TestLookupIDType(t *testing.T) {
	def, ok := LookupIDType(" Student ")
	assert.True(t, ok)
	assert.Equal(t, "STU", def.Prefix)

	_, ok = LookupIDType("spaceship")
	assert.False(t, ok)
	assert.Equal(t, []IDType{IDTypeAdmission, IDTypeInvoice, IDTypeReceipt, IDTypeStaff, IDTypeStudent}, IDTypes())
}

func TestSplitIntoThirdsTenMonthSession(t *testing.T) {
	ranges, ok := SplitIntoThirds(date(2025, 9, 1), date(2026, 7, 31))
	assert.True(t, ok)
	assert.Equal(t, []DateRange{
		{Start: date(2025, 9, 1), End: date(2025, 11, 30)},
		{Start: date(2025, 12, 1), End: date(2026, 2, 28)},
		{Start: date(2026, 3, 1), End: date(2026, 7, 31)},
	}, ranges)
}

func TestSplitIntoThirdsClampsMonthEnd(t *testing.T) {
	ranges, ok := SplitIntoThirds(date(2025, 8, 31), date(2026, 6, 30))
	assert.True(t, ok)
	assert.Equal(t, date(2025, 11, 30), ranges[1].Start)
	assert.Equal(t, date(2026, 2, 28), ranges[2].Start)
	assert.Equal(t, date(2026, 6, 30), ranges[2].End)
}

func TestSplitIntoThirdsShortSpanUsesDays(t *testing.T) {
	ranges, ok := SplitIntoThirds(date(2025, 1, 1), date(2025, 1, 10))
	assert.True(t, ok)
	assert.Equal(t, date(2025, 1, 3), ranges[0].End)
	assert.Equal(t, date(2025, 1, 4), ranges[1].Start)
	assert.Equal(t, date(2025, 1, 7), ranges[2].Start)
	assert.Equal(t, date(2025, 1, 10), ranges[2].End)

	_, ok = SplitIntoThirds(date(2025, 1, 1), date(2025, 1, 2))
	assert.False(t, ok)
}
