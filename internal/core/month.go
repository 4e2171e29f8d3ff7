package core

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	yearPattern  = regexp.MustCompile(`^20[1-9][0-9]$`)
	monthPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])$`)
)

var monthNames = map[string]string{
	"01": "January",
	"02": "February",
	"03": "March",
	"04": "April",
	"05": "May",
	"06": "June",
	"07": "July",
	"08": "August",
	"09": "September",
	"10": "October",
	"11": "November",
	"12": "December",
}

// now is swapped out in tests to pin the current month.
var now = time.Now

// MonthToken identifies a calendar month as it appears in request paths:
// a four-digit year and a zero-padded two-digit month.
type MonthToken struct {
	Year  string
	Month string
}

// CurrentMonthToken returns the token for today's month.
func CurrentMonthToken() MonthToken {
	t := now()
	return MonthToken{
		Year:  strconv.Itoa(t.Year()),
		Month: fmt.Sprintf("%02d", int(t.Month())),
	}
}

// TokenForDate returns the month token a date falls in.
func TokenForDate(d Date) MonthToken {
	return MonthToken{
		Year:  strconv.Itoa(d.Year()),
		Month: fmt.Sprintf("%02d", int(d.Month())),
	}
}

// IsValid reports whether the token names a queryable month: year 2010-2099,
// month 01-12, and not strictly after the current calendar month. It returns
// false on any malformed input.
func (t MonthToken) IsValid() bool {
	if !yearPattern.MatchString(t.Year) || !monthPattern.MatchString(t.Month) {
		return false
	}
	year, _ := strconv.Atoi(t.Year)
	month, _ := strconv.Atoi(t.Month)

	today := now()
	if year != today.Year() {
		return year < today.Year()
	}
	return month <= int(today.Month())
}

// IsCurrentMonth reports whether the token equals today's (year, month).
func (t MonthToken) IsCurrentMonth() bool {
	return t == CurrentMonthToken()
}

// Next returns the following month's token. December rolls over to January
// of the next year. No upper bound is enforced here; IsValid bounds tokens
// at the point they are used to query data.
func (t MonthToken) Next() MonthToken {
	if t.Month == "12" {
		year, _ := strconv.Atoi(t.Year)
		return MonthToken{Year: strconv.Itoa(year + 1), Month: "01"}
	}
	month, _ := strconv.Atoi(t.Month)
	return MonthToken{Year: t.Year, Month: fmt.Sprintf("%02d", month+1)}
}

// Prev returns the preceding month's token. January rolls back to December
// of the previous year. No lower bound is enforced.
func (t MonthToken) Prev() MonthToken {
	if t.Month == "01" {
		year, _ := strconv.Atoi(t.Year)
		return MonthToken{Year: strconv.Itoa(year - 1), Month: "12"}
	}
	month, _ := strconv.Atoi(t.Month)
	return MonthToken{Year: t.Year, Month: fmt.Sprintf("%02d", month-1)}
}

// NextPath computes the navigation path for the following month.
func (t MonthToken) NextPath() string {
	return t.Next().Path()
}

// PrevPath computes the navigation path for the preceding month.
func (t MonthToken) PrevPath() string {
	return t.Prev().Path()
}

// Path returns the token's own navigation path.
func (t MonthToken) Path() string {
	return "/" + t.Year + "/" + t.Month
}

// Range returns the half-open date range [first of month, first of next
// month) used for storage queries. Callers must hold a valid token.
func (t MonthToken) Range() (start, end Date) {
	year, _ := strconv.Atoi(t.Year)
	month, _ := strconv.Atoi(t.Month)
	start = NewDate(year, month, 1)
	end = NewDate(year, month+1, 1)
	return start, end
}

// Name returns the full English month name for the token's month.
func (t MonthToken) Name() string {
	return MonthName(t.Month)
}

// MonthName maps a two-digit month code to its full English name.
// Codes outside 01-12 map to the empty string.
func MonthName(month string) string {
	return monthNames[month]
}

// afterCurrentMonth reports whether a date's (year, month) is strictly later
// than today's. Kept separate from date parsing so each is testable alone.
func afterCurrentMonth(d Date) bool {
	today := now()
	if d.Year() != today.Year() {
		return d.Year() > today.Year()
	}
	return d.Month() > today.Month()
}
