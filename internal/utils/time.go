
package utils

import (
	"time"

	_ "time/tzdata"
)

var jakarta *time.Location

func init() {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		// tzdata is compiled in; a fixed offset only if the name lookup fails.
		loc = time.FixedZone("WIB", 7*3600)
	}
	jakarta = loc
}

// JakartaLoc returns the WIB time zone location.
// The tzdata import keeps behavior consistent even on minimal systems.
func JakartaLoc() *time.Location {
	return jakarta
}

func NowJakarta() time.Time {
	return time.Now().In(jakarta)
}

// StampWIB formats a timestamp like "02 Jan 2006 15:04 WIB".
func StampWIB(t time.Time) string {
	return t.In(jakarta).Format("02 Jan 2006 15:04") + " WIB"
}

// DateKey formats the local date as "2006-01-02".
func DateKey(t time.Time) string {
	return t.In(jakarta).Format("2006-01-02")
}

// ParseHHMM parses "HH:MM" into hour and minute.
func ParseHHMM(hhmm string) (int, int, bool) {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return 0, 0, false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if hhmm[i] < '0' || hhmm[i] > '9' {
			return 0, 0, false
		}
	}
	hh := int(hhmm[0]-'0')*10 + int(hhmm[1]-'0')
	mm := int(hhmm[3]-'0')*10 + int(hhmm[4]-'0')
	if hh > 23 || mm > 59 {
		return 0, 0, false
	}
	return hh, mm, true
}

// StartOfMonth returns midnight on the 1st of t's month, in WIB.
func StartOfMonth(t time.Time) time.Time {
	t = t.In(jakarta)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, jakarta)
}

// StartOfDay returns midnight of t's day, in WIB.
func StartOfDay(t time.Time) time.Time {
	t = t.In(jakarta)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, jakarta)
}
