package archival

import (
	"fmt"
	"math"
	"regexp"
	"time"
)

const day = 24 * time.Hour

var subDayUnits = map[TimeUnit]time.Duration{
	Hours:        time.Hour,
	Minutes:      time.Minute,
	Seconds:      time.Second,
	Milliseconds: time.Millisecond,
	Microseconds: time.Microsecond,
	Nanoseconds:  time.Nanosecond,
}

var daysPerUnit = map[TimeUnit]int64{
	Days:   1,
	Months: 30,
	Years:  365,
}

// ComputeThreshold returns the instant quantity units before now. Rows whose
// age column is strictly before the threshold are eligible.
//
// The result is in UTC. DAYS through NANOSECONDS are exact elapsed time, so a
// day is always 24 hours even across a DST change in now's zone. MONTHS counts
// 30 days and YEARS 365 days, regardless of the calendar. A zero quantity
// yields now.
func ComputeThreshold(now time.Time, quantity int64, unit TimeUnit) (time.Time, error) {
	now = now.UTC()
	if quantity < 0 {
		return time.Time{}, &ValidationError{Field: "quantity", Message: fmt.Sprintf("must not be negative, got %d", quantity)}
	}

	var threshold time.Time
	if perDay, ok := daysPerUnit[unit]; ok {
		if quantity > math.MaxInt64/perDay {
			return time.Time{}, outOfRange(quantity, unit)
		}
		threshold = now.AddDate(0, 0, -int(quantity*perDay))
	} else if d, ok := subDayUnits[unit]; ok {
		// Split into whole days and a remainder so quantity*d never overflows.
		perDay := int64(day / d)
		days, rem := quantity/perDay, quantity%perDay
		threshold = now.AddDate(0, 0, -int(days)).Add(-time.Duration(rem) * d)
	} else {
		return time.Time{}, &UnsupportedTimeUnitError{Unit: unit}
	}

	if quantity > 0 && !threshold.Before(now) {
		return time.Time{}, outOfRange(quantity, unit)
	}
	return threshold, nil
}

func outOfRange(quantity int64, unit TimeUnit) error {
	return &ValidationError{Field: "quantity", Message: fmt.Sprintf("%d %s is out of range", quantity, unit)}
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// maxIdentifierLength is the smallest limit among supported databases (MySQL).
const maxIdentifierLength = 64

// ValidateIdentifier rejects names that are not plain SQL identifiers.
func ValidateIdentifier(name string) error {
	if len(name) > maxIdentifierLength || !identifierPattern.MatchString(name) {
		return &InvalidIdentifierError{Name: name}
	}
	return nil
}
