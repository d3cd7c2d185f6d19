package analytics

import (
	"fmt"
	"time"
)

const (
	minYear          = 1990
	maxYear          = 2100
	maxRelativeMonth = 600
	dateLayout       = "2006-01-02"
)

// TimeRange is a closed set of time filters. The unexported method keeps
// implementations inside this package so type switches stay exhaustive.
type TimeRange interface {
	isTimeRange()
	Valid() bool
	String() string
}

// AllTime means no time filter
type AllTime struct{}

// LastNMonths covers the trailing N months up to now
type LastNMonths struct {
	N uint32
}

// YearRange covers whole calendar years, inclusive
type YearRange struct {
	Start int
	End   int
}

// BetweenDates is an explicit closed date interval
type BetweenDates struct {
	Start time.Time
	End   time.Time
}

func (AllTime) isTimeRange()      {}
func (LastNMonths) isTimeRange()  {}
func (YearRange) isTimeRange()    {}
func (BetweenDates) isTimeRange() {}

func (AllTime) Valid() bool { return true }

func (r LastNMonths) Valid() bool { return r.N > 0 && r.N <= maxRelativeMonth }

func (r YearRange) Valid() bool {
	return r.Start >= minYear && r.End <= maxYear && r.Start <= r.End
}

func (r BetweenDates) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

func (AllTime) String() string { return "all" }

func (r LastNMonths) String() string { return fmt.Sprintf("last_%d_months", r.N) }

func (r YearRange) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("year_%d", r.Start)
	}
	return fmt.Sprintf("years_%d_%d", r.Start, r.End)
}

func (r BetweenDates) String() string {
	return fmt.Sprintf("between_%s_%s", r.Start.Format(dateLayout), r.End.Format(dateLayout))
}

// Bounds returns the first and last calendar day covered by a YearRange
func (r YearRange) Bounds() (time.Time, time.Time) {
	start := time.Date(r.Start, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(r.End, time.December, 31, 0, 0, 0, 0, time.UTC)
	return start, end
}

// ExpectedPoints estimates how many monthly observations a range yields.
// Zero means unbounded.
func ExpectedPoints(tr TimeRange) int {
	switch r := tr.(type) {
	case LastNMonths:
		return int(r.N)
	case YearRange:
		return (r.End - r.Start + 1) * 12
	case BetweenDates:
		months := (r.End.Year()-r.Start.Year())*12 + int(r.End.Month()) - int(r.Start.Month()) + 1
		if months < 1 {
			return 1
		}
		return months
	}
	return 0
}

// TimeRangeView is the wire representation of a TimeRange
type TimeRangeView struct {
	Kind   string `json:"kind"`
	Months uint32 `json:"months,omitempty"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
}

// ViewOf flattens a TimeRange for JSON responses
func ViewOf(tr TimeRange) TimeRangeView {
	switch r := tr.(type) {
	case AllTime:
		return TimeRangeView{Kind: "all"}
	case LastNMonths:
		return TimeRangeView{Kind: "last_n_months", Months: r.N}
	case YearRange:
		return TimeRangeView{Kind: "year", Start: fmt.Sprintf("%d", r.Start), End: fmt.Sprintf("%d", r.End)}
	case BetweenDates:
		return TimeRangeView{Kind: "between_dates", Start: r.Start.Format(dateLayout), End: r.End.Format(dateLayout)}
	}
	return TimeRangeView{Kind: "unknown"}
}
