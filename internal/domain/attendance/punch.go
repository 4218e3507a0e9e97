package attendance

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Punch is a single clock event read from a biometric terminal.
// A zero Timestamp marks a punch whose time could not be parsed.
type Punch struct {
	EmployeeCode   string    `json:"employee_code"`
	Timestamp      time.Time `json:"timestamp"`
	TransactionRef string    `json:"transaction_ref"`
	Department     string    `json:"department,omitempty"`
	Area           string    `json:"area,omitempty"`
}

// Validate reports why a punch cannot be aggregated
func (p Punch) Validate() error {
	switch {
	case strings.TrimSpace(p.EmployeeCode) == "":
		return fmt.Errorf("%w: %w", ErrInvalidPunch, ErrPunchMissingCode)
	case p.Timestamp.IsZero():
		return fmt.Errorf("%w: %w", ErrInvalidPunch, ErrPunchMissingTime)
	case strings.TrimSpace(p.TransactionRef) == "":
		return fmt.Errorf("%w: %w", ErrInvalidPunch, ErrPunchMissingRef)
	}
	return nil
}

// Date returns the calendar date the punch belongs to
func (p Punch) Date() time.Time {
	return DateOf(p.Timestamp)
}

// DroppedPunch is a punch rejected during aggregation
type DroppedPunch struct {
	Punch  Punch
	Reason error
}

// DailyGroup is the aggregated view of one employee's punches on one date
type DailyGroup struct {
	EmployeeCode         string
	Date                 time.Time
	InTime               time.Time
	OutTime              time.Time
	SourceTransactionRef string
	Department           string
	Area                 string
	Punches              []Punch
}

// AggregationResult is the output of Aggregate
type AggregationResult struct {
	Groups  []DailyGroup
	Dropped []DroppedPunch
}

type groupKey struct {
	code string
	date time.Time
}

// Aggregate groups punches by employee code and calendar date.
// Within a group the earliest punch is the in time, the latest is the out time
// and the latest punch's transaction ref identifies the group.
// Invalid punches are returned in Dropped and never stop the batch.
func Aggregate(punches []Punch) AggregationResult {
	result := AggregationResult{}
	buckets := make(map[groupKey][]Punch)
	keys := make([]groupKey, 0)

	for _, p := range punches {
		if err := p.Validate(); err != nil {
			result.Dropped = append(result.Dropped, DroppedPunch{Punch: p, Reason: err})
			continue
		}
		p.EmployeeCode = strings.TrimSpace(p.EmployeeCode)
		k := groupKey{code: p.EmployeeCode, date: p.Date()}
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], p)
	}

	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].date.Equal(keys[j].date) {
			return keys[i].date.Before(keys[j].date)
		}
		return keys[i].code < keys[j].code
	})

	result.Groups = make([]DailyGroup, 0, len(keys))
	for _, k := range keys {
		g, _ := summarize(k.code, k.date, buckets[k])
		result.Groups = append(result.Groups, g)
	}
	return result
}

// summarize folds punches of a single (code, date) group
func summarize(code string, date time.Time, punches []Punch) (DailyGroup, error) {
	if len(punches) == 0 {
		return DailyGroup{}, ErrNoPunches
	}
	sorted := make([]Punch, len(punches))
	copy(sorted, punches)
	SortPunches(sorted)

	first, last := sorted[0], sorted[len(sorted)-1]
	g := DailyGroup{
		EmployeeCode:         code,
		Date:                 date,
		InTime:               first.Timestamp,
		OutTime:              last.Timestamp,
		SourceTransactionRef: last.TransactionRef,
		Punches:              sorted,
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		if g.Department == "" {
			g.Department = sorted[i].Department
		}
		if g.Area == "" {
			g.Area = sorted[i].Area
		}
	}
	return g, nil
}

// SortPunches orders punches chronologically, breaking ties by transaction ref
func SortPunches(punches []Punch) {
	sort.SliceStable(punches, func(i, j int) bool {
		if !punches[i].Timestamp.Equal(punches[j].Timestamp) {
			return punches[i].Timestamp.Before(punches[j].Timestamp)
		}
		return punches[i].TransactionRef < punches[j].TransactionRef
	})
}
