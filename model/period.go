package model

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrPeriodOutOfRange is returned when a period index falls outside the
// range a data source can serve.
var ErrPeriodOutOfRange = errors.New("period out of range")

// Range is the closed interval [First, Last] of servable period indices.
// A range with Last < First is empty.
type Range struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// EmptyRange is a range containing no periods.
var EmptyRange = Range{First: 0, Last: -1}

// RangeOf returns the range covering n periods starting at index 0.
func RangeOf(n int) Range {
	if n <= 0 {
		return EmptyRange
	}
	return Range{First: 0, Last: n - 1}
}

// Empty reports whether the range holds no periods.
func (r Range) Empty() bool { return r.Last < r.First }

// Len returns the number of periods in the range.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return r.Last - r.First + 1
}

// Contains reports whether period lies within the range.
func (r Range) Contains(period int) bool {
	return !r.Empty() && period >= r.First && period <= r.Last
}

// Check returns an ErrPeriodOutOfRange-marked error when period is outside r.
func (r Range) Check(period int) error {
	if r.Contains(period) {
		return nil
	}
	return errors.Mark(errors.Newf("period %d outside %s", period, r), ErrPeriodOutOfRange)
}

func (r Range) String() string {
	if r.Empty() {
		return "[]"
	}
	return fmt.Sprintf("[%d, %d]", r.First, r.Last)
}
