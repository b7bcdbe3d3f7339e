// Package services provides business logic and orchestration services.
//
// This file implements the collection scheduler. Each frequency has its own
// strategy that computes the next due date from an anchor date.

package services

import (
	"fmt"
	"sort"
	"time"

	"paluwagan/internal/core"
)

// Advancer is the strategy interface for moving a due date one period ahead.
type Advancer interface {
	Next(anchor time.Time) time.Time
}

// WeeklyAdvancer adds 7 calendar days.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Next(anchor time.Time) time.Time {
	return anchor.AddDate(0, 0, 7)
}

// BiweeklyAdvancer adds 14 calendar days.
type BiweeklyAdvancer struct{}

func (BiweeklyAdvancer) Next(anchor time.Time) time.Time {
	return anchor.AddDate(0, 0, 14)
}

// MonthlyAdvancer adds one calendar month, keeping the day of month when the
// target month has it and clamping to the month's last day otherwise.
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Next(anchor time.Time) time.Time {
	y, m, d := anchor.Date()
	target := time.Date(y, m+1, 1, 0, 0, 0, 0, anchor.Location())
	lastDay := time.Date(target.Year(), target.Month()+1, 0, 0, 0, 0, 0, anchor.Location()).Day()
	if d > lastDay {
		d = lastDay
	}
	hh, mm, ss := anchor.Clock()
	return time.Date(target.Year(), target.Month(), d, hh, mm, ss, anchor.Nanosecond(), anchor.Location())
}

// UnknownFrequencyPolicy decides what the scheduler does with a frequency it
// has no strategy for.
type UnknownFrequencyPolicy string

const (
	// KeepAnchor returns the anchor unchanged.
	KeepAnchor UnknownFrequencyPolicy = "keep"
	// RejectUnknown returns core.ErrUnknownFrequency.
	RejectUnknown UnknownFrequencyPolicy = "error"
)

func (p UnknownFrequencyPolicy) IsValid() bool {
	return p == KeepAnchor || p == RejectUnknown
}

// Scheduler maps frequencies to their advancers.
type Scheduler struct {
	policy     UnknownFrequencyPolicy
	strategies map[core.Frequency]Advancer
}

// NewScheduler returns a scheduler with the weekly, biweekly and monthly
// strategies registered. An empty or invalid policy falls back to KeepAnchor.
func NewScheduler(policy UnknownFrequencyPolicy) *Scheduler {
	if !policy.IsValid() {
		policy = KeepAnchor
	}
	return &Scheduler{
		policy: policy,
		strategies: map[core.Frequency]Advancer{
			core.Weekly:   WeeklyAdvancer{},
			core.Biweekly: BiweeklyAdvancer{},
			core.Monthly:  MonthlyAdvancer{},
		},
	}
}

// Register adds or replaces the strategy for a frequency. It is not safe to
// call concurrently with NextDate.
func (s *Scheduler) Register(frequency core.Frequency, a Advancer) {
	s.strategies[frequency] = a
}

func (s *Scheduler) Policy() UnknownFrequencyPolicy { return s.policy }

// Frequencies lists the registered frequencies in name order.
func (s *Scheduler) Frequencies() []core.Frequency {
	out := make([]core.Frequency, 0, len(s.strategies))
	for f := range s.strategies {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NextDate returns the next collection date after anchor.
func (s *Scheduler) NextDate(frequency core.Frequency, anchor time.Time) (time.Time, error) {
	a, ok := s.strategies[frequency]
	if !ok {
		if s.policy == RejectUnknown {
			return anchor, fmt.Errorf("%w: %q", core.ErrUnknownFrequency, frequency)
		}
		return anchor, nil
	}
	return a.Next(anchor), nil
}

// DueDates returns the first n due dates of a rotation starting at start.
// Each date is derived from the previous one.
func (s *Scheduler) DueDates(frequency core.Frequency, start time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]time.Time, 0, n)
	cur := start
	out = append(out, cur)
	for len(out) < n {
		next, err := s.NextDate(frequency, cur)
		if err != nil {
			return nil, err
		}
		if !next.After(cur) {
			// an unknown frequency under KeepAnchor cannot produce a schedule
			return out, nil
		}
		out = append(out, next)
		cur = next
	}
	return out, nil
}

// NextDate applies the default scheduler.
func NextDate(frequency core.Frequency, anchor time.Time) time.Time {
	t, _ := defaultScheduler.NextDate(frequency, anchor)
	return t
}

var defaultScheduler = NewScheduler(KeepAnchor)
