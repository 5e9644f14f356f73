// Package streak derives streak counters from a habit's completion history.
package streak

import (
	"math"
	"slices"
	"time"

	"github.com/limbo/habitstreak/pkg/entity"
)

// Cached holds the counters previously persisted on the habit. They act as a
// floor: a freshly loaded history may be partial, so the calculation never
// reports less than what was already shown to the user.
type Cached struct {
	CurrentStreak   int
	LongestStreak   int
	LastCompletedAt *time.Time
}

type Input struct {
	Frequency entity.Frequency
	// Civil dates of completed records, any order, duplicates allowed.
	Completions []time.Time
	Cached      Cached
	// Civil date of "today" in the user's calendar.
	Today time.Time
}

// Calculate walks the completion dates from the most recent one backwards.
// Two neighbouring periods chain when they are exactly one period apart
// (1 day for daily habits, 7 days for weekly ones). The run anchored at the
// most recent date is the current streak as long as it is inside the grace
// window: today or yesterday for daily habits, and for weekly ones a latest
// completion at most 7 days before today.
func Calculate(in Input) entity.StreakInfo {
	step := periodLength(in.Frequency)

	seen := make(map[int64]struct{}, len(in.Completions)+1)
	keys := make([]int64, 0, len(in.Completions)+1)
	// Latest completed day before week keying, the grace window is measured from it.
	latest := int64(math.MinInt64)
	add := func(t time.Time) {
		day := dayNumber(t)
		latest = max(latest, day)
		k := periodKey(in.Frequency, day)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for _, c := range in.Completions {
		add(c)
	}
	if in.Cached.LastCompletedAt != nil {
		add(*in.Cached.LastCompletedAt)
	}
	slices.Sort(keys)
	slices.Reverse(keys)

	info := entity.StreakInfo{ChainDates: []time.Time{}}
	current, longest := 0, 0
	if len(keys) > 0 {
		run, head := 1, 1
		headOpen := true
		longest = 1
		for i := 1; i < len(keys); i++ {
			if keys[i-1]-keys[i] == step {
				run++
			} else {
				headOpen = false
				run = 1
			}
			if headOpen {
				head = run
			}
			longest = max(longest, run)
		}

		last := fromDayNumber(latest)
		info.LastCompleted = &last

		if live(in.Frequency, latest, dayNumber(in.Today)) {
			current = head
			for _, k := range keys[:head] {
				info.ChainDates = append(info.ChainDates, fromDayNumber(k))
			}
		}
	}

	current = max(current, in.Cached.CurrentStreak)
	longest = max(longest, in.Cached.LongestStreak, current)
	info.CurrentStreak = current
	info.LongestStreak = longest
	return info
}

// CompletedDates extracts the days the user completed records on. A weekly
// record is keyed by its Monday, the day it was marked on is preferred.
func CompletedDates(records []entity.StreakRecord) []time.Time {
	dates := make([]time.Time, 0, len(records))
	for _, r := range records {
		if !r.UserCompleted {
			continue
		}
		if r.CompletedOn != nil {
			dates = append(dates, *r.CompletedOn)
		} else {
			dates = append(dates, r.Date)
		}
	}
	return dates
}

// CompletedOn reports whether a completed record exists for the period that
// contains date.
func CompletedOn(freq entity.Frequency, records []entity.StreakRecord, date time.Time) bool {
	key := periodKey(freq, dayNumber(date))
	for _, r := range records {
		if r.UserCompleted && periodKey(freq, dayNumber(r.Date)) == key {
			return true
		}
	}
	return false
}

func live(freq entity.Frequency, latest, today int64) bool {
	if freq == entity.FrequencyWeekly {
		return today-latest <= 7
	}
	return today-latest <= 1
}
