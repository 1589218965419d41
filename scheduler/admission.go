package scheduler

import (
	"sort"
	"time"

	"golang.org/x/exp/slices"
)

// admissionWindow is a sliding-window event counter scoped to exactly one
// caller (a single scheduler's session-init admission), in contrast to a
// general-purpose multi-category rate limiter: there is only ever one
// window per SessionValidator, so events are kept as a plain
// monotonically-growing slice of unix-nano timestamps rather than a
// generic ring buffer supporting arbitrary-index insertion. Timestamps
// only ever arrive in non-decreasing order (recordAndCheck is called
// under the validator's own single-threaded scheduler loop), so a
// binary search against the tail is enough to both classify and trim.
type admissionWindow struct {
	rates     map[time.Duration]int
	retention time.Duration
	events    []int64
}

// newAdmissionWindow validates rates and computes the retention horizon:
// the longest configured duration, beyond which an event can never again
// affect any rate's count and is safe to discard. Panics on an invalid
// or empty rate map, mirroring the construction-time validation used
// throughout this package for misconfiguration that can only be a
// programming error.
func newAdmissionWindow(rates map[time.Duration]int) *admissionWindow {
	retention, ok := validateRates(rates)
	if !ok {
		panic("scheduler: admission window: invalid rates")
	}
	return &admissionWindow{rates: rates, retention: retention}
}

// validateRates checks that every (duration, count) pair is positive and
// that, going from shorter to longer windows, the absolute count strictly
// grows while the effective rate (count per duration) strictly falls, so
// each shorter window allows a burst above the longer windows' sustained
// rate without exceeding their totals. It returns the longest duration
// as the retention horizon. A rate map violating these constraints is a
// configuration error, not a runtime condition to recover from.
func validateRates(rates map[time.Duration]int) (time.Duration, bool) {
	if len(rates) == 0 {
		return 0, false
	}

	durations := make([]time.Duration, 0, len(rates))
	for d := range rates {
		durations = append(durations, d)
	}
	slices.Sort(durations)

	for i, d := range durations {
		count := rates[d]
		if count <= 0 || d <= 0 {
			return 0, false
		}
		if i < len(durations)-1 && count >= rates[durations[i+1]] {
			return 0, false
		}
		if i > 0 && float64(count)/float64(d) >= float64(rates[durations[i-1]])/float64(durations[i-1]) {
			return 0, false
		}
	}

	return durations[len(durations)-1], true
}

// recordAndCheck registers one admission attempt at now and reports how
// long until the window is back within every configured rate (zero if
// this attempt itself was within budget).
func (w *admissionWindow) recordAndCheck(now time.Time) time.Duration {
	w.events = append(w.events, now.UnixNano())
	return w.slide(now)
}

// slide discards events older than every configured window's boundary
// and reports the longest remaining wait across all windows currently
// over budget.
func (w *admissionWindow) slide(now time.Time) time.Duration {
	firstRelevant := len(w.events)
	var remaining time.Duration

	for window, limit := range w.rates {
		boundary := now.Add(-window)
		idx := sort.Search(len(w.events), func(i int) bool {
			return w.events[i] >= boundary.UnixNano()+1
		})
		if idx < firstRelevant {
			firstRelevant = idx
		}
		if limit < len(w.events)-idx {
			offset := time.Unix(0, w.events[len(w.events)-limit]).Sub(boundary)
			if offset > remaining {
				remaining = offset
			}
		}
	}

	if firstRelevant > 0 {
		// Reallocate rather than re-slice in place, so the dropped
		// prefix's backing array can be collected; this window is
		// expected to stay small (admission attempts, not a hot byte
		// stream), so the copy is cheap relative to avoiding unbounded
		// backing-array growth over a long-lived scheduler.
		trimmed := make([]int64, len(w.events)-firstRelevant)
		copy(trimmed, w.events[firstRelevant:])
		w.events = trimmed
	}

	return remaining
}
