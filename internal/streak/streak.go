// Package streak implements the per-learner daily streak transition.
// Advance is pure; persistence of the resulting state is the caller's job.
package streak

import "time"

// Action tags what a transition did to the streak.
type Action string

const (
	// ActionMaintained: a second qualifying event on the same day.
	ActionMaintained Action = "maintained"
	// ActionExtended: consecutive-day activity grew the streak.
	ActionExtended Action = "extended"
	// ActionContinued: a freeze bridged exactly one missed day.
	ActionContinued Action = "continued"
	// ActionStarted: first-ever activity, or the streak was broken.
	ActionStarted Action = "started"
)

// State is the streak portion of a learner's progress record.
type State struct {
	CurrentStreak    int
	LongestStreak    int
	LastActivityDate *time.Time // calendar date, nil before first activity
	StreakFreezes    int
}

// Advance applies one qualifying activity on the given calendar day.
// today must be truncated to a date (clock.Today). Freezes bridge exactly
// one missed day; longer gaps reset the streak regardless of the freeze
// balance, since multi-day bridging is deliberately not supported.
func Advance(state State, today time.Time) (State, Action) {
	next := state
	var action Action

	switch gap := daysSince(state.LastActivityDate, today); {
	case state.LastActivityDate == nil:
		next.CurrentStreak = 1
		action = ActionStarted
	case gap <= 0:
		// same day, or clock skew put today behind the last activity
		return state, ActionMaintained
	case gap == 1:
		next.CurrentStreak++
		action = ActionExtended
	case gap == 2 && state.StreakFreezes > 0:
		next.CurrentStreak++
		next.StreakFreezes--
		action = ActionContinued
	default:
		next.CurrentStreak = 1
		action = ActionStarted
	}

	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	day := today
	next.LastActivityDate = &day

	return next, action
}

func daysSince(last *time.Time, today time.Time) int {
	if last == nil {
		return -1
	}
	return int(today.Sub(*last).Hours() / 24)
}
