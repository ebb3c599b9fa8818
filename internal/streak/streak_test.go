package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	d := day(s)
	return &d
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name       string
		state      State
		today      time.Time
		wantState  State
		wantAction Action
	}{
		{
			name:       "first ever activity starts a streak",
			state:      State{},
			today:      day("2024-03-10"),
			wantState:  State{CurrentStreak: 1, LongestStreak: 1, LastActivityDate: dayPtr("2024-03-10")},
			wantAction: ActionStarted,
		},
		{
			name: "second event on the same day is a no-op",
			state: State{
				CurrentStreak: 4, LongestStreak: 9,
				LastActivityDate: dayPtr("2024-03-10"), StreakFreezes: 2,
			},
			today: day("2024-03-10"),
			wantState: State{
				CurrentStreak: 4, LongestStreak: 9,
				LastActivityDate: dayPtr("2024-03-10"), StreakFreezes: 2,
			},
			wantAction: ActionMaintained,
		},
		{
			name: "today behind last activity is treated as same day",
			state: State{
				CurrentStreak: 4, LongestStreak: 9,
				LastActivityDate: dayPtr("2024-03-10"),
			},
			today: day("2024-03-09"),
			wantState: State{
				CurrentStreak: 4, LongestStreak: 9,
				LastActivityDate: dayPtr("2024-03-10"),
			},
			wantAction: ActionMaintained,
		},
		{
			name: "next calendar day extends",
			state: State{
				CurrentStreak: 4, LongestStreak: 9,
				LastActivityDate: dayPtr("2024-03-10"),
			},
			today: day("2024-03-11"),
			wantState: State{
				CurrentStreak: 5, LongestStreak: 9,
				LastActivityDate: dayPtr("2024-03-11"),
			},
			wantAction: ActionExtended,
		},
		{
			name: "extension past the longest updates longest",
			state: State{
				CurrentStreak: 9, LongestStreak: 9,
				LastActivityDate: dayPtr("2024-03-10"),
			},
			today: day("2024-03-11"),
			wantState: State{
				CurrentStreak: 10, LongestStreak: 10,
				LastActivityDate: dayPtr("2024-03-11"),
			},
			wantAction: ActionExtended,
		},
		{
			name: "one missed day with a freeze continues and spends it",
			state: State{
				CurrentStreak: 6, LongestStreak: 6,
				LastActivityDate: dayPtr("2024-03-10"), StreakFreezes: 2,
			},
			today: day("2024-03-12"),
			wantState: State{
				CurrentStreak: 7, LongestStreak: 7,
				LastActivityDate: dayPtr("2024-03-12"), StreakFreezes: 1,
			},
			wantAction: ActionContinued,
		},
		{
			name: "one missed day without a freeze resets",
			state: State{
				CurrentStreak: 6, LongestStreak: 8,
				LastActivityDate: dayPtr("2024-03-10"),
			},
			today: day("2024-03-12"),
			wantState: State{
				CurrentStreak: 1, LongestStreak: 8,
				LastActivityDate: dayPtr("2024-03-12"),
			},
			wantAction: ActionStarted,
		},
		{
			name: "two missed days reset even with freezes banked",
			state: State{
				CurrentStreak: 20, LongestStreak: 20,
				LastActivityDate: dayPtr("2024-03-10"), StreakFreezes: 3,
			},
			today: day("2024-03-13"),
			wantState: State{
				CurrentStreak: 1, LongestStreak: 20,
				LastActivityDate: dayPtr("2024-03-13"), StreakFreezes: 3,
			},
			wantAction: ActionStarted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, action := Advance(tt.state, tt.today)
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantState.CurrentStreak, got.CurrentStreak)
			assert.Equal(t, tt.wantState.LongestStreak, got.LongestStreak)
			assert.Equal(t, tt.wantState.StreakFreezes, got.StreakFreezes)
			if assert.NotNil(t, got.LastActivityDate) {
				assert.True(t, got.LastActivityDate.Equal(*tt.wantState.LastActivityDate),
					"last activity date %v, want %v", got.LastActivityDate, tt.wantState.LastActivityDate)
			}
		})
	}
}

func TestAdvanceDoesNotMutateInput(t *testing.T) {
	state := State{
		CurrentStreak: 3, LongestStreak: 5,
		LastActivityDate: dayPtr("2024-03-10"), StreakFreezes: 1,
	}
	_, _ = Advance(state, day("2024-03-12"))
	assert.Equal(t, 3, state.CurrentStreak)
	assert.Equal(t, 1, state.StreakFreezes)
}

func TestAdvanceYearBoundary(t *testing.T) {
	state := State{
		CurrentStreak: 10, LongestStreak: 10,
		LastActivityDate: dayPtr("2023-12-31"),
	}
	got, action := Advance(state, day("2024-01-01"))
	assert.Equal(t, ActionExtended, action)
	assert.Equal(t, 11, got.CurrentStreak)
}
