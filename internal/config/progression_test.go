package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultProgressionConfigIsValid(t *testing.T) {
	cfg := DefaultProgressionConfig()
	require.NoError(t, validateProgressionConfig(cfg))

	assert.Equal(t, int64(50), cfg.Awards.LessonXP)
	assert.Equal(t, int64(25), cfg.Awards.QuizXP)
	assert.Equal(t, int64(100), cfg.Awards.AssessmentXP)
	assert.Equal(t, 3, cfg.FreezeCap)
}

func TestMilestoneLookup(t *testing.T) {
	cfg := DefaultProgressionConfig()

	m := cfg.Milestone(7)
	require.NotNil(t, m)
	assert.Equal(t, int64(100), m.BonusXP)
	assert.False(t, m.GrantsFreeze)

	m = cfg.Milestone(30)
	require.NotNil(t, m)
	assert.Equal(t, int64(500), m.BonusXP)
	assert.True(t, m.GrantsFreeze)

	assert.Nil(t, cfg.Milestone(8), "non-milestone lengths pay nothing")
	assert.Nil(t, cfg.Milestone(0))
}

func TestValidateProgressionConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ProgressionConfig)
	}{
		{
			name:   "non-positive award",
			mutate: func(c *ProgressionConfig) { c.Awards.LessonXP = 0 },
		},
		{
			name:   "negative freeze cap",
			mutate: func(c *ProgressionConfig) { c.FreezeCap = -1 },
		},
		{
			name: "unordered milestones",
			mutate: func(c *ProgressionConfig) {
				c.Milestones[0], c.Milestones[1] = c.Milestones[1], c.Milestones[0]
			},
		},
		{
			name:   "non-positive milestone days",
			mutate: func(c *ProgressionConfig) { c.Milestones[0].Days = 0 },
		},
		{
			name:   "non-positive milestone bonus",
			mutate: func(c *ProgressionConfig) { c.Milestones[0].BonusXP = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultProgressionConfig()
			tt.mutate(&cfg)
			assert.Error(t, validateProgressionConfig(cfg))
		})
	}
}

func TestStaticHolderServesPinnedConfig(t *testing.T) {
	cfg := DefaultProgressionConfig()
	cfg.Awards.LessonXP = 75

	holder := NewStaticProgressionConfigHolder(cfg)
	assert.Equal(t, int64(75), holder.Get().Awards.LessonXP)
}

func TestNewProgressionConfigHolderDefaultsWithoutFile(t *testing.T) {
	holder, err := NewProgressionConfigHolder(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultProgressionConfig(), holder.Get())
}
