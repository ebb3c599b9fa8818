package config

import (
	"errors"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ProgressionConfig holds the tunable gamification rules: how much XP each
// event kind is worth, which streak lengths pay a bonus, and how many
// streak freezes a learner may bank.
type ProgressionConfig struct {
	Awards     AwardConfig       `mapstructure:"awards"`
	Milestones []StreakMilestone `mapstructure:"milestones"`
	FreezeCap  int               `mapstructure:"freezeCap"`
}

type AwardConfig struct {
	LessonXP     int64 `mapstructure:"lessonXp"`
	QuizXP       int64 `mapstructure:"quizXp"`
	AssessmentXP int64 `mapstructure:"assessmentXp"`
}

type StreakMilestone struct {
	Days         int   `mapstructure:"days"`
	BonusXP      int64 `mapstructure:"bonusXp"`
	GrantsFreeze bool  `mapstructure:"grantsFreeze"`
}

func DefaultProgressionConfig() ProgressionConfig {
	return ProgressionConfig{
		Awards: AwardConfig{
			LessonXP:     50,
			QuizXP:       25,
			AssessmentXP: 100,
		},
		Milestones: []StreakMilestone{
			{Days: 7, BonusXP: 100},
			{Days: 30, BonusXP: 500, GrantsFreeze: true},
			{Days: 100, BonusXP: 2000, GrantsFreeze: true},
			{Days: 365, BonusXP: 5000},
		},
		FreezeCap: 3,
	}
}

// Milestone returns the configured milestone for the given streak length,
// or nil when the length pays no bonus.
func (c ProgressionConfig) Milestone(days int) *StreakMilestone {
	for i := range c.Milestones {
		if c.Milestones[i].Days == days {
			return &c.Milestones[i]
		}
	}
	return nil
}

// ProgressionConfigHolder serves the current progression rules and swaps
// them atomically when the config file changes on disk.
type ProgressionConfigHolder struct {
	current atomic.Value // holds ProgressionConfig
}

func NewProgressionConfigHolder(log *zap.Logger) (*ProgressionConfigHolder, error) {
	log = log.Named("progression.config")
	v := viper.New()

	v.SetConfigName("progression")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/skillforge/config")
	v.AddConfigPath("/etc/skillforge")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SKILLFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultProgressionConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	} else {
		if err := v.UnmarshalKey("progression", &cfg); err != nil {
			return nil, err
		}
	}
	if err := validateProgressionConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ProgressionConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := DefaultProgressionConfig()
		if err := v.UnmarshalKey("progression", &updated); err != nil {
			log.Warn("progression rules reload failed", zap.Error(err))
			return
		}
		if err := validateProgressionConfig(updated); err != nil {
			log.Warn("invalid progression rules ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("progression rules reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticProgressionConfigHolder pins the holder to a fixed rule set,
// with no file watching. Intended for tests and one-shot tooling.
func NewStaticProgressionConfigHolder(cfg ProgressionConfig) *ProgressionConfigHolder {
	holder := &ProgressionConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *ProgressionConfigHolder) Get() ProgressionConfig {
	return h.current.Load().(ProgressionConfig)
}

func validateProgressionConfig(cfg ProgressionConfig) error {
	if cfg.Awards.LessonXP <= 0 || cfg.Awards.QuizXP <= 0 || cfg.Awards.AssessmentXP <= 0 {
		return errors.New("progression.awards amounts must be positive")
	}
	if cfg.FreezeCap < 0 {
		return errors.New("progression.freezeCap cannot be negative")
	}
	if !sort.SliceIsSorted(cfg.Milestones, func(i, j int) bool {
		return cfg.Milestones[i].Days < cfg.Milestones[j].Days
	}) {
		return errors.New("progression.milestones must be ordered by days")
	}
	for _, m := range cfg.Milestones {
		if m.Days <= 0 {
			return errors.New("progression.milestones days must be positive")
		}
		if m.BonusXP <= 0 {
			return errors.New("progression.milestones bonusXp must be positive")
		}
	}
	return nil
}
