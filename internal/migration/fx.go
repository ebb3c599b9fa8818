package migration

import (
	activitydomain "github.com/skillforge/skillforge/internal/activity/domain"
	"github.com/skillforge/skillforge/internal/config"
	eventsdomain "github.com/skillforge/skillforge/internal/events/domain"
	"github.com/skillforge/skillforge/internal/seed"
	userdomain "github.com/skillforge/skillforge/internal/user/domain"
	xpdomain "github.com/skillforge/skillforge/internal/xp/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if conn.Dialector.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			err := conn.AutoMigrate(
				&userdomain.Learner{},
				&xpdomain.Transaction{},
				&activitydomain.DailyActivity{},
				&eventsdomain.ProgressionEvent{},
			)
			if err != nil {
				return err
			}
		}

		if cfg.Bootstrap.EnsureDemoLearner {
			return seed.EnsureDemoLearner(conn)
		}
		return nil
	}),
)
