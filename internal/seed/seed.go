package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/skillforge/skillforge/internal/user/domain"
	"gorm.io/gorm"
)

const (
	demoLearnerEmail   = "demo@skillforge.dev"
	demoLearnerDisplay = "Demo Learner"
)

// EnsureDemoLearner seeds a learner for local development so the API is
// usable immediately after first boot.
func EnsureDemoLearner(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var learner userdomain.Learner
		err := tx.WithContext(ctx).
			Where("email = ?", demoLearnerEmail).
			First(&learner).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		learner = userdomain.Learner{
			ID:          node.Generate(),
			Email:       demoLearnerEmail,
			DisplayName: demoLearnerDisplay,
		}
		return tx.WithContext(ctx).Create(&learner).Error
	})
}
