package progression

import (
	"github.com/skillforge/skillforge/internal/progression/service"
	"go.uber.org/fx"
)

var Module = fx.Module("progression.service",
	fx.Provide(service.NewService),
)
