package xp

import (
	"github.com/skillforge/skillforge/internal/xp/service"
	"go.uber.org/fx"
)

var Module = fx.Module("xp.service",
	fx.Provide(service.NewService),
)
