package domain

import (
	"github.com/google/wire"

	"dispatch-server/services/dispatch-api/internal/domain/dispatch"
)

// ServiceProvider provides all domain services
var ServiceProvider = wire.NewSet(
	dispatch.NewService,
)
