package routes

import (
	"github.com/google/wire"

	"dispatch-server/services/dispatch-api/internal/interfaces/httpserver/handlers/dispatchhandler"
	v1 "dispatch-server/services/dispatch-api/internal/interfaces/httpserver/routes/v1"
)

var RouteProvider = wire.NewSet(
	// Handlers
	dispatchhandler.NewDispatchHandler,

	// Routes
	v1.NewV1Route,
)
