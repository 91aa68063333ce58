//go:build wireinject

package main

import (
	"dispatch-server/services/dispatch-api/internal/domain"
	"dispatch-server/services/dispatch-api/internal/infrastructure"
	"dispatch-server/services/dispatch-api/internal/interfaces"
	"dispatch-server/services/dispatch-api/internal/interfaces/httpserver/routes"

	"github.com/google/wire"
)

func CreateApplication() (*Application, error) {
	wire.Build(
		domain.ServiceProvider,
		infrastructure.InfrastructureProvider,
		routes.RouteProvider,
		interfaces.InterfacesProvider,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil
}
