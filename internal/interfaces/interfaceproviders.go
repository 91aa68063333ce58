package interfaces

import (
	"github.com/google/wire"

	"dispatch-server/services/dispatch-api/internal/interfaces/httpserver"
)

var InterfacesProvider = wire.NewSet(
	httpserver.NewHTTPServer,
)
