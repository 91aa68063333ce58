package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch-server/services/dispatch-api/internal/config"
	"dispatch-server/services/dispatch-api/internal/interfaces/httpserver/handlers/dispatchhandler"
)

type V1Route struct {
	dispatch *dispatchhandler.DispatchHandler
}

func NewV1Route(dispatch *dispatchhandler.DispatchHandler) *V1Route {
	return &V1Route{dispatch}
}

func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")
	v1Router.GET("/version", GetVersion)
	v1Router.GET("/healthz", GetHealthz)
	v1Router.GET("/readyz", GetReadyz)

	v1Router.POST("/dispatch", v1Route.dispatch.Dispatch)
	v1Router.GET("/dispatch", v1Route.dispatch.ListDispatches)
	v1Router.GET("/dispatch/:public_id", v1Route.dispatch.GetDispatch)
	v1Router.GET("/invokers/status", v1Route.dispatch.InvokerStatus)
}

// GetVersion returns the current build version of the API server.
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":         config.Version,
		"env_reloaded_at": config.GetGlobal().EnvReloadedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// GetHealthz reports liveness for orchestrators and monitoring.
func GetHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetReadyz reports whether the service is ready to accept traffic.
func GetReadyz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
