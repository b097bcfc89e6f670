package api

import (
	"net/http"

	agentconfigHandler "dispatch-server/internal/agentconfig/handler"
	authHandler "dispatch-server/internal/auth/handler"
	callsHandler "dispatch-server/internal/calls/handler"
	"dispatch-server/internal/livefeed"
	webhooksHandler "dispatch-server/internal/webhooks/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router          *gin.RouterGroup
	authHandler     authHandler.Handler
	callsHandler    callsHandler.Handler
	configHandler   agentconfigHandler.Handler
	webhookHandler  *webhooksHandler.Handler
	livefeedHandler livefeed.Handler
}

func New(
	router *gin.RouterGroup,
	authHandler authHandler.Handler,
	callsHandler callsHandler.Handler,
	configHandler agentconfigHandler.Handler,
	webhookHandler *webhooksHandler.Handler,
	livefeedHandler livefeed.Handler,
) API {
	return API{
		router:          router,
		authHandler:     authHandler,
		callsHandler:    callsHandler,
		configHandler:   configHandler,
		webhookHandler:  webhookHandler,
		livefeedHandler: livefeedHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()

	// Vendor webhooks are authenticated by signature, not session
	a.router.POST("/webhooks/voice", a.webhookHandler.HandleVendorWebhook)

	apiGroup := a.router.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		authGroup.POST("/login", a.authHandler.HandleLogin)
	}

	protectedGroup := apiGroup.Group("/protected", a.authHandler.HandleJWTMiddleware)
	{
		callsGroup := protectedGroup.Group("/calls")
		callsGroup.POST("", a.callsHandler.HandleCreateCall)
		callsGroup.GET("", a.callsHandler.HandleListCalls)
		callsGroup.GET("/recent", a.callsHandler.HandleRecentCalls)
		callsGroup.GET("/export", a.callsHandler.HandleExportCalls)
		callsGroup.GET("/:call_id", a.callsHandler.HandleGetCall)
		callsGroup.GET("/:call_id/watch", a.livefeedHandler.HandleWatchCall)

		configGroup := protectedGroup.Group("/agent-configs")
		configGroup.POST("", a.configHandler.HandleCreateConfig)
		configGroup.GET("", a.configHandler.HandleListConfigs)
		configGroup.POST("/sync", a.configHandler.HandleSyncConfig)
		configGroup.GET("/:config_id", a.configHandler.HandleGetConfig)
		configGroup.PUT("/:config_id", a.configHandler.HandleUpdateConfig)
		configGroup.DELETE("/:config_id", a.configHandler.HandleDeleteConfig)
		configGroup.POST("/:config_id/activate", a.configHandler.HandleActivateConfig)
	}
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
