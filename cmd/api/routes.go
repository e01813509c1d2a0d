package main

import (
	"database/sql"
	"net/http"
	"time"

	"callcenter-platform/internal/httpapi"
	"callcenter-platform/internal/rbac"
	"callcenter-platform/internal/realtime"
	"callcenter-platform/internal/telephony"
	"callcenter-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, gateway *telephony.Gateway, api httpapi.Handlers, ws *realtime.Handler, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: protect these with provider signature validation in production.
	webhooks := r.Group("/webhooks/provider")
	{
		webhooks.POST("/incoming", gateway.HandleIncoming)
		webhooks.POST("/wait", gateway.HandleWait)
		webhooks.POST("/status", gateway.HandleStatus)
		webhooks.POST("/recording", gateway.HandleRecording)
	}

	// Realtime push channel (token-authenticated inside the handler; browser
	// websocket clients cannot always set the Authorization header).
	r.GET("/ws", ws.HandleConnection)

	// Token issuance.
	r.POST("/v1/auth/login", api.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireBusiness())
	{
		calls := v1.Group("/calls")
		calls.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleSupervisor))
		{
			calls.GET("/active", api.ListActive)
			calls.GET("/:id", api.GetCall)
			calls.POST("/answer", api.Answer)
			calls.POST("/hold", api.Hold)
			calls.POST("/resume", api.Resume)
			calls.POST("/transfer", api.Transfer)
			calls.POST("/end", api.End)
		}

		sessions := v1.Group("/sessions")
		sessions.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleSupervisor))
		{
			sessions.POST("/checkin", api.CheckIn)
			sessions.POST("/checkout", api.CheckOut)
			sessions.POST("/disconnect", api.Disconnect)
			sessions.GET("/today", api.TodayTotal)
		}

		extension := v1.Group("/extension")
		extension.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSupervisor))
		{
			extension.GET("", api.GetExtension)
			extension.POST("/availability", api.SetAvailability)
		}

		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSupervisor))
		{
			reports.GET("/agents/today", api.AgentsToday)
		}
	}
}
