package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

func Router(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog())

	r.GET("/healthz", h.Health)

	r.POST("/tables", h.CreateTable)
	r.GET("/tables", h.ListTables)
	r.POST("/tables/archive", h.ArchiveTables)
	r.GET("/tables/:id/session", h.ActiveSessionForTable)

	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions", h.ListSessions)
	r.GET("/sessions/code/:code", h.GetSessionByCode)
	r.GET("/sessions/:id", h.GetSession)
	r.GET("/sessions/:id/orders", h.ListSessionOrders)
	r.PATCH("/sessions/:id/close", h.CloseSession)

	r.POST("/orders", h.CreateOrder)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/:id", h.GetOrder)
	r.PATCH("/orders/:id/status", h.UpdateOrderStatus)
	r.DELETE("/orders/:id", h.DeleteOrder)
	r.POST("/orders/:id/items", h.AddOrderItem)
	r.DELETE("/order-items/:id", h.DeleteOrderItem)

	r.POST("/cash-register/open", h.OpenRegister)
	r.POST("/cash-register/close", h.CloseRegister)
	r.GET("/cash-register/active", h.ActiveRegister)
	r.GET("/cash-register/history", h.RegisterHistory)

	r.POST("/payments/close-bill", h.CloseBill)

	r.GET("/ws/kitchen", h.KitchenSocket)
	r.GET("/ws/session/:sessionId", h.SessionSocket)
	return r
}

func (h *Handler) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		}
		if c.Writer.Status() >= 500 {
			h.log.Warn("http_request", fields)
			return
		}
		h.log.Debug("http_request", fields)
	}
}
