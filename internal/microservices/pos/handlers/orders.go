package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/domain"
)

type createOrderRequest struct {
	SessionID string               `json:"sessionId" binding:"required"`
	Items     []domain.ItemRequest `json:"items" binding:"required"`
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := h.orders.CreateOrder(c.Request.Context(), req.SessionID, req.Items)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

// ListOrders takes an optional ?status= filter; the kitchen board polls
// with it.
func (h *Handler) ListOrders(c *gin.Context) {
	var status *domain.OrderStatus
	if s := c.Query("status"); s != "" {
		st := domain.OrderStatus(s)
		status = &st
	}
	orders, err := h.orders.ListOrders(c.Request.Context(), status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orders)
}

func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *Handler) ListSessionOrders(c *gin.Context) {
	orders, err := h.orders.ListSessionOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orders)
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	o, err := h.orders.DeleteOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"deleted": o.ID})
}

func (h *Handler) AddOrderItem(c *gin.Context) {
	var req domain.ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := h.orders.AddOrderItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

func (h *Handler) DeleteOrderItem(c *gin.Context) {
	o, err := h.orders.DeleteOrderItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}
