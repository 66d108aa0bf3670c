package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/domain"
)

type closeBillRequest struct {
	SessionID string               `json:"sessionId" binding:"required"`
	Method    domain.PaymentMethod `json:"method" binding:"required"`
}

func (h *Handler) CloseBill(c *gin.Context) {
	var req closeBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.billing.CloseBill(c.Request.Context(), req.SessionID, req.Method)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}
