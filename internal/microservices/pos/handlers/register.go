package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type openRegisterRequest struct {
	InitialValue decimal.Decimal `json:"initialValue"`
}

func (h *Handler) OpenRegister(c *gin.Context) {
	var req openRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	reg, err := h.register.OpenRegister(c.Request.Context(), req.InitialValue)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, reg)
}

func (h *Handler) CloseRegister(c *gin.Context) {
	summary, err := h.register.CloseRegister(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, summary)
}

func (h *Handler) ActiveRegister(c *gin.Context) {
	summary, err := h.register.ActiveRegisterDetails(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, summary)
}

func (h *Handler) RegisterHistory(c *gin.Context) {
	start, err := timeQuery(c, "start")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	end, err := timeQuery(c, "end")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	history, err := h.register.RegisterHistory(c.Request.Context(), start, end)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, history)
}

// timeQuery parses an optional RFC3339 query parameter.
func timeQuery(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC3339 timestamp", key)
	}
	return &t, nil
}
