package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/domain"
)

func writeJSON(c *gin.Context, code int, v any) {
	c.JSON(code, v)
}

// writeProblem renders a simplified Problem+JSON body.
func writeProblem(c *gin.Context, code int, typ, detail string, ext map[string]any) {
	resp := gin.H{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	}
	for k, v := range ext {
		resp[k] = v
	}
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(code, resp)
}

type mapping struct {
	err  error
	code int
	typ  string
}

var problems = []mapping{
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},

	{domain.ErrTableNotFound, http.StatusNotFound, "table_not_found"},
	{domain.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{domain.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{domain.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{domain.ErrOrderItemNotFound, http.StatusNotFound, "order_item_not_found"},

	{domain.ErrSessionAlreadyActive, http.StatusConflict, "session_already_active"},
	{domain.ErrTableHasActiveSession, http.StatusConflict, "table_has_active_session"},
	{domain.ErrRegisterAlreadyOpen, http.StatusConflict, "register_already_open"},
	{domain.ErrActiveOrdersPending, http.StatusConflict, "active_orders_pending"},
	{domain.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
	{domain.ErrOrderNotPayable, http.StatusConflict, "order_not_payable"},
	{domain.ErrOrderClosed, http.StatusConflict, "order_closed"},
	{domain.ErrUnsettledOrders, http.StatusConflict, "unsettled_orders"},
	{domain.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},

	{domain.ErrNoOpenRegister, http.StatusUnprocessableEntity, "no_open_register"},
	{domain.ErrNoPendingOrders, http.StatusUnprocessableEntity, "no_pending_orders"},
	{domain.ErrInvalidSession, http.StatusUnprocessableEntity, "invalid_session"},
}

// writeError maps a service error onto a problem response. Anything
// unrecognised is a 500 and gets logged.
func (h *Handler) writeError(c *gin.Context, err error) {
	var ext map[string]any
	var short *domain.InsufficientStockError
	if errors.As(err, &short) {
		ext = map[string]any{"product": short.Product, "available": short.Available, "requested": short.Requested}
	}
	for _, m := range problems {
		if errors.Is(err, m.err) {
			writeProblem(c, m.code, m.typ, err.Error(), ext)
			return
		}
	}
	h.log.Error("request_failed", err, map[string]any{"method": c.Request.Method, "path": c.FullPath()})
	writeProblem(c, http.StatusInternalServerError, "internal_error", "internal server error", nil)
}

func badRequest(c *gin.Context, detail string) {
	writeProblem(c, http.StatusBadRequest, "invalid_input", detail, nil)
}
