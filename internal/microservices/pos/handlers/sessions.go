package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createTableRequest struct {
	Number int `json:"number" binding:"required"`
}

type archiveTablesRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type createSessionRequest struct {
	TableID string `json:"tableId" binding:"required"`
}

func (h *Handler) CreateTable(c *gin.Context) {
	var req createTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t, err := h.sessions.CreateTable(c.Request.Context(), req.Number)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, t)
}

func (h *Handler) ListTables(c *gin.Context) {
	tables, err := h.sessions.ListTables(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, tables)
}

func (h *Handler) ArchiveTables(c *gin.Context) {
	var req archiveTablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	n, err := h.sessions.ArchiveTables(c.Request.Context(), req.IDs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"archived": n})
}

func (h *Handler) ActiveSessionForTable(c *gin.Context) {
	s, err := h.sessions.ActiveSessionForTable(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	s, err := h.sessions.CreateSession(c.Request.Context(), req.TableID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, s)
}

func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.ListSessions(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sessions)
}

func (h *Handler) GetSession(c *gin.Context) {
	s, err := h.sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}

func (h *Handler) GetSessionByCode(c *gin.Context) {
	s, err := h.sessions.GetSessionByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}

func (h *Handler) CloseSession(c *gin.Context) {
	s, err := h.sessions.CloseSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}
