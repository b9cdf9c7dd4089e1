package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seat-allocation-backend/internal/mw"
)

type loginRequest struct {
	PropertyID string `json:"propertyId" binding:"required"`
	StaffID    string `json:"staffId" binding:"required"`
	SectionID  string `json:"sectionId"`
}

type sessionResponse struct {
	Token      string `json:"token"`
	PropertyID string `json:"propertyId"`
	StaffID    string `json:"staffId"`
	SectionID  string `json:"sectionId,omitempty"`
}

// Login opens a staff session and starts its board view.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	s, err := h.sessions.Login(c.Request.Context(), req.PropertyID, req.StaffID, req.SectionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{
		Token:      s.Token,
		PropertyID: s.PropertyID,
		StaffID:    s.StaffID,
		SectionID:  s.RestrictSectionID,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.GetHeader(mw.SessionHeader)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetBoard returns the latest layout and seat statuses of the session's view.
func (h *Handler) GetBoard(c *gin.Context) {
	board := currentSession(c).Board()
	if board == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "board not loaded yet"})
		return
	}
	c.JSON(http.StatusOK, board)
}
