package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"seat-allocation-backend/internal/collaborator"
	"seat-allocation-backend/internal/draft"
	"seat-allocation-backend/internal/model"
)

type startDraftRequest struct {
	// Date is YYYY-MM-DD; today when empty.
	Date string `json:"date"`
}

// StartDraft opens an allocation draft for the session.
func (h *Handler) StartDraft(c *gin.Context) {
	var req startDraftRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse(collaborator.DateLayout, req.Date)
		if err != nil {
			h.writeError(c, fmt.Errorf("%w: date must be YYYY-MM-DD", model.ErrInput))
			return
		}
		date = parsed
	}

	view, err := currentSession(c).StartDraft(c.Request.Context(), date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) GetDraft(c *gin.Context) {
	view, err := currentSession(c).Draft(c.Param("draft_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ToggleDraftSeat adds or removes a seat; its static device follows it.
func (h *Handler) ToggleDraftSeat(c *gin.Context) {
	view, err := currentSession(c).ToggleSeat(c.Param("draft_id"), c.Param("seat_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ToggleDraftDevice(c *gin.Context) {
	view, err := currentSession(c).ToggleDevice(c.Param("draft_id"), c.Param("device_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SubmitDraft turns the draft into an allocation.
func (h *Handler) SubmitDraft(c *gin.Context) {
	var req draft.Submission
	if !h.bindJSON(c, &req) {
		return
	}
	alloc, err := currentSession(c).Submit(c.Request.Context(), c.Param("draft_id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alloc)
}
