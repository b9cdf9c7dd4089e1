package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"seat-allocation-backend/internal/model"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type callingRequest struct {
	CallingFlag string `json:"callingFlag" binding:"required"`
}

// UpdateAllocationStatus moves an allocation to any lifecycle stage.
func (h *Handler) UpdateAllocationStatus(c *gin.Context) {
	var req statusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	status, err := model.ParseAllocationStatus(req.Status)
	if err != nil {
		h.writeError(c, fmt.Errorf("%w: %v", model.ErrInput, err))
		return
	}
	s := currentSession(c)
	alloc, err := h.collab.UpdateAllocationStatus(c.Request.Context(), c.Param("allocation_id"), status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	s.Changed()
	c.JSON(http.StatusOK, alloc)
}

// UpdateAllocationCalling sets the calling flag. Calling for Checkout also
// moves the allocation to Billing.
func (h *Handler) UpdateAllocationCalling(c *gin.Context) {
	var req callingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	flag, err := model.ParseCallingFlag(req.CallingFlag)
	if err != nil {
		h.writeError(c, fmt.Errorf("%w: %v", model.ErrInput, err))
		return
	}
	s := currentSession(c)
	alloc, err := h.collab.UpdateAllocationCallingFlag(c.Request.Context(), c.Param("allocation_id"), flag)
	if err != nil {
		h.writeError(c, err)
		return
	}
	s.Changed()
	c.JSON(http.StatusOK, alloc)
}

func (h *Handler) DeleteAllocation(c *gin.Context) {
	s := currentSession(c)
	if err := h.collab.DeleteAllocation(c.Request.Context(), c.Param("allocation_id")); err != nil {
		h.writeError(c, err)
		return
	}
	s.Changed()
	c.Status(http.StatusNoContent)
}
