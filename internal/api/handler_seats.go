package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"seat-allocation-backend/internal/bulk"
	"seat-allocation-backend/internal/collaborator"
	"seat-allocation-backend/internal/model"
	"seat-allocation-backend/internal/parse"
)

type previewResponse struct {
	bulk.Preview
	Summary string `json:"summary,omitempty"`
}

// PreviewBulkSeats shows the seat numbers a bulk request would create.
func (h *Handler) PreviewBulkSeats(c *gin.Context) {
	start, end, err := parse.Range(c.Query("start"), c.Query("end"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	preview, err := bulk.PreviewOf(bulk.Request{
		Prefix: c.Query("prefix"),
		Suffix: c.Query("suffix"),
		Start:  start,
		End:    end,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, previewResponse{Preview: preview, Summary: preview.Summary()})
}

type bulkSeatsRequest struct {
	SeatTypeID string          `json:"seatTypeId" binding:"required"`
	SectionID  *string         `json:"sectionId"`
	Prefix     string          `json:"prefix"`
	Suffix     string          `json:"suffix"`
	Start      json.RawMessage `json:"start"`
	End        json.RawMessage `json:"end"`
}

// CreateBulkSeats creates one seat per number in the range. Bounds may be
// sent as numbers or strings; both are held to the same integer rules.
func (h *Handler) CreateBulkSeats(c *gin.Context) {
	var req bulkSeatsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	start, end, err := parse.Range(string(req.Start), string(req.End))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := (bulk.Request{Prefix: req.Prefix, Suffix: req.Suffix, Start: start, End: end}).Validate(); err != nil {
		h.writeError(c, err)
		return
	}

	s := currentSession(c)
	seats, err := h.collab.BulkCreateSeats(c.Request.Context(), collaborator.BulkSeatRequest{
		PropertyID: s.PropertyID,
		SeatTypeID: req.SeatTypeID,
		SectionID:  req.SectionID,
		Prefix:     req.Prefix,
		Suffix:     req.Suffix,
		Start:      start,
		End:        end,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	s.Changed()
	c.JSON(http.StatusCreated, seats)
}

type seatRequest struct {
	SeatNumber     string  `json:"seatNumber" binding:"required"`
	SeatTypeID     string  `json:"seatTypeId" binding:"required"`
	SectionID      *string `json:"sectionId"`
	StaticDeviceID *string `json:"staticDeviceId"`
}

func (r seatRequest) seat(propertyID string) model.Seat {
	return model.Seat{
		PropertyID:     propertyID,
		SeatNumber:     r.SeatNumber,
		SeatTypeID:     r.SeatTypeID,
		SectionID:      r.SectionID,
		StaticDeviceID: r.StaticDeviceID,
	}
}

func (h *Handler) CreateSeat(c *gin.Context) {
	var req seatRequest
	if !h.bindJSON(c, &req) {
		return
	}
	s := currentSession(c)
	seat, err := h.collab.CreateSeat(c.Request.Context(), req.seat(s.PropertyID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	s.Changed()
	c.JSON(http.StatusCreated, seat)
}

// UpdateSeat replaces a seat's editable fields. The block state is kept.
func (h *Handler) UpdateSeat(c *gin.Context) {
	var req seatRequest
	if !h.bindJSON(c, &req) {
		return
	}
	s := currentSession(c)
	seat := req.seat(s.PropertyID)
	seat.ID = c.Param("seat_id")
	seat.Status = model.SeatAvailable
	if current, ok := s.Snapshot().Seat(seat.ID); ok {
		seat.Status = current.Status
	}
	updated, err := h.collab.UpdateSeat(c.Request.Context(), seat)
	if err != nil {
		h.writeError(c, err)
		return
	}
	s.Changed()
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteSeat(c *gin.Context) {
	s := currentSession(c)
	if err := h.collab.DeleteSeat(c.Request.Context(), c.Param("seat_id")); err != nil {
		h.writeError(c, err)
		return
	}
	s.Changed()
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetSeatBlocked(c *gin.Context) {
	var req collaborator.BlockUpdate
	if !h.bindJSON(c, &req) {
		return
	}
	s := currentSession(c)
	seat, err := h.collab.SetSeatBlocked(c.Request.Context(), c.Param("seat_id"), req.Blocked)
	if err != nil {
		h.writeError(c, err)
		return
	}
	s.Changed()
	c.JSON(http.StatusOK, seat)
}

// AssignStaticDevice binds a device to a seat; a null device unbinds it.
func (h *Handler) AssignStaticDevice(c *gin.Context) {
	var req collaborator.StaticDeviceUpdate
	if !h.bindJSON(c, &req) {
		return
	}
	if req.StaticDeviceID != nil && *req.StaticDeviceID == "" {
		h.writeError(c, fmt.Errorf("%w: empty device id, send null to unassign", model.ErrInput))
		return
	}
	s := currentSession(c)
	seat, err := h.collab.AssignStaticDevice(c.Request.Context(), c.Param("seat_id"), req.StaticDeviceID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	s.Changed()
	c.JSON(http.StatusOK, seat)
}

type sectionRequest struct {
	Name    string   `json:"name" binding:"required"`
	SeatIDs []string `json:"seatIds"`
}

func (h *Handler) CreateSection(c *gin.Context) {
	var req sectionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	s := currentSession(c)
	sec, err := h.collab.CreateSection(c.Request.Context(), model.Section{
		PropertyID: s.PropertyID,
		Name:       req.Name,
		SeatIDs:    req.SeatIDs,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	s.Changed()
	c.JSON(http.StatusCreated, sec)
}

func (h *Handler) UpdateSection(c *gin.Context) {
	var req sectionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	s := currentSession(c)
	sec, err := h.collab.UpdateSection(c.Request.Context(), model.Section{
		ID:         c.Param("section_id"),
		PropertyID: s.PropertyID,
		Name:       req.Name,
		SeatIDs:    req.SeatIDs,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	s.Changed()
	c.JSON(http.StatusOK, sec)
}

func (h *Handler) DeleteSection(c *gin.Context) {
	s := currentSession(c)
	if err := h.collab.DeleteSection(c.Request.Context(), c.Param("section_id")); err != nil {
		h.writeError(c, err)
		return
	}
	s.Changed()
	c.Status(http.StatusNoContent)
}
