package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"seat-allocation-backend/internal/collaborator"
	"seat-allocation-backend/internal/model"
)

// collaboratorRoutes serves a Collaborator over the envelope protocol that
// collaborator.Client speaks, so other instances can run in http mode
// against this one.
type collaboratorRoutes struct {
	c      collaborator.Collaborator
	logger *zap.Logger
}

// RegisterCollaborator mounts the collaborator protocol on g.
func RegisterCollaborator(g *gin.RouterGroup, c collaborator.Collaborator, logger *zap.Logger) {
	r := &collaboratorRoutes{c: c, logger: logger.With(zap.String("component", "collaborator_server"))}

	p := g.Group("/properties/:property_id")
	{
		p.GET("/seats", fetch(r, r.c.FetchSeats))
		p.GET("/sections", fetch(r, r.c.FetchSections))
		p.GET("/seat-types", fetch(r, r.c.FetchSeatTypes))
		p.GET("/devices", fetch(r, r.c.FetchDevices))
		p.GET("/allocations", fetch(r, r.c.FetchAllocations))
		p.GET("/guests", fetch(r, r.c.FetchGuests))
		p.GET("/staff", fetch(r, r.c.FetchStaff))
		p.GET("/allocated-seat-ids", fetchOnDate(r, r.c.FetchAllocatedSeatIDs))
		p.GET("/allocated-device-ids", fetchOnDate(r, r.c.FetchAllocatedDeviceIDs))
	}

	g.POST("/allocations", r.createAllocation)
	g.PUT("/allocations/:id/status", r.updateStatus)
	g.PUT("/allocations/:id/calling-flag", r.updateCallingFlag)
	g.DELETE("/allocations/:id", func(c *gin.Context) {
		r.reply(c, http.StatusOK, nil, r.c.DeleteAllocation(c.Request.Context(), c.Param("id")))
	})

	g.POST("/seats", r.createSeat)
	g.POST("/seats/bulk", r.bulkCreateSeats)
	g.PUT("/seats/:id", r.updateSeat)
	g.DELETE("/seats/:id", func(c *gin.Context) {
		r.reply(c, http.StatusOK, nil, r.c.DeleteSeat(c.Request.Context(), c.Param("id")))
	})
	g.PUT("/seats/:id/blocked", r.setBlocked)
	g.PUT("/seats/:id/static-device", r.assignStaticDevice)

	g.POST("/sections", r.createSection)
	g.PUT("/sections/:id", r.updateSection)
	g.DELETE("/sections/:id", func(c *gin.Context) {
		r.reply(c, http.StatusOK, nil, r.c.DeleteSection(c.Request.Context(), c.Param("id")))
	})
}

// reply writes the envelope. Failures carry the wire code of err.
func (r *collaboratorRoutes) reply(c *gin.Context, status int, data any, err error) {
	if err != nil {
		code := collaborator.CodeFor(err)
		message := err.Error()
		if code == collaborator.CodeOperation {
			r.logger.Error("collaborator call failed", zap.String("path", c.FullPath()), zap.Error(err))
			message = "operation failed"
		}
		c.JSON(statusFor(err), collaborator.Envelope{Success: false, Code: code, Message: message})
		return
	}

	env := collaborator.Envelope{Success: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			r.logger.Error("failed to encode collaborator response", zap.Error(err))
			c.JSON(http.StatusInternalServerError, collaborator.Envelope{Code: collaborator.CodeOperation, Message: "operation failed"})
			return
		}
		env.Data = raw
	}
	c.JSON(status, env)
}

func (r *collaboratorRoutes) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		r.reply(c, 0, nil, fmt.Errorf("%w: %v", model.ErrInput, err))
		return false
	}
	return true
}

func fetch[T any](r *collaboratorRoutes, fn func(context.Context, string) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := fn(c.Request.Context(), c.Param("property_id"))
		if items == nil {
			items = []T{}
		}
		r.reply(c, http.StatusOK, items, err)
	}
}

func fetchOnDate(r *collaboratorRoutes, fn func(context.Context, string, time.Time) ([]string, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		date, err := time.Parse(collaborator.DateLayout, c.Query("date"))
		if err != nil {
			r.reply(c, 0, nil, fmt.Errorf("%w: date must be %s", model.ErrInput, collaborator.DateLayout))
			return
		}
		ids, err := fn(c.Request.Context(), c.Param("property_id"), date)
		if ids == nil {
			ids = []string{}
		}
		r.reply(c, http.StatusOK, ids, err)
	}
}

func (r *collaboratorRoutes) createAllocation(c *gin.Context) {
	var req model.NewAllocation
	if !r.bind(c, &req) {
		return
	}
	alloc, err := r.c.CreateAllocation(c.Request.Context(), req)
	r.reply(c, http.StatusCreated, alloc, err)
}

func (r *collaboratorRoutes) updateStatus(c *gin.Context) {
	var req collaborator.StatusUpdate
	if !r.bind(c, &req) {
		return
	}
	alloc, err := r.c.UpdateAllocationStatus(c.Request.Context(), c.Param("id"), req.Status)
	r.reply(c, http.StatusOK, alloc, err)
}

func (r *collaboratorRoutes) updateCallingFlag(c *gin.Context) {
	var req collaborator.CallingFlagUpdate
	if !r.bind(c, &req) {
		return
	}
	alloc, err := r.c.UpdateAllocationCallingFlag(c.Request.Context(), c.Param("id"), req.CallingFlag)
	r.reply(c, http.StatusOK, alloc, err)
}

func (r *collaboratorRoutes) createSeat(c *gin.Context) {
	var seat model.Seat
	if !r.bind(c, &seat) {
		return
	}
	created, err := r.c.CreateSeat(c.Request.Context(), seat)
	r.reply(c, http.StatusCreated, created, err)
}

func (r *collaboratorRoutes) bulkCreateSeats(c *gin.Context) {
	var req collaborator.BulkSeatRequest
	if !r.bind(c, &req) {
		return
	}
	seats, err := r.c.BulkCreateSeats(c.Request.Context(), req)
	r.reply(c, http.StatusCreated, seats, err)
}

func (r *collaboratorRoutes) updateSeat(c *gin.Context) {
	var seat model.Seat
	if !r.bind(c, &seat) {
		return
	}
	seat.ID = c.Param("id")
	updated, err := r.c.UpdateSeat(c.Request.Context(), seat)
	r.reply(c, http.StatusOK, updated, err)
}

func (r *collaboratorRoutes) setBlocked(c *gin.Context) {
	var req collaborator.BlockUpdate
	if !r.bind(c, &req) {
		return
	}
	seat, err := r.c.SetSeatBlocked(c.Request.Context(), c.Param("id"), req.Blocked)
	r.reply(c, http.StatusOK, seat, err)
}

func (r *collaboratorRoutes) assignStaticDevice(c *gin.Context) {
	var req collaborator.StaticDeviceUpdate
	if !r.bind(c, &req) {
		return
	}
	seat, err := r.c.AssignStaticDevice(c.Request.Context(), c.Param("id"), req.StaticDeviceID)
	r.reply(c, http.StatusOK, seat, err)
}

func (r *collaboratorRoutes) createSection(c *gin.Context) {
	var sec model.Section
	if !r.bind(c, &sec) {
		return
	}
	created, err := r.c.CreateSection(c.Request.Context(), sec)
	r.reply(c, http.StatusCreated, created, err)
}

func (r *collaboratorRoutes) updateSection(c *gin.Context) {
	var sec model.Section
	if !r.bind(c, &sec) {
		return
	}
	sec.ID = c.Param("id")
	updated, err := r.c.UpdateSection(c.Request.Context(), sec)
	r.reply(c, http.StatusOK, updated, err)
}
