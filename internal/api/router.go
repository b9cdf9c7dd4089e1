package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"seat-allocation-backend/config"
	"seat-allocation-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()
	if cfg.RequestIPHeader != "" {
		r.RemoteIPHeaders = []string{cfg.RequestIPHeader}
	}

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	sessionLimiter := mw.SessionRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// The bulk preview is a pure function of its query string.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/sessions", h.Login)
		api.DELETE("/sessions", h.Logout)
		api.GET("/seats/bulk/preview", caching, h.PreviewBulkSeats)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		authed := api.Group("", h.RequireSession, sessionLimiter)
		authed.GET("/board", h.GetBoard)

		authed.POST("/seats", h.CreateSeat)
		authed.POST("/seats/bulk", h.CreateBulkSeats)
		authed.PUT("/seats/:seat_id", h.UpdateSeat)
		authed.DELETE("/seats/:seat_id", h.DeleteSeat)
		authed.PUT("/seats/:seat_id/blocked", h.SetSeatBlocked)
		authed.PUT("/seats/:seat_id/static-device", h.AssignStaticDevice)

		authed.POST("/sections", h.CreateSection)
		authed.PUT("/sections/:section_id", h.UpdateSection)
		authed.DELETE("/sections/:section_id", h.DeleteSection)

		authed.POST("/drafts", h.StartDraft)
		authed.GET("/drafts/:draft_id", h.GetDraft)
		authed.POST("/drafts/:draft_id/seats/:seat_id", h.ToggleDraftSeat)
		authed.POST("/drafts/:draft_id/devices/:device_id", h.ToggleDraftDevice)
		authed.POST("/drafts/:draft_id/submit", h.SubmitDraft)

		authed.PUT("/allocations/:allocation_id/status", h.UpdateAllocationStatus)
		authed.PUT("/allocations/:allocation_id/calling", h.UpdateAllocationCalling)
		authed.DELETE("/allocations/:allocation_id", h.DeleteAllocation)

		authed.GET("/subscriptions", h.GetSubscription)
		authed.PUT("/subscriptions", h.PutSubscription)
		authed.DELETE("/subscriptions", h.DeleteSubscription)
	}

	return r
}
