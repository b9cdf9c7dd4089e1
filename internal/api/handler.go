package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"seat-allocation-backend/internal/collaborator"
	"seat-allocation-backend/internal/model"
	"seat-allocation-backend/internal/mw"
	"seat-allocation-backend/internal/session"
)

const sessionKey = "session"

// Handler holds shared dependencies for API handlers.
type Handler struct {
	collab   collaborator.Collaborator
	sessions *session.Manager
	db       *gorm.DB
	webpush  *webpush.Options
	logger   *zap.Logger
}

// NewHandler creates a new API handler. db holds push subscriptions.
func NewHandler(c collaborator.Collaborator, sessions *session.Manager, db *gorm.DB, webpushOptions *webpush.Options, logger *zap.Logger) *Handler {
	return &Handler{
		collab:   c,
		sessions: sessions,
		db:       db,
		webpush:  webpushOptions,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// RequireSession resolves the X-Session-Token header and stores the session
// in the request context.
func (h *Handler) RequireSession(c *gin.Context) {
	token := c.GetHeader(mw.SessionHeader)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session token is required"})
		return
	}
	s, err := h.sessions.Get(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired or unknown"})
		return
	}
	c.Set(sessionKey, s)
	c.Next()
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInput), errors.Is(err, model.ErrRange), errors.Is(err, model.ErrTooManyItems):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client. Unexpected failures are logged and
// surfaced as a generic message.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "operation failed"})
	case http.StatusBadGateway:
		h.logger.Warn("collaborator returned an unexpected payload", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "collaborator returned an invalid response"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

// bindJSON decodes the body, reporting malformed input as a 400.
func (h *Handler) bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}
