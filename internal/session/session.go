// Package session holds the per-login state of a staff member: the board view
// that refreshes in the background and the drafts being edited.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"seat-allocation-backend/internal/collaborator"
	"seat-allocation-backend/internal/draft"
	"seat-allocation-backend/internal/model"
	"seat-allocation-backend/internal/occupancy"
	"seat-allocation-backend/internal/refresh"
	"seat-allocation-backend/internal/snapshot"
)

// Backend is what a session needs from the collaborator.
type Backend interface {
	collaborator.SnapshotSource
	draft.Creator
}

type Options struct {
	TTL      time.Duration
	DraftTTL time.Duration
	Refresh  refresh.Options
}

// Session is created at login and lives until logout or expiry. Its view
// goroutine is cancelled when it ends.
type Session struct {
	Token             string
	PropertyID        string
	StaffID           string
	RestrictSectionID string
	CreatedAt         time.Time

	view    *refresh.View
	backend Backend
	drafts  *draft.Store
	ctx     context.Context
	cancel  context.CancelFunc

	// mu serialises draft edits; drafts are not safe for concurrent use.
	mu sync.Mutex
}

// Manager registers live sessions by token.
type Manager struct {
	c       *cache.Cache
	backend Backend
	opts    Options
	base    *zap.Logger
	logger  *zap.Logger
}

func NewManager(backend Backend, opts Options, logger *zap.Logger) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	if opts.DraftTTL <= 0 {
		opts.DraftTTL = 30 * time.Minute
	}
	m := &Manager{
		c:       cache.New(opts.TTL, time.Minute),
		backend: backend,
		opts:    opts,
		base:    logger,
		logger:  logger.With(zap.String("component", "session")),
	}
	m.c.OnEvicted(func(token string, v interface{}) {
		s := v.(*Session)
		s.cancel()
		m.logger.Info("session ended", zap.String("property_id", s.PropertyID), zap.String("staff_id", s.StaffID))
	})
	return m
}

// Login primes a board view for the property and starts its refresh loop.
// The staff member and the restricting section, when given, must exist in
// the first snapshot.
func (m *Manager) Login(ctx context.Context, propertyID, staffID, restrictSectionID string) (*Session, error) {
	propertyID = strings.TrimSpace(propertyID)
	staffID = strings.TrimSpace(staffID)
	if propertyID == "" || staffID == "" {
		return nil, fmt.Errorf("%w: property and staff are required", model.ErrInput)
	}

	opts := m.opts.Refresh
	opts.PropertyID = propertyID
	opts.RestrictSectionID = restrictSectionID
	view := refresh.NewView(m.backend, opts, m.base)
	if err := view.FetchOnce(ctx); err != nil {
		return nil, err
	}
	snap := view.Snapshot()
	if _, ok := snap.Staff(staffID); !ok {
		return nil, fmt.Errorf("%w: unknown staff %s", model.ErrInput, staffID)
	}
	if restrictSectionID != "" {
		if _, ok := snap.Section(restrictSectionID); !ok {
			return nil, fmt.Errorf("%w: unknown section %s", model.ErrInput, restrictSectionID)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		Token:             uuid.NewString(),
		PropertyID:        propertyID,
		StaffID:           staffID,
		RestrictSectionID: restrictSectionID,
		CreatedAt:         time.Now().UTC(),
		view:              view,
		backend:           m.backend,
		drafts:            draft.NewStore(m.opts.DraftTTL),
		ctx:               runCtx,
		cancel:            cancel,
	}
	go view.Run(runCtx)
	m.c.SetDefault(s.Token, s)

	m.logger.Info("session started", zap.String("property_id", propertyID), zap.String("staff_id", staffID))
	return s, nil
}

// Get returns the session and extends its lifetime.
func (m *Manager) Get(token string) (*Session, error) {
	v, ok := m.c.Get(token)
	if !ok {
		return nil, fmt.Errorf("%w: session", model.ErrNotFound)
	}
	s := v.(*Session)
	m.c.SetDefault(token, s)
	return s, nil
}

// Logout ends the session and stops its view.
func (m *Manager) Logout(token string) error {
	if _, ok := m.c.Get(token); !ok {
		return fmt.Errorf("%w: session", model.ErrNotFound)
	}
	m.c.Delete(token)
	return nil
}

// Close ends every session.
func (m *Manager) Close() {
	for token := range m.c.Items() {
		m.c.Delete(token)
	}
}

func (m *Manager) Len() int {
	return m.c.ItemCount()
}

// Board is the latest computed board of the session's view.
func (s *Session) Board() *occupancy.Board { return s.view.Board() }

// Snapshot is the latest snapshot of the session's view.
func (s *Session) Snapshot() *snapshot.Snapshot { return s.view.Snapshot() }

// Changed asks the view to refetch after a write went through.
func (s *Session) Changed() { s.view.RequestRefresh() }

// Done is closed once the session has ended.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }
