package draft

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"seat-allocation-backend/internal/model"
)

// Store keeps the drafts of one session. Drafts that are not touched for the
// expiry window are dropped.
type Store struct {
	c *cache.Cache
}

func NewStore(expiry time.Duration) *Store {
	return &Store{c: cache.New(expiry, expiry*2)}
}

// Start opens a new draft and registers it.
func (s *Store) Start(propertyID string, date time.Time, catalog Catalog, unavailableSeats, unavailableDevices []string) *Draft {
	d := New(uuid.NewString(), propertyID, date, catalog, unavailableSeats, unavailableDevices)
	s.c.SetDefault(d.ID, d)
	return d
}

// Get returns the draft and refreshes its expiry.
func (s *Store) Get(id string) (*Draft, error) {
	v, ok := s.c.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: draft %s", model.ErrNotFound, id)
	}
	d := v.(*Draft)
	s.c.SetDefault(id, d)
	return d, nil
}

func (s *Store) Delete(id string) {
	s.c.Delete(id)
}

func (s *Store) Len() int {
	return s.c.ItemCount()
}
