// Package snapshot holds an immutable, indexed copy of a property's entities.
//
// A Snapshot is built once per successful fetch and replaced wholesale; every
// lookup by id is a map access. The seat -> active allocation index is computed
// here so that the section layout and the status resolver agree on which
// allocation owns a seat, including when the exclusivity rule has been broken
// upstream.
package snapshot

import (
	"sort"
	"sync/atomic"
	"time"

	"seat-allocation-backend/internal/model"
)

// Collections is the raw result of one fetch round.
type Collections struct {
	Seats       []model.Seat
	Sections    []model.Section
	SeatTypes   []model.SeatType
	Devices     []model.Device
	Allocations []model.Allocation
	Guests      []model.Guest
	Staff       []model.Staff
}

// Snapshot is safe for concurrent reads and must not be mutated after New.
type Snapshot struct {
	PropertyID string
	FetchedAt  time.Time
	Seq        uint64

	seats       []model.Seat
	sections    []model.Section
	allocations []model.Allocation

	seatByID       map[string]model.Seat
	sectionByID    map[string]model.Section
	seatTypeByID   map[string]model.SeatType
	deviceByID     map[string]model.Device
	allocationByID map[string]model.Allocation
	guestByRoom    map[string]model.Guest
	staffByID      map[string]model.Staff

	activeBySeat map[string]string
	warnings     []model.ConsistencyWarning
}

// New indexes the collections. Seats are ordered by seat number then id and
// sections by name then id, so every derived view is deterministic.
func New(propertyID string, seq uint64, fetchedAt time.Time, c Collections) *Snapshot {
	s := &Snapshot{
		PropertyID:     propertyID,
		FetchedAt:      fetchedAt,
		Seq:            seq,
		seats:          append([]model.Seat(nil), c.Seats...),
		sections:       append([]model.Section(nil), c.Sections...),
		allocations:    append([]model.Allocation(nil), c.Allocations...),
		seatByID:       make(map[string]model.Seat, len(c.Seats)),
		sectionByID:    make(map[string]model.Section, len(c.Sections)),
		seatTypeByID:   make(map[string]model.SeatType, len(c.SeatTypes)),
		deviceByID:     make(map[string]model.Device, len(c.Devices)),
		allocationByID: make(map[string]model.Allocation, len(c.Allocations)),
		guestByRoom:    make(map[string]model.Guest, len(c.Guests)),
		staffByID:      make(map[string]model.Staff, len(c.Staff)),
	}

	sort.SliceStable(s.seats, func(i, j int) bool {
		if s.seats[i].SeatNumber != s.seats[j].SeatNumber {
			return s.seats[i].SeatNumber < s.seats[j].SeatNumber
		}
		return s.seats[i].ID < s.seats[j].ID
	})
	sort.SliceStable(s.sections, func(i, j int) bool {
		if s.sections[i].Name != s.sections[j].Name {
			return s.sections[i].Name < s.sections[j].Name
		}
		return s.sections[i].ID < s.sections[j].ID
	})
	sort.SliceStable(s.allocations, func(i, j int) bool {
		return s.allocations[i].ID < s.allocations[j].ID
	})

	for _, seat := range s.seats {
		s.seatByID[seat.ID] = seat
	}
	for _, sec := range s.sections {
		s.sectionByID[sec.ID] = sec
	}
	for _, st := range c.SeatTypes {
		s.seatTypeByID[st.ID] = st
	}
	for _, d := range c.Devices {
		s.deviceByID[d.ID] = d
	}
	for _, a := range s.allocations {
		s.allocationByID[a.ID] = a
	}
	for _, g := range c.Guests {
		s.guestByRoom[g.RoomNumber] = g
	}
	for _, st := range c.Staff {
		s.staffByID[st.ID] = st
	}

	s.activeBySeat, s.warnings = indexActive(s.allocations)
	return s
}

// indexActive maps each seat to the active allocation holding it. When several
// active allocations claim a seat the smallest id wins and a warning is kept.
func indexActive(allocations []model.Allocation) (map[string]string, []model.ConsistencyWarning) {
	claims := make(map[string][]string)
	for _, a := range allocations {
		if !a.IsActive() {
			continue
		}
		seen := make(map[string]struct{}, len(a.SeatIDs))
		for _, seatID := range a.SeatIDs {
			if _, dup := seen[seatID]; dup {
				continue
			}
			seen[seatID] = struct{}{}
			claims[seatID] = append(claims[seatID], a.ID)
		}
	}

	index := make(map[string]string, len(claims))
	var warnings []model.ConsistencyWarning
	for seatID, ids := range claims {
		sort.Strings(ids)
		index[seatID] = ids[0]
		if len(ids) > 1 {
			warnings = append(warnings, model.ConsistencyWarning{
				SeatID:        seatID,
				AllocationIDs: ids,
				Chosen:        ids[0],
			})
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].SeatID < warnings[j].SeatID })
	return index, warnings
}

// Seats returns the seats in display order. The slice must not be modified.
func (s *Snapshot) Seats() []model.Seat { return s.seats }

// Sections returns the sections in display order. The slice must not be modified.
func (s *Snapshot) Sections() []model.Section { return s.sections }

// Allocations returns every allocation ordered by id. The slice must not be modified.
func (s *Snapshot) Allocations() []model.Allocation { return s.allocations }

func (s *Snapshot) Seat(id string) (model.Seat, bool) {
	v, ok := s.seatByID[id]
	return v, ok
}

func (s *Snapshot) Section(id string) (model.Section, bool) {
	v, ok := s.sectionByID[id]
	return v, ok
}

func (s *Snapshot) SeatType(id string) (model.SeatType, bool) {
	v, ok := s.seatTypeByID[id]
	return v, ok
}

func (s *Snapshot) Device(id string) (model.Device, bool) {
	v, ok := s.deviceByID[id]
	return v, ok
}

func (s *Snapshot) Allocation(id string) (model.Allocation, bool) {
	v, ok := s.allocationByID[id]
	return v, ok
}

func (s *Snapshot) Guest(roomNumber string) (model.Guest, bool) {
	v, ok := s.guestByRoom[roomNumber]
	return v, ok
}

func (s *Snapshot) Staff(id string) (model.Staff, bool) {
	v, ok := s.staffByID[id]
	return v, ok
}

// ActiveAllocation returns the single active allocation covering a seat.
func (s *Snapshot) ActiveAllocation(seatID string) (model.Allocation, bool) {
	id, ok := s.activeBySeat[seatID]
	if !ok {
		return model.Allocation{}, false
	}
	return s.allocationByID[id], true
}

// Warnings lists seats claimed by more than one active allocation.
func (s *Snapshot) Warnings() []model.ConsistencyWarning {
	return s.warnings
}

// Holder publishes the latest snapshot to concurrent readers.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// Load returns the current snapshot, or nil before the first fetch.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Store replaces the snapshot unless a newer one is already published.
// It reports whether next was installed.
func (h *Holder) Store(next *Snapshot) bool {
	for {
		cur := h.current.Load()
		if cur != nil && cur.Seq >= next.Seq {
			return false
		}
		if h.current.CompareAndSwap(cur, next) {
			return true
		}
	}
}
