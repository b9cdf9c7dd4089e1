package session

import (
	"context"
	"fmt"
	"time"

	"seat-allocation-backend/internal/draft"
	"seat-allocation-backend/internal/model"
)

// StartDraft opens a draft for date. Seats and devices already allocated on
// that date are marked unavailable.
func (s *Session) StartDraft(ctx context.Context, date time.Time) (draft.View, error) {
	snap := s.view.Snapshot()
	if snap == nil {
		return draft.View{}, fmt.Errorf("%w: board not loaded", model.ErrOperation)
	}
	day := model.Day(date)
	seats, err := s.backend.FetchAllocatedSeatIDs(ctx, s.PropertyID, day)
	if err != nil {
		return draft.View{}, fmt.Errorf("fetch allocated seats: %w", err)
	}
	devices, err := s.backend.FetchAllocatedDeviceIDs(ctx, s.PropertyID, day)
	if err != nil {
		return draft.View{}, fmt.Errorf("fetch allocated devices: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts.Start(s.PropertyID, day, snap, seats, devices).View(), nil
}

// Draft returns the current state of a draft.
func (s *Session) Draft(id string) (draft.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.drafts.Get(id)
	if err != nil {
		return draft.View{}, err
	}
	return d.View(), nil
}

func (s *Session) ToggleSeat(draftID, seatID string) (draft.View, error) {
	return s.edit(draftID, func(d *draft.Draft) error { return d.ToggleSeat(seatID) })
}

func (s *Session) ToggleDevice(draftID, deviceID string) (draft.View, error) {
	return s.edit(draftID, func(d *draft.Draft) error { return d.ToggleDevice(deviceID) })
}

func (s *Session) edit(draftID string, fn func(*draft.Draft) error) (draft.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.drafts.Get(draftID)
	if err != nil {
		return draft.View{}, err
	}
	if snap := s.view.Snapshot(); snap != nil {
		d.SetCatalog(snap)
	}
	if err := fn(d); err != nil {
		return draft.View{}, err
	}
	return d.View(), nil
}

// Submit creates the allocation. The draft is dropped on success and kept on
// failure so a conflicting selection can be corrected.
func (s *Session) Submit(ctx context.Context, draftID string, sub draft.Submission) (model.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.drafts.Get(draftID)
	if err != nil {
		return model.Allocation{}, err
	}
	snap := s.view.Snapshot()
	d.SetCatalog(snap)

	alloc, err := draft.Submit(ctx, s.backend, snap, d, sub)
	if err != nil {
		return model.Allocation{}, err
	}
	s.drafts.Delete(draftID)
	s.Changed()
	return alloc, nil
}
