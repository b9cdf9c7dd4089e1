package draft

import (
	"context"
	"fmt"
	"strings"

	"seat-allocation-backend/internal/model"
)

// Creator persists a new allocation.
type Creator interface {
	CreateAllocation(ctx context.Context, req model.NewAllocation) (model.Allocation, error)
}

// Directory resolves the guest and staff a submission refers to.
type Directory interface {
	Guest(roomNumber string) (model.Guest, bool)
	Staff(id string) (model.Staff, bool)
}

// Submission carries the fields entered next to the seat selection.
type Submission struct {
	RoomNumber    string  `json:"roomNumber"`
	FBManagerID   string  `json:"fbManagerId"`
	GuestCategory *string `json:"guestCategory,omitempty"`
}

// Submit validates the draft and hands it to the collaborator. Validation
// failures never reach the collaborator. The draft is left untouched on any
// error so the caller can retry after a conflict.
func Submit(ctx context.Context, svc Creator, dir Directory, d *Draft, sub Submission) (model.Allocation, error) {
	room := strings.TrimSpace(sub.RoomNumber)
	if room == "" {
		return model.Allocation{}, fmt.Errorf("%w: room number is required", model.ErrInput)
	}
	guest, ok := dir.Guest(room)
	if !ok {
		return model.Allocation{}, fmt.Errorf("%w: unknown room %s", model.ErrInput, room)
	}
	if sub.FBManagerID == "" {
		return model.Allocation{}, fmt.Errorf("%w: F&B manager is required", model.ErrInput)
	}
	if _, ok := dir.Staff(sub.FBManagerID); !ok {
		return model.Allocation{}, fmt.Errorf("%w: unknown staff %s", model.ErrInput, sub.FBManagerID)
	}
	seats := d.SeatIDs()
	if len(seats) == 0 {
		return model.Allocation{}, fmt.Errorf("%w: select at least one seat", model.ErrInput)
	}

	category := sub.GuestCategory
	if category == nil {
		category = guest.Category
	}

	alloc, err := svc.CreateAllocation(ctx, model.NewAllocation{
		PropertyID:     d.PropertyID,
		RoomNumber:     room,
		GuestName:      guest.Name,
		GuestCategory:  category,
		FBManagerID:    sub.FBManagerID,
		SeatIDs:        seats,
		DeviceIDs:      d.DeviceIDs(),
		AllocationDate: d.Date,
	})
	if err != nil {
		return model.Allocation{}, fmt.Errorf("create allocation: %w", err)
	}
	return alloc, nil
}
