// Package collaborator defines the operations the seat engine needs from the
// system of record, and the snapshot assembly built on top of them.
package collaborator

import (
	"context"
	"fmt"
	"time"

	"seat-allocation-backend/internal/model"
	"seat-allocation-backend/internal/snapshot"
)

// SnapshotSource reads the collections that make up a property's snapshot.
type SnapshotSource interface {
	FetchSeats(ctx context.Context, propertyID string) ([]model.Seat, error)
	FetchSections(ctx context.Context, propertyID string) ([]model.Section, error)
	FetchSeatTypes(ctx context.Context, propertyID string) ([]model.SeatType, error)
	FetchDevices(ctx context.Context, propertyID string) ([]model.Device, error)
	FetchAllocations(ctx context.Context, propertyID string) ([]model.Allocation, error)
	FetchGuests(ctx context.Context, propertyID string) ([]model.Guest, error)
	FetchStaff(ctx context.Context, propertyID string) ([]model.Staff, error)
	// FetchAllocatedSeatIDs returns the seats held by active allocations on date.
	FetchAllocatedSeatIDs(ctx context.Context, propertyID string, date time.Time) ([]string, error)
	// FetchAllocatedDeviceIDs returns the devices bound to active allocations on date.
	FetchAllocatedDeviceIDs(ctx context.Context, propertyID string, date time.Time) ([]string, error)
}

// AllocationService mutates allocations. Implementations must enforce seat
// exclusivity and move an allocation to Billing whenever its calling flag
// becomes Calling for Checkout.
type AllocationService interface {
	CreateAllocation(ctx context.Context, req model.NewAllocation) (model.Allocation, error)
	UpdateAllocationStatus(ctx context.Context, id string, status model.AllocationStatus) (model.Allocation, error)
	UpdateAllocationCallingFlag(ctx context.Context, id string, flag model.CallingFlag) (model.Allocation, error)
	DeleteAllocation(ctx context.Context, id string) error
}

// BulkSeatRequest creates one seat per generated seat number.
type BulkSeatRequest struct {
	PropertyID string  `json:"propertyId"`
	SeatTypeID string  `json:"seatTypeId"`
	SectionID  *string `json:"sectionId,omitempty"`
	Prefix     string  `json:"prefix"`
	Suffix     string  `json:"suffix"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

type SeatAdmin interface {
	CreateSeat(ctx context.Context, seat model.Seat) (model.Seat, error)
	UpdateSeat(ctx context.Context, seat model.Seat) (model.Seat, error)
	DeleteSeat(ctx context.Context, id string) error
	BulkCreateSeats(ctx context.Context, req BulkSeatRequest) ([]model.Seat, error)
	SetSeatBlocked(ctx context.Context, id string, blocked bool) (model.Seat, error)
	// AssignStaticDevice binds a device to the seat; a nil deviceID unbinds it.
	AssignStaticDevice(ctx context.Context, seatID string, deviceID *string) (model.Seat, error)
}

type SectionAdmin interface {
	CreateSection(ctx context.Context, sec model.Section) (model.Section, error)
	UpdateSection(ctx context.Context, sec model.Section) (model.Section, error)
	DeleteSection(ctx context.Context, id string) error
}

// Collaborator is everything the service needs from the system of record.
type Collaborator interface {
	SnapshotSource
	AllocationService
	SeatAdmin
	SectionAdmin
}

// FetchCollections reads every collection of a property. Any failure aborts
// the whole fetch so a snapshot is never assembled from partial data.
func FetchCollections(ctx context.Context, src SnapshotSource, propertyID string) (snapshot.Collections, error) {
	var (
		c   snapshot.Collections
		err error
	)
	if c.Seats, err = src.FetchSeats(ctx, propertyID); err != nil {
		return c, fmt.Errorf("fetch seats: %w", err)
	}
	if c.Sections, err = src.FetchSections(ctx, propertyID); err != nil {
		return c, fmt.Errorf("fetch sections: %w", err)
	}
	if c.SeatTypes, err = src.FetchSeatTypes(ctx, propertyID); err != nil {
		return c, fmt.Errorf("fetch seat types: %w", err)
	}
	if c.Devices, err = src.FetchDevices(ctx, propertyID); err != nil {
		return c, fmt.Errorf("fetch devices: %w", err)
	}
	if c.Allocations, err = src.FetchAllocations(ctx, propertyID); err != nil {
		return c, fmt.Errorf("fetch allocations: %w", err)
	}
	if c.Guests, err = src.FetchGuests(ctx, propertyID); err != nil {
		return c, fmt.Errorf("fetch guests: %w", err)
	}
	if c.Staff, err = src.FetchStaff(ctx, propertyID); err != nil {
		return c, fmt.Errorf("fetch staff: %w", err)
	}
	return c, nil
}
