package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// AllocationStatus is the lifecycle stage of an allocation. Staff may move it
// forwards or backwards; only Complete releases the seats.
type AllocationStatus string

const (
	StatusFree     AllocationStatus = "Free"
	StatusSeated   AllocationStatus = "Seated"
	StatusActive   AllocationStatus = "Active"
	StatusBilling  AllocationStatus = "Billing"
	StatusClear    AllocationStatus = "Clear"
	StatusComplete AllocationStatus = "Complete"
)

// AllocationStatuses lists the lifecycle in display order.
var AllocationStatuses = []AllocationStatus{
	StatusFree, StatusSeated, StatusActive, StatusBilling, StatusClear, StatusComplete,
}

// ParseAllocationStatus rejects any value outside the closed set.
func ParseAllocationStatus(raw string) (AllocationStatus, error) {
	for _, s := range AllocationStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown allocation status %q", ErrProtocol, raw)
}

func (s *AllocationStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: allocation status: %v", ErrProtocol, err)
	}
	v, err := ParseAllocationStatus(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// CallingFlag is the attention signal raised by a guest.
type CallingFlag string

const (
	NonCalling         CallingFlag = "Non Calling"
	Calling            CallingFlag = "Calling"
	CallingForCheckout CallingFlag = "Calling for Checkout"
)

// ParseCallingFlag rejects any value outside the closed set.
func ParseCallingFlag(raw string) (CallingFlag, error) {
	switch f := CallingFlag(raw); f {
	case NonCalling, Calling, CallingForCheckout:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown calling flag %q", ErrProtocol, raw)
}

func (f *CallingFlag) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: calling flag: %v", ErrProtocol, err)
	}
	v, err := ParseCallingFlag(raw)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// IsCalling reports whether the flag drives escalation.
func (f CallingFlag) IsCalling() bool {
	return f == Calling || f == CallingForCheckout
}

// Allocation is a guest's hold on one or more seats for a service period.
type Allocation struct {
	ID             string           `gorm:"primaryKey;size:36" json:"id"`
	PropertyID     string           `gorm:"index;size:36;not null" json:"propertyId"`
	RoomNumber     string           `gorm:"size:32;not null" json:"roomNumber"`
	GuestName      string           `gorm:"size:256" json:"guestName"`
	GuestCategory  *string          `gorm:"size:64" json:"guestCategory,omitempty"`
	FBManagerID    string           `gorm:"column:fb_manager_id;size:36;not null" json:"fbManagerId"`
	SeatIDs        []string         `gorm:"-" json:"seatIds"`
	DeviceIDs      []string         `gorm:"-" json:"deviceIds"`
	AllocationDate time.Time        `gorm:"index;not null" json:"allocationDate"`
	Status         AllocationStatus `gorm:"size:16;not null" json:"status"`
	CallingFlag    CallingFlag      `gorm:"size:32;not null" json:"callingFlag"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// IsActive reports whether the allocation still holds its seats.
func (a Allocation) IsActive() bool {
	return a.Status != StatusComplete
}

// AllocationSeat links an allocation to one of its seats.
type AllocationSeat struct {
	AllocationID string `gorm:"primaryKey;size:36"`
	SeatID       string `gorm:"primaryKey;size:36;index"`
}

// AllocationDevice links an allocation to one of its devices.
type AllocationDevice struct {
	AllocationID string `gorm:"primaryKey;size:36"`
	DeviceID     string `gorm:"primaryKey;size:36;index"`
}

// SeatHold exists while an active allocation holds a seat. The primary key on
// SeatID is what arbitrates two clients racing for the same seat.
type SeatHold struct {
	SeatID       string    `gorm:"primaryKey;size:36"`
	AllocationID string    `gorm:"index;size:36;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// NewAllocation is the payload of an allocation creation request.
type NewAllocation struct {
	PropertyID     string    `json:"propertyId"`
	RoomNumber     string    `json:"roomNumber"`
	GuestName      string    `json:"guestName,omitempty"`
	GuestCategory  *string   `json:"guestCategory,omitempty"`
	FBManagerID    string    `json:"fbManagerId"`
	SeatIDs        []string  `json:"seatIds"`
	DeviceIDs      []string  `json:"deviceIds"`
	AllocationDate time.Time `json:"allocationDate"`
}

// Day truncates t to midnight UTC, the granularity of allocation dates.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
