package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// SeatStatus is the administrative state of a seat. It is independent of occupancy.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "Available"
	SeatBlocked   SeatStatus = "Blocked"
)

// ParseSeatStatus rejects any value outside the closed set.
func ParseSeatStatus(raw string) (SeatStatus, error) {
	switch s := SeatStatus(raw); s {
	case SeatAvailable, SeatBlocked:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown seat status %q", ErrProtocol, raw)
}

func (s *SeatStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: seat status: %v", ErrProtocol, err)
	}
	v, err := ParseSeatStatus(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Seat is a single assignable physical position.
type Seat struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	PropertyID     string     `gorm:"index;size:36;not null" json:"propertyId"`
	SeatNumber     string     `gorm:"size:64;not null" json:"seatNumber"`
	SeatTypeID     string     `gorm:"size:36;not null" json:"seatTypeId"`
	SectionID      *string    `gorm:"index;size:36" json:"sectionId,omitempty"`
	StaticDeviceID *string    `gorm:"size:36" json:"staticDeviceId,omitempty"`
	Status         SeatStatus `gorm:"size:16;not null" json:"status,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Section returns the seat's section id, or "" when it is ungrouped.
func (s Seat) Section() string {
	if s.SectionID == nil {
		return ""
	}
	return *s.SectionID
}

// StaticDevice returns the seat's bound device id, or "" when none.
func (s Seat) StaticDevice() string {
	if s.StaticDeviceID == nil {
		return ""
	}
	return *s.StaticDeviceID
}

// SeatType describes how a seat is displayed.
type SeatType struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	PropertyID string    `gorm:"index;size:36;not null" json:"propertyId"`
	Name       string    `gorm:"size:128;not null" json:"name"`
	Icon       string    `gorm:"size:256" json:"icon"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Section is a named partition of seats. Membership is stored on the seat;
// SeatIDs is filled in when the section is read.
type Section struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	PropertyID string    `gorm:"index;size:36;not null" json:"propertyId"`
	Name       string    `gorm:"size:128;not null" json:"name"`
	SeatIDs    []string  `gorm:"-" json:"seatIds"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Device is a pager or tablet that can be handed to a guest.
type Device struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	PropertyID  string    `gorm:"index;size:36;not null" json:"propertyId"`
	DeviceLabel string    `gorm:"column:device_label;size:64;not null" json:"deviceId"`
	Enabled     bool      `gorm:"not null" json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
}
