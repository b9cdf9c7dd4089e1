package model

import "time"

// Guest is a known occupant, keyed by room number.
type Guest struct {
	RoomNumber string    `gorm:"primaryKey;size:32" json:"roomNumber"`
	PropertyID string    `gorm:"primaryKey;size:36" json:"propertyId"`
	Name       string    `gorm:"size:256;not null" json:"name"`
	Category   *string   `gorm:"size:64" json:"category,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Staff is a property employee; F&B managers own allocations.
type Staff struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	PropertyID string    `gorm:"index;size:36;not null" json:"propertyId"`
	Name       string    `gorm:"size:256;not null" json:"name"`
	Role       string    `gorm:"size:64" json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
}
