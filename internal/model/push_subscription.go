package model

import "time"

// PushSubscription holds a browser push endpoint registered by a staff member.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	StaffID   string    `gorm:"index;size:36;not null"`
	CreatedAt time.Time `gorm:"not null"`
}
