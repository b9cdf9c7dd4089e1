package model

import "time"

// EscalationAlert is emitted once when a calling allocation reaches the top urgency tier.
type EscalationAlert struct {
	AllocationID   string      `json:"allocationId"`
	PropertyID     string      `json:"propertyId"`
	RoomNumber     string      `json:"roomNumber"`
	GuestName      string      `json:"guestName"`
	FBManagerID    string      `json:"fbManagerId"`
	CallingFlag    CallingFlag `json:"callingFlag"`
	SeatNumbers    []string    `json:"seatNumbers"`
	Tier           string      `json:"tier"`
	ElapsedSeconds int64       `json:"elapsedSeconds"`
	CallingSince   time.Time   `json:"callingSince"`
	RaisedAt       time.Time   `json:"raisedAt"`
}
