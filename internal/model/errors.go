package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds shared by the core and its collaborators. Check them with errors.Is.
var (
	// ErrInput is returned for a malformed field, before any collaborator call.
	ErrInput = errors.New("invalid input")
	// ErrRange is returned when a numeric range is inverted.
	ErrRange = errors.New("invalid range")
	// ErrTooManyItems is returned when a bulk request exceeds the size limit.
	ErrTooManyItems = errors.New("too many items")
	// ErrConflict is returned when a seat or device is already held by another active allocation.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrProtocol is returned when a collaborator payload has an unexpected shape or value.
	ErrProtocol = errors.New("protocol violation")
	// ErrOperation is the generic collaborator failure (network, timeout, unexpected status).
	ErrOperation = errors.New("operation failed")
)

// ConsistencyWarning reports a seat referenced by more than one active allocation.
// It never blocks rendering: Chosen is the allocation the seat was attributed to.
type ConsistencyWarning struct {
	SeatID        string   `json:"seatId"`
	AllocationIDs []string `json:"allocationIds"`
	Chosen        string   `json:"chosen"`
}

func (w ConsistencyWarning) String() string {
	return fmt.Sprintf("seat %s is held by %d active allocations (%s); using %s",
		w.SeatID, len(w.AllocationIDs), strings.Join(w.AllocationIDs, ", "), w.Chosen)
}
