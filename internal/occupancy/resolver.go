// Package occupancy derives the displayed state of each seat from a snapshot
// and the current time.
package occupancy

import (
	"sort"
	"time"

	"seat-allocation-backend/internal/escalation"
	"seat-allocation-backend/internal/model"
	"seat-allocation-backend/internal/section"
	"seat-allocation-backend/internal/snapshot"
)

// Label is what a seat shows on the board.
type Label string

const (
	LabelFree               Label = "Free"
	LabelSeated             Label = "Seated"
	LabelActive             Label = "Active"
	LabelBilling            Label = "Billing"
	LabelClear              Label = "Clear"
	LabelCalling            Label = "Calling"
	LabelCallingForCheckout Label = "Calling for Checkout"
)

// Status is the resolved state of one seat at one instant.
type Status struct {
	Label          Label             `json:"label"`
	Tier           *escalation.Tier  `json:"tier,omitempty"`
	ElapsedSeconds int64             `json:"elapsedSeconds,omitempty"`
	Allocation     *model.Allocation `json:"allocation,omitempty"`
}

type Resolver struct {
	snap *snapshot.Snapshot
}

func NewResolver(snap *snapshot.Snapshot) Resolver {
	return Resolver{snap: snap}
}

// Resolve returns the seat's status at now. Only the tier depends on now.
func (r Resolver) Resolve(seatID string, now time.Time) Status {
	alloc, ok := r.snap.ActiveAllocation(seatID)
	if !ok {
		return Status{Label: LabelFree}
	}

	if escalation.Applies(alloc.CallingFlag) {
		elapsed := escalation.Elapsed(now, alloc.UpdatedAt)
		tier := escalation.TierFor(float64(elapsed))
		label := LabelCalling
		if alloc.CallingFlag == model.CallingForCheckout {
			label = LabelCallingForCheckout
		}
		return Status{Label: label, Tier: &tier, ElapsedSeconds: elapsed, Allocation: &alloc}
	}

	return Status{Label: Label(alloc.Status), Allocation: &alloc}
}

// Board is the layout of a snapshot together with every seat's status.
type Board struct {
	At        time.Time         `json:"at"`
	Seq       uint64            `json:"seq"`
	FetchedAt time.Time         `json:"fetchedAt"`
	Layout    section.Layout    `json:"layout"`
	Statuses  map[string]Status `json:"statuses"`
}

// BuildBoard resolves all seats of snap against a single instant.
func BuildBoard(snap *snapshot.Snapshot, restrictSectionID string, now time.Time) Board {
	r := NewResolver(snap)
	statuses := make(map[string]Status, len(snap.Seats()))
	for _, seat := range snap.Seats() {
		statuses[seat.ID] = r.Resolve(seat.ID, now)
	}
	return Board{
		At:        now,
		Seq:       snap.Seq,
		FetchedAt: snap.FetchedAt,
		Layout:    section.Build(snap, restrictSectionID),
		Statuses:  statuses,
	}
}

// Critical returns the allocations that are calling at the Critical tier.
func (b Board) Critical() []model.Allocation {
	seen := make(map[string]struct{})
	var out []model.Allocation
	for _, st := range b.Statuses {
		if st.Tier == nil || *st.Tier != escalation.Critical || st.Allocation == nil {
			continue
		}
		if _, ok := seen[st.Allocation.ID]; ok {
			continue
		}
		seen[st.Allocation.ID] = struct{}{}
		out = append(out, *st.Allocation)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
