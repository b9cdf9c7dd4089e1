// Package section partitions a property's seats by section and by the active
// allocation that holds them.
package section

import (
	"sort"

	"seat-allocation-backend/internal/model"
	"seat-allocation-backend/internal/snapshot"
)

// AllocationGroup is the set of seats one active allocation holds within a group.
type AllocationGroup struct {
	Allocation model.Allocation `json:"allocation"`
	Seats      []model.Seat     `json:"seats"`
}

// Group is one section, or the ungrouped remainder when Section is nil.
type Group struct {
	Section     *model.Section    `json:"section,omitempty"`
	Seats       []model.Seat      `json:"seats"`
	Allocations []AllocationGroup `json:"allocations"`
	Free        []model.Seat      `json:"free"`
}

// Layout is the full partition of a snapshot's seats.
type Layout struct {
	Sections  []Group                    `json:"sections"`
	Ungrouped Group                      `json:"ungrouped"`
	Warnings  []model.ConsistencyWarning `json:"warnings,omitempty"`
}

// Build partitions the snapshot's seats. When restrictSectionID is set only
// that section is retained and the seats of every other section fall into
// Ungrouped, which is how a staff member scoped to one section sees the floor.
func Build(snap *snapshot.Snapshot, restrictSectionID string) Layout {
	retained := make(map[string]int)
	var layout Layout
	for _, sec := range snap.Sections() {
		if restrictSectionID != "" && sec.ID != restrictSectionID {
			continue
		}
		sec := sec
		retained[sec.ID] = len(layout.Sections)
		layout.Sections = append(layout.Sections, Group{Section: &sec})
	}

	var ungrouped []model.Seat
	for _, seat := range snap.Seats() {
		if idx, ok := retained[seat.Section()]; ok {
			layout.Sections[idx].Seats = append(layout.Sections[idx].Seats, seat)
			continue
		}
		ungrouped = append(ungrouped, seat)
	}

	for i := range layout.Sections {
		fill(snap, &layout.Sections[i])
	}
	layout.Ungrouped.Seats = ungrouped
	fill(snap, &layout.Ungrouped)
	layout.Warnings = snap.Warnings()
	return layout
}

// fill splits g.Seats into allocation groups and free seats, keeping seat order.
func fill(snap *snapshot.Snapshot, g *Group) {
	g.Allocations = []AllocationGroup{}
	g.Free = []model.Seat{}
	if g.Seats == nil {
		g.Seats = []model.Seat{}
	}

	byAllocation := make(map[string]int)
	for _, seat := range g.Seats {
		a, ok := snap.ActiveAllocation(seat.ID)
		if !ok {
			g.Free = append(g.Free, seat)
			continue
		}
		idx, seen := byAllocation[a.ID]
		if !seen {
			idx = len(g.Allocations)
			byAllocation[a.ID] = idx
			g.Allocations = append(g.Allocations, AllocationGroup{Allocation: a})
		}
		g.Allocations[idx].Seats = append(g.Allocations[idx].Seats, seat)
	}

	sort.SliceStable(g.Allocations, func(i, j int) bool {
		return g.Allocations[i].Allocation.ID < g.Allocations[j].Allocation.ID
	})
}
