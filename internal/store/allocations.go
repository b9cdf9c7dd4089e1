package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"seat-allocation-backend/internal/model"
)

func (s *gormStore) FetchAllocations(ctx context.Context, propertyID string) ([]model.Allocation, error) {
	db := s.db.WithContext(ctx)
	var allocs []model.Allocation
	if err := db.Where("property_id = ?", propertyID).Order("id").Find(&allocs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch allocations: %w", err)
	}
	if err := attachLinks(db, allocs); err != nil {
		return nil, err
	}
	return allocs, nil
}

// attachLinks fills SeatIDs and DeviceIDs from the join tables.
func attachLinks(tx *gorm.DB, allocs []model.Allocation) error {
	if len(allocs) == 0 {
		return nil
	}
	ids := make([]string, len(allocs))
	for i, a := range allocs {
		ids[i] = a.ID
	}

	var seats []model.AllocationSeat
	if err := tx.Where("allocation_id IN ?", ids).Order("seat_id").Find(&seats).Error; err != nil {
		return fmt.Errorf("failed to fetch allocation seats: %w", err)
	}
	var devices []model.AllocationDevice
	if err := tx.Where("allocation_id IN ?", ids).Order("device_id").Find(&devices).Error; err != nil {
		return fmt.Errorf("failed to fetch allocation devices: %w", err)
	}

	seatsByAlloc := make(map[string][]string)
	for _, l := range seats {
		seatsByAlloc[l.AllocationID] = append(seatsByAlloc[l.AllocationID], l.SeatID)
	}
	devicesByAlloc := make(map[string][]string)
	for _, l := range devices {
		devicesByAlloc[l.AllocationID] = append(devicesByAlloc[l.AllocationID], l.DeviceID)
	}
	for i := range allocs {
		allocs[i].SeatIDs = orEmpty(seatsByAlloc[allocs[i].ID])
		allocs[i].DeviceIDs = orEmpty(devicesByAlloc[allocs[i].ID])
	}
	return nil
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func (s *gormStore) FetchAllocatedSeatIDs(ctx context.Context, propertyID string, date time.Time) ([]string, error) {
	day := model.Day(date)
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.AllocationSeat{}).
		Distinct("allocation_seats.seat_id").
		Joins("JOIN allocations ON allocations.id = allocation_seats.allocation_id").
		Where("allocations.property_id = ? AND allocations.status <> ?", propertyID, model.StatusComplete).
		Where("allocations.allocation_date >= ? AND allocations.allocation_date < ?", day, day.AddDate(0, 0, 1)).
		Order("allocation_seats.seat_id").
		Pluck("allocation_seats.seat_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch allocated seats: %w", err)
	}
	return orEmpty(ids), nil
}

func (s *gormStore) FetchAllocatedDeviceIDs(ctx context.Context, propertyID string, date time.Time) ([]string, error) {
	day := model.Day(date)
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.AllocationDevice{}).
		Distinct("allocation_devices.device_id").
		Joins("JOIN allocations ON allocations.id = allocation_devices.allocation_id").
		Where("allocations.property_id = ? AND allocations.status <> ?", propertyID, model.StatusComplete).
		Where("allocations.allocation_date >= ? AND allocations.allocation_date < ?", day, day.AddDate(0, 0, 1)).
		Order("allocation_devices.device_id").
		Pluck("allocation_devices.device_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch allocated devices: %w", err)
	}
	return orEmpty(ids), nil
}

// CreateAllocation validates the request and stores it with status Seated.
// Seat holds are taken in the same transaction; if another allocation got
// there first the whole creation fails with ErrConflict.
func (s *gormStore) CreateAllocation(ctx context.Context, req model.NewAllocation) (model.Allocation, error) {
	room := strings.TrimSpace(req.RoomNumber)
	seatIDs := dedupe(req.SeatIDs)
	deviceIDs := dedupe(req.DeviceIDs)
	switch {
	case req.PropertyID == "":
		return model.Allocation{}, fmt.Errorf("%w: property is required", model.ErrInput)
	case room == "":
		return model.Allocation{}, fmt.Errorf("%w: room number is required", model.ErrInput)
	case req.FBManagerID == "":
		return model.Allocation{}, fmt.Errorf("%w: F&B manager is required", model.ErrInput)
	case len(seatIDs) == 0:
		return model.Allocation{}, fmt.Errorf("%w: at least one seat is required", model.ErrInput)
	}

	now := s.now()
	date := req.AllocationDate
	if date.IsZero() {
		date = now
	}
	alloc := model.Allocation{
		ID:             newID(),
		PropertyID:     req.PropertyID,
		RoomNumber:     room,
		GuestName:      req.GuestName,
		GuestCategory:  req.GuestCategory,
		FBManagerID:    req.FBManagerID,
		AllocationDate: model.Day(date),
		Status:         model.StatusSeated,
		CallingFlag:    model.NonCalling,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var guest model.Guest
		if err := tx.First(&guest, "property_id = ? AND room_number = ?", req.PropertyID, room).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: unknown room %s", model.ErrInput, room)
			}
			return fmt.Errorf("failed to load guest: %w", err)
		}
		if alloc.GuestName == "" {
			alloc.GuestName = guest.Name
		}
		if alloc.GuestCategory == nil {
			alloc.GuestCategory = guest.Category
		}

		var manager model.Staff
		if err := tx.First(&manager, "property_id = ? AND id = ?", req.PropertyID, req.FBManagerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: unknown staff %s", model.ErrInput, req.FBManagerID)
			}
			return fmt.Errorf("failed to load staff: %w", err)
		}

		var seats []model.Seat
		if err := tx.Where("property_id = ? AND id IN ?", req.PropertyID, seatIDs).Find(&seats).Error; err != nil {
			return fmt.Errorf("failed to load seats: %w", err)
		}
		if len(seats) != len(seatIDs) {
			return fmt.Errorf("%w: %d of %d seats exist", model.ErrNotFound, len(seats), len(seatIDs))
		}
		for _, seat := range seats {
			if seat.Status == model.SeatBlocked {
				return fmt.Errorf("%w: seat %s is blocked", model.ErrConflict, seat.SeatNumber)
			}
		}

		if len(deviceIDs) > 0 {
			var count int64
			if err := tx.Model(&model.Device{}).Where("property_id = ? AND id IN ?", req.PropertyID, deviceIDs).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to load devices: %w", err)
			}
			if int(count) != len(deviceIDs) {
				return fmt.Errorf("%w: %d of %d devices exist", model.ErrNotFound, count, len(deviceIDs))
			}
		}

		if err := tx.Create(&alloc).Error; err != nil {
			return fmt.Errorf("failed to create allocation: %w", err)
		}
		links := make([]model.AllocationSeat, len(seatIDs))
		for i, id := range seatIDs {
			links[i] = model.AllocationSeat{AllocationID: alloc.ID, SeatID: id}
		}
		if err := tx.Create(&links).Error; err != nil {
			return fmt.Errorf("failed to link seats: %w", err)
		}
		if len(deviceIDs) > 0 {
			devLinks := make([]model.AllocationDevice, len(deviceIDs))
			for i, id := range deviceIDs {
				devLinks[i] = model.AllocationDevice{AllocationID: alloc.ID, DeviceID: id}
			}
			if err := tx.Create(&devLinks).Error; err != nil {
				return fmt.Errorf("failed to link devices: %w", err)
			}
		}
		return s.hold(tx, alloc.ID, seatIDs, now)
	})
	if err != nil {
		return model.Allocation{}, err
	}

	alloc.SeatIDs = seatIDs
	alloc.DeviceIDs = deviceIDs
	s.logger.Info("allocation created",
		zap.String("allocation_id", alloc.ID),
		zap.String("room", alloc.RoomNumber),
		zap.Strings("seat_ids", seatIDs))
	return alloc, nil
}

// hold takes the seat holds of an allocation, failing with ErrConflict when
// any seat is already held.
func (s *gormStore) hold(tx *gorm.DB, allocationID string, seatIDs []string, now time.Time) error {
	if len(seatIDs) == 0 {
		return nil
	}
	var taken []model.SeatHold
	if err := tx.Where("seat_id IN ?", seatIDs).Find(&taken).Error; err != nil {
		return fmt.Errorf("failed to check seat holds: %w", err)
	}
	if len(taken) > 0 {
		return conflictFor(tx, taken)
	}

	holds := make([]model.SeatHold, len(seatIDs))
	for i, id := range seatIDs {
		holds[i] = model.SeatHold{SeatID: id, AllocationID: allocationID, CreatedAt: now}
	}
	if err := tx.Create(&holds).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: a seat was taken by a concurrent allocation", model.ErrConflict)
		}
		return fmt.Errorf("failed to hold seats: %w", err)
	}
	return nil
}

func conflictFor(tx *gorm.DB, taken []model.SeatHold) error {
	ids := make([]string, len(taken))
	for i, h := range taken {
		ids[i] = h.SeatID
	}
	var numbers []string
	if err := tx.Model(&model.Seat{}).Where("id IN ?", ids).Order("seat_number").Pluck("seat_number", &numbers).Error; err != nil || len(numbers) == 0 {
		numbers = ids
	}
	return fmt.Errorf("%w: seats already allocated: %s", model.ErrConflict, strings.Join(numbers, ", "))
}

func (s *gormStore) loadAllocation(tx *gorm.DB, id string) (model.Allocation, error) {
	var alloc model.Allocation
	if err := tx.First(&alloc, "id = ?", id).Error; err != nil {
		return model.Allocation{}, notFound(err, "allocation", id)
	}
	allocs := []model.Allocation{alloc}
	if err := attachLinks(tx, allocs); err != nil {
		return model.Allocation{}, err
	}
	return allocs[0], nil
}

// transition moves alloc to status, releasing its seat holds when it becomes
// Complete and retaking them when it leaves Complete.
func (s *gormStore) transition(tx *gorm.DB, alloc *model.Allocation, status model.AllocationStatus, now time.Time) error {
	wasActive := alloc.IsActive()
	alloc.Status = status
	switch {
	case wasActive && !alloc.IsActive():
		if err := tx.Where("allocation_id = ?", alloc.ID).Delete(&model.SeatHold{}).Error; err != nil {
			return fmt.Errorf("failed to release seats of allocation %s: %w", alloc.ID, err)
		}
		alloc.CallingFlag = model.NonCalling
	case !wasActive && alloc.IsActive():
		if err := s.hold(tx, alloc.ID, alloc.SeatIDs, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *gormStore) saveState(tx *gorm.DB, alloc *model.Allocation, now time.Time) error {
	alloc.UpdatedAt = now
	return tx.Model(&model.Allocation{}).Where("id = ?", alloc.ID).Updates(map[string]any{
		"status":       alloc.Status,
		"calling_flag": alloc.CallingFlag,
		"updated_at":   now,
	}).Error
}

func (s *gormStore) UpdateAllocationStatus(ctx context.Context, id string, status model.AllocationStatus) (model.Allocation, error) {
	if _, err := model.ParseAllocationStatus(string(status)); err != nil {
		return model.Allocation{}, fmt.Errorf("%w: %v", model.ErrInput, err)
	}

	var alloc model.Allocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if alloc, err = s.loadAllocation(tx, id); err != nil {
			return err
		}
		now := s.now()
		if err := s.transition(tx, &alloc, status, now); err != nil {
			return err
		}
		if err := s.saveState(tx, &alloc, now); err != nil {
			return fmt.Errorf("failed to update allocation %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return model.Allocation{}, err
	}
	s.logger.Info("allocation status updated", zap.String("allocation_id", id), zap.String("status", string(alloc.Status)))
	return alloc, nil
}

// UpdateAllocationCallingFlag sets the flag and, for Calling for Checkout,
// moves the allocation to Billing in the same transaction.
func (s *gormStore) UpdateAllocationCallingFlag(ctx context.Context, id string, flag model.CallingFlag) (model.Allocation, error) {
	if _, err := model.ParseCallingFlag(string(flag)); err != nil {
		return model.Allocation{}, fmt.Errorf("%w: %v", model.ErrInput, err)
	}

	var alloc model.Allocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if alloc, err = s.loadAllocation(tx, id); err != nil {
			return err
		}
		if !alloc.IsActive() && flag.IsCalling() {
			return fmt.Errorf("%w: allocation %s is complete", model.ErrConflict, id)
		}
		now := s.now()
		if flag == model.CallingForCheckout {
			if err := s.transition(tx, &alloc, model.StatusBilling, now); err != nil {
				return err
			}
		}
		alloc.CallingFlag = flag
		if err := s.saveState(tx, &alloc, now); err != nil {
			return fmt.Errorf("failed to update allocation %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return model.Allocation{}, err
	}
	s.logger.Info("allocation calling flag updated",
		zap.String("allocation_id", id),
		zap.String("calling_flag", string(alloc.CallingFlag)),
		zap.String("status", string(alloc.Status)))
	return alloc, nil
}

// DeleteAllocation removes the allocation with its links and holds.
func (s *gormStore) DeleteAllocation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("allocation_id = ?", id).Delete(&model.SeatHold{}).Error; err != nil {
			return fmt.Errorf("failed to release seats: %w", err)
		}
		if err := tx.Where("allocation_id = ?", id).Delete(&model.AllocationSeat{}).Error; err != nil {
			return fmt.Errorf("failed to unlink seats: %w", err)
		}
		if err := tx.Where("allocation_id = ?", id).Delete(&model.AllocationDevice{}).Error; err != nil {
			return fmt.Errorf("failed to unlink devices: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.Allocation{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete allocation %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: allocation %s", model.ErrNotFound, id)
		}
		s.logger.Info("allocation deleted", zap.String("allocation_id", id))
		return nil
	})
}
