package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"seat-allocation-backend/internal/bulk"
	"seat-allocation-backend/internal/collaborator"
	"seat-allocation-backend/internal/model"
)

const bulkBatchSize = 100

var newID = uuid.NewString

// checkSeatRefs verifies the seat type, section and static device a seat points at.
func checkSeatRefs(tx *gorm.DB, seat model.Seat) error {
	var count int64
	if err := tx.Model(&model.SeatType{}).Where("property_id = ? AND id = ?", seat.PropertyID, seat.SeatTypeID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to load seat type: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: seat type %s", model.ErrNotFound, seat.SeatTypeID)
	}
	if seat.SectionID != nil {
		if err := tx.Model(&model.Section{}).Where("property_id = ? AND id = ?", seat.PropertyID, *seat.SectionID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to load section: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: section %s", model.ErrNotFound, *seat.SectionID)
		}
	}
	if seat.StaticDeviceID != nil {
		if err := tx.Model(&model.Device{}).Where("property_id = ? AND id = ?", seat.PropertyID, *seat.StaticDeviceID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to load device: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: device %s", model.ErrNotFound, *seat.StaticDeviceID)
		}
	}
	return nil
}

// checkSeatNumbersFree fails with ErrConflict when any number is already used
// by another seat of the property.
func checkSeatNumbersFree(tx *gorm.DB, propertyID string, numbers []string, exceptID string) error {
	q := tx.Model(&model.Seat{}).Where("property_id = ? AND seat_number IN ?", propertyID, numbers)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var existing []string
	if err := q.Order("seat_number").Pluck("seat_number", &existing).Error; err != nil {
		return fmt.Errorf("failed to check seat numbers: %w", err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: seat numbers already exist: %s", model.ErrConflict, strings.Join(existing, ", "))
	}
	return nil
}

func (s *gormStore) CreateSeat(ctx context.Context, seat model.Seat) (model.Seat, error) {
	seat.SeatNumber = strings.TrimSpace(seat.SeatNumber)
	if seat.PropertyID == "" || seat.SeatNumber == "" || seat.SeatTypeID == "" {
		return model.Seat{}, fmt.Errorf("%w: seat needs a property, a seat number and a seat type", model.ErrInput)
	}
	if seat.Status == "" {
		seat.Status = model.SeatAvailable
	}
	seat.ID = newID()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkSeatRefs(tx, seat); err != nil {
			return err
		}
		if err := checkSeatNumbersFree(tx, seat.PropertyID, []string{seat.SeatNumber}, ""); err != nil {
			return err
		}
		if err := tx.Create(&seat).Error; err != nil {
			return fmt.Errorf("failed to create seat: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Seat{}, err
	}
	return seat, nil
}

func (s *gormStore) UpdateSeat(ctx context.Context, seat model.Seat) (model.Seat, error) {
	seat.SeatNumber = strings.TrimSpace(seat.SeatNumber)
	if seat.SeatNumber == "" || seat.SeatTypeID == "" {
		return model.Seat{}, fmt.Errorf("%w: seat needs a seat number and a seat type", model.ErrInput)
	}
	if _, err := model.ParseSeatStatus(string(seat.Status)); err != nil {
		return model.Seat{}, fmt.Errorf("%w: %v", model.ErrInput, err)
	}

	var updated model.Seat
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, "id = ?", seat.ID).Error; err != nil {
			return notFound(err, "seat", seat.ID)
		}
		seat.PropertyID = updated.PropertyID
		if err := checkSeatRefs(tx, seat); err != nil {
			return err
		}
		if err := checkSeatNumbersFree(tx, seat.PropertyID, []string{seat.SeatNumber}, seat.ID); err != nil {
			return err
		}
		updated.SeatNumber = seat.SeatNumber
		updated.SeatTypeID = seat.SeatTypeID
		updated.SectionID = seat.SectionID
		updated.StaticDeviceID = seat.StaticDeviceID
		updated.Status = seat.Status
		if err := tx.Save(&updated).Error; err != nil {
			return fmt.Errorf("failed to update seat %s: %w", seat.ID, err)
		}
		return nil
	})
	if err != nil {
		return model.Seat{}, err
	}
	return updated, nil
}

// DeleteSeat refuses to delete a seat held by an active allocation.
func (s *gormStore) DeleteSeat(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hold model.SeatHold
		err := tx.First(&hold, "seat_id = ?", id).Error
		switch {
		case err == nil:
			return fmt.Errorf("%w: seat %s is held by allocation %s", model.ErrConflict, id, hold.AllocationID)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to check seat hold: %w", err)
		}

		res := tx.Where("id = ?", id).Delete(&model.Seat{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete seat %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: seat %s", model.ErrNotFound, id)
		}
		return nil
	})
}

// BulkCreateSeats creates one seat per generated seat number, all or nothing.
func (s *gormStore) BulkCreateSeats(ctx context.Context, req collaborator.BulkSeatRequest) ([]model.Seat, error) {
	numbers, err := bulk.Generate(bulk.Request{Prefix: req.Prefix, Suffix: req.Suffix, Start: req.Start, End: req.End})
	if err != nil {
		return nil, err
	}
	if req.PropertyID == "" || req.SeatTypeID == "" {
		return nil, fmt.Errorf("%w: bulk creation needs a property and a seat type", model.ErrInput)
	}

	seats := make([]model.Seat, len(numbers))
	for i, n := range numbers {
		seats[i] = model.Seat{
			ID:         newID(),
			PropertyID: req.PropertyID,
			SeatNumber: n,
			SeatTypeID: req.SeatTypeID,
			SectionID:  req.SectionID,
			Status:     model.SeatAvailable,
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkSeatRefs(tx, seats[0]); err != nil {
			return err
		}
		if err := checkSeatNumbersFree(tx, req.PropertyID, numbers, ""); err != nil {
			return err
		}
		if err := tx.CreateInBatches(&seats, bulkBatchSize).Error; err != nil {
			return fmt.Errorf("batch create seats failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("seats created in bulk", zap.String("property_id", req.PropertyID), zap.Int("count", len(seats)))
	return seats, nil
}

func (s *gormStore) SetSeatBlocked(ctx context.Context, id string, blocked bool) (model.Seat, error) {
	status := model.SeatAvailable
	if blocked {
		status = model.SeatBlocked
	}
	var seat model.Seat
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&seat, "id = ?", id).Error; err != nil {
			return notFound(err, "seat", id)
		}
		seat.Status = status
		return tx.Model(&seat).Update("status", status).Error
	})
	if err != nil {
		return model.Seat{}, err
	}
	return seat, nil
}

func (s *gormStore) AssignStaticDevice(ctx context.Context, seatID string, deviceID *string) (model.Seat, error) {
	var seat model.Seat
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&seat, "id = ?", seatID).Error; err != nil {
			return notFound(err, "seat", seatID)
		}
		if deviceID != nil {
			var d model.Device
			if err := tx.First(&d, "property_id = ? AND id = ?", seat.PropertyID, *deviceID).Error; err != nil {
				return notFound(err, "device", *deviceID)
			}
		}
		seat.StaticDeviceID = deviceID
		return tx.Model(&seat).Update("static_device_id", deviceID).Error
	})
	if err != nil {
		return model.Seat{}, err
	}
	return seat, nil
}
