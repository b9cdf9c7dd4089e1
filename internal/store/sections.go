package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"seat-allocation-backend/internal/model"
)

// assignMembers makes seatIDs exactly the members of section. Seats taken from
// another section move here, which keeps sections a partition.
func assignMembers(tx *gorm.DB, sec model.Section, seatIDs []string) error {
	if len(seatIDs) > 0 {
		var count int64
		if err := tx.Model(&model.Seat{}).Where("property_id = ? AND id IN ?", sec.PropertyID, seatIDs).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to load seats: %w", err)
		}
		if int(count) != len(seatIDs) {
			return fmt.Errorf("%w: %d of %d seats exist", model.ErrNotFound, count, len(seatIDs))
		}
	}

	release := tx.Model(&model.Seat{}).Where("section_id = ?", sec.ID)
	if len(seatIDs) > 0 {
		release = release.Where("id NOT IN ?", seatIDs)
	}
	if err := release.Update("section_id", nil).Error; err != nil {
		return fmt.Errorf("failed to release seats of section %s: %w", sec.ID, err)
	}
	if len(seatIDs) == 0 {
		return nil
	}
	if err := tx.Model(&model.Seat{}).Where("id IN ?", seatIDs).Update("section_id", sec.ID).Error; err != nil {
		return fmt.Errorf("failed to assign seats to section %s: %w", sec.ID, err)
	}
	return nil
}

func (s *gormStore) CreateSection(ctx context.Context, sec model.Section) (model.Section, error) {
	sec.Name = strings.TrimSpace(sec.Name)
	if sec.PropertyID == "" || sec.Name == "" {
		return model.Section{}, fmt.Errorf("%w: section needs a property and a name", model.ErrInput)
	}
	sec.ID = newID()
	sec.SeatIDs = orEmpty(dedupe(sec.SeatIDs))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sec).Error; err != nil {
			return fmt.Errorf("failed to create section: %w", err)
		}
		return assignMembers(tx, sec, sec.SeatIDs)
	})
	if err != nil {
		return model.Section{}, err
	}
	return sec, nil
}

func (s *gormStore) UpdateSection(ctx context.Context, sec model.Section) (model.Section, error) {
	name := strings.TrimSpace(sec.Name)
	if name == "" {
		return model.Section{}, fmt.Errorf("%w: section name is required", model.ErrInput)
	}
	seatIDs := orEmpty(dedupe(sec.SeatIDs))

	var updated model.Section
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, "id = ?", sec.ID).Error; err != nil {
			return notFound(err, "section", sec.ID)
		}
		if err := tx.Model(&updated).Update("name", name).Error; err != nil {
			return fmt.Errorf("failed to rename section %s: %w", sec.ID, err)
		}
		updated.Name = name
		updated.SeatIDs = seatIDs
		return assignMembers(tx, updated, seatIDs)
	})
	if err != nil {
		return model.Section{}, err
	}
	return updated, nil
}

// DeleteSection removes the section; its seats become ungrouped.
func (s *gormStore) DeleteSection(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Seat{}).Where("section_id = ?", id).Update("section_id", nil).Error; err != nil {
			return fmt.Errorf("failed to ungroup seats of section %s: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&model.Section{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete section %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: section %s", model.ErrNotFound, id)
		}
		return nil
	})
}
