package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"seat-allocation-backend/internal/collaborator"
	"seat-allocation-backend/internal/model"
)

// Store is the database-backed collaborator. Besides the collaborator
// operations it manages the reference data that staff maintain elsewhere.
type Store interface {
	collaborator.Collaborator

	CreateSeatType(ctx context.Context, t model.SeatType) (model.SeatType, error)
	CreateDevice(ctx context.Context, d model.Device) (model.Device, error)
	SetDeviceEnabled(ctx context.Context, id string, enabled bool) (model.Device, error)
	UpsertGuest(ctx context.Context, g model.Guest) (model.Guest, error)
	CreateStaff(ctx context.Context, s model.Staff) (model.Staff, error)

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a gormStore.
type Option func(*gormStore)

// WithClock overrides the time source used for updatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *gormStore) { s.now = now }
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, logger *zap.Logger, opts ...Option) Store {
	s := &gormStore{
		db:     db,
		logger: logger.With(zap.String("component", "store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *gormStore) DB() *gorm.DB { return s.db }

// isDuplicate reports a unique constraint violation. Not every dialector
// translates errors, so the driver messages are matched too.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}

// notFound maps gorm's record-not-found to the shared sentinel.
func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", model.ErrNotFound, what, id)
	}
	return fmt.Errorf("failed to load %s %s: %w", what, id, err)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// --- Snapshot reads ---

func (s *gormStore) FetchSeats(ctx context.Context, propertyID string) ([]model.Seat, error) {
	var seats []model.Seat
	if err := s.db.WithContext(ctx).Where("property_id = ?", propertyID).Order("seat_number, id").Find(&seats).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch seats: %w", err)
	}
	return seats, nil
}

func (s *gormStore) FetchSections(ctx context.Context, propertyID string) ([]model.Section, error) {
	var sections []model.Section
	if err := s.db.WithContext(ctx).Where("property_id = ?", propertyID).Order("name, id").Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sections: %w", err)
	}

	var members []model.Seat
	if err := s.db.WithContext(ctx).Select("id", "section_id").
		Where("property_id = ? AND section_id IS NOT NULL", propertyID).
		Order("id").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch section members: %w", err)
	}
	bySection := make(map[string][]string)
	for _, seat := range members {
		bySection[seat.Section()] = append(bySection[seat.Section()], seat.ID)
	}
	for i := range sections {
		sections[i].SeatIDs = bySection[sections[i].ID]
		if sections[i].SeatIDs == nil {
			sections[i].SeatIDs = []string{}
		}
	}
	return sections, nil
}

func (s *gormStore) FetchSeatTypes(ctx context.Context, propertyID string) ([]model.SeatType, error) {
	var types []model.SeatType
	if err := s.db.WithContext(ctx).Where("property_id = ?", propertyID).Order("name, id").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch seat types: %w", err)
	}
	return types, nil
}

func (s *gormStore) FetchDevices(ctx context.Context, propertyID string) ([]model.Device, error) {
	var devices []model.Device
	if err := s.db.WithContext(ctx).Where("property_id = ?", propertyID).Order("device_label, id").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch devices: %w", err)
	}
	return devices, nil
}

func (s *gormStore) FetchGuests(ctx context.Context, propertyID string) ([]model.Guest, error) {
	var guests []model.Guest
	if err := s.db.WithContext(ctx).Where("property_id = ?", propertyID).Order("room_number").Find(&guests).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch guests: %w", err)
	}
	return guests, nil
}

func (s *gormStore) FetchStaff(ctx context.Context, propertyID string) ([]model.Staff, error) {
	var staff []model.Staff
	if err := s.db.WithContext(ctx).Where("property_id = ?", propertyID).Order("name, id").Find(&staff).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch staff: %w", err)
	}
	return staff, nil
}

// --- Reference data ---

func (s *gormStore) CreateSeatType(ctx context.Context, t model.SeatType) (model.SeatType, error) {
	if t.PropertyID == "" || strings.TrimSpace(t.Name) == "" {
		return model.SeatType{}, fmt.Errorf("%w: seat type needs a property and a name", model.ErrInput)
	}
	if t.ID == "" {
		t.ID = newID()
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return model.SeatType{}, fmt.Errorf("failed to create seat type: %w", err)
	}
	return t, nil
}

func (s *gormStore) CreateDevice(ctx context.Context, d model.Device) (model.Device, error) {
	if d.PropertyID == "" || strings.TrimSpace(d.DeviceLabel) == "" {
		return model.Device{}, fmt.Errorf("%w: device needs a property and a label", model.ErrInput)
	}
	if d.ID == "" {
		d.ID = newID()
	}
	if err := s.db.WithContext(ctx).Create(&d).Error; err != nil {
		return model.Device{}, fmt.Errorf("failed to create device: %w", err)
	}
	return d, nil
}

func (s *gormStore) SetDeviceEnabled(ctx context.Context, id string, enabled bool) (model.Device, error) {
	var d model.Device
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return model.Device{}, notFound(err, "device", id)
	}
	if err := s.db.WithContext(ctx).Model(&d).Update("enabled", enabled).Error; err != nil {
		return model.Device{}, fmt.Errorf("failed to update device %s: %w", id, err)
	}
	d.Enabled = enabled
	return d, nil
}

func (s *gormStore) UpsertGuest(ctx context.Context, g model.Guest) (model.Guest, error) {
	g.RoomNumber = strings.TrimSpace(g.RoomNumber)
	if g.PropertyID == "" || g.RoomNumber == "" {
		return model.Guest{}, fmt.Errorf("%w: guest needs a property and a room number", model.ErrInput)
	}
	if err := s.db.WithContext(ctx).Save(&g).Error; err != nil {
		return model.Guest{}, fmt.Errorf("failed to save guest %s: %w", g.RoomNumber, err)
	}
	return g, nil
}

func (s *gormStore) CreateStaff(ctx context.Context, m model.Staff) (model.Staff, error) {
	if m.PropertyID == "" || strings.TrimSpace(m.Name) == "" {
		return model.Staff{}, fmt.Errorf("%w: staff needs a property and a name", model.ErrInput)
	}
	if m.ID == "" {
		m.ID = newID()
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return model.Staff{}, fmt.Errorf("failed to create staff: %w", err)
	}
	return m, nil
}
