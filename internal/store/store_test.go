package store

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"seat-allocation-backend/internal/collaborator"
	"seat-allocation-backend/internal/db"
	"seat-allocation-backend/internal/model"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

var clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return NewGormStore(gormDB, zap.NewNop(), WithClock(func() time.Time { return clock }))
}

type fixture struct {
	store    Store
	seatType model.SeatType
	seats    []model.Seat
	device   model.Device
	manager  model.Staff
}

func seed(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := newSQLiteStore(t)

	st, err := s.CreateSeatType(ctx, model.SeatType{PropertyID: "p1", Name: "Sunbed", Icon: "sunbed.svg"})
	require.NoError(t, err)
	dev, err := s.CreateDevice(ctx, model.Device{PropertyID: "p1", DeviceLabel: "Pager 1", Enabled: true})
	require.NoError(t, err)
	seats, err := s.BulkCreateSeats(ctx, collaborator.BulkSeatRequest{PropertyID: "p1", SeatTypeID: st.ID, Prefix: "A", Start: 1, End: 4})
	require.NoError(t, err)
	seats[0], err = s.AssignStaticDevice(ctx, seats[0].ID, &dev.ID)
	require.NoError(t, err)

	_, err = s.UpsertGuest(ctx, model.Guest{PropertyID: "p1", RoomNumber: "101", Name: "Ada"})
	require.NoError(t, err)
	mgr, err := s.CreateStaff(ctx, model.Staff{PropertyID: "p1", Name: "Grace", Role: "fb_manager"})
	require.NoError(t, err)

	return fixture{store: s, seatType: st, seats: seats, device: dev, manager: mgr}
}

func (f fixture) request(seatIDs ...string) model.NewAllocation {
	return model.NewAllocation{
		PropertyID:     "p1",
		RoomNumber:     "101",
		FBManagerID:    f.manager.ID,
		SeatIDs:        seatIDs,
		AllocationDate: clock,
	}
}

func TestGormStore_FetchSeatsQuery(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "seats" WHERE property_id = $1 ORDER BY seat_number, id`)).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "property_id", "seat_number", "status"}).
			AddRow("s1", "p1", "A01", "Available").
			AddRow("s2", "p1", "A02", "Blocked"))

	seats, err := s.FetchSeats(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, model.SeatBlocked, seats[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_DeleteAllocationNotFound(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "seat_holds" WHERE allocation_id = $1`)).
		WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "allocation_seats" WHERE allocation_id = $1`)).
		WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "allocation_devices" WHERE allocation_id = $1`)).
		WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "allocations" WHERE id = $1`)).
		WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.DeleteAllocation(context.Background(), "a1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CreateAllocation(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	alloc, err := f.store.CreateAllocation(ctx, model.NewAllocation{
		PropertyID:     "p1",
		RoomNumber:     " 101 ",
		FBManagerID:    f.manager.ID,
		SeatIDs:        []string{f.seats[1].ID, f.seats[0].ID, f.seats[0].ID},
		DeviceIDs:      []string{f.device.ID},
		AllocationDate: clock.Add(5 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSeated, alloc.Status)
	assert.Equal(t, model.NonCalling, alloc.CallingFlag)
	assert.Equal(t, "Ada", alloc.GuestName)
	assert.Equal(t, "101", alloc.RoomNumber)
	assert.Len(t, alloc.SeatIDs, 2)
	assert.True(t, alloc.AllocationDate.Equal(model.Day(clock)))

	allocs, err := f.store.FetchAllocations(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.ElementsMatch(t, []string{f.seats[0].ID, f.seats[1].ID}, allocs[0].SeatIDs)
	assert.Equal(t, []string{f.device.ID}, allocs[0].DeviceIDs)

	seatIDs, err := f.store.FetchAllocatedSeatIDs(ctx, "p1", clock)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{f.seats[0].ID, f.seats[1].ID}, seatIDs)

	deviceIDs, err := f.store.FetchAllocatedDeviceIDs(ctx, "p1", clock)
	require.NoError(t, err)
	assert.Equal(t, []string{f.device.ID}, deviceIDs)

	other, err := f.store.FetchAllocatedSeatIDs(ctx, "p1", clock.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, other, "allocated ids are scoped by date")
}

func TestGormStore_CreateAllocationRejections(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	_, err := f.store.SetSeatBlocked(ctx, f.seats[3].ID, true)
	require.NoError(t, err)

	testCases := []struct {
		name    string
		mutate  func(r *model.NewAllocation)
		wantErr error
	}{
		{name: "No seats", mutate: func(r *model.NewAllocation) { r.SeatIDs = nil }, wantErr: model.ErrInput},
		{name: "Unknown room", mutate: func(r *model.NewAllocation) { r.RoomNumber = "999" }, wantErr: model.ErrInput},
		{name: "Unknown manager", mutate: func(r *model.NewAllocation) { r.FBManagerID = "ghost" }, wantErr: model.ErrInput},
		{name: "Unknown seat", mutate: func(r *model.NewAllocation) { r.SeatIDs = []string{"ghost"} }, wantErr: model.ErrNotFound},
		{name: "Unknown device", mutate: func(r *model.NewAllocation) { r.DeviceIDs = []string{"ghost"} }, wantErr: model.ErrNotFound},
		{name: "Blocked seat", mutate: func(r *model.NewAllocation) { r.SeatIDs = []string{f.seats[3].ID} }, wantErr: model.ErrConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.request(f.seats[0].ID)
			tc.mutate(&req)
			_, err := f.store.CreateAllocation(ctx, req)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	allocs, err := f.store.FetchAllocations(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, allocs, "failed creations leave nothing behind")
}

func TestGormStore_SeatExclusivity(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	first, err := f.store.CreateAllocation(ctx, f.request(f.seats[0].ID, f.seats[1].ID))
	require.NoError(t, err)

	_, err = f.store.CreateAllocation(ctx, f.request(f.seats[1].ID, f.seats[2].ID))
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Contains(t, err.Error(), "A2")

	_, err = f.store.UpdateAllocationStatus(ctx, first.ID, model.StatusComplete)
	require.NoError(t, err)

	second, err := f.store.CreateAllocation(ctx, f.request(f.seats[1].ID, f.seats[2].ID))
	require.NoError(t, err, "completing an allocation releases its seats")

	_, err = f.store.UpdateAllocationStatus(ctx, first.ID, model.StatusActive)
	assert.ErrorIs(t, err, model.ErrConflict, "reactivating needs the seats back")

	require.NoError(t, f.store.DeleteAllocation(ctx, second.ID))
	reopened, err := f.store.UpdateAllocationStatus(ctx, first.ID, model.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, reopened.Status)
}

func TestGormStore_ConcurrentCreatesHaveOneWinner(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	const racers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.store.CreateAllocation(ctx, f.request(f.seats[2].ID))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, model.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)
}

func TestGormStore_CallingFlag(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	alloc, err := f.store.CreateAllocation(ctx, f.request(f.seats[0].ID))
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	t.Cleanup(func() { clock = clock.Add(-time.Minute) })

	updated, err := f.store.UpdateAllocationCallingFlag(ctx, alloc.ID, model.Calling)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSeated, updated.Status)
	assert.True(t, updated.UpdatedAt.Equal(clock))

	updated, err = f.store.UpdateAllocationCallingFlag(ctx, alloc.ID, model.CallingForCheckout)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBilling, updated.Status, "checkout calls force Billing")

	allocs, err := f.store.FetchAllocations(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBilling, allocs[0].Status)
	assert.Equal(t, model.CallingForCheckout, allocs[0].CallingFlag)

	_, err = f.store.UpdateAllocationCallingFlag(ctx, alloc.ID, model.CallingFlag("Shouting"))
	assert.ErrorIs(t, err, model.ErrInput)
	_, err = f.store.UpdateAllocationStatus(ctx, "ghost", model.StatusActive)
	assert.ErrorIs(t, err, model.ErrNotFound)

	done, err := f.store.UpdateAllocationStatus(ctx, alloc.ID, model.StatusComplete)
	require.NoError(t, err)
	assert.Equal(t, model.NonCalling, done.CallingFlag)

	_, err = f.store.UpdateAllocationCallingFlag(ctx, alloc.ID, model.Calling)
	assert.ErrorIs(t, err, model.ErrConflict)
	_, err = f.store.UpdateAllocationCallingFlag(ctx, alloc.ID, model.CallingForCheckout)
	assert.ErrorIs(t, err, model.ErrConflict, "a finished allocation is not reopened for billing")

	allocs, err = f.store.FetchAllocations(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.Equal(t, model.StatusComplete, allocs[0].Status)
	assert.Equal(t, model.NonCalling, allocs[0].CallingFlag)

	_, err = f.store.CreateAllocation(ctx, f.request(f.seats[0].ID))
	assert.NoError(t, err, "the seat stays released")
}

func TestGormStore_DeleteSeat(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	alloc, err := f.store.CreateAllocation(ctx, f.request(f.seats[0].ID))
	require.NoError(t, err)

	assert.ErrorIs(t, f.store.DeleteSeat(ctx, f.seats[0].ID), model.ErrConflict)
	assert.ErrorIs(t, f.store.DeleteSeat(ctx, "ghost"), model.ErrNotFound)

	_, err = f.store.UpdateAllocationStatus(ctx, alloc.ID, model.StatusComplete)
	require.NoError(t, err)
	assert.NoError(t, f.store.DeleteSeat(ctx, f.seats[0].ID))

	seats, err := f.store.FetchSeats(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, seats, 3)
}

func TestGormStore_BulkCreateSeats(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	seats, err := f.store.BulkCreateSeats(ctx, collaborator.BulkSeatRequest{
		PropertyID: "p1", SeatTypeID: f.seatType.ID, Prefix: "C", Suffix: "Q", Start: 1, End: 10,
	})
	require.NoError(t, err)
	require.Len(t, seats, 10)
	assert.Equal(t, "C01Q", seats[0].SeatNumber)
	assert.Equal(t, "C10Q", seats[9].SeatNumber)

	_, err = f.store.BulkCreateSeats(ctx, collaborator.BulkSeatRequest{
		PropertyID: "p1", SeatTypeID: f.seatType.ID, Prefix: "C", Suffix: "Q", Start: 9, End: 12,
	})
	assert.ErrorIs(t, err, model.ErrConflict)

	_, err = f.store.BulkCreateSeats(ctx, collaborator.BulkSeatRequest{PropertyID: "p1", SeatTypeID: f.seatType.ID, Start: 5, End: 3})
	assert.ErrorIs(t, err, model.ErrRange)
	_, err = f.store.BulkCreateSeats(ctx, collaborator.BulkSeatRequest{PropertyID: "p1", SeatTypeID: f.seatType.ID, Start: 0, End: 1500})
	assert.ErrorIs(t, err, model.ErrTooManyItems)
	_, err = f.store.BulkCreateSeats(ctx, collaborator.BulkSeatRequest{PropertyID: "p1", SeatTypeID: "ghost", Prefix: "Z", Start: 1, End: 2})
	assert.ErrorIs(t, err, model.ErrNotFound)

	all, err := f.store.FetchSeats(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, all, 14)
}

func TestGormStore_SeatEdits(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	seat, err := f.store.CreateSeat(ctx, model.Seat{PropertyID: "p1", SeatNumber: "VIP1", SeatTypeID: f.seatType.ID})
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, seat.Status)

	_, err = f.store.CreateSeat(ctx, model.Seat{PropertyID: "p1", SeatNumber: "VIP1", SeatTypeID: f.seatType.ID})
	assert.ErrorIs(t, err, model.ErrConflict)

	seat.SeatNumber = "VIP2"
	seat.Status = model.SeatBlocked
	seat, err = f.store.UpdateSeat(ctx, seat)
	require.NoError(t, err)
	assert.Equal(t, "VIP2", seat.SeatNumber)
	assert.Equal(t, model.SeatBlocked, seat.Status)

	seat.SeatNumber = "A1"
	_, err = f.store.UpdateSeat(ctx, seat)
	assert.ErrorIs(t, err, model.ErrConflict)

	seat, err = f.store.AssignStaticDevice(ctx, seat.ID, &f.device.ID)
	require.NoError(t, err)
	assert.Equal(t, f.device.ID, seat.StaticDevice())
	seat, err = f.store.AssignStaticDevice(ctx, seat.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, seat.StaticDevice())

	ghost := "ghost"
	_, err = f.store.AssignStaticDevice(ctx, seat.ID, &ghost)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGormStore_Sections(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	pool, err := f.store.CreateSection(ctx, model.Section{PropertyID: "p1", Name: "Pool", SeatIDs: []string{f.seats[0].ID, f.seats[1].ID}})
	require.NoError(t, err)
	bar, err := f.store.CreateSection(ctx, model.Section{PropertyID: "p1", Name: "Bar", SeatIDs: []string{f.seats[1].ID, f.seats[2].ID}})
	require.NoError(t, err)

	sections, err := f.store.FetchSections(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "Bar", sections[0].Name)
	assert.ElementsMatch(t, []string{f.seats[1].ID, f.seats[2].ID}, sections[0].SeatIDs)
	assert.Equal(t, []string{f.seats[0].ID}, sections[1].SeatIDs, "a seat belongs to at most one section")

	pool.Name = "Lagoon"
	pool.SeatIDs = []string{f.seats[3].ID}
	pool, err = f.store.UpdateSection(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, "Lagoon", pool.Name)

	_, err = f.store.CreateSection(ctx, model.Section{PropertyID: "p1", Name: "Ghosts", SeatIDs: []string{"ghost"}})
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, f.store.DeleteSection(ctx, bar.ID))
	assert.ErrorIs(t, f.store.DeleteSection(ctx, bar.ID), model.ErrNotFound)

	seats, err := f.store.FetchSeats(ctx, "p1")
	require.NoError(t, err)
	grouped := 0
	for _, s := range seats {
		if s.SectionID != nil {
			grouped++
			assert.Equal(t, pool.ID, *s.SectionID)
		}
	}
	assert.Equal(t, 1, grouped, "deleting a section ungroups its seats")
}
