package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seat-allocation-backend/config"
	"seat-allocation-backend/internal/collaborator"
	"seat-allocation-backend/internal/db"
	"seat-allocation-backend/internal/model"
	"seat-allocation-backend/internal/mw"
	"seat-allocation-backend/internal/refresh"
	"seat-allocation-backend/internal/session"
	"seat-allocation-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router   *gin.Engine
	store    store.Store
	sessions *session.Manager
	seats    []model.Seat
	device   model.Device
	manager  model.Staff
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return store.NewGormStore(gormDB, zap.NewNop())
}

func newTestEnv(t *testing.T, push *webpush.Options) *testEnv {
	t.Helper()
	ctx := context.Background()
	s := newTestStore(t)

	st, err := s.CreateSeatType(ctx, model.SeatType{PropertyID: "p1", Name: "Sunbed"})
	require.NoError(t, err)
	dev, err := s.CreateDevice(ctx, model.Device{PropertyID: "p1", DeviceLabel: "Pager 1", Enabled: true})
	require.NoError(t, err)
	seats, err := s.BulkCreateSeats(ctx, collaborator.BulkSeatRequest{PropertyID: "p1", SeatTypeID: st.ID, Prefix: "A", Start: 1, End: 3})
	require.NoError(t, err)
	seats[0], err = s.AssignStaticDevice(ctx, seats[0].ID, &dev.ID)
	require.NoError(t, err)
	_, err = s.UpsertGuest(ctx, model.Guest{PropertyID: "p1", RoomNumber: "101", Name: "Ada"})
	require.NoError(t, err)
	mgr, err := s.CreateStaff(ctx, model.Staff{PropertyID: "p1", Name: "Grace", Role: "fb_manager"})
	require.NoError(t, err)

	sessions := session.NewManager(s, session.Options{
		TTL:      time.Hour,
		DraftTTL: time.Hour,
		Refresh:  refresh.Options{Interval: time.Hour, Tick: time.Hour},
	}, zap.NewNop())
	t.Cleanup(sessions.Close)

	h := NewHandler(s, sessions, s.DB(), push, zap.NewNop())
	router := NewRouter(h, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60})
	return &testEnv{router: router, store: s, sessions: sessions, seats: seats, device: dev, manager: mgr}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(mw.SessionHeader, token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/sessions", "", gin.H{"propertyId": "p1", "staffId": e.manager.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{err: model.ErrInput, want: http.StatusBadRequest},
		{err: fmt.Errorf("start: %w", model.ErrRange), want: http.StatusBadRequest},
		{err: model.ErrTooManyItems, want: http.StatusBadRequest},
		{err: model.ErrNotFound, want: http.StatusNotFound},
		{err: fmt.Errorf("create allocation: %w", model.ErrConflict), want: http.StatusConflict},
		{err: model.ErrProtocol, want: http.StatusBadGateway},
		{err: model.ErrOperation, want: http.StatusInternalServerError},
		{err: fmt.Errorf("disk on fire"), want: http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestSessions(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/board", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/sessions", "", gin.H{"propertyId": "p1", "staffId": "ghost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPost, "/api/sessions", "", gin.H{"propertyId": "p1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	token := env.login(t)
	w = env.do(http.MethodGet, "/api/board", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	board := decode[struct {
		Statuses map[string]struct {
			Label string `json:"label"`
		} `json:"statuses"`
	}](t, w)
	require.Len(t, board.Statuses, 3)
	for _, seat := range env.seats {
		assert.Equal(t, "Free", board.Statuses[seat.ID].Label)
	}

	w = env.do(http.MethodDelete, "/api/sessions", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(http.MethodGet, "/api/board", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodDelete, "/api/sessions", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreviewBulkSeats(t *testing.T) {
	env := newTestEnv(t, nil)

	testCases := []struct {
		name       string
		query      string
		wantStatus int
		wantFirst  string
		wantTotal  int
		wantSumm   string
	}{
		{name: "Prefix and suffix", query: "prefix=C&suffix=Q&start=1&end=10", wantStatus: http.StatusOK, wantFirst: "C01Q", wantTotal: 10},
		{name: "Long range", query: "start=1&end=100", wantStatus: http.StatusOK, wantFirst: "001", wantTotal: 100, wantSumm: "... and 80 more"},
		{name: "Reversed range", query: "start=5&end=1", wantStatus: http.StatusBadRequest},
		{name: "Fractional bound", query: "start=1.5&end=3", wantStatus: http.StatusBadRequest},
		{name: "Missing bound", query: "start=1", wantStatus: http.StatusBadRequest},
		{name: "Too many seats", query: "start=1&end=5000", wantStatus: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/seats/bulk/preview?"+tc.query, "", nil)
			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			if tc.wantStatus != http.StatusOK {
				return
			}
			resp := decode[previewResponse](t, w)
			assert.Equal(t, tc.wantFirst, resp.SeatNumbers[0])
			assert.Equal(t, tc.wantTotal, resp.Total)
			assert.Equal(t, tc.wantSumm, resp.Summary)
		})
	}
}

func TestCreateBulkSeats(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t)
	seatType := env.seats[0].SeatTypeID

	w := env.do(http.MethodPost, "/api/seats/bulk", token, gin.H{"seatTypeId": seatType, "prefix": "B", "start": "1", "end": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	seats := decode[[]model.Seat](t, w)
	require.Len(t, seats, 3)
	assert.Equal(t, "B1", seats[0].SeatNumber)

	w = env.do(http.MethodPost, "/api/seats/bulk", token, gin.H{"seatTypeId": seatType, "prefix": "B", "start": 1, "end": 3})
	assert.Equal(t, http.StatusConflict, w.Code, "seat numbers already exist")

	w = env.do(http.MethodPost, "/api/seats/bulk", token, gin.H{"seatTypeId": seatType, "start": -1, "end": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPost, "/api/seats/bulk", token, gin.H{"seatTypeId": seatType, "start": 9, "end": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftToAllocation(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t)
	seat := env.seats[0]

	w := env.do(http.MethodPost, "/api/drafts", token, gin.H{"date": "2024-05-01"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	draftID := decode[struct {
		ID string `json:"id"`
	}](t, w).ID

	w = env.do(http.MethodPost, "/api/drafts/"+draftID+"/seats/"+seat.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[struct {
		SeatIDs   []string `json:"seatIds"`
		DeviceIDs []string `json:"deviceIds"`
	}](t, w)
	assert.Equal(t, []string{seat.ID}, view.SeatIDs)
	assert.Equal(t, []string{env.device.ID}, view.DeviceIDs)

	w = env.do(http.MethodPost, "/api/drafts/"+draftID+"/seats/nope", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/drafts/"+draftID+"/submit", token, gin.H{"roomNumber": "999", "fbManagerId": env.manager.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown room")

	w = env.do(http.MethodPost, "/api/drafts/"+draftID+"/submit", token, gin.H{"roomNumber": "101", "fbManagerId": env.manager.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	alloc := decode[model.Allocation](t, w)
	assert.Equal(t, "Ada", alloc.GuestName)
	assert.Equal(t, model.StatusSeated, alloc.Status)

	w = env.do(http.MethodGet, "/api/drafts/"+draftID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// A new draft on the same date cannot take the seat again.
	w = env.do(http.MethodPost, "/api/drafts", token, gin.H{"date": "2024-05-01"})
	require.Equal(t, http.StatusCreated, w.Code)
	second := decode[struct {
		ID          string   `json:"id"`
		Unavailable []string `json:"unavailableSeatIds"`
	}](t, w)
	assert.Equal(t, []string{seat.ID}, second.Unavailable)
	w = env.do(http.MethodPost, "/api/drafts/"+second.ID+"/seats/"+seat.ID, token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/api/drafts", token, gin.H{"date": "01/05/2024"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAllocationUpdates(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t)
	alloc, err := env.store.CreateAllocation(context.Background(), model.NewAllocation{
		PropertyID: "p1", RoomNumber: "101", FBManagerID: env.manager.ID, SeatIDs: []string{env.seats[1].ID},
	})
	require.NoError(t, err)
	base := "/api/allocations/" + alloc.ID

	w := env.do(http.MethodPut, base+"/calling", token, gin.H{"callingFlag": "Calling for Checkout"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[model.Allocation](t, w)
	assert.Equal(t, model.StatusBilling, updated.Status)
	assert.Equal(t, model.CallingForCheckout, updated.CallingFlag)

	w = env.do(http.MethodPut, base+"/calling", token, gin.H{"callingFlag": "Shouting"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPut, base+"/status", token, gin.H{"status": "Paid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPut, base+"/status", token, gin.H{"status": "Complete"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusComplete, decode[model.Allocation](t, w).Status)

	w = env.do(http.MethodPut, "/api/allocations/missing/status", token, gin.H{"status": "Active"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodDelete, base, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(http.MethodDelete, base, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSeatAndSectionAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t)
	seat := env.seats[2]

	w := env.do(http.MethodPut, "/api/seats/"+seat.ID+"/blocked", token, gin.H{"blocked": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.SeatBlocked, decode[model.Seat](t, w).Status)

	w = env.do(http.MethodPost, "/api/sections", token, gin.H{"name": "Pool", "seatIds": []string{seat.ID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sec := decode[model.Section](t, w)

	w = env.do(http.MethodPut, "/api/sections/"+sec.ID, token, gin.H{"name": "Lagoon"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Lagoon", decode[model.Section](t, w).Name)

	w = env.do(http.MethodDelete, "/api/sections/"+sec.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodPut, "/api/seats/"+seat.ID+"/static-device", token, gin.H{"staticDeviceId": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/seats", token, gin.H{"seatNumber": "Z9", "seatTypeId": seat.SeatTypeID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[model.Seat](t, w)
	assert.Equal(t, model.SeatAvailable, created.Status)

	w = env.do(http.MethodDelete, "/api/seats/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSubscriptions(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPut, "/api/subscriptions", "", gin.H{"endpoint": "https://push.example/1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := env.login(t)
	w = env.do(http.MethodPut, "/api/subscriptions", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	sub := gin.H{"endpoint": "https://push.example/1", "p256dh": "key", "auth": "secret"}
	w = env.do(http.MethodPut, "/api/subscriptions", token, sub)
	assert.Equal(t, http.StatusCreated, w.Code)
	w = env.do(http.MethodPut, "/api/subscriptions", token, sub)
	assert.Equal(t, http.StatusCreated, w.Code, "re-registering is idempotent")

	w = env.do(http.MethodGet, "/api/subscriptions?endpoint=https://push.example/1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"endpoint":"https://push.example/1","staffId":%q}`, env.manager.ID), w.Body.String())

	w = env.do(http.MethodGet, "/api/subscriptions", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, "/api/subscriptions", token, gin.H{"endpoint": "https://push.example/1"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(http.MethodGet, "/api/subscriptions?endpoint=https://push.example/1", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodGet, "/api/vapid_public_key", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env = newTestEnv(t, &webpush.Options{VAPIDPublicKey: "BPublic"})
	w = env.do(http.MethodGet, "/api/vapid_public_key", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"publicKey":"BPublic"}`, w.Body.String())
}
