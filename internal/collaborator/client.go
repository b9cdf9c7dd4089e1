package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"seat-allocation-backend/config"
	"seat-allocation-backend/internal/model"
)

// Client talks to a remote collaborator over REST/JSON.
type Client struct {
	baseURL *url.URL
	headers map[string]string
	client  *http.Client
	limiter *rate.Limiter
	maxBody int64
	logger  *zap.Logger
}

var _ Collaborator = (*Client)(nil)

// NewClient builds a client from configuration. An invalid proxy is logged
// and ignored.
func NewClient(cfg config.CollaboratorConfig, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse collaborator base url: %w", err)
	}
	logger = logger.With(zap.String("component", "collaborator"))

	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			logger.Warn("invalid proxy url, not using a proxy", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = config.DefaultMaxResponseBytes
	}

	return &Client{
		baseURL: base,
		headers: cfg.Headers,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		maxBody: maxBody,
		logger:  logger,
	}, nil
}

// call performs one request and decodes the envelope's data into T.
func call[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (T, error) {
	var zero T

	if err := c.limiter.Wait(ctx); err != nil {
		return zero, fmt.Errorf("%w: rate limiter: %v", model.ErrOperation, err)
	}

	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return zero, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("collaborator request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return zero, fmt.Errorf("%w: http request failed: %v", model.ErrOperation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return zero, fmt.Errorf("%w: failed to read response body: %v", model.ErrOperation, err)
	}
	if int64(len(raw)) > c.maxBody {
		c.logger.Warn("collaborator response too large", zap.String("method", method), zap.String("path", path), zap.Int64("limit", c.maxBody))
		return zero, fmt.Errorf("%w: response body exceeds %d bytes", model.ErrProtocol, c.maxBody)
	}
	c.logger.Debug("collaborator call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return zero, fmt.Errorf("%w: received status code %d", model.ErrOperation, resp.StatusCode)
		}
		return zero, fmt.Errorf("%w: undecodable response: %v", model.ErrProtocol, err)
	}
	if !env.Success {
		return zero, ErrorFor(env.Code, env.Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return zero, fmt.Errorf("%w: received status code %d", model.ErrOperation, resp.StatusCode)
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return zero, nil
	}
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return zero, fmt.Errorf("%w: decode %s %s: %v", model.ErrProtocol, method, path, err)
	}
	return out, nil
}

func propertyPath(propertyID, collection string) string {
	return "properties/" + url.PathEscape(propertyID) + "/" + collection
}

func dateQuery(date time.Time) url.Values {
	return url.Values{"date": []string{model.Day(date).Format(DateLayout)}}
}

func (c *Client) FetchSeats(ctx context.Context, propertyID string) ([]model.Seat, error) {
	return call[[]model.Seat](ctx, c, http.MethodGet, propertyPath(propertyID, "seats"), nil, nil)
}

func (c *Client) FetchSections(ctx context.Context, propertyID string) ([]model.Section, error) {
	return call[[]model.Section](ctx, c, http.MethodGet, propertyPath(propertyID, "sections"), nil, nil)
}

func (c *Client) FetchSeatTypes(ctx context.Context, propertyID string) ([]model.SeatType, error) {
	return call[[]model.SeatType](ctx, c, http.MethodGet, propertyPath(propertyID, "seat-types"), nil, nil)
}

func (c *Client) FetchDevices(ctx context.Context, propertyID string) ([]model.Device, error) {
	return call[[]model.Device](ctx, c, http.MethodGet, propertyPath(propertyID, "devices"), nil, nil)
}

func (c *Client) FetchAllocations(ctx context.Context, propertyID string) ([]model.Allocation, error) {
	return call[[]model.Allocation](ctx, c, http.MethodGet, propertyPath(propertyID, "allocations"), nil, nil)
}

func (c *Client) FetchGuests(ctx context.Context, propertyID string) ([]model.Guest, error) {
	return call[[]model.Guest](ctx, c, http.MethodGet, propertyPath(propertyID, "guests"), nil, nil)
}

func (c *Client) FetchStaff(ctx context.Context, propertyID string) ([]model.Staff, error) {
	return call[[]model.Staff](ctx, c, http.MethodGet, propertyPath(propertyID, "staff"), nil, nil)
}

func (c *Client) FetchAllocatedSeatIDs(ctx context.Context, propertyID string, date time.Time) ([]string, error) {
	return call[[]string](ctx, c, http.MethodGet, propertyPath(propertyID, "allocated-seat-ids"), dateQuery(date), nil)
}

func (c *Client) FetchAllocatedDeviceIDs(ctx context.Context, propertyID string, date time.Time) ([]string, error) {
	return call[[]string](ctx, c, http.MethodGet, propertyPath(propertyID, "allocated-device-ids"), dateQuery(date), nil)
}

func (c *Client) CreateAllocation(ctx context.Context, req model.NewAllocation) (model.Allocation, error) {
	return call[model.Allocation](ctx, c, http.MethodPost, "allocations", nil, req)
}

// StatusUpdate is the body of an allocation status change.
type StatusUpdate struct {
	Status model.AllocationStatus `json:"status"`
}

// CallingFlagUpdate is the body of an allocation calling flag change.
type CallingFlagUpdate struct {
	CallingFlag model.CallingFlag `json:"callingFlag"`
}

func (c *Client) UpdateAllocationStatus(ctx context.Context, id string, status model.AllocationStatus) (model.Allocation, error) {
	return call[model.Allocation](ctx, c, http.MethodPut, "allocations/"+url.PathEscape(id)+"/status", nil, StatusUpdate{Status: status})
}

func (c *Client) UpdateAllocationCallingFlag(ctx context.Context, id string, flag model.CallingFlag) (model.Allocation, error) {
	return call[model.Allocation](ctx, c, http.MethodPut, "allocations/"+url.PathEscape(id)+"/calling-flag", nil, CallingFlagUpdate{CallingFlag: flag})
}

func (c *Client) DeleteAllocation(ctx context.Context, id string) error {
	_, err := call[struct{}](ctx, c, http.MethodDelete, "allocations/"+url.PathEscape(id), nil, nil)
	return err
}

func (c *Client) CreateSeat(ctx context.Context, seat model.Seat) (model.Seat, error) {
	return call[model.Seat](ctx, c, http.MethodPost, "seats", nil, seat)
}

func (c *Client) UpdateSeat(ctx context.Context, seat model.Seat) (model.Seat, error) {
	return call[model.Seat](ctx, c, http.MethodPut, "seats/"+url.PathEscape(seat.ID), nil, seat)
}

func (c *Client) DeleteSeat(ctx context.Context, id string) error {
	_, err := call[struct{}](ctx, c, http.MethodDelete, "seats/"+url.PathEscape(id), nil, nil)
	return err
}

func (c *Client) BulkCreateSeats(ctx context.Context, req BulkSeatRequest) ([]model.Seat, error) {
	return call[[]model.Seat](ctx, c, http.MethodPost, "seats/bulk", nil, req)
}

// BlockUpdate is the body of a seat block toggle.
type BlockUpdate struct {
	Blocked bool `json:"blocked"`
}

// StaticDeviceUpdate is the body of a static device (un)assignment.
type StaticDeviceUpdate struct {
	StaticDeviceID *string `json:"staticDeviceId"`
}

func (c *Client) SetSeatBlocked(ctx context.Context, id string, blocked bool) (model.Seat, error) {
	return call[model.Seat](ctx, c, http.MethodPut, "seats/"+url.PathEscape(id)+"/blocked", nil, BlockUpdate{Blocked: blocked})
}

func (c *Client) AssignStaticDevice(ctx context.Context, seatID string, deviceID *string) (model.Seat, error) {
	return call[model.Seat](ctx, c, http.MethodPut, "seats/"+url.PathEscape(seatID)+"/static-device", nil, StaticDeviceUpdate{StaticDeviceID: deviceID})
}

func (c *Client) CreateSection(ctx context.Context, sec model.Section) (model.Section, error) {
	return call[model.Section](ctx, c, http.MethodPost, "sections", nil, sec)
}

func (c *Client) UpdateSection(ctx context.Context, sec model.Section) (model.Section, error) {
	return call[model.Section](ctx, c, http.MethodPut, "sections/"+url.PathEscape(sec.ID), nil, sec)
}

func (c *Client) DeleteSection(ctx context.Context, id string) error {
	_, err := call[struct{}](ctx, c, http.MethodDelete, "sections/"+url.PathEscape(id), nil, nil)
	return err
}
