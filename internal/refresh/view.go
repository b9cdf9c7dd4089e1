// Package refresh keeps a board view current: it refetches the property's
// snapshot on an interval and recomputes seat statuses every clock tick.
package refresh

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"seat-allocation-backend/internal/collaborator"
	"seat-allocation-backend/internal/escalation"
	"seat-allocation-backend/internal/model"
	"seat-allocation-backend/internal/occupancy"
	"seat-allocation-backend/internal/snapshot"
)

// Alerter receives escalation alerts. Calls happen off the view goroutine.
type Alerter interface {
	Alert(ctx context.Context, alert model.EscalationAlert) error
}

type Options struct {
	PropertyID        string
	RestrictSectionID string
	// Interval between snapshot fetches.
	Interval time.Duration
	// Tick is the recompute cadence.
	Tick         time.Duration
	Now          func() time.Time
	Alerters     []Alerter
	Gate         *Gate
	AlertTimeout time.Duration
}

type fetchResult struct {
	seq       uint64
	fetchedAt time.Time
	data      snapshot.Collections
	err       error
}

// View is the periodic task behind one session's board.
type View struct {
	src    collaborator.SnapshotSource
	opts   Options
	logger *zap.Logger

	snap    snapshot.Holder
	board   atomic.Pointer[occupancy.Board]
	seq     atomic.Uint64
	results chan fetchResult
	refresh chan struct{}
}

func NewView(src collaborator.SnapshotSource, opts Options, logger *zap.Logger) *View {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Gate == nil {
		opts.Gate = NewGate(24 * time.Hour)
	}
	if opts.AlertTimeout <= 0 {
		opts.AlertTimeout = 10 * time.Second
	}
	return &View{
		src:  src,
		opts: opts,
		logger: logger.With(
			zap.String("component", "refresh"),
			zap.String("property_id", opts.PropertyID)),
		results: make(chan fetchResult, 1),
		refresh: make(chan struct{}, 1),
	}
}

// Board returns the latest computed board, or nil before the first fetch.
func (v *View) Board() *occupancy.Board { return v.board.Load() }

// Snapshot returns the latest applied snapshot, or nil before the first fetch.
func (v *View) Snapshot() *snapshot.Snapshot { return v.snap.Load() }

// RequestRefresh asks Run to fetch as soon as no other fetch is in flight.
func (v *View) RequestRefresh() {
	select {
	case v.refresh <- struct{}{}:
	default:
	}
}

// Run drives the view until ctx is cancelled. Fetches run in their own
// goroutine, at most one at a time, so a slow collaborator never delays the
// clock.
func (v *View) Run(ctx context.Context) {
	v.logger.Info("board view started")

	clock := time.NewTicker(v.opts.Tick)
	defer clock.Stop()
	fetchTicker := time.NewTicker(v.opts.Interval)
	defer fetchTicker.Stop()

	inFlight := false
	start := func() {
		if inFlight {
			return
		}
		inFlight = true
		v.startFetch(ctx)
	}
	if v.snap.Load() == nil {
		start()
	}

	for {
		select {
		case <-ctx.Done():
			v.logger.Info("board view stopped")
			return
		case <-clock.C:
			v.Recompute(v.opts.Now())
		case <-fetchTicker.C:
			start()
		case <-v.refresh:
			start()
		case res := <-v.results:
			inFlight = false
			v.apply(ctx, res)
		}
	}
}

func (v *View) startFetch(ctx context.Context) {
	seq := v.seq.Add(1)
	go func() {
		data, err := collaborator.FetchCollections(ctx, v.src, v.opts.PropertyID)
		res := fetchResult{seq: seq, fetchedAt: v.opts.Now(), data: data, err: err}
		select {
		case v.results <- res:
		case <-ctx.Done():
		}
	}()
}

// FetchOnce fetches and applies a snapshot synchronously. It is meant for
// priming a view before Run starts.
func (v *View) FetchOnce(ctx context.Context) error {
	seq := v.seq.Add(1)
	data, err := collaborator.FetchCollections(ctx, v.src, v.opts.PropertyID)
	v.apply(ctx, fetchResult{seq: seq, fetchedAt: v.opts.Now(), data: data, err: err})
	if err != nil {
		return fmt.Errorf("refresh board: %w", err)
	}
	return nil
}

// apply installs a fetch result unless it is stale, failed, or arrived after
// the view was cancelled.
func (v *View) apply(ctx context.Context, res fetchResult) {
	if ctx.Err() != nil {
		v.logger.Debug("discarding fetch result after cancel", zap.Uint64("seq", res.seq))
		return
	}
	if res.err != nil {
		v.logger.Warn("snapshot fetch failed, keeping last snapshot", zap.Uint64("seq", res.seq), zap.Error(res.err))
		return
	}

	next := snapshot.New(v.opts.PropertyID, res.seq, res.fetchedAt, res.data)
	if !v.snap.Store(next) {
		v.logger.Debug("discarding stale fetch result", zap.Uint64("seq", res.seq))
		return
	}
	for _, w := range next.Warnings() {
		v.logger.Warn("seat consistency warning", zap.String("seat_id", w.SeatID), zap.Strings("allocation_ids", w.AllocationIDs), zap.String("chosen", w.Chosen))
	}
	v.Recompute(v.opts.Now())
}

// Recompute rebuilds the board from the current snapshot at now.
func (v *View) Recompute(now time.Time) {
	snap := v.snap.Load()
	if snap == nil {
		return
	}
	board := occupancy.BuildBoard(snap, v.opts.RestrictSectionID, now)
	v.board.Store(&board)
	v.escalate(snap, board)
}

func (v *View) escalate(snap *snapshot.Snapshot, board occupancy.Board) {
	if len(v.opts.Alerters) == 0 {
		return
	}
	for _, alloc := range board.Critical() {
		key := fmt.Sprintf("%s@%d", alloc.ID, alloc.UpdatedAt.UnixNano())
		if !v.opts.Gate.First(key) {
			continue
		}
		alert := newAlert(snap, alloc, board.At)
		v.logger.Info("allocation escalated",
			zap.String("allocation_id", alloc.ID),
			zap.String("room", alloc.RoomNumber),
			zap.Int64("elapsed_seconds", alert.ElapsedSeconds))
		for _, a := range v.opts.Alerters {
			go v.send(a, alert)
		}
	}
}

func (v *View) send(a Alerter, alert model.EscalationAlert) {
	ctx, cancel := context.WithTimeout(context.Background(), v.opts.AlertTimeout)
	defer cancel()
	if err := a.Alert(ctx, alert); err != nil {
		v.logger.Warn("alert delivery failed", zap.String("allocation_id", alert.AllocationID), zap.Error(err))
	}
}

func newAlert(snap *snapshot.Snapshot, alloc model.Allocation, now time.Time) model.EscalationAlert {
	numbers := make([]string, 0, len(alloc.SeatIDs))
	for _, id := range alloc.SeatIDs {
		if seat, ok := snap.Seat(id); ok {
			numbers = append(numbers, seat.SeatNumber)
		}
	}
	sort.Strings(numbers)
	return model.EscalationAlert{
		AllocationID:   alloc.ID,
		PropertyID:     alloc.PropertyID,
		RoomNumber:     alloc.RoomNumber,
		GuestName:      alloc.GuestName,
		FBManagerID:    alloc.FBManagerID,
		CallingFlag:    alloc.CallingFlag,
		SeatNumbers:    numbers,
		Tier:           escalation.Critical.String(),
		ElapsedSeconds: escalation.Elapsed(now, alloc.UpdatedAt),
		CallingSince:   alloc.UpdatedAt,
		RaisedAt:       now,
	}
}
