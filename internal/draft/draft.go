// Package draft holds the seat and device selection of an allocation that has
// not been submitted yet.
//
// Selecting a seat pulls in its statically bound device and deselecting the
// last seat bound to a device drops it again. Devices can also be toggled by
// hand; a manual choice always wins over the automatic binding for the rest of
// the draft's life.
package draft

import (
	"fmt"
	"sort"
	"time"

	"seat-allocation-backend/internal/model"
	"seat-allocation-backend/internal/snapshot"
)

// Catalog resolves the entities a draft refers to.
type Catalog interface {
	Seat(id string) (model.Seat, bool)
	Device(id string) (model.Device, bool)
}

var _ Catalog = (*snapshot.Snapshot)(nil)

type set map[string]struct{}

func (s set) has(id string) bool { _, ok := s[id]; return ok }

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func setOf(ids []string) set {
	s := make(set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Draft is owned by a single session and is not safe for concurrent use.
type Draft struct {
	ID         string
	PropertyID string
	Date       time.Time
	CreatedAt  time.Time

	catalog Catalog

	seats   set
	devices set
	// seatDevice remembers the static device each selected seat had when it was
	// added, so removal stays consistent even if the catalog is refreshed.
	seatDevice map[string]string

	manualAdded   set
	manualRemoved set

	unavailableSeats   set
	unavailableDevices set
}

// New starts an empty draft. unavailableSeats and unavailableDevices are the
// ids already allocated on date, which cannot be selected.
func New(id, propertyID string, date time.Time, catalog Catalog, unavailableSeats, unavailableDevices []string) *Draft {
	return &Draft{
		ID:                 id,
		PropertyID:         propertyID,
		Date:               model.Day(date),
		CreatedAt:          time.Now().UTC(),
		catalog:            catalog,
		seats:              make(set),
		devices:            make(set),
		seatDevice:         make(map[string]string),
		manualAdded:        make(set),
		manualRemoved:      make(set),
		unavailableSeats:   setOf(unavailableSeats),
		unavailableDevices: setOf(unavailableDevices),
	}
}

// SetCatalog swaps in a newer snapshot for lookups.
func (d *Draft) SetCatalog(c Catalog) {
	d.catalog = c
}

// ToggleSeat adds the seat if absent and removes it otherwise, keeping the
// device selection bound to the seats' static devices.
func (d *Draft) ToggleSeat(seatID string) error {
	if d.seats.has(seatID) {
		d.removeSeat(seatID)
		return nil
	}

	seat, ok := d.catalog.Seat(seatID)
	if !ok {
		return fmt.Errorf("%w: seat %s", model.ErrNotFound, seatID)
	}
	if d.unavailableSeats.has(seatID) {
		return fmt.Errorf("%w: seat %s is held by another allocation", model.ErrConflict, seat.SeatNumber)
	}
	if seat.Status == model.SeatBlocked {
		return fmt.Errorf("%w: seat %s is blocked", model.ErrConflict, seat.SeatNumber)
	}

	d.seats[seatID] = struct{}{}
	deviceID := seat.StaticDevice()
	d.seatDevice[seatID] = deviceID
	if deviceID != "" && !d.devices.has(deviceID) && !d.manualRemoved.has(deviceID) {
		d.devices[deviceID] = struct{}{}
	}
	return nil
}

func (d *Draft) removeSeat(seatID string) {
	deviceID := d.seatDevice[seatID]
	delete(d.seats, seatID)
	delete(d.seatDevice, seatID)

	if deviceID == "" || d.manualAdded.has(deviceID) {
		return
	}
	for other := range d.seats {
		if d.seatDevice[other] == deviceID {
			return
		}
	}
	delete(d.devices, deviceID)
}

// ToggleDevice adds or removes a device by hand.
func (d *Draft) ToggleDevice(deviceID string) error {
	if d.devices.has(deviceID) {
		delete(d.devices, deviceID)
		delete(d.manualAdded, deviceID)
		d.manualRemoved[deviceID] = struct{}{}
		return nil
	}

	device, ok := d.catalog.Device(deviceID)
	if !ok {
		return fmt.Errorf("%w: device %s", model.ErrNotFound, deviceID)
	}
	if !device.Enabled {
		return fmt.Errorf("%w: device %s is disabled", model.ErrConflict, device.DeviceLabel)
	}
	if d.unavailableDevices.has(deviceID) {
		return fmt.Errorf("%w: device %s is in use", model.ErrConflict, device.DeviceLabel)
	}

	d.devices[deviceID] = struct{}{}
	delete(d.manualRemoved, deviceID)
	d.manualAdded[deviceID] = struct{}{}
	return nil
}

// SeatIDs returns the selected seats, sorted.
func (d *Draft) SeatIDs() []string { return d.seats.sorted() }

// DeviceIDs returns the selected devices, sorted.
func (d *Draft) DeviceIDs() []string { return d.devices.sorted() }

// HasSeat reports whether a seat is selected.
func (d *Draft) HasSeat(seatID string) bool { return d.seats.has(seatID) }

// HasDevice reports whether a device is selected.
func (d *Draft) HasDevice(deviceID string) bool { return d.devices.has(deviceID) }

// Unavailable reports whether a seat was already allocated when the draft started.
func (d *Draft) Unavailable(seatID string) bool { return d.unavailableSeats.has(seatID) }

// View is the JSON form of a draft.
type View struct {
	ID                 string    `json:"id"`
	PropertyID         string    `json:"propertyId"`
	Date               time.Time `json:"date"`
	SeatIDs            []string  `json:"seatIds"`
	DeviceIDs          []string  `json:"deviceIds"`
	UnavailableSeatIDs []string  `json:"unavailableSeatIds"`
}

func (d *Draft) View() View {
	return View{
		ID:                 d.ID,
		PropertyID:         d.PropertyID,
		Date:               d.Date,
		SeatIDs:            d.SeatIDs(),
		DeviceIDs:          d.DeviceIDs(),
		UnavailableSeatIDs: d.unavailableSeats.sorted(),
	}
}
