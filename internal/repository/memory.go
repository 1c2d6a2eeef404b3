package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/flightseats/internal/domain"
)

// MemoryStore is a process-local Store used for tests and for running the
// service without PostgreSQL. Every operation is atomic; InTx adds rollback
// through an undo log but not isolation, so callers serialize per flight.
type MemoryStore struct {
	state *memoryState
	undo  *[]func()
}

type memoryState struct {
	mu         sync.Mutex
	flights    map[int64]domain.Flight
	bookings   map[int64]domain.Booking
	passengers map[int64]domain.Passenger
	airlines   map[int64]domain.Airline
	lastID     int64
	lastStamp  time.Time
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		flights:    make(map[int64]domain.Flight),
		bookings:   make(map[int64]domain.Booking),
		passengers: make(map[int64]domain.Passenger),
		airlines:   make(map[int64]domain.Airline),
		now:        time.Now,
	}}
}

// SetClock replaces the time source used for created/updated stamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.now = now
}

func (s *MemoryStore) Flights() FlightRepository       { return (*memoryFlights)(s) }
func (s *MemoryStore) Bookings() BookingRepository     { return (*memoryBookings)(s) }
func (s *MemoryStore) Passengers() PassengerRepository { return (*memoryPassengers)(s) }
func (s *MemoryStore) Airlines() AirlineRepository     { return (*memoryAirlines)(s) }

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.undo != nil {
		return fn(s)
	}

	var undo []func()
	tx := &MemoryStore{state: s.state, undo: &undo}
	if err := fn(tx); err != nil {
		s.state.mu.Lock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		s.state.mu.Unlock()
		return err
	}
	return nil
}

// record must be called with state.mu held.
func (s *MemoryStore) record(fn func()) {
	if s.undo != nil {
		*s.undo = append(*s.undo, fn)
	}
}

func (st *memoryState) nextID() int64 {
	st.lastID++
	return st.lastID
}

// stamp returns a strictly increasing timestamp so createDate ordering is total.
func (st *memoryState) stamp() time.Time {
	t := st.now()
	if !t.After(st.lastStamp) {
		t = st.lastStamp.Add(time.Microsecond)
	}
	st.lastStamp = t
	return t
}

type memoryFlights MemoryStore

func (r *memoryFlights) store() *MemoryStore { return (*MemoryStore)(r) }

func (r *memoryFlights) List(_ context.Context) ([]domain.Flight, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	flights := make([]domain.Flight, 0, len(st.flights))
	for _, f := range st.flights {
		flights = append(flights, f)
	}
	sort.Slice(flights, func(i, j int) bool {
		return flights[i].DepartureTime.Before(flights[j].DepartureTime)
	})
	return flights, nil
}

func (r *memoryFlights) GetByID(_ context.Context, id int64) (*domain.Flight, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	f, ok := st.flights[id]
	if !ok {
		return nil, domain.NotFoundError("flight", id)
	}
	return &f, nil
}

func (r *memoryFlights) GetForUpdate(ctx context.Context, id int64) (*domain.Flight, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryFlights) Create(_ context.Context, f *domain.Flight) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.airlines[f.AirlineID]; !ok {
		return domain.NotFoundError("airline", f.AirlineID)
	}
	f.ID = st.nextID()
	f.CreatedAt = st.stamp()
	f.UpdatedAt = f.CreatedAt
	st.flights[f.ID] = *f
	id := f.ID
	r.store().record(func() { delete(st.flights, id) })
	return nil
}

func (r *memoryFlights) Update(_ context.Context, f *domain.Flight) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	prev, ok := st.flights[f.ID]
	if !ok {
		return domain.NotFoundError("flight", f.ID)
	}
	if _, ok := st.airlines[f.AirlineID]; !ok {
		return domain.NotFoundError("airline", f.AirlineID)
	}
	f.BookedSeats = prev.BookedSeats
	f.CreatedAt = prev.CreatedAt
	f.Version = prev.Version + 1
	f.UpdatedAt = st.stamp()
	st.flights[f.ID] = *f
	r.store().record(func() { st.flights[prev.ID] = prev })
	return nil
}

func (r *memoryFlights) Delete(_ context.Context, id int64) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	prev, ok := st.flights[id]
	if !ok {
		return domain.NotFoundError("flight", id)
	}
	delete(st.flights, id)
	r.store().record(func() { st.flights[id] = prev })
	return nil
}

func (r *memoryFlights) SetBookedSeats(_ context.Context, f *domain.Flight) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	prev, ok := st.flights[f.ID]
	if !ok || prev.Version != f.Version {
		return ErrVersionConflict
	}
	next := prev
	next.BookedSeats = f.BookedSeats
	next.Version++
	next.UpdatedAt = st.stamp()
	st.flights[f.ID] = next
	f.Version = next.Version
	r.store().record(func() { st.flights[prev.ID] = prev })
	return nil
}

type memoryBookings MemoryStore

func (r *memoryBookings) store() *MemoryStore { return (*MemoryStore)(r) }

func (r *memoryBookings) Create(_ context.Context, b *domain.Booking) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.flights[b.FlightID]; !ok {
		return domain.NotFoundError("flight", b.FlightID)
	}
	if _, ok := st.passengers[b.PassengerID]; !ok {
		return domain.NotFoundError("passenger", b.PassengerID)
	}
	for _, existing := range st.bookings {
		if existing.FlightID != b.FlightID || !existing.IsActive() {
			continue
		}
		if strings.EqualFold(existing.SeatNumber, b.SeatNumber) {
			return fmt.Errorf("seat %s on flight %d: %w", b.SeatNumber, b.FlightID, domain.ErrSeatTaken)
		}
		if existing.PassengerID == b.PassengerID {
			return fmt.Errorf("passenger %d on flight %d: %w", b.PassengerID, b.FlightID, domain.ErrDuplicateBooking)
		}
	}

	b.ID = st.nextID()
	b.CreatedAt = st.stamp()
	b.UpdatedAt = b.CreatedAt
	b.Price = b.Price.Round(2)
	st.bookings[b.ID] = *b
	id := b.ID
	r.store().record(func() { delete(st.bookings, id) })
	return nil
}

func (r *memoryBookings) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	b, ok := st.bookings[id]
	if !ok {
		return nil, domain.NotFoundError("booking", id)
	}
	return &b, nil
}

func (r *memoryBookings) UpdateStatus(_ context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	prev, ok := st.bookings[id]
	if !ok {
		return nil, domain.NotFoundError("booking", id)
	}
	if prev.Status == domain.BookingStatusCancelled {
		return nil, fmt.Errorf("booking %d: %w", id, domain.ErrAlreadyCancelled)
	}
	if !prev.Status.CanTransition(status) {
		return nil, fmt.Errorf("booking %d %s -> %s: %w", id, prev.Status, status, domain.ErrInvalidTransition)
	}

	next := prev
	next.Status = status
	next.UpdatedAt = st.stamp()
	st.bookings[id] = next
	r.store().record(func() { st.bookings[id] = prev })
	return &next, nil
}

func (r *memoryBookings) ListByFlight(_ context.Context, flightID int64) ([]domain.Booking, error) {
	return r.filter(func(b domain.Booking) bool { return b.FlightID == flightID }, byCreated), nil
}

func (r *memoryBookings) ListByPassenger(_ context.Context, passengerID int64) ([]domain.Booking, error) {
	st := r.state
	bookings := r.filter(func(b domain.Booking) bool { return b.PassengerID == passengerID }, byCreated)

	st.mu.Lock()
	defer st.mu.Unlock()
	sort.SliceStable(bookings, func(i, j int) bool {
		return st.flights[bookings[i].FlightID].DepartureTime.Before(st.flights[bookings[j].FlightID].DepartureTime)
	})
	return bookings, nil
}

func (r *memoryBookings) CountByAirline(_ context.Context, airlineID int64) (int, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	count := 0
	for _, b := range st.bookings {
		if st.flights[b.FlightID].AirlineID == airlineID {
			count++
		}
	}
	return count, nil
}

func (r *memoryBookings) List(_ context.Context, limit, offset int) ([]domain.Booking, error) {
	all := r.filter(func(domain.Booking) bool { return true }, func(a, b domain.Booking) bool { return byCreated(b, a) })
	if offset >= len(all) {
		return []domain.Booking{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *memoryBookings) ListWaitlisted(_ context.Context, flightID int64) ([]domain.Booking, error) {
	return r.filter(func(b domain.Booking) bool {
		return b.FlightID == flightID && b.Status == domain.BookingStatusWaitlisted
	}, byCreated), nil
}

func (r *memoryBookings) ListWaitlistedDeparted(_ context.Context, now time.Time) ([]domain.Booking, error) {
	st := r.state
	st.mu.Lock()
	departed := make(map[int64]bool, len(st.flights))
	for id, f := range st.flights {
		departed[id] = f.HasDeparted(now)
	}
	st.mu.Unlock()

	bookings := r.filter(func(b domain.Booking) bool {
		return b.Status == domain.BookingStatusWaitlisted && departed[b.FlightID]
	}, byCreated)
	sort.SliceStable(bookings, func(i, j int) bool { return bookings[i].FlightID < bookings[j].FlightID })
	return bookings, nil
}

func (r *memoryBookings) HasActiveForPassenger(_ context.Context, flightID, passengerID int64) (bool, error) {
	found := r.filter(func(b domain.Booking) bool {
		return b.FlightID == flightID && b.PassengerID == passengerID && b.IsActive()
	}, nil)
	return len(found) > 0, nil
}

func (r *memoryBookings) IsSeatTaken(_ context.Context, flightID int64, seatNumber string) (bool, error) {
	found := r.filter(func(b domain.Booking) bool {
		return b.FlightID == flightID && strings.EqualFold(b.SeatNumber, seatNumber) && b.IsActive()
	}, nil)
	return len(found) > 0, nil
}

func (r *memoryBookings) CountByFlight(_ context.Context, flightID int64) (int, error) {
	return len(r.filter(func(b domain.Booking) bool { return b.FlightID == flightID }, nil)), nil
}

func (r *memoryBookings) filter(keep func(domain.Booking) bool, less func(a, b domain.Booking) bool) []domain.Booking {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]domain.Booking, 0)
	for _, b := range st.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	if less != nil {
		sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

func byCreated(a, b domain.Booking) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

type memoryPassengers MemoryStore

func (r *memoryPassengers) store() *MemoryStore { return (*MemoryStore)(r) }

func (r *memoryPassengers) Create(_ context.Context, p *domain.Passenger) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, existing := range st.passengers {
		if strings.EqualFold(existing.Email, p.Email) {
			return fmt.Errorf("passenger email %s: %w", p.Email, domain.ErrConflict)
		}
	}
	p.ID = st.nextID()
	p.LoyaltyPoints = domain.ClampPoints(p.LoyaltyPoints)
	p.CreatedAt = st.stamp()
	st.passengers[p.ID] = *p
	id := p.ID
	r.store().record(func() { delete(st.passengers, id) })
	return nil
}

func (r *memoryPassengers) GetByID(_ context.Context, id int64) (*domain.Passenger, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	p, ok := st.passengers[id]
	if !ok {
		return nil, domain.NotFoundError("passenger", id)
	}
	return &p, nil
}

func (r *memoryPassengers) List(_ context.Context) ([]domain.Passenger, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	passengers := make([]domain.Passenger, 0, len(st.passengers))
	for _, p := range st.passengers {
		passengers = append(passengers, p)
	}
	sort.Slice(passengers, func(i, j int) bool { return passengers[i].ID < passengers[j].ID })
	return passengers, nil
}

func (r *memoryPassengers) Update(_ context.Context, p *domain.Passenger) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	prev, ok := st.passengers[p.ID]
	if !ok {
		return domain.NotFoundError("passenger", p.ID)
	}
	for _, existing := range st.passengers {
		if existing.ID != p.ID && strings.EqualFold(existing.Email, p.Email) {
			return fmt.Errorf("passenger email %s: %w", p.Email, domain.ErrConflict)
		}
	}
	next := prev
	next.FirstName, next.LastName, next.Email = p.FirstName, p.LastName, p.Email
	st.passengers[p.ID] = next
	p.LoyaltyPoints, p.CreatedAt = next.LoyaltyPoints, next.CreatedAt
	r.store().record(func() {
		cur := st.passengers[prev.ID]
		cur.FirstName, cur.LastName, cur.Email = prev.FirstName, prev.LastName, prev.Email
		st.passengers[prev.ID] = cur
	})
	return nil
}

func (r *memoryPassengers) AdjustLoyalty(_ context.Context, id int64, delta int) (int, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	prev, ok := st.passengers[id]
	if !ok {
		return 0, domain.NotFoundError("passenger", id)
	}
	next := prev
	next.LoyaltyPoints = domain.ClampPoints(prev.LoyaltyPoints + delta)
	st.passengers[id] = next
	applied := next.LoyaltyPoints - prev.LoyaltyPoints
	r.store().record(func() {
		p := st.passengers[id]
		p.LoyaltyPoints = domain.ClampPoints(p.LoyaltyPoints - applied)
		st.passengers[id] = p
	})
	return next.LoyaltyPoints, nil
}

type memoryAirlines MemoryStore

func (r *memoryAirlines) store() *MemoryStore { return (*MemoryStore)(r) }

func (r *memoryAirlines) List(_ context.Context) ([]domain.Airline, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	airlines := make([]domain.Airline, 0, len(st.airlines))
	for _, a := range st.airlines {
		airlines = append(airlines, a)
	}
	sort.Slice(airlines, func(i, j int) bool {
		if airlines[i].Name == airlines[j].Name {
			return airlines[i].ID < airlines[j].ID
		}
		return airlines[i].Name < airlines[j].Name
	})
	return airlines, nil
}

func (r *memoryAirlines) GetByID(_ context.Context, id int64) (*domain.Airline, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	a, ok := st.airlines[id]
	if !ok {
		return nil, domain.NotFoundError("airline", id)
	}
	return &a, nil
}

// codesTaken must be called with state.mu held.
func (st *memoryState) codesTaken(a *domain.Airline) error {
	for _, existing := range st.airlines {
		if existing.ID == a.ID {
			continue
		}
		if existing.CodeIATA == a.CodeIATA {
			return fmt.Errorf("IATA code %s: %w", a.CodeIATA, domain.ErrConflict)
		}
		if existing.CodeICAO == a.CodeICAO {
			return fmt.Errorf("ICAO code %s: %w", a.CodeICAO, domain.ErrConflict)
		}
	}
	return nil
}

func (r *memoryAirlines) Create(_ context.Context, a *domain.Airline) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.codesTaken(a); err != nil {
		return err
	}
	a.ID = st.nextID()
	a.CreatedAt = st.stamp()
	a.UpdatedAt = a.CreatedAt
	st.airlines[a.ID] = *a
	id := a.ID
	r.store().record(func() { delete(st.airlines, id) })
	return nil
}

func (r *memoryAirlines) Update(_ context.Context, a *domain.Airline) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	prev, ok := st.airlines[a.ID]
	if !ok {
		return domain.NotFoundError("airline", a.ID)
	}
	if err := st.codesTaken(a); err != nil {
		return err
	}
	a.CreatedAt = prev.CreatedAt
	a.UpdatedAt = st.stamp()
	st.airlines[a.ID] = *a
	r.store().record(func() { st.airlines[prev.ID] = prev })
	return nil
}

func (r *memoryAirlines) Delete(_ context.Context, id int64) error {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	prev, ok := st.airlines[id]
	if !ok {
		return domain.NotFoundError("airline", id)
	}
	owned := make(map[int64]domain.Flight)
	for fid, f := range st.flights {
		if f.AirlineID == id {
			owned[fid] = f
		}
	}
	for _, b := range st.bookings {
		if _, ok := owned[b.FlightID]; ok {
			return fmt.Errorf("airline %d has booked flights: %w", id, domain.ErrConflict)
		}
	}
	for fid := range owned {
		delete(st.flights, fid)
	}
	delete(st.airlines, id)
	r.store().record(func() {
		st.airlines[id] = prev
		for fid, f := range owned {
			st.flights[fid] = f
		}
	})
	return nil
}

var (
	_ Store               = (*MemoryStore)(nil)
	_ AirlineRepository   = (*memoryAirlines)(nil)
	_ FlightRepository    = (*memoryFlights)(nil)
	_ BookingRepository   = (*memoryBookings)(nil)
	_ PassengerRepository = (*memoryPassengers)(nil)
)
