package airlines

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/Domenick1991/flightseats/internal/identity"
	"github.com/Domenick1991/flightseats/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockFlightsCache struct {
	mock.Mock
}

func (m *MockFlightsCache) InvalidateFlights(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var admin = identity.Caller{Admin: true}

func validInput() AirlineInput {
	return AirlineInput{CodeIATA: " tk ", CodeICAO: "thy", Name: " Turkish Airlines ", Country: "Turkey", FleetSize: 400}
}

func addFlight(t *testing.T, store *repository.MemoryStore, airlineID int64) *domain.Flight {
	t.Helper()
	departure := time.Now().Add(24 * time.Hour)
	f := &domain.Flight{
		AirlineID:     airlineID,
		FlightNumber:  "TK1",
		Origin:        "IST",
		Destination:   "ESB",
		DepartureTime: departure,
		ArrivalTime:   departure.Add(time.Hour),
		Capacity:      100,
		BasePrice:     decimal.NewFromInt(100),
	}
	require.NoError(t, store.Flights().Create(context.Background(), f))
	return f
}

func TestAirlineService_Create(t *testing.T) {
	service := NewAirlineService(repository.NewMemoryStore(), nil, zap.NewNop())

	a, err := service.Create(context.Background(), admin, validInput())
	require.NoError(t, err)

	assert.NotZero(t, a.ID)
	assert.Equal(t, "TK", a.CodeIATA)
	assert.Equal(t, "THY", a.CodeICAO)
	assert.Equal(t, "Turkish Airlines", a.Name)

	got, err := service.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Name, got.Name)
}

func TestAirlineService_Create_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(in *AirlineInput)
	}{
		{name: "short IATA", mutate: func(in *AirlineInput) { in.CodeIATA = "T" }},
		{name: "long ICAO", mutate: func(in *AirlineInput) { in.CodeICAO = "THYX" }},
		{name: "symbols in code", mutate: func(in *AirlineInput) { in.CodeIATA = "T-" }},
		{name: "short name", mutate: func(in *AirlineInput) { in.Name = "T" }},
		{name: "digits in country", mutate: func(in *AirlineInput) { in.Country = "Turkey1" }},
		{name: "negative fleet", mutate: func(in *AirlineInput) { in.FleetSize = -1 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			service := NewAirlineService(repository.NewMemoryStore(), nil, zap.NewNop())
			in := validInput()
			tc.mutate(&in)

			_, err := service.Create(context.Background(), admin, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestAirlineService_DuplicateCodes(t *testing.T) {
	service := NewAirlineService(repository.NewMemoryStore(), nil, zap.NewNop())
	ctx := context.Background()

	first, err := service.Create(ctx, admin, validInput())
	require.NoError(t, err)

	sameIATA := validInput()
	sameIATA.CodeICAO = "TKX"
	_, err = service.Create(ctx, admin, sameIATA)
	assert.ErrorIs(t, err, domain.ErrConflict)

	other, err := service.Create(ctx, admin, AirlineInput{CodeIATA: "PC", CodeICAO: "PGT", Name: "Pegasus", Country: "Turkey", FleetSize: 100})
	require.NoError(t, err)

	takeover := validInput()
	_, err = service.Update(ctx, admin, other.ID, takeover)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Keeping its own codes is not a clash.
	_, err = service.Update(ctx, admin, first.ID, validInput())
	assert.NoError(t, err)
}

func TestAirlineService_WritesRequireAdmin(t *testing.T) {
	service := NewAirlineService(repository.NewMemoryStore(), nil, zap.NewNop())
	passenger := identity.Caller{PassengerID: 1}
	ctx := context.Background()

	_, err := service.Create(ctx, passenger, validInput())
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = service.Update(ctx, passenger, 1, validInput())
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, service.Delete(ctx, passenger, 1), domain.ErrForbidden)
}

func TestAirlineService_Update(t *testing.T) {
	service := NewAirlineService(repository.NewMemoryStore(), nil, zap.NewNop())
	ctx := context.Background()

	a, err := service.Create(ctx, admin, validInput())
	require.NoError(t, err)

	in := validInput()
	in.FleetSize = 410
	updated, err := service.Update(ctx, admin, a.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 410, updated.FleetSize)

	_, err = service.Update(ctx, admin, 999, in)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAirlineService_DeleteRemovesFlights(t *testing.T) {
	store := repository.NewMemoryStore()
	cache := &MockFlightsCache{}
	cache.On("InvalidateFlights", mock.Anything).Return(nil).Once()
	service := NewAirlineService(store, cache, zap.NewNop())
	ctx := context.Background()

	a, err := service.Create(ctx, admin, validInput())
	require.NoError(t, err)
	f := addFlight(t, store, a.ID)

	require.NoError(t, service.Delete(ctx, admin, a.ID))

	_, err = store.Flights().GetByID(ctx, f.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = service.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, service.Delete(ctx, admin, a.ID), domain.ErrNotFound)
	cache.AssertExpectations(t)
}

func TestAirlineService_DeleteRefusedWithBookings(t *testing.T) {
	store := repository.NewMemoryStore()
	service := NewAirlineService(store, nil, zap.NewNop())
	ctx := context.Background()

	a, err := service.Create(ctx, admin, validInput())
	require.NoError(t, err)
	f := addFlight(t, store, a.ID)

	p := &domain.Passenger{FirstName: "A", LastName: "B", Email: "a@example.com"}
	require.NoError(t, store.Passengers().Create(ctx, p))
	require.NoError(t, store.Bookings().Create(ctx, &domain.Booking{
		FlightID: f.ID, PassengerID: p.ID, SeatNumber: "1A", Status: domain.BookingStatusCancelled, Price: f.BasePrice,
	}))

	assert.ErrorIs(t, service.Delete(ctx, admin, a.ID), domain.ErrConflict)

	_, err = store.Flights().GetByID(ctx, f.ID)
	assert.NoError(t, err)
}

func TestAirlineService_List(t *testing.T) {
	service := NewAirlineService(repository.NewMemoryStore(), nil, zap.NewNop())
	ctx := context.Background()

	_, err := service.Create(ctx, admin, validInput())
	require.NoError(t, err)
	_, err = service.Create(ctx, admin, AirlineInput{CodeIATA: "PC", CodeICAO: "PGT", Name: "Pegasus", Country: "Turkey", FleetSize: 100})
	require.NoError(t, err)

	list, err := service.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Pegasus", list[0].Name)
}
