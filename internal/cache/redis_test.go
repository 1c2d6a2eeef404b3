package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockCache(t *testing.T) (*RedisCache, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(client, 30*time.Second)
	c.newToken = func() string { return "tok-1" }
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return c, mock
}

func TestRedisCache_GetFlights_Miss(t *testing.T) {
	c, mock := newMockCache(t)
	mock.ExpectGet("cache:flights").RedisNil()

	flights, err := c.GetFlights(context.Background())
	require.NoError(t, err)
	assert.Nil(t, flights)
}

func TestRedisCache_GetFlights_Hit(t *testing.T) {
	c, mock := newMockCache(t)
	cached := []domain.Flight{{ID: 1, FlightNumber: "SU100", Capacity: 100, BasePrice: decimal.RequireFromString("250.50")}}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)
	mock.ExpectGet("cache:flights").SetVal(string(payload))

	flights, err := c.GetFlights(context.Background())
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.Equal(t, "SU100", flights[0].FlightNumber)
	assert.True(t, flights[0].BasePrice.Equal(decimal.RequireFromString("250.50")))
}

func TestRedisCache_GetFlights_Error(t *testing.T) {
	c, mock := newMockCache(t)
	mock.ExpectGet("cache:flights").SetErr(errors.New("timeout"))

	_, err := c.GetFlights(context.Background())
	assert.EqualError(t, err, "timeout")
}

func TestRedisCache_SetAndInvalidate(t *testing.T) {
	c, mock := newMockCache(t)
	flights := []domain.Flight{{ID: 2, FlightNumber: "SU200"}}
	payload, err := json.Marshal(flights)
	require.NoError(t, err)

	mock.ExpectSet("cache:flights", payload, 30*time.Second).SetVal("OK")
	mock.ExpectDel("cache:flights").SetVal(1)

	require.NoError(t, c.SetFlights(context.Background(), flights))
	require.NoError(t, c.InvalidateFlights(context.Background()))
}

func TestRedisCache_FlightLock(t *testing.T) {
	testCases := []struct {
		name      string
		setup     func(mock redismock.ClientMock)
		wantToken string
		wantOK    bool
		wantErr   bool
	}{
		{
			name: "acquired",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX("lock:flight:5", "tok-1", 10*time.Second).SetVal(true)
			},
			wantToken: "tok-1",
			wantOK:    true,
		},
		{
			name: "held elsewhere",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX("lock:flight:5", "tok-1", 10*time.Second).SetVal(false)
			},
		},
		{
			name: "redis down",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX("lock:flight:5", "tok-1", 10*time.Second).SetErr(errors.New("down"))
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, mock := newMockCache(t)
			tc.setup(mock)

			token, ok, err := c.AcquireFlightLock(context.Background(), 5, 10*time.Second)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantToken, token)
		})
	}
}

func TestRedisCache_ReleaseFlightLock(t *testing.T) {
	c, mock := newMockCache(t)
	mock.ExpectEval(releaseScript, []string{"lock:flight:5"}, "tok-1").SetVal(int64(1))

	require.NoError(t, c.ReleaseFlightLock(context.Background(), 5, "tok-1"))
}
