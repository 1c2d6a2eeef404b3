package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPrice(t *testing.T) {
	base := decimal.RequireFromString("1000")

	testCases := []struct {
		name      string
		base      decimal.Decimal
		occupancy float64
		points    int
		want      string
	}{
		{name: "empty flight", base: base, occupancy: 0, want: "1000"},
		{name: "exactly half full stays base", base: base, occupancy: 0.5, want: "1000"},
		{name: "mid tier", base: base, occupancy: 0.6, want: "1200"},
		{name: "just below high tier", base: base, occupancy: 0.79, want: "1200"},
		{name: "high tier boundary", base: base, occupancy: 0.8, want: "1500"},
		{name: "almost full", base: base, occupancy: 0.99, want: "1500"},
		{name: "overbooked ratio", base: base, occupancy: 1.05, want: "1500"},
		{name: "loyalty discount on mid tier", base: base, occupancy: 0.6, points: 1200, want: "1080"},
		{name: "exactly 1000 points has no discount", base: base, occupancy: 0.6, points: 1000, want: "1200"},
		{name: "loyalty discount on base tier", base: base, occupancy: 0.1, points: 1001, want: "900"},
		{name: "rounds half away from zero", base: decimal.RequireFromString("99.99"), occupancy: 0.6, want: "119.99"},
		{name: "rounding after discount", base: decimal.RequireFromString("123.45"), occupancy: 0.9, points: 5000, want: "166.66"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Price(tc.base, tc.occupancy, tc.points)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestRefund(t *testing.T) {
	assert.True(t, Refund(decimal.RequireFromString("1080")).Equal(decimal.RequireFromString("864")))
	assert.True(t, Refund(decimal.RequireFromString("10.01")).Equal(decimal.RequireFromString("8.01")))
}

func TestLoyaltyPoints(t *testing.T) {
	assert.Equal(t, 108, LoyaltyPoints(decimal.RequireFromString("1080")))
	assert.Equal(t, 11, LoyaltyPoints(decimal.RequireFromString("119.99")))
	assert.Equal(t, 0, LoyaltyPoints(decimal.RequireFromString("9.99")))
}
