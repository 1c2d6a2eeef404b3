// Package pricing computes demand-sensitive fares from flight occupancy and loyalty.
package pricing

import "github.com/shopspring/decimal"

const (
	lowOccupancy          = 0.50
	highOccupancy         = 0.80
	loyaltyDiscountPoints = 1000
	scale                 = 2
)

var (
	midTierMultiplier  = decimal.RequireFromString("1.20")
	highTierMultiplier = decimal.RequireFromString("1.50")
	loyaltyDiscount    = decimal.RequireFromString("0.90")
	refundRate         = decimal.RequireFromString("0.80")
	pointsRate         = decimal.RequireFromString("0.10")
)

// Price returns the fare for a seat given the occupancy ratio observed before
// the booking and the passenger's current loyalty balance.
func Price(basePrice decimal.Decimal, occupancyRatio float64, loyaltyPoints int) decimal.Decimal {
	price := basePrice
	switch {
	case occupancyRatio <= lowOccupancy:
	case occupancyRatio < highOccupancy:
		price = price.Mul(midTierMultiplier).Round(scale)
	default:
		price = price.Mul(highTierMultiplier).Round(scale)
	}

	if loyaltyPoints > loyaltyDiscountPoints {
		price = price.Mul(loyaltyDiscount).Round(scale)
	}
	return price.Round(scale)
}

// Refund is the amount returned when a CONFIRMED booking is cancelled.
func Refund(price decimal.Decimal) decimal.Decimal {
	return price.Mul(refundRate).Round(scale)
}

// LoyaltyPoints is floor(price * 0.10).
func LoyaltyPoints(price decimal.Decimal) int {
	return int(price.Mul(pointsRate).Floor().IntPart())
}
