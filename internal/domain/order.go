package domain

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	orderNumberPrefix = "ORD-"
	// NotAvailable fills shipping fields the payment-intent flow cannot supply
	NotAvailable = "N/A"
)

// NewOrderNumber builds a human-readable order number: prefix, the last
// eight digits of the current unix-millisecond clock and three random digits.
func NewOrderNumber(now time.Time) string {
	ms := now.UnixMilli() % 100_000_000
	return fmt.Sprintf("%s%08d%03d", orderNumberPrefix, ms, rand.IntN(1000))
}

// NAShippingAddress is the sentinel address used when the provider flow carries none
func NAShippingAddress() ShippingAddress {
	return ShippingAddress{
		Name:       NotAvailable,
		Street:     NotAvailable,
		City:       NotAvailable,
		State:      NotAvailable,
		PostalCode: NotAvailable,
		Country:    NotAvailable,
		Phone:      NotAvailable,
	}
}

// ShippingCostFor returns the flat rate, or zero once the subtotal reaches the threshold.
// A zero threshold disables free shipping.
func ShippingCostFor(subtotal, flatRate, freeThreshold decimal.Decimal) decimal.Decimal {
	if freeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(freeThreshold) {
		return decimal.Zero
	}
	return flatRate
}

// Subtotal is Σ unit price × quantity over the line items
func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Recalculate sets TotalAmount from the items and FinalAmount = TotalAmount + shipping
func (o *Order) Recalculate(shipping decimal.Decimal) {
	o.TotalAmount = o.Subtotal()
	o.ShippingCost = shipping
	o.FinalAmount = o.TotalAmount.Add(shipping)
}

// OwnedBy reports whether userID placed the order
func (o *Order) OwnedBy(userID uuid.UUID) bool {
	return o.UserID == userID
}

// ContainsProduct reports whether any line item references productID
func (o *Order) ContainsProduct(productID uuid.UUID) bool {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

// ItemCount is the number of units across all lines
func (o *Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// ToMinorUnits converts an amount to the provider's integer minor units (cents)
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts provider minor units back to an amount
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
