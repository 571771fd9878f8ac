package domain

import "fmt"

// Price is an outcome price expressed as a probability in [0, 1].
type Price struct {
	amount float64
}

// NewPrice validates x and returns it as a Price. Values outside [0, 1] fail
// with ErrValidation.
func NewPrice(x float64) (Price, error) {
	if x < 0 || x > 1 {
		return Price{}, fmt.Errorf("price %v out of range [0,1]: %w", x, ErrValidation)
	}
	return Price{amount: x}, nil
}

// MustPrice is NewPrice for compile-time constants; it panics on invalid input.
func MustPrice(x float64) Price {
	p, err := NewPrice(x)
	if err != nil {
		panic(err)
	}
	return p
}

// Amount returns the scalar value of the price.
func (p Price) Amount() float64 { return p.amount }

// Quantity is a non-negative position or order size.
type Quantity struct {
	amount float64
}

// NewQuantity validates x and returns it as a Quantity. Negative values fail
// with ErrValidation.
func NewQuantity(x float64) (Quantity, error) {
	if x < 0 {
		return Quantity{}, fmt.Errorf("quantity %v must be >= 0: %w", x, ErrValidation)
	}
	return Quantity{amount: x}, nil
}

// MustQuantity is NewQuantity for known-good inputs; it panics on invalid input.
func MustQuantity(x float64) Quantity {
	q, err := NewQuantity(x)
	if err != nil {
		panic(err)
	}
	return q
}

// Amount returns the scalar value of the quantity.
func (q Quantity) Amount() float64 { return q.amount }

// IsZero reports whether the quantity is exactly zero.
func (q Quantity) IsZero() bool { return q.amount == 0 }

// Side indicates whether a position or order is a buy or a sell.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is one of the two defined sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}
