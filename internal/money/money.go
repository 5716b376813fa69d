// Package money provides a fixed-point USD type used anywhere the router
// touches a payment amount. No arbitrary-precision decimal library
// appears anywhere in the reference corpus this module was grounded on,
// so amounts are carried as integer micro-dollars and only promoted to
// math/big.Rat at the boundaries that need rounding to a fixed number of
// decimal places (pay-call envelopes, header amounts). float64 is never
// used for a value that crosses a payment boundary.
package money

import (
	"math/big"
)

// Micros is a USD amount expressed in millionths of a dollar (the unit
// the spec's "pre-authorization amount" is expressed in).
type Micros int64

// USD wraps a micro-dollar amount and exposes decimal-safe conversions.
type USD struct {
	micros Micros
}

// FromMicros builds a USD value from an integer micro-dollar amount.
func FromMicros(m Micros) USD {
	return USD{micros: m}
}

// FromFloat builds a USD value from a float64, rounding to the nearest
// micro-dollar. Used only at the edge where external systems hand us a
// float (e.g. a JSON-RPC balance response); never in the core cost math.
func FromFloat(f float64) USD {
	r := new(big.Rat).SetFloat64(f)
	if r == nil {
		return USD{}
	}
	scaled := new(big.Rat).Mul(r, big.NewRat(1_000_000, 1))
	num, _ := new(big.Int).SetString(scaled.FloatString(0), 10)
	return USD{micros: Micros(num.Int64())}
}

// Micros returns the underlying micro-dollar amount.
func (u USD) Micros() Micros { return u.micros }

// Float64 returns an approximate float64 view, for logging and JSON
// fields that don't participate in further money math.
func (u USD) Float64() float64 {
	return float64(u.micros) / 1_000_000
}

// RoundedString renders the amount rounded to 6 decimal places, floored
// to a minimum of minUSD (used by the claw.credit amount-conversion
// rule in spec.md §4.6.b).
func (u USD) RoundedString(minUSD float64) string {
	v := big.NewRat(int64(u.micros), 1_000_000)
	min := big.NewRat(int64(FromFloat(minUSD).micros), 1_000_000)
	if v.Cmp(min) < 0 {
		v = min
	}
	return v.FloatString(6)
}

// Mul multiplies by a scalar (e.g. price-per-million × tokens/1e6).
func (u USD) Mul(scalar float64) USD {
	r := new(big.Rat).Mul(new(big.Rat).SetInt64(int64(u.micros)), new(big.Rat).SetFloat64(scalar))
	num := new(big.Int).Div(r.Num(), r.Denom())
	return USD{micros: Micros(num.Int64())}
}

// LessOrEqual reports whether u <= other.
func (u USD) LessOrEqual(other USD) bool { return u.micros <= other.micros }

// IsZero reports whether the amount is exactly zero.
func (u USD) IsZero() bool { return u.micros == 0 }

// CostFromPricePerMillion computes price-per-million-tokens × maxTokens.
func CostFromPricePerMillion(pricePerMillion float64, maxTokens int) USD {
	if maxTokens <= 0 || pricePerMillion <= 0 {
		return USD{}
	}
	micros := pricePerMillion * float64(maxTokens)
	return USD{micros: Micros(micros)}
}
