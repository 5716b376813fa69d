package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromFloat_RoundTrip(t *testing.T) {
	u := FromFloat(1.5)
	assert.Equal(t, Micros(1_500_000), u.Micros())
	assert.InDelta(t, 1.5, u.Float64(), 0.0001)
}

func TestRoundedString_FloorsToMinimum(t *testing.T) {
	u := FromFloat(0.0001)
	assert.Equal(t, "0.010000", u.RoundedString(0.01))
}

func TestRoundedString_AboveMinimumUnchanged(t *testing.T) {
	u := FromFloat(5.25)
	assert.Equal(t, "5.250000", u.RoundedString(0.01))
}

func TestCostFromPricePerMillion(t *testing.T) {
	cost := CostFromPricePerMillion(9.0, 1000)
	assert.Equal(t, Micros(9000), cost.Micros())
}

func TestCostFromPricePerMillion_ZeroPriceIsZero(t *testing.T) {
	cost := CostFromPricePerMillion(0, 1000)
	assert.True(t, cost.IsZero())
}

func TestLessOrEqual(t *testing.T) {
	a := FromMicros(100)
	b := FromMicros(200)
	assert.True(t, a.LessOrEqual(b))
	assert.False(t, b.LessOrEqual(a))
	assert.True(t, a.LessOrEqual(a))
}
