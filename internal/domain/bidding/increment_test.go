package bidding

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestCalculator_Increment(t *testing.T) {
	calc := NewCalculator(decimal.Zero)

	tests := []struct {
		name  string
		price string
		want  string
	}{
		{"zero price", "0", "25"},
		{"just below 100", "99.99", "25"},
		{"at 100", "100", "50"},
		{"just below 500", "499", "50"},
		{"at 500", "500", "100"},
		{"mid hundreds", "600", "100"},
		{"at 1000", "1000", "250"},
		{"just below 5000", "4999", "250"},
		{"at 5000", "5000", "500"},
		{"just below 10000", "9999.5", "500"},
		{"at 10000", "10000", "1000"},
		{"far above table", "250000", "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Increment(decimal.RequireFromString(tt.price))
			check.Equal(t, tt.want, got.String())
		})
	}
}

func TestCalculator_FloorRaisesSmallSteps(t *testing.T) {
	calc := NewCalculator(money(200))

	check.Equal(t, "200", calc.Increment(money(50)).String())
	check.Equal(t, "250", calc.Increment(money(2000)).String())
	check.Equal(t, "500", calc.Increment(money(6000)).String())
}

func TestCalculator_MinimumBid(t *testing.T) {
	calc := NewCalculator(decimal.Zero)

	tests := []struct {
		name      string
		price     int64
		minPreBid int64
		want      string
	}{
		{"increment dominates", 600, 0, "700"},
		{"min pre-bid dominates on fresh lot", 0, 1500, "1500"},
		{"seeded at min pre-bid", 1500, 1500, "1750"},
		{"top tier", 12000, 5000, "13000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.MinimumBid(money(tt.price), money(tt.minPreBid))
			check.Equal(t, tt.want, got.String())
		})
	}
}
