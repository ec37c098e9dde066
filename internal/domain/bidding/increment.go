package bidding

import "github.com/shopspring/decimal"

// Tier is one step of the increment table: prices below Below bid up by Step
type Tier struct {
	Below decimal.Decimal
	Step  decimal.Decimal
}

// DefaultTiers is the house increment table
var DefaultTiers = []Tier{
	{Below: decimal.NewFromInt(100), Step: decimal.NewFromInt(25)},
	{Below: decimal.NewFromInt(500), Step: decimal.NewFromInt(50)},
	{Below: decimal.NewFromInt(1000), Step: decimal.NewFromInt(100)},
	{Below: decimal.NewFromInt(5000), Step: decimal.NewFromInt(250)},
	{Below: decimal.NewFromInt(10000), Step: decimal.NewFromInt(500)},
}

// DefaultTopStep applies to prices above the last tier
var DefaultTopStep = decimal.NewFromInt(1000)

// Calculator maps a current price to the next admissible bid.
// Floor is the session-wide minimum increment; a tier step below it is raised to it.
type Calculator struct {
	Tiers   []Tier
	TopStep decimal.Decimal
	Floor   decimal.Decimal
}

// NewCalculator returns a calculator over the default tiers
func NewCalculator(floor decimal.Decimal) Calculator {
	return Calculator{Tiers: DefaultTiers, TopStep: DefaultTopStep, Floor: floor}
}

// Increment returns the step applied on top of price
func (c Calculator) Increment(price decimal.Decimal) decimal.Decimal {
	step := c.TopStep
	for _, tier := range c.Tiers {
		if price.LessThan(tier.Below) {
			step = tier.Step
			break
		}
	}
	if step.LessThan(c.Floor) {
		return c.Floor
	}
	return step
}

// MinimumBid is max(price + increment(price), minPreBid)
func (c Calculator) MinimumBid(price, minPreBid decimal.Decimal) decimal.Decimal {
	return decimal.Max(price.Add(c.Increment(price)), minPreBid)
}
