package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/types"
)

func quantityTieredEntity() *PricedEntity {
	return &PricedEntity{
		ID:               "svc-1",
		PricingStructure: types.PRICING_STRUCTURE_QUANTITY_TIERED,
		Tiers: []PricingTier{
			{Label: "1-50", Price: decimal.RequireFromString("1.50"), TierMode: types.TIER_MODE_PER_UNIT},
			{Label: "51-75", Price: decimal.RequireFromString("1.30"), TierMode: types.TIER_MODE_PER_UNIT},
			{Label: "76-100", Price: decimal.RequireFromString("1.10"), TierMode: types.TIER_MODE_PER_UNIT},
			{Label: "101+", Price: decimal.RequireFromString("1.00"), TierMode: types.TIER_MODE_PER_UNIT},
		},
	}
}

func TestTierForQuantity(t *testing.T) {
	entity := quantityTieredEntity()

	tests := []struct {
		name          string
		quantity      int64
		expectedLabel string
	}{
		{"lower bound", 1, "1-50"},
		{"inside first tier", 25, "1-50"},
		{"upper bound inclusive", 50, "1-50"},
		{"next tier lower bound", 51, "51-75"},
		{"third tier upper bound", 100, "76-100"},
		{"open tier lower bound", 101, "101+"},
		{"far beyond open tier", 1000000, "101+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, err := entity.TierForQuantity(tt.quantity)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedLabel, tier.Label)
		})
	}
}

func TestTierForQuantityEnDashLabel(t *testing.T) {
	entity := &PricedEntity{
		ID:               "svc-1",
		PricingStructure: types.PRICING_STRUCTURE_QUANTITY_TIERED,
		Tiers: []PricingTier{
			{Label: "1–50", Price: decimal.RequireFromString("2.00"), TierMode: types.TIER_MODE_PER_UNIT},
			{Label: "51+", Price: decimal.RequireFromString("1.00"), TierMode: types.TIER_MODE_PER_UNIT},
		},
	}

	tier, err := entity.TierForQuantity(30)
	assert.NoError(t, err)
	assert.Equal(t, "1–50", tier.Label)
}

func TestTierForQuantityLastTierUnboundedRegardlessOfLabel(t *testing.T) {
	// A misconfigured catalog may close the last range; treat it as open
	entity := &PricedEntity{
		ID:               "svc-1",
		PricingStructure: types.PRICING_STRUCTURE_QUANTITY_TIERED,
		Tiers: []PricingTier{
			{Label: "1-50", Price: decimal.RequireFromString("2.00"), TierMode: types.TIER_MODE_PER_UNIT},
			{Label: "51-100", Price: decimal.RequireFromString("1.00"), TierMode: types.TIER_MODE_PER_UNIT},
		},
	}

	tier, err := entity.TierForQuantity(5000)
	assert.NoError(t, err)
	assert.Equal(t, "51-100", tier.Label)
}

func TestTierForQuantityInvalidLabel(t *testing.T) {
	entity := &PricedEntity{
		ID:               "svc-1",
		PricingStructure: types.PRICING_STRUCTURE_QUANTITY_TIERED,
		Tiers: []PricingTier{
			{Label: "small", Price: decimal.RequireFromString("2.00"), TierMode: types.TIER_MODE_PER_UNIT},
		},
	}

	_, err := entity.TierForQuantity(10)
	assert.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestTierForQuantityNoTiers(t *testing.T) {
	entity := &PricedEntity{ID: "svc-1", PricingStructure: types.PRICING_STRUCTURE_QUANTITY_TIERED}

	_, err := entity.TierForQuantity(10)
	assert.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestTierForLabel(t *testing.T) {
	entity := &PricedEntity{
		ID:               "svc-1",
		PricingStructure: types.PRICING_STRUCTURE_COMPLEXITY_TIERED,
		Tiers: []PricingTier{
			{Label: "Basic", Price: decimal.RequireFromString("40"), TierMode: types.TIER_MODE_FLAT},
			{Label: "Advanced", Price: decimal.RequireFromString("80"), TierMode: types.TIER_MODE_FLAT},
		},
	}

	tier, err := entity.TierForLabel("advanced")
	assert.NoError(t, err)
	assert.True(t, decimal.RequireFromString("80").Equal(tier.Price))

	tier, err = entity.TierForLabel(" BASIC ")
	assert.NoError(t, err)
	assert.True(t, decimal.RequireFromString("40").Equal(tier.Price))

	_, err = entity.TierForLabel("Expert")
	assert.Error(t, err)
	assert.True(t, ierr.IsNotFound(err))
}
