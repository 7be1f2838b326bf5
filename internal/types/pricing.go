package types

import ierr "github.com/craftly/craftly/internal/errors"

// PricingStructure determines how a priced entity resolves its amount
type PricingStructure string

const (
	// PRICING_STRUCTURE_SINGLE resolves to the entity's base price
	PRICING_STRUCTURE_SINGLE PricingStructure = "single"

	// PRICING_STRUCTURE_COMPLEXITY_TIERED resolves by matching a complexity
	// label ("Basic", "Advanced", ...) against the entity's tiers
	PRICING_STRUCTURE_COMPLEXITY_TIERED PricingStructure = "complexity_tiered"

	// PRICING_STRUCTURE_QUANTITY_TIERED resolves by locating the tier whose
	// numeric range contains the requested quantity
	PRICING_STRUCTURE_QUANTITY_TIERED PricingStructure = "quantity_tiered"
)

func (p PricingStructure) Validate() error {
	switch p {
	case PRICING_STRUCTURE_SINGLE,
		PRICING_STRUCTURE_COMPLEXITY_TIERED,
		PRICING_STRUCTURE_QUANTITY_TIERED:
		return nil
	default:
		return ierr.NewError("invalid pricing structure").
			WithHint("Pricing structure must be one of: single, complexity_tiered, quantity_tiered").
			WithReportableDetails(map[string]interface{}{
				"pricing_structure": p,
			}).
			Mark(ierr.ErrValidation)
	}
}

// TierMode determines whether a quantity tier's price is applied per unit
// or as a flat amount for the whole range. It is a catalog property and is
// passed through pricing resolution unchanged.
type TierMode string

const (
	TIER_MODE_PER_UNIT TierMode = "per_unit"
	TIER_MODE_FLAT     TierMode = "flat"
)

func (t TierMode) Validate() error {
	switch t {
	case TIER_MODE_PER_UNIT, TIER_MODE_FLAT:
		return nil
	default:
		return ierr.NewError("invalid tier mode").
			WithHint("Tier mode must be one of: per_unit, flat").
			Mark(ierr.ErrValidation)
	}
}

// PricedEntityType identifies what kind of catalog entity carries the price
type PricedEntityType string

const (
	PRICED_ENTITY_TYPE_SERVICE PricedEntityType = "service"
	PRICED_ENTITY_TYPE_BUNDLE  PricedEntityType = "bundle"
	PRICED_ENTITY_TYPE_PACK    PricedEntityType = "pack"
)
