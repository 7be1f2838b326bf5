package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/craftly/craftly/internal/domain/catalog"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/types"
)

// PriceContext carries the inputs a pricing resolution may need. Quantity is
// required for quantity-tiered entities, ComplexityLabel for
// complexity-tiered ones.
type PriceContext struct {
	Quantity        int64
	ComplexityLabel string
}

// BundleLine is one priced line reference inside a bundle aggregation
type BundleLine struct {
	Entity  *catalog.PricedEntity
	Context PriceContext
}

// PriceService resolves amounts due for priced catalog entities. Resolution
// is pure: two calls with identical inputs return identical amounts and
// nothing is mutated.
type PriceService interface {
	// ResolvePrice returns the amount due for the entity in the given
	// context, rounded to two places only at the final step
	ResolvePrice(ctx context.Context, entity *catalog.PricedEntity, priceCtx PriceContext) (decimal.Decimal, error)

	// CalculateBundleTotal sums the resolved prices of the lines, applies
	// the discount percent, and rounds once at the end
	CalculateBundleTotal(ctx context.Context, lines []BundleLine, discountPercent decimal.Decimal) (decimal.Decimal, error)
}

type priceService struct {
	ServiceParams
}

func NewPriceService(params ServiceParams) PriceService {
	return &priceService{
		ServiceParams: params,
	}
}

func (s *priceService) ResolvePrice(ctx context.Context, entity *catalog.PricedEntity, priceCtx PriceContext) (decimal.Decimal, error) {
	amount, err := s.resolveRaw(ctx, entity, priceCtx)
	if err != nil {
		return decimal.Zero, err
	}
	// Two-place rounding is applied only here, never on intermediate tier
	// lookups, so bundle aggregation does not compound rounding error
	return amount.Round(2), nil
}

func (s *priceService) resolveRaw(_ context.Context, entity *catalog.PricedEntity, priceCtx PriceContext) (decimal.Decimal, error) {
	if entity == nil {
		return decimal.Zero, ierr.NewError("priced entity is required").
			WithHint("Provide a catalog entity to price").
			Mark(ierr.ErrValidation)
	}

	switch entity.PricingStructure {
	case types.PRICING_STRUCTURE_SINGLE:
		if entity.BasePrice == nil {
			return decimal.Zero, ierr.NewError("priced entity has no base price").
				WithHint("Single-priced entities must carry a base price").
				WithReportableDetails(map[string]interface{}{
					"entity_id": entity.ID,
				}).
				Mark(ierr.ErrValidation)
		}
		return *entity.BasePrice, nil

	case types.PRICING_STRUCTURE_COMPLEXITY_TIERED:
		tier, err := entity.TierForLabel(priceCtx.ComplexityLabel)
		if err != nil {
			return decimal.Zero, err
		}
		return tier.Price, nil

	case types.PRICING_STRUCTURE_QUANTITY_TIERED:
		if priceCtx.Quantity <= 0 {
			return decimal.Zero, ierr.NewError("quantity out of range").
				WithHint("Quantity must be greater than zero").
				WithReportableDetails(map[string]interface{}{
					"entity_id": entity.ID,
					"quantity":  priceCtx.Quantity,
				}).
				Mark(ierr.ErrValidation)
		}
		tier, err := entity.TierForQuantity(priceCtx.Quantity)
		if err != nil {
			return decimal.Zero, err
		}
		if tier.TierMode == types.TIER_MODE_FLAT {
			return tier.Price, nil
		}
		return tier.Price.Mul(decimal.NewFromInt(priceCtx.Quantity)), nil

	default:
		return decimal.Zero, ierr.NewErrorf("unsupported pricing structure %s", entity.PricingStructure).
			WithHint("Pricing structure must be one of: single, complexity_tiered, quantity_tiered").
			WithReportableDetails(map[string]interface{}{
				"entity_id": entity.ID,
			}).
			Mark(ierr.ErrValidation)
	}
}

func (s *priceService) CalculateBundleTotal(ctx context.Context, lines []BundleLine, discountPercent decimal.Decimal) (decimal.Decimal, error) {
	if discountPercent.IsNegative() || discountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, ierr.NewError("discount percent out of range").
			WithHint("Discount must be between 0 and 100").
			WithReportableDetails(map[string]interface{}{
				"discount_percent": discountPercent.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	total := decimal.Zero
	for _, line := range lines {
		amount, err := s.resolveRaw(ctx, line.Entity, line.Context)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}

	multiplier := decimal.NewFromInt(100).Sub(discountPercent).Div(decimal.NewFromInt(100))
	return total.Mul(multiplier).Round(2), nil
}
