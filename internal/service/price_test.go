package service

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/craftly/craftly/internal/cache"
	"github.com/craftly/craftly/internal/config"
	"github.com/craftly/craftly/internal/domain/catalog"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/logger"
	"github.com/craftly/craftly/internal/testutil"
	"github.com/craftly/craftly/internal/types"
)

type PriceServiceSuite struct {
	suite.Suite
	ctx          context.Context
	priceService PriceService
	catalogRepo  *testutil.InMemoryCatalogStore
}

func TestPriceService(t *testing.T) {
	suite.Run(t, new(PriceServiceSuite))
}

func (s *PriceServiceSuite) SetupTest() {
	s.ctx = testutil.SetupContext()
	s.catalogRepo = testutil.NewInMemoryCatalogStore()

	serviceParams := ServiceParams{
		Logger:      logger.GetLogger(),
		Config:      config.GetDefaultConfig(),
		Cache:       cache.NewInMemoryCache(),
		CatalogRepo: s.catalogRepo,
	}
	s.priceService = NewPriceService(serviceParams)
}

func (s *PriceServiceSuite) singlePriced(amount string) *catalog.PricedEntity {
	return &catalog.PricedEntity{
		ID:               "svc-logo",
		Name:             "Logo Design",
		EntityType:       types.PRICED_ENTITY_TYPE_SERVICE,
		PricingStructure: types.PRICING_STRUCTURE_SINGLE,
		BasePrice:        lo.ToPtr(decimal.RequireFromString(amount)),
		BaseModel:        types.GetDefaultBaseModel(s.ctx),
	}
}

func (s *PriceServiceSuite) complexityTiered() *catalog.PricedEntity {
	return &catalog.PricedEntity{
		ID:               "svc-video",
		Name:             "Video Editing",
		EntityType:       types.PRICED_ENTITY_TYPE_SERVICE,
		PricingStructure: types.PRICING_STRUCTURE_COMPLEXITY_TIERED,
		Tiers: []catalog.PricingTier{
			{Label: "Basic", Price: decimal.RequireFromString("40"), TierMode: types.TIER_MODE_FLAT},
			{Label: "Standard", Price: decimal.RequireFromString("60"), TierMode: types.TIER_MODE_FLAT},
			{Label: "Advanced", Price: decimal.RequireFromString("80"), TierMode: types.TIER_MODE_FLAT},
			{Label: "Ultimate", Price: decimal.RequireFromString("100"), TierMode: types.TIER_MODE_FLAT},
		},
		BaseModel: types.GetDefaultBaseModel(s.ctx),
	}
}

func (s *PriceServiceSuite) quantityTiered() *catalog.PricedEntity {
	return &catalog.PricedEntity{
		ID:               "svc-data-entry",
		Name:             "Data Entry",
		EntityType:       types.PRICED_ENTITY_TYPE_SERVICE,
		PricingStructure: types.PRICING_STRUCTURE_QUANTITY_TIERED,
		Tiers: []catalog.PricingTier{
			{Label: "1-50", Price: decimal.RequireFromString("1.50"), TierMode: types.TIER_MODE_PER_UNIT},
			{Label: "51-75", Price: decimal.RequireFromString("1.30"), TierMode: types.TIER_MODE_PER_UNIT},
			{Label: "76-100", Price: decimal.RequireFromString("1.10"), TierMode: types.TIER_MODE_PER_UNIT},
			{Label: "101+", Price: decimal.RequireFromString("1.00"), TierMode: types.TIER_MODE_PER_UNIT},
		},
		BaseModel: types.GetDefaultBaseModel(s.ctx),
	}
}

func (s *PriceServiceSuite) TestResolveSinglePrice() {
	amount, err := s.priceService.ResolvePrice(s.ctx, s.singlePriced("150"), PriceContext{})
	s.NoError(err)
	s.True(decimal.RequireFromString("150").Equal(amount))
}

func (s *PriceServiceSuite) TestResolveSinglePriceMissingBasePrice() {
	entity := s.singlePriced("150")
	entity.BasePrice = nil

	_, err := s.priceService.ResolvePrice(s.ctx, entity, PriceContext{})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PriceServiceSuite) TestResolveComplexityTier() {
	amount, err := s.priceService.ResolvePrice(s.ctx, s.complexityTiered(), PriceContext{ComplexityLabel: "Standard"})
	s.NoError(err)
	s.True(decimal.RequireFromString("60").Equal(amount))
}

func (s *PriceServiceSuite) TestResolveComplexityTierCaseInsensitive() {
	amount, err := s.priceService.ResolvePrice(s.ctx, s.complexityTiered(), PriceContext{ComplexityLabel: "  ultimate "})
	s.NoError(err)
	s.True(decimal.RequireFromString("100").Equal(amount))
}

func (s *PriceServiceSuite) TestResolveComplexityTierUnknownLabel() {
	_, err := s.priceService.ResolvePrice(s.ctx, s.complexityTiered(), PriceContext{ComplexityLabel: "Premium"})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *PriceServiceSuite) TestResolveComplexityTierNoTiers() {
	entity := s.complexityTiered()
	entity.Tiers = nil

	_, err := s.priceService.ResolvePrice(s.ctx, entity, PriceContext{ComplexityLabel: "Standard"})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PriceServiceSuite) TestResolveQuantityTierBoundaries() {
	entity := s.quantityTiered()

	testCases := []struct {
		name     string
		quantity int64
		expected string
	}{
		{"first unit", 1, "1.50"},
		{"upper bound of first tier", 50, "75.00"},
		{"lower bound of second tier", 51, "66.30"},
		{"upper bound of second tier", 75, "97.50"},
		{"lower bound of third tier", 76, "83.60"},
		{"upper bound of third tier", 100, "110.00"},
		{"lower bound of open tier", 101, "101.00"},
		{"very large quantity", 100000, "100000.00"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			amount, err := s.priceService.ResolvePrice(s.ctx, entity, PriceContext{Quantity: tc.quantity})
			s.NoError(err)
			s.True(decimal.RequireFromString(tc.expected).Equal(amount),
				"quantity %d: expected %s, got %s", tc.quantity, tc.expected, amount)
		})
	}
}

func (s *PriceServiceSuite) TestResolveQuantityTierZeroQuantity() {
	_, err := s.priceService.ResolvePrice(s.ctx, s.quantityTiered(), PriceContext{Quantity: 0})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PriceServiceSuite) TestResolveQuantityTierNegativeQuantity() {
	_, err := s.priceService.ResolvePrice(s.ctx, s.quantityTiered(), PriceContext{Quantity: -5})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PriceServiceSuite) TestResolveQuantityTierFlatMode() {
	entity := s.quantityTiered()
	entity.Tiers[1].TierMode = types.TIER_MODE_FLAT

	amount, err := s.priceService.ResolvePrice(s.ctx, entity, PriceContext{Quantity: 60})
	s.NoError(err)
	s.True(decimal.RequireFromString("1.30").Equal(amount))
}

func (s *PriceServiceSuite) TestResolveIsPure() {
	entity := s.quantityTiered()
	priceCtx := PriceContext{Quantity: 87}

	first, err := s.priceService.ResolvePrice(s.ctx, entity, priceCtx)
	s.NoError(err)
	second, err := s.priceService.ResolvePrice(s.ctx, entity, priceCtx)
	s.NoError(err)

	s.True(first.Equal(second))
}

func (s *PriceServiceSuite) TestResolveUnsupportedStructure() {
	entity := s.singlePriced("10")
	entity.PricingStructure = types.PricingStructure("per_seat")

	_, err := s.priceService.ResolvePrice(s.ctx, entity, PriceContext{})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PriceServiceSuite) TestBundleTotalWithDiscount() {
	lines := []BundleLine{
		{Entity: s.singlePriced("150"), Context: PriceContext{}},
		{Entity: s.complexityTiered(), Context: PriceContext{ComplexityLabel: "Advanced"}},
		{Entity: s.quantityTiered(), Context: PriceContext{Quantity: 50}},
	}

	// 150 + 80 + 75 = 305, minus 10% = 274.50
	total, err := s.priceService.CalculateBundleTotal(s.ctx, lines, decimal.RequireFromString("10"))
	s.NoError(err)
	s.True(decimal.RequireFromString("274.50").Equal(total), "got %s", total)
}

func (s *PriceServiceSuite) TestBundleTotalRoundsOnceAtTheEnd() {
	third := decimal.NewFromInt(1).Div(decimal.NewFromInt(3))
	lines := []BundleLine{
		{Entity: &catalog.PricedEntity{
			ID:               "svc-a",
			PricingStructure: types.PRICING_STRUCTURE_SINGLE,
			BasePrice:        &third,
		}},
		{Entity: &catalog.PricedEntity{
			ID:               "svc-b",
			PricingStructure: types.PRICING_STRUCTURE_SINGLE,
			BasePrice:        &third,
		}},
		{Entity: &catalog.PricedEntity{
			ID:               "svc-c",
			PricingStructure: types.PRICING_STRUCTURE_SINGLE,
			BasePrice:        &third,
		}},
	}

	// Rounding each line first would give 0.33 * 3 = 0.99; summing raw
	// amounts and rounding once gives 1.00
	total, err := s.priceService.CalculateBundleTotal(s.ctx, lines, decimal.Zero)
	s.NoError(err)
	s.True(decimal.RequireFromString("1.00").Equal(total), "got %s", total)
}

func (s *PriceServiceSuite) TestBundleTotalDiscountOutOfRange() {
	lines := []BundleLine{{Entity: s.singlePriced("100")}}

	_, err := s.priceService.CalculateBundleTotal(s.ctx, lines, decimal.RequireFromString("101"))
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.priceService.CalculateBundleTotal(s.ctx, lines, decimal.RequireFromString("-1"))
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PriceServiceSuite) TestBundleTotalPropagatesLineError() {
	lines := []BundleLine{
		{Entity: s.singlePriced("100")},
		{Entity: s.complexityTiered(), Context: PriceContext{ComplexityLabel: "nonexistent"}},
	}

	_, err := s.priceService.CalculateBundleTotal(s.ctx, lines, decimal.Zero)
	s.Error(err)
}
