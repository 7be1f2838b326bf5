package catalog

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/types"
)

// PricedEntity is a catalog record (service, bundle, or pack) carrying a
// pricing structure. The catalog owns these records; the billing core reads
// them and never writes.
type PricedEntity struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	EntityType       types.PricedEntityType `json:"entity_type"`
	PricingStructure types.PricingStructure `json:"pricing_structure"`

	// BasePrice is used when the pricing structure is single
	BasePrice *decimal.Decimal `json:"base_price,omitempty"`

	// Tiers are ordered ascending for quantity tiers; the last tier is
	// treated as unbounded above
	Tiers []PricingTier `json:"tiers,omitempty"`

	// IncludedUnits is the monthly service unit quota when the entity is a
	// pack; usage beyond it triggers pack-exceeded billing
	IncludedUnits int64 `json:"included_units,omitempty"`

	types.BaseModel
}

// PricingTier is a labeled price point within a tiered structure. For
// quantity tiers the label encodes the numeric range, e.g. "1-50" or "101+".
type PricingTier struct {
	Label    string          `json:"label"`
	Price    decimal.Decimal `json:"price"`
	TierMode types.TierMode  `json:"tier_mode"`
}

// TierForLabel returns the tier whose label matches, case-normalized
func (e *PricedEntity) TierForLabel(label string) (*PricingTier, error) {
	if len(e.Tiers) == 0 {
		return nil, ierr.NewError("priced entity has no tiers configured").
			WithHint("Tiered entities must have at least one tier").
			WithReportableDetails(map[string]interface{}{
				"entity_id": e.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	normalized := strings.ToLower(strings.TrimSpace(label))
	for i := range e.Tiers {
		if strings.ToLower(strings.TrimSpace(e.Tiers[i].Label)) == normalized {
			return &e.Tiers[i], nil
		}
	}

	return nil, ierr.NewError("unknown pricing tier").
		WithHintf("No tier matches label %q", label).
		WithReportableDetails(map[string]interface{}{
			"entity_id": e.ID,
			"label":     label,
		}).
		Mark(ierr.ErrNotFound)
}

// TierForQuantity returns the tier whose numeric range contains the quantity.
// Bounds are inclusive on both ends; the final tier in ascending order is
// open-ended above.
func (e *PricedEntity) TierForQuantity(quantity int64) (*PricingTier, error) {
	if len(e.Tiers) == 0 {
		return nil, ierr.NewError("priced entity has no tiers configured").
			WithHint("Tiered entities must have at least one tier").
			WithReportableDetails(map[string]interface{}{
				"entity_id": e.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	for i := range e.Tiers {
		lower, upper, open, err := parseQuantityRange(e.Tiers[i].Label)
		if err != nil {
			return nil, err
		}
		// Last tier is unbounded above regardless of its label
		if i == len(e.Tiers)-1 {
			open = true
		}
		if quantity >= lower && (open || quantity <= upper) {
			return &e.Tiers[i], nil
		}
	}

	return nil, ierr.NewError("no tier contains the requested quantity").
		WithHintf("Quantity %d does not fall in any configured tier", quantity).
		WithReportableDetails(map[string]interface{}{
			"entity_id": e.ID,
			"quantity":  quantity,
		}).
		Mark(ierr.ErrNotFound)
}

// parseQuantityRange parses a quantity tier label of the form "1-50",
// "1–50" (en dash) or "101+". It returns the inclusive bounds and whether
// the range is open-ended above.
func parseQuantityRange(label string) (lower int64, upper int64, open bool, err error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(label), "–", "-")

	if strings.HasSuffix(normalized, "+") {
		lower, err = strconv.ParseInt(strings.TrimSuffix(normalized, "+"), 10, 64)
		if err != nil {
			return 0, 0, false, invalidRangeLabel(label)
		}
		return lower, 0, true, nil
	}

	parts := strings.SplitN(normalized, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false, invalidRangeLabel(label)
	}

	lower, err = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, false, invalidRangeLabel(label)
	}
	upper, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, false, invalidRangeLabel(label)
	}
	return lower, upper, false, nil
}

func invalidRangeLabel(label string) error {
	return ierr.NewError("invalid quantity tier label").
		WithHintf("Tier label %q must look like \"1-50\" or \"101+\"", label).
		WithReportableDetails(map[string]interface{}{
			"label": label,
		}).
		Mark(ierr.ErrValidation)
}
