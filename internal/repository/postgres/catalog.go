package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/craftly/craftly/internal/domain/catalog"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/logger"
	"github.com/craftly/craftly/internal/types"
)

const pricedEntityColumns = `id, name, entity_type, pricing_structure, base_price,
	tiers, included_units, overage_price_id, tenant_id, status, created_at,
	created_by, updated_at, updated_by`

// CatalogRepository implements catalog.Repository over postgres. Pricing
// tiers are stored as a JSONB document; the overage price of a pack is a
// self-reference to another priced entity.
type CatalogRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewCatalogRepository(db *sql.DB, log *logger.Logger) *CatalogRepository {
	return &CatalogRepository{db: db, logger: log}
}

func (r *CatalogRepository) GetPricedEntity(ctx context.Context, id string) (*catalog.PricedEntity, error) {
	query := fmt.Sprintf(`SELECT %s FROM priced_entities WHERE id = $1 AND status != $2`,
		pricedEntityColumns)

	row := r.db.QueryRowContext(ctx, query, id, types.StatusDeleted)
	entity, _, err := scanPricedEntity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("priced entity not found").
				WithHint("Please provide a valid catalog entity ID").
				WithReportableDetails(map[string]interface{}{
					"id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch priced entity").
			Mark(ierr.ErrDatabase)
	}
	return entity, nil
}

func (r *CatalogRepository) GetOveragePrice(ctx context.Context, packID string) (*catalog.PricedEntity, error) {
	query := fmt.Sprintf(`SELECT %s FROM priced_entities WHERE id = $1 AND status != $2`,
		pricedEntityColumns)

	row := r.db.QueryRowContext(ctx, query, packID, types.StatusDeleted)
	_, overagePriceID, err := scanPricedEntity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("pack not found").
				WithReportableDetails(map[string]interface{}{
					"pack_id": packID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch pack").
			Mark(ierr.ErrDatabase)
	}

	if overagePriceID == nil {
		return nil, ierr.NewError("no overage price configured for pack").
			WithHint("Packs that bill overage need an overage price reference").
			WithReportableDetails(map[string]interface{}{
				"pack_id": packID,
			}).
			Mark(ierr.ErrNotFound)
	}

	return r.GetPricedEntity(ctx, *overagePriceID)
}

func scanPricedEntity(row rowScanner) (*catalog.PricedEntity, *string, error) {
	var (
		entity         catalog.PricedEntity
		basePriceRaw   sql.NullString
		tiersJSON      []byte
		overagePriceID *string
	)
	err := row.Scan(
		&entity.ID, &entity.Name, &entity.EntityType, &entity.PricingStructure,
		&basePriceRaw, &tiersJSON, &entity.IncludedUnits, &overagePriceID,
		&entity.TenantID, &entity.Status, &entity.CreatedAt, &entity.CreatedBy,
		&entity.UpdatedAt, &entity.UpdatedBy,
	)
	if err != nil {
		return nil, nil, err
	}

	if basePriceRaw.Valid {
		basePrice, err := decimal.NewFromString(basePriceRaw.String)
		if err != nil {
			return nil, nil, err
		}
		entity.BasePrice = &basePrice
	}
	if len(tiersJSON) > 0 {
		if err := json.Unmarshal(tiersJSON, &entity.Tiers); err != nil {
			return nil, nil, err
		}
	}
	return &entity, overagePriceID, nil
}
