package catalog

import "context"

// Repository provides read-only access to catalog records. The catalog is an
// external collaborator; this core never writes to it.
type Repository interface {
	// GetPricedEntity retrieves a priced entity (service, bundle, or pack)
	GetPricedEntity(ctx context.Context, id string) (*PricedEntity, error)

	// GetOveragePrice retrieves the priced entity used to bill usage beyond
	// a pack's included units
	GetOveragePrice(ctx context.Context, packID string) (*PricedEntity, error)
}
