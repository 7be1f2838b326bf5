package postgres

import (
	"context"
	"database/sql"

	"github.com/craftly/craftly/internal/domain/subscription"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/logger"
)

// LifecycleConfigRepository implements
// subscription.LifecycleConfigRepository over postgres
type LifecycleConfigRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewLifecycleConfigRepository(db *sql.DB, log *logger.Logger) *LifecycleConfigRepository {
	return &LifecycleConfigRepository{db: db, logger: log}
}

func (r *LifecycleConfigRepository) GetConfig(ctx context.Context, tenantID, environmentID, key string) (*subscription.LifecycleConfig, error) {
	query := `SELECT id, tenant_id, environment_id, key, value, created_at,
		created_by, updated_at, updated_by, status
	FROM lifecycle_configs
	WHERE tenant_id = $1 AND environment_id = $2 AND key = $3`

	var cfg subscription.LifecycleConfig
	err := r.db.QueryRowContext(ctx, query, tenantID, environmentID, key).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.EnvironmentID, &cfg.Key, &cfg.Value,
		&cfg.CreatedAt, &cfg.CreatedBy, &cfg.UpdatedAt, &cfg.UpdatedBy, &cfg.Status,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("lifecycle config not found").
				WithReportableDetails(map[string]interface{}{
					"key": key,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch lifecycle config").
			Mark(ierr.ErrDatabase)
	}
	return &cfg, nil
}

func (r *LifecycleConfigRepository) SetConfig(ctx context.Context, cfg *subscription.LifecycleConfig) error {
	query := `INSERT INTO lifecycle_configs
		(id, tenant_id, environment_id, key, value, created_at, created_by,
		 updated_at, updated_by, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (tenant_id, environment_id, key)
	DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at,
		updated_by = EXCLUDED.updated_by`

	_, err := r.db.ExecContext(ctx, query,
		cfg.ID, cfg.TenantID, cfg.EnvironmentID, cfg.Key, cfg.Value,
		cfg.CreatedAt, cfg.CreatedBy, cfg.UpdatedAt, cfg.UpdatedBy, cfg.Status,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to store lifecycle config").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *LifecycleConfigRepository) CreateConfigAudit(ctx context.Context, audit *subscription.LifecycleConfigAudit) error {
	query := `INSERT INTO lifecycle_config_audits
		(id, tenant_id, environment_id, config_id, key, previous_value,
		 new_value, changed_at, changed_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.TenantID, audit.EnvironmentID, audit.ConfigID,
		audit.Key, audit.PreviousValue, audit.NewValue, audit.ChangedAt,
		audit.ChangedBy,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record lifecycle config audit").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
