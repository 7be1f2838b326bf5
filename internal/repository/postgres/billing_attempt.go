package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/craftly/craftly/internal/domain/billing"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/logger"
	"github.com/craftly/craftly/internal/types"
)

// BillingAttemptRepository implements billing.AttemptRepository over
// postgres. A partial unique index on (idempotency_key) WHERE success makes
// the "at most one successful charge per key" guarantee a database property,
// not just an application check.
type BillingAttemptRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewBillingAttemptRepository(db *sql.DB, log *logger.Logger) *BillingAttemptRepository {
	return &BillingAttemptRepository{db: db, logger: log}
}

func (r *BillingAttemptRepository) Create(ctx context.Context, attempt *billing.Attempt) error {
	query := `INSERT INTO billing_attempts
		(id, idempotency_key, subscription_id, run_type, period_start, amount,
		 success, failure_reason, permanent, created_at, tenant_id, environment_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID, attempt.IdempotencyKey, attempt.SubscriptionID,
		attempt.RunType, attempt.PeriodStart, attempt.Amount.String(),
		attempt.Success, attempt.FailureReason, attempt.Permanent,
		attempt.CreatedAt, attempt.TenantID, attempt.EnvironmentID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return ierr.WithError(err).
				WithHint("A successful charge already exists for this key").
				WithReportableDetails(map[string]interface{}{
					"idempotency_key": attempt.IdempotencyKey,
					"subscription_id": attempt.SubscriptionID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to record billing attempt").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *BillingAttemptRepository) HasSuccessful(ctx context.Context, subscriptionID string, runType types.BillingRunType, periodStart time.Time) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM billing_attempts
		WHERE subscription_id = $1 AND run_type = $2 AND period_start = $3 AND success
	)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, subscriptionID, runType, periodStart).Scan(&exists); err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check billing attempt ledger").
			Mark(ierr.ErrDatabase)
	}
	return exists, nil
}

func (r *BillingAttemptRepository) CountAttempts(ctx context.Context, subscriptionID string, runType types.BillingRunType, periodStart time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM billing_attempts
		WHERE subscription_id = $1 AND run_type = $2 AND period_start = $3`

	var count int
	if err := r.db.QueryRowContext(ctx, query, subscriptionID, runType, periodStart).Scan(&count); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count billing attempts").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *BillingAttemptRepository) HasPermanentFailure(ctx context.Context, subscriptionID string, periodStart time.Time) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM billing_attempts
		WHERE subscription_id = $1 AND period_start = $2 AND permanent
	)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, subscriptionID, periodStart).Scan(&exists); err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check for permanent declines").
			Mark(ierr.ErrDatabase)
	}
	return exists, nil
}

// GetBySubscription returns the attempt history for a subscription, newest
// first; used by the admin surface
func (r *BillingAttemptRepository) GetBySubscription(ctx context.Context, subscriptionID string) ([]*billing.Attempt, error) {
	query := `SELECT id, idempotency_key, subscription_id, run_type, period_start,
		amount, success, failure_reason, permanent, created_at, tenant_id, environment_id
	FROM billing_attempts WHERE subscription_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, subscriptionID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list billing attempts").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var attempts []*billing.Attempt
	for rows.Next() {
		var (
			attempt   billing.Attempt
			amountRaw string
		)
		if err := rows.Scan(
			&attempt.ID, &attempt.IdempotencyKey, &attempt.SubscriptionID,
			&attempt.RunType, &attempt.PeriodStart, &amountRaw,
			&attempt.Success, &attempt.FailureReason, &attempt.Permanent,
			&attempt.CreatedAt, &attempt.TenantID, &attempt.EnvironmentID,
		); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan billing attempt row").
				Mark(ierr.ErrDatabase)
		}
		amount, err := decimal.NewFromString(amountRaw)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Invalid amount stored for billing attempt").
				Mark(ierr.ErrDatabase)
		}
		attempt.Amount = amount
		attempts = append(attempts, &attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate billing attempt rows").
			Mark(ierr.ErrDatabase)
	}
	return attempts, nil
}
