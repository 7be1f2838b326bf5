package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/craftly/craftly/internal/domain/subscription"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/logger"
	"github.com/craftly/craftly/internal/types"
)

const subscriptionColumns = `id, client_id, pack_id, subscription_status, is_active,
	start_date, end_date, current_period_start, current_period_end,
	payment_reference, payment_status, payment_failed_at, grace_period_end,
	vendor_assignee_id, pending_vendor_assignee_id, pending_pack_id,
	pending_change_type, pending_effective_at, unsubscribed_at,
	unsubscribe_effective_at, total_units_included, total_units_used,
	version, environment_id, tenant_id, status, created_at, created_by,
	updated_at, updated_by`

// SubscriptionRepository implements subscription.Repository over postgres
// with version-based optimistic concurrency
type SubscriptionRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *sql.DB, log *logger.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, logger: log}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO subscriptions (%s) VALUES
		($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		 $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)`,
		subscriptionColumns)

	_, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.ClientID, sub.PackID, sub.SubscriptionStatus, sub.IsActive,
		sub.StartDate, sub.EndDate, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.PaymentReference, sub.PaymentStatus, sub.PaymentFailedAt, sub.GracePeriodEnd,
		sub.VendorAssigneeID, sub.PendingVendorAssigneeID, sub.PendingPackID,
		sub.PendingChangeType, sub.PendingEffectiveAt, sub.UnsubscribedAt,
		sub.UnsubscribeEffectiveAt, sub.TotalUnitsIncluded, sub.TotalUnitsUsed,
		sub.Version, sub.EnvironmentID, sub.TenantID, sub.Status, sub.CreatedAt,
		sub.CreatedBy, sub.UpdatedAt, sub.UpdatedBy,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return ierr.WithError(err).
				WithHint("Subscription already exists").
				WithReportableDetails(map[string]interface{}{
					"id": sub.ID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *SubscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM subscriptions WHERE id = $1 AND status != $2`,
		subscriptionColumns)

	row := r.db.QueryRowContext(ctx, query, id, types.StatusDeleted)
	sub, err := scanSubscription(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("subscription not found").
				WithHint("Please provide a valid subscription ID").
				WithReportableDetails(map[string]interface{}{
					"id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch subscription").
			Mark(ierr.ErrDatabase)
	}
	return sub, nil
}

func (r *SubscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}

	var (
		conditions = []string{"status != $1"}
		args       = []interface{}{types.StatusDeleted}
	)

	if len(filter.SubscriptionIDs) > 0 {
		args = append(args, pq.Array(filter.SubscriptionIDs))
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if len(filter.SubscriptionStatuses) > 0 {
		statuses := make([]string, len(filter.SubscriptionStatuses))
		for i, s := range filter.SubscriptionStatuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("subscription_status = ANY($%d)", len(args)))
	}
	if len(filter.PackIDs) > 0 {
		args = append(args, pq.Array(filter.PackIDs))
		conditions = append(conditions, fmt.Sprintf("pack_id = ANY($%d)", len(args)))
	}
	if filter.PeriodEndBefore != nil {
		args = append(args, *filter.PeriodEndBefore)
		conditions = append(conditions, fmt.Sprintf("current_period_end <= $%d", len(args)))
	}
	if filter.OverLimitOnly {
		conditions = append(conditions, "total_units_used > total_units_included")
	}

	query := fmt.Sprintf(`SELECT %s FROM subscriptions WHERE %s ORDER BY created_at DESC`,
		subscriptionColumns, strings.Join(conditions, " AND "))

	if limit := filter.QueryFilter.GetLimit(); limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset := filter.QueryFilter.GetOffset(); offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan subscription row").
				Mark(ierr.ErrDatabase)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate subscription rows").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

// Update writes the record only when the stored version matches; the stale
// writer receives a version conflict and must re-read
func (r *SubscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `UPDATE subscriptions SET
		client_id = $1, pack_id = $2, subscription_status = $3, is_active = $4,
		start_date = $5, end_date = $6, current_period_start = $7, current_period_end = $8,
		payment_reference = $9, payment_status = $10, payment_failed_at = $11,
		grace_period_end = $12, vendor_assignee_id = $13,
		pending_vendor_assignee_id = $14, pending_pack_id = $15,
		pending_change_type = $16, pending_effective_at = $17,
		unsubscribed_at = $18, unsubscribe_effective_at = $19,
		total_units_included = $20, total_units_used = $21,
		version = version + 1, updated_at = NOW(), updated_by = $22
	WHERE id = $23 AND version = $24 AND status != $25`

	res, err := r.db.ExecContext(ctx, query,
		sub.ClientID, sub.PackID, sub.SubscriptionStatus, sub.IsActive,
		sub.StartDate, sub.EndDate, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.PaymentReference, sub.PaymentStatus, sub.PaymentFailedAt,
		sub.GracePeriodEnd, sub.VendorAssigneeID,
		sub.PendingVendorAssigneeID, sub.PendingPackID,
		sub.PendingChangeType, sub.PendingEffectiveAt,
		sub.UnsubscribedAt, sub.UnsubscribeEffectiveAt,
		sub.TotalUnitsIncluded, sub.TotalUnitsUsed,
		types.GetUserID(ctx),
		sub.ID, sub.Version, types.StatusDeleted,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read update result").
			Mark(ierr.ErrDatabase)
	}
	if affected == 0 {
		// Distinguish a stale version from a missing record
		if _, getErr := r.Get(ctx, sub.ID); getErr != nil {
			return getErr
		}
		return ierr.NewError("subscription was modified concurrently").
			WithHint("Re-read the subscription and retry the operation").
			WithReportableDetails(map[string]interface{}{
				"id":      sub.ID,
				"version": sub.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	sub.Version++
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	err := row.Scan(
		&sub.ID, &sub.ClientID, &sub.PackID, &sub.SubscriptionStatus, &sub.IsActive,
		&sub.StartDate, &sub.EndDate, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.PaymentReference, &sub.PaymentStatus, &sub.PaymentFailedAt, &sub.GracePeriodEnd,
		&sub.VendorAssigneeID, &sub.PendingVendorAssigneeID, &sub.PendingPackID,
		&sub.PendingChangeType, &sub.PendingEffectiveAt, &sub.UnsubscribedAt,
		&sub.UnsubscribeEffectiveAt, &sub.TotalUnitsIncluded, &sub.TotalUnitsUsed,
		&sub.Version, &sub.EnvironmentID, &sub.TenantID, &sub.Status, &sub.CreatedAt,
		&sub.CreatedBy, &sub.UpdatedAt, &sub.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
