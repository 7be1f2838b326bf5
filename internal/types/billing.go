package types

import "time"

// BillingRunType identifies which scheduler pass produced a billing attempt
type BillingRunType string

const (
	BillingRunTypeMonthlyRenewal BillingRunType = "monthly_renewal"
	BillingRunTypePackExceeded   BillingRunType = "pack_exceeded"
	BillingRunTypeRetry          BillingRunType = "retry"
)

// PeriodStart truncates t to the start of its calendar billing month in UTC
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextPeriodStart returns the start of the billing month following t
func NextPeriodStart(t time.Time) time.Time {
	return PeriodStart(t).AddDate(0, 1, 0)
}
