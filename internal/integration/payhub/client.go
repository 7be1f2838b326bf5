package payhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"

	"github.com/craftly/craftly/internal/config"
	"github.com/craftly/craftly/internal/domain/payment"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/logger"
	"github.com/craftly/craftly/internal/types"
)

// Client implements payment.Processor against the PayHub REST API. Transport
// retries (connection errors, 5xx) are handled by retryablehttp; billing
// level retry policy stays with the scheduler.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *retryablehttp.Client
	logger     *logger.Logger
}

// NewClient creates a new PayHub client
func NewClient(cfg *config.Configuration, log *logger.Logger) payment.Processor {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = cfg.PayHub.MaxRetries
	httpClient.HTTPClient.Timeout = cfg.PayHub.Timeout
	httpClient.Logger = nil

	return &Client{
		baseURL:    cfg.PayHub.BaseURL,
		apiKey:     cfg.PayHub.APIKey,
		httpClient: httpClient,
		logger:     log,
	}
}

// Charge attempts to collect the given amount for a subscription. The
// idempotency key comes from the billing attempt so repeated requests for
// the same attempt dedupe while distinct periods never share a key
func (c *Client) Charge(ctx context.Context, subscriptionID string, amount decimal.Decimal, idempotencyKey string) (*payment.ChargeResult, error) {
	// PayHub expects minor units
	minorUnits := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	reqBody := ChargeRequest{
		SubscriptionID: subscriptionID,
		Amount:         minorUnits,
		Currency:       "usd",
		IdempotencyKey: idempotencyKey,
	}

	var resp ChargeResponse
	statusCode, err := c.do(ctx, http.MethodPost, "/v1/charges", reqBody, &resp)
	if err != nil {
		return nil, err
	}

	if statusCode >= 400 {
		return nil, ierr.NewErrorf("payhub charge returned status %d", statusCode).
			WithHint("Payment processor rejected the charge request").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": subscriptionID,
				"status_code":     statusCode,
			}).
			Mark(ierr.ErrIntegration)
	}

	result := &payment.ChargeResult{
		Success:        resp.Status == chargeStatusSucceeded,
		ExternalStatus: types.PaymentStatusActive,
	}
	if !result.Success {
		result.ExternalStatus = types.PaymentStatusPastDue
		result.FailureReason = resp.FailureReason
		if result.FailureReason == "" {
			result.FailureReason = resp.Status
		}
		result.Permanent = resp.Status == chargeStatusDeclined && permanentFailureCodes[resp.FailureCode]
	}

	c.logger.Debugw("payhub charge completed",
		"subscription_id", subscriptionID,
		"amount", amount,
		"status", resp.Status)

	return result, nil
}

// GetStatus returns the processor-side status of a subscription
func (c *Client) GetStatus(ctx context.Context, subscriptionID string) (types.PaymentStatus, error) {
	var resp StatusResponse
	statusCode, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/subscriptions/%s", subscriptionID), nil, &resp)
	if err != nil {
		return "", err
	}

	if statusCode == http.StatusNotFound {
		return "", ierr.NewError("subscription not known to payment processor").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": subscriptionID,
			}).
			Mark(ierr.ErrNotFound)
	}
	if statusCode >= 400 {
		return "", ierr.NewErrorf("payhub status returned status %d", statusCode).
			Mark(ierr.ErrIntegration)
	}

	return types.PaymentStatus(resp.Status), nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, ierr.WithError(err).
				WithHint("Failed to encode PayHub request").
				Mark(ierr.ErrInternal)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to build PayHub request").
			Mark(ierr.ErrInternal)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("PayHub request failed").
			WithReportableDetails(map[string]interface{}{
				"method": method,
				"path":   path,
			}).
			Mark(ierr.ErrIntegration)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, ierr.WithError(err).
			WithHint("Failed to read PayHub response").
			Mark(ierr.ErrIntegration)
	}

	if out != nil && len(data) > 0 && resp.StatusCode < 500 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, ierr.WithError(err).
				WithHint("Failed to decode PayHub response").
				Mark(ierr.ErrIntegration)
		}
	}

	return resp.StatusCode, nil
}
