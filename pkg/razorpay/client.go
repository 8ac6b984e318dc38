package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/marketpay-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketpay-backend/pkg/errors"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
)

var (
	errKeyIDRequired         = errors.New("razorpay key id is required")
	errKeySecretRequired     = errors.New("razorpay key secret is required")
	errWebhookSecretRequired = errors.New("razorpay webhook secret is required")
	errLoggerRequired        = errors.New("razorpay logger is required")
)

// Client wraps the Razorpay REST API with centralized auth, logging, and
// error mapping. All amounts are integer minor units.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	logger        *logger.Logger
}

// NewClient validates credentials and builds the gateway wrapper.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		logger:        logg,
	}

	logg.Info(ctx, "razorpay client initialized")
	return c, nil
}

// WebhookSecret returns the configured webhook signing secret.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// CreateOrder registers an order with the gateway, carrying the transfer
// instructions computed by the split allocator.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*Order, error) {
	c.log(ctx, "request", "create_order", map[string]any{
		"receipt": params.Receipt,
		"amount":  params.AmountMinor,
	})

	var order Order
	raw, err := c.do(ctx, http.MethodPost, "/orders", params.toRequestBody(), &order)
	if err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, err
	}
	order.Raw = raw

	c.log(ctx, "response", "create_order", map[string]any{
		"order_ref": order.ID,
		"status":    order.Status,
	})
	return &order, nil
}

// GetPayment fetches the authoritative payment state from the gateway. Only
// the fields the reconciliation core reads are decoded; the full body is
// retained in Raw for audit.
func (c *Client) GetPayment(ctx context.Context, paymentRef string) (*Payment, error) {
	c.log(ctx, "request", "get_payment", map[string]any{"payment_ref": paymentRef})

	var payment Payment
	raw, err := c.do(ctx, http.MethodGet, "/payments/"+paymentRef, nil, &payment)
	if err != nil {
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, err
	}
	payment.Raw = raw

	c.log(ctx, "response", "get_payment", map[string]any{
		"payment_ref": payment.ID,
		"status":      payment.Status,
	})
	return &payment, nil
}

// CreateRefund asks the gateway to reimburse part or all of a captured
// payment. A nil amount refunds the full captured total.
func (c *Client) CreateRefund(ctx context.Context, paymentRef string, params RefundCreateParams) (*Refund, error) {
	c.log(ctx, "request", "create_refund", map[string]any{
		"payment_ref": paymentRef,
		"amount":      params.AmountMinor,
	})

	var refund Refund
	raw, err := c.do(ctx, http.MethodPost, "/payments/"+paymentRef+"/refund", params.toRequestBody(), &refund)
	if err != nil {
		c.log(ctx, "error", "create_refund", map[string]any{"error": err.Error()})
		return nil, err
	}
	refund.Raw = raw

	c.log(ctx, "response", "create_refund", map[string]any{
		"refund_ref": refund.ID,
		"status":     refund.Status,
	})
	return &refund, nil
}

// do issues one authenticated request and decodes the response twice: once
// into the narrow typed struct and once kept verbatim for persistence.
func (c *Client) do(ctx context.Context, method, path string, body map[string]any, out any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding gateway request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building gateway request")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading gateway response")
	}

	if resp.StatusCode >= 400 {
		return nil, c.mapGatewayError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding gateway response")
		}
	}
	return json.RawMessage(raw), nil
}

// mapGatewayError surfaces gateway failures instead of swallowing them:
// transport errors and 5xx mean the gateway is unavailable, 4xx means it
// rejected the request for a business reason.
func (c *Client) mapGatewayError(status int, raw []byte) error {
	var body apiErrorBody
	_ = json.Unmarshal(raw, &body)

	description := strings.TrimSpace(body.Error.Description)
	if description == "" {
		description = http.StatusText(status)
	}

	if status >= 500 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("gateway error: %s", description))
	}
	return pkgerrors.New(pkgerrors.CodeGatewayRejected, fmt.Sprintf("gateway rejected request: %s", description)).
		WithDetails(map[string]any{
			"gateway_code":        body.Error.Code,
			"gateway_description": description,
		})
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("razorpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("razorpay %s", phase))
	}
}

type apiErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}
