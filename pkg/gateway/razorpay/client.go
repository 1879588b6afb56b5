package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/anmolvirk/swiftcart-backend/pkg/config"
	pkgerrors "github.com/anmolvirk/swiftcart-backend/pkg/errors"
	"github.com/anmolvirk/swiftcart-backend/pkg/logger"
)

const (
	defaultBaseURL             = "https://api.razorpay.com/v1"
	currencyINR                = "INR"
	requestBodyReadLimit int64 = 2048

	// StatusCaptured is the provider's settled-payment status.
	StatusCaptured = "captured"
)

var (
	errKeyIDRequired         = errors.New("razorpay key id is required")
	errKeySecretRequired     = errors.New("razorpay key secret is required")
	errWebhookSecretRequired = errors.New("razorpay webhook secret is required")
)

// Client is the only component allowed to call out to the payment provider.
// Every amount crossing this boundary is integer paise; callers hand over the
// decimal totals used internally and conversion happens here.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	logger        *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient validates the credentials and builds the gateway client.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
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

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       baseURL,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		logger:        logg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}
	return c, nil
}

// KeyID returns the public key identifier the browser checkout needs.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// KeySecret returns the secret used to sign client-callback payloads.
func (c *Client) KeySecret() string {
	if c == nil {
		return ""
	}
	return c.keySecret
}

// WebhookSecret returns the secret used to sign webhook event bodies.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// Verifier returns a signature verifier bound to this client's secrets.
func (c *Client) Verifier() *Verifier {
	return NewVerifier(c.KeySecret(), c.WebhookSecret())
}

// Intent is the gateway-side order created before the customer pays.
type Intent struct {
	GatewayOrderID string `json:"id"`
	AmountPaise    int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	Status         string `json:"status"`
}

// PaymentStatus is the provider's view of a payment.
type PaymentStatus struct {
	PaymentID   string `json:"id"`
	OrderID     string `json:"order_id"`
	AmountPaise int64  `json:"amount"`
	Status      string `json:"status"`
	Method      string `json:"method"`
}

// Refund is the provider-side refund object.
type Refund struct {
	RefundID    string `json:"id"`
	PaymentID   string `json:"payment_id"`
	AmountPaise int64  `json:"amount"`
	Status      string `json:"status"`
}

// CreateIntent creates a gateway order for the given decimal amount. The
// receipt reference is the local order number so provider dashboards and
// local records line up.
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, receiptRef string) (*Intent, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay client not configured")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent amount must be positive")
	}
	if strings.TrimSpace(receiptRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt reference is required")
	}

	body := map[string]any{
		"amount":   ToPaise(amount),
		"currency": currencyINR,
		"receipt":  receiptRef,
	}

	var intent Intent
	if err := c.post(ctx, "orders", body, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// FetchStatus pulls the provider's current view of a payment.
func (c *Client) FetchStatus(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay client not configured")
	}
	trimmed := strings.TrimSpace(paymentID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	var status PaymentStatus
	if err := c.get(ctx, "payments/"+url.PathEscape(trimmed), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CreateRefund asks the provider to refund the given decimal amount.
func (c *Client) CreateRefund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (*Refund, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay client not configured")
	}
	trimmed := strings.TrimSpace(paymentID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	body := map[string]any{
		"amount": ToPaise(amount),
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		body["notes"] = map[string]string{"reason": reason}
	}

	var refund Refund
	if err := c.post(ctx, "payments/"+url.PathEscape(trimmed)+"/refund", body, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// ToPaise converts an internal decimal rupee amount to integer paise.
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromPaise converts integer paise back to the internal decimal form.
func FromPaise(paise int64) decimal.Decimal {
	return decimal.NewFromInt(paise).Div(decimal.NewFromInt(100))
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal gateway request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path), bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(path), nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build gateway request")
	}
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute gateway request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"gateway request failed",
		)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
