package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var _ Gateway = (*PayPalClient)(nil)

// PayPalConfig holds the gateway connection settings.
type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Currency     string
	Timeout      time.Duration
}

// PayPalClient implements Gateway against the PayPal Checkout Orders v2 API.
// Access tokens are fetched via the client-credentials grant and cached
// until shortly before expiry.
type PayPalClient struct {
	cfg  PayPalConfig
	http *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalClient creates a PayPalClient with an otel-instrumented transport.
func NewPayPalClient(cfg PayPalConfig) *PayPalClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "GBP"
	}
	return &PayPalClient{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Wire types for the Orders v2 API.

type amountJSON struct {
	CurrencyCode string         `json:"currency_code"`
	Value        string         `json:"value"`
	Breakdown    *breakdownJSON `json:"breakdown,omitempty"`
}

type breakdownJSON struct {
	ItemTotal moneyJSON  `json:"item_total"`
	Discount  *moneyJSON `json:"discount,omitempty"`
}

type moneyJSON struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type itemJSON struct {
	Name       string    `json:"name"`
	SKU        string    `json:"sku"`
	UnitAmount moneyJSON `json:"unit_amount"`
	Quantity   string    `json:"quantity"`
	Category   string    `json:"category"`
}

type purchaseUnitJSON struct {
	Amount amountJSON `json:"amount"`
	Items  []itemJSON `json:"items"`
}

type createOrderJSON struct {
	Intent        string             `json:"intent"`
	PurchaseUnits []purchaseUnitJSON `json:"purchase_units"`
}

type orderRespJSON struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type errorRespJSON struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

// CreateIntent creates a CAPTURE-intent order. The amount is always computed
// here from the given lines and discount: total = item_total − discount, so
// the breakdown balances exactly. Client-supplied totals never reach this
// call. The request carries a fresh PayPal-Request-ID so a retried create
// after a lost response does not produce a second intent on the gateway.
func (c *PayPalClient) CreateIntent(ctx context.Context, lines []Line, subtotal, discount decimal.Decimal) (*Intent, error) {
	items := make([]itemJSON, len(lines))
	itemTotal := decimal.Zero
	for i, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		itemTotal = itemTotal.Add(l.UnitPrice.Mul(qty))
		items[i] = itemJSON{
			Name:       l.Name,
			SKU:        l.SKU,
			UnitAmount: c.money(l.UnitPrice),
			Quantity:   qty.String(),
			Category:   "PHYSICAL_GOODS",
		}
	}
	itemTotal = itemTotal.Round(2)
	if !itemTotal.Equal(subtotal.Round(2)) {
		return nil, &RejectedError{
			StatusCode: http.StatusUnprocessableEntity,
			Issue:      "line items do not sum to subtotal",
		}
	}

	discount = discount.Round(2)
	total := itemTotal.Sub(discount)

	amount := amountJSON{
		CurrencyCode: c.cfg.Currency,
		Value:        total.StringFixed(2),
		Breakdown: &breakdownJSON{
			ItemTotal: c.money(itemTotal),
		},
	}
	if discount.IsPositive() {
		d := c.money(discount)
		amount.Breakdown.Discount = &d
	}

	body := createOrderJSON{
		Intent:        "CAPTURE",
		PurchaseUnits: []purchaseUnitJSON{{Amount: amount, Items: items}},
	}

	var resp orderRespJSON
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", &body, &resp, uuid.New().String()); err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("payment intent created",
		zap.String("intent_id", resp.ID),
		zap.String("total", total.StringFixed(2)),
	)
	return &Intent{ID: resp.ID, Status: resp.Status}, nil
}

// Capture moves funds for a previously approved intent. A COMPLETED status
// is the only success; every other terminal status becomes NotCapturedError.
// When the gateway reports the intent as already captured (a retry after a
// lost response), the existing capture is fetched and returned instead.
func (c *PayPalClient) Capture(ctx context.Context, intentID string) (*Capture, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(intentID) + "/capture"

	var resp orderRespJSON
	err := c.do(ctx, http.MethodPost, path, struct{}{}, &resp, "")
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) && strings.Contains(rejected.Issue, "ORDER_ALREADY_CAPTURED") {
			return c.captureFromIntent(ctx, intentID)
		}
		return nil, err
	}

	captured := extractCapture(&resp)
	if captured == nil || resp.Status != StatusCompleted {
		return nil, &NotCapturedError{IntentID: intentID, Status: resp.Status}
	}

	zctx.From(ctx).Info("payment captured",
		zap.String("intent_id", intentID),
		zap.String("capture_id", captured.ID),
	)
	return captured, nil
}

// GetIntent returns the gateway's current view of an intent. Used to settle
// ambiguity after a timeout instead of retrying a capture blindly.
func (c *PayPalClient) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(intentID)

	var resp orderRespJSON
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, ""); err != nil {
		return nil, err
	}

	intent := &Intent{ID: resp.ID, Status: resp.Status}
	if captured := extractCapture(&resp); captured != nil {
		intent.CaptureID = captured.ID
	}
	return intent, nil
}

func (c *PayPalClient) captureFromIntent(ctx context.Context, intentID string) (*Capture, error) {
	intent, err := c.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != StatusCompleted || intent.CaptureID == "" {
		return nil, &NotCapturedError{IntentID: intentID, Status: intent.Status}
	}
	return &Capture{ID: intent.CaptureID, Status: StatusCompleted}, nil
}

func extractCapture(resp *orderRespJSON) *Capture {
	for _, pu := range resp.PurchaseUnits {
		for _, pc := range pu.Payments.Captures {
			return &Capture{ID: pc.ID, Status: pc.Status}
		}
	}
	return nil
}

func (c *PayPalClient) money(v decimal.Decimal) moneyJSON {
	return moneyJSON{CurrencyCode: c.cfg.Currency, Value: v.StringFixed(2)}
}

// do performs an authenticated JSON request and maps failures into the
// gateway error taxonomy.
func (c *PayPalClient) do(ctx context.Context, method, path string, reqBody, respBody any, requestID string) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if reqBody != nil {
		buf, err := json.Marshal(reqBody)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if requestID != "" {
		req.Header.Set("PayPal-Request-ID", requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(ErrGatewayUnreachable, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(ErrGatewayUnreachable, "read response")
	}

	switch {
	case resp.StatusCode >= 500:
		// Gateway-side fault: indistinguishable from a lost request, retryable.
		return errors.Wrapf(ErrGatewayUnreachable, "gateway returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return &RejectedError{StatusCode: resp.StatusCode, Issue: parseIssue(raw)}
	}

	if respBody != nil {
		if err := json.Unmarshal(raw, respBody); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}

func parseIssue(raw []byte) string {
	var e errorRespJSON
	if err := json.Unmarshal(raw, &e); err != nil || e.Name == "" {
		return strings.TrimSpace(string(raw))
	}
	issue := e.Name
	for _, d := range e.Details {
		if d.Issue != "" {
			issue += ": " + d.Issue
			break
		}
	}
	return issue
}

// token returns a cached access token, fetching a fresh one when the cache
// is empty or about to expire.
func (c *PayPalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(ErrGatewayUnreachable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(ErrGatewayUnreachable, "token request returned %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", errors.Wrap(err, "decode token response")
	}

	c.accessToken = tok.AccessToken
	// Refresh one minute early so in-flight requests never race expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}
