package client

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Kwazak/umnfestival2026-sub001/internal/apperr"
	"github.com/Kwazak/umnfestival2026-sub001/internal/config"
	"github.com/Kwazak/umnfestival2026-sub001/internal/model"
)

// GatewayClient wraps the payment vendor's HTTP API: token creation for the
// checkout widget, the synchronous status endpoint (used both as the verify
// call and as the poll fallback) and notification signature checks.
// Transient transport failures surface as apperr.GatewayTransient; retrying
// is the caller's job.
type GatewayClient interface {
	CreateTransactionToken(ctx context.Context, order *model.Order) (*model.GatewayTokenResult, error)
	Verify(ctx context.Context, orderNumber string) (*model.GatewayStatus, error)
	PollStatus(ctx context.Context, orderNumber string) (*model.GatewayStatus, error)
	VerifySignature(status *model.GatewayStatus) error
	// AwaitReady blocks until the vendor answered a ping, polling on the
	// configured interval up to the configured budget.
	AwaitReady(ctx context.Context) error
}

type gatewayClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	serverKey  string
	callback   string

	readyInterval time.Duration
	readyTimeout  time.Duration
	ready         atomic.Bool
}

func NewGatewayClient(cfg *config.Gateway) GatewayClient {
	return &gatewayClientImpl{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseApiURL:    cfg.BaseApiURL,
		serverKey:     cfg.ServerKey,
		callback:      cfg.CallbackURL,
		readyInterval: cfg.ReadyInterval,
		readyTimeout:  cfg.ReadyTimeout,
	}
}

func (c *gatewayClientImpl) authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.serverKey+":"))
}

type snapTokenPayload struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	CustomerDetails struct {
		FirstName string `json:"first_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	} `json:"customer_details"`
	Callbacks struct {
		Finish string `json:"finish,omitempty"`
	} `json:"callbacks"`
}

func (c *gatewayClientImpl) CreateTransactionToken(ctx context.Context, order *model.Order) (*model.GatewayTokenResult, error) {
	var payload snapTokenPayload
	payload.TransactionDetails.OrderID = order.OrderNumber
	payload.TransactionDetails.GrossAmount = order.FinalAmount
	payload.CustomerDetails.FirstName = order.BuyerName
	payload.CustomerDetails.Email = order.BuyerEmail
	payload.CustomerDetails.Phone = order.BuyerPhone
	payload.Callbacks.Finish = c.callback

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/snap/v1/transactions",
		bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.GatewayTransient("gateway create transaction", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(b))
	}

	var result model.GatewayTokenResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	c.ready.Store(true)
	return &result, nil
}

func (c *gatewayClientImpl) Verify(ctx context.Context, orderNumber string) (*model.GatewayStatus, error) {
	return c.getStatus(ctx, orderNumber)
}

func (c *gatewayClientImpl) PollStatus(ctx context.Context, orderNumber string) (*model.GatewayStatus, error) {
	return c.getStatus(ctx, orderNumber)
}

func (c *gatewayClientImpl) getStatus(ctx context.Context, orderNumber string) (*model.GatewayStatus, error) {
	url := fmt.Sprintf("%s/v2/%s/status", c.baseApiURL, orderNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}

	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.GatewayTransient("gateway status request", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperr.NotFound("gateway transaction not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway status failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var status model.GatewayStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("decode gateway status: %w", err)
	}

	c.ready.Store(true)
	return &status, nil
}

// VerifySignature checks the notification signature:
// sha512(order_id + status_code + gross_amount + server_key).
func (c *gatewayClientImpl) VerifySignature(status *model.GatewayStatus) error {
	raw := status.OrderID + status.StatusCode + status.GrossAmount + c.serverKey
	sum := sha512.Sum512([]byte(raw))
	expected := hex.EncodeToString(sum[:])

	if status.SignatureKey != expected {
		return fmt.Errorf("notification signature mismatch for order %s", status.OrderID)
	}

	return nil
}

func (c *gatewayClientImpl) AwaitReady(ctx context.Context) error {
	if c.ready.Load() {
		return nil
	}

	deadline := time.Now().Add(c.readyTimeout)
	ticker := time.NewTicker(c.readyInterval)
	defer ticker.Stop()

	for {
		if err := c.ping(ctx); err == nil {
			c.ready.Store(true)
			return nil
		}

		if time.Now().After(deadline) {
			return apperr.GatewayTransient("gateway not ready within budget", nil)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *gatewayClientImpl) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.readyInterval)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseApiURL+"/ping", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	return nil
}
