package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HTTPGateway talks to a Razorpay-compatible REST API with basic auth.
type HTTPGateway struct {
	BaseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	client        *http.Client
	log           logrus.FieldLogger
}

func NewHTTPGateway(baseURL, keyID, keySecret, webhookSecret string, timeout time.Duration, log logrus.FieldLogger) *HTTPGateway {
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		BaseURL:       baseURL,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: timeout},
		log:           log.WithField("component", "gateway"),
	}
}

func (g *HTTPGateway) KeyID() string { return g.keyID }

type createOrderReq struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func (g *HTTPGateway) CreateOrder(ctx context.Context, amountCents int64, currency, receipt string) (*GatewayOrder, error) {
	body, _ := json.Marshal(createOrderReq{Amount: amountCents, Currency: currency, Receipt: receipt})
	var out GatewayOrder
	if err := g.do(ctx, http.MethodPost, "/v1/orders", "order:"+receipt, body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: order response without id", ErrUnavailable)
	}
	return &out, nil
}

func (g *HTTPGateway) VerifyCheckoutSignature(gatewayOrderID, paymentID, signature string) error {
	return verifyCheckout(g.keySecret, gatewayOrderID, paymentID, signature)
}

func (g *HTTPGateway) VerifyWebhookSignature(rawBody []byte, signature string) error {
	return verifyWebhook(g.webhookSecret, rawBody, signature)
}

func (g *HTTPGateway) FetchPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	var out PaymentInfo
	if err := g.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, paymentID string, amountCents int64) (*RefundInfo, error) {
	body, _ := json.Marshal(map[string]int64{"amount": amountCents})
	var out RefundInfo
	if err := g.do(ctx, http.MethodPost, "/v1/payments/"+url.PathEscape(paymentID)+"/refund", fmt.Sprintf("refund:%s:%d", paymentID, amountCents), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request. idemKey identifies the logical operation so a retried
// write is deduplicated by the processor; an empty key gets a random one.
func (g *HTTPGateway) do(ctx context.Context, method, path, idemKey string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		if idemKey == "" {
			idemKey = uuid.NewString()
		}
		req.Header.Set("Idempotency-Key", idemKey)
	}
	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.log.WithError(err).WithField("path", path).Warn("gateway request failed")
		if isTimeout(err) {
			return fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	g.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("gateway response")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
