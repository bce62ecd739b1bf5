package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestHTTPGateway_CreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))

		var req createOrderReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(49900), req.Amount)
		assert.Equal(t, "INR", req.Currency)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "order_abc", "amount": req.Amount, "currency": req.Currency, "receipt": req.Receipt, "status": "created",
		})
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "key", "secret", "wh", time.Second, quietLogger())
	o, err := g.CreateOrder(context.Background(), 49900, "INR", "ORD1")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", o.ID)
	assert.Equal(t, "ORD1", o.Receipt)
}

func TestHTTPGateway_RetriesReuseIdempotencyKey(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "x_1", "payment_id": "pay_1", "amount": 100, "status": "processed"})
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "key", "secret", "wh", time.Second, quietLogger())
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := g.CreateOrder(ctx, 100, "INR", "ORD1")
		require.NoError(t, err)
		_, err = g.Refund(ctx, "pay_1", 100)
		require.NoError(t, err)
	}
	_, err := g.Refund(ctx, "pay_1", 50)
	require.NoError(t, err)

	require.Len(t, keys, 5)
	assert.Equal(t, "order:ORD1", keys[0])
	assert.Equal(t, keys[0], keys[2])
	assert.Equal(t, "refund:pay_1:100", keys[1])
	assert.Equal(t, keys[1], keys[3])
	assert.NotEqual(t, keys[1], keys[4], "a different amount is a different refund")
}

func TestHTTPGateway_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "key", "secret", "wh", time.Second, quietLogger())
	_, err := g.FetchPayment(context.Background(), "pay_1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPGateway_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "key", "secret", "wh", 20*time.Millisecond, quietLogger())
	_, err := g.Refund(context.Background(), "pay_1", 100)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestStubGateway_SignaturesRoundTrip(t *testing.T) {
	s := NewStubGateway("secret", "wh")
	o, err := s.CreateOrder(context.Background(), 100, "INR", "r")
	require.NoError(t, err)
	require.NoError(t, s.VerifyCheckoutSignature(o.ID, "pay_1", SignCheckout("secret", o.ID, "pay_1")))
	assert.ErrorIs(t, s.VerifyCheckoutSignature(o.ID, "pay_1", "bad"), ErrSignatureMismatch)

	_, err = s.Refund(context.Background(), "pay_1", 100)
	require.NoError(t, err)
	assert.Len(t, s.Refunds(), 1)
}
