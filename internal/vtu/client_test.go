package vtu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vtupay/wallet-service/internal/logger"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	log, err := logger.NewLogger()
	assert.NoError(t, err)
	return NewClient(baseURL, "CK101", "secret", timeout, log)
}

func TestPurchaseAirtime_Success(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"UserID":    q.Get("UserID"),
			"APIKey":    q.Get("APIKey"),
			"MobileNo":  q.Get("MobileNo"),
			"Amount":    q.Get("Amount"),
			"NetworkID": q.Get("NetworkID"),
			"RequestID": q.Get("RequestID"),
		}
		assert.Equal(t, "/GetCredit.asp", r.URL.Path)
		w.Write([]byte(`{"status":"100","orderid":"ORD-77"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)
	out := c.PurchaseAirtime(context.Background(), "mtn", "08030000001",
		decimal.RequireFromString("450.75"), "tx-abc")

	assert.True(t, out.Success())
	assert.Equal(t, "ORD-77", out.VendorReference)
	assert.Contains(t, out.Raw, "ORD-77")
	assert.Equal(t, map[string]string{
		"UserID":    "CK101",
		"APIKey":    "secret",
		"MobileNo":  "08030000001",
		"Amount":    "450", // whole units only
		"NetworkID": "01",
		"RequestID": "tx-abc",
	}, gotQuery)
}

func TestPurchaseAirtime_VendorDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"200","msg":"INSUFFICIENT_APIBALANCE"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)
	out := c.PurchaseAirtime(context.Background(), "GLO", "08030000001", decimal.NewFromInt(100), "tx-1")

	assert.False(t, out.Success())
	assert.Equal(t, "INSUFFICIENT_APIBALANCE", out.Message)
	assert.Empty(t, out.VendorReference)
}

func TestPurchaseAirtime_UnknownStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"300"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)
	out := c.PurchaseAirtime(context.Background(), "AIRTEL", "08030000001", decimal.NewFromInt(100), "tx-2")

	assert.False(t, out.Success())
	assert.Contains(t, out.Message, "unknown status")
}

func TestPurchaseAirtime_BadJSONFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`MISSING_APIKEY`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)
	out := c.PurchaseAirtime(context.Background(), "9MOBILE", "08030000001", decimal.NewFromInt(100), "tx-3")

	assert.False(t, out.Success())
	assert.Contains(t, out.Raw, "MISSING_APIKEY")
}

func TestPurchaseAirtime_HTTPErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)
	out := c.PurchaseAirtime(context.Background(), "MTN", "08030000001", decimal.NewFromInt(100), "tx-4")

	assert.False(t, out.Success())
}

func TestPurchaseAirtime_TimeoutFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 50*time.Millisecond)
	out := c.PurchaseAirtime(context.Background(), "MTN", "08030000001", decimal.NewFromInt(100), "tx-5")

	assert.False(t, out.Success())
	assert.Contains(t, out.Message, "Unable to connect")
}

func TestPurchaseAirtime_UnsupportedNetworkSkipsCall(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)
	out := c.PurchaseAirtime(context.Background(), "OTHERS", "08030000001", decimal.NewFromInt(100), "tx-6")

	assert.False(t, out.Success())
	assert.Contains(t, out.Message, "Unsupported network")
	assert.Zero(t, hits)
}

func TestSupportedNetwork(t *testing.T) {
	assert.True(t, SupportedNetwork("mtn"))
	assert.True(t, SupportedNetwork("9MOBILE"))
	assert.False(t, SupportedNetwork("OTHERS"))
}
