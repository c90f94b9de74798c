package vtu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Outcome statuses. The adapter never reports anything else: every vendor
// code other than the explicit success sentinel, and every transport or
// parse problem, is normalized to failed so the caller refunds instead of
// guessing.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Outcome is the normalized result of one purchase attempt.
type Outcome struct {
	Status          string
	Message         string
	VendorReference string
	Raw             string // raw vendor payload (JSON) retained for audit
}

// Success reports whether the vendor explicitly confirmed the purchase.
func (o Outcome) Success() bool { return o.Status == StatusSuccess }

// Gateway is the purchase orchestrator's view of the airtime vendor.
type Gateway interface {
	PurchaseAirtime(ctx context.Context, network, phone string, amount decimal.Decimal, requestID string) Outcome
}

// networkIDs maps client network names to the vendor's network ids.
var networkIDs = map[string]string{
	"MTN":     "01",
	"GLO":     "02",
	"AIRTEL":  "03",
	"9MOBILE": "04",
}

// SupportedNetwork reports whether the network name maps to a vendor id.
func SupportedNetwork(name string) bool {
	_, ok := networkIDs[strings.ToUpper(name)]
	return ok
}

// Client talks to a Clubkonnect-style VTU API over HTTP.
type Client struct {
	baseURL string
	userID  string
	apiKey  string
	httpc   *http.Client
	log     *zap.SugaredLogger
}

// NewClient builds a vendor client. The timeout bounds the whole round trip;
// there is no internal retry, callers own retry policy.
func NewClient(baseURL, userID, apiKey string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
	}
}

type vendorResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"orderid"`
	Msg     string `json:"msg"`
}

// PurchaseAirtime performs one synchronous purchase attempt. requestID is the
// ledger entry id and is passed as the vendor's RequestID so a duplicate
// submission cannot charge twice on the vendor side.
func (c *Client) PurchaseAirtime(ctx context.Context, network, phone string, amount decimal.Decimal, requestID string) Outcome {
	networkID, ok := networkIDs[strings.ToUpper(network)]
	if !ok {
		c.log.Warnf("unsupported network attempted: %s", network)
		return failed(fmt.Sprintf("Unsupported network: %s", network), "{}")
	}

	params := url.Values{}
	params.Set("UserID", c.userID)
	params.Set("APIKey", c.apiKey)
	params.Set("MobileNo", phone)
	// vendor wants whole units, no decimals
	params.Set("Amount", amount.Truncate(0).String())
	params.Set("NetworkID", networkID)
	params.Set("RequestID", requestID)
	params.Set("CallBackURL", "")

	endpoint := c.baseURL + "/GetCredit.asp"
	c.log.Infof("vendor call %s MobileNo=%s Amount=%s Ref=%s", endpoint, phone, amount, requestID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return transportFailure(err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Errorf("vendor request failed: %v", err)
		return transportFailure(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Errorf("vendor body read failed: %v", err)
		return transportFailure(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Errorf("vendor HTTP %d: %s", resp.StatusCode, body)
		return failed("Unable to connect to network provider. Please try again later.",
			rawError(fmt.Sprintf("HTTP %d", resp.StatusCode), string(body)))
	}

	var vr vendorResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		c.log.Errorf("vendor response not JSON: %v body=%s", err, body)
		return failed("Bad response from network provider.",
			rawError("invalid JSON", string(body)))
	}

	switch vr.Status {
	case "100":
		return Outcome{
			Status:          StatusSuccess,
			Message:         "Transaction Successful",
			VendorReference: vr.OrderID,
			Raw:             string(body),
		}
	case "200":
		msg := vr.Msg
		if msg == "" {
			msg = "Transaction failed at vendor"
		}
		return failed(msg, string(body))
	default:
		// unknown or pending state: safer to fail and refund than to
		// assume the vendor delivered
		c.log.Warnf("unknown vendor status code: %q", vr.Status)
		return failed(fmt.Sprintf("Vendor returned unknown status: %s", vr.Status), string(body))
	}
}

func failed(msg, raw string) Outcome {
	return Outcome{Status: StatusFailed, Message: msg, Raw: raw}
}

func transportFailure(err error) Outcome {
	return failed("Unable to connect to network provider. Please try again later.",
		rawError(err.Error(), ""))
}

func rawError(errMsg, body string) string {
	m := map[string]string{"error": errMsg}
	if body != "" {
		m["body"] = body
	}
	b, _ := json.Marshal(m)
	return string(b)
}
