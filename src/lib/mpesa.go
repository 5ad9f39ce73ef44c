package lib

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"eventverse/src/config"
	"eventverse/src/types"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	mpesaSandboxURL    = "https://sandbox.safaricom.co.ke"
	mpesaProductionURL = "https://api.safaricom.co.ke"

	// Daraja access tokens expire after an hour; refresh a little early so
	// an in-flight request never carries a token about to lapse.
	mpesaTokenRefreshMargin = 5 * time.Minute
)

// MpesaError carries the provider's own code and description so callers can
// show the provider message and decide whether the attempt is retryable.
type MpesaError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *MpesaError) Error() string {
	return fmt.Sprintf("mpesa: [%s] %s (http %d)", e.Code, e.Description, e.StatusCode)
}

// RateLimited reports whether the caller should back off and retry.
func (e *MpesaError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

type MpesaClient struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string

	HTTPClient *http.Client
	Now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

var mpesaClient *MpesaClient

func GetMpesaClient() *MpesaClient {
	if mpesaClient != nil {
		return mpesaClient
	}
	baseURL := mpesaSandboxURL
	if os.Getenv("MPESA_ENVIRONMENT") == "production" {
		baseURL = mpesaProductionURL
	}
	mpesaClient = &MpesaClient{
		BaseURL:        baseURL,
		ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		ShortCode:      os.Getenv("MPESA_SHORTCODE"),
		Passkey:        os.Getenv("MPESA_PASSKEY"),
		CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		HTTPClient:     &http.Client{Timeout: 20 * time.Second},
		Now:            time.Now,
	}
	return mpesaClient
}

// NewMpesaClient Replace mpesa instance with custom client implementation
func NewMpesaClient(c *MpesaClient) *MpesaClient {
	mpesaClient = c
	return c
}

// AccessToken returns a cached bearer token, fetching a fresh one when the
// cached token is within the refresh margin of expiry.
func (m *MpesaClient) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" && m.Now().Before(m.tokenExpiry) {
		return m.token, nil
	}

	url := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", m.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("mpesa: AccessToken: %w", err)
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", m.ConsumerKey, m.ConsumerSecret)))
	req.Header.Set("Authorization", fmt.Sprintf("Basic %s", credentials))

	res, err := m.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mpesa: AccessToken: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("mpesa: AccessToken: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		m.token = ""
		m.tokenExpiry = time.Time{}
		return "", mpesaErrorFromResponse(res.StatusCode, body)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("mpesa: AccessToken: decoding response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", &MpesaError{StatusCode: res.StatusCode, Code: "NoToken", Description: "empty access token in response"}
	}
	expiresIn, err := strconv.Atoi(payload.ExpiresIn)
	if err != nil || expiresIn <= 0 {
		expiresIn = 3600
	}
	m.token = payload.AccessToken
	m.tokenExpiry = m.Now().Add(time.Duration(expiresIn)*time.Second - mpesaTokenRefreshMargin)
	return m.token, nil
}

// password is the shortcode+passkey+timestamp credential Daraja expects on
// every STK request.
func (m *MpesaClient) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s%s%s", m.ShortCode, m.Passkey, timestamp)))
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// InitiateSTKPush prompts the payer's phone for amount whole shillings.
// reference is truncated to the 12 chars Daraja allows.
func (m *MpesaClient) InitiateSTKPush(ctx context.Context, amount int64, msisdn, reference, description string) (*STKPushResponse, error) {
	if amount < 1 {
		return nil, &MpesaError{Code: "BadAmount", Description: "amount must be at least 1 KES"}
	}
	token, err := m.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	timestamp := m.Now().UTC().Format(config.MPESA_TIMESTAMP_FORMAT)
	if len(reference) > 12 {
		reference = reference[:12]
	}
	if len(description) > 20 {
		description = description[:20]
	}
	payload := map[string]any{
		"BusinessShortCode": m.ShortCode,
		"Password":          m.password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            amount,
		"PartyA":            msisdn,
		"PartyB":            m.ShortCode,
		"PhoneNumber":       msisdn,
		"CallBackURL":       m.CallbackURL,
		"AccountReference":  reference,
		"TransactionDesc":   description,
	}

	var out STKPushResponse
	if err := m.post(ctx, token, "/mpesa/stkpush/v1/processrequest", payload, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		return nil, &MpesaError{Code: out.ResponseCode, Description: out.ResponseDescription}
	}
	return &out, nil
}

type STKQueryResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// QuerySTKStatus asks Daraja for the state of an earlier push. ResultCode
// "0" is success; "1032" is user cancellation; an HTTP 429 means the caller
// is polling too fast and should back off.
func (m *MpesaClient) QuerySTKStatus(ctx context.Context, checkoutRequestId string) (*STKQueryResponse, error) {
	if checkoutRequestId == "" {
		return nil, &MpesaError{Code: "BadRequest", Description: "checkoutRequestId is required"}
	}
	token, err := m.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	timestamp := m.Now().UTC().Format(config.MPESA_TIMESTAMP_FORMAT)
	payload := map[string]any{
		"BusinessShortCode": m.ShortCode,
		"Password":          m.password(timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestId,
	}

	var out STKQueryResponse
	if err := m.post(ctx, token, "/mpesa/stkpushquery/v1/query", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MpesaClient) post(ctx context.Context, token, path string, payload any, out any) error {
	bPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mpesa: encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", m.BaseURL, path), bytes.NewReader(bPayload))
	if err != nil {
		return fmt.Errorf("mpesa: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")

	res, err := m.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("mpesa: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("mpesa: reading response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return mpesaErrorFromResponse(res.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("mpesa: decoding response: %w", err)
	}
	return nil
}

func mpesaErrorFromResponse(status int, body []byte) *MpesaError {
	var payload struct {
		RequestId        string `json:"requestId"`
		ErrorCode        string `json:"errorCode"`
		ErrorMessage     string `json:"errorMessage"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &payload)
	desc := payload.ErrorMessage
	if desc == "" {
		desc = payload.ErrorDescription
	}
	if desc == "" {
		switch status {
		case http.StatusTooManyRequests:
			desc = "rate limit exceeded"
		case http.StatusUnauthorized, http.StatusForbidden:
			desc = "invalid API credentials"
		default:
			desc = fmt.Sprintf("API error (%d)", status)
		}
	}
	code := payload.ErrorCode
	if code == "" {
		code = strconv.Itoa(status)
	}
	return &MpesaError{StatusCode: status, Code: code, Description: desc}
}

// STKCallback is the body Daraja posts to the callback URL, unwrapped from
// Body.stkCallback.
type STKCallback struct {
	MerchantRequestID string  `json:"MerchantRequestID"`
	CheckoutRequestID string  `json:"CheckoutRequestID"`
	ResultCode        int     `json:"ResultCode"`
	ResultDesc        string  `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []struct {
			Name  string `json:"Name"`
			Value any    `json:"Value"`
		} `json:"Item"`
	} `json:"CallbackMetadata"`
}

// ParseSTKCallback accepts both the enveloped form ({"Body":{"stkCallback":…}})
// and the bare callback object.
func ParseSTKCallback(body []byte) (*STKCallback, error) {
	var envelope struct {
		Body struct {
			StkCallback *STKCallback `json:"stkCallback"`
		} `json:"Body"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Body.StkCallback != nil {
		return envelope.Body.StkCallback, nil
	}
	var callback STKCallback
	if err := json.Unmarshal(body, &callback); err != nil {
		return nil, fmt.Errorf("mpesa: parsing callback: %w", err)
	}
	if callback.CheckoutRequestID == "" {
		return nil, fmt.Errorf("mpesa: parsing callback: missing CheckoutRequestID")
	}
	return &callback, nil
}

func (c *STKCallback) metadataValue(name string) any {
	if c.CallbackMetadata == nil {
		return nil
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == name {
			return item.Value
		}
	}
	return nil
}

// metadataString renders a metadata item as text, with absent items as ""
// so they are never stored as a literal nil marker.
func (c *STKCallback) metadataString(name string) string {
	v := c.metadataValue(name)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Outcome normalizes the callback into the internal payment outcome shape.
// ResultCode 0 is success; anything else left the tickets unpaid.
func (c *STKCallback) Outcome() types.PaymentOutcome {
	if c.ResultCode == 0 {
		amount, _ := c.metadataValue("Amount").(float64)
		receipt := c.metadataString("MpesaReceiptNumber")
		phone := c.metadataString("PhoneNumber")
		paidAt := c.metadataString("TransactionDate")
		return types.SucceededOutcome(receipt, amount, phone, paidAt)
	}
	return types.FailedOutcome(strconv.Itoa(c.ResultCode), c.ResultDesc)
}

// Outcome maps a status-query response onto the same variant the callback
// path produces, so both reconcile identically. An empty ResultCode means
// the push is still in flight on the handset.
func (q *STKQueryResponse) Outcome() types.PaymentOutcome {
	switch q.ResultCode {
	case "":
		return types.PendingOutcome(q.ResponseCode, q.ResponseDescription)
	case "0":
		// The query response carries no receipt; the callback fills it in
		// when it lands. Correlate with the checkout id meanwhile.
		return types.SucceededOutcome(q.CheckoutRequestID, 0, "", "")
	default:
		log.Printf("[mpesa] STK query for %s returned %s: %s\n", q.CheckoutRequestID, q.ResultCode, q.ResultDesc)
		return types.FailedOutcome(q.ResultCode, q.ResultDesc)
	}
}
