package lib

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"eventverse/src/config"
	"eventverse/src/types"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestMpesaClient(baseURL string) *MpesaClient {
	return &MpesaClient{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/api/v1/mpesa/callback",
		HTTPClient:     &http.Client{},
		Now:            time.Now,
	}
}

func TestAccessTokenCaching(t *testing.T) {
	tokenRequests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v1/generate" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		tokenRequests++
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": fmt.Sprintf("token-%d", tokenRequests),
			"expires_in":   "3599",
		})
	}))
	defer srv.Close()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	client := newTestMpesaClient(srv.URL)
	client.Now = func() time.Time { return now }

	tok1, err := client.AccessToken(t.Context())
	assert.Nil(t, err)
	assert.Equal(t, "token-1", tok1)

	tok2, err := client.AccessToken(t.Context())
	assert.Nil(t, err)
	assert.Equal(t, "token-1", tok2, "a fresh token must be served from cache")
	assert.Equal(t, 1, tokenRequests)

	// Past the refresh margin the cached token is discarded.
	now = now.Add(56 * time.Minute)
	tok3, err := client.AccessToken(t.Context())
	assert.Nil(t, err)
	assert.Equal(t, "token-2", tok3)
	assert.Equal(t, 2, tokenRequests)
}

func TestInitiateSTKPush(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
		case "/mpesa/stkpush/v1/processrequest":
			json.NewDecoder(r.Body).Decode(&captured)
			json.NewEncoder(w).Encode(STKPushResponse{
				MerchantRequestID:   "mer-1",
				CheckoutRequestID:   "ws_CO_1",
				ResponseCode:        "0",
				ResponseDescription: "Success",
				CustomerMessage:     "Check your phone",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	client := newTestMpesaClient(srv.URL)
	client.Now = func() time.Time { return now }

	res, err := client.InitiateSTKPush(t.Context(), 1300, "254712345678", "EVT42U7LONGREFERENCE", "Gala Night x2")
	assert.Nil(t, err)
	assert.Equal(t, "ws_CO_1", res.CheckoutRequestID)

	assert.Equal(t, "EVT42U7LONGR", captured["AccountReference"], "reference must be cut to 12 chars")
	assert.Equal(t, "254712345678", captured["PartyA"])
	assert.Equal(t, "CustomerPayBillOnline", captured["TransactionType"])
	assert.Equal(t, float64(1300), captured["Amount"])

	timestamp := now.UTC().Format(config.MPESA_TIMESTAMP_FORMAT)
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + timestamp))
	assert.Equal(t, wantPassword, captured["Password"])
}

func TestInitiateSTKPushRejectsZeroAmount(t *testing.T) {
	client := newTestMpesaClient("http://invalid.local")
	_, err := client.InitiateSTKPush(t.Context(), 0, "254712345678", "ref", "desc")
	var merr *MpesaError
	assert.True(t, errors.As(err, &merr))
}

func TestInitiateSTKPushProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
			return
		}
		json.NewEncoder(w).Encode(STKPushResponse{ResponseCode: "1", ResponseDescription: "Insufficient balance"})
	}))
	defer srv.Close()

	client := newTestMpesaClient(srv.URL)
	_, err := client.InitiateSTKPush(t.Context(), 100, "254712345678", "ref", "desc")
	var merr *MpesaError
	assert.True(t, errors.As(err, &merr))
	assert.Equal(t, "1", merr.Code)
	assert.False(t, merr.RateLimited())
}

func TestQuerySTKStatusRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"errorCode": "429", "errorMessage": "Spike arrest violation"})
	}))
	defer srv.Close()

	client := newTestMpesaClient(srv.URL)
	_, err := client.QuerySTKStatus(t.Context(), "ws_CO_1")
	var merr *MpesaError
	assert.True(t, errors.As(err, &merr))
	assert.True(t, merr.RateLimited())
	assert.Equal(t, "Spike arrest violation", merr.Description)
}

func TestParseSTKCallback(t *testing.T) {
	t.Run("enveloped success callback", func(t *testing.T) {
		payload := `{
			"Body": {"stkCallback": {
				"MerchantRequestID": "mer-1",
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {"Item": [
					{"Name": "Amount", "Value": 1300},
					{"Name": "MpesaReceiptNumber", "Value": "RKTQDM7W6S"},
					{"Name": "TransactionDate", "Value": 20260901120000},
					{"Name": "PhoneNumber", "Value": 254712345678}
				]}
			}}
		}`
		callback, err := ParseSTKCallback([]byte(payload))
		assert.Nil(t, err)
		assert.Equal(t, "ws_CO_1", callback.CheckoutRequestID)

		outcome := callback.Outcome()
		assert.Equal(t, types.PAYMENT_SUCCEEDED, outcome.Kind)
		assert.Equal(t, "RKTQDM7W6S", outcome.ReceiptID)
		assert.Equal(t, float64(1300), outcome.Amount)
	})

	t.Run("success without metadata keeps fields empty", func(t *testing.T) {
		payload := `{
			"Body": {"stkCallback": {
				"MerchantRequestID": "mer-1",
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully."
			}}
		}`
		callback, err := ParseSTKCallback([]byte(payload))
		assert.Nil(t, err)

		outcome := callback.Outcome()
		assert.Equal(t, types.PAYMENT_SUCCEEDED, outcome.Kind)
		assert.Empty(t, outcome.ReceiptID, "absent metadata must not leave a nil marker in the receipt")
		assert.Empty(t, outcome.Phone)
		assert.Empty(t, outcome.PaidAt)
	})

	t.Run("bare cancellation callback", func(t *testing.T) {
		payload := `{"MerchantRequestID": "mer-1", "CheckoutRequestID": "ws_CO_1", "ResultCode": 1032, "ResultDesc": "Request cancelled by user"}`
		callback, err := ParseSTKCallback([]byte(payload))
		assert.Nil(t, err)

		outcome := callback.Outcome()
		assert.Equal(t, types.PAYMENT_FAILED, outcome.Kind)
		assert.Equal(t, "1032", outcome.Code)
	})

	t.Run("rejects a payload with no checkout id", func(t *testing.T) {
		_, err := ParseSTKCallback([]byte(`{"foo": "bar"}`))
		assert.NotNil(t, err)
	})

	t.Run("rejects junk", func(t *testing.T) {
		_, err := ParseSTKCallback([]byte(`{`))
		assert.NotNil(t, err)
	})
}

func TestSTKQueryOutcome(t *testing.T) {
	t.Run("no result code means still in flight", func(t *testing.T) {
		q := &STKQueryResponse{ResponseCode: "0", ResponseDescription: "The service request has been accepted successsfully"}
		assert.Equal(t, types.PAYMENT_PENDING, q.Outcome().Kind)
	})

	t.Run("result code 0 is success", func(t *testing.T) {
		q := &STKQueryResponse{CheckoutRequestID: "ws_CO_1", ResultCode: "0"}
		outcome := q.Outcome()
		assert.Equal(t, types.PAYMENT_SUCCEEDED, outcome.Kind)
		assert.Equal(t, "ws_CO_1", outcome.ReceiptID)
	})

	t.Run("cancellation is failure", func(t *testing.T) {
		q := &STKQueryResponse{CheckoutRequestID: "ws_CO_1", ResultCode: "1032", ResultDesc: "Request cancelled by user"}
		assert.Equal(t, types.PAYMENT_FAILED, q.Outcome().Kind)
	})
}
