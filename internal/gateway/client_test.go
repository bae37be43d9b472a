package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const (
	testMerchant = "PGTESTPAYUAT"
	testSalt     = "099eb0cd-02cf-4e2a-8aca-3e6c6aff0399"
	testIndex    = "1"
)

func newTestClient(baseURL string) *Client {
	log := zerolog.Nop()
	c := NewClient(Config{
		MerchantID: testMerchant,
		SaltKey:    testSalt,
		SaltIndex:  testIndex,
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
	}, &log)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func expectedChecksum(s string) string {
	sum := sha256.Sum256([]byte(s + testSalt))
	return hex.EncodeToString(sum[:]) + "###" + testIndex
}

func TestPayChecksumLayout(t *testing.T) {
	c := newTestClient("http://unused")
	for _, payload := range []string{"", "eyJhIjoxfQ==", "eyJiIjoyLCJhIjoxfQ=="} {
		if got, want := c.PayChecksum(payload), expectedChecksum(payload+"/pg/v1/pay"); got != want {
			t.Errorf("PayChecksum(%q) = %s, want %s", payload, got, want)
		}
	}
}

func TestStatusChecksumLayout(t *testing.T) {
	c := newTestClient("http://unused")
	want := expectedChecksum("/pg/v1/status/" + testMerchant + "/TXN_1")
	if got := c.StatusChecksum("TXN_1"); got != want {
		t.Errorf("StatusChecksum = %s, want %s", got, want)
	}
}

func TestCreatePayment(t *testing.T) {
	var gotPayload payPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/pg/v1/pay" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Request string `json:"request"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if got, want := r.Header.Get("X-VERIFY"), expectedChecksum(body.Request+"/pg/v1/pay"); got != want {
			t.Errorf("X-VERIFY = %s, want %s", got, want)
		}
		raw, err := base64.StdEncoding.DecodeString(body.Request)
		if err != nil {
			t.Fatalf("payload is not base64: %v", err)
		}
		if err := json.Unmarshal(raw, &gotPayload); err != nil {
			t.Fatalf("payload is not json: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"code":"PAYMENT_INITIATED","data":{"instrumentResponse":{"redirectInfo":{"url":"https://gateway/pay/abc"}}}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	p, err := c.CreatePayment(context.Background(), 299, "TXN_abc", UserDetails{Phone: "9999999999"}, "http://host/api/payment-callback")
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if p.PaymentURL != "https://gateway/pay/abc" {
		t.Errorf("PaymentURL = %q", p.PaymentURL)
	}
	if !p.Data.Success || p.Data.Code != "PAYMENT_INITIATED" {
		t.Errorf("unexpected data %+v", p.Data)
	}

	if gotPayload.Amount != 29900 {
		t.Errorf("amount = %d, want 29900", gotPayload.Amount)
	}
	if gotPayload.MerchantID != testMerchant || gotPayload.MerchantTransactionID != "TXN_abc" {
		t.Errorf("unexpected ids %+v", gotPayload)
	}
	if gotPayload.MerchantUserID != "USER_1700000000000" {
		t.Errorf("merchant user id fallback = %q", gotPayload.MerchantUserID)
	}
	if gotPayload.RedirectURL != "http://host/api/payment-callback" || gotPayload.CallbackURL != gotPayload.RedirectURL {
		t.Errorf("callback urls = %q / %q", gotPayload.RedirectURL, gotPayload.CallbackURL)
	}
	if gotPayload.RedirectMode != "POST" || gotPayload.PaymentInstrument.Type != "PAY_PAGE" {
		t.Errorf("unexpected mode/instrument %+v", gotPayload)
	}
	if gotPayload.MobileNumber != "9999999999" {
		t.Errorf("mobile = %q", gotPayload.MobileNumber)
	}
}

func TestCreatePaymentKeepsProvidedUserID(t *testing.T) {
	c := newTestClient("http://unused")
	encoded, err := c.EncodePayload(1.5, "TXN_x", UserDetails{UserID: "USER_42"}, "cb")
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := base64.StdEncoding.DecodeString(encoded)
	var p payPayload
	_ = json.Unmarshal(raw, &p)
	if p.MerchantUserID != "USER_42" {
		t.Errorf("user id = %q", p.MerchantUserID)
	}
	if p.Amount != 150 {
		t.Errorf("amount = %d, want 150", p.Amount)
	}
}

func TestCreatePaymentGatewayRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"code":"BAD_REQUEST","message":"Please check the inputs you have provided."}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreatePayment(context.Background(), 10, "TXN_1", UserDetails{}, "cb")
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if gwErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", gwErr.StatusCode)
	}
	body, ok := gwErr.Detail().(map[string]any)
	if !ok || body["code"] != "BAD_REQUEST" {
		t.Errorf("detail = %#v", gwErr.Detail())
	}
}

func TestCheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pg/v1/status/"+testMerchant+"/TXN_abc" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got, want := r.Header.Get("X-VERIFY"), expectedChecksum(r.URL.Path); got != want {
			t.Errorf("X-VERIFY = %s, want %s", got, want)
		}
		if r.Header.Get("X-MERCHANT-ID") != testMerchant {
			t.Errorf("X-MERCHANT-ID = %q", r.Header.Get("X-MERCHANT-ID"))
		}
		_, _ = w.Write([]byte(`{"success":true,"code":"PAYMENT_SUCCESS","data":{"transactionId":"T1"}}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).CheckStatus(context.Background(), "TXN_abc")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if !resp.Success || resp.Code != "PAYMENT_SUCCESS" {
		t.Errorf("unexpected response %+v", resp)
	}
	if string(resp.Data) != `{"transactionId":"T1"}` {
		t.Errorf("data = %s", resp.Data)
	}
}

func TestCheckStatusTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).CheckStatus(context.Background(), "TXN_1")
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if _, ok := Detail(err).(string); !ok {
		t.Errorf("transport detail should be a message, got %#v", Detail(err))
	}
}
