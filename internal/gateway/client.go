// Package gateway talks to the PhonePe-style payment gateway. Requests are
// authenticated with a salted SHA-256 checksum carried in the X-VERIFY header;
// the checksum layout is fixed by the gateway and must not change.
package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	PayPath           = "/pg/v1/pay"
	statusPathFmt     = "/pg/v1/status/%s/%s"
	checksumJoiner    = "###"
	redirectModePOST  = "POST"
	instrumentPayPage = "PAY_PAGE"
)

type Config struct {
	MerchantID string
	SaltKey    string
	SaltIndex  string
	BaseURL    string
	Timeout    time.Duration
}

type UserDetails struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	UserID string `json:"userId,omitempty"`
}

// Response is the gateway's JSON envelope. Data is kept raw so callers can
// pass it through untouched.
type Response struct {
	Success bool            `json:"success"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type Payment struct {
	Data       *Response
	PaymentURL string
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *zerolog.Logger
	now  func() time.Time
}

func NewClient(cfg Config, log *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
		now:  time.Now,
	}
}

type paymentInstrument struct {
	Type string `json:"type"`
}

type payPayload struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl"`
	MobileNumber          string            `json:"mobileNumber"`
	PaymentInstrument     paymentInstrument `json:"paymentInstrument"`
}

type payPageData struct {
	InstrumentResponse struct {
		RedirectInfo struct {
			URL string `json:"url"`
		} `json:"redirectInfo"`
	} `json:"instrumentResponse"`
}

// PayChecksum is SHA256(base64Payload + "/pg/v1/pay" + saltKey) in hex, then "###" + saltIndex.
func (c *Client) PayChecksum(base64Payload string) string {
	return c.checksum(base64Payload + PayPath)
}

// StatusChecksum covers the status URL path instead of a payload.
func (c *Client) StatusChecksum(merchantTransactionID string) string {
	return c.checksum(c.statusPath(merchantTransactionID))
}

func (c *Client) checksum(prefix string) string {
	sum := sha256.Sum256([]byte(prefix + c.cfg.SaltKey))
	return hex.EncodeToString(sum[:]) + checksumJoiner + c.cfg.SaltIndex
}

func (c *Client) statusPath(merchantTransactionID string) string {
	return fmt.Sprintf(statusPathFmt, c.cfg.MerchantID, merchantTransactionID)
}

// ToMinorUnits converts rupees to paise.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// EncodePayload returns the base64 form of the pay request the gateway expects.
func (c *Client) EncodePayload(amount float64, merchantTransactionID string, user UserDetails, callbackURL string) (string, error) {
	userID := user.UserID
	if userID == "" {
		userID = "USER_" + strconv.FormatInt(c.now().UnixMilli(), 10)
	}
	payload := payPayload{
		MerchantID:            c.cfg.MerchantID,
		MerchantTransactionID: merchantTransactionID,
		MerchantUserID:        userID,
		Amount:                ToMinorUnits(amount),
		RedirectURL:           callbackURL,
		RedirectMode:          redirectModePOST,
		CallbackURL:           callbackURL,
		MobileNumber:          user.Phone,
		PaymentInstrument:     paymentInstrument{Type: instrumentPayPage},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pay payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// CreatePayment submits a single pay request. Failures come back as *Error.
func (c *Client) CreatePayment(ctx context.Context, amount float64, merchantTransactionID string, user UserDetails, callbackURL string) (*Payment, error) {
	encoded, err := c.EncodePayload(amount, merchantTransactionID, user, callbackURL)
	if err != nil {
		return nil, &Error{Err: err}
	}
	body, err := json.Marshal(map[string]string{"request": encoded})
	if err != nil {
		return nil, &Error{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+PayPath, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", c.PayChecksum(encoded))
	req.Header.Set("accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		c.log.Error().Err(err).Str("merchant_transaction_id", merchantTransactionID).Msg("gateway pay request failed")
		return nil, err
	}

	var page payPageData
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &page); err != nil {
			c.log.Warn().Err(err).Msg("gateway pay response has unexpected data shape")
		}
	}
	return &Payment{Data: resp, PaymentURL: page.InstrumentResponse.RedirectInfo.URL}, nil
}

// CheckStatus looks up a transaction once.
func (c *Client) CheckStatus(ctx context.Context, merchantTransactionID string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+c.statusPath(merchantTransactionID), nil)
	if err != nil {
		return nil, &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", c.StatusChecksum(merchantTransactionID))
	req.Header.Set("X-MERCHANT-ID", c.cfg.MerchantID)
	req.Header.Set("accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		c.log.Error().Err(err).Str("merchant_transaction_id", merchantTransactionID).Msg("gateway status check failed")
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(req *http.Request) (*Response, error) {
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &Error{StatusCode: httpResp.StatusCode, Err: err}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &Error{StatusCode: httpResp.StatusCode, Body: decodeBody(raw)}
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{StatusCode: httpResp.StatusCode, Body: string(raw), Err: err}
	}
	return &out, nil
}

func decodeBody(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
