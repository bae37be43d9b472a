package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cache2k25/internal/catalog"
	"cache2k25/internal/dto"
	"cache2k25/internal/model"
)

// APIError is a non-2xx answer from the registration server.
type APIError struct {
	StatusCode int
	Detail     any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d: %v", e.StatusCode, e.Detail)
}

// APIClient calls the registration server's /api endpoints.
type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/events", nil)
	if err != nil {
		return nil, err
	}
	return catalog.Parse(raw)
}

func (c *APIClient) CreatePayment(ctx context.Context, req dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error) {
	var out dto.CreatePaymentResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/create-payment", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) PaymentStatus(ctx context.Context, merchantTransactionID string) (dto.StatusResponse, error) {
	var out dto.StatusResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/payment-status/"+url.PathEscape(merchantTransactionID), nil, &out)
	return out, err
}

func (c *APIClient) Register(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	var out dto.RegisterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Registrations(ctx context.Context) ([]model.Registration, error) {
	var out []model.Registration
	if err := c.doJSON(ctx, http.MethodGet, "/api/registrations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) ExportRows(ctx context.Context) ([]dto.ExportRow, error) {
	var out []dto.ExportRow
	if err := c.doJSON(ctx, http.MethodGet, "/api/export-excel", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	raw, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *APIClient) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e dto.ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Detail: e.Error}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}
