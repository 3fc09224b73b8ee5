// backend/src/ssn/client.go
package ssn

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

	"github.com/username/ssnreport/backend/src/logger"
	"github.com/username/ssnreport/backend/src/models"
	"github.com/username/ssnreport/backend/src/wire"
)

// Response is the regulator's generic reply envelope. Raw keeps the verbatim
// body so the filing can store it untouched.
type Response struct {
	ID      string          `json:"id"`
	Estado  string          `json:"estado"`
	Detalle string          `json:"detalle"`
	Raw     json.RawMessage `json:"-"`
}

// Client issues the submit/confirm/status/rectification calls against the SSN
// API, attaching the current bearer token. In mock mode every call is served
// locally by the mock responder.
type Client struct {
	cfg        Config
	tokens     *TokenManager
	httpClient *http.Client
	mock       *mockResponder
}

func NewClient(cfg Config, tokens *TokenManager) *Client {
	c := &Client{
		cfg:    cfg,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	if cfg.Mock {
		c.mock = newMockResponder()
		logger.L.Info("SSN client running in mock mode", "baseURL", cfg.BaseURL)
	}
	return c
}

func deliveryPath(deliveryKind string) string {
	if deliveryKind == models.KindMonthly {
		return "/inv/entregaMensual"
	}
	return "/inv/entregaSemanal"
}

// SubmitWeekly posts a weekly operations batch.
func (c *Client) SubmitWeekly(ctx context.Context, payload *wire.WeeklyPayload) (*Response, error) {
	return c.doJSON(ctx, http.MethodPost, deliveryPath(models.KindWeekly), nil, payload)
}

// SubmitMonthly posts a monthly stock snapshot.
func (c *Client) SubmitMonthly(ctx context.Context, payload *wire.MonthlyPayload) (*Response, error) {
	return c.doJSON(ctx, http.MethodPost, deliveryPath(models.KindMonthly), nil, payload)
}

// Confirm closes a submitted delivery with the regulator.
func (c *Client) Confirm(ctx context.Context, deliveryKind, cronograma string) (*Response, error) {
	body := map[string]string{
		"codigoCompania": c.cfg.CompanyCode,
		"cronograma":     cronograma,
	}
	return c.doJSON(ctx, http.MethodPost, deliveryPath(deliveryKind)+"/confirmar", nil, body)
}

// GetStatus asks for the authoritative state of a delivery.
func (c *Client) GetStatus(ctx context.Context, deliveryKind, cronograma string) (*Response, error) {
	query := url.Values{}
	query.Set("codigoCompania", c.cfg.CompanyCode)
	query.Set("cronograma", cronograma)
	return c.doJSON(ctx, http.MethodGet, deliveryPath(deliveryKind), query, nil)
}

// RequestRectification asks the regulator to reopen an already-submitted
// delivery. Approval is asynchronous; the poller reconciles the outcome.
func (c *Client) RequestRectification(ctx context.Context, deliveryKind, cronograma, reason string) (*Response, error) {
	body := map[string]string{
		"codigoCompania": c.cfg.CompanyCode,
		"cronograma":     cronograma,
		"motivo":         reason,
	}
	return c.doJSON(ctx, http.MethodPut, deliveryPath(deliveryKind), nil, body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	op := fmt.Sprintf("%s %s", method, path)

	if c.mock != nil {
		return c.mock.respond(ctx, method, path)
	}

	token := c.tokens.GetToken()
	if !token.Valid() {
		var err error
		token, err = c.tokens.Authenticate()
		if err != nil {
			return nil, err
		}
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body for %s: %w", op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	fullURL := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Token", token.Value)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	logger.L.Debug("SSN call completed", "op", op, "status", resp.StatusCode, "duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	parsed := &Response{Raw: respBody}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, parsed); err != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("decoding response body: %w", err)}
		}
	}
	return parsed, nil
}
