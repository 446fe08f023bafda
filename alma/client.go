// Package alma is a client for the catalog item API.
//
// Lookups go through GET <item_root>?item_barcode=...; updates PUT the full
// item record to the per-item URL built from the configured template.
// Every call waits on a shared Pacer so consecutive calls are spaced apart.
package alma

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/justapithecus/anxeod/iox"
	"github.com/justapithecus/anxeod/log"
	"github.com/justapithecus/anxeod/metrics"
	"github.com/justapithecus/anxeod/types"
)

const (
	// DefaultLookupTimeout bounds a single barcode lookup.
	DefaultLookupTimeout = 10 * time.Second
	// DefaultUpdateTimeout bounds a single item update.
	DefaultUpdateTimeout = 20 * time.Second
	// DefaultCallDelay is the minimum spacing between gateway calls.
	DefaultCallDelay = 250 * time.Millisecond
	// MinCallDelay and MaxCallDelay bound a configured call delay.
	MinCallDelay = 250 * time.Millisecond
	MaxCallDelay = 500 * time.Millisecond

	maxBodyBytes = 10 << 20
)

// Config configures the item API client.
type Config struct {
	// ItemRoot is the barcode lookup endpoint (required).
	ItemRoot string
	// PutTemplate is the update endpoint with {MMSID}, {HOLDING_ID} and
	// {ITEM_PID} placeholders (required).
	PutTemplate string
	// APIKey is sent as the apikey query parameter (required).
	APIKey string
	// LookupTimeout is the per-lookup timeout (default 15s).
	LookupTimeout time.Duration
	// UpdateTimeout is the per-update timeout (default 20s).
	UpdateTimeout time.Duration
	// CallDelay is the minimum spacing between calls (default 250ms).
	// Negative disables pacing; configuration never produces one.
	CallDelay time.Duration
}

// Client talks to the item API.
type Client struct {
	config    Config
	client    *http.Client
	pacer     *Pacer
	logger    *log.Logger
	collector *metrics.Collector
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the collector that counts gateway calls.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.collector = m }
}

// New creates a client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	var missing []string
	if cfg.ItemRoot == "" {
		missing = append(missing, "item root")
	}
	if cfg.PutTemplate == "" {
		missing = append(missing, "put template")
	}
	if cfg.APIKey == "" {
		missing = append(missing, "api key")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("alma client requires %s", strings.Join(missing, ", "))
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = DefaultUpdateTimeout
	}
	if cfg.CallDelay == 0 {
		cfg.CallDelay = DefaultCallDelay
	}

	c := &Client{
		config: cfg,
		client: &http.Client{},
		pacer:  NewPacer(cfg.CallDelay),
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StatusError is returned for non-2xx responses that carry no error envelope.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Lookup fetches the item record for barcode.
//
// An error envelope from the API is returned as a record with Error set and
// a nil error. Transport and decode failures are returned as errors.
func (c *Client) Lookup(ctx context.Context, barcode string) (*types.ItemRecord, error) {
	u, err := url.Parse(c.config.ItemRoot)
	if err != nil {
		return nil, fmt.Errorf("parse item root: %w", err)
	}
	q := u.Query()
	q.Set("item_barcode", barcode)
	q.Set("apikey", c.config.APIKey)
	u.RawQuery = q.Encode()

	body, status, err := c.do(ctx, http.MethodGet, u.String(), nil, c.config.LookupTimeout)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", barcode, err)
	}
	c.logger.Debug("item lookup", map[string]any{"barcode": barcode, "status": status})

	rec, err := decode(body, status)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", barcode, err)
	}
	return rec, nil
}

// Update PUTs payload and returns the record the API echoes back.
// An error envelope is returned as a *types.GatewayError.
func (c *Client) Update(ctx context.Context, payload *types.ItemRecord) (*types.ItemRecord, error) {
	if payload == nil {
		return nil, errors.New("update: nil payload")
	}
	// not json.Marshal, which HTML-escapes the untouched fields
	data, err := payload.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("update %s: encode payload: %w", payload.Barcode, err)
	}

	endpoint := c.UpdateURL(payload.MMSID, payload.HoldingID, payload.ItemPID)
	body, status, err := c.do(ctx, http.MethodPut, endpoint, data, c.config.UpdateTimeout)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", payload.Barcode, err)
	}
	c.logger.Debug("item update", map[string]any{
		"barcode": payload.Barcode,
		"status":  status,
		"fields":  payload.Changed(),
	})

	rec, err := decode(body, status)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", payload.Barcode, err)
	}
	if rec.Error != nil {
		return nil, rec.Error
	}
	return rec, nil
}

// UpdateURL fills the put template for one item. The API key is included.
func (c *Client) UpdateURL(mmsID, holdingID, itemPID string) string {
	base := strings.NewReplacer(
		"{MMSID}", url.PathEscape(mmsID),
		"{HOLDING_ID}", url.PathEscape(holdingID),
		"{ITEM_PID}", url.PathEscape(itemPID),
	).Replace(c.config.PutTemplate)
	return base + "?generate_description=false&apikey=" + url.QueryEscape(c.config.APIKey)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, timeout time.Duration) ([]byte, int, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, 0, err
	}
	c.collector.IncGatewayCalls()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", c.redact(err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", c.redact(err))
	}
	defer iox.DiscardClose(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// decode interprets a response body. Error envelopes are honoured
// regardless of status code since the API pairs them with 4xx responses.
func decode(body []byte, status int) (*types.ItemRecord, error) {
	if ge, ok := types.DecodeErrorEnvelope(body); ok {
		return &types.ItemRecord{Error: ge}, nil
	}
	if status < 200 || status >= 300 {
		return nil, &StatusError{Code: status, Body: snippet(body)}
	}
	return types.DecodeItemRecord(body)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// redact strips the api key from URLs embedded in transport errors.
func (c *Client) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && c.config.APIKey != "" {
		ue.URL = strings.ReplaceAll(ue.URL, url.QueryEscape(c.config.APIKey), "REDACTED")
	}
	return err
}
