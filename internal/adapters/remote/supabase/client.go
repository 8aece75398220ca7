// Package supabase talks to a hosted Supabase project: GoTrue for
// authentication and PostgREST for table access.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

const (
	// SessionSlot is where the signed-in token pair is persisted.
	SessionSlot      = "supabase.session"
	maxResponseBytes = 4 << 20
)

type Config struct {
	URL        string
	AnonKey    string
	HTTPClient *http.Client
	Slots      ports.SlotStore
	Clock      ports.Clock
	Logger     *slog.Logger
	OAuth      OAuthConfig
}

type Client struct {
	baseURL *url.URL
	anonKey string
	http    *http.Client
	slots   ports.SlotStore
	clock   ports.Clock
	logger  *slog.Logger
	oauth   OAuthConfig

	sessionMu sync.Mutex
	session   *tokenSession
	loaded    bool

	listenersMu sync.Mutex
	listeners   map[int]func(ports.AuthEvent)
	nextID      int
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("supabase url is required")
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, errors.New("supabase anon key is required")
	}

	parsed, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse supabase url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("supabase url must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("supabase url host is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	clock := cfg.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		baseURL:   parsed,
		anonKey:   cfg.AnonKey,
		http:      client,
		slots:     cfg.Slots,
		clock:     clock,
		logger:    logger,
		oauth:     cfg.OAuth.withDefaults(),
		listeners: make(map[int]func(ports.AuthEvent)),
	}, nil
}

type request struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   any
	// bearer overrides the token sent in Authorization. Empty means the
	// anon key.
	bearer string
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends req and maps transport failures and non-2xx statuses onto the
// domain error taxonomy. allow lists extra statuses handled by the caller.
func (c *Client) do(ctx context.Context, op string, req request, allow ...int) (response, error) {
	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return response{}, domain.WrapError(domain.KindValidation, op, fmt.Errorf("encode request body: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.endpoint(req.path, req.query), body)
	if err != nil {
		return response{}, domain.WrapError(domain.KindInternal, op, fmt.Errorf("create request: %w", err))
	}
	for key, values := range req.header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	bearer := req.bearer
	if bearer == "" {
		bearer = c.anonKey
	}
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return response{}, transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, transportError(op, fmt.Errorf("read response: %w", err))
	}

	out := response{status: resp.StatusCode, header: resp.Header, body: raw}
	for _, status := range allow {
		if resp.StatusCode == status {
			return out, nil
		}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return out, statusError(op, resp.StatusCode, raw)
	}
	return out, nil
}

func decode(op string, raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.KindInternal, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
