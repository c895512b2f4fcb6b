// Package gateway is the transport to the journaling backend.
//
// The Client is stateless apart from its HTTP client and rate limiter: it
// attaches the bearer token, decodes responses and normalizes failures into
// *TransportError. It never retries; retry policy belongs to callers.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/abelbrown/moodlog/internal/journal"
)

// ErrUnauthorized matches any TransportError with HTTP status 401.
var ErrUnauthorized = errors.New("unauthorized")

// TransportError is a network failure or a non-2xx response.
// Status is 0 for network-level failures.
type TransportError struct {
	Endpoint string
	Status   int
	Message  string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Endpoint, e.Status, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *TransportError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// TokenSource yields the current bearer token. It is consulted on every
// request so a login elsewhere is picked up without rebuilding the client.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() string { return string(t) }

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Tokens     TokenSource
	RatePerSec float64 // 0 disables client-side throttling
	StreamPath string  // default "/events/stream"
	TokenParam string  // default "token"
}

// Client talks to the backend REST API.
type Client struct {
	base       *url.URL
	client     *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	streamPath string
	tokenParam string
}

// New creates a Client. BaseURL must be absolute.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Tokens == nil {
		opts.Tokens = StaticToken("")
	}
	if opts.StreamPath == "" {
		opts.StreamPath = "/events/stream"
	}
	if opts.TokenParam == "" {
		opts.TokenParam = "token"
	}

	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}

	return &Client{
		base:       base,
		client:     &http.Client{Timeout: opts.Timeout},
		tokens:     opts.Tokens,
		limiter:    rate.NewLimiter(limit, 4),
		streamPath: opts.StreamPath,
		tokenParam: opts.TokenParam,
	}, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.base.String() }

// StreamURL returns the push-channel URL. EventSource-style clients cannot
// set headers, so the token travels as a query parameter.
func (c *Client) StreamURL() string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + c.streamPath
	q := u.Query()
	if tok := c.tokens.Token(); tok != "" {
		q.Set(c.tokenParam, tok)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// do performs one request and decodes a JSON body into out (if non-nil).
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Endpoint: endpoint, Message: "rate limiter: " + err.Error(), Err: err}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "moodlog/0.3")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &TransportError{Endpoint: endpoint, Status: resp.StatusCode, Message: "read body: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  errorMessage(data, resp.Status),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: parse response: %w", endpoint, err)
	}
	return nil
}

// errorMessage prefers the backend's {"error": ...} or {"message": ...}.
func errorMessage(body []byte, status string) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	// Drop the leading code from "401 Unauthorized".
	if i := strings.IndexByte(status, ' '); i >= 0 {
		return status[i+1:]
	}
	return status
}

// FetchEntries returns all journal entries visible to the current user.
func (c *Client) FetchEntries(ctx context.Context) ([]journal.Entry, error) {
	var res struct {
		Entries []journal.Entry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/journal/entries", nil, &res); err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// FetchOverview returns the backend's precomputed overview. A nil Counts
// means the backend had nothing usable.
func (c *Client) FetchOverview(ctx context.Context) (*journal.Overview, error) {
	var o journal.Overview
	if err := c.do(ctx, http.MethodGet, "/analytics/overview", nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// FetchTrends returns the backend's daily trend series. A nil result
// means "not available", not an error.
func (c *Client) FetchTrends(ctx context.Context, days int) ([]journal.TrendPoint, error) {
	var raw json.RawMessage
	endpoint := "/analytics/trends?days=" + strconv.Itoa(days)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	return decodeTrends(raw), nil
}

func decodeTrends(raw json.RawMessage) []journal.TrendPoint {
	var points []journal.TrendPoint
	if err := json.Unmarshal(raw, &points); err != nil {
		var wrapped struct {
			DailyTrends []journal.TrendPoint `json:"daily_trends"`
			Trends      []journal.TrendPoint `json:"trends"`
		}
		if json.Unmarshal(raw, &wrapped) != nil {
			return nil
		}
		points = wrapped.DailyTrends
		if len(points) == 0 {
			points = wrapped.Trends
		}
	}

	out := points[:0]
	for _, p := range points {
		if !p.Date.IsZero() {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NewEntry is the body of POST /journal/entry.
type NewEntry struct {
	Text       string   `json:"text"`
	MoodRating *int     `json:"mood_rating"`
	Tags       []string `json:"tags"`
}

// CreateEntry submits a new entry. The backend analyzes it synchronously
// and returns the stored entry.
func (c *Client) CreateEntry(ctx context.Context, e NewEntry) (journal.Entry, error) {
	if e.Tags == nil {
		e.Tags = []string{}
	}
	var res struct {
		Entry             json.RawMessage `json:"entry"`
		SentimentAnalysis json.RawMessage `json:"sentiment_analysis"`
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/journal/entry", e, &raw); err != nil {
		return journal.Entry{}, err
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return journal.Entry{}, fmt.Errorf("/journal/entry: parse response: %w", err)
	}

	body := []byte(raw)
	if len(res.Entry) > 0 && string(res.Entry) != "null" {
		body = mergeAnalysis(res.Entry, res.SentimentAnalysis)
	}
	var created journal.Entry
	if err := json.Unmarshal(body, &created); err != nil {
		return journal.Entry{}, fmt.Errorf("/journal/entry: parse entry: %w", err)
	}
	if created.Text == "" {
		created.Text = e.Text
	}
	return created, nil
}

// mergeAnalysis folds a sibling sentiment_analysis object into the entry
// so its confidence is available when the entry itself lacks a score.
func mergeAnalysis(entry, analysis json.RawMessage) []byte {
	if len(analysis) == 0 || string(analysis) == "null" {
		return entry
	}
	var m map[string]json.RawMessage
	if json.Unmarshal(entry, &m) != nil {
		return entry
	}
	if _, ok := m["sentiment_analysis"]; !ok {
		m["sentiment_analysis"] = analysis
	}
	merged, err := json.Marshal(m)
	if err != nil {
		return entry
	}
	return merged
}

// DeleteEntry removes one entry.
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/journal/entry/"+url.PathEscape(id), nil, nil)
}

// Login exchanges credentials for a token. The caller persists it.
func (c *Client) Login(ctx context.Context, username, password string) (journal.AuthResult, error) {
	var res journal.AuthResult
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &res); err != nil {
		return journal.AuthResult{}, err
	}
	if res.Token == "" {
		return journal.AuthResult{}, &TransportError{Endpoint: "/auth/login", Status: http.StatusOK, Message: "response carried no token"}
	}
	return res, nil
}

// Signup creates an account. Like Login it fails when the backend answers
// without a token.
func (c *Client) Signup(ctx context.Context, username, email, password string) (journal.AuthResult, error) {
	var res journal.AuthResult
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/signup", body, &res); err != nil {
		return journal.AuthResult{}, err
	}
	if res.Token == "" {
		return journal.AuthResult{}, &TransportError{Endpoint: "/auth/signup", Status: http.StatusOK, Message: "response carried no token"}
	}
	return res, nil
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (journal.User, error) {
	var res struct {
		User journal.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &res); err != nil {
		return journal.User{}, err
	}
	return res.User, nil
}

// Logout tells the backend to drop the session. Best-effort: callers clear
// local state regardless of the result.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}
