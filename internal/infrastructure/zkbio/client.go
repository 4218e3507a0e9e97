// Package zkbio is the client of the biometric attendance server. It reads
// employees and punch transactions through the server's token authenticated
// REST API.
package zkbio

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
	"sync"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
	"go.uber.org/zap"
)

const (
	// maxResponseSize bounds every response body read (10MB)
	maxResponseSize = 10 * 1024 * 1024

	tokenPath        = "/api-token-auth/"
	employeesPath    = "/personnel/api/employees/"
	transactionsPath = "/iclock/api/transactions/"
)

// Config holds the source server settings
type Config struct {
	BaseURL           string
	Username          string
	Password          string
	Timeout           time.Duration
	PageSizeThreshold int
	MaxPages          int
	TokenTTL          time.Duration
}

// Validate fills defaults and reports a missing server address or credentials
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" || c.Username == "" || c.Password == "" {
		return integration.ErrSourceNotConfigured
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.PageSizeThreshold <= 0 {
		c.PageSizeThreshold = 10
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 100
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	return nil
}

// Client implements integration.PunchSource
type Client struct {
	cfg        Config
	loc        *time.Location
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client, e.g. one instrumented for tracing
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClock injects the time source used for token expiry
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a source client. Punch times are read as wall clock in loc.
func NewClient(cfg Config, loc *time.Location, logger *zap.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	c := &Client{
		cfg:        cfg,
		loc:        loc,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("zkbio"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchEmployees returns every employee published by the source.
// A failing page ends pagination; the pages read so far are returned.
func (c *Client) FetchEmployees(ctx context.Context) ([]integration.SourceEmployee, error) {
	records, err := fetchPages[employeeRecord](ctx, c, employeesPath, url.Values{})
	if err != nil {
		return nil, err
	}

	employees := make([]integration.SourceEmployee, 0, len(records))
	for _, r := range records {
		if r.EmpCode == "" {
			continue
		}
		e := integration.SourceEmployee{
			Code:      string(r.EmpCode),
			FirstName: r.FirstName,
			LastName:  r.LastName,
			FullName:  r.FullName,
		}
		if r.Department != nil {
			e.Department = r.Department.Name
		}
		if len(r.Area) > 0 {
			e.Area = r.Area[0].Name
		}
		employees = append(employees, e)
	}
	return employees, nil
}

// FetchTransactions returns the punches recorded in [start, end].
// Unparseable punch times yield a zero timestamp so aggregation drops them.
func (c *Client) FetchTransactions(ctx context.Context, start, end time.Time) ([]attendance.Punch, error) {
	params := url.Values{}
	params.Set("start_time", start.In(c.loc).Format(attendance.DateTimeLayout))
	params.Set("end_time", end.In(c.loc).Format(attendance.DateTimeLayout))

	records, err := fetchPages[transactionRecord](ctx, c, transactionsPath, params)
	if err != nil {
		return nil, err
	}

	punches := make([]attendance.Punch, 0, len(records))
	for _, r := range records {
		ts, err := time.ParseInLocation(attendance.DateTimeLayout, strings.TrimSpace(r.PunchTime), c.loc)
		if err != nil {
			c.logger.Warn("Unparseable punch time",
				zap.String("transaction_id", string(r.ID)),
				zap.String("punch_time", r.PunchTime))
			ts = time.Time{}
		}
		punches = append(punches, attendance.Punch{
			EmployeeCode:   string(r.EmpCode),
			Timestamp:      ts,
			TransactionRef: string(r.ID),
			Department:     r.Department,
			Area:           r.AreaAlias,
		})
	}
	return punches, nil
}

// fetchPages walks page=1..MaxPages until an empty or short page.
// Only a token failure is returned as an error.
func fetchPages[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	all := make([]T, 0)
	for page := 1; page <= c.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		params.Set("page", strconv.Itoa(page))

		body, err := c.get(ctx, path, params)
		if err != nil {
			if errors.Is(err, integration.ErrSourceAuthFailed) {
				return nil, err
			}
			c.logger.Error("Page fetch failed, keeping pages already read",
				zap.String("path", path), zap.Int("page", page), zap.Error(err))
			break
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			c.logger.Error("Invalid page body", zap.String("path", path), zap.Int("page", page), zap.Error(err))
			break
		}
		if env.Code != 0 {
			c.logger.Error("Source API error", zap.String("path", path), zap.Int("page", page),
				zap.Int("code", env.Code), zap.String("msg", env.Msg))
			break
		}

		var items []T
		if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
			if err := json.Unmarshal(env.Data, &items); err != nil {
				c.logger.Error("Invalid page data", zap.String("path", path), zap.Int("page", page), zap.Error(err))
				break
			}
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
		if len(items) < c.cfg.PageSizeThreshold {
			break
		}
	}
	return all, nil
}

// get performs an authenticated GET. A 401 invalidates the token and the
// request is retried once with a fresh one.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	status, body, err := c.doGet(ctx, path, params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.invalidateToken()
		status, body, err = c.doGet(ctx, path, params)
		if err != nil {
			return nil, err
		}
	}
	if status >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrSourceUnavailable, status)
	}
	return body, nil
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values) (int, []byte, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return 0, nil, err
	}

	endpoint := c.cfg.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("zkbio: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", integration.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("zkbio: failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// getToken returns the cached token or authenticates
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	payload, err := json.Marshal(tokenRequest{Username: c.cfg.Username, Password: c.cfg.Password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+tokenPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("zkbio: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrSourceAuthFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrSourceAuthFailed, err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: HTTP %d", integration.ErrSourceAuthFailed, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.Token == "" {
		return "", fmt.Errorf("%w: response carries no token", integration.ErrSourceAuthFailed)
	}

	c.token = tr.Token
	c.tokenExpiry = c.now().Add(c.cfg.TokenTTL)
	c.logger.Info("Refreshed source token")
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.tokenExpiry = time.Time{}
}
