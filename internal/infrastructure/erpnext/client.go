// Package erpnext is the client of the ERP attendance and employee resources.
// Every call authenticates with an API key pair; create calls are classified
// into integration.PushResult values instead of returning Go errors.
package erpnext

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

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
	"go.uber.org/zap"
)

const (
	// maxResponseSize bounds every response body read (10MB)
	maxResponseSize = 10 * 1024 * 1024

	attendancePath = "/api/resource/Attendance"
	employeePath   = "/api/resource/Employee"
)

// Config holds the ERP settings
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// Validate fills defaults and reports a missing address or key pair
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" || c.APIKey == "" || c.APISecret == "" {
		return integration.ErrERPNotConfigured
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// Client implements integration.AttendanceLedger
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates an ERP client
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("erpnext"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateAttendance submits one attendance document
func (c *Client) CreateAttendance(ctx context.Context, payload integration.AttendancePayload) integration.PushResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return integration.PushResult{Kind: integration.PushTransientFailure, Err: err}
	}

	status, respBody, err := c.do(ctx, http.MethodPost, attendancePath, nil, body)
	res := Classify(status, respBody, err)

	fields := []zap.Field{
		zap.String("employee", payload.Employee),
		zap.String("attendance_date", payload.AttendanceDate),
		zap.Int("status_code", status),
		zap.String("result", res.Kind.String()),
	}
	switch res.Kind {
	case integration.PushCreatedWithID, integration.PushDuplicateWithID:
		c.logger.Debug("ERP attendance create", append(fields, zap.String("erp_ref", res.ERPRef))...)
	case integration.PushCreatedUnknownID, integration.PushDuplicateUnresolved:
		c.logger.Info("ERP attendance create without record name",
			append(fields, zap.String("body", excerpt(respBody)))...)
	default:
		c.logger.Warn("ERP attendance create failed", append(fields, zap.Error(res.Err))...)
	}
	return res
}

// FindAttendance returns the name of the attendance of employee on date, or
// "" when the ERP has none
func (c *Client) FindAttendance(ctx context.Context, employee string, date time.Time) (string, error) {
	filters := [][]string{
		{"employee", "=", employee},
		{"attendance_date", "=", date.Format(attendance.DateLayout)},
	}
	return c.findFirst(ctx, attendancePath, filters, []string{"name", "employee", "attendance_date"})
}

// FindEmployee returns the ERP employee name registered for code
func (c *Client) FindEmployee(ctx context.Context, code string) (string, error) {
	filters := [][]string{{"employee", "=", code}}
	name, err := c.findFirst(ctx, employeePath, filters, []string{"name", "employee"})
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", integration.ErrEmployeeNotMapped
	}
	return name, nil
}

// Ping checks the ERP is reachable and accepts the key pair
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.findFirst(ctx, employeePath, [][]string{}, []string{"name"})
	return err
}

func (c *Client) findFirst(ctx context.Context, path string, filters [][]string, fields []string) (string, error) {
	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return "", err
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("filters", string(filtersJSON))
	params.Set("fields", string(fieldsJSON))
	params.Set("limit", "1")

	status, body, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrERPUnavailable, err)
	}
	switch {
	case status == http.StatusUnauthorized:
		return "", fmt.Errorf("%w: HTTP %d", integration.ErrERPAuthFailed, status)
	case status >= 400:
		return "", fmt.Errorf("%w: HTTP %d", integration.ErrERPUnavailable, status)
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrERPInvalidResponse, err)
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return resp.Data[0].Name, nil
}

// do sends one request. A non-nil error means the round trip itself failed;
// HTTP error statuses are returned for the caller to interpret.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload []byte) (int, []byte, error) {
	endpoint := c.cfg.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("erpnext: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "token "+c.cfg.APIKey+":"+c.cfg.APISecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("erpnext: failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
