// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokia

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default client configuration values
const (
	DefaultMaxRetries         = 3
	DefaultBackoffMinDelay    = 1 * time.Second
	DefaultBackoffMaxDelay    = 60 * time.Second
	DefaultBackoffDelayFactor = 2
	DefaultOperationTimeout   = 15 * time.Second
	DefaultVerifyCertificate  = true
	DefaultPrettyPrintLogs    = false
)

// Limits for response handling and logging
const (
	MaxResponseSize       = 64 * 1024 * 1024 // 64MB upper bound for a single response body
	MaxErrorBodyLength    = 512              // Bytes of a non-200 body kept in HTTPError
	MaxJSONSizeForLogging = 1 * 1024 * 1024  // 1MB limit to prevent ReDoS attacks
	MaxSensitiveFields    = 1000             // Max redaction operations to prevent DoS
)

// Logging message constants
const (
	JSONTooLargeMessage     = "[JSON TOO LARGE FOR LOGGING]"
	JSONTooManySensitiveMsg = "[JSON CONTAINS TOO MANY SENSITIVE FIELDS]"
)

// RequestIDHeader carries the per-call correlation id
const RequestIDHeader = "X-Request-ID"

// sensitiveFields are redacted from JSON written to debug logs
var sensitiveFields = []string{"password", "secret", "key", "token", "auth", "credential"}

// defaultRedactionPatterns contains regex patterns for redacting sensitive data in logs
var defaultRedactionPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(sensitiveFields))
	for i, field := range sensitiveFields {
		patterns[i] = regexp.MustCompile(`"` + field + `"\s*:\s*"[^"]*"`)
	}
	return patterns
}()

// Transport sends Jolokia requests to an agent.
//
// Client is the HTTP implementation. Result is BatchResult when the agent
// answered, or NoResult when no batch was produced (callback mode).
type Transport interface {
	Request(ctx context.Context, req Request, opts Req) (Result, error)
}

// Client is a Jolokia HTTP client bound to a single agent URL
type Client struct {
	// HTTP client used for all calls
	httpClient *http.Client

	// closed is set by Close; a closed client rejects all calls
	closed bool

	// RWMutex to synchronize access to mutable state
	mu sync.RWMutex

	// URL is the agent endpoint, e.g. http://localhost:8778/jolokia
	URL string

	// Basic authentication
	username string // unexported for security
	password string // unexported for security

	// TLS configuration
	tlsCert string
	tlsKey  string
	tlsCA   string

	VerifyCertificate bool

	// Timeout configuration
	OperationTimeout time.Duration

	// Retry configuration
	MaxRetries         int
	BackoffMinDelay    time.Duration
	BackoffMaxDelay    time.Duration
	BackoffDelayFactor float64

	// Processing parameters applied to every request
	defaultConfig map[string]any

	// Logging configuration
	logger            Logger
	prettyPrintLogs   bool
	redactionPatterns []*regexp.Regexp

	metrics *metrics
}

// NewClient creates a new Jolokia client for the agent at agentURL
//
// No request is sent when the client is created; use Ping() to verify that
// the agent is reachable.
//
// Example:
//
//	client, err := jolokia.NewClient(
//	    "http://localhost:8778/jolokia",
//	    jolokia.Username("jolokia"),
//	    jolokia.Password("secret"),
//	    jolokia.MaxRetries(5),
//	)
//	if err != nil {
//	    log.Fatal(err)  // Configuration error
//	}
//	defer client.Close()
//
// Returns a configured Client or an error if configuration validation fails.
func NewClient(agentURL string, opts ...func(*Client)) (*Client, error) {
	client := &Client{
		URL:                agentURL,
		VerifyCertificate:  DefaultVerifyCertificate,
		OperationTimeout:   DefaultOperationTimeout,
		MaxRetries:         DefaultMaxRetries,
		BackoffMinDelay:    DefaultBackoffMinDelay,
		BackoffMaxDelay:    DefaultBackoffMaxDelay,
		BackoffDelayFactor: DefaultBackoffDelayFactor,
		logger:             &NoOpLogger{},
		prettyPrintLogs:    DefaultPrettyPrintLogs,
		redactionPatterns:  defaultRedactionPatterns,
	}

	for _, opt := range opts {
		opt(client)
	}

	if err := client.validateConfig(); err != nil {
		return nil, err
	}

	if client.httpClient == nil {
		hc, err := client.createHTTPClient()
		if err != nil {
			return nil, err
		}
		client.httpClient = hc
	}

	client.logger.Info(context.Background(), "Jolokia client created",
		"url", client.URL,
		"credentials", client.HasCredentials())

	return client, nil
}

// Logger returns the logger configured for the client
func (c *Client) Logger() Logger {
	return c.logger
}

// Close releases idle connections (terminal operation).
//
// The client cannot be used after Close; subsequent calls return an error.
// Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()

	c.logger.Info(context.Background(), "Jolokia client closed",
		"url", c.URL)

	return nil
}

// HasCredentials returns true if credentials are configured
//
// This method only indicates if credentials exist without exposing
// the actual values.
func (c *Client) HasCredentials() bool {
	return c.username != "" || c.password != "" || c.tlsCert != ""
}

// Ping verifies connectivity by performing a version request
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.Request(ctx, Request{Type: TypeVersion}, Req{})
	if err != nil {
		return err
	}
	if batch, ok := res.(BatchResult); ok && len(batch.Responses) > 0 {
		return batch.Responses[0].Err()
	}
	return nil
}

// Request sends a single request. See Batch.
func (c *Client) Request(ctx context.Context, req Request, opts Req) (Result, error) {
	return c.Batch(ctx, []Request{req}, opts)
}

// Batch sends several requests in one HTTP call
//
// With MethodPost (default) the requests are sent as a JSON array; MethodGet
// accepts exactly one request. Transient HTTP failures are retried with
// exponential backoff. Processing parameters are merged from the client
// defaults, opts.Config and Request.Config (later wins).
//
// In callback mode (any handler set on opts) each entry is passed to its
// handler and NoResult is returned. Otherwise the entries are returned as a
// BatchResult in request order.
//
// Example:
//
//	res, err := client.Batch(ctx, []jolokia.Request{
//	    {Type: jolokia.TypeRead, MBean: "java.lang:type=Memory", Attribute: "HeapMemoryUsage"},
//	    {Type: jolokia.TypeVersion},
//	}, jolokia.Req{})
func (c *Client) Batch(ctx context.Context, reqs []Request, opts Req) (Result, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("batch: requests cannot be empty")
	}

	method := opts.Method
	if method == "" {
		method = MethodPost
	}
	if err := ValidateMethod(method); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if method == MethodGet && len(reqs) > 1 {
		return nil, fmt.Errorf("batch: GET supports a single request, got %d", len(reqs))
	}

	if err := checkContextCancellation(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("batch: client closed")
	}

	call, err := c.buildCall(method, reqs, opts)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	// The retry budget below always sets a deadline, so record the caller's first
	_, callerDeadline := ctx.Deadline()
	totalTimeout := c.calculateTotalTimeout()
	ctx, parentCancel := context.WithTimeout(ctx, totalTimeout)
	defer parentCancel()

	c.logger.Debug(ctx, "Jolokia request",
		"method", method,
		"url", call.url,
		"requests", len(reqs),
		"body", c.prepareJSONForLogging(string(call.body)))

	var (
		responses []Response
		lastErr   error
	)

	//nolint:dupl // retry loop mirrors the backoff handling used elsewhere
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if err := checkContextCancellation(ctx); err != nil {
			c.logger.Debug(ctx, "Jolokia request canceled",
				"attempt", attempt,
				"error", err.Error())
			return nil, fmt.Errorf("batch: %w", err)
		}

		attemptCtx, attemptCancel := c.createAttemptContext(ctx, opts, callerDeadline)
		started := time.Now()
		resp, err := c.do(attemptCtx, call)
		attemptCancel()

		if err == nil {
			c.metrics.observe(method, outcomeSuccess, time.Since(started))
			responses = resp
			lastErr = nil
			break
		}
		c.metrics.observe(method, outcomeTransport, time.Since(started))
		lastErr = err

		if !c.checkTransientError(err) || attempt >= c.MaxRetries {
			break
		}

		backoff := c.Backoff(attempt)
		c.metrics.retry()
		c.logger.Warn(ctx, "transient error, retrying",
			"attempt", attempt+1,
			"max_retries", c.MaxRetries,
			"backoff", backoff,
			"error", err.Error())

		select {
		case <-time.After(backoff):
			continue
		case <-ctx.Done():
			return nil, fmt.Errorf("batch: context canceled during backoff: %w", ctx.Err())
		}
	}

	if lastErr != nil {
		c.logger.Error(ctx, "Jolokia request failed",
			"url", call.url,
			"error", lastErr.Error())
		return nil, fmt.Errorf("batch: request failed: %w", lastErr)
	}

	for i, resp := range responses {
		reqType := RequestType("unknown")
		if i < len(reqs) {
			reqType = reqs[i].Type
		}
		if !resp.IsError() {
			c.metrics.observeEntry(reqType, outcomeSuccess)
			continue
		}
		c.metrics.observeEntry(reqType, outcomeError)
		c.logger.Debug(ctx, "Jolokia error entry",
			"index", i,
			"status", resp.Status,
			"error_type", resp.ErrorType,
			"error", resp.Error)
	}

	if opts.callbackMode() {
		c.dispatch(ctx, responses, opts)
		return NoResult{}, nil
	}

	return BatchResult{Responses: responses}, nil
}

// call is a fully prepared HTTP call, reusable across retry attempts
type call struct {
	method  Method
	url     string
	body    []byte
	headers map[string]string
}

// buildCall renders the requests for the chosen method
func (c *Client) buildCall(method Method, reqs []Request, opts Req) (call, error) {
	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	if method == MethodGet {
		req := reqs[0]
		path, err := req.URLPath()
		if err != nil {
			return call{}, err
		}
		target := strings.TrimRight(c.URL, "/") + "/" + path
		config := mergeConfig(c.defaultConfig, opts.Config, req.Config)
		if len(config) > 0 {
			query := url.Values{}
			for k, v := range config {
				query.Set(k, fmt.Sprint(v))
			}
			target += "?" + query.Encode()
		}
		return call{method: method, url: target, headers: headers}, nil
	}

	batch := Body{str: "[]"}
	for i, req := range reqs {
		req.Config = mergeConfig(c.defaultConfig, opts.Config, req.Config)
		entry, err := req.JSON()
		if err != nil {
			return call{}, fmt.Errorf("request %d: %w", i, err)
		}
		batch = batch.SetRaw("-1", entry)
	}
	body, err := batch.Bytes()
	if err != nil {
		return call{}, err
	}
	return call{method: method, url: c.URL, body: body, headers: headers}, nil
}

// mergeConfig merges processing parameter maps, later maps win
func mergeConfig(configs ...map[string]any) map[string]any {
	var merged map[string]any
	for _, cfg := range configs {
		for k, v := range cfg {
			if merged == nil {
				merged = make(map[string]any)
			}
			merged[k] = v
		}
	}
	return merged
}

// do performs a single HTTP round trip and parses the response entries
func (c *Client) do(ctx context.Context, cl call) ([]Response, error) {
	var body io.Reader
	httpMethod := http.MethodGet
	if cl.method == MethodPost {
		httpMethod = http.MethodPost
		body = bytes.NewReader(cl.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, httpMethod, cl.url, body)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	if cl.method == MethodPost {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	requestID := uuid.New().String()
	httpReq.Header.Set(RequestIDHeader, requestID)
	for k, v := range cl.headers {
		httpReq.Header.Set(k, v)
	}
	if c.username != "" || c.password != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request %s: %w", requestID, err)
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Debug(ctx, "closing response body failed",
				"request_id", requestID,
				"error", err.Error())
		}
	}()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response %s: %w", requestID, err)
	}

	c.logger.Debug(ctx, "Jolokia response",
		"request_id", requestID,
		"http_status", httpResp.StatusCode,
		"body", c.prepareJSONForLogging(string(data)))

	if httpResp.StatusCode != http.StatusOK {
		text := string(data)
		if len(text) > MaxErrorBodyLength {
			text = text[:MaxErrorBodyLength] + "..."
		}
		return nil, &HTTPError{StatusCode: httpResp.StatusCode, Body: text}
	}

	responses, err := ParseResponses(data)
	if err != nil {
		return nil, fmt.Errorf("parsing response %s: %w", requestID, err)
	}
	return responses, nil
}

// dispatch invokes the registered handlers for each entry
func (c *Client) dispatch(ctx context.Context, responses []Response, opts Req) {
	for i, resp := range responses {
		if resp.IsError() {
			if handler := opts.errorHandler(i); handler != nil {
				handler(resp, i)
				continue
			}
			c.logger.Warn(ctx, "Jolokia error without error handler",
				"index", i,
				"status", resp.Status,
				"error", resp.Error)
			continue
		}
		if handler := opts.successHandler(i); handler != nil {
			handler(resp, i)
		}
	}
}

// Backoff calculates the backoff delay for retry attempt using exponential backoff with jitter
//
// The formula is: delay = min(minDelay * (factor ^ attempt), maxDelay) + jitter
// where jitter is a cryptographically secure random value in [0, delay * 0.1].
// If crypto/rand fails, timestamp-based jitter is used instead.
func (c *Client) Backoff(attempt int) time.Duration {
	delay := float64(c.BackoffMinDelay) * math.Pow(c.BackoffDelayFactor, float64(attempt))

	if math.IsInf(delay, 1) || delay > float64(c.BackoffMaxDelay) {
		delay = float64(c.BackoffMaxDelay)
	}

	jitterMax := int64(delay * 0.1)
	if jitterMax > 0 {
		var jitterBytes [8]byte
		if _, err := rand.Read(jitterBytes[:]); err == nil {
			//nolint:gosec // G115: masked to a positive int64
			jitterVal := int64(binary.BigEndian.Uint64(jitterBytes[:]) & 0x7FFFFFFFFFFFFFFF)
			delay += float64(jitterVal % jitterMax)
		} else {
			timestamp := time.Now().UnixNano()
			delay += float64((timestamp%jitterMax + jitterMax) % jitterMax)

			c.logger.Warn(context.Background(), "crypto/rand failed, using timestamp-based jitter",
				"error", err.Error(),
				"attempt", attempt)
		}
	}

	return time.Duration(delay)
}

// prepareJSONForLogging redacts sensitive data and formats JSON for logging
//
// Oversized input and input with an excessive number of sensitive fields are
// replaced by a placeholder instead of being processed.
func (c *Client) prepareJSONForLogging(jsonStr string) string {
	if len(jsonStr) > MaxJSONSizeForLogging {
		return JSONTooLargeMessage
	}

	sensitiveCount := 0
	for _, field := range sensitiveFields {
		sensitiveCount += strings.Count(jsonStr, `"`+field+`"`)
	}
	if sensitiveCount > MaxSensitiveFields {
		c.logger.Warn(context.Background(), "Too many sensitive fields detected",
			"count", sensitiveCount,
			"max", MaxSensitiveFields)
		return JSONTooManySensitiveMsg
	}

	redacted := c.redactSensitiveData(jsonStr)

	if c.prettyPrintLogs {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(redacted), "", "  "); err == nil {
			return buf.String()
		}
	}

	return redacted
}

// redactSensitiveData replaces sensitive string values in JSON with [REDACTED]
func (c *Client) redactSensitiveData(json string) string {
	result := json
	for i, pattern := range c.redactionPatterns {
		if i >= len(sensitiveFields) {
			break
		}
		result = pattern.ReplaceAllString(result, `"`+sensitiveFields[i]+`":"[REDACTED]"`)
	}
	return result
}

// checkTransientError checks if an error is transient and should be retried
//
// Transient errors include HTTP statuses listed in TransientErrors and
// network timeouts. Context cancellation is never transient.
func (c *Client) checkTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		for _, pattern := range TransientErrors {
			if pattern.StatusCode == httpErr.StatusCode {
				c.logger.Debug(context.Background(), "Error matches transient pattern",
					"status", httpErr.StatusCode)
				return true
			}
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// validateConfig validates client configuration
//
// Validates:
//   - URL is an absolute http(s) URL
//   - Positive timeouts and sane retry parameters
//   - TLS certificate file paths exist (if provided)
func (c *Client) validateConfig() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("agent URL cannot be empty")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid agent URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid agent URL scheme: %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("agent URL must include a host")
	}

	if c.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive, got: %v", c.OperationTimeout)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got: %d", c.MaxRetries)
	}
	if c.BackoffMinDelay <= 0 {
		return fmt.Errorf("backoff min delay must be positive, got: %v", c.BackoffMinDelay)
	}
	if c.BackoffMaxDelay <= c.BackoffMinDelay {
		return fmt.Errorf("backoff max delay (%v) must be greater than min delay (%v)",
			c.BackoffMaxDelay, c.BackoffMinDelay)
	}
	if c.BackoffDelayFactor < 1.0 {
		return fmt.Errorf("backoff delay factor must be >= 1.0, got: %f", c.BackoffDelayFactor)
	}

	if u.Scheme == "https" && !c.VerifyCertificate {
		c.logger.Warn(context.Background(), "TLS certificate verification disabled",
			"url", c.URL,
			"security_risk", "Man-in-the-Middle attacks possible",
			"recommendation", "Use only in testing environments")
	}
	if u.Scheme == "http" && (c.username != "" || c.password != "") {
		c.logger.Warn(context.Background(), "Credentials sent over plain HTTP",
			"url", c.URL,
			"recommendation", "Use https for production use")
	}

	for _, f := range []struct{ kind, path string }{
		{"certificate", c.tlsCert},
		{"key", c.tlsKey},
		{"CA", c.tlsCA},
	} {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); err != nil {
			c.logger.Debug(context.Background(), "TLS file validation failed",
				"kind", f.kind,
				"path", f.path,
				"error", err.Error())
			// Only the file name is returned to prevent path disclosure
			return fmt.Errorf("TLS %s file not found: %s", f.kind, filepath.Base(f.path))
		}
	}
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return fmt.Errorf("TLS certificate and key must be configured together")
	}

	return nil
}

// createHTTPClient builds the HTTP client from the TLS configuration
func (c *Client) createHTTPClient() (*http.Client, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		//nolint:gosec // G402: explicitly requested through VerifyCertificate(false)
		InsecureSkipVerify: !c.VerifyCertificate,
	}

	if c.tlsCA != "" {
		pem, err := os.ReadFile(c.tlsCA)
		if err != nil {
			return nil, fmt.Errorf("reading TLS CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("TLS CA file contains no certificates: %s", filepath.Base(c.tlsCA))
		}
		tlsConfig.RootCAs = pool
	}

	if c.tlsCert != "" {
		cert, err := tls.LoadX509KeyPair(c.tlsCert, c.tlsKey)
		if err != nil {
			return nil, fmt.Errorf("loading TLS key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSClientConfig:     tlsConfig,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}, nil
}

// calculateTotalTimeout calculates the total timeout for all retry attempts
//
// Formula: OperationTimeout + sum(Backoff(0), ..., Backoff(MaxRetries))
func (c *Client) calculateTotalTimeout() time.Duration {
	totalBackoff := time.Duration(0)
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		totalBackoff += c.Backoff(attempt)
	}
	return c.OperationTimeout + totalBackoff
}

// checkContextCancellation checks if context is canceled or deadline exceeded
//
// Returns context.Canceled, context.DeadlineExceeded, or nil.
func checkContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// createAttemptContext creates a new context for a single attempt with timeout
//
// Timeout priority model:
//  1. Request-specific timeout (opts.Timeout > 0) - highest priority
//  2. Caller context deadline (callerDeadline) - medium priority
//  3. Client default timeout (c.OperationTimeout) - fallback
//
// callerDeadline reports whether the caller's context carried a deadline
// before the retry budget was applied; the budget deadline alone never
// replaces OperationTimeout. The caller must call the returned cancel
// function after the attempt.
func (c *Client) createAttemptContext(ctx context.Context, opts Req, callerDeadline bool) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		if opts.Timeout < 100*time.Millisecond {
			c.logger.Warn(ctx, "request timeout is very short (may not complete)",
				"timeout", opts.Timeout.String())
		}
		return context.WithTimeout(ctx, opts.Timeout)
	}

	if callerDeadline {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.OperationTimeout)
}
