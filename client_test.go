// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/gjson"
)

// mockLogger captures log messages for assertions
type mockLogger struct {
	mu         sync.Mutex
	debugCalls []map[string]any
	infoCalls  []map[string]any
	warnCalls  []map[string]any
	errorCalls []map[string]any
}

func (m *mockLogger) record(calls *[]map[string]any, msg string, keysAndValues []any) {
	call := map[string]any{"msg": msg}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		call[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	*calls = append(*calls, call)
}

func (m *mockLogger) Debug(_ context.Context, msg string, keysAndValues ...any) {
	m.record(&m.debugCalls, msg, keysAndValues)
}

func (m *mockLogger) Info(_ context.Context, msg string, keysAndValues ...any) {
	m.record(&m.infoCalls, msg, keysAndValues)
}

func (m *mockLogger) Warn(_ context.Context, msg string, keysAndValues ...any) {
	m.record(&m.warnCalls, msg, keysAndValues)
}

func (m *mockLogger) Error(_ context.Context, msg string, keysAndValues ...any) {
	m.record(&m.errorCalls, msg, keysAndValues)
}

func (m *mockLogger) warnings() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.warnCalls...)
}

// fastRetry keeps retry tests quick
var fastRetry = []func(*Client){
	BackoffMinDelay(time.Millisecond),
	BackoffMaxDelay(5 * time.Millisecond),
}

// newTestClient creates a client for the given test server
func newTestClient(t *testing.T, srv *httptest.Server, opts ...func(*Client)) *Client {
	t.Helper()
	opts = append(append([]func(*Client){}, fastRetry...), opts...)
	client, err := NewClient(srv.URL+"/jolokia", opts...)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// TestNewClientValidation tests client configuration validation
func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		opts       []func(*Client)
		wantErrMsg string
	}{
		{name: "empty url", url: "", wantErrMsg: "agent URL cannot be empty"},
		{name: "whitespace url", url: "   ", wantErrMsg: "agent URL cannot be empty"},
		{name: "unsupported scheme", url: "ftp://host/jolokia", wantErrMsg: "invalid agent URL scheme"},
		{name: "missing scheme", url: "localhost:8778/jolokia", wantErrMsg: "invalid agent URL scheme"},
		{name: "missing host", url: "http:///jolokia", wantErrMsg: "agent URL must include a host"},
		{
			name:       "zero operation timeout",
			url:        "http://localhost:8778/jolokia",
			opts:       []func(*Client){OperationTimeout(0)},
			wantErrMsg: "operation timeout must be positive",
		},
		{
			name:       "negative retries",
			url:        "http://localhost:8778/jolokia",
			opts:       []func(*Client){MaxRetries(-1)},
			wantErrMsg: "max retries must be non-negative",
		},
		{
			name:       "zero backoff min",
			url:        "http://localhost:8778/jolokia",
			opts:       []func(*Client){BackoffMinDelay(0)},
			wantErrMsg: "backoff min delay must be positive",
		},
		{
			name:       "backoff max below min",
			url:        "http://localhost:8778/jolokia",
			opts:       []func(*Client){BackoffMinDelay(time.Second), BackoffMaxDelay(time.Second)},
			wantErrMsg: "must be greater than min delay",
		},
		{
			name:       "backoff factor below one",
			url:        "http://localhost:8778/jolokia",
			opts:       []func(*Client){BackoffDelayFactor(0.5)},
			wantErrMsg: "backoff delay factor must be >= 1.0",
		},
		{name: "valid http", url: "http://localhost:8778/jolokia"},
		{name: "valid https", url: "https://jvm.example.com/jolokia", opts: []func(*Client){MaxRetries(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.url, tt.opts...)
			if tt.wantErrMsg == "" {
				if err != nil {
					t.Fatalf("NewClient() unexpected error: %v", err)
				}
				_ = client.Close()
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErrMsg) {
				t.Errorf("NewClient() error = %v, want containing %q", err, tt.wantErrMsg)
			}
		})
	}
}

// TestTLSPathRedaction tests that TLS path errors don't leak full paths
func TestTLSPathRedaction(t *testing.T) {
	tests := []struct {
		name              string
		opts              []func(*Client)
		wantErrContains   string
		wantErrNotContain string
	}{
		{
			name:              "TLS cert path redacted",
			opts:              []func(*Client){TLSCert("/secret/path/to/admin-cert.pem"), TLSKey("/secret/path/to/admin-key.pem")},
			wantErrContains:   "admin-cert.pem",
			wantErrNotContain: "/secret/path",
		},
		{
			name:              "TLS CA path redacted",
			opts:              []func(*Client){TLSCA("/nonexistent/ssl/certs/jolokia-ca-bundle.crt")},
			wantErrContains:   "jolokia-ca-bundle.crt",
			wantErrNotContain: "/nonexistent/ssl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient("https://jvm.example.com/jolokia", tt.opts...)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.wantErrContains) {
				t.Errorf("error should contain %q, got: %q", tt.wantErrContains, err.Error())
			}
			if strings.Contains(err.Error(), tt.wantErrNotContain) {
				t.Errorf("error should NOT contain %q (path disclosure), got: %q", tt.wantErrNotContain, err.Error())
			}
		})
	}
}

func TestHasCredentials(t *testing.T) {
	tests := []struct {
		name   string
		client *Client
		want   bool
	}{
		{name: "none", client: &Client{}, want: false},
		{name: "username", client: &Client{username: "jolokia"}, want: true},
		{name: "password", client: &Client{password: "secret"}, want: true},
		{name: "client certificate", client: &Client{tlsCert: "cert.pem"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.client.HasCredentials(); got != tt.want {
				t.Errorf("HasCredentials() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	client := &Client{
		BackoffMinDelay:    1 * time.Second,
		BackoffMaxDelay:    60 * time.Second,
		BackoffDelayFactor: 2.0,
		logger:             &NoOpLogger{},
	}

	tests := []struct {
		attempt int
		wantMin time.Duration
		wantMax time.Duration
	}{
		{attempt: 0, wantMin: 1 * time.Second, wantMax: 1100 * time.Millisecond},
		{attempt: 1, wantMin: 2 * time.Second, wantMax: 2200 * time.Millisecond},
		{attempt: 2, wantMin: 4 * time.Second, wantMax: 4400 * time.Millisecond},
		{attempt: 10, wantMin: 60 * time.Second, wantMax: 66 * time.Second},
		{attempt: 1000, wantMin: 60 * time.Second, wantMax: 66 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			delay := client.Backoff(tt.attempt)
			if delay < tt.wantMin || delay > tt.wantMax {
				t.Errorf("Backoff(%d) = %v, want between %v and %v", tt.attempt, delay, tt.wantMin, tt.wantMax)
			}
		})
	}
}

// TestBackoffJitter tests that backoff includes random jitter
func TestBackoffJitter(t *testing.T) {
	client := &Client{
		BackoffMinDelay:    1 * time.Second,
		BackoffMaxDelay:    60 * time.Second,
		BackoffDelayFactor: 2.0,
		logger:             &NoOpLogger{},
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		delays[client.Backoff(0)] = true
	}
	if len(delays) < 10 {
		t.Errorf("Backoff() should include jitter: got %d unique values out of 100 attempts", len(delays))
	}
}

func TestCalculateTotalTimeout(t *testing.T) {
	client := &Client{
		OperationTimeout:   10 * time.Second,
		MaxRetries:         2,
		BackoffMinDelay:    1 * time.Second,
		BackoffMaxDelay:    60 * time.Second,
		BackoffDelayFactor: 2.0,
		logger:             &NoOpLogger{},
	}

	// 10s + (1s + 2s + 4s) + jitter up to 10%
	got := client.calculateTotalTimeout()
	if got < 17*time.Second || got > 17*time.Second+700*time.Millisecond {
		t.Errorf("calculateTotalTimeout() = %v, want ~17s", got)
	}
}

func TestCreateAttemptContext(t *testing.T) {
	client := &Client{OperationTimeout: time.Minute, logger: &NoOpLogger{}}

	t.Run("request timeout wins", func(t *testing.T) {
		parent, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		ctx, attemptCancel := client.createAttemptContext(parent, Req{Timeout: 2 * time.Second}, true)
		defer attemptCancel()
		deadline, _ := ctx.Deadline()
		if time.Until(deadline) > 3*time.Second {
			t.Errorf("deadline %v too far, request timeout not applied", time.Until(deadline))
		}
	})

	t.Run("context deadline kept", func(t *testing.T) {
		parent, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctx, attemptCancel := client.createAttemptContext(parent, Req{}, true)
		defer attemptCancel()
		deadline, _ := ctx.Deadline()
		if time.Until(deadline) > 6*time.Second {
			t.Errorf("deadline %v, parent deadline not kept", time.Until(deadline))
		}
	})

	t.Run("operation timeout fallback", func(t *testing.T) {
		ctx, attemptCancel := client.createAttemptContext(context.Background(), Req{}, false)
		defer attemptCancel()
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) < 50*time.Second {
			t.Errorf("deadline %v, want ~1m", time.Until(deadline))
		}
	})

	t.Run("retry budget does not replace operation timeout", func(t *testing.T) {
		budget, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		ctx, attemptCancel := client.createAttemptContext(budget, Req{}, false)
		defer attemptCancel()
		deadline, _ := ctx.Deadline()
		if until := time.Until(deadline); until > 61*time.Second || until < 50*time.Second {
			t.Errorf("deadline %v, want ~1m", until)
		}
	})

	t.Run("short timeout warns", func(t *testing.T) {
		mock := &mockLogger{}
		c := &Client{OperationTimeout: time.Minute, logger: mock}
		_, attemptCancel := c.createAttemptContext(context.Background(), Req{Timeout: time.Millisecond}, false)
		attemptCancel()
		if len(mock.warnings()) != 1 {
			t.Errorf("expected 1 warning, got %d", len(mock.warnings()))
		}
	})
}

func TestClientRequestPost(t *testing.T) {
	var (
		gotBody   string
		gotHeader http.Header
		gotUser   string
		gotPass   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/jolokia" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotHeader = r.Header.Clone()
		gotUser, gotPass, _ = r.BasicAuth()
		_, _ = io.WriteString(w, `[{"status":200,"value":{"used":123},"timestamp":1700000000}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv,
		Username("jolokia"),
		Password("secret"),
		DefaultConfig(map[string]any{"maxDepth": 5, "ignoreErrors": true}))

	req := Request{Type: TypeRead, MBean: "java.lang:type=Memory", Attribute: "HeapMemoryUsage"}
	res, err := client.Request(context.Background(), req, NewReq(MaxDepth(2), Header("X-Trace", "abc")))
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}

	batch, ok := res.(BatchResult)
	if !ok {
		t.Fatalf("Request() result = %T, want BatchResult", res)
	}
	if len(batch.Responses) != 1 || batch.Responses[0].Value.Get("used").Int() != 123 {
		t.Errorf("unexpected responses: %+v", batch.Responses)
	}

	body := gjson.Parse(gotBody)
	if !body.IsArray() || len(body.Array()) != 1 {
		t.Fatalf("body should be a one element array: %s", gotBody)
	}
	entry := body.Array()[0]
	if entry.Get("type").String() != "read" || entry.Get("attribute").String() != "HeapMemoryUsage" {
		t.Errorf("unexpected entry: %s", entry.Raw)
	}
	if entry.Get("config.maxDepth").Int() != 2 {
		t.Errorf("request config should override default maxDepth: %s", entry.Raw)
	}
	if !entry.Get("config.ignoreErrors").Bool() {
		t.Errorf("default config not merged: %s", entry.Raw)
	}

	if gotUser != "jolokia" || gotPass != "secret" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if gotHeader.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", gotHeader.Get("Content-Type"))
	}
	if gotHeader.Get(RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
	if gotHeader.Get("X-Trace") != "abc" {
		t.Errorf("X-Trace = %q", gotHeader.Get("X-Trace"))
	}
}

func TestClientRequestGet(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"status":200,"value":1024}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	req := Request{Type: TypeRead, MBean: "java.lang:type=Memory", Attribute: "HeapMemoryUsage", Path: "used"}
	res, err := client.Request(context.Background(), req, NewReq(WithMethod(MethodGet), MaxDepth(1)))
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}

	if gotPath != "/jolokia/read/java.lang:type=Memory/HeapMemoryUsage/used" {
		t.Errorf("path = %s", gotPath)
	}
	if gotQuery != "maxDepth=1" {
		t.Errorf("query = %s", gotQuery)
	}
	if v := res.(BatchResult).Responses[0].Value.Int(); v != 1024 {
		t.Errorf("value = %d, want 1024", v)
	}
}

func TestClientBatchValidation(t *testing.T) {
	client, err := NewClient("http://localhost:8778/jolokia")
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	ctx := context.Background()
	version := Request{Type: TypeVersion}

	tests := []struct {
		name    string
		reqs    []Request
		opts    Req
		wantErr string
	}{
		{name: "empty batch", reqs: nil, wantErr: "requests cannot be empty"},
		{name: "invalid method", reqs: []Request{version}, opts: Req{Method: "put"}, wantErr: "invalid method"},
		{name: "get batch", reqs: []Request{version, version}, opts: Req{Method: MethodGet}, wantErr: "GET supports a single request"},
		{name: "get multi attribute", reqs: []Request{{Type: TypeRead, MBean: "a:b=c", Attributes: []string{"X", "Y"}}}, opts: Req{Method: MethodGet}, wantErr: "multiple attributes require POST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Batch(ctx, tt.reqs, tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Batch() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := client.Request(canceled, version, Req{}); !errors.Is(err, context.Canceled) {
			t.Errorf("Request() error = %v, want context.Canceled", err)
		}
	})
}

func TestClientBatchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if n := len(gjson.ParseBytes(data).Array()); n != 3 {
			t.Errorf("batch size = %d, want 3", n)
		}
		_, _ = io.WriteString(w, `[
			{"status":200,"value":"first"},
			{"status":404,"error":"javax.management.InstanceNotFoundException : x:type=Missing","error_type":"javax.management.InstanceNotFoundException"},
			{"status":200,"value":"third"}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	res, err := client.Batch(context.Background(), []Request{
		{Type: TypeVersion},
		{Type: TypeRead, MBean: "x:type=Missing"},
		{Type: TypeSearch, MBean: "*:*"},
	}, Req{})
	if err != nil {
		t.Fatalf("Batch() error: %v", err)
	}

	rs := res.(BatchResult).Responses
	if len(rs) != 3 {
		t.Fatalf("len = %d, want 3", len(rs))
	}
	if rs[0].Value.String() != "first" || rs[2].Value.String() != "third" {
		t.Errorf("responses out of order: %+v", rs)
	}
	if !rs[1].IsError() {
		t.Error("second entry should be an error")
	}
}

func TestClientCallbackMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"status":200,"value":1},{"status":500,"error":"boom"},{"status":200,"value":3}]`)
	}))
	defer srv.Close()

	reqs := []Request{{Type: TypeVersion}, {Type: TypeVersion}, {Type: TypeVersion}}

	t.Run("single handlers", func(t *testing.T) {
		client := newTestClient(t, srv)
		var successes, failures []int
		res, err := client.Batch(context.Background(), reqs, NewReq(
			OnResponse(func(r Response, i int) { successes = append(successes, i) }),
			OnError(func(r Response, i int) {
				if r.Error != "boom" {
					t.Errorf("error = %q", r.Error)
				}
				failures = append(failures, i)
			}),
		))
		if err != nil {
			t.Fatalf("Batch() error: %v", err)
		}
		if _, ok := res.(NoResult); !ok {
			t.Errorf("result = %T, want NoResult", res)
		}
		if fmt.Sprint(successes) != "[0 2]" || fmt.Sprint(failures) != "[1]" {
			t.Errorf("successes = %v, failures = %v", successes, failures)
		}
	})

	t.Run("per position handlers and unhandled error", func(t *testing.T) {
		mock := &mockLogger{}
		client := newTestClient(t, srv, WithLogger(mock))
		var got []string
		_, err := client.Batch(context.Background(), reqs, NewReq(OnResponses(
			func(r Response, i int) { got = append(got, "a") },
			nil,
			func(r Response, i int) { got = append(got, "c") },
		)))
		if err != nil {
			t.Fatalf("Batch() error: %v", err)
		}
		if strings.Join(got, "") != "ac" {
			t.Errorf("handlers called = %v", got)
		}
		warnings := mock.warnings()
		if len(warnings) != 1 || warnings[0]["index"] != 1 {
			t.Errorf("expected one warning for index 1, got %v", warnings)
		}
	})
}

func TestClientRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[{"status":200,"value":"ok"}]`)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	client := newTestClient(t, srv, WithMetrics(reg))
	res, err := client.Request(context.Background(), Request{Type: TypeVersion}, Req{})
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if res.(BatchResult).Responses[0].Value.String() != "ok" {
		t.Errorf("unexpected result: %+v", res)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() == "jolokia_client_retries_total" {
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 2 {
				t.Errorf("retries_total = %v, want 2", got)
			}
		}
	}
}

// counterValue returns the value of the counter name with the given labels
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestClientMetricsEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"status":200,"value":1},
			{"status":404,"error_type":"javax.management.InstanceNotFoundException","error":"missing"},
			{"status":200,"value":"2.1.0"}
		]`)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	client := newTestClient(t, srv, WithMetrics(reg))
	_, err := client.Batch(context.Background(), []Request{
		{Type: TypeRead, MBean: "a:b=c", Attribute: "X"},
		{Type: TypeRead, MBean: "a:b=missing", Attribute: "X"},
		{Type: TypeVersion},
	}, Req{})
	if err != nil {
		t.Fatalf("Batch() error: %v", err)
	}

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{name: "jolokia_client_requests_total", labels: map[string]string{"method": "post", "outcome": outcomeSuccess}, want: 1},
		{name: "jolokia_client_requests_total", labels: map[string]string{"method": "post", "outcome": outcomeError}, want: 0},
		{name: "jolokia_client_entries_total", labels: map[string]string{"type": "read", "outcome": outcomeSuccess}, want: 1},
		{name: "jolokia_client_entries_total", labels: map[string]string{"type": "read", "outcome": outcomeError}, want: 1},
		{name: "jolokia_client_entries_total", labels: map[string]string{"type": "version", "outcome": outcomeSuccess}, want: 1},
	}
	for _, tt := range tests {
		if got := counterValue(t, reg, tt.name, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}
}

func TestClientRetryExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv, MaxRetries(2))
	_, err := client.Request(context.Background(), Request{Type: TypeVersion}, Req{})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("Request() error = %v, want *HTTPError 502", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClientPermanentHTTPError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, strings.Repeat("x", MaxErrorBodyLength+10))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.Request(context.Background(), Request{Type: TypeVersion}, Req{})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Request() error = %v, want *HTTPError 401", err)
	}
	if !strings.HasSuffix(httpErr.Body, "...") || len(httpErr.Body) != MaxErrorBodyLength+3 {
		t.Errorf("body not truncated: %d bytes", len(httpErr.Body))
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", calls.Load())
	}
}

func TestClientInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>not json</html>`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.Request(context.Background(), Request{Type: TypeVersion}, Req{})
	if err == nil || !strings.Contains(err.Error(), "invalid JSON response") {
		t.Errorf("Request() error = %v, want invalid JSON", err)
	}
}

func TestClientRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv, MaxRetries(0))
	start := time.Now()
	_, err := client.Request(context.Background(), Request{Type: TypeVersion}, NewReq(Timeout(100*time.Millisecond)))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("request took %v, timeout not applied", elapsed)
	}
}

func TestClientOperationTimeoutPerAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv,
		OperationTimeout(200*time.Millisecond),
		MaxRetries(0),
		BackoffMinDelay(time.Second),
		BackoffMaxDelay(2*time.Second))
	start := time.Now()
	_, err := client.Request(context.Background(), Request{Type: TypeVersion}, Req{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 700*time.Millisecond {
		t.Errorf("request took %v, want about 200ms", elapsed)
	}
}

func TestClientRetryAfterAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			<-r.Context().Done()
			return
		}
		_, _ = io.WriteString(w, `[{"status":200,"value":{"agent":"2.1.0"}}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv,
		OperationTimeout(200*time.Millisecond),
		MaxRetries(1),
		BackoffMinDelay(100*time.Millisecond),
		BackoffMaxDelay(time.Second))
	res, err := client.Request(context.Background(), Request{Type: TypeVersion}, Req{})
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("agent saw %d calls, want 2", got)
	}
	batch, ok := res.(BatchResult)
	if !ok || batch.Responses[0].Value.Get("agent").String() != "2.1.0" {
		t.Errorf("unexpected result %#v", res)
	}
}

func TestClientPing(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			if gjson.GetBytes(data, "0.type").String() != "version" {
				t.Errorf("ping should send a version request: %s", data)
			}
			_, _ = io.WriteString(w, `[{"status":200,"value":{"agent":"2.1.0","protocol":"8.0"}}]`)
		}))
		defer srv.Close()

		if err := newTestClient(t, srv).Ping(context.Background()); err != nil {
			t.Errorf("Ping() error: %v", err)
		}
	})

	t.Run("agent error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `[{"status":403,"error":"access denied"}]`)
		}))
		defer srv.Close()

		err := newTestClient(t, srv).Ping(context.Background())
		var jErr *JolokiaError
		if !errors.As(err, &jErr) || jErr.Status != 403 {
			t.Errorf("Ping() error = %v, want *JolokiaError 403", err)
		}
	})
}

func TestClientTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"status":200,"value":"secure"}]`)
	}))
	defer srv.Close()

	t.Run("verification fails for self-signed", func(t *testing.T) {
		client := newTestClient(t, srv, MaxRetries(0))
		if _, err := client.Request(context.Background(), Request{Type: TypeVersion}, Req{}); err == nil {
			t.Error("expected certificate error")
		}
	})

	t.Run("verification disabled", func(t *testing.T) {
		client := newTestClient(t, srv, VerifyCertificate(false))
		if _, err := client.Request(context.Background(), Request{Type: TypeVersion}, Req{}); err != nil {
			t.Errorf("Request() error: %v", err)
		}
	})

	t.Run("custom http client", func(t *testing.T) {
		client := newTestClient(t, srv, WithHTTPClient(srv.Client()))
		if _, err := client.Request(context.Background(), Request{Type: TypeVersion}, Req{}); err != nil {
			t.Errorf("Request() error: %v", err)
		}
	})
}

func TestCloseMultipleTimes(t *testing.T) {
	client, err := NewClient("http://localhost:8778/jolokia")
	if err != nil {
		t.Fatal(err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("first Close() error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	_, err = client.Request(context.Background(), Request{Type: TypeVersion}, Req{})
	if err == nil || !strings.Contains(err.Error(), "client closed") {
		t.Errorf("Request() after Close error = %v, want client closed", err)
	}
}

// TestSecurity_CredentialProtection tests that credentials never reach the logs
func TestSecurity_CredentialProtection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"status":200,"value":null}]`)
	}))
	defer srv.Close()

	buf := captureLog(t)
	client := newTestClient(t, srv,
		Username("jolokia"),
		Password("TopSecret42"),
		WithLogger(NewDefaultLogger(LogLevelDebug)))

	req := Request{Type: TypeWrite, MBean: "app:type=Db", Attribute: "Credentials", Value: map[string]any{"password": "TopSecret42"}}
	if _, err := client.Request(context.Background(), req, Req{}); err != nil {
		t.Fatalf("Request() error: %v", err)
	}

	if strings.Contains(buf.String(), "TopSecret42") {
		t.Errorf("password leaked into logs:\n%s", buf.String())
	}
}
