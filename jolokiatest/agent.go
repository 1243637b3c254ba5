// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package jolokiatest provides an in-memory Jolokia agent for tests.
//
// The agent speaks the Jolokia HTTP protocol: GET requests in URL form, POST
// requests with a single JSON object or a batch array, and CORS preflight via
// OPTIONS. MBeans are registered as Go values and operations as Go funcs.
//
// Example:
//
//	agent := jolokiatest.NewAgent()
//	agent.Register("java.lang:type=Memory", jolokiatest.NewMBean("Memory").
//	    WithAttribute("HeapMemoryUsage", map[string]int{"used": 1024}))
//	srv := agent.Server(t)
//
//	client, err := jolokia.NewClient(srv.URL + jolokiatest.ContextPath)
package jolokiatest

import (
	"crypto/subtle"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ContextPath is the path prefix the agent is served under by Server
const ContextPath = "/jolokia"

// Default version information reported by the version operation
const (
	DefaultAgentVersion    = "2.1.0"
	DefaultProtocolVersion = "7.3"
)

// MaxRequestSize limits the size of a POST body
const MaxRequestSize = 10 * 1024 * 1024

// RecordedRequest is a request entry processed by the agent
type RecordedRequest struct {
	// HTTPMethod is GET or POST
	HTTPMethod string

	// Header holds the HTTP request headers
	Header http.Header

	// JSON is the request entry in POST form
	JSON string
}

// Get retrieves a field of the recorded request entry
func (r RecordedRequest) Get(path string) gjson.Result {
	return gjson.Get(r.JSON, path)
}

// Agent is an in-memory Jolokia agent implementing http.Handler
type Agent struct {
	mu       sync.RWMutex
	beans    map[string]*MBean
	requests []RecordedRequest

	username        string
	password        string
	agentVersion    string
	protocolVersion string
	logger          *zap.Logger
	now             func() time.Time
}

// NewAgent creates an agent without MBeans
func NewAgent(opts ...func(*Agent)) *Agent {
	a := &Agent{
		beans:           make(map[string]*MBean),
		agentVersion:    DefaultAgentVersion,
		protocolVersion: DefaultProtocolVersion,
		logger:          zap.NewNop(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithCredentials enables HTTP basic authentication
func WithCredentials(username, password string) func(*Agent) {
	return func(a *Agent) {
		a.username = username
		a.password = password
	}
}

// WithVersion sets the agent and protocol versions reported by version
func WithVersion(agent, protocol string) func(*Agent) {
	return func(a *Agent) {
		a.agentVersion = agent
		a.protocolVersion = protocol
	}
}

// WithLogger sets the logger for incoming requests
func WithLogger(logger *zap.Logger) func(*Agent) {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Register adds or replaces an MBean
func (a *Agent) Register(name string, bean *MBean) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.beans[name] = bean
}

// Unregister removes an MBean
func (a *Agent) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.beans, name)
}

// Requests returns the processed request entries in arrival order
func (a *Agent) Requests() []RecordedRequest {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]RecordedRequest(nil), a.requests...)
}

// Reset clears the recorded requests
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = nil
}

// Server starts an httptest server serving the agent under ContextPath.
// The server is closed when the test ends.
func (a *Agent) Server(t testing.TB) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(ContextPath+"/", http.StripPrefix(ContextPath, a))
	mux.Handle(ContextPath, http.StripPrefix(ContextPath, a))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// TLSServer is like Server but serves HTTPS with a self-signed certificate
func (a *Agent) TLSServer(t testing.TB) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(ContextPath+"/", http.StripPrefix(ContextPath, a))
	mux.Handle(ContextPath, http.StripPrefix(ContextPath, a))
	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// ServeHTTP handles a Jolokia HTTP request
//
// The request path is relative to the agent context path. Protocol errors are
// answered with HTTP 200 and a JSON error entry, as the JVM agent does.
func (a *Agent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="jolokia"`)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var body string
	switch r.Method {
	case http.MethodGet:
		a.setHeaders(w, r)
		body = a.handleGet(r)
	case http.MethodPost:
		a.setHeaders(w, r)
		body = a.handlePost(r)
	case http.MethodOptions:
		a.preflight(w, r)
	default:
		unsupported := errIllegalArgument("HTTP Method " + r.Method + " is not supported.")
		unsupported.status = http.StatusMethodNotAllowed
		body = errorEntry(unsupported, "")
	}

	a.logger.Debug("jolokia request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("response_bytes", len(body)))

	a.send(w, r, body)
}

// authorized checks basic auth credentials when configured
func (a *Agent) authorized(r *http.Request) bool {
	if a.username == "" && a.password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(a.password)) == 1
	return userOK && passOK
}

// handleGet converts the URL form into a request entry and executes it
func (a *Agent) handleGet(r *http.Request) string {
	entry, err := parseGetPath(r.URL.EscapedPath(), r.URL.Query())
	if err != nil {
		return errorEntry(err, "")
	}
	return a.execute(r, entry)
}

// handlePost executes a single request object or a batch array
func (a *Agent) handlePost(r *http.Request) string {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestSize))
	if err != nil {
		return errorEntry(errIllegalArgument("cannot read request: "+err.Error()), "")
	}
	if !gjson.ValidBytes(data) {
		return errorEntry(errIllegalArgument("invalid JSON request"), "")
	}

	parsed := gjson.ParseBytes(data)
	switch {
	case parsed.IsArray():
		entries := parsed.Array()
		out := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsObject() {
				out = append(out, a.execute(r, entry.Raw))
			} else {
				out = append(out, errorEntry(errIllegalArgument("request must be a JSON object"), ""))
			}
		}
		return "[" + strings.Join(out, ",") + "]"
	case parsed.IsObject():
		return a.execute(r, parsed.Raw)
	default:
		return errorEntry(errIllegalArgument("request must be a JSON object or array"), "")
	}
}

// preflight answers a CORS preflight request
func (a *Agent) preflight(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	h.Set("Access-Control-Allow-Origin", origin)
	if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		h.Set("Access-Control-Allow-Headers", reqHeaders)
	}
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Max-Age", "31536000")
}

// setHeaders sets CORS and no-cache headers
func (a *Agent) setHeaders(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	if origin := r.Header.Get("Origin"); origin != "" {
		h.Set("Access-Control-Allow-Origin", strings.NewReplacer("\r", "", "\n", "").Replace(origin))
		h.Set("Access-Control-Allow-Credentials", "true")
	}

	now := a.now().UTC()
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("Date", now.Format(http.TimeFormat))
	// one hour in the past so that Expires never follows Date
	h.Set("Expires", now.Add(-time.Hour).Format(http.TimeFormat))
}

// send writes the JSON answer, wrapped for JSONP when a callback is given
func (a *Agent) send(w http.ResponseWriter, r *http.Request, body string) {
	if body == "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		return
	}

	query := r.URL.Query()
	callback := query.Get("callback")
	mimeType := "text/plain"
	switch {
	case callback != "":
		mimeType = "text/javascript"
		body = callback + "(" + body + ");"
	case query.Get("mimeType") != "":
		mimeType = query.Get("mimeType")
	}

	w.Header().Set("Content-Type", mimeType+"; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// record stores a processed request entry
func (a *Agent) record(r *http.Request, entry string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, RecordedRequest{
		HTTPMethod: r.Method,
		Header:     r.Header.Clone(),
		JSON:       entry,
	})
}

// bean looks up a registered MBean
func (a *Agent) bean(name string) (*MBean, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.beans[name]
	return b, ok
}

// names returns the sorted names of all registered MBeans
func (a *Agent) names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.beans))
	for name := range a.beans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
