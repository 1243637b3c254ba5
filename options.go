// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokia

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Client configuration options using the functional options pattern

// Username sets the username for HTTP basic authentication
func Username(username string) func(*Client) {
	return func(c *Client) {
		c.username = username
	}
}

// Password sets the password for HTTP basic authentication
func Password(password string) func(*Client) {
	return func(c *Client) {
		c.password = password
	}
}

// TLSCert sets the client certificate file path for mutual TLS
//
// The certificate is loaded when the client is created. If the file cannot
// be read, NewClient returns an error.
func TLSCert(certPath string) func(*Client) {
	return func(c *Client) {
		c.tlsCert = certPath
	}
}

// TLSKey sets the client private key file path for mutual TLS
func TLSKey(keyPath string) func(*Client) {
	return func(c *Client) {
		c.tlsKey = keyPath
	}
}

// TLSCA sets the CA certificate file path for server verification
func TLSCA(caPath string) func(*Client) {
	return func(c *Client) {
		c.tlsCA = caPath
	}
}

// VerifyCertificate enables or disables TLS certificate verification (default: true)
//
// WARNING: Disabling certificate verification makes the connection vulnerable
// to Man-in-the-Middle attacks. Only use this in testing environments where
// security is not a concern.
func VerifyCertificate(verify bool) func(*Client) {
	return func(c *Client) {
		c.VerifyCertificate = verify
	}
}

// OperationTimeout sets the per-attempt timeout (default: 15s)
func OperationTimeout(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.OperationTimeout = duration
	}
}

// MaxRetries sets the maximum number of retry attempts for transient errors (default: 3)
func MaxRetries(retries int) func(*Client) {
	return func(c *Client) {
		c.MaxRetries = retries
	}
}

// BackoffMinDelay sets the minimum backoff delay (default: 1s)
func BackoffMinDelay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.BackoffMinDelay = duration
	}
}

// BackoffMaxDelay sets the maximum backoff delay (default: 60s)
func BackoffMaxDelay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.BackoffMaxDelay = duration
	}
}

// BackoffDelayFactor sets the backoff multiplication factor (default: 2.0)
func BackoffDelayFactor(factor float64) func(*Client) {
	return func(c *Client) {
		c.BackoffDelayFactor = factor
	}
}

// DefaultConfig sets processing parameters applied to every request
//
// Per-request values set through request modifiers take precedence.
//
// Example:
//
//	client, _ := jolokia.NewClient(url,
//	    jolokia.DefaultConfig(map[string]any{"maxDepth": 5, "ignoreErrors": true}))
func DefaultConfig(config map[string]any) func(*Client) {
	return func(c *Client) {
		if c.defaultConfig == nil {
			c.defaultConfig = make(map[string]any, len(config))
		}
		for k, v := range config {
			c.defaultConfig[k] = v
		}
	}
}

// WithHTTPClient replaces the HTTP client used to reach the agent
//
// TLS options are ignored when a custom client is supplied.
func WithHTTPClient(hc *http.Client) func(*Client) {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics registers prometheus collectors for the client on reg
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	client, _ := jolokia.NewClient(url, jolokia.WithMetrics(reg))
func WithMetrics(reg prometheus.Registerer) func(*Client) {
	return func(c *Client) {
		if reg != nil {
			c.metrics = newMetrics(reg)
		}
	}
}

// WithLogger configures a custom logger for the client
//
// By default, the client uses NoOpLogger which discards all log messages.
//
// All JSON content logged at Debug level is automatically redacted to remove
// sensitive data (passwords, secrets, keys, tokens).
//
// Example:
//
//	logger := jolokia.NewDefaultLogger(jolokia.LogLevelInfo)
//	client, _ := jolokia.NewClient("http://localhost:8778/jolokia",
//	    jolokia.WithLogger(logger))
func WithLogger(logger Logger) func(*Client) {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPrettyPrintLogs enables/disables JSON pretty printing in logs
//
// This only affects Debug-level log output.
//
// Default: disabled (false)
func WithPrettyPrintLogs(enabled bool) func(*Client) {
	return func(c *Client) {
		c.prettyPrintLogs = enabled
	}
}

// Request modifiers for individual calls

// Timeout returns a request modifier that sets a custom timeout for the call.
//
// The timeout priority model is:
//  1. Request-specific timeout (this modifier) - highest priority
//  2. Context deadline (if already set) - medium priority
//  3. Client.OperationTimeout - fallback default
func Timeout(duration time.Duration) func(*Req) {
	return func(req *Req) {
		req.Timeout = duration
	}
}

// WithMethod returns a request modifier that selects POST or GET.
//
// Simple always submits with POST and overrides this value.
func WithMethod(m Method) func(*Req) {
	return func(req *Req) {
		req.Method = m
	}
}

// Param returns a request modifier that sets an arbitrary processing parameter.
//
// Parameters not known to this library are passed to the agent unmodified.
func Param(key string, value any) func(*Req) {
	return func(req *Req) {
		if req.Config == nil {
			req.Config = make(map[string]any)
		}
		req.Config[key] = value
	}
}

// MaxDepth limits the traversal depth of returned values
func MaxDepth(depth int) func(*Req) {
	return Param("maxDepth", depth)
}

// MaxCollectionSize limits the number of elements returned per collection
func MaxCollectionSize(size int) func(*Req) {
	return Param("maxCollectionSize", size)
}

// MaxObjects limits the total number of objects serialized in a response
func MaxObjects(count int) func(*Req) {
	return Param("maxObjects", count)
}

// IgnoreErrors makes bulk reads skip attributes that fail to read
func IgnoreErrors(ignore bool) func(*Req) {
	return Param("ignoreErrors", ignore)
}

// SerializeException asks the agent to include the serialized exception
func SerializeException(enabled bool) func(*Req) {
	return Param("serializeException", enabled)
}

// IncludeStackTrace controls whether error entries carry a stack trace
func IncludeStackTrace(enabled bool) func(*Req) {
	return Param("includeStackTrace", enabled)
}

// CanonicalNaming selects canonical (sorted) MBean names in responses
func CanonicalNaming(enabled bool) func(*Req) {
	return Param("canonicalNaming", enabled)
}

// IfModifiedSince makes list and search return 304 when nothing changed since t
func IfModifiedSince(t time.Time) func(*Req) {
	return Param("ifModifiedSince", t.Unix())
}

// IncludeRequest controls whether the agent echoes the request in each entry
func IncludeRequest(enabled bool) func(*Req) {
	return Param("includeRequest", enabled)
}

// Header returns a request modifier that adds an HTTP header
func Header(key, value string) func(*Req) {
	return func(req *Req) {
		if req.Headers == nil {
			req.Headers = make(map[string]string)
		}
		req.Headers[key] = value
	}
}

// OnResponse registers a handler invoked with every successful entry.
//
// Registering any handler switches the transport into callback mode.
func OnResponse(fn ResponseFunc) func(*Req) {
	return func(req *Req) {
		req.Success = fn
	}
}

// OnResponses registers one success handler per batch position
func OnResponses(fns ...ResponseFunc) func(*Req) {
	return func(req *Req) {
		req.Successes = fns
	}
}

// OnError registers a handler invoked with every error entry
func OnError(fn ResponseFunc) func(*Req) {
	return func(req *Req) {
		req.Error = fn
	}
}

// OnErrors registers one error handler per batch position
func OnErrors(fns ...ResponseFunc) func(*Req) {
	return func(req *Req) {
		req.Errors = fns
	}
}

// OnValue registers a callback that receives the unwrapped value of a
// successful Simple call instead of the full response entry.
//
// Example:
//
//	_, err := simple.Execute(ctx, "java.lang:type=Memory", "gc", nil,
//	    jolokia.OnValue(func(v jolokia.Value, i int) {
//	        fmt.Println("gc done:", v.Raw())
//	    }))
func OnValue(fn ValueFunc) func(*Req) {
	return func(req *Req) {
		req.onValue = fn
	}
}
