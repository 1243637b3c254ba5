// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokia

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// RequestType identifies the kind of Jolokia request
type RequestType string

const (
	// TypeRead reads one, several or all attributes of an MBean
	TypeRead RequestType = "read"

	// TypeWrite sets a single attribute and returns its previous value
	TypeWrite RequestType = "write"

	// TypeExec invokes an MBean operation
	TypeExec RequestType = "exec"

	// TypeSearch looks up MBean names matching a pattern
	TypeSearch RequestType = "search"

	// TypeVersion queries agent and protocol version
	TypeVersion RequestType = "version"

	// TypeList returns MBean metadata, optionally narrowed by a path
	TypeList RequestType = "list"
)

// Request is a single Jolokia request
//
// Only the fields relevant for Type are rendered. Path is sent only when
// non-empty.
//
// Example:
//
//	req := jolokia.Request{
//	    Type:      jolokia.TypeRead,
//	    MBean:     "java.lang:type=Memory",
//	    Attribute: "HeapMemoryUsage",
//	    Path:      "used",
//	}
//	res, err := client.Request(ctx, req, jolokia.Req{})
type Request struct {
	// Type is the request kind
	Type RequestType

	// MBean is the object name, or the search pattern for TypeSearch
	// Empty for TypeVersion and TypeList
	MBean string

	// Attribute is a single attribute name (read, write)
	Attribute string

	// Attributes selects several attributes for a read. Takes precedence
	// over Attribute when non-empty.
	Attributes []string

	// Path is the escaped inner path (read, write, list)
	Path string

	// Value is the new attribute value (write)
	Value any

	// Operation is the operation name, optionally with a signature such as
	// "dumpHeap(java.lang.String,boolean)" (exec)
	Operation string

	// Arguments are the operation arguments (exec)
	Arguments []any

	// Config holds per-request processing parameters
	Config map[string]any
}

// JSON renders the request as a JSON object for POST requests.
func (r Request) JSON() (string, error) {
	body := Body{}.Set("type", string(r.Type))
	if r.MBean != "" {
		body = body.Set("mbean", r.MBean)
	}

	switch r.Type {
	case TypeRead:
		if len(r.Attributes) > 0 {
			body = setJSON(body, "attribute", r.Attributes)
		} else if r.Attribute != "" {
			body = body.Set("attribute", r.Attribute)
		}
	case TypeWrite:
		body = body.Set("attribute", r.Attribute)
		body = setJSON(body, "value", r.Value)
	case TypeExec:
		body = body.Set("operation", r.Operation)
		args := r.Arguments
		if args == nil {
			args = []any{}
		}
		body = setJSON(body, "arguments", args)
	}

	if r.Path != "" {
		body = body.Set("path", r.Path)
	}
	if len(r.Config) > 0 {
		body = setJSON(body, "config", r.Config)
	}

	str, err := body.String()
	if err != nil {
		return "", fmt.Errorf("%s request: %w", r.Type, err)
	}
	return str, nil
}

// setJSON marshals value with encoding/json and stores the result at path
func setJSON(body Body, path string, value any) Body {
	raw, err := json.Marshal(value)
	if err != nil {
		return Body{str: body.str, err: fmt.Errorf("marshal %q: %w", path, err)}
	}
	return body.SetRaw(path, string(raw))
}

// URLPath renders the request in the GET URL form, relative to the agent URL.
//
// Multi-attribute reads and reads with a path but no attribute cannot be
// expressed in this form and return an error.
//
// Example:
//
//	read/java.lang:type=Memory/HeapMemoryUsage/used
//	exec/java.lang:type=Threading/dumpAllThreads/true/true
func (r Request) URLPath() (string, error) {
	parts := []string{string(r.Type)}

	switch r.Type {
	case TypeRead:
		if len(r.Attributes) > 1 {
			return "", fmt.Errorf("read: multiple attributes require POST")
		}
		attr := r.Attribute
		if len(r.Attributes) == 1 {
			attr = r.Attributes[0]
		}
		parts = append(parts, EscapeURLSegment(r.MBean))
		if attr != "" {
			parts = append(parts, EscapeURLSegment(attr))
		} else if r.Path != "" {
			return "", fmt.Errorf("read: path requires an attribute for GET")
		}
	case TypeWrite:
		parts = append(parts,
			EscapeURLSegment(r.MBean),
			EscapeURLSegment(r.Attribute),
			url.PathEscape(urlValue(r.Value)))
	case TypeExec:
		parts = append(parts, EscapeURLSegment(r.MBean), EscapeURLSegment(r.Operation))
		for _, arg := range r.Arguments {
			parts = append(parts, url.PathEscape(urlValue(arg)))
		}
	case TypeSearch:
		parts = append(parts, EscapeURLSegment(r.MBean))
	case TypeList, TypeVersion:
	default:
		return "", fmt.Errorf("unknown request type: %q", r.Type)
	}

	if r.Path != "" && r.Type != TypeSearch && r.Type != TypeVersion && r.Type != TypeExec {
		for _, p := range strings.Split(r.Path, "/") {
			parts = append(parts, url.PathEscape(p))
		}
	}

	return strings.Join(parts, "/"), nil
}

// urlValue formats a value for the GET URL form, escaped with EscapePath.
//
// null is written as "[null]" and the empty string as `""`; both markers are
// left unescaped. Array elements are escaped individually and comma-separated.
func urlValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "[null]"
	case string:
		if val == "" {
			return `""`
		}
		return EscapePath(val)
	case json.RawMessage:
		return EscapePath(string(val))
	case []any:
		items := make([]string, len(val))
		for i, item := range val {
			items[i] = urlValue(item)
		}
		return strings.Join(items, ",")
	case []string:
		items := make([]string, len(val))
		for i, item := range val {
			items[i] = urlValue(item)
		}
		return strings.Join(items, ",")
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return EscapePath(fmt.Sprintf("%v", val))
		}
		return EscapePath(string(raw))
	}
}

// ResponseFunc handles a single response entry. The index is the position
// of the entry in the batch.
type ResponseFunc func(resp Response, index int)

// ValueFunc receives the unwrapped value of a successful response.
type ValueFunc func(value Value, index int)

// Req represents the options of a single call
//
// Req is built from functional modifiers for every call and is never shared
// between calls.
//
// Setting any of Success, Successes, Error or Errors switches the transport
// into callback mode: handlers are invoked for every response entry and the
// call returns NoResult.
//
// Example:
//
//	res, err := client.Request(ctx, req, jolokia.NewReq(
//	    jolokia.Timeout(5*time.Second),
//	    jolokia.MaxDepth(2)))
type Req struct {
	// Method selects POST (default) or GET
	Method Method

	// Timeout is the request-specific timeout
	// Overrides client default timeout if set
	Timeout time.Duration

	// Config holds processing parameters such as maxDepth or ignoreErrors
	Config map[string]any

	// Headers are added to the HTTP request
	Headers map[string]string

	// Success is invoked for every successful entry
	Success ResponseFunc

	// Successes holds one handler per batch position, used when Success is nil
	Successes []ResponseFunc

	// Error is invoked for every error entry
	Error ResponseFunc

	// Errors holds one handler per batch position, used when Error is nil
	Errors []ResponseFunc

	// onValue is the caller's value callback, adapted into Success by Simple
	onValue ValueFunc
}

// NewReq builds a Req from modifiers
func NewReq(mods ...func(*Req)) Req {
	req := Req{}
	for _, mod := range mods {
		mod(&req)
	}
	return req
}

// callbackMode reports whether any response handler is registered
func (r Req) callbackMode() bool {
	return r.Success != nil || len(r.Successes) > 0 || r.Error != nil || len(r.Errors) > 0
}

// successHandler returns the handler for the entry at index, or nil
func (r Req) successHandler(index int) ResponseFunc {
	if r.Success != nil {
		return r.Success
	}
	if index < len(r.Successes) {
		return r.Successes[index]
	}
	return nil
}

// errorHandler returns the handler for the entry at index, or nil
func (r Req) errorHandler(index int) ResponseFunc {
	if r.Error != nil {
		return r.Error
	}
	if index < len(r.Errors) {
		return r.Errors[index]
	}
	return nil
}
