// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokia

import (
	"context"
	"fmt"
	"strings"
)

// Input validation constants
const (
	// MaxNameLength is the maximum length of an MBean name, pattern,
	// attribute or operation name
	MaxNameLength = 4096
)

// SimpleAPI is the convenience interface over a Jolokia transport
//
// Each call sends exactly one request and returns the unwrapped value of the
// first response entry, or the error reported by the agent.
type SimpleAPI interface {
	GetAttribute(ctx context.Context, mbean string, args ReadArgs, mods ...func(*Req)) (Value, error)
	SetAttribute(ctx context.Context, mbean, attribute string, value any, path Path, mods ...func(*Req)) (Value, error)
	Execute(ctx context.Context, mbean, operation string, args []any, mods ...func(*Req)) (Value, error)
	Search(ctx context.Context, pattern string, mods ...func(*Req)) ([]string, error)
	Version(ctx context.Context, mods ...func(*Req)) (Value, error)
	List(ctx context.Context, path Path, mods ...func(*Req)) (Value, error)
}

// ReadArgs selects what GetAttribute reads
//
// The zero value reads all attributes of the MBean. Attribute and Attributes
// are mutually exclusive.
type ReadArgs struct {
	// Attribute is a single attribute name
	Attribute string

	// Attributes reads several attributes at once; the value is a map
	// from attribute name to value
	Attributes []string

	// Path is an inner path into the attribute value
	Path Path
}

// Simple wraps a Transport with short-form operations
//
// Simple embeds the transport, so it can be used wherever a Transport is
// expected. It holds no mutable state and is safe for concurrent use when
// the underlying transport is.
//
// Example:
//
//	client, err := jolokia.NewClient("http://localhost:8778/jolokia")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	simple := jolokia.NewSimple(client)
//	heap, err := simple.GetAttribute(ctx, "java.lang:type=Memory",
//	    jolokia.ReadArgs{Attribute: "HeapMemoryUsage", Path: jolokia.RawPath("used")})
type Simple struct {
	Transport

	defaults []func(*Req)
}

var (
	_ SimpleAPI = (*Simple)(nil)
	_ Transport = (*Simple)(nil)
	_ Transport = (*Client)(nil)
)

// NewSimple creates a Simple facade over t
func NewSimple(t Transport, opts ...func(*Simple)) *Simple {
	s := &Simple{Transport: t}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultRequest sets request modifiers applied before the caller's
// modifiers on every Simple call
//
// Example:
//
//	simple := jolokia.NewSimple(client,
//	    jolokia.DefaultRequest(jolokia.MaxDepth(3), jolokia.Timeout(5*time.Second)))
func DefaultRequest(mods ...func(*Req)) func(*Simple) {
	return func(s *Simple) {
		s.defaults = append(append([]func(*Req){}, s.defaults...), mods...)
	}
}

// GetAttribute reads one, several or all attributes of an MBean
//
// Returns the attribute value, a map of attribute values for multi and
// all-attribute reads, or null when the transport produced no result.
//
// Example:
//
//	v, err := simple.GetAttribute(ctx, "java.lang:type=Threading",
//	    jolokia.ReadArgs{Attributes: []string{"ThreadCount", "PeakThreadCount"}})
//	fmt.Println(v.Get("ThreadCount").Int())
func (s *Simple) GetAttribute(ctx context.Context, mbean string, args ReadArgs, mods ...func(*Req)) (Value, error) {
	if err := validateName("mbean", mbean); err != nil {
		return Value{}, fmt.Errorf("read: %w", err)
	}
	if args.Attribute != "" && len(args.Attributes) > 0 {
		return Value{}, fmt.Errorf("read: Attribute and Attributes are mutually exclusive")
	}
	for i, attr := range args.Attributes {
		if err := validateName("attribute", attr); err != nil {
			return Value{}, fmt.Errorf("read: attribute at index %d: %w", i, err)
		}
	}

	req := Request{
		Type:       TypeRead,
		MBean:      mbean,
		Attribute:  args.Attribute,
		Attributes: args.Attributes,
	}
	addPath(&req, args.Path)

	v, _, err := s.call(ctx, req, mods)
	return v, err
}

// SetAttribute writes an attribute and returns its previous value
//
// A non-zero path writes into a nested element of the attribute value.
//
// Example:
//
//	old, err := simple.SetAttribute(ctx, "java.lang:type=Memory", "Verbose", true, jolokia.Path{})
func (s *Simple) SetAttribute(ctx context.Context, mbean, attribute string, value any, path Path, mods ...func(*Req)) (Value, error) {
	if err := validateName("mbean", mbean); err != nil {
		return Value{}, fmt.Errorf("write: %w", err)
	}
	if err := validateName("attribute", attribute); err != nil {
		return Value{}, fmt.Errorf("write: %w", err)
	}

	req := Request{
		Type:      TypeWrite,
		MBean:     mbean,
		Attribute: attribute,
		Value:     value,
	}
	addPath(&req, path)

	v, _, err := s.call(ctx, req, mods)
	return v, err
}

// Execute invokes an MBean operation and returns its result
//
// Overloaded operations are selected with a signature in the name, e.g.
// "getThreadInfo(long,int)". A nil args slice is sent as an empty argument
// list.
//
// Example:
//
//	_, err := simple.Execute(ctx, "java.lang:type=Memory", "gc", nil)
func (s *Simple) Execute(ctx context.Context, mbean, operation string, args []any, mods ...func(*Req)) (Value, error) {
	if err := validateName("mbean", mbean); err != nil {
		return Value{}, fmt.Errorf("exec: %w", err)
	}
	if err := validateName("operation", operation); err != nil {
		return Value{}, fmt.Errorf("exec: %w", err)
	}

	req := Request{
		Type:      TypeExec,
		MBean:     mbean,
		Operation: operation,
		Arguments: args,
	}

	v, _, err := s.call(ctx, req, mods)
	return v, err
}

// Search returns the names of MBeans matching pattern
//
// An empty or falsy answer (including no result) yields an empty slice,
// never nil.
//
// Example:
//
//	names, err := simple.Search(ctx, "java.lang:type=MemoryPool,*")
func (s *Simple) Search(ctx context.Context, pattern string, mods ...func(*Req)) ([]string, error) {
	if err := validateName("pattern", pattern); err != nil {
		return []string{}, fmt.Errorf("search: %w", err)
	}

	v, ok, err := s.call(ctx, Request{Type: TypeSearch, MBean: pattern}, mods)
	if err != nil {
		return []string{}, err
	}
	if !ok {
		return []string{}, nil
	}
	return searchNames(v), nil
}

// Version returns the agent and protocol version descriptor
func (s *Simple) Version(ctx context.Context, mods ...func(*Req)) (Value, error) {
	v, _, err := s.call(ctx, Request{Type: TypeVersion}, mods)
	return v, err
}

// List returns MBean metadata, narrowed by path when given
//
// Without a result the empty object {} is returned.
//
// Example:
//
//	mem, err := simple.List(ctx, jolokia.PathSegments("java.lang", "type=Memory"))
func (s *Simple) List(ctx context.Context, path Path, mods ...func(*Req)) (Value, error) {
	req := Request{Type: TypeList}
	addPath(&req, path)

	v, ok, err := s.call(ctx, req, mods)
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return NewValue("{}"), nil
	}
	return v, nil
}

// call sends req once and unwraps the first entry
//
// ok is false when no entry was available (NoResult or an empty batch).
// Transport errors are returned unchanged.
func (s *Simple) call(ctx context.Context, req Request, mods []func(*Req)) (Value, bool, error) {
	res, err := s.Transport.Request(ctx, req, s.options(mods))
	if err != nil {
		return Value{}, false, err
	}
	return unwrap(res)
}

// options builds a fresh Req for a single call. Facade calls always use POST.
func (s *Simple) options(mods []func(*Req)) Req {
	opts := Req{}
	for _, mod := range s.defaults {
		mod(&opts)
	}
	for _, mod := range mods {
		mod(&opts)
	}
	opts.Method = MethodPost
	return adaptSuccess(opts)
}

// adaptSuccess returns a copy of opts whose Success handler forwards the
// unwrapped value to the value callback. Without a value callback opts is
// returned as is.
func adaptSuccess(opts Req) Req {
	fn := opts.onValue
	if fn == nil {
		return opts
	}
	opts.Success = func(resp Response, index int) {
		fn(resp.Value, index)
	}
	opts.onValue = nil
	return opts
}

// unwrap extracts the first entry of a transport result
func unwrap(res Result) (Value, bool, error) {
	switch r := res.(type) {
	case BatchResult:
		if len(r.Responses) == 0 {
			return Value{}, false, nil
		}
		first := r.Responses[0]
		if first.IsError() {
			return Value{}, true, first.Err()
		}
		return first.Value, true, nil
	case NoResult, nil:
		return Value{}, false, nil
	default:
		return Value{}, false, fmt.Errorf("unexpected result type %T", res)
	}
}

// searchNames converts a search value into MBean names
func searchNames(v Value) []string {
	if !v.truthy() {
		return []string{}
	}
	r := v.Result()
	if !r.IsArray() {
		return []string{r.String()}
	}
	items := r.Array()
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.String())
	}
	return names
}

// validateName checks a required name argument
//
// Checks:
//   - Name is not empty or whitespace only
//   - Name length does not exceed MaxNameLength
//   - Name does not contain null bytes
func validateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%s exceeds maximum length of %d characters", kind, MaxNameLength)
	}
	if i := strings.IndexByte(name, 0); i >= 0 {
		return fmt.Errorf("%s contains null byte at position %d", kind, i)
	}
	return nil
}
