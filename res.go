// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokia

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Value is a JSON value returned by the agent
//
// Value keeps the raw JSON text and exposes gjson accessors for querying it.
// The zero value is JSON null.
//
// Example:
//
//	v, err := simple.GetAttribute(ctx, "java.lang:type=Memory",
//	    jolokia.ReadArgs{Attribute: "HeapMemoryUsage"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	used := v.Get("used").Int()
type Value struct {
	raw string
}

// NewValue wraps raw JSON text. Empty input is treated as null.
func NewValue(raw string) Value {
	return Value{raw: raw}
}

// ValueOf marshals v into a Value
func ValueOf(v any) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("marshal value: %w", err)
	}
	return Value{raw: string(data)}, nil
}

// Raw returns the JSON text of the value ("null" for the zero value)
func (v Value) Raw() string {
	if v.raw == "" {
		return "null"
	}
	return v.raw
}

// IsNull reports whether the value is JSON null or absent
func (v Value) IsNull() bool {
	return v.Result().Type == gjson.Null
}

// Result returns the parsed gjson result
func (v Value) Result() gjson.Result {
	if v.raw == "" {
		return gjson.Result{}
	}
	return gjson.Parse(v.raw)
}

// Get retrieves a nested value using a gjson path.
//
// Example paths:
//   - "used" - a field of a composite value
//   - "java\\.lang.type=Memory" - a key containing dots (escaped)
//   - "0.name" - first element of an array
func (v Value) Get(path string) gjson.Result {
	if v.raw == "" {
		return gjson.Result{}
	}
	return gjson.Get(v.raw, path)
}

// String returns the value as a string (JSON text for objects and arrays)
func (v Value) String() string {
	return v.Result().String()
}

// Int returns the value as an integer
func (v Value) Int() int64 {
	return v.Result().Int()
}

// Float returns the value as a float
func (v Value) Float() float64 {
	return v.Result().Float()
}

// Bool returns the value as a boolean
func (v Value) Bool() bool {
	return v.Result().Bool()
}

// Array returns the elements of an array value
func (v Value) Array() []gjson.Result {
	return v.Result().Array()
}

// Map returns the members of an object value
func (v Value) Map() map[string]gjson.Result {
	return v.Result().Map()
}

// Decode unmarshals the value into out
func (v Value) Decode(out any) error {
	if err := json.Unmarshal([]byte(v.Raw()), out); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}

// Interface returns the value as plain Go data (map[string]any, []any,
// float64, string, bool or nil)
func (v Value) Interface() any {
	return v.Result().Value()
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.Raw()), nil
}

// truthy mirrors JavaScript truthiness: null, false, 0 and "" are falsy
func (v Value) truthy() bool {
	r := v.Result()
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return r.Float() != 0
	case gjson.String:
		return r.Str != ""
	default:
		return true
	}
}

// Response is a single entry of a Jolokia batch response
type Response struct {
	// Status is the Jolokia status code (200 on success)
	Status int

	// Timestamp is the agent time in seconds since Unix epoch
	Timestamp int64

	// Value carries the result of a successful request
	Value Value

	// Error is the error description of a failed request
	Error string

	// ErrorType is the Java exception class of a failed request
	ErrorType string

	// ErrorValue is the serialized exception (serializeException=true)
	ErrorValue Value

	// Stacktrace is included when includeStackTrace is enabled
	Stacktrace string

	// Request echoes the original request as sent by the agent
	Request Value
}

// IsError reports whether the entry describes a failure
func (r Response) IsError() bool {
	return r.Error != "" || r.Status != 200
}

// Err converts an error entry into a *JolokiaError, or returns nil
func (r Response) Err() error {
	if !r.IsError() {
		return nil
	}
	return &JolokiaError{
		Status:     r.Status,
		ErrorType:  r.ErrorType,
		Message:    r.Error,
		Stacktrace: r.Stacktrace,
		ErrorValue: r.ErrorValue,
	}
}

// parseResponse builds a Response from a single JSON entry
func parseResponse(entry gjson.Result) Response {
	return Response{
		Status:     int(entry.Get("status").Int()),
		Timestamp:  entry.Get("timestamp").Int(),
		Value:      Value{raw: entry.Get("value").Raw},
		Error:      entry.Get("error").String(),
		ErrorType:  entry.Get("error_type").String(),
		ErrorValue: Value{raw: entry.Get("error_value").Raw},
		Stacktrace: entry.Get("stacktrace").String(),
		Request:    Value{raw: entry.Get("request").Raw},
	}
}

// ParseResponses parses an agent response body. A single JSON object is
// treated as a batch of one.
func ParseResponses(body []byte) ([]Response, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON response")
	}
	parsed := gjson.ParseBytes(body)
	switch {
	case parsed.IsArray():
		entries := parsed.Array()
		responses := make([]Response, 0, len(entries))
		for _, entry := range entries {
			responses = append(responses, parseResponse(entry))
		}
		return responses, nil
	case parsed.IsObject():
		return []Response{parseResponse(parsed)}, nil
	default:
		return nil, fmt.Errorf("unexpected response type: %s", parsed.Type)
	}
}

// Result is the outcome of a transport call: either a BatchResult or NoResult.
type Result interface {
	result()
}

// BatchResult carries the response entries, in request order
type BatchResult struct {
	Responses []Response
}

// NoResult is returned when the transport produced no response batch,
// for example in callback mode.
type NoResult struct{}

func (BatchResult) result() {}
func (NoResult) result()    {}
