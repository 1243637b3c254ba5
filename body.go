// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokia

import (
	"fmt"

	"github.com/tidwall/sjson"
)

// Body provides a fluent interface for building JSON documents
// using sjson for path-based manipulation.
//
// Body is used internally to render requests and batches, and can be used by
// callers to build composite values for write and exec requests.
//
// The Body builder tracks errors internally to enable method chaining
// while providing error checking through String() or Err() methods.
//
// Example:
//
//	body := jolokia.Body{}.
//	    Set("name", "pool-1").
//	    Set("size", 16).
//	    Set("enabled", true)
//
//	value, err := body.String()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	_, err = simple.SetAttribute(ctx, "app:type=Pool", "Config", json.RawMessage(value), jolokia.Path{})
type Body struct {
	// str contains the JSON string being built
	str string
	// err tracks the first error encountered during building
	err error
}

// Set sets a value at the specified JSON path and returns a new Body
//
// The path uses sjson dot notation for nested fields (e.g., "config.name").
// Use "-1" as the last path element to append to an array.
//
// If an error occurs, the error is stored and returned by String() or Err().
// Once an error occurs, all subsequent operations are no-ops that preserve the error.
//
// Returns the Body for method chaining.
func (b Body) Set(path string, value any) Body {
	if b.err != nil {
		return b
	}

	result, err := sjson.Set(b.str, path, value)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Set(%q): %w", path, err)}
	}
	return Body{str: result, err: nil}
}

// SetRaw sets pre-encoded JSON at the specified path and returns a new Body
//
// The raw value is inserted as-is, without any validation or re-encoding.
//
// Example:
//
//	body := jolokia.Body{}.SetRaw("arguments", "[]")
func (b Body) SetRaw(path, raw string) Body {
	if b.err != nil {
		return b
	}

	result, err := sjson.SetRaw(b.str, path, raw)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("SetRaw(%q): %w", path, err)}
	}
	return Body{str: result, err: nil}
}

// String returns the JSON string representation and any error encountered during building
func (b Body) String() (string, error) {
	return b.str, b.err
}

// Err returns any error that occurred during the building process
func (b Body) Err() error {
	return b.err
}

// Bytes returns the JSON byte slice representation and any error encountered during building
func (b Body) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return []byte(b.str), nil
}
