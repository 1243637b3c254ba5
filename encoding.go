// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokia

import (
	"fmt"
	"net/url"
	"strings"
)

// Method selects how a request is submitted to the agent
type Method string

const (
	// MethodPost sends requests as a JSON array in the request body (default)
	// This is the only method that supports batches and multi-attribute reads
	MethodPost Method = "post"

	// MethodGet encodes a single request into the URL path
	MethodGet Method = "get"
)

// ValidMethods contains the list of valid request methods
var ValidMethods = []Method{
	MethodPost,
	MethodGet,
}

// ValidateMethod checks if the method is valid
//
// Returns an error if the method is not one of the supported values.
//
// Example:
//
//	if err := jolokia.ValidateMethod("post"); err != nil {
//	    log.Fatal(err)
//	}
func ValidateMethod(m Method) error {
	for _, valid := range ValidMethods {
		if m == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid method: %s (valid values: post, get)", m)
}

var pathEscaper = strings.NewReplacer(`!`, `!!`, `/`, `!/`, `"`, `!"`)

// EscapePath escapes a single path segment for use in a POST request.
//
// Jolokia uses "/" to separate inner path segments, so a literal slash inside
// a segment is written as "!/" and the escape character itself as "!!".
//
// Example:
//
//	jolokia.EscapePath("a/b")  // "a!/b"
//	jolokia.EscapePath("x!")   // "x!!"
func EscapePath(segment string) string {
	return pathEscaper.Replace(segment)
}

// EscapeURLSegment escapes a single segment for the GET URL form.
//
// The segment is first escaped with EscapePath and then percent-encoded.
func EscapeURLSegment(segment string) string {
	return url.PathEscape(EscapePath(segment))
}

// UnescapePath reverses EscapePath for a single segment.
func UnescapePath(segment string) string {
	if !strings.Contains(segment, "!") {
		return segment
	}
	var b strings.Builder
	b.Grow(len(segment))
	for i := 0; i < len(segment); i++ {
		if segment[i] == '!' && i+1 < len(segment) {
			i++
		}
		b.WriteByte(segment[i])
	}
	return b.String()
}

// SplitPath splits an escaped path into its unescaped segments.
//
// Only unescaped slashes separate segments, so "a!/b/c" yields ["a/b", "c"].
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	var (
		segments []string
		current  strings.Builder
	)
	for i := 0; i < len(path); i++ {
		ch := path[i]
		switch {
		case ch == '!' && i+1 < len(path):
			i++
			current.WriteByte(path[i])
		case ch == '/':
			segments = append(segments, current.String())
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	return append(segments, current.String())
}

// Path is an inner path into a value returned by the agent
//
// A Path is either a pre-joined string that is sent verbatim (RawPath) or a
// list of segments that are escaped individually and joined with "/"
// (PathSegments). The zero value means "no path".
type Path struct {
	raw      string
	segments []string
}

// RawPath returns a Path that is sent exactly as given.
//
// No escaping is applied, so slashes separate segments:
//
//	jolokia.RawPath("used")          // "used"
//	jolokia.RawPath("map/key/inner") // "map/key/inner"
func RawPath(path string) Path {
	return Path{raw: path}
}

// PathSegments returns a Path built from individual segments.
//
// Each segment is escaped with EscapePath before joining, so segments may
// contain slashes:
//
//	jolokia.PathSegments("a", "b c")   // "a/b c"
//	jolokia.PathSegments("a/b", "c")   // "a!/b/c"
func PathSegments(segments ...string) Path {
	return Path{segments: segments}
}

// IsZero reports whether the path is empty
func (p Path) IsZero() bool {
	return p.raw == "" && len(p.segments) == 0
}

// String returns the encoded path
func (p Path) String() string {
	if len(p.segments) > 0 {
		escaped := make([]string, len(p.segments))
		for i, s := range p.segments {
			escaped[i] = EscapePath(s)
		}
		return strings.Join(escaped, "/")
	}
	return p.raw
}

// addPath sets req.Path from p. An empty path leaves the request untouched.
func addPath(req *Request, p Path) {
	if p.IsZero() {
		return
	}
	req.Path = p.String()
}
