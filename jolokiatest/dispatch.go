// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokiatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/netascode/go-jolokia"
)

// Java exception types reported in error entries
const (
	instanceNotFound  = "javax.management.InstanceNotFoundException"
	attributeNotFound = "javax.management.AttributeNotFoundException"
	illegalArgument   = "java.lang.IllegalArgumentException"
	mbeanException    = "javax.management.MBeanException"
)

// agentError is a failure reported as a response entry
type agentError struct {
	status  int
	errType string
	message string
}

func (e *agentError) Error() string {
	return e.message
}

func errNoInstance(name string) *agentError {
	return &agentError{status: http.StatusNotFound, errType: instanceNotFound, message: instanceNotFound + " : " + name}
}

func errNoAttribute(name string) *agentError {
	return &agentError{status: http.StatusNotFound, errType: attributeNotFound, message: attributeNotFound + " : No such attribute: " + name}
}

func errReadOnly(name string) *agentError {
	return &agentError{status: http.StatusNotFound, errType: attributeNotFound, message: attributeNotFound + " : Attribute " + name + " is read-only"}
}

func errIllegalArgument(msg string) *agentError {
	return &agentError{status: http.StatusBadRequest, errType: illegalArgument, message: illegalArgument + " : " + msg}
}

// errOperation reports a failed operation with the message of err
func errOperation(err error) *agentError {
	return &agentError{status: http.StatusInternalServerError, errType: mbeanException, message: err.Error()}
}

// errorEntry renders an error response entry
func errorEntry(e *agentError, request string) string {
	body := jolokia.Body{}.
		Set("status", e.status).
		Set("error_type", e.errType).
		Set("error", e.message)
	if request != "" {
		body = body.SetRaw("request", request)
	}
	return render(body.Set("timestamp", time.Now().Unix()))
}

// successEntry renders a successful response entry
func successEntry(value, request string) string {
	return render(jolokia.Body{}.
		Set("status", http.StatusOK).
		SetRaw("value", value).
		SetRaw("request", request).
		Set("timestamp", time.Now().Unix()))
}

// render returns the built entry, or a 500 entry describing the build failure
func render(body jolokia.Body) string {
	out, err := body.String()
	if err != nil {
		msg, _ := json.Marshal("cannot render response: " + err.Error())
		return fmt.Sprintf(`{"status":500,"error_type":%q,"error":%s}`, mbeanException, msg)
	}
	return out
}

// execute runs a single request entry and renders its response entry
func (a *Agent) execute(r *http.Request, entry string) string {
	a.record(r, entry)
	req := gjson.Parse(entry)

	var (
		value string
		err   *agentError
	)
	switch typ := req.Get("type").String(); typ {
	case "read":
		value, err = a.read(req)
	case "write":
		value, err = a.write(req)
	case "exec":
		value, err = a.exec(req)
	case "search":
		value, err = a.search(req)
	case "list":
		value, err = a.list(req)
	case "version":
		value, err = a.version()
	case "":
		err = errIllegalArgument("No request type given")
	default:
		err = errIllegalArgument("Unknown request type: " + typ)
	}

	if err != nil {
		return errorEntry(err, entry)
	}
	return successEntry(value, entry)
}

// read returns one, several or all attributes, optionally for an MBean pattern
func (a *Agent) read(req gjson.Result) (string, *agentError) {
	name := req.Get("mbean").String()
	if name == "" {
		return "", errIllegalArgument("No MBean name given")
	}
	attr := req.Get("attribute")
	ignore := req.Get("config.ignoreErrors").Bool()

	var (
		value string
		err   *agentError
	)
	if isPattern(name) {
		value, err = a.readPattern(name, attr)
	} else {
		bean, ok := a.bean(name)
		if !ok {
			return "", errNoInstance(name)
		}
		value, err = readBean(bean, attr, ignore)
	}
	if err != nil {
		return "", err
	}
	return navigate(value, jolokia.SplitPath(req.Get("path").String()))
}

// readPattern reads the selected attributes of every MBean matching pattern
func (a *Agent) readPattern(pattern string, attr gjson.Result) (string, *agentError) {
	names, err := a.match(pattern)
	if err != nil {
		return "", err
	}
	values := make(map[string]string, len(names))
	keys := make([]string, 0, len(names))
	for _, name := range names {
		bean, ok := a.bean(name)
		if !ok {
			continue
		}
		v, err := readBean(bean, attr, true)
		if err != nil {
			continue
		}
		values[name] = v
		keys = append(keys, name)
	}
	if len(keys) == 0 {
		return "", errNoInstance(pattern)
	}
	return joinObject(values, keys), nil
}

// readBean selects attributes of a single MBean
func readBean(bean *MBean, attr gjson.Result, ignoreErrors bool) (string, *agentError) {
	switch {
	case !attr.Exists() || attr.Type == gjson.Null:
		return bean.allAttributes(), nil
	case attr.IsArray():
		values := make(map[string]string)
		var keys []string
		for _, item := range attr.Array() {
			name := item.String()
			if _, seen := values[name]; seen {
				continue
			}
			raw, ok := bean.attributeRaw(name)
			if !ok {
				if ignoreErrors {
					continue
				}
				return "", errNoAttribute(name)
			}
			values[name] = raw
			keys = append(keys, name)
		}
		return joinObject(values, keys), nil
	default:
		raw, ok := bean.attributeRaw(attr.String())
		if !ok {
			return "", errNoAttribute(attr.String())
		}
		return raw, nil
	}
}

// write sets an attribute (or an inner path of it) and returns the old value
func (a *Agent) write(req gjson.Result) (string, *agentError) {
	name := req.Get("mbean").String()
	attr := req.Get("attribute").String()
	if name == "" || attr == "" {
		return "", errIllegalArgument("write requires an MBean and an attribute")
	}
	bean, ok := a.bean(name)
	if !ok {
		return "", errNoInstance(name)
	}

	raw := "null"
	if v := req.Get("value"); v.Exists() {
		raw = v.Raw
	}
	return bean.write(attr, jolokia.SplitPath(req.Get("path").String()), raw)
}

// exec invokes an operation with the request arguments
func (a *Agent) exec(req gjson.Result) (string, *agentError) {
	name := req.Get("mbean").String()
	op := req.Get("operation").String()
	if name == "" || op == "" {
		return "", errIllegalArgument("exec requires an MBean and an operation")
	}
	bean, ok := a.bean(name)
	if !ok {
		return "", errNoInstance(name)
	}
	fn, ok := bean.operation(op)
	if !ok {
		return "", errIllegalArgument(fmt.Sprintf("No operation %s found on MBean %s", op, name))
	}

	result, err := fn(req.Get("arguments").Array())
	if err != nil {
		return "", errOperation(err)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return "", errOperation(fmt.Errorf("cannot serialize result: %w", err))
	}
	return string(raw), nil
}

// search returns the names of MBeans matching a pattern
func (a *Agent) search(req gjson.Result) (string, *agentError) {
	pattern := req.Get("mbean").String()
	if pattern == "" {
		return "", errIllegalArgument("No MBean pattern given")
	}
	names, err := a.match(pattern)
	if err != nil {
		return "", err
	}
	raw, _ := json.Marshal(names)
	return string(raw), nil
}

// list returns MBean metadata as domain -> properties -> info
func (a *Agent) list(req gjson.Result) (string, *agentError) {
	domains := make(map[string]map[string]string)
	for _, name := range a.names() {
		bean, ok := a.bean(name)
		if !ok {
			continue
		}
		domain, props, found := strings.Cut(name, ":")
		if !found {
			continue
		}
		if domains[domain] == nil {
			domains[domain] = make(map[string]string)
		}
		domains[domain][props] = bean.info()
	}

	rendered := make(map[string]string, len(domains))
	for domain, beans := range domains {
		rendered[domain] = joinObject(beans, sortedKeys(beans))
	}
	return navigate(joinObject(rendered, sortedKeys(rendered)), jolokia.SplitPath(req.Get("path").String()))
}

// version describes the agent
func (a *Agent) version() (string, *agentError) {
	out, err := jolokia.Body{}.
		Set("agent", a.agentVersion).
		Set("protocol", a.protocolVersion).
		SetRaw("config", "{}").
		Set("info.product", "jolokiatest").
		Set("info.vendor", "netascode").
		Set("info.version", a.agentVersion).
		String()
	if err != nil {
		return "", errOperation(err)
	}
	return out, nil
}

// match returns the sorted names matching a glob pattern
func (a *Agent) match(pattern string) ([]string, *agentError) {
	matched := []string{}
	for _, name := range a.names() {
		ok, err := path.Match(pattern, name)
		if err != nil {
			return nil, errIllegalArgument("Invalid MBean pattern " + pattern)
		}
		if ok {
			matched = append(matched, name)
		}
	}
	return matched, nil
}

func isPattern(name string) bool {
	return strings.ContainsAny(name, "*?")
}

// navigate follows unescaped path segments into a JSON value
func navigate(raw string, segments []string) (string, *agentError) {
	if len(segments) == 0 {
		return raw, nil
	}
	v := gjson.Get(raw, jsonPath(segments))
	if !v.Exists() {
		return "", errIllegalArgument("Invalid path " + strings.Join(segments, "/"))
	}
	return v.Raw, nil
}

var jsonPathEscaper = strings.NewReplacer(
	`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`,
	`#`, `\#`, `@`, `\@`, `!`, `\!`, `=`, `\=`, `<`, `\<`, `>`, `\>`,
)

// jsonPath converts segments to a gjson/sjson path
func jsonPath(segments []string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = jsonPathEscaper.Replace(s)
	}
	return strings.Join(escaped, ".")
}

// parseGetPath converts the GET URL form into a request entry
//
// Segments are percent-decoded and then unescaped; inner paths stay in
// escaped form.
func parseGetPath(escapedPath string, query url.Values) (string, *agentError) {
	trimmed := strings.Trim(escapedPath, "/")
	if trimmed == "" {
		return `{"type":"version"}`, nil
	}

	rawParts := strings.Split(trimmed, "/")
	parts := make([]string, len(rawParts))
	for i, p := range rawParts {
		decoded, err := url.PathUnescape(p)
		if err != nil {
			return "", errIllegalArgument("Invalid URL segment " + p)
		}
		parts[i] = decoded
	}

	entry := jolokia.Body{}
	set := func(key string, value any) {
		entry = entry.Set(key, value)
	}
	innerPath := func(from int) {
		if len(parts) > from {
			set("path", strings.Join(parts[from:], "/"))
		}
	}

	typ := parts[0]
	set("type", typ)
	switch typ {
	case "read":
		if len(parts) < 2 {
			return "", errIllegalArgument("read requires an MBean")
		}
		set("mbean", jolokia.UnescapePath(parts[1]))
		if len(parts) > 2 {
			set("attribute", jolokia.UnescapePath(parts[2]))
		}
		innerPath(3)
	case "write":
		if len(parts) < 4 {
			return "", errIllegalArgument("write requires an MBean, an attribute and a value")
		}
		set("mbean", jolokia.UnescapePath(parts[1]))
		set("attribute", jolokia.UnescapePath(parts[2]))
		entry = entry.SetRaw("value", urlArgument(parts[3]))
		innerPath(4)
	case "exec":
		if len(parts) < 3 {
			return "", errIllegalArgument("exec requires an MBean and an operation")
		}
		set("mbean", jolokia.UnescapePath(parts[1]))
		set("operation", jolokia.UnescapePath(parts[2]))
		entry = entry.SetRaw("arguments", "[]")
		for _, arg := range parts[3:] {
			entry = entry.SetRaw("arguments.-1", urlArgument(arg))
		}
	case "search":
		if len(parts) < 2 {
			return "", errIllegalArgument("search requires a pattern")
		}
		set("mbean", jolokia.UnescapePath(parts[1]))
	case "list":
		innerPath(1)
	case "version":
	default:
		return "", errIllegalArgument("Unknown request type: " + typ)
	}

	for key := range query {
		if key == "callback" || key == "mimeType" {
			continue
		}
		set("config."+jsonPathEscaper.Replace(key), query.Get(key))
	}
	out, err := entry.String()
	if err != nil {
		return "", errIllegalArgument("Invalid request: " + err.Error())
	}
	return out, nil
}

// urlArgument converts a GET value into raw JSON
//
// "[null]" is null and `""` the empty string. Valid JSON is taken as is,
// anything else becomes a string.
func urlArgument(segment string) string {
	switch segment {
	case "[null]":
		return "null"
	case `""`:
		return `""`
	}
	value := jolokia.UnescapePath(segment)
	if gjson.Valid(value) {
		return value
	}
	raw, _ := json.Marshal(value)
	return string(raw)
}
