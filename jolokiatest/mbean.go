// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokiatest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Operation implements an MBean operation. Arguments arrive as parsed JSON;
// GET requests deliver non-JSON arguments as strings.
type Operation func(args []gjson.Result) (any, error)

// MBean is an in-memory managed bean
//
// Attribute values are stored as JSON. All methods are safe for concurrent
// use.
type MBean struct {
	mu          sync.RWMutex
	description string
	attributes  map[string]string
	readOnly    map[string]bool
	operations  map[string]Operation
}

// NewMBean creates an empty MBean
//
// Example:
//
//	bean := jolokiatest.NewMBean("Heap statistics").
//	    WithAttribute("HeapMemoryUsage", map[string]int{"used": 1024, "max": 4096}).
//	    WithOperation("gc", func([]gjson.Result) (any, error) { return nil, nil })
func NewMBean(description string) *MBean {
	return &MBean{
		description: description,
		attributes:  make(map[string]string),
		readOnly:    make(map[string]bool),
		operations:  make(map[string]Operation),
	}
}

// WithAttribute adds a writable attribute. It panics when value cannot be
// marshaled to JSON.
func (b *MBean) WithAttribute(name string, value any) *MBean {
	b.setAttribute(name, value, false)
	return b
}

// WithReadOnlyAttribute adds an attribute that rejects writes
func (b *MBean) WithReadOnlyAttribute(name string, value any) *MBean {
	b.setAttribute(name, value, true)
	return b
}

// WithOperation adds an operation
func (b *MBean) WithOperation(name string, fn Operation) *MBean {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.operations[name] = fn
	return b
}

func (b *MBean) setAttribute(name string, value any, readOnly bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		panic(fmt.Sprintf("jolokiatest: attribute %s: %v", name, err))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attributes[name] = string(raw)
	b.readOnly[name] = readOnly
}

// Attribute returns the current value of an attribute
func (b *MBean) Attribute(name string) (gjson.Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	raw, ok := b.attributes[name]
	if !ok {
		return gjson.Result{}, false
	}
	return gjson.Parse(raw), true
}

// attributeRaw returns the stored JSON of an attribute
func (b *MBean) attributeRaw(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	raw, ok := b.attributes[name]
	return raw, ok
}

// allAttributes renders all attributes as a JSON object
func (b *MBean) allAttributes() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return joinObject(b.attributes, sortedKeys(b.attributes))
}

// write stores raw at the inner path of attribute name and returns the
// previous value there ("null" when the path did not exist)
func (b *MBean) write(name string, path []string, raw string) (string, *agentError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.attributes[name]
	if !ok {
		return "", errNoAttribute(name)
	}
	if b.readOnly[name] {
		return "", errReadOnly(name)
	}
	if len(path) == 0 {
		b.attributes[name] = raw
		return cur, nil
	}

	old := "null"
	if v := gjson.Get(cur, jsonPath(path)); v.Exists() {
		old = v.Raw
	}
	updated, err := sjson.SetRaw(cur, jsonPath(path), raw)
	if err != nil {
		return "", errIllegalArgument(fmt.Sprintf("cannot write path %s: %v", strings.Join(path, "/"), err))
	}
	b.attributes[name] = updated
	return old, nil
}

// operation looks up an operation, ignoring a trailing signature such as
// "(long,int)"
func (b *MBean) operation(name string) (Operation, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if fn, ok := b.operations[name]; ok {
		return fn, true
	}
	if i := strings.IndexByte(name, '('); i > 0 {
		fn, ok := b.operations[name[:i]]
		return fn, ok
	}
	return nil, false
}

// info renders the list metadata of the bean
func (b *MBean) info() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	attrs := make(map[string]string, len(b.attributes))
	for name, raw := range b.attributes {
		meta, _ := json.Marshal(map[string]any{
			"type": javaType(gjson.Parse(raw)),
			"rw":   !b.readOnly[name],
			"desc": name,
		})
		attrs[name] = string(meta)
	}
	ops := make(map[string]string, len(b.operations))
	for name := range b.operations {
		ops[name] = fmt.Sprintf(`{"args":[],"ret":"java.lang.Object","desc":%q}`, name)
	}

	desc, _ := json.Marshal(b.description)
	out := `{"desc":` + string(desc)
	if len(attrs) > 0 {
		out += `,"attr":` + joinObject(attrs, sortedKeys(attrs))
	}
	if len(ops) > 0 {
		out += `,"op":` + joinObject(ops, sortedKeys(ops))
	}
	return out + "}"
}

// javaType maps a JSON value to the Java type reported by list
func javaType(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return "java.lang.String"
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Number:
		if strings.ContainsAny(v.Raw, ".eE") {
			return "double"
		}
		return "long"
	case gjson.JSON:
		if v.IsArray() {
			return "[Ljava.lang.Object;"
		}
		return "javax.management.openmbean.CompositeData"
	default:
		return "java.lang.Object"
	}
}

// joinObject builds a JSON object from pre-rendered member values
func joinObject(members map[string]string, keys []string) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		sb.Write(key)
		sb.WriteByte(':')
		sb.WriteString(members[k])
	}
	sb.WriteByte('}')
	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
