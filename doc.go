// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package jolokia provides a simple API for accessing JMX MBeans through a
// Jolokia agent (JMX over HTTP/JSON).
//
// The library has two layers. Client is the protocol client: it sends
// read, write, exec, search, list and version requests, alone or as a batch,
// and handles authentication, TLS, retries with backoff and logging. Simple
// is a convenience facade over any Transport that takes short argument lists
// and unwraps a response into its bare value.
//
// # Quick Start
//
//	client, err := jolokia.NewClient(
//	    "http://localhost:8778/jolokia",
//	    jolokia.Username("jolokia"),
//	    jolokia.Password("secret"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	ctx := context.Background()
//	simple := jolokia.NewSimple(client)
//
//	// Read a nested value of an attribute
//	used, err := simple.GetAttribute(ctx, "java.lang:type=Memory",
//	    jolokia.ReadArgs{Attribute: "HeapMemoryUsage", Path: jolokia.RawPath("used")})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Heap used:", used.Int())
//
//	// Invoke an operation
//	_, err = simple.Execute(ctx, "java.lang:type=Memory", "gc", nil)
//
// # Paths
//
// Inner paths navigate into composite values. RawPath is sent verbatim, while
// PathSegments escapes each segment so it may contain slashes:
//
//	jolokia.PathSegments("java.lang", "type=Memory") // "java.lang/type=Memory"
//	jolokia.PathSegments("a/b", "c")                 // "a!/b/c"
//
// # Batches and Callbacks
//
// Client.Batch sends several requests in one HTTP call. When response
// handlers are registered the entries are dispatched to them and the call
// returns NoResult:
//
//	_, err := client.Batch(ctx, reqs, jolokia.NewReq(
//	    jolokia.OnResponse(func(r jolokia.Response, i int) { ... }),
//	    jolokia.OnError(func(r jolokia.Response, i int) { ... }),
//	))
//
// # Error Handling
//
// Failures reported by the agent are returned as *JolokiaError, whose Error()
// is the agent's message. Non-200 HTTP answers become *HTTPError. HTTP 429,
// 502, 503, 504 and network timeouts are retried with exponential backoff.
//
// # Thread Safety
//
// Client and Simple are safe for concurrent use. Options are built per call
// and never shared.
//
// # References
//
//   - Jolokia protocol: https://jolokia.org/reference/html/manual/jolokia_protocol.html
//   - gjson: https://github.com/tidwall/gjson
//   - sjson: https://github.com/tidwall/sjson
package jolokia
