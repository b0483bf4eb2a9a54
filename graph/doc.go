// Package graph is the request pipeline for Microsoft Graph.
//
// A Client composes a ResourceConfig (path template plus slot values), a
// credential, an optional body, and OData query modifiers into an HTTP
// call. Every request passes through an ordered policy chain:
// authentication, default headers, throttle-aware retry (429/503 with
// Retry-After), exponential backoff retry (502/504 and transport errors),
// optional rate limiting, and the terminal transport.
//
// Service failures with the Graph error envelope surface as *Error;
// non-envelope failures as *UnparsedError; connection-level failures as
// *TransportError.
package graph
