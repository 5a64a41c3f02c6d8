// Package observe provides tracing, metrics and structured logging for
// storefront API requests.
//
// It is a pure instrumentation library: the client hands it a RequestMeta and
// the outcome of each logical fetch and the package turns them into spans,
// counters and JSON log lines.
package observe
