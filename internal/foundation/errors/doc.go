// Package errors provides foundational, type-safe error primitives used across notesync.
//
// This package contains classified error types and helpers for robust error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (auth, conflict, network, rate_limit, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - RetryStrategy: Retry behavior (never, backoff, rate limit, fresh read, user action)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLI adapter for exit codes and error presentation
//
// Example usage:
//
//	err := errors.RateLimitedError("secondary rate limit").
//		WithRetryAfter(30 * time.Second).
//		WithContext("endpoint", "/git/blobs").
//		WithCause(originalErr).
//		Build()
package errors
