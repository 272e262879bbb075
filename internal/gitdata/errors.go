package gitdata

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
)

const maxErrorBody = 4 << 10

// classifyTransportError maps a failed round trip onto the error taxonomy.
// Deadline expiry is transient; caller cancellation is surfaced as-is so the
// caller's own ctx.Err() check stops retrying.
func classifyTransportError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}
	return ferrors.WrapError(err, ferrors.CategoryNetwork, "git data request failed").
		Retryable().
		WithContext("operation", op).
		Build()
}

// classifyResponse maps a non-2xx response onto the error taxonomy.
func (c *Client) classifyResponse(resp *http.Response, op string) error {
	msg := resp.Status
	if body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); err == nil {
		var apiErr apiErrorBody
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
	}

	status := resp.StatusCode
	switch {
	case status == http.StatusTooManyRequests || (status == http.StatusForbidden && isRateLimited(resp.Header)):
		return ferrors.RateLimitedError("git data API rate limit exceeded").
			WithRetryAfter(c.retryAfter(resp.Header)).
			WithContext("operation", op).
			WithContext("status", status).
			WithContext("api_message", msg).
			Build()
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ferrors.AuthError("git data API rejected credentials").
			WithContext("operation", op).
			WithContext("status", status).
			WithContext("api_message", msg).
			Build()
	case status == http.StatusNotFound:
		return ferrors.NotFoundError("repository, branch or object not found").
			WithContext("operation", op).
			WithContext("api_message", msg).
			Build()
	case status >= 500:
		return ferrors.NetworkError("git data API server error").
			WithContext("operation", op).
			WithContext("status", status).
			WithContext("api_message", msg).
			Build()
	default:
		return ferrors.ValidationError("git data API rejected request").
			WithContext("operation", op).
			WithContext("status", status).
			WithContext("api_message", msg).
			Build()
	}
}

func isRateLimited(h http.Header) bool {
	return h.Get("X-RateLimit-Remaining") == "0" || h.Get("Retry-After") != ""
}

// retryAfter prefers Retry-After seconds and falls back to the X-RateLimit-Reset epoch.
func (c *Client) retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(c.now()); d > 0 {
				return d
			}
		}
	}
	return 0
}
