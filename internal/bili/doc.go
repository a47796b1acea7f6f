// Package bili is the HTTP client for the platform's feed, live-status and
// user-info endpoints.
//
// All requests share one rate limiter so a large subscription list cannot
// trip the platform's anti-crawler responses (HTTP 412, code -352). Failed
// requests are retried with exponential backoff; errors are classified with
// the services markers so the scheduler can tell transient failures from
// malformed payloads.
package bili
