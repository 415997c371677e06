// Package middleware holds the gin middleware of the billing API: request
// IDs, CORS, security headers, body and rate limits, tracing, HTTP metrics
// and request validation.
package middleware
