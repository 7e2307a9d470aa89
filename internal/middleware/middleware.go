// Package middleware holds the Echo middleware of the HTTP transport:
// request ids, the request-scoped logger, New Relic tracing, optional Clerk
// authentication, request logging, CORS, panic recovery and the global error
// handler.
package middleware
