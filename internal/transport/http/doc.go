// Package http contains the HTTP handlers for the rent roll API.
//
// Handlers are thin adapters over the service layer: they decode and
// validate requests, call the matching service method, and render the
// response with chi's render package. Failures are returned as APIError
// values with stable error codes so clients can branch on them.
//
// Routes are registered by the application container, not here.
package http
