// Package http implements the web surface of the workbench: the page, its
// per-session actions, the notification stream and the health endpoints.
//
// Handlers stay thin. Each one resolves the session workbench from the
// request context (see SessionHandler.SessionCtx), calls one workbench
// operation and renders the result as JSON, an HTML fragment or a binary
// attachment. Failures are rendered by errors.ErrorHandler as RFC 7807
// problems whose status follows the error kind.
package http
