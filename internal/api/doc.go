// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It adapts HTTP to the review, study session,
// deck and import services.
package api
