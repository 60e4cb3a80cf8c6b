package testutil

import (
	"context"
	"net/http"

	"autoshield/pkg/domain"
	"autoshield/pkg/requestcontext"
)

// WithCaller adds an authenticated caller to the request context, as the
// bearer-token middleware would.
func WithCaller(req *http.Request, caller domain.Address) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), key, value))
}
