package handlers

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/club-booking-api/internal/apperr"
	"github.com/gdg-garage/club-booking-api/internal/auth"
)

// httpError turns a domain error into a huma response error. Metadata is
// reported as error details so clients can act on it (the conflicting slot,
// the current registration count). Anything else is logged and hidden.
func httpError(err error) error {
	code := apperr.CodeOf(err)
	if code == apperr.CodeUnknown || code == apperr.CodeTransientNotification {
		log.Printf("Request failed: %v", err)
		return huma.Error500InternalServerError("Internal server error")
	}

	meta := apperr.MetadataOf(err)
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	details := make([]error, 0, len(keys)+1)
	details = append(details, &huma.ErrorDetail{Location: "code", Value: string(code)})
	for _, k := range keys {
		details = append(details, &huma.ErrorDetail{Location: k, Value: meta[k]})
	}

	msg := err.Error()
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		msg = domainErr.Message
	}
	return huma.NewError(code.HTTPStatus(), msg, details...)
}

func requirePrincipal(ctx context.Context) (auth.Principal, error) {
	p, ok := auth.FromContext(ctx)
	if !ok {
		return auth.Principal{}, huma.Error401Unauthorized("Unauthorized")
	}
	return p, nil
}

func optionalPrincipal(ctx context.Context) *auth.Principal {
	if p, ok := auth.FromContext(ctx); ok {
		return &p
	}
	return nil
}
