// Package responses writes the JSON envelopes every handler returns:
// {"data": ...} on success and {"error": {code, message, details}} on failure.
package responses

import (
	"context"
	"encoding/json"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type successBody struct {
	Data any `json:"data"`
}

// APIError is the public shape of a failure.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorBody struct {
	Error APIError `json:"error"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successBody{Data: data})
}

// WriteError maps err to its public envelope. Errors without a code become
// INTERNAL_ERROR so driver and gateway messages never reach the client.
// 5xx responses are logged with the full chain; 4xx only at info.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	coded := pkgerrors.As(err)
	if coded == nil {
		coded = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unhandled error")
	}
	status := coded.Code().HTTPStatus()
	msg, details := coded.Public()

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.LogFields(err))
		if status >= http.StatusInternalServerError {
			logg.Error(ctx, "request.failed", err)
		} else {
			logg.Info(ctx, "request.rejected: "+coded.Error())
		}
	}
	writeJSON(w, status, errorBody{Error: APIError{Code: string(coded.Code()), Message: msg, Details: details}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Handler is an endpoint body that returns its result instead of writing
// it. A zero status means 200.
type Handler func(r *http.Request) (status int, data any, err error)

// Handle adapts h to net/http, sending errors through WriteError and data
// through the success envelope.
func Handle(logg *logger.Logger, h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, data, err := h(r)
		if err != nil {
			WriteError(r.Context(), logg, w, err)
			return
		}
		if status == 0 {
			status = http.StatusOK
		}
		WriteSuccessStatus(w, status, data)
	}
}

// Unavailable reports a handler mounted without its service.
func Unavailable(service string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, service+" unavailable")
}
