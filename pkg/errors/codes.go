package errors

import "net/http"

// Code is the stable machine-readable error identifier returned to clients.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeEmptyCart     Code = "EMPTY_CART"
	CodePaymentInit   Code = "PAYMENT_INIT_FAILED"
	CodeSignature     Code = "SIGNATURE_INVALID"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// policy says how a code surfaces over HTTP. ownMessage lets the caller's
// message replace the generic one; details lets Details reach the body.
type policy struct {
	status     int
	generic    string
	ownMessage bool
	details    bool
	retryable  bool
}

var policies = map[Code]policy{
	CodeValidation:    {status: http.StatusBadRequest, generic: "validation failed", ownMessage: true, details: true},
	CodeUnauthorized:  {status: http.StatusUnauthorized, generic: "authentication required", ownMessage: true},
	CodeForbidden:     {status: http.StatusForbidden, generic: "access denied", ownMessage: true},
	CodeNotFound:      {status: http.StatusNotFound, generic: "resource not found", ownMessage: true},
	CodeConflict:      {status: http.StatusConflict, generic: "conflict detected", ownMessage: true, details: true},
	CodeStateConflict: {status: http.StatusUnprocessableEntity, generic: "state transition disallowed", ownMessage: true, details: true},
	CodeIdempotency:   {status: http.StatusConflict, generic: "idempotency key reused", ownMessage: true, details: true},
	CodeEmptyCart:     {status: http.StatusUnprocessableEntity, generic: "cart is empty"},
	CodePaymentInit:   {status: http.StatusBadGateway, generic: "payment could not be initiated", details: true, retryable: true},
	CodeSignature:     {status: http.StatusBadRequest, generic: "payment signature verification failed"},
	CodeDependency:    {status: http.StatusServiceUnavailable, generic: "dependency unavailable", details: true, retryable: true},
	CodeInternal:      {status: http.StatusInternalServerError, generic: "internal server error", retryable: true},
}

func (c Code) policy() policy {
	if p, ok := policies[c]; ok {
		return p
	}
	return policies[CodeInternal]
}

// HTTPStatus maps unknown codes to 500.
func (c Code) HTTPStatus() int { return c.policy().status }

// Retryable reports whether a client may repeat the request unchanged.
func (c Code) Retryable() bool { return c.policy().retryable }

// Public returns the message and details a client may see for e.
func (e *Error) Public() (string, any) {
	p := e.Code().policy()
	msg := p.generic
	if p.ownMessage && e.Message() != "" {
		msg = e.Message()
	}
	if !p.details {
		return msg, nil
	}
	return msg, e.Details()
}
