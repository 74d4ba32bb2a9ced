package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodePolicies(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
	}{
		{CodeValidation, http.StatusBadRequest, false},
		{CodeUnauthorized, http.StatusUnauthorized, false},
		{CodeNotFound, http.StatusNotFound, false},
		{CodeConflict, http.StatusConflict, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, false},
		{CodeEmptyCart, http.StatusUnprocessableEntity, false},
		{CodePaymentInit, http.StatusBadGateway, true},
		{CodeSignature, http.StatusBadRequest, false},
		{CodeDependency, http.StatusServiceUnavailable, true},
		{CodeInternal, http.StatusInternalServerError, true},
		{"SOMETHING_ELSE", http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.code.HTTPStatus(), tt.code)
		assert.Equal(t, tt.retryable, tt.code.Retryable(), tt.code)
	}
}

func TestPublicHidesInternalsWhereRequired(t *testing.T) {
	msg, details := New(CodeValidation, "quantity must be positive").WithDetails(map[string]string{"quantity": "min"}).Public()
	assert.Equal(t, "quantity must be positive", msg)
	assert.Equal(t, map[string]string{"quantity": "min"}, details)

	msg, details = New(CodeSignature, "hmac mismatch for pay_123").WithDetails("secret").Public()
	assert.Equal(t, "payment signature verification failed", msg)
	assert.Nil(t, details)

	msg, _ = Wrap(CodeInternal, stderrors.New("nil pointer"), "settle").Public()
	assert.Equal(t, "internal server error", msg)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("gateway timeout")
	err := Wrap(CodeDependency, cause, "fetch payment")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: fetch payment: gateway timeout", err.Error())
	assert.Equal(t, "NOT_FOUND: order", New(CodeNotFound, "order").Error())
}

func TestAsAndIsCodeFollowWrapping(t *testing.T) {
	outer := fmt.Errorf("settle: %w", New(CodeSignature, "bad signature"))
	require.NotNil(t, As(outer))
	assert.True(t, IsCode(outer, CodeSignature))
	assert.False(t, IsCode(outer, CodeNotFound))
	assert.False(t, IsCode(stderrors.New("plain"), CodeInternal))
	assert.Nil(t, As(nil))
}

func TestLogFields(t *testing.T) {
	pg := &pgconn.PgError{Code: "23505", ConstraintName: "ux_payments_order_completed", TableName: "payments"}
	err := Wrap(CodeConflict, fmt.Errorf("insert: %w", pg), "complete payment").WithDetails(map[string]any{"step": "mark_completed"})

	fields := LogFields(err)
	assert.Equal(t, CodeConflict, fields["error_code"])
	assert.Equal(t, "mark_completed", fields["step"])
	assert.Equal(t, "23505", fields["pg_code"])
	assert.Equal(t, "ux_payments_order_completed", fields["pg_constraint"])
	assert.NotContains(t, fields, "pg_detail")
	assert.Len(t, fields["error_chain"], 3)

	assert.Empty(t, LogFields(nil))
}
