package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_order_number"}
	wrapped := fmt.Errorf("insert order: %w", pgErr)

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pg any", err: wrapped, want: true},
		{name: "pg named", err: wrapped, constraint: "ux_orders_order_number", want: true},
		{name: "pg other constraint", err: wrapped, constraint: "ux_payments_payment_id", want: false},
		{name: "pg other code", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "message", err: errors.New(`ERROR: duplicate key value violates unique constraint "ux_cart_items_line"`), constraint: "ux_cart_items_line", want: true},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: orders.order_number"), constraint: "orders.order_number", want: true},
		{name: "unrelated", err: errors.New("connection reset"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err, tt.constraint); got != tt.want {
				t.Fatalf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}
