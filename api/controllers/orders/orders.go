package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const maxOrderNumberLen = 32

// List returns the shopper's orders, most recent first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (int, any, error) {
		if svc == nil {
			return 0, nil, responses.Unavailable("orders service")
		}
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			return 0, nil, err
		}
		params, err := PageParams(r)
		if err != nil {
			return 0, nil, err
		}
		result, err := svc.List(r.Context(), userID, params)
		if err != nil {
			return 0, nil, err
		}

		summaries := make([]OrderSummary, len(result.Orders))
		for i := range result.Orders {
			summaries[i] = newOrderSummary(&result.Orders[i])
		}
		return http.StatusOK, orderPage{Orders: summaries, NextCursor: result.NextCursor}, nil
	})
}

// Detail returns one owned order with its items and payment attempts.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedOrder(svc, logg, internalorders.Service.Detail)
}

// CancelOrder cancels an owned order that has not shipped.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedOrder(svc, logg, internalorders.Service.Cancel)
}

// orderAction is a Service method expression such as Service.Detail.
type orderAction func(svc internalorders.Service, ctx context.Context, userID uuid.UUID, orderNumber string) (*models.Order, error)

func ownedOrder(svc internalorders.Service, logg *logger.Logger, act orderAction) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (int, any, error) {
		if svc == nil {
			return 0, nil, responses.Unavailable("orders service")
		}
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			return 0, nil, err
		}
		number, err := OrderNumberParam(r)
		if err != nil {
			return 0, nil, err
		}
		order, err := act(svc, r.Context(), userID, number)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, NewOrderDetail(order), nil
	})
}

// PageParams reads the limit and cursor query parameters shared by the
// listing endpoints.
func PageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}, nil
}

// OrderNumberParam reads the {orderNumber} route parameter in its
// canonical upper case form.
func OrderNumberParam(r *http.Request) (string, error) {
	number := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "orderNumber")))
	switch {
	case number == "":
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	case len(number) > maxOrderNumberLen:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid order number")
	}
	return number, nil
}
