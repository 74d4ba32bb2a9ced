package controllers

import (
	"net/http"

	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const maxNotesLen = 500

// checkoutRequest is the shipping form plus the chosen payment method.
type checkoutRequest struct {
	checkout.Shipping
	PaymentMethod string `json:"payment_method" validate:"required"`
	Notes         string `json:"notes" validate:"max=500"`
}

type checkoutDefaultsResponse struct {
	Shipping      checkout.Shipping   `json:"shipping"`
	HasSaved      bool                `json:"has_saved_address"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
}

// CheckoutDefaults pre-fills the checkout form from the saved address.
func CheckoutDefaults(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (int, any, error) {
		if svc == nil {
			return 0, nil, responses.Unavailable("orders service")
		}
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			return 0, nil, err
		}
		d, err := svc.Defaults(r.Context(), userID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, checkoutDefaultsResponse{Shipping: d.Shipping, HasSaved: d.HasSaved, PaymentMethod: d.PaymentMethod}, nil
	})
}

// Checkout turns the shopper's cart into a pending order.
func Checkout(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (int, any, error) {
		if svc == nil {
			return 0, nil, responses.Unavailable("orders service")
		}
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			return 0, nil, err
		}
		var form checkoutRequest
		if err := validators.DecodeJSONBody(r, &form); err != nil {
			return 0, nil, err
		}
		method, err := enums.ParsePaymentMethod(form.PaymentMethod)
		if err != nil {
			return 0, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
				WithDetails(map[string]string{"payment_method": "unsupported payment method"})
		}

		order, err := svc.Materialize(r.Context(), orders.MaterializeInput{
			UserID:        userID,
			Shipping:      form.Shipping,
			PaymentMethod: method,
			Notes:         validators.SanitizeString(form.Notes, maxNotesLen),
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, ordercontrollers.NewOrderDetail(order), nil
	})
}
