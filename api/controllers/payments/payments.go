package payments

import (
	"net/http"
	"strings"

	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalpayments "github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// shopperEndpoint runs body for an authenticated shopper.
func shopperEndpoint(svc internalpayments.Service, logg *logger.Logger, body func(r *http.Request, s shopper) (int, any, error)) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (int, any, error) {
		if svc == nil {
			return 0, nil, responses.Unavailable("payments service")
		}
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			return 0, nil, err
		}
		return body(r, shopper{svc: svc, userID: userID})
	})
}

// Start opens a payment attempt for an owned order. The body is optional;
// without one the configured default gateway is used. An order that is
// already paid answers 200 instead of 201.
func Start(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return shopperEndpoint(svc, logg, func(r *http.Request, s shopper) (int, any, error) {
		number, err := ordercontrollers.OrderNumberParam(r)
		if err != nil {
			return 0, nil, err
		}
		var body startRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				return 0, nil, err
			}
		}
		result, err := s.svc.Start(r.Context(), internalpayments.StartInput{
			UserID:      s.userID,
			OrderNumber: number,
			Gateway:     strings.ToLower(strings.TrimSpace(body.Gateway)),
		})
		if err != nil {
			return 0, nil, err
		}
		if result.AlreadyPaid {
			return http.StatusOK, newStartResponse(result), nil
		}
		return http.StatusCreated, newStartResponse(result), nil
	})
}

// History lists the shopper's payment attempts, most recent first.
func History(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return shopperEndpoint(svc, logg, func(r *http.Request, s shopper) (int, any, error) {
		params, err := ordercontrollers.PageParams(r)
		if err != nil {
			return 0, nil, err
		}
		result, err := s.svc.History(r.Context(), s.userID, params)
		if err != nil {
			return 0, nil, err
		}
		views := make([]paymentView, len(result.Payments))
		for i := range result.Payments {
			views[i] = newPaymentView(&result.Payments[i])
		}
		return http.StatusOK, historyPage{Payments: views, NextCursor: result.NextCursor}, nil
	})
}

// Detail returns one of the shopper's payment attempts.
func Detail(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return shopperEndpoint(svc, logg, func(r *http.Request, s shopper) (int, any, error) {
		paymentID, err := paymentIDParam(r)
		if err != nil {
			return 0, nil, err
		}
		payment, err := s.svc.Detail(r.Context(), s.userID, paymentID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, newPaymentDetail(payment), nil
	})
}

// Charge submits a tokenized card for gateways that charge server side.
func Charge(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return shopperEndpoint(svc, logg, func(r *http.Request, s shopper) (int, any, error) {
		var body chargeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return 0, nil, err
		}
		result, err := s.svc.Charge(r.Context(), internalpayments.ChargeInput{
			UserID:         s.userID,
			GatewayOrderID: strings.TrimSpace(body.GatewayOrderID),
			SourceID:       strings.TrimSpace(body.SourceID),
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, chargeResponse{
			GatewayOrderID:   result.GatewayOrderID,
			GatewayPaymentID: result.GatewayPaymentID,
			Signature:        result.Signature,
		}, nil
	})
}

// CallbackSuccess reconciles the gateway's success redirect. It is public:
// the signature and the gateway lookup authenticate the request.
func CallbackSuccess(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return callback(svc, logg, func(r *http.Request, p callbackPayload) (*internalpayments.Outcome, error) {
		return svc.Settle(r.Context(), p.success())
	})
}

// CallbackFailure records the gateway's failure redirect.
func CallbackFailure(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return callback(svc, logg, func(r *http.Request, p callbackPayload) (*internalpayments.Outcome, error) {
		return svc.Fail(r.Context(), p.failure())
	})
}

func callback(svc internalpayments.Service, logg *logger.Logger, apply func(*http.Request, callbackPayload) (*internalpayments.Outcome, error)) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (int, any, error) {
		if svc == nil {
			return 0, nil, responses.Unavailable("payments service")
		}
		payload, err := readCallback(r)
		if err != nil {
			return 0, nil, err
		}
		outcome, err := apply(r, payload)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, newOutcomeView(outcome), nil
	})
}
