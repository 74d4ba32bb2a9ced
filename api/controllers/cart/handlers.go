package cart

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Every cart endpoint answers with the repriced cart, so the client never
// has to refetch after a change.

// cartEndpoint resolves the shopper or guest identity, runs change (when
// set) and renders the resulting cart with status.
func cartEndpoint(svc cartsvc.Service, policy pricing.Policy, logg *logger.Logger, status int, change func(r *http.Request, id cartsvc.Identity) error) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (int, any, error) {
		if svc == nil {
			return 0, nil, responses.Unavailable("cart service")
		}
		id, err := identityFromRequest(r)
		if err != nil {
			return 0, nil, err
		}
		if change != nil {
			if err := change(r, id); err != nil {
				return 0, nil, err
			}
		}
		summary, err := svc.View(r.Context(), id)
		if err != nil {
			return 0, nil, err
		}
		return status, newCartView(summary, policy), nil
	})
}

func CartFetch(svc cartsvc.Service, policy pricing.Policy, logg *logger.Logger) http.HandlerFunc {
	return cartEndpoint(svc, policy, logg, http.StatusOK, nil)
}

// CartAddItem adds a product, or increments its (product, size) line.
func CartAddItem(svc cartsvc.Service, policy pricing.Policy, logg *logger.Logger) http.HandlerFunc {
	return cartEndpoint(svc, policy, logg, http.StatusCreated, func(r *http.Request, id cartsvc.Identity) error {
		var body addItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		input, err := body.toInput()
		if err != nil {
			return err
		}
		_, err = svc.AddItem(r.Context(), id, input)
		return err
	})
}

// CartUpdateItem sets a line quantity. Zero removes the line.
func CartUpdateItem(svc cartsvc.Service, policy pricing.Policy, logg *logger.Logger) http.HandlerFunc {
	return cartEndpoint(svc, policy, logg, http.StatusOK, func(r *http.Request, id cartsvc.Identity) error {
		itemID, err := itemIDParam(r)
		if err != nil {
			return err
		}
		var body updateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return err
		}
		return svc.UpdateItem(r.Context(), id, itemID, *body.Quantity)
	})
}

func CartRemoveItem(svc cartsvc.Service, policy pricing.Policy, logg *logger.Logger) http.HandlerFunc {
	return cartEndpoint(svc, policy, logg, http.StatusOK, func(r *http.Request, id cartsvc.Identity) error {
		itemID, err := itemIDParam(r)
		if err != nil {
			return err
		}
		return svc.RemoveItem(r.Context(), id, itemID)
	})
}
