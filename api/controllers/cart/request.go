package cart

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Size      string `json:"size" validate:"max=16"`
	Quantity  int    `json:"quantity" validate:"min=0,max=99"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0,max=99"`
}

func (r addItemRequest) toInput() (cartsvc.AddItemInput, error) {
	productID, err := uuid.Parse(strings.TrimSpace(r.ProductID))
	if err != nil {
		return cartsvc.AddItemInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	return cartsvc.AddItemInput{
		ProductID: productID,
		Size:      strings.TrimSpace(r.Size),
		Quantity:  r.Quantity,
	}, nil
}

// identityFromRequest prefers the authenticated user over the anonymous key.
func identityFromRequest(r *http.Request) (cartsvc.Identity, error) {
	if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return cartsvc.Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
		}
		return cartsvc.ForUser(userID), nil
	}
	key := middleware.CartSessionFromContext(r.Context())
	if key == "" {
		return cartsvc.Identity{}, pkgerrors.New(pkgerrors.CodeValidation, "cart session required")
	}
	return cartsvc.ForSession(key), nil
}

func itemIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "itemId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	itemID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id")
	}
	return itemID, nil
}
