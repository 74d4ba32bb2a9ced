package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
)

type cartLine struct {
	ItemID      uuid.UUID       `json:"item_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type cartView struct {
	CartID    uuid.UUID     `json:"cart_id"`
	Items     []cartLine    `json:"items"`
	ItemCount int           `json:"item_count"`
	Summary   pricing.Quote `json:"summary"`
}

func newCartView(summary *cartsvc.Summary, policy pricing.Policy) cartView {
	view := cartView{
		CartID:    summary.CartID,
		Items:     make([]cartLine, 0, len(summary.Lines)),
		ItemCount: summary.ItemCount(),
		Summary:   policy.Quote(summary.PricingLines()),
	}
	for _, line := range summary.Lines {
		view.Items = append(view.Items, cartLine{
			ItemID:      line.ItemID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Size:        line.Size,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return view
}
