package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type sessionReleaser interface {
	Release(ctx context.Context, sessionKey string) error
}

// Identity names the owner of a cart. A user id wins over a session key.
type Identity struct {
	UserID     *uuid.UUID
	SessionKey string
}

// ForUser builds an authenticated identity.
func ForUser(userID uuid.UUID) Identity {
	return Identity{UserID: &userID}
}

// ForSession builds an anonymous identity.
func ForSession(sessionKey string) Identity {
	return Identity{SessionKey: sessionKey}
}

// Authenticated reports whether the identity is bound to a user.
func (i Identity) Authenticated() bool {
	return i.UserID != nil && *i.UserID != uuid.Nil
}

func (i Identity) validate() error {
	if i.Authenticated() {
		return nil
	}
	if strings.TrimSpace(i.SessionKey) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	}
	return nil
}

// Service exposes cart operations.
type Service interface {
	Resolve(ctx context.Context, id Identity) (*models.Cart, error)
	AddItem(ctx context.Context, id Identity, input AddItemInput) (*models.CartItem, error)
	UpdateItem(ctx context.Context, id Identity, itemID uuid.UUID, qty int) error
	RemoveItem(ctx context.Context, id Identity, itemID uuid.UUID) error
	View(ctx context.Context, id Identity) (*Summary, error)
	Merge(ctx context.Context, userID uuid.UUID, sessionKey string) error
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products productLoader
	sessions sessionReleaser
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productLoader, sessions sessionReleaser, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session releaser required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		products: products,
		sessions: sessions,
		logg:     logg,
	}, nil
}

// AddItemInput captures a request to put a product into the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	Size      string
	Quantity  int
}

// Resolve returns the cart owned by the identity, creating it on first use.
func (s *service) Resolve(ctx context.Context, id Identity) (*models.Cart, error) {
	if err := id.validate(); err != nil {
		return nil, err
	}
	return resolve(ctx, s.repo, id)
}

func resolve(ctx context.Context, repo CartRepository, id Identity) (*models.Cart, error) {
	cart, err := find(ctx, repo, id)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart = &models.Cart{}
	if id.Authenticated() {
		userID := *id.UserID
		cart.UserID = &userID
	} else {
		key := id.SessionKey
		cart.SessionKey = &key
	}
	created, err := repo.CreateIfAbsent(ctx, cart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	if created {
		return cart, nil
	}
	// a concurrent request created the owner's cart first
	cart, err = find(ctx, repo, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func find(ctx context.Context, repo CartRepository, id Identity) (*models.Cart, error) {
	if id.Authenticated() {
		return repo.FindByUser(ctx, *id.UserID)
	}
	return repo.FindBySession(ctx, id.SessionKey)
}

// AddItem validates the size rules and increments the (product, size) line.
func (s *service) AddItem(ctx context.Context, id Identity, input AddItemInput) (*models.CartItem, error) {
	if err := id.validate(); err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	size, err := normalizeSize(product, input.Size)
	if err != nil {
		return nil, err
	}

	cart, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	var item *models.CartItem
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.LockByID(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		stored, err := repo.IncrementItem(ctx, models.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			Size:      size,
			Quantity:  input.Quantity,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
		}
		item = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func normalizeSize(product *models.Product, requested string) (string, error) {
	if !product.HasSizes() {
		return "", nil
	}
	size := strings.TrimSpace(requested)
	if size == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "select a size").
			WithDetails(map[string]any{"size": "required"})
	}
	canonical := product.AvailableSizes.Canonical(size)
	if canonical == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "size not available").
			WithDetails(map[string]any{"size": size, "available": []string(product.AvailableSizes)})
	}
	return canonical, nil
}

// UpdateItem sets the quantity of a line; zero or less removes it.
func (s *service) UpdateItem(ctx context.Context, id Identity, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return s.RemoveItem(ctx, id, itemID)
	}
	cart, err := s.ownedCart(ctx, id)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.LockByID(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		if _, err := repo.FindItem(ctx, cart.ID, itemID); err != nil {
			return itemLookupError(err)
		}
		if err := repo.SetItemQuantity(ctx, itemID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return nil
	})
}

// RemoveItem deletes a line owned by the identity's cart.
func (s *service) RemoveItem(ctx context.Context, id Identity, itemID uuid.UUID) error {
	cart, err := s.ownedCart(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.repo.FindItem(ctx, cart.ID, itemID); err != nil {
		return itemLookupError(err)
	}
	if err := s.repo.DeleteItem(ctx, cart.ID, itemID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return nil
}

func (s *service) ownedCart(ctx context.Context, id Identity) (*models.Cart, error) {
	if err := id.validate(); err != nil {
		return nil, err
	}
	cart, err := find(ctx, s.repo, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func itemLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
}

// Summary is the priced view of a cart.
type Summary struct {
	CartID uuid.UUID
	Lines  []Line
}

// Line is a cart line priced at the product's current effective price.
type Line struct {
	ItemID      uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Size        string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// Total is the rounded sum of the line totals.
func (s *Summary) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Lines {
		total = total.Add(line.LineTotal)
	}
	return pricing.Round(total)
}

// ItemCount sums quantities across lines.
func (s *Summary) ItemCount() int {
	count := 0
	for _, line := range s.Lines {
		count += line.Quantity
	}
	return count
}

// PricingLines converts the summary into pricing engine input.
func (s *Summary) PricingLines() []pricing.Line {
	out := make([]pricing.Line, 0, len(s.Lines))
	for _, line := range s.Lines {
		out = append(out, pricing.Line{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Size:      line.Size,
		})
	}
	return out
}

// View prices the cart. Lines whose product is gone or inactive are skipped.
func (s *service) View(ctx context.Context, id Identity) (*Summary, error) {
	cart, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	return BuildSummary(ctx, cart.ID, items, s.products)
}

// BuildSummary prices items against the catalog.
func BuildSummary(ctx context.Context, cartID uuid.UUID, items []models.CartItem, products productLoader) (*Summary, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	summary := &Summary{CartID: cartID, Lines: make([]Line, 0, len(items))}
	for _, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok {
			continue
		}
		price := product.EffectivePrice()
		summary.Lines = append(summary.Lines, Line{
			ItemID:      item.ID,
			ProductID:   item.ProductID,
			ProductName: product.Name,
			Size:        item.Size,
			Quantity:    item.Quantity,
			UnitPrice:   price,
			LineTotal:   pricing.Round(price.Mul(decimal.NewFromInt(int64(item.Quantity)))),
		})
	}
	return summary, nil
}

// Merge folds the anonymous cart into the user's cart. Colliding
// (product, size) lines sum their quantities. The anonymous cart is deleted
// and its session key released once the transaction commits.
func (s *service) Merge(ctx context.Context, userID uuid.UUID, sessionKey string) error {
	sessionKey = strings.TrimSpace(sessionKey)
	if userID == uuid.Nil || sessionKey == "" {
		return nil
	}

	merged := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		anon, err := repo.FindBySession(ctx, sessionKey)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load anonymous cart")
		}
		if _, err := repo.LockByID(ctx, anon.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock anonymous cart")
		}

		owned, err := resolve(ctx, repo, ForUser(userID))
		if err != nil {
			return err
		}
		if _, err := repo.LockByID(ctx, owned.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user cart")
		}

		items, err := repo.ListItems(ctx, anon.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list anonymous cart items")
		}
		for _, item := range items {
			if _, err := repo.IncrementItem(ctx, models.CartItem{
				CartID:    owned.ID,
				ProductID: item.ProductID,
				Size:      item.Size,
				Quantity:  item.Quantity,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart item")
			}
		}
		merged = len(items)
		if err := repo.Delete(ctx, anon.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete anonymous cart")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.sessions.Release(ctx, sessionKey); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "cart session release failed: "+err.Error())
	}
	if s.logg != nil && merged > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id": userID.String(),
			"lines":   merged,
		})
		s.logg.Info(logCtx, "cart.merged")
	}
	return nil
}
