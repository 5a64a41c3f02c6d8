// Package cart keeps the shopping cart in a storage.Store under
// storage.KeyCart. The cart is loaded on first use and saved after every
// change.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pcxmarket/storefront/catalog"
	"github.com/pcxmarket/storefront/observe"
	"github.com/pcxmarket/storefront/storage"
)

var (
	// ErrInvalidProduct is returned for products that cannot be bought,
	// such as placeholders.
	ErrInvalidProduct = errors.New("cart: invalid product")

	// ErrInvalidQuantity is returned by Add for a quantity below one.
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
)

// Item is one cart line.
type Item struct {
	ProductID int           `json:"product_id"`
	Title     string        `json:"title"`
	Price     catalog.Price `json:"price"`
	Thumbnail string        `json:"thumbnail,omitempty"`
	Quantity  int           `json:"quantity"`
}

// Subtotal returns price times quantity.
func (it Item) Subtotal() catalog.Price {
	return it.Price.Times(it.Quantity)
}

// Totals summarizes the cart.
type Totals struct {
	Items  int           `json:"items"`
	Amount catalog.Price `json:"amount"`
}

// Tracker records cart additions. account.Service implements it.
type Tracker interface {
	TrackCartAdd(ctx context.Context, productID int) error
}

// Option configures a Cart.
type Option func(*Cart)

// WithTracker reports every Add to t.
func WithTracker(t Tracker) Option {
	return func(c *Cart) {
		c.tracker = t
	}
}

// WithLogger sets the logger used for tracking failures.
func WithLogger(l observe.Logger) Option {
	return func(c *Cart) {
		if l != nil {
			c.logger = l
		}
	}
}

// Cart is a persisted shopping cart. It is safe for concurrent use.
type Cart struct {
	store   storage.Store
	tracker Tracker
	logger  observe.Logger

	mu     sync.Mutex
	items  []Item
	loaded bool
}

// New returns the cart stored in store.
func New(store storage.Store, opts ...Option) *Cart {
	c := &Cart{store: store, logger: observe.NopLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cart) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	var items []Item
	if _, err := storage.GetJSON(ctx, c.store, storage.KeyCart, &items); err != nil {
		return err
	}
	c.items, c.loaded = items, true
	return nil
}

func (c *Cart) saveLocked(ctx context.Context, items []Item) error {
	if err := storage.SetJSON(ctx, c.store, storage.KeyCart, items); err != nil {
		return fmt.Errorf("cart: save: %w", err)
	}
	c.items = items
	return nil
}

// Add puts quantity units of p in the cart, merging with an existing line.
func (c *Cart) Add(ctx context.Context, p catalog.Product, quantity int) error {
	if p.ID <= 0 || p.Placeholder {
		return ErrInvalidProduct
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	err := c.addLocked(ctx, p, quantity)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if c.tracker != nil {
		if err := c.tracker.TrackCartAdd(ctx, p.ID); err != nil {
			c.logger.Warn(ctx, "tracking cart add failed",
				observe.Field{Key: "product_id", Value: p.ID},
				observe.Field{Key: "error", Value: err.Error()})
		}
	}
	return nil
}

func (c *Cart) addLocked(ctx context.Context, p catalog.Product, quantity int) error {
	if err := c.loadLocked(ctx); err != nil {
		return err
	}
	items := append([]Item(nil), c.items...)
	for i := range items {
		if items[i].ProductID == p.ID {
			items[i].Quantity += quantity
			return c.saveLocked(ctx, items)
		}
	}
	items = append(items, Item{
		ProductID: p.ID,
		Title:     p.Title,
		Price:     p.Price,
		Thumbnail: p.Thumbnail,
		Quantity:  quantity,
	})
	return c.saveLocked(ctx, items)
}

// Remove drops the line for productID. Removing a missing product is a
// no-op.
func (c *Cart) Remove(ctx context.Context, productID int) error {
	return c.UpdateQuantity(ctx, productID, 0)
}

// UpdateQuantity sets the quantity for productID. A quantity of zero or
// less removes the line.
func (c *Cart) UpdateQuantity(ctx context.Context, productID, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return err
	}

	items := make([]Item, 0, len(c.items))
	found := false
	for _, it := range c.items {
		if it.ProductID != productID {
			items = append(items, it)
			continue
		}
		found = true
		if quantity > 0 {
			it.Quantity = quantity
			items = append(items, it)
		}
	}
	if !found {
		return nil
	}
	return c.saveLocked(ctx, items)
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Delete(ctx, storage.KeyCart); err != nil {
		return fmt.Errorf("cart: clear: %w", err)
	}
	c.items, c.loaded = nil, true
	return nil
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items(ctx context.Context) ([]Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	return append([]Item{}, c.items...), nil
}

// Totals returns the number of units and the amount due.
func (c *Cart) Totals(ctx context.Context) (Totals, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return Totals{}, err
	}
	var t Totals
	subtotals := make([]catalog.Price, 0, len(items))
	for _, it := range items {
		t.Items += it.Quantity
		subtotals = append(subtotals, it.Subtotal())
	}
	t.Amount = catalog.Sum(subtotals...)
	return t, nil
}
