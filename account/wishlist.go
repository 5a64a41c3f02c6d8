package account

import (
	"context"
	"net/http"

	"github.com/pcxmarket/storefront/client"
	"github.com/pcxmarket/storefront/observe"
	"github.com/pcxmarket/storefront/storage"
)

// WishlistItem links the customer to a product.
type WishlistItem struct {
	ID       int `json:"id"`
	Customer int `json:"customer"`
	Product  int `json:"product"`
}

// Wishlist lists the customer's wishlist and keeps a local copy under
// storage.KeyWishlist.
func (s *Service) Wishlist(ctx context.Context, force bool) ([]WishlistItem, error) {
	path, err := s.customerPath(ctx, "/wishlist/")
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(ctx, client.Request{
		Path:         path,
		Resource:     ResourceWishlist,
		ForceRefresh: force,
	})
	if err != nil {
		return nil, err
	}
	items, err := decodeList[WishlistItem](res)
	if err != nil {
		return nil, err
	}
	s.saveWishlist(ctx, items)
	return items, nil
}

// LocalWishlist returns the wishlist saved by the last fetch or change.
func (s *Service) LocalWishlist(ctx context.Context) ([]WishlistItem, error) {
	items := []WishlistItem{}
	if _, err := storage.GetJSON(ctx, s.store, storage.KeyWishlist, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddToWishlist adds productID to the wishlist. Adding a product twice
// returns the existing item.
func (s *Service) AddToWishlist(ctx context.Context, productID int) (*WishlistItem, error) {
	if productID <= 0 {
		return nil, &client.ValidationError{Fields: map[string]string{"product": "is required"}}
	}
	path, err := s.customerPath(ctx, "/wishlist/")
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   map[string]int{"product": productID},
	})
	if err != nil {
		return nil, err
	}
	var item WishlistItem
	if err := res.Decode(&item); err != nil {
		return nil, err
	}

	if items, err := s.LocalWishlist(ctx); err == nil {
		if !containsItem(items, item.ID) {
			items = append(items, item)
		}
		s.saveWishlist(ctx, items)
	}
	if err := s.TrackWishlistAdd(ctx, productID); err != nil {
		s.logger.Warn(ctx, "tracking wishlist add failed", observe.Field{Key: "error", Value: err.Error()})
	}
	return &item, nil
}

// RemoveFromWishlist deletes wishlist item itemID.
func (s *Service) RemoveFromWishlist(ctx context.Context, itemID int) error {
	base, err := s.customerPath(ctx, "/wishlist/")
	if err != nil {
		return err
	}
	if _, err := s.client.Do(ctx, client.Request{Method: http.MethodDelete, Path: itemPath(base, itemID)}); err != nil {
		return err
	}

	if items, err := s.LocalWishlist(ctx); err == nil {
		kept := items[:0]
		for _, it := range items {
			if it.ID != itemID {
				kept = append(kept, it)
			}
		}
		s.saveWishlist(ctx, kept)
	}
	return nil
}

func (s *Service) saveWishlist(ctx context.Context, items []WishlistItem) {
	if err := storage.SetJSON(ctx, s.store, storage.KeyWishlist, items); err != nil {
		s.logger.Warn(ctx, "saving wishlist failed", observe.Field{Key: "error", Value: err.Error()})
	}
}

func containsItem(items []WishlistItem, id int) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}
