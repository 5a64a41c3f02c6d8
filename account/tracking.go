package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pcxmarket/storefront/client"
)

type interaction struct {
	Customer        int  `json:"customer"`
	Product         int  `json:"product"`
	Viewed          bool `json:"viewed,omitempty"`
	ViewCount       int  `json:"view_count,omitempty"`
	AddedToCart     bool `json:"added_to_cart,omitempty"`
	AddedToWishlist bool `json:"added_to_wishlist,omitempty"`
}

type statistics struct {
	ViewCount     int `json:"view_count_increment,omitempty"`
	CartAddCount  int `json:"cart_add_count_increment,omitempty"`
	WishlistCount int `json:"wishlist_add_count_increment,omitempty"`
}

// TrackView records that the current user viewed productID.
func (s *Service) TrackView(ctx context.Context, productID int) error {
	return s.track(ctx, productID,
		interaction{Viewed: true, ViewCount: 1},
		statistics{ViewCount: 1})
}

// TrackCartAdd records that productID was added to the cart.
func (s *Service) TrackCartAdd(ctx context.Context, productID int) error {
	return s.track(ctx, productID,
		interaction{AddedToCart: true},
		statistics{CartAddCount: 1})
}

// TrackWishlistAdd records that productID was added to the wishlist.
func (s *Service) TrackWishlistAdd(ctx context.Context, productID int) error {
	return s.track(ctx, productID,
		interaction{AddedToWishlist: true},
		statistics{WishlistCount: 1})
}

// track posts a customer interaction when a customer is logged in and
// bumps the anonymous product statistics either way. Both calls are
// attempted; their errors are joined.
func (s *Service) track(ctx context.Context, productID int, in interaction, stats statistics) error {
	if productID <= 0 {
		return fmt.Errorf("account: invalid product id %d", productID)
	}

	var errs []error
	customerID, err := s.CustomerID(ctx)
	switch {
	case err == nil:
		in.Customer, in.Product = customerID, productID
		if _, err := s.client.Do(ctx, client.Request{Method: http.MethodPost, Path: PathInteractions, Body: in}); err != nil {
			errs = append(errs, fmt.Errorf("interaction: %w", err))
		}
	case !errors.Is(err, ErrAuthRequired):
		errs = append(errs, err)
	}

	_, err = s.client.Do(ctx, client.Request{
		Method:   http.MethodPatch,
		Path:     "/product-statistics/" + strconv.Itoa(productID) + "/",
		Body:     stats,
		SkipAuth: true,
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("statistics: %w", err))
	}
	return errors.Join(errs...)
}
