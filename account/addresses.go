package account

import (
	"context"
	"net/http"

	"github.com/pcxmarket/storefront/client"
)

// Address is a customer shipping address.
type Address struct {
	ID        int    `json:"id,omitempty"`
	Customer  int    `json:"customer,omitempty"`
	Address   string `json:"address" validate:"required,max=255"`
	City      string `json:"city,omitempty" validate:"max=100"`
	PostCode  string `json:"post_code,omitempty" validate:"max=20"`
	IsDefault bool   `json:"default_address"`
}

// AddressPatch changes selected address fields. Nil fields are left as
// they are.
type AddressPatch struct {
	Address   *string `json:"address,omitempty" validate:"omitnil,min=1,max=255"`
	City      *string `json:"city,omitempty" validate:"omitnil,max=100"`
	PostCode  *string `json:"post_code,omitempty" validate:"omitnil,max=20"`
	IsDefault *bool   `json:"default_address,omitempty"`
}

func (p AddressPatch) empty() bool {
	return p.Address == nil && p.City == nil && p.PostCode == nil && p.IsDefault == nil
}

// Addresses lists the customer's addresses.
func (s *Service) Addresses(ctx context.Context, force bool) ([]Address, error) {
	path, err := s.customerPath(ctx, "/addresses/")
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(ctx, client.Request{
		Path:         path,
		Resource:     ResourceAddresses,
		ForceRefresh: force,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[Address](res)
}

// CreateAddress adds an address for the customer.
func (s *Service) CreateAddress(ctx context.Context, a Address) (*Address, error) {
	if err := client.Validate(a); err != nil {
		return nil, err
	}
	path, err := s.customerPath(ctx, "/addresses/")
	if err != nil {
		return nil, err
	}
	a.ID = 0
	res, err := s.client.Do(ctx, client.Request{Method: http.MethodPost, Path: path, Body: a})
	if err != nil {
		return nil, err
	}
	var out Address
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAddress applies patch to address id.
func (s *Service) UpdateAddress(ctx context.Context, id int, patch AddressPatch) (*Address, error) {
	if patch.empty() {
		return nil, &client.ValidationError{Fields: map[string]string{"address": "nothing to update"}}
	}
	if err := client.Validate(patch); err != nil {
		return nil, err
	}
	base, err := s.customerPath(ctx, "/addresses/")
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(ctx, client.Request{Method: http.MethodPatch, Path: itemPath(base, id), Body: patch})
	if err != nil {
		return nil, err
	}
	var out Address
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAddress removes address id.
func (s *Service) DeleteAddress(ctx context.Context, id int) error {
	base, err := s.customerPath(ctx, "/addresses/")
	if err != nil {
		return err
	}
	_, err = s.client.Do(ctx, client.Request{Method: http.MethodDelete, Path: itemPath(base, id)})
	return err
}
