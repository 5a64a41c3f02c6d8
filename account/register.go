package account

import (
	"context"
	"net/http"

	"github.com/pcxmarket/storefront/client"
	"github.com/pcxmarket/storefront/observe"
)

// Registration types.
const (
	RegisterCustomer = "customer"
	RegisterVendor   = "vendor"
)

// Registration is a sign-up request. An empty Type registers a customer.
type Registration struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Type      string `json:"registration_type" validate:"omitempty,oneof=customer vendor"`
	FirstName string `json:"firstname,omitempty" validate:"max=150"`
	LastName  string `json:"lastname,omitempty" validate:"max=150"`
	Contact   string `json:"contact,omitempty" validate:"max=50"`
}

// Register creates an account. It does not log in.
func (s *Service) Register(ctx context.Context, r Registration) error {
	if r.Type == "" {
		r.Type = RegisterCustomer
	}
	if err := client.Validate(r); err != nil {
		return err
	}
	if _, err := s.client.Do(ctx, client.Request{
		Method:   http.MethodPost,
		Path:     PathRegister,
		Body:     r,
		SkipAuth: true,
	}); err != nil {
		return err
	}
	s.logger.Info(ctx, "registered",
		observe.Field{Key: "username", Value: r.Username},
		observe.Field{Key: "registration_type", Value: r.Type})
	return nil
}
