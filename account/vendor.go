package account

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pcxmarket/storefront/catalog"
	"github.com/pcxmarket/storefront/client"
)

// ProductInput is a vendor product upload.
type ProductInput struct {
	Title    string        `json:"title" validate:"required,max=200"`
	Detail   string        `json:"detail" validate:"max=2000"`
	Price    catalog.Price `json:"price" validate:"gt=0"`
	Category int           `json:"category" validate:"gt=0"`

	// Image is sent as the "image" file part when set.
	Image *client.File `json:"-"`
}

// ProductPatch changes selected product fields. Zero fields are left as
// they are.
type ProductPatch struct {
	Title    string        `json:"title" validate:"max=200"`
	Detail   string        `json:"detail" validate:"max=2000"`
	Price    catalog.Price `json:"price" validate:"gte=0"`
	Category int           `json:"category" validate:"gte=0"`
	Image    *client.File  `json:"-"`
}

func (in ProductInput) form() *client.Form {
	return productForm(in.Title, in.Detail, in.Price, in.Category, in.Image)
}

func (p ProductPatch) form() *client.Form {
	return productForm(p.Title, p.Detail, p.Price, p.Category, p.Image)
}

func productForm(title, detail string, price catalog.Price, category int, image *client.File) *client.Form {
	f := &client.Form{Fields: map[string]string{}}
	if title != "" {
		f.Fields["title"] = title
	}
	if detail != "" {
		f.Fields["detail"] = detail
	}
	if price > 0 {
		f.Fields["price"] = price.String()
	}
	if category > 0 {
		f.Fields["category"] = strconv.Itoa(category)
	}
	if image != nil {
		img := *image
		img.Field = "image"
		f.Files = append(f.Files, img)
	}
	return f
}

// VendorProducts lists the logged-in vendor's products.
func (s *Service) VendorProducts(ctx context.Context, force bool) ([]catalog.Product, error) {
	path, err := s.vendorPath(ctx, "/products/")
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(ctx, client.Request{
		Path:         path,
		Resource:     ResourceVendorProducts,
		ForceRefresh: force,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[catalog.Product](res)
}

// CreateProduct uploads a new product as multipart form data.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*catalog.Product, error) {
	if err := client.Validate(in); err != nil {
		return nil, err
	}
	path, err := s.vendorPath(ctx, "/products/")
	if err != nil {
		return nil, err
	}
	return s.sendProduct(ctx, http.MethodPost, path, in.form())
}

// UpdateProduct changes product id.
func (s *Service) UpdateProduct(ctx context.Context, id int, patch ProductPatch) (*catalog.Product, error) {
	if err := client.Validate(patch); err != nil {
		return nil, err
	}
	form := patch.form()
	if len(form.Fields) == 0 && len(form.Files) == 0 {
		return nil, &client.ValidationError{Fields: map[string]string{"product": "nothing to update"}}
	}
	base, err := s.vendorPath(ctx, "/products/")
	if err != nil {
		return nil, err
	}
	return s.sendProduct(ctx, http.MethodPatch, itemPath(base, id), form)
}

func (s *Service) sendProduct(ctx context.Context, method, path string, form *client.Form) (*catalog.Product, error) {
	res, err := s.client.Do(ctx, client.Request{Method: method, Path: path, Form: form})
	if err != nil {
		return nil, err
	}
	var p catalog.Product
	if err := res.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct removes product id.
func (s *Service) DeleteProduct(ctx context.Context, id int) error {
	base, err := s.vendorPath(ctx, "/products/")
	if err != nil {
		return err
	}
	_, err = s.client.Do(ctx, client.Request{Method: http.MethodDelete, Path: itemPath(base, id)})
	return err
}
