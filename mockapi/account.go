package mockapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pcxmarket/storefront/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	OK         bool   `json:"bool"`
	Msg        string `json:"msg,omitempty"`
	Access     string `json:"access,omitempty"`
	Refresh    string `json:"refresh,omitempty"`
	UserID     int    `json:"user_id,omitempty"`
	Username   string `json:"username,omitempty"`
	CustomerID int    `json:"customer_id,omitempty"`
	VendorID   int    `json:"vendor_id,omitempty"`
	UserType   string `json:"user_type,omitempty"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	users := append([]User(nil), s.users...)
	s.mu.Unlock()

	for _, u := range users {
		if u.Username != req.Username || u.Password != req.Password {
			continue
		}
		pair, err := s.issue(u, time.Now())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		id := identityOf(u)
		writeJSON(w, http.StatusOK, loginResponse{
			OK:         true,
			Access:     pair.Access,
			Refresh:    pair.Refresh,
			UserID:     u.ID,
			Username:   u.Username,
			CustomerID: u.CustomerID,
			VendorID:   u.VendorID,
			UserType:   string(id.Role()),
		})
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{OK: false, Msg: "Invalid username or password!"})
}

type registerRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	Email            string `json:"email"`
	RegistrationType string `json:"registration_type"`
}

// register creates a customer or vendor account. Any type other than
// vendor registers a customer.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Registration failed. Please try again."})
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username and password are required."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == req.Username {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username is already taken."})
			return
		}
	}
	s.nextID++
	u := User{ID: s.nextID, Username: req.Username, Password: req.Password}
	if req.RegistrationType == "vendor" {
		s.nextVendor++
		u.VendorID = s.nextVendor
	} else {
		s.nextCustomer++
		u.CustomerID = s.nextCustomer
	}
	s.users = append(s.users, u)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Registration successful."})
}

// Users returns every account the server accepts logins for.
func (s *Server) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]User(nil), s.users...)
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"bool": true})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		writeError(w, http.StatusBadRequest, "refresh is required")
		return
	}

	id, err := auth.VerifyToken(req.Refresh, s.key)
	if err != nil || id.Claims[auth.ClaimTokenType] != auth.TokenTypeRefresh {
		writeError(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	access, err := auth.IssueToken(*id, auth.TokenTypeAccess, s.key, time.Now(), s.accessTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

// requireIdentity rejects requests without a valid access token.
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		if id.IsAnonymous() || id.Claims[auth.ClaimTokenType] != auth.TokenTypeAccess {
			writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		if strconv.Itoa(id.CustomerID) != chi.URLParam(r, "customerID") {
			writeError(w, http.StatusForbidden, "You do not have permission to perform this action.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireVendor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		if strconv.Itoa(id.VendorID) != chi.URLParam(r, "vendorID") {
			writeError(w, http.StatusForbidden, "You do not have permission to perform this action.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          id.UserID,
		"username":    id.Username,
		"customer_id": id.CustomerID,
		"vendor_id":   id.VendorID,
	})
}

func (s *Server) customerInteraction(w http.ResponseWriter, r *http.Request) {
	var in Interaction
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Product == 0 {
		writeError(w, http.StatusBadRequest, "product is required")
		return
	}
	s.mu.Lock()
	s.interactions = append(s.interactions, in)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, in)
}

// Interactions returns the recorded customer interactions.
func (s *Server) Interactions() []Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Interaction(nil), s.interactions...)
}

func (s *Server) listAddresses(w http.ResponseWriter, r *http.Request) {
	cid := atoi(chi.URLParam(r, "customerID"))
	s.mu.Lock()
	out := append([]Address{}, s.addresses[cid]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createAddress(w http.ResponseWriter, r *http.Request) {
	var a Address
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil || strings.TrimSpace(a.Address) == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	cid := atoi(chi.URLParam(r, "customerID"))

	s.mu.Lock()
	s.nextID++
	a.ID = s.nextID
	a.Customer = cid
	if a.IsDefault {
		s.clearDefaultLocked(cid, a.ID)
	}
	s.addresses[cid] = append(s.addresses[cid], a)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) updateAddress(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	cid := atoi(chi.URLParam(r, "customerID"))
	aid := atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.addresses[cid] {
		if a.ID != aid {
			continue
		}
		current, _ := json.Marshal(a)
		merged := map[string]json.RawMessage{}
		_ = json.Unmarshal(current, &merged)
		for k, v := range patch {
			merged[k] = v
		}
		data, _ := json.Marshal(merged)
		var updated Address
		if err := json.Unmarshal(data, &updated); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		updated.ID, updated.Customer = a.ID, cid
		s.addresses[cid][i] = updated
		if updated.IsDefault {
			s.clearDefaultLocked(cid, updated.ID)
		}
		writeJSON(w, http.StatusOK, updated)
		return
	}
	writeError(w, http.StatusNotFound, "Not found.")
}

// clearDefaultLocked leaves keep as the customer's only default address.
func (s *Server) clearDefaultLocked(cid, keep int) {
	for i := range s.addresses[cid] {
		if s.addresses[cid][i].ID != keep {
			s.addresses[cid][i].IsDefault = false
		}
	}
}

func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	cid := atoi(chi.URLParam(r, "customerID"))
	aid := atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.addresses[cid] {
		if a.ID == aid {
			s.addresses[cid] = append(s.addresses[cid][:i], s.addresses[cid][i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Not found.")
}

func (s *Server) listWishlist(w http.ResponseWriter, r *http.Request) {
	cid := atoi(chi.URLParam(r, "customerID"))
	s.mu.Lock()
	out := append([]WishlistItem{}, s.wishlist[cid]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addWishlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Product int `json:"product"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Product == 0 {
		writeError(w, http.StatusBadRequest, "product is required")
		return
	}
	if _, ok := s.Product(req.Product); !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	cid := atoi(chi.URLParam(r, "customerID"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.wishlist[cid] {
		if it.Product == req.Product {
			writeJSON(w, http.StatusOK, it)
			return
		}
	}
	s.nextID++
	it := WishlistItem{ID: s.nextID, Customer: cid, Product: req.Product, AddedAt: time.Now().UTC().Format(time.RFC3339)}
	s.wishlist[cid] = append(s.wishlist[cid], it)
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) removeWishlist(w http.ResponseWriter, r *http.Request) {
	cid := atoi(chi.URLParam(r, "customerID"))
	wid := atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.wishlist[cid] {
		if it.ID == wid {
			s.wishlist[cid] = append(s.wishlist[cid][:i], s.wishlist[cid][i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Not found.")
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var o Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if len(o.Items) == 0 {
		writeError(w, http.StatusBadRequest, "order_items must not be empty")
		return
	}
	id := auth.IdentityFromContext(r.Context())
	if id.CustomerID == 0 || o.Customer != id.CustomerID {
		writeError(w, http.StatusForbidden, "You do not have permission to perform this action.")
		return
	}
	for _, it := range o.Items {
		if _, ok := s.Product(it.Product); !ok || it.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "invalid order item")
			return
		}
	}

	s.mu.Lock()
	s.nextID++
	o.ID = s.nextID
	if o.Status == "" {
		o.Status = "pending"
	}
	if o.OrderTime == "" {
		o.OrderTime = time.Now().UTC().Format(time.RFC3339)
	}
	s.orders = append(s.orders, o)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	cid := atoi(chi.URLParam(r, "customerID"))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Order{}
	for _, o := range s.orders {
		if o.Customer == cid {
			out = append(out, o)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listVendorProducts(w http.ResponseWriter, r *http.Request) {
	vid := atoi(chi.URLParam(r, "vendorID"))
	s.mu.Lock()
	products := append([]Product(nil), s.products...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, filterProducts(products, func(p Product) bool { return p.Vendor == vid }))
}

const maxUpload = 8 << 20

func (s *Server) createVendorProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "multipart body required")
		return
	}
	p := Product{
		Title:    r.FormValue("title"),
		Detail:   r.FormValue("detail"),
		Price:    r.FormValue("price"),
		Category: atoi(r.FormValue("category")),
		Vendor:   atoi(chi.URLParam(r, "vendorID")),
	}
	if p.Title == "" || p.Price == "" {
		writeError(w, http.StatusBadRequest, "title and price are required")
		return
	}
	if _, hdr, err := r.FormFile("image"); err == nil {
		p.Thumbnail = "/media/product_imgs/" + uuid.NewString() + "-" + hdr.Filename
	}

	s.mu.Lock()
	s.nextID++
	p.ID = s.nextID
	s.products = append(s.products, p)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateVendorProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "multipart body required")
		return
	}
	vid := atoi(chi.URLParam(r, "vendorID"))
	pid := atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		p := &s.products[i]
		if p.ID != pid || p.Vendor != vid {
			continue
		}
		if v := r.FormValue("title"); v != "" {
			p.Title = v
		}
		if v := r.FormValue("detail"); v != "" {
			p.Detail = v
		}
		if v := r.FormValue("price"); v != "" {
			p.Price = v
		}
		if v := r.FormValue("category"); v != "" {
			p.Category = atoi(v)
		}
		if _, hdr, err := r.FormFile("image"); err == nil {
			p.Thumbnail = "/media/product_imgs/" + uuid.NewString() + "-" + hdr.Filename
		}
		writeJSON(w, http.StatusOK, *p)
		return
	}
	writeError(w, http.StatusNotFound, "Not found.")
}

func (s *Server) deleteVendorProduct(w http.ResponseWriter, r *http.Request) {
	vid := atoi(chi.URLParam(r, "vendorID"))
	pid := atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.products {
		if p.ID == pid && p.Vendor == vid {
			s.products = append(s.products[:i], s.products[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Not found.")
}
