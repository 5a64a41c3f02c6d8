package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// exerciseStore runs the shared Store contract against s.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, KeyAccessToken); ok || err != nil {
		t.Fatalf("Get(missing) = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	if err := s.Set(ctx, KeyAccessToken, "abc"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, ok, err := s.Get(ctx, KeyAccessToken); v != "abc" || !ok || err != nil {
		t.Errorf("Get() = (%q, %v, %v), want (abc, true, nil)", v, ok, err)
	}

	if err := s.Set(ctx, KeyAccessToken, "def"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if v, _, _ := s.Get(ctx, KeyAccessToken); v != "def" {
		t.Errorf("Get() after overwrite = %q, want def", v)
	}

	if err := s.Delete(ctx, KeyAccessToken); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, KeyAccessToken); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, KeyAccessToken); ok {
		t.Error("key present after Delete")
	}

	if err := s.Set(ctx, "", "x"); err != ErrEmptyKey {
		t.Errorf("Set(\"\") = %v, want ErrEmptyKey", err)
	}

	type cartLine struct {
		Product  int `json:"product"`
		Quantity int `json:"quantity"`
	}
	in := []cartLine{{Product: 4, Quantity: 2}}
	if err := SetJSON(ctx, s, KeyCart, in); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	var out []cartLine
	if ok, err := GetJSON(ctx, s, KeyCart, &out); !ok || err != nil {
		t.Fatalf("GetJSON() = (%v, %v)", ok, err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Errorf("GetJSON() = %+v, want %+v", out, in)
	}

	if err := DeleteAll(ctx, s, KeyCart, KeyVendorID); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if ok, _ := GetJSON(ctx, s, KeyCart, &out); ok {
		t.Error("cart present after DeleteAll")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, mustOpen(t, filepath.Join(t.TempDir(), "state.json")))
}

func TestFileStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	ctx := context.Background()

	s := mustOpen(t, path)
	if err := s.Set(ctx, KeyCustomerID, "17"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	reopened := mustOpen(t, path)
	if v, ok, _ := reopened.Get(ctx, KeyCustomerID); !ok || v != "17" {
		t.Errorf("reopened Get() = (%q, %v), want (17, true)", v, ok)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileStore(path); err == nil {
		t.Error("OpenFileStore() on corrupt file = nil error")
	}
}

func TestGetJSON_DecodeError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Set(ctx, KeyCart, "not json")

	var v []int
	if ok, err := GetJSON(ctx, s, KeyCart, &v); ok || err == nil {
		t.Errorf("GetJSON() = (%v, %v), want (false, error)", ok, err)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("STOREFRONT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOREFRONT_TEST_REDIS_ADDR not set")
	}
	s := NewRedisStore(NewRedisClient(addr), "storefront-test:")
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	exerciseStore(t, s)
}

func mustOpen(t *testing.T, path string) *FileStore {
	t.Helper()
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore() error = %v", err)
	}
	return s
}
