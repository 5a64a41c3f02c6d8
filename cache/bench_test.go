package cache

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkMemoryCache_Get_Hit(b *testing.B) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()
	_ = c.Set(ctx, "GET:/categories/:", []byte("value"), DefaultExpiration)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get(ctx, "GET:/categories/:")
	}
}

func BenchmarkMemoryCache_Set(b *testing.B) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()
	value := []byte("value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(ctx, fmt.Sprintf("GET:/product/%d/:", i), value, DefaultExpiration)
	}
}

func BenchmarkRequestKeyer_Key(b *testing.B) {
	k := NewRequestKeyer()
	body := map[string]any{"customer": 7, "items": []any{map[string]any{"product": 1, "quantity": 2}}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = k.Key("POST", "/orders/", body)
	}
}
