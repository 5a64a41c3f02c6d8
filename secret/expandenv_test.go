package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("MARKET_HOST", "market.example")
	t.Setenv("EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{"https://${MARKET_HOST}/api", "https://market.example/api"},
		{"$MARKET_HOST", "market.example"},
		{"price: $$5", "price: $5"},
		{"${EMPTY}x", "x"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		got, err := ExpandEnvStrict(tt.in)
		if err != nil {
			t.Errorf("ExpandEnvStrict(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExpandEnvStrict(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandEnvStrict_Missing(t *testing.T) {
	_, err := ExpandEnvStrict("${STOREFRONT_NOPE_B} ${STOREFRONT_NOPE_A} ${STOREFRONT_NOPE_A}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("error = %v, want ErrMissingEnv", err)
	}
	if !strings.HasSuffix(err.Error(), "STOREFRONT_NOPE_A, STOREFRONT_NOPE_B") {
		t.Errorf("error = %q, want sorted unique names", err)
	}
}
