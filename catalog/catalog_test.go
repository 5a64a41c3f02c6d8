package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pcxmarket/storefront/auth"
	"github.com/pcxmarket/storefront/client"
	"github.com/pcxmarket/storefront/mockapi"
	"github.com/pcxmarket/storefront/storage"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClient(t *testing.T, api *mockapi.Server, opts ...client.Option) *client.Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := client.New(client.Config{BaseURL: srv.URL, UnauthorizedDelay: -1}, opts...)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return c
}

func ids(products []Product) []int {
	out := make([]int, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestFetchFeatured_FallsBackAfterNotFound(t *testing.T) {
	api := mockapi.New(mockapi.WithoutFeatured())
	c := newClient(t, api)
	s := New(c)
	ctx := context.Background()

	first, err := s.FetchFeatured(ctx, false)
	if err != nil {
		t.Fatalf("FetchFeatured() error = %v", err)
	}
	if !c.Failures().IsPermanentlyFailed(PathFeatured) {
		t.Fatalf("%s not recorded as failed", PathFeatured)
	}

	second, err := s.FetchFeatured(ctx, true)
	if err != nil {
		t.Fatalf("second FetchFeatured() error = %v", err)
	}
	if got := api.Hits(http.MethodGet, PathFeatured); got != 1 {
		t.Errorf("featured endpoint calls = %d, want 1", got)
	}

	want, err := s.FetchProducts(ctx, ProductQuery{Limit: FeaturedFallbackLimit, Sort: SortPopularity}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, want) || !reflect.DeepEqual(second, want) {
		t.Errorf("featured = %v then %v, want %v", ids(first), ids(second), ids(want))
	}
	if got := ids(want); !reflect.DeepEqual(got, []int{1, 4, 5, 2, 8}) {
		t.Errorf("popular listing = %v", got)
	}
}

func TestFetchFeatured_Endpoint(t *testing.T) {
	s := New(newClient(t, mockapi.New()))

	got, err := s.FetchFeatured(context.Background(), false)
	if err != nil {
		t.Fatalf("FetchFeatured() error = %v", err)
	}
	if !reflect.DeepEqual(ids(got), []int{1, 4, 5}) {
		t.Errorf("featured = %v, want [1 4 5]", ids(got))
	}
	if got[0].Price != 449 {
		t.Errorf("Price = %v, want 449.00", got[0].Price)
	}
}

func TestFetchFeatured_Placeholders(t *testing.T) {
	api := mockapi.New()
	api.Force(http.MethodGet, PathFeatured, http.StatusInternalServerError)
	s := New(newClient(t, api))

	got, err := s.FetchFeatured(context.Background(), false)
	if err != nil {
		t.Fatalf("FetchFeatured() error = %v", err)
	}
	if len(got) != 3 || !got[0].Placeholder || got[2].Price != 29.99 {
		t.Errorf("featured = %+v, want 3 placeholders", got)
	}

	// Once real products were shown, failures surface as errors.
	api.Force(http.MethodGet, PathFeatured, 0)
	if _, err := s.FetchFeatured(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	api.Force(http.MethodGet, PathFeatured, http.StatusInternalServerError)
	if _, err := s.FetchFeatured(context.Background(), true); err == nil {
		t.Error("FetchFeatured() error = nil after a successful fetch, want error")
	}
}

func TestFetchCategories_Concurrent(t *testing.T) {
	api := mockapi.New()
	s := New(newClient(t, api))
	release := api.Block(PathCategories)

	results := make([][]Category, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.FetchCategories(context.Background(), false)
		}()
	}
	deadline := time.Now().Add(5 * time.Second)
	for api.Hits(http.MethodGet, PathCategories) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d error = %v", i, err)
		}
	}
	if got := api.Hits(http.MethodGet, PathCategories); got != 1 {
		t.Errorf("network calls = %d, want 1", got)
	}
	if !reflect.DeepEqual(results[0], results[1]) || len(results[0]) != 3 {
		t.Errorf("results = %v and %v", results[0], results[1])
	}
}

func TestFetchProducts_CacheWindow(t *testing.T) {
	api := mockapi.New()
	clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := New(newClient(t, api, client.WithClock(clk.Now)))
	ctx := context.Background()
	q := ProductQuery{Limit: 5}

	steps := []struct {
		advance time.Duration
		want    int
	}{
		{0, 1},
		{4 * time.Minute, 1},
		{2 * time.Minute, 2},
	}
	for _, step := range steps {
		clk.Advance(step.advance)
		got, err := s.FetchProducts(ctx, q, false)
		if err != nil {
			t.Fatalf("FetchProducts() error = %v", err)
		}
		if len(got) != 5 {
			t.Fatalf("len = %d, want 5", len(got))
		}
		if hits := api.Hits(http.MethodGet, PathProducts); hits != step.want {
			t.Errorf("after %v: network calls = %d, want %d", step.advance, hits, step.want)
		}
	}
}

func TestFetchProductsByCategory(t *testing.T) {
	s := New(newClient(t, mockapi.New()))

	got, err := s.FetchProductsByCategory(context.Background(), 2, ProductQuery{Sort: SortPriceDesc}, false)
	if err != nil {
		t.Fatalf("FetchProductsByCategory() error = %v", err)
	}
	if !reflect.DeepEqual(ids(got), []int{4, 5, 6, 7}) {
		t.Errorf("products = %v, want [4 5 6 7]", ids(got))
	}
	if _, err := s.FetchProductsByCategory(context.Background(), 0, ProductQuery{}, false); err == nil {
		t.Error("category 0: error = nil, want error")
	}
}

type viewRecorder struct {
	mu  sync.Mutex
	ids []int
	err error
}

func (r *viewRecorder) TrackView(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return r.err
}

func TestFetchProduct_TracksView(t *testing.T) {
	views := &viewRecorder{err: errors.New("offline")}
	s := New(newClient(t, mockapi.New()), WithViewTracker(views))

	p, err := s.FetchProduct(context.Background(), 9)
	if err != nil {
		t.Fatalf("FetchProduct() error = %v", err)
	}
	if p.Title != "SN850X 1TB" || p.Price != 89.99 {
		t.Errorf("product = %+v", p)
	}
	if !reflect.DeepEqual(views.ids, []int{9}) {
		t.Errorf("tracked = %v, want [9]", views.ids)
	}

	_, err = s.FetchProduct(context.Background(), 404)
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("missing product error = %v, want ErrNotFound", err)
	}
	if msg := client.Message(err); !strings.HasPrefix(msg, "Product not found") {
		t.Errorf("Message() = %q", msg)
	}
	if len(views.ids) != 1 {
		t.Errorf("tracked = %v, want no view for a missing product", views.ids)
	}
}

func TestFetchRelated(t *testing.T) {
	api := mockapi.New()
	s := New(newClient(t, api))
	ctx := context.Background()

	got, err := s.FetchRelated(ctx, 4, 2)
	if err != nil {
		t.Fatalf("FetchRelated() error = %v", err)
	}
	if !reflect.DeepEqual(ids(got), []int{5, 6}) {
		t.Errorf("related = %v, want [5 6]", ids(got))
	}

	got, err = s.FetchRelated(ctx, 999, 3)
	if err != nil {
		t.Fatalf("FetchRelated(missing) error = %v", err)
	}
	if !reflect.DeepEqual(ids(got), []int{1, 2, 3}) {
		t.Errorf("fallback = %v, want [1 2 3]", ids(got))
	}
}

func TestFetchPopular_ErrorIsEmpty(t *testing.T) {
	api := mockapi.New()
	api.Force(http.MethodGet, PathPopular, http.StatusBadGateway)
	s := New(newClient(t, api))

	got := s.FetchPopular(context.Background(), 3)
	if got == nil || len(got) != 0 {
		t.Errorf("FetchPopular() = %v, want empty list", got)
	}
}

func TestFetchRecommended(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		api := mockapi.New()
		s := New(newClient(t, api))
		got := s.FetchRecommended(ctx, 3)
		if !reflect.DeepEqual(ids(got), []int{1, 4, 5}) {
			t.Errorf("recommended = %v, want popular [1 4 5]", ids(got))
		}
		if hits := api.Hits(http.MethodGet, PathRecommendations); hits != 0 {
			t.Errorf("recommendation calls = %d, want 0", hits)
		}
	})

	t.Run("logged in", func(t *testing.T) {
		api := mockapi.New()
		tokens := auth.NewTokenStore(storage.NewMemoryStore())
		pair, err := api.IssueTokens(mockapi.Customer)
		if err != nil {
			t.Fatal(err)
		}
		if err := tokens.SetPair(ctx, pair); err != nil {
			t.Fatal(err)
		}
		s := New(newClient(t, api, client.WithTokens(tokens)))
		got := s.FetchRecommended(ctx, 3)
		if !reflect.DeepEqual(ids(got), []int{4, 5, 2}) {
			t.Errorf("recommended = %v, want [4 5 2]", ids(got))
		}
	})

	t.Run("rejected token", func(t *testing.T) {
		api := mockapi.New()
		tokens := auth.NewTokenStore(storage.NewMemoryStore())
		if err := tokens.SetPair(ctx, auth.TokenPair{Access: "stale", Refresh: "stale"}); err != nil {
			t.Fatal(err)
		}
		s := New(newClient(t, api, client.WithTokens(tokens)))
		got := s.FetchRecommended(ctx, 3)
		if !reflect.DeepEqual(ids(got), []int{1, 4, 5}) {
			t.Errorf("recommended = %v, want popular [1 4 5]", ids(got))
		}
	})
}

func TestFetchCategoriesWithStats(t *testing.T) {
	s := New(newClient(t, mockapi.New()))
	got, err := s.FetchCategoriesWithStats(context.Background())
	if err != nil {
		t.Fatalf("FetchCategoriesWithStats() error = %v", err)
	}
	counts := []int{}
	for _, c := range got {
		counts = append(counts, c.ProductCount)
	}
	if !reflect.DeepEqual(counts, []int{3, 4, 5}) {
		t.Errorf("product counts = %v, want [3 4 5]", counts)
	}
}

func TestInvalidate(t *testing.T) {
	api := mockapi.New()
	s := New(newClient(t, api))
	ctx := context.Background()

	for range 2 {
		if _, err := s.FetchCategories(ctx, false); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FetchCategories(ctx, false); err != nil {
		t.Fatal(err)
	}
	if got := api.Hits(http.MethodGet, PathCategories); got != 2 {
		t.Errorf("network calls = %d, want 2", got)
	}
}
