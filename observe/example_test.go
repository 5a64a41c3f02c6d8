package observe_test

import (
	"context"
	"fmt"

	"github.com/pcxmarket/storefront/observe"
)

func ExampleMiddleware_Wrap() {
	mw := observe.NewMiddleware(nil, nil, nil)

	fetch := mw.Wrap(func(ctx context.Context, meta observe.RequestMeta) (observe.Outcome, error) {
		return observe.Outcome{Source: "cache"}, nil
	})

	out, err := fetch(context.Background(), observe.RequestMeta{Endpoint: "/categories/", Resource: "categories"})
	fmt.Println(out.Source, err)
	// Output:
	// cache <nil>
}
