package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pcxmarket/storefront/account"
	"github.com/pcxmarket/storefront/auth"
	"github.com/pcxmarket/storefront/catalog"
	"github.com/pcxmarket/storefront/checkout"
	"github.com/pcxmarket/storefront/health"
	"github.com/pcxmarket/storefront/observe"
)

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "categories":
		return a.categories(ctx, args)
	case "products":
		return a.products(ctx, args)
	case "featured":
		return a.featured(ctx, args)
	case "product":
		return a.product(ctx, args)
	case "related":
		return a.related(ctx, args)
	case "popular":
		return a.popular(ctx, args)
	case "recommended":
		return a.recommended(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.accounts.Logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "addresses":
		return a.addresses(ctx, args)
	case "wishlist":
		return a.wishlist(ctx, args)
	case "orders":
		return a.orders(ctx, args)
	case "order":
		return a.order(ctx, args)
	case "dashboard":
		return a.dashboard(ctx, args)
	case "cart":
		return a.cartCmd(ctx, args)
	case "checkout":
		return a.placeOrder(ctx, args)
	case "health":
		return a.healthCmd(ctx, args)
	default:
		return usagef("unknown command %q", cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse accepts flags before, between and after positional arguments.
func parse(fs *flag.FlagSet, args []string) error {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return usagef("%s: %v", fs.Name(), err)
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	return fs.Parse(positional)
}

func intArg(fs *flag.FlagSet, i int, name string) (int, error) {
	if fs.NArg() <= i {
		return 0, usagef("%s: missing %s", fs.Name(), name)
	}
	n, err := strconv.Atoi(fs.Arg(i))
	if err != nil || n <= 0 {
		return 0, usagef("%s: invalid %s %q", fs.Name(), name, fs.Arg(i))
	}
	return n, nil
}

func (a *app) categories(ctx context.Context, args []string) error {
	fs := newFlagSet("categories")
	stats := fs.Bool("stats", false, "include product counts and views")
	force := fs.Bool("force", false, "bypass the cache")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *stats {
		out, err := a.catalog.FetchCategoriesWithStats(ctx)
		if err != nil {
			return err
		}
		return a.print(out)
	}
	out, err := a.catalog.FetchCategories(ctx, *force)
	if err != nil {
		return err
	}
	return a.print(out)
}

func (a *app) products(ctx context.Context, args []string) error {
	fs := newFlagSet("products")
	var q catalog.ProductQuery
	fs.IntVar(&q.Limit, "limit", 0, "maximum number of products")
	fs.StringVar(&q.Sort, "sort", "", "popularity, price or -price")
	fs.IntVar(&q.Category, "category", 0, "only this category")
	fs.IntVar(&q.Page, "page", 0, "page number, starting at 1")
	force := fs.Bool("force", false, "bypass the cache")
	if err := parse(fs, args); err != nil {
		return err
	}

	var (
		out []catalog.Product
		err error
	)
	if q.Category > 0 {
		id := q.Category
		q.Category = 0
		out, err = a.catalog.FetchProductsByCategory(ctx, id, q, *force)
	} else {
		out, err = a.catalog.FetchProducts(ctx, q, *force)
	}
	if err != nil {
		return err
	}
	return a.print(out)
}

func (a *app) featured(ctx context.Context, args []string) error {
	fs := newFlagSet("featured")
	force := fs.Bool("force", false, "bypass the cache")
	if err := parse(fs, args); err != nil {
		return err
	}
	out, err := a.catalog.FetchFeatured(ctx, *force)
	if err != nil {
		return err
	}
	return a.print(out)
}

func (a *app) product(ctx context.Context, args []string) error {
	fs := newFlagSet("product")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := intArg(fs, 0, "product id")
	if err != nil {
		return err
	}
	p, err := a.catalog.FetchProduct(ctx, id)
	if err != nil {
		return err
	}
	return a.print(p)
}

func (a *app) related(ctx context.Context, args []string) error {
	fs := newFlagSet("related")
	limit := fs.Int("limit", catalog.DefaultRelatedLimit, "maximum number of products")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := intArg(fs, 0, "product id")
	if err != nil {
		return err
	}
	out, err := a.catalog.FetchRelated(ctx, id, *limit)
	if err != nil {
		return err
	}
	return a.print(out)
}

func (a *app) popular(ctx context.Context, args []string) error {
	fs := newFlagSet("popular")
	limit := fs.Int("limit", catalog.DefaultPopularLimit, "maximum number of products")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.print(a.catalog.FetchPopular(ctx, *limit))
}

func (a *app) recommended(ctx context.Context, args []string) error {
	fs := newFlagSet("recommended")
	limit := fs.Int("limit", catalog.DefaultPopularLimit, "maximum number of products")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.print(a.catalog.FetchRecommended(ctx, *limit))
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	var in account.Registration
	fs.StringVar(&in.Email, "email", "", "contact email")
	fs.StringVar(&in.FirstName, "first", "", "first name")
	fs.StringVar(&in.LastName, "last", "", "last name")
	fs.StringVar(&in.Contact, "contact", "", "phone number")
	vendor := fs.Bool("vendor", false, "register a vendor account")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usagef("register: want <username> <password>")
	}
	in.Username, in.Password = fs.Arg(0), fs.Arg(1)
	in.Type = account.RegisterCustomer
	if *vendor {
		in.Type = account.RegisterVendor
	}
	if err := a.accounts.Register(ctx, in); err != nil {
		return err
	}
	return a.print(map[string]string{"username": in.Username, "registration_type": in.Type})
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usagef("login: want <username> <password>")
	}
	session, err := a.accounts.Login(ctx, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	return a.print(session)
}

func (a *app) whoami(ctx context.Context) error {
	session, ok, err := a.accounts.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return account.ErrAuthRequired
	}
	return a.print(session)
}

func (a *app) addresses(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "list":
		fs := newFlagSet("addresses")
		force := fs.Bool("force", false, "bypass the cache")
		if err := parse(fs, args); err != nil {
			return err
		}
		out, err := a.accounts.Addresses(ctx, *force)
		if err != nil {
			return err
		}
		return a.print(out)
	case "add":
		fs := newFlagSet("addresses add")
		var in account.Address
		fs.StringVar(&in.Address, "address", "", "street address")
		fs.StringVar(&in.City, "city", "", "city")
		fs.StringVar(&in.PostCode, "post-code", "", "post code")
		fs.BoolVar(&in.IsDefault, "default", false, "make this the default address")
		if err := parse(fs, args); err != nil {
			return err
		}
		out, err := a.accounts.CreateAddress(ctx, in)
		if err != nil {
			return err
		}
		return a.print(out)
	case "delete":
		fs := newFlagSet("addresses delete")
		if err := parse(fs, args); err != nil {
			return err
		}
		id, err := intArg(fs, 0, "address id")
		if err != nil {
			return err
		}
		return a.accounts.DeleteAddress(ctx, id)
	default:
		return usagef("addresses: unknown action %q", sub)
	}
}

func (a *app) wishlist(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	fs := newFlagSet("wishlist " + sub)
	force := fs.Bool("force", false, "bypass the cache")
	if err := parse(fs, args); err != nil {
		return err
	}
	switch sub {
	case "list":
		out, err := a.accounts.Wishlist(ctx, *force)
		if err != nil {
			return err
		}
		return a.print(out)
	case "add":
		id, err := intArg(fs, 0, "product id")
		if err != nil {
			return err
		}
		item, err := a.accounts.AddToWishlist(ctx, id)
		if err != nil {
			return err
		}
		return a.print(item)
	case "remove":
		id, err := intArg(fs, 0, "wishlist item id")
		if err != nil {
			return err
		}
		return a.accounts.RemoveFromWishlist(ctx, id)
	default:
		return usagef("wishlist: unknown action %q", sub)
	}
}

func (a *app) orders(ctx context.Context, args []string) error {
	fs := newFlagSet("orders")
	force := fs.Bool("force", false, "bypass the cache")
	if err := parse(fs, args); err != nil {
		return err
	}
	out, err := a.accounts.Orders(ctx, *force)
	if err != nil {
		return err
	}
	return a.print(out)
}

func (a *app) order(ctx context.Context, args []string) error {
	fs := newFlagSet("order")
	force := fs.Bool("force", false, "bypass the cache")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := intArg(fs, 0, "order id")
	if err != nil {
		return err
	}
	out, err := a.accounts.Order(ctx, id, *force)
	if err != nil {
		return err
	}
	return a.print(out)
}

// dashboard shows the vendor dashboard to vendors and the customer
// dashboard to everyone else.
func (a *app) dashboard(ctx context.Context, args []string) error {
	fs := newFlagSet("dashboard")
	force := fs.Bool("force", false, "bypass the cache")
	if err := parse(fs, args); err != nil {
		return err
	}
	session, ok, err := a.accounts.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return account.ErrAuthRequired
	}
	if session.Role == auth.RoleVendor {
		out, err := a.accounts.VendorDashboard(ctx, *force)
		if err != nil {
			return err
		}
		return a.print(out)
	}
	out, err := a.accounts.CustomerDashboard(ctx, *force)
	if err != nil {
		return err
	}
	return a.print(out)
}

func (a *app) cartCmd(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	fs := newFlagSet("cart " + sub)
	qty := fs.Int("qty", 1, "quantity to add")
	if err := parse(fs, args); err != nil {
		return err
	}

	switch sub {
	case "list":
	case "add":
		id, err := intArg(fs, 0, "product id")
		if err != nil {
			return err
		}
		p, err := a.catalog.FetchProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := a.cart.Add(ctx, *p, *qty); err != nil {
			return err
		}
	case "set":
		id, err := intArg(fs, 0, "product id")
		if err != nil {
			return err
		}
		if fs.NArg() < 2 {
			return usagef("cart set: missing quantity")
		}
		n, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			return usagef("cart set: invalid quantity %q", fs.Arg(1))
		}
		if err := a.cart.UpdateQuantity(ctx, id, n); err != nil {
			return err
		}
	case "remove":
		id, err := intArg(fs, 0, "product id")
		if err != nil {
			return err
		}
		if err := a.cart.Remove(ctx, id); err != nil {
			return err
		}
	case "clear":
		if err := a.cart.Clear(ctx); err != nil {
			return err
		}
	default:
		return usagef("cart: unknown action %q", sub)
	}
	return a.printCart(ctx)
}

type cartView struct {
	Items  any    `json:"items"`
	Count  int    `json:"count"`
	Amount string `json:"amount"`
}

func (a *app) printCart(ctx context.Context) error {
	items, err := a.cart.Items(ctx)
	if err != nil {
		return err
	}
	totals, err := a.cart.Totals(ctx)
	if err != nil {
		return err
	}
	return a.print(cartView{Items: items, Count: totals.Items, Amount: totals.Amount.String()})
}

func (a *app) placeOrder(ctx context.Context, args []string) error {
	fs := newFlagSet("checkout")
	var opts checkout.Options
	fs.StringVar(&opts.PaymentMethod, "payment", checkout.DefaultPaymentMethod, "card, cash or paypal")
	fs.IntVar(&opts.ShippingAddress, "address", 0, "shipping address id")
	if err := parse(fs, args); err != nil {
		return err
	}
	order, err := a.checkout.PlaceOrder(ctx, a.cart, opts)
	if err != nil {
		return err
	}
	return a.print(order)
}

func (a *app) healthCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("health")
	listen := fs.String("listen", "", "serve the report over HTTP on this address")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *listen == "" {
		report := a.health.Report(ctx)
		if err := a.print(report); err != nil {
			return err
		}
		if report.Status == health.StatusUnhealthy {
			return errUnhealthy
		}
		return nil
	}

	srv := &http.Server{Addr: *listen, Handler: health.Handler(a.health), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	a.log.Info(ctx, "health endpoint listening", observe.Field{Key: "addr", Value: *listen})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

var errUnhealthy = errors.New("storefront: unhealthy")
