// Command storefront browses the PCX marketplace from the terminal.
//
// Results are printed as JSON on stdout; logs go to stderr. With -mock the
// API is served by an in-process fake backend seeded with demo data (log in
// as alice / alice-pass or pcxparts / vendor-pass).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pcxmarket/storefront/client"
	"github.com/pcxmarket/storefront/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("storefront", flag.ContinueOnError)
	global.SetOutput(stderr)
	mock := global.Bool("mock", false, "serve the API from the in-process fake backend")
	envFile := global.String("env", "", "load settings from this .env file")
	global.Usage = func() { printUsage(stderr) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		printUsage(stderr)
		return 2
	}

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(ctx, files...)
	if err != nil {
		fmt.Fprintln(stderr, "storefront:", err)
		return 1
	}
	if *mock {
		cfg.Mock = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "storefront:", err)
		return 1
	}

	a, err := newApp(ctx, cfg, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "storefront:", err)
		return 1
	}
	defer a.Close()

	cmd, rest := global.Arg(0), global.Args()[1:]
	if err := a.dispatch(ctx, cmd, rest); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(stderr, "storefront:", usage.msg)
			printUsage(stderr)
			return 2
		}
		fmt.Fprintln(stderr, "storefront:", describe(err))
		return 1
	}
	return 0
}

// describe prefers the user-facing API message and falls back to the error
// text for local failures such as an empty cart.
func describe(err error) string {
	if msg := client.Message(err); msg != client.MsgUnknown {
		return msg
	}
	return err.Error()
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: storefront [-mock] [-env file] <command> [flags] [args]")
	fmt.Fprintln(w, "\nCatalog:")
	fmt.Fprintln(w, "  categories [-stats] [-force]             List categories")
	fmt.Fprintln(w, "  products [-limit -sort -category -page]  List products")
	fmt.Fprintln(w, "  featured [-force]                        Featured products")
	fmt.Fprintln(w, "  product <id>                             Show one product")
	fmt.Fprintln(w, "  related <id> [-limit]                    Related products")
	fmt.Fprintln(w, "  popular [-limit]                         Most viewed products")
	fmt.Fprintln(w, "  recommended [-limit]                     Recommendations for the logged-in user")
	fmt.Fprintln(w, "\nAccount:")
	fmt.Fprintln(w, "  register -email e [-vendor] <username> <password>")
	fmt.Fprintln(w, "  login <username> <password>              Log in and store the tokens")
	fmt.Fprintln(w, "  logout                                   Forget the stored session")
	fmt.Fprintln(w, "  whoami                                   Show the stored session")
	fmt.Fprintln(w, "  addresses [add -address -city -post-code | delete <id>]")
	fmt.Fprintln(w, "  wishlist [add <product> | remove <item>]")
	fmt.Fprintln(w, "  orders                                   List your orders")
	fmt.Fprintln(w, "  order <id>                               Show one order")
	fmt.Fprintln(w, "  dashboard [-force]                       Customer or vendor dashboard")
	fmt.Fprintln(w, "\nCart:")
	fmt.Fprintln(w, "  cart [list | add <product> [-qty N] | set <product> <qty> | remove <product> | clear]")
	fmt.Fprintln(w, "  checkout [-payment card|cash|paypal] [-address id]")
	fmt.Fprintln(w, "\nDiagnostics:")
	fmt.Fprintln(w, "  health [-listen addr]                    Check the API, storage and failed endpoints")
}
