// Package health reports whether the storefront can reach what it depends
// on: the marketplace API, its local state store, and the set of endpoints
// currently served by fallback.
//
// A Checker reports one Status: Healthy, Degraded or Unhealthy. An
// Aggregator runs checkers in parallel under one timeout and folds their
// results into a Report, which the CLI prints and Handler serves as JSON:
//
//	agg := health.NewAggregator(5 * time.Second)
//	agg.Register(client.APIChecker(c))
//	agg.Register(client.FailureChecker(c.Failures()))
//	agg.Register(health.StoreChecker(store))
//
//	report := agg.Report(ctx)
//	fmt.Println(report.Status)
package health
