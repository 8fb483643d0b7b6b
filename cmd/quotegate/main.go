// Command quotegate resolves instrument references and fetches live quotes
// from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quantedge/quotegate/config"
	"github.com/quantedge/quotegate/gateway"
	"github.com/quantedge/quotegate/internal/observability"
	"github.com/quantedge/quotegate/schema"
)

const usage = `usage: quotegate [-config path] <command> [args]

commands:
  resolve   <isin|symbol|name> ...   resolve references to canonical instruments
  search    <text>                   rank instrument candidates for free text
  ltp       <EXCHANGE_SYMBOL> ...    fetch last traded prices
  refresh                            force an instrument catalog reload
`

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	exchange := flag.String("exchange", "", "preferred exchange (NSE or BSE)")
	limit := flag.Int("limit", 10, "maximum search results")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	observability.SetLogger(observability.NewSlogLogger(logger))
	observability.SetMetrics(observability.NewMetrics(prometheus.NewRegistry()))

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, fromFile, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fatal(err)
	}
	if *configPath != "" && !fromFile {
		logger.Warn("config file not found, using defaults", "path", *configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := gateway.New(cfg)

	var preferred schema.Exchange
	if *exchange != "" {
		parsed, ok := schema.ParseExchange(*exchange)
		if !ok {
			fatal(fmt.Errorf("unknown exchange %q", *exchange))
		}
		preferred = parsed
	}

	command, args := flag.Arg(0), flag.Args()[1:]
	switch command {
	case "resolve":
		err = runResolve(ctx, svc, args, preferred)
	case "search":
		err = runSearch(ctx, svc, args, preferred, *limit)
	case "ltp":
		err = runLTP(ctx, svc, args)
	case "refresh":
		err = svc.RefreshUniverse(ctx)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func runResolve(ctx context.Context, svc *gateway.Service, args []string, preferred schema.Exchange) error {
	if len(args) == 0 {
		return fmt.Errorf("resolve requires at least one reference")
	}
	queries := make([]schema.Query, 0, len(args))
	for _, arg := range args {
		queries = append(queries, queryFor(arg, preferred))
	}
	resolutions, err := svc.ResolveAll(ctx, queries)
	if err != nil {
		return err
	}
	return emit(map[string]any{"items": resolutions})
}

// queryFor guesses which key a bare reference is: 12-character alphanumeric
// strings starting "IN" are ISINs, short single tokens are symbols, anything
// else is a name.
func queryFor(ref string, preferred schema.Exchange) schema.Query {
	trimmed := strings.TrimSpace(ref)
	upper := strings.ToUpper(trimmed)
	q := schema.Query{Exchange: preferred}
	switch {
	case len(upper) == 12 && strings.HasPrefix(upper, "IN"):
		q.ISIN = upper
	case !strings.ContainsAny(trimmed, " \t") && len(upper) < 15:
		q.Symbol = upper
		q.Name = trimmed
	default:
		q.Name = trimmed
	}
	return q
}

func runSearch(ctx context.Context, svc *gateway.Service, args []string, preferred schema.Exchange, limit int) error {
	if len(args) == 0 {
		return fmt.Errorf("search requires query text")
	}
	matches, err := svc.Search(ctx, strings.Join(args, " "), preferred, limit)
	if err != nil {
		return err
	}
	return emit(map[string]any{"items": matches})
}

func runLTP(ctx context.Context, svc *gateway.Service, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("ltp requires at least one EXCHANGE_SYMBOL")
	}
	records, err := svc.FetchLTP(ctx, args)
	if err != nil {
		return err
	}
	return emit(map[string]any{"items": records})
}

func emit(v any) error {
	enc := gojson.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "quotegate:", err)
	os.Exit(1)
}
