package birdeye

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/cache"
)

// Per-kind cache lifetimes. Prices churn; security reports do not.
const (
	TTLPrice     = time.Minute
	TTLSecurity  = 30 * time.Minute
	TTLTradeData = 5 * time.Minute
	TTLPortfolio = 5 * time.Minute
)

// keyspace namespaces this provider's cache keys ("birdeye:price:<addr>").
const keyspace = cache.Keyspace("birdeye")

// MarketProvider contributes a market summary of watched tokens, and
// optionally a wallet portfolio, to the agent context.
type MarketProvider struct {
	client *Client
	watch  []WatchedToken
	wallet string
	log    *slog.Logger
}

func (p *MarketProvider) Name() string { return "birdeye-market" }

// Get renders the market summary. Individual token failures are logged and
// skipped; only a fully empty summary reports an error to the composer.
func (p *MarketProvider) Get(ctx context.Context, rt agent.Runtime, _ agent.Message, _ *agent.State) (string, error) {
	tr := otel.Tracer("plugins/birdeye")
	ctx, span := tr.Start(ctx, "MarketProvider.Get")
	defer span.End()

	var lines []string
	for _, t := range p.watch {
		price, err := fetchCached(ctx, rt.Cache(), keyspace.Key("price", t.Address), TTLPrice,
			func(ctx context.Context) (Price, error) { return p.client.Price(ctx, t.Address) })
		if err != nil {
			p.log.Warn("price fetch failed", "symbol", t.Symbol, "err", err)
			continue
		}
		line := fmt.Sprintf("%s: $%s", t.Symbol, fmtFloat(price.Value))

		trade, err := fetchCached(ctx, rt.Cache(), keyspace.Key("trade", t.Address), TTLTradeData,
			func(ctx context.Context) (TradeData, error) { return p.client.TradeData(ctx, t.Address) })
		if err != nil {
			p.log.Warn("trade data fetch failed", "symbol", t.Symbol, "err", err)
		} else {
			line += fmt.Sprintf(" (%+.1f%% 24h, vol $%s)", trade.PriceChange24hPercent, fmtCompact(trade.Volume24hUSD))
		}
		lines = append(lines, line)
	}

	if p.wallet != "" {
		pf, err := fetchCached(ctx, rt.Cache(), keyspace.Key("portfolio", p.wallet), TTLPortfolio,
			func(ctx context.Context) (Portfolio, error) { return p.client.Portfolio(ctx, p.wallet) })
		if err != nil {
			p.log.Warn("portfolio fetch failed", "wallet", p.wallet, "err", err)
		} else {
			lines = append(lines, fmt.Sprintf("Wallet %s holds $%s across %d tokens.",
				shorten(p.wallet), fmtCompact(pf.TotalUSD), len(pf.Items)))
		}
	}

	span.SetAttributes(attribute.Int("lines", len(lines)))
	if len(lines) == 0 {
		return "", nil
	}
	return "Current market data:\n" + strings.Join(lines, "\n"), nil
}

// fetchCached is the read-through path: cache hit wins; on miss the fetch
// runs and the result is written back with the kind's TTL. Cache write
// failures are not fatal; the fetched value is still returned.
func fetchCached[T any](ctx context.Context, c cache.Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok, err := cache.GetJSON[T](ctx, c, key); err == nil && ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := cache.SetJSON(ctx, c, key, v, ttl); err != nil {
		slog.Default().Warn("cache write failed", "key", key, "err", err)
	}
	return v, nil
}

func fmtFloat(v float64) string {
	if v >= 1 {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.6f", v)
}

// fmtCompact renders large dollar amounts as 1.2K / 3.4M / 5.6B.
func fmtCompact(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func shorten(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
