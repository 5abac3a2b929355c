// Package router maps inbound request targets to the cache-aside fetcher or
// the inventory ledger and frames results into a minimal response envelope.
package router

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/retail-proxy/pkg/inventory"
	"github.com/Sternrassler/retail-proxy/pkg/logging"
	"github.com/Sternrassler/retail-proxy/pkg/upstream"
)

var routedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "retail_routed_requests_total",
	Help: "Total routed requests by route and status",
}, []string{"route", "status"})

// orderAck is the fixed acknowledgment payload for accepted restock orders.
const orderAck = "order accepted\n"

// Fetcher is the cache-aside read capability the router dispatches to.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Stock is the slice of the inventory ledger the router dispatches to.
type Stock interface {
	Restock(ctx context.Context, count int) error
	Info(ctx context.Context) ([]inventory.Item, error)
}

// Config holds the router configuration.
type Config struct {
	// PhotosURL is the upstream collection resource. It doubles as the
	// cache key for /photos; item keys append "/<id>".
	PhotosURL string
}

// DefaultConfig returns a default router configuration.
func DefaultConfig() Config {
	return Config{
		PhotosURL: "https://jsonplaceholder.typicode.com/photos",
	}
}

// Router dispatches request targets. An unmatched target yields an empty
// 200 envelope rather than a 404; callers probing unknown paths observe
// success with no payload.
type Router struct {
	fetcher Fetcher
	stock   Stock
	config  Config
	logger  zerolog.Logger
}

// New creates a router over the given fetcher and stock ledger.
func New(fetcher Fetcher, stock Stock, cfg Config) *Router {
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	if stock == nil {
		panic("stock cannot be nil")
	}
	if cfg.PhotosURL == "" {
		cfg.PhotosURL = DefaultConfig().PhotosURL
	}
	return &Router{
		fetcher: fetcher,
		stock:   stock,
		config:  cfg,
		logger:  logging.NewLogger("router"),
	}
}

// Route dispatches a request target and returns the framed response.
// Patterns are evaluated in precedence order, first match wins:
//
//  1. /retailer/order/<positiveInteger>  restock that many items
//  2. /retailer/info                     enumerate inventory
//  3. /retailer/order/                   restock one item
//  4. /photos                            cached upstream collection
//  5. /photos/<integer>                  cached upstream single item
//  6. anything else                      empty success envelope
func (r *Router) Route(ctx context.Context, target string) Response {
	route, resp := r.dispatch(ctx, target)

	routedRequestsTotal.WithLabelValues(route, strconv.Itoa(resp.Status)).Inc()
	r.logger.Debug().
		Str("target", target).
		Str("route", route).
		Int("status", resp.Status).
		Msg("Routed request")

	return resp
}

func (r *Router) dispatch(ctx context.Context, target string) (string, Response) {
	if rest, found := strings.CutPrefix(target, "/retailer/order/"); found {
		if count, err := strconv.Atoi(rest); err == nil && count > 0 {
			return "order", r.restock(ctx, count)
		}
		if rest == "" {
			return "order_default", r.restock(ctx, 1)
		}
	}

	if target == "/retailer/info" {
		return "info", r.info(ctx)
	}

	if target == "/photos" {
		return "photos", r.fetch(ctx, r.config.PhotosURL)
	}

	if rest, found := strings.CutPrefix(target, "/photos/"); found {
		if _, err := strconv.Atoi(rest); err == nil && rest != "" {
			return "photo", r.fetch(ctx, r.config.PhotosURL+"/"+rest)
		}
	}

	return "unmatched", ok(nil)
}

func (r *Router) restock(ctx context.Context, count int) Response {
	if err := r.stock.Restock(ctx, count); err != nil {
		r.logger.Error().Err(err).Int("count", count).Msg("Restock failed")
		return fault(http.StatusInternalServerError, "restock failed")
	}
	return ok([]byte(orderAck))
}

func (r *Router) info(ctx context.Context) Response {
	items, err := r.stock.Info(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Info failed")
		return fault(http.StatusInternalServerError, "inventory read failed")
	}
	return ok(formatItems(items))
}

func (r *Router) fetch(ctx context.Context, key string) Response {
	data, err := r.fetcher.Fetch(ctx, key)
	if err != nil {
		if upstream.IsUpstreamError(err) {
			r.logger.Error().Err(err).Str("key", key).Msg("Upstream fetch failed")
			return fault(http.StatusBadGateway, "upstream fetch failed")
		}
		r.logger.Error().Err(err).Str("key", key).Msg("Cache fetch failed")
		return fault(http.StatusInternalServerError, "cache fetch failed")
	}
	return ok(data)
}

// formatItems serializes inventory as newline-delimited ids, each followed by
// indented field:value lines, with a blank line between items.
func formatItems(items []inventory.Item) []byte {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(item.ID)
		sb.WriteByte('\n')
		fmt.Fprintf(&sb, "\t%s:%s\n", inventory.FieldDesigner, item.Designer)
		fmt.Fprintf(&sb, "\t%s:%s\n", inventory.FieldDate, item.Date)
		fmt.Fprintf(&sb, "\t%s:%d\n", inventory.FieldPrice, item.Price)
		fmt.Fprintf(&sb, "\t%s:%d\n", inventory.FieldQuantity, item.Quantity)
		fmt.Fprintf(&sb, "\t%s:%d\n", inventory.FieldPurchased, item.Purchased)
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}
