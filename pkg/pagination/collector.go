package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Page sizes accepted by the upstream API. Requests above MaxPerPage are
// silently clamped server-side, so the collector clamps too and keeps its
// undersized-page arithmetic honest.
const (
	DefaultPerPage = 200
	MaxPerPage     = 200
)

// Prometheus metrics for aggregation runs.
var (
	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mattermost_pages_fetched_total",
		Help: "Total pages fetched during aggregation runs by resource",
	}, []string{"resource"})

	aggregations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mattermost_aggregations_total",
		Help: "Total aggregation runs by resource and outcome",
	}, []string{"resource", "outcome"})
)

// Page is one fetched page in normalized form.
type Page[T any] struct {
	// Order lists item ids in the server-reported traversal order.
	Order []string

	// Items maps item id to item body. It may carry entries not referenced
	// by Order (post pages include thread roots for context); those ride
	// along into the aggregate.
	Items map[string]T

	// Next and Prev are the server-reported adjacent-page cursors, empty
	// when the server reports none.
	Next string
	Prev string
}

// Result is the merged aggregate of a page walk: one ordered id sequence in
// fetch order and one id-to-item mapping covering the union of all pages.
// Items may contain entries not referenced by Order.
type Result[T any] struct {
	Order []string
	Items map[string]T
}

// FetchFunc fetches one page. The page index is zero-based and perPage is
// the requested page size; any filters are bound in by the caller and must
// stay constant across a run.
type FetchFunc[T any] func(ctx context.Context, page, perPage int) (Page[T], error)

// Options configure a Collect run.
type Options struct {
	// PerPage is the page size requested from the server. Zero or negative
	// selects DefaultPerPage; values above MaxPerPage are clamped.
	PerPage int

	// MaxItems caps the number of ordered items in the result. Nil means
	// unbounded. Zero or negative collects nothing and issues no request.
	MaxItems *int

	// Resource labels the run in logs and metrics.
	Resource string
}

// Collect walks pages strictly sequentially, starting at page zero, and
// merges them into a single Result. Each page's Order is appended to the
// running order and its Items are unioned into the running map
// (last-write-wins on id collisions).
//
// Termination is decided after each merge, in this order: the cap is
// reached (order truncated to exactly the cap), the page was empty, or the
// page was shorter than the requested size. A fetch error aborts the whole
// run; partial results are discarded and the zero Result is returned with
// the error.
func Collect[T any](ctx context.Context, fetch FetchFunc[T], opts Options) (Result[T], error) {
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	resource := opts.Resource
	if resource == "" {
		resource = "unknown"
	}

	logger := log.With().
		Str("component", "pagination").
		Str("resource", resource).
		Logger()

	result := Result[T]{
		Order: []string{},
		Items: make(map[string]T),
	}

	// A cap of zero is a complete empty aggregate; no request is issued
	if opts.MaxItems != nil && *opts.MaxItems <= 0 {
		aggregations.WithLabelValues(resource, "capped").Inc()
		return result, nil
	}

	start := time.Now()
	pages := 0

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			aggregations.WithLabelValues(resource, "error").Inc()
			return Result[T]{}, err
		}

		fetched, err := fetch(ctx, page, perPage)
		if err != nil {
			aggregations.WithLabelValues(resource, "error").Inc()
			logger.Warn().
				Err(err).
				Int("page", page).
				Int("pages_fetched", pages).
				Msg("Page fetch failed, discarding partial aggregate")
			return Result[T]{}, fmt.Errorf("fetch page %d: %w", page, err)
		}

		pages++
		pagesFetched.WithLabelValues(resource).Inc()

		// Merge: order is append-only, items are last-write-wins
		result.Order = append(result.Order, fetched.Order...)
		for id, item := range fetched.Items {
			result.Items[id] = item
		}

		// Cap wins over everything
		if opts.MaxItems != nil && len(result.Order) >= *opts.MaxItems {
			result.Order = result.Order[:*opts.MaxItems]
			aggregations.WithLabelValues(resource, "capped").Inc()
			logger.Debug().
				Int("pages", pages).
				Int("items", len(result.Order)).
				Dur("duration", time.Since(start)).
				Msg("Aggregation capped")
			return result, nil
		}

		// An empty page means the traversal is already past the end; an
		// undersized page is the last one
		if len(fetched.Order) < perPage {
			break
		}

		// Progress logging every 50 pages
		if pages%50 == 0 {
			logger.Info().
				Int("pages", pages).
				Int("items", len(result.Order)).
				Msg("Aggregation progress")
		}
	}

	aggregations.WithLabelValues(resource, "complete").Inc()
	logger.Debug().
		Int("pages", pages).
		Int("items", len(result.Order)).
		Dur("duration", time.Since(start)).
		Msg("Aggregation complete")

	return result, nil
}
