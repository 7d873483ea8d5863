package pagination

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RaeedAhmed/twitch-py/pkg/helix"
)

// PageGetter fetches one decoded response envelope for an
// endpoint-with-query string. Implemented by *helix.Client.
type PageGetter interface {
	GetPage(ctx context.Context, params string) (helix.Page, error)
}

// Pager collects every record of a paginated list endpoint by following
// the response cursor until exhaustion.
type Pager struct {
	getter PageGetter
	logger zerolog.Logger
}

// NewPager creates a new pager.
func NewPager(getter PageGetter) *Pager {
	return &Pager{
		getter: getter,
		logger: log.With().Str("component", "pager").Logger(),
	}
}

// CollectAll issues GET requests against params, substituting the "after"
// cursor from each response into the next request, and concatenates the
// data arrays in remote response order. It stops when a response carries
// no records or no cursor. An error on any page fails the whole call;
// already-accumulated records are discarded.
func (p *Pager) CollectAll(ctx context.Context, params string) ([]json.RawMessage, error) {
	var results []json.RawMessage
	pages := 0

	for {
		page, err := p.getter.GetPage(ctx, params)
		if err != nil {
			return nil, err
		}
		pages++

		if len(page.Data) == 0 {
			break
		}
		results = append(results, page.Data...)

		if page.Cursor == "" {
			break
		}
		params = withCursor(params, page.Cursor)
	}

	p.logger.Debug().
		Str("endpoint", params).
		Int("pages", pages).
		Int("records", len(results)).
		Msg("Pagination complete")

	return results, nil
}

// withCursor replaces the value of an existing "after" parameter, or
// appends one when the query does not carry a cursor yet.
func withCursor(params, cursor string) string {
	resource, query, _ := strings.Cut(params, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		values = url.Values{}
	}
	values.Set("after", cursor)
	return resource + "?" + values.Encode()
}
