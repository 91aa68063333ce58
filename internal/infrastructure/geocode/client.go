package geocode

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"dispatch-server/services/dispatch-api/internal/domain/dispatch"
	"dispatch-server/services/dispatch-api/internal/infrastructure/invoker"
)

// Client resolves place queries against a pool of nominatim-style geocoders,
// failing over through the invocation layer like every other backend.
type Client struct {
	factory *invoker.Factory
	scope   string
	log     zerolog.Logger
}

func NewClient(factory *invoker.Factory, scope string, log zerolog.Logger) *Client {
	return &Client{
		factory: factory,
		scope:   scope,
		log:     log.With().Str("component", "geocode-client").Logger(),
	}
}

type searchResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Forward resolves the query to its best-ranked location.
func (c *Client) Forward(ctx context.Context, query string) (*dispatch.Location, error) {
	manager, err := c.factory.Manager(c.scope)
	if err != nil {
		return nil, err
	}

	value, err := manager.Call(ctx, "geocode.forward", func(ctx context.Context, client *resty.Client, endpoint invoker.EndpointConfig) (any, error) {
		var results []searchResult
		resp, err := client.R().
			SetContext(ctx).
			SetQueryParam("q", query).
			SetQueryParam("format", "json").
			SetQueryParam("limit", "1").
			SetResult(&results).
			Get("/search")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode())
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}

	results, ok := value.([]searchResult)
	if !ok || len(results) == 0 {
		return nil, fmt.Errorf("no location found for %q", query)
	}

	return toLocation(query, results[0])
}

func toLocation(query string, result searchResult) (*dispatch.Location, error) {
	latitude, err := strconv.ParseFloat(result.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude %q: %w", result.Lat, err)
	}
	longitude, err := strconv.ParseFloat(result.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude %q: %w", result.Lon, err)
	}
	return &dispatch.Location{
		Query:       query,
		DisplayName: result.DisplayName,
		Latitude:    latitude,
		Longitude:   longitude,
	}, nil
}
