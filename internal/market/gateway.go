// Package market provides access to the prediction market data provider.
package market

import (
	"context"

	"github.com/shopspring/decimal"

	"polypaper/internal/models"
)

// Gateway is the read-only market data surface used by the rest of the application.
type Gateway interface {
	// ActiveEvents returns active, non-closed events.
	ActiveEvents(ctx context.Context, limit, offset int) ([]models.Event, error)
	// EventBySlug returns one event. An unknown slug yields a NotFoundError.
	EventBySlug(ctx context.Context, slug string) (*models.Event, error)
	// Search runs a free-text search over events.
	Search(ctx context.Context, query string) ([]models.Event, error)
}

// LivePrice fetches the event and returns the current price of side in the given market.
func LivePrice(ctx context.Context, gw Gateway, slug, marketID string, side models.Side) (decimal.Decimal, error) {
	event, err := gw.EventBySlug(ctx, slug)
	if err != nil {
		return decimal.Zero, err
	}
	m, err := FindMarket(event, marketID)
	if err != nil {
		return decimal.Zero, err
	}
	return CurrentPrice(*m, side), nil
}
