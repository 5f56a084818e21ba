package utils

import (
	"time"

	"polypaper/internal/models"
)

// endDateLayouts are the end date encodings seen from the market data provider.
var endDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02",
}

// ParseEndDate parses a market end date. The zero time is returned when it cannot be parsed.
func ParseEndDate(s string) time.Time {
	for _, layout := range endDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// GetMarketStatus returns the trading status of a market at now.
func GetMarketStatus(m models.Market, now time.Time) models.MarketStatus {
	if m.Closed {
		return models.MarketClosed
	}
	if !m.Active {
		return models.MarketInactive
	}
	if end := ParseEndDate(m.EndDate); !end.IsZero() && now.After(end) {
		return models.MarketAwaitingResolution
	}
	return models.MarketOpen
}

// IsMarketOpen returns true if positions can be opened on the market.
func IsMarketOpen(m models.Market, now time.Time) bool {
	return GetMarketStatus(m, now) == models.MarketOpen
}

// TimeUntilEnd returns the duration until the market's end date, or zero if unknown or past.
func TimeUntilEnd(m models.Market, now time.Time) time.Duration {
	end := ParseEndDate(m.EndDate)
	if end.IsZero() || !end.After(now) {
		return 0
	}
	return end.Sub(now)
}
