package market

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "polypaper/internal/errors"
	"polypaper/internal/models"
)

// DefaultPrice is the neutral price used when a side's price cannot be resolved.
var DefaultPrice = decimal.NewFromFloat(0.5)

var one = decimal.NewFromInt(1)

// ParseOutcomes decodes an encoded outcome name list. A malformed list decodes as empty.
func ParseOutcomes(raw models.EncodedList) []string {
	out, err := decodeOutcomes(raw)
	if err != nil {
		return []string{}
	}
	return out
}

// ParseOutcomePrices decodes an encoded outcome price list. Entries may be strings or numbers.
// A malformed list decodes as empty.
func ParseOutcomePrices(raw models.EncodedList) []decimal.Decimal {
	out, err := decodePrices(raw)
	if err != nil {
		return []decimal.Decimal{}
	}
	return out
}

func decodeOutcomes(raw models.EncodedList) ([]string, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, apperrors.NewDecodeError("outcomes", string(raw), err)
	}
	return out, nil
}

func decodePrices(raw models.EncodedList) ([]decimal.Decimal, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return []decimal.Decimal{}, nil
	}
	var vals []models.FlexDecimal
	if err := json.Unmarshal([]byte(raw), &vals); err != nil {
		return nil, apperrors.NewDecodeError("outcomePrices", string(raw), err)
	}
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = v.Decimal
	}
	return out, nil
}

// CurrentPrice resolves the price of side in m. The outcome name is matched case-insensitively.
// No match, a missing or zero price, a price outside [0, 1], or a malformed encoding yields DefaultPrice.
func CurrentPrice(m models.Market, side models.Side) decimal.Decimal {
	return currentPrice(m, side, zerolog.Nop())
}

func currentPrice(m models.Market, side models.Side, logger zerolog.Logger) decimal.Decimal {
	outcomes, err := decodeOutcomes(m.Outcomes)
	if err != nil {
		logger.Debug().Err(err).Str("market_id", m.ID).Msg("Malformed outcomes, using default price")
		return DefaultPrice
	}
	prices, err := decodePrices(m.OutcomePrices)
	if err != nil {
		logger.Debug().Err(err).Str("market_id", m.ID).Msg("Malformed outcome prices, using default price")
		return DefaultPrice
	}

	want := strings.ToUpper(string(side))
	for i, name := range outcomes {
		if strings.ToUpper(strings.TrimSpace(name)) != want {
			continue
		}
		if i >= len(prices) || prices[i].IsZero() {
			break
		}
		if prices[i].IsNegative() || prices[i].GreaterThan(one) {
			logger.Debug().Str("market_id", m.ID).Str("price", prices[i].String()).Msg("Outcome price out of range, using default price")
			break
		}
		return prices[i]
	}
	return DefaultPrice
}

// Prices returns the YES and NO prices of a market for display.
func Prices(m models.Market) (yes, no decimal.Decimal) {
	return CurrentPrice(m, models.SideYes), CurrentPrice(m, models.SideNo)
}

// FindMarket locates a market within an event by id.
func FindMarket(event *models.Event, marketID string) (*models.Market, error) {
	if event != nil {
		for i := range event.Markets {
			if event.Markets[i].ID == marketID {
				return &event.Markets[i], nil
			}
		}
	}
	return nil, apperrors.NewNotFoundError("market", marketID)
}
