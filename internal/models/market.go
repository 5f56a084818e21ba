package models

import (
	"encoding/json"
)

// Event is a prediction market event grouping one or more markets.
type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	Image       string      `json:"image,omitempty"`
	Active      bool        `json:"active"`
	Closed      bool        `json:"closed"`
	Volume      FlexDecimal `json:"volume"`
	Liquidity   FlexDecimal `json:"liquidity"`
	EndDate     string      `json:"endDate,omitempty"`
	Markets     []Market    `json:"markets"`
	Tags        []Tag       `json:"tags,omitempty"`
}

// Market is a single binary market within an event.
type Market struct {
	ID            string      `json:"id"`
	Question      string      `json:"question"`
	ConditionID   string      `json:"conditionId,omitempty"`
	Slug          string      `json:"slug"`
	Outcomes      EncodedList `json:"outcomes"`
	OutcomePrices EncodedList `json:"outcomePrices"`
	Volume        FlexDecimal `json:"volume"`
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
	EndDate       string      `json:"endDate"`
	Description   string      `json:"description,omitempty"`
}

// Tag labels an event.
type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// SearchResult is the response of a public search.
type SearchResult struct {
	Events []Event `json:"events"`
}

// EncodedList holds a serialized array embedded in a string field, e.g. "[\"Yes\", \"No\"]".
// The raw text is kept as-is; decoding happens at the point of use so that a malformed
// value never fails decoding of the surrounding event.
type EncodedList string

// UnmarshalJSON accepts either a JSON string containing the encoded list or a bare JSON array.
func (l *EncodedList) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*l = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = EncodedList(s)
		return nil
	}
	*l = EncodedList(b)
	return nil
}

// MarketStatus represents the trading status of a market.
type MarketStatus string

const (
	MarketOpen               MarketStatus = "OPEN"
	MarketClosed             MarketStatus = "CLOSED"
	MarketInactive           MarketStatus = "INACTIVE"
	MarketAwaitingResolution MarketStatus = "AWAITING_RESOLUTION"
)
