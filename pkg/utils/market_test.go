package utils

import (
	"testing"
	"time"

	"polypaper/internal/models"
)

func TestGetMarketStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		market models.Market
		want   models.MarketStatus
	}{
		{"open", models.Market{Active: true, EndDate: "2026-12-31T00:00:00Z"}, models.MarketOpen},
		{"open without end date", models.Market{Active: true}, models.MarketOpen},
		{"closed", models.Market{Active: true, Closed: true}, models.MarketClosed},
		{"inactive", models.Market{}, models.MarketInactive},
		{"past end", models.Market{Active: true, EndDate: "2026-02-01"}, models.MarketAwaitingResolution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetMarketStatus(tt.market, now); got != tt.want {
				t.Errorf("GetMarketStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseEndDate(t *testing.T) {
	for _, raw := range []string{"2026-05-01T10:00:00Z", "2026-05-01T10:00:00.123Z", "2026-05-01"} {
		if ParseEndDate(raw).IsZero() {
			t.Errorf("ParseEndDate(%q) returned zero time", raw)
		}
	}
	if !ParseEndDate("soon").IsZero() {
		t.Error("ParseEndDate should return zero time for garbage")
	}
}

func TestTimeUntilEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := models.Market{EndDate: "2026-03-03T00:00:00Z"}
	if got := TimeUntilEnd(m, now); got != 48*time.Hour {
		t.Errorf("TimeUntilEnd() = %s, want 48h", got)
	}
	if got := TimeUntilEnd(m, now.AddDate(0, 1, 0)); got != 0 {
		t.Errorf("TimeUntilEnd() after end = %s, want 0", got)
	}
}
