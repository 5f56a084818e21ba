package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"YES", SideYes, false},
		{"yes", SideYes, false},
		{" No ", SideNo, false},
		{"maybe", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSide(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseSide(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in     string
		want   Period
		window time.Duration
	}{
		{"day", PeriodDay, 24 * time.Hour},
		{"1W", PeriodWeek, 7 * 24 * time.Hour},
		{"month", PeriodMonth, 30 * 24 * time.Hour},
		{"", PeriodAll, 0},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParsePeriod(%q) = %q, %v", tt.in, got, err)
			continue
		}
		window, bounded := got.Window()
		if window != tt.window || bounded != (tt.window > 0) {
			t.Errorf("%s.Window() = %s, %v", got, window, bounded)
		}
	}
	if _, err := ParsePeriod("year"); err == nil {
		t.Error("expected error for unknown period")
	}
}

func TestFlexDecimal(t *testing.T) {
	var v struct {
		A FlexDecimal `json:"a"`
		B FlexDecimal `json:"b"`
		C FlexDecimal `json:"c"`
		D FlexDecimal `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a":"1500000.5","b":42000.25,"c":null,"d":""}`), &v); err != nil {
		t.Fatal(err)
	}
	if !v.A.Equal(decimal.RequireFromString("1500000.5")) || !v.B.Equal(decimal.RequireFromString("42000.25")) {
		t.Errorf("decoded %s %s", v.A, v.B)
	}
	if !v.C.IsZero() || !v.D.IsZero() {
		t.Errorf("null and empty should decode to zero: %s %s", v.C, v.D)
	}
	if err := json.Unmarshal([]byte(`{"a":true}`), &v); err == nil {
		t.Error("expected error for a boolean")
	}
}

func TestEncodedList(t *testing.T) {
	var m struct {
		Outcomes EncodedList `json:"outcomes"`
		Prices   EncodedList `json:"prices"`
	}
	if err := json.Unmarshal([]byte(`{"outcomes":"[\"Yes\",\"No\"]","prices":["0.4","0.6"]}`), &m); err != nil {
		t.Fatal(err)
	}
	if m.Outcomes != `["Yes","No"]` || m.Prices != `["0.4","0.6"]` {
		t.Errorf("got %q %q", m.Outcomes, m.Prices)
	}
}

func TestTradePnL(t *testing.T) {
	closePrice := decimal.RequireFromString("0.60")
	trade := Trade{
		Shares:     decimal.NewFromInt(100),
		EntryPrice: decimal.RequireFromString("0.40"),
		TotalCost:  decimal.NewFromInt(40),
		Status:     StatusOpen,
	}

	if !trade.RealizedPnL().IsZero() || !trade.ExitValue().IsZero() {
		t.Error("open trade has no realized P&L")
	}
	pnl := trade.UnrealizedPnL(decimal.RequireFromString("0.55"))
	if !pnl.Equal(decimal.NewFromInt(15)) || !trade.PnLPercent(pnl).Equal(decimal.RequireFromString("37.5")) {
		t.Errorf("unrealized %s (%s%%)", pnl, trade.PnLPercent(pnl))
	}

	trade.Status = StatusClosed
	trade.ClosePrice = &closePrice
	if !trade.ExitValue().Equal(decimal.NewFromInt(60)) || !trade.RealizedPnL().Equal(decimal.NewFromInt(20)) {
		t.Errorf("closed: exit %s pnl %s", trade.ExitValue(), trade.RealizedPnL())
	}
}

func TestCloneIsDeep(t *testing.T) {
	price := decimal.RequireFromString("0.5")
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	trades := []Trade{{ID: "a", ClosePrice: &price, CloseDate: &when, Status: StatusClosed}, {ID: "b", Status: StatusOpen}}

	copied := CloneTrades(trades)
	*copied[0].ClosePrice = decimal.NewFromInt(1)
	*copied[0].CloseDate = when.Add(time.Hour)

	if !trades[0].ClosePrice.Equal(price) || !trades[0].CloseDate.Equal(when) {
		t.Error("clone shares pointers with the original")
	}

	ledger := Ledger{Trades: trades}
	if len(ledger.OpenTrades()) != 1 || len(ledger.ClosedTrades()) != 1 {
		t.Error("open/closed split")
	}
	if CloneTrades(nil) != nil {
		t.Error("nil stays nil")
	}
}

func TestDayOf(t *testing.T) {
	local := time.Date(2026, 3, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	if got := DayOf(local); got != "2026-03-02" {
		t.Errorf("DayOf = %s, want the UTC calendar date", got)
	}
}
