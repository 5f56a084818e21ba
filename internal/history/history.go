// Package history maintains the daily P&L snapshot series used for charting.
package history

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"polypaper/internal/models"
	"polypaper/internal/store"
)

// DefaultRetention is how long snapshots are kept.
const DefaultRetention = 365 * 24 * time.Hour

// Recorder writes and reads the snapshot series.
type Recorder struct {
	store     store.LedgerStore
	retention time.Duration
	logger    zerolog.Logger
}

// NewRecorder creates a recorder. A non-positive retention uses DefaultRetention.
func NewRecorder(ledger store.LedgerStore, retention time.Duration, logger zerolog.Logger) *Recorder {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Recorder{
		store:     ledger,
		retention: retention,
		logger:    logger.With().Str("component", "history").Logger(),
	}
}

// Record upserts the snapshot for now's UTC calendar day and prunes expired entries.
func (r *Recorder) Record(ctx context.Context, totalPnL, totalValue decimal.Decimal, now time.Time) (models.PnLSnapshot, error) {
	series, err := r.store.Snapshots(ctx)
	if err != nil {
		return models.PnLSnapshot{}, err
	}

	snap := models.PnLSnapshot{
		Date:       models.DayOf(now),
		TotalPnL:   totalPnL,
		TotalValue: totalValue,
		Timestamp:  now.UTC(),
	}

	series = Upsert(series, snap)
	before := len(series)
	series = Prune(series, now, r.retention)

	if err := r.store.SaveSnapshots(ctx, series); err != nil {
		return models.PnLSnapshot{}, err
	}

	r.logger.Debug().
		Str("date", snap.Date).
		Str("total_pnl", totalPnL.StringFixed(2)).
		Int("pruned", before-len(series)).
		Msg("Snapshot recorded")
	return snap, nil
}

// Series returns the full snapshot series in ascending date order.
func (r *Recorder) Series(ctx context.Context) ([]models.PnLSnapshot, error) {
	return r.store.Snapshots(ctx)
}

// Filtered returns the snapshots within period's window ending at now.
func (r *Recorder) Filtered(ctx context.Context, period models.Period, now time.Time) ([]models.PnLSnapshot, error) {
	series, err := r.store.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(series, period, now), nil
}

// Upsert replaces the snapshot for snap's date, or inserts it keeping dates ascending.
func Upsert(series []models.PnLSnapshot, snap models.PnLSnapshot) []models.PnLSnapshot {
	out := make([]models.PnLSnapshot, 0, len(series)+1)
	replaced := false
	for _, s := range series {
		if s.Date == snap.Date {
			if !replaced {
				out = append(out, snap)
				replaced = true
			}
			continue
		}
		out = append(out, s)
	}
	if !replaced {
		out = append(out, snap)
	}
	// Date strings in YYYY-MM-DD order lexically.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Prune drops snapshots whose day starts before now-retention.
func Prune(series []models.PnLSnapshot, now time.Time, retention time.Duration) []models.PnLSnapshot {
	cutoff := now.Add(-retention)
	out := series[:0:0]
	for _, s := range series {
		if onOrAfter(s, cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// onOrAfter reports whether the snapshot's day, taken as UTC midnight, is not before cutoff.
// Snapshots with an unparseable date are never kept.
func onOrAfter(s models.PnLSnapshot, cutoff time.Time) bool {
	day, err := s.Day()
	return err == nil && !day.Before(cutoff)
}

// Filter returns the snapshots whose day starts on or after now minus the period's window.
// PeriodAll returns the whole series.
func Filter(series []models.PnLSnapshot, period models.Period, now time.Time) []models.PnLSnapshot {
	window, ok := period.Window()
	if !ok {
		out := make([]models.PnLSnapshot, len(series))
		copy(out, series)
		return out
	}
	cutoff := now.Add(-window)
	out := make([]models.PnLSnapshot, 0, len(series))
	for _, s := range series {
		if onOrAfter(s, cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// Summary describes a charted window of the series.
type Summary struct {
	Points    int             `json:"points"`
	First     decimal.Decimal `json:"first"`
	Last      decimal.Decimal `json:"last"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Change    decimal.Decimal `json:"change"`
	StartDate string          `json:"startDate,omitempty"`
	EndDate   string          `json:"endDate,omitempty"`
}

// Summarize computes first, last, high, low and change of total P&L over series.
func Summarize(series []models.PnLSnapshot) Summary {
	if len(series) == 0 {
		return Summary{}
	}
	s := Summary{
		Points:    len(series),
		First:     series[0].TotalPnL,
		Last:      series[len(series)-1].TotalPnL,
		High:      series[0].TotalPnL,
		Low:       series[0].TotalPnL,
		StartDate: series[0].Date,
		EndDate:   series[len(series)-1].Date,
	}
	for _, p := range series[1:] {
		if p.TotalPnL.GreaterThan(s.High) {
			s.High = p.TotalPnL
		}
		if p.TotalPnL.LessThan(s.Low) {
			s.Low = p.TotalPnL
		}
	}
	s.Change = s.Last.Sub(s.First)
	return s
}
