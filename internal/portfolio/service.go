// Package portfolio values the paper portfolio against live market prices.
package portfolio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"polypaper/internal/config"
	"polypaper/internal/history"
	"polypaper/internal/logging"
	"polypaper/internal/market"
	"polypaper/internal/metrics"
	"polypaper/internal/models"
	"polypaper/internal/trading"
)

var hundred = decimal.NewFromInt(100)

// Service runs valuation passes. Each pass reads the ledger once, prices every open position
// concurrently, and records today's snapshot.
type Service struct {
	engine      *trading.Engine
	gateway     market.Gateway
	recorder    *history.Recorder
	concurrency int
	timeout     time.Duration
	logger      zerolog.Logger
	now         func() time.Time

	seq       atomic.Uint64
	mu        sync.Mutex
	completed uint64 // sequence of the newest finished pass

	inflight singleflight.Group
}

// NewService creates a valuation service.
func NewService(engine *trading.Engine, gateway market.Gateway, recorder *history.Recorder, cfg config.ValuationConfig, logger zerolog.Logger) *Service {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		engine:      engine,
		gateway:     gateway,
		recorder:    recorder,
		concurrency: concurrency,
		timeout:     cfg.Timeout,
		logger:      logger.With().Str("component", "portfolio").Logger(),
		now:         time.Now,
	}
}

// quote is the pricing outcome for one event slug.
type quote struct {
	event *models.Event
	err   error
}

// Value runs one valuation pass. Price lookups that fail fall back to the entry price for the
// affected positions only. A pass that finishes after a newer one is returned with Stale set and
// does not touch the snapshot series.
func (s *Service) Value(ctx context.Context) (*models.Portfolio, error) {
	seq := s.seq.Add(1)
	start := time.Now()
	logger := s.logger.With().Uint64("sequence", seq).Logger()

	ledger, err := s.engine.Ledger(ctx)
	if err != nil {
		metrics.ValuationPasses.WithLabelValues("error").Inc()
		return nil, err
	}
	open := ledger.OpenTrades()
	closed := ledger.ClosedTrades()

	quotes := s.fetchQuotes(ctx, open, logger)

	positions := make([]models.Position, len(open))
	for i, trade := range open {
		positions[i] = s.valuePosition(trade, quotes[trade.Slug], logger)
	}

	p := s.reduce(ledger.Balance, positions, closed)
	p.Sequence = seq
	p.AsOf = s.now().UTC()

	// The sequence check and the snapshot write happen under the ledger lock, so snapshots are
	// written in sequence order and never after a reset that happened during the pass.
	inEpoch, err := s.engine.WithinEpoch(ledger.Epoch, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if seq < s.completed {
			p.Stale = true
			return nil
		}
		s.completed = seq
		_, err := s.recorder.Record(ctx, p.TotalPnL, p.TotalValue, p.AsOf)
		return err
	})
	if err != nil {
		metrics.ValuationPasses.WithLabelValues("error").Inc()
		return nil, err
	}
	if !inEpoch {
		p.Stale = true
	}
	if p.Stale {
		metrics.ValuationPasses.WithLabelValues("stale").Inc()
		logger.Debug().Msg("Valuation pass superseded, snapshot skipped")
		return p, nil
	}

	s.annotate(ctx, positions, logger)

	metrics.ValuationPasses.WithLabelValues("ok").Inc()
	metrics.ValuationDuration.Observe(time.Since(start).Seconds())
	logging.LogValuation(logger, seq, len(positions), p.Fallbacks, p.TotalValue, p.TotalPnL, time.Since(start))
	return p, nil
}

// Refresh runs a valuation pass, sharing it with any caller that asks while one is in flight.
func (s *Service) Refresh(ctx context.Context) (*models.Portfolio, error) {
	v, err, _ := s.inflight.Do("value", func() (interface{}, error) {
		return s.Value(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Portfolio), nil
}

// fetchQuotes fetches each distinct event once, with bounded concurrency. Failures are kept
// per slug and never abort the group.
func (s *Service) fetchQuotes(ctx context.Context, open []models.Trade, logger zerolog.Logger) map[string]quote {
	var slugs []string
	seen := make(map[string]bool)
	for _, t := range open {
		if !seen[t.Slug] {
			seen[t.Slug] = true
			slugs = append(slugs, t.Slug)
		}
	}

	results := make([]quote, len(slugs))
	if len(slugs) > 0 {
		passCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			passCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for i, slug := range slugs {
			i, slug := i, slug
			g.Go(func() error {
				event, err := s.gateway.EventBySlug(passCtx, slug)
				results[i] = quote{event: event, err: err}
				if err != nil {
					l := logging.WithSlug(logger, slug)
					l.Warn().Err(err).Msg("Price fetch failed, valuing at entry price")
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	out := make(map[string]quote, len(slugs))
	for i, slug := range slugs {
		out[slug] = results[i]
	}
	return out
}

func (s *Service) valuePosition(trade models.Trade, q quote, logger zerolog.Logger) models.Position {
	price := trade.EntryPrice
	fallback := false
	var errMsg string

	if q.err != nil {
		fallback = true
		errMsg = q.err.Error()
	} else if m, err := market.FindMarket(q.event, trade.MarketID); err != nil {
		fallback = true
		errMsg = err.Error()
		l := logging.WithTradeID(logger, trade.ID)
		l.Warn().Err(err).Msg("Market missing from event, valuing at entry price")
	} else {
		price = market.CurrentPrice(*m, trade.Side)
	}

	if fallback {
		metrics.ValuationFallbacks.Inc()
	}

	current := price
	trade.CurrentPrice = &current
	value := trade.ValueAt(price)
	pnl := value.Sub(trade.TotalCost)

	return models.Position{
		Trade:         trade,
		CurrentValue:  value,
		UnrealizedPnL: pnl,
		PnLPercent:    trade.PnLPercent(pnl),
		Fallback:      fallback,
		Error:         errMsg,
	}
}

// reduce sums the per-position results once. totalValue is cash plus the live value of open
// positions; closed trades add only to totalPnL since their proceeds are already in cash.
func (s *Service) reduce(cash decimal.Decimal, positions []models.Position, closed []models.Trade) *models.Portfolio {
	openValue := decimal.Zero
	unrealized := decimal.Zero
	fallbacks := 0
	for _, p := range positions {
		openValue = openValue.Add(p.CurrentValue)
		unrealized = unrealized.Add(p.UnrealizedPnL)
		if p.Fallback {
			fallbacks++
		}
	}

	realized := decimal.Zero
	for _, t := range closed {
		realized = realized.Add(t.RealizedPnL())
	}

	totalValue := cash.Add(openValue)
	totalPnL := unrealized.Add(realized)

	p := &models.Portfolio{
		TotalValue:      totalValue,
		TotalPnL:        totalPnL,
		Cash:            cash,
		OpenValue:       openValue,
		RealizedPnL:     realized,
		UnrealizedPnL:   unrealized,
		ReturnPercent:   decimal.Zero,
		CashPercent:     decimal.Zero,
		OpenPositions:   positions,
		ClosedPositions: closed,
		Fallbacks:       fallbacks,
	}
	if starting := s.engine.StartingBalance(); !starting.IsZero() {
		p.ReturnPercent = totalPnL.Div(starting).Mul(hundred)
	}
	if !totalValue.IsZero() {
		p.CashPercent = cash.Div(totalValue).Mul(hundred)
	}
	return p
}

// annotate stores live prices on open trades. Fallback prices are not stored.
func (s *Service) annotate(ctx context.Context, positions []models.Position, logger zerolog.Logger) {
	prices := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		if !p.Fallback && p.CurrentPrice != nil {
			prices[p.ID] = *p.CurrentPrice
		}
	}
	if err := s.engine.AnnotatePrices(ctx, prices); err != nil {
		logger.Warn().Err(err).Msg("Failed to store current prices")
	}
}
