package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apperrors "polypaper/internal/errors"
	"polypaper/internal/history"
	"polypaper/internal/market"
	"polypaper/internal/models"
	"polypaper/internal/resilience"
	"polypaper/internal/security"
	"polypaper/internal/trading"
)

const defaultMarketsLimit = 50

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == resilience.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultMarketsLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	events, err := s.gateway.ActiveEvents(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	events, err := s.gateway.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SearchResult{Events: events})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.gateway.EventBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := s.valuation.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type balanceResponse struct {
	Balance         decimal.Decimal `json:"balance"`
	StartingBalance decimal.Decimal `json:"startingBalance"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.engine.Balance(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: balance, StartingBalance: s.engine.StartingBalance()})
}

type historyResponse struct {
	Period  models.Period        `json:"period"`
	Series  []models.PnLSnapshot `json:"series"`
	Summary history.Summary      `json:"summary"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	period, err := models.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.writeError(w, r, apperrors.NewValidationError("period", r.URL.Query().Get("period"), err.Error()))
		return
	}
	series, err := s.recorder.Filtered(r.Context(), period, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Period: period, Series: series, Summary: history.Summarize(series)})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.engine.Trades(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	switch r.URL.Query().Get("status") {
	case "open":
		trades = models.Ledger{Trades: trades}.OpenTrades()
	case "closed":
		trades = models.Ledger{Trades: trades}.ClosedTrades()
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := s.engine.Trade(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

type openRequest struct {
	MarketID       string          `json:"marketId"`
	EventTitle     string          `json:"eventTitle"`
	MarketQuestion string          `json:"marketQuestion"`
	Slug           string          `json:"slug"`
	Side           string          `json:"side"`
	Shares         decimal.Decimal `json:"shares"`
	EntryPrice     decimal.Decimal `json:"entryPrice"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if err := s.access.Check(security.OpOpenPosition); err != nil {
		s.writeError(w, r, err)
		return
	}
	var body openRequest
	if err := decodeBody(w, r, &body, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	side, err := models.ParseSide(body.Side)
	if err != nil {
		s.writeError(w, r, apperrors.NewValidationError("side", body.Side, err.Error()))
		return
	}

	res, err := s.engine.OpenPosition(r.Context(), trading.OpenRequest{
		MarketID:       body.MarketID,
		EventTitle:     body.EventTitle,
		MarketQuestion: body.MarketQuestion,
		Slug:           body.Slug,
		Side:           side,
		Shares:         body.Shares,
		EntryPrice:     body.EntryPrice,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

type closeRequest struct {
	Price *decimal.Decimal `json:"price,omitempty"`
}

// handleClose closes at the given price, or at the live market price when none is given.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.access.Check(security.OpClosePosition); err != nil {
		s.writeError(w, r, err)
		return
	}

	var body closeRequest
	if err := decodeBody(w, r, &body, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	price := decimal.Zero
	if body.Price != nil {
		price = *body.Price
	} else {
		trade, err := s.engine.Trade(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !trade.IsOpen() {
			s.writeError(w, r, apperrors.NewAlreadyClosedError(id))
			return
		}
		price, err = market.LivePrice(r.Context(), s.gateway, trade.Slug, trade.MarketID, trade.Side)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	res, err := s.engine.ClosePosition(r.Context(), id, price)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type resetResponse struct {
	Balance decimal.Decimal `json:"balance"`
	Message string          `json:"message"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.access.Check(security.OpReset); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Reset(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Balance: s.engine.StartingBalance(), Message: trading.MsgResetDone})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.NewValidationError(name, raw, "must be a non-negative integer")
	}
	return n, nil
}
