// Package api exposes a running session over JSON HTTP: account and
// position views, order entry and plan journal edits.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/compound/logger"
	"github.com/rustyeddy/compound/market"
	"github.com/rustyeddy/compound/plan"
	"github.com/rustyeddy/compound/risk"
	"github.com/rustyeddy/compound/session"
	"github.com/rustyeddy/compound/sim"
)

type Server struct {
	session  *session.Session
	leverage int
	riskPct  float64
	log      *logrus.Entry
}

// New serves s. Orders without a leverage use leverage; orders with a stop
// but no lots are sized to risk riskPct of equity.
func New(s *session.Session, leverage int, riskPct float64, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{session: s, leverage: leverage, riskPct: riskPct, log: log.WithComponent("api")}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /account", s.handleAccount)
	mux.HandleFunc("GET /positions", s.handlePositions)
	mux.HandleFunc("DELETE /positions/{id}", s.handleClose)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("POST /orders", s.handleOrder)
	mux.HandleFunc("GET /plan", s.handlePlan)
	mux.HandleFunc("GET /plan/summary", s.handleSummary)
	mux.HandleFunc("PUT /plan/days/{day}/outcome", s.handleOutcome)
	mux.HandleFunc("DELETE /plan/days/{day}/outcome", s.handleClearOutcome)
	mux.HandleFunc("POST /plan/hidden", s.handleHidden)
	return mux
}

type PositionView struct {
	ID           string    `json:"id"`
	Instrument   string    `json:"instrument"`
	Side         string    `json:"side"`
	Lots         float64   `json:"lots"`
	Leverage     int       `json:"leverage"`
	EntryPrice   float64   `json:"entryPrice"`
	StopLoss     *float64  `json:"stopLoss,omitempty"`
	TakeProfit   *float64  `json:"takeProfit,omitempty"`
	OpenedAt     time.Time `json:"openedAt"`
	MarginUsed   float64   `json:"marginUsed"`
	UnrealizedPL float64   `json:"unrealizedPL"`
}

func positionView(p sim.Position) PositionView {
	return PositionView{
		ID:           p.ID,
		Instrument:   p.Instrument,
		Side:         p.Side.String(),
		Lots:         p.Lots,
		Leverage:     p.Leverage,
		EntryPrice:   p.EntryPrice,
		StopLoss:     p.StopLoss,
		TakeProfit:   p.TakeProfit,
		OpenedAt:     p.OpenedAt,
		MarginUsed:   p.MarginUsed,
		UnrealizedPL: p.UnrealizedPL,
	}
}

type TradeView struct {
	PositionView
	ExitPrice  float64   `json:"exitPrice"`
	ClosedAt   time.Time `json:"closedAt"`
	RealizedPL float64   `json:"realizedPL"`
	Reason     string    `json:"reason"`
}

func tradeView(ct sim.ClosedTrade) TradeView {
	return TradeView{
		PositionView: positionView(ct.Position),
		ExitPrice:    ct.ExitPrice,
		ClosedAt:     ct.ClosedAt,
		RealizedPL:   ct.RealizedPL,
		Reason:       string(ct.Reason),
	}
}

type AccountView struct {
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	MarginUsed  float64 `json:"marginUsed"`
	FreeMargin  float64 `json:"freeMargin"`
	MarginLevel float64 `json:"marginLevel"`
}

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	Instrument string   `json:"instrument"`
	Side       string   `json:"side"`
	Lots       float64  `json:"lots"`
	Leverage   int      `json:"leverage"`
	StopLoss   *float64 `json:"stopLoss"`
	TakeProfit *float64 `json:"takeProfit"`
	RiskPct    float64  `json:"riskPct"`
}

type SummaryView struct {
	InitialCapital float64  `json:"initialCapital"`
	FinalTarget    float64  `json:"finalTarget"`
	Tenure         int      `json:"tenure"`
	RequiredRate   float64  `json:"requiredRate"`
	CurrentCapital float64  `json:"currentCapital"`
	DaysRecorded   int      `json:"daysRecorded"`
	DaysAchieved   int      `json:"daysAchieved"`
	Progress       float64  `json:"progress"`
	Fallbacks      []string `json:"fallbacks,omitempty"`
}

func summaryView(sum plan.Summary) SummaryView {
	v := SummaryView{
		InitialCapital: sum.Config.InitialCapital,
		FinalTarget:    sum.Config.FinalTarget,
		Tenure:         sum.Config.Tenure,
		RequiredRate:   sum.RequiredRate,
		CurrentCapital: sum.CurrentCapital,
		DaysRecorded:   sum.DaysRecorded,
		DaysAchieved:   sum.DaysAchieved,
		Progress:       sum.Progress(),
	}
	for _, f := range sum.Fallbacks {
		v.Fallbacks = append(v.Fallbacks, f.Error())
	}
	return v
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	a := s.session.Engine().Account()
	jsonOK(w, http.StatusOK, AccountView{
		Balance:     a.Balance,
		Equity:      a.Equity,
		MarginUsed:  a.MarginUsed,
		FreeMargin:  a.FreeMargin,
		MarginLevel: a.MarginLevel,
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	open := s.session.Engine().OpenPositions()
	out := make([]PositionView, 0, len(open))
	for _, p := range open {
		out = append(out, positionView(p))
	}
	jsonOK(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist := s.session.Engine().History()
	out := make([]TradeView, 0, len(hist))
	for _, ct := range hist {
		out = append(out, tradeView(ct))
	}
	jsonOK(w, http.StatusOK, out)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	side, err := sim.ParseSide(req.Side)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Leverage == 0 {
		req.Leverage = s.leverage
	}
	if req.Lots == 0 && req.StopLoss != nil {
		lots, err := s.size(req, side)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		req.Lots = lots
	}

	p, err := s.session.Open(r.Context(), sim.OrderRequest{
		Instrument: req.Instrument,
		Side:       side,
		Lots:       req.Lots,
		Leverage:   req.Leverage,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	jsonOK(w, http.StatusCreated, positionView(p))
}

// size applies the risk sizer at the current fill price.
func (s *Server) size(req OrderRequest, side sim.Side) (float64, error) {
	if err := s.session.Watch(req.Instrument); err != nil {
		return 0, err
	}
	q, err := s.session.Engine().Quotes().Get(req.Instrument)
	if err != nil {
		return 0, err
	}
	entry := q.Ask
	if side == sim.Short {
		entry = q.Bid
	}
	pct := req.RiskPct
	if pct <= 0 {
		pct = s.riskPct
	}
	res, err := risk.Lots(risk.Inputs{
		Capital:    s.session.Engine().Account().Equity,
		RiskPct:    pct,
		Instrument: req.Instrument,
		EntryPrice: entry,
		StopPrice:  *req.StopLoss,
	})
	if err != nil {
		return 0, err
	}
	return res.Lots, nil
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	ct, err := s.session.Close(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	jsonOK(w, http.StatusOK, tradeView(ct))
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, http.StatusOK, s.session.Document())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, http.StatusOK, summaryView(s.session.Summary()))
}

type outcomeBody struct {
	Signed *float64 `json:"signed"`
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "day must be a number")
		return
	}
	var body outcomeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Signed == nil {
		jsonErr(w, http.StatusBadRequest, "body must be {\"signed\": <number>}")
		return
	}
	sum, err := s.session.SetJournalOutcome(day, *body.Signed)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	jsonOK(w, http.StatusOK, summaryView(sum))
}

func (s *Server) handleClearOutcome(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "day must be a number")
		return
	}
	var sum plan.Summary
	err = s.session.Edit(func(doc *plan.Document) error {
		var err error
		sum, err = doc.ClearOutcome(day)
		return err
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	jsonOK(w, http.StatusOK, summaryView(sum))
}

type hiddenBody struct {
	Symbol string `json:"symbol"`
	Hidden bool   `json:"hidden"`
}

func (s *Server) handleHidden(w http.ResponseWriter, r *http.Request) {
	var body hiddenBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Symbol == "" {
		jsonErr(w, http.StatusBadRequest, "body must be {\"symbol\": ..., \"hidden\": bool}")
		return
	}
	if _, err := market.Lookup(body.Symbol); err != nil {
		s.writeErr(w, err)
		return
	}
	s.session.SetHidden(body.Symbol, body.Hidden)
	jsonOK(w, http.StatusOK, s.session.Document().HiddenSymbols)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, sim.ErrPositionNotFound), errors.Is(err, plan.ErrDayNotFound):
		return http.StatusNotFound
	case errors.Is(err, sim.ErrNoQuote):
		return http.StatusConflict
	case errors.Is(err, sim.ErrInsufficientMargin):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	code := statusOf(err)
	s.log.WithError(err).WithField("status", code).Debug("request rejected")
	jsonErr(w, code, err.Error())
}

func jsonOK(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
