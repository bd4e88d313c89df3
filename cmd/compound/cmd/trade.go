package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/compound/market"
	"github.com/rustyeddy/compound/risk"
	"github.com/rustyeddy/compound/session"
	"github.com/rustyeddy/compound/sim"
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Simulate margin trades against the plan",
}

var tradeDemoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Open one risk-sized trade on the simulated feed and follow it",
	Long: `Runs a live session on the random-walk feed and opens a single trade
sized so that hitting the stop loses --risk of the plan's current capital.
The take-profit sits --rr times the stop distance away.

The trade is followed until a trigger closes it or --timeout expires, in
which case it is closed at market. The realized P&L is folded into the
active day of the plan and written to the trade journal.

Examples:
  compound trade demo
  compound trade demo --instrument XAU/USD --side short --stop-pips 150
  compound trade demo --instrument BTC/USDT --period 100ms --seed 7`,
	Args: cobra.NoArgs,
	RunE: runTradeDemo,
}

var (
	demoInstrument string
	demoSide       string
	demoRisk       float64
	demoStopPips   float64
	demoRR         float64
	demoLeverage   int
	demoPeriod     time.Duration
	demoTimeout    time.Duration
	demoSeed       int64
)

func init() {
	rootCmd.AddCommand(tradeCmd)
	tradeCmd.AddCommand(tradeDemoCmd)

	f := tradeDemoCmd.Flags()
	f.StringVarP(&demoInstrument, "instrument", "i", "EUR/USD", "instrument to trade")
	f.StringVarP(&demoSide, "side", "s", "long", "long/buy or short/sell")
	f.Float64Var(&demoRisk, "risk", 0, "fraction of capital to risk (default risk.default_risk_pct)")
	f.Float64Var(&demoStopPips, "stop-pips", 20, "stop distance in pips")
	f.Float64Var(&demoRR, "rr", 2, "take-profit distance as a multiple of the stop distance")
	f.IntVar(&demoLeverage, "leverage", 0, "leverage (default account.leverage)")
	f.DurationVar(&demoPeriod, "period", 100*time.Millisecond, "feed tick period")
	f.DurationVar(&demoTimeout, "timeout", time.Minute, "close at market after this long")
	f.Int64Var(&demoSeed, "seed", 0, "feed seed (0 uses feed.seed or the clock)")
}

func runTradeDemo(cmd *cobra.Command, args []string) error {
	side, err := sim.ParseSide(demoSide)
	if err != nil {
		return err
	}
	meta, err := market.Lookup(demoInstrument)
	if err != nil {
		return fmt.Errorf("%s: %w", demoInstrument, err)
	}
	riskPct := demoRisk
	if riskPct <= 0 {
		riskPct = cfg.Risk.DefaultRiskPct
	}
	leverage := demoLeverage
	if leverage == 0 {
		leverage = cfg.Account.Leverage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rt, err := newRuntime(ctx, runtimeOptions{Period: demoPeriod, Seed: demoSeed})
	if err != nil {
		return err
	}
	s := rt.session
	engine := s.Engine()

	fmt.Println("=== Trade Demo ===")
	fmt.Println(s.Summary())
	fmt.Println()

	if err := s.Watch(demoInstrument); err != nil {
		rt.shutdown(context.Background())
		return err
	}
	s.Start(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = waitQuote(waitCtx, engine, demoInstrument)
	cancel()
	if err != nil {
		rt.shutdown(context.Background())
		return fmt.Errorf("no quote for %s: %w", demoInstrument, err)
	}

	q, _ := engine.Quotes().Get(demoInstrument)
	entry := q.Ask
	if side == sim.Short {
		entry = q.Bid
	}
	dist := demoStopPips * meta.PipSize
	sl := entry - float64(side)*dist
	tp := entry + float64(side)*dist*demoRR

	acct := engine.Account()
	size, err := risk.Lots(risk.Inputs{
		Capital:    acct.Equity,
		RiskPct:    riskPct,
		Instrument: demoInstrument,
		EntryPrice: entry,
		StopPrice:  sl,
	})
	if err != nil {
		rt.shutdown(context.Background())
		return fmt.Errorf("size position: %w", err)
	}

	fmt.Printf("Quote  - Bid: %.5f, Ask: %.5f\n", q.Bid, q.Ask)
	fmt.Printf("Sizing - Risk: $%.2f (%.2f%% of $%.2f), Stop: %.1f pips, Lots: %.2f\n",
		size.RiskAmount, riskPct*100, acct.Equity, size.StopPips, size.Lots)
	fmt.Printf("Stops  - SL: %.5f, TP: %.5f (1:%.1f)\n\n", sl, tp, demoRR)

	p, err := s.Open(ctx, sim.OrderRequest{
		Instrument: demoInstrument,
		Side:       side,
		Lots:       size.Lots,
		Leverage:   leverage,
		StopLoss:   &sl,
		TakeProfit: &tp,
	})
	if err != nil {
		printNotes(s.Notifications())
		rt.shutdown(context.Background())
		return err
	}

	follow(ctx, s, p.ID, demoTimeout)

	if _, open := engine.Position(p.ID); open {
		if _, err := s.Close(context.Background(), p.ID); err != nil {
			log.WithPosition(p.ID).WithError(err).Warn("close at timeout")
		}
	}

	err = rt.shutdown(context.Background())
	printNotes(s.Notifications())

	fmt.Println()
	for _, ct := range engine.History() {
		fmt.Printf("Closed %s %s %.2f lots: %.5f -> %.5f, P&L %.2f (%s)\n",
			ct.Side, ct.Instrument, ct.Lots, ct.EntryPrice, ct.ExitPrice, ct.RealizedPL, ct.Reason)
	}
	fmt.Println(s.Summary())
	return err
}

// follow prints notifications until the position is gone, the timeout
// passes or ctx is cancelled.
func follow(ctx context.Context, s *session.Session, positionID string, timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(50 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			fmt.Println("Timeout, closing at market")
			return
		case n, ok := <-s.Notifications():
			if !ok {
				return
			}
			printNote(n)
		case <-poll.C:
			p, open := s.Engine().Position(positionID)
			if !open {
				return
			}
			log.WithPosition(p.ID).WithField("unrealized", p.UnrealizedPL).Debug("open")
		}
	}
}

func printNote(n session.Notification) {
	fmt.Printf("[%s] %-7s %s\n", n.Time.Format("15:04:05"), n.Level, n.Message)
}

// printNotes drains whatever is buffered without blocking.
func printNotes(ch <-chan session.Notification) {
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			printNote(n)
		default:
			return
		}
	}
}
