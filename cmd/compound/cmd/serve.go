package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rustyeddy/compound/api"
	"github.com/rustyeddy/compound/quoteserver"
	"github.com/rustyeddy/compound/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a live session with the quote stream and order API",
	Long: `Starts the price feed and the simulated account for the configured user
and serves:

  /quotes        WebSocket quote stream (?symbols=EUR/USD,BTC/USDT)
  /instruments   instrument catalog
  /healthz       liveness
  /api/...       account, positions, orders and plan edits

Plan changes are written back after the debounce delay and on shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, runtimeOptions{})
	if err != nil {
		return err
	}
	s := rt.session
	s.Start(ctx)
	go logNotes(s.Notifications())

	qs := quoteserver.New(s.Feed(), log)
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", api.New(s, cfg.Account.Leverage, cfg.Risk.DefaultRiskPct, log).Handler()))
	mux.Handle("/", qs.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	log.WithComponent("serve").WithField("addr", cfg.Server.Addr).Info("listening")
	fmt.Printf("Serving %s on %s (Ctrl-C to stop)\n", cfg.Store.User, cfg.Server.Addr)

	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if serr := rt.shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}

func logNotes(ch <-chan session.Notification) {
	l := log.WithComponent("notify")
	for n := range ch {
		l.WithField("level", n.Level).Info(n.Message)
	}
}
