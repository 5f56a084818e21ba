package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"polypaper/internal/api"
	"polypaper/internal/portfolio"
	"polypaper/internal/resilience"
	"polypaper/internal/security"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local JSON API",
		Long: `Serve the ledger, portfolio valuation and market data over HTTP.

Prometheus metrics are exposed at /metrics. While running, the portfolio is
revalued every --refresh interval so the daily P&L history keeps up to date.`,
		Example: `  polypaper serve
  polypaper serve --addr :8080 --refresh 5m
  polypaper serve --read-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = app.Config.Server.Addr
			}
			refresh, _ := cmd.Flags().GetDuration("refresh")
			readOnly := app.Config.Server.ReadOnly
			if cmd.Flags().Changed("read-only") {
				readOnly, _ = cmd.Flags().GetBool("read-only")
			}

			engine, err := app.ledger()
			if err != nil {
				output.Error("Failed to open ledger: %v", err)
				return err
			}
			defer app.Close()
			svc, err := app.valuation()
			if err != nil {
				return err
			}
			rec, err := app.recorder()
			if err != nil {
				return err
			}

			health := resilience.NewHealthChecker(5 * time.Second)
			health.Register("ledger", api.LedgerHealth(engine))
			if app.Client != nil {
				health.Register("market", resilience.BreakerHealth(app.Client.Breakers()...))
			}

			server := api.NewServer(api.Deps{
				Engine:    engine,
				Gateway:   app.gateway(),
				Valuation: svc,
				Recorder:  rec,
				Health:    health,
				Access:    security.NewAccessController(readOnly, app.Logger),
			}, app.Logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			done := make(chan struct{})
			go func() {
				defer close(done)
				if refresh > 0 {
					refreshLoop(ctx, svc, refresh, app)
				}
			}()

			output.Success("✓ Serving on http://%s", addr)
			if readOnly {
				output.Warning("Read-only mode: open, close and reset are rejected")
			}
			output.Dim("Press Ctrl+C to stop")
			err = server.ListenAndServe(ctx, addr)

			// The store is closed on return, so the loop must be gone first.
			stop()
			<-done
			return err
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")
	cmd.Flags().Duration("refresh", 15*time.Minute, "Portfolio revaluation interval (0 disables)")
	cmd.Flags().Bool("read-only", false, "Reject ledger mutations (default: server.read_only from config)")
	return cmd
}

// refreshLoop revalues the portfolio on every tick until ctx is done.
func refreshLoop(ctx context.Context, svc *portfolio.Service, every time.Duration, app *App) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Refresh(ctx); err != nil {
				app.Logger.Warn().Err(err).Msg("Scheduled valuation failed")
			}
		}
	}
}
