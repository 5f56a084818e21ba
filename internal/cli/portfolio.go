package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"polypaper/internal/history"
	"polypaper/internal/models"
	"polypaper/internal/trading"
	"polypaper/pkg/utils"
)

const sparkWidth = 40

func addPortfolioCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newPortfolioCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newBalanceCmd(app))
	rootCmd.AddCommand(newResetCmd(app))
}

func newPositionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "positions",
		Aliases: []string{"pos"},
		Short:   "List trades from the ledger",
		Long: `List trades as stored in the ledger, without fetching market prices.

Use 'polypaper portfolio' to revalue open positions at current prices.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			engine, err := app.ledger()
			if err != nil {
				output.Error("Failed to open ledger: %v", err)
				return err
			}
			trades, err := engine.Trades(ctx)
			if err != nil {
				output.Error("Failed to read trades: %v", err)
				return err
			}

			ledger := models.Ledger{Trades: trades}
			status, _ := cmd.Flags().GetString("status")
			switch strings.ToLower(status) {
			case "open":
				trades = ledger.OpenTrades()
			case "closed":
				trades = ledger.ClosedTrades()
			case "", "all":
			default:
				return fmt.Errorf("invalid status %q (must be open, closed or all)", status)
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Info("No positions")
				return nil
			}

			table := NewTable(output, "ID", "MARKET", "SIDE", "SHARES", "ENTRY", "COST", "STATUS", "P&L")
			for _, t := range trades {
				pnl := "-"
				if !t.IsOpen() {
					pnl = output.PnL(t.RealizedPnL())
				} else if t.CurrentPrice != nil {
					pnl = output.DimText(utils.FormatPnL(t.UnrealizedPnL(*t.CurrentPrice)))
				}
				table.AddRow(
					t.ID,
					truncate(t.MarketQuestion, 40),
					output.Side(string(t.Side)),
					utils.FormatShares(t.Shares),
					utils.FormatPrice(t.EntryPrice),
					utils.FormatCurrency(t.TotalCost),
					string(t.Status),
					pnl,
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringP("status", "s", "all", "Filter by status (open, closed, all)")
	return cmd
}

func newPortfolioCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "portfolio",
		Aliases: []string{"pf"},
		Short:   "Value the portfolio at current market prices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			svc, err := app.valuation()
			if err != nil {
				output.Error("Failed to open ledger: %v", err)
				return err
			}
			p, err := svc.Value(ctx)
			if err != nil {
				output.Error("Valuation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(p)
			}
			renderPortfolio(output, p)
			return nil
		},
	}
}

func renderPortfolio(output *Output, p *models.Portfolio) {
	output.Box("Portfolio", []string{
		"Total Value:  " + utils.FormatCurrency(p.TotalValue),
		"Total P&L:    " + output.PnL(p.TotalPnL) + " (" + output.Percent(p.ReturnPercent) + ")",
		"Cash:         " + utils.FormatCurrency(p.Cash) + " (" + p.CashPercent.StringFixed(1) + "%)",
		"Positions:    " + utils.FormatCurrency(p.OpenValue),
		"Unrealized:   " + output.PnL(p.UnrealizedPnL),
		"Realized:     " + output.PnL(p.RealizedPnL),
	})

	if len(p.OpenPositions) > 0 {
		output.Println()
		output.Bold("Open Positions")
		table := NewTable(output, "ID", "MARKET", "SIDE", "SHARES", "ENTRY", "NOW", "VALUE", "P&L", "%")
		for _, pos := range p.OpenPositions {
			now := "-"
			if pos.CurrentPrice != nil {
				now = utils.FormatPrice(*pos.CurrentPrice)
			}
			if pos.Fallback {
				now = output.Yellow(now + "*")
			}
			table.AddRow(
				pos.ID,
				truncate(pos.MarketQuestion, 36),
				output.Side(string(pos.Side)),
				utils.FormatShares(pos.Shares),
				utils.FormatPrice(pos.EntryPrice),
				now,
				utils.FormatCurrency(pos.CurrentValue),
				output.PnL(pos.UnrealizedPnL),
				output.Percent(pos.PnLPercent),
			)
		}
		table.Render()
		if p.Fallbacks > 0 {
			output.Dim("* price unavailable, valued at entry price (%d position(s))", p.Fallbacks)
		}
	}

	if len(p.ClosedPositions) > 0 {
		output.Println()
		output.Bold("Closed Positions")
		table := NewTable(output, "ID", "MARKET", "SIDE", "ENTRY", "EXIT", "P&L")
		for _, t := range p.ClosedPositions {
			exit := "-"
			if t.ClosePrice != nil {
				exit = utils.FormatPrice(*t.ClosePrice)
			}
			table.AddRow(
				t.ID,
				truncate(t.MarketQuestion, 36),
				output.Side(string(t.Side)),
				utils.FormatPrice(t.EntryPrice),
				exit,
				output.PnL(t.RealizedPnL()),
			)
		}
		table.Render()
	}

	if p.Stale {
		output.Println()
		output.Warning("A newer valuation finished first; this view was not recorded")
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the daily P&L history",
		Example: `  polypaper history
  polypaper history --period month`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			raw, _ := cmd.Flags().GetString("period")
			period, err := models.ParsePeriod(raw)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			rec, err := app.recorder()
			if err != nil {
				output.Error("Failed to open ledger: %v", err)
				return err
			}
			series, err := rec.Filtered(ctx, period, time.Now())
			if err != nil {
				output.Error("Failed to read history: %v", err)
				return err
			}
			summary := history.Summarize(series)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"period":  period,
					"series":  series,
					"summary": summary,
				})
			}
			if len(series) == 0 {
				output.Info("No history yet. Run 'polypaper portfolio' to record today's snapshot.")
				return nil
			}

			output.Bold("P&L History (%s)", period)
			output.Printf("  %s\n", sparkline(series, sparkWidth))
			output.Printf("  %s → %s  ·  change %s  ·  high %s  ·  low %s\n",
				summary.StartDate, summary.EndDate,
				output.PnL(summary.Change),
				utils.FormatPnL(summary.High), utils.FormatPnL(summary.Low))
			output.Println()

			table := NewTable(output, "DATE", "TOTAL P&L", "TOTAL VALUE")
			for _, s := range series {
				table.AddRow(s.Date, output.PnL(s.TotalPnL), utils.FormatCurrency(s.TotalValue))
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().String("period", "all", "History window (day, week, month, all)")
	return cmd
}

// sparkline renders the last width points of the series as block characters.
func sparkline(series []models.PnLSnapshot, width int) string {
	if len(series) == 0 {
		return ""
	}
	if len(series) > width {
		series = series[len(series)-width:]
	}
	blocks := []rune("▁▂▃▄▅▆▇█")

	low, high := series[0].TotalPnL, series[0].TotalPnL
	for _, s := range series {
		if s.TotalPnL.LessThan(low) {
			low = s.TotalPnL
		}
		if s.TotalPnL.GreaterThan(high) {
			high = s.TotalPnL
		}
	}
	span := high.Sub(low)

	var b strings.Builder
	for _, s := range series {
		idx := 0
		if span.IsPositive() {
			idx = int(s.TotalPnL.Sub(low).Div(span).Mul(decimal.NewFromInt(int64(len(blocks)-1))).Round(0).IntPart())
		}
		b.WriteRune(blocks[idx])
	}
	return b.String()
}

func newBalanceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the cash balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			engine, err := app.ledger()
			if err != nil {
				output.Error("Failed to open ledger: %v", err)
				return err
			}
			balance, err := engine.Balance(ctx)
			if err != nil {
				output.Error("Failed to read balance: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"balance":         balance,
					"startingBalance": engine.StartingBalance(),
				})
			}
			output.Printf("Cash balance: %s\n", output.paint(bold, utils.FormatCurrency(balance)))
			output.Dim("Starting balance: %s", utils.FormatCurrency(engine.StartingBalance()))
			return nil
		},
	}
}

func newResetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the portfolio to the starting balance",
		Long: `Delete every trade and the P&L history, and restore the starting balance.

This cannot be undone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			engine, err := app.ledger()
			if err != nil {
				output.Error("Failed to open ledger: %v", err)
				return err
			}

			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				if output.IsJSON() {
					return fmt.Errorf("reset requires --yes in JSON mode")
				}
				output.Warning("This deletes all trades and history and restores %s.", utils.FormatCurrency(engine.StartingBalance()))
				if !confirm(cmd.InOrStdin(), output, "Reset portfolio?") {
					output.Info("Reset cancelled")
					return nil
				}
			}

			if err := engine.Reset(ctx); err != nil {
				output.Error("Reset failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"balance": engine.StartingBalance(),
					"message": trading.MsgResetDone,
				})
			}
			output.Success("✓ %s (%s)", trading.MsgResetDone, utils.FormatCurrency(engine.StartingBalance()))
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
