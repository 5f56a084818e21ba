package cli

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	apperrors "polypaper/internal/errors"
	"polypaper/internal/market"
	"polypaper/internal/models"
	"polypaper/internal/trading"
	"polypaper/pkg/utils"
)

func addTradingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newOpenCmd(app))
	rootCmd.AddCommand(newCloseCmd(app))
}

func newOpenCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <event-slug> <market-id> <YES|NO> <shares>",
		Short: "Open a paper position",
		Long: `Buy shares on one side of a market with virtual cash.

The entry price is the market's current price for the chosen side unless
--price is given. The cost (shares x price) is debited from the balance.`,
		Example: `  polypaper open fed-decision-december 512345 YES 100
  polypaper open fed-decision-december 512345 NO 50 --price 0.35`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			slug, marketID := args[0], args[1]
			side, err := models.ParseSide(args[2])
			if err != nil {
				output.Error("%v", err)
				return apperrors.NewValidationError("side", args[2], err.Error())
			}
			shares, err := decimal.NewFromString(args[3])
			if err != nil {
				output.Error("Invalid shares: %s", args[3])
				return apperrors.NewValidationError("shares", args[3], "not a number")
			}
			price, explicit, err := priceFlag(cmd)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			req := trading.OpenRequest{
				MarketID: marketID,
				Slug:     slug,
				Side:     side,
				Shares:   shares,
			}

			event, err := app.gateway().EventBySlug(ctx, slug)
			switch {
			case err == nil:
				m, ferr := market.FindMarket(event, marketID)
				if ferr != nil {
					output.Error("Market %s is not part of %s", marketID, slug)
					return ferr
				}
				req.EventTitle = event.Title
				req.MarketQuestion = m.Question
				if !explicit {
					if !utils.IsMarketOpen(*m, time.Now()) {
						output.Error("Market is %s", utils.GetMarketStatus(*m, time.Now()))
						return apperrors.NewValidationError("market", marketID, "market is not open for trading")
					}
					price = market.CurrentPrice(*m, side)
				}
			case explicit:
				output.Warning("Market data unavailable (%v), opening at the given price", err)
			default:
				output.Error("Failed to fetch current price: %v", err)
				return err
			}
			req.EntryPrice = price

			engine, err := app.ledger()
			if err != nil {
				output.Error("Failed to open ledger: %v", err)
				return err
			}
			res, err := engine.OpenPosition(ctx, req)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(res)
			}
			trade := res.Trade
			output.Success("✓ %s", res.Message)
			output.Box("Position "+trade.ID, []string{
				"Event:    " + truncate(trade.EventTitle, 50),
				"Market:   " + truncate(trade.MarketQuestion, 50),
				"Side:     " + output.Side(string(trade.Side)),
				"Shares:   " + utils.FormatShares(trade.Shares),
				"Price:    " + utils.FormatPrice(trade.EntryPrice),
				"Cost:     " + utils.FormatCurrency(trade.TotalCost),
				"Balance:  " + utils.FormatCurrency(res.Balance),
			})
			return nil
		},
	}
	cmd.Flags().StringP("price", "p", "", "Entry price between 0 and 1 (default: current market price)")
	return cmd
}

func newCloseCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <trade-id>",
		Short: "Close an open paper position",
		Long: `Sell an open position and credit shares x price to the balance.

The close price is the market's current price for the position's side unless
--price is given.`,
		Example: `  polypaper close 1767225600000-3f2a9c1b
  polypaper close 1767225600000-3f2a9c1b --price 0.62`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			price, explicit, err := priceFlag(cmd)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			engine, err := app.ledger()
			if err != nil {
				output.Error("Failed to open ledger: %v", err)
				return err
			}

			if !explicit {
				price, err = livePrice(ctx, app, engine, args[0])
				if err != nil {
					output.Error("%v", err)
					return err
				}
			}

			res, err := engine.ClosePosition(ctx, args[0], price)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(res)
			}
			switch res.PnL.Sign() {
			case 1:
				output.Success("✓ %s", res.Message)
			case -1:
				output.Warning("%s", res.Message)
			default:
				output.Info("%s", res.Message)
			}
			output.Printf("  Exit value: %s  ·  Balance: %s\n", utils.FormatCurrency(res.ExitValue), utils.FormatCurrency(res.Balance))
			return nil
		},
	}
	cmd.Flags().StringP("price", "p", "", "Close price between 0 and 1 (default: current market price)")
	return cmd
}

// livePrice looks up the current price of an open trade's side.
func livePrice(ctx context.Context, app *App, engine *trading.Engine, tradeID string) (decimal.Decimal, error) {
	trade, err := engine.Trade(ctx, tradeID)
	if err != nil {
		return decimal.Zero, err
	}
	if !trade.IsOpen() {
		return decimal.Zero, apperrors.NewAlreadyClosedError(tradeID)
	}
	price, err := market.LivePrice(ctx, app.gateway(), trade.Slug, trade.MarketID, trade.Side)
	if err != nil {
		return decimal.Zero, apperrors.Wrap(err, "fetching current price (use --price to close offline)")
	}
	return price, nil
}

// priceFlag parses --price. explicit is false when the flag was not set.
func priceFlag(cmd *cobra.Command) (price decimal.Decimal, explicit bool, err error) {
	raw, _ := cmd.Flags().GetString("price")
	if raw == "" {
		return decimal.Zero, false, nil
	}
	price, err = decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, apperrors.NewValidationError("price", raw, "not a number")
	}
	return price, true, nil
}
