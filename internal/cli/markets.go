package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"polypaper/internal/market"
	"polypaper/internal/models"
	"polypaper/pkg/utils"
)

func addMarketCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "markets",
		Aliases: []string{"m"},
		Short:   "Browse prediction markets",
	}
	cmd.AddCommand(newMarketsListCmd(app))
	cmd.AddCommand(newMarketsSearchCmd(app))
	cmd.AddCommand(newMarketsShowCmd(app))
	rootCmd.AddCommand(cmd)
}

func newMarketsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active events",
		Example: `  polypaper markets list
  polypaper markets list --limit 20 --offset 40`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			events, err := app.gateway().ActiveEvents(ctx, limit, offset)
			if err != nil {
				output.Error("Failed to load markets: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(events)
			}
			renderEvents(output, events)
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 50, "Number of events to show")
	cmd.Flags().Int("offset", 0, "Number of events to skip")
	return cmd
}

func newMarketsSearchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "search <query>",
		Short:   "Search events",
		Example: `  polypaper markets search "fed rates"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			events, err := app.gateway().Search(ctx, strings.Join(args, " "))
			if err != nil {
				output.Error("Search failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(events)
			}
			if len(events) == 0 {
				output.Warning("No events match %q", strings.Join(args, " "))
				return nil
			}
			renderEvents(output, events)
			return nil
		},
	}
}

func newMarketsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "show <event-slug>",
		Short:   "Show an event and its markets with current prices",
		Example: `  polypaper markets show presidential-election-winner-2028`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			event, err := app.gateway().EventBySlug(ctx, args[0])
			if err != nil {
				output.Error("Failed to load event: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(event)
			}

			output.Bold(event.Title)
			output.Dim("%s  ·  volume %s  ·  liquidity %s", event.Slug, utils.FormatCompact(event.Volume.Decimal), utils.FormatCompact(event.Liquidity.Decimal))
			output.Println()

			now := time.Now()
			table := NewTable(output, "MARKET ID", "QUESTION", "YES", "NO", "STATUS", "ENDS")
			for _, m := range event.Markets {
				yes, no := market.Prices(m)
				table.AddRow(
					m.ID,
					truncate(m.Question, 60),
					output.Green(utils.FormatPrice(yes)),
					output.Red(utils.FormatPrice(no)),
					string(utils.GetMarketStatus(m, now)),
					formatEnds(m, now),
				)
			}
			table.Render()
			output.Println()
			output.Dim("Open a position: polypaper open %s <market-id> YES|NO <shares>", event.Slug)
			return nil
		},
	}
}

func renderEvents(output *Output, events []models.Event) {
	if len(events) == 0 {
		output.Warning("No active events")
		return
	}
	table := NewTable(output, "SLUG", "TITLE", "MARKETS", "VOLUME", "LEAD YES")
	for _, e := range events {
		lead := "-"
		if len(e.Markets) > 0 {
			yes, _ := market.Prices(e.Markets[0])
			lead = utils.FormatPrice(yes)
		}
		table.AddRow(
			truncate(e.Slug, 40),
			truncate(e.Title, 50),
			fmt.Sprintf("%d", len(e.Markets)),
			utils.FormatCompact(e.Volume.Decimal),
			lead,
		)
	}
	table.Render()
}

func formatEnds(m models.Market, now time.Time) string {
	left := utils.TimeUntilEnd(m, now)
	if left == 0 {
		return "-"
	}
	days := int(left.Hours() / 24)
	if days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dh", int(left.Hours()))
}
