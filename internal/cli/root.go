// Package cli provides the command-line interface for the paper trading application.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"polypaper/internal/config"
	"polypaper/internal/history"
	"polypaper/internal/logging"
	"polypaper/internal/market"
	"polypaper/internal/portfolio"
	"polypaper/internal/security"
	"polypaper/internal/store"
	"polypaper/internal/trading"
	"polypaper/pkg/utils"
)

// Version information
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const commandTimeout = 60 * time.Second

// App holds the application dependencies. Components are built on first use, so commands
// that never touch the ledger do not open it.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger

	Store     store.LedgerStore
	Engine    *trading.Engine
	Gateway   market.Gateway
	Client    *market.Client
	Recorder  *history.Recorder
	Valuation *portfolio.Service

	opened bool // Store was opened by the app and is closed by it
}

// NewRootCmd creates the root command. A nil app gets its configuration from --config.
func NewRootCmd(app *App) *cobra.Command {
	if app == nil {
		app = &App{Logger: zerolog.Nop()}
	}

	rootCmd := &cobra.Command{
		Use:   "polypaper",
		Short: "PolyPaper - paper trading for prediction markets",
		Long: `PolyPaper simulates trading on Polymarket prediction markets with virtual money.

Browse live markets, open YES or NO positions at current prices, and track
the value and P&L of your paper portfolio over time.

Use 'polypaper <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Config == nil {
				dir, _ := cmd.Flags().GetString("config")
				cfg, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = cfg
				app.ConfigDir = dir
				app.Logger = logging.NewLoggerWithConfig(cfg.Log)
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/polypaper)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addMarketCommands(rootCmd, app)
	addTradingCommands(rootCmd, app)
	addPortfolioCommands(rootCmd, app)
	rootCmd.AddCommand(newServeCmd(app))

	return rootCmd
}

// Execute runs the root command and releases the ledger store even when the command fails.
func Execute(app *App) error {
	if app == nil {
		app = &App{Logger: zerolog.Nop()}
	}
	err := NewRootCmd(app).Execute()
	if cerr := app.Close(); err == nil {
		err = cerr
	}
	return err
}

// ledger opens the ledger store and builds the trading engine.
func (a *App) ledger() (*trading.Engine, error) {
	if a.Engine != nil {
		return a.Engine, nil
	}
	if a.Store == nil {
		st, err := store.Open(a.Config, a.Logger)
		if err != nil {
			return nil, err
		}
		a.Store = st
		a.opened = true
	}
	a.Engine = trading.NewEngine(a.Store, a.Config.StartingBalance(), a.Logger)
	return a.Engine, nil
}

// gateway builds the market data gateway.
func (a *App) gateway() market.Gateway {
	if a.Gateway == nil {
		a.Client = market.NewClient(a.Config.Market, a.Logger)
		a.Gateway = a.Client
	}
	return a.Gateway
}

// recorder builds the snapshot history recorder.
func (a *App) recorder() (*history.Recorder, error) {
	if a.Recorder != nil {
		return a.Recorder, nil
	}
	if _, err := a.ledger(); err != nil {
		return nil, err
	}
	a.Recorder = history.NewRecorder(a.Store, a.Config.SnapshotRetention(), a.Logger)
	return a.Recorder, nil
}

// valuation builds the portfolio valuation service.
func (a *App) valuation() (*portfolio.Service, error) {
	if a.Valuation != nil {
		return a.Valuation, nil
	}
	engine, err := a.ledger()
	if err != nil {
		return nil, err
	}
	rec, err := a.recorder()
	if err != nil {
		return nil, err
	}
	a.Valuation = portfolio.NewService(engine, a.gateway(), rec, a.Config.Valuation, a.Logger)
	return a.Valuation, nil
}

// Close releases the ledger store if the app opened it.
func (a *App) Close() error {
	if !a.opened || a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	a.Engine = nil
	a.Recorder = nil
	a.Valuation = nil
	a.opened = false
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("PolyPaper v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(redactedConfig(app.Config))
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir := app.ConfigDir
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Ledger")
	output.Printf("  Backend:          %s\n", cfg.Ledger.Backend)
	if cfg.Ledger.Backend == "sqlite" {
		output.Printf("  Database:         %s\n", cfg.Ledger.DBPath)
	}
	if cfg.Ledger.Backend == "redis" {
		output.Printf("  Redis:            %s (db %d)\n", cfg.Redis.Addr, cfg.Redis.DB)
		if cfg.Redis.Password != "" {
			output.Printf("  Redis Password:   %s\n", security.MaskSecret(cfg.Redis.Password))
		}
	}
	output.Printf("  Starting Balance: %s\n", utils.FormatCurrency(cfg.StartingBalance()))
	output.Printf("  Retention:        %d days\n", cfg.Ledger.SnapshotRetentionDays)
	output.Println()

	output.Bold("Market Data")
	output.Printf("  Base URL:         %s\n", security.RedactURL(cfg.Market.BaseURL))
	for _, u := range cfg.Market.FallbackURLs {
		output.Printf("  Fallback:         %s\n", security.RedactURL(u))
	}
	output.Printf("  Timeout:          %s\n", cfg.Market.Timeout)
	output.Printf("  Max Attempts:     %d\n", cfg.Market.MaxAttempts)
	output.Println()

	output.Bold("Valuation")
	output.Printf("  Concurrency:      %d\n", cfg.Valuation.Concurrency)
	output.Printf("  Timeout:          %s\n", cfg.Valuation.Timeout)
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:          %s\n", cfg.Server.Addr)
	output.Printf("  Read Only:        %t\n", cfg.Server.ReadOnly)
}

// redactedConfig returns a copy of cfg that is safe to print.
func redactedConfig(cfg *config.Config) config.Config {
	c := *cfg
	c.Redis.Password = security.MaskSecret(cfg.Redis.Password)
	c.Market.BaseURL = security.RedactURL(cfg.Market.BaseURL)
	c.Market.FallbackURLs = make([]string, len(cfg.Market.FallbackURLs))
	for i, u := range cfg.Market.FallbackURLs {
		c.Market.FallbackURLs[i] = security.RedactURL(u)
	}
	return c
}

// confirm asks a yes/no question on in. Only "y" or "yes" confirms.
func confirm(in io.Reader, output *Output, question string) bool {
	output.Printf("%s [y/N]: ", question)
	var answer string
	if _, err := fmt.Fscanln(in, &answer); err != nil {
		return false
	}
	switch answer {
	case "y", "Y", "yes", "YES", "Yes":
		return true
	}
	return false
}
