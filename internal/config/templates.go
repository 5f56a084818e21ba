package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# PolyPaper Configuration

[ledger]
# Ledger backend: "sqlite", "redis" or "memory"
backend = "sqlite"
# SQLite database file (defaults to ~/.config/polypaper/ledger.db)
# db_path = ""
# Virtual cash the ledger starts with and returns to on reset
starting_balance = 10000.0
# Days of daily P&L snapshots to keep
snapshot_retention_days = 365

[redis]
addr = "localhost:6379"
password = ""
db = 0
key_prefix = "polypaper:"

[market]
# Market data provider
base_url = "https://gamma-api.polymarket.com"
# Tried in order when the base URL is unreachable (e.g. a local proxy)
fallback_urls = []
timeout = "15s"
max_attempts = 3
initial_backoff = "200ms"

[valuation]
# Open positions priced concurrently during a valuation pass
concurrency = 8
timeout = "30s"

[server]
addr = "127.0.0.1:3001"
# Reject open, close and reset requests on the local API
read_only = false

[log]
level = "info"
console = false
file = true

[ui]
color_enabled = true
date_format = "02-Jan-2006"
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
