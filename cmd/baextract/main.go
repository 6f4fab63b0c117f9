// Command baextract extracts business activity records from the investor
// portal.
//
// Usage:
//
//	baextract record --code 013001 [--json]   # one code, to stdout
//	baextract batch [--codes-file codes.txt]  # many codes, to the sinks
//	baextract crawl                            # every listing page, to the sinks
//	baextract serve [--addr :8080]             # HTTP lookup API
//	baextract mcp                              # MCP tools over stdio
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/baextract/portal"
)

// version is set at build time via -ldflags.
var version = "dev"

var globals struct {
	config   string
	visible  bool
	locale   string
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "baextract",
	Short: "Extract business activity records from the investor portal",
	Long: "baextract resolves business activity codes on the investor portal and extracts\n" +
		"their names, locations, eligibility and required approvals in both languages.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&globals.config, "config", "", "path to baextract.yaml (built-in portal defaults when empty)")
	f.BoolVar(&globals.visible, "visible", false, "show the browser window on the host display")
	f.StringVar(&globals.locale, "locale", "", "primary language (en or ar)")
	f.StringVar(&globals.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// loadConfig reads --config and applies the global overrides.
func loadConfig() (*portal.Config, error) {
	cfg := portal.DefaultConfig()
	if globals.config != "" {
		var err error
		if cfg, err = portal.LoadConfigFile(globals.config); err != nil {
			return nil, err
		}
	}
	if globals.visible {
		cfg.Browser.Stealth = "visible"
	}
	if globals.locale != "" {
		if err := cfg.SetLocale(globals.locale); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// startEngine builds and starts an engine. With sinks false the configured
// sinks are not opened (single lookups, servers); extra sinks are always
// added.
func startEngine(ctx context.Context, cfg *portal.Config, logger *slog.Logger, sinks bool, extra ...portal.Sink) (*portal.Engine, error) {
	var out []portal.Sink
	if sinks {
		var err error
		if out, err = portal.OpenSinks(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}
	e := portal.New(cfg, logger, append(out, extra...)...)
	if err := e.Start(ctx); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}
