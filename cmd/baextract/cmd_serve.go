package main

import (
	"github.com/spf13/cobra"
)

var serveFlags struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the lookup API over HTTP",
	Long: "Serves GET /api/activities/{code} (or ?code=) with the single-code JSON\n" +
		"document. Non-digits are stripped from the code; lookups share one tab.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "listen address (config serve.addr when empty)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.addr != "" {
		cfg.Serve.Addr = serveFlags.addr
	}
	logger := newLogger(globals.logLevel)
	e, err := startEngine(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer e.Close()
	return e.Serve(cmd.Context(), cfg.Serve.Addr)
}
