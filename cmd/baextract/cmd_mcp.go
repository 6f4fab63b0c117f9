package main

import (
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the lookup tools over MCP on stdio",
	Long: "Starts an MCP server over stdin/stdout with the baextract_lookup and\n" +
		"baextract_stored tools. Logs go to stderr.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(globals.logLevel)
	e, err := startEngine(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer e.Close()

	logger.Info("mcp: serving over stdio", "version", version)
	return e.ServeMCP(cmd.Context(), version)
}
