package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/baextract/portal"
)

var batchFlags struct {
	codesFile string
	workers   int
	dbPath    string
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract many codes and deliver them to the sinks",
	Long: "Reads codes from --codes-file, otherwise from column A of the spreadsheet sink,\n" +
		"otherwise from the last crawl, and extracts them with one tab per worker.\n" +
		"The tally is printed to stderr once every code is done.",
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.codesFile, "codes-file", "", "file with one code per line")
	f.IntVar(&batchFlags.workers, "workers", 0, "parallel tabs (config batch.workers when 0)")
	f.StringVar(&batchFlags.dbPath, "db", "", "run database (config batch.db_path when empty)")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if batchFlags.codesFile != "" {
		cfg.Batch.CodesFile = batchFlags.codesFile
	}
	if batchFlags.workers > 0 {
		cfg.Batch.Workers = batchFlags.workers
	}
	if batchFlags.dbPath != "" {
		cfg.Batch.DBPath = batchFlags.dbPath
	}
	logger := newLogger(globals.logLevel)
	ctx := cmd.Context()

	e, err := startEngine(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer e.Close()

	inputs, err := e.Inputs(ctx)
	if err != nil {
		return err
	}
	sum, err := e.RunBatch(ctx, inputs)
	fmt.Fprintln(cmd.ErrOrStderr(), portal.BatchReport(sum))
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
