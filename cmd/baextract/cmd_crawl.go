package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/baextract/portal"
)

var crawlFlags struct {
	maxPages   int
	printPages bool
	noSnapshot bool
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Collect every activity code of the paginated listing",
	Long: "Opens the full activity listing through the footer search and walks it page by\n" +
		"page, delivering each page of codes to the sinks. The pages and results seen are\n" +
		"reconciled with the listing counters at the end.",
	RunE: runCrawl,
}

func init() {
	f := crawlCmd.Flags()
	f.IntVar(&crawlFlags.maxPages, "max-pages", 0, "stop after this many pages (0 = all)")
	f.BoolVar(&crawlFlags.printPages, "print-pages", false, "print each page of codes to stderr")
	f.BoolVar(&crawlFlags.noSnapshot, "no-snapshots", false, "do not store the HTML of every page")
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if crawlFlags.maxPages > 0 {
		cfg.Crawl.MaxPages = crawlFlags.maxPages
	}
	if crawlFlags.noSnapshot {
		cfg.Crawl.Snapshots = false
	}
	logger := newLogger(globals.logLevel)
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()

	var extra []portal.Sink
	if crawlFlags.printPages {
		extra = append(extra, portal.NewCallbackSink(nil, func(_ context.Context, page int, codes []string) error {
			fmt.Fprintln(stderr, portal.PageReport(page, codes))
			return nil
		}))
	}
	e, err := startEngine(ctx, cfg, logger, true, extra...)
	if err != nil {
		return err
	}
	defer e.Close()

	sum, err := e.Crawl(ctx)
	fmt.Fprintln(stderr, portal.CrawlReport(sum))
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
