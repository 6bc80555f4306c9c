package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/commentcrawl/internal/app"
	"github.com/ibeckermayer/commentcrawl/internal/config"
)

var (
	snapshotPath string
	driver       string
	headful      bool
	noExpand     bool
	outputDir    string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [url]",
	Short: "Crawl one article's comments",
	Long: `Loads the article, opens its comment section, clicks every "load more"
control until nothing new appears, then extracts root comments and their
replies.

Without a url, crawl.article_url from the config is used. With --snapshot,
comments are read from a saved HTML page instead of a live browser.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Extract from a saved HTML page")
	crawlCmd.Flags().StringVar(&driver, "driver", "", "Browser driver: chromedp or rod")
	crawlCmd.Flags().BoolVar(&headful, "headful", false, "Show the browser window")
	crawlCmd.Flags().BoolVar(&noExpand, "no-expand", false, "Skip the load-more expansion")
	crawlCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory")
}

// applyCrawlFlags overrides cfg with the flags that were set
func applyCrawlFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("driver") {
		cfg.Crawl.Driver = driver
	}
	if headful {
		cfg.Crawl.Headless = false
	}
	if noExpand {
		cfg.Expand.Enabled = false
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCrawlFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	var res *app.Result
	if snapshotPath != "" {
		res, err = a.CrawlSnapshot(ctx, snapshotPath)
	} else {
		var url string
		if len(args) > 0 {
			url = args[0]
		}
		res, err = a.Crawl(ctx, url)
	}
	if err != nil {
		return err
	}

	c := res.Crawl
	fmt.Printf("%s\n", c.Article.Title)
	fmt.Printf("  run:      %s\n", c.RunID)
	fmt.Printf("  comments: %d (%d roots, %d replies)\n", len(c.Comments), c.Roots(), c.Replies())
	if c.Expansion.Reason != "" {
		fmt.Printf("  expanded: %d clicks in %d attempts (%s)\n", c.Expansion.Clicks, c.Expansion.Attempts, c.Expansion.Reason)
	}
	for _, f := range res.Files {
		fmt.Printf("  wrote:    %s\n", f)
	}
	if c.Error != "" {
		logger.Warn("Crawl incomplete", zap.String("error", c.Error))
	}
	return nil
}
