// Command commentcrawl crawls the comment section of an article into a
// spreadsheet, a hierarchy report and a run store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/commentcrawl/internal/app"
	"github.com/ibeckermayer/commentcrawl/internal/config"
	"github.com/ibeckermayer/commentcrawl/internal/cookies"
	"github.com/ibeckermayer/commentcrawl/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "commentcrawl",
	Short: "Crawl the full comment hierarchy of an article",
	Long: `commentcrawl opens an article in a real browser, expands every
"load more" control of its comment section, and rebuilds the root/reply
hierarchy into a spreadsheet, a text/HTML report and a SQLite run store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: user config dir)")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(openCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config, or the default config file. On first run the
// defaults are written to the default location.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}

	cfg, err := config.Load()
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	if err := config.Default().Save(); err != nil {
		logger.Warn("Could not save default config", zap.Error(err))
	} else if path, err := config.ConfigPath(); err == nil {
		logger.Info("Created default config", zap.String("path", path))
	}
	return config.FromEnv()
}

// newApp builds the application with cookie replay wired in
func newApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	var opts []app.Option
	if path, err := cookies.DefaultPath(); err == nil {
		opts = append(opts, app.WithCookies(cookies.NewManager(cookies.NewStore(path))))
	}
	return app.New(ctx, cfg, logger, opts...)
}
