package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/commentcrawl/internal/config"
)

var openCmd = &cobra.Command{
	Use:       "open <config|cache|output|report>",
	Short:     "Open the config file, a directory or the last HTML report",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"config", "cache", "output", "report"},
	RunE:      runOpen,
}

// openTarget resolves what the open command shows
func openTarget(target string, cfg *config.Config) (string, error) {
	switch target {
	case "config":
		if configPath != "" {
			return configPath, nil
		}
		return config.ConfigPath()
	case "cache":
		return config.CacheDir()
	case "output":
		return filepath.Abs(cfg.Output.Dir)
	case "report":
		if cfg.Output.HTMLReport == "" {
			return "", fmt.Errorf("output.html_report is disabled")
		}
		return filepath.Abs(filepath.Join(cfg.Output.Dir, cfg.Output.HTMLReport))
	default:
		return "", fmt.Errorf("unknown target: %s", target)
	}
}

func runOpen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path, err := openTarget(args[0], cfg)
	if err != nil {
		return err
	}
	if args[0] != "config" {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("nothing to open yet: %w", err)
		}
	}

	return browser.OpenFile(path)
}
