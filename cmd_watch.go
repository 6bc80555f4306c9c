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
	"github.com/ibeckermayer/commentcrawl/internal/scheduler"
)

var runOnStart bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Crawl crawl.article_url on the configured schedule",
	Long: `Runs until interrupted, crawling on schedule.cron and at every
schedule.daily_at time. SIGHUP reloads the config file.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&runOnStart, "now", false, "Crawl once immediately")
}

// scheduleJobs registers every configured slot
func scheduleJobs(s *scheduler.Scheduler, cfg config.ScheduleConfig, job scheduler.Job) error {
	if cfg.Cron == "" && len(cfg.DailyAt) == 0 {
		return fmt.Errorf("no schedule configured: set schedule.cron or schedule.daily_at")
	}
	if cfg.Cron != "" {
		if err := s.AddCrawlJob(cfg.Cron, job); err != nil {
			return err
		}
	}
	for _, at := range cfg.DailyAt {
		if err := s.AddDailyJob("daily-"+at, at, job); err != nil {
			return err
		}
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Crawl.ArticleURL == "" {
		return fmt.Errorf("crawl.article_url is required for watch")
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	// The crawler enforces crawl.timeout; the slack covers outputs and email
	s, err := scheduler.New(cfg.Schedule.Timezone, cfg.Crawl.Timeout*2, logger)
	if err != nil {
		return err
	}

	crawl := func(ctx context.Context) error {
		_, err := a.Crawl(ctx, "")
		return err
	}
	if err := scheduleJobs(s, cfg.Schedule, crawl); err != nil {
		return err
	}

	s.Start()
	for _, j := range s.ListJobs() {
		logger.Info("Scheduled", zap.String("job", j.Name), zap.Time("next", j.NextRun))
	}

	if runOnStart {
		go func() {
			if err := s.RunNow("startup", crawl); err != nil {
				logger.Error("Startup crawl failed", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			break
		}
		reloadConfig(a)
	}

	logger.Info("Shutting down, waiting for running crawls")
	<-s.Stop().Done()
	return nil
}

// reloadConfig swaps in the config file for later crawls. A new schedule
// needs a restart.
func reloadConfig(a *app.App) {
	cfg, err := loadConfig()
	if err != nil {
		logger.Error("Config reload failed", zap.Error(err))
		return
	}
	if err := a.ReloadConfig(cfg); err != nil {
		logger.Error("Config reload failed", zap.Error(err))
	}
}
