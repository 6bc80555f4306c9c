package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all application configuration
type Config struct {
	Version   int             `toml:"version"`
	Crawl     CrawlConfig     `toml:"crawl"`
	Expand    ExpandConfig    `toml:"expand"`
	Selectors SelectorsConfig `toml:"selectors"`
	Output    OutputConfig    `toml:"output"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Email     EmailConfig     `toml:"email"`
}

// CrawlConfig drives the browser session around the core loop
type CrawlConfig struct {
	ArticleURL string        `toml:"article_url" env:"COMMENTCRAWL_ARTICLE_URL"`
	Driver     string        `toml:"driver" env:"COMMENTCRAWL_DRIVER"` // "chromedp" or "rod"
	Headless   bool          `toml:"headless" env:"COMMENTCRAWL_HEADLESS"`
	UserAgent  string        `toml:"user_agent" env:"COMMENTCRAWL_USER_AGENT"`
	Timeout    time.Duration `toml:"timeout" env:"COMMENTCRAWL_TIMEOUT"`
	UseCookies bool          `toml:"use_cookies" env:"COMMENTCRAWL_USE_COOKIES"`

	LoadDelay      time.Duration `toml:"load_delay"`
	OpenComments   bool          `toml:"open_comments"`
	PreScrolls     int           `toml:"pre_scrolls"`
	PreScrollPause time.Duration `toml:"pre_scroll_pause"`
	SettleDelay    time.Duration `toml:"settle_delay"`
	ExtractDelay   time.Duration `toml:"extract_delay"`
	// Part of Timeout that expansion may not use, so extraction always
	// runs on a live page
	ExtractReserve time.Duration `toml:"extract_reserve"`
}

// ExpandConfig bounds the load-more loop
type ExpandConfig struct {
	Enabled     bool          `toml:"enabled"`
	MaxAttempts int           `toml:"max_attempts" env:"COMMENTCRAWL_MAX_ATTEMPTS"`
	IdleLimit   int           `toml:"idle_limit" env:"COMMENTCRAWL_IDLE_LIMIT"`
	ScrollPause time.Duration `toml:"scroll_pause" env:"COMMENTCRAWL_SCROLL_PAUSE"`
	ClickPause  time.Duration `toml:"click_pause" env:"COMMENTCRAWL_CLICK_PAUSE"`
	// Budget for the whole loop; 0 leaves only the crawl deadline
	Timeout time.Duration `toml:"timeout" env:"COMMENTCRAWL_EXPAND_TIMEOUT"`
}

// SelectorsConfig holds the CSS selectors for the comment widget
type SelectorsConfig struct {
	Title           string `toml:"title"`
	Comment         string `toml:"comment"`
	ReplyList       string `toml:"reply_list"`
	Author          string `toml:"author"`
	Text            string `toml:"text"`
	Likes           string `toml:"likes"`
	Time            string `toml:"time"`
	ShowMoreReplies string `toml:"show_more_replies"`

	LoadMore         []string `toml:"load_more"`
	LoadMoreKeywords []string `toml:"load_more_keywords"`

	CommentButtons        []string `toml:"comment_buttons"`
	CommentButtonKeywords []string `toml:"comment_button_keywords"`
}

// OutputConfig selects where results go. An empty file name disables that
// output.
type OutputConfig struct {
	Dir           string `toml:"dir" env:"COMMENTCRAWL_OUTPUT_DIR"`
	Spreadsheet   string `toml:"spreadsheet"`
	Report        string `toml:"report"`
	HTMLReport    string `toml:"html_report"`
	CacheSteps    bool   `toml:"cache_steps"`
	SQLitePath    string `toml:"sqlite_path" env:"COMMENTCRAWL_SQLITE_PATH"`
	MongoURI      string `toml:"mongo_uri" env:"COMMENTCRAWL_MONGO_URI"`
	MongoDatabase string `toml:"mongo_database" env:"COMMENTCRAWL_MONGO_DATABASE"`
	MetricsFile   string `toml:"metrics_file" env:"COMMENTCRAWL_METRICS_FILE"`
}

// ScheduleConfig drives the watch command
type ScheduleConfig struct {
	Cron     string   `toml:"cron"`
	DailyAt  []string `toml:"daily_at"`
	Timezone string   `toml:"timezone"`
}

type EmailConfig struct {
	Enabled  bool   `toml:"enabled"`
	Provider string `toml:"provider"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass" env:"COMMENTCRAWL_SMTP_PASS"`
	FromAddr string `toml:"from_address"`
	ToAddr   string `toml:"to_address"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Crawl: CrawlConfig{
			Driver:         "chromedp",
			Headless:       true,
			Timeout:        10 * time.Minute,
			LoadDelay:      5 * time.Second,
			OpenComments:   true,
			PreScrolls:     5,
			PreScrollPause: 2 * time.Second,
			SettleDelay:    5 * time.Second,
			ExtractDelay:   3 * time.Second,
			ExtractReserve: time.Minute,
		},
		Expand: ExpandConfig{
			Enabled:     true,
			MaxAttempts: 50,
			IdleLimit:   3,
			ScrollPause: 2 * time.Second,
			ClickPause:  2 * time.Second,
			Timeout:     8 * time.Minute,
		},
		Selectors: DefaultSelectors(),
		Output: OutputConfig{
			Dir:           "commentcrawl-output",
			Spreadsheet:   "comments.xlsx",
			Report:        "hierarchy_report.txt",
			HTMLReport:    "hierarchy_report.html",
			CacheSteps:    true,
			MongoDatabase: "commentcrawl",
		},
		Schedule: ScheduleConfig{
			Timezone: "Asia/Shanghai",
		},
		Email: EmailConfig{
			Provider: "smtp",
			SMTPPort: 587,
		},
	}
}

// Validate rejects configurations the crawler cannot run with
func (c *Config) Validate() error {
	if c.Expand.MaxAttempts <= 0 {
		return fmt.Errorf("expand.max_attempts must be > 0")
	}
	if c.Expand.IdleLimit <= 0 {
		return fmt.Errorf("expand.idle_limit must be > 0")
	}
	if c.Expand.ScrollPause < 0 || c.Expand.ClickPause < 0 {
		return fmt.Errorf("expand pauses must not be negative")
	}
	if c.Crawl.Timeout <= 0 {
		return fmt.Errorf("crawl.timeout must be > 0")
	}
	if c.Expand.Timeout < 0 || c.Crawl.ExtractReserve < 0 {
		return fmt.Errorf("expand.timeout and crawl.extract_reserve must not be negative")
	}
	if c.Selectors.Comment == "" || c.Selectors.ReplyList == "" {
		return fmt.Errorf("selectors.comment and selectors.reply_list are required")
	}
	if c.Email.Enabled && c.Email.ToAddr == "" {
		return fmt.Errorf("email.to_address is required when email is enabled")
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "commentcrawl"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "commentcrawl"), nil
}

// DatabasePath returns the configured sqlite path or the default one in the
// cache directory
func (c *Config) DatabasePath() (string, error) {
	if c.Output.SQLitePath != "" {
		return c.Output.SQLitePath, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "commentcrawl.db"), nil
}

// Load reads config from the default location
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path on top of the defaults, then overlays
// COMMENTCRAWL_* environment variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to overlay env: %w", err)
	}

	return cfg, nil
}

// FromEnv returns the defaults with the environment overlaid, for runs
// without a config file.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to overlay env: %w", err)
	}
	return cfg, nil
}

// Save writes config to the default location
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
