package blogsync

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// Config holds all configuration for a blogsync deployment.
type Config struct {
	Owner  string // GitHub repository owner (required)
	Repo   string // GitHub repository name (required)
	Branch string // Branch to mirror (default "main")
	Root   string // Subdirectory to walk (default repository root)

	GitHubToken  string        // Bearer token for the contents API
	GitHubAPIURL string        // API base (default https://api.github.com)
	GitHubRawURL string        // Raw content base (default https://raw.githubusercontent.com)
	HTTPTimeout  time.Duration // Per-request timeout; zero keeps transport defaults

	DatabaseDriver string // "sqlite" (default) or "postgres"
	DatabaseURL    string // SQLite path (default "data/blogsync.db") or Postgres URL

	Addr          string // Listen address (default ":3000")
	SiteURL       string // Public site URL used in feed and sitemap links
	SiteName      string // Feed title (default "Blog")
	WebhookSecret string // Optional GitHub webhook secret for X-Hub-Signature-256

	RedisURL string        // Optional; enables the cross-process sync lock
	LockTTL  time.Duration // Lock expiry (default 10min)

	EntryCacheTTL    time.Duration // Read API cache TTL (default 5min)
	WebhookRateLimit int           // Deliveries per minute per IP (default 30)
	RunRetentionDays int           // Days of sync_runs to keep (default 30)

	LogFile string // Optional rotating log file
}

func (c *Config) setDefaults() {
	if c.Branch == "" {
		c.Branch = "main"
	}
	if c.DatabaseDriver == "" {
		c.DatabaseDriver = DriverSQLite
	}
	if c.DatabaseURL == "" && c.DatabaseDriver == DriverSQLite {
		c.DatabaseURL = "data/blogsync.db"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.SiteURL == "" {
		c.SiteURL = "http://localhost:3000"
	}
	if c.SiteName == "" {
		c.SiteName = "Blog"
	}
	if c.LockTTL == 0 {
		c.LockTTL = 10 * time.Minute
	}
	if c.EntryCacheTTL == 0 {
		c.EntryCacheTTL = 5 * time.Minute
	}
	if c.WebhookRateLimit == 0 {
		c.WebhookRateLimit = 30
	}
	if c.RunRetentionDays == 0 {
		c.RunRetentionDays = 30
	}
}

// Validate checks required settings after defaults are applied.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Owner, validation.Required),
		validation.Field(&c.Repo, validation.Required),
		validation.Field(&c.Branch, validation.Required),
		validation.Field(&c.DatabaseDriver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DatabaseURL, validation.Required),
		validation.Field(&c.WebhookRateLimit, validation.Min(1)),
		validation.Field(&c.RunRetentionDays, validation.Min(1)),
	)
}

// Ref returns the repository coordinates being mirrored.
func (c Config) Ref() RepoRef {
	return RepoRef{Owner: c.Owner, Repo: c.Repo, Branch: c.Branch}
}

// Environment keys read by LoadConfig.
const (
	EnvOwner            = "GITHUB_OWNER"
	EnvRepo             = "GITHUB_REPO"
	EnvBranch           = "GITHUB_BRANCH"
	EnvRoot             = "GITHUB_ROOT"
	EnvGitHubToken      = "GITHUB_TOKEN"
	EnvGitHubAPIURL     = "GITHUB_API_URL"
	EnvGitHubRawURL     = "GITHUB_RAW_URL"
	EnvHTTPTimeout      = "HTTP_TIMEOUT"
	EnvDatabaseDriver   = "DATABASE_DRIVER"
	EnvDatabaseURL      = "DATABASE_URL"
	EnvAddr             = "ADDR"
	EnvSiteURL          = "SITE_URL"
	EnvSiteName         = "SITE_NAME"
	EnvWebhookSecret    = "WEBHOOK_SECRET"
	EnvRedisURL         = "REDIS_URL"
	EnvLockTTL          = "LOCK_TTL"
	EnvEntryCacheTTL    = "ENTRY_CACHE_TTL"
	EnvWebhookRateLimit = "WEBHOOK_RATE_LIMIT"
	EnvRunRetentionDays = "RUN_RETENTION_DAYS"
	EnvLogFile          = "LOG_FILE"
)

// LoadConfig reads configuration from v, which is expected to have the
// environment (and any bound flags) attached. If v is nil, a viper instance
// reading the process environment is used. Defaults are applied and the
// result validated.
func LoadConfig(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.AutomaticEnv()
	cfg := Config{
		Owner:            v.GetString(EnvOwner),
		Repo:             v.GetString(EnvRepo),
		Branch:           v.GetString(EnvBranch),
		Root:             v.GetString(EnvRoot),
		GitHubToken:      v.GetString(EnvGitHubToken),
		GitHubAPIURL:     v.GetString(EnvGitHubAPIURL),
		GitHubRawURL:     v.GetString(EnvGitHubRawURL),
		HTTPTimeout:      v.GetDuration(EnvHTTPTimeout),
		DatabaseDriver:   v.GetString(EnvDatabaseDriver),
		DatabaseURL:      v.GetString(EnvDatabaseURL),
		Addr:             v.GetString(EnvAddr),
		SiteURL:          v.GetString(EnvSiteURL),
		SiteName:         v.GetString(EnvSiteName),
		WebhookSecret:    v.GetString(EnvWebhookSecret),
		RedisURL:         v.GetString(EnvRedisURL),
		LockTTL:          v.GetDuration(EnvLockTTL),
		EntryCacheTTL:    v.GetDuration(EnvEntryCacheTTL),
		WebhookRateLimit: v.GetInt(EnvWebhookRateLimit),
		RunRetentionDays: v.GetInt(EnvRunRetentionDays),
		LogFile:          v.GetString(EnvLogFile),
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
