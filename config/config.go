package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	FailurePolicyAbort   = "abort"
	FailurePolicyCollect = "collect"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Source      Source
	History     History
	API         API
	Postgres    Postgres
	Redis       Redis
	Cache       Cache
	Jobs        Jobs
	Report      Report
	GoogleDrive GoogleDrive
	Telegram    Telegram
	MetricsAddr string `env:"METRICS_ADDR" envDefault:""`
}

type Source struct {
	Url          string `env:"SOURCE_URL" envDefault:"https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"`
	SymbolColumn string `env:"SYMBOL_COLUMN" envDefault:"Symbol"`
}

type History struct {
	Interval         string `env:"HISTORY_INTERVAL" envDefault:"10y"`
	SymbolCap        int    `env:"SYMBOL_CAP" envDefault:"25"`
	FetchConcurrency int    `env:"FETCH_CONCURRENCY" envDefault:"1"`
	FailurePolicy    string `env:"FAILURE_POLICY" envDefault:"abort"`
}

type API struct {
	Debug     bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout   time.Duration `env:"API_TIMEOUT" envDefault:"30s"`
	UserAgent string        `env:"API_USER_AGENT" envDefault:"sp500_loader/1.0"`
	YahooApi  YahooApi
}

type YahooApi struct {
	Url string `env:"YAHOO_API_URL" envDefault:"https://query1.finance.yahoo.com"`
}

type Postgres struct {
	Enabled         bool   `env:"PG_ENABLED" envDefault:"false"`
	Host            string `env:"PG_HOST" envDefault:"localhost"`
	Port            int    `env:"PG_PORT" envDefault:"5432"`
	DbName          string `env:"PG_DB_NAME" envDefault:"sp500"`
	Password        string `env:"PG_PASSWORD" envDefault:""`
	User            string `env:"PG_USER" envDefault:"postgres"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`
	MigrationDir    string `env:"PG_MIGRATION_DIR" envDefault:"./migrations"`
}

type Redis struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type Cache struct {
	PageExpiration    time.Duration `env:"CACHE_PAGE_EXPIRATION" envDefault:"1h"`
	HistoryExpiration time.Duration `env:"CACHE_HISTORY_EXPIRATION" envDefault:"6h"`
}

type Jobs struct {
	ExportInterval         time.Duration `env:"EXPORT_JOB_INTERVAL" envDefault:"24h"`
	ExportCron             string        `env:"EXPORT_JOB_CRON" envDefault:""` // takes precedence over the interval, with seconds field
	ExportStartImmediately bool          `env:"EXPORT_JOB_START_IMMEDIATELY" envDefault:"true"`
}

type Report struct {
	Dir string `env:"REPORT_DIR" envDefault:"./reports"`
}

type GoogleDrive struct {
	Enabled         bool          `env:"GOOGLE_DRIVE_ENABLED" envDefault:"false"`
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE" envDefault:""`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"168h"`
}

type Telegram struct {
	Enabled    bool          `env:"TELEGRAM_ENABLED" envDefault:"false"`
	Token      string        `env:"TELEGRAM_TOKEN" envDefault:""`
	ChatID     int64         `env:"TELEGRAM_CHAT_ID" envDefault:"0"`
	ApiUrl     string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	Commands   bool          `env:"TELEGRAM_COMMANDS" envDefault:"false"`
	UpdTimeout time.Duration `env:"TELEGRAM_UPD_TIMEOUT" envDefault:"10s"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Source.Url == "" {
		errs = append(errs, errors.New("SOURCE_URL is empty"))
	}
	if c.Source.SymbolColumn == "" {
		errs = append(errs, errors.New("SYMBOL_COLUMN is empty"))
	}
	if c.History.Interval == "" {
		errs = append(errs, errors.New("HISTORY_INTERVAL is empty"))
	}
	if c.History.SymbolCap < 1 {
		errs = append(errs, fmt.Errorf("SYMBOL_CAP must be >= 1, got %d", c.History.SymbolCap))
	}
	if c.History.FetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("FETCH_CONCURRENCY must be >= 1, got %d", c.History.FetchConcurrency))
	}
	switch c.History.FailurePolicy {
	case FailurePolicyAbort, FailurePolicyCollect:
	default:
		errs = append(errs, fmt.Errorf("unknown FAILURE_POLICY %q", c.History.FailurePolicy))
	}
	if c.GoogleDrive.Enabled && c.GoogleDrive.CredentialsFile == "" {
		errs = append(errs, errors.New("GOOGLE_DRIVE_CREDENTIALS_FILE is required when google drive is enabled"))
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		errs = append(errs, errors.New("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required when telegram is enabled"))
	}

	return errors.Join(errs...)
}
