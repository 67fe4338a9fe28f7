package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/pelicanhq/pelican/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    logger.Config   `yaml:"logger"`
	Platform  PlatformConfig  `yaml:"platform"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Admin     AdminConfig     `yaml:"admin"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

// PlatformConfig holds credentials and endpoints for the social platform API.
type PlatformConfig struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Timeout      string `yaml:"timeout"`
}

// DispatchConfig controls the scheduled post dispatch sweep.
type DispatchConfig struct {
	LookbackWindow string `yaml:"lookback_window"`
	ItemTimeout    string `yaml:"item_timeout"`
	StuckTimeout   string `yaml:"stuck_timeout"`
	CronSecret     string `yaml:"cron_secret"`
}

// SchedulerConfig controls the built-in ticker that drives sweeps when no
// external cron trigger is configured.
type SchedulerConfig struct {
	Enabled            bool   `yaml:"enabled"`
	DispatchInterval   string `yaml:"dispatch_interval"`
	AnalyticsInterval  string `yaml:"analytics_interval"`
	StatsRetentionDays int    `yaml:"stats_retention_days"`
}

type AdminConfig struct {
	TOTPSecret string `yaml:"totp_secret"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Platform.BaseURL == "" {
		cfg.Platform.BaseURL = "https://api.x.com"
	}
	if cfg.Platform.Timeout == "" {
		cfg.Platform.Timeout = "30s"
	}
	if cfg.Dispatch.LookbackWindow == "" {
		cfg.Dispatch.LookbackWindow = "5m"
	}
	if cfg.Dispatch.ItemTimeout == "" {
		cfg.Dispatch.ItemTimeout = "30s"
	}
	if cfg.Dispatch.StuckTimeout == "" {
		cfg.Dispatch.StuckTimeout = "10m"
	}
	if cfg.Scheduler.DispatchInterval == "" {
		cfg.Scheduler.DispatchInterval = "1m"
	}
	if cfg.Scheduler.AnalyticsInterval == "" {
		cfg.Scheduler.AnalyticsInterval = "30m"
	}
	if cfg.Scheduler.StatsRetentionDays == 0 {
		cfg.Scheduler.StatsRetentionDays = 90
	}

	return cfg, nil
}
