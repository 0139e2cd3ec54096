package config

import (
	"time"

	"github.com/LouYuanbo1/tableharvester/param"
)

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Session       SessionConfig       `mapstructure:"session"`
	Output        OutputConfig        `mapstructure:"output"`
	Browser       BrowserConfig       `mapstructure:"browser"`
	Timeouts      TimeoutConfig       `mapstructure:"timeouts"`
	Login         param.Login         `mapstructure:"login"`
	Navigation    param.Navigation    `mapstructure:"navigation"`
	Table         param.Table         `mapstructure:"table"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type AppConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Credentials 登录凭据,只在内存中使用,从不落盘
type Credentials struct {
	Identifier string
	Secret     string
}

func (c *Config) Credentials() Credentials {
	return Credentials{Identifier: c.App.Username, Secret: c.App.Password}
}

type SessionConfig struct {
	Path string `mapstructure:"path"`
}

type OutputConfig struct {
	Path string `mapstructure:"path"`
}

type BrowserDriver string

const (
	DriverChromedp BrowserDriver = "chromedp"
	DriverRod      BrowserDriver = "rod"
)

// BrowserConfig merges the launch options shared by both drivers.
type BrowserConfig struct {
	Driver               BrowserDriver `mapstructure:"driver"`
	Headless             bool          `mapstructure:"headless"`
	Bin                  string        `mapstructure:"bin"`
	UserDataDir          string        `mapstructure:"user_data_dir"`
	UserAgent            string        `mapstructure:"user_agent"`
	DisableBlinkFeatures string        `mapstructure:"disable_blink_features"`
	DisableDevShmUsage   bool          `mapstructure:"disable_dev_shm_usage"`
	NoSandbox            bool          `mapstructure:"no_sandbox"`
	// Leakless only applies to the rod launcher.
	Leakless bool `mapstructure:"leakless"`
}

// TimeoutConfig bounds every wait the pipeline performs.
type TimeoutConfig struct {
	Navigation time.Duration `mapstructure:"navigation"`
	Action     time.Duration `mapstructure:"action"`
	Probe      time.Duration `mapstructure:"probe"`
	Quiescence time.Duration `mapstructure:"quiescence"`
	IdleWindow time.Duration `mapstructure:"idle_window"`
	Table      time.Duration `mapstructure:"table"`
	Rows       time.Duration `mapstructure:"rows"`
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	AddSource   bool   `mapstructure:"add_source"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

// ElasticsearchConfig 可选的记录索引输出
type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
	// IDColumn names the column whose value becomes the document ID.
	// Empty lets Elasticsearch assign IDs.
	IDColumn string `mapstructure:"id_column"`
}
