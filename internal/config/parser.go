package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "TABLEHARVESTER"

// NewViper returns a viper instance carrying every default and bound to
// TABLEHARVESTER_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func SetDefaults(v *viper.Viper) {
	// -- App --
	v.SetDefault("app.url", "https://hiring.idenhq.com/")
	v.SetDefault("app.username", "")
	v.SetDefault("app.password", "")

	v.SetDefault("session.path", "session_state.json")
	v.SetDefault("output.path", "product_data.json")

	// -- Browser --
	v.SetDefault("browser.driver", string(DriverChromedp))
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.disable_blink_features", "AutomationControlled")
	v.SetDefault("browser.disable_dev_shm_usage", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.leakless", true)

	// -- Timeouts --
	v.SetDefault("timeouts.navigation", "30s")
	v.SetDefault("timeouts.action", "30s")
	v.SetDefault("timeouts.probe", "2s")
	v.SetDefault("timeouts.quiescence", "30s")
	v.SetDefault("timeouts.idle_window", "500ms")
	v.SetDefault("timeouts.table", "100s")
	v.SetDefault("timeouts.rows", "60s")

	// -- Login --
	v.SetDefault("login.indicator", locatorMap("placeholder", "", "name@example.com", ""))
	v.SetDefault("login.identifier", locatorMap("placeholder", "", "name@example.com", ""))
	v.SetDefault("login.secret", locatorMap("label", "", "Password", ""))
	v.SetDefault("login.submit", []map[string]any{
		locatorMap("role", "button", "Login", ""),
		locatorMap("role", "button", "Sign in", ""),
		locatorMap("css", "", "", `button[type="submit"]`),
	})

	// -- Navigation --
	v.SetDefault("navigation.launch", locatorMap("role", "button", "Launch", ""))
	v.SetDefault("navigation.steps", []map[string]any{
		locatorMap("role", "tab", "Tools", ""),
		locatorMap("role", "tab", "Data", ""),
		locatorMap("role", "button", "Inventory", ""),
		locatorMap("role", "tab", "Products", ""),
	})
	v.SetDefault("navigation.table", locatorMap("css", "", "", "table.product-table"))

	// -- Table --
	v.SetDefault("table.headers", "table.product-table thead th")
	v.SetDefault("table.rows", "table.product-table tbody tr")
	v.SetDefault("table.cells", "td")
	v.SetDefault("table.next", locatorMap("css", "", "", "button.next-page:not([disabled])"))

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "tableharvester")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Elasticsearch --
	v.SetDefault("elasticsearch.enabled", false)
	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index", "table_records")
	v.SetDefault("elasticsearch.id_column", "")
}

func locatorMap(kind, role, name, selector string) map[string]any {
	return map[string]any{"kind": kind, "role": role, "name": name, "selector": selector}
}

// Load reads path (or ./config.yaml when path is empty) into v, unmarshals
// and validates the result. A missing default config file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper unmarshals v, resolves relative paths and validates.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) resolvePaths() error {
	for _, p := range []*string{&c.Session.Path, &c.Output.Path, &c.Browser.UserDataDir} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve path %q: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// Validate checks required fields and sane values before any browser work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.App.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("app.url %q must be an absolute http(s) URL", c.App.URL)
	}
	if c.Session.Path == "" {
		return errors.New("session.path is required")
	}
	if c.Output.Path == "" {
		return errors.New("output.path is required")
	}
	switch c.Browser.Driver {
	case DriverChromedp, DriverRod:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverChromedp, DriverRod, c.Browser.Driver)
	}
	if err := c.Timeouts.Validate(); err != nil {
		return err
	}
	if err := c.Login.Validate(); err != nil {
		return err
	}
	if err := c.Navigation.Validate(); err != nil {
		return err
	}
	if err := c.Table.Validate(); err != nil {
		return err
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	if c.Elasticsearch.Enabled {
		if len(c.Elasticsearch.Addresses) == 0 {
			return errors.New("elasticsearch.addresses is required when elasticsearch is enabled")
		}
		if c.Elasticsearch.Index == "" {
			return errors.New("elasticsearch.index is required when elasticsearch is enabled")
		}
	}
	return nil
}

func (t *TimeoutConfig) Validate() error {
	for _, d := range []struct {
		name  string
		value int64
	}{
		{"navigation", int64(t.Navigation)},
		{"action", int64(t.Action)},
		{"probe", int64(t.Probe)},
		{"quiescence", int64(t.Quiescence)},
		{"idle_window", int64(t.IdleWindow)},
		{"table", int64(t.Table)},
		{"rows", int64(t.Rows)},
	} {
		if d.value <= 0 {
			return fmt.Errorf("timeouts.%s must be a positive duration", d.name)
		}
	}
	return nil
}

// Validate is only called once a login form is actually shown.
func (c Credentials) Validate() error {
	if c.Identifier == "" || c.Secret == "" {
		return errors.New("app.username and app.password are required to log in")
	}
	return nil
}
