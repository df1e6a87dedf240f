package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read when present, like a dotenv file.
const DefaultEnvFile = ".env"

var ErrMissingCredentials = errors.New("SUPABASE_PROJECT_REF and SUPABASE_SERVICE_ROLE_KEY must be set")

type Config struct {
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Database DatabaseConfig `mapstructure:"database"`
	Output   OutputConfig   `mapstructure:"output"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type SupabaseConfig struct {
	ProjectRef     string `mapstructure:"project_ref"`
	ServiceRoleKey string `mapstructure:"service_role_key"`
	// URL overrides https://<project_ref>.supabase.co, e.g. for self-hosted instances.
	URL    string `mapstructure:"url"`
	Schema string `mapstructure:"schema"`
}

// BaseURL returns the project URL without a trailing slash.
func (c SupabaseConfig) BaseURL() string {
	if c.URL != "" {
		return strings.TrimRight(c.URL, "/")
	}
	return fmt.Sprintf("https://%s.supabase.co", c.ProjectRef)
}

// DatabaseConfig is only used when a direct connection is configured.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

type OutputConfig struct {
	Path string `mapstructure:"path"`
}

type ProbeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

func (c TelegramConfig) Enabled() bool {
	return c.Token != "" && c.ChatID != 0
}

// Validate checks the settings every remote operation needs.
func (c *Config) Validate() error {
	if c.Supabase.ProjectRef == "" || c.Supabase.ServiceRoleKey == "" {
		return ErrMissingCredentials
	}
	return nil
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Hostname() == "" {
		return DatabaseConfig{}, fmt.Errorf("missing host in %q", u.Redacted())
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q", u.Port())
		}
	}

	// hosted projects only accept TLS connections
	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "require"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads defaults, the optional config file at path and the
// environment, in increasing order of precedence. A missing file is only an
// error when path is not DefaultEnvFile.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("supabase.schema", "public")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "postgres")
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("output.path", "create_ai_helper_tables.sql")
	v.SetDefault("probe.timeout", 30*time.Second)

	v.AutomaticEnv()

	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			v.SetConfigFile(path)
			if strings.HasSuffix(path, DefaultEnvFile) {
				v.SetConfigType("env")
			}
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		case os.IsNotExist(statErr) && path == DefaultEnvFile:
			// the default dotenv file is optional
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, statErr)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Flat keys, from the environment or a dotenv file
	if ref := v.GetString("SUPABASE_PROJECT_REF"); ref != "" {
		config.Supabase.ProjectRef = ref
	}
	if key := v.GetString("SUPABASE_SERVICE_ROLE_KEY"); key != "" {
		config.Supabase.ServiceRoleKey = key
	}
	if u := v.GetString("SUPABASE_URL"); u != "" {
		config.Supabase.URL = u
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if out := v.GetString("SCHEMA_OUTPUT"); out != "" {
		config.Output.Path = out
	}
	if timeout := v.GetDuration("PROBE_TIMEOUT"); timeout > 0 {
		config.Probe.Timeout = timeout
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if raw := v.GetString("TELEGRAM_CHAT_ID"); raw != "" {
		chatID, err := cast.ToInt64E(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		config.Telegram.ChatID = chatID
	}

	return &config, nil
}
