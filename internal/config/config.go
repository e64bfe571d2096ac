package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	PublicOrigin   string   `mapstructure:"public_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver  string `mapstructure:"driver"` // sqlite / postgres
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
	LogMode bool   `mapstructure:"log_mode"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type SecurityConfig struct {
	ClientIDSecret string `mapstructure:"client_id_secret"`
	EncryptionKey  string `mapstructure:"encryption_key"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// AttendanceConfig holds the timing knobs of the rotation, lease and session machinery.
type AttendanceConfig struct {
	GraceSeconds         int `mapstructure:"grace_seconds"`
	LeaseSeconds         int `mapstructure:"lease_seconds"`
	HeartbeatSeconds     int `mapstructure:"heartbeat_seconds"`
	SessionWindowSeconds int `mapstructure:"session_window_seconds"`
	ClientCookieDays     int `mapstructure:"client_cookie_days"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

type SuggestConfig struct {
	BatchSize int `mapstructure:"batch_size"`
	Limit     int `mapstructure:"limit"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Security   SecurityConfig   `mapstructure:"security"`
	Log        LogConfig        `mapstructure:"log"`
	Attendance AttendanceConfig `mapstructure:"attendance"`
	Suggest    SuggestConfig    `mapstructure:"suggest"`
}

var (
	appConfig *Config
	once      sync.Once
)

// Load loads configuration from given file path (e.g. "config.yaml").
// If path is empty, it defaults to "config.yaml" in current working directory.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		var c *Config
		c, err = Read(path)
		if err != nil {
			return
		}
		appConfig = c
	})

	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

// Read parses a configuration file without touching the global config.
func Read(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	// environment overrides, e.g. ATTENDLY_SERVER_PORT=9000
	v.SetEnvPrefix("ATTENDLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.public_origin", "http://localhost:8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/attendly.db")
	v.SetDefault("jwt.issuer", "attendly")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("attendance.grace_seconds", 6)
	v.SetDefault("attendance.lease_seconds", 20)
	v.SetDefault("attendance.heartbeat_seconds", 10)
	v.SetDefault("attendance.session_window_seconds", 120)
	v.SetDefault("attendance.client_cookie_days", 400)
	v.SetDefault("attendance.sweep_interval_seconds", 300)
	v.SetDefault("suggest.batch_size", 500)
	v.SetDefault("suggest.limit", 24)
}
