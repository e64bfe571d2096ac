package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate fills zero values with defaults and rejects settings the lease protocol cannot run with.
func (c *Config) Validate() error {
	a := &c.Attendance
	if a.GraceSeconds <= 0 {
		a.GraceSeconds = 6
	}
	if a.LeaseSeconds <= 0 {
		a.LeaseSeconds = 20
	}
	if a.HeartbeatSeconds <= 0 {
		a.HeartbeatSeconds = a.LeaseSeconds / 2
	}
	if a.HeartbeatSeconds >= a.LeaseSeconds {
		return fmt.Errorf("attendance.heartbeat_seconds (%d) must be below attendance.lease_seconds (%d)",
			a.HeartbeatSeconds, a.LeaseSeconds)
	}
	if a.SessionWindowSeconds <= 0 {
		a.SessionWindowSeconds = 120
	}
	if a.ClientCookieDays <= 0 {
		a.ClientCookieDays = 400
	}
	if a.SweepIntervalSeconds <= 0 {
		a.SweepIntervalSeconds = 300
	}

	if c.Suggest.BatchSize <= 0 {
		c.Suggest.BatchSize = 500
	}
	if c.Suggest.Limit <= 0 {
		c.Suggest.Limit = 24
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Security.ClientIDSecret == "" {
		return fmt.Errorf("security.client_id_secret is required")
	}

	switch c.Database.Driver {
	case "", "sqlite":
		c.Database.Driver = "sqlite"
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	return nil
}

func (a AttendanceConfig) Grace() time.Duration {
	return time.Duration(a.GraceSeconds) * time.Second
}

func (a AttendanceConfig) LeaseDuration() time.Duration {
	return time.Duration(a.LeaseSeconds) * time.Second
}

func (a AttendanceConfig) Heartbeat() time.Duration {
	return time.Duration(a.HeartbeatSeconds) * time.Second
}

func (a AttendanceConfig) SessionWindow() time.Duration {
	return time.Duration(a.SessionWindowSeconds) * time.Second
}

func (a AttendanceConfig) CookieMaxAge() time.Duration {
	return time.Duration(a.ClientCookieDays) * 24 * time.Hour
}

func (a AttendanceConfig) SweepInterval() time.Duration {
	return time.Duration(a.SweepIntervalSeconds) * time.Second
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// SecureCookies reports whether cookies must carry the Secure flag.
func (s ServerConfig) SecureCookies() bool {
	return strings.HasPrefix(s.PublicOrigin, "https://")
}
