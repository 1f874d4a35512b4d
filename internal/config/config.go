// Package config provides YAML-based configuration loading for taskyard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level taskyard configuration, loaded from taskyard.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Access   AccessConfig   `yaml:"access"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Log      LogConfig      `yaml:"log"`
	Seed     SeedConfig     `yaml:"seed"`
}

// DatabaseConfig selects and locates the task store database.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"` // sqlite file
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// AccessConfig sizes the membership cache. RedisURL switches it to a shared
// Redis-backed cache.
type AccessConfig struct {
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	RedisURL  string        `yaml:"redis_url"`
}

// SweepConfig schedules the periodic blocked-state reconcile. Empty disables it.
type SweepConfig struct {
	Schedule string `yaml:"schedule"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// SeedConfig lists fixtures written by `ty db init`.
type SeedConfig struct {
	Users []SeedUser `yaml:"users"`
	Teams []SeedTeam `yaml:"teams"`
}

// SeedUser is a user row to upsert.
type SeedUser struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Role     string `yaml:"role"`
}

// SeedTeam is a team with its members and tags.
type SeedTeam struct {
	ID        string       `yaml:"id"`
	Name      string       `yaml:"name"`
	CreatedBy string       `yaml:"created_by"`
	Members   []SeedMember `yaml:"members"`
	Tags      []SeedTag    `yaml:"tags"`
}

// SeedMember is an active team membership.
type SeedMember struct {
	UserID string `yaml:"user_id"`
	Role   string `yaml:"role"`
}

// SeedTag is a team tag.
type SeedTag struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "taskyard.db"
		}
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "taskyard"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "taskyard"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Access.CacheSize == 0 {
		c.Access.CacheSize = 1024
	}
	if c.Access.CacheTTL == 0 {
		c.Access.CacheTTL = 5 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	for i := range c.Seed.Users {
		if c.Seed.Users[i].Role == "" {
			c.Seed.Users[i].Role = "user"
		}
	}
	for i := range c.Seed.Teams {
		for j := range c.Seed.Teams[i].Members {
			if c.Seed.Teams[i].Members[j].Role == "" {
				c.Seed.Teams[i].Members[j].Role = "member"
			}
		}
		for j := range c.Seed.Teams[i].Tags {
			if c.Seed.Teams[i].Tags[j].Color == "" {
				c.Seed.Teams[i].Tags[j].Color = "#007bff"
			}
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Database.Driver != "sqlite" && c.Database.Driver != "mysql" {
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, "auth.secret is required")
	}
	if c.Access.CacheSize < 0 {
		errs = append(errs, "access.cache_size must not be negative")
	}
	if c.Access.CacheTTL < 0 {
		errs = append(errs, "access.cache_ttl must not be negative")
	}
	if c.Sweep.Schedule != "" {
		if _, err := cron.ParseStandard(c.Sweep.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("sweep.schedule %q is not a valid cron expression", c.Sweep.Schedule))
		}
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	for i, u := range c.Seed.Users {
		if u.ID == "" {
			errs = append(errs, fmt.Sprintf("seed.users[%d].id is required", i))
		} else if !isUUID(u.ID) {
			errs = append(errs, fmt.Sprintf("seed.users[%d].id %q is not a uuid", i, u.ID))
		}
		if u.Username == "" {
			errs = append(errs, fmt.Sprintf("seed.users[%d].username is required", i))
		}
	}
	for i, t := range c.Seed.Teams {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("seed.teams[%d].id is required", i))
		} else if !isUUID(t.ID) {
			errs = append(errs, fmt.Sprintf("seed.teams[%d].id %q is not a uuid", i, t.ID))
		}
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("seed.teams[%d].name is required", i))
		}
		if t.CreatedBy == "" {
			errs = append(errs, fmt.Sprintf("seed.teams[%d].created_by is required", i))
		}
		for j, m := range t.Members {
			if m.UserID == "" {
				errs = append(errs, fmt.Sprintf("seed.teams[%d].members[%d].user_id is required", i, j))
			}
		}
		for j, tag := range t.Tags {
			if tag.ID == "" || tag.Name == "" {
				errs = append(errs, fmt.Sprintf("seed.teams[%d].tags[%d] needs id and name", i, j))
			} else if !isUUID(tag.ID) {
				errs = append(errs, fmt.Sprintf("seed.teams[%d].tags[%d].id %q is not a uuid", i, j, tag.ID))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
