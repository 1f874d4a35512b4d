package main

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/access"
	"github.com/zulandar/taskyard/internal/auth"
	"github.com/zulandar/taskyard/internal/config"
	"github.com/zulandar/taskyard/internal/db"
	"github.com/zulandar/taskyard/internal/logging"
	"github.com/zulandar/taskyard/internal/store"
	"github.com/zulandar/taskyard/internal/task"
	"gorm.io/gorm"
)

// stack is everything a command needs to run task operations.
type stack struct {
	cfg   *config.Config
	db    *gorm.DB
	store *store.Gorm
	log   *logrus.Logger
	svc   *task.Service
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", databaseLabel(cfg.Database), err)
	}
	return cfg, gormDB, nil
}

// openStack connects to the configured database and builds the task
// service. Logs go to logOut.
func openStack(configPath string, logOut io.Writer) (*stack, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.NewWithWriter(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	cache, err := newAccessCache(cfg.Access)
	if err != nil {
		return nil, err
	}

	st := store.New(gormDB)
	guard := access.NewGuard(st, cache, log)
	return &stack{
		cfg:   cfg,
		db:    gormDB,
		store: st,
		log:   log,
		svc:   task.NewService(st, guard, log),
	}, nil
}

// newAccessCache picks Redis when a URL is configured, else an in-process
// LRU bounded by access.cache_size.
func newAccessCache(cfg config.AccessConfig) (access.Cache, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("access.redis_url: %w", err)
		}
		return access.NewRedisCache(redis.NewClient(opts), cfg.CacheTTL), nil
	}
	return access.NewLRUCache(cfg.CacheSize, cfg.CacheTTL), nil
}

// callerFor resolves --as into a caller carrying the user's stored role.
func (s *stack) callerFor(ctx context.Context, userID string) (auth.Caller, error) {
	if userID == "" {
		return auth.Caller{}, fmt.Errorf("--as is required")
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return auth.Caller{}, fmt.Errorf("resolve --as %s: %w", userID, err)
	}
	return auth.Caller{UserID: u.ID, Role: u.Role}, nil
}

func (s *stack) jwt() *auth.JWTProvider {
	return auth.NewJWTProvider(s.cfg.Auth.Secret, s.cfg.Auth.Issuer, s.store)
}

func databaseLabel(cfg config.DatabaseConfig) string {
	if cfg.Driver == "sqlite" {
		return cfg.Path
	}
	return fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
}
