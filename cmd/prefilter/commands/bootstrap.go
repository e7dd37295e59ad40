package commands

import (
	"fmt"

	"github.com/wonny/prefilter/backend/internal/dataset"
	"github.com/wonny/prefilter/backend/internal/runner"
	"github.com/wonny/prefilter/backend/pkg/config"
	"github.com/wonny/prefilter/backend/pkg/database"
	"github.com/wonny/prefilter/backend/pkg/logger"
	"github.com/wonny/prefilter/backend/pkg/redis"
)

// cachePrefix namespaces every Redis key of this service
const cachePrefix = "prefilter"

// app bundles the shared dependencies of DB-backed commands
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	redis  *redis.Client
	repo   *dataset.Repository
	runner *runner.Runner
}

// newLogger builds the logger, honoring --verbose
func newLogger(cfg *config.Config) *logger.Logger {
	if verbose {
		cfg.LogLevel = "debug"
	}
	return logger.New(cfg)
}

// bootstrap loads config and connects DB + Redis
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("Connected to database")

	rc, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if rc.Enabled() {
		log.Info("Connected to redis")
	}

	repo := dataset.NewRepository(db)
	cache := redis.NewCache(rc, cachePrefix)

	return &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		redis:  rc,
		repo:   repo,
		runner: runner.New(repo, repo, cache, log, cfg.Filter.RunTimeout),
	}, nil
}

// Close releases connections
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
