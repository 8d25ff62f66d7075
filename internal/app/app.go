// Package app assembles the stores, queue and services from configuration.
// The api, worker and rollctl binaries share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/queue"
	"rollcall/internal/roster"
	"rollcall/internal/store"
	"rollcall/internal/timewindow"
)

// App holds the wired dependencies of one process.
type App struct {
	Config   config.App
	Location *time.Location
	DB       *store.DB
	Redis    *store.Redis
	Store    attendance.Store
	Roster   roster.Directory
	Queue    queue.Queue
	Sweeper  *attendance.Sweeper
	Service  *attendance.Service
}

// Build connects the configured backends and wires the services.
func Build(ctx context.Context, cfg config.App) (*App, error) {
	loc, err := timewindow.ParseOffset(cfg.UTCOffset)
	if err != nil {
		return nil, fmt.Errorf("INSTITUTION_UTC_OFFSET: %w", err)
	}
	a := &App{Config: cfg, Location: loc}

	switch cfg.StoreBackend {
	case "memory":
		log.Warn().Msg("using in-memory store; data is lost on restart")
		a.Store = attendance.NewMemoryStore()
		a.Roster = roster.NewMemory()
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.DB = db
		if cfg.AutoMigrate {
			if err := store.Migrate(ctx, db.Client); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		a.Store = attendance.NewRepository(db.Client)
		a.Roster = roster.NewRepository(db.Client)
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.QueueBackend == "redis" || cfg.SweepThrottle == "redis" {
		a.Redis = store.NewRedis(cfg.RedisAddr)
	}

	switch cfg.QueueBackend {
	case "memory":
		a.Queue = queue.NewInMemory(256)
	case "redis":
		a.Queue = queue.NewRedisQueue(a.Redis.Client, cfg.QueueKey)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}

	var throttle attendance.Throttle = attendance.NewLocalThrottle(cfg.SweepCooldown)
	if cfg.SweepThrottle == "redis" {
		throttle = attendance.NewRedisThrottle(a.Redis.Client, "", cfg.SweepCooldown)
	}

	a.Sweeper = attendance.NewSweeper(a.Store, a.Roster, attendance.SweeperOptions{
		Location: loc,
		Throttle: throttle,
		Events:   a.Queue,
	})
	a.Service = attendance.NewService(a.Store, a.Roster, attendance.Options{
		Location: loc,
		AdminPIN: cfg.GlobalPIN,
		Events:   a.Queue,
		Sweeper:  a.Sweeper,
	})
	return a, nil
}

// Close releases connections.
func (a *App) Close() {
	_ = a.Redis.Close()
	_ = a.DB.Close()
}
