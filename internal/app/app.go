package app

import (
	"context"

	"github.com/cellkeeper/cellkeeper/internal/cache"
	"github.com/cellkeeper/cellkeeper/internal/config"
	"github.com/cellkeeper/cellkeeper/internal/database"
	"github.com/cellkeeper/cellkeeper/internal/httpapi"
	"github.com/cellkeeper/cellkeeper/internal/inventory"
	"github.com/cellkeeper/cellkeeper/internal/logging"
)

// App holds all application dependencies
type App struct {
	Config       *config.Config
	Logger       *logging.Logger
	Cache        cache.Cache
	InventorySvc *inventory.Service
	HTTPServer   *httpapi.Server
	db           *database.DB
}

// New creates and initializes a new App instance
func New(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	app.Logger = app.initLogger()
	app.Cache = app.initCache()
	app.initInventory()

	app.HTTPServer = httpapi.New(app.InventorySvc, app.Cache, app.Logger)

	return app, nil
}

// Run loads the inventory and serves HTTP until the server stops
func (a *App) Run(ctx context.Context) error {
	// Best effort: an unreachable store means starting from local state only
	if err := a.InventorySvc.Load(ctx); err != nil {
		a.Logger.Warn("Inventory load failed, continuing with empty local state",
			logging.WithField("error", err.Error()))
	}

	return a.HTTPServer.Start(a.Config.Server.HTTPAddr)
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}

	// Let in-flight background writes drain before the DB handle closes
	a.InventorySvc.Flush()

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("Database close error", logging.WithField("error", err.Error()))
		}
	}

	return nil
}

func (a *App) initLogger() *logging.Logger {
	level := logging.LevelInfo
	switch a.Config.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.New(level)
}

func (a *App) initCache() cache.Cache {
	switch a.Config.Cache.Backend {
	case "redis":
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", a.Config.Cache.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr: a.Config.Cache.RedisAddr,
		}, a.Config.Cache.TTL)
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			return cache.NewMemory(a.Config.Cache.TTL)
		}
		return redisCache
	default:
		a.Logger.Info("Using in-memory cache backend")
		return cache.NewMemory(a.Config.Cache.TTL)
	}
}

// initInventory wires the inventory service to PostgreSQL, or runs it
// local-only when the database is unreachable.
func (a *App) initInventory() {
	dbConfig := database.DefaultConfig()
	dbConfig.Host = a.Config.Database.Host
	dbConfig.Port = a.Config.Database.Port
	dbConfig.User = a.Config.Database.User
	dbConfig.Password = a.Config.Database.Password
	dbConfig.Database = a.Config.Database.Database
	dbConfig.SSLMode = a.Config.Database.SSLMode

	db, err := database.New(dbConfig)
	if err != nil {
		a.Logger.Warn("Failed to connect to PostgreSQL, inventory runs without persistence",
			logging.WithField("error", err.Error()))
		a.InventorySvc = inventory.NewService(nil, a.Logger)
		return
	}

	if err := db.Migrate(context.Background()); err != nil {
		a.Logger.Warn("Failed to run migrations, inventory runs without persistence",
			logging.WithField("error", err.Error()))
		db.Close()
		a.InventorySvc = inventory.NewService(nil, a.Logger)
		return
	}

	a.Logger.Info("Connected to PostgreSQL")
	a.db = db

	store := database.NewBatteryStore(db)
	a.InventorySvc = inventory.NewService(store, a.Logger)
	a.InventorySvc.SetSyncErrorHandler(func(batteryID string, err error) {
		a.Logger.Warn("Inventory out of sync with storage", logging.WithFields(map[string]interface{}{
			"id":    batteryID,
			"error": err.Error(),
		}))
	})
}
