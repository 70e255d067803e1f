// Package app assembles the stores, limiter and services the server, worker
// and helper binaries share.
package app

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"mdmc/internal/access"
	"mdmc/internal/auth"
	"mdmc/internal/config"
	"mdmc/internal/db"
	"mdmc/internal/services"
	"mdmc/internal/store/memory"
	"mdmc/internal/utils/logger"
)

var log = logger.New("APP")

// App is a wired instance. Close releases the database and redis connections.
type App struct {
	Config        *config.Config
	Stores        services.Stores
	DB            *gorm.DB
	Tokens        *auth.Tokens
	Services      *services.Registry
	Authenticator *access.Authenticator
	Limiter       access.RateLimiter
	Redis         *redis.Client
}

// New opens the configured backends and builds every service on top of them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Tokens: auth.NewTokens(cfg.JWT)}

	switch cfg.Database.Driver {
	case "memory":
		log.Warn("Using in-memory storage, data is lost on restart")
		m := memory.New()
		a.Stores = services.Stores{Accounts: m.Accounts, Leads: m.Leads, Campaigns: m.Campaigns}
	default:
		if err := db.Connect(cfg); err != nil {
			return nil, err
		}
		a.DB = db.GetDB()
		a.Stores = services.Stores{
			Accounts:  db.NewAccountStore(a.DB),
			Leads:     db.NewLeadStore(a.DB),
			Campaigns: db.NewCampaignStore(a.DB),
		}
	}

	var identity auth.IdentityProvider
	if cfg.Google.UserInfoURL != "" {
		identity = auth.NewGoogleProvider(cfg.Google.UserInfoURL)
	}
	a.Services = services.NewRegistry(a.Stores, a.Tokens, identity)
	a.Authenticator = access.NewAuthenticator(a.Stores.Accounts, a.Tokens)

	if cfg.Storage.S3.Enabled() {
		files, err := services.NewS3Service(ctx, cfg.Storage.S3)
		if err != nil {
			a.Close()
			return nil, log.Error("Failed to initialize S3 service", err)
		}
		a.Services.Leads.WithFileStore(files, cfg.Storage.ExportTTL)
		log.Info("Lead exports upload to bucket %s", cfg.Storage.S3.BucketName)
	}

	switch cfg.RateLimit.Store {
	case "redis":
		a.Redis = NewRedisClient(cfg.Redis)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, log.Error("Failed to reach redis for rate limiting", err)
		}
		a.Limiter = access.NewRedisLimiter(a.Redis, cfg.RateLimit.Max, cfg.RateLimit.Window)
	default:
		a.Limiter = access.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
	}
	return a, nil
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// EnsureAdmin creates the bootstrap administrator from config when one is
// configured and no account uses that e-mail yet.
func (a *App) EnsureAdmin(ctx context.Context) error {
	admin := a.Config.Admin
	if admin.Email == "" || admin.Password == "" {
		log.Debug("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin bootstrap")
		return nil
	}
	_, err := a.Services.Accounts.EnsureAdmin(ctx, admin.Email, admin.Password, admin.FirstName, admin.LastName)
	return err
}

func (a *App) Close() error {
	var errList []error
	if a.Redis != nil {
		errList = append(errList, a.Redis.Close())
	}
	if a.DB != nil {
		errList = append(errList, db.Close())
	}
	return errors.Join(errList...)
}
