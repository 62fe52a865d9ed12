package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"accountd/internal/auth"
	"accountd/internal/config"
	"accountd/internal/service"
	"accountd/internal/store/memory"
	"accountd/internal/store/postgres"
)

// app holds the process-wide collaborators built from config.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	accounts service.AccountStore
	resets   service.ResetTokenStore
	denylist auth.Denylist
	hasher   *auth.Hasher
	codec    *auth.TokenCodec

	auth    *service.AuthService
	reset   *service.PasswordResetService
	profile *service.ProfileService
	admin   *service.AdminService
}

// openDeps connects storage and builds the services. Without a DSN outside
// prod it falls back to the in-memory store.
func openDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.DB.DSN != "" {
		if cfg.DB.AutoMigrate {
			if err := migrateUp(cfg.DB.DSN, logger); err != nil {
				return nil, err
			}
		}
		pool, err := postgres.Open(ctx, cfg.DB.DSN, cfg.DB.ConnectWait, logger)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.accounts = postgres.NewAccountsStore(pool)
		a.resets = postgres.NewResetTokensStore(pool)
	} else {
		logger.Warn("no database configured, using in-memory store; data is lost on exit")
		mem := memory.New()
		a.accounts = mem
		a.resets = mem
	}

	if cfg.Redis.Addr != "" {
		client, err := auth.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		a.denylist = auth.NewRedisDenylist(client)
	} else {
		a.denylist = auth.NewMemoryDenylist()
	}

	a.hasher = auth.NewHasher(auth.Argon2Params{
		Memory:      cfg.Hash.MemoryKiB,
		Iterations:  cfg.Hash.Iterations,
		Parallelism: cfg.Hash.Parallelism,
		SaltLen:     auth.DefaultArgon2Params.SaltLen,
		KeyLen:      auth.DefaultArgon2Params.KeyLen,
	})
	codec, err := auth.NewTokenCodec([]byte(cfg.Token.Secret), cfg.Token.TTL, auth.WithIssuer(cfg.Token.Issuer))
	if err != nil {
		a.Close()
		return nil, oops.Code("TOKEN_CODEC_INVALID").Wrap(err)
	}
	a.codec = codec

	publicURL := ""
	if cfg.PublicURL != nil {
		publicURL = cfg.PublicURL.String()
	}

	a.auth = &service.AuthService{
		Accounts: a.accounts,
		Hasher:   a.hasher,
		Tokens:   codec,
		Denylist: a.denylist,
		Logger:   logger,
	}
	a.reset = &service.PasswordResetService{
		Accounts: a.accounts,
		Tokens:   a.resets,
		Hasher:   a.hasher,
		Notifier: &service.LogResetNotifier{
			Logger:      logger,
			PublicURL:   publicURL,
			IncludeLink: !cfg.IsProd(),
		},
		TokenTTL: cfg.Reset.TTL,
		Logger:   logger,
	}
	a.profile = &service.ProfileService{Accounts: a.accounts, Hasher: a.hasher}
	a.admin = &service.AdminService{Accounts: a.accounts, Hasher: a.hasher, Logger: logger}

	return a, nil
}

func (a *app) dbPing() func(context.Context) error {
	if a.pool == nil {
		return nil
	}
	return a.pool.Ping
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", "err", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// bootstrapAdmin applies the admin.bootstrap_* settings. It is a no-op when
// no bootstrap password is configured.
func (a *app) bootstrapAdmin(ctx context.Context) error {
	c := a.cfg.Admin
	if c.BootstrapPassword == "" {
		return nil
	}
	acct, created, err := a.admin.EnsureAdmin(ctx, c.BootstrapEmail, c.BootstrapUsername, c.BootstrapPassword)
	if err != nil {
		return oops.Code("ADMIN_BOOTSTRAP_FAILED").With("email", c.BootstrapEmail).Wrap(err)
	}
	a.logger.Info("admin bootstrap", "account_id", acct.ID, "created", created)
	return nil
}
