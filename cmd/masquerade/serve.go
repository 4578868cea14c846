package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/masquerade-labs/masquerade/internal/api"
	"github.com/masquerade-labs/masquerade/internal/auth"
	"github.com/masquerade-labs/masquerade/internal/config"
	"github.com/masquerade-labs/masquerade/internal/domain"
	"github.com/masquerade-labs/masquerade/internal/logging"
	"github.com/masquerade-labs/masquerade/internal/store"
)

// serveCmd is the default subcommand (spec §4.6 "Bootstrap"): it wires
// the three Tiered Store instances (flags, paths, users), registers one
// background updater per store, seeds a default administrator on first
// run, and starts the HTTP listener with graceful shutdown.
type serveCmd struct {
	Config string `help:"Path to the YAML config file." default:"config.yaml"`
}

// defaultAdminKey/defaultAdminSecret are the first-run credentials;
// seeding them is logged once at Warn level (the key only). An operator
// is expected to rotate them immediately through the /users/ API.
const (
	defaultAdminKey    = "admin"
	defaultAdminSecret = "admin"
)

func (c *serveCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Database.Redis})
	backend := store.NewRedisBackend(redisClient)

	cacheDuration := time.Duration(cfg.Database.Cache.DurationSeconds) * time.Second

	flagsStore := store.New[domain.FlagPath, domain.Flag](backend, store.Config{
		Prefix:        cfg.Database.Prefix,
		Topic:         cfg.Database.Prefix,
		CacheDuration: cacheDuration,
	}, store.JSONCodec[domain.Flag](), log.Named("store.flags"))

	pathsStore := store.New[store.CollectionPath, domain.FlagPath](backend, store.Config{
		Prefix:        cfg.Database.Prefix,
		Topic:         cfg.Database.Prefix,
		CacheDuration: cacheDuration,
	}, store.JSONCodec[domain.FlagPath](), log.Named("store.paths"))

	usersStore := store.New[store.CollectionPath, domain.User](backend, store.Config{
		Prefix:        cfg.Database.Prefix,
		Topic:         cfg.Database.Prefix,
		CacheDuration: cacheDuration,
	}, store.JSONCodec[domain.User](), log.Named("store.users"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One updater goroutine per Tiered Store, started exactly once per
	// process (spec §4.2 "updater"). Each runs until its subscription
	// ends permanently or ctx is cancelled at shutdown; failures are
	// logged and do not crash the process (spec §4.5).
	runUpdater := func(name string, updater func(context.Context) error) {
		go func() {
			if err := updater(ctx); err != nil && ctx.Err() == nil {
				log.Error("updater terminated", zap.String("store", name), zap.Error(err))
			}
		}()
	}
	runUpdater("flags", flagsStore.Updater)
	runUpdater("paths", pathsStore.Updater)
	runUpdater("users", usersStore.Updater)

	credentials := auth.NewCredentials(cfg.API.PBKDF2Iterations, log)
	tokens := auth.NewTokens([]byte(cfg.API.JWTSecret))

	if err := seedDefaultAdmin(ctx, usersStore, credentials, log); err != nil {
		return err
	}

	app := &api.App{
		Flags:       flagsStore,
		Paths:       pathsStore,
		Users:       usersStore,
		Tokens:      tokens,
		Credentials: credentials,
		Log:         log,
	}

	router := api.NewRouter(app, cfg.HTTP.StaticDir)

	server := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-sig:
		log.Info("shutting down")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// seedDefaultAdmin creates the "admin" user with a known default secret
// the first time the service runs against an empty users collection
// (spec §4.6 "seeds a default administrator on first run"). Operators
// must rotate this credential immediately; it exists only so a fresh
// deployment has a way in.
func seedDefaultAdmin(ctx context.Context, users *api.UsersStore, credentials auth.Credentials, log *zap.Logger) error {
	existing, err := users.GetAll(ctx, api.UsersCollection)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	saltB64, hashB64, err := credentials.Hash(defaultAdminSecret)
	if err != nil {
		return err
	}

	admin := domain.User{
		UUID:    uuid.NewString(),
		Key:     defaultAdminKey,
		Salt:    saltB64,
		Hash:    hashB64,
		IsAdmin: true,
	}
	if _, _, err := users.Upsert(ctx, api.UsersCollection, admin.Key, admin); err != nil {
		return err
	}

	log.Warn("seeded default administrator; rotate its secret immediately",
		zap.String("key", defaultAdminKey),
	)
	return nil
}
