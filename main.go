package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ArgbRelay/global/config"
	"ArgbRelay/logger"
	"ArgbRelay/module/relay"
	"ArgbRelay/module/relay/service"
	"ArgbRelay/module/relay/store"
	"ArgbRelay/service/chat"
	"ArgbRelay/service/mgo"
	"ArgbRelay/service/storage"
	redisx "ArgbRelay/service/storage/redis"
	"ArgbRelay/tools/errs"
	"ArgbRelay/tools/ids"
	"ArgbRelay/tools/safe"
	"ArgbRelay/tools/security"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "argb-relay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config/relay.yaml", "path to the yaml config file (empty for env only)")
	hash := flag.String("hash", "", "print the stored form of the given secret and exit")
	flag.Parse()

	if *hash != "" {
		stored, err := security.HashSecret(*hash)
		if err != nil {
			return err
		}
		fmt.Println(stored)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log := logger.Init(cfg.Log.Level)
	defer logger.Sync()
	ids.SetNodeID(cfg.NodeID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			log.Warn("[Main] close store", zap.Error(err))
		}
	}()

	cache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			log.Warn("[Main] close auth cache", zap.Error(err))
		}
	}()

	jwtOpts := security.DefaultOptions([]byte(cfg.JWT.SecurityKey))
	jwtOpts.Issuer = cfg.JWT.Issuer
	issuer, err := security.NewIssuer(jwtOpts)
	if err != nil {
		return err
	}

	auth := service.NewAuthenticator(db, db, issuer, cache, log)
	relaySrv := chat.NewServer(chat.NewRegistry(), chat.ServerConf{
		NodeID:  cfg.NodeID,
		Handler: chat.HandlerConf{SendTimeout: cfg.Relay.SendTimeout},
	}, log)
	api := relay.NewAPI(auth, issuer, relaySrv, chat.ConnOptions{
		ReadLimit:  cfg.Relay.ReadLimit,
		PingPeriod: cfg.Relay.PingPeriod,
		PongWait:   cfg.Relay.PongWait,
	}, log)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           relay.NewRouter(api, log),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	safe.Go(log, "http", func() {
		log.Info("[Main] relay listening", zap.String("addr", cfg.HTTP.Addr),
			zap.String("store", cfg.Store.Driver), zap.String("cache", cfg.Cache.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}, func(err error) { serveErr <- err })

	select {
	case <-ctx.Done():
		log.Info("[Main] shutting down")
	case err := <-serveErr:
		if err != nil {
			return errs.WrapMsg(err, "http server")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// live websockets first, then the listener
	if err := relaySrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("[Main] relay shutdown", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errs.WrapMsg(err, "http shutdown")
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		mgr := mgo.NewManager(&cfg.Store.Mongo, log)
		mgr.StartAsync(ctx)
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := mgr.WaitReady(waitCtx); err != nil {
			return nil, err
		}
		return store.NewMongoStore(mgr, &cfg.Store.Mongo, log), nil

	case config.StoreDriverPostgres:
		pool, err := store.NewPostgresPool(ctx, cfg.Store.Postgres.DSN, cfg.Store.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgresStore(pool, log)
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close(ctx)
			return nil, err
		}
		return pg, nil

	default:
		return store.NewMemoryStoreFromSeed(cfg.Store.Seed, log), nil
	}
}

func openCache(ctx context.Context, cfg *config.AppConfig) (storage.AuthCache, error) {
	if cfg.Cache.Driver == config.CacheDriverRedis {
		rdb, err := redisx.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return storage.NewRedisAuthCache(rdb), nil
	}
	return storage.NewMemoryAuthCache(storage.MemoryCacheConf{SweepEvery: cfg.Cache.SweepEvery}), nil
}
