package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/movie-catalog/internal/config"
    "github.com/iliyamo/movie-catalog/internal/database"
    "github.com/iliyamo/movie-catalog/internal/handler"
    "github.com/iliyamo/movie-catalog/internal/logger"
    "github.com/iliyamo/movie-catalog/internal/middleware"
    "github.com/iliyamo/movie-catalog/internal/queue"
    "github.com/iliyamo/movie-catalog/internal/repository"
    "github.com/iliyamo/movie-catalog/internal/router"
    "github.com/iliyamo/movie-catalog/internal/service"
)

func main() {
    logger.Init()
    log := logger.Get()

    cfg := config.Load()
    cacheCfg := config.LoadCacheConfig()
    rateCfg := config.LoadRateLimitConfig()
    brokerCfg := config.LoadBrokerConfig()
    redisCfg := config.LoadRedisConfig()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.WithError(err).Fatal("database open failed")
    }
    defer db.Close()
    if cfg.AutoMigrate {
        if err := database.Migrate(ctx, db); err != nil {
            log.WithError(err).Fatal("database migrate failed")
        }
    }

    rdb := redisCfg.Connect(ctx)
    if rdb != nil {
        defer rdb.Close()
    }
    catalogCache := middleware.NewCatalogCache(cacheCfg, rdb)

    var events service.EventPublisher
    if brokerCfg.Enabled {
        events = queue.NewPublisher(brokerCfg)
        go func() {
            if err := queue.StartActivityConsumer(ctx, brokerCfg); err != nil && !errors.Is(err, context.Canceled) {
                log.WithError(err).Error("activity consumer stopped")
            }
        }()
    }

    users := repository.NewUserRepo(db)
    tokens := repository.NewTokenRepo(db)
    movies := repository.NewMovieRepo(db)
    ratings := repository.NewRatingRepo(db)
    rentals := repository.NewRentalRepo(db)
    recs := repository.NewRecommendationRepo(db)
    watchlist := repository.NewWatchlistRepo(db)

    accountSvc := service.NewAccountService(db, users, movies, ratings, tokens, catalogCache, cfg.AdminBootstrap, cfg.BcryptCost)
    ratingSvc := service.NewRatingService(db, users, movies, ratings, events, catalogCache)
    rentalSvc := service.NewRentalService(db, users, movies, rentals, events, cfg.RentalLimit)
    recommendSvc := service.NewRecommendService(recs)
    catalogSvc := service.NewCatalogService(movies, catalogCache)

    e := echo.New()
    e.HideBanner = true
    e.HidePort = true
    e.Use(echomw.Recover())
    e.Use(middleware.RequestLogger())

    router.Register(e, router.Handlers{
        Auth:      handler.NewAuthHandler(cfg, accountSvc, users, tokens),
        Movies:    handler.NewMovieHandler(movies, ratings),
        Ratings:   handler.NewRatingHandler(ratingSvc, ratings),
        Rentals:   handler.NewRentalHandler(rentalSvc),
        Recommend: handler.NewRecommendHandler(recommendSvc),
        Watchlist: handler.NewWatchlistHandler(watchlist),
        Admin:     handler.NewAdminHandler(catalogSvc, accountSvc, rentalSvc),
    }, handler.Ready(db), cfg.JWTSecret, router.Middleware{
        RateLimit: middleware.NewTokenBucket(rateCfg, rdb),
        Cache:     middleware.NewRedisCache(cacheCfg, catalogCache),
    })

    addr := ":" + cfg.Port
    go func() {
        log.WithField("addr", addr).WithField("env", cfg.Env).Info("listening")
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.WithError(err).Fatal("server failed")
        }
    }()

    <-ctx.Done()
    log.Info("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.WithError(err).Error("graceful shutdown failed")
    }
}
