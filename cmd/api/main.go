package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"coffeewifi/cache"
	"coffeewifi/config"
	"coffeewifi/controller"
	"coffeewifi/database"
	"coffeewifi/logger"
	"coffeewifi/repository"
	"coffeewifi/route"
	"coffeewifi/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg.Log.Level, cfg.Log.Format, "cafe-api")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logg.Sync()

	if err := run(cfg, logg); err != nil {
		logg.Fatal("cafe api stopped", zap.Error(err))
	}
}

func run(cfg config.API, logg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		logg.Info("running in debug mode")
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)
	logg.Info("database ready", zap.String("driver", cfg.Database.Driver))

	cafeCache, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		logg.Warn("redis unavailable, list cache disabled", zap.Error(err))
		cafeCache = nil
	} else if cafeCache != nil {
		logg.Info("list cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}
	defer cafeCache.Close()

	guard, err := utils.NewAPIKeyGuard(cfg.APIKey, cfg.APIKeyHash)
	if err != nil {
		return err
	}

	ctl := controller.NewCafeController(repository.NewCafeRepository(db), cafeCache, logg)
	router := route.NewRouter(ctl, guard, cfg.AllowedOrigins, logg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info("starting cafe api", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logg.Info("shutting down cafe api")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
