package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apirest "github.com/kasuganosora/nightwatch/api/rest"
	"github.com/kasuganosora/nightwatch/api/sse"
	apiws "github.com/kasuganosora/nightwatch/api/ws"
	"github.com/kasuganosora/nightwatch/archive"
	"github.com/kasuganosora/nightwatch/cache"
	"github.com/kasuganosora/nightwatch/config"
	dbadapter "github.com/kasuganosora/nightwatch/db"
	"github.com/kasuganosora/nightwatch/game/world"
	mw "github.com/kasuganosora/nightwatch/middleware"
	"github.com/kasuganosora/nightwatch/model"
	"github.com/kasuganosora/nightwatch/plugin/hook"
	"github.com/kasuganosora/nightwatch/plugin/script"
	"github.com/kasuganosora/nightwatch/resource"
	"github.com/kasuganosora/nightwatch/scheduler"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		cfgPath = "" // defaults and env only
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Cache / PubSub ----
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer c.Close()
	pubsub, err := cache.NewPubSub(cfg.Cache)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	logger.Info("cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Levels ----
	res := resource.NewLoader(cfg.Game.LevelDir)
	if err := res.Load(); err != nil {
		return fmt.Errorf("levels: %w", err)
	}
	logger.Info("levels loaded", zap.Strings("levels", res.Names()))

	// ---- Events / World ----
	hooks := hook.NewHookCenter()

	// ---- Incident archive (optional) ----
	var arch *archive.Service
	gdb, err := dbadapter.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if gdb != nil {
		if sqlDB, err := gdb.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := model.AutoMigrate(gdb); err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
		arch = archive.New(gdb, logger)
		arch.Register(hooks)
		logger.Info("incident archive enabled", zap.String("mode", cfg.Database.Mode))
	}
	hooks.Register(hook.OnTargetCaught, 100, "log-caught", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		if ev, ok := data.(*world.Event); ok {
			logger.Info("intruder caught", zap.String("room", ev.Room), zap.String("enemy", ev.Name))
		}
		return data, nil
	})
	filters, err := script.LoadFilters(cfg.Plugins.ScriptDir)
	if err != nil {
		return fmt.Errorf("plugins: %w", err)
	}
	if len(filters) > 0 {
		sb := script.NewSandbox(cfg.Plugins.PoolSize, cfg.Plugins.Timeout, logger)
		script.Register(hooks, sb, filters, logger)
	}
	pub := world.NewEventPublisher(c, pubsub, hooks, cfg.Events, logger)

	wm := world.NewWorldManager(ctx, res, world.RoomConfig{
		Tick:    cfg.Game.Tick(),
		Pursuit: cfg.Pursuit,
		Seed:    cfg.Game.Seed,
	}, pub, hooks, logger)
	if err := wm.StartAll(); err != nil {
		return fmt.Errorf("world: %w", err)
	}

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	if cfg.Game.ReportInterval > 0 {
		sched.AddTicker("room-report", cfg.Game.ReportInterval, wm.Report)
	}

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": wm.ActiveRoomCount()})
	})

	api := r.Group("/api")
	apirest.NewRoomHandler(wm, logger).Register(api)
	apirest.NewAdminHandler(wm, hooks, sched, arch, logger).Register(api, cfg.Server.AdminKey)
	api.GET("/rooms/:id/stream", sse.NewHandler(pubsub, wm, 0, logger).ServeSSE)
	r.GET("/ws/rooms/:id", apiws.NewHandler(wm, pubsub, cfg.Security.AllowedOrigins, logger).ServeWS)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		wm.StopAll()
		sched.Stop()
		if perr := pub.Stop(sctx); perr != nil {
			logger.Warn("event publisher did not drain", zap.Error(perr))
		}
		if arch != nil {
			if aerr := arch.Stop(sctx); aerr != nil {
				logger.Warn("incident archive did not drain", zap.Error(aerr))
			}
		}
		return err
	})
	return g.Wait()
}
