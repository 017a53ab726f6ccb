package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/lottery-storefront/internal/config"
	"github.com/iliyamo/lottery-storefront/internal/database"
	"github.com/iliyamo/lottery-storefront/internal/handler"
	"github.com/iliyamo/lottery-storefront/internal/logging"
	"github.com/iliyamo/lottery-storefront/internal/middleware"
	"github.com/iliyamo/lottery-storefront/internal/queue"
	"github.com/iliyamo/lottery-storefront/internal/router"
	"github.com/iliyamo/lottery-storefront/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	holdCfg := config.LoadHoldConfig()
	brokerCfg := config.LoadBrokerConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stores, err := database.OpenStores(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("could not open storage")
	}
	defer stores.Close()

	// Events are delivered from a background goroutine so a slow or
	// unreachable broker never holds up a request.
	var publisher service.EventPublisher = queue.NopPublisher{}
	var asyncPublisher *queue.AsyncPublisher
	if brokerCfg.Enabled {
		asyncPublisher = queue.NewAsyncPublisher(queue.NewAMQPPublisher(brokerCfg.URL, brokerCfg.Queue), brokerCfg.PublishBuffer)
		publisher = asyncPublisher
	}

	engine := service.NewHoldEngine(stores.Holds, holdCfg.Duration, service.WithPublisher(publisher))
	pricing := service.NewPricingService(stores.Pricing, cfg.DefaultTicketPrice)
	auth := service.NewAdminAuth(cfg.AdminPasswordHash, cfg.JWTSecret, time.Duration(cfg.AdminSessionTTLMin)*time.Minute)

	// Redis is optional: without it the cache and the rate limiter pass
	// requests straight through.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	purger := middleware.NewCachePurger(cacheCfg, rdb)
	cache := middleware.NewRedisCache(cacheCfg, rdb)
	purchaseLimiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(config.RateScopePurchase), rdb)
	loginLimiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(config.RateScopeLogin), rdb)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(middleware.RequestLogger())
	router.RegisterRoutes(e)
	router.RegisterStorefront(e, handler.NewStorefrontHandler(engine, pricing), cache, purchaseLimiter)
	router.RegisterAdmin(e, handler.NewAdminHandler(engine, pricing, auth, purger.Purge), cfg.JWTSecret, loginLimiter)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.WithFields(log.Fields{"addr": addr, "env": cfg.Env, "storage": cfg.Storage.Driver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return engine.RunSweeper(ctx, holdCfg.SweepInterval)
	})
	if asyncPublisher != nil {
		g.Go(func() error {
			return asyncPublisher.Run(ctx)
		})
	}
	if brokerCfg.Enabled && brokerCfg.ConsumerStart {
		g.Go(func() error {
			return queue.NewAuditConsumer(brokerCfg.URL, brokerCfg.Queue, brokerCfg.AuditLogPath).Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("server stopped")
}
