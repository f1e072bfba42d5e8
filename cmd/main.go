package main

import (
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Agroly/store/internal/api"
	"github.com/Agroly/store/internal/cart"
	"github.com/Agroly/store/internal/catalog"
	"github.com/Agroly/store/internal/commerce"
	"github.com/Agroly/store/internal/config"
	"github.com/Agroly/store/internal/localstate"
	"github.com/Agroly/store/internal/metrics"
	"github.com/Agroly/store/internal/order"
	"github.com/Agroly/store/internal/session"
)

func main() {
	cfg := config.Load()

	state, err := localstate.NewPebbleStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open local state at %s: %v", cfg.DataDir, err)
	}
	defer state.Close()

	client := commerce.NewClient(cfg.CommerceAPIURL)
	reg := metrics.NewRegistry()

	var backend catalog.Backend = catalog.NewMemoryBackend()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		backend = catalog.NewRedisBackend(rdb)
	}
	cache := catalog.NewCache(client, client.BaseURL(), backend, reg)

	cartStore := cart.NewStore(state)
	cartStore.Restore()

	sess := session.New(state, client)
	sess.Restore()

	var writer order.EventWriter
	if len(cfg.KafkaBrokers) > 0 {
		writer = config.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	orders := order.NewService(cartStore, sess, cache, client, writer, reg)

	handler := api.NewHandler(cache, cartStore, sess, orders, reg)

	e := echo.New()

	limiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(20),
				Burst:     40,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(context echo.Context) (string, error) {
			return context.Request().RemoteAddr, nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
	}

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiterWithConfig(limiterConfig))

	handler.Routes(e)

	e.GET("/metrics", echo.WrapHandler(reg.Handler()))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{
			"status":  "ok",
			"service": "storefront-gateway",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	e.Logger.Fatal(e.Start(cfg.ListenAddr))
}
