package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/rs/zerolog"
	"github.com/uma-arai/sbcntr-pickup/internal/api"
	"github.com/uma-arai/sbcntr-pickup/internal/api/handler"
	m "github.com/uma-arai/sbcntr-pickup/internal/api/middleware"
	"github.com/uma-arai/sbcntr-pickup/internal/api/response"
	"github.com/uma-arai/sbcntr-pickup/internal/api/router"
	"github.com/uma-arai/sbcntr-pickup/internal/cache"
	"github.com/uma-arai/sbcntr-pickup/internal/common/config"
	"github.com/uma-arai/sbcntr-pickup/internal/common/database"
	"github.com/uma-arai/sbcntr-pickup/internal/common/logger"
	"github.com/uma-arai/sbcntr-pickup/internal/common/utils"
	"github.com/uma-arai/sbcntr-pickup/internal/line"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
	"github.com/uma-arai/sbcntr-pickup/internal/service/formsettings"
	"github.com/uma-arai/sbcntr-pickup/internal/service/notification"
	"github.com/uma-arai/sbcntr-pickup/internal/service/preset"
	"github.com/uma-arai/sbcntr-pickup/internal/service/productimport"
	"github.com/uma-arai/sbcntr-pickup/internal/service/reservation"
	"github.com/uma-arai/sbcntr-pickup/internal/service/stats"
)

const serviceName = "sbcntr-pickup-api"

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}
	logger := logger.New(cfg.Env, serviceName)

	if cfg.EnableTracing {
		if err := xray.Configure(xray.Config{
			DaemonAddr:     "127.0.0.1:2000",
			ServiceVersion: "1.0.0",
		}); err != nil {
			logger.Warn().Err(err).Msg("failed to configure X-Ray, using defaults")
		}
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
	}

	conn, err := database.Open(cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	db := repository.NewDB(conn)
	defer db.Close()

	configCache := newConfigCache(cfg, logger)

	var lineOpts []line.ClientOption
	if cfg.EnableTracing {
		lineOpts = append(lineOpts, line.WithTracing())
	}
	lineClient := line.NewClient(cfg.Line.APIBaseURL, cfg.Line.ChannelAccessToken, cfg.Line.Timeout, lineOpts...)

	presets := repository.NewPresetRepository(db)
	products := repository.NewProductRepository(db)
	forms := repository.NewFormSettingsRepository(db)
	reservations := repository.NewReservationRepository(db)

	templater := notification.NewTemplater(cfg.PublicBaseURL)
	dispatcher := notification.NewDispatcher(
		lineClient,
		repository.NewNotificationLogRepository(db),
		templater,
		notification.DefaultPolicy(cfg.Notify.MaxAttempts, cfg.Notify.Backoff),
		logger,
	)

	presetService := preset.NewService(preset.Repositories{
		Tx:             db,
		Presets:        presets,
		Products:       products,
		PresetProducts: repository.NewPresetProductRepository(db),
		FormSettings:   forms,
		PickupWindows:  repository.NewPickupWindowRepository(db),
	}, configCache, utils.JST, logger)
	reservationService := reservation.NewService(presetService, reservations, dispatcher, templater, utils.JST, logger)

	rs := response.New(cfg.IsDevelopment())
	server := &api.Server{
		Responder:            rs,
		HealthHandler:        handler.NewHealthHandler(db, rs),
		PresetHandler:        handler.NewPresetHandler(presetService, rs),
		ReservationHandler:   handler.NewReservationHandler(reservationService, rs),
		ProductImportHandler: handler.NewProductImportHandler(productimport.NewService(db, products, logger), rs),
		FormSettingsHandler:  handler.NewFormSettingsHandler(formsettings.NewService(presets, forms, configCache, logger), rs),
		AdminHandler:         handler.NewAdminHandler(stats.NewService(presets, products, reservations, configCache, logger), rs),
		WebhookHandler:       handler.NewWebhookHandler(cfg.Line.ChannelSecret, rs),
	}

	opts := router.Options{ServiceName: serviceName, EnableTracing: cfg.EnableTracing}
	if cfg.RateLimit.Capacity > 0 {
		opts.RateLimit = m.NewTokenBucket(cfg.RateLimit.Capacity, cfg.RateLimit.PerSecond)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.SetupRouter(server, opts, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server started")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server stopped unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

// newConfigCache はREDIS_ADDRが設定されている場合のみRedisのキャッシュを使います
func newConfigCache(cfg *config.Config, logger zerolog.Logger) cache.ConfigCache {
	if cfg.Redis.Addr == "" {
		return cache.NoopConfigCache{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis is unavailable, config cache disabled")
		return cache.NoopConfigCache{}
	}
	return cache.NewRedisConfigCache(client, serviceName, cfg.Redis.ConfigTTL, logger)
}
