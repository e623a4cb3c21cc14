package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/saudeflow/agendabot/internal/api/router"
	appconfig "github.com/saudeflow/agendabot/internal/config"
	"github.com/saudeflow/agendabot/internal/conversation"
	"github.com/saudeflow/agendabot/internal/http/handlers"
	"github.com/saudeflow/agendabot/internal/llm"
	"github.com/saudeflow/agendabot/internal/messaging"
	"github.com/saudeflow/agendabot/internal/observability/metrics"
	"github.com/saudeflow/agendabot/internal/oni"
	"github.com/saudeflow/agendabot/internal/session"
	"github.com/saudeflow/agendabot/pkg/logging"
)

func main() {
	// Local development convenience; in production the environment is set
	// by the platform.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting agendabot API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Redis-backed sessions.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	cancelPing()
	sessions := session.NewStore(redisClient, cfg.SessionTTL)

	// Metrics registry.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	convMetrics := metrics.NewConversationMetrics(registry)
	outMetrics := metrics.NewOutboundMetrics(registry)

	// External capabilities.
	backend, err := oni.New(oni.Config{
		BaseURL: cfg.OniBaseURL,
		Timeout: cfg.OniTimeout,
		ConvANS: cfg.OniConvANS,
		PlanID:  cfg.OniPlanID,
		SuperID: cfg.OniSuperID,
	})
	if err != nil {
		logger.Error("oni client init", "error", err)
		os.Exit(1)
	}

	planner, err := llm.NewOpenAIPlanner(llm.OpenAIConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		Temperature: float32(cfg.OpenAITemperature),
		MaxTokens:   cfg.OpenAIMaxTokens,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("planner init", "error", err)
		os.Exit(1)
	}

	sender, err := messaging.NewSender(messaging.Config{
		SendURL:     cfg.WhatsAppSendURL,
		MaxAttempts: cfg.OutboundMaxAttempts,
		BackoffStep: cfg.OutboundBackoffStep,
		Metrics:     outMetrics,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("sender init", "error", err)
		os.Exit(1)
	}

	engine := conversation.NewEngine(conversation.EngineConfig{
		Sessions: sessions,
		Locks:    session.NewLocks(),
		Backend:  backend,
		Planner:  planner,
		Outbound: sender,
		Metrics:  convMetrics,
		Logger:   logger,
		MaxHops:  cfg.MaxDispatchHops,
		Defaults: conversation.Defaults{
			MunicipalityID:       cfg.DefaultMunicipalityID,
			MunicipalityName:     cfg.DefaultMunicipalityName,
			MunicipalityUF:       cfg.DefaultMunicipalityUF,
			ConsultationProcCode: cfg.ConsultationProcCode,
		},
	})

	r := router.New(&router.Config{
		Logger:             logger,
		Webhook:            handlers.NewWebhookHandler(engine, logger),
		Dashboard:          handlers.NewDashboardHandler(sessions, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminJWTSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins: splitCSV(cfg.CORSAllowedOriginsCS),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := redisClient.Close(); err != nil {
		logger.Error("redis close", "error", err)
	}

	logger.Info("server stopped")
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
