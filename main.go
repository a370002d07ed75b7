package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"letter-service/internal/clock"
	"letter-service/internal/config"
	"letter-service/internal/db"
	"letter-service/internal/events"
	"letter-service/internal/handlers"
	"letter-service/internal/lifecycle"
	"letter-service/internal/middleware"
	"letter-service/internal/observability"
	"letter-service/internal/rabbitmq"
	"letter-service/internal/repositories"
	"letter-service/internal/services"
)

const serviceName = "letter-service"

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogger(cfg.Log.Level)

	database, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer shutdownTracing(context.Background())

	clk := clock.System()
	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	emitter := events.NewEmitter(publisher, serviceName, clk)

	letterRepo := repositories.NewLetterRepo(database)
	inviteRepo := repositories.NewInviteRepo(database)
	connectionRepo := repositories.NewConnectionRepo(database)

	letterService := services.NewLetterService(letterRepo, inviteRepo, connectionRepo, clk, emitter, services.LetterConfig{
		MaxRevealDelaySeconds:     cfg.Letters.MaxRevealDelaySeconds,
		DefaultRevealDelaySeconds: cfg.Letters.DefaultRevealDelaySeconds,
	})
	socialService := services.NewSocialService(connectionRepo, clk, emitter, services.SocialConfig{
		DailyRequestCap: cfg.Social.DailyRequestCap,
		DeclineCooldown: cfg.Social.DeclineCooldown,
	})

	unlockReconciler := lifecycle.NewUnlockReconciler(letterRepo, clk, emitter, lifecycle.ReconcilerConfig{
		Interval:    cfg.Reconciler.UnlockInterval,
		BatchSize:   cfg.Reconciler.BatchSize,
		TickTimeout: cfg.Reconciler.TickTimeout,
	})
	revealReconciler := lifecycle.NewRevealReconciler(letterRepo, clk, emitter, lifecycle.ReconcilerConfig{
		Interval:    cfg.Reconciler.RevealInterval,
		BatchSize:   cfg.Reconciler.BatchSize,
		TickTimeout: cfg.Reconciler.TickTimeout,
	})
	go unlockReconciler.Run(ctx)
	go revealReconciler.Run(ctx)

	letterHandler := handlers.NewLetterHandler(letterService)
	socialHandler := handlers.NewSocialHandler(socialService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", handlers.Healthz(database))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AuthMiddleware(cfg.JWT.Secret)

	router.POST("/letters", auth, letterHandler.CreateLetter)
	router.GET("/letters", auth, letterHandler.ListLetters)
	router.GET("/letters/:letter_id", auth, letterHandler.GetLetter)
	router.POST("/letters/:letter_id/open", auth, letterHandler.OpenLetter)
	router.DELETE("/letters/:letter_id", auth, letterHandler.WithdrawLetter)
	router.POST("/letters/:letter_id/invite", auth, letterHandler.CreateInvite)
	router.POST("/invites/claim", auth, letterHandler.ClaimInvite)

	router.POST("/connections/requests", auth, socialHandler.RequestConnection)
	router.POST("/connections/requests/:request_id/respond", auth, socialHandler.RespondToRequest)
	router.GET("/connections/requests", auth, socialHandler.ListRequests)
	router.GET("/connections", auth, socialHandler.ListConnections)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
