package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/evn/shiftbot/config"
	"github.com/evn/shiftbot/db"
	"github.com/evn/shiftbot/internal/gateway"
	adminHandlers "github.com/evn/shiftbot/internal/handlers/admin"
	"github.com/evn/shiftbot/internal/interaction"
	"github.com/evn/shiftbot/internal/metrics"
	"github.com/evn/shiftbot/internal/repositories"
	"github.com/evn/shiftbot/internal/routes"
	authService "github.com/evn/shiftbot/internal/services/auth"
	"github.com/evn/shiftbot/internal/services/duty"
	"github.com/evn/shiftbot/internal/services/events"
	"github.com/evn/shiftbot/internal/services/export"
	"github.com/evn/shiftbot/internal/services/leaderboard"
	"github.com/evn/shiftbot/internal/services/shift"
	"github.com/evn/shiftbot/internal/services/users"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.InitDB(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer database.Close()

	dialect := repositories.Postgres
	if cfg.DatabaseDriver == "sqlite" {
		dialect = repositories.SQLite
	}
	repo := repositories.NewShiftRepository(database, dialect)

	m := metrics.New()
	hub := gateway.NewHub(logger)
	publishers := events.Fanout{hub, m}

	var cache leaderboard.Cache
	var tracker *duty.Tracker
	if redisClient := config.NewRedisClient(cfg); redisClient != nil {
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, cache and on-duty set degraded", zap.Error(err))
		}
		redisCache := leaderboard.NewRedisCache(redisClient, logger)
		tracker = duty.NewTracker(redisClient, logger)
		cache = redisCache
		publishers = append(publishers, redisCache, tracker)
	} else {
		memCache := leaderboard.NewMemoryCache()
		cache = memCache
		publishers = append(publishers, memCache)
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer kafkaPublisher.Close()
		publishers = append(publishers, kafkaPublisher)
	}

	shifts := shift.NewService(repo, publishers, logger)
	board := leaderboard.NewService(repo, cache, logger)

	if tracker != nil {
		if err := syncOnDuty(ctx, shifts, tracker); err != nil {
			logger.Warn("failed to sync on-duty set", zap.Error(err))
		}
	}

	var ctrl *interaction.Controller
	bridge := gateway.NewBridge(gateway.HandlerFunc(
		func(ctx context.Context, actor interaction.Actor, action interaction.Action, selection string) interaction.Reply {
			return ctrl.HandleAction(ctx, actor, action, selection)
		},
	), cfg.GatewayToken, logger)
	if cfg.GatewayToken == "" {
		logger.Warn("GATEWAY_TOKEN is empty, the platform bridge cannot connect")
	}

	opts := []interaction.Option{
		interaction.WithStatus(bridge),
		interaction.WithRecorder(m),
	}
	if tracker != nil {
		opts = append(opts, interaction.WithDutyCounter(tracker))
	}
	ctrl = interaction.NewController(
		shifts,
		users.NewResolver(repo, logger),
		board,
		interaction.RolePolicy{ShiftRole: cfg.ShiftRole, ManagementRole: cfg.ManagementRole},
		cfg.Departments,
		logger,
		opts...,
	)

	var sheets adminHandlers.SheetPublisher
	if cfg.GoogleCredentialsFile != "" && cfg.LeaderboardSheetID != "" {
		p, err := export.NewSheetsPublisher(ctx, cfg.GoogleCredentialsFile, cfg.LeaderboardSheetID)
		if err != nil {
			logger.Warn("google sheets export disabled", zap.Error(err))
		} else {
			sheets = p
		}
	}

	router := routes.Setup(routes.Dependencies{
		JwtSecret:    cfg.JwtSecret,
		PasswordHash: cfg.ManagementPasswordHash,
		Controller:   ctrl,
		Shifts:       shifts,
		JWT:          authService.NewJWTService(cfg.JwtSecret),
		Sheets:       sheets,
		Metrics:      m,
		Ping:         database.PingContext,
		Gateway:      bridge,
		Feed:         hub,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("driver", cfg.DatabaseDriver),
			zap.Strings("departments", cfg.Departments),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		bridge.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func syncOnDuty(ctx context.Context, shifts *shift.Service, tracker *duty.Tracker) error {
	active, err := shifts.ListActive(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, len(active))
	for i, a := range active {
		ids[i] = a.ExternalID
	}
	return tracker.Sync(ctx, ids)
}
