package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/config"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/domain/scheduling"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/auth"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/db"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/events"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/idempotency"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/middleware"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/realtime"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/telemetry"
	"github.com/nareshshah139/Clinic-Management-System-sub003/migrations"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clinic-scheduler",
		Short:         "Clinic appointment scheduling API server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(slotsCmd())
	root.AddCommand(tokenCmd())
	return root
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrationsFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationsFS(dir)), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token with AUTH_SECRET for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, _ := cmd.Flags().GetString("sub")
			roles, _ := cmd.Flags().GetStringSlice("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.IssueToken([]byte(cfg.AuthSecret), cfg.AuthIssuer, sub, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("sub", "cli-user", "Token subject")
	cmd.Flags().StringSlice("role", []string{auth.RoleReceptionist}, "Roles to grant (repeatable)")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	return cmd
}

// app is a wired server plus the resources it must release.
type app struct {
	echo    *echo.Echo
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// Storage
	var (
		appts    scheduling.AppointmentRepository
		hours    scheduling.ClinicHoursRepository
		dbHealth echo.HandlerFunc
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
			MaxConns:       cfg.DBMaxConns,
			MinConns:       cfg.DBMinConns,
			ConnectTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		appts = scheduling.NewAppointmentRepoPG(pool, scheduling.WithRoomTurnover(cfg.BufferMinutes))
		hours = scheduling.NewClinicHoursRepoPG(pool, cfg.ClinicHours())
		dbHealth = db.HealthHandler(pool)
		logger.Info().Msg("connected to database")
	} else {
		appts = scheduling.NewMemoryRepo(scheduling.WithRoomTurnover(cfg.BufferMinutes))
		hours = scheduling.StaticHours(cfg.ClinicHours())
		dbHealth = func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"status": "ok", "storage": "memory"})
		}
		logger.Warn().Msg("DATABASE_URL not set, appointments are kept in memory")
	}

	// Telemetry
	metrics := telemetry.NewProvider(telemetry.Config{
		ServiceVersion: version,
		Environment:    cfg.Env,
		MetricsEnabled: telemetry.BoolPtr(cfg.MetricsEnabled),
	})

	// Events
	var broker events.Publisher = events.NewLogPublisher(logger)
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { amqpPub.Close() })
		broker = amqpPub
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing events to AMQP")
	}
	hub := realtime.NewHub(logger)
	a.closers = append(a.closers, hub.Close)
	metrics.RegisterGauge("realtime_clients", "Connected live schedule feed clients.", func() int64 {
		return int64(hub.ClientCount())
	})
	publisher := events.Multi{broker, hub, metrics}

	// Idempotency
	var idemStore idempotency.Store = idempotency.NewLRUStore(cfg.IdempotencyCacheSize, cfg.IdempotencyTTL)
	if cfg.RedisURL != "" {
		client, err := idempotency.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { client.Close() })
		idemStore = idempotency.NewRedisStore(client, cfg.IdempotencyTTL)
	}

	svc := scheduling.NewService(appts, hours, publisher, scheduling.Config{
		StepMinutes:         cfg.SlotStepMinutes,
		RoomTurnoverMinutes: cfg.BufferMinutes,
		MinAdvanceHours:     cfg.MinRescheduleHours,
		MaxSuggestions:      cfg.MaxSuggestions,
		Location:            loc,
	}, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, idempotency.HeaderKey},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", dbHealth)
	if cfg.MetricsEnabled {
		e.GET("/metrics", metrics.Handler())
	}

	// API group
	apiV1 := e.Group("/api/v1")
	jwtCfg := auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: []byte(cfg.AuthSecret), Skipper: auth.AuthSkipper}
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtCfg))
	}
	rl := middleware.DefaultRateLimitConfig()
	rl.RequestsPerSecond = cfg.RateLimitRPS
	rl.BurstSize = cfg.RateLimitBurst
	apiV1.Use(middleware.RateLimit(rl))
	apiV1.Use(idempotency.Middleware(idemStore, logger))

	scheduling.NewHandler(svc).RegisterRoutes(apiV1)

	realtime.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1,
		auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))

	a.echo = e
	return a, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if cfg.IsDev() {
		logger.Warn().Msg("ENV=development: unauthenticated requests are treated as admin")
	}

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}
	defer a.Close()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := a.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
