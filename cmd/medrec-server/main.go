package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/medrec/medrec/internal/config"
	"github.com/medrec/medrec/internal/domain/checks"
	"github.com/medrec/medrec/internal/domain/consultation"
	"github.com/medrec/medrec/internal/domain/exam"
	"github.com/medrec/medrec/internal/domain/identity"
	"github.com/medrec/medrec/internal/domain/medication"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/events"
	"github.com/medrec/medrec/internal/platform/metrics"
	"github.com/medrec/medrec/internal/platform/middleware"
	"github.com/medrec/medrec/internal/platform/validation"
	"github.com/medrec/medrec/internal/platform/websocket"
	"github.com/medrec/medrec/pkg/rut"
)

const version = "0.1.0"

const shutdownTimeout = 10 * time.Second

// kafkaQueueSize bounds the events waiting for the broker. Beyond it new
// events are dropped and logged.
const kafkaQueueSize = 1024

// errInvalidRUT makes `rut check` exit 1. The per-input lines already say why,
// so main does not print it again.
var errInvalidRUT = errors.New("one or more RUTs are invalid")

func main() {
	rootCmd := &cobra.Command{
		Use:           "medrec-server",
		Short:         "Medical records API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rutCmd())

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errInvalidRUT) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the medical records API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrator(cmd *cobra.Command) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        2,
		ApplicationName: "medrec-migrate",
	})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, dir), pool.Close, nil
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func rutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rut",
		Short: "Validate and format Chilean RUT numbers offline",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <rut>...",
		Short: "Validate each RUT and print the canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !checkRUTs(cmd.OutOrStdout(), args) {
				return errInvalidRUT
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "format <rut>...",
		Short: "Print each RUT in canonical form without validating it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range args {
				fmt.Fprintln(cmd.OutOrStdout(), rut.Format(a))
			}
			return nil
		},
	})

	return cmd
}

// checkRUTs prints one line per input and reports whether all were valid.
func checkRUTs(w io.Writer, inputs []string) bool {
	allValid := true
	for _, in := range inputs {
		res := rut.Validate(in)
		if res.Valid {
			fmt.Fprintf(w, "%-16s valid    %s\n", in, res.Formatted)
			continue
		}
		allValid = false
		fmt.Fprintf(w, "%-16s invalid  %s\n", in, res.Err)
	}
	return allValid
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	return rl
}

// authMiddleware verifies bearer tokens. In development unauthenticated
// requests run as an admin, but a token that is sent is still verified when a
// verifier is configured.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
	if !cfg.IsDev() {
		return auth.JWTMiddleware(jwtCfg)
	}
	if cfg.AuthSigningKey == "" && cfg.AuthIssuer == "" && cfg.AuthJWKSURL == "" {
		return auth.DevAuthMiddleware(auth.AuthSkipper)
	}
	return auth.DevAuthMiddleware(auth.AuthSkipper, auth.JWTMiddleware(jwtCfg))
}

// publishers collects the event sinks. The returned closer flushes queued
// Kafka events and releases the producer when one was created.
func publishers(cfg *config.Config, hub *websocket.Hub, m *metrics.Metrics, logger zerolog.Logger) (events.Fanout, func() error, error) {
	fanout := events.Fanout{hub, m}
	if !cfg.KafkaEnabled() {
		return fanout, func() error { return nil }, nil
	}
	k, err := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to kafka: %w", err)
	}
	logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing record events to kafka")
	// Broker round trips happen off the request path.
	async := events.NewAsync(k, kafkaQueueSize, logger)
	return append(fanout, async), func() error {
		async.Close()
		return k.Close()
	}, nil
}

// newServer builds the echo instance with every middleware and route.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, m *metrics.Metrics, emitter *events.Emitter, hub *websocket.Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(m.Middleware())
	e.Use(authMiddleware(cfg))
	e.Use(middleware.Audit(logger))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", m.Handler())

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Domain services
	identitySvc := identity.NewService(identity.NewPatientRepo(pool), identity.NewDoctorRepo(pool), emitter)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)

	consultationSvc := consultation.NewService(consultation.NewRepo(pool), emitter)
	consultation.NewHandler(consultationSvc).RegisterRoutes(apiV1)

	examSvc := exam.NewService(exam.NewRepo(pool), emitter)
	exam.NewHandler(examSvc).RegisterRoutes(apiV1)

	medSvc := medication.NewService(medication.NewMedicationRepo(pool), medication.NewPrescriptionRepo(pool), pool, emitter)
	medication.NewHandler(medSvc).RegisterRoutes(apiV1)

	checks.NewHandler(m).RegisterRoutes(apiV1)

	// Live record events
	websocket.NewWebSocketHandler(hub, cfg.CORSOrigins).
		RegisterRoutes(e.Group(""), auth.RequireRole(auth.ReadRoles...))

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnIdleTime: 5 * time.Minute,
		ApplicationName: "medrec-server",
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	m := metrics.New()
	m.ObservePool(pool)

	hub := websocket.NewHub(logger)
	defer hub.Close()

	fanout, closeKafka, err := publishers(cfg, hub, m, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set up event publishers")
		return err
	}
	defer func() {
		if err := closeKafka(); err != nil {
			logger.Warn().Err(err).Msg("kafka producer close failed")
		}
	}()
	emitter := events.NewEmitter(fanout, logger)

	e := newServer(cfg, logger, pool, m, emitter, hub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
