package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
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

	"github.com/ehr/intake/internal/config"
	"github.com/ehr/intake/internal/domain/clinical"
	"github.com/ehr/intake/internal/domain/demographics"
	"github.com/ehr/intake/internal/domain/insurance"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/domain/medications"
	"github.com/ehr/intake/internal/domain/providers"
	"github.com/ehr/intake/internal/domain/referrals"
	"github.com/ehr/intake/internal/platform/auth"
	"github.com/ehr/intake/internal/platform/db"
	"github.com/ehr/intake/internal/platform/draftstore"
	"github.com/ehr/intake/internal/platform/events"
	"github.com/ehr/intake/internal/platform/hipaa"
	"github.com/ehr/intake/internal/platform/logging"
	"github.com/ehr/intake/internal/platform/middleware"
	"github.com/ehr/intake/internal/platform/query"
	"github.com/ehr/intake/internal/validation"
	"github.com/ehr/intake/internal/web"
	"github.com/ehr/intake/migrations"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "intake-server",
		Short:         "Behavioral health patient intake server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(schemaCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the intake API and wizard",
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
			return withMigrator(cmd, func(ctx context.Context, pool *pgxpool.Pool, m *db.Migrator, schema string) error {
				fmt.Printf("Running migrations on schema: %s\n", schema)
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	addMigrationFlags(upCmd)
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, pool *pgxpool.Pool, m *db.Migrator, schema string) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(cmd.OutOrStdout(), schema, statuses)
				return nil
			})
		},
	}
	addMigrationFlags(statusCmd)
	cmd.AddCommand(statusCmd)

	// migrate down
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recently applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, pool *pgxpool.Pool, m *db.Migrator, schema string) error {
				rolledBack, err := m.Down(ctx, schema)
				if err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				if rolledBack == 0 {
					fmt.Println("Nothing to roll back.")
					return nil
				}
				fmt.Printf("Rolled back migration %d on schema: %s\n", rolledBack, schema)
				return nil
			})
		},
	}
	addMigrationFlags(downCmd)
	cmd.AddCommand(downCmd)

	return cmd
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the application schema",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create the schema and apply all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, pool *pgxpool.Pool, m *db.Migrator, schema string) error {
				fmt.Printf("Creating schema: %s\n", schema)
				if err := db.CreateSchema(ctx, pool, schema, ""); err != nil {
					return err
				}
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("run migrations for %s: %w", schema, err)
				}
				fmt.Printf("Schema ready, %d migration(s) applied.\n", count)
				return nil
			})
		},
	}
	addMigrationFlags(createCmd)
	cmd.AddCommand(createCmd)

	return cmd
}

func addMigrationFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	cmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
}

// withMigrator loads configuration, opens a short-lived pool and hands fn a
// migrator over either the embedded migrations or --dir.
func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, pool *pgxpool.Pool, m *db.Migrator, schema string) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	schema, dir := migrationTarget(cmd, cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, pool, newMigrator(pool, dir), schema)
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
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

func migrationTarget(cmd *cobra.Command, cfg *config.Config) (schema, dir string) {
	schema, _ = cmd.Flags().GetString("schema")
	dir, _ = cmd.Flags().GetString("dir")
	if schema == "" {
		schema = cfg.DBSchema
	}
	return schema, dir
}

func newMigrator(pool *pgxpool.Pool, dir string) *db.Migrator {
	if dir != "" {
		return db.NewMigrator(pool, dir)
	}
	return db.NewMigratorFS(pool, migrationFS())
}

func migrationFS() fs.FS {
	return migrations.FS
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Dev:        cfg.IsDev(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogFileMaxSizeMB,
		MaxBackups: cfg.LogFileMaxBackups,
		MaxAgeDays: cfg.LogFileMaxAgeDays,
	})

	ctx := context.Background()

	// Database
	pool, err := db.NewPool(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		Schema:      cfg.DBSchema,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	// Wizard drafts and token revocations
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer st.close()

	// Domain events
	publisher, brokerCheck, err := openPublisher(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to event broker")
	}
	defer publisher.Close()

	cipher, err := hipaa.NewEncryptionService(cfg.HIPAAEncryptionKey, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise PHI encryption")
	}

	client := query.New(pool, cfg.DBSchema)
	e := newEcho(cfg, logger)

	protected := []echo.MiddlewareFunc{
		authMiddleware(cfg, st.revocations),
		db.OrganizationMiddleware(pool, cfg.DBSchema, cfg.DefaultOrganization()),
		middleware.Audit(logger, hipaa.NewAccessLog(client)),
	}
	apiV1 := e.Group("/api/v1", protected...)
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	wizard := e.Group("/intake", protected...)

	svcs := wire(client, st.drafts, publisher, cipher, logger)
	for _, h := range apiHandlers(svcs) {
		h.RegisterRoutes(apiV1)
	}
	auth.RegisterRevocationRoutes(apiV1, st.revocations)

	webHandler, err := web.NewHandler(svcs, st.drafts, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load wizard templates")
	}
	webHandler.RegisterRoutes(wizard)
	web.RegisterStatic(e)

	e.GET("/health/db", db.HealthHandler(pool, st.check, brokerCheck))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newEcho builds the server with the global middleware chain and the
// liveness endpoint. Organization-scoped routes are added by the caller.
func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", db.OrganizationHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	return e
}

func authMiddleware(cfg *config.Config, revocations auth.Revocations) echo.MiddlewareFunc {
	if cfg.ResolvedAuthMode() == "development" {
		return auth.DevAuthMiddleware([]byte(cfg.AuthSigningKey))
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:      cfg.AuthIssuer,
		Audience:    cfg.AuthAudience,
		JWKSURL:     cfg.AuthJWKSURL,
		SigningKey:  []byte(cfg.AuthSigningKey),
		Skipper:     auth.AuthSkipper,
		Revocations: revocations,
	})
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

// stores are the Redis-backed pieces of request state. Without REDIS_URL
// they live in process memory.
type stores struct {
	drafts      draftstore.Store
	revocations auth.Revocations
	check       db.Check
	close       func()
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL is not set, wizard drafts and token revocations are kept in memory")
		return &stores{
			drafts:      draftstore.NewMemoryStore(cfg.DraftTTL),
			revocations: auth.NewMemoryRevocations(),
			close:       func() {},
		}, nil
	}
	rdb, err := draftstore.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	drafts := draftstore.NewRedisStore(rdb, cfg.DraftTTL)
	return &stores{
		drafts:      drafts,
		revocations: auth.NewRedisRevocations(rdb),
		check:       db.Check{Name: "redis", Ping: drafts.Ping},
		close: func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis client")
			}
		},
	}, nil
}

// openPublisher connects to RabbitMQ when RABBITMQ_URL is set and otherwise
// logs events locally.
func openPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, db.Check, error) {
	if cfg.RabbitMQURL == "" {
		logger.Warn().Msg("RABBITMQ_URL is not set, intake events are only logged")
		return events.NopPublisher{Logger: logger}, db.Check{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.EventsExchange, logger)
	if err != nil {
		return nil, db.Check{}, err
	}
	return p, db.Check{Name: "rabbitmq", Ping: p.Ping}, nil
}

// wire builds the repositories and services of every wizard step on top of
// one query client.
func wire(client *query.Client, drafts draftstore.Store, publisher events.Publisher, cipher hipaa.FieldCipher, logger zerolog.Logger) web.Services {
	v := validation.New()

	sessions := intake.NewSessionRepoPG(client)
	answers := intake.NewAnswerRepoPG(client)
	tracker := intake.NewTracker(sessions, publisher, logger)

	return web.Services{
		Sessions:     intake.NewService(sessions, drafts, publisher, logger),
		Demographics: demographics.NewService(demographics.NewRepoPG(client, sessions, answers, cipher), v, tracker),
		Insurance:    insurance.NewService(insurance.NewRepoPG(client, sessions, cipher), v, tracker),
		Providers:    providers.NewService(providers.NewRepoPG(client, sessions, answers), v, tracker),
		Medications:  medications.NewService(medications.NewRepoPG(client, sessions, answers), v, tracker),
		Referrals:    referrals.NewService(referrals.NewRepoPG(client, sessions, answers), v, tracker),
		Clinical:     clinical.NewService(clinical.NewRepoPG(client, sessions), v, tracker),
	}
}

type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

func apiHandlers(s web.Services) []routeRegistrar {
	return []routeRegistrar{
		intake.NewHandler(s.Sessions),
		demographics.NewHandler(s.Demographics),
		insurance.NewHandler(s.Insurance),
		providers.NewHandler(s.Providers),
		medications.NewHandler(s.Medications),
		referrals.NewHandler(s.Referrals),
		clinical.NewHandler(s.Clinical),
	}
}
