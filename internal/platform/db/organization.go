package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	OrganizationIDKey contextKey = "organization_id"
	DBConnKey         contextKey = "db_conn"
	DBTxKey           contextKey = "db_tx"
)

// OrganizationHeader lets service-to-service callers pick the organization
// when the token does not carry one.
const OrganizationHeader = "X-Organization-ID"

// OrganizationSetting is the session variable the RLS policies read.
const OrganizationSetting = "app.organization_id"

var schemaPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// OrganizationMiddleware resolves the caller's organization, acquires a
// pooled connection for the request and scopes it to that organization so
// row-level security applies to every statement issued through it. The
// setting is cleared before the connection goes back to the pool.
func OrganizationMiddleware(pool *pgxpool.Pool, schema string, defaultOrg uuid.UUID) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			orgID, err := extractOrganizationID(c, defaultOrg)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid organization identifier")
			}
			if orgID == uuid.Nil {
				return echo.NewHTTPError(http.StatusBadRequest, "organization is required")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer releaseScoped(conn)

			if err := scopeConn(ctx, conn, schema, orgID); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "organization resolution failed")
			}

			ctx = WithOrganization(ctx, orgID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("organization_id", orgID.String())

			return next(c)
		}
	}
}

func scopeConn(ctx context.Context, conn *pgxpool.Conn, schema string, orgID uuid.UUID) error {
	searchPath := pgx.Identifier{schema}.Sanitize() + ", public"
	_, err := conn.Exec(ctx,
		"SELECT set_config('search_path', $1, false), set_config($2, $3, false)",
		searchPath, OrganizationSetting, orgID.String())
	return err
}

// releaseScoped clears the organization setting so the next borrower of the
// connection starts unscoped. A connection that cannot be reset is closed
// instead of being returned to the pool.
func releaseScoped(conn *pgxpool.Conn) {
	ctx := context.Background()
	if _, err := conn.Exec(ctx, "SELECT set_config($1, '', false)", OrganizationSetting); err != nil {
		_ = conn.Conn().Close(ctx)
	}
	conn.Release()
}

func extractOrganizationID(c echo.Context, defaultOrg uuid.UUID) (uuid.UUID, error) {
	// 1. Check JWT claim (set by auth middleware)
	if oid, ok := c.Get("jwt_organization_id").(string); ok && oid != "" {
		return uuid.Parse(oid)
	}

	// 2. Check X-Organization-ID header
	if oid := c.Request().Header.Get(OrganizationHeader); oid != "" {
		return uuid.Parse(oid)
	}

	// 3. Check query parameter
	if oid := c.QueryParam("organization_id"); oid != "" {
		return uuid.Parse(oid)
	}

	return defaultOrg, nil
}

// WithOrganization stores the organization ID in ctx.
func WithOrganization(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, OrganizationIDKey, orgID)
}

// OrganizationFromContext retrieves the organization ID from context.
func OrganizationFromContext(ctx context.Context) uuid.UUID {
	oid, _ := ctx.Value(OrganizationIDKey).(uuid.UUID)
	return oid
}

// ConnFromContext retrieves the organization-scoped connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// CreateSchema creates the application schema and applies all migrations to
// it. If migrationsDir is empty, migrations are skipped.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool, schema string, migrationsDir string) error {
	if !schemaPattern.MatchString(schema) {
		return fmt.Errorf("invalid schema name: %s", schema)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize())
	if err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrationsDir != "" {
		migrator := NewMigrator(pool, migrationsDir)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}
