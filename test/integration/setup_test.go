//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/domain/clinical"
	"github.com/ehr/intake/internal/domain/demographics"
	"github.com/ehr/intake/internal/domain/insurance"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/domain/medications"
	"github.com/ehr/intake/internal/domain/providers"
	"github.com/ehr/intake/internal/domain/referrals"
	"github.com/ehr/intake/internal/platform/db"
	"github.com/ehr/intake/internal/platform/draftstore"
	"github.com/ehr/intake/internal/platform/events"
	"github.com/ehr/intake/internal/platform/hipaa"
	"github.com/ehr/intake/internal/platform/query"
	"github.com/ehr/intake/internal/validation"
	"github.com/ehr/intake/migrations"
)

const (
	schemaName  = "intake"
	appUser     = "intake_app"
	appPassword = "intake_app"
	// 32 bytes of hex so PHI columns are sealed in these tests.
	testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

// testDB holds the shared database infrastructure. Admin runs as the
// container superuser; App connects as a role that RLS applies to.
type testDB struct {
	Admin *pgxpool.Pool
	App   *pgxpool.Pool
}

var globalDB *testDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setup(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up postgres: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setup(ctx context.Context) (*testDB, func(), error) {
	port, stop, err := startPostgres(ctx)
	if err != nil {
		return nil, nil, err
	}

	admin, err := db.NewPool(ctx, db.PoolConfig{DatabaseURL: connString(superUser, superPassword, port)})
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("admin pool: %w", err)
	}

	if err := db.CreateSchema(ctx, admin, schemaName, ""); err != nil {
		admin.Close()
		stop()
		return nil, nil, err
	}
	if _, err := db.NewMigratorFS(admin, migrations.FS).Up(ctx, schemaName); err != nil {
		admin.Close()
		stop()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if err := createAppRole(ctx, admin); err != nil {
		admin.Close()
		stop()
		return nil, nil, err
	}

	app, err := db.NewPool(ctx, db.PoolConfig{
		DatabaseURL: connString(appUser, appPassword, port),
		Schema:      schemaName,
	})
	if err != nil {
		admin.Close()
		stop()
		return nil, nil, fmt.Errorf("app pool: %w", err)
	}

	return &testDB{Admin: admin, App: app}, func() {
		app.Close()
		admin.Close()
		stop()
	}, nil
}

// createAppRole adds a login role without BYPASSRLS, matching how the
// server connects in production.
func createAppRole(ctx context.Context, admin *pgxpool.Pool) error {
	schema := pgx.Identifier{schemaName}.Sanitize()
	stmts := []string{
		fmt.Sprintf("CREATE ROLE %s LOGIN PASSWORD '%s' NOSUPERUSER NOBYPASSRLS", appUser, appPassword),
		fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO %s", schema, appUser),
		fmt.Sprintf("GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA %s TO %s", schema, appUser),
		fmt.Sprintf("GRANT EXECUTE ON ALL FUNCTIONS IN SCHEMA %s TO %s", schema, appUser),
	}
	for _, stmt := range stmts {
		if _, err := admin.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("app role: %w", err)
		}
	}
	return nil
}

// scoped returns a context carrying an app connection scoped to orgID, the
// way the organization middleware prepares a request.
func scoped(t *testing.T, orgID uuid.UUID) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	conn, err := globalDB.App.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := conn.Exec(ctx, "SELECT set_config($1, $2, false)", db.OrganizationSetting, orgID.String()); err != nil {
		conn.Release()
		t.Fatalf("scope connection: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), "SELECT set_config($1, '', false)", db.OrganizationSetting)
		conn.Release()
	})

	ctx = db.WithOrganization(ctx, orgID)
	return context.WithValue(ctx, db.DBConnKey, conn)
}

// services is the full step stack over the app pool with an in-memory
// draft store and an event recorder.
type services struct {
	Events       *events.Recorder
	Sessions     *intake.Service
	Demographics *demographics.Service
	Insurance    *insurance.Service
	Providers    *providers.Service
	Medications  *medications.Service
	Referrals    *referrals.Service
	Clinical     *clinical.Service
}

func newServices(t *testing.T) *services {
	t.Helper()
	cipher, err := hipaa.NewEncryptionService(testKey, zerolog.Nop())
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}

	client := query.New(globalDB.App, schemaName)
	v := validation.New()
	rec := events.NewRecorder()
	logger := zerolog.Nop()

	sessions := intake.NewSessionRepoPG(client)
	answers := intake.NewAnswerRepoPG(client)
	tracker := intake.NewTracker(sessions, rec, logger)

	return &services{
		Events:       rec,
		Sessions:     intake.NewService(sessions, draftstore.NewMemoryStore(time.Hour), rec, logger),
		Demographics: demographics.NewService(demographics.NewRepoPG(client, sessions, answers, cipher), v, tracker),
		Insurance:    insurance.NewService(insurance.NewRepoPG(client, sessions, cipher), v, tracker),
		Providers:    providers.NewService(providers.NewRepoPG(client, sessions, answers), v, tracker),
		Medications:  medications.NewService(medications.NewRepoPG(client, sessions, answers), v, tracker),
		Referrals:    referrals.NewService(referrals.NewRepoPG(client, sessions, answers), v, tracker),
		Clinical:     clinical.NewService(clinical.NewRepoPG(client, sessions), v, tracker),
	}
}

// newSession opens a session in orgID and returns its scoped context.
func newSession(t *testing.T, svcs *services, orgID uuid.UUID) (context.Context, uuid.UUID) {
	t.Helper()
	ctx := scoped(t, orgID)
	s, err := svcs.Sessions.CreateSession(ctx, orgID, "integration")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return ctx, s.SessionID
}
