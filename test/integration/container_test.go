//go:build integration

package integration

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	superUser     = "testuser"
	superPassword = "testpass"
	databaseName  = "intaketest"
)

// startPostgres runs a throwaway postgres:16-alpine container through the
// Docker CLI and returns its host port and a cleanup function.
func startPostgres(ctx context.Context) (int, func(), error) {
	port, err := getFreePort()
	if err != nil {
		return 0, nil, fmt.Errorf("find free port: %w", err)
	}

	containerName := fmt.Sprintf("intake-integration-test-%d", port)

	// Remove any existing container with the same name
	exec.CommandContext(ctx, "docker", "rm", "-f", containerName).Run()

	cmd := exec.CommandContext(ctx, "docker", "run",
		"--name", containerName,
		"-d",
		"-p", fmt.Sprintf("%d:5432", port),
		"-e", "POSTGRES_USER="+superUser,
		"-e", "POSTGRES_PASSWORD="+superPassword,
		"-e", "POSTGRES_DB="+databaseName,
		"postgres:16-alpine",
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, nil, fmt.Errorf("docker run: %w\noutput: %s", err, string(output))
	}
	containerID := strings.TrimSpace(string(output))

	cleanup := func() {
		exec.Command("docker", "rm", "-f", containerID).Run()
	}

	if err := waitForPostgres(ctx, connString(superUser, superPassword, port), 30*time.Second); err != nil {
		cleanup()
		return 0, nil, fmt.Errorf("wait for postgres: %w", err)
	}

	return port, cleanup, nil
}

func connString(user, password string, port int) string {
	return fmt.Sprintf("postgres://%s:%s@localhost:%d/%s?sslmode=disable", user, password, port, databaseName)
}

// getFreePort returns a free TCP port on localhost.
func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// waitForPostgres waits until postgres accepts connections and responds to queries.
func waitForPostgres(ctx context.Context, connStr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		pool, err := pgxpool.New(connCtx, connStr)
		if err == nil {
			err = pool.Ping(connCtx)
			pool.Close()
			cancel()
			if err == nil {
				return nil
			}
		} else {
			cancel()
		}

		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("postgres not ready after %v", timeout)
}
