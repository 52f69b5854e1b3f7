package database

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// generateTestPassword creates a secure random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a default test password if random generation fails
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupMigrationRunner(t *testing.T) (*MigrationRunner, func()) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	config := Config{
		Host:     host,
		Port:     port.Int(),
		Database: "testdb",
		Username: "testuser",
		Password: testPassword,
		SSLMode:  "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	runner, err := NewMigrationRunner(config.URL(), "../../migrations", logger)
	if err != nil {
		t.Fatalf("Failed to create migration runner: %v", err)
	}

	cleanup := func() {
		runner.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return runner, cleanup
}

func TestMigrationRunner_UpDownReapply(t *testing.T) {
	runner, cleanup := setupMigrationRunner(t)
	defer cleanup()

	if err := runner.Up(); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	version, dirty, err := runner.Version()
	if err != nil {
		t.Fatalf("Failed to read version after up: %v", err)
	}
	if version == 0 || dirty {
		t.Errorf("Expected clean non-zero version, got %d (dirty=%v)", version, dirty)
	}

	// Up on an already migrated database is a no-op
	if err := runner.Up(); err != nil {
		t.Fatalf("Expected repeated up to succeed: %v", err)
	}

	if err := runner.Down(); err != nil {
		t.Fatalf("Failed to roll back migration: %v", err)
	}

	if err := runner.Up(); err != nil {
		t.Fatalf("Failed to reapply migrations after rollback: %v", err)
	}

	version, dirty, err = runner.Version()
	if err != nil {
		t.Fatalf("Failed to read version after reapply: %v", err)
	}
	if version == 0 || dirty {
		t.Errorf("Expected clean non-zero version after reapply, got %d (dirty=%v)", version, dirty)
	}
}
