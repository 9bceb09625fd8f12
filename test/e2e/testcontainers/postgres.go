package testcontainers

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresConfig holds configuration for the PostgreSQL test container.
type PostgresConfig struct {
	// User is the PostgreSQL username (default: preservia)
	User string
	// Password is the PostgreSQL password (default: preservia)
	Password string
	// Database is the database name (default: preservia_test)
	Database string
	// ContainerName is the name of the container (optional)
	ContainerName string
}

// PostgresConn describes how to reach a started PostgreSQL container. The
// fields map directly onto store.DBConfig.
type PostgresConn struct {
	Host     string
	User     string
	Password string
	Database string
	Port     int
}

// DSN renders the connection info as a keyword/value connection string.
func (c PostgresConn) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// StartPostgres starts a PostgreSQL container and returns the container and
// its connection info.
func StartPostgres(ctx context.Context, config *PostgresConfig) (testcontainers.Container, PostgresConn, error) {
	if config == nil {
		config = &PostgresConfig{}
	}
	if config.User == "" {
		config.User = "preservia"
	}
	if config.Password == "" {
		config.Password = "preservia"
	}
	if config.Database == "" {
		config.Database = "preservia_test"
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections"),
			),
			Env: map[string]string{
				"POSTGRES_USER":     config.User,
				"POSTGRES_PASSWORD": config.Password,
				"POSTGRES_DB":       config.Database,
			},
			Name: config.ContainerName,
		},
		Started: true,
	})
	if err != nil {
		return nil, PostgresConn{}, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, PostgresConn{}, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, PostgresConn{}, fmt.Errorf("failed to get container port: %w", err)
	}

	conn := PostgresConn{
		Host:     host,
		Port:     port.Int(),
		User:     config.User,
		Password: config.Password,
		Database: config.Database,
	}
	return container, conn, nil
}
