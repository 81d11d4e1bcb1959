//go:build integration

package testinfra

import (
    "context"
    "database/sql"
    "fmt"
    "os/exec"
    "testing"
    "time"

    "github.com/testcontainers/testcontainers-go"
    "github.com/testcontainers/testcontainers-go/wait"

    "github.com/iliyamo/movie-catalog/internal/database"
)

const (
    mysqlImage    = "mysql:8.0"
    mysqlPassword = "test"
    mysqlDatabase = "movies_test"
)

// SkipIfNoDocker skips t when the Docker daemon is not reachable.
func SkipIfNoDocker(t *testing.T) {
    t.Helper()
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if exec.CommandContext(ctx, "docker", "info").Run() != nil {
        t.Skip("Skipping test: Docker not available")
    }
}

// MySQLContainer is a running MySQL 8 server with an empty database.
type MySQLContainer struct {
    testcontainers.Container
    DSN string
}

// NewMySQLContainer starts MySQL and waits until it accepts connections.
func NewMySQLContainer(ctx context.Context) (*MySQLContainer, error) {
    req := testcontainers.ContainerRequest{
        Image:        mysqlImage,
        ExposedPorts: []string{"3306/tcp"},
        Env: map[string]string{
            "MYSQL_ROOT_PASSWORD": mysqlPassword,
            "MYSQL_DATABASE":      mysqlDatabase,
        },
        // The entrypoint starts a temporary server first; the second
        // "ready for connections" is the real one.
        WaitingFor: wait.ForAll(
            wait.ForListeningPort("3306/tcp"),
            wait.ForLog("ready for connections").WithOccurrence(2),
        ).WithDeadline(3 * time.Minute),
    }
    c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
        ContainerRequest: req,
        Started:          true,
    })
    if err != nil {
        return nil, fmt.Errorf("start mysql: %w", err)
    }
    host, err := c.Host(ctx)
    if err != nil {
        _ = c.Terminate(ctx)
        return nil, err
    }
    port, err := c.MappedPort(ctx, "3306/tcp")
    if err != nil {
        _ = c.Terminate(ctx)
        return nil, err
    }
    return &MySQLContainer{
        Container: c,
        DSN:       database.DSN("root", mysqlPassword, host, port.Port(), mysqlDatabase),
    }, nil
}

// NewTestDB starts a container, applies the schema and returns a pool. The
// container is terminated when t finishes.
func NewTestDB(t *testing.T) *sql.DB {
    t.Helper()
    SkipIfNoDocker(t)

    ctx := context.Background()
    c, err := NewMySQLContainer(ctx)
    if err != nil {
        t.Fatal(err)
    }
    t.Cleanup(func() {
        if err := c.Terminate(context.Background()); err != nil {
            t.Logf("Warning: failed to terminate container: %v", err)
        }
    })

    var db *sql.DB
    for i := 0; i < 20; i++ {
        if db, err = database.OpenDSN(c.DSN); err == nil {
            break
        }
        time.Sleep(500 * time.Millisecond)
    }
    if err != nil {
        t.Fatalf("connect mysql: %v", err)
    }
    t.Cleanup(func() { _ = db.Close() })

    if err := database.Migrate(ctx, db); err != nil {
        t.Fatal(err)
    }
    return db
}
