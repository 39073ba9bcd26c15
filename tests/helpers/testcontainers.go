// This file is a helper for running tests with testcontainers.
// It is used by the devstack executable and by the integration tests.
// Expects environment variables to be loaded from .env files.
//

package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/estatepress/sitesync/data"
)

// TestContainers holds the backing services for a sitesync instance under
// test: the store of record and the optional redis event bridge.
type TestContainers struct {
	Network        *testcontainers.DockerNetwork
	DBContainer    testcontainers.Container
	RedisContainer testcontainers.Container

	DBHost    string
	DBPort    string
	RedisAddr string
}

func (tc *TestContainers) Terminate(t *testing.T) {
	ctx := context.Background()
	if tc.RedisContainer != nil {
		if err := tc.RedisContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate Redis: %v", err)
		}
	}
	if tc.DBContainer != nil {
		if err := tc.DBContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate MariaDB: %v", err)
		}
	}
	if tc.Network != nil {
		if err := tc.Network.Remove(ctx); err != nil {
			logMessage(t, "Failed to remove network: %v", err)
		}
	}
}

// CreateAllTestContainers starts MariaDB and Redis, initializes the sitesync
// schema, and reports the mapped host addresses.
func CreateAllTestContainers(t *testing.T) (*TestContainers, error) {
	ctx := context.Background()
	testContainers := &TestContainers{}

	// Create a network
	nw, err := network.New(ctx)
	if err != nil {
		exitWithError(t, err, "Failed to create network")
	}
	testContainers.Network = nw
	networkName := nw.Name

	// Create and start the Database container
	dbImage := envOr("DB_IMAGE", "mariadb:11")
	dbNetworkName := envOr("DB_HOST", "mariadb")
	tcpDbPort, err := nat.NewPort("tcp", envOr("DB_PORT", "3306"))
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to create DB port")
	}
	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        dbImage,
			ExposedPorts: []string{string(tcpDbPort)},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": envOr("DB_ROOT_PASSWORD", "root"),
				"MYSQL_DATABASE":      envOr("DB_DATABASE", "sitesync"),
				"MYSQL_USER":          envOr("DB_USER", "sitesync"),
				"MYSQL_PASSWORD":      envOr("DB_PASSWORD", "sitesync"),
			},
			WaitingFor: wait.ForListeningPort(tcpDbPort).WithStartupTimeout(60 * time.Second),
			Networks:   []string{networkName},
			NetworkAliases: map[string][]string{
				networkName: {dbNetworkName},
			},
		},
		Started: true,
	})
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to start Database")
	}
	testContainers.DBContainer = dbContainer

	// Initialize the schema
	dbHost, _ := dbContainer.Host(ctx)
	dbPort, _ := dbContainer.MappedPort(ctx, tcpDbPort)
	if err := performMariaDBInit(t, testContainers, dbHost, dbPort); err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to initialize database")
	}
	testContainers.DBHost = dbHost
	testContainers.DBPort = dbPort.Port()
	logMessage(t, "DB_HOST=%s DB_PORT=%s", dbHost, dbPort.Port())

	// Create and start the Redis container for the sync bridge
	tcpRedisPort, err := nat.NewPort("tcp", "6379")
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to create Redis port")
	}
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        envOr("REDIS_IMAGE", "redis:7-alpine"),
			ExposedPorts: []string{string(tcpRedisPort)},
			WaitingFor:   wait.ForListeningPort(tcpRedisPort).WithStartupTimeout(30 * time.Second),
			Networks:     []string{networkName},
			NetworkAliases: map[string][]string{
				networkName: {"redis"},
			},
		},
		Started: true,
	})
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to start Redis")
	}
	testContainers.RedisContainer = redisContainer

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, tcpRedisPort)
	testContainers.RedisAddr = fmt.Sprintf("%s:%s", redisHost, redisPort.Port())
	logMessage(t, "REDIS_ADDR=%s", testContainers.RedisAddr)

	logMessage(t, "sitesync testcontainers started successfully")
	return testContainers, nil
}

func performMariaDBInit(t *testing.T, testContainers *TestContainers, dbHost string, dbPort nat.Port) error {
	db, err := sql.Open("mysql", fmt.Sprintf("root:%s@tcp(%s:%s)/", envOr("DB_ROOT_PASSWORD", "root"), dbHost, dbPort.Port()))
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to connect to MariaDB for setup")
	}
	defer db.Close()

	// Wait for connection to be really ready
	for i := 0; i < 30; i++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "MariaDB not ready after 30 seconds")
	}

	database := envOr("DB_DATABASE", "sitesync")
	user := envOr("DB_USER", "sitesync")
	password := envOr("DB_PASSWORD", "sitesync")

	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", database, err)
	}
	_, err = db.Exec(fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s'", user, password))
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user, err)
	}
	if err := executeSQL(db, data.InitdbMariaDBTables); err != nil {
		return fmt.Errorf("failed to execute tables init sql: %w", err)
	}
	if err := executeSQL(db, data.InitdbMariaDBPrivileges); err != nil {
		return fmt.Errorf("failed to execute privileges init sql: %w", err)
	}

	return nil
}

func executeSQL(db *sql.DB, sql string) error {
	lines := strings.Split(sql, "\n")

	var ncls []string
	for _, l := range lines {
		ncl := excludeComment(l)
		ncls = append(ncls, ncl)
	}

	l := strings.Join(ncls, "")
	queries := strings.Split(l, ";")
	queries = queries[:len(queries)-1]

	for _, q := range queries {
		_, err := db.Exec(q)
		if err != nil {
			return fmt.Errorf("%s : when executing > %s", err.Error(), q)
		}
	}
	return nil
}

func excludeComment(line string) string {
	d := "\""
	s := "'"
	c := "--"

	var nc string
	ck := line
	mx := len(line) + 1

	for {
		if len(ck) == 0 {
			return nc
		}

		di := strings.Index(ck, d)
		si := strings.Index(ck, s)
		ci := strings.Index(ck, c)

		if di < 0 {
			di = mx
		}
		if si < 0 {
			si = mx
		}
		if ci < 0 {
			ci = mx
		}

		var ei int

		if di < si && di < ci {
			nc += ck[:di+1]
			ck = ck[di+1:]
			ei = strings.Index(ck, d)
		} else if si < di && si < ci {
			nc += ck[:si+1]
			ck = ck[si+1:]
			ei = strings.Index(ck, s)
		} else if ci < di && ci < si {
			return nc + ck[:ci]
		} else {
			return nc + ck
		}

		nc += ck[:ei+1]
		ck = ck[ei+1:]
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func exitWithError(t *testing.T, err error, msg string) {
	if t != nil {
		t.Fatalf(msg+": %v", err)
	} else {
		fmt.Printf(msg+": %v\n", err)
		os.Exit(1)
	}
}

func logMessage(t *testing.T, format string, args ...any) {
	if t != nil {
		t.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}
