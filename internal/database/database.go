// Package database builds the single database handle used by a run.
//
// Connect makes exactly one attempt; there is no retry. The returned Handle
// must be closed by the caller, and closing it more than once is harmless.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"localidades-etl/internal/config"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectionError reports that no usable connection could be opened.
type ConnectionError struct {
	Driver   string
	Host     string
	Port     int
	Database string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database: cannot connect to %s at %s (database %q): %v",
		e.Driver, net.JoinHostPort(e.Host, strconv.Itoa(e.Port)), e.Database, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Handle owns the open database resources. Exactly one of SQL, PG and
// PGPool is set, depending on Driver and on how the handle was opened.
type Handle struct {
	Driver string
	SQL    *sql.DB
	PG     *pgx.Conn
	PGPool *pgxpool.Pool

	closeOnce sync.Once
	closeErr  error
}

// Connect opens and pings a connection for cfg.Driver.
func Connect(ctx context.Context, cfg config.Database) (*Handle, error) {
	fail := func(err error) (*Handle, error) {
		return nil, &ConnectionError{Driver: cfg.Driver, Host: cfg.Host, Port: cfg.Port, Database: cfg.Name, Err: err}
	}

	switch cfg.Driver {
	case config.DriverMySQL:
		db, err := sql.Open("mysql", MySQLDSN(cfg))
		if err != nil {
			return fail(err)
		}
		// One run, one connection: transactions and the export cursor never overlap.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return fail(err)
		}
		return &Handle{Driver: cfg.Driver, SQL: db}, nil

	case config.DriverPostgres:
		conn, err := pgx.Connect(ctx, PostgresURL(cfg))
		if err != nil {
			return fail(err)
		}
		if err := conn.Ping(ctx); err != nil {
			conn.Close(context.Background())
			return fail(err)
		}
		return &Handle{Driver: cfg.Driver, PG: conn}, nil

	default:
		return fail(fmt.Errorf("unsupported driver %q", cfg.Driver))
	}
}

// ConnectPool opens a pooled handle for concurrent readers such as the
// HTTP API. MySQL gets an unrestricted database/sql pool and PostgreSQL a
// pgxpool.
func ConnectPool(ctx context.Context, cfg config.Database) (*Handle, error) {
	fail := func(err error) (*Handle, error) {
		return nil, &ConnectionError{Driver: cfg.Driver, Host: cfg.Host, Port: cfg.Port, Database: cfg.Name, Err: err}
	}

	switch cfg.Driver {
	case config.DriverMySQL:
		db, err := sql.Open("mysql", MySQLDSN(cfg))
		if err != nil {
			return fail(err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return fail(err)
		}
		return &Handle{Driver: cfg.Driver, SQL: db}, nil

	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, PostgresURL(cfg))
		if err != nil {
			return fail(err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fail(err)
		}
		return &Handle{Driver: cfg.Driver, PGPool: pool}, nil

	default:
		return fail(fmt.Errorf("unsupported driver %q", cfg.Driver))
	}
}

// Close releases the connection. Only the first call does any work.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.closeOnce.Do(func() {
		switch {
		case h.SQL != nil:
			h.closeErr = h.SQL.Close()
		case h.PG != nil:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			h.closeErr = h.PG.Close(ctx)
		case h.PGPool != nil:
			h.PGPool.Close()
		}
	})
	return h.closeErr
}

// MySQLDSN formats cfg as a go-sql-driver/mysql DSN.
func MySQLDSN(cfg config.Database) string {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.DBName = cfg.Name
	c.Collation = "utf8mb4_unicode_ci"
	c.ParseTime = true
	return c.FormatDSN()
}

// PostgresURL formats cfg as a postgres:// connection string for pgx.
func PostgresURL(cfg config.Database) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	return u.String()
}
