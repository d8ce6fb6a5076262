package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// ErrInvalidIdentifier is returned when a database, table or column name is
// not a plain identifier.
var ErrInvalidIdentifier = errors.New("clickhouse: invalid identifier")

// Client manages ClickHouse connection pool.
type Client struct {
	db          *sql.DB
	insertChunk int
}

// NewClient creates a ClickHouse client with connection pool.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &ClientConfig{
		Port:            9000,
		Database:        "default",
		User:            "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		InsertChunk:     2000,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}

	db, err := sql.Open("clickhouse", buildDSN(*cfg))
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	return NewFromDB(db, cfg.InsertChunk), nil
}

// NewFromDB wraps an already opened pool.
func NewFromDB(db *sql.DB, insertChunk int) *Client {
	if insertChunk <= 0 {
		insertChunk = 2000
	}
	return &Client{db: db, insertChunk: insertChunk}
}

// DB returns *sql.DB for direct use.
func (c *Client) DB() *sql.DB {
	return c.db
}

// InsertChunk is the number of rows per multi-row INSERT.
func (c *Client) InsertChunk() int {
	return c.insertChunk
}

// Health performs health check.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes connection pool.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Exec runs statements in order, stopping at the first failure.
func (c *Client) Exec(ctx context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
	}
	return nil
}

// InsertRows inserts n rows into table in chunks of InsertChunk rows using
// multi-row VALUES statements. row(i) returns the column values of row i.
func (c *Client) InsertRows(ctx context.Context, table string, columns []string, n int, row func(i int) []any) error {
	if n == 0 {
		return nil
	}
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	for start := 0; start < n; start += c.insertChunk {
		end := min(start+c.insertChunk, n)

		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*len(columns))
		for i := start; i < end; i++ {
			values = append(values, placeholder)
			args = append(args, row(i)...)
		}
		if _, err := c.db.ExecContext(ctx, head+strings.Join(values, ","), args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// QuoteIdent validates name and returns it backtick-quoted.
func QuoteIdent(name string) (string, error) {
	if !ValidIdent(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return "`" + name + "`", nil
}

// QuoteTable validates and quotes a database-qualified table name.
func QuoteTable(database, table string) (string, error) {
	db, err := QuoteIdent(database)
	if err != nil {
		return "", err
	}
	tbl, err := QuoteIdent(table)
	if err != nil {
		return "", err
	}
	return db + "." + tbl, nil
}

// ValidIdent reports whether name is a letter/underscore led identifier of
// letters, digits and underscores.
func ValidIdent(name string) bool {
	if name == "" || len(name) > 128 {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func buildDSN(cfg ClientConfig) string {
	scheme := "clickhouse"
	if cfg.UseHTTP {
		scheme = "http"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Database,
	}

	q := url.Values{}
	if cfg.DialTimeout > 0 {
		q.Set("dial_timeout", cfg.DialTimeout.String())
	}
	if cfg.ReadTimeout > 0 {
		q.Set("read_timeout", cfg.ReadTimeout.String())
	}
	// write_timeout stays client-side; some server versions reject it as a setting.
	if cfg.MaxExecTime > 0 {
		q.Set("max_execution_time", strconv.Itoa(int(cfg.MaxExecTime.Seconds())))
	}
	if cfg.AsyncInsert {
		q.Set("async_insert", "1")
		if cfg.WaitForAsync {
			q.Set("wait_for_async_insert", "1")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
