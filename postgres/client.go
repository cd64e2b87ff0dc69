//nolint:nilnil
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/slackmgr/widget-consumer/types"
)

var errNotConnected = errors.New("client is not connected")

// pool defines the interface for database operations.
// This interface is satisfied by *pgxpool.Pool and can be mocked for testing.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
	Ping(ctx context.Context) error
}

// Client is a widgets table writer backed by PostgreSQL. It implements
// [types.Table].
type Client struct {
	conn pool
	opts *options
}

func New(opts ...Option) *Client {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{opts: o}
}

// Table returns the configured widgets table name.
func (c *Client) Table() string {
	return c.opts.table
}

// Connect opens the connection pool and pings the database. Failures wrap
// [types.ErrFatalConfig].
func (c *Client) Connect(ctx context.Context) error {
	// Close existing connection if any to prevent leaks
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("%w: invalid Postgres db configuration: %w", types.ErrFatalConfig, err)
	}

	config, err := pgxpool.ParseConfig(c.opts.connectionString())
	if err != nil {
		return fmt.Errorf("%w: failed to parse Postgres db connection string: %w", types.ErrFatalConfig, err)
	}

	if c.opts.poolMaxConnections != nil {
		config.MaxConns = *c.opts.poolMaxConnections
	}

	if c.opts.poolMinConnections != nil {
		config.MinConns = *c.opts.poolMinConnections
	}

	if c.opts.poolMinIdleConnections != nil {
		config.MinIdleConns = *c.opts.poolMinIdleConnections
	}

	if c.opts.poolMaxConnectionLifetime != nil {
		config.MaxConnLifetime = *c.opts.poolMaxConnectionLifetime
	}

	if c.opts.poolMaxConnectionIdleTime != nil {
		config.MaxConnIdleTime = *c.opts.poolMaxConnectionIdleTime
	}

	if c.opts.poolHealthCheckPeriod != nil {
		config.HealthCheckPeriod = *c.opts.poolHealthCheckPeriod
	}

	if c.opts.poolMaxConnectionLifetimeJitter != nil {
		config.MaxConnLifetimeJitter = *c.opts.poolMaxConnectionLifetimeJitter
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("%w: failed to create new Postgres connection pool: %w", types.ErrFatalConfig, err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("%w: failed to ping Postgres db: %w", types.ErrFatalConfig, err)
	}

	c.conn = conn

	return nil
}

func (c *Client) Close(_ context.Context) error {
	if c.conn == nil {
		return nil
	}

	c.conn.Close()

	c.conn = nil

	return nil
}

// Init creates the widgets table if it does not exist and, unless
// skipSchemaValidation is set, verifies its columns against the expected
// layout. Failures wrap [types.ErrFatalConfig].
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if c.conn == nil {
		return fmt.Errorf("%w: %w", types.ErrFatalConfig, errNotConnected)
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("%w: invalid Postgres db configuration: %w", types.ErrFatalConfig, err)
	}

	if err := c.createTable(ctx); err != nil {
		return fmt.Errorf("%w: %w", types.ErrFatalConfig, err)
	}

	if skipSchemaValidation {
		return nil
	}

	if err := c.verifySchema(ctx); err != nil {
		return fmt.Errorf("%w: %w", types.ErrFatalConfig, err)
	}

	return nil
}

func (c *Client) createTable(ctx context.Context) error {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin init transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.createStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute create statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit init transaction: %w", err)
	}

	return nil
}

func (c *Client) verifySchema(ctx context.Context) error {
	query := "SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position"

	rows, err := c.conn.Query(ctx, query, c.opts.table)
	if err != nil {
		return fmt.Errorf("failed to query information schema: %w", err)
	}

	defer rows.Close()

	infoRows := map[string]*dbRow{}

	for rows.Next() {
		var table, column string
		infoRow := &dbRow{}

		if err := rows.Scan(&table, &column, &infoRow.DataType, &infoRow.IsNullable); err != nil {
			return fmt.Errorf("failed to scan row from information schema: %w", err)
		}

		infoRows[table+"."+column] = infoRow
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over rows from information schema: %w", err)
	}

	if err := c.opts.verifyCurrentDatabaseVersion(infoRows); err != nil {
		return fmt.Errorf("failed to verify current database version: %w", err)
	}

	return nil
}

// DropAllData drops the widgets table. Intended for tests.
func (c *Client) DropAllData(ctx context.Context) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin drop tables transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.dropStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute drop statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit drop tables transaction: %w", err)
	}

	return nil
}

// Upsert stores the widget keyed by requestID. A row that already holds the
// same payload digest is left untouched; a different payload replaces it.
// Errors wrap [types.ErrTransientWrite] or [types.ErrFatalWrite].
func (c *Client) Upsert(ctx context.Context, requestID string, payload map[string]any) error {
	if c.conn == nil {
		return types.Wrap(types.ErrTransientWrite, errNotConnected, "failed to write widget %s", requestID)
	}

	record, err := types.NewWidgetRecord(requestID, payload, c.opts.clock())
	if err != nil {
		return types.Wrap(types.ErrFatalWrite, err, "failed to build widget record %s", requestID)
	}

	param1 := record.RequestID
	param2 := string(record.Payload)
	param3 := record.PayloadDigest
	param4 := record.WrittenAt

	if _, err := c.conn.Exec(ctx, c.opts.upsertStatement(), param1, param2, param3, param4); err != nil {
		return classifyWriteError(err, requestID)
	}

	return nil
}

// FindWidget returns the stored record for requestID, or nil if there is
// none.
func (c *Client) FindWidget(ctx context.Context, requestID string) (*types.WidgetRecord, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if requestID == "" {
		return nil, errors.New("request ID cannot be empty")
	}

	query := fmt.Sprintf("SELECT request_id, payload, payload_digest, written_at FROM %s WHERE request_id = $1", c.opts.table)

	row := c.conn.QueryRow(ctx, query, requestID)

	var (
		record    types.WidgetRecord
		payload   []byte
		writtenAt time.Time
	)

	if err := row.Scan(&record.RequestID, &payload, &record.PayloadDigest, &writtenAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to find widget in Postgres db: %w", err)
	}

	record.Payload = payload
	record.WrittenAt = writtenAt.UTC()

	return &record, nil
}

// classifyWriteError maps data exceptions (SQLSTATE class 22) and integrity
// constraint violations (class 23) to ErrFatalWrite. Everything else,
// including connection failures, is retryable.
func classifyWriteError(err error, requestID string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "22", "23":
			return types.Wrap(types.ErrFatalWrite, err, "failed to write widget %s to Postgres db", requestID)
		}
	}

	return types.Wrap(types.ErrTransientWrite, err, "failed to write widget %s to Postgres db", requestID)
}
