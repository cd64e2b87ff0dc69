// Package postgres provides a PostgreSQL-backed widgets table writer that
// implements types.Table from github.com/slackmgr/widget-consumer/types.
//
// It uses pgx v5 with connection pooling (pgxpool). Each widget is one row
// keyed by request_id, with the payload stored as JSONB next to its SHA-256
// digest and the time it was written.
//
// # Usage
//
// Create a client using [New] with functional options, call [Client.Connect]
// to establish the connection pool, and then [Client.Init] to create and
// verify the table:
//
//	client := postgres.New(
//	    postgres.WithHost("localhost"),
//	    postgres.WithPort(5432),
//	    postgres.WithUser("postgres"),
//	    postgres.WithPassword("secret"),
//	    postgres.WithDatabase("widgets"),
//	)
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	if err := client.Init(ctx, false); err != nil {
//	    log.Fatal(err)
//	}
//
// # Idempotency
//
// [Client.Upsert] uses INSERT ... ON CONFLICT (request_id) DO UPDATE with a
// WHERE clause on the payload digest, so a redelivered request leaves the
// row untouched while a changed payload replaces it.
//
// # Errors
//
// Data exceptions (SQLSTATE class 22) and integrity constraint violations
// (class 23) are reported as types.ErrFatalWrite. All other write failures,
// connection errors included, are types.ErrTransientWrite. Connect and Init
// failures wrap types.ErrFatalConfig.
//
// # Connection Pool
//
// The underlying pgxpool can be tuned with the pool-specific options:
// [WithPoolMaxConnections], [WithPoolMinConnections],
// [WithPoolMinIdleConnections], [WithPoolMaxConnectionLifetime],
// [WithPoolMaxConnectionIdleTime], [WithPoolHealthCheckPeriod], and
// [WithPoolMaxConnectionLifetimeJitter].
package postgres
