// Package client contains the transport to the sync server.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) covering
//     health, create, pull, push, delete and share access.
//  2. A concrete HTTP/JSON implementation (see HTTPClient) with a bounded
//     per-request timeout that maps statuses to sentinel errors.
//  3. Local persistence bootstrap utilities (InitDatabase, RunMigrations) for
//     the CLI, wiring an SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Server answers map onto the common sentinels: 400 to common.ErrValidation,
// 403 to common.ErrShareExpired or common.ErrShareExhausted, 404 to
// common.ErrNotFound, 409 to common.ErrConflict and 429 to a *RateLimitError.
// Timeouts, transport failures and 5xx answers are ErrUnavailable and are
// safe to retry.
//
// Blobs cross this package as raw envelope bytes; base64 is applied here.
package client
