// Package database provides the SQLite store backing the connectivity
// journal.
//
// This package manages:
//   - Opening the database with WAL mode and busy-timeout pragmas
//   - Applying embedded schema migrations at startup
//   - Health checking the connection
//
// The gateway writes operational events only (see internal/journal);
// serial traffic is never persisted. SQLite suits the deployment: a
// single writer on a single small device, no server to operate.
package database
