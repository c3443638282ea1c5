// Package storage defines the persistence contract for the pastebin.
//
// The contract is split into focused interfaces that compose into Storage:
//
//   - auth.Store: credential verification, session rotation, API token lifecycle
//   - UserReader / UserWriter: accounts
//   - TokenLister, SessionSweeper: token listing and expired secure slot cleanup
//   - PasteReader / PasteWriter: pastes
//   - HealthChecker
//
// Two backends implement it:
//
//   - storage/memory: maps behind a mutex, for tests and single-node setups
//   - storage/postgres: database/sql with lib/pq
//
// Secrets are never stored; both backends keep auth.HashToken digests.
// Errors carry the auth sentinels: ErrNotFound, ErrConflict,
// ErrUnknownCredential and, for backend failures, ErrStoreUnavailable.
package storage
