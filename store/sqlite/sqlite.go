/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.RecordStore and minting.CreditLog using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  ledger.RecordStore: Derived-address record persistence
  minting.CreditLog:  Append-only credit audit trail

CREATE-IF-ABSENT ENFORCEMENT:
  The records table keys on the derived address (PRIMARY KEY). A duplicate
  create surfaces as a UNIQUE constraint violation, which is mapped to
  ledger.ErrAlreadyExists. The check and the insert are one statement, so
  there is no lookup-then-insert race.

MUTATE:
  Mutate runs SELECT + UPDATE inside a database transaction under the write
  lock. SQLite's single-writer model plus the mutex means the read-modify-
  write never interleaves with another writer on the same address.

KEY TABLES:
  records:        Derived-address records (value is opaque JSON)
  credit_entries: Append-only credit audit trail

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store, sink)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definition
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lypto/reward-engine/ledger"
	"github.com/lypto/reward-engine/minting"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Records (derived-address store; create-once or mutate-in-place)
	CREATE TABLE IF NOT EXISTS records (
		address TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		value_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_kind
		ON records(kind);

	-- Credit audit trail (append-only)
	CREATE TABLE IF NOT EXISTS credit_entries (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		mint_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_credit_entries_customer
		ON credit_entries(customer_id);
	CREATE INDEX IF NOT EXISTS idx_credit_entries_mint
		ON credit_entries(mint_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (ledger.RecordStore interface)
// =============================================================================

// CreateIfAbsent inserts a record at address. The PRIMARY KEY on address is
// the uniqueness check; a conflict maps to ledger.ErrAlreadyExists.
func (s *Store) CreateIfAbsent(ctx context.Context, address ledger.Address, kind string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `
		INSERT INTO records (address, kind, value_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, string(address), kind, string(value), now, now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

// Mutate applies fn to the value at address inside a database transaction.
func (s *Store) Mutate(ctx context.Context, address ledger.Address, fn ledger.MutateFunc) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var old string
	err = sqlTx.QueryRowContext(ctx,
		`SELECT value_json FROM records WHERE address = ?`, string(address),
	).Scan(&old)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	next, err := fn([]byte(old))
	if err != nil {
		return nil, err
	}

	_, err = sqlTx.ExecContext(ctx,
		`UPDATE records SET value_json = ?, updated_at = ? WHERE address = ?`,
		string(next), time.Now().UTC().Format(time.RFC3339Nano), string(address))
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit mutation: %w", err)
	}
	return next, nil
}

// Read returns the value at address.
func (s *Store) Read(ctx context.Context, address ledger.Address) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value_json FROM records WHERE address = ?`, string(address),
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return []byte(value), nil
}

// ListByKind returns all records of a kind.
func (s *Store) ListByKind(ctx context.Context, kind string) ([]ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT address, kind, value_json, created_at, updated_at
		FROM records WHERE kind = ?
		ORDER BY created_at
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var result []ledger.Record
	for rows.Next() {
		var (
			rec                  ledger.Record
			addr, k              string
			value                string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&addr, &k, &value, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Address = ledger.Address(addr)
		rec.Kind = k
		rec.Value = []byte(value)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		result = append(result, rec)
	}
	return result, rows.Err()
}

// =============================================================================
// CREDIT LOG (minting.CreditLog interface)
// =============================================================================

// AppendCredit adds an audit-trail row for a successful credit.
func (s *Store) AppendCredit(ctx context.Context, entry minting.CreditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credit_entries (id, customer_id, mint_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		entry.ID,
		string(entry.Customer),
		string(entry.Mint),
		entry.Amount,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append credit entry: %w", err)
	}
	return nil
}

// CreditsForCustomer returns all credit entries for a customer, oldest first.
func (s *Store) CreditsForCustomer(ctx context.Context, customer ledger.Identity) ([]minting.CreditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, mint_id, amount, created_at
		FROM credit_entries WHERE customer_id = ?
		ORDER BY created_at
	`, string(customer))
	if err != nil {
		return nil, fmt.Errorf("failed to query credit entries: %w", err)
	}
	defer rows.Close()

	var result []minting.CreditEntry
	for rows.Next() {
		var (
			entry      minting.CreditEntry
			customerID string
			mintID     string
			createdAt  string
		)
		if err := rows.Scan(&entry.ID, &customerID, &mintID, &entry.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit entry: %w", err)
		}
		entry.Customer = ledger.Identity(customerID)
		entry.Mint = ledger.Identity(mintID)
		entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		result = append(result, entry)
	}
	return result, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// Compile-time interface checks
var (
	_ ledger.RecordStore = (*Store)(nil)
	_ minting.CreditLog  = (*Store)(nil)
)
