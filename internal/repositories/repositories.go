// package repositories provides persistence layer implementations for the notes store.
//
// Each repository implements models.Repository[T] for a specific entity type,
// handling CRUD operations, soft deletes, and sequence generation.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

var tableName = regexp.MustCompile(`^[a-z_]+$`)

// NextSequence increments and returns the next sequence number for table inside tx.
//
// Sequence numbers give notes a stable insertion order independent of UUIDs and clock skew.
func NextSequence(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	if !tableName.MatchString(table) {
		return 0, fmt.Errorf("invalid sequence table %q", table)
	}
	sequenceTable := table + "_sequence"

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	if err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	return sequence, nil
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
