// Package load contains the delivery targets. Every loader implements an
// idempotent upsert keyed by source plus identifier, so re-delivering a
// committed record is a no-op.
package load

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"github.com/optimal-data/ingestor/internal/etl"
)

// Postgres delivers canonical records into a Postgres table via
// INSERT ... ON CONFLICT DO UPDATE. The whole batch is committed in one
// transaction, so a failed batch leaves no partial state behind.
type Postgres struct {
	DB    *sql.DB
	Table string
}

func NewPostgres(db *sql.DB, table string) *Postgres {
	if table == "" {
		table = "products"
	}
	return &Postgres{DB: db, Table: table}
}

// EnsureSchema creates the target table when it does not exist yet.
func (l *Postgres) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			source       TEXT NOT NULL,
			source_id    TEXT NOT NULL,
			fields       JSONB NOT NULL,
			fingerprint  TEXT NOT NULL,
			modified_at  TIMESTAMPTZ NOT NULL,
			delivered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (source, source_id)
		)`, pq.QuoteIdentifier(l.Table))
	if _, err := l.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating table %s: %w", l.Table, err)
	}
	return nil
}

func (l *Postgres) Deliver(ctx context.Context, batch []etl.CanonicalRecord) error {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return classifyPgError("", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (source, source_id, fields, fingerprint, modified_at, delivered_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (source, source_id) DO UPDATE
		SET fields = EXCLUDED.fields,
		    fingerprint = EXCLUDED.fingerprint,
		    modified_at = EXCLUDED.modified_at,
		    delivered_at = NOW()`, pq.QuoteIdentifier(l.Table))

	for _, rec := range batch {
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return &etl.RecordError{Key: rec.Key(), Err: err}
		}
		if _, err := tx.ExecContext(ctx, query, rec.Source, rec.ID, fields, rec.Fingerprint, rec.ModifiedAt); err != nil {
			return classifyPgError(rec.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyPgError("", err)
	}
	return nil
}

// classifyPgError sorts driver failures into the pipeline's taxonomy:
// connection and resource trouble is transient, data and constraint
// violations condemn the single record that caused them.
func classifyPgError(key string, err error) error {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Code.Class() {
		case "08", "53", "57", "58": // connection, resources, intervention, system
			return etl.Transient(err)
		case "22", "23": // data exception, integrity violation
			if key != "" {
				return &etl.RecordError{Key: key, Err: err}
			}
		}
		return fmt.Errorf("postgres: %w", err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return etl.Transient(err)
	}
	return fmt.Errorf("postgres: %w", err)
}
