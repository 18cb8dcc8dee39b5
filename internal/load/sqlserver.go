package load

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/optimal-data/ingestor/internal/etl"
)

// SQLServer delivers canonical records into a SQL Server table with a
// MERGE upsert, for deployments whose downstream consumers live on
// SQL Server instead of Postgres.
type SQLServer struct {
	DB    *sql.DB
	Table string
}

func NewSQLServer(db *sql.DB, table string) *SQLServer {
	if table == "" {
		table = "products"
	}
	return &SQLServer{DB: db, Table: table}
}

func (l *SQLServer) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		IF OBJECT_ID('%s', 'U') IS NULL
		CREATE TABLE %s (
			source       NVARCHAR(100) NOT NULL,
			source_id    NVARCHAR(200) NOT NULL,
			fields       NVARCHAR(MAX) NOT NULL,
			fingerprint  NVARCHAR(64) NOT NULL,
			modified_at  DATETIMEOFFSET NOT NULL,
			delivered_at DATETIMEOFFSET NOT NULL DEFAULT SYSDATETIMEOFFSET(),
			PRIMARY KEY (source, source_id)
		)`, l.Table, l.Table)
	if _, err := l.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating table %s: %w", l.Table, err)
	}
	return nil
}

func (l *SQLServer) Deliver(ctx context.Context, batch []etl.CanonicalRecord) error {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return classifyMssqlError("", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		MERGE INTO %s AS t
		USING (VALUES (@p1, @p2, @p3, @p4, @p5)) AS s(source, source_id, fields, fingerprint, modified_at)
		ON t.source = s.source AND t.source_id = s.source_id
		WHEN MATCHED THEN UPDATE SET
			fields = s.fields,
			fingerprint = s.fingerprint,
			modified_at = s.modified_at,
			delivered_at = SYSDATETIMEOFFSET()
		WHEN NOT MATCHED THEN INSERT (source, source_id, fields, fingerprint, modified_at)
			VALUES (s.source, s.source_id, s.fields, s.fingerprint, s.modified_at);`, l.Table)

	for _, rec := range batch {
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return &etl.RecordError{Key: rec.Key(), Err: err}
		}
		if _, err := tx.ExecContext(ctx, query, rec.Source, rec.ID, string(fields), rec.Fingerprint, rec.ModifiedAt); err != nil {
			return classifyMssqlError(rec.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyMssqlError("", err)
	}
	return nil
}

func classifyMssqlError(key string, err error) error {
	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Number {
		case 2601, 2627, 547, 8152, 2628: // duplicates, constraint, truncation
			if key != "" {
				return &etl.RecordError{Key: key, Err: err}
			}
		case 1205: // deadlock victim
			return etl.Transient(err)
		}
		return fmt.Errorf("sqlserver: %w", err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return etl.Transient(err)
	}
	return fmt.Errorf("sqlserver: %w", err)
}
