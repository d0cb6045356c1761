package audit

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"kmc/guildbook/account"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mordilloSan/go-logger/logger"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists the trail of provisioned accounts in PostgreSQL.
type Store struct {
	db   DBTX
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(db DBTX) *Store {
	return &Store{db: db, now: time.Now}
}

// Open connects a pool to dsn and checks it is reachable.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach audit database: %w", err)
	}

	s := NewStore(pool)
	s.pool = pool
	return s, nil
}

// Migrate creates the audit tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	logger.Debugf("audit schema is up to date")
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// NewAccountRecord builds the row stored for entry. Password hashes never
// leave the process.
func NewAccountRecord(entry *account.Entry, createdBy string, at time.Time) (*AccountRecord, error) {
	attributes, err := json.Marshal(entry.Redacted())
	if err != nil {
		return nil, fmt.Errorf("failed to encode attributes of %s: %w", entry.DN, err)
	}
	return &AccountRecord{
		RecordID:   uuid.New(),
		UID:        entry.UID,
		DN:         entry.DN,
		UIDNumber:  entry.UIDNumber,
		SambaSID:   entry.SambaSID,
		CreatedBy:  createdBy,
		CreatedAt:  at,
		Attributes: attributes,
	}, nil
}

// Record implements account.Recorder.
func (s *Store) Record(ctx context.Context, entry *account.Entry, createdBy string) error {
	record, err := NewAccountRecord(entry, createdBy, s.now().UTC())
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, InsertAccount,
		uuidToPgtype(record.RecordID),
		record.UID,
		record.DN,
		record.UIDNumber,
		record.SambaSID,
		record.CreatedBy,
		timeToPgtype(record.CreatedAt),
		record.Attributes,
	)
	if err != nil {
		return fmt.Errorf("insert account record query failed: %w", err)
	}

	logger.DebugKV("recorded account creation", "uid", record.UID, "record_id", record.RecordID.String())
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]AccountRecord, error) {
	rows, err := s.db.Query(ctx, ListRecentAccounts, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent accounts query failed: %w", err)
	}
	defer rows.Close()

	var records []AccountRecord
	for rows.Next() {
		var (
			recordID  pgtype.UUID
			createdAt pgtype.Timestamp
			record    AccountRecord
		)
		if err := rows.Scan(
			&recordID,
			&record.UID,
			&record.DN,
			&record.UIDNumber,
			&record.SambaSID,
			&record.CreatedBy,
			&createdAt,
			&record.Attributes,
		); err != nil {
			return nil, fmt.Errorf("scan account record: %w", err)
		}
		record.RecordID = pgtypeToUUID(recordID)
		record.CreatedAt = createdAt.Time
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account records: %w", err)
	}
	return records, nil
}
