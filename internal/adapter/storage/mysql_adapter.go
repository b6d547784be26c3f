package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
)

// MySQLStore implements every store port on top of MySQL. The database
// is the sole synchronization point: every critical section runs in a
// transaction holding a FOR UPDATE lock on the variant rows it reads,
// with conditional updates as a backstop.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// Open connects to MySQL with the pool settings the server uses.
// The DSN needs parseTime=true and multiStatements=true.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// RunMigrations applies the SQL migrations under dir.
func RunMigrations(db *sql.DB, dir string) error {
	driver, err := migratemysql.WithInstance(db, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "mysql", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *MySQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// actorValues splits an actor into the nullable identity columns.
// Exactly one column is non-NULL, matching the actor invariant.
func actorValues(a domain.Actor) (userID, sessionID sql.NullString) {
	if a.UserID() != "" {
		userID = sql.NullString{String: a.UserID(), Valid: true}
	} else if a.SessionID() != "" {
		sessionID = sql.NullString{String: a.SessionID(), Valid: true}
	}
	return userID, sessionID
}

func actorFromColumns(userID, sessionID sql.NullString) domain.Actor {
	if userID.Valid {
		return domain.UserActor(userID.String)
	}
	return domain.SessionActor(sessionID.String)
}
