package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/milestones/internal/models"
)

// DefaultKey is the document name the roster is stored under.
const DefaultKey = "students"

// RosterStore reads and writes the whole roster as a single document.
// There is no partial update: Save replaces whatever was stored before.
type RosterStore interface {
	Load(ctx context.Context) ([]models.Student, error)
	Save(ctx context.Context, students []models.Student) error
	Ping(ctx context.Context) error
	Close() error
}

// BaseStore keeps the roster document in a SQL table shared by the
// postgres and sqlite backends.
type BaseStore struct {
	DB        *sqlx.DB
	Key       string
	Converter func(string) string
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *BaseStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".sql") {
			names = append(names, file.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		logger.Debug.Printf("Applying migration: %s", name)
		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *BaseStore) Load(ctx context.Context) ([]models.Student, error) {
	var body string
	query := s.Converter(`
		SELECT body
		FROM documents
		WHERE name = ?
	`)

	err := s.DB.GetContext(ctx, &body, query, s.Key)
	if errors.Is(err, sql.ErrNoRows) {
		return []models.Student{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}

	return DecodeRoster([]byte(body))
}

func (s *BaseStore) Save(ctx context.Context, students []models.Student) error {
	body, err := EncodeRoster(students)
	if err != nil {
		return err
	}

	query := s.Converter(`
		INSERT INTO documents (name, body, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
		body = excluded.body,
		updated_at = excluded.updated_at
	`)
	if _, err := s.DB.ExecContext(ctx, query, s.Key, string(body), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save roster: %w", err)
	}
	return nil
}
