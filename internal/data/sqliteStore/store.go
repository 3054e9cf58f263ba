package sqliteStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/akolanti/ClinicRAG/internal/data/sqliteStore/migrations"
	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
	"github.com/akolanti/ClinicRAG/pkg/logger_i"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db     *sql.DB
	path   string
	logger *logger_i.Logger
	writer
}

// Open creates or opens the database file at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one writer at a time; transactions hold the only connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		logger: logger_i.NewLogger("SQLite KnowledgeStore"),
		writer: writer{q: db},
	}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	s.logger.Info("SQLite store ready", "path", path)
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		s.logger.Debug("migration applied", "file", name)
	}
	return nil
}

func (s *Store) InTransaction(ctx context.Context, fn func(tx knowledgeModel.KnowledgeWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(writer{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WithTrace(ctx).Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const documentColumns = "id, title, content, document_type, scope, version, active, created_by, created_at, updated_at"

func (s *Store) ListDocuments(ctx context.Context, filter knowledgeModel.DocumentFilter) ([]knowledgeModel.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents"
	var where []string
	var args []any
	if filter.Scope != nil {
		where = append(where, "scope = ?")
		args = append(args, *filter.Scope)
	}
	if filter.DocumentType != "" {
		where = append(where, "document_type = ?")
		args = append(args, filter.DocumentType)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := make([]knowledgeModel.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Store) FetchCandidates(ctx context.Context, scope *int64, limit int) ([]knowledgeModel.Candidate, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.document_id, d.title, d.document_type, d.scope, f.fragment_index, f.text, e.vector
		FROM fragments f
		JOIN documents d ON d.id = f.document_id
		JOIN embeddings e ON e.fragment_id = f.id
		WHERE d.active = 1 AND (d.scope IS NULL OR d.scope = ?)
		ORDER BY d.id, f.fragment_index
		LIMIT ?`, nullableScope(scope), limit)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]knowledgeModel.Candidate, 0)
	for rows.Next() {
		var (
			c        knowledgeModel.Candidate
			docScope sql.NullInt64
			raw      string
		)
		if err := rows.Scan(&c.FragmentId, &c.DocumentId, &c.DocumentTitle, &c.DocumentType, &docScope, &c.FragmentIndex, &c.Text, &raw); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		c.Scope = scopeFrom(docScope)
		if v, err := knowledgeModel.DecodeVector(raw); err != nil {
			c.DecodeErr = err
		} else {
			c.Vector = v
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// writer runs KnowledgeWriter operations on the database or on an open transaction.
type writer struct {
	q queryer
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (knowledgeModel.Document, error) {
	var (
		d                    knowledgeModel.Document
		scope                sql.NullInt64
		active               int
		createdAt, updatedAt int64
	)
	err := row.Scan(&d.Id, &d.Title, &d.Content, &d.DocumentType, &scope, &d.Version, &active, &d.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return knowledgeModel.Document{}, err
	}
	d.Scope = scopeFrom(scope)
	d.Active = active == 1
	d.CreatedAt = time.Unix(0, createdAt).UTC()
	d.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return d, nil
}

func (w writer) FindDocument(ctx context.Context, id int64) (knowledgeModel.Document, error) {
	row := w.q.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return knowledgeModel.Document{}, knowledgeModel.ErrDocumentNotFound
	}
	if err != nil {
		return knowledgeModel.Document{}, fmt.Errorf("finding document %d: %w", id, err)
	}
	return d, nil
}

func (w writer) ListFragments(ctx context.Context, documentId int64) ([]knowledgeModel.Fragment, error) {
	rows, err := w.q.QueryContext(ctx, `
		SELECT id, document_id, text, fragment_index, document_type, scope
		FROM fragments WHERE document_id = ? ORDER BY fragment_index`, documentId)
	if err != nil {
		return nil, fmt.Errorf("listing fragments: %w", err)
	}
	defer rows.Close()

	fragments := make([]knowledgeModel.Fragment, 0)
	for rows.Next() {
		var (
			f     knowledgeModel.Fragment
			scope sql.NullInt64
		)
		if err := rows.Scan(&f.Id, &f.DocumentId, &f.Text, &f.Index, &f.Metadata.DocumentType, &scope); err != nil {
			return nil, fmt.Errorf("scanning fragment: %w", err)
		}
		f.Metadata.Scope = scopeFrom(scope)
		fragments = append(fragments, f)
	}
	return fragments, rows.Err()
}

func (w writer) CreateDocument(ctx context.Context, fields knowledgeModel.DocumentFields) (knowledgeModel.Document, error) {
	now := time.Now().UTC()
	res, err := w.q.ExecContext(ctx, `
		INSERT INTO documents (title, content, document_type, scope, version, active, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fields.Title, fields.Content, fields.DocumentType, nullableScope(fields.Scope), fields.Version,
		boolToInt(fields.Active), fields.CreatedBy, now.UnixNano(), now.UnixNano())
	if err != nil {
		return knowledgeModel.Document{}, fmt.Errorf("inserting document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return knowledgeModel.Document{}, err
	}
	return knowledgeModel.Document{
		Id:           id,
		Title:        fields.Title,
		Content:      fields.Content,
		DocumentType: fields.DocumentType,
		Scope:        fields.Scope,
		Version:      fields.Version,
		Active:       fields.Active,
		CreatedBy:    fields.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (w writer) UpdateDocument(ctx context.Context, id int64, fields knowledgeModel.DocumentFields) (knowledgeModel.Document, error) {
	res, err := w.q.ExecContext(ctx, `
		UPDATE documents
		SET title = ?, content = ?, document_type = ?, scope = ?, version = ?, active = ?, created_by = ?, updated_at = ?
		WHERE id = ?`,
		fields.Title, fields.Content, fields.DocumentType, nullableScope(fields.Scope), fields.Version,
		boolToInt(fields.Active), fields.CreatedBy, time.Now().UTC().UnixNano(), id)
	if err != nil {
		return knowledgeModel.Document{}, fmt.Errorf("updating document %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return knowledgeModel.Document{}, knowledgeModel.ErrDocumentNotFound
	}
	return w.FindDocument(ctx, id)
}

// DeleteDocument relies on ON DELETE CASCADE for fragments and embeddings.
func (w writer) DeleteDocument(ctx context.Context, id int64) error {
	res, err := w.q.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return knowledgeModel.ErrDocumentNotFound
	}
	return nil
}

func (w writer) CreateFragment(ctx context.Context, documentId int64, text string, index int, metadata knowledgeModel.FragmentMetadata) (knowledgeModel.Fragment, error) {
	var exists int
	err := w.q.QueryRowContext(ctx, "SELECT COUNT(1) FROM documents WHERE id = ?", documentId).Scan(&exists)
	if err != nil {
		return knowledgeModel.Fragment{}, err
	}
	if exists == 0 {
		return knowledgeModel.Fragment{}, knowledgeModel.ErrDocumentNotFound
	}

	res, err := w.q.ExecContext(ctx, `
		INSERT INTO fragments (document_id, text, fragment_index, document_type, scope)
		VALUES (?, ?, ?, ?, ?)`,
		documentId, text, index, metadata.DocumentType, nullableScope(metadata.Scope))
	if err != nil {
		return knowledgeModel.Fragment{}, fmt.Errorf("inserting fragment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return knowledgeModel.Fragment{}, err
	}
	return knowledgeModel.Fragment{Id: id, DocumentId: documentId, Text: text, Index: index, Metadata: metadata}, nil
}

func (w writer) DeleteFragmentsOf(ctx context.Context, documentId int64) error {
	if _, err := w.q.ExecContext(ctx, "DELETE FROM fragments WHERE document_id = ?", documentId); err != nil {
		return fmt.Errorf("deleting fragments of %d: %w", documentId, err)
	}
	return nil
}

func (w writer) CreateEmbedding(ctx context.Context, fragmentId int64, vector []float32) (knowledgeModel.Embedding, error) {
	var exists int
	if err := w.q.QueryRowContext(ctx, "SELECT COUNT(1) FROM fragments WHERE id = ?", fragmentId).Scan(&exists); err != nil {
		return knowledgeModel.Embedding{}, err
	}
	if exists == 0 {
		return knowledgeModel.Embedding{}, fmt.Errorf("fragment %d not found", fragmentId)
	}

	if _, err := w.q.ExecContext(ctx, "DELETE FROM embeddings WHERE fragment_id = ?", fragmentId); err != nil {
		return knowledgeModel.Embedding{}, err
	}
	res, err := w.q.ExecContext(ctx, "INSERT INTO embeddings (fragment_id, vector) VALUES (?, ?)",
		fragmentId, knowledgeModel.EncodeVector(vector))
	if err != nil {
		return knowledgeModel.Embedding{}, fmt.Errorf("inserting embedding: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return knowledgeModel.Embedding{}, err
	}
	return knowledgeModel.Embedding{Id: id, FragmentId: fragmentId, Vector: append(knowledgeModel.Vector(nil), vector...)}, nil
}

func (w writer) DeleteEmbeddingsOfFragments(ctx context.Context, fragmentIds []int64) error {
	if len(fragmentIds) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(fragmentIds)), ",")
	args := make([]any, len(fragmentIds))
	for i, id := range fragmentIds {
		args[i] = id
	}
	if _, err := w.q.ExecContext(ctx, "DELETE FROM embeddings WHERE fragment_id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	return nil
}

func nullableScope(scope *int64) sql.NullInt64 {
	if scope == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *scope, Valid: true}
}

func scopeFrom(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return knowledgeModel.ScopeOf(v.Int64)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
