package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore keeps documents as JSON rows in the documents table and fans
// committed writes out to live subscriptions.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	path  string
	dirty chan struct{}
}

func NewSQLiteStore(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		subs:   make(map[*subscription]struct{}),
	}
}

func (s *SQLiteStore) Get(ctx context.Context, path string) (Document, error) {
	collection, id, isCollection, err := SplitPath(path)
	if err != nil {
		return Document{}, err
	}
	if isCollection {
		return Document{}, fmt.Errorf("%w: %q is a collection", ErrInvalidPath, path)
	}
	return s.getDoc(ctx, collection, id)
}

func (s *SQLiteStore) getDoc(ctx context.Context, collection, id string) (Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %s/%s: %w", collection, id, err)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return Document{}, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return Document{ID: id, Fields: fields}, nil
}

func (s *SQLiteStore) listDocs(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fields FROM documents WHERE collection = ? ORDER BY id`, collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			s.logger.Debug("skip undecodable document", "collection", collection, "id", id, "error", err)
			continue
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) Set(ctx context.Context, path string, fields Fields) error {
	collection, id, err := s.docPath(path)
	if err != nil {
		return err
	}

	now := s.now()
	raw, err := encodeFields(fields, now)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		collection, id, raw, now, now,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	s.notify(collection, id)
	return nil
}

// UpdateField sets a single field. It fails with ErrNotFound when the
// document does not exist.
func (s *SQLiteStore) UpdateField(ctx context.Context, path, field string, value any) error {
	collection, id, err := s.docPath(path)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update %s: %w", path, err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	fields[field] = value

	now := s.now()
	updated, err := encodeFields(fields, now)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET fields = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		updated, now, collection, id,
	); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update %s: %w", path, err)
	}

	s.notify(collection, id)
	return nil
}

// Delete removes a document. Deleting a missing document succeeds.
func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	collection, id, err := s.docPath(path)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id,
	)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	if n, _ := result.RowsAffected(); n > 0 {
		s.notify(collection, id)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	if _, _, isCollection, err := SplitPath(collection); err != nil || !isCollection {
		return "", fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, collection)
	}

	id := s.newID()
	now := s.now()
	raw, err := encodeFields(fields, now)
	if err != nil {
		return "", err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		collection, id, raw, now, now,
	); err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}

	s.notify(collection, id)
	return id, nil
}

// Subscribe registers a live subscription. Bursts of writes are coalesced:
// the subscriber always receives the latest state, never a stale one.
func (s *SQLiteStore) Subscribe(ctx context.Context, path string) (<-chan Event, error) {
	if _, _, _, err := SplitPath(path); err != nil {
		return nil, err
	}

	sub := &subscription{path: path, dirty: make(chan struct{}, 1)}
	sub.dirty <- struct{}{}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	out := make(chan Event)
	go func() {
		defer close(out)
		defer s.unsubscribe(sub)

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.dirty:
			}

			snap, err := s.snapshot(ctx, path)
			if err != nil && ctx.Err() != nil {
				return
			}

			select {
			case out <- Event{Snapshot: snap, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// SubscriberCount returns the number of live subscriptions.
func (s *SQLiteStore) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *SQLiteStore) unsubscribe(sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

func (s *SQLiteStore) notify(collection, id string) {
	docPath := DocPath(collection, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs {
		if sub.path != collection && sub.path != docPath {
			continue
		}
		select {
		case sub.dirty <- struct{}{}:
		default:
			// Already marked dirty; the pending re-read will see this write.
		}
	}
}

func (s *SQLiteStore) snapshot(ctx context.Context, path string) (Snapshot, error) {
	collection, id, isCollection, err := SplitPath(path)
	if err != nil {
		return Snapshot{Path: path}, err
	}

	if isCollection {
		docs, err := s.listDocs(ctx, collection)
		if err != nil {
			return Snapshot{Path: path}, err
		}
		return Snapshot{Path: path, Docs: docs}, nil
	}

	doc, err := s.getDoc(ctx, collection, id)
	if errors.Is(err, ErrNotFound) {
		return Snapshot{Path: path}, nil
	}
	if err != nil {
		return Snapshot{Path: path}, err
	}
	return Snapshot{Path: path, Docs: []Document{doc}}, nil
}

func (s *SQLiteStore) docPath(path string) (collection, id string, err error) {
	collection, id, isCollection, err := SplitPath(path)
	if err != nil {
		return "", "", err
	}
	if isCollection {
		return "", "", fmt.Errorf("%w: %q is a collection", ErrInvalidPath, path)
	}
	return collection, id, nil
}

func encodeFields(fields Fields, now time.Time) (string, error) {
	resolved := make(Fields, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			v = now
		}
		resolved[k] = v
	}

	data, err := json.Marshal(resolved)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(data), nil
}

func decodeFields(raw string) (Fields, error) {
	fields := Fields{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = Fields{}
	}
	return fields, nil
}
