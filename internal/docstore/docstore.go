// Package docstore is the contract for the live document store that holds the
// authoritative copy of every synchronized entity, plus a SQLite-backed
// implementation of it.
//
// Paths alternate collection and document segments: "reminders" names a
// collection, "reminders/abc" a document inside it.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid path")
)

// Store is a document service with live subscriptions.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, fields Fields) error
	UpdateField(ctx context.Context, path, field string, value any) error
	Delete(ctx context.Context, path string) error
	Insert(ctx context.Context, collection string, fields Fields) (string, error)
	// Subscribe delivers the current snapshot of path and a fresh one after
	// every change, in order. The channel is closed once ctx is done.
	Subscribe(ctx context.Context, path string) (<-chan Event, error)
}

// Event is one delivery on a subscription: a snapshot or an error.
type Event struct {
	Snapshot Snapshot
	Err      error
}

type Document struct {
	ID     string
	Fields Fields
}

// Snapshot is the full state of a subscribed path. For a document path Docs
// holds zero or one entries; for a collection it holds every document.
type Snapshot struct {
	Path string
	Docs []Document
}

// Doc returns the document of a document-path snapshot, if it exists.
func (s Snapshot) Doc() (Document, bool) {
	if len(s.Docs) == 0 {
		return Document{}, false
	}
	return s.Docs[0], true
}

type serverTimestamp struct{}

// ServerTimestamp is replaced by the store's own clock when written.
var ServerTimestamp = serverTimestamp{}

// DocPath joins a collection and document id.
func DocPath(collection, id string) string {
	return collection + "/" + id
}

// SplitPath validates path and reports its collection, document id (empty for
// collection paths) and whether it names a collection.
func SplitPath(path string) (collection, id string, isCollection bool, err error) {
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return "", "", false, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	switch len(parts) {
	case 1:
		return parts[0], "", true, nil
	case 2:
		return parts[0], parts[1], false, nil
	default:
		return "", "", false, fmt.Errorf("%w: %q has %d segments", ErrInvalidPath, path, len(parts))
	}
}

// Fields is the field map of one document.
type Fields map[string]any

// Bool returns the named boolean field. ok is false when the field is absent
// or not a boolean.
func (f Fields) Bool(key string) (v bool, ok bool) {
	v, ok = f[key].(bool)
	return v, ok
}

func (f Fields) String(key string) (v string, ok bool) {
	v, ok = f[key].(string)
	return v, ok
}

// Time returns the named timestamp field, accepting time.Time values and
// RFC 3339 strings. A present but unparseable value is an error.
func (f Fields) Time(key string) (*time.Time, error) {
	raw, present := f[key]
	if !present || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case time.Time:
		return &v, nil
	case *time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("field %q: unexpected type %T", key, raw)
	}
}

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
