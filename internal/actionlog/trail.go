// Package actionlog is the append-only audit trail of command outcomes. Every
// entry is written to the document store and mirrored back, newest first, for
// transient display.
package actionlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dukerupert/homesync/internal/docstore"
	"github.com/dukerupert/homesync/internal/model"
	"github.com/dukerupert/homesync/internal/observable"
	"github.com/dukerupert/homesync/internal/syncerr"
)

const Collection = "action_log"

// Recorder is the write side of the trail used by the other components.
type Recorder interface {
	Record(ctx context.Context, message string, typ model.LogType)
}

type Trail struct {
	store   docstore.Store
	entries *observable.Value[[]model.ActionLogEntry]
	logger  *slog.Logger
}

func NewTrail(store docstore.Store, logger *slog.Logger) *Trail {
	return &Trail{
		store:   store,
		entries: observable.New[[]model.ActionLogEntry](nil),
		logger:  logger,
	}
}

// Entries is the mirrored log, newest first.
func (t *Trail) Entries() observable.Readable[[]model.ActionLogEntry] {
	return t.entries
}

// Record appends an entry and never reports failure to the caller. A failed
// append goes to the diagnostic logger only; it must not be recorded again.
// The write outlives ctx cancellation so outcomes land after a detach.
func (t *Trail) Record(ctx context.Context, message string, typ model.LogType) {
	_, err := t.store.Insert(context.WithoutCancel(ctx), Collection, docstore.Fields{
		"message":   message,
		"type":      string(typ),
		"createdAt": docstore.ServerTimestamp,
	})
	if err != nil {
		t.logger.Error("append action log entry", "message", message, "type", typ, "error", err)
	}
}

// Observe mirrors the log collection until ctx is done.
func (t *Trail) Observe(ctx context.Context) error {
	events, err := t.store.Subscribe(ctx, Collection)
	if err != nil {
		return &syncerr.ReadError{Path: Collection, Err: err}
	}

	go func() {
		for ev := range events {
			t.apply(ev)
		}
	}()
	return nil
}

func (t *Trail) apply(ev docstore.Event) {
	if ev.Err != nil {
		t.logger.Error("read action log", "error", ev.Err)
		return
	}

	entries := make([]model.ActionLogEntry, 0, len(ev.Snapshot.Docs))
	for _, doc := range ev.Snapshot.Docs {
		entry, err := DecodeEntry(doc)
		if err != nil {
			t.logger.Debug("skip action log entry", "id", doc.ID, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	SortNewestFirst(entries)
	t.entries.Set(entries)
}

// Dismiss deletes one entry. A blank id is a no-op.
func (t *Trail) Dismiss(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}

	path := docstore.DocPath(Collection, id)
	if err := t.store.Delete(ctx, path); err != nil {
		t.logger.Error("dismiss action log entry", "id", id, "error", err)
		return &syncerr.WriteError{Op: "delete", Path: path, Err: err}
	}
	return nil
}

// DecodeEntry maps a log document. Documents without a message or with an
// unknown type are rejected.
func DecodeEntry(doc docstore.Document) (model.ActionLogEntry, error) {
	message, ok := doc.Fields.String("message")
	if !ok {
		return model.ActionLogEntry{}, errors.New("missing message")
	}
	typ, _ := doc.Fields.String("type")
	if !model.LogType(typ).Valid() {
		return model.ActionLogEntry{}, fmt.Errorf("unknown type %q", typ)
	}
	createdAt, err := doc.Fields.Time("createdAt")
	if err != nil {
		return model.ActionLogEntry{}, err
	}

	return model.ActionLogEntry{
		ID:        doc.ID,
		Message:   message,
		Type:      model.LogType(typ),
		CreatedAt: createdAt,
	}, nil
}

// SortNewestFirst orders entries by createdAt descending. Entries whose
// timestamp is still pending sort first.
func SortNewestFirst(entries []model.ActionLogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].CreatedAt, entries[j].CreatedAt
		switch {
		case a == nil && b == nil:
			return entries[i].ID > entries[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		case a.Equal(*b):
			return entries[i].ID > entries[j].ID
		}
		return a.After(*b)
	})
}
