// Package reminder mirrors the reminders collection, keeps it in display
// order and issues create, completion and delete commands.
package reminder

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/homesync/internal/actionlog"
	"github.com/dukerupert/homesync/internal/docstore"
	"github.com/dukerupert/homesync/internal/model"
	"github.com/dukerupert/homesync/internal/observable"
	"github.com/dukerupert/homesync/internal/syncerr"
)

const Collection = "reminders"

type Store struct {
	store     docstore.Store
	trail     actionlog.Recorder
	logger    *slog.Logger
	reminders *observable.Value[[]model.Reminder]
}

// WithStatus pairs a reminder with its status at the time of the read.
type WithStatus struct {
	model.Reminder
	Status Status `json:"status"`
}

func NewStore(store docstore.Store, trail actionlog.Recorder, logger *slog.Logger) *Store {
	return &Store{
		store:     store,
		trail:     trail,
		logger:    logger,
		reminders: observable.New[[]model.Reminder](nil),
	}
}

// Reminders is the mirrored list in display order.
func (s *Store) Reminders() observable.Readable[[]model.Reminder] {
	return s.reminders
}

// WithStatuses classifies the current list against now.
func (s *Store) WithStatuses(now time.Time) []WithStatus {
	list := s.reminders.Get()
	out := make([]WithStatus, 0, len(list))
	for _, r := range list {
		out = append(out, WithStatus{Reminder: r, Status: ComputeStatus(r, now)})
	}
	return out
}

// Observe mirrors the whole collection until ctx is done.
func (s *Store) Observe(ctx context.Context) error {
	events, err := s.store.Subscribe(ctx, Collection)
	if err != nil {
		return &syncerr.ReadError{Path: Collection, Err: err}
	}

	go func() {
		for ev := range events {
			s.apply(ctx, ev)
		}
	}()
	return nil
}

func (s *Store) apply(ctx context.Context, ev docstore.Event) {
	if ev.Err != nil {
		s.logger.Error("read reminders", "error", ev.Err)
		s.trail.Record(ctx, "Error loading reminders", model.LogError)
		return
	}

	list := make([]model.Reminder, 0, len(ev.Snapshot.Docs))
	for _, doc := range ev.Snapshot.Docs {
		r, err := Decode(doc)
		if err != nil {
			s.logger.Debug("skip reminder", "id", doc.ID, "error", err)
			continue
		}
		list = append(list, r)
	}
	Sort(list)
	s.reminders.Set(list)
}

// Create inserts a new incomplete reminder. Blank text is rejected without
// touching the store.
func (s *Store) Create(ctx context.Context, text string, reminderAt *time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		s.trail.Record(ctx, "Reminder text cannot be empty", model.LogWarning)
		return "", &syncerr.ValidationError{Field: fieldText, Reason: "must not be blank"}
	}

	fields := docstore.Fields{
		fieldText:        text,
		fieldCreatedAt:   docstore.ServerTimestamp,
		fieldAuthor:      model.DefaultReminderAuthor,
		fieldIsCompleted: false,
	}
	if reminderAt != nil {
		fields[fieldReminderAt] = reminderAt.UTC()
	}

	id, err := s.store.Insert(ctx, Collection, fields)
	if err != nil {
		s.logger.Error("create reminder", "error", err)
		s.trail.Record(ctx, "Error adding reminder", model.LogError)
		return "", &syncerr.WriteError{Op: "insert", Path: Collection, Err: err}
	}

	s.trail.Record(ctx, "Reminder added", model.LogSuccess)
	return id, nil
}

// SetCompleted updates the completion flag. The list is reordered only when
// the resulting snapshot arrives.
func (s *Store) SetCompleted(ctx context.Context, id string, completed bool) error {
	path, err := docPath(id)
	if err != nil {
		return err
	}

	if err := s.store.UpdateField(ctx, path, fieldIsCompleted, completed); err != nil {
		s.logger.Error("update reminder", "id", id, "error", err)
		s.trail.Record(ctx, "Error updating reminder", model.LogError)
		return &syncerr.WriteError{Op: "update", Path: path, Err: err}
	}

	msg := "Reminder restored"
	if completed {
		msg = "Reminder completed"
	}
	s.trail.Record(ctx, msg, model.LogSuccess)
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	path, err := docPath(id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, path); err != nil {
		s.logger.Error("delete reminder", "id", id, "error", err)
		s.trail.Record(ctx, "Error deleting reminder", model.LogError)
		return &syncerr.WriteError{Op: "delete", Path: path, Err: err}
	}

	s.trail.Record(ctx, "Reminder deleted", model.LogSuccess)
	return nil
}

func docPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		return "", &syncerr.ValidationError{Field: "id", Reason: "must be a document id"}
	}
	return docstore.DocPath(Collection, id), nil
}
