package docstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/homesync/internal/database"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
	return Event{}
}

func TestSetAndGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "smarthome_devices/coffee_maker"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing: err = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "smarthome_devices/coffee_maker", Fields{"isOn": false}); err != nil {
		t.Fatalf("set: %v", err)
	}

	doc, err := s.Get(ctx, "smarthome_devices/coffee_maker")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ID != "coffee_maker" {
		t.Errorf("id = %q, want coffee_maker", doc.ID)
	}
	if v, ok := doc.Fields.Bool("isOn"); !ok || v {
		t.Errorf("isOn = %v, %v, want false, true", v, ok)
	}

	// Set replaces the whole document.
	if err := s.Set(ctx, "smarthome_devices/coffee_maker", Fields{"label": "kitchen"}); err != nil {
		t.Fatalf("set again: %v", err)
	}
	doc, _ = s.Get(ctx, "smarthome_devices/coffee_maker")
	if _, ok := doc.Fields["isOn"]; ok {
		t.Error("expected isOn to be gone after overwrite")
	}
}

func TestUpdateField(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	err := s.UpdateField(ctx, "settings/user_settings", "weather_location", "Monterrey")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: err = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "settings/user_settings", Fields{"weather_location": "Saltillo", "units": "metric"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.UpdateField(ctx, "settings/user_settings", "weather_location", "Monterrey"); err != nil {
		t.Fatalf("update: %v", err)
	}

	doc, err := s.Get(ctx, "settings/user_settings")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v, _ := doc.Fields.String("weather_location"); v != "Monterrey" {
		t.Errorf("weather_location = %q, want Monterrey", v)
	}
	if v, _ := doc.Fields.String("units"); v != "metric" {
		t.Errorf("units = %q, want metric (other fields must survive)", v)
	}
}

func TestInsertAssignsIDAndServerTimestamp(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	fixed := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	id, err := s.Insert(ctx, "reminders", Fields{"text": "Buy milk", "createdAt": ServerTimestamp})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatal("expected a store-assigned id")
	}

	doc, err := s.Get(ctx, DocPath("reminders", id))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	created, err := doc.Fields.Time("createdAt")
	if err != nil || created == nil {
		t.Fatalf("createdAt = %v, %v", created, err)
	}
	if !created.Equal(fixed) {
		t.Errorf("createdAt = %v, want %v", created, fixed)
	}
}

func TestInsertRejectsDocumentPath(t *testing.T) {
	s := setupStore(t)
	if _, err := s.Insert(context.Background(), "reminders/abc", Fields{}); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("err = %v, want ErrInvalidPath", err)
	}
}

func TestDeleteMissingSucceeds(t *testing.T) {
	s := setupStore(t)
	if err := s.Delete(context.Background(), "action_log/nope"); err != nil {
		t.Errorf("delete missing: %v", err)
	}
}

func TestSubscribeDocument(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, "smarthome_devices/living_room_light")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := nextEvent(t, ch)
	if ev.Err != nil {
		t.Fatalf("initial event error: %v", ev.Err)
	}
	if _, ok := ev.Snapshot.Doc(); ok {
		t.Fatal("expected initial snapshot of a missing document")
	}

	if err := s.Set(ctx, "smarthome_devices/living_room_light", Fields{"isOn": true}); err != nil {
		t.Fatalf("set: %v", err)
	}

	ev = nextEvent(t, ch)
	doc, ok := ev.Snapshot.Doc()
	if !ok {
		t.Fatal("expected document after set")
	}
	if v, _ := doc.Fields.Bool("isOn"); !v {
		t.Error("expected isOn = true")
	}
}

func TestSubscribeCollectionIgnoresOtherCollections(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, "reminders")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if ev := nextEvent(t, ch); len(ev.Snapshot.Docs) != 0 {
		t.Fatalf("initial docs = %d, want 0", len(ev.Snapshot.Docs))
	}

	if _, err := s.Insert(ctx, "action_log", Fields{"message": "unrelated"}); err != nil {
		t.Fatalf("insert log: %v", err)
	}
	if _, err := s.Insert(ctx, "reminders", Fields{"text": "Water plants"}); err != nil {
		t.Fatalf("insert reminder: %v", err)
	}

	ev := nextEvent(t, ch)
	if len(ev.Snapshot.Docs) != 1 {
		t.Fatalf("docs = %d, want 1", len(ev.Snapshot.Docs))
	}
	if v, _ := ev.Snapshot.Docs[0].Fields.String("text"); v != "Water plants" {
		t.Errorf("text = %q", v)
	}
}

func TestSubscribeCoalescesToLatest(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, "reminders")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	nextEvent(t, ch)

	for i := 0; i < 5; i++ {
		if _, err := s.Insert(ctx, "reminders", Fields{"text": "r"}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	// Snapshots may be coalesced but the last one must reflect every write.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if len(ev.Snapshot.Docs) == 5 {
				return
			}
		case <-deadline:
			t.Fatal("never observed all 5 reminders")
		}
	}
}

func TestSubscribeReleasedOnCancel(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := s.Subscribe(ctx, "board/current_message")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	nextEvent(t, ch)

	if got := s.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", got)
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// A final in-flight event is allowed; the channel must still close.
			<-ch
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel not closed after cancel")
	}

	if got := s.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() = %d after cancel, want 0", got)
	}
}

func TestSubscribeInvalidPath(t *testing.T) {
	s := setupStore(t)
	if _, err := s.Subscribe(context.Background(), "a/b/c"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("err = %v, want ErrInvalidPath", err)
	}
}
