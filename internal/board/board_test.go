package board

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukerupert/homesync/internal/docstore"
	"github.com/dukerupert/homesync/internal/docstore/docstoretest"
	"github.com/dukerupert/homesync/internal/model"
	"github.com/dukerupert/homesync/internal/syncerr"
)

type fakeRecorder struct {
	mu    sync.Mutex
	types []model.LogType
}

func (r *fakeRecorder) Record(_ context.Context, _ string, typ model.LogType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, typ)
}

func setupBoard(t *testing.T) (*Board, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{}
	return New(docstoretest.New(), rec, slog.New(slog.NewTextHandler(io.Discard, nil))), rec
}

func TestApply(t *testing.T) {
	tests := []struct {
		name        string
		event       docstore.Event
		wantMessage string
		wantStatus  string
	}{
		{
			name:        "message present",
			event:       docstore.Event{Snapshot: docstoretest.Doc(Path, docstore.Fields{"text": "Dinner at 8"})},
			wantMessage: "Dinner at 8",
			wantStatus:  "",
		},
		{
			name:        "document absent",
			event:       docstore.Event{Snapshot: docstoretest.Doc(Path, nil)},
			wantMessage: "",
			wantStatus:  StatusEmpty,
		},
		{
			name:        "text field absent",
			event:       docstore.Event{Snapshot: docstoretest.Doc(Path, docstore.Fields{"author": "Mom"})},
			wantMessage: "",
			wantStatus:  StatusNoText,
		},
		{
			name:        "text field wrong type",
			event:       docstore.Event{Snapshot: docstoretest.Doc(Path, docstore.Fields{"text": 42})},
			wantMessage: "",
			wantStatus:  StatusNoText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, rec := setupBoard(t)
			b.apply(context.Background(), tt.event)

			if got := b.Message().Get(); got != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got, tt.wantMessage)
			}
			if got := b.Status().Get(); got != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got, tt.wantStatus)
			}
			if len(rec.types) != 0 {
				t.Errorf("recorded %v, want nothing", rec.types)
			}
		})
	}
}

func TestApplyReadErrorKeepsMessage(t *testing.T) {
	b, rec := setupBoard(t)
	ctx := context.Background()

	b.apply(ctx, docstore.Event{Snapshot: docstoretest.Doc(Path, docstore.Fields{"text": "Hi"})})
	b.apply(ctx, docstore.Event{Snapshot: docstore.Snapshot{Path: Path}, Err: errors.New("denied")})

	if got := b.Message().Get(); got != "Hi" {
		t.Errorf("Message = %q, want stale Hi", got)
	}
	if got := b.Status().Get(); got != StatusFailed {
		t.Errorf("Status = %q, want %q", got, StatusFailed)
	}
	if len(rec.types) != 1 || rec.types[0] != model.LogError {
		t.Errorf("recorded %v, want one ERROR", rec.types)
	}
}

func TestInitialStatusIsLoading(t *testing.T) {
	b, _ := setupBoard(t)
	if got := b.Status().Get(); got != StatusLoading {
		t.Errorf("Status = %q, want %q", got, StatusLoading)
	}
}

func TestObserveFollowsStore(t *testing.T) {
	b, _ := setupBoard(t)
	fake := b.store.(*docstoretest.Fake)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 4)
	b.Message().Watch(func(s string) { changed <- s })

	if err := b.Observe(ctx); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	fake.Push(docstoretest.Doc(Path, docstore.Fields{"text": "Feed the cat"}))

	if got := <-changed; got != "Feed the cat" {
		t.Errorf("Message = %q", got)
	}
}

func TestObserveSubscribeFailure(t *testing.T) {
	b, _ := setupBoard(t)
	b.store.(*docstoretest.Fake).FailOn("subscribe", errors.New("offline"))

	var readErr *syncerr.ReadError
	if err := b.Observe(context.Background()); !errors.As(err, &readErr) {
		t.Fatalf("Observe error = %v, want ReadError", err)
	}
}
