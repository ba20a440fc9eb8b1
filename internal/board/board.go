// Package board mirrors the shared family message. The message is written by
// other household devices; this side only reads it.
package board

import (
	"context"
	"log/slog"

	"github.com/dukerupert/homesync/internal/actionlog"
	"github.com/dukerupert/homesync/internal/docstore"
	"github.com/dukerupert/homesync/internal/model"
	"github.com/dukerupert/homesync/internal/observable"
	"github.com/dukerupert/homesync/internal/syncerr"
)

const (
	Path = "board/current_message"

	StatusLoading = "Loading message..."
	StatusEmpty   = "No messages yet."
	StatusNoText  = "No message."
	StatusFailed  = "Could not load message"

	fieldText = "text"
)

type Board struct {
	store  docstore.Store
	trail  actionlog.Recorder
	logger *slog.Logger

	message *observable.Value[string]
	status  *observable.Value[string]
}

func New(store docstore.Store, trail actionlog.Recorder, logger *slog.Logger) *Board {
	return &Board{
		store:   store,
		trail:   trail,
		logger:  logger,
		message: observable.New(""),
		status:  observable.New(StatusLoading),
	}
}

// Message is the current text, empty when there is none.
func (b *Board) Message() observable.Readable[string] { return b.message }

// Status describes why Message is empty; it is blank while a message shows.
func (b *Board) Status() observable.Readable[string] { return b.status }

func (b *Board) Observe(ctx context.Context) error {
	events, err := b.store.Subscribe(ctx, Path)
	if err != nil {
		return &syncerr.ReadError{Path: Path, Err: err}
	}

	go func() {
		for ev := range events {
			b.apply(ctx, ev)
		}
	}()
	return nil
}

func (b *Board) apply(ctx context.Context, ev docstore.Event) {
	if ev.Err != nil {
		b.logger.Error("read family message", "error", ev.Err)
		b.status.Set(StatusFailed)
		b.trail.Record(ctx, "Error loading the family message", model.LogError)
		return
	}

	doc, ok := ev.Snapshot.Doc()
	if !ok {
		b.message.Set("")
		b.status.Set(StatusEmpty)
		return
	}

	text, ok := doc.Fields.String(fieldText)
	if !ok {
		b.message.Set("")
		b.status.Set(StatusNoText)
		return
	}

	b.message.Set(text)
	b.status.Set("")
}
