package reminder

import (
	"errors"
	"strings"

	"github.com/dukerupert/homesync/internal/docstore"
	"github.com/dukerupert/homesync/internal/model"
)

const (
	fieldText        = "text"
	fieldCreatedAt   = "createdAt"
	fieldReminderAt  = "reminderAt"
	fieldAuthor      = "author"
	fieldIsCompleted = "isCompleted"
	// Older clients wrote the completion flag under this name.
	fieldLegacyCompleted = "completed"
)

// Decode maps a reminder document. Documents without text or with malformed
// timestamps are rejected so the caller can skip them.
func Decode(doc docstore.Document) (model.Reminder, error) {
	text, ok := doc.Fields.String(fieldText)
	if !ok || strings.TrimSpace(text) == "" {
		return model.Reminder{}, errors.New("missing text")
	}

	createdAt, err := doc.Fields.Time(fieldCreatedAt)
	if err != nil {
		return model.Reminder{}, err
	}
	reminderAt, err := doc.Fields.Time(fieldReminderAt)
	if err != nil {
		return model.Reminder{}, err
	}

	author, ok := doc.Fields.String(fieldAuthor)
	if !ok || author == "" {
		author = model.DefaultReminderAuthor
	}

	completed, ok := doc.Fields.Bool(fieldIsCompleted)
	if !ok {
		completed, _ = doc.Fields.Bool(fieldLegacyCompleted)
	}

	return model.Reminder{
		ID:          doc.ID,
		Text:        text,
		CreatedAt:   createdAt,
		ReminderAt:  reminderAt,
		Author:      author,
		IsCompleted: completed,
	}, nil
}
