package reminder

import (
	"time"

	"github.com/dukerupert/homesync/internal/model"
)

type Status string

const (
	StatusDone    Status = "done"
	StatusNone    Status = "none"
	StatusOverdue Status = "overdue"
	StatusDueSoon Status = "due_soon"
	StatusOnTrack Status = "on_track"
)

const dueSoonWindow = 24 * time.Hour

// ComputeStatus classifies a reminder relative to now. It is derived on every
// read and never stored.
func ComputeStatus(r model.Reminder, now time.Time) Status {
	if r.IsCompleted {
		return StatusDone
	}
	if r.ReminderAt == nil {
		return StatusNone
	}
	if now.After(*r.ReminderAt) {
		return StatusOverdue
	}
	if r.ReminderAt.Sub(now) < dueSoonWindow {
		return StatusDueSoon
	}
	return StatusOnTrack
}
