package reminder

import (
	"sort"

	"github.com/dukerupert/homesync/internal/model"
)

// Sort orders reminders for display: incomplete before completed, then newest
// createdAt first. Reminders without createdAt go after those with one; ties
// keep snapshot order.
func Sort(reminders []model.Reminder) {
	sort.SliceStable(reminders, func(i, j int) bool {
		a, b := reminders[i], reminders[j]
		if a.IsCompleted != b.IsCompleted {
			return !a.IsCompleted
		}
		switch {
		case a.CreatedAt == nil && b.CreatedAt == nil:
			return false
		case a.CreatedAt == nil:
			return false
		case b.CreatedAt == nil:
			return true
		}
		return a.CreatedAt.After(*b.CreatedAt)
	})
}
