package model

import "time"

const DefaultReminderAuthor = "Family"

type Reminder struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	CreatedAt   *time.Time `json:"created_at"`
	ReminderAt  *time.Time `json:"reminder_at"`
	Author      string     `json:"author"`
	IsCompleted bool       `json:"is_completed"`
}
