package model

import "time"

type LogType string

const (
	LogSuccess LogType = "SUCCESS"
	LogWarning LogType = "WARNING"
	LogError   LogType = "ERROR"
)

// Valid reports whether t is one of the known log types.
func (t LogType) Valid() bool {
	switch t {
	case LogSuccess, LogWarning, LogError:
		return true
	}
	return false
}

type ActionLogEntry struct {
	ID        string     `json:"id"`
	Message   string     `json:"message"`
	Type      LogType    `json:"type"`
	CreatedAt *time.Time `json:"created_at"`
}
