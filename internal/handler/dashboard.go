package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/homesync/internal/dashboard"
	"github.com/dukerupert/homesync/internal/model"
)

// Dashboard is the state and command surface the handlers drive.
type Dashboard interface {
	View() dashboard.View
	ToggleDevice(ctx context.Context, id model.DeviceID) error
	CreateReminder(ctx context.Context, text string, reminderAt *time.Time) (string, error)
	SetReminderCompleted(ctx context.Context, id string, completed bool) error
	DeleteReminder(ctx context.Context, id string) error
	DismissLogEntry(ctx context.Context, id string) error
	UpdateLocation(ctx context.Context, location string) error
}

// DashboardHandler serves the dashboard view and its commands. Commands
// answer 202: the change shows in the view once the store confirms it, and
// websocket clients are told when that happens.
type DashboardHandler struct {
	dash   Dashboard
	logger *slog.Logger
}

func NewDashboardHandler(dash Dashboard, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dash: dash, logger: logger}
}

func (h *DashboardHandler) View(w http.ResponseWriter, r *http.Request) {
	v := h.dash.View()
	if v.Devices == nil {
		v.Devices = []model.DeviceState{}
	}
	if v.ActionLog == nil {
		v.ActionLog = []model.ActionLogEntry{}
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *DashboardHandler) ToggleDevice(w http.ResponseWriter, r *http.Request) {
	id := model.DeviceID(r.PathValue("id"))
	if err := h.dash.ToggleDevice(r.Context(), id); err != nil {
		writeCommandError(w, h.logger, "toggle device", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type createReminderRequest struct {
	Text       string     `json:"text"`
	ReminderAt *time.Time `json:"reminder_at"`
}

func (h *DashboardHandler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	var req createReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	id, err := h.dash.CreateReminder(r.Context(), req.Text, req.ReminderAt)
	if err != nil {
		writeCommandError(w, h.logger, "create reminder", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

type completedRequest struct {
	Completed *bool `json:"completed"`
}

func (h *DashboardHandler) SetReminderCompleted(w http.ResponseWriter, r *http.Request) {
	var req completedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed is required")
		return
	}

	if err := h.dash.SetReminderCompleted(r.Context(), r.PathValue("id"), *req.Completed); err != nil {
		writeCommandError(w, h.logger, "update reminder", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *DashboardHandler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := h.dash.DeleteReminder(r.Context(), r.PathValue("id")); err != nil {
		writeCommandError(w, h.logger, "delete reminder", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *DashboardHandler) DismissLogEntry(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if err := h.dash.DismissLogEntry(r.Context(), id); err != nil {
		writeCommandError(w, h.logger, "dismiss log entry", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type locationRequest struct {
	Location string `json:"location"`
}

func (h *DashboardHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.dash.UpdateLocation(r.Context(), req.Location); err != nil {
		writeCommandError(w, h.logger, "update location", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
