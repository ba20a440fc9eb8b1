// Package dashboard wires the synchronized components together. It owns the
// subscriptions of one attached session and exposes a combined read-only
// view plus the user commands.
package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/homesync/internal/actionlog"
	"github.com/dukerupert/homesync/internal/board"
	"github.com/dukerupert/homesync/internal/device"
	"github.com/dukerupert/homesync/internal/docstore"
	"github.com/dukerupert/homesync/internal/model"
	"github.com/dukerupert/homesync/internal/reminder"
	"github.com/dukerupert/homesync/internal/weather"
)

// Entity names reported to change watchers.
const (
	EntityDevices   = "devices"
	EntityReminders = "reminders"
	EntityActionLog = "action_log"
	EntityWeather   = "weather"
	EntityLocation  = "location"
	EntityMessage   = "message"
)

type Dashboard struct {
	trail     *actionlog.Trail
	devices   *device.Controller
	reminders *reminder.Store
	weather   *weather.Cache
	board     *board.Board
	logger    *slog.Logger
	now       func() time.Time
}

// View is a point-in-time copy of every projection.
type View struct {
	Devices       []model.DeviceState    `json:"devices"`
	Reminders     []reminder.WithStatus  `json:"reminders"`
	ActionLog     []model.ActionLogEntry `json:"action_log"`
	Weather       *model.WeatherSnapshot `json:"weather"`
	WeatherStatus string                 `json:"weather_status"`
	Location      string                 `json:"location"`
	Message       string                 `json:"message"`
	MessageStatus string                 `json:"message_status"`
}

func New(store docstore.Store, fetcher weather.Fetcher, defaultLocation string, logger *slog.Logger) *Dashboard {
	trail := actionlog.NewTrail(store, logger.With("component", "action_log"))
	return &Dashboard{
		trail:     trail,
		devices:   device.NewController(store, trail, logger.With("component", "devices")),
		reminders: reminder.NewStore(store, trail, logger.With("component", "reminders")),
		weather:   weather.NewCache(store, fetcher, trail, defaultLocation, logger.With("component", "weather")),
		board:     board.New(store, trail, logger.With("component", "board")),
		logger:    logger,
		now:       time.Now,
	}
}

// Attach starts every subscription. They all end when ctx is done; on error
// the caller should cancel ctx to release the ones already started.
func (d *Dashboard) Attach(ctx context.Context) error {
	if err := d.trail.Observe(ctx); err != nil {
		// The trail is display only; the other entities still sync without it.
		d.logger.Error("observe action log", "error", err)
	}
	if err := d.devices.ObserveAll(ctx); err != nil {
		return err
	}
	if err := d.reminders.Observe(ctx); err != nil {
		return err
	}
	if err := d.weather.ObserveLocation(ctx); err != nil {
		return err
	}
	if err := d.board.Observe(ctx); err != nil {
		return err
	}
	d.logger.Info("dashboard attached")
	return nil
}

// Wait blocks until in-flight weather fetches have finished.
func (d *Dashboard) Wait() {
	d.weather.Wait()
}

func (d *Dashboard) View() View {
	return View{
		Devices:       d.devices.States(),
		Reminders:     d.reminders.WithStatuses(d.now()),
		ActionLog:     d.trail.Entries().Get(),
		Weather:       d.weather.Weather().Get(),
		WeatherStatus: d.weather.Status().Get(),
		Location:      d.weather.Location().Get(),
		Message:       d.board.Message().Get(),
		MessageStatus: d.board.Status().Get(),
	}
}

// Watch calls fn with the entity name whenever one of the projections
// changes. fn runs on the goroutine that applied the change and must not
// block. The returned cancel removes every registration.
func (d *Dashboard) Watch(fn func(entity string)) (cancel func()) {
	var cancels []func()
	for _, dev := range model.Devices {
		if state, ok := d.devices.State(dev.ID); ok {
			cancels = append(cancels, state.Watch(func(bool) { fn(EntityDevices) }))
		}
	}
	cancels = append(cancels,
		d.reminders.Reminders().Watch(func([]model.Reminder) { fn(EntityReminders) }),
		d.trail.Entries().Watch(func([]model.ActionLogEntry) { fn(EntityActionLog) }),
		d.weather.Weather().Watch(func(*model.WeatherSnapshot) { fn(EntityWeather) }),
		d.weather.Status().Watch(func(string) { fn(EntityWeather) }),
		d.weather.Location().Watch(func(string) { fn(EntityLocation) }),
		d.board.Message().Watch(func(string) { fn(EntityMessage) }),
		d.board.Status().Watch(func(string) { fn(EntityMessage) }),
	)
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

func (d *Dashboard) ToggleDevice(ctx context.Context, id model.DeviceID) error {
	return d.devices.Toggle(ctx, id)
}

func (d *Dashboard) CreateReminder(ctx context.Context, text string, reminderAt *time.Time) (string, error) {
	return d.reminders.Create(ctx, text, reminderAt)
}

func (d *Dashboard) SetReminderCompleted(ctx context.Context, id string, completed bool) error {
	return d.reminders.SetCompleted(ctx, id, completed)
}

func (d *Dashboard) DeleteReminder(ctx context.Context, id string) error {
	return d.reminders.Delete(ctx, id)
}

func (d *Dashboard) DismissLogEntry(ctx context.Context, id string) error {
	return d.trail.Dismiss(ctx, id)
}

func (d *Dashboard) UpdateLocation(ctx context.Context, location string) error {
	return d.weather.UpdateLocation(ctx, location)
}
