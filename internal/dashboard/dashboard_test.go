package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/homesync/internal/board"
	"github.com/dukerupert/homesync/internal/database"
	"github.com/dukerupert/homesync/internal/device"
	"github.com/dukerupert/homesync/internal/docstore"
	"github.com/dukerupert/homesync/internal/docstore/docstoretest"
	"github.com/dukerupert/homesync/internal/model"
	"github.com/dukerupert/homesync/internal/syncerr"
	"github.com/dukerupert/homesync/internal/weather"
)

type stubFetcher struct{}

func (stubFetcher) Current(_ context.Context, location string) (weather.Report, error) {
	return weather.Report{
		Temperature: 24.6,
		Conditions:  []weather.Condition{{Main: "Clouds", Description: "nubes dispersas", Icon: "03d"}},
	}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// setupAttached returns a dashboard attached to a fresh SQLite store, after
// the device documents have been created and the first weather is loaded.
func setupAttached(t *testing.T) (*Dashboard, *docstore.SQLiteStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := docstore.NewSQLiteStore(db, discard())
	d := New(store, stubFetcher{}, "", discard())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		d.Wait()
	})
	if err := d.Attach(ctx); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	waitFor(t, func() bool {
		for _, dev := range model.Devices {
			if _, err := store.Get(context.Background(), device.Path(dev.ID)); err != nil {
				return false
			}
		}
		return d.View().Weather != nil
	})
	return d, store
}

func hasEntry(entries []model.ActionLogEntry, message string, typ model.LogType) bool {
	for _, e := range entries {
		if e.Message == message && e.Type == typ {
			return true
		}
	}
	return false
}

func TestAttachBootstrapsAndLoads(t *testing.T) {
	d, store := setupAttached(t)

	v := d.View()
	if len(v.Devices) != len(model.Devices) {
		t.Fatalf("devices = %d, want %d", len(v.Devices), len(model.Devices))
	}
	for _, s := range v.Devices {
		if s.IsOn {
			t.Errorf("%s is on after bootstrap", s.DeviceID)
		}
	}

	if v.Location != weather.DefaultLocation {
		t.Errorf("Location = %q, want %q", v.Location, weather.DefaultLocation)
	}
	want := model.WeatherSnapshot{TemperatureCelsius: 24, Description: "Nubes dispersas", Icon: model.IconPartlyCloudy}
	if *v.Weather != want {
		t.Errorf("Weather = %+v, want %+v", *v.Weather, want)
	}

	doc, err := store.Get(context.Background(), weather.SettingsPath)
	if err != nil {
		t.Fatalf("settings not seeded: %v", err)
	}
	if loc, _ := doc.Fields.String("weather_location"); loc != weather.DefaultLocation {
		t.Errorf("seeded location = %q", loc)
	}

	waitFor(t, func() bool { return d.View().MessageStatus == board.StatusEmpty })
}

func TestToggleReachesView(t *testing.T) {
	d, _ := setupAttached(t)
	ctx := context.Background()

	if err := d.ToggleDevice(ctx, model.CoffeeMaker); err != nil {
		t.Fatalf("ToggleDevice: %v", err)
	}

	waitFor(t, func() bool {
		for _, s := range d.View().Devices {
			if s.DeviceID == model.CoffeeMaker {
				return s.IsOn
			}
		}
		return false
	})
	waitFor(t, func() bool {
		return hasEntry(d.View().ActionLog, "Coffee maker turned on", model.LogSuccess)
	})
}

func TestReminderLifecycle(t *testing.T) {
	d, _ := setupAttached(t)
	ctx := context.Background()

	id, err := d.CreateReminder(ctx, "  Water the plants ", nil)
	if err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}
	waitFor(t, func() bool { return len(d.View().Reminders) == 1 })

	r := d.View().Reminders[0]
	if r.ID != id || r.Text != "Water the plants" || r.Author != model.DefaultReminderAuthor {
		t.Errorf("reminder = %+v", r)
	}
	if r.CreatedAt == nil {
		t.Error("createdAt not assigned by the store")
	}

	if err := d.SetReminderCompleted(ctx, id, true); err != nil {
		t.Fatalf("SetReminderCompleted: %v", err)
	}
	waitFor(t, func() bool {
		rs := d.View().Reminders
		return len(rs) == 1 && rs[0].IsCompleted
	})

	if err := d.DeleteReminder(ctx, id); err != nil {
		t.Fatalf("DeleteReminder: %v", err)
	}
	waitFor(t, func() bool { return len(d.View().Reminders) == 0 })
}

func TestDismissLogEntry(t *testing.T) {
	d, _ := setupAttached(t)
	ctx := context.Background()

	if err := d.UpdateLocation(ctx, ""); !errors.Is(err, syncerr.ErrValidation) {
		t.Fatalf("UpdateLocation blank: err = %v", err)
	}
	waitFor(t, func() bool { return len(d.View().ActionLog) > 0 })

	entry := d.View().ActionLog[0]
	if entry.Type != model.LogWarning {
		t.Fatalf("newest entry = %+v, want the WARNING", entry)
	}
	if err := d.DismissLogEntry(ctx, entry.ID); err != nil {
		t.Fatalf("DismissLogEntry: %v", err)
	}
	waitFor(t, func() bool {
		for _, e := range d.View().ActionLog {
			if e.ID == entry.ID {
				return false
			}
		}
		return true
	})
}

func TestUpdateLocationRefetches(t *testing.T) {
	d, _ := setupAttached(t)

	if err := d.UpdateLocation(context.Background(), "Monterrey"); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	waitFor(t, func() bool {
		v := d.View()
		return v.Location == "Monterrey" && v.Weather != nil
	})
}

type entitySet struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (s *entitySet) add(entity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[entity] = true
}

func (s *entitySet) has(entity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[entity]
}

func TestWatchReportsChanges(t *testing.T) {
	d, _ := setupAttached(t)
	ctx := context.Background()

	seen := &entitySet{seen: make(map[string]bool)}
	cancel := d.Watch(seen.add)

	if err := d.ToggleDevice(ctx, model.LivingRoomLight); err != nil {
		t.Fatalf("ToggleDevice: %v", err)
	}
	if _, err := d.CreateReminder(ctx, "Buy milk", nil); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	waitFor(t, func() bool {
		return seen.has(EntityDevices) && seen.has(EntityReminders) && seen.has(EntityActionLog)
	})

	cancel()
	if n := d.reminders.Reminders().(interface{ WatcherCount() int }).WatcherCount(); n != 0 {
		t.Errorf("reminder watchers after cancel = %d, want 0", n)
	}
}

func TestAttachFailsWhenSubscribeFails(t *testing.T) {
	fake := docstoretest.New()
	fake.FailOn("subscribe", errors.New("offline"))
	d := New(fake, stubFetcher{}, "Monterrey", discard())

	err := d.Attach(context.Background())
	var readErr *syncerr.ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("Attach error = %v, want ReadError", err)
	}
	if !strings.HasPrefix(readErr.Path, device.Collection) {
		t.Errorf("failed path = %q, want a device path", readErr.Path)
	}
	if got := d.View().Location; got != "Monterrey" {
		t.Errorf("Location = %q, want the configured default", got)
	}
}
