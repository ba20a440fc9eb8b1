package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukerupert/homesync/internal/actionlog"
	"github.com/dukerupert/homesync/internal/docstore"
	"github.com/dukerupert/homesync/internal/model"
	"github.com/dukerupert/homesync/internal/observable"
	"github.com/dukerupert/homesync/internal/syncerr"
)

const (
	SettingsPath    = "settings/user_settings"
	DefaultLocation = "Saltillo"

	StatusLoading = "Loading weather..."
	StatusFailed  = "Could not load weather"

	fieldLocation = "weather_location"
)

// Fetcher returns current conditions for a location. *Client implements it.
type Fetcher interface {
	Current(ctx context.Context, location string) (Report, error)
}

// Cache holds the weather for the synchronized location. The location is
// mirrored from the settings document and every change to it triggers a
// fresh fetch.
type Cache struct {
	store   docstore.Store
	fetcher Fetcher
	trail   actionlog.Recorder
	logger  *slog.Logger

	location *observable.Value[string]
	weather  *observable.Value[*model.WeatherSnapshot]
	status   *observable.Value[string]

	// mu guards generation and inFlight, and serializes the
	// check-then-publish of fetch results against newer fetches.
	mu         sync.Mutex
	generation uint64
	inFlight   int
	fetches    sync.WaitGroup
}

func NewCache(store docstore.Store, fetcher Fetcher, trail actionlog.Recorder, defaultLocation string, logger *slog.Logger) *Cache {
	if strings.TrimSpace(defaultLocation) == "" {
		defaultLocation = DefaultLocation
	}
	return &Cache{
		store:    store,
		fetcher:  fetcher,
		trail:    trail,
		logger:   logger,
		location: observable.New(defaultLocation),
		weather:  observable.New[*model.WeatherSnapshot](nil),
		status:   observable.New(StatusLoading),
	}
}

func (c *Cache) Location() observable.Readable[string] { return c.location }

// Weather is nil while loading and after a failed fetch.
func (c *Cache) Weather() observable.Readable[*model.WeatherSnapshot] { return c.weather }

func (c *Cache) Status() observable.Readable[string] { return c.status }

// ObserveLocation mirrors the stored location until ctx is done, seeding it
// with the held default when the settings document has none.
func (c *Cache) ObserveLocation(ctx context.Context) error {
	events, err := c.store.Subscribe(ctx, SettingsPath)
	if err != nil {
		return &syncerr.ReadError{Path: SettingsPath, Err: err}
	}

	go func() {
		for ev := range events {
			c.applyLocation(ctx, ev)
		}
	}()
	return nil
}

func (c *Cache) applyLocation(ctx context.Context, ev docstore.Event) {
	if ev.Err != nil {
		c.logger.Error("read weather location", "error", ev.Err)
		c.trail.Record(ctx, "Error reading the weather location", model.LogError)
		if c.weather.Get() == nil && !c.fetching() {
			c.startFetch(ctx, c.location.Get())
		}
		return
	}

	doc, exists := ev.Snapshot.Doc()
	var stored string
	if exists {
		stored, _ = doc.Fields.String(fieldLocation)
		stored = strings.TrimSpace(stored)
	}

	if stored == "" {
		c.seed(ctx, exists)
		c.startFetch(ctx, c.location.Get())
		return
	}

	if stored != c.location.Get() {
		c.location.Set(stored)
		c.startFetch(ctx, stored)
		return
	}

	if c.weather.Get() == nil && !c.fetching() {
		c.startFetch(ctx, stored)
	}
}

// seed writes the held location into the settings document. An existing
// document keeps its other fields.
func (c *Cache) seed(ctx context.Context, docExists bool) {
	loc := c.location.Get()
	var err error
	if docExists {
		err = c.store.UpdateField(ctx, SettingsPath, fieldLocation, loc)
	} else {
		err = c.store.Set(ctx, SettingsPath, docstore.Fields{fieldLocation: loc})
	}
	if err != nil {
		c.logger.Error("seed weather location", "location", loc, "error", err)
		c.trail.Record(ctx, "Error saving the weather location", model.LogError)
		return
	}
	c.logger.Info("seeded weather location", "location", loc)
}

// Fetch loads the weather for location and waits for the result. A result
// superseded by a newer fetch is discarded.
func (c *Cache) Fetch(ctx context.Context, location string) error {
	gen := c.begin()
	return c.complete(ctx, gen, location)
}

// Wait blocks until every fetch started by the location subscription is done.
func (c *Cache) Wait() {
	c.fetches.Wait()
}

func (c *Cache) startFetch(ctx context.Context, location string) {
	gen := c.begin()
	c.fetches.Add(1)
	go func() {
		defer c.fetches.Done()
		_ = c.complete(ctx, gen, location)
	}()
}

func (c *Cache) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.inFlight++
	c.weather.Set(nil)
	c.status.Set(StatusLoading)
	return c.generation
}

func (c *Cache) fetching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

func (c *Cache) complete(ctx context.Context, gen uint64, location string) error {
	report, err := c.fetcher.Current(ctx, location)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--

	if gen != c.generation {
		c.logger.Debug("discard superseded weather", "location", location)
		return nil
	}

	if err != nil {
		c.weather.Set(nil)
		c.status.Set(StatusFailed)
		if ctx.Err() == nil {
			c.logger.Error("fetch weather", "location", location, "error", err)
			c.trail.Record(ctx, fmt.Sprintf("Could not load weather for %s", location), model.LogError)
		}
		return &syncerr.FetchError{Location: location, Err: err}
	}

	snap := ToSnapshot(report)
	c.weather.Set(&snap)
	c.status.Set("")
	return nil
}

// UpdateLocation writes a new location. It never fetches; the location
// subscription does once the write is observed.
func (c *Cache) UpdateLocation(ctx context.Context, location string) error {
	loc := strings.TrimSpace(location)
	if loc == "" {
		c.trail.Record(ctx, "Location cannot be empty", model.LogWarning)
		return &syncerr.ValidationError{Field: "location", Reason: "must not be blank"}
	}
	if loc == c.location.Get() {
		c.trail.Record(ctx, fmt.Sprintf("Location is already %s", loc), model.LogWarning)
		return &syncerr.ValidationError{Field: "location", Reason: "unchanged"}
	}

	err := c.store.UpdateField(ctx, SettingsPath, fieldLocation, loc)
	if errors.Is(err, docstore.ErrNotFound) {
		err = c.store.Set(ctx, SettingsPath, docstore.Fields{fieldLocation: loc})
	}
	if err != nil {
		c.logger.Error("update weather location", "location", loc, "error", err)
		c.trail.Record(ctx, "Error saving the location", model.LogError)
		return &syncerr.WriteError{Op: "update", Path: SettingsPath, Err: err}
	}

	c.trail.Record(ctx, fmt.Sprintf("Location updated to %s", loc), model.LogSuccess)
	return nil
}
