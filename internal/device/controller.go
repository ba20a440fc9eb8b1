// Package device mirrors the on/off state of every device in the static
// registry and issues toggle commands.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/homesync/internal/actionlog"
	"github.com/dukerupert/homesync/internal/docstore"
	"github.com/dukerupert/homesync/internal/model"
	"github.com/dukerupert/homesync/internal/observable"
	"github.com/dukerupert/homesync/internal/syncerr"
)

const (
	Collection = "smarthome_devices"
	fieldIsOn  = "isOn"
)

var ErrUnknownDevice = errors.New("unknown device")

type Controller struct {
	store   docstore.Store
	trail   actionlog.Recorder
	logger  *slog.Logger
	devices []model.Device
	states  map[model.DeviceID]*observable.Value[bool]

	mu            sync.Mutex
	bootstrapping map[model.DeviceID]bool
}

func NewController(store docstore.Store, trail actionlog.Recorder, logger *slog.Logger) *Controller {
	states := make(map[model.DeviceID]*observable.Value[bool], len(model.Devices))
	for _, d := range model.Devices {
		states[d.ID] = observable.New(false)
	}
	return &Controller{
		store:         store,
		trail:         trail,
		logger:        logger,
		devices:       model.Devices,
		states:        states,
		bootstrapping: make(map[model.DeviceID]bool),
	}
}

func Path(id model.DeviceID) string {
	return docstore.DocPath(Collection, string(id))
}

// State is the mirrored isOn value of one device.
func (c *Controller) State(id model.DeviceID) (observable.Readable[bool], bool) {
	v, ok := c.states[id]
	return v, ok
}

// States returns the current state of every device in registry order.
func (c *Controller) States() []model.DeviceState {
	out := make([]model.DeviceState, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, model.DeviceState{DeviceID: d.ID, Name: d.Name, IsOn: c.states[d.ID].Get()})
	}
	return out
}

// ObserveAll subscribes to every registered device.
func (c *Controller) ObserveAll(ctx context.Context) error {
	for _, d := range c.devices {
		if err := c.Observe(ctx, d.ID); err != nil {
			return err
		}
	}
	return nil
}

// Observe keeps the local state of one device in step with its document
// until ctx is done, creating the document when it is missing.
func (c *Controller) Observe(ctx context.Context, id model.DeviceID) error {
	d, ok := model.LookupDevice(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}

	events, err := c.store.Subscribe(ctx, Path(id))
	if err != nil {
		return &syncerr.ReadError{Path: Path(id), Err: err}
	}

	go func() {
		for ev := range events {
			c.apply(ctx, d, ev)
		}
	}()
	return nil
}

func (c *Controller) apply(ctx context.Context, d model.Device, ev docstore.Event) {
	if ev.Err != nil {
		c.logger.Error("read device", "device", d.ID, "error", ev.Err)
		c.trail.Record(ctx, fmt.Sprintf("Error reading %s", d.Name), model.LogError)
		return
	}

	doc, exists := ev.Snapshot.Doc()
	if !exists {
		c.bootstrap(ctx, d)
		return
	}

	c.mu.Lock()
	delete(c.bootstrapping, d.ID)
	c.mu.Unlock()

	isOn, _ := doc.Fields.Bool(fieldIsOn)
	c.states[d.ID].Set(isOn)
}

// bootstrap creates the missing document once per absence. Further "absent"
// snapshots are ignored until the document shows up or the create fails.
func (c *Controller) bootstrap(ctx context.Context, d model.Device) {
	c.mu.Lock()
	if c.bootstrapping[d.ID] {
		c.mu.Unlock()
		return
	}
	c.bootstrapping[d.ID] = true
	c.mu.Unlock()

	c.logger.Info("create missing device document", "device", d.ID)
	if err := c.store.Set(ctx, Path(d.ID), docstore.Fields{fieldIsOn: false}); err != nil {
		c.mu.Lock()
		delete(c.bootstrapping, d.ID)
		c.mu.Unlock()

		c.logger.Error("create device document", "device", d.ID, "error", err)
		c.trail.Record(ctx, fmt.Sprintf("Error creating %s", d.Name), model.LogError)
	}
}

// Toggle writes the negation of the last mirrored state. The local state is
// left alone; it follows once the store delivers the new snapshot.
func (c *Controller) Toggle(ctx context.Context, id model.DeviceID) error {
	d, ok := model.LookupDevice(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}

	next := !c.states[id].Get()
	if err := c.store.UpdateField(ctx, Path(id), fieldIsOn, next); err != nil {
		c.logger.Error("toggle device", "device", id, "error", err)
		c.trail.Record(ctx, fmt.Sprintf("Error switching %s", d.Name), model.LogError)
		return &syncerr.WriteError{Op: "update", Path: Path(id), Err: err}
	}

	c.trail.Record(ctx, fmt.Sprintf("%s turned %s", d.Name, onOff(next)), model.LogSuccess)
	return nil
}

func onOff(isOn bool) string {
	if isOn {
		return "on"
	}
	return "off"
}
