// Package docstoretest provides an in-memory docstore.Store for tests. It
// records every call, can be told to fail specific operations, and only
// delivers snapshots when the test pushes them.
package docstoretest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukerupert/homesync/internal/docstore"
)

type Call struct {
	Op     string
	Path   string
	Field  string
	Value  any
	Fields docstore.Fields
}

type Fake struct {
	mu     sync.Mutex
	calls  []Call
	docs   map[string]docstore.Fields
	errs   map[string]error
	subs   map[string][]chan docstore.Event
	nextID int
}

func New() *Fake {
	return &Fake{
		docs: make(map[string]docstore.Fields),
		errs: make(map[string]error),
		subs: make(map[string][]chan docstore.Event),
	}
}

// FailOn makes every later call of op ("get", "set", "update", "delete",
// "insert", "subscribe") return err. A nil err clears the failure.
func (f *Fake) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Calls returns the recorded calls in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the recorded calls of a single op.
func (f *Fake) CallsTo(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.errs[c.Op]
}

func (f *Fake) Get(ctx context.Context, path string) (docstore.Document, error) {
	if err := f.record(Call{Op: "get", Path: path}); err != nil {
		return docstore.Document{}, err
	}
	_, id, _, err := docstore.SplitPath(path)
	if err != nil {
		return docstore.Document{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	fields, ok := f.docs[path]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docstore.Document{ID: id, Fields: fields.Clone()}, nil
}

func (f *Fake) Set(ctx context.Context, path string, fields docstore.Fields) error {
	if err := f.record(Call{Op: "set", Path: path, Fields: fields.Clone()}); err != nil {
		return err
	}
	f.mu.Lock()
	f.docs[path] = fields.Clone()
	f.mu.Unlock()
	return nil
}

func (f *Fake) UpdateField(ctx context.Context, path, field string, value any) error {
	if err := f.record(Call{Op: "update", Path: path, Field: field, Value: value}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fields, ok := f.docs[path]
	if !ok {
		return docstore.ErrNotFound
	}
	fields[field] = value
	return nil
}

func (f *Fake) Delete(ctx context.Context, path string) error {
	if err := f.record(Call{Op: "delete", Path: path}); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.docs, path)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Insert(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := f.record(Call{Op: "insert", Path: collection, Fields: fields.Clone()}); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("doc-%d", f.nextID)
	f.docs[docstore.DocPath(collection, id)] = fields.Clone()
	return id, nil
}

func (f *Fake) Subscribe(ctx context.Context, path string) (<-chan docstore.Event, error) {
	if err := f.record(Call{Op: "subscribe", Path: path}); err != nil {
		return nil, err
	}
	ch := make(chan docstore.Event, 16)

	f.mu.Lock()
	f.subs[path] = append(f.subs[path], ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subs[path]
		for i, c := range subs {
			if c == ch {
				f.subs[path] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}()
	return ch, nil
}

// Push delivers a snapshot to every subscriber of its path.
func (f *Fake) Push(snap docstore.Snapshot) {
	f.send(snap.Path, docstore.Event{Snapshot: snap})
}

// PushError delivers a subscription error on path.
func (f *Fake) PushError(path string, err error) {
	f.send(path, docstore.Event{Snapshot: docstore.Snapshot{Path: path}, Err: err})
}

func (f *Fake) send(path string, ev docstore.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[path] {
		ch <- ev
	}
}

// Subscribers returns the number of live subscriptions on path.
func (f *Fake) Subscribers(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[path])
}

// Doc builds a document-path snapshot. Nil fields means the document is absent.
func Doc(path string, fields docstore.Fields) docstore.Snapshot {
	if fields == nil {
		return docstore.Snapshot{Path: path}
	}
	_, id, _, _ := docstore.SplitPath(path)
	return docstore.Snapshot{Path: path, Docs: []docstore.Document{{ID: id, Fields: fields}}}
}
