package references

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/noterefs/internal/document"
)

// ErrNotEnabled is returned for documents the manager is not tracking.
var ErrNotEnabled = errors.New("references: not enabled for document")

type instance struct {
	ctx   context.Context
	doc   *document.Document
	store *Store
	phase Phase
	delay time.Duration
	timer Timer

	unsubscribe []func()
}

func (i *instance) cancelTimer() {
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}

// Manager turns the reference summary on and off per document and drives
// its refresh schedule.
type Manager struct {
	opts      Options
	fetcher   *Fetcher
	renderer  *Renderer
	instances map[*document.Document]*instance
}

// NewManager validates opts and returns a manager with no enabled documents.
func NewManager(opts Options) (*Manager, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}
	return &Manager{
		opts:      opts,
		fetcher:   newFetcher(opts),
		renderer:  newRenderer(opts),
		instances: make(map[*document.Document]*instance),
	}, nil
}

// Enable starts maintaining the summary in doc. The region is drawn right
// away with placeholder counts and the first fetch runs after Delays.First
// of idle time. Enabling an already enabled document is a no-op.
func (m *Manager) Enable(ctx context.Context, doc *document.Document) error {
	if m.opts.Host == nil {
		return errors.New("references: no host to schedule on")
	}
	if _, ok := m.instances[doc]; ok {
		return nil
	}

	inst := &instance{ctx: ctx, doc: doc, store: NewStore()}
	m.instances[doc] = inst

	inst.unsubscribe = append(inst.unsubscribe,
		doc.OnBeforePersist(func(d *document.Document) {
			if _, err := m.renderer.Remove(d); err != nil {
				m.opts.Logger.Warn("references: remove before save failed",
					slog.String("path", d.Path()),
					slog.String("error", err.Error()))
			}
		}),
		doc.OnAfterPersist(func(d *document.Document) {
			m.refresh(inst)
		}),
	)

	m.render(inst)
	m.schedule(inst, m.opts.Config.Delays.First)
	m.opts.Logger.Debug("references: enabled", slog.String("path", doc.Path()))
	return nil
}

// Disable stops the schedule, erases the region and detaches the persist
// hooks. Disabling a document that is not enabled is a no-op.
func (m *Manager) Disable(doc *document.Document) error {
	inst, ok := m.instances[doc]
	if !ok {
		return nil
	}
	delete(m.instances, doc)
	inst.cancelTimer()
	for _, fn := range inst.unsubscribe {
		fn()
	}

	if _, err := m.renderer.Remove(doc); err != nil {
		return fmt.Errorf("references: disable %s: %w", doc.Path(), err)
	}
	m.opts.Logger.Debug("references: disabled", slog.String("path", doc.Path()))
	return nil
}

// DisableAll disables every tracked document.
func (m *Manager) DisableAll() error {
	var errs []error
	for doc := range m.instances {
		if err := m.Disable(doc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Enabled reports whether doc is tracked.
func (m *Manager) Enabled(doc *document.Document) bool {
	_, ok := m.instances[doc]
	return ok
}

// Phase returns the scheduler phase of doc.
func (m *Manager) Phase(doc *document.Document) (Phase, error) {
	inst, ok := m.instances[doc]
	if !ok {
		return PhaseUninitialized, ErrNotEnabled
	}
	return inst.phase, nil
}

// Snapshot returns the lists currently held for doc.
func (m *Manager) Snapshot(doc *document.Document) (Snapshot, error) {
	inst, ok := m.instances[doc]
	if !ok {
		return Snapshot{}, ErrNotEnabled
	}
	return inst.store.Get(), nil
}

// Refresh recomputes doc's lists without yielding to input, redraws the
// region and restarts the schedule.
func (m *Manager) Refresh(doc *document.Document) error {
	inst, ok := m.instances[doc]
	if !ok {
		return ErrNotEnabled
	}
	m.refresh(inst)
	inst.phase = m.phaseOf(inst)
	m.schedule(inst, m.delayFor(inst.phase))
	return nil
}

func (m *Manager) refresh(inst *instance) {
	if err := m.fetcher.Fetch(inst.ctx, inst.doc, inst.store, nil); err != nil && !errors.Is(err, ErrNoBackingFile) {
		m.opts.Logger.Warn("references: refresh failed",
			slog.String("path", inst.doc.Path()),
			slog.String("error", err.Error()))
	}
	m.render(inst)
}

// Activate opens the reference under offset, if any, and returns its path.
func (m *Manager) Activate(doc *document.Document, offset int) (string, bool) {
	b, ok := doc.ButtonAt(offset)
	if !ok || b.Payload == "" {
		return "", false
	}
	m.opts.Open(b.Payload)
	return b.Payload, true
}

// Compute runs a single uninterrupted fetch for doc outside any schedule.
func (m *Manager) Compute(ctx context.Context, doc *document.Document) (Snapshot, error) {
	store := NewStore()
	if err := m.fetcher.Fetch(ctx, doc, store, nil); err != nil {
		return Snapshot{}, err
	}
	return store.Get(), nil
}

// Preview computes the lists for doc and returns its content with the region
// drawn in. doc itself is not changed.
func (m *Manager) Preview(ctx context.Context, doc *document.Document) ([]byte, Snapshot, error) {
	snap, err := m.Compute(ctx, doc)
	if err != nil {
		return nil, Snapshot{}, err
	}
	tmp := document.New(doc.Path(), doc.Content())
	if _, err := m.renderer.Render(tmp, snap); err != nil {
		return nil, Snapshot{}, err
	}
	return tmp.Content(), snap, nil
}

func (m *Manager) render(inst *instance) {
	snap := inst.store.Get()
	drawn, err := m.renderer.Render(inst.doc, snap)
	if err != nil {
		m.opts.Logger.Warn("references: render failed",
			slog.String("path", inst.doc.Path()),
			slog.String("error", err.Error()))
		return
	}
	if drawn && m.opts.OnRender != nil {
		m.opts.OnRender(inst.doc.Path(), snap)
	}
}
