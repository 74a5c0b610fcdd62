package references

import (
	"errors"
	"log/slog"
	"time"
)

// Phase is the scheduler state of one document.
type Phase int

// Scheduler phases.
const (
	PhaseUninitialized Phase = iota // no tick has run yet
	PhaseInitializing               // some list is still not ready
	PhaseMaintaining                // every list is ready
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseMaintaining:
		return "maintaining"
	default:
		return "uninitialized"
	}
}

// schedule arms the single idle timer of inst, cancelling any pending one.
func (m *Manager) schedule(inst *instance, d time.Duration) {
	inst.cancelTimer()
	inst.delay = d
	inst.timer = m.opts.Host.AfterIdle(d, func() { m.tick(inst) })
}

// tick is one scheduler cycle: a preemptible fetch, a render, and a rearm.
func (m *Manager) tick(inst *instance) {
	if m.instances[inst.doc] != inst {
		// Disabled after the callback was queued.
		return
	}
	inst.timer = nil

	err := m.fetcher.Fetch(inst.ctx, inst.doc, inst.store, m.opts.Host.InputPending)
	switch {
	case err == nil:
	case errors.Is(err, ErrPreempted):
		m.opts.Logger.Debug("references: fetch preempted", slog.String("path", inst.doc.Path()))
	case errors.Is(err, ErrNoBackingFile):
		m.opts.Logger.Debug("references: fetch skipped", slog.String("path", inst.doc.Path()))
	default:
		m.opts.Logger.Warn("references: fetch failed",
			slog.String("path", inst.doc.Path()),
			slog.String("error", err.Error()))
	}

	// Render even after a preemption so placeholders show up promptly;
	// sections are stored whole, so nothing partial is drawn.
	m.render(inst)

	inst.phase = m.phaseOf(inst)
	m.schedule(inst, m.delayFor(inst.phase))
}

func (m *Manager) phaseOf(inst *instance) Phase {
	if inst.store.Ready(m.fetcher.sections) {
		return PhaseMaintaining
	}
	return PhaseInitializing
}

func (m *Manager) delayFor(p Phase) time.Duration {
	d := m.opts.Config.Delays
	switch p {
	case PhaseUninitialized:
		return d.First
	case PhaseInitializing:
		return d.Init
	default:
		return d.Maintain
	}
}
