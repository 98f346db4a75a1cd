package tui

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/greenforestpath/focuslock/internal/interaction"
	"github.com/greenforestpath/focuslock/internal/replicate"
	"github.com/greenforestpath/focuslock/internal/surface"
)

// sender abstracts tea.Program.Send so tests can capture delegate
// traffic without a running program.
type sender interface {
	Send(msg tea.Msg)
}

// Relay forwards delegate messages to a program attached after
// construction. The orchestrator and its delegate factory have to exist
// before the program that renders them; messages sent before Attach are
// dropped.
type Relay struct {
	mu      sync.Mutex
	program sender
}

// Attach sets the destination program.
func (r *Relay) Attach(p sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.program = p
}

// Send implements sender.
func (r *Relay) Send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// FocusTracker reports whether the terminal holds input focus. Shared by
// all delegates of one program: terminal focus is program-wide. The model
// writes it from focus/blur messages; delegates read it from the
// orchestrator loop.
type FocusTracker struct {
	focused atomic.Bool
}

// NewFocusTracker starts focused, matching a freshly started program.
func NewFocusTracker() *FocusTracker {
	t := &FocusTracker{}
	t.focused.Store(true)
	return t
}

// Set records the current focus state.
func (t *FocusTracker) Set(v bool) {
	t.focused.Store(v)
}

// Focused reports the current focus state.
func (t *FocusTracker) Focused() bool {
	return t.focused.Load()
}

// Factory returns a DelegateFactory that bridges the orchestrator's
// surface callbacks onto the Bubble Tea program as typed messages.
func Factory(program sender, focus *FocusTracker) replicate.DelegateFactory {
	return func(desc surface.Descriptor, role interaction.Role) replicate.Delegate {
		return &delegate{program: program, id: desc.ID, role: role, focus: focus}
	}
}

type delegate struct {
	program sender
	id      string
	role    interaction.Role
	focus   *FocusTracker
}

func (d *delegate) Show(desc surface.Descriptor, role interaction.Role, req interaction.Request) error {
	d.program.Send(surfaceShownMsg{desc: desc, role: role, req: req})
	return nil
}

func (d *delegate) Update(snap interaction.Snapshot) {
	d.program.Send(surfaceUpdatedMsg{id: d.id, snap: snap})
}

func (d *delegate) Feedback(text string) {
	d.program.Send(surfaceFeedbackMsg{id: d.id, text: text})
}

func (d *delegate) HasFocus() bool {
	return d.focus.Focused()
}

func (d *delegate) RequestFocus() {
	d.program.Send(focusRequestMsg{})
}

func (d *delegate) Teardown() {
	d.program.Send(surfaceTornDownMsg{id: d.id})
}
