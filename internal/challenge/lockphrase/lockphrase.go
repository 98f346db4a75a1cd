// Package lockphrase implements the typed-phrase repetition lock: the user
// types a target phrase a required number of times before the interaction
// completes.
package lockphrase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/greenforestpath/focuslock/internal/interaction"
)

// State is the lock-phrase machine state.
type State int

const (
	// StateAwaitingInput - accepting keystrokes, looping until the phrase
	// has been matched the required number of times.
	StateAwaitingInput State = iota
	// StateCompleted - all repeats matched.
	StateCompleted
	// StateCancelled - dismissed before completion (non-strict, or admin).
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "AWAITING_INPUT"
	case StateCompleted:
		return "COMPLETED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Machine is the lock-phrase state machine. Driven only from the
// orchestrator tick loop; not safe for concurrent use.
type Machine struct {
	phrase   string
	folded   string
	required int
	strict   bool

	state     State
	repeats   int
	errors    int
	buffer    string
	wasPrefix bool
	started   time.Time
	result    interaction.Result
}

// New builds a machine from normalized lock-phrase parameters.
func New(params interaction.LockPhraseParams, strict bool) *Machine {
	return &Machine{
		phrase:    params.Phrase,
		folded:    strings.ToLower(params.Phrase),
		required:  params.RequiredRepeats,
		strict:    strict,
		state:     StateAwaitingInput,
		wasPrefix: true,
		started:   time.Now(),
	}
}

// Kind implements interaction.Machine.
func (m *Machine) Kind() interaction.Kind {
	return interaction.KindLockPhrase
}

// Strict implements interaction.Machine.
func (m *Machine) Strict() bool {
	return m.strict
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Repeats returns how many times the phrase has been matched so far.
func (m *Machine) Repeats() int {
	return m.repeats
}

// Apply implements interaction.Machine.
func (m *Machine) Apply(ev interaction.InputEvent) []interaction.Effect {
	if m.state != StateAwaitingInput {
		return nil
	}

	switch ev.Type {
	case interaction.InputTextChanged:
		return m.applyText(ev.Text)

	case interaction.InputSubmit:
		if strings.TrimSpace(ev.Text) == "" {
			// Recovered locally: inline feedback, no state transition.
			return []interaction.Effect{interaction.FeedbackEffect{
				Text: "type the phrase to continue",
			}}
		}
		return m.applyText(ev.Text)

	case interaction.InputCancel:
		return m.Cancel(interaction.CancelUser)
	}
	return nil
}

func (m *Machine) applyText(text string) []interaction.Effect {
	// Terminal paste can carry escape sequences; matching operates on the
	// visible text only.
	text = ansi.Strip(text)
	m.buffer = text

	if strings.EqualFold(text, m.phrase) {
		m.repeats++
		m.buffer = ""
		m.wasPrefix = true
		if m.repeats >= m.required {
			return m.complete()
		}
		return []interaction.Effect{interaction.FeedbackEffect{
			Text: fmt.Sprintf("%d of %d", m.repeats, m.required),
		}}
	}

	isPrefix := text == "" || strings.HasPrefix(m.folded, strings.ToLower(text))
	if !isPrefix && m.wasPrefix {
		m.errors++
	}
	m.wasPrefix = isPrefix
	return nil
}

// Cancel implements interaction.Machine. A user cancel against a strict
// lock is rejected silently; the administrative override always lands.
func (m *Machine) Cancel(origin interaction.CancelOrigin) []interaction.Effect {
	if m.state != StateAwaitingInput {
		return nil
	}
	if origin == interaction.CancelUser && m.strict {
		return nil
	}

	m.state = StateCancelled
	m.result = interaction.Result{
		Success:    false,
		Elapsed:    time.Since(m.started),
		ErrorCount: m.errors,
		Metrics: map[string]string{
			"repeats":       strconv.Itoa(m.repeats),
			"required":      strconv.Itoa(m.required),
			"cancel_origin": origin.String(),
		},
	}
	return []interaction.Effect{interaction.TerminalEffect{Result: m.result}}
}

func (m *Machine) complete() []interaction.Effect {
	m.state = StateCompleted
	m.result = interaction.Result{
		Success:    true,
		Elapsed:    time.Since(m.started),
		ErrorCount: m.errors,
		Metrics: map[string]string{
			"repeats":  strconv.Itoa(m.repeats),
			"required": strconv.Itoa(m.required),
			"strict":   strconv.FormatBool(m.strict),
		},
	}
	return []interaction.Effect{interaction.TerminalEffect{Result: m.result}}
}

// Snapshot implements interaction.Machine.
func (m *Machine) Snapshot() interaction.Snapshot {
	return interaction.Snapshot{
		Buffer:   m.buffer,
		Progress: fmt.Sprintf("%d/%d", m.repeats, m.required),
		Done:     m.state != StateAwaitingInput,
		Success:  m.state == StateCompleted,
	}
}

// Done implements interaction.Machine.
func (m *Machine) Done() bool {
	return m.state != StateAwaitingInput
}

// Result implements interaction.Machine.
func (m *Machine) Result() (interaction.Result, bool) {
	if m.state == StateAwaitingInput {
		return interaction.Result{}, false
	}
	return m.result, true
}
