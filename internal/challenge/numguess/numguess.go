// Package numguess implements the numeric-guess challenge: a bounded
// number of integer guesses with direction-only hints, falling back to a
// mercy lock-phrase interaction when attempts run out in non-strict mode.
package numguess

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/greenforestpath/focuslock/internal/interaction"
)

// State is the numeric-guess machine state.
type State int

const (
	// StateAwaitingGuess - accepting guesses.
	StateAwaitingGuess State = iota
	// StateAwaitingMercy - attempts exhausted, terminal outcome deferred
	// until the spawned mercy lock-phrase terminates.
	StateAwaitingMercy
	// StateCompleted - correct guess.
	StateCompleted
	// StateFailed - attempts exhausted (strict), or mercy chain resolved.
	StateFailed
	// StateCancelled - dismissed before completion (non-strict, or admin).
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateAwaitingGuess:
		return "AWAITING_GUESS"
	case StateAwaitingMercy:
		return "AWAITING_MERCY"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// defaultMercyPhrases is the built-in pool for mercy lock-phrases. None of
// these reveal anything about the target number.
var defaultMercyPhrases = []string{
	"patience is part of the practice",
	"next time i will slow down",
	"every attempt teaches something",
	"i accept the outcome",
}

// Machine is the numeric-guess state machine. Driven only from the
// orchestrator tick loop; not safe for concurrent use.
type Machine struct {
	target       int
	max          int
	strict       bool
	mercyPhrases []string
	pick         func(n int) int

	state        State
	attemptsLeft int
	guesses      int
	errors       int
	buffer       string
	started      time.Time
	result       interaction.Result
	mercySpawned bool
}

// New builds a machine from normalized numeric-guess parameters.
func New(params interaction.NumericGuessParams, strict bool) *Machine {
	phrases := params.MercyPhrases
	if len(phrases) == 0 {
		phrases = defaultMercyPhrases
	}
	return &Machine{
		target:       params.Target,
		max:          params.Max,
		strict:       strict,
		mercyPhrases: phrases,
		pick:         rand.IntN,
		state:        StateAwaitingGuess,
		attemptsLeft: params.Attempts,
		started:      time.Now(),
	}
}

// Kind implements interaction.Machine.
func (m *Machine) Kind() interaction.Kind {
	return interaction.KindNumericGuess
}

// Strict implements interaction.Machine.
func (m *Machine) Strict() bool {
	return m.strict
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// AttemptsLeft returns how many parseable guesses remain.
func (m *Machine) AttemptsLeft() int {
	return m.attemptsLeft
}

// Apply implements interaction.Machine.
func (m *Machine) Apply(ev interaction.InputEvent) []interaction.Effect {
	if m.state != StateAwaitingGuess {
		return nil
	}

	switch ev.Type {
	case interaction.InputTextChanged:
		m.buffer = ev.Text
		return nil

	case interaction.InputSubmit:
		return m.applyGuess(ev.Text)

	case interaction.InputCancel:
		return m.Cancel(interaction.CancelUser)
	}
	return nil
}

func (m *Machine) applyGuess(text string) []interaction.Effect {
	m.buffer = ""

	// Only parseable integers consume an attempt.
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		m.errors++
		return []interaction.Effect{interaction.FeedbackEffect{
			Text: fmt.Sprintf("whole numbers only (1-%d)", m.max),
		}}
	}

	m.guesses++
	if n == m.target {
		return m.complete()
	}

	m.attemptsLeft--
	m.errors++
	if m.attemptsLeft > 0 {
		// Direction only, no numerals: the attempts-left count can coincide
		// with the target, and the hint must never contain its value. The
		// remaining-attempt count lives in Snapshot.Progress.
		hint := "too high - guess again"
		if n < m.target {
			hint = "too low - guess again"
		}
		return []interaction.Effect{interaction.FeedbackEffect{Text: hint}}
	}

	if m.strict {
		return m.fail("attempts_exhausted")
	}
	return m.spawnMercy()
}

func (m *Machine) spawnMercy() []interaction.Effect {
	m.state = StateAwaitingMercy
	m.mercySpawned = true
	return []interaction.Effect{interaction.SpawnEffect{
		Request: interaction.Request{
			Kind: interaction.KindLockPhrase,
			LockPhrase: interaction.LockPhraseParams{
				Phrase:          m.mercyPhrase(),
				RequiredRepeats: interaction.MercyRepeats,
			},
		},
	}}
}

// mercyPhrase selects a random phrase from the pool, skipping any phrase
// that would reveal the target's value.
func (m *Machine) mercyPhrase() string {
	targetStr := strconv.Itoa(m.target)
	candidates := make([]string, 0, len(m.mercyPhrases))
	for _, p := range m.mercyPhrases {
		if p != "" && !strings.Contains(p, targetStr) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		candidates = defaultMercyPhrases
	}
	return candidates[m.pick(len(candidates))]
}

// ResolveMercy implements interaction.MercyResolver. The nested outcome
// never rescues the original guess: the parent result reports failure
// regardless, recording only that mercy was performed.
func (m *Machine) ResolveMercy(nested interaction.Result) []interaction.Effect {
	if m.state != StateAwaitingMercy {
		return nil
	}
	m.state = StateFailed
	m.result = interaction.Result{
		Success:    false,
		Elapsed:    time.Since(m.started),
		ErrorCount: m.errors,
		Metrics: map[string]string{
			"guesses":         strconv.Itoa(m.guesses),
			"mercy_performed": "true",
			"mercy_success":   strconv.FormatBool(nested.Success),
		},
	}
	return []interaction.Effect{interaction.TerminalEffect{Result: m.result}}
}

// Cancel implements interaction.Machine. While awaiting the mercy chain
// the outcome is owned by the nested interaction; cancels are ignored.
func (m *Machine) Cancel(origin interaction.CancelOrigin) []interaction.Effect {
	if m.state != StateAwaitingGuess {
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
			"guesses":       strconv.Itoa(m.guesses),
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
			"guesses": strconv.Itoa(m.guesses),
		},
	}
	return []interaction.Effect{interaction.TerminalEffect{Result: m.result}}
}

func (m *Machine) fail(reason string) []interaction.Effect {
	m.state = StateFailed
	m.result = interaction.Result{
		Success:    false,
		Elapsed:    time.Since(m.started),
		ErrorCount: m.errors,
		Metrics: map[string]string{
			"guesses": strconv.Itoa(m.guesses),
			"reason":  reason,
		},
	}
	return []interaction.Effect{interaction.TerminalEffect{Result: m.result}}
}

// Snapshot implements interaction.Machine.
func (m *Machine) Snapshot() interaction.Snapshot {
	return interaction.Snapshot{
		Buffer:   m.buffer,
		Progress: fmt.Sprintf("%d attempts left", m.attemptsLeft),
		Done:     m.state != StateAwaitingGuess && m.state != StateAwaitingMercy,
		Success:  m.state == StateCompleted,
	}
}

// Done implements interaction.Machine. A machine awaiting its mercy chain
// is not done: its terminal outcome is deferred.
func (m *Machine) Done() bool {
	switch m.state {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Result implements interaction.Machine.
func (m *Machine) Result() (interaction.Result, bool) {
	if !m.Done() {
		return interaction.Result{}, false
	}
	return m.result, true
}
