// Package interaction defines the shared vocabulary of the orchestrator:
// interaction kinds, requests, input events, completion results, and the
// state-machine contract that every challenge implements.
package interaction

import (
	"fmt"
	"time"
)

// Kind identifies a challenge type. Kinds double as mutual-exclusion
// classes: at most one interaction of blocking nature is active at a time,
// and the administrative Complete signal is addressed by kind.
type Kind int

const (
	// KindLockPhrase is the typed-phrase repetition lock.
	KindLockPhrase Kind = iota
	// KindNumericGuess is the numeric-guess-with-mercy challenge.
	KindNumericGuess
)

func (k Kind) String() string {
	switch k {
	case KindLockPhrase:
		return "LOCK_PHRASE"
	case KindNumericGuess:
		return "NUMERIC_GUESS"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Role distinguishes the single input-accepting session from its mirrors.
type Role int

const (
	// RolePrimary accepts keyboard input and writes shared state.
	RolePrimary Role = iota
	// RoleFollower mirrors the primary's state, input disabled.
	RoleFollower
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleFollower:
		return "follower"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// LockPhraseParams carries the kind-specific payload for a lock-phrase
// interaction.
type LockPhraseParams struct {
	// Phrase is the exact target phrase, compared case-insensitively.
	Phrase string
	// RequiredRepeats is how many times the phrase must be typed.
	RequiredRepeats int
}

// NumericGuessParams carries the kind-specific payload for a numeric-guess
// interaction.
type NumericGuessParams struct {
	// Target is the number to guess, within [1, Max].
	Target int
	// Attempts is the number of parseable guesses allowed.
	Attempts int
	// Max is the inclusive upper bound shown to the user.
	Max int
	// MercyPhrases is the pool a mercy lock-phrase is drawn from when
	// attempts run out in non-strict mode. Empty selects the built-in pool.
	MercyPhrases []string
}

// Request describes one interaction to admit. Immutable once enqueued:
// the queue normalizes a copy and never mutates it afterwards.
type Request struct {
	Kind   Kind
	Strict bool

	LockPhrase   LockPhraseParams
	NumericGuess NumericGuessParams
}

const (
	defaultPhrase      = "i am present"
	defaultGuessMax    = 100
	defaultGuessTries  = 3
	defaultLockRepeats = 3
	// MercyRepeats is the fixed repeat count for a mercy lock-phrase.
	MercyRepeats = 2
)

// Normalize returns a copy with malformed payload fields clamped to usable
// values. Enqueue never rejects a well-formed request; anything repairable
// is repaired here instead.
func (r Request) Normalize() Request {
	switch r.Kind {
	case KindLockPhrase:
		if r.LockPhrase.Phrase == "" {
			r.LockPhrase.Phrase = defaultPhrase
		}
		if r.LockPhrase.RequiredRepeats < 1 {
			r.LockPhrase.RequiredRepeats = defaultLockRepeats
		}
	case KindNumericGuess:
		if r.NumericGuess.Max < 1 {
			r.NumericGuess.Max = defaultGuessMax
		}
		if r.NumericGuess.Attempts < 1 {
			r.NumericGuess.Attempts = defaultGuessTries
		}
		if r.NumericGuess.Target < 1 {
			r.NumericGuess.Target = 1
		}
		if r.NumericGuess.Target > r.NumericGuess.Max {
			r.NumericGuess.Target = r.NumericGuess.Max
		}
	}
	return r
}

// InputType classifies an input event from the primary surface.
type InputType int

const (
	// InputTextChanged reports the full current buffer after an edit.
	InputTextChanged InputType = iota
	// InputSubmit reports an explicit submission of the current buffer.
	InputSubmit
	// InputCancel is a user-initiated dismiss request.
	InputCancel
)

func (t InputType) String() string {
	switch t {
	case InputTextChanged:
		return "text_changed"
	case InputSubmit:
		return "submit"
	case InputCancel:
		return "cancel"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// InputEvent is one input mutation from the primary surface. Text carries
// the full buffer contents, not a delta.
type InputEvent struct {
	Type InputType
	Text string
}

// CancelOrigin distinguishes a user dismiss from the administrative
// override. Strict-mode machines reject the former and honor the latter.
type CancelOrigin int

const (
	CancelUser CancelOrigin = iota
	CancelAdmin
)

func (o CancelOrigin) String() string {
	switch o {
	case CancelUser:
		return "user"
	case CancelAdmin:
		return "admin"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Result is the terminal outcome of one admitted interaction. Produced
// exactly once and consumed exactly once by the reward bridge and by the
// caller's ticket.
type Result struct {
	Success    bool
	Elapsed    time.Duration
	ErrorCount int
	Metrics    map[string]string
}

// Snapshot is the replicated view of an interaction: exactly the fields a
// follower mirrors from the primary within the same tick.
type Snapshot struct {
	Buffer   string
	Progress string
	Feedback string
	Done     bool
	Success  bool
}

// Effect is a typed outcome message emitted by a state machine and
// consumed by the orchestrator. Terminal states emit exactly one
// TerminalEffect; everything else is advisory.
type Effect interface {
	effect()
}

// FeedbackEffect is inline, non-blocking user feedback on the primary
// surface (validation errors, wrong-guess hints).
type FeedbackEffect struct {
	Text string
}

// TerminalEffect carries the interaction's one and only completion result.
type TerminalEffect struct {
	Result Result
}

// SpawnEffect asks the orchestrator to run a nested interaction (the mercy
// chain). The emitting machine defers its own terminal outcome until the
// nested interaction terminates.
type SpawnEffect struct {
	Request Request
}

func (FeedbackEffect) effect() {}
func (TerminalEffect) effect() {}
func (SpawnEffect) effect()    {}

// Machine is one challenge state machine. Machines are driven only from
// the orchestrator's tick loop and are not safe for concurrent use.
type Machine interface {
	Kind() Kind
	Strict() bool

	// Apply processes one input event and returns the resulting effects.
	Apply(ev InputEvent) []Effect

	// Cancel requests termination. Returns no effects when the request is
	// rejected (strict mode, user origin) so the state machine observably
	// does not move.
	Cancel(origin CancelOrigin) []Effect

	// Snapshot returns the current replicated view.
	Snapshot() Snapshot

	// Done reports whether a terminal state has been reached.
	Done() bool

	// Result returns the terminal result once Done.
	Result() (Result, bool)
}

// MercyResolver is implemented by machines that defer their terminal
// outcome to a nested interaction spawned via SpawnEffect.
type MercyResolver interface {
	// ResolveMercy feeds the nested interaction's result back in and
	// returns the deferred terminal effects.
	ResolveMercy(nested Result) []Effect
}
