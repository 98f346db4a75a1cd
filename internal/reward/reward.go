// Package reward adapts terminal interaction outcomes into XP awards and
// outcome tracking. The orchestrator calls the Bridge exactly once per
// terminal interaction; implementations decide what to do with it.
package reward

import (
	"fmt"
	"sync"

	"github.com/greenforestpath/focuslock/internal/interaction"
)

// Source identifies what earned an award.
type Source int

const (
	SourceLockPhrase Source = iota
	SourceNumericGuess
)

func (s Source) String() string {
	switch s {
	case SourceLockPhrase:
		return "lock_phrase"
	case SourceNumericGuess:
		return "numeric_guess"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

const (
	lockPhraseBase      = 200
	lockPhrasePerRepeat = 50
	strictMultiplier    = 1.5
	numericGuessAward   = 100
)

// LockPhraseAward computes the XP for a completed lock-phrase: the base
// award scales linearly with the required repeats, and strict mode applies
// a fixed multiplier.
func LockPhraseAward(requiredRepeats int, strict bool) int {
	award := lockPhrasePerRepeat*requiredRepeats + lockPhraseBase
	if strict {
		award = int(float64(award) * strictMultiplier)
	}
	return award
}

// NumericGuessAward is the fixed XP for a correct guess, independent of
// attempts used.
func NumericGuessAward() int {
	return numericGuessAward
}

// ForRequest computes the award and source for a successful request.
func ForRequest(req interaction.Request) (int, Source) {
	switch req.Kind {
	case interaction.KindNumericGuess:
		return NumericGuessAward(), SourceNumericGuess
	default:
		return LockPhraseAward(req.LockPhrase.RequiredRepeats, req.Strict), SourceLockPhrase
	}
}

// Bridge is the downstream reward collaborator. Called from the
// orchestrator tick loop; implementations must not block.
type Bridge interface {
	// Award grants XP. Called only on successful completions.
	Award(xp int, source Source)

	// TrackOutcome records the completion result of every admitted
	// interaction, successful or not. Called exactly once per admission.
	TrackOutcome(kind interaction.Kind, res interaction.Result)
}

// Nop is a Bridge that discards everything.
type Nop struct{}

func (Nop) Award(int, Source)                                  {}
func (Nop) TrackOutcome(interaction.Kind, interaction.Result) {}

// AwardRecord is one recorded XP grant.
type AwardRecord struct {
	XP     int
	Source Source
}

// OutcomeRecord is one recorded completion.
type OutcomeRecord struct {
	Kind   interaction.Kind
	Result interaction.Result
}

// Recorder is an in-memory Bridge for tests and for running without a
// ledger.
type Recorder struct {
	mu       sync.Mutex
	awards   []AwardRecord
	outcomes []OutcomeRecord
}

// Award implements Bridge.
func (r *Recorder) Award(xp int, source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.awards = append(r.awards, AwardRecord{XP: xp, Source: source})
}

// TrackOutcome implements Bridge.
func (r *Recorder) TrackOutcome(kind interaction.Kind, res interaction.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, OutcomeRecord{Kind: kind, Result: res})
}

// Awards returns a copy of the recorded awards.
func (r *Recorder) Awards() []AwardRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AwardRecord, len(r.awards))
	copy(out, r.awards)
	return out
}

// Outcomes returns a copy of the recorded outcomes.
func (r *Recorder) Outcomes() []OutcomeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OutcomeRecord, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// TotalXP sums the recorded awards.
func (r *Recorder) TotalXP() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, a := range r.awards {
		total += a.XP
	}
	return total
}
