package lockphrase

import (
	"testing"

	"github.com/greenforestpath/focuslock/internal/interaction"
)

func newMachine(phrase string, repeats int, strict bool) *Machine {
	return New(interaction.LockPhraseParams{Phrase: phrase, RequiredRepeats: repeats}, strict)
}

func terminalResult(t *testing.T, effects []interaction.Effect) interaction.Result {
	t.Helper()
	for _, eff := range effects {
		if term, ok := eff.(interaction.TerminalEffect); ok {
			return term.Result
		}
	}
	t.Fatal("expected a terminal effect")
	return interaction.Result{}
}

func typeText(m *Machine, text string) []interaction.Effect {
	return m.Apply(interaction.InputEvent{Type: interaction.InputTextChanged, Text: text})
}

func TestMachine_CompletesAfterRequiredRepeats(t *testing.T) {
	m := newMachine("stay here", 2, false)

	effects := typeText(m, "STAY HERE")
	if m.Repeats() != 1 {
		t.Fatalf("Repeats() = %d after first match, want 1", m.Repeats())
	}
	if m.Done() {
		t.Fatal("machine done after 1 of 2 repeats")
	}
	if snap := m.Snapshot(); snap.Buffer != "" {
		t.Errorf("buffer not cleared after match: %q", snap.Buffer)
	}
	foundProgress := false
	for _, eff := range effects {
		if _, ok := eff.(interaction.FeedbackEffect); ok {
			foundProgress = true
		}
	}
	if !foundProgress {
		t.Error("expected progress feedback after a match")
	}

	effects = typeText(m, "stay here")
	res := terminalResult(t, effects)
	if !res.Success {
		t.Error("Success = false, want true")
	}
	if m.State() != StateCompleted {
		t.Errorf("State() = %v, want COMPLETED", m.State())
	}
	if res.Metrics["repeats"] != "2" {
		t.Errorf("Metrics[repeats] = %q, want 2", res.Metrics["repeats"])
	}
}

func TestMachine_MatchIsCaseInsensitive(t *testing.T) {
	m := newMachine("Deep Work", 1, false)

	res := terminalResult(t, typeText(m, "dEEP wORK"))
	if !res.Success {
		t.Error("case-insensitive match should complete")
	}
}

func TestMachine_ErrorCounterOnPrefixBreak(t *testing.T) {
	m := newMachine("focus", 3, false)

	// Good prefixes cost nothing.
	typeText(m, "f")
	typeText(m, "fo")
	// Breaking the prefix counts once, staying broken does not.
	typeText(m, "fx")
	typeText(m, "fxy")
	// Recovering and breaking again counts a second error.
	typeText(m, "fo")
	typeText(m, "fq")

	res := terminalResult(t, m.Cancel(interaction.CancelAdmin))
	if res.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", res.ErrorCount)
	}
}

func TestMachine_TypingAfterErrorStillMatches(t *testing.T) {
	m := newMachine("go on", 1, false)

	typeText(m, "gx")
	res := terminalResult(t, typeText(m, "go on"))
	if !res.Success {
		t.Error("errors must not block further typing")
	}
	if res.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", res.ErrorCount)
	}
}

func TestMachine_EmptySubmitIsInlineFeedbackOnly(t *testing.T) {
	m := newMachine("anything", 1, false)

	effects := m.Apply(interaction.InputEvent{Type: interaction.InputSubmit, Text: "  "})
	if len(effects) != 1 {
		t.Fatalf("got %d effects, want 1", len(effects))
	}
	if _, ok := effects[0].(interaction.FeedbackEffect); !ok {
		t.Fatalf("got %T, want FeedbackEffect", effects[0])
	}
	if m.Done() {
		t.Error("empty submission must not transition state")
	}
}

func TestMachine_ANSIIsStrippedBeforeMatching(t *testing.T) {
	m := newMachine("clean", 1, false)

	res := terminalResult(t, typeText(m, "\x1b[31mclean\x1b[0m"))
	if !res.Success {
		t.Error("ANSI-wrapped paste should still match")
	}
}

func TestMachine_StrictIgnoresUserCancel(t *testing.T) {
	m := newMachine("no escape", 2, true)

	for i := 0; i < 5; i++ {
		if effects := m.Cancel(interaction.CancelUser); len(effects) != 0 {
			t.Fatalf("strict user cancel produced effects: %v", effects)
		}
	}
	if m.State() != StateAwaitingInput {
		t.Fatalf("State() = %v after user cancels, want AWAITING_INPUT", m.State())
	}

	// Input cancel events are the same path.
	if effects := m.Apply(interaction.InputEvent{Type: interaction.InputCancel}); len(effects) != 0 {
		t.Fatal("strict cancel via input event produced effects")
	}

	// The administrative override still lands.
	res := terminalResult(t, m.Cancel(interaction.CancelAdmin))
	if res.Success {
		t.Error("admin cancel should report failure")
	}
	if m.State() != StateCancelled {
		t.Errorf("State() = %v, want CANCELLED", m.State())
	}
}

func TestMachine_NonStrictUserCancel(t *testing.T) {
	m := newMachine("let me out", 2, false)

	res := terminalResult(t, m.Cancel(interaction.CancelUser))
	if res.Success {
		t.Error("cancel should report failure")
	}
	if res.Metrics["cancel_origin"] != "user" {
		t.Errorf("Metrics[cancel_origin] = %q, want user", res.Metrics["cancel_origin"])
	}
}

func TestMachine_TerminalStateIgnoresInput(t *testing.T) {
	m := newMachine("done", 1, false)
	typeText(m, "done")

	if effects := typeText(m, "done"); len(effects) != 0 {
		t.Error("input after completion produced effects")
	}
	if effects := m.Cancel(interaction.CancelAdmin); len(effects) != 0 {
		t.Error("cancel after completion produced effects")
	}
}
