package replicate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/greenforestpath/focuslock/internal/interaction"
	"github.com/greenforestpath/focuslock/internal/surface"
)

// ErrNoSurfaces is returned when enumeration yields zero surfaces: the
// interaction cannot be shown and must fail immediately rather than hang.
var ErrNoSurfaces = errors.New("no display surfaces available")

// session is one per-surface instantiation of the active interaction.
// Sessions never outlive their replicator and are never reused.
type session struct {
	desc     surface.Descriptor
	role     interaction.Role
	delegate Delegate
}

// Replicator owns the session set of one admitted interaction: the state
// machine, the shared input buffer, and one session per display surface.
// Sessions are reachable only through the replicator, never through
// ambient global state. Driven only from the orchestrator tick loop.
type Replicator struct {
	logger   *slog.Logger
	machine  interaction.Machine
	shared   *interaction.SharedInput
	sessions []*session
	primary  *session
	tornDown bool
}

// New instantiates one session per surface and shows all overlays. The
// surface flagged primary accepts input; with no flagged surface the
// first enumerated one does. Zero surfaces is ErrNoSurfaces.
func New(req interaction.Request, machine interaction.Machine, surfaces []surface.Descriptor, factory DelegateFactory, logger *slog.Logger) (*Replicator, error) {
	if len(surfaces) == 0 {
		return nil, ErrNoSurfaces
	}
	if machine == nil {
		return nil, fmt.Errorf("machine is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("delegate factory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	primaryIdx := 0
	for i, d := range surfaces {
		if d.Primary {
			primaryIdx = i
			break
		}
	}

	r := &Replicator{
		logger:  logger,
		machine: machine,
		shared:  interaction.NewSharedInput(),
	}

	for i, desc := range surfaces {
		role := interaction.RoleFollower
		if i == primaryIdx {
			role = interaction.RolePrimary
		}

		s := &session{desc: desc, role: role, delegate: factory(desc, role)}
		if err := s.delegate.Show(desc, role, req); err != nil {
			if role == interaction.RolePrimary {
				// No input surface means no interaction: undo and fail.
				r.Teardown()
				return nil, fmt.Errorf("show primary surface %s: %w", desc.ID, err)
			}
			logger.Warn("follower surface unavailable",
				"surface", desc.ID,
				"error", err)
			continue
		}
		r.sessions = append(r.sessions, s)
		if role == interaction.RolePrimary {
			r.primary = s
		}
	}

	if err := r.publish(); err != nil {
		r.Teardown()
		return nil, err
	}
	return r, nil
}

// Apply routes one input event from the primary surface into the state
// machine, replicates the resulting view to every session within the same
// tick, and returns the effects the orchestrator must act on. Feedback
// effects are consumed here (primary surface only).
func (r *Replicator) Apply(ev interaction.InputEvent) ([]interaction.Effect, error) {
	if r.tornDown {
		return nil, nil
	}
	effects := r.machine.Apply(ev)
	if err := r.publish(); err != nil {
		return nil, err
	}
	return r.consumeFeedback(effects), nil
}

// Cancel routes a cancel request into the state machine. Rejected cancels
// (strict mode, user origin) return no effects and leave every session's
// view untouched.
func (r *Replicator) Cancel(origin interaction.CancelOrigin) ([]interaction.Effect, error) {
	if r.tornDown {
		return nil, nil
	}
	effects := r.machine.Cancel(origin)
	if len(effects) == 0 {
		return nil, nil
	}
	if err := r.publish(); err != nil {
		return nil, err
	}
	return r.consumeFeedback(effects), nil
}

// Tick performs per-tick cooperative work: if the primary session lost
// input focus while the interaction is unterminated, ask for it back.
func (r *Replicator) Tick() {
	if r.tornDown || r.primary == nil || r.machine.Done() {
		return
	}
	if !r.primary.delegate.HasFocus() {
		r.primary.delegate.RequestFocus()
	}
}

// publish writes the machine's view into shared state as the primary and
// pushes it to all sessions. Followers never observe a view older than
// the mutation that triggered the push.
func (r *Replicator) publish() error {
	snap := r.machine.Snapshot()
	if err := r.shared.Write(interaction.RolePrimary, snap); err != nil {
		return err
	}
	view := r.shared.View()
	for _, s := range r.sessions {
		s.delegate.Update(view)
	}
	return nil
}

func (r *Replicator) consumeFeedback(effects []interaction.Effect) []interaction.Effect {
	rest := effects[:0]
	for _, eff := range effects {
		if fb, ok := eff.(interaction.FeedbackEffect); ok {
			if r.primary != nil {
				r.primary.delegate.Feedback(fb.Text)
			}
			continue
		}
		rest = append(rest, eff)
	}
	return rest
}

// Shared exposes the read-only view of the replicated buffer.
func (r *Replicator) Shared() interaction.Snapshot {
	return r.shared.View()
}

// PrimarySurface returns the input-accepting surface.
func (r *Replicator) PrimarySurface() surface.Descriptor {
	if r.primary == nil {
		return surface.Descriptor{}
	}
	return r.primary.desc
}

// SessionCount returns the number of live sessions.
func (r *Replicator) SessionCount() int {
	if r.tornDown {
		return 0
	}
	return len(r.sessions)
}

// Teardown dismisses every session together, primary and followers, in
// one pass. Idempotent. Partial teardown is never observable: the
// replicator only returns once every delegate has been dismissed.
func (r *Replicator) Teardown() {
	if r.tornDown {
		return
	}
	r.tornDown = true
	for _, s := range r.sessions {
		s.delegate.Teardown()
	}
}
