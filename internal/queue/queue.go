// Package queue implements the interaction orchestrator: the single
// authority that admits at most one blocking interaction at a time, holds
// the rest in a strict FIFO wait list, and reports every admitted
// request's outcome exactly once.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greenforestpath/focuslock/internal/challenge"
	"github.com/greenforestpath/focuslock/internal/interaction"
	"github.com/greenforestpath/focuslock/internal/replicate"
	"github.com/greenforestpath/focuslock/internal/reward"
	"github.com/greenforestpath/focuslock/internal/surface"
)

// Config configures the queue.
type Config struct {
	// TickInterval drives the cooperative tick loop (focus reclaim and
	// other per-tick work).
	TickInterval time.Duration

	// Registry enumerates display surfaces at admission time.
	Registry *surface.Registry

	// Delegates builds the per-surface visual delegate.
	Delegates replicate.DelegateFactory

	// Rewards receives every terminal outcome. Nil means reward.Nop.
	Rewards reward.Bridge

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval: 100 * time.Millisecond,
	}
}

// admission is one admitted interaction: its ticket, state machine, and
// session set. Discarded at completion, never reused.
type admission struct {
	req        interaction.Request
	ticket     *interaction.Ticket
	machine    interaction.Machine
	repl       *replicate.Replicator
	admittedAt time.Time
	completed  bool

	// parent is set on a mercy chain admission: the deferred numeric
	// guess whose outcome this interaction decides.
	parent *admission
}

// Queue is the interaction orchestrator.
type Queue struct {
	cfg     Config
	logger  *slog.Logger
	rewards reward.Bridge
	runID   string

	cmdCh   chan command
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool

	// Loop-owned state. Touched only from the tick loop goroutine.
	ctx      context.Context
	active   *admission
	waitlist []*pending

	// Observability mirror, updated by the loop for external readers.
	obsMu      sync.RWMutex
	obsActive  interaction.Kind
	obsHas     bool
	obsWaiting int
}

const cmdBuffer = 64

// New creates a queue. Registry and Delegates are required.
func New(cfg Config) (*Queue, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Delegates == nil {
		return nil, fmt.Errorf("delegate factory is required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	rewards := cfg.Rewards
	if rewards == nil {
		rewards = reward.Nop{}
	}

	runID := uuid.New().String()[:8]
	// Pre-start counts as drained so Stop before Start returns at once.
	doneCh := make(chan struct{})
	close(doneCh)

	return &Queue{
		cfg:     cfg,
		logger:  cfg.Logger.With("run_id", runID),
		rewards: rewards,
		runID:   runID,
		cmdCh:   make(chan command, cmdBuffer),
		stopCh:  make(chan struct{}),
		doneCh:  doneCh,
	}, nil
}

// RunID returns the correlation ID for this queue run.
func (q *Queue) RunID() string {
	return q.runID
}

// Start begins the tick loop.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	q.running = true
	q.stopCh = make(chan struct{})
	q.doneCh = make(chan struct{})
	q.mu.Unlock()

	go q.loop(ctx)
	return nil
}

// Stop halts the tick loop, force-failing the active interaction and
// resolving all waiting tickets. Every caller blocks until the loop has
// fully drained: a concurrent Stop returning means shutdown is finished,
// not merely requested.
func (q *Queue) Stop() error {
	q.mu.Lock()
	wasRunning := q.running
	q.running = false
	stopCh := q.stopCh
	doneCh := q.doneCh
	q.mu.Unlock()

	if wasRunning {
		close(stopCh)
	}
	<-doneCh
	return nil
}

// Enqueue accepts a request and returns the caller's ticket. Never fails
// for a well-formed request: malformed payloads are normalized, and a
// stopped queue resolves the ticket with an immediate failure instead of
// blocking.
func (q *Queue) Enqueue(req interaction.Request) *interaction.Ticket {
	norm := req.Normalize()
	p := &pending{
		req:        norm,
		ticket:     interaction.NewTicket(norm),
		enqueuedAt: time.Now(),
	}

	q.mu.Lock()
	running := q.running
	stopCh := q.stopCh
	q.mu.Unlock()

	if !running {
		p.ticket.Resolve(failureResult("queue_stopped"))
		return p.ticket
	}

	select {
	case q.cmdCh <- enqueueCmd{pending: p}:
	case <-stopCh:
		p.ticket.Resolve(failureResult("queue_stopped"))
	}
	return p.ticket
}

// Complete is the administrative override: force-terminate whichever
// interaction of kind is active, as a failure outcome. Idempotent and
// safe to call with no active interaction of that kind.
func (q *Queue) Complete(kind interaction.Kind) {
	q.post(completeCmd{kind: kind})
}

// Dispatch routes an input event from the primary surface into the
// active interaction.
func (q *Queue) Dispatch(ev interaction.InputEvent) {
	q.post(inputCmd{ev: ev})
}

func (q *Queue) post(cmd command) {
	q.mu.Lock()
	running := q.running
	stopCh := q.stopCh
	q.mu.Unlock()
	if !running {
		return
	}
	select {
	case q.cmdCh <- cmd:
	case <-stopCh:
	}
}

// ActiveKind reports the kind of the currently active interaction.
func (q *Queue) ActiveKind() (interaction.Kind, bool) {
	q.obsMu.RLock()
	defer q.obsMu.RUnlock()
	return q.obsActive, q.obsHas
}

// Waiting returns the wait-list length.
func (q *Queue) Waiting() int {
	q.obsMu.RLock()
	defer q.obsMu.RUnlock()
	return q.obsWaiting
}

// loop is the single event-processing goroutine. All admission state and
// shared input state is mutated here and nowhere else.
func (q *Queue) loop(ctx context.Context) {
	defer close(q.doneCh)
	q.ctx = ctx

	ticker := time.NewTicker(q.cfg.TickInterval)
	defer ticker.Stop()
	defer q.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case cmd := <-q.cmdCh:
			q.handle(cmd)
		case <-ticker.C:
			q.tick()
		}
	}
}

func (q *Queue) handle(cmd command) {
	switch c := cmd.(type) {
	case enqueueCmd:
		q.handleEnqueue(c.pending)
	case completeCmd:
		q.handleComplete(c.kind)
	case inputCmd:
		q.handleInput(c.ev)
	case syncCmd:
		close(c.done)
	}
}

func (q *Queue) tick() {
	if q.active != nil {
		q.active.repl.Tick()
	}
}

func (q *Queue) handleEnqueue(p *pending) {
	q.logger.Debug("interaction enqueued",
		"ticket_id", p.ticket.ID(),
		"kind", p.req.Kind.String(),
		"strict", p.req.Strict,
		"action", "enqueue")

	if q.active != nil {
		// Strict FIFO, arrival order only. No priority reordering.
		q.waitlist = append(q.waitlist, p)
		q.updateObs()
		return
	}
	q.admit(p)
	q.updateObs()
}

// admit instantiates the session set for a pending request. Returns
// false when the request completed immediately as a failure (zero
// surfaces, primary surface unavailable) instead of becoming active.
func (q *Queue) admit(p *pending) bool {
	machine, err := challenge.New(p.req)
	if err != nil {
		q.logger.Error("state machine construction failed",
			"ticket_id", p.ticket.ID(),
			"kind", p.req.Kind.String(),
			"error", err,
			"action", "admit_failed")
		q.failPending(p, failureResult("bad_request"))
		return false
	}

	surfaces := q.cfg.Registry.Enumerate(q.ctx)
	repl, err := replicate.New(p.req, machine, surfaces, q.cfg.Delegates, q.logger)
	if err != nil {
		reason := "show_failed"
		if errors.Is(err, replicate.ErrNoSurfaces) {
			reason = "no_surfaces"
		}
		q.logger.Warn("interaction not showable",
			"ticket_id", p.ticket.ID(),
			"kind", p.req.Kind.String(),
			"reason", reason,
			"error", err,
			"action", "admit_failed")
		q.failPending(p, failureResult(reason))
		return false
	}

	q.active = &admission{
		req:        p.req,
		ticket:     p.ticket,
		machine:    machine,
		repl:       repl,
		admittedAt: time.Now(),
		parent:     p.mercyFor,
	}
	q.logger.Info("interaction admitted",
		"ticket_id", p.ticket.ID(),
		"kind", p.req.Kind.String(),
		"strict", p.req.Strict,
		"surfaces", repl.SessionCount(),
		"primary", repl.PrimarySurface().ID,
		"action", "admit")
	return true
}

// failPending resolves a request that never became active. Environment
// errors still count as an admission attempt, so the reward bridge sees
// the failure result exactly once and the queue is released.
func (q *Queue) failPending(p *pending, res interaction.Result) {
	q.rewards.TrackOutcome(p.req.Kind, res)
	p.ticket.Resolve(res)
	if p.mercyFor != nil {
		q.resolveParent(p.mercyFor, res)
	}
}

func (q *Queue) handleInput(ev interaction.InputEvent) {
	if q.active == nil {
		q.logger.Debug("input with no active interaction",
			"input_type", ev.Type.String(),
			"action", "input_dropped")
		return
	}
	effects, err := q.active.repl.Apply(ev)
	if err != nil {
		q.invariantViolation(err)
		return
	}
	q.processEffects(effects)
}

func (q *Queue) handleComplete(kind interaction.Kind) {
	a := q.active
	if a == nil || a.req.Kind != kind || a.completed {
		q.logger.Debug("administrative complete with no matching interaction",
			"kind", kind.String(),
			"action", "complete_noop")
		return
	}
	q.logger.Info("administrative complete",
		"ticket_id", a.ticket.ID(),
		"kind", kind.String(),
		"action", "complete_override")

	effects, err := a.repl.Cancel(interaction.CancelAdmin)
	if err != nil {
		q.invariantViolation(err)
		return
	}
	q.processEffects(effects)
}

func (q *Queue) processEffects(effects []interaction.Effect) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case interaction.TerminalEffect:
			q.finishActive(e.Result)
		case interaction.SpawnEffect:
			q.mercyChain(e.Request)
		}
	}
}

// invariantViolation handles concurrency-violation conditions: fatal to
// the interaction (forced failure completion), not to the process.
func (q *Queue) invariantViolation(err error) {
	a := q.active
	q.logger.Error("interaction invariant violated",
		"ticket_id", a.ticket.ID(),
		"kind", a.req.Kind.String(),
		"error", err,
		"action", "forced_failure")
	q.finishActive(failureResult("invariant_violation"))
}

// finishActive completes the active interaction, resolves a deferred
// mercy parent if one exists, and admits the head of the wait list. The
// next admission happens strictly after the previous interaction's full
// teardown.
func (q *Queue) finishActive(res interaction.Result) {
	a := q.active
	if a == nil {
		return
	}
	q.completeAdmission(a, res)
	if a.parent != nil {
		q.resolveParent(a.parent, res)
	}
	q.active = nil
	q.admitNext()
	q.updateObs()
}

// completeAdmission tears down the session set and delivers the result
// downstream. Guarded so each admission completes exactly once.
func (q *Queue) completeAdmission(a *admission, res interaction.Result) {
	if a.completed {
		return
	}
	a.completed = true

	a.repl.Teardown()

	if res.Success {
		xp, src := reward.ForRequest(a.req)
		q.rewards.Award(xp, src)
	}
	q.rewards.TrackOutcome(a.req.Kind, res)
	a.ticket.Resolve(res)

	q.logger.Info("interaction complete",
		"ticket_id", a.ticket.ID(),
		"kind", a.req.Kind.String(),
		"success", res.Success,
		"elapsed", res.Elapsed,
		"errors", res.ErrorCount,
		"action", "complete")
}

// resolveParent feeds a nested interaction's result back into the
// deferred parent and completes it. The parent's surfaces were torn down
// when the mercy chain spawned.
func (q *Queue) resolveParent(parent *admission, nested interaction.Result) {
	if parent.completed {
		return
	}
	resolver, ok := parent.machine.(interaction.MercyResolver)
	if ok {
		for _, eff := range resolver.ResolveMercy(nested) {
			if t, isTerminal := eff.(interaction.TerminalEffect); isTerminal {
				q.completeAdmission(parent, t.Result)
			}
		}
	}
	if !parent.completed {
		q.completeAdmission(parent, failureResult("mercy_unresolved"))
	}
}

// mercyChain tears the parent's surfaces down and immediately admits the
// nested interaction in its place. The mercy request keeps the attention
// slot: it runs before anything in the wait list.
func (q *Queue) mercyChain(req interaction.Request) {
	a := q.active
	if a == nil {
		return
	}
	a.repl.Teardown()
	q.active = nil

	norm := req.Normalize()
	p := &pending{
		req:        norm,
		ticket:     interaction.NewTicket(norm),
		enqueuedAt: time.Now(),
		mercyFor:   a,
	}
	q.logger.Info("mercy chain spawned",
		"parent_ticket_id", a.ticket.ID(),
		"ticket_id", p.ticket.ID(),
		"kind", norm.Kind.String(),
		"repeats", norm.LockPhrase.RequiredRepeats,
		"action", "mercy_spawn")

	if !q.admit(p) {
		q.admitNext()
	}
	q.updateObs()
}

// admitNext pops the wait list head until an admission sticks or the
// list empties. Requests that fail environmentally complete as failures
// and release the queue for the next one.
func (q *Queue) admitNext() {
	for q.active == nil && len(q.waitlist) > 0 {
		p := q.waitlist[0]
		q.waitlist = q.waitlist[1:]
		q.admit(p)
	}
	q.updateObs()
}

// shutdown drains on loop exit: the active interaction is force-failed
// through the administrative path, and waiting tickets resolve as
// failures without ever being admitted.
func (q *Queue) shutdown() {
	if a := q.active; a != nil {
		res := failureResult("shutdown")
		effects, err := a.repl.Cancel(interaction.CancelAdmin)
		if err == nil {
			for _, eff := range effects {
				if t, ok := eff.(interaction.TerminalEffect); ok {
					res = t.Result
				}
			}
		}
		q.completeAdmission(a, res)
		if a.parent != nil {
			q.resolveParent(a.parent, res)
		}
		q.active = nil
	}

	for _, p := range q.waitlist {
		p.ticket.Resolve(failureResult("shutdown"))
	}
	q.waitlist = nil
	q.updateObs()
}

func (q *Queue) updateObs() {
	q.obsMu.Lock()
	defer q.obsMu.Unlock()
	if q.active != nil {
		q.obsActive = q.active.req.Kind
		q.obsHas = true
	} else {
		q.obsHas = false
	}
	q.obsWaiting = len(q.waitlist)
}

func failureResult(reason string) interaction.Result {
	return interaction.Result{
		Success: false,
		Metrics: map[string]string{"reason": reason},
	}
}
