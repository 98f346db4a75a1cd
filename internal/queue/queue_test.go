package queue

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/greenforestpath/focuslock/internal/interaction"
	"github.com/greenforestpath/focuslock/internal/replicate"
	"github.com/greenforestpath/focuslock/internal/reward"
	"github.com/greenforestpath/focuslock/internal/surface"
)

// testDelegate implements replicate.Delegate for orchestrator tests.
type testDelegate struct {
	mu      sync.Mutex
	updates []interaction.Snapshot
	torn    int
}

func (d *testDelegate) Show(surface.Descriptor, interaction.Role, interaction.Request) error {
	return nil
}

func (d *testDelegate) Update(snap interaction.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, snap)
}

func (d *testDelegate) Feedback(string) {}
func (d *testDelegate) HasFocus() bool { return true }
func (d *testDelegate) RequestFocus()  {}

func (d *testDelegate) Teardown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.torn++
}

func (d *testDelegate) lastBuffer() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.updates) == 0 {
		return ""
	}
	return d.updates[len(d.updates)-1].Buffer
}

type delegateSet struct {
	mu   sync.Mutex
	byID map[string][]*testDelegate
}

func newDelegateSet() *delegateSet {
	return &delegateSet{byID: make(map[string][]*testDelegate)}
}

func (s *delegateSet) factory(desc surface.Descriptor, role interaction.Role) replicate.Delegate {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &testDelegate{}
	s.byID[desc.ID] = append(s.byID[desc.ID], d)
	return d
}

func (s *delegateSet) latest(id string) *testDelegate {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds := s.byID[id]
	if len(ds) == 0 {
		return nil
	}
	return ds[len(ds)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startQueue(t *testing.T, surfaces []surface.Descriptor, rewards reward.Bridge) (*Queue, *delegateSet) {
	t.Helper()

	reg, err := surface.NewRegistry(&surface.StaticProvider{Surfaces: surfaces},
		surface.WithCacheTTL(time.Hour),
		surface.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	set := newDelegateSet()
	q, err := New(Config{
		TickInterval: 10 * time.Millisecond,
		Registry:     reg,
		Delegates:    set.factory,
		Rewards:      rewards,
		Logger:       quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = q.Stop() })
	return q, set
}

// flush waits for the loop to process every previously posted command.
func flush(t *testing.T, q *Queue) {
	t.Helper()
	done := make(chan struct{})
	select {
	case q.cmdCh <- syncCmd{done: done}:
	case <-time.After(2 * time.Second):
		t.Fatal("command channel blocked")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not drain")
	}
}

func waitTicket(t *testing.T, ticket *interaction.Ticket) interaction.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := ticket.Wait(ctx)
	if err != nil {
		t.Fatalf("ticket %s unresolved: %v", ticket.ID(), err)
	}
	return res
}

func submit(q *Queue, text string) {
	q.Dispatch(interaction.InputEvent{Type: interaction.InputSubmit, Text: text})
}

func twoSurfaces() []surface.Descriptor {
	return []surface.Descriptor{
		{ID: "main", Primary: true},
		{ID: "side"},
	}
}

func lockReq(phrase string, repeats int, strict bool) interaction.Request {
	return interaction.Request{
		Kind:   interaction.KindLockPhrase,
		Strict: strict,
		LockPhrase: interaction.LockPhraseParams{
			Phrase:          phrase,
			RequiredRepeats: repeats,
		},
	}
}

func TestQueue_AtMostOneActive(t *testing.T) {
	q, _ := startQueue(t, twoSurfaces(), &reward.Recorder{})

	q.Enqueue(lockReq("focus", 1, false))
	q.Enqueue(lockReq("focus", 1, false))
	q.Enqueue(lockReq("focus", 1, false))
	flush(t, q)

	kind, ok := q.ActiveKind()
	if !ok || kind != interaction.KindLockPhrase {
		t.Fatalf("ActiveKind() = (%v, %v), want lock phrase active", kind, ok)
	}
	if got := q.Waiting(); got != 2 {
		t.Errorf("Waiting() = %d, want 2", got)
	}
}

func TestQueue_FIFOAdmissionOrder(t *testing.T) {
	q, _ := startQueue(t, twoSurfaces(), &reward.Recorder{})

	first := q.Enqueue(lockReq("alpha", 1, false))
	second := q.Enqueue(interaction.Request{
		Kind:         interaction.KindNumericGuess,
		NumericGuess: interaction.NumericGuessParams{Target: 7, Max: 10, Attempts: 3},
	})
	flush(t, q)

	submit(q, "alpha")
	flush(t, q)

	res := waitTicket(t, first)
	if !res.Success {
		t.Errorf("first ticket Success = false, want true")
	}

	kind, ok := q.ActiveKind()
	if !ok || kind != interaction.KindNumericGuess {
		t.Fatalf("ActiveKind() = (%v, %v), want numeric guess after first completes", kind, ok)
	}

	submit(q, "7")
	flush(t, q)
	if res := waitTicket(t, second); !res.Success {
		t.Errorf("second ticket Success = false, want true")
	}
}

func TestQueue_ReplicatesInputToAllSurfaces(t *testing.T) {
	q, set := startQueue(t, twoSurfaces(), &reward.Recorder{})

	q.Enqueue(lockReq("present", 1, false))
	flush(t, q)

	q.Dispatch(interaction.InputEvent{Type: interaction.InputTextChanged, Text: "pre"})
	flush(t, q)

	for _, id := range []string{"main", "side"} {
		d := set.latest(id)
		if d == nil {
			t.Fatalf("no delegate for surface %s", id)
		}
		if got := d.lastBuffer(); got != "pre" {
			t.Errorf("surface %s buffer = %q, want %q", id, got, "pre")
		}
	}
}

func TestQueue_ExactlyOnceOutcome(t *testing.T) {
	rec := &reward.Recorder{}
	q, set := startQueue(t, twoSurfaces(), rec)

	ticket := q.Enqueue(lockReq("done", 1, false))
	flush(t, q)

	submit(q, "done")
	// Late input and a redundant administrative complete must not produce
	// a second outcome.
	submit(q, "done")
	q.Complete(interaction.KindLockPhrase)
	flush(t, q)

	res := waitTicket(t, ticket)
	if !res.Success {
		t.Fatalf("Success = false, want true")
	}
	if got := rec.Outcomes(); len(got) != 1 {
		t.Errorf("outcomes = %d, want exactly 1", len(got))
	}
	if got := rec.Awards(); len(got) != 1 {
		t.Errorf("awards = %d, want exactly 1", len(got))
	}
	if d := set.latest("main"); d == nil || d.torn != 1 {
		t.Errorf("primary teardown count != 1")
	}
}

func TestQueue_AdminCompleteForcesFailure(t *testing.T) {
	rec := &reward.Recorder{}
	q, _ := startQueue(t, twoSurfaces(), rec)

	ticket := q.Enqueue(lockReq("never typed", 3, true))
	flush(t, q)

	// Wrong kind is a no-op.
	q.Complete(interaction.KindNumericGuess)
	flush(t, q)
	if _, ok := q.ActiveKind(); !ok {
		t.Fatal("wrong-kind Complete terminated the interaction")
	}

	q.Complete(interaction.KindLockPhrase)
	flush(t, q)

	res := waitTicket(t, ticket)
	if res.Success {
		t.Error("administrative complete reported success")
	}
	if res.Metrics["cancel_origin"] != interaction.CancelAdmin.String() {
		t.Errorf("cancel_origin = %q, want admin", res.Metrics["cancel_origin"])
	}
	if got := rec.Awards(); len(got) != 0 {
		t.Errorf("failure produced %d awards, want 0", len(got))
	}
}

func TestQueue_StrictIgnoresUserCancel(t *testing.T) {
	q, _ := startQueue(t, twoSurfaces(), &reward.Recorder{})

	ticket := q.Enqueue(lockReq("stay", 1, true))
	flush(t, q)

	q.Dispatch(interaction.InputEvent{Type: interaction.InputCancel})
	flush(t, q)

	if _, ok := q.ActiveKind(); !ok {
		t.Fatal("strict interaction dismissed by user cancel")
	}

	submit(q, "stay")
	flush(t, q)
	if res := waitTicket(t, ticket); !res.Success {
		t.Error("completion after rejected cancel failed")
	}
}

func TestQueue_NonStrictUserCancel(t *testing.T) {
	q, _ := startQueue(t, twoSurfaces(), &reward.Recorder{})

	ticket := q.Enqueue(lockReq("optional", 2, false))
	flush(t, q)

	q.Dispatch(interaction.InputEvent{Type: interaction.InputCancel})
	flush(t, q)

	res := waitTicket(t, ticket)
	if res.Success {
		t.Error("user cancel reported success")
	}
	if res.Metrics["cancel_origin"] != interaction.CancelUser.String() {
		t.Errorf("cancel_origin = %q, want user", res.Metrics["cancel_origin"])
	}
}

func TestQueue_ZeroSurfacesFailsFast(t *testing.T) {
	rec := &reward.Recorder{}
	q, set := startQueue(t, nil, rec)

	ticket := q.Enqueue(lockReq("unshowable", 1, false))
	flush(t, q)

	res := waitTicket(t, ticket)
	if res.Success {
		t.Error("Success = true with zero surfaces")
	}
	if res.Metrics["reason"] != "no_surfaces" {
		t.Errorf("reason = %q, want no_surfaces", res.Metrics["reason"])
	}
	if got := rec.Outcomes(); len(got) != 1 {
		t.Errorf("outcomes = %d, want 1", len(got))
	}
	if _, ok := q.ActiveKind(); ok {
		t.Error("failed admission left an active interaction")
	}
	set.mu.Lock()
	sessions := len(set.byID)
	set.mu.Unlock()
	if sessions != 0 {
		t.Errorf("zero-surface admission created %d sessions", sessions)
	}
}

func TestQueue_ZeroSurfacesReleasesForNext(t *testing.T) {
	provider := &surface.StaticProvider{}
	reg, err := surface.NewRegistry(provider,
		surface.WithCacheTTL(time.Nanosecond),
		surface.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	set := newDelegateSet()
	q, err := New(Config{
		Registry:  reg,
		Delegates: set.factory,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = q.Stop() })

	doomed := q.Enqueue(lockReq("first", 1, false))
	flush(t, q)
	if waitTicket(t, doomed).Success {
		t.Fatal("admission with zero surfaces succeeded")
	}

	// Surfaces come back; the next request admits normally.
	provider.Surfaces = twoSurfaces()
	time.Sleep(time.Millisecond)

	next := q.Enqueue(lockReq("second", 1, false))
	flush(t, q)
	submit(q, "second")
	flush(t, q)
	if !waitTicket(t, next).Success {
		t.Error("admission after surfaces returned failed")
	}
}

func TestQueue_MercyChain(t *testing.T) {
	rec := &reward.Recorder{}
	q, set := startQueue(t, twoSurfaces(), rec)

	ticket := q.Enqueue(interaction.Request{
		Kind: interaction.KindNumericGuess,
		NumericGuess: interaction.NumericGuessParams{
			Target:       42,
			Max:          100,
			Attempts:     1,
			MercyPhrases: []string{"steady now"},
		},
	})
	flush(t, q)

	submit(q, "1")
	flush(t, q)

	// The exhausted guess does not resolve: the mercy lock-phrase takes
	// over the attention slot.
	kind, ok := q.ActiveKind()
	if !ok || kind != interaction.KindLockPhrase {
		t.Fatalf("ActiveKind() = (%v, %v), want mercy lock phrase", kind, ok)
	}
	select {
	case <-ticket.Done():
		t.Fatal("parent ticket resolved before mercy chain finished")
	default:
	}
	// Parent surfaces were torn down when the chain spawned.
	set.mu.Lock()
	firstMain := set.byID["main"][0]
	set.mu.Unlock()
	firstMain.mu.Lock()
	torn := firstMain.torn
	firstMain.mu.Unlock()
	if torn != 1 {
		t.Errorf("parent primary teardown count = %d, want 1", torn)
	}

	for i := 0; i < interaction.MercyRepeats; i++ {
		submit(q, "steady now")
		flush(t, q)
	}

	res := waitTicket(t, ticket)
	if res.Success {
		t.Error("mercy completion rescued the guess")
	}
	if res.Metrics["mercy_performed"] != "true" {
		t.Error("Metrics[mercy_performed] missing on parent result")
	}
	if res.Metrics["mercy_success"] != "true" {
		t.Errorf("Metrics[mercy_success] = %q, want true", res.Metrics["mercy_success"])
	}

	// The mercy lock-phrase earns its own award; the failed guess earns
	// nothing.
	awards := rec.Awards()
	if len(awards) != 1 {
		t.Fatalf("awards = %d, want 1", len(awards))
	}
	want := reward.LockPhraseAward(interaction.MercyRepeats, false)
	if awards[0].XP != want {
		t.Errorf("mercy award = %d, want %d", awards[0].XP, want)
	}
	if awards[0].Source != reward.SourceLockPhrase {
		t.Errorf("mercy award source = %v, want lock phrase", awards[0].Source)
	}
	if got := rec.Outcomes(); len(got) != 2 {
		t.Errorf("outcomes = %d, want 2 (mercy + parent)", len(got))
	}
}

func TestQueue_LockPhraseAwardAmounts(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
		want   int
	}{
		{"relaxed", false, 350},
		{"strict", true, 525},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &reward.Recorder{}
			q, _ := startQueue(t, twoSurfaces(), rec)

			ticket := q.Enqueue(lockReq("i am present", 3, tt.strict))
			flush(t, q)
			for i := 0; i < 3; i++ {
				submit(q, "i am present")
				flush(t, q)
			}

			if !waitTicket(t, ticket).Success {
				t.Fatal("lock phrase did not complete")
			}
			if got := rec.TotalXP(); got != tt.want {
				t.Errorf("TotalXP() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQueue_StopResolvesEveryTicket(t *testing.T) {
	q, _ := startQueue(t, twoSurfaces(), &reward.Recorder{})

	active := q.Enqueue(lockReq("left hanging", 3, true))
	waiting := q.Enqueue(lockReq("never admitted", 1, false))
	flush(t, q)

	if err := q.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if waitTicket(t, active).Success {
		t.Error("active ticket resolved successful on shutdown")
	}
	res := waitTicket(t, waiting)
	if res.Success {
		t.Error("waiting ticket resolved successful on shutdown")
	}
	if res.Metrics["reason"] != "shutdown" {
		t.Errorf("waiting reason = %q, want shutdown", res.Metrics["reason"])
	}
}

func TestQueue_ConcurrentStopWaitsForDrain(t *testing.T) {
	q, _ := startQueue(t, twoSurfaces(), &reward.Recorder{})

	active := q.Enqueue(lockReq("held open", 3, true))
	waiting := q.Enqueue(lockReq("in line", 1, false))
	flush(t, q)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Stop()
		}()
	}
	wg.Wait()

	// Any returned Stop means shutdown already resolved every ticket.
	for _, ticket := range []*interaction.Ticket{active, waiting} {
		select {
		case res := <-ticket.Done():
			if res.Success {
				t.Error("shutdown resolved a ticket successful")
			}
		default:
			t.Fatal("Stop returned before shutdown resolved all tickets")
		}
	}
}

func TestQueue_StopBeforeStart(t *testing.T) {
	reg, err := surface.NewRegistry(&surface.StaticProvider{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	q, err := New(Config{Registry: reg, Delegates: newDelegateSet().factory, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := q.Stop(); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
}

func TestQueue_EnqueueAfterStop(t *testing.T) {
	q, _ := startQueue(t, twoSurfaces(), &reward.Recorder{})
	if err := q.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	ticket := q.Enqueue(lockReq("too late", 1, false))
	res := waitTicket(t, ticket)
	if res.Success {
		t.Error("post-stop enqueue succeeded")
	}
	if res.Metrics["reason"] != "queue_stopped" {
		t.Errorf("reason = %q, want queue_stopped", res.Metrics["reason"])
	}
}

func TestQueue_InputWithNoActiveIsDropped(t *testing.T) {
	q, _ := startQueue(t, twoSurfaces(), &reward.Recorder{})
	submit(q, "into the void")
	flush(t, q)
	if _, ok := q.ActiveKind(); ok {
		t.Error("stray input created an active interaction")
	}
}

func TestNew_Validation(t *testing.T) {
	reg, err := surface.NewRegistry(&surface.StaticProvider{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	set := newDelegateSet()

	if _, err := New(Config{Delegates: set.factory}); err == nil {
		t.Error("New without registry: error = nil")
	}
	if _, err := New(Config{Registry: reg}); err == nil {
		t.Error("New without delegates: error = nil")
	}
}
