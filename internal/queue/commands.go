package queue

import (
	"time"

	"github.com/greenforestpath/focuslock/internal/interaction"
)

// command is a typed message posted into the tick loop. All queue and
// shared-input state is mutated only from the loop goroutine; external
// callers communicate exclusively through commands.
type command interface {
	command()
}

// pending is a request waiting for admission.
type pending struct {
	req        interaction.Request
	ticket     *interaction.Ticket
	enqueuedAt time.Time

	// mercyFor links a mercy chain request back to the deferred parent
	// admission whose outcome it decides.
	mercyFor *admission
}

type enqueueCmd struct {
	pending *pending
}

type completeCmd struct {
	kind interaction.Kind
}

type inputCmd struct {
	ev interaction.InputEvent
}

// syncCmd round-trips through the loop; used by tests to wait for all
// previously posted commands to be processed.
type syncCmd struct {
	done chan struct{}
}

func (enqueueCmd) command()  {}
func (completeCmd) command() {}
func (inputCmd) command()    {}
func (syncCmd) command()     {}
