// Package replicate fans one admitted interaction out to a session per
// display surface, designating one primary (input-accepting) session and
// mirroring its state to the remaining followers.
package replicate

import (
	"github.com/greenforestpath/focuslock/internal/interaction"
	"github.com/greenforestpath/focuslock/internal/surface"
)

// Delegate is the per-surface visual collaborator. Rendering is out of
// the orchestrator's hands; it only drives these callbacks. All calls
// happen on the orchestrator tick loop, so implementations must not block.
type Delegate interface {
	// Show presents the overlay on its surface.
	Show(desc surface.Descriptor, role interaction.Role, req interaction.Request) error

	// Update pushes the replicated view. Called on every primary input
	// mutation, within the same event-processing tick.
	Update(snap interaction.Snapshot)

	// Feedback shows inline, non-blocking feedback. Primary only.
	Feedback(text string)

	// HasFocus reports whether the surface currently holds input focus.
	HasFocus() bool

	// RequestFocus asks the surface to reclaim input focus. Cooperative:
	// called once per idle tick until focus returns.
	RequestFocus()

	// Teardown dismisses the overlay. Must be idempotent.
	Teardown()
}

// DelegateFactory builds the delegate for one surface. The returned
// delegate is owned by the replicator until teardown.
type DelegateFactory func(desc surface.Descriptor, role interaction.Role) Delegate
