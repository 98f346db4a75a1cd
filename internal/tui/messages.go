package tui

import (
	"github.com/greenforestpath/focuslock/internal/interaction"
	"github.com/greenforestpath/focuslock/internal/surface"
)

// Messages posted into the Bubble Tea program by surface delegates. The
// orchestrator loop never touches the model directly; everything crosses
// over as a typed message.

type surfaceShownMsg struct {
	desc surface.Descriptor
	role interaction.Role
	req  interaction.Request
}

type surfaceUpdatedMsg struct {
	id   string
	snap interaction.Snapshot
}

type surfaceFeedbackMsg struct {
	id   string
	text string
}

type surfaceTornDownMsg struct {
	id string
}

type focusRequestMsg struct{}
