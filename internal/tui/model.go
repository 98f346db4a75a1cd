// Package tui implements the reference surface delegate: a terminal
// overlay that renders one panel per display surface and forwards input
// from the primary panel into the orchestrator.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/greenforestpath/focuslock/internal/interaction"
	"github.com/greenforestpath/focuslock/internal/surface"
)

// Dispatcher receives input events from the primary panel. Satisfied by
// *queue.Queue.
type Dispatcher interface {
	Dispatch(ev interaction.InputEvent)
}

// panel is the visual state of one surface overlay.
type panel struct {
	desc     surface.Descriptor
	role     interaction.Role
	req      interaction.Request
	snap     interaction.Snapshot
	feedback string
}

// Model is the Bubble Tea model for the focuslock overlay TUI.
type Model struct {
	dispatcher Dispatcher
	focus      *FocusTracker

	input  textinput.Model
	keys   keyMap
	styles Styles

	panels []panel
	width  int
	height int

	statusMsg string
}

// New creates the TUI model. The dispatcher receives primary input; the
// focus tracker is shared with the delegate factory.
func New(d Dispatcher, focus *FocusTracker) Model {
	in := textinput.New()
	in.Prompt = "> "
	in.CharLimit = 256

	return Model{
		dispatcher: d,
		focus:      focus,
		input:      in,
		keys:       defaultKeyMap(),
		styles:     DefaultStyles(),
		statusMsg:  "waiting for the next interaction",
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		textinput.Blink,
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.FocusMsg:
		m.focus.Set(true)
		return m, nil

	case tea.BlurMsg:
		m.focus.Set(false)
		return m, nil

	case focusRequestMsg:
		return m, m.input.Focus()

	case surfaceShownMsg:
		return m.handleShown(msg), nil

	case surfaceUpdatedMsg:
		return m.handleUpdated(msg), nil

	case surfaceFeedbackMsg:
		for i := range m.panels {
			if m.panels[i].desc.ID == msg.id {
				m.panels[i].feedback = msg.text
			}
		}
		return m, nil

	case surfaceTornDownMsg:
		return m.handleTornDown(msg), nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Dismiss):
		if len(m.panels) > 0 {
			m.dispatcher.Dispatch(interaction.InputEvent{Type: interaction.InputCancel})
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if len(m.panels) > 0 {
			m.dispatcher.Dispatch(interaction.InputEvent{
				Type: interaction.InputSubmit,
				Text: m.input.Value(),
			})
			m.input.Reset()
		}
		return m, nil
	}

	if len(m.panels) == 0 {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.dispatcher.Dispatch(interaction.InputEvent{
		Type: interaction.InputTextChanged,
		Text: m.input.Value(),
	})
	return m, cmd
}

func (m Model) handleShown(msg surfaceShownMsg) Model {
	p := panel{desc: msg.desc, role: msg.role, req: msg.req}
	replaced := false
	for i := range m.panels {
		if m.panels[i].desc.ID == msg.desc.ID {
			m.panels[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		m.panels = append(m.panels, p)
	}

	if msg.role == interaction.RolePrimary {
		m.input.Reset()
		m.input.Focus()
	}
	m.statusMsg = fmt.Sprintf("%s interaction active", msg.req.Kind)
	return m
}

func (m Model) handleUpdated(msg surfaceUpdatedMsg) Model {
	for i := range m.panels {
		if m.panels[i].desc.ID != msg.id {
			continue
		}
		m.panels[i].snap = msg.snap
		// The machine's buffer is authoritative; a match clears it and
		// the local echo must follow.
		if m.panels[i].role == interaction.RolePrimary && m.input.Value() != msg.snap.Buffer {
			m.input.SetValue(msg.snap.Buffer)
			m.input.CursorEnd()
		}
	}
	return m
}

func (m Model) handleTornDown(msg surfaceTornDownMsg) Model {
	kept := m.panels[:0]
	for _, p := range m.panels {
		if p.desc.ID != msg.id {
			kept = append(kept, p)
		}
	}
	m.panels = kept
	if len(m.panels) == 0 {
		m.input.Blur()
		m.input.Reset()
		m.statusMsg = "waiting for the next interaction"
	}
	return m
}

// View implements tea.Model.
func (m Model) View() string {
	if len(m.panels) == 0 {
		return m.styles.Idle.Render(m.statusMsg) + "\n" + m.statusBar()
	}

	views := make([]string, 0, len(m.panels))
	for _, p := range m.panels {
		views = append(views, m.renderPanel(p))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...) + "\n" + m.statusBar()
}

func (m Model) renderPanel(p panel) string {
	title := fmt.Sprintf("%s [%s]", p.desc.ID, p.role)
	if p.req.Strict {
		title += " (strict)"
	}

	var prompt string
	switch p.req.Kind {
	case interaction.KindLockPhrase:
		prompt = fmt.Sprintf("Type the phrase:\n%q", p.req.LockPhrase.Phrase)
	case interaction.KindNumericGuess:
		prompt = fmt.Sprintf("Guess the number between 1 and %d", p.req.NumericGuess.Max)
	}

	buffer := p.snap.Buffer
	if p.role == interaction.RolePrimary {
		buffer = m.input.View()
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.styles.PanelTitle.Render(title),
		m.styles.Prompt.Render(prompt),
		buffer,
		m.styles.Progress.Render(p.snap.Progress),
		m.styles.Feedback.Render(p.feedback),
	)

	if p.role == interaction.RolePrimary {
		return m.styles.PrimaryPanel.Render(body)
	}
	return m.styles.FollowerPanel.Render(body)
}

func (m Model) statusBar() string {
	help := fmt.Sprintf("%s %s • %s %s • %s %s",
		m.keys.Submit.Help().Key, m.keys.Submit.Help().Desc,
		m.keys.Dismiss.Help().Key, m.keys.Dismiss.Help().Desc,
		m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc,
	)
	return m.styles.StatusBar.Render(help)
}
