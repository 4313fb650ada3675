package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/roasbeef/clinbox/internal/triage"
)

const (
	defaultWidth  = 80
	defaultHeight = 24

	// chromeHeight is the space taken by the header, fields, notice and
	// help around the full body viewport.
	chromeHeight = 12
)

// decideModel shows one item and waits for a command key.
type decideModel struct {
	view *triage.ItemView
	keys *KeyMap

	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model

	notices []notice

	width  int
	height int

	chosen triage.Command
	done   bool
}

type notice struct {
	level triage.NoticeLevel
	msg   string
}

func newDecideModel(view *triage.ItemView, keys *KeyMap,
	notices []notice) *decideModel {

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = dimStyle

	m := &decideModel{
		view:     view,
		keys:     keys,
		help:     help.New(),
		spinner:  sp,
		viewport: viewport.New(defaultWidth, defaultHeight-chromeHeight),
		notices:  notices,
		width:    defaultWidth,
		height:   defaultHeight,
	}
	m.viewport.SetContent(view.Content.Body)

	return m
}

// Init starts the spinner. Each tick re-renders the card, which polls the
// analysis of the item.
func (m *decideModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key presses and window changes.
func (m *decideModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.viewport.Width = msg.Width - cardStyle.GetHorizontalFrameSize()
		m.viewport.Height = max(msg.Height-chromeHeight, 3)

		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Help) {
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}

		if m.view.ShowFull && (key.Matches(msg, m.keys.Up) ||
			key.Matches(msg, m.keys.Down)) {

			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)

			return m, cmd
		}

		for _, c := range m.keys.commands() {
			if key.Matches(msg, c.binding) {
				m.chosen = c.command
				m.done = true

				return m, tea.Quit
			}
		}

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

// View renders the card.
func (m *decideModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(renderHeader(m.view, m.width))
	b.WriteString("\n")
	b.WriteString(renderCard(
		m.view, m.spinner.View(), m.width, m.viewport.View(),
	))
	b.WriteString("\n")

	if m.view.Notice != "" {
		b.WriteString(renderNotice(triage.NoticeWarn, m.view.Notice))
		b.WriteString("\n")
	}
	for _, n := range m.notices {
		b.WriteString(renderNotice(n.level, n.msg))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))

	return b.String()
}
