package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	addrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC800"))
	insnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	commentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	tagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF80C0"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#56A5D6"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
)

// traceModel is a scrollable viewer over collected trace lines: the
// interactive counterpart to printPlain's raw ANSI feed, built as an
// actual bubbletea model instead of hand-rolled escape codes.
type traceModel struct {
	lines    []traceLine
	runErr   error
	viewport viewport.Model
	ready    bool
}

func newTraceModel(lines []traceLine, runErr error) traceModel {
	return traceModel{lines: lines, runErr: runErr}
}

func (m traceModel) Init() tea.Cmd { return nil }

func (m traceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		headerHeight := 1
		footerHeight := 1
		verticalMargin := headerHeight + footerHeight
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMargin)
			m.viewport.SetContent(m.renderLines())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMargin
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m traceModel) View() string {
	if !m.ready {
		return "initializing..."
	}
	header := headerStyle.Render(fmt.Sprintf("dumpulator trace — %d instructions", len(m.lines)))
	footer := footerStyle.Render("↑/↓ scroll · q quit")
	if m.runErr != nil {
		footer = footerStyle.Render(m.runErr.Error()) + "  " + footer
	}
	return header + "\n" + m.viewport.View() + "\n" + footer
}

func (m traceModel) renderLines() string {
	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(addrStyle.Render(fmt.Sprintf("%016x", l.addr)))
		b.WriteString("  ")
		b.WriteString(insnStyle.Render(l.dis))

		var tags, comments []string
		tags = append(tags, instructionTags(l.dis)...)
		for _, e := range l.events {
			if e.Detail != "" {
				comments = append(comments, e.Detail)
			}
			if e.Name != "" {
				comments = append(comments, e.Name)
			}
			tags = append(tags, e.Tags.Strings()...)
		}
		if len(tags) > 0 {
			b.WriteString("  ")
			b.WriteString(tagStyle.Render(strings.Join(tags, " ")))
		}
		if len(comments) > 0 {
			b.WriteString("  ")
			b.WriteString(commentStyle.Render("; " + strings.Join(comments, ", ")))
		}
		b.WriteString("\n")
		if isBlockEnd(l.dis) {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func runTUI(lines []traceLine, runErr error) error {
	p := tea.NewProgram(newTraceModel(lines, runErr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
