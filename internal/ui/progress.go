package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"heapcore/internal/script"
)

// maxVisibleSteps bounds the step list; longer scripts scroll with the
// current step.
const maxVisibleSteps = 12

type progressModel struct {
	title    string
	events   <-chan script.Event
	spinner  spinner.Model
	prog     progress.Model
	items    []stepItem
	current  int
	live     int
	lastGC   string
	finished int
	width    int
	done     bool
	failed   bool
}

type stepItem struct {
	label  string
	status script.Status
}

type eventMsg script.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders script progress.
// steps are the rendered ops; the model quits when events is closed.
func NewProgressModel(title string, steps []string, events <-chan script.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]stepItem, 0, len(steps))
	for _, step := range steps {
		items = append(items, stepItem{label: step, status: script.StatusQueued})
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(script.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%d/%d, live %d)", m.title, m.finished, len(m.items), m.live)
	switch {
	case m.done && m.failed:
		header = "failed: " + header
	case m.done:
		header = "done: " + header
	default:
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 8
	nameWidth := m.width - statusWidth - 4
	if nameWidth < 20 {
		nameWidth = 20
	}

	start, end := visibleWindow(len(m.items), m.current, maxVisibleSteps)
	for _, item := range m.items[start:end] {
		status := item.status.String()
		statusStyled := styleStatus(item.status).Render(fmt.Sprintf("%8s", status))
		fmt.Fprintf(&b, "  %s %s\n", statusStyled, truncate(item.label, nameWidth))
	}
	if hidden := len(m.items) - (end - start); hidden > 0 {
		fmt.Fprintf(&b, "  %s\n", lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf("… %d more steps", hidden)))
	}

	if m.lastGC != "" {
		b.WriteString("\n  ")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Render(truncate(m.lastGC, nameWidth+statusWidth)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done && !m.failed {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev script.Event) tea.Cmd {
	if ev.Step < 0 || ev.Step >= len(m.items) {
		return nil
	}
	m.items[ev.Step].status = ev.Status
	m.current = ev.Step
	m.live = ev.Live
	if ev.Stats != nil {
		m.lastGC = fmt.Sprintf("gc #%d: %s", ev.Stats.Cycle, ev.Stats.String())
	}
	switch ev.Status {
	case script.StatusDone:
		m.finished++
	case script.StatusError:
		m.failed = true
	}
	return m.prog.SetPercent(float64(m.finished) / float64(len(m.items)))
}

// visibleWindow returns the [start, end) range of at most size items that
// keeps current in view.
func visibleWindow(n, current, size int) (int, int) {
	if n <= size {
		return 0, n
	}
	start := current - size/2
	if start < 0 {
		start = 0
	}
	if start+size > n {
		start = n - size
	}
	return start, start + size
}

func styleStatus(status script.Status) lipgloss.Style {
	switch status {
	case script.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case script.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case script.StatusRunning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
