package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/integrail/pagewalk/pkg/walk"
)

const maxLines = 10

type (
	lineMsg string
	doneMsg string
)

var lineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

type tuiModel struct {
	title       string
	viewport    viewport.Model
	loader      spinner.Model
	lines       []string
	summary     string
	done        bool
	interrupted bool
}

func newTUIModel(title string) *tuiModel {
	vp := viewport.New(120, maxLines)
	vp.SetContent("Starting browser...")
	return &tuiModel{
		title:    title,
		viewport: vp,
		loader: spinner.New(
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))),
			spinner.WithSpinner(spinner.Dot),
		),
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return m.loader.Tick
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.interrupted = true
			m.addLine("Interrupted, closing browser...")
			return m, tea.Quit
		}
	case lineMsg:
		m.addLine(string(msg))
	case doneMsg:
		m.done = true
		m.summary = string(msg)
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *tuiModel) addLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// View keeps the latest lines on screen; once the walk is done the summary
// replaces the spinner and remains as the final frame.
func (m *tuiModel) View() string {
	status := m.loader.View() + " running"
	if m.done {
		status = m.summary
	}
	return headerStyle.Render(m.title) + fmt.Sprintf("\n\n%s\n\n%s\n", lineStyle.Render(m.viewport.View()), status)
}

// tuiReporter forwards progress lines into a running program.
type tuiReporter struct {
	program *tea.Program
}

func (r *tuiReporter) Report(msg string) {
	r.program.Send(lineMsg(msg))
}

// RunTUI runs fn under an interactive progress view. Ctrl-C cancels the
// context passed to fn; RunTUI still waits for fn to return so the browser
// session is always torn down before the caller exits.
func RunTUI(ctx context.Context, title string, in io.Reader, out io.Writer, fn func(ctx context.Context, r walk.Reporter) *walk.Result) (*walk.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newTUIModel(title)
	program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))

	results := make(chan *walk.Result, 1)
	go func() {
		res := fn(ctx, &tuiReporter{program: program})
		results <- res
		program.Send(doneMsg(Summary(res)))
	}()

	_, err := program.Run()
	// the program exits on completion, ctrl-c or a context error; in all cases stop the walk
	cancel()
	res := <-results
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return res, errors.Wrapf(err, "failed to run progress view")
	}
	return res, nil
}
