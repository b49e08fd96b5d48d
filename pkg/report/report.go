// Package report renders walk progress and results for humans.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/savioxavier/termlink"
	"github.com/sirupsen/logrus"

	"github.com/integrail/pagewalk/pkg/walk"
)

var (
	walkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF3333")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF88")).Background(lipgloss.Color("#444444"))
)

// Console prints progress lines prefixed with the walk name.
type Console struct {
	mu   sync.Mutex
	out  io.Writer
	walk string
}

func NewConsole(out io.Writer, walkName string) *Console {
	return &Console{out: out, walk: walkName}
}

func (c *Console) Report(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, "%s %s\n", walkStyle.Render("["+c.walk+"]"), msg)
}

// Log forwards progress lines to a logger at info level.
type Log struct {
	log logrus.FieldLogger
}

func NewLog(log logrus.FieldLogger) *Log {
	return &Log{log: log}
}

func (l *Log) Report(msg string) {
	l.log.Info(msg)
}

// Multi fans a line out to several reporters.
type Multi []walk.Reporter

func (m Multi) Report(msg string) {
	for _, r := range m {
		r.Report(msg)
	}
}

// Summary renders the outcome of a walk. Saved artifacts are rendered as
// terminal hyperlinks where the terminal supports them.
func Summary(res *walk.Result) string {
	var b strings.Builder
	status := okStyle.Render("OK")
	if !res.Succeeded() {
		status = failStyle.Render("FAILED")
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("walk %s (%s)", res.Walk, res.Driver)))
	b.WriteString(fmt.Sprintf(" %s in %s\n", status, res.Duration.Round(time.Millisecond)))

	for _, path := range res.Artifacts {
		b.WriteString("  saved " + artifactLink(path) + "\n")
	}
	for _, s := range res.Skipped() {
		b.WriteString("  " + skippedStyle.Render("skipped") + " " + s.Step + "\n")
	}
	for _, c := range res.Checks {
		b.WriteString(fmt.Sprintf("  %s %s\n", lo.Ternary(c.Passed, okStyle.Render("✓"), failStyle.Render("✗")), c.Label))
	}
	if len(res.PageErrors) == 0 {
		b.WriteString("  page errors: none\n")
	} else {
		b.WriteString("  page errors: " + failStyle.Render(strings.Join(res.PageErrors, ", ")) + "\n")
	}
	if res.Err != nil {
		b.WriteString("  " + failStyle.Render("error: ") + res.Err.Error() + "\n")
		if res.ErrorArtifact != "" {
			b.WriteString("  diagnostic " + artifactLink(res.ErrorArtifact) + "\n")
		}
	}
	return b.String()
}

func artifactLink(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return termlink.ColorLink(path, "file://"+abs, "italic green")
}
