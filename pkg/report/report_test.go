package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/integrail/pagewalk/pkg/walk"
)

func TestSummarySucceeded(t *testing.T) {
	RegisterTestingT(t)

	res := &walk.Result{
		Walk:      "mobile",
		Driver:    "playwright",
		Artifacts: []string{"verification/1-mobile-home.png", "verification/3-mobile-projects.png"},
		Steps: []walk.StepResult{
			{Index: 2, Step: "click button.menu", Outcome: walk.OutcomeSkipped},
		},
		Duration: 1500 * time.Millisecond,
	}

	out := Summary(res)

	Expect(out).To(ContainSubstring("walk mobile (playwright)"))
	Expect(out).To(ContainSubstring("OK"))
	Expect(out).To(ContainSubstring("in 1.5s"))
	Expect(out).To(ContainSubstring("verification/1-mobile-home.png"))
	Expect(out).To(ContainSubstring("verification/3-mobile-projects.png"))
	Expect(out).To(ContainSubstring("skipped"))
	Expect(out).To(ContainSubstring("click button.menu"))
	Expect(out).To(ContainSubstring("page errors: none"))
	Expect(out).NotTo(ContainSubstring("error:"))
}

func TestSummaryFailed(t *testing.T) {
	RegisterTestingT(t)

	res := &walk.Result{
		Walk:          "darkmode",
		Driver:        "chromedp",
		ErrorArtifact: "verification/darkmode-error.png",
		Checks:        []walk.CheckResult{{Label: "Dark class on <html>", Passed: false}},
		PageErrors:    []string{"boom", "bang"},
		Err:           errors.New("step 3 failed"),
	}

	out := Summary(res)

	Expect(out).To(ContainSubstring("FAILED"))
	Expect(out).To(ContainSubstring("✗"))
	Expect(out).To(ContainSubstring("Dark class on <html>"))
	Expect(out).To(ContainSubstring("page errors: "))
	Expect(out).To(ContainSubstring("boom, bang"))
	Expect(out).To(ContainSubstring("step 3 failed"))
	Expect(out).To(ContainSubstring("diagnostic"))
	Expect(out).To(ContainSubstring("verification/darkmode-error.png"))
}

func TestConsole(t *testing.T) {
	RegisterTestingT(t)
	var buf bytes.Buffer

	c := NewConsole(&buf, "portfolio")
	c.Report("Navigating to portfolio page...")
	c.Report("Taking screenshot...")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	Expect(lines).To(HaveLen(2))
	Expect(lines[0]).To(ContainSubstring("[portfolio]"))
	Expect(lines[0]).To(HaveSuffix("Navigating to portfolio page..."))
}

func TestMultiAndLog(t *testing.T) {
	RegisterTestingT(t)
	var console, logged bytes.Buffer
	log := logrus.New()
	log.SetOutput(&logged)

	Multi{NewConsole(&console, "mobile"), NewLog(log)}.Report("Menu button not found!")

	Expect(console.String()).To(ContainSubstring("Menu button not found!"))
	Expect(logged.String()).To(ContainSubstring("Menu button not found!"))
	Expect(logged.String()).To(ContainSubstring("level=info"))
}

func TestTUIModelKeepsLastLines(t *testing.T) {
	RegisterTestingT(t)
	m := newTUIModel("mobile")

	for i := 0; i < maxLines+3; i++ {
		m.Update(lineMsg(strings.Repeat("x", i+1)))
	}

	Expect(m.lines).To(HaveLen(maxLines))
	Expect(m.lines[0]).To(Equal("xxxx"))
	Expect(m.View()).To(ContainSubstring("running"))
}

func TestTUIModelQuits(t *testing.T) {
	RegisterTestingT(t)

	m := newTUIModel("mobile")
	_, cmd := m.Update(doneMsg("summary"))
	Expect(m.done).To(BeTrue())
	Expect(m.summary).To(Equal("summary"))
	Expect(cmd).NotTo(BeNil())
	Expect(cmd()).To(Equal(tea.Quit()))
	Expect(m.View()).To(ContainSubstring("summary"))
	Expect(m.View()).NotTo(ContainSubstring("running"))

	m = newTUIModel("mobile")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	Expect(m.interrupted).To(BeTrue())
	Expect(cmd()).To(Equal(tea.Quit()))
	Expect(m.lines).To(ContainElement("Interrupted, closing browser..."))
}

func TestRunTUIReturnsWalkResult(t *testing.T) {
	RegisterTestingT(t)
	var out bytes.Buffer

	res, err := RunTUI(context.Background(), "portfolio", strings.NewReader(""), &out,
		func(_ context.Context, r walk.Reporter) *walk.Result {
			r.Report("Taking screenshot...")
			return &walk.Result{Walk: "portfolio", Artifacts: []string{"verification/portfolio.png"}}
		})

	Expect(err).To(BeNil())
	Expect(res.Walk).To(Equal("portfolio"))
	Expect(res.Artifacts).To(HaveLen(1))
}
