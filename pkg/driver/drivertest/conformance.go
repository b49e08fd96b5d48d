// Package drivertest runs a shared behaviour suite against real walk.Driver
// implementations. The suite launches a browser and is skipped unless
// PAGEWALK_BROWSER_TESTS is set.
package drivertest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/integrail/pagewalk/pkg/storage"
	"github.com/integrail/pagewalk/pkg/walk"
	"github.com/integrail/pagewalk/pkg/walk/dto"
)

const EnvBrowserTests = "PAGEWALK_BROWSER_TESTS"

const homePage = `<!doctype html>
<html>
<head><title>Jane Doe | Software Architect</title></head>
<body style="height: 3000px">
  <button class="menu" onclick="document.getElementById('nav').style.display='block'"><svg class="lucide-menu" width="10" height="10"></svg>menu</button>
  <nav id="nav" style="display:none"><a href="#">Work</a></nav>
  <h1>Jane Doe</h1>
  <p>Software Architect</p>
  <p id="hidden" style="display:none">Hidden text</p>
  <canvas width="100" height="100"></canvas>
  <button id="boom" onclick="setTimeout(() => { throw new Error('kaboom') }, 0)">boom</button>
  <footer style="display:none"><p>Software Architect</p><p>Framework</p></footer>
</body>
</html>`

// Server serves a small fixture site: / has a menu, headline, canvas, a
// button raising an uncaught error and hidden duplicates of visible text;
// /slow does not respond for 30 seconds.
func Server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(homePage))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(30 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// Conformance checks the behaviour every driver must share.
func Conformance(t *testing.T, driver walk.Driver) {
	if os.Getenv(EnvBrowserTests) == "" {
		t.Skipf("set %s to run browser tests", EnvBrowserTests)
	}
	srv := Server(t)

	t.Run("page operations", func(t *testing.T) {
		RegisterTestingT(t)
		ctx := context.Background()

		session, err := driver.Open(ctx, dto.BrowserOpts{})
		Expect(err).To(BeNil())
		defer func() { Expect(session.Close()).To(Succeed()) }()

		page, err := session.NewPage(ctx, &walk.Viewport{Width: 375, Height: 667})
		Expect(err).To(BeNil())

		Expect(page.Goto(ctx, srv.URL, walk.LoadNetworkIdle, 10*time.Second)).To(Succeed())
		Expect(page.WaitFor(ctx, walk.Text("Software Architect"), 5*time.Second)).To(Succeed())
		Expect(page.WaitFor(ctx, walk.CSS("canvas"), 5*time.Second)).To(Succeed())

		visible, err := page.IsVisible(ctx, walk.CSS("button:has(svg.lucide-menu)"))
		Expect(err).To(BeNil())
		Expect(visible).To(BeTrue())
		visible, err = page.IsVisible(ctx, walk.Text("Hidden text"))
		Expect(err).To(BeNil())
		Expect(visible).To(BeFalse())
		visible, err = page.IsVisible(ctx, walk.CSS("#missing"))
		Expect(err).To(BeNil())
		Expect(visible).To(BeFalse())

		Expect(page.Click(ctx, walk.CSS("button.menu"), 5*time.Second)).To(Succeed())
		Expect(page.WaitFor(ctx, walk.Text("Work"), 5*time.Second)).To(Succeed())

		Expect(page.ScrollTo(ctx, 0, 1000)).To(Succeed())
		Expect(page.WaitFunc(ctx, "window.scrollY > 0", 5*time.Second)).To(Succeed())
		scrolled, err := page.EvaluateBool(ctx, "window.scrollY > 0")
		Expect(err).To(BeNil())
		Expect(scrolled).To(BeTrue())

		width, err := page.EvaluateBool(ctx, "window.innerWidth === 375")
		Expect(err).To(BeNil())
		Expect(width).To(BeTrue())

		png, err := page.Screenshot(ctx)
		Expect(err).To(BeNil())
		Expect(png[:4]).To(Equal([]byte{0x89, 'P', 'N', 'G'}))

		Expect(page.Click(ctx, walk.CSS("#boom"), 5*time.Second)).To(Succeed())
		Eventually(page.Errors, 5*time.Second).Should(ContainElement(ContainSubstring("kaboom")))

		Expect(page.Reload(ctx, walk.LoadEvent, 10*time.Second)).To(Succeed())
	})

	t.Run("wait timeout", func(t *testing.T) {
		RegisterTestingT(t)
		ctx := context.Background()

		session, err := driver.Open(ctx, dto.BrowserOpts{})
		Expect(err).To(BeNil())
		defer func() { _ = session.Close() }()
		page, err := session.NewPage(ctx, nil)
		Expect(err).To(BeNil())
		Expect(page.Goto(ctx, srv.URL, walk.LoadEvent, 10*time.Second)).To(Succeed())

		err = page.WaitFor(ctx, walk.Text("Not on the page"), 500*time.Millisecond)
		Expect(walk.IsTimeout(err)).To(BeTrue())

		err = page.WaitFunc(ctx, "window.__neverReady === true", 500*time.Millisecond)
		Expect(walk.IsTimeout(err)).To(BeTrue())

		err = page.Goto(ctx, srv.URL+"/slow", walk.LoadEvent, 500*time.Millisecond)
		Expect(walk.IsTimeout(err)).To(BeTrue())
	})

	t.Run("text locators skip the title and hidden duplicates", func(t *testing.T) {
		RegisterTestingT(t)
		ctx := context.Background()

		session, err := driver.Open(ctx, dto.BrowserOpts{})
		Expect(err).To(BeNil())
		defer func() { _ = session.Close() }()
		page, err := session.NewPage(ctx, nil)
		Expect(err).To(BeNil())
		Expect(page.Goto(ctx, srv.URL, walk.LoadEvent, 10*time.Second)).To(Succeed())

		// the title and the hidden footer repeat the headline; neither may block the wait
		start := time.Now()
		Expect(page.WaitFor(ctx, walk.Text("Software Architect"), 5*time.Second)).To(Succeed())
		Expect(time.Since(start)).To(BeNumerically("<", 4*time.Second))

		visible, err := page.IsVisible(ctx, walk.Text("Software Architect"))
		Expect(err).To(BeNil())
		Expect(visible).To(BeTrue())
		Expect(page.Click(ctx, walk.Text("Software Architect"), 5*time.Second)).To(Succeed())
	})

	t.Run("walk end to end", func(t *testing.T) {
		RegisterTestingT(t)
		dir := t.TempDir()
		w := walk.Walk{
			Name:          "fixture",
			Viewport:      &walk.Viewport{Width: 375, Height: 667},
			ErrorArtifact: "error",
			Steps: []walk.Step{
				walk.Navigate("", walk.LoadNetworkIdle),
				walk.Capture("home"),
				walk.ClickIfVisible(walk.CSS("button:has(svg.lucide-menu)"), walk.Capture("menu")),
				walk.WaitFor(walk.Text("Software Architect"), 5*time.Second),
			},
		}

		res := walk.New(driver, walk.WithOutDir(dir), walk.WithPersister(&storage.LocalFilePersister{})).
			Run(context.Background(), srv.URL, w)

		Expect(res.Err).To(BeNil())
		Expect(res.Artifacts).To(HaveLen(2))
		for _, path := range res.Artifacts {
			Expect(path).To(BeAnExistingFile())
		}
	})
}
