// Package walks holds the fixed walks run against the portfolio front-end.
package walks

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/integrail/pagewalk/pkg/walk"
)

const (
	BaseURL = "http://localhost:3000"

	SettleDelay       = 500 * time.Millisecond
	TextWaitTimeout   = 60 * time.Second
	CanvasWaitTimeout = 10 * time.Second
	ScrollProjectsY   = 1000
	ScrollToTopY      = 2000

	DarkModeLoadTimeout = 30 * time.Second
	SceneInitDelay      = 3 * time.Second
	ToggleDelay         = 1 * time.Second
	SectionDelay        = 2 * time.Second
)

var (
	MobileViewport  = walk.Viewport{Width: 375, Height: 667} // iPhone SE
	DesktopViewport = walk.Viewport{Width: 1280, Height: 720}
)

const (
	MenuToggleSelector     = "button:has(svg.lucide-menu)"
	DarkModeToggleSelector = `button[aria-label="Toggle dark mode"]`
	RoleMarker             = "Software Architect"
	CanvasSelector         = "canvas"
	darkClassExpr          = "document.documentElement.classList.contains('dark')"
)

const (
	MobileName    = "mobile"
	PortfolioName = "portfolio"
	DarkModeName  = "darkmode"
)

// Mobile checks the homepage layout, the mobile menu, the projects section
// and the scroll-to-top affordance on a phone sized viewport.
func Mobile() walk.Walk {
	return walk.Walk{
		Name:          MobileName,
		Description:   "mobile viewport smoke test",
		Viewport:      lo.ToPtr(MobileViewport),
		ErrorArtifact: "error",
		Steps: []walk.Step{
			walk.Navigate("", walk.LoadNetworkIdle).Say("Navigating to homepage..."),
			walk.Capture("1-mobile-home").Say("Taking homepage screenshot..."),
			walk.ClickIfVisible(walk.CSS(MenuToggleSelector),
				walk.Settle(SettleDelay),
				walk.Capture("2-mobile-menu").Say("Taking menu screenshot..."),
			).Say("Opening mobile menu...").IfMissing("Menu button not found!"),
			walk.Reload(walk.LoadNetworkIdle).Say("Closing menu and scrolling..."),
			walk.ScrollTo(0, ScrollProjectsY).ThenSettle(SettleDelay),
			walk.Capture("3-mobile-projects").Say("Taking projects screenshot..."),
			walk.ScrollTo(0, ScrollToTopY).ThenSettle(SettleDelay),
			walk.Capture("4-scroll-to-top").Say("Taking scroll-to-top screenshot..."),
		},
	}
}

// Portfolio checks that /portfolio renders its headline and the 3D scene canvas.
func Portfolio() walk.Walk {
	return walk.Walk{
		Name:        PortfolioName,
		Description: "portfolio page render check",
		Steps: []walk.Step{
			walk.Navigate("/portfolio", walk.LoadEvent).Say("Navigating to portfolio page..."),
			walk.WaitFor(walk.Text(RoleMarker), TextWaitTimeout).Say("Waiting for 'Software Architect' text..."),
			walk.WaitFor(walk.CSS(CanvasSelector), CanvasWaitTimeout).Say("Waiting for canvas..."),
			walk.Capture("portfolio").Say("Taking screenshot..."),
		},
	}
}

// DarkMode toggles the colour scheme and captures each section in dark mode
// before switching back.
func DarkMode() walk.Walk {
	toggle := walk.CSS(DarkModeToggleSelector)
	section := func(text, artifact, label string) []walk.Step {
		return []walk.Step{
			walk.Click(walk.Text(text)).Say("Clicking \"" + text + "\" nav...").ThenSettle(SectionDelay),
			walk.Capture(artifact).Say("Screenshot: Dark mode (" + label + ")"),
		}
	}

	steps := []walk.Step{
		walk.Navigate("", walk.LoadNetworkIdle).WithTimeout(DarkModeLoadTimeout).Say("Loading page...").ThenSettle(SceneInitDelay),
		walk.Capture("pw_light_hero").Say("Screenshot: Light mode (hero)"),
		walk.ClickIfVisible(toggle).Say("Clicking dark mode toggle...").
			IfFound("✓ Toggle found and clicked").
			IfMissing("✗ Toggle button NOT found!"),
		walk.Settle(ToggleDelay),
		walk.Check("Dark class on <html>", darkClassExpr),
		walk.Capture("pw_dark_hero").Say("Screenshot: Dark mode (hero)"),
	}
	steps = append(steps, section("Work", "pw_dark_work", "work")...)
	steps = append(steps, section("Info", "pw_dark_info", "info")...)
	steps = append(steps, section("Contact", "pw_dark_contact", "contact")...)
	steps = append(steps,
		walk.Click(toggle).Say("Toggling back to light mode...").ThenSettle(ToggleDelay),
		walk.Check("Dark class removed", "!"+darkClassExpr),
		walk.Click(walk.Text("Home")).Say("Clicking \"Home\" nav...").ThenSettle(SectionDelay),
		walk.Capture("pw_light_restored").Say("Screenshot: Light mode (restored)"),
	)

	return walk.Walk{
		Name:          DarkModeName,
		Description:   "dark mode toggle verification",
		Viewport:      lo.ToPtr(DesktopViewport),
		ErrorArtifact: "darkmode-error",
		Steps:         steps,
	}
}

// All returns every walk in a stable order.
func All() []walk.Walk {
	return []walk.Walk{Mobile(), Portfolio(), DarkMode()}
}

func Names() []string {
	names := lo.Map(All(), func(w walk.Walk, _ int) string { return w.Name })
	sort.Strings(names)
	return names
}

func ByName(name string) (walk.Walk, error) {
	w, found := lo.Find(All(), func(w walk.Walk) bool { return w.Name == name })
	if !found {
		return walk.Walk{}, errors.Errorf("unknown walk %q, expected one of %v", name, Names())
	}
	return w, nil
}
