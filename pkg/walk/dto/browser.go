package dto

import (
	"time"

	"github.com/samber/lo"
)

const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

type BrowserOpts struct {
	Headful   bool            `json:"headful" yaml:"headful" default:"false"`                        // run headful chrome (default: false)
	UserAgent string          `json:"userAgent,omitempty" yaml:"userAgent,omitempty" default:""`     // use user-agent (default: browser default)
	Cookies   []BrowserCookie `json:"cookies,omitempty" yaml:"cookies,omitempty"`                    // cookies to set before the first navigation
	Width     *int            `json:"width,omitempty" yaml:"width,omitempty" example:"375"`          // width of the page viewport (default: 1280)
	Height    *int            `json:"height,omitempty" yaml:"height,omitempty" example:"667"`        // height of the page viewport (default: 720)
	SlowMo    string          `json:"slowMo,omitempty" yaml:"slowMo,omitempty" example:"250ms"`      // delay inserted by the driver between operations
	Timeout   string          `json:"timeout,omitempty" yaml:"timeout,omitempty" example:"30s"`      // default navigation timeout in go duration format
}

type BrowserCookie struct {
	Name     string `json:"name" yaml:"name"`
	Value    string `json:"value" yaml:"value"`
	Domain   string `json:"domain" yaml:"domain"`
	Path     string `json:"path" yaml:"path"`
	HTTPOnly bool   `json:"httpOnly" yaml:"httpOnly"`
	Secure   bool   `json:"secure" yaml:"secure"`
}

// Viewport returns the configured viewport size, falling back to the desktop default.
func (o BrowserOpts) Viewport() (int, int) {
	return lo.FromPtrOr(o.Width, DefaultWidth), lo.FromPtrOr(o.Height, DefaultHeight)
}

// SlowMoDuration parses SlowMo, treating an empty or malformed value as zero.
func (o BrowserOpts) SlowMoDuration() time.Duration {
	return parseDuration(o.SlowMo, 0)
}

// TimeoutDuration parses Timeout, returning def for an empty or malformed value.
func (o BrowserOpts) TimeoutDuration(def time.Duration) time.Duration {
	return parseDuration(o.Timeout, def)
}

func parseDuration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	dur, err := time.ParseDuration(value)
	if err != nil || dur < 0 {
		return def
	}
	return dur
}
