package config

import (
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/integrail/pagewalk/pkg/util"
	"github.com/integrail/pagewalk/pkg/walk"
	"github.com/integrail/pagewalk/pkg/walk/dto"
	"github.com/integrail/pagewalk/pkg/walks"
)

const (
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
)

type Config struct {
	Url          string   `json:"url" yaml:"url"`
	OutDir       string   `json:"outDir" yaml:"outDir"`
	Driver       string   `json:"driver" yaml:"driver"`
	ChromePath   string   `json:"chromePath,omitempty" yaml:"chromePath,omitempty"`
	Headful      bool     `json:"headful" yaml:"headful"`
	Timeout      string   `json:"timeout" yaml:"timeout"`
	SlowMo       string   `json:"slowMo,omitempty" yaml:"slowMo,omitempty"`
	UserAgent    string   `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	Cookies      []string `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	CookieDomain string   `json:"cookieDomain,omitempty" yaml:"cookieDomain,omitempty"`
	LogLevel     string   `json:"logLevel" yaml:"logLevel"`
	LogFormat    string   `json:"logFormat" yaml:"logFormat"`
	TUI          bool     `json:"tui" yaml:"tui"`
}

// Default returns the built-in constants overridden by PAGEWALK_* environment variables.
func Default() Config {
	return Config{
		Url:        util.EnvOr("PAGEWALK_URL", walks.BaseURL),
		OutDir:     util.EnvOr("PAGEWALK_OUT_DIR", walk.DefaultOutDir),
		Driver:     util.EnvOr("PAGEWALK_DRIVER", DriverPlaywright),
		ChromePath: util.EnvOr("PAGEWALK_CHROME_PATH", ""),
		Headful:    util.EnvOr("PAGEWALK_HEADFUL", "") == "true",
		Timeout:    util.EnvOr("PAGEWALK_TIMEOUT", walk.DefaultNavigationTimeout.String()),
		LogLevel:   util.EnvOr("PAGEWALK_LOG_LEVEL", logrus.InfoLevel.String()),
		LogFormat:  util.EnvOr("PAGEWALK_LOG_FORMAT", "text"),
	}
}

func (c Config) Validate() error {
	u, err := url.Parse(c.Url)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("invalid target url %q", c.Url)
	}
	if !lo.Contains([]string{DriverPlaywright, DriverChromedp}, c.Driver) {
		return errors.Errorf("unknown driver %q, expected %q or %q", c.Driver, DriverPlaywright, DriverChromedp)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return errors.Wrapf(err, "invalid timeout %q", c.Timeout)
	}
	if c.SlowMo != "" {
		if _, err := time.ParseDuration(c.SlowMo); err != nil {
			return errors.Wrapf(err, "invalid slow-mo %q", c.SlowMo)
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid log level")
	}
	if !lo.Contains([]string{"text", "json"}, c.LogFormat) {
		return errors.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// BrowserOpts converts the config into driver launch options. Cookies default
// to the host of the target url.
func (c Config) BrowserOpts() dto.BrowserOpts {
	domain := c.CookieDomain
	if domain == "" {
		if u, err := url.Parse(c.Url); err == nil {
			domain = u.Hostname()
		}
	}
	return dto.BrowserOpts{
		Headful:   c.Headful,
		UserAgent: c.UserAgent,
		Cookies:   util.Cookies(c.Cookies, domain),
		SlowMo:    c.SlowMo,
		Timeout:   c.Timeout,
	}
}

// Logger builds the process logger. It writes to stderr so progress lines on stdout stay clean.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
