package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/integrail/pagewalk/internal/build"
	"github.com/integrail/pagewalk/pkg/config"
	"github.com/integrail/pagewalk/pkg/driver/pwdriver"
	"github.com/integrail/pagewalk/pkg/walk"
	"github.com/integrail/pagewalk/pkg/walks"
)

func main() {
	cfg := config.Default()

	rootCmd := &cobra.Command{
		Use:     "pagewalk",
		Version: build.Version,
		Short:   "pagewalk captures verification screenshots of the portfolio front-end",
		Long:    "Drives a headless browser through fixed walks and saves a screenshot after each milestone",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Validate()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfg.Url, "url", "u", cfg.Url, "Base URL of the front-end under test")
	rootCmd.PersistentFlags().StringVarP(&cfg.OutDir, "out", "o", cfg.OutDir, "Directory screenshots are written to")
	rootCmd.PersistentFlags().StringVar(&cfg.Driver, "driver", cfg.Driver, "Browser driver: playwright or chromedp")
	rootCmd.PersistentFlags().StringVar(&cfg.ChromePath, "chrome-path", cfg.ChromePath, "Chrome binary used by the chromedp driver")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Headful, "headful", "H", cfg.Headful, "Show the browser window")
	rootCmd.PersistentFlags().StringVarP(&cfg.Timeout, "timeout", "t", cfg.Timeout, "Navigation timeout (duration, e.g. 30s)")
	rootCmd.PersistentFlags().StringVar(&cfg.SlowMo, "slow-mo", cfg.SlowMo, "Delay between browser operations (duration, e.g. 250ms)")
	rootCmd.PersistentFlags().StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "Override the browser user agent")
	rootCmd.PersistentFlags().StringSliceVarP(&cfg.Cookies, "cookie", "C", []string{}, "Cookies to set before navigating (name=value)")
	rootCmd.PersistentFlags().StringVarP(&cfg.CookieDomain, "cookie-domain", "D", "", "Domain for cookies, defaults to the host of --url")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text or json)")
	rootCmd.PersistentFlags().BoolVar(&cfg.TUI, "tui", cfg.TUI, "Show an interactive progress view")

	for _, w := range walks.All() {
		rootCmd.AddCommand(walkCommand(&cfg, w))
	}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Run every walk, one browser session each",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()
			for _, w := range walks.All() {
				if ctx.Err() != nil {
					break
				}
				runWalk(ctx, cfg, w, cmd.OutOrStdout())
			}
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install the chromium build used by the playwright driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			return pwdriver.Install()
		},
	})

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func walkCommand(cfg *config.Config, w walk.Walk) *cobra.Command {
	return &cobra.Command{
		Use:   w.Name,
		Short: fmt.Sprintf("Run the %s", w.Description),
		Args:  cobra.NoArgs,
		// a failed walk is reported, never turned into a non-zero exit code
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()
			runWalk(ctx, *cfg, w, cmd.OutOrStdout())
		},
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
