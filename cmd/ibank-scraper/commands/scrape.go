package commands

import (
	"context"
	"os"
	"time"

	"ibank-scraper/internal/browser"
	"ibank-scraper/internal/config"
	"ibank-scraper/internal/metrics"
	"ibank-scraper/internal/report"
	"ibank-scraper/internal/scrape"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	credsPath   string
	headless    bool
	noColor     bool
	metricsFile string
)

func init() {
	scrapeCmd.Flags().StringVar(&credsPath, "creds", "", "Read credentials from this JSON file instead of the environment.")
	scrapeCmd.Flags().BoolVar(&headless, "headless", true, "Run Chrome without a window (default from HEADLESS).")
	scrapeCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors in the summary table.")
	scrapeCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics for this run to a textfile.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--creds <creds.json>] [--metrics-file <path>]",
	Short: "Logs in if needed and prints the account snapshot as JSON on stdout.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !cmd.Flags().Changed("headless") {
			headless = env.Headless
		}

		var collector metrics.Collector = metrics.NoOpCollector{}
		if metricsFile != "" {
			pc, err := metrics.NewPrometheusCollector("ibank")
			if err != nil {
				return err
			}
			collector = pc
			defer func() {
				if err := pc.WriteTextfile(metricsFile); err != nil {
					logger.Warn("failed to write metrics", zap.Error(err))
				}
			}()
		}

		b, err := openBackends()
		if err != nil {
			return err
		}
		defer b.Close()

		chrome, err := browser.NewChrome(browser.Options{
			Headless: headless,
			ExecPath: env.ChromePath,
			Viewport: profile.Viewport,
		}, logger)
		if err != nil {
			collector.RecordFailure(scrape.KindAutomation, 0)
			return err
		}
		defer chrome.Close()

		runner := &scrape.Runner{
			Page:    chrome,
			Store:   b.store,
			Profile: profile,
			Credentials: func(context.Context) (config.Credentials, error) {
				return config.LoadCredentials(profile, credsPath)
			},
			Logger:  logger,
			Now:     time.Now,
			Metrics: collector,
		}
		if n := newNotifier(b.ledger); n != nil {
			runner.Notifier = n
		}

		snap, err := runner.Run(ctx)
		if err != nil {
			return err
		}

		report.Render(os.Stderr, snap, report.Options{Color: !noColor})
		return report.Emit(os.Stdout, snap)
	},
}
