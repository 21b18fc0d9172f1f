package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"ibank-scraper/internal/extract"
	"ibank-scraper/internal/report"
	"ibank-scraper/internal/statement"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statementNotify bool

func init() {
	statementCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors in the summary table.")
	statementCmd.Flags().BoolVar(&statementNotify, "notify", false, "Announce new transactions on WEBHOOK_URL.")
	rootCmd.AddCommand(statementCmd)
}

var statementCmd = &cobra.Command{
	Use:   "statement <statement.pdf | ->",
	Short: "Reads a downloaded PDF statement and prints it in the same JSON shape as scrape.",
	Long:  "Reads a downloaded PDF statement and prints it in the same JSON shape as scrape. Pass - to read the PDF from stdin.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser, err := openStatement(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		defer parser.Close()

		norm, err := extract.NewNormalizer(profile, time.Now)
		if err != nil {
			return err
		}
		snap, err := parser.Snapshot(norm)
		if err != nil {
			return err
		}
		logger.Info("parsed statement",
			zap.String("file", args[0]),
			zap.Int("transactions", len(snap.Transactions)),
		)

		if statementNotify {
			b, err := openBackends()
			if err != nil {
				return err
			}
			defer b.Close()
			if n := newNotifier(b.ledger); n != nil {
				if _, err := n.Notify(cmd.Context(), snap); err != nil {
					logger.Warn("failed to send notification", zap.Error(err))
				}
			} else {
				logger.Warn("--notify given but WEBHOOK_URL is not set")
			}
		}

		report.Render(os.Stderr, snap, report.Options{Color: !noColor})
		return report.Emit(os.Stdout, snap)
	},
}

// openStatement opens the PDF at path, or reads it from stdin when path is "-".
func openStatement(path string, stdin io.Reader) (*statement.Parser, error) {
	if path != "-" {
		return statement.NewParser(path)
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement from stdin: %w", err)
	}
	return statement.NewParserFromBytes(data)
}
