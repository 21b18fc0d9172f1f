package commands

import (
	"fmt"
	"os"
	"time"

	"ibank-scraper/internal/session"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspects or clears the stored portal session.",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Lists the stored cookies without their values.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackends()
		if err != nil {
			return err
		}
		defer b.Close()

		s, err := b.store.Load(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Name", "Domain", "Path", "Expires"})
		for _, c := range s {
			expires := "session"
			if !c.Session && c.Expires > 0 {
				expires = time.Unix(int64(c.Expires), 0).UTC().Format(time.RFC3339)
			}
			t.AppendRow(table.Row{c.Name, c.Domain, c.Path, expires})
		}
		t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d cookies", len(s))})
		t.Render()
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forgets the stored session so the next scrape logs in again.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackends()
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.store.Save(cmd.Context(), session.Session{}); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		logger.Info("session cleared", zap.String("store", env.SessionStore))
		return nil
	},
}
