// Package report writes a scrape result in its two forms: a table for people
// on the diagnostic stream and one JSON document for programs on stdout.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"ibank-scraper/internal/account"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
)

// Options controls how Render draws the summary.
type Options struct {
	Color bool
}

var directionColors = map[account.Direction]text.Colors{
	account.Credit:  {text.FgGreen},
	account.Debit:   {text.FgRed},
	account.Pending: {text.FgYellow},
}

func (o Options) paint(d account.Direction, s string) string {
	if !o.Color {
		return s
	}
	return directionColors[d].Sprint(s)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Render prints both balances followed by one table row per transaction.
func Render(w io.Writer, snap account.Snapshot, opts Options) {
	balance := func(label string, v decimal.Decimal) {
		d := account.Credit
		if v.IsNegative() {
			d = account.Debit
		}
		fmt.Fprintf(w, "%-18s %s\n", label, opts.paint(d, money(v)))
	}
	balance("Current balance:", snap.CurrentBalance)
	balance("Available balance:", snap.AvailableBalance)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Date", "Description", "Card", "Amount", ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
	})

	for _, tx := range snap.Transactions {
		d := tx.Direction()
		t.AppendRow(table.Row{
			tx.Date.String(),
			tx.Description,
			tx.CardName,
			opts.paint(d, money(tx.Amount)),
			opts.paint(d, d.String()),
		})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d", len(snap.Transactions)), "transactions"})
	t.Render()
}

// Emit writes snap as a single JSON document terminated by a newline.
func Emit(w io.Writer, snap account.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	raw = append(raw, '\n')
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
