// Package notify announces newly seen transactions on a Discord webhook.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ibank-scraper/internal/account"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const maxEmbedTransactions = 10

// DiscordWebhookPayload represents the JSON structure for Discord webhook.
type DiscordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents a Discord embed object.
type DiscordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []DiscordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

// DiscordField represents a field in a Discord embed.
type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Webhook posts newly seen settled transactions to a Discord webhook.
type Webhook struct {
	client *resty.Client
	url    string
	portal string
	ledger Ledger
	logger *zap.Logger
	now    func() time.Time
}

// NewWebhook creates a Webhook for one portal. Keys already in ledger are
// never posted again.
func NewWebhook(url, portal string, ledger Ledger, logger *zap.Logger) *Webhook {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetHeader("Content-Type", "application/json")

	return &Webhook{
		client: client,
		url:    url,
		portal: portal,
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

// Notify posts every settled transaction not yet in the ledger and records
// them afterwards. Pending rows are skipped since their date and amount can
// still change. It returns how many transactions were announced.
func (w *Webhook) Notify(ctx context.Context, snap account.Snapshot) (int, error) {
	var fresh []account.Transaction
	for _, tx := range snap.Transactions {
		if tx.Pending {
			continue
		}
		notified, err := w.ledger.IsNotified(ctx, tx.Key())
		if err != nil {
			w.logger.Warn("failed to check if transaction is notified", zap.Error(err))
			notified = false
		}
		if !notified {
			fresh = append(fresh, tx)
		}
	}

	if len(fresh) == 0 {
		w.logger.Info("no new transactions to notify")
		return 0, nil
	}

	payload := w.payload(snap, fresh)
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(w.url)
	if err != nil {
		return 0, fmt.Errorf("failed to send Discord webhook: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("discord webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}
	w.logger.Info("discord notification sent", zap.Int("new", len(fresh)))

	keys := make([]string, 0, len(fresh))
	for _, tx := range fresh {
		keys = append(keys, tx.Key())
	}
	if err := w.ledger.MarkNotified(ctx, keys); err != nil {
		// the message went out already
		w.logger.Warn("failed to mark transactions as notified", zap.Error(err))
	}
	return len(fresh), nil
}

func line(tx account.Transaction) string {
	return fmt.Sprintf("**%s** | %s | `%s`", tx.Date, tx.Description, tx.Amount.StringFixed(2))
}

func (w *Webhook) payload(snap account.Snapshot, fresh []account.Transaction) DiscordWebhookPayload {
	var listed strings.Builder
	shown := min(len(fresh), maxEmbedTransactions)
	for _, tx := range fresh[:shown] {
		listed.WriteString(line(tx))
		listed.WriteString("\n")
	}
	if len(fresh) > shown {
		fmt.Fprintf(&listed, "\n_... and %d more new transactions_", len(fresh)-shown)
	}

	var content strings.Builder
	for _, tx := range fresh {
		content.WriteString(line(tx))
		content.WriteString("\n\n")
	}

	return DiscordWebhookPayload{
		Content: strings.TrimSpace(content.String()),
		Embeds: []DiscordEmbed{{
			Title: fmt.Sprintf("%s: new transactions", w.portal),
			Color: 0x00FF00,
			Fields: []DiscordField{
				{Name: "New Transactions", Value: fmt.Sprintf("%d", len(fresh)), Inline: true},
				{Name: "Total Transactions", Value: fmt.Sprintf("%d", len(snap.Transactions)), Inline: true},
				{Name: "Available Balance", Value: snap.AvailableBalance.StringFixed(2), Inline: true},
				{Name: "Transactions", Value: listed.String()},
			},
			Timestamp: w.now().UTC().Format(time.RFC3339),
		}},
	}
}
