package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ibank-scraper/internal/account"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func snapshot(n int) account.Snapshot {
	txs := []account.Transaction{
		{Pending: true, Description: "COFFEE", Amount: decimal.RequireFromString("-4.5"), Date: account.At(time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC))},
	}
	for i := 0; i < n; i++ {
		txs = append(txs, account.Transaction{
			Description: "SHOP",
			Amount:      decimal.NewFromInt(int64(-10 - i)),
			Date:        account.Day(2024, 3, 1),
		})
	}
	return account.NewSnapshot(decimal.RequireFromString("100"), decimal.RequireFromString("95.5"), txs)
}

type recorder struct {
	payloads []DiscordWebhookPayload
	status   int
}

func (r *recorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

		var p DiscordWebhookPayload
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&p))
		r.payloads = append(r.payloads, p)

		if r.status != 0 {
			w.WriteHeader(r.status)
			_, _ = w.Write([]byte(`{"message":"Unknown Webhook"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fileLedger(t *testing.T) *FileLedger {
	t.Helper()
	return NewFileLedger(filepath.Join(t.TempDir(), "notified.json"), "stgeorge")
}

func newTestWebhook(url string, ledger Ledger) *Webhook {
	w := NewWebhook(url, "stgeorge", ledger, zap.NewNop())
	w.now = func() time.Time { return time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC) }
	return w
}

func TestNotifySendsOnlyNewSettledTransactions(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	ledger := fileLedger(t)
	w := newTestWebhook(srv.URL, ledger)
	ctx := context.Background()

	sent, err := w.Notify(ctx, snapshot(2))
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	require.Len(t, rec.payloads, 1)

	p := rec.payloads[0]
	assert.Contains(t, p.Content, "**2024-03-01** | SHOP | `-10.00`")
	assert.NotContains(t, p.Content, "COFFEE")
	require.Len(t, p.Embeds, 1)
	assert.Equal(t, "stgeorge: new transactions", p.Embeds[0].Title)
	assert.Equal(t, "2", p.Embeds[0].Fields[0].Value)
	assert.Equal(t, "3", p.Embeds[0].Fields[1].Value)
	assert.Equal(t, "95.50", p.Embeds[0].Fields[2].Value)
	assert.Equal(t, "2024-03-02T10:00:00Z", p.Embeds[0].Timestamp)

	// second run with the same page has nothing new
	sent, err = w.Notify(ctx, snapshot(2))
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, rec.payloads, 1)

	// one more row appears
	sent, err = w.Notify(ctx, snapshot(3))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Contains(t, rec.payloads[1].Content, "`-12.00`")
}

func TestNotifyTruncatesEmbed(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)

	sent, err := newTestWebhook(srv.URL, fileLedger(t)).Notify(context.Background(), snapshot(13))
	require.NoError(t, err)
	assert.Equal(t, 13, sent)

	listed := rec.payloads[0].Embeds[0].Fields[3].Value
	assert.Contains(t, listed, "_... and 3 more new transactions_")
}

func TestNotifyHTTPErrorKeepsLedger(t *testing.T) {
	rec := &recorder{status: http.StatusNotFound}
	srv := rec.server(t)
	ledger := fileLedger(t)

	_, err := newTestWebhook(srv.URL, ledger).Notify(context.Background(), snapshot(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	notified, err := ledger.IsNotified(context.Background(), snapshot(1).Transactions[1].Key())
	require.NoError(t, err)
	assert.False(t, notified)
}

type brokenLedger struct{}

func (brokenLedger) IsNotified(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func (brokenLedger) MarkNotified(context.Context, []string) error {
	return errors.New("connection refused")
}

func TestNotifyLedgerErrorsAreWarnings(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)

	sent, err := newTestWebhook(srv.URL, brokenLedger{}).Notify(context.Background(), snapshot(1))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestNotifyDedupesAcrossRuns(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	path := filepath.Join(t.TempDir(), "notified.json")
	ctx := context.Background()

	// each run is a new process with a fresh webhook over the same file
	first := newTestWebhook(srv.URL, NewFileLedger(path, "stgeorge"))
	sent, err := first.Notify(ctx, snapshot(2))
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	second := newTestWebhook(srv.URL, NewFileLedger(path, "stgeorge"))
	sent, err = second.Notify(ctx, snapshot(2))
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, rec.payloads, 1)

	// another portal keeps its own keys
	other := newTestWebhook(srv.URL, NewFileLedger(path, "westpac"))
	sent, err = other.Notify(ctx, snapshot(2))
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}

func TestFileLedger(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notified.json")
	l := NewFileLedger(path, "stgeorge")

	ok, err := l.IsNotified(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.MarkNotified(ctx, []string{"a", "b"}))
	require.NoError(t, l.MarkNotified(ctx, []string{"b"}))
	ok, err = NewFileLedger(path, "stgeorge").IsNotified(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)

	var onDisk map[string][]string
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, map[string][]string{"stgeorge": {"a", "b"}}, onDisk)
}

func TestFileLedgerCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notified.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"stgeorge": [`), 0o600))

	_, err := NewFileLedger(path, "stgeorge").IsNotified(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode notified transactions")
}
