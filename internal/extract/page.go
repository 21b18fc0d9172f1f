package extract

import (
	"fmt"
	"strings"
	"time"

	"ibank-scraper/internal/account"
	"ibank-scraper/internal/config"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// text returns the whitespace-collapsed text of the first match of selector
// inside sel, and whether anything matched.
func text(sel *goquery.Selection, selector string) (string, bool) {
	if selector == "" {
		return "", false
	}
	found := sel.Find(selector).First()
	if found.Length() == 0 {
		return "", false
	}
	return strings.Join(strings.Fields(found.Text()), " "), true
}

// ReadRows converts every row element into a Transaction, keeping page order.
// A row containing the pending marker is read only through the pending field
// selectors, any other row only through the settled ones.
func ReadRows(rows *goquery.Selection, shape config.Transactions, norm Normalizer) ([]account.Transaction, error) {
	txs := make([]account.Transaction, 0, rows.Length())
	var rowErr error

	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		pending := row.Find(shape.PendingMarker).Length() > 0
		fields := shape.Settled
		if pending {
			fields = shape.Pending
		}

		rawAmount, _ := text(row, fields.Amount)
		amount, err := ReadAmount(rawAmount)
		if err != nil {
			rowErr = &FieldError{Row: i, Field: "amount", Raw: rawAmount, Err: err}
			return false
		}

		rawDate, _ := text(row, fields.Date)
		date, err := norm.NormalizeDate(rawDate, pending)
		if err != nil {
			rowErr = &FieldError{Row: i, Field: "date", Raw: rawDate, Err: err}
			return false
		}

		description, _ := text(row, fields.Description)
		card, _ := text(row, fields.Card)

		txs = append(txs, account.Transaction{
			Pending:     pending,
			Description: description,
			CardName:    card,
			Amount:      amount,
			Date:        date,
		})
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return txs, nil
}

// ReadBalances reads the current and available balance elements.
func ReadBalances(doc *goquery.Selection, b config.Balances) (current, available decimal.Decimal, err error) {
	current, err = readBalance(doc, "currentBalance", b.Current)
	if err != nil {
		return
	}
	available, err = readBalance(doc, "availableBalance", b.Available)
	return
}

func readBalance(doc *goquery.Selection, field, selector string) (decimal.Decimal, error) {
	raw, ok := text(doc, selector)
	if !ok {
		return decimal.Zero, &FieldError{Row: -1, Field: field, Raw: selector, Err: ErrMissingField}
	}
	value, err := ReadAmount(raw)
	if err != nil {
		return decimal.Zero, &FieldError{Row: -1, Field: field, Raw: raw, Err: err}
	}
	return value, nil
}

// Snapshot extracts the full account record from a rendered account page.
func Snapshot(html string, profile config.Profile, now func() time.Time) (account.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return account.Snapshot{}, fmt.Errorf("failed to parse account page: %w", err)
	}

	norm, err := NewNormalizer(profile, now)
	if err != nil {
		return account.Snapshot{}, err
	}

	current, available, err := ReadBalances(doc.Selection, profile.Balances)
	if err != nil {
		return account.Snapshot{}, err
	}

	txs, err := ReadRows(doc.Find(profile.Transactions.Row), profile.Transactions, norm)
	if err != nil {
		return account.Snapshot{}, err
	}

	return account.NewSnapshot(current, available, txs), nil
}
