package account

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const dayLayout = "2006-01-02"

// Direction classifies a transaction for display.
type Direction int

const (
	Credit Direction = iota
	Debit
	Pending
)

func (d Direction) String() string {
	switch d {
	case Credit:
		return "credit"
	case Debit:
		return "debit"
	case Pending:
		return "pending"
	}
	return "unknown"
}

// Date is a UTC calendar day, or a full UTC instant for same-day pending rows.
type Date struct {
	Time    time.Time
	Instant bool
}

// Day returns the UTC midnight of the given calendar day.
func Day(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// At returns an instant-precision date.
func At(t time.Time) Date {
	return Date{Time: t.UTC(), Instant: true}
}

func (d Date) String() string {
	if d.Instant {
		return d.Time.UTC().Format(time.RFC3339)
	}
	return d.Time.UTC().Format(dayLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if t, err := time.Parse(dayLayout, raw); err == nil {
		*d = Date{Time: t}
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", raw, err)
	}
	*d = At(t)
	return nil
}

// Transaction is a single normalized row from the account page.
// A negative amount is a debit, anything else a credit.
type Transaction struct {
	Pending     bool
	Description string
	CardName    string
	Amount      decimal.Decimal
	Date        Date
}

// Direction reports pending first, then the sign of the amount.
func (t Transaction) Direction() Direction {
	if t.Pending {
		return Pending
	}
	if t.Amount.IsNegative() {
		return Debit
	}
	return Credit
}

// Key identifies a transaction across runs for notification tracking.
func (t Transaction) Key() string {
	return fmt.Sprintf("%s|%s|%s", t.Date, t.Description, t.Amount.String())
}

type transactionJSON struct {
	Pending     bool        `json:"pending"`
	Description string      `json:"description"`
	CardName    string      `json:"cardName"`
	Amount      json.Number `json:"amount"`
	Date        Date        `json:"date"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		Pending:     t.Pending,
		Description: t.Description,
		CardName:    t.CardName,
		Amount:      json.Number(t.Amount.String()),
		Date:        t.Date,
	})
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw transactionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(raw.Amount.String())
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw.Amount, err)
	}
	*t = Transaction{
		Pending:     raw.Pending,
		Description: raw.Description,
		CardName:    raw.CardName,
		Amount:      amount,
		Date:        raw.Date,
	}
	return nil
}

// Snapshot is the result of one scrape run. Build it once with NewSnapshot
// and treat it as read-only afterwards.
type Snapshot struct {
	CurrentBalance   decimal.Decimal
	AvailableBalance decimal.Decimal
	Transactions     []Transaction
}

// NewSnapshot copies the transaction slice so later edits by the caller
// cannot leak into the snapshot.
func NewSnapshot(current, available decimal.Decimal, transactions []Transaction) Snapshot {
	txs := make([]Transaction, len(transactions))
	copy(txs, transactions)
	return Snapshot{
		CurrentBalance:   current,
		AvailableBalance: available,
		Transactions:     txs,
	}
}

type snapshotJSON struct {
	CurrentBalance   json.Number   `json:"currentBalance"`
	AvailableBalance json.Number   `json:"availableBalance"`
	Transactions     []Transaction `json:"transactions"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	txs := s.Transactions
	if txs == nil {
		txs = []Transaction{}
	}
	return json.Marshal(snapshotJSON{
		CurrentBalance:   json.Number(s.CurrentBalance.String()),
		AvailableBalance: json.Number(s.AvailableBalance.String()),
		Transactions:     txs,
	})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	current, err := decimal.NewFromString(raw.CurrentBalance.String())
	if err != nil {
		return fmt.Errorf("invalid current balance: %w", err)
	}
	available, err := decimal.NewFromString(raw.AvailableBalance.String())
	if err != nil {
		return fmt.Errorf("invalid available balance: %w", err)
	}
	*s = NewSnapshot(current, available, raw.Transactions)
	return nil
}
