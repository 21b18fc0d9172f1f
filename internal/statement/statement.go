// Package statement reads downloaded PDF account statements into the same
// account.Snapshot the live scraper produces.
package statement

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ibank-scraper/internal/account"
	"ibank-scraper/internal/extract"

	"github.com/gen2brain/go-fitz"
	"github.com/shopspring/decimal"
)

// ErrNoBalance is returned when a statement has no closing balance line.
var ErrNoBalance = errors.New("statement: closing balance not found")

const money = `[-+−]?\s*\$?\s*[\d,]*\d\.\d{2}`

var (
	// date, description, amount and an optional running balance column.
	// Amounts always carry two decimals.
	linePattern        = regexp.MustCompile(`^(\d{1,2}\s+[A-Za-z]{3}\s+\d{2,4}|\d{1,2}/\d{1,2}/\d{2,4})\s+(.*?\S)\s+(` + money + `)(?:\s+(` + money + `))?$`)
	balancePattern     = regexp.MustCompile(`(?i)^closing\s+balance\b\s*:?\s*(.*)$`)
	pageNumberPattern  = regexp.MustCompile(`(?i)^(page\s+)?\d+\s*(/|of)\s*\d+$`)
	nonTransactionRows = []string{
		"opening balance",
		"closing balance",
		"brought forward",
		"carried forward",
		"balance b/f",
		"balance c/f",
		"transaction details",
	}
)

// Parser handles text extraction from a PDF statement.
type Parser struct {
	doc *fitz.Document
}

// NewParser opens a PDF statement from a file path.
func NewParser(filePath string) (*Parser, error) {
	doc, err := fitz.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &Parser{doc: doc}, nil
}

// NewParserFromBytes opens a PDF statement held in memory, such as one
// piped in on stdin.
func NewParserFromBytes(data []byte) (*Parser, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF from memory: %w", err)
	}
	return &Parser{doc: doc}, nil
}

// Close releases the underlying document.
func (p *Parser) Close() error {
	if p.doc != nil {
		p.doc.Close()
	}
	return nil
}

// Text extracts the text of every page, pages separated by a newline.
func (p *Parser) Text() (string, error) {
	var b strings.Builder
	for i := 0; i < p.doc.NumPage(); i++ {
		text, err := p.doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", i+1, err)
		}
		b.WriteString(text)
		if i < p.doc.NumPage()-1 {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// Snapshot extracts and parses the whole statement.
func (p *Parser) Snapshot(norm extract.Normalizer) (account.Snapshot, error) {
	text, err := p.Text()
	if err != nil {
		return account.Snapshot{}, err
	}
	return Parse(text, norm)
}

// Parse reads statement text. Every "date description amount" line becomes a
// settled transaction in statement order. A second trailing value on a line is
// the running balance and is dropped. Balance and header lines are skipped
// even when dated. The closing balance is reported as both current and
// available balance.
func Parse(text string, norm extract.Normalizer) (account.Snapshot, error) {
	var (
		txs     []account.Transaction
		closing *decimal.Decimal
	)

	for i, raw := range strings.Split(text, "\n") {
		line := strings.Join(strings.Fields(raw), " ")
		if line == "" {
			continue
		}

		if m := balancePattern.FindStringSubmatch(line); m != nil {
			value, err := extract.ReadAmount(m[1])
			if err != nil {
				return account.Snapshot{}, &extract.FieldError{Row: -1, Field: "closingBalance", Raw: m[1], Err: err}
			}
			closing = &value
			continue
		}

		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !isRealTransaction(m[2]) {
			continue
		}
		date, err := norm.NormalizeDate(m[1], false)
		if err != nil {
			return account.Snapshot{}, &extract.FieldError{Row: i, Field: "date", Raw: m[1], Err: err}
		}
		amount, err := extract.ReadAmount(m[3])
		if err != nil {
			return account.Snapshot{}, &extract.FieldError{Row: i, Field: "amount", Raw: m[3], Err: err}
		}
		txs = append(txs, account.Transaction{
			Description: m[2],
			Amount:      amount,
			Date:        date,
		})
	}

	if closing == nil {
		return account.Snapshot{}, ErrNoBalance
	}
	return account.NewSnapshot(*closing, *closing, txs), nil
}

// isRealTransaction filters out dated lines that only restate a balance or
// repeat a page header.
func isRealTransaction(description string) bool {
	if len(description) < 3 || pageNumberPattern.MatchString(description) {
		return false
	}
	lower := strings.ToLower(description)
	for _, pattern := range nonTransactionRows {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	return true
}
