// Package extract turns free text (bank SMS, notes, pasted statements) into
// transaction candidates. The candidates are untrusted: ValidateCandidate
// decides which of them may become transactions.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"financas/internal/core"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyText     = errors.New("empty text")
	ErrEmptyResponse = errors.New("empty response from model")
)

// Extractor extracts transaction candidates from raw text.
type Extractor interface {
	Extract(ctx context.Context, raw string) (Extraction, error)
}

// Candidate is one transaction as reported by the extractor. Amount and
// Date are kept as text so that malformed values can be reported verbatim.
type Candidate struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	IsIncome    bool   `json:"isIncome"`
}

// Extraction is the extractor output. Errors are the extractor's own notes
// about parts of the text it could not read.
type Extraction struct {
	Candidates []Candidate `json:"transactions"`
	Errors     []string    `json:"errors"`
}

// Entry is a validated candidate.
type Entry struct {
	Description string
	Amount      core.Money
	Date        core.Date
	IsIncome    bool
}

// ValidateCandidate checks c against the transaction creation contract.
// Values are never rounded or trimmed into validity.
func ValidateCandidate(c Candidate) (Entry, error) {
	desc := strings.TrimSpace(c.Description)
	if desc == "" {
		return Entry{}, &core.ValidationError{Field: "description", Err: core.ErrEmptyDescription}
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(c.Amount))
	if err != nil {
		return Entry{}, &core.ValidationError{Field: "amount", Err: fmt.Errorf("%w: %q", core.ErrInvalidAmount, c.Amount)}
	}
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return Entry{}, &core.ValidationError{Field: "amount", Err: fmt.Errorf("%w: %q", core.ErrInvalidAmount, c.Amount)}
	}

	date, err := core.ParseDate(c.Date)
	if err != nil {
		return Entry{}, &core.ValidationError{Field: "date", Err: err}
	}

	return Entry{
		Description: desc,
		Amount:      core.NewMoney(amount),
		Date:        date,
		IsIncome:    c.IsIncome,
	}, nil
}

type rawCandidate struct {
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount"`
	Date        string          `json:"date"`
	IsIncome    bool            `json:"isIncome"`
}

// parseExtraction decodes a model response. Markdown fences and text around
// the JSON object are dropped; amounts may be JSON numbers or strings.
func parseExtraction(text string) (Extraction, error) {
	clean := cleanModelJSON(text)
	if clean == "" {
		return Extraction{}, ErrEmptyResponse
	}

	var payload struct {
		Transactions []rawCandidate `json:"transactions"`
		Errors       []string       `json:"errors"`
	}
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return Extraction{}, fmt.Errorf("unmarshal model response: %w", err)
	}

	out := Extraction{
		Candidates: make([]Candidate, 0, len(payload.Transactions)),
		Errors:     payload.Errors,
	}
	for _, rc := range payload.Transactions {
		out.Candidates = append(out.Candidates, Candidate{
			Description: rc.Description,
			Amount:      rawAmount(rc.Amount),
			Date:        rc.Date,
			IsIncome:    rc.IsIncome,
		})
	}
	return out, nil
}

func rawAmount(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// ```json ... ``` wrappers
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
