package services

import (
	"context"
	"errors"
	"fmt"

	"financas/internal/core"
	"financas/internal/extract"
	"financas/internal/log"
)

// ErrImportUnavailable is returned when no extractor is configured.
var ErrImportUnavailable = errors.New("text import unavailable")

// ImportRequest is one free-text import.
type ImportRequest struct {
	Text       string
	AccountID  string
	CategoryID string
}

// ImportIssue is a candidate that was not imported.
type ImportIssue struct {
	Index  int    `json:"index"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// ImportResult lists created transactions, rejected candidates and the
// notes of the extractor itself.
type ImportResult struct {
	Created  []core.Transaction `json:"created"`
	Rejected []ImportIssue      `json:"rejected"`
	Notes    []string           `json:"notes"`
}

// ImportService turns free text into paid cash transactions.
type ImportService struct {
	extractor    extract.Extractor
	transactions *TransactionService
	logger       *log.Logger
}

func NewImportService(extractor extract.Extractor, transactions *TransactionService, logger *log.Logger) *ImportService {
	return &ImportService{
		extractor:    extractor,
		transactions: transactions,
		logger:       componentLogger(logger, log.ComponentImport),
	}
}

// Import extracts candidates from req.Text. Each valid candidate becomes a
// single installment cash transaction on req.AccountID; invalid ones are
// reported by index and never adjusted.
func (s *ImportService) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	if s.extractor == nil {
		return ImportResult{}, ErrImportUnavailable
	}
	if req.AccountID == "" {
		return ImportResult{}, &core.ValidationError{Field: "account_id", Err: core.ErrMissingAccount}
	}

	ext, err := s.extractor.Extract(ctx, req.Text)
	if err != nil {
		return ImportResult{}, fmt.Errorf("extract: %w", err)
	}

	res := ImportResult{
		Created:  []core.Transaction{},
		Rejected: []ImportIssue{},
		Notes:    ext.Errors,
	}
	if res.Notes == nil {
		res.Notes = []string{}
	}

	for i, c := range ext.Candidates {
		entry, err := extract.ValidateCandidate(c)
		if err == nil {
			var tx core.Transaction
			tx, err = s.transactions.Create(ctx, core.TransactionParams{
				Description:  entry.Description,
				Amount:       entry.Amount,
				Date:         entry.Date,
				Installments: 1,
				Kind:         core.KindCash,
				IsIncome:     entry.IsIncome,
				AccountID:    req.AccountID,
				CategoryID:   req.CategoryID,
			})
			if err == nil {
				res.Created = append(res.Created, tx)
				continue
			}
		}
		rejected := issue(i, err)
		s.logger.WarnContext(ctx, "Import candidate rejected",
			log.FieldOperation, log.OpValidate,
			"index", i,
			"field", rejected.Field,
			log.FieldError, rejected.Reason)
		res.Rejected = append(res.Rejected, rejected)
	}

	s.logger.InfoContext(ctx, "Text import complete",
		"created", len(res.Created),
		"rejected", len(res.Rejected),
		"notes", len(res.Notes))
	return res, nil
}

func issue(index int, err error) ImportIssue {
	out := ImportIssue{Index: index, Reason: err.Error()}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		out.Field = verr.Field
		out.Reason = verr.Err.Error()
	}
	return out
}
