package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/report"
	"financas/internal/services"

	"github.com/google/uuid"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady checks the store
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"store": "ok", "import": "ok"}
	if s.deps.Store == nil {
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.Store.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if s.deps.Import == nil {
		checks["import"] = "not_configured"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides request and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	tm := s.tracer.GetMetrics()
	rm := s.rateLimiter.GetMetrics()
	dm := s.detector.GetMetrics()

	fmt.Fprintf(w, "financas_http_requests_total %d\n", tm.TotalRequests)
	fmt.Fprintf(w, "financas_http_server_errors_total %d\n", tm.ServerErrors)
	fmt.Fprintf(w, "financas_http_last_response_time_microseconds %d\n", tm.AverageResponseTime)
	fmt.Fprintf(w, "financas_rate_limit_hits_total %d\n", rm.TotalHits)
	fmt.Fprintf(w, "financas_rate_limit_clients %d\n", rm.ClientCount)
	fmt.Fprintf(w, "financas_suspicious_requests_total %d\n", dm.SuspiciousRequests)
	fmt.Fprintf(w, "financas_blocked_requests_total %d\n", dm.BlockedRequests)
	fmt.Fprintf(w, "financas_uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

func (s *Server) today() core.Date {
	return s.deps.Recurring.Today()
}

// Catalog

type namedPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AccountID string `json:"account_id"`
}

func (p namedPayload) clean() (namedPayload, error) {
	p.ID = sanitizeInput(p.ID)
	p.Name = sanitizeInput(p.Name)
	p.AccountID = sanitizeInput(p.AccountID)
	if p.Name == "" {
		return p, &core.ValidationError{Field: "name", Err: core.ErrEmptyDescription}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return p, nil
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.deps.Catalog.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var p namedPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	p, err := p.clean()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	a := core.Account{ID: p.ID, Name: p.Name}
	if err := s.deps.Catalog.CreateAccount(r.Context(), a); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.deps.Catalog.ListCards(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var p namedPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	p, err := p.clean()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	if p.AccountID == "" {
		writeError(w, r, log.OpCreate, &core.ValidationError{Field: "account_id", Err: core.ErrMissingAccount})
		return
	}
	c := core.Card{ID: p.ID, Name: p.Name, AccountID: p.AccountID}
	if err := s.deps.Catalog.CreateCard(r.Context(), c); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var p namedPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	p, err := p.clean()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	c := core.Category{ID: p.ID, Name: p.Name}
	if err := s.deps.Catalog.CreateCategory(r.Context(), c); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Recurring items

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Recurring.ListItems(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	item, err := s.deps.Recurring.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var p recurringPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	item, err := s.deps.Recurring.CreateItem(r.Context(), p.item())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var p recurringPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	item, err := s.deps.Recurring.UpdateItem(r.Context(), r.PathValue("id"), p.item())
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleSetRecurringEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := s.deps.Recurring.SetEnabled(r.Context(), r.PathValue("id"), enabled)
		if err != nil {
			writeError(w, r, log.OpUpdate, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Recurring.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFireRecurring runs the scheduler for as_of, defaulting to today.
func (s *Server) handleFireRecurring(w http.ResponseWriter, r *http.Request) {
	asOf := s.today()
	if v := strings.TrimSpace(r.URL.Query().Get("as_of")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, r, log.OpFire, &core.ValidationError{Field: "as_of", Err: err})
			return
		}
		asOf = d
	}
	summary, err := s.deps.Recurring.ProcessDue(r.Context(), asOf)
	if err != nil {
		// partial runs still report what was created
		log.FromContext(r.Context()).LogError(r.Context(), "Recurring run incomplete", err, log.OpFire,
			log.FieldAsOf, asOf.String())
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"summary": summary,
			"error":   "some recurring items failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Transactions

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriodQuery(r.URL.Query(), s.today())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	txs, err := s.deps.Transactions.List(r.Context(), p)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var p transactionPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	tx, err := s.deps.Transactions.Create(r.Context(), p.params(s.today()))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.deps.Transactions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Transactions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePayInstallment accepts an optional body; without one the
// installment is paid today at its scheduled amount.
func (s *Server) handlePayInstallment(w http.ResponseWriter, r *http.Request) {
	n, err := pathInt(r, "n")
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	var p payPayload
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &p); err != nil {
			writeError(w, r, log.OpUpdate, err)
			return
		}
	}
	if p.Date.IsZero() {
		p.Date = s.today()
	}
	tx, err := s.deps.Transactions.PayInstallment(r.Context(), r.PathValue("id"), n, p.Date, p.Amount)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUnpayInstallment(w http.ResponseWriter, r *http.Request) {
	n, err := pathInt(r, "n")
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	tx, err := s.deps.Transactions.UnpayInstallment(r.Context(), r.PathValue("id"), n)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// Reports

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var u Universe
	if wantsFilter(q) {
		var err error
		if u, err = s.universe(r.Context()); err != nil {
			writeError(w, r, log.OpReport, err)
			return
		}
	}
	req, err := ParseReportRequest(q, s.today(), u)
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}
	res, err := s.deps.Reports.Build(r.Context(), req)
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}

	if q.Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report-%s.csv"`, res.Kind))
		if err := report.WriteCSV(w, res); err != nil {
			log.FromContext(r.Context()).LogError(r.Context(), "CSV export failed", err, log.OpReport)
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) universe(ctx context.Context) (Universe, error) {
	var u Universe
	accounts, err := s.deps.Catalog.ListAccounts(ctx)
	if err != nil {
		return u, fmt.Errorf("list accounts: %w", err)
	}
	cards, err := s.deps.Catalog.ListCards(ctx)
	if err != nil {
		return u, fmt.Errorf("list cards: %w", err)
	}
	cats, err := s.deps.Catalog.ListCategories(ctx)
	if err != nil {
		return u, fmt.Errorf("list categories: %w", err)
	}
	for _, a := range accounts {
		u.Accounts = append(u.Accounts, a.ID)
	}
	for _, c := range cards {
		u.Cards = append(u.Cards, c.ID)
	}
	for _, c := range cats {
		u.Categories = append(u.Categories, c.ID)
	}
	return u, nil
}

// Import

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Import == nil {
		writeError(w, r, log.OpImport, services.ErrImportUnavailable)
		return
	}
	var p importPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpImport, err)
		return
	}
	res, err := s.deps.Import.Import(r.Context(), services.ImportRequest{
		Text:       p.Text,
		AccountID:  sanitizeInput(p.AccountID),
		CategoryID: sanitizeInput(p.CategoryID),
	})
	if err != nil {
		writeError(w, r, log.OpImport, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
