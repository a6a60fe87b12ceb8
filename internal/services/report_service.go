package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"financas/internal/cache"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/report"

	"golang.org/x/sync/errgroup"
)

// ReportStore loads the transactions with payments inside a period.
// Revision changes whenever stored transactions change, whichever process
// wrote them.
type ReportStore interface {
	ListTransactionsPaidBetween(ctx context.Context, p core.Period) ([]core.Transaction, error)
	Revision(ctx context.Context) (int64, error)
}

// ReportService builds reports from the store. Cached results are keyed on
// the store revision, so a write by another process makes them unreachable.
type ReportService struct {
	store  ReportStore
	cache  cache.Cache[report.Result]
	logger *log.Logger
}

// NewReportService creates a report service. A nil cache disables caching.
func NewReportService(store ReportStore, c cache.Cache[report.Result], logger *log.Logger) *ReportService {
	return &ReportService{
		store:  store,
		cache:  c,
		logger: componentLogger(logger, log.ComponentReport),
	}
}

// Build loads the primary and comparison periods concurrently and runs the
// report engine over their union.
func (s *ReportService) Build(ctx context.Context, req report.Request) (report.Result, error) {
	if err := req.Validate(); err != nil {
		return report.Result{}, err
	}

	var key string
	if s.cache != nil {
		rev, err := s.store.Revision(ctx)
		if err != nil {
			return report.Result{}, err
		}
		key = strconv.FormatInt(rev, 10) + "|" + req.Key()
		if res, ok := s.cache.Get(key); ok {
			s.logger.DebugContext(ctx, "Report served from cache", log.FieldReportKind, req.Kind.String())
			return res, nil
		}
	}

	start := time.Now()
	var primary, compare []core.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		primary, err = s.store.ListTransactionsPaidBetween(gctx, req.Primary)
		if err != nil {
			return fmt.Errorf("load primary period: %w", err)
		}
		return nil
	})
	if req.Compare != nil {
		g.Go(func() error {
			var err error
			compare, err = s.store.ListTransactionsPaidBetween(gctx, *req.Compare)
			if err != nil {
				return fmt.Errorf("load comparison period: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report.Result{}, err
	}

	res, err := report.Build(mergeByID(primary, compare), req)
	if err != nil {
		return report.Result{}, err
	}
	if s.cache != nil {
		s.cache.Set(key, res)
	}

	s.logger.InfoContext(ctx, "Report built",
		log.FieldReportKind, req.Kind.String(),
		log.FieldPeriod, req.Primary.String(),
		log.FieldCount, len(primary)+len(compare),
		log.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}

// Invalidate drops every cached report. Entries of older revisions are
// already unreachable; purging frees them at once.
func (s *ReportService) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// mergeByID concatenates the slices, keeping the first copy of each transaction.
func mergeByID(lists ...[]core.Transaction) []core.Transaction {
	seen := make(map[string]struct{})
	var out []core.Transaction
	for _, list := range lists {
		for _, tx := range list {
			if _, ok := seen[tx.ID]; ok {
				continue
			}
			seen[tx.ID] = struct{}{}
			out = append(out, tx)
		}
	}
	return out
}
