package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reconboard/internal/domain"
	"reconboard/internal/excel"
	"reconboard/internal/logger"
	"reconboard/internal/metrics"
	"reconboard/internal/mockdata"
	"reconboard/internal/reconcile"
	"reconboard/internal/session"
)

const defaultRunLimit = 20

var ErrNoSnapshot = errors.New("no reconciliation data has been loaded")

// ParseError marks a file that passed validation but whose contents could
// not be turned into rows.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type UploadFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// UploadInput carries the three optional sources of one import. Any of them,
// including all three, may be absent.
type UploadInput struct {
	Taobao *UploadFile
	JD     *UploadFile
	Bank   *UploadFile
}

func (in UploadInput) files() []*UploadFile {
	files := make([]*UploadFile, 0, 3)
	for _, f := range []*UploadFile{in.Taobao, in.JD, in.Bank} {
		if f != nil {
			files = append(files, f)
		}
	}
	return files
}

type Service struct {
	store *session.Store
	synth *mockdata.Synthesizer
	runs  RunRecorder
	log   *logger.Logger
	now   func() time.Time
}

// New wires the service. runs may be nil, in which case no history is kept.
func New(store *session.Store, synth *mockdata.Synthesizer, runs RunRecorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, synth: synth, runs: runs, log: log, now: time.Now}
}

func (s *Service) Import(ctx context.Context, input UploadInput) (domain.UploadResponse, error) {
	for _, f := range input.files() {
		if err := excel.ValidateFile(f.Name, f.Size); err != nil {
			return domain.UploadResponse{}, err
		}
	}

	orders := []domain.OrderRow{}
	for _, src := range []struct {
		platform domain.Platform
		file     *UploadFile
	}{
		{domain.PlatformTaobao, input.Taobao},
		{domain.PlatformJD, input.JD},
	} {
		if src.file == nil {
			continue
		}
		rows, err := excel.ParseOrders(src.platform, src.file.Name, src.file.Reader)
		if err != nil {
			return domain.UploadResponse{}, &ParseError{File: src.file.Name, Err: err}
		}
		orders = append(orders, rows...)
	}

	flows := []domain.FlowRow{}
	if input.Bank != nil {
		rows, err := excel.ParseFlows(input.Bank.Name, input.Bank.Reader)
		if err != nil {
			return domain.UploadResponse{}, &ParseError{File: input.Bank.Name, Err: err}
		}
		flows = rows
	}

	records := reconcile.Reconcile(orders, flows)
	perPlatform := reconcile.CountByPlatform(orders)
	resp := domain.UploadResponse{
		Records: records,
		Metrics: metrics.Calculate(records),
		Stats: domain.ImportStats{
			Taobao: perPlatform[domain.PlatformTaobao],
			JD:     perPlatform[domain.PlatformJD],
			Flow:   len(flows),
		},
	}

	runID := s.publish(ctx, domain.SourceBackend, resp)
	s.log.Info().
		Str("run_id", runID).
		Int("taobao", resp.Stats.Taobao).
		Int("jd", resp.Stats.JD).
		Int("flow", resp.Stats.Flow).
		Int("review", metrics.CountNeedingReview(records)).
		Msg("reconciliation imported")
	return resp, nil
}

// LoadDemo replaces the session with n synthetic records.
func (s *Service) LoadDemo(ctx context.Context, n int) domain.UploadResponse {
	if n <= 0 {
		n = mockdata.DefaultCount
	}
	resp := s.synth.Response(n)
	runID := s.publish(ctx, domain.SourceSynthetic, resp)
	s.log.Info().Str("run_id", runID).Int("count", n).Msg("synthetic data loaded")
	return resp
}

func (s *Service) Snapshot() (session.Snapshot, bool) {
	return s.store.Current()
}

// Records filters the current session. Without a session the result is
// empty rather than an error.
func (s *Service) Records(filter domain.RecordFilter) []domain.OrderRecord {
	snap, ok := s.store.Current()
	if !ok {
		return []domain.OrderRecord{}
	}
	return domain.FilterRecords(snap.Records, filter)
}

func (s *Service) Metrics() (domain.DashboardMetrics, error) {
	snap, ok := s.store.Current()
	if !ok {
		return domain.DashboardMetrics{}, ErrNoSnapshot
	}
	return snap.Metrics, nil
}

func (s *Service) Runs(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if s.runs == nil {
		return []domain.RunSummary{}, nil
	}
	if limit <= 0 {
		limit = defaultRunLimit
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if runs == nil {
		runs = []domain.RunSummary{}
	}
	return runs, nil
}

func (s *Service) publish(ctx context.Context, source domain.DataSource, resp domain.UploadResponse) string {
	importedAt := s.now().UTC()
	runID := uuid.NewString()
	s.store.Replace(session.Snapshot{
		RunID:      runID,
		Source:     source,
		Records:    resp.Records,
		Metrics:    resp.Metrics,
		Stats:      resp.Stats,
		ImportedAt: importedAt,
	})

	if s.runs == nil {
		return runID
	}
	run := summarize(runID, source, resp, importedAt)
	if err := s.runs.Record(ctx, run); err != nil {
		s.log.Warn().Err(err).Str("run_id", runID).Msg("record run summary")
	}
	return runID
}

func summarize(runID string, source domain.DataSource, resp domain.UploadResponse, at time.Time) domain.RunSummary {
	return domain.RunSummary{
		ID:           runID,
		Source:       source,
		Stats:        resp.Stats,
		RecordCount:  len(resp.Records),
		ReviewCount:  metrics.CountNeedingReview(resp.Records),
		TotalRevenue: decimal.NewFromFloat(resp.Metrics.TotalRevenue).Round(2),
		TotalCost:    decimal.NewFromFloat(resp.Metrics.TotalCost).Round(2),
		GrossMargin:  decimal.NewFromFloat(resp.Metrics.GrossMargin).Round(2),
		CreatedAt:    at,
	}
}
