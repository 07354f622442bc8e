package extractor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/StevenGall/delavan-lake-fishing-reports/internal/report"
	"github.com/StevenGall/delavan-lake-fishing-reports/internal/retry"
	"github.com/StevenGall/delavan-lake-fishing-reports/internal/telemetry"
)

// Store is the slice of the persistence layer the processor needs.
type Store interface {
	UnprocessedReports(ctx context.Context, limit int) ([]report.RawReport, error)
	InsertProcessedReport(ctx context.Context, p report.ProcessedReport) (int64, bool, error)
	Counts(ctx context.Context) (raw, processed int64, err error)
}

// Config controls a processing run.
type Config struct {
	BatchSize  int
	MaxReports int // 0 means no cap
	Workers    int
}

// Processor drains the unprocessed backlog: batches of raw reports go
// through the extraction client concurrently, and each result is written
// back as a processed row.
type Processor struct {
	store    Store
	client   *Client
	cfg      Config
	retryCfg retry.Config
	logger   *zap.Logger
}

// Summary reports the outcome of a processing run.
type Summary struct {
	Processed int
	Errors    int
}

// New builds a Processor.
func New(store Store, client *Client, cfg Config, retryCfg retry.Config, logger *zap.Logger) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	return &Processor{store: store, client: client, cfg: cfg, retryCfg: retryCfg, logger: logger}
}

type result struct {
	raw report.RawReport
	ext Extraction
	err error
}

// Run processes batches until the backlog is empty or the report cap is hit.
// Extraction calls within a batch run concurrently; database writes stay on
// the calling goroutine.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	// Reports that failed extraction stay unprocessed in the database and
	// would come straight back on the next batch query, so remember them
	// for the rest of this run.
	failed := make(map[int64]struct{})

	p.logger.Info("starting extraction run",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("batch_size", p.cfg.BatchSize),
	)

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		limit := p.cfg.BatchSize
		if p.cfg.MaxReports > 0 {
			remaining := p.cfg.MaxReports - sum.Processed
			if remaining <= 0 {
				p.logger.Info("reached max reports limit", zap.Int("max", p.cfg.MaxReports))
				break
			}
			if remaining < limit {
				limit = remaining
			}
		}

		batch, err := p.store.UnprocessedReports(ctx, limit+len(failed))
		if err != nil {
			return sum, err
		}
		fresh := batch[:0]
		for _, raw := range batch {
			if _, skip := failed[raw.ID]; !skip {
				fresh = append(fresh, raw)
			}
		}
		if len(fresh) > limit {
			fresh = fresh[:limit]
		}
		batch = fresh
		if len(batch) == 0 {
			p.logger.Info("no more unprocessed reports")
			break
		}

		p.logger.Info("processing batch", zap.Int("reports", len(batch)))

		for _, res := range p.extractBatch(ctx, batch) {
			if res.err != nil {
				sum.Errors++
				failed[res.raw.ID] = struct{}{}
				telemetry.ObserveExtraction("error")
				p.logger.Warn("extraction failed",
					zap.Int64("raw_report_id", res.raw.ID), zap.Error(res.err))
				continue
			}
			telemetry.ObserveExtraction("ok")

			inserted, err := p.persist(ctx, res.raw, res.ext)
			if err != nil {
				return sum, err
			}
			if inserted {
				sum.Processed++
			} else {
				p.logger.Debug("report already processed", zap.Int64("raw_report_id", res.raw.ID))
			}
		}

		p.logger.Info("batch done",
			zap.Int("processed_total", sum.Processed),
			zap.Int("errors_total", sum.Errors),
		)
	}

	if raw, processed, err := p.store.Counts(ctx); err == nil {
		p.logger.Info("extraction run complete",
			zap.Int("processed", sum.Processed),
			zap.Int("errors", sum.Errors),
			zap.Int64("raw_reports", raw),
			zap.Int64("processed_reports", processed),
		)
	}
	return sum, nil
}

// extractBatch fans the batch out over the worker pool and collects every
// result. Result order is not meaningful.
func (p *Processor) extractBatch(ctx context.Context, batch []report.RawReport) []result {
	sem := make(chan struct{}, p.cfg.Workers)
	out := make(chan result, len(batch))
	var wg sync.WaitGroup

	for _, raw := range batch {
		wg.Add(1)
		go func(raw report.RawReport) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var ext Extraction
			err := retry.Do(ctx, p.retryCfg, "extract fishing data", func() error {
				var callErr error
				ext, callErr = p.client.Extract(ctx, raw)
				return callErr
			})
			out <- result{raw: raw, ext: ext, err: err}
		}(raw)
	}

	wg.Wait()
	close(out)

	results := make([]result, 0, len(batch))
	for res := range out {
		results = append(results, res)
	}
	return results
}

// persist fills the gaps the model left (month from the posting date,
// season from the month, date from the raw row) and writes the processed
// record. Duplicate writes are no-ops.
func (p *Processor) persist(ctx context.Context, raw report.RawReport, ext Extraction) (bool, error) {
	month := ext.Month
	if month == nil && raw.DatePosted != nil {
		if m, err := report.MonthFromDate(*raw.DatePosted); err == nil {
			month = &m
		}
	}

	season := ext.Season
	if season == nil && month != nil {
		s := report.SeasonForMonth(*month)
		if s != "" {
			season = &s
		}
	}

	datePosted := ext.DatePosted
	if datePosted == nil {
		datePosted = raw.DatePosted
	}

	_, inserted, err := p.store.InsertProcessedReport(ctx, report.ProcessedReport{
		RawReportID:        raw.ID,
		DatePosted:         datePosted,
		Month:              month,
		Season:             season,
		WaterDepthFeet:     ext.WaterDepthFeet,
		SpeciesCaught:      ext.SpeciesCaught,
		SpeciesTargeted:    ext.SpeciesTargeted,
		BaitLure:           ext.BaitLure,
		Location:           ext.Location,
		WaterTempF:         ext.WaterTempF,
		AirTempF:           ext.AirTempF,
		WeatherConditions:  ext.WeatherConditions,
		IceThicknessInches: ext.IceThicknessInches,
		Notes:              ext.Notes,
	})
	return inserted, err
}
