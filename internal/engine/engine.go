package engine

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightdelivered/financial-doc-parser/internal/extractor"
	"github.com/insightdelivered/financial-doc-parser/internal/models"
	"github.com/insightdelivered/financial-doc-parser/internal/parser"
)

// Engine ties text extraction and parsing together behind a contract
// that never fails: whatever the input bytes, the caller gets a result,
// possibly with zero rows. Failures are logged, not raised; a broken
// document must not take down the batch or the request that carried it.
type Engine struct {
	cfg       parser.Config
	log       *zap.Logger
	requestID string

	// ExtractPages converts document bytes into per-page text. It
	// defaults to extractor.ExtractPages; tests swap in a stub.
	ExtractPages func(data []byte) ([]string, error)
}

// New returns an Engine with the given parsing configuration. A nil
// logger is replaced with a no-op one.
func New(cfg parser.Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, log: log, ExtractPages: extractor.ExtractPages}
}

// WithConfig returns a copy of the engine that parses with cfg. The
// extraction function carries over, so stubs survive the copy.
func (e *Engine) WithConfig(cfg parser.Config) *Engine {
	clone := *e
	clone.cfg = cfg
	return &clone
}

// WithTrace returns a copy of the engine that records a per-line
// outcome trace in its results.
func (e *Engine) WithTrace() *Engine {
	cfg := e.cfg
	cfg.Trace = true
	return e.WithConfig(cfg)
}

// WithRequest returns a copy of the engine whose logs carry id as the
// request correlation field. Without it each parse generates its own.
func (e *Engine) WithRequest(id string) *Engine {
	clone := *e
	clone.requestID = id
	return &clone
}

func (e *Engine) requestLogger(name string) *zap.Logger {
	id := e.requestID
	if id == "" {
		id = uuid.NewString()
	}
	return e.log.With(
		zap.String("request", id),
		zap.String("document", name),
	)
}

// Statement parses one bank statement document into a balance series.
// An empty dialect means detect it from the document text. The name is
// carried into log fields only.
func (e *Engine) Statement(data []byte, dialect models.Dialect, name string) (res *models.StatementResult) {
	log := e.requestLogger(name)
	res = &models.StatementResult{Dialect: dialect}
	defer func() {
		if r := recover(); r != nil {
			log.Error("statement parse panicked", zap.Any("panic", r))
			res = &models.StatementResult{Dialect: dialect}
		}
	}()

	start := time.Now()
	pages, err := e.ExtractPages(data)
	if err != nil {
		log.Error("text extraction failed", zap.Error(err))
		return res
	}

	if dialect == "" {
		d, err := parser.DetectDialect(pages)
		if err != nil {
			log.Error("dialect detection failed", zap.Error(err))
			return res
		}
		dialect = d
		res.Dialect = d
	}

	p, err := parser.NewSeries(dialect, e.cfg, log)
	if err != nil {
		log.Error("no parser for dialect", zap.String("dialect", string(dialect)), zap.Error(err))
		return res
	}

	parsed, err := p.Parse(pages)
	if err != nil {
		log.Error("statement parse failed", zap.String("bank", p.BankName()), zap.Error(err))
		return res
	}
	res = parsed

	log.Info("statement parsed",
		zap.String("bank", p.BankName()),
		zap.Int("pages", len(pages)),
		zap.Int("points", len(res.Points)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}

// CreditReport parses one credit register report into ledger entries.
func (e *Engine) CreditReport(data []byte, name string) (res *models.CreditReportResult) {
	log := e.requestLogger(name)
	res = &models.CreditReportResult{}
	defer func() {
		if r := recover(); r != nil {
			log.Error("credit report parse panicked", zap.Any("panic", r))
			res = &models.CreditReportResult{}
		}
	}()

	start := time.Now()
	pages, err := e.ExtractPages(data)
	if err != nil {
		log.Error("text extraction failed", zap.Error(err))
		return res
	}

	parsed, err := parser.NewCreditReport(e.cfg, log).Parse(pages)
	if err != nil {
		log.Error("credit report parse failed", zap.Error(err))
		return res
	}
	res = parsed

	log.Info("credit report parsed",
		zap.Int("pages", len(pages)),
		zap.Int("entries", len(res.Entries)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}

// ParseBalanceSeries is the list-shaped convenience form of Statement.
func (e *Engine) ParseBalanceSeries(data []byte, dialect models.Dialect, name string) []models.BalancePoint {
	return e.Statement(data, dialect, name).Points
}

// ParseCreditReport is the list-shaped convenience form of CreditReport.
func (e *Engine) ParseCreditReport(data []byte, name string) []models.LedgerEntry {
	return e.CreditReport(data, name).Entries
}
