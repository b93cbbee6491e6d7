package api

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/financial-doc-parser/internal/analyzer"
	"github.com/insightdelivered/financial-doc-parser/internal/engine"
	"github.com/insightdelivered/financial-doc-parser/internal/models"
	"github.com/insightdelivered/financial-doc-parser/internal/parser"
	"github.com/insightdelivered/financial-doc-parser/internal/writer"
)

const apiVersion = "1.0.0"

// StatementResponse is the JSON response from /api/parse/statement.
type StatementResponse struct {
	Success   bool                  `json:"success"`
	Error     string                `json:"error,omitempty"`
	Dialect   string                `json:"dialect,omitempty"`
	Points    []models.BalancePoint `json:"points"`
	Count     int                   `json:"count"`
	CSV       string                `json:"csv,omitempty"`
	Trace     []models.TraceLine    `json:"trace,omitempty"`
	Version   string                `json:"version,omitempty"`
	RequestID string                `json:"requestId"`
}

// CreditReportResponse is the JSON response from /api/parse/credit-report.
type CreditReportResponse struct {
	Success          bool                 `json:"success"`
	Error            string               `json:"error,omitempty"`
	Entries          []models.LedgerEntry `json:"entries"`
	Count            int                  `json:"count"`
	TotalOutstanding decimal.Decimal      `json:"totalOutstanding"`
	CSV              string               `json:"csv,omitempty"`
	Trace            []models.TraceLine   `json:"trace,omitempty"`
	Version          string               `json:"version,omitempty"`
	RequestID        string               `json:"requestId"`
}

// AssessResponse is the JSON response from /api/assess.
type AssessResponse struct {
	Success         bool                 `json:"success"`
	Error           string               `json:"error,omitempty"`
	Entries         []models.LedgerEntry `json:"entries"`
	TotalDebt       decimal.Decimal      `json:"totalDebt"`
	Assessment      *analyzer.Assessment `json:"assessment,omitempty"`
	AdvisoryContext string               `json:"advisoryContext,omitempty"`
	Version         string               `json:"version,omitempty"`
	RequestID       string               `json:"requestId"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Engine *engine.Engine
}

// NewApp builds the fiber application with all routes registered.
func NewApp(h *Handler, bodyLimitMB int) *fiber.App {
	if bodyLimitMB <= 0 {
		bodyLimitMB = 32
	}
	app := fiber.New(fiber.Config{
		AppName:               "financial-doc-parser",
		BodyLimit:             bodyLimitMB << 20,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/parse/statement", h.HandleStatement)
	app.Post("/api/parse/credit-report", h.HandleCreditReport)
	app.Post("/api/assess", h.HandleAssess)
	return app
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": apiVersion,
	})
}

// HandleStatement converts an uploaded statement PDF into a balance
// series. An unreadable or unparsable document is not a request error:
// the response is a 200 with an empty series. Only transport misuse
// (missing file, unknown bank parameter) gets a 4xx.
func (h *Handler) HandleStatement(c *fiber.Ctx) error {
	data, name, ferr := readUpload(c)
	if ferr != nil {
		return writeError(c, ferr.Code, ferr.Message)
	}

	var dialect models.Dialect
	if bank := c.FormValue("bank"); bank != "" {
		d, err := parser.ParseDialect(bank)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest,
				fmt.Sprintf("Unknown bank: %q. Use hapoalim, leumi, or discount.", bank))
		}
		if d == models.DialectCreditReport {
			return writeError(c, fiber.StatusBadRequest,
				"Credit reports go to /api/parse/credit-report.")
		}
		dialect = d
	}

	requestID := uuid.NewString()
	eng := h.Engine.WithRequest(requestID)
	if wantDebug(c) {
		eng = eng.WithTrace()
	}
	res := eng.Statement(data, dialect, name)

	// nil marshals to JSON null, not [].
	points := res.Points
	if points == nil {
		points = []models.BalancePoint{}
	}

	var csvBuf bytes.Buffer
	sw := &writer.SeriesWriter{IncludeHeader: true}
	if err := sw.Write(&csvBuf, res); err != nil {
		return writeError(c, fiber.StatusInternalServerError,
			fmt.Sprintf("CSV generation failed: %v", err))
	}

	return c.JSON(StatementResponse{
		Success:   true,
		Dialect:   string(res.Dialect),
		Points:    points,
		Count:     len(points),
		CSV:       csvBuf.String(),
		Trace:     res.Trace,
		Version:   apiVersion,
		RequestID: requestID,
	})
}

// HandleCreditReport extracts the obligation ledger from an uploaded
// credit register report.
func (h *Handler) HandleCreditReport(c *fiber.Ctx) error {
	data, name, ferr := readUpload(c)
	if ferr != nil {
		return writeError(c, ferr.Code, ferr.Message)
	}

	requestID := uuid.NewString()
	eng := h.Engine.WithRequest(requestID)
	if wantDebug(c) {
		eng = eng.WithTrace()
	}
	res := eng.CreditReport(data, name)

	entries := res.Entries
	if entries == nil {
		entries = []models.LedgerEntry{}
	}

	var csvBuf bytes.Buffer
	lw := &writer.LedgerWriter{IncludeHeader: true}
	if err := lw.Write(&csvBuf, res); err != nil {
		return writeError(c, fiber.StatusInternalServerError,
			fmt.Sprintf("CSV generation failed: %v", err))
	}

	return c.JSON(CreditReportResponse{
		Success:          true,
		Entries:          entries,
		Count:            len(entries),
		TotalOutstanding: analyzer.TotalOutstandingDebt(entries),
		CSV:              csvBuf.String(),
		Trace:            res.Trace,
		Version:          apiVersion,
		RequestID:        requestID,
	})
}

// HandleAssess parses an uploaded credit register report and classifies
// the debt load against the declared annual income.
func (h *Handler) HandleAssess(c *fiber.Ctx) error {
	data, name, ferr := readUpload(c)
	if ferr != nil {
		return writeError(c, ferr.Code, ferr.Message)
	}

	rawIncome := c.FormValue("annualIncome")
	if rawIncome == "" {
		return writeError(c, fiber.StatusBadRequest, "annualIncome form field is required.")
	}
	income, err := decimal.NewFromString(strings.ReplaceAll(rawIncome, ",", ""))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest,
			fmt.Sprintf("annualIncome %q is not a number.", rawIncome))
	}

	hasCollection := false
	if p, ferr := formBool(c, "hasCollection"); ferr != nil {
		return writeError(c, ferr.Code, ferr.Message)
	} else if p != nil {
		hasCollection = *p
	}
	canRaise, ferr := formBool(c, "canRaise")
	if ferr != nil {
		return writeError(c, ferr.Code, ferr.Message)
	}

	requestID := uuid.NewString()
	res := h.Engine.WithRequest(requestID).CreditReport(data, name)
	entries := res.Entries
	if entries == nil {
		entries = []models.LedgerEntry{}
	}

	total := analyzer.TotalOutstandingDebt(entries)
	assessment := analyzer.Classify(analyzer.Input{
		TotalDebt:                total,
		AnnualIncome:             income,
		HasCollectionProceedings: hasCollection,
		CanRaiseShortTerm:        canRaise,
	})

	return c.JSON(AssessResponse{
		Success:         true,
		Entries:         entries,
		TotalDebt:       total,
		Assessment:      &assessment,
		AdvisoryContext: analyzer.BuildAdvisoryContext(nil, entries, assessment),
		Version:         apiVersion,
		RequestID:       requestID,
	})
}

// readUpload pulls the uploaded PDF out of the multipart form.
func readUpload(c *fiber.Ctx) ([]byte, string, *fiber.Error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.")
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, "Only PDF files are supported.")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", fiber.NewError(fiber.StatusInternalServerError, "Failed to read uploaded file.")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fiber.NewError(fiber.StatusInternalServerError, "Failed to read uploaded file.")
	}
	return data, fh.Filename, nil
}

// formBool reads an optional boolean form field. Absent fields return a
// nil pointer, which callers treat as "not answered".
func formBool(c *fiber.Ctx, key string) (*bool, *fiber.Error) {
	raw := c.FormValue(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("%s must be true or false.", key))
	}
	return &v, nil
}

func wantDebug(c *fiber.Ctx) bool {
	v, err := strconv.ParseBool(c.FormValue("debug"))
	return err == nil && v
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
