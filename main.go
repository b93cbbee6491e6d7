package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/insightdelivered/financial-doc-parser/internal/analyzer"
	"github.com/insightdelivered/financial-doc-parser/internal/api"
	"github.com/insightdelivered/financial-doc-parser/internal/config"
	"github.com/insightdelivered/financial-doc-parser/internal/engine"
	"github.com/insightdelivered/financial-doc-parser/internal/logging"
	"github.com/insightdelivered/financial-doc-parser/internal/models"
	"github.com/insightdelivered/financial-doc-parser/internal/parser"
	"github.com/insightdelivered/financial-doc-parser/internal/writer"
)

const version = "1.0.0"

type runOptions struct {
	docType string // statement, credit-report, auto
	dialect models.Dialect
	output  string
	format  string // csv or json
	income  string
}

func main() {
	// CLI flags
	typeFlag := flag.String("type", "auto", "Document type: statement, credit-report, auto")
	bankFlag := flag.String("bank", "", "Statement dialect: hapoalim, leumi, discount (auto-detected if omitted)")
	outputFlag := flag.String("output", "", "Output file path (defaults to input filename with .csv or .json extension)")
	formatFlag := flag.String("format", "csv", "Output format: csv or json")
	configFlag := flag.String("config", "", "Path to a YAML config file")
	incomeFlag := flag.String("income", "", "Annual income; with a credit report, prints a debt assessment")
	serveFlag := flag.Bool("serve", false, "Run the HTTP API server instead of converting files")
	addrFlag := flag.String("addr", "", "Listen address for --serve (overrides config)")
	traceFlag := flag.Bool("trace", false, "Record per-line parse outcomes in JSON output")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("financial-doc-parser v%s\n", version)
		os.Exit(0)
	}

	// A .env file is optional.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fatalf("Config error: %v\n", err)
	}
	if *traceFlag {
		cfg.Parser.Trace = true
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fatalf("Logger init failed: %v\n", err)
	}
	defer func() { _ = log.Sync() }()

	eng := engine.New(cfg.Parser, log)

	if *serveFlag {
		addr := cfg.Addr
		if *addrFlag != "" {
			addr = *addrFlag
		}
		app := api.NewApp(&api.Handler{Engine: eng}, cfg.BodyLimitMB)
		log.Info("api server listening", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			fatalf("Server failed: %v\n", err)
		}
		return
	}

	if *helpFlag || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	opts := runOptions{
		docType: strings.ToLower(*typeFlag),
		output:  *outputFlag,
		format:  strings.ToLower(*formatFlag),
		income:  *incomeFlag,
	}

	switch opts.docType {
	case "statement", "auto":
	case "credit-report", "creditreport", "credit":
		opts.docType = "credit-report"
	default:
		fatalf("Unknown document type %q. Supported: statement, credit-report, auto\n", *typeFlag)
	}

	if opts.format != "csv" && opts.format != "json" {
		fatalf("Unknown output format %q. Supported: csv, json\n", *formatFlag)
	}

	if *bankFlag != "" {
		d, err := parser.ParseDialect(*bankFlag)
		if err != nil {
			fatalf("Unknown bank %q. Supported: hapoalim, leumi, discount\n", *bankFlag)
		}
		if d == models.DialectCreditReport {
			fatalf("Credit reports are selected with --type=credit-report, not --bank\n")
		}
		opts.dialect = d
	}

	for _, inputPath := range flag.Args() {
		if err := processFile(eng, inputPath, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", inputPath, err)
			os.Exit(1)
		}
	}
}

func processFile(eng *engine.Engine, inputPath string, opts runOptions) error {
	// Validate input file
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	ext := strings.ToLower(filepath.Ext(inputPath))
	if ext != ".pdf" {
		return fmt.Errorf("expected .pdf file, got %q", ext)
	}

	fmt.Printf("Processing: %s\n", inputPath)

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	docType := opts.docType
	if docType == "auto" {
		detected, dialect := detectDocType(eng, data)
		docType = detected
		if opts.dialect == "" {
			opts.dialect = dialect
		}
		fmt.Printf("  Auto-detected document type: %s\n", docType)
	}

	if docType == "credit-report" {
		return processCreditReport(eng, inputPath, data, opts)
	}
	return processStatement(eng, inputPath, data, opts)
}

// detectDocType extracts the document once to decide between the two
// pipelines. An unreadable document falls back to the statement path,
// which reports an empty series.
func detectDocType(eng *engine.Engine, data []byte) (string, models.Dialect) {
	pages, err := eng.ExtractPages(data)
	if err != nil {
		return "statement", ""
	}
	d, err := parser.DetectDialect(pages)
	if err != nil {
		return "statement", ""
	}
	if d == models.DialectCreditReport {
		return "credit-report", ""
	}
	return "statement", d
}

func processStatement(eng *engine.Engine, inputPath string, data []byte, opts runOptions) error {
	res := eng.Statement(data, opts.dialect, filepath.Base(inputPath))

	if res.Dialect != "" {
		fmt.Printf("  Dialect: %s\n", res.Dialect)
	}
	fmt.Printf("  Found %d balance point(s)\n", len(res.Points))

	if len(res.Points) == 0 {
		fmt.Println("  Warning: No balance rows matched. The PDF layout may not match expected patterns.")
		fmt.Println("  Try specifying the bank explicitly with --bank if auto-detection was used.")
	}

	outPath := outputPathFor(inputPath, opts.output, opts.format)
	if opts.format == "json" {
		if err := writeJSON(outPath, res); err != nil {
			return err
		}
	} else {
		w := &writer.SeriesWriter{IncludeHeader: true}
		if err := w.WriteToFile(outPath, res); err != nil {
			return fmt.Errorf("CSV write failed: %w", err)
		}
	}

	fmt.Printf("  Output: %s\n", outPath)
	fmt.Println("  Done.")
	return nil
}

func processCreditReport(eng *engine.Engine, inputPath string, data []byte, opts runOptions) error {
	res := eng.CreditReport(data, filepath.Base(inputPath))

	fmt.Printf("  Found %d obligation(s)\n", len(res.Entries))

	total := analyzer.TotalOutstandingDebt(res.Entries)
	fmt.Printf("  Total outstanding: %s\n", total.StringFixed(2))

	if len(res.Entries) == 0 {
		fmt.Println("  Warning: No obligations found. The PDF layout may not match expected patterns.")
	}

	outPath := outputPathFor(inputPath, opts.output, opts.format)
	if opts.format == "json" {
		if err := writeJSON(outPath, res); err != nil {
			return err
		}
	} else {
		w := &writer.LedgerWriter{IncludeHeader: true}
		if err := w.WriteToFile(outPath, res); err != nil {
			return fmt.Errorf("CSV write failed: %w", err)
		}
	}

	fmt.Printf("  Output: %s\n", outPath)

	if opts.income != "" {
		income, err := decimal.NewFromString(strings.ReplaceAll(opts.income, ",", ""))
		if err != nil {
			return fmt.Errorf("income %q is not a number", opts.income)
		}
		a := analyzer.Classify(analyzer.Input{TotalDebt: total, AnnualIncome: income})
		fmt.Printf("  Assessment: %s\n", a.Status)
		fmt.Printf("  %s\n", a.Guidance)
		if a.SuggestedRaise.Valid {
			fmt.Printf("  Suggested short-term raise: %s\n", a.SuggestedRaise.Decimal.StringFixed(2))
		}
	}

	fmt.Println("  Done.")
	return nil
}

func outputPathFor(inputPath, override, format string) string {
	if override != "" {
		return override
	}
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	if format == "json" {
		return base + ".json"
	}
	return base + ".csv"
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("JSON write failed: %w", err)
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Israeli Financial Document Parser
by Insight Delivered

Parses Bank Hapoalim, Leumi, and Discount statement PDFs into daily
balance series, and credit register reports into obligation ledgers,
for CSV/JSON export and debt assessment.

Usage:
  financial-doc-parser [flags] <input.pdf> [input2.pdf ...]
  financial-doc-parser --serve [--addr :8080]

Flags:
`)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  # Auto-detect document type and dialect
  financial-doc-parser statement.pdf

  # Statement with explicit dialect, JSON output
  financial-doc-parser --type=statement --bank=leumi --format=json statement.pdf

  # Credit report with a debt assessment
  financial-doc-parser --type=credit-report --income=120000 report.pdf

  # Run the HTTP API
  financial-doc-parser --serve --addr=:8080

Supported statement dialects:
  hapoalim  - Bank Hapoalim (leading balance, single DD/MM/YYYY date)
  leumi     - Bank Leumi (balance-delta reconciliation, paired dates)
  discount  - Bank Discount (adjacent balance and amount, value date first)
`)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
