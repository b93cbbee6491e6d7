package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/insightdelivered/financial-doc-parser/internal/analyzer"
	"github.com/insightdelivered/financial-doc-parser/internal/engine"
	"github.com/insightdelivered/financial-doc-parser/internal/parser"
)

const statementPage = "בנק הפועלים בע\"מ\n" +
	"5,000.00 הפקדת משכורת 01/03/2024\n" +
	"4,700.00 משיכת מזומן 03/03/2024"

const creditPage = "ריכוז נתונים ללקוח\n" +
	"חשבון עובר ושב\n" +
	"בנק הפועלים\n" +
	"XX-409-123456\n" +
	"15,000\n" +
	"3,200"

func setupTestApp(pages []string) *fiber.App {
	eng := engine.New(parser.DefaultConfig(), nil)
	if pages != nil {
		eng.ExtractPages = func([]byte) ([]string, error) { return pages, nil }
	}
	return NewApp(&Handler{Engine: eng}, 8)
}

func uploadRequest(t *testing.T, target, filename string, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := fw.Write([]byte("%PDF-1.4 stub")); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}
	mw.Close()

	req := httptest.NewRequest("POST", target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp(nil)

	req := httptest.NewRequest("GET", "/api/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]string
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result["status"] != "ok" {
		t.Errorf("expected status=ok, got %q", result["status"])
	}

	if result["engine"] != "fiber" {
		t.Errorf("expected engine=fiber, got %q", result["engine"])
	}
}

func TestStatementEndpoint(t *testing.T) {
	app := setupTestApp([]string{statementPage})

	req := uploadRequest(t, "/api/parse/statement", "march.pdf", map[string]string{"bank": "hapoalim"})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result StatementResponse
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !result.Success {
		t.Errorf("expected success, got error %q", result.Error)
	}
	if result.Dialect != "hapoalim" {
		t.Errorf("dialect = %q, want hapoalim", result.Dialect)
	}
	if result.Count != 2 || len(result.Points) != 2 {
		t.Fatalf("count = %d with %d points, want 2", result.Count, len(result.Points))
	}
	if got := result.Points[0].Balance.StringFixed(2); got != "5000.00" {
		t.Errorf("first balance = %s, want 5000.00", got)
	}
	if got := result.Points[0].Date.Format("2006-01-02"); got != "2024-03-01" {
		t.Errorf("first date = %s, want 2024-03-01", got)
	}
	if !strings.Contains(result.CSV, "01/03/2024,5000.00") {
		t.Errorf("CSV missing balance row:\n%s", result.CSV)
	}
	if len(result.Trace) != 0 {
		t.Errorf("got %d trace lines without debug, want 0", len(result.Trace))
	}
	if result.RequestID == "" {
		t.Error("requestId missing from response")
	}
}

func TestStatementEndpointAutoDetect(t *testing.T) {
	app := setupTestApp([]string{statementPage})

	req := uploadRequest(t, "/api/parse/statement", "march.pdf", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var result StatementResponse
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Dialect != "hapoalim" {
		t.Errorf("detected dialect = %q, want hapoalim", result.Dialect)
	}
}

func TestStatementEndpointDebugTrace(t *testing.T) {
	app := setupTestApp([]string{statementPage})

	req := uploadRequest(t, "/api/parse/statement", "march.pdf",
		map[string]string{"bank": "hapoalim", "debug": "true"})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var result StatementResponse
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Trace) == 0 {
		t.Error("expected trace lines with debug=true")
	}
}

func TestStatementEndpointRequiresFile(t *testing.T) {
	app := setupTestApp([]string{statementPage})

	req := httptest.NewRequest("POST", "/api/parse/statement", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=----test")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for missing file, got %d", resp.StatusCode)
	}
}

func TestStatementEndpointRejectsNonPDF(t *testing.T) {
	app := setupTestApp([]string{statementPage})

	req := uploadRequest(t, "/api/parse/statement", "march.txt", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for non-PDF upload, got %d", resp.StatusCode)
	}
}

func TestStatementEndpointRejectsUnknownBank(t *testing.T) {
	app := setupTestApp([]string{statementPage})

	req := uploadRequest(t, "/api/parse/statement", "march.pdf", map[string]string{"bank": "santander"})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for unknown bank, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Unknown bank") {
		t.Errorf("unexpected error body: %s", body)
	}
}

func TestStatementEndpointRejectsCreditReportBank(t *testing.T) {
	app := setupTestApp([]string{statementPage})

	req := uploadRequest(t, "/api/parse/statement", "march.pdf", map[string]string{"bank": "credit-report"})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// A document the engine cannot read is still a successful request: the
// series is empty, and empty means [], not null.
func TestStatementEndpointUnreadableDocument(t *testing.T) {
	app := setupTestApp(nil)

	req := uploadRequest(t, "/api/parse/statement", "junk.pdf", map[string]string{"bank": "leumi"})
	resp, err := app.Test(req, 15000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"points":[]`) {
		t.Errorf("expected empty points array, body: %s", body)
	}

	var result StatementResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Success || result.Count != 0 {
		t.Errorf("success = %v count = %d, want success with 0 points", result.Success, result.Count)
	}
}

func TestCreditReportEndpoint(t *testing.T) {
	app := setupTestApp([]string{creditPage})

	req := uploadRequest(t, "/api/parse/credit-report", "register.pdf", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result CreditReportResponse
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !result.Success {
		t.Errorf("expected success, got error %q", result.Error)
	}
	if result.Count != 1 || len(result.Entries) != 1 {
		t.Fatalf("count = %d with %d entries, want 1", result.Count, len(result.Entries))
	}
	if got := result.Entries[0].CreditorName; got != "בנק הפועלים בע\"מ" {
		t.Errorf("creditor = %q, want %q", got, "בנק הפועלים בע\"מ")
	}
	if got := result.TotalOutstanding.StringFixed(2); got != "3200.00" {
		t.Errorf("total outstanding = %s, want 3200.00", got)
	}
	if !strings.Contains(result.CSV, "Type,Creditor,Limit,Original,Outstanding,Unpaid") {
		t.Errorf("CSV missing header:\n%s", result.CSV)
	}
	if result.RequestID == "" {
		t.Error("requestId missing from response")
	}
}

func TestAssessEndpoint(t *testing.T) {
	app := setupTestApp([]string{creditPage})

	req := uploadRequest(t, "/api/assess", "register.pdf", map[string]string{"annualIncome": "100000"})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result AssessResponse
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !result.Success {
		t.Errorf("expected success, got error %q", result.Error)
	}
	if got := result.TotalDebt.StringFixed(2); got != "3200.00" {
		t.Errorf("total debt = %s, want 3200.00", got)
	}
	if result.Assessment == nil {
		t.Fatal("assessment missing")
	}
	if result.Assessment.Status != analyzer.StatusGreen {
		t.Errorf("status = %q, want %q", result.Assessment.Status, analyzer.StatusGreen)
	}
	if !strings.Contains(result.AdvisoryContext, "סך חובות: 3,200 ₪") {
		t.Errorf("advisory context missing debt line:\n%s", result.AdvisoryContext)
	}
}

func TestAssessEndpointYellowBand(t *testing.T) {
	app := setupTestApp([]string{creditPage})

	req := uploadRequest(t, "/api/assess", "register.pdf", map[string]string{
		"annualIncome": "2,000",
		"canRaise":     "true",
	})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var result AssessResponse
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result.Assessment == nil {
		t.Fatal("assessment missing")
	}
	if result.Assessment.Status != analyzer.StatusYellow {
		t.Errorf("status = %q, want %q", result.Assessment.Status, analyzer.StatusYellow)
	}
	if !result.Assessment.SuggestedRaise.Valid ||
		result.Assessment.SuggestedRaise.Decimal.StringFixed(2) != "1600.00" {
		t.Errorf("suggested raise = %v, want 1600.00", result.Assessment.SuggestedRaise)
	}
}

func TestAssessEndpointRequiresIncome(t *testing.T) {
	app := setupTestApp([]string{creditPage})

	req := uploadRequest(t, "/api/assess", "register.pdf", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for missing income, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "annualIncome") {
		t.Errorf("unexpected error body: %s", body)
	}
}

func TestAssessEndpointRejectsBadBool(t *testing.T) {
	app := setupTestApp([]string{creditPage})

	req := uploadRequest(t, "/api/assess", "register.pdf", map[string]string{
		"annualIncome": "100000",
		"canRaise":     "maybe",
	})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for bad boolean, got %d", resp.StatusCode)
	}
}
