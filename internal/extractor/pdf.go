package extractor

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// ExtractPages returns the text content of each page in the document.
// Several extraction methods run in order of fidelity: the structured
// library with four access paths, then raw content-stream decoding, then
// the external pdftotext tool. Each result is gated on a readability
// check, so unreadable glyph soup from a bad font table is never handed
// to the parsers.
func ExtractPages(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	pages, libErr := extractWithLibrary(data)
	if libErr == nil && isReadableText(pages) {
		return pages, nil
	}

	rawPages, rawErr := extractFromRawStreams(data)
	if rawErr == nil && isReadableText(rawPages) {
		return rawPages, nil
	}

	toolPages, toolErr := extractWithPdftotext(data)
	if toolErr == nil && isReadableText(toolPages) {
		return toolPages, nil
	}

	if libErr != nil {
		return nil, fmt.Errorf("pdf text extraction failed: %w; the document may be scanned or use font encodings without ToUnicode tables", libErr)
	}
	return nil, fmt.Errorf("no readable text could be extracted; the document may be scanned or use font encodings without ToUnicode tables")
}

// readableRatio returns the share of characters that belong in an
// Israeli financial document: Hebrew, ASCII letters and digits,
// whitespace, and common punctuation and currency marks. Decoding
// failures produce runes outside all of these, so a low ratio means the
// text layer came out wrong.
func readableRatio(pages []string) float64 {
	total, readable := 0, 0
	for _, page := range pages {
		for _, r := range page {
			total++
			switch {
			case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
				readable++
			case r >= '0' && r <= '9':
				readable++
			case r >= 0x0590 && r <= 0x05F4:
				// Hebrew letters, points, geresh and gershayim.
				readable++
			case unicode.IsSpace(r):
				readable++
			case strings.ContainsRune(`.,-/:;()'"₪$€£%&@#!?+=*`, r):
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// domainWords appear in every statement and credit report this package
// handles. Extracted text containing none of them is garbage even when
// the character mix looks plausible.
var domainWords = []string{
	"בנק", "חשבון", "יתרה", "תאריך", "תנועות", "אשראי", "הלוואה",
	"דוח", "עמוד", "סך",
	"bank", "account", "balance", "date", "page", "total",
}

func containsDomainWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range domainWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadableText gates an extraction result: enough text, a high enough
// readable-character ratio, and at least one recognizable word.
func isReadableText(pages []string) bool {
	if totalTextLen(pages) <= 50 {
		return false
	}
	if readableRatio(pages) <= 0.6 {
		return false
	}
	return containsDomainWords(pages)
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}

// extractWithLibrary runs the structured library over the document,
// trying its access paths from best to worst layout fidelity. The
// library panics on some malformed cross-reference tables, hence the
// recover.
func extractWithLibrary(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	pages = extractByRow(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	pages = extractByContent(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	pages = extractByPagePlainText(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	text := extractByReaderPlainText(r)
	if isReadableText([]string{text}) {
		return []string{text}, nil
	}

	return pages, nil
}

// extractByRow uses the library's row grouping, which keeps table
// columns on one line better than any other path.
func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// extractByContent reads positioned text pieces and rebuilds rows from
// their coordinates.
func extractByContent(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}
		if lines := contentRows(content.Text); len(lines) > 0 {
			pages = append(pages, strings.Join(lines, "\n"))
		}
	}
	return pages
}

// Horizontal gap treated as a column boundary when rebuilding rows.
const columnGap = 15

// contentRows groups text pieces by rounded Y coordinate, orders rows
// top to bottom (PDF Y runs bottom-up) and pieces left to right, and
// widens large X gaps so adjacent table columns do not fuse into one
// token.
func contentRows(texts []pdf.Text) []string {
	type piece struct {
		x float64
		s string
	}
	rows := make(map[int][]piece)
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		y := int(math.Round(t.Y))
		rows[y] = append(rows[y], piece{x: t.X, s: t.S})
	}

	ys := make([]int, 0, len(rows))
	for y := range rows {
		ys = append(ys, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ys)))

	var lines []string
	for _, y := range ys {
		pieces := rows[y]
		sort.Slice(pieces, func(i, j int) bool { return pieces[i].x < pieces[j].x })

		var b strings.Builder
		prevX := 0.0
		for i, p := range pieces {
			if i > 0 && p.x-prevX > columnGap {
				b.WriteString("  ")
			}
			b.WriteString(p.s)
			prevX = p.x
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// extractByPagePlainText runs the per-page plain text path with the
// page's own font map.
func extractByPagePlainText(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return pages
}

// extractByReaderPlainText is the whole-document path; it loses page
// boundaries but survives documents where per-page access fails.
func extractByReaderPlainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
