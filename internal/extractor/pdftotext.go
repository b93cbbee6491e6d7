package extractor

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// extractWithPdftotext shells out to poppler's pdftotext as the final
// fallback. The tool reads files only, so the document bytes pass
// through a temp file. Pages are pulled one at a time to keep page
// boundaries, which the parsers rely on for trace positions.
func extractWithPdftotext(data []byte) ([]string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not available: %w", err)
	}

	tmp, err := os.CreateTemp("", "docparse-*.pdf")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	var pages []string
	for i := 1; i <= pageCount(tmp.Name()); i++ {
		n := strconv.Itoa(i)
		out, err := exec.Command("pdftotext", "-layout", "-f", n, "-l", n, tmp.Name(), "-").Output()
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(string(out)); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) > 0 {
		return pages, nil
	}

	// Per-page runs produced nothing; take the document in one pass.
	out, err := exec.Command("pdftotext", "-layout", tmp.Name(), "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}
	if text := strings.TrimSpace(string(out)); text != "" {
		return []string{text}, nil
	}
	return nil, fmt.Errorf("pdftotext produced no output")
}

// pageCount asks pdfinfo for the page total, defaulting to 1 when the
// tool is missing or its output is unusable.
func pageCount(path string) int {
	out, err := exec.Command("pdfinfo", path).Output()
	if err != nil {
		return 1
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:"))); err == nil && n > 0 {
			return n
		}
	}
	return 1
}
