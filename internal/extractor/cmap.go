package extractor

import (
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

// cmapTable maps font character codes to Unicode text, built from the
// ToUnicode CMap streams a PDF embeds. For the documents this package
// reads, these tables are what turn CID glyph codes into Hebrew; without
// them the text layer is unrecoverable.
type cmapTable struct {
	// codes keys are uppercase hex character codes, values the mapped
	// Unicode text. One code may map to several runes.
	codes map[string]string
}

var (
	bfCharPattern   = regexp.MustCompile(`(?s)beginbfchar\s*(.*?)\s*endbfchar`)
	bfRangePattern  = regexp.MustCompile(`(?s)beginbfrange\s*(.*?)\s*endbfrange`)
	hexTokenPattern = regexp.MustCompile(`<([0-9A-Fa-f]+)>`)
)

// parseCMap reads the bfchar and bfrange sections of one ToUnicode
// stream.
func parseCMap(content string) *cmapTable {
	cm := &cmapTable{codes: make(map[string]string)}
	cm.parseBFChars(content)
	cm.parseBFRanges(content)
	return cm
}

// parseBFChars handles <src> <dst> pairs.
func (cm *cmapTable) parseBFChars(content string) {
	for _, block := range bfCharPattern.FindAllStringSubmatch(content, -1) {
		tokens := hexTokenPattern.FindAllStringSubmatch(block[1], -1)
		for i := 0; i+1 < len(tokens); i += 2 {
			src := strings.ToUpper(tokens[i][1])
			if uni := utf16beString(tokens[i+1][1]); uni != "" {
				cm.codes[src] = uni
			}
		}
	}
}

// parseBFRanges handles both range forms: <start> <end> <dstStart>, and
// <start> <end> [<dst> <dst> ...].
func (cm *cmapTable) parseBFRanges(content string) {
	for _, block := range bfRangePattern.FindAllStringSubmatch(content, -1) {
		for _, line := range strings.Split(block[1], "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.Contains(line, "[") {
				cm.parseRangeList(line)
				continue
			}

			tokens := hexTokenPattern.FindAllStringSubmatch(line, -1)
			if len(tokens) < 3 {
				continue
			}
			start := hexValue(tokens[0][1])
			end := hexValue(tokens[1][1])
			dst := hexValue(tokens[2][1])
			if start < 0 || end < start || dst < 0 {
				continue
			}
			// Malformed ranges can claim the whole code space.
			if end-start > 0x10000 {
				continue
			}

			width := len(tokens[0][1])
			for code := start; code <= end; code++ {
				uni := utf16beString(hexKey(dst+code-start, len(tokens[2][1])))
				if uni != "" {
					cm.codes[hexKey(code, width)] = uni
				}
			}
		}
	}
}

// parseRangeList handles the array form, one destination per code.
func (cm *cmapTable) parseRangeList(line string) {
	bracket := strings.Index(line, "[")
	if bracket < 0 {
		return
	}
	tokens := hexTokenPattern.FindAllStringSubmatch(line[:bracket], -1)
	if len(tokens) < 2 {
		return
	}
	start := hexValue(tokens[0][1])
	if start < 0 {
		return
	}
	width := len(tokens[0][1])

	for i, t := range hexTokenPattern.FindAllStringSubmatch(line[bracket:], -1) {
		if uni := utf16beString(t[1]); uni != "" {
			cm.codes[hexKey(start+i, width)] = uni
		}
	}
}

// decode translates raw string bytes through the table. The code width
// comes from the table keys; a multi-byte miss is retried as a
// single-byte code before the chunk is dropped. Safe on a nil table.
func (cm *cmapTable) decode(raw []byte) string {
	if cm == nil || len(cm.codes) == 0 {
		return ""
	}

	width := 1
	for k := range cm.codes {
		if w := len(k) / 2; w > 0 {
			width = w
		}
		break
	}

	var b strings.Builder
	for i := 0; i+width <= len(raw); {
		chunk := raw[i : i+width]
		key := strings.ToUpper(hex.EncodeToString(chunk))
		if uni, ok := cm.codes[key]; ok {
			b.WriteString(uni)
			i += width
			continue
		}
		if width > 1 {
			key = strings.ToUpper(hex.EncodeToString(chunk[:1]))
			if uni, ok := cm.codes[key]; ok {
				b.WriteString(uni)
				i++
				continue
			}
		}
		if width == 1 && chunk[0] >= 32 && chunk[0] < 127 {
			b.WriteByte(chunk[0])
		}
		i += width
	}
	return b.String()
}

// mergedCMap collects every ToUnicode table in the document into one.
// Returns nil when the document carries none.
func mergedCMap(data []byte) *cmapTable {
	var merged *cmapTable
	for _, stream := range rawStreams(data) {
		content := string(inflate(stream))
		if !strings.Contains(content, "beginbfchar") && !strings.Contains(content, "beginbfrange") {
			continue
		}
		cm := parseCMap(content)
		if len(cm.codes) == 0 {
			continue
		}
		if merged == nil {
			merged = &cmapTable{codes: make(map[string]string)}
		}
		for k, v := range cm.codes {
			merged.codes[k] = v
		}
	}
	return merged
}

// hexValue parses an unsigned hex string, -1 on bad input.
func hexValue(h string) int {
	val := 0
	for _, c := range strings.ToUpper(h) {
		val <<= 4
		switch {
		case c >= '0' && c <= '9':
			val += int(c - '0')
		case c >= 'A' && c <= 'F':
			val += int(c-'A') + 10
		default:
			return -1
		}
	}
	return val
}

// hexKey renders a code as uppercase hex at the table's key width.
func hexKey(val, width int) string {
	h := strings.ToUpper(strconv.FormatInt(int64(val), 16))
	if len(h) > width {
		return h[len(h)-width:]
	}
	for len(h) < width {
		h = "0" + h
	}
	return h
}

// utf16beString converts a hex-encoded UTF-16BE value to a string,
// including surrogate pairs for supplementary planes.
func utf16beString(h string) string {
	if len(h)%2 != 0 {
		h = "0" + h
	}
	data, err := hex.DecodeString(h)
	if err != nil {
		return ""
	}
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		units = append(units, uint16(data[i])<<8|uint16(data[i+1]))
	}
	if len(units) == 0 {
		return ""
	}
	return string(utf16.Decode(units))
}
