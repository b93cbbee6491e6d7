package extractor

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"io"
	"regexp"
	"strings"
	"unicode"
)

// extractFromRawStreams decodes text straight from the PDF byte stream,
// bypassing the structured library. Israeli bank producers often embed
// CIDFont/Type0 fonts whose glyph codes only become Hebrew through the
// ToUnicode CMap, and the library gives up on several of them. The walk:
// collect every ToUnicode table, then decode the show operators (Tj, TJ,
// ') of every content stream through the merged table.
//
// Raw streams carry no page boundaries, so the result is one logical
// page.
func extractFromRawStreams(data []byte) ([]string, error) {
	streams := rawStreams(data)
	if len(streams) == 0 {
		return nil, nil
	}

	cm := mergedCMap(data)

	var texts []string
	for _, stream := range streams {
		if text := streamText(inflate(stream), cm); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}
	return []string{strings.Join(texts, "\n")}, nil
}

// rawStreams returns the payload of every stream...endstream block.
func rawStreams(data []byte) [][]byte {
	var streams [][]byte
	startMarker := []byte("stream")
	endMarker := []byte("endstream")

	offset := 0
	for offset < len(data) {
		idx := bytes.Index(data[offset:], startMarker)
		if idx < 0 {
			break
		}
		start := offset + idx + len(startMarker)

		// An EOL follows the stream keyword.
		if start < len(data) && data[start] == '\r' {
			start++
		}
		if start < len(data) && data[start] == '\n' {
			start++
		}

		end := bytes.Index(data[start:], endMarker)
		if end < 0 {
			break
		}
		if end > 0 {
			streams = append(streams, data[start:start+end])
		}
		offset = start + end + len(endMarker)
	}
	return streams
}

// inflate undoes FlateDecode; non-compressed streams pass through.
func inflate(data []byte) []byte {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return data
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return data
	}
	return out
}

// Show and positioning operators. Literal strings admit escaped
// parentheses.
var (
	hexShowPattern      = regexp.MustCompile(`<([0-9A-Fa-f]+)>\s*Tj`)
	litShowPattern      = regexp.MustCompile(`\(((?:[^)\\]|\\.)*)\)\s*Tj`)
	showArrayPattern    = regexp.MustCompile(`\[([^\]]*)\]\s*TJ`)
	nextLineShowPattern = regexp.MustCompile(`\(((?:[^)\\]|\\.)*)\)\s*'`)
	moveTextPattern     = regexp.MustCompile(`([\d.\-]+)\s+([\d.\-]+)\s+T[dD]`)
	arrayItemPattern    = regexp.MustCompile(`<([0-9A-Fa-f]+)>|\(((?:[^)\\]|\\.)*)\)`)
)

// streamText extracts the text of one content stream.
func streamText(data []byte, cm *cmapTable) string {
	content := string(data)
	if !strings.Contains(content, "BT") && !strings.Contains(content, "Tj") &&
		!strings.Contains(content, "TJ") {
		return ""
	}

	var lines []string
	for _, block := range textBlocks(content) {
		lines = append(lines, blockLines(block, cm)...)
	}

	// Some producers skip BT/ET; sweep the whole stream then.
	if len(lines) == 0 {
		if text := looseText(content, cm); text != "" {
			lines = append(lines, text)
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// textBlocks returns the BT...ET segments in order.
func textBlocks(content string) []string {
	var blocks []string
	for {
		bt := strings.Index(content, "BT")
		if bt < 0 {
			break
		}
		et := strings.Index(content[bt:], "ET")
		if et < 0 {
			break
		}
		blocks = append(blocks, content[bt:bt+et+2])
		content = content[bt+et+2:]
	}
	return blocks
}

// blockLines walks one text block operator by operator. Td/TD and T*
// reposition the cursor, which is the only line-break signal a content
// stream carries.
func blockLines(block string, cm *cmapTable) []string {
	var lines []string
	var cur strings.Builder

	breakLine := func() {
		if line := strings.TrimSpace(cur.String()); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	for _, op := range strings.Split(block, "\n") {
		op = strings.TrimSpace(op)

		if op == "T*" || moveTextPattern.MatchString(op) {
			breakLine()
		}

		for _, m := range hexShowPattern.FindAllStringSubmatch(op, -1) {
			cur.WriteString(decodeHexText(m[1], cm))
		}
		for _, m := range litShowPattern.FindAllStringSubmatch(op, -1) {
			cur.WriteString(decodeLiteralText(m[1], cm))
		}
		for _, m := range showArrayPattern.FindAllStringSubmatch(op, -1) {
			cur.WriteString(decodeShowArray(m[1], cm))
		}
		for _, m := range nextLineShowPattern.FindAllStringSubmatch(op, -1) {
			breakLine()
			cur.WriteString(decodeLiteralText(m[1], cm))
		}
	}
	breakLine()

	return lines
}

// looseText sweeps show operators without block structure.
func looseText(content string, cm *cmapTable) string {
	var parts []string
	for _, m := range hexShowPattern.FindAllStringSubmatch(content, -1) {
		if text := decodeHexText(m[1], cm); text != "" {
			parts = append(parts, text)
		}
	}
	for _, m := range litShowPattern.FindAllStringSubmatch(content, -1) {
		if text := decodeLiteralText(m[1], cm); text != "" {
			parts = append(parts, text)
		}
	}
	for _, m := range showArrayPattern.FindAllStringSubmatch(content, -1) {
		if text := decodeShowArray(m[1], cm); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// decodeShowArray handles a TJ array: a mix of strings and kerning
// numbers. The single alternating pattern preserves item order, so glyph
// runs concatenate the way they render.
func decodeShowArray(array string, cm *cmapTable) string {
	var b strings.Builder
	for _, m := range arrayItemPattern.FindAllStringSubmatch(array, -1) {
		if m[1] != "" {
			b.WriteString(decodeHexText(m[1], cm))
		} else {
			b.WriteString(decodeLiteralText(m[2], cm))
		}
	}
	return b.String()
}

// decodeHexText decodes one hex string, preferring the CMap. Without a
// usable table the bytes are tried as UTF-16BE, which several Hebrew
// producers emit even outside ToUnicode streams.
func decodeHexText(hexStr string, cm *cmapTable) string {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return ""
	}

	if text := cm.decode(raw); text != "" {
		return text
	}

	if len(raw) >= 2 && len(raw)%2 == 0 {
		var b strings.Builder
		for i := 0; i+1 < len(raw); i += 2 {
			r := rune(raw[i])<<8 | rune(raw[i+1])
			if unicode.IsPrint(r) || r == ' ' {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}

	return printableOnly(string(raw))
}

// decodeLiteralText decodes one literal string.
func decodeLiteralText(s string, cm *cmapTable) string {
	decoded := unescapeLiteral(s)

	if text := cm.decode([]byte(decoded)); text != "" && mostlyPrintable(text) {
		return text
	}

	return printableOnly(decoded)
}

// unescapeLiteral resolves PDF string escapes, including octal codes.
func unescapeLiteral(s string) string {
	var buf strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			buf.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			buf.WriteByte('\n')
		case 'r':
			buf.WriteByte('\r')
		case 't':
			buf.WriteByte('\t')
		case 'b':
			buf.WriteByte('\b')
		case 'f':
			buf.WriteByte('\f')
		case '(', ')', '\\':
			buf.WriteByte(s[i])
		default:
			if s[i] >= '0' && s[i] <= '7' {
				val := int(s[i] - '0')
				for j := 1; j < 3 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '7'; j++ {
					i++
					val = val*8 + int(s[i]-'0')
				}
				buf.WriteByte(byte(val))
			} else {
				buf.WriteByte(s[i])
			}
		}
	}
	return buf.String()
}

// printableOnly drops non-printable runes.
func printableOnly(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		return -1
	}, s))
}

// mostlyPrintable reports whether over half the runes are printable.
func mostlyPrintable(s string) bool {
	if s == "" {
		return false
	}
	printable, total := 0, 0
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' || r == ' ' {
			printable++
		}
	}
	return float64(printable)/float64(total) > 0.5
}
