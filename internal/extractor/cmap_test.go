package extractor

import "testing"

const sampleToUnicode = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
3 beginbfchar
<0003> <05D1>
<0004> <05E0>
<0005> <05E7>
endbfchar
2 beginbfrange
<0010> <0012> <05D0>
<0020> <0022> [<05E9> <05DC> <05DD>]
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

func TestParseCMap(t *testing.T) {
	cm := parseCMap(sampleToUnicode)

	tests := []struct {
		code string
		want string
	}{
		{"0003", "ב"},
		{"0004", "נ"},
		{"0005", "ק"},
		{"0010", "א"}, // range start
		{"0011", "ב"},
		{"0012", "ג"}, // range end
		{"0020", "ש"}, // array form
		{"0021", "ל"},
		{"0022", "ם"},
	}

	if len(cm.codes) != len(tests) {
		t.Errorf("codes: got %d, want %d", len(cm.codes), len(tests))
	}
	for _, tt := range tests {
		if got := cm.codes[tt.code]; got != tt.want {
			t.Errorf("codes[%q]: got %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestCMapDecode(t *testing.T) {
	cm := parseCMap(sampleToUnicode)

	got := cm.decode([]byte{0x00, 0x03, 0x00, 0x04, 0x00, 0x05})
	if want := "בנק"; got != want {
		t.Errorf("decode: got %q, want %q", got, want)
	}

	// Unmapped codes drop out without derailing the rest.
	got = cm.decode([]byte{0x00, 0x03, 0x7F, 0x7F, 0x00, 0x05})
	if want := "בק"; got != want {
		t.Errorf("decode with gap: got %q, want %q", got, want)
	}
}

func TestCMapDecodeNilTable(t *testing.T) {
	var cm *cmapTable
	if got := cm.decode([]byte("anything")); got != "" {
		t.Errorf("nil table decode: got %q, want empty", got)
	}
}

func TestCMapDecodeSingleByteCodes(t *testing.T) {
	cm := parseCMap(`1 beginbfchar
<41> <05D0>
endbfchar`)

	// Mapped byte translates, unmapped printable ASCII passes through.
	if got, want := cm.decode([]byte{0x41, 0x42}), "אB"; got != want {
		t.Errorf("decode: got %q, want %q", got, want)
	}
}

func TestParseCMapRejectsHugeRange(t *testing.T) {
	// A full two-byte identity range is legitimate; a wider one is a
	// malformed table and must not allocate millions of entries.
	cm := parseCMap(`1 beginbfrange
<000000> <FFFFFF> <000041>
endbfrange`)
	if len(cm.codes) != 0 {
		t.Errorf("codes: got %d, want 0", len(cm.codes))
	}
}

func TestUTF16BEString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"05D0", "א"},
		{"0041", "A"},
		{"05E905DC05DD", "שלם"},
		{"D83DDE00", "😀"}, // surrogate pair
		{"zz", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := utf16beString(tt.in); got != tt.want {
			t.Errorf("utf16beString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHexValue(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"05D0", 0x05D0},
		{"ff", 255},
		{"0", 0},
		{"XYZ", -1},
	}
	for _, tt := range tests {
		if got := hexValue(tt.in); got != tt.want {
			t.Errorf("hexValue(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHexKey(t *testing.T) {
	tests := []struct {
		val   int
		width int
		want  string
	}{
		{0x5D0, 4, "05D0"},
		{0x10, 2, "10"},
		{0x123456, 4, "3456"},
	}
	for _, tt := range tests {
		if got := hexKey(tt.val, tt.width); got != tt.want {
			t.Errorf("hexKey(%#x, %d) = %q, want %q", tt.val, tt.width, got, tt.want)
		}
	}
}
