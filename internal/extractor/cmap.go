package extractor

import (
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

// glyphMap is a ToUnicode table: glyph codes, as uppercase hex, to text.
// Type0/CID fonts draw with glyph codes that only this table can turn back
// into characters.
type glyphMap struct {
	codes map[string]string
	// width is the glyph code size in bytes, taken from the first source
	// code seen.
	width int
}

var (
	bfcharBlock  = regexp.MustCompile(`(?s)beginbfchar(.*?)endbfchar`)
	bfrangeBlock = regexp.MustCompile(`(?s)beginbfrange(.*?)endbfrange`)
	hexToken     = regexp.MustCompile(`<([0-9A-Fa-f]*)>`)
)

func isCMapStream(content string) bool {
	return strings.Contains(content, "beginbfchar") || strings.Contains(content, "beginbfrange")
}

// parse reads the bfchar and bfrange sections of a CMap stream
// into m.
func (m *glyphMap) parse(content string) {
	for _, block := range bfcharBlock.FindAllStringSubmatch(content, -1) {
		tokens := hexToken.FindAllStringSubmatch(block[1], -1)
		for i := 0; i+1 < len(tokens); i += 2 {
			m.set(tokens[i][1], utf16Hex(tokens[i+1][1]))
		}
	}

	for _, block := range bfrangeBlock.FindAllStringSubmatch(content, -1) {
		for _, line := range strings.Split(block[1], "\n") {
			head, list, isList := strings.Cut(line, "[")
			tokens := hexToken.FindAllStringSubmatch(head, -1)
			if len(tokens) < 2 {
				continue
			}
			lo, err1 := strconv.ParseUint(tokens[0][1], 16, 32)
			hi, err2 := strconv.ParseUint(tokens[1][1], 16, 32)
			if err1 != nil || err2 != nil || hi < lo {
				continue
			}
			digits := len(tokens[0][1])

			// <lo> <hi> [<dst1> <dst2> ...]
			if isList {
				for i, dst := range hexToken.FindAllStringSubmatch(list, -1) {
					if lo+uint64(i) > hi {
						break
					}
					m.set(codeHex(lo+uint64(i), digits), utf16Hex(dst[1]))
				}
				continue
			}

			// <lo> <hi> <dst>: consecutive codes map to consecutive code points.
			if len(tokens) < 3 {
				continue
			}
			dst, err := strconv.ParseUint(tokens[2][1], 16, 32)
			if err != nil {
				continue
			}
			dstDigits := len(tokens[2][1])
			for code := lo; code <= hi; code++ {
				m.set(codeHex(code, digits), utf16Hex(codeHex(dst+code-lo, dstDigits)))
			}
		}
	}
}

func (m *glyphMap) set(src, text string) {
	if src == "" || text == "" {
		return
	}
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	if m.width == 0 {
		m.width = (len(src) + 1) / 2
	}
	m.codes[strings.ToUpper(src)] = text
}

func (m *glyphMap) empty() bool {
	return m == nil || len(m.codes) == 0
}

// decode maps raw string bytes through the table. Codes of the table width
// are tried first, then single bytes; unmapped printable ASCII is kept.
func (m *glyphMap) decode(raw []byte) string {
	if m.empty() {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(raw); {
		if i+m.width <= len(raw) {
			if text, ok := m.codes[strings.ToUpper(hex.EncodeToString(raw[i:i+m.width]))]; ok {
				b.WriteString(text)
				i += m.width
				continue
			}
		}
		if text, ok := m.codes[strings.ToUpper(hex.EncodeToString(raw[i:i+1]))]; ok {
			b.WriteString(text)
		} else if raw[i] >= 0x20 && raw[i] < 0x7f && m.width == 1 {
			b.WriteByte(raw[i])
		}
		i++
	}
	return b.String()
}

// codeHex formats code as uppercase hex padded to digits.
func codeHex(code uint64, digits int) string {
	s := strings.ToUpper(strconv.FormatUint(code, 16))
	if len(s) < digits {
		s = strings.Repeat("0", digits-len(s)) + s
	}
	return s
}

// utf16Hex decodes hex-encoded UTF-16BE, surrogate pairs included.
func utf16Hex(h string) string {
	if len(h)%2 != 0 {
		h = "0" + h
	}
	data, err := hex.DecodeString(h)
	if err != nil || len(data) == 0 {
		return ""
	}
	if len(data) == 1 {
		return string(rune(data[0]))
	}
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		units = append(units, uint16(data[i])<<8|uint16(data[i+1]))
	}
	return string(utf16.Decode(units))
}
