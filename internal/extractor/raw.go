package extractor

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// kerningGap is the TJ adjustment, in thousandths of an em, past which a
// gap between two strings is read as a word break.
const kerningGap = 250

var (
	// textOp matches, in stream order: a string operand and its show
	// operator, a Td/TD move, a Tm matrix, T* and ET.
	textOp = regexp.MustCompile(`(?s)(\[(?:\\.|[^\]\\])*\]|\((?:\\.|[^()\\])*\)|<[0-9A-Fa-f\s]*>)\s*(Tj|TJ|'|")` +
		`|(-?[\d.]+)\s+(-?[\d.]+)\s+T[dD]\b` +
		`|(-?[\d.]+)\s+(-?[\d.]+)\s+Tm\b` +
		`|T\*|\bET\b`)
	// arrayItem matches the hex strings, literal strings and kerning
	// numbers of a TJ array.
	arrayItem = regexp.MustCompile(`<([0-9A-Fa-f\s]*)>|\(((?:\\.|[^()\\])*)\)|(-?[\d.]+)`)
	hexSpace  = regexp.MustCompile(`\s+`)
)

// extractRaw reads the text operators of every content stream in data
// without a PDF object parser. Glyph codes are decoded through the
// document's ToUnicode CMaps, which covers Type0/CID fonts the library
// returns as garbage. Each content stream becomes one page.
func extractRaw(data []byte) []string {
	streams := rawStreams(data)

	gm := &glyphMap{}
	for _, s := range streams {
		if c := string(s); isCMapStream(c) {
			gm.parse(c)
		}
	}

	var pages []string
	for _, s := range streams {
		c := string(s)
		if isCMapStream(c) || !strings.Contains(c, "BT") {
			continue
		}
		if text := streamText(c, gm); text != "" {
			pages = append(pages, text)
		}
	}
	return pages
}

// rawStreams returns the body of every stream object, inflated when it is
// zlib compressed.
func rawStreams(data []byte) [][]byte {
	var out [][]byte
	for rest := data; ; {
		i := bytes.Index(rest, []byte("stream"))
		if i < 0 {
			break
		}
		body := rest[i+len("stream"):]
		body = bytes.TrimPrefix(body, []byte("\r"))
		body = bytes.TrimPrefix(body, []byte("\n"))
		end := bytes.Index(body, []byte("endstream"))
		if end < 0 {
			break
		}
		if end > 0 {
			out = append(out, inflate(body[:end]))
		}
		rest = body[end+len("endstream"):]
	}
	return out
}

func inflate(b []byte) []byte {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return b
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return b
	}
	return out
}

// lineBuilder collects shown text into lines. Horizontal moves on the
// same baseline become a two-space column gap.
type lineBuilder struct {
	lines []string
	cur   strings.Builder
}

func (lb *lineBuilder) write(s string) {
	lb.cur.WriteString(s)
}

func (lb *lineBuilder) gap() {
	if lb.cur.Len() > 0 && !strings.HasSuffix(lb.cur.String(), "  ") {
		lb.cur.WriteString("  ")
	}
}

func (lb *lineBuilder) newline() {
	if line := strings.TrimSpace(lb.cur.String()); line != "" {
		lb.lines = append(lb.lines, line)
	}
	lb.cur.Reset()
}

func streamText(content string, gm *glyphMap) string {
	var (
		lb       lineBuilder
		baseline float64
		inLine   bool
	)
	for _, m := range textOp.FindAllStringSubmatch(content, -1) {
		switch {
		case m[2] != "":
			if m[2] == "'" || m[2] == `"` {
				lb.newline()
			}
			lb.write(showText(m[1], gm))
		case m[4] != "":
			// Td offsets are relative to the current line.
			if y, _ := strconv.ParseFloat(m[4], 64); y != 0 {
				lb.newline()
			} else {
				lb.gap()
			}
		case m[6] != "":
			y, _ := strconv.ParseFloat(m[6], 64)
			if inLine && y == baseline {
				lb.gap()
			} else {
				lb.newline()
			}
			baseline, inLine = y, true
		default:
			// T* or ET
			lb.newline()
			inLine = inLine && m[0] == "T*"
		}
	}
	lb.newline()
	return strings.Join(lb.lines, "\n")
}

// showText decodes the operand of a show operator.
func showText(operand string, gm *glyphMap) string {
	switch operand[0] {
	case '(':
		return literalText(operand[1:len(operand)-1], gm)
	case '<':
		return hexText(operand[1:len(operand)-1], gm)
	}

	var b strings.Builder
	for _, it := range arrayItem.FindAllStringSubmatch(operand[1:len(operand)-1], -1) {
		switch {
		case strings.HasPrefix(it[0], "<"):
			b.WriteString(hexText(it[1], gm))
		case strings.HasPrefix(it[0], "("):
			b.WriteString(literalText(it[2], gm))
		default:
			if k, err := strconv.ParseFloat(it[3], 64); err == nil && k < -kerningGap {
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

func hexText(h string, gm *glyphMap) string {
	h = hexSpace.ReplaceAllString(h, "")
	if len(h)%2 != 0 {
		h += "0"
	}
	raw, err := hex.DecodeString(h)
	if err != nil || len(raw) == 0 {
		return ""
	}
	if text := gm.decode(raw); text != "" {
		return text
	}
	// Two-byte codes starting with zero are plain UTF-16BE.
	if len(raw)%2 == 0 && raw[0] == 0 {
		return printable(utf16Hex(h))
	}
	return latin1(raw)
}

func literalText(s string, gm *glyphMap) string {
	raw := unescapeLiteral(s)
	if text := gm.decode(raw); text != "" && textQuality([]string{text}) > minReadableQuality {
		return text
	}
	return latin1(raw)
}

// unescapeLiteral resolves the backslash escapes of a PDF literal string.
func unescapeLiteral(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			out = append(out, c)
			continue
		}
		i++
		switch c = s[i]; c {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		default:
			if c < '0' || c > '7' {
				out = append(out, c)
				continue
			}
			v := int(c - '0')
			for n := 1; n < 3 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '7'; n++ {
				i++
				v = v*8 + int(s[i]-'0')
			}
			out = append(out, byte(v))
		}
	}
	return out
}

// latin1 reads single-byte codes as Latin-1, which matches WinAnsi for
// the letters French statements use.
func latin1(raw []byte) string {
	var b strings.Builder
	for _, c := range raw {
		if r := rune(c); unicode.IsPrint(r) || r == '\t' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' {
			return r
		}
		return -1
	}, s)
}
