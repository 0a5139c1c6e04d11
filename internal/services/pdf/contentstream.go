package pdf

import (
	"strconv"
	"strings"
)

// decodeContentStream pulls the shown text out of a PDF content stream.
// It walks Tj / TJ / ' / " show operators and concatenates their string
// operands, inserting newlines on text-positioning operators (Td, TD,
// T*). Anything that is not a content stream passes through unchanged.
func decodeContentStream(content string) string {
	if !looksLikeContentStream(content) {
		return content
	}

	var out strings.Builder
	var operands []string

	i := 0
	n := len(content)
	for i < n {
		c := content[i]
		switch {
		case c == '(':
			s, next := readLiteralString(content, i)
			operands = append(operands, s)
			i = next
		case c == '<' && i+1 < n && content[i+1] != '<':
			s, next := readHexString(content, i)
			operands = append(operands, s)
			i = next
		case c == '[':
			// Array operand for TJ, strings inside are collected
			i++
		case c == ']':
			i++
		case isOperatorChar(c):
			op, next := readToken(content, i)
			switch op {
			case "Tj", "'", "\"", "TJ":
				for _, s := range operands {
					out.WriteString(s)
				}
				if op == "'" || op == "\"" {
					out.WriteByte('\n')
				}
				operands = nil
			case "Td", "TD", "T*", "ET":
				if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
					out.WriteByte('\n')
				}
				operands = nil
			case "BT", "Tf", "Tm", "Tc", "Tw", "Tz", "TL", "Ts", "Tr":
				operands = nil
			}
			i = next
		default:
			i++
		}
	}

	return strings.TrimSpace(out.String())
}

// looksLikeContentStream checks for the BT...ET text block markers
func looksLikeContentStream(content string) bool {
	return strings.Contains(content, "BT") &&
		strings.Contains(content, "ET") &&
		(strings.Contains(content, "Tj") || strings.Contains(content, "TJ"))
}

// readLiteralString reads a parenthesized PDF string starting at open.
// Returns the decoded string and the index after the closing paren.
func readLiteralString(content string, open int) (string, int) {
	var b strings.Builder
	depth := 0
	i := open
	for i < len(content) {
		c := content[i]
		switch c {
		case '\\':
			if i+1 < len(content) {
				next := content[i+1]
				switch next {
				case 'n':
					b.WriteByte('\n')
				case 'r':
					b.WriteByte('\r')
				case 't':
					b.WriteByte('\t')
				case '(', ')', '\\':
					b.WriteByte(next)
				default:
					// Octal escapes and unknowns pass the raw char
					b.WriteByte(next)
				}
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				b.WriteByte(c)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

// readHexString reads a <hex> PDF string starting at open
func readHexString(content string, open int) (string, int) {
	end := strings.IndexByte(content[open:], '>')
	if end < 0 {
		return "", len(content)
	}
	hexStr := content[open+1 : open+end]
	hexStr = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, hexStr)
	if len(hexStr)%2 == 1 {
		hexStr += "0"
	}

	var b strings.Builder
	for j := 0; j+1 < len(hexStr); j += 2 {
		v, err := strconv.ParseUint(hexStr[j:j+2], 16, 8)
		if err != nil {
			continue
		}
		if v >= 32 && v < 127 {
			b.WriteByte(byte(v))
		}
	}
	return b.String(), open + end + 1
}

// readToken reads an operator token starting at i
func readToken(content string, i int) (string, int) {
	start := i
	for i < len(content) && isOperatorChar(content[i]) {
		i++
	}
	return content[start:i], i
}

func isOperatorChar(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '\'' || c == '"' || c == '*'
}
