package extractor

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// unquoteJS decodes a single- or double-quoted JavaScript string literal.
func unquoteJS(raw string) (string, error) {
	if len(raw) < 2 {
		return "", fmt.Errorf("malformed string literal %q", raw)
	}
	quote := raw[0]
	if (quote != '"' && quote != '\'') || raw[len(raw)-1] != quote {
		return "", fmt.Errorf("malformed string literal %q", raw)
	}
	body := raw[1 : len(raw)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}

	var sb strings.Builder
	sb.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("dangling escape in %q", raw)
		}
		if r, size := utf8.DecodeRuneInString(body[i:]); r == '\u2028' || r == '\u2029' {
			i += size - 1
			continue
		}
		switch e := body[i]; e {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '0':
			sb.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(body) && body[i+1] == '\n' {
				i++
			}
		case 'x':
			if i+3 > len(body) {
				return "", fmt.Errorf("short \\x escape in %q", raw)
			}
			v, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("bad \\x escape in %q", raw)
			}
			sb.WriteRune(rune(v))
			i += 2
		case 'u':
			r, n, err := decodeUnicodeEscape(body[i+1:])
			if err != nil {
				return "", fmt.Errorf("%v in %q", err, raw)
			}
			i += n
			// Surrogate pairs arrive as two consecutive \u escapes.
			if utf16.IsSurrogate(r) && strings.HasPrefix(body[i+1:], "\\u") {
				r2, n2, err := decodeUnicodeEscape(body[i+3:])
				if err == nil {
					if combined := utf16.DecodeRune(r, r2); combined != utf8.RuneError {
						r = combined
						i += 2 + n2
					}
				}
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte(e)
		}
	}
	return sb.String(), nil
}

// decodeUnicodeEscape parses the part after "\u": XXXX or {X...}. It returns
// the rune and the number of bytes consumed.
func decodeUnicodeEscape(s string) (rune, int, error) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return 0, 0, fmt.Errorf("bad \\u{} escape")
		}
		v, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0, fmt.Errorf("bad \\u{} escape")
		}
		return rune(v), end + 1, nil
	}
	if len(s) < 4 {
		return 0, 0, fmt.Errorf("short \\u escape")
	}
	v, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad \\u escape")
	}
	return rune(v), 4, nil
}
