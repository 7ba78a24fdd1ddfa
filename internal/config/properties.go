package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const propertyBlanks = " \t\f"

// parseProperties reads the java.util.Properties text format: '=', ':' or
// whitespace separators, backslash escapes, \uXXXX and continuation lines.
// A line starting with ';' is also a comment.
func parseProperties(data []byte) (properties, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	props := properties{}
	for i := 0; i < len(lines); i++ {
		line := strings.TrimLeft(lines[i], propertyBlanks)
		if line == "" || line[0] == '#' || line[0] == '!' || line[0] == ';' {
			continue
		}
		for continues(line) {
			line = line[:len(line)-1]
			if i+1 >= len(lines) {
				break
			}
			i++
			line += strings.TrimLeft(lines[i], propertyBlanks)
		}

		key, value, err := splitProperty(line)
		if err != nil {
			return nil, err
		}
		props[strings.ToLower(key)] = value
	}
	return props, nil
}

// continues reports whether line ends in an unescaped backslash.
func continues(line string) bool {
	return trailingBackslashes(line)%2 == 1
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

func splitProperty(line string) (string, string, error) {
	end := len(line)
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\\' {
			i++
			continue
		}
		if c == '=' || c == ':' || strings.IndexByte(propertyBlanks, c) >= 0 {
			end = i
			break
		}
	}

	rest := strings.TrimLeft(line[end:], propertyBlanks)
	if rest != "" && (rest[0] == '=' || rest[0] == ':') {
		rest = strings.TrimLeft(rest[1:], propertyBlanks)
	}

	key, err := unescapeProperty(line[:end])
	if err != nil {
		return "", "", err
	}
	value, err := unescapeProperty(trimUnescapedBlanks(rest))
	if err != nil {
		return "", "", err
	}
	return key, value, nil
}

// trimUnescapedBlanks drops trailing blanks unless they are escaped.
func trimUnescapedBlanks(s string) string {
	for s != "" && strings.IndexByte(propertyBlanks, s[len(s)-1]) >= 0 {
		if trailingBackslashes(s[:len(s)-1])%2 == 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

func unescapeProperty(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			break
		}
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			r, err := parseUnicodeEscape(s, i+1)
			if err != nil {
				return "", err
			}
			i += 4
			if utf16.IsSurrogate(r) && strings.HasPrefix(s[i+1:], `\u`) {
				if low, err := parseUnicodeEscape(s, i+3); err == nil {
					if combined := utf16.DecodeRune(r, low); combined != utf8.RuneError {
						r = combined
						i += 6
					}
				}
			}
			b.WriteRune(r)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

// parseUnicodeEscape reads the four hex digits of a \uXXXX escape starting at start.
func parseUnicodeEscape(s string, start int) (rune, error) {
	if start+4 > len(s) {
		return 0, fmt.Errorf("malformed \\uxxxx escape in %q", s)
	}
	value, err := strconv.ParseUint(s[start:start+4], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed \\uxxxx escape in %q", s)
	}
	return rune(value), nil
}
