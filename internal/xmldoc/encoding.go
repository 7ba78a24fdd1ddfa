package xmldoc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// ErrUnsupportedEncoding is returned for an XML declaration naming an unknown charset.
var ErrUnsupportedEncoding = errors.New("unsupported xml encoding")

var declEncoding = regexp.MustCompile(`encoding\s*=\s*["']([^"']+)["']`)

// newDecoder returns a decoder that understands any charset known to IANA.
func newDecoder(data []byte) *xml.Decoder {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charsetReader
	return decoder
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// ToUTF8 transcodes a document whose declaration names another charset and
// rewrites the declaration to UTF-8. Documents without such a declaration
// are returned unchanged.
func ToUTF8(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("<?xml")) {
		return data, nil
	}
	declEnd := bytes.Index(data, []byte("?>"))
	if declEnd < 0 {
		return data, nil
	}
	match := declEncoding.FindSubmatchIndex(data[:declEnd])
	if match == nil {
		return data, nil
	}
	label := string(data[match[2]:match[3]])

	var out []byte
	switch strings.ToLower(label) {
	case "utf-8", "utf8":
		return data, nil
	case "us-ascii", "ascii":
		out = bytes.Clone(data)
	default:
		enc, err := ianaindex.IANA.Encoding(label)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, label)
		}
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", label, err)
		}
		if len(decoded) < match[3] || !bytes.Equal(decoded[:match[3]], data[:match[3]]) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, label)
		}
		out = decoded
	}

	// The declaration is ASCII, so its offsets survive transcoding.
	rewritten := make([]byte, 0, len(out))
	rewritten = append(rewritten, out[:match[2]]...)
	rewritten = append(rewritten, "UTF-8"...)
	rewritten = append(rewritten, out[match[3]:]...)
	return rewritten, nil
}
