// Package xmldoc handles the XML documents exchanged with the integration API.
package xmldoc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultIndent is the indentation used for stored documents.
const DefaultIndent = "  "

// ErrElementNotFound is returned when a template lacks the element to rewrite.
var ErrElementNotFound = errors.New("element not found")

// Validate reports whether data is a single well-formed XML document.
func Validate(data []byte) error {
	decoder := newDecoder(data)
	roots := 0
	depth := 0
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("parse xml: %w", err)
		}
		switch token.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	if roots != 1 {
		return fmt.Errorf("parse xml: expected one root element, found %d", roots)
	}
	if depth != 0 {
		return fmt.Errorf("parse xml: unclosed element")
	}
	return nil
}

// Pretty re-indents an XML document and returns it UTF-8 encoded. Namespace
// prefixes are written back as they appeared in the input.
func Pretty(data []byte, indent string) ([]byte, error) {
	data, err := ToUTF8(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(data); err != nil {
		return nil, err
	}

	decoder := newDecoder(data)
	var out bytes.Buffer
	encoder := xml.NewEncoder(&out)
	encoder.Indent("", indent)

	for {
		token, err := decoder.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			t.Name = flatten(t.Name)
			attrs := make([]xml.Attr, len(t.Attr))
			for i, attr := range t.Attr {
				attrs[i] = xml.Attr{Name: flatten(attr.Name), Value: attr.Value}
			}
			t.Attr = attrs
			token = t
		case xml.EndElement:
			t.Name = flatten(t.Name)
			token = t
		case xml.CharData:
			if len(bytes.TrimSpace(t)) == 0 {
				continue
			}
		}
		if err := encoder.EncodeToken(xml.CopyToken(token)); err != nil {
			return nil, fmt.Errorf("format xml: %w", err)
		}
	}
	if err := encoder.Flush(); err != nil {
		return nil, fmt.Errorf("format xml: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func flatten(name xml.Name) xml.Name {
	if name.Space == "" {
		return name
	}
	return xml.Name{Local: name.Space + ":" + name.Local}
}

// TextOf returns the text content of the first element with the given local name.
func TextOf(data []byte, element string) (string, error) {
	data, err := ToUTF8(data)
	if err != nil {
		return "", err
	}
	loc, err := locate(data, element)
	if err != nil {
		return "", err
	}
	return loc.text, nil
}

// SetText replaces the content of the first element with the given local name.
// The result is UTF-8 encoded.
func SetText(data []byte, element, text string) ([]byte, error) {
	data, err := ToUTF8(data)
	if err != nil {
		return nil, err
	}
	loc, err := locate(data, element)
	if err != nil {
		return nil, err
	}

	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return nil, fmt.Errorf("escape text: %w", err)
	}

	out := make([]byte, 0, len(data)+escaped.Len()+len(loc.tag)+3)
	if loc.selfClosing {
		// <tag/> becomes <tag>text</tag>
		out = append(out, data[:loc.contentStart-2]...)
		out = append(out, '>')
		out = append(out, escaped.Bytes()...)
		out = append(out, "</"+loc.tag+">"...)
		out = append(out, data[loc.contentStart:]...)
		return out, nil
	}
	out = append(out, data[:loc.contentStart]...)
	out = append(out, escaped.Bytes()...)
	out = append(out, data[loc.contentEnd:]...)
	return out, nil
}

// Replicate clones template count times, appending "-XXX{i}" to the text of
// the first element named element in clone i. Clones are UTF-8 encoded.
func Replicate(template []byte, element string, count int) ([][]byte, error) {
	template, err := ToUTF8(template)
	if err != nil {
		return nil, err
	}
	original, err := TextOf(template, element)
	if err != nil {
		return nil, err
	}

	docs := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		doc, err := SetText(template, element, fmt.Sprintf("%s-XXX%d", original, i))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

type location struct {
	contentStart int64
	contentEnd   int64
	text         string
	tag          string
	selfClosing  bool
}

func locate(data []byte, element string) (location, error) {
	decoder := newDecoder(data)
	var (
		loc   location
		text  strings.Builder
		depth int
	)
	for {
		offset := decoder.InputOffset()
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return location{}, fmt.Errorf("%s: %w", element, ErrElementNotFound)
		}
		if err != nil {
			return location{}, fmt.Errorf("parse xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if depth > 0 {
				depth++
			} else if t.Name.Local == element {
				depth = 1
				loc.contentStart = decoder.InputOffset()
				raw := data[offset:loc.contentStart]
				loc.tag = rawTagName(raw)
				loc.selfClosing = bytes.HasSuffix(raw, []byte("/>"))
			}
		case xml.EndElement:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				loc.contentEnd = offset
				loc.text = text.String()
				return loc, nil
			}
		case xml.CharData:
			if depth > 0 {
				text.Write(t)
			}
		}
	}
}

func rawTagName(startTag []byte) string {
	name := strings.TrimPrefix(string(startTag), "<")
	if end := strings.IndexAny(name, " \t\r\n/>"); end >= 0 {
		name = name[:end]
	}
	return name
}
