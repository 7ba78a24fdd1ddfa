package xmldoc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

const orderTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<Order xmlns:ns="urn:example">
  <poNumber>PO1</poNumber>
  <ns:buyer code="B1">Acme &amp; Sons</ns:buyer>
  <lines><line poNumber="attr">1</line></lines>
</Order>`

func TestReplicateSuffixesOrderNumber(t *testing.T) {
	docs, err := Replicate([]byte(orderTemplate), "poNumber", 3)
	if err != nil {
		t.Fatalf("Replicate() error = %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("len(docs) = %d, want 3", len(docs))
	}
	for i, doc := range docs {
		want := []string{"PO1-XXX0", "PO1-XXX1", "PO1-XXX2"}[i]
		got, err := TextOf(doc, "poNumber")
		if err != nil {
			t.Fatalf("TextOf(doc %d) error = %v", i, err)
		}
		if got != want {
			t.Fatalf("doc %d poNumber = %q, want %q", i, got, want)
		}
		restored := strings.Replace(string(doc), "<poNumber>"+want+"</poNumber>", "<poNumber>PO1</poNumber>", 1)
		if restored != orderTemplate {
			t.Fatalf("doc %d differs from the template beyond poNumber:\n%s", i, doc)
		}
	}
}

func TestReplicateMissingElement(t *testing.T) {
	_, err := Replicate([]byte("<Order><id>1</id></Order>"), "poNumber", 2)
	if !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("Replicate() error = %v, want ErrElementNotFound", err)
	}
}

func TestReplicateZeroCount(t *testing.T) {
	docs, err := Replicate([]byte(orderTemplate), "poNumber", 0)
	if err != nil || len(docs) != 0 {
		t.Fatalf("Replicate(0) = %d docs, %v", len(docs), err)
	}
}

func TestSetTextSelfClosingAndEscaping(t *testing.T) {
	doc, err := SetText([]byte(`<Order><poNumber/><x/></Order>`), "poNumber", "A<B")
	if err != nil {
		t.Fatalf("SetText() error = %v", err)
	}
	if string(doc) != `<Order><poNumber>A&lt;B</poNumber><x/></Order>` {
		t.Fatalf("SetText() = %s", doc)
	}
	if err := Validate(doc); err != nil {
		t.Fatalf("SetText() produced invalid xml: %v", err)
	}
}

func TestPrettyIndentsAndKeepsPrefixes(t *testing.T) {
	compact := `<ns:Doc xmlns:ns="urn:x"><ns:a k="v">text</ns:a><b>1 &lt; 2</b></ns:Doc>`
	out, err := Pretty([]byte(compact), DefaultIndent)
	if err != nil {
		t.Fatalf("Pretty() error = %v", err)
	}
	want := "<ns:Doc xmlns:ns=\"urn:x\">\n  <ns:a k=\"v\">text</ns:a>\n  <b>1 &lt; 2</b>\n</ns:Doc>\n"
	if string(out) != want {
		t.Fatalf("Pretty() =\n%s\nwant\n%s", out, want)
	}
	if err := Validate(out); err != nil {
		t.Fatalf("Pretty() output invalid: %v", err)
	}
}

func TestPrettyIsStable(t *testing.T) {
	once, err := Pretty([]byte(orderTemplate), DefaultIndent)
	if err != nil {
		t.Fatalf("Pretty() error = %v", err)
	}
	twice, err := Pretty(once, DefaultIndent)
	if err != nil {
		t.Fatalf("Pretty() error = %v", err)
	}
	if !bytes.Equal(once, twice) {
		t.Fatalf("Pretty() not stable:\n%s\n---\n%s", once, twice)
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	for _, doc := range []string{"", "<a>", "<a></b>", "<a/><b/>", "plain text"} {
		if err := Validate([]byte(doc)); err == nil {
			t.Fatalf("Validate(%q) error = nil, want error", doc)
		}
	}
	if err := Validate([]byte(orderTemplate)); err != nil {
		t.Fatalf("Validate(template) error = %v", err)
	}
}

// "München" with ü as the single Latin-1 byte 0xFC.
const latin1Order = "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
	"<Order><poNumber>PO1</poNumber><city>M\xfcnchen</city></Order>"

func TestLatin1DocumentsAreTranscoded(t *testing.T) {
	if err := Validate([]byte(latin1Order)); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	converted, err := ToUTF8([]byte(latin1Order))
	if err != nil {
		t.Fatalf("ToUTF8() error = %v", err)
	}
	want := "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" +
		"<Order><poNumber>PO1</poNumber><city>München</city></Order>"
	if string(converted) != want {
		t.Fatalf("ToUTF8() = %q, want %q", converted, want)
	}

	docs, err := Replicate([]byte(latin1Order), "poNumber", 2)
	if err != nil {
		t.Fatalf("Replicate() error = %v", err)
	}
	for i, doc := range docs {
		if !strings.Contains(string(doc), fmt.Sprintf("<poNumber>PO1-XXX%d</poNumber>", i)) ||
			!strings.Contains(string(doc), "München") || !strings.Contains(string(doc), `encoding="UTF-8"`) {
			t.Fatalf("docs[%d] = %q", i, doc)
		}
	}

	pretty, err := Pretty([]byte(latin1Order), DefaultIndent)
	if err != nil {
		t.Fatalf("Pretty() error = %v", err)
	}
	if !strings.Contains(string(pretty), "<city>München</city>") || !strings.Contains(string(pretty), `encoding="UTF-8"`) {
		t.Fatalf("Pretty() = %q", pretty)
	}
}

func TestToUTF8LeavesUTF8Alone(t *testing.T) {
	for _, doc := range []string{orderTemplate, "<Order/>", `<?xml version="1.0"?><Order/>`} {
		got, err := ToUTF8([]byte(doc))
		if err != nil {
			t.Fatalf("ToUTF8(%q) error = %v", doc, err)
		}
		if string(got) != doc {
			t.Fatalf("ToUTF8(%q) = %q", doc, got)
		}
	}
}

func TestUnknownEncodingIsRejected(t *testing.T) {
	doc := []byte(`<?xml version="1.0" encoding="x-no-such-charset"?><Order/>`)
	if _, err := ToUTF8(doc); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("ToUTF8() error = %v, want ErrUnsupportedEncoding", err)
	}
	if err := Validate(doc); err == nil {
		t.Fatal("Validate() error = nil, want error")
	}
}
