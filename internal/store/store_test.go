package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gocloud.dev/blob/memblob"

	"github.com/AppXpress/Integration-API-Utility/internal/config"
)

func TestLocalPutWritesNamedFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	if err := sink.Put(context.Background(), "Order-11.xml", []byte("<Order/>")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "Order-11.xml"))
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if string(data) != "<Order/>" {
		t.Fatalf("written data = %q", data)
	}
}

func TestLocalKeepsNamesInsideFolder(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	if got := sink.Location("../evil.xml"); got != filepath.Join(dir, ".._evil.xml") {
		t.Fatalf("Location() = %q", got)
	}
}

func TestNewLocalRequiresDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := NewLocal(file); err == nil {
		t.Fatal("NewLocal(file) error = nil, want error")
	}
	if _, err := NewLocal(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("NewLocal(missing) error = nil, want error")
	}
}

func TestBlobPut(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	sink := NewBlob(bucket, "mem://test")
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Put(ctx, "Invoice-7.xml", []byte("<Invoice/>")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	data, err := bucket.ReadAll(ctx, "Invoice-7.xml")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "<Invoice/>" {
		t.Fatalf("stored data = %q", data)
	}
	attrs, err := bucket.Attributes(ctx, "Invoice-7.xml")
	if err != nil {
		t.Fatalf("Attributes() error = %v", err)
	}
	if attrs.ContentType != "application/xml" {
		t.Fatalf("ContentType = %q", attrs.ContentType)
	}
}

func TestOpenDispatchesOnFolder(t *testing.T) {
	ctx := context.Background()

	local, err := Open(ctx, config.Downloader{OutputFolder: t.TempDir()})
	if err != nil {
		t.Fatalf("Open(dir) error = %v", err)
	}
	if _, ok := local.(*Local); !ok {
		t.Fatalf("Open(dir) = %T, want *Local", local)
	}

	mem, err := Open(ctx, config.Downloader{OutputFolder: "mem://"})
	if err != nil {
		t.Fatalf("Open(mem://) error = %v", err)
	}
	defer mem.Close()
	if _, ok := mem.(*Blob); !ok {
		t.Fatalf("Open(mem://) = %T, want *Blob", mem)
	}
	if err := mem.Put(ctx, "a.xml", []byte("<a/>")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := Open(ctx, config.Downloader{OutputFolder: "nope://bucket"}); err == nil {
		t.Fatal("Open(nope://) error = nil, want error")
	}
}

func TestReadFolderLoadsSortedDocuments(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b.xml": "<Order><poNumber>2</poNumber></Order>",
		"a.xml": "<Order><poNumber>1</poNumber></Order>",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	docs, err := ReadFolder(dir)
	if err != nil {
		t.Fatalf("ReadFolder() error = %v", err)
	}
	if len(docs) != 2 || docs[0].Name != "a.xml" || docs[1].Name != "b.xml" {
		t.Fatalf("ReadFolder() = %+v", docs)
	}
	if string(docs[0].Data) != files["a.xml"] {
		t.Fatalf("docs[0].Data = %q", docs[0].Data)
	}
}

func TestReadFolderRejectsMalformedXML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.xml"), []byte("<Order>"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ReadFolder(dir)
	if err == nil || !strings.Contains(err.Error(), "broken.xml") {
		t.Fatalf("ReadFolder() error = %v, want error naming broken.xml", err)
	}
}

func TestReadFolderTranscodesToUTF8(t *testing.T) {
	dir := t.TempDir()
	latin1 := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><Order><city>M\xfcnchen</city></Order>"
	if err := os.WriteFile(filepath.Join(dir, "order.xml"), []byte(latin1), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	docs, err := ReadFolder(dir)
	if err != nil {
		t.Fatalf("ReadFolder() error = %v", err)
	}
	want := `<?xml version="1.0" encoding="UTF-8"?><Order><city>München</city></Order>`
	if len(docs) != 1 || string(docs[0].Data) != want {
		t.Fatalf("ReadFolder() = %+v, want data %q", docs, want)
	}
}
