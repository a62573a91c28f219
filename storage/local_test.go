package storage

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

// makeFileHeader builds a real multipart.FileHeader the way fiber hands
// them to the upload path.
func makeFileHeader(t *testing.T, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="receipt"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(int64(len(content)) + 1024)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })

	files := form.File["receipt"]
	if len(files) != 1 {
		t.Fatalf("form files = %d, want 1", len(files))
	}
	return files[0]
}

func TestSaveReceiptStoresFile(t *testing.T) {
	dir := t.TempDir()
	svc := NewStorageServiceAt(dir, 1<<20)

	header := makeFileHeader(t, "Receipt Photo.PNG", "image/png", []byte("fake png bytes"))

	stored, err := svc.SaveReceipt(header, "receipts", AllowedImageTypes)
	if err != nil {
		t.Fatalf("SaveReceipt: %v", err)
	}

	// generated name, never the client's
	if ok, _ := regexp.MatchString(`^[0-9a-f-]{36}\.png$`, stored.Filename); !ok {
		t.Errorf("filename %q is not a generated uuid name", stored.Filename)
	}
	if stored.ContentType != "image/png" {
		t.Errorf("content type = %q", stored.ContentType)
	}

	data, err := os.ReadFile(stored.Path)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if !bytes.Equal(data, []byte("fake png bytes")) {
		t.Error("stored bytes differ from upload")
	}
	if filepath.Dir(stored.Path) != filepath.Join(dir, "receipts") {
		t.Errorf("stored outside receipts folder: %s", stored.Path)
	}
}

func TestSaveReceiptRejectsOversizeBeforeWriting(t *testing.T) {
	dir := t.TempDir()
	svc := NewStorageServiceAt(dir, 16)

	header := makeFileHeader(t, "big.png", "image/png", bytes.Repeat([]byte("x"), 64))

	_, err := svc.SaveReceipt(header, "receipts", AllowedImageTypes)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
	assertEmptyDir(t, dir)
}

func TestSaveReceiptRejectsDisallowedType(t *testing.T) {
	dir := t.TempDir()
	svc := NewStorageServiceAt(dir, 1<<20)

	header := makeFileHeader(t, "report.pdf", "application/pdf", []byte("%PDF-1.4"))

	_, err := svc.SaveReceipt(header, "receipts", AllowedImageTypes)
	if !errors.Is(err, ErrFileType) {
		t.Fatalf("err = %v, want ErrFileType", err)
	}
	assertEmptyDir(t, dir)
}

func TestGIFOnlyAllowedWithExtendedWhitelist(t *testing.T) {
	svc := NewStorageServiceAt(t.TempDir(), 1<<20)

	gif := makeFileHeader(t, "anim.gif", "image/gif", []byte("GIF89a"))
	if _, err := svc.SaveReceipt(gif, "receipts", AllowedImageTypes); !errors.Is(err, ErrFileType) {
		t.Errorf("default whitelist accepted gif: %v", err)
	}

	gif = makeFileHeader(t, "anim.gif", "image/gif", []byte("GIF89a"))
	if _, err := svc.SaveReceipt(gif, "course_payments", AllowedImageTypesWithGIF); err != nil {
		t.Errorf("extended whitelist rejected gif: %v", err)
	}
}

func TestDeleteTolerantOfMissingFile(t *testing.T) {
	svc := NewStorageServiceAt(t.TempDir(), 1<<20)

	if err := svc.Delete(""); err != nil {
		t.Errorf("Delete empty path: %v", err)
	}
	if err := svc.Delete(filepath.Join(t.TempDir(), "gone.png")); err != nil {
		t.Errorf("Delete missing file: %v", err)
	}
}

func TestResolveReceiptRefusesPathEscape(t *testing.T) {
	dir := t.TempDir()
	svc := NewStorageServiceAt(dir, 1<<20)

	header := makeFileHeader(t, "ok.png", "image/png", []byte("png"))
	stored, err := svc.SaveReceipt(header, "receipts", AllowedImageTypes)
	if err != nil {
		t.Fatalf("SaveReceipt: %v", err)
	}

	path, err := svc.ResolveReceipt("receipts", stored.Filename)
	if err != nil {
		t.Fatalf("ResolveReceipt: %v", err)
	}
	if path != stored.Path {
		t.Errorf("resolved %q, want %q", path, stored.Path)
	}

	if _, err := svc.ResolveReceipt("receipts", "../../etc/passwd"); err == nil {
		t.Error("traversal name resolved")
	}
	if _, err := svc.ResolveReceipt("receipts", "no-such-file.png"); err == nil {
		t.Error("missing file resolved")
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"a.webp", "image/webp"},
		{"a.JPG", "image/jpeg"},
		{"a.jpeg", "image/jpeg"},
		{"a.png", "image/png"},
		{"a.gif", "image/gif"},
		{"a.bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentTypeFor(tt.filename); got != tt.want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("rejected upload left %d entries on disk", len(entries))
	}
}
