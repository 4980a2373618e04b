package service

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prepdesk/examsim-backend/internal/config"
)

type memFile struct{ *bytes.Reader }

func (memFile) Close() error { return nil }

func uploadInput(contentType string, size int) (multipart.File, *multipart.FileHeader) {
	header := &multipart.FileHeader{
		Filename: "upload.bin",
		Size:     int64(size),
		Header:   textproto.MIMEHeader{},
	}
	header.Header.Set("Content-Type", contentType)
	return memFile{bytes.NewReader(bytes.Repeat([]byte{0x42}, size))}, header
}

func newAssetService(t *testing.T) *AssetService {
	t.Helper()
	return NewAssetService(&config.Config{
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1024,
	})
}

func TestSaveUploadDocument(t *testing.T) {
	svc := newAssetService(t)

	file, header := uploadInput("application/pdf", 100)
	relPath, kind, err := svc.SaveUpload(file, header)
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if kind != AssetKindDocument {
		t.Errorf("kind = %v", kind)
	}
	if !strings.HasPrefix(relPath, "/uploads/") || !strings.HasSuffix(relPath, ".pdf") {
		t.Errorf("relPath = %q", relPath)
	}
	if !svc.Exists(relPath) {
		t.Error("saved asset should exist")
	}
}

func TestSaveUploadAudio(t *testing.T) {
	svc := newAssetService(t)

	file, header := uploadInput("audio/mpeg", 100)
	relPath, kind, err := svc.SaveUpload(file, header)
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if kind != AssetKindAudio {
		t.Errorf("kind = %v", kind)
	}
	if !strings.HasSuffix(relPath, ".mp3") {
		t.Errorf("relPath = %q", relPath)
	}
}

func TestSaveUploadRejectsUnsupportedType(t *testing.T) {
	svc := newAssetService(t)

	file, header := uploadInput("image/png", 100)
	if _, _, err := svc.SaveUpload(file, header); !errors.Is(err, ErrUnsupportedFileType) {
		t.Errorf("err = %v, want ErrUnsupportedFileType", err)
	}
}

func TestSaveUploadRejectsOversize(t *testing.T) {
	svc := newAssetService(t)

	file, header := uploadInput("application/pdf", 100)
	header.Size = 10 * 1024
	if _, _, err := svc.SaveUpload(file, header); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("err = %v, want ErrFileTooLarge", err)
	}
}

func TestExistsRejectsTraversal(t *testing.T) {
	svc := newAssetService(t)

	// Plant a file outside the upload dir that a traversal would reach.
	outside := filepath.Join(filepath.Dir(svc.cfg.UploadDir), "secret.pdf")
	if err := os.WriteFile(outside, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{
		"/uploads/../secret.pdf",
		"/etc/passwd",
		"/uploads/",
		"",
	} {
		if svc.Exists(p) {
			t.Errorf("Exists(%q) = true", p)
		}
	}
}
