package service

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prepdesk/examsim-backend/internal/config"
)

// Sentinel errors for asset uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// AssetKind classifies what an uploaded asset can serve as.
type AssetKind string

const (
	AssetKindDocument AssetKind = "document"
	AssetKindAudio    AssetKind = "audio"
)

// Allowed MIME types for exam materials. Documents are the reading passages,
// question booklets and writing prompts; audio backs the listening module.
var allowedMIMETypes = map[string]struct {
	ext  string
	kind AssetKind
}{
	"application/pdf": {".pdf", AssetKindDocument},
	"audio/mpeg":      {".mp3", AssetKindAudio},
	"audio/mp3":       {".mp3", AssetKindAudio},
	"audio/wav":       {".wav", AssetKindAudio},
	"audio/x-wav":     {".wav", AssetKindAudio},
	"audio/mp4":       {".m4a", AssetKindAudio},
	"audio/ogg":       {".ogg", AssetKindAudio},
}

// AssetService handles exam material uploads and lookups.
type AssetService struct {
	cfg *config.Config
}

// NewAssetService creates a new AssetService.
func NewAssetService(cfg *config.Config) *AssetService {
	return &AssetService{cfg: cfg}
}

// SaveUpload saves an uploaded file to local storage with a UUID filename.
// Returns the relative URL path to the saved file and its classified kind.
func (s *AssetService) SaveUpload(file multipart.File, header *multipart.FileHeader) (string, AssetKind, error) {
	contentType := header.Header.Get("Content-Type")
	meta, ok := allowedMIMETypes[contentType]
	if !ok {
		return "", "", fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedFileType, contentType, strings.Join(allowedTypes(), ", "))
	}

	if header.Size > s.cfg.MaxUploadBytes {
		return "", "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, header.Size, s.cfg.MaxUploadBytes)
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create upload dir: %w", err)
	}

	filename := uuid.New().String() + meta.ext
	destPath := filepath.Join(s.cfg.UploadDir, filename)

	dst, err := os.Create(destPath)
	if err != nil {
		return "", "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", "", fmt.Errorf("write file: %w", err)
	}

	return "/uploads/" + filename, meta.kind, nil
}

// Exists reports whether a previously uploaded asset path resolves to a real
// file under the upload directory. Paths outside it never resolve.
func (s *AssetService) Exists(relPath string) bool {
	name, ok := strings.CutPrefix(relPath, "/uploads/")
	if !ok {
		return false
	}
	// Reject traversal attempts; stored filenames are flat UUIDs.
	if name == "" || name != filepath.Base(name) {
		return false
	}
	info, err := os.Stat(filepath.Join(s.cfg.UploadDir, name))
	return err == nil && !info.IsDir()
}

func allowedTypes() []string {
	types := make([]string, 0, len(allowedMIMETypes))
	for t := range allowedMIMETypes {
		types = append(types, t)
	}
	return types
}
