package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"infinityschool_go/config"

	"github.com/google/uuid"
)

// Validation failures surfaced to the service layer.
var (
	ErrFileType     = errors.New("file type not allowed")
	ErrFileTooLarge = errors.New("file exceeds size limit")
)

// AllowedImageTypes is the default MIME whitelist for receipt uploads.
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// AllowedImageTypesWithGIF additionally accepts GIF (course enrollment flow).
var AllowedImageTypesWithGIF = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// StoredFile describes a persisted upload.
type StoredFile struct {
	Filename    string
	Path        string
	Size        string
	ContentType string
}

// StorageService persists uploads under a flat base directory, one
// subdirectory per checkout flow. Filenames are generated, never derived
// from user input.
type StorageService struct {
	baseDir string
	maxSize int64
}

// NewStorageService creates a storage service rooted at the configured
// upload directory.
func NewStorageService() *StorageService {
	return &StorageService{
		baseDir: config.AppConfig.UploadDir,
		maxSize: config.AppConfig.MaxFileSize,
	}
}

// NewStorageServiceAt is the explicit-root constructor used by tests.
func NewStorageServiceAt(baseDir string, maxSize int64) *StorageService {
	return &StorageService{baseDir: baseDir, maxSize: maxSize}
}

// SaveReceipt validates and persists an uploaded receipt image. Validation
// runs before anything touches disk, so a rejected upload leaves no trace.
func (s *StorageService) SaveReceipt(file *multipart.FileHeader, folder string, allowedTypes []string) (*StoredFile, error) {
	if file.Size > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, file.Size, s.maxSize)
	}

	contentType := file.Header.Get("Content-Type")
	if !typeAllowed(contentType, allowedTypes) {
		return nil, fmt.Errorf("%w: %s", ErrFileType, contentType)
	}

	dir := filepath.Join(s.baseDir, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %v", err)
	}

	filename := uuid.New().String() + strings.ToLower(filepath.Ext(file.Filename))
	dst := filepath.Join(dir, filename)

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %v", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %v", err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return nil, fmt.Errorf("failed to write file: %v", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("failed to write file: %v", err)
	}

	// Best-effort normalization; the original bytes are kept when the
	// encoder is not installed.
	optimizeImage(dst)

	info, err := os.Stat(dst)
	size := file.Size
	if err == nil {
		size = info.Size()
	}

	return &StoredFile{
		Filename:    filename,
		Path:        dst,
		Size:        fmt.Sprintf("%.2f KB", float64(size)/1024),
		ContentType: contentType,
	}, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *StorageService) Delete(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ResolveReceipt returns the on-disk path for a stored filename, refusing
// names that escape the folder.
func (s *StorageService) ResolveReceipt(folder, filename string) (string, error) {
	if filename != filepath.Base(filename) {
		return "", fmt.Errorf("%w: %s", ErrFileType, filename)
	}
	path := filepath.Join(s.baseDir, folder, filename)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func typeAllowed(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.EqualFold(contentType, t) {
			return true
		}
	}
	return false
}

// optimizeImage re-encodes an image in place with bounded dimensions via the
// external cwebp tool when available (avoids cgo/libwebp linking). The file
// is left untouched on any failure.
func optimizeImage(path string) {
	cwebpPath, err := exec.LookPath("cwebp")
	if err != nil {
		return
	}

	tmp, err := os.CreateTemp("", "receipt-opt-*.webp")
	if err != nil {
		return
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	cmd := exec.Command(cwebpPath, "-q", "80", "-resize", "1200", "0", path, "-o", tmp.Name())
	if err := cmd.Run(); err != nil {
		return
	}

	optimized, err := os.ReadFile(tmp.Name())
	if err != nil || len(optimized) == 0 {
		return
	}
	_ = os.WriteFile(path, optimized, 0644)
}

// ContentTypeFor returns the MIME type for a stored filename.
func ContentTypeFor(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "webp":
		return "image/webp"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
