package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var (
	// ErrIngestion is returned when an uploaded image cannot be persisted
	ErrIngestion = errors.New("image ingestion failed")
	// ErrUnsupportedImage is returned when a payload is not a raster image
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// imageExtensions lists the accepted image types with the file extensions
// a stored asset may carry. The first extension is the default.
var imageExtensions = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg", ".jpe"},
	"image/png":  {".png"},
	"image/gif":  {".gif"},
	"image/webp": {".webp"},
	"image/avif": {".avif"},
	"image/bmp":  {".bmp"},
	"image/tiff": {".tiff", ".tif"},
}

// IsSupportedImage reports whether payload sniffs as an accepted image type
func IsSupportedImage(payload []byte) bool {
	_, ok := imageExtensions[detect(payload)]
	return ok
}

// detect returns the sniffed media type without parameters
func detect(payload []byte) string {
	mime := mimetype.Detect(payload).String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return mime
}

// ImageStore persists uploaded product images under a public URL
type ImageStore interface {
	// Save writes payload and returns its public URL. An empty payload is
	// treated as "no image" and returns an empty URL and a nil error.
	Save(ctx context.Context, payload []byte, originalFilename string) (string, error)
	// Remove deletes an asset previously returned by Save.
	Remove(ctx context.Context, url string) error
}

// LocalImageStore writes images to a directory of an afero filesystem
type LocalImageStore struct {
	fs        afero.Fs
	dir       string
	urlPrefix string
}

// NewLocalImageStore creates an image store rooted at dir that produces
// URLs of the form urlPrefix/<name>
func NewLocalImageStore(fs afero.Fs, dir, urlPrefix string) *LocalImageStore {
	return &LocalImageStore{
		fs:        fs,
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}
}

// Fs exposes the backing filesystem for serving the stored assets
func (s *LocalImageStore) Fs() afero.Fs {
	return afero.NewBasePathFs(s.fs, s.dir)
}

func (s *LocalImageStore) Save(ctx context.Context, payload []byte, originalFilename string) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIngestion, err)
	}

	mime := detect(payload)
	exts, ok := imageExtensions[mime]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mime)
	}

	name := uuid.NewString() + extension(exts, originalFilename)

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create upload directory: %v", ErrIngestion, err)
	}

	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, name), payload, 0o644); err != nil {
		return "", fmt.Errorf("%w: failed to write %s: %v", ErrIngestion, name, err)
	}

	return path.Join(s.urlPrefix, name), nil
}

func (s *LocalImageStore) Remove(ctx context.Context, url string) error {
	prefix := s.urlPrefix + "/"
	if !strings.HasPrefix(url, prefix) {
		return fmt.Errorf("url %q is not managed by this store", url)
	}

	name := path.Base(strings.TrimPrefix(url, prefix))
	err := s.fs.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// extension keeps the original extension when it names the sniffed type
func extension(exts []string, originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalFilename)))
	if slices.Contains(exts, ext) {
		return ext
	}
	return exts[0]
}
