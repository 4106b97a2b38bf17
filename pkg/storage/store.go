package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	errs "imgharvest/pkg/errors"
)

// DefaultExtension is used when neither the content type nor the URL names a format
const DefaultExtension = ".img"

// Store persists downloaded images. Filenames carry a run-scoped sequence
// number and a content hash prefix, so two saves in one run never collide.
type Store struct {
	mu    sync.Mutex
	seq   int
	saved int
	bytes int64
}

// NewStore creates a store with its sequence counter at zero
func NewStore() *Store {
	return &Store{}
}

// Save writes r into dir and returns the final path. dir is created if needed.
func (s *Store) Save(r io.Reader, dir, ext string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errs.Storage("create directory", dir, err)
	}

	seq := s.next()

	tmp, err := os.CreateTemp(dir, ".imgharvest-*.part")
	if err != nil {
		return "", errs.Storage("create temporary file", dir, err)
	}
	tmpName := tmp.Name()

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, hash), r)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()

	if err != nil {
		os.Remove(tmpName)
		return "", errs.Storage("write image", tmpName, err)
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return "", errs.Storage("close image", tmpName, closeErr)
	}

	if ext == "" {
		ext = DefaultExtension
	}
	filename := filepath.Join(dir, fmt.Sprintf("%04d_%s%s", seq, hex.EncodeToString(hash.Sum(nil))[:12], ext))

	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		return "", errs.Storage("rename image", filename, err)
	}

	s.mu.Lock()
	s.saved++
	s.bytes += n
	s.mu.Unlock()

	return filename, nil
}

func (s *Store) next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Count returns the number of images saved so far
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// Bytes returns the total size of the images saved so far
func (s *Store) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

var imageExtensions = map[string]string{
	"image/jpeg":               ".jpg",
	"image/pjpeg":              ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/avif":               ".avif",
	"image/svg+xml":            ".svg",
	"image/bmp":                ".bmp",
	"image/tiff":               ".tiff",
	"image/heic":               ".heic",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
}

// ExtensionFor picks a file extension from the response content type,
// falling back to the URL path and then DefaultExtension.
func ExtensionFor(rawURL, contentType string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = strings.ToLower(mediaType)
		if ext, ok := imageExtensions[mediaType]; ok {
			return ext
		}
		if strings.HasPrefix(mediaType, "image/") {
			if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
				return exts[0]
			}
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(path.Ext(u.Path))
		if validExtension(ext) {
			return ext
		}
	}

	return DefaultExtension
}

func validExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
