package output

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FilePrefix marks generated images. Only files carrying it are ever
// served back; everything else in the output directory is off limits.
const FilePrefix = "remixed_image_"

const tempPrefix = "temp_"

// ErrBadName is returned for filenames outside the generated namespace.
var ErrBadName = errors.New("invalid output filename")

type Writer struct {
	dir string
}

// New creates the output directory if needed and returns a writer for it.
func New(dir string) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "output"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

func (w *Writer) Dir() string {
	return w.dir
}

type Image struct {
	Data     []byte
	MimeType string
}

type SavedFile struct {
	Name string
	Path string
}

// SaveAll writes every generated image under a shared Unix timestamp with
// a zero-based index, so one call can produce several variants without
// colliding.
func (w *Writer) SaveAll(images []Image) ([]SavedFile, error) {
	if len(images) == 0 {
		return nil, errors.New("no images to save")
	}

	ts := time.Now().Unix()
	saved := make([]SavedFile, 0, len(images))
	for i, img := range images {
		name := fmt.Sprintf("%s%d_%d%s", FilePrefix, ts, i, extForMime(img.MimeType))
		path := filepath.Join(w.dir, name)
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			return saved, fmt.Errorf("save %s: %w", name, err)
		}
		saved = append(saved, SavedFile{Name: name, Path: path})
	}
	return saved, nil
}

// Path validates a requested filename and returns the full path of the
// generated file. Directory components are stripped first; names without
// the generated prefix yield ErrBadName, missing files fs.ErrNotExist.
func (w *Writer) Path(filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if !strings.HasPrefix(name, FilePrefix) {
		return "", fmt.Errorf("%w: %q", ErrBadName, filename)
	}

	path := filepath.Join(w.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("output %s: %w", name, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("output %s: %w", name, fs.ErrNotExist)
	}
	return path, nil
}

// TempRoomFile stores an uploaded room photo next to the generated
// images and returns its path plus a cleanup func. The random name keeps
// concurrent uploads apart.
func (w *Writer) TempRoomFile(data []byte) (string, func(), error) {
	return w.tempFile(fmt.Sprintf("%sroom_%s.jpg", tempPrefix, uuid.NewString()), data)
}

// TempInputFile stores a downloaded source image for the duration of one
// generation call.
func (w *Writer) TempInputFile(data []byte, mimeType string) (string, func(), error) {
	name := fmt.Sprintf("%sinput_%s%s", tempPrefix, uuid.NewString(), extForMime(mimeType))
	return w.tempFile(name, data)
}

func (w *Writer) tempFile(name string, data []byte) (string, func(), error) {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(path) }
	return path, cleanup, nil
}

// SweepTemp removes temp files older than maxAge. Crashed requests leave
// their temp files behind; a periodic sweep is the only cleanup they get.
func (w *Writer) SweepTemp(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("sweep temp: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(w.dir, e.Name())) == nil {
			removed++
		}
	}
	return removed, nil
}

func extForMime(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ".png"
}
