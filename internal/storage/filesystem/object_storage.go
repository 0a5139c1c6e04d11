package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/interfaces"
)

// ObjectStorage stores binary payloads on the local filesystem under
// a root directory, optionally segmented into YYYY/MM/DD subdirectories.
type ObjectStorage struct {
	root          string
	createSubdirs bool
	nameStrategy  string
	logger        arbor.ILogger
}

var _ interfaces.IObjectStorage = (*ObjectStorage)(nil)

// NewObjectStorage creates a filesystem object store rooted at dir.
// nameStrategy is one of "timestamp", "uuid" or "original".
func NewObjectStorage(config *common.FilesystemConfig, dir string, logger arbor.ILogger) (*ObjectStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	strategy := config.NameStrategy
	if strategy == "" {
		strategy = "timestamp"
	}

	return &ObjectStorage{
		root:          dir,
		createSubdirs: config.CreateSubdirs,
		nameStrategy:  strategy,
		logger:        logger,
	}, nil
}

func (s *ObjectStorage) Save(ctx context.Context, reader io.Reader, opts interfaces.SaveOptions) (*interfaces.StoredObject, error) {
	now := time.Now()

	relDir := ""
	if s.createSubdirs {
		relDir = filepath.Join(now.Format("2006"), now.Format("01"), now.Format("02"))
	}

	name := s.objectName(opts.OriginalName, now)
	relPath := filepath.Join(relDir, name)
	absPath := filepath.Join(s.root, relPath)

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create object directory: %w", err)
	}

	file, err := os.Create(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create object file: %w", err)
	}

	written, err := io.Copy(file, reader)
	closeErr := file.Close()
	if err != nil {
		_ = os.Remove(absPath)
		return nil, fmt.Errorf("failed to write object: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(absPath)
		return nil, fmt.Errorf("failed to close object file: %w", closeErr)
	}

	s.logger.Debug().Str("path", relPath).Int64("bytes", written).Msg("Stored object")

	return &interfaces.StoredObject{
		Path:      relPath,
		SizeBytes: written,
		StoredAt:  now,
	}, nil
}

// objectName builds the filename according to the configured strategy.
// Timestamped names use {stem}_{epochMillis}.{ext}.
func (s *ObjectStorage) objectName(original string, now time.Time) string {
	ext := filepath.Ext(original)
	stem := strings.TrimSuffix(filepath.Base(original), ext)
	if stem == "" || stem == "." {
		stem = "object"
	}
	stem = sanitizeName(stem)

	switch s.nameStrategy {
	case "uuid":
		return uuid.New().String() + ext
	case "original":
		return stem + ext
	default: // timestamp
		return fmt.Sprintf("%s_%d%s", stem, now.UnixMilli(), ext)
	}
}

func (s *ObjectStorage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	absPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return file, nil
}

func (s *ObjectStorage) Exists(ctx context.Context, path string) (bool, error) {
	absPath, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

func (s *ObjectStorage) Delete(ctx context.Context, path string) error {
	absPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(absPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *ObjectStorage) Health(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("storage root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root is not a directory: %s", s.root)
	}
	return nil
}

// AbsolutePath returns the on-disk location of a stored object. Local
// consumers (rasterizer, parser) need a real file path.
func (s *ObjectStorage) AbsolutePath(path string) (string, error) {
	return s.resolve(path)
}

// resolve joins the relative path under root and rejects traversal
func (s *ObjectStorage) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("object path is required")
	}
	absPath := filepath.Join(s.root, path)
	cleanRoot := filepath.Clean(s.root) + string(os.PathSeparator)
	if !strings.HasPrefix(filepath.Clean(absPath)+string(os.PathSeparator), cleanRoot) {
		return "", fmt.Errorf("invalid object path: %s", path)
	}
	return absPath, nil
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
