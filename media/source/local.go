package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/leeforge/imagepipe/media/processor"
)

// LocalProvider resolves keys against a base directory on the local filesystem
type LocalProvider struct {
	basePath string
}

// NewLocalProvider creates a new local provider
func NewLocalProvider(basePath string) (*LocalProvider, error) {
	if basePath == "" {
		basePath = "."
	}
	// Ensure base directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalProvider{basePath: basePath}, nil
}

// path maps a key to a filesystem path. Absolute keys are used as-is.
func (p *LocalProvider) path(key string) string {
	if filepath.IsAbs(key) {
		return filepath.Clean(key)
	}
	return filepath.Join(p.basePath, key)
}

// Resolve returns a file source for key without touching the filesystem
func (p *LocalProvider) Resolve(ctx context.Context, key string) (processor.Source, error) {
	if key == "" {
		return nil, fmt.Errorf("local provider: empty key")
	}
	return NewFileSource(p.path(key)), nil
}

// Target returns the local path an output for key is written to
func (p *LocalProvider) Target(key string) string {
	return p.path(key)
}

// Upload saves a file to the local filesystem
func (p *LocalProvider) Upload(ctx context.Context, file io.Reader, key string) (string, error) {
	fullPath := p.path(key)

	// Create directory if not exists
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("failed to write file content: %w", err)
	}
	return fullPath, nil
}

// Exists checks if a file exists
func (p *LocalProvider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(p.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (p *LocalProvider) Name() string {
	return SchemeFile
}
