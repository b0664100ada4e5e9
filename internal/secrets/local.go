package secrets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/vyrodovalexey/avaguard/internal/observability"
)

// FileProvider reads the key from a local file, such as a mounted secret.
// Surrounding whitespace is ignored.
type FileProvider struct {
	path   string
	logger observability.Logger
}

// NewFileProvider creates a provider for path.
func NewFileProvider(path string, logger observability.Logger) (*FileProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: key file path is required", ErrProviderNotConfigured)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &FileProvider{path: path, logger: logger}, nil
}

// Type returns the provider type
func (p *FileProvider) Type() ProviderType {
	return ProviderTypeFile
}

// Load implements Provider.
func (p *FileProvider) Load(_ context.Context) ([]byte, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, p.path)
		}
		return nil, fmt.Errorf("failed to access key file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidKey, p.path)
	}
	if info.Mode().Perm()&0o077 != 0 {
		p.logger.Warn("key file is readable by group or others",
			observability.String("path", p.path),
			observability.String("mode", info.Mode().Perm().String()),
		)
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	p.logger.Debug("loaded key from file",
		observability.String("path", p.path),
	)
	return bytes.TrimSpace(data), nil
}

// Close implements Provider.
func (p *FileProvider) Close() error {
	return nil
}
