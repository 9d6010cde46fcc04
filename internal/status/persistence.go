// Package status provides import status tracking and persistence.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// StatusFileName is the name of the status file
	StatusFileName = "import-status.json"
)

// Persistence defines the interface for import status persistence
type Persistence interface {
	// SaveStatus saves the import status to persistent storage
	SaveStatus(ctx context.Context, status *ImportStatus) error

	// LoadStatus loads the import status from persistent storage.
	// Returns an empty ImportStatus if no status has been saved yet.
	LoadStatus(ctx context.Context) (*ImportStatus, error)
}

// filePersistence implements Persistence using the local filesystem
type filePersistence struct {
	basePath string
}

// NewFilePersistence creates a file-based status persistence.
// basePath is the directory the status file is stored in.
func NewFilePersistence(basePath string) Persistence {
	return &filePersistence{
		basePath: basePath,
	}
}

// SaveStatus writes the status file atomically: a temporary file is written
// first and then renamed over the previous one, so readers never observe a
// partial write.
func (f *filePersistence) SaveStatus(_ context.Context, status *ImportStatus) error {
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	filePath := filepath.Join(f.basePath, StatusFileName)

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data: %w", err)
	}

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file: %w", err)
	}

	return nil
}

// LoadStatus reads the status file, returning an empty status when none
// exists yet.
func (f *filePersistence) LoadStatus(_ context.Context) (*ImportStatus, error) {
	filePath := filepath.Join(f.basePath, StatusFileName)

	// #nosec G304 -- filePath is constructed from the configured base path
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &ImportStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var status ImportStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data: %w", err)
	}

	return &status, nil
}
