package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputManager handles output file organization and path management
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// RunOutputDir returns the directory holding a run's artifacts.
func (om *OutputManager) RunOutputDir(runID string) string {
	return filepath.Join(om.BaseOutputDir, filepath.Base(runID))
}

// CreateRunOutputDir creates the per-run directory for a run's outputs
func (om *OutputManager) CreateRunOutputDir(runID string) (string, error) {
	runDir := om.RunOutputDir(runID)

	err := os.MkdirAll(runDir, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create run output directory: %w", err)
	}

	return runDir, nil
}

// GetOutputFilePath returns the path of fileName inside a run's directory.
// Path separators in fileName are discarded.
func (om *OutputManager) GetOutputFilePath(runID, fileName string) string {
	return filepath.Join(om.RunOutputDir(runID), filepath.Base(fileName))
}

// GetDownloadURL generates a download URL for a file
func (om *OutputManager) GetDownloadURL(runID, fileName string) string {
	cleanFileName := filepath.Base(fileName)
	return fmt.Sprintf("/api/v1/download/%s/%s", runID, cleanFileName)
}

// GetFileType determines the file type based on extension
func (om *OutputManager) GetFileType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".png":
		return "png"
	default:
		return "unknown"
	}
}

// RemoveRunOutputs deletes a run's directory and everything in it.
func (om *OutputManager) RemoveRunOutputs(runID string) error {
	return os.RemoveAll(om.RunOutputDir(runID))
}
