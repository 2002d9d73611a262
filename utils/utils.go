package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const ROOT_MARKER = "baselayer.yaml"

// GetRootPath walks up from the working directory looking for the project
// config file. It falls back to the working directory itself.
func GetRootPath() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	start := dir

	for {
		if _, err := os.Stat(filepath.Join(dir, ROOT_MARKER)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	for _, path := range []string{"/app", "./", "../"} {
		if _, err := os.Stat(filepath.Join(path, ROOT_MARKER)); err == nil {
			absPath, err := filepath.Abs(path)
			if err != nil {
				return "", err
			}
			return absPath, nil
		}
	}

	return start, nil
}

// ResolvePath makes a relative path absolute against the project root.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}
	path = filepath.Clean(path)
	if filepath.IsAbs(path) {
		return path, nil
	}

	root, err := GetRootPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, path), nil
}

// MkdirIfNotExists creates the directory for path. A path with an extension
// is treated as a file and its parent directory is created instead.
func MkdirIfNotExists(path string) error {
	resolved, err := ResolvePath(path)
	if err != nil {
		return err
	}

	if filepath.Ext(resolved) != "" {
		resolved = filepath.Dir(resolved)
	}

	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		return os.MkdirAll(resolved, 0755)
	}
	return nil
}
