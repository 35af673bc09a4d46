// Package dotdir resolves the .corpus/ directory that holds config.toml, the
// default SQLite database, the embedding cache and the last run record.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the corpus directory.
	dirName = ".corpus"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to a .corpus/ directory.
// Order of precedence is as follows:
//  1. Provided override, created if missing
//  2. Local ./.corpus/ dir
//  3. Home ~/.corpus/ dir
//
// An empty path without error means no directory was found.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating corpus directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if isDir(filepath.Join(cwd, dirName)) {
		return filepath.Join(cwd, dirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	if isDir(filepath.Join(home, dirName)) {
		return filepath.Join(home, dirName), nil
	}
	return "", nil
}

// Init creates ./.corpus/ under dir (the working directory when empty) and
// returns its absolute path.
func (m *Manager) Init(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = cwd
	}
	target := filepath.Join(dir, dirName)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("creating corpus directory %s: %w", target, err)
	}
	return filepath.Abs(target)
}

// File returns the path of name inside the resolved directory, or "" when no
// directory is available.
func (m *Manager) File(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
