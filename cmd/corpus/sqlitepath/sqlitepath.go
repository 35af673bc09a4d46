// Package sqlitepath resolves the SQLite database used when no explicit path
// is configured.
package sqlitepath

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/corpus/pkg/dotdir"
)

// DefaultName is the database file name inside the .corpus/ directory.
const DefaultName = "corpus.db"

// ResolveSQLitePath returns override when set, then CORPUS_SQLITE, then the
// first existing candidate, then .corpus/corpus.db under the resolved config
// directory, and finally corpus.db in the working directory.
func ResolveSQLitePath(override, configDir string) string {
	if override != "" {
		return override
	}

	if envPath := strings.TrimSpace(os.Getenv("CORPUS_SQLITE")); envPath != "" {
		return envPath
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	if path, err := dotdir.NewManager().File(configDir, DefaultName); err == nil && path != "" {
		return path
	}

	return DefaultName
}

func sqliteCandidates() []string {
	candidates := []string{
		DefaultName,
		filepath.Join(".corpus", DefaultName),
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "corpus", DefaultName),
		}, candidates...)
	}

	return candidates
}
