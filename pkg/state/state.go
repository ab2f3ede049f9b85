package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths is the canonical runtime folder layout under the data path.
type Paths struct {
	Store     string
	State     string
	Retention string
	Tmp       string
}

// PathsVar is populated by EnsureStateDirs and read by the retention
// runner and telemetry writer.
var PathsVar Paths

// EnsureStateDirs ensures the canonical runtime folder layout exists under
// the provided data path. It verifies paths are not symlinks, have
// restrictive permissions and are writable by the process.
func EnsureStateDirs(dbPath string) error {
	storePath := filepath.Join(dbPath, "store")
	statePath := filepath.Join(dbPath, "state")
	retentionPath := filepath.Join(statePath, "retention")
	tmpPath := filepath.Join(statePath, "tmp")

	for _, p := range []string{storePath, retentionPath, tmpPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return fmt.Errorf("cannot create parent for %s: %w", p, err)
		}
		if fi, err := os.Lstat(p); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("path is a symlink: %s", p)
			}
			if !fi.IsDir() {
				return fmt.Errorf("path exists and is not a directory: %s", p)
			}
			if fi.Mode().Perm()&0o022 != 0 {
				return fmt.Errorf("path has permissive mode (group/other write): %s", p)
			}
		} else {
			if err := os.MkdirAll(p, 0o700); err != nil {
				return fmt.Errorf("cannot create %s: %w", p, err)
			}
		}
		// verify writability
		probe := filepath.Join(p, ".probe")
		if err := os.WriteFile(probe, nil, 0o600); err != nil {
			return fmt.Errorf("path not writable: %s: %w", p, err)
		}
		_ = os.Remove(probe)
	}

	PathsVar = Paths{
		Store:     storePath,
		State:     statePath,
		Retention: retentionPath,
		Tmp:       tmpPath,
	}
	return nil
}
