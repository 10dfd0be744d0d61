// Package locate resolves an external-composition file reference against
// an ordered search path, per spec.md §4.C (component C, "File locator").
//
// Grounded on original_source/yakut/cmd/orchestrate/_executor.py's
// locate() function: absolute paths are checked for existence directly;
// relative paths are resolved against each search directory in order,
// returning the first that exists.
package locate

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cyphal-tools/orchestrate/internal/orcherr"
)

// PathEnvVar returns the "<TOOL>_PATH" environment variable name that
// supplements --path search directories (spec.md §6; supplemented from
// the original's YAKUT_PATH convention, generalized to the tool's own
// name — see SPEC_FULL.md).
func PathEnvVar(toolName string) string {
	return strings.ToUpper(toolName) + "_PATH"
}

// SearchPath builds the ordered list of search directories: the current
// working directory first, then explicit --path entries, then entries
// from the "<TOOL>_PATH" environment variable (split on the OS path list
// separator). Grounded on the original's purser.paths, which the CLI
// help text documents as searching "the current working directory and
// then through the directories specified in YAKUT_PATH" (see
// SPEC_FULL.md "Supplemented features").
func SearchPath(explicit []string, toolName string) []string {
	out := append([]string{"."}, explicit...)
	if v := os.Getenv(PathEnvVar(toolName)); v != "" {
		out = append(out, filepath.SplitList(v)...)
	}
	return out
}

// Find resolves file against dirs and returns the path found: file itself
// when it is absolute, otherwise the first existing dir/file (which is
// relative when that dir is). Returns a *orcherr.Error of KindFile if it
// cannot be found.
func Find(file string, dirs []string) (string, error) {
	if filepath.IsAbs(file) {
		if exists(file) {
			return file, nil
		}
		return "", orcherr.File(file, os.ErrNotExist)
	}
	for _, dir := range dirs {
		candidate := filepath.Clean(filepath.Join(dir, file))
		if exists(candidate) {
			return candidate, nil
		}
	}
	return "", orcherr.File(file, os.ErrNotExist)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
