// Package pathutil implements the three-tier lookup used for every path an
// operator can pass: campaign files, asset files and directories.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathResolutionError reports an input that matched none of its candidates.
type PathResolutionError struct {
	Input string
	Tried []string
}

func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("file not found: %s (tried: %s)", e.Input, strings.Join(e.Tried, ", "))
}

// IsBareName reports whether input is a plain filename with no directory part.
func IsBareName(input string) bool {
	return input != "" && !strings.ContainsAny(input, `/\`) && filepath.Base(input) == input
}

// Candidates lists the locations Resolve tries, in order.
//
//   - an absolute path is its own only candidate
//   - a bare filename is looked up only inside defaultDir
//   - any other relative path is tried against the working directory first,
//     then against defaultDir
func Candidates(input, defaultDir string) []string {
	switch {
	case input == "":
		return nil
	case filepath.IsAbs(input):
		return []string{input}
	case IsBareName(input):
		return []string{filepath.Join(defaultDir, input)}
	default:
		return []string{filepath.Clean(input), filepath.Join(defaultDir, input)}
	}
}

// Resolve returns the first candidate that exists on disk.
func Resolve(input, defaultDir string) (string, error) {
	tried := Candidates(input, defaultDir)
	for _, p := range tried {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", &PathResolutionError{Input: input, Tried: tried}
}

// ResolveDir is Resolve restricted to directories.
func ResolveDir(input, defaultDir string) (string, error) {
	tried := Candidates(input, defaultDir)
	for _, p := range tried {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, nil
		}
	}
	return "", &PathResolutionError{Input: input, Tried: tried}
}
