package campaign

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jgueth/campaign-automation/internal/logging"
	"github.com/jgueth/campaign-automation/internal/pathutil"
)

// Result is the outcome of validating one campaign document.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func valid() Result { return Result{Valid: true, Errors: []string{}} }

func invalid(errs ...string) Result {
	return Result{Valid: false, Errors: append([]string(nil), errs...)}
}

// SchemaError wraps an invalid Result for callers that need an error value.
type SchemaError struct {
	Path   string
	Errors []string
}

func (e *SchemaError) Error() string {
	name := e.Path
	if name == "" {
		name = "campaign"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s is invalid: %s", name, e.Errors[0])
	}
	return fmt.Sprintf("%s is invalid (%d errors): %s", name, len(e.Errors), strings.Join(e.Errors, "; "))
}

// IsYAMLFile reports whether path has a campaign file extension.
func IsYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func parseRoot(data []byte) (*yaml.Node, Result) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, invalid(fmt.Sprintf("Invalid YAML format: %v", err))
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, invalid("Root element must be a dictionary")
	}
	root := deref(doc.Content[0])
	if !isMap(root) {
		return nil, invalid("Root element must be a dictionary")
	}
	return root, valid()
}

// Validate checks a campaign document and collects every violation.
func Validate(data []byte) Result {
	root, res := parseRoot(data)
	if !res.Valid {
		return res
	}
	if errs := checkDocument(root); len(errs) > 0 {
		return invalid(errs...)
	}
	return valid()
}

// Decode validates data and, when it is structurally valid, parses it into a
// Campaign. The returned Result is authoritative; the Campaign is nil unless
// Result.Valid.
func Decode(data []byte) (*Campaign, Result) {
	res := Validate(data)
	if !res.Valid {
		return nil, res
	}

	var c Campaign
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&c); err != nil {
		return nil, invalid(fmt.Sprintf("Invalid campaign structure: %v", err))
	}
	return &c, res
}

// readCampaign resolves input against campaignsDir and reads it.
func readCampaign(input, campaignsDir string) (string, []byte, Result) {
	path, err := pathutil.Resolve(input, campaignsDir)
	if err != nil {
		var perr *pathutil.PathResolutionError
		if errors.As(err, &perr) {
			return "", nil, invalid(fmt.Sprintf("File not found: %s (tried: %s)", input, strings.Join(perr.Tried, ", ")))
		}
		return "", nil, invalid(fmt.Sprintf("File not found: %s", input))
	}
	if !IsYAMLFile(path) {
		return path, nil, invalid(fmt.Sprintf("Unsupported file type: %s (expected .yaml or .yml)", path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return path, nil, invalid(fmt.Sprintf("Error reading file: %v", err))
	}
	return path, data, valid()
}

// ValidateFile resolves input with the three-tier lookup and validates it.
func ValidateFile(input, campaignsDir string) Result {
	_, data, res := readCampaign(input, campaignsDir)
	if !res.Valid {
		return res
	}
	return Validate(data)
}

// Load resolves, validates and decodes a campaign file. It returns the
// resolved path alongside the campaign. An invalid document yields a
// *SchemaError; an unresolvable path yields a *pathutil.PathResolutionError.
func Load(input, campaignsDir string) (*Campaign, string, error) {
	path, err := pathutil.Resolve(input, campaignsDir)
	if err != nil {
		return nil, "", err
	}
	_, data, res := readCampaign(path, campaignsDir)
	if !res.Valid {
		return nil, path, &SchemaError{Path: path, Errors: res.Errors}
	}
	c, res := Decode(data)
	if !res.Valid {
		return nil, path, &SchemaError{Path: path, Errors: res.Errors}
	}
	return c, path, nil
}

// ListFiles returns the campaign files directly inside dir, sorted.
func ListFiles(dir string) ([]string, error) {
	resolved, err := pathutil.ResolveDir(dir, ".")
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", resolved, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsYAMLFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(resolved, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ValidateAll validates every campaign file in dir, continuing past failures.
// Campaign ids must be unique across the batch; a repeated id invalidates the
// later file.
func ValidateAll(dir string) (map[string]Result, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}

	results := make(map[string]Result, len(files))
	owners := make(map[string]string)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			results[f] = invalid(fmt.Sprintf("Error reading file: %v", err))
			continue
		}
		c, res := Decode(data)
		if res.Valid {
			if owner, dup := owners[c.ID()]; dup {
				res = invalid(fmt.Sprintf("Duplicate campaign id '%s' (already used by %s)", c.ID(), filepath.Base(owner)))
			} else {
				owners[c.ID()] = f
			}
		}
		results[f] = res
		logging.Get(logging.CategoryValidate).Debug("%s valid=%t errors=%d", f, res.Valid, len(res.Errors))
	}
	return results, nil
}

// SortedPaths returns the keys of a ValidateAll result in stable order.
func SortedPaths(results map[string]Result) []string {
	paths := make([]string, 0, len(results))
	for p := range results {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
