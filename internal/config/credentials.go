package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Credential key names understood by the collaborators.
const (
	KeyGeminiAPIKey       = "gemini_api_key"
	KeyAWSAccessKeyID     = "aws_access_key_id"
	KeyAWSSecretAccessKey = "aws_secret_access_key"
)

// envNames maps a credential key to the environment variables that may carry it,
// in priority order.
var envNames = map[string][]string{
	KeyGeminiAPIKey:       {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	KeyAWSAccessKeyID:     {"AWS_ACCESS_KEY_ID"},
	KeyAWSSecretAccessKey: {"AWS_SECRET_ACCESS_KEY"},
}

// MissingCredentialError is returned when a collaborator asks for a key that no
// source provides.
type MissingCredentialError struct {
	Name    string
	Sources []string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credential %q (looked in: %s)", e.Name, strings.Join(e.Sources, ", "))
}

// Credentials resolves secrets by key name. Lookups happen at first use so a
// run that never touches a collaborator never needs its key.
type Credentials struct {
	dotenv   map[string]string
	file     map[string]string
	envFile  string
	credFile string
	getenv   func(string) string
}

// LoadCredentials reads the optional .env file and credentials file.
// Missing files are not an error.
func LoadCredentials(envFile, credentialsFile string) (*Credentials, error) {
	c := &Credentials{
		dotenv:   map[string]string{},
		file:     map[string]string{},
		envFile:  envFile,
		credFile: credentialsFile,
		getenv:   os.Getenv,
	}

	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
		if err == nil {
			c.dotenv = vals
		}
	}

	if credentialsFile != "" {
		data, err := os.ReadFile(credentialsFile)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		if err == nil {
			var raw map[string]interface{}
			if err := yaml.Unmarshal(data, &raw); err != nil {
				return nil, fmt.Errorf("failed to parse credentials file %s: %w", credentialsFile, err)
			}
			flattenLeaves(raw, c.file)
		}
	}

	return c, nil
}

// StaticCredentials builds a Credentials holding exactly the given values.
func StaticCredentials(values map[string]string) *Credentials {
	file := make(map[string]string, len(values))
	for k, v := range values {
		file[k] = v
	}
	return &Credentials{
		dotenv: map[string]string{},
		file:   file,
		getenv: func(string) string { return "" },
	}
}

// flattenLeaves collects string leaves by their own key so both flat files and
// per-service sections ("google: {gemini_api_key: ...}") work.
func flattenLeaves(node map[string]interface{}, out map[string]string) {
	for k, v := range node {
		switch val := v.(type) {
		case map[string]interface{}:
			flattenLeaves(val, out)
		case string:
			if val != "" {
				out[strings.ToLower(k)] = val
			}
		}
	}
}

// Lookup returns the value for name and whether any source had it.
func (c *Credentials) Lookup(name string) (string, bool) {
	for _, env := range envNames[name] {
		if v := c.getenv(env); v != "" {
			return v, true
		}
	}
	for _, env := range envNames[name] {
		if v := c.dotenv[env]; v != "" {
			return v, true
		}
	}
	if v := c.file[name]; v != "" {
		return v, true
	}
	return "", false
}

// Require returns the value for name or a MissingCredentialError naming it.
func (c *Credentials) Require(name string) (string, error) {
	if v, ok := c.Lookup(name); ok {
		return v, nil
	}
	return "", &MissingCredentialError{Name: name, Sources: c.sources(name)}
}

// Has reports whether name is available.
func (c *Credentials) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

func (c *Credentials) sources(name string) []string {
	var out []string
	for _, env := range envNames[name] {
		out = append(out, "$"+env)
	}
	if c.envFile != "" && len(envNames[name]) > 0 {
		out = append(out, c.envFile)
	}
	if c.credFile != "" {
		out = append(out, c.credFile)
	}
	if len(out) == 0 {
		out = append(out, "static credentials")
	}
	return out
}

// String lists which keys are present without revealing values.
func (c *Credentials) String() string {
	keys := []string{KeyGeminiAPIKey, KeyAWSAccessKeyID, KeyAWSSecretAccessKey}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		state := "unset"
		if c.Has(k) {
			state = "set"
		}
		parts = append(parts, k+"="+state)
	}
	return "Credentials{" + strings.Join(parts, ", ") + "}"
}
