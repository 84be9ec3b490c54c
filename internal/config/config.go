package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all pipeline configuration.
// It is built once per process and handed to every component that needs it.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Generation GenerationConfig `yaml:"generation"`
	Compliance ComplianceConfig `yaml:"compliance"`
	Sync       SyncConfig       `yaml:"sync"`
	Output     OutputConfig     `yaml:"output"`
	Watcher    WatcherConfig    `yaml:"watcher"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
}

// PathsConfig locates the input, output and log trees.
type PathsConfig struct {
	CampaignsDir    string `yaml:"campaigns_dir" validate:"required"`
	AssetsDir       string `yaml:"assets_dir" validate:"required"`
	OutputDir       string `yaml:"output_dir" validate:"required"`
	LogDir          string `yaml:"log_dir" validate:"required"`
	DefaultCampaign string `yaml:"default_campaign" validate:"required"`
	CredentialsFile string `yaml:"credentials_file"`
	EnvFile         string `yaml:"env_file"`
}

// GeminiConfig configures the generative collaborators.
type GeminiConfig struct {
	ImageModel  string `yaml:"image_model" validate:"required"`
	TextModel   string `yaml:"text_model" validate:"required"`
	VisionModel string `yaml:"vision_model" validate:"required"`
	Timeout     string `yaml:"timeout" validate:"required"`
	BaseURL     string `yaml:"base_url,omitempty" validate:"omitempty,url"`
}

// GenerationConfig controls image generation fan-out.
type GenerationConfig struct {
	// Workers > 1 enables the bounded pool; 1 keeps strictly sequential units.
	Workers          int `yaml:"workers" validate:"min=1,max=16"`
	MaxProductPixels int `yaml:"max_product_px" validate:"min=64"`
	MaxLogoPixels    int `yaml:"max_logo_px" validate:"min=32"`
}

// ComplianceConfig configures the logo presence check.
type ComplianceConfig struct {
	Enabled       bool    `yaml:"enabled"`
	MinConfidence float64 `yaml:"min_confidence" validate:"gte=0,lte=1"`
}

// SyncConfig configures the optional S3 bracket around a run.
type SyncConfig struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	InputPrefix  string `yaml:"input_prefix"`
	OutputPrefix string `yaml:"output_prefix"`
}

// OutputConfig controls the output tree.
type OutputConfig struct {
	// Clean removes output/{campaign_id} before a run starts.
	Clean bool `yaml:"clean"`
}

// WatcherConfig configures the input folder watcher.
type WatcherConfig struct {
	Debounce   string `yaml:"debounce"`
	RunTimeout string `yaml:"run_timeout"`
	Analyze    bool   `yaml:"analyze"`
}

// LedgerConfig locates the run history database.
type LedgerConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// LoggingConfig configures the root zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
	File   string `yaml:"file,omitempty"`
}

// APIConfig configures the HTTP control surface.
type APIConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			CampaignsDir:    filepath.Join("input", "campaigns"),
			AssetsDir:       filepath.Join("input", "assets"),
			OutputDir:       "output",
			LogDir:          "log",
			DefaultCampaign: "holiday_campaign.yaml",
			CredentialsFile: "credentials.yaml",
			EnvFile:         ".env",
		},
		Gemini: GeminiConfig{
			ImageModel:  "gemini-2.5-flash-image",
			TextModel:   "gemini-2.5-flash",
			VisionModel: "gemini-2.5-flash",
			Timeout:     "120s",
		},
		Generation: GenerationConfig{
			Workers:          1,
			MaxProductPixels: 1024,
			MaxLogoPixels:    512,
		},
		Compliance: ComplianceConfig{
			Enabled:       true,
			MinConfidence: 0.5,
		},
		Sync: SyncConfig{
			Region:       "us-east-1",
			InputPrefix:  "input",
			OutputPrefix: "output",
		},
		Output: OutputConfig{Clean: true},
		Watcher: WatcherConfig{
			Debounce:   "1s",
			RunTimeout: "15m",
		},
		Ledger: LedgerConfig{
			Path: filepath.Join("log", "runs.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		API: APIConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CAMPAIGN_CAMPAIGNS_DIR"); v != "" {
		c.Paths.CampaignsDir = v
	}
	if v := os.Getenv("CAMPAIGN_ASSETS_DIR"); v != "" {
		c.Paths.AssetsDir = v
	}
	if v := os.Getenv("CAMPAIGN_OUTPUT_DIR"); v != "" {
		c.Paths.OutputDir = v
	}
	if v := os.Getenv("CAMPAIGN_LOG_DIR"); v != "" {
		c.Paths.LogDir = v
	}
	if v := os.Getenv("CAMPAIGN_CREDENTIALS_FILE"); v != "" {
		c.Paths.CredentialsFile = v
	}
	if v := os.Getenv("CAMPAIGN_IMAGE_MODEL"); v != "" {
		c.Gemini.ImageModel = v
	}
	if v := os.Getenv("CAMPAIGN_TEXT_MODEL"); v != "" {
		c.Gemini.TextModel = v
	}
	if v := os.Getenv("CAMPAIGN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Generation.Workers = n
		}
	}
	if v := os.Getenv("CAMPAIGN_S3_BUCKET"); v != "" {
		c.Sync.Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Sync.Region = v
	}
	if v := os.Getenv("CAMPAIGN_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CAMPAIGN_API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("CAMPAIGN_LEDGER_PATH"); v != "" {
		c.Ledger.Path = v
	}
}

// GetGeminiTimeout returns the per-call Gemini timeout.
func (c *Config) GetGeminiTimeout() time.Duration {
	return parseDuration(c.Gemini.Timeout, 120*time.Second)
}

// GetWatcherDebounce returns how long the watcher waits for writes to settle.
func (c *Config) GetWatcherDebounce() time.Duration {
	return parseDuration(c.Watcher.Debounce, time.Second)
}

// GetRunTimeout returns the wall-clock budget for one queued run.
func (c *Config) GetRunTimeout() time.Duration {
	return parseDuration(c.Watcher.RunTimeout, 15*time.Minute)
}

// CampaignPath returns the default campaign file path.
func (c *Config) CampaignPath() string {
	return filepath.Join(c.Paths.CampaignsDir, c.Paths.DefaultCampaign)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ValidateSync checks the settings needed before a sync-enabled run.
func (c *Config) ValidateSync() error {
	if c.Sync.Bucket == "" {
		return errors.New("sync requested but sync.bucket is not configured (set CAMPAIGN_S3_BUCKET)")
	}
	if c.Sync.Region == "" {
		return errors.New("sync requested but sync.region is not configured (set AWS_REGION)")
	}
	return nil
}
