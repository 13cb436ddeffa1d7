package examparse

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Store drivers.
const (
	StoreJSONL  = "jsonl"
	StoreSQLite = "sqlite"
)

// Config holds all configuration for the examparse engine.
type Config struct {
	// Store selects the exam store: "jsonl" (default) keeps one
	// exam.jsonl per exam under DataDir, "sqlite" keeps every exam in one
	// database file and enables near-duplicate stem checks.
	Store string `json:"store" yaml:"store"`

	// DataDir is the root of the per-exam directories. Images are always
	// written to <DataDir>/<exam>/images, whatever the store.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.examparse/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "examparse".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.examparse/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// Workers bounds the documents processed in parallel.
	Workers int `json:"workers" yaml:"workers"`

	// NoiseFilter, ContinuationGap and DuplicateThreshold are pointers so
	// that an unset field takes the default while an explicit false or 0
	// still turns the feature off.

	// Segmentation
	AnchorPattern      string   `json:"anchor_pattern" yaml:"anchor_pattern"` // overrides the "Question #N" anchor; group 1 captures the number
	NoiseFilter        *bool    `json:"noise_filter,omitempty" yaml:"noise_filter,omitempty"`
	ExtraNoisePatterns []string `json:"extra_noise_patterns,omitempty" yaml:"extra_noise_patterns,omitempty"` // extra lines to drop

	// Field parsing
	ContinuationGap *int `json:"continuation_gap,omitempty" yaml:"continuation_gap,omitempty"`

	// Classification
	MaxImageChoices  int `json:"max_image_choices" yaml:"max_image_choices"`
	ShortChoiceWords int `json:"short_choice_words" yaml:"short_choice_words"`

	// Near-duplicate detection (sqlite store only)
	DuplicateThreshold *float64 `json:"duplicate_threshold,omitempty" yaml:"duplicate_threshold,omitempty"` // 0 disables
	StemVectorDim      int      `json:"stem_vector_dim" yaml:"stem_vector_dim"`
}

func ptr[T any](v T) *T { return &v }

// DefaultConfig returns a Config that stores exams as JSONL under ./data.
func DefaultConfig() Config {
	return Config{
		Store:              StoreJSONL,
		DataDir:            "data",
		DBName:             "examparse",
		StorageDir:         "home",
		Workers:            4,
		NoiseFilter:        ptr(true),
		ContinuationGap:    ptr(1),
		MaxImageChoices:    4,
		ShortChoiceWords:   3,
		DuplicateThreshold: ptr(0.92),
		StemVectorDim:      256,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch c.Store {
	case "", StoreJSONL, StoreSQLite:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}
	if c.ContinuationGap != nil && *c.ContinuationGap < 0 {
		return fmt.Errorf("%w: continuation_gap must not be negative", ErrInvalidConfig)
	}
	if t := c.DuplicateThreshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("%w: duplicate_threshold must be within [0, 1]", ErrInvalidConfig)
	}
	if c.StemVectorDim < 0 {
		return fmt.Errorf("%w: stem_vector_dim must not be negative", ErrInvalidConfig)
	}
	if c.AnchorPattern != "" {
		if _, err := regexp.Compile(c.AnchorPattern); err != nil {
			return fmt.Errorf("%w: anchor_pattern: %v", ErrInvalidConfig, err)
		}
	}
	for _, p := range c.ExtraNoisePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: noise pattern %q: %v", ErrInvalidConfig, p, err)
		}
	}
	return nil
}

// withDefaults fills zero values and unset pointers from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.NoiseFilter == nil {
		c.NoiseFilter = d.NoiseFilter
	}
	if c.ContinuationGap == nil {
		c.ContinuationGap = d.ContinuationGap
	}
	if c.DuplicateThreshold == nil {
		c.DuplicateThreshold = d.DuplicateThreshold
	}
	if c.Store == "" {
		c.Store = d.Store
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.MaxImageChoices == 0 {
		c.MaxImageChoices = d.MaxImageChoices
	}
	if c.ShortChoiceWords == 0 {
		c.ShortChoiceWords = d.ShortChoiceWords
	}
	if c.StemVectorDim == 0 {
		c.StemVectorDim = d.StemVectorDim
	}
	return c
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "examparse"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".examparse", name+".db")
	}
}

// LoadConfig reads a JSON config file on top of DefaultConfig. An empty
// path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from EXAMPARSE_* environment variables.
// Unparsable numbers are reported and leave the field unchanged.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("EXAMPARSE_STORE"); v != "" {
		c.Store = v
	}
	if v := os.Getenv("EXAMPARSE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("EXAMPARSE_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("EXAMPARSE_ANCHOR_PATTERN"); v != "" {
		c.AnchorPattern = v
	}
	if v := os.Getenv("EXAMPARSE_NOISE_FILTER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: EXAMPARSE_NOISE_FILTER: %v", ErrInvalidConfig, err)
		}
		c.NoiseFilter = &b
	}
	if v := os.Getenv("EXAMPARSE_EXTRA_NOISE_PATTERNS"); v != "" {
		c.ExtraNoisePatterns = strings.Split(v, "\n")
	}
	if v := os.Getenv("EXAMPARSE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: EXAMPARSE_WORKERS: %v", ErrInvalidConfig, err)
		}
		c.Workers = n
	}
	if v := os.Getenv("EXAMPARSE_DUPLICATE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: EXAMPARSE_DUPLICATE_THRESHOLD: %v", ErrInvalidConfig, err)
		}
		c.DuplicateThreshold = &f
	}
	if v := os.Getenv("EXAMPARSE_CONTINUATION_GAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: EXAMPARSE_CONTINUATION_GAP: %v", ErrInvalidConfig, err)
		}
		c.ContinuationGap = &n
	}
	return nil
}
