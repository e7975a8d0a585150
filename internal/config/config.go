package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "crateprov.yaml"

const (
	DefaultAuthor = "Unknown"
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultKeywords are the keywords applied when none are configured.
var DefaultKeywords = []string{"computation"}

type Config struct {
	Crate struct {
		Root            string   `yaml:"root"`
		Author          string   `yaml:"author"`
		Keywords        []string `yaml:"keywords"`
		ReferenceCrates []string `yaml:"reference_crates"`
		Backend         string   `yaml:"backend"` // "json" or "sqlite"
		StartClean      bool     `yaml:"start_clean"`
	} `yaml:"crate"`
	Capture struct {
		// ExcludedPatterns replaces the built-in exclusion list when set.
		ExcludedPatterns []string `yaml:"excluded_patterns"`
	} `yaml:"capture"`
	AI struct {
		Provider      string        `yaml:"provider"`
		Model         string        `yaml:"model"`
		APIKey        string        `yaml:"api_key"`
		BaseURL       string        `yaml:"base_url"`
		Timeout       time.Duration `yaml:"timeout"`
		MaxImages     int           `yaml:"max_images"`
		MaxSampleRows int           `yaml:"max_sample_rows"`
	} `yaml:"ai"`
	Lineage struct {
		MaxDepth int `yaml:"max_depth"`
	} `yaml:"lineage"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Crate.Root = "."
	cfg.Crate.Author = DefaultAuthor
	cfg.Crate.Keywords = append([]string(nil), DefaultKeywords...)
	cfg.Crate.Backend = BackendJSON
	cfg.AI.Provider = "gemini"
	cfg.AI.Timeout = 60 * time.Second
	cfg.AI.MaxImages = 3
	cfg.AI.MaxSampleRows = 5
	cfg.Lineage.MaxDepth = 2
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config over the defaults
	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	if provider := os.Getenv("CRATEPROV_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if apiKey := os.Getenv("CRATEPROV_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	} else if cfg.AI.APIKey == "" {
		switch cfg.AI.Provider {
		case "gemini", "":
			cfg.AI.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			cfg.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	cfg.fillZeroes()
	return cfg, nil
}

// fillZeroes restores defaults for values a file explicitly emptied.
func (c *Config) fillZeroes() {
	d := Default()
	if c.Crate.Root == "" {
		c.Crate.Root = d.Crate.Root
	}
	if c.Crate.Author == "" {
		c.Crate.Author = d.Crate.Author
	}
	if len(c.Crate.Keywords) == 0 {
		c.Crate.Keywords = d.Crate.Keywords
	}
	if c.Crate.Backend == "" {
		c.Crate.Backend = d.Crate.Backend
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = d.AI.Timeout
	}
	if c.AI.MaxImages <= 0 {
		c.AI.MaxImages = d.AI.MaxImages
	}
	if c.AI.MaxSampleRows <= 0 {
		c.AI.MaxSampleRows = d.AI.MaxSampleRows
	}
	// Zero is a valid depth: the graph holds only the root.
	if c.Lineage.MaxDepth < 0 {
		c.Lineage.MaxDepth = d.Lineage.MaxDepth
	}
}
