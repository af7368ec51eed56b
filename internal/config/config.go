// Package config handles scraper configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level scraper configuration.
type Config struct {
	Target     TargetConfig             `yaml:"target"`
	Browser    BrowserConfig            `yaml:"browser"`
	Automation AutomationConfig         `yaml:"automation"`
	Variants   map[string]VariantConfig `yaml:"variants"`
	Fields     map[string][]string      `yaml:"fields"`
	Face       FaceConfig               `yaml:"face"`
	Export     ExportConfig             `yaml:"export"`
	Archive    ArchiveConfig            `yaml:"archive"`
	Storage    StorageConfig            `yaml:"storage"`
	Sinks      []SinkConfig             `yaml:"sinks"`
}

// TargetConfig names the page to scrape.
type TargetConfig struct {
	URL     string `yaml:"url"`
	Variant string `yaml:"variant"` // nearby | travel
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Stealth          string   `yaml:"stealth"` // headless | headful
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// AutomationConfig holds the click-through timing knobs.
type AutomationConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	PreviewDelay   time.Duration `yaml:"preview_delay"`
	NoPreviewDelay time.Duration `yaml:"no_preview_delay"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	GraceDelay     time.Duration `yaml:"grace_delay"`
	MaxProfiles    int           `yaml:"max_profiles"`
}

// VariantConfig describes one site listing variant.
type VariantConfig struct {
	Containers []string      `yaml:"containers"`
	Delay      time.Duration `yaml:"delay"`
	MaxTiles   int           `yaml:"max_tiles"`
}

// FaceConfig configures the optional face-detection enrichment.
type FaceConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Key         string `yaml:"key"`
	Secret      string `yaml:"secret"`
	Concurrency int    `yaml:"concurrency"`
}

// ExportConfig controls CSV output.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// ArchiveConfig controls optional markdown page snapshots.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// LoadFile reads a YAML configuration file and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a ready-to-use configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values. The two built-in variants keep their
// container lists and pacing unless the file overrides them.
func (c *Config) ApplyDefaults() {
	if c.Target.Variant == "" {
		c.Target.Variant = "travel"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	a := &c.Automation
	if a.Timeout <= 0 {
		a.Timeout = 30 * time.Second
	}
	if a.PollInterval <= 0 {
		a.PollInterval = 500 * time.Millisecond
	}
	if a.PreviewDelay <= 0 {
		a.PreviewDelay = 2500 * time.Millisecond
	}
	if a.NoPreviewDelay <= 0 {
		a.NoPreviewDelay = 600 * time.Millisecond
	}
	if a.SettleDelay <= 0 {
		a.SettleDelay = 800 * time.Millisecond
	}
	if a.GraceDelay <= 0 {
		a.GraceDelay = time.Second
	}

	if c.Variants == nil {
		c.Variants = map[string]VariantConfig{}
	}
	if _, ok := c.Variants["nearby"]; !ok {
		c.Variants["nearby"] = VariantConfig{}
	}
	if _, ok := c.Variants["travel"]; !ok {
		c.Variants["travel"] = VariantConfig{}
	}
	for name, v := range c.Variants {
		if len(v.Containers) == 0 {
			switch name {
			case "nearby":
				v.Containers = []string{"#profiles.search-results.js-refreshable", "#profiles"}
			case "travel":
				v.Containers = []string{"#explore-grid"}
			}
		}
		if v.Delay <= 0 {
			if name == "nearby" {
				v.Delay = time.Second
			} else {
				v.Delay = 3 * time.Second
			}
		}
		if v.MaxTiles <= 0 {
			v.MaxTiles = 500
		}
		c.Variants[name] = v
	}

	if c.Face.Endpoint == "" {
		c.Face.Endpoint = "https://api-us.faceplusplus.com/facepp/v3/detect"
	}
	if c.Face.Concurrency <= 0 {
		c.Face.Concurrency = 4
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "exports"
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = "archive"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "tilewalk.db"
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
}

// Variant returns the variant configuration by name, falling back to
// the travel preset for unknown names.
func (c *Config) Variant(name string) VariantConfig {
	if v, ok := c.Variants[name]; ok {
		return v
	}
	return c.Variants["travel"]
}
