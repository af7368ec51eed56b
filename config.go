package tilewalk

import (
	"github.com/hazyhaar/tilewalk/internal/config"
)

// Config is the top-level scraper configuration. Re-exported from internal.
type Config = config.Config

// TargetConfig names the page to scrape.
type TargetConfig = config.TargetConfig

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// AutomationConfig holds the click-through timing knobs.
type AutomationConfig = config.AutomationConfig

// VariantConfig describes one site listing variant.
type VariantConfig = config.VariantConfig

// FaceConfig configures the optional face-detection enrichment.
type FaceConfig = config.FaceConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a ready-to-use configuration.
func DefaultConfig() *Config {
	return config.Default()
}
