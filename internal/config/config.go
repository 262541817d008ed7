package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "FEED_HARVESTER_CONFIG"
	feedURLEnv      = "FEED_URL"
	outputDirEnv    = "OUTPUT_DIR"
	hourlyBudgetEnv = "MAX_ACTIONS_PER_HOUR"
	logLevelEnv     = "LOG_LEVEL"
)

// Duration wraps time.Duration so intervals can be written as "1.5s" or
// "5m" in YAML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses Go duration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders Go duration syntax.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds every setting the harvester recognizes.
type Config struct {
	Feed     FeedConfig     `yaml:"feed"`
	Output   OutputConfig   `yaml:"output"`
	Rate     RateConfig     `yaml:"rate"`
	Harvest  HarvestConfig  `yaml:"harvest"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Identity IdentityConfig `yaml:"identity"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// FeedConfig points at the feed being harvested.
type FeedConfig struct {
	URL      string `yaml:"url"`
	PageSize int    `yaml:"pageSize"`
}

// OutputConfig describes where durable output lands.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// RateConfig bounds outbound actions.
type RateConfig struct {
	HourlyBudget int      `yaml:"hourlyBudget"`
	MinDelay     Duration `yaml:"minDelay"`
	MaxDelay     Duration `yaml:"maxDelay"`
	WaitCeiling  Duration `yaml:"waitCeiling"`
}

// HarvestConfig tunes the loop's termination, retry, and persistence cadence.
type HarvestConfig struct {
	FlushThreshold     int      `yaml:"flushThreshold"`
	CheckpointInterval Duration `yaml:"checkpointInterval"`
	EmptyThreshold     int      `yaml:"emptyThreshold"`
	MaxRetries         int      `yaml:"maxRetries"`
	RetryBase          Duration `yaml:"retryBase"`
	RetryCap           Duration `yaml:"retryCap"`
	ExploratoryWait    Duration `yaml:"exploratoryWait"`
	BlockPause         Duration `yaml:"blockPause"`
}

// FetchConfig tunes the fetch adapter.
type FetchConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// IdentityConfig seeds the identity pool.
type IdentityConfig struct {
	UserAgents []string          `yaml:"userAgents"`
	Headers    map[string]string `yaml:"headers"`
	MinPool    int               `yaml:"minPool"`
}

// LoggingConfig controls log level and the optional JSON log file.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides, falling back to defaults for anything unset.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(feedURLEnv); v != "" {
		c.Feed.URL = v
	}
	if v := os.Getenv(outputDirEnv); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv(hourlyBudgetEnv); v != "" {
		var budget int
		if _, err := fmt.Sscanf(v, "%d", &budget); err == nil && budget > 0 {
			c.Rate.HourlyBudget = budget
		}
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Feed.URL != "" {
		base.Feed.URL = override.Feed.URL
	}
	if override.Feed.PageSize > 0 {
		base.Feed.PageSize = override.Feed.PageSize
	}

	if override.Output.Dir != "" {
		base.Output.Dir = override.Output.Dir
	}

	if override.Rate.HourlyBudget > 0 {
		base.Rate.HourlyBudget = override.Rate.HourlyBudget
	}
	if override.Rate.MinDelay.Duration > 0 {
		base.Rate.MinDelay = override.Rate.MinDelay
	}
	if override.Rate.MaxDelay.Duration > 0 {
		base.Rate.MaxDelay = override.Rate.MaxDelay
	}
	if override.Rate.WaitCeiling.Duration > 0 {
		base.Rate.WaitCeiling = override.Rate.WaitCeiling
	}

	if override.Harvest.FlushThreshold > 0 {
		base.Harvest.FlushThreshold = override.Harvest.FlushThreshold
	}
	if override.Harvest.CheckpointInterval.Duration > 0 {
		base.Harvest.CheckpointInterval = override.Harvest.CheckpointInterval
	}
	if override.Harvest.EmptyThreshold > 0 {
		base.Harvest.EmptyThreshold = override.Harvest.EmptyThreshold
	}
	if override.Harvest.MaxRetries > 0 {
		base.Harvest.MaxRetries = override.Harvest.MaxRetries
	}
	if override.Harvest.RetryBase.Duration > 0 {
		base.Harvest.RetryBase = override.Harvest.RetryBase
	}
	if override.Harvest.RetryCap.Duration > 0 {
		base.Harvest.RetryCap = override.Harvest.RetryCap
	}
	if override.Harvest.ExploratoryWait.Duration > 0 {
		base.Harvest.ExploratoryWait = override.Harvest.ExploratoryWait
	}
	if override.Harvest.BlockPause.Duration > 0 {
		base.Harvest.BlockPause = override.Harvest.BlockPause
	}

	if override.Fetch.Timeout.Duration > 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}

	if len(override.Identity.UserAgents) > 0 {
		base.Identity.UserAgents = override.Identity.UserAgents
	}
	if len(override.Identity.Headers) > 0 {
		base.Identity.Headers = override.Identity.Headers
	}
	if override.Identity.MinPool > 0 {
		base.Identity.MinPool = override.Identity.MinPool
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Feed: FeedConfig{
			URL:      "",
			PageSize: 25,
		},
		Output: OutputConfig{Dir: "output"},
		Rate: RateConfig{
			HourlyBudget: 400,
			MinDelay:     Duration{1500 * time.Millisecond},
			MaxDelay:     Duration{2500 * time.Millisecond},
			WaitCeiling:  Duration{time.Hour},
		},
		Harvest: HarvestConfig{
			FlushThreshold:     50,
			CheckpointInterval: Duration{300 * time.Second},
			EmptyThreshold:     3,
			MaxRetries:         3,
			RetryBase:          Duration{5 * time.Second},
			RetryCap:           Duration{2 * time.Minute},
			ExploratoryWait:    Duration{8 * time.Second},
			BlockPause:         Duration{5 * time.Minute},
		},
		Fetch: FetchConfig{Timeout: Duration{30 * time.Second}},
		Identity: IdentityConfig{
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:89.0) Gecko/20100101 Firefox/89.0",
			},
			Headers: map[string]string{
				"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
				"Accept-Language": "en-US,en;q=0.9",
				"DNT":             "1",
			},
			MinPool: 5,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
