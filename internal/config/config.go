// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Folders     FoldersConfig     `mapstructure:"folders"`
	Matching    MatchingConfig    `mapstructure:"matching"`
	Naming      NamingConfig      `mapstructure:"naming"`
	Search      SearchConfig      `mapstructure:"search"`
	PostProcess PostProcessConfig `mapstructure:"postprocess"`
	Providers   []ProviderConfig  `mapstructure:"providers"`
	Clients     []ClientConfig    `mapstructure:"download_clients"`
	Webhooks    []WebhookConfig   `mapstructure:"webhooks"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
	Path   string `mapstructure:"path"`
}

// FoldersConfig holds the directories the pipeline reads and writes.
type FoldersConfig struct {
	Downloads  string `mapstructure:"downloads" validate:"required"`
	BookDir    string `mapstructure:"books"`
	AudioDir   string `mapstructure:"audiobooks"`
	MagDir     string `mapstructure:"magazines"`
	LeaveFiles bool   `mapstructure:"leave_files"` // copy instead of move
}

// MatchingConfig holds fuzzy-match thresholds on a 0-100 scale.
type MatchingConfig struct {
	MatchRatio       int `mapstructure:"match_ratio" validate:"min=0,max=100"`
	DownloadRatio    int `mapstructure:"download_ratio" validate:"min=0,max=100"`
	TitleRatio       int `mapstructure:"title_ratio" validate:"min=0,max=100"`
	ContributorRatio int `mapstructure:"contributor_ratio" validate:"min=0,max=100"`
	AmbiguityMargin  int `mapstructure:"ambiguity_margin" validate:"min=0,max=100"`
}

// NamingConfig holds the destination naming patterns. Patterns use $-tokens
// ($Author, $Title, $Series, $SerNum, $IssueDate) resolved per item.
type NamingConfig struct {
	BookFolder string `mapstructure:"book_folder"`
	BookFile   string `mapstructure:"book_file"`
	AudioFile  string `mapstructure:"audio_file"`
	MagFolder  string `mapstructure:"mag_folder"`
	MagFile    string `mapstructure:"mag_file"`
}

// SearchConfig controls the search batch.
type SearchConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	ProviderTimeout  time.Duration `mapstructure:"provider_timeout"`
	MaxConcurrent    int           `mapstructure:"max_concurrent" validate:"min=1"`
	MinSizeMB        int           `mapstructure:"min_size_mb" validate:"min=0"`
	MaxSizeMB        int           `mapstructure:"max_size_mb" validate:"min=0"`
	StopAtFirstMatch bool          `mapstructure:"stop_at_first_match"`
}

// PostProcessConfig controls the completed-download pass.
type PostProcessConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	SeedWait         bool          `mapstructure:"seed_wait"`
	SingleFilePolicy string        `mapstructure:"single_file_policy" validate:"oneof=largest newest reject"`
}

// ProviderConfig describes one search provider.
type ProviderConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	Type     string `mapstructure:"type" validate:"oneof=newznab torznab rss"`
	URL      string `mapstructure:"url" validate:"required,url"`
	APIKey   string `mapstructure:"api_key"`
	Enabled  bool   `mapstructure:"enabled"`
	Priority int    `mapstructure:"priority"`
}

// ClientConfig describes one download client.
type ClientConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	Type     string `mapstructure:"type" validate:"oneof=sabnzbd nzbget qbittorrent transmission"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	APIKey   string `mapstructure:"api_key"`
	UseSSL   bool   `mapstructure:"use_ssl"`
	Category string `mapstructure:"category"`
	Enabled  bool   `mapstructure:"enabled"`
}

// WebhookConfig describes one outcome webhook endpoint.
type WebhookConfig struct {
	Name     string            `mapstructure:"name" validate:"required"`
	URL      string            `mapstructure:"url" validate:"required,url"`
	Method   string            `mapstructure:"method"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Headers  map[string]string `mapstructure:"headers"`
	Enabled  bool              `mapstructure:"enabled"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./data/shelfstream.db"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		Folders:  FoldersConfig{Downloads: "./downloads"},
		Matching: MatchingConfig{
			MatchRatio:       80,
			DownloadRatio:    90,
			TitleRatio:       90,
			ContributorRatio: 95,
			AmbiguityMargin:  5,
		},
		Naming: NamingConfig{
			BookFolder: "$Author/$Title",
			BookFile:   "$Title - $Author",
			AudioFile:  "$Title - $Author",
			MagFolder:  "$Title",
			MagFile:    "$Title - $IssueDate",
		},
		Search: SearchConfig{
			Interval:        15 * time.Minute,
			ProviderTimeout: 30 * time.Second,
			MaxConcurrent:   5,
		},
		PostProcess: PostProcessConfig{
			Interval:         10 * time.Minute,
			SingleFilePolicy: "reject",
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.shelfstream")
	}

	v.SetEnvPrefix("SHELFSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for internal consistency.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Search.MaxSizeMB > 0 && c.Search.MinSizeMB > c.Search.MaxSizeMB {
		return fmt.Errorf("invalid configuration: min_size_mb %d exceeds max_size_mb %d",
			c.Search.MinSizeMB, c.Search.MaxSizeMB)
	}
	seen := make(map[string]bool)
	for _, cl := range c.Clients {
		if seen[cl.Name] {
			return fmt.Errorf("invalid configuration: duplicate download client name %q", cl.Name)
		}
		seen[cl.Name] = true
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "./data/shelfstream.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")

	v.SetDefault("folders.downloads", "./downloads")
	v.SetDefault("folders.leave_files", false)

	v.SetDefault("matching.match_ratio", 80)
	v.SetDefault("matching.download_ratio", 90)
	v.SetDefault("matching.title_ratio", 90)
	v.SetDefault("matching.contributor_ratio", 95)
	v.SetDefault("matching.ambiguity_margin", 5)

	v.SetDefault("naming.book_folder", "$Author/$Title")
	v.SetDefault("naming.book_file", "$Title - $Author")
	v.SetDefault("naming.audio_file", "$Title - $Author")
	v.SetDefault("naming.mag_folder", "$Title")
	v.SetDefault("naming.mag_file", "$Title - $IssueDate")

	v.SetDefault("search.interval", "15m")
	v.SetDefault("search.provider_timeout", "30s")
	v.SetDefault("search.max_concurrent", 5)
	v.SetDefault("search.min_size_mb", 0)
	v.SetDefault("search.max_size_mb", 0)
	v.SetDefault("search.stop_at_first_match", false)

	v.SetDefault("postprocess.interval", "10m")
	v.SetDefault("postprocess.seed_wait", false)
	v.SetDefault("postprocess.single_file_policy", "reject")
}
