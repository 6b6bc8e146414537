// Package config loads and validates publisher configuration via Viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/servicetags-publisher/internal/storage/local"
)

// Default source constants for the public Azure service tags download.
const (
	DefaultDiscoveryURL = "https://www.microsoft.com/en-us/download/confirmation.aspx?id=56519"
	DefaultMarker       = "window.__DLCDetails__"
	DefaultLinkPattern  = `"url":"(https://download.microsoft.com/download/[^"]+\.json)"`
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Publish PublishConfig `mapstructure:"publish"`
	Mirror  MirrorConfig  `mapstructure:"mirror"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
	Serve   ServeConfig   `mapstructure:"serve"`
}

// SourceConfig locates the dataset download link.
type SourceConfig struct {
	DiscoveryURL string `mapstructure:"discovery_url"`
	Marker       string `mapstructure:"marker"`
	LinkPattern  string `mapstructure:"link_pattern"`
	UserAgent    string `mapstructure:"user_agent"`
}

// HTTPConfig configures the HTTP client.
type HTTPConfig struct {
	// TimeoutSeconds bounds each request; 0 disables the timeout.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// MaxBodyBytes caps response bodies; 0 means unlimited.
	MaxBodyBytes int `mapstructure:"max_body_bytes"`
}

// PathsConfig names the on-disk locations used by a run.
type PathsConfig struct {
	PublishRoot string `mapstructure:"publish_root"`
	StagingRoot string `mapstructure:"staging_root"`
	Template    string `mapstructure:"template"`
}

// PublishConfig controls the published layout.
type PublishConfig struct {
	JSONDir     string `mapstructure:"json_dir"`
	RangesDir   string `mapstructure:"ranges_dir"`
	LatestAlias string `mapstructure:"latest_alias"`
	GeneratedBy string `mapstructure:"generated_by"`
}

// MirrorConfig enables uploading the publish tree to GCS.
type MirrorConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig enables Pub/Sub run notifications.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// MetricsConfig controls where run metrics are written.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig toggles zap development features and file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// ServeConfig controls the preview server.
type ServeConfig struct {
	Port int `mapstructure:"port"`
}

// Load builds a Config from disk/environment. Values already set on v (for
// example bound CLI flags) take precedence over the file and defaults.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-supplied Viper instance.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix("SERVICETAGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.discovery_url", DefaultDiscoveryURL)
	v.SetDefault("source.marker", DefaultMarker)
	v.SetDefault("source.link_pattern", DefaultLinkPattern)
	v.SetDefault("source.user_agent", DefaultUserAgent)
	v.SetDefault("http.timeout_seconds", 120)
	v.SetDefault("http.max_body_bytes", 64*1024*1024)
	v.SetDefault("paths.publish_root", "docs")
	v.SetDefault("paths.staging_root", "docs_temp")
	v.SetDefault("paths.template", "templates/index_template.html")
	v.SetDefault("publish.json_dir", "json-history")
	v.SetDefault("publish.ranges_dir", "ranges-services-pa")
	v.SetDefault("publish.latest_alias", "ServiceTags_Public.json")
	v.SetDefault("publish.generated_by", "GitHub Automation")
	v.SetDefault("mirror.gcs_bucket", "")
	v.SetDefault("mirror.prefix", "")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic_id", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("serve.port", 8080)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Source.DiscoveryURL) == "" {
		return fmt.Errorf("source.discovery_url is required")
	}
	if c.Source.Marker == "" {
		return fmt.Errorf("source.marker is required")
	}
	if _, err := c.LinkPattern(); err != nil {
		return err
	}
	if c.HTTP.TimeoutSeconds < 0 {
		return fmt.Errorf("http.timeout_seconds must be >= 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be >= 0")
	}
	if strings.TrimSpace(c.Paths.PublishRoot) == "" {
		return fmt.Errorf("paths.publish_root is required")
	}
	if strings.TrimSpace(c.Paths.StagingRoot) == "" {
		return fmt.Errorf("paths.staging_root is required")
	}
	overlap, err := local.Overlaps(c.Paths.StagingRoot, c.Paths.PublishRoot)
	if err != nil {
		return fmt.Errorf("paths: %w", err)
	}
	if overlap {
		return fmt.Errorf("paths.staging_root %q and paths.publish_root %q must not overlap",
			c.Paths.StagingRoot, c.Paths.PublishRoot)
	}
	if strings.TrimSpace(c.Paths.Template) == "" {
		return fmt.Errorf("paths.template is required")
	}
	if err := singleSegment("publish.json_dir", c.Publish.JSONDir); err != nil {
		return err
	}
	if err := singleSegment("publish.ranges_dir", c.Publish.RangesDir); err != nil {
		return err
	}
	if err := singleSegment("publish.latest_alias", c.Publish.LatestAlias); err != nil {
		return err
	}
	if c.Publish.JSONDir == c.Publish.RangesDir {
		return fmt.Errorf("publish.json_dir and publish.ranges_dir must differ")
	}
	if (c.Notify.ProjectID == "") != (c.Notify.TopicID == "") {
		return fmt.Errorf("notify.project_id and notify.topic_id must be set together")
	}
	if c.Serve.Port <= 0 {
		return fmt.Errorf("serve.port must be > 0")
	}
	return nil
}

// LinkPattern compiles source.link_pattern, which must carry exactly one capture group.
func (c Config) LinkPattern() (*regexp.Regexp, error) {
	re, err := regexp.Compile(c.Source.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("source.link_pattern: %w", err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("source.link_pattern must have exactly one capture group, has %d", re.NumSubexp())
	}
	return re, nil
}

// HTTPTimeout converts http.timeout_seconds into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func singleSegment(key, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return fmt.Errorf("%s is required", key)
	case value == "." || value == "..", strings.ContainsAny(value, `/\`):
		return fmt.Errorf("%s must be a single path segment", key)
	}
	return nil
}
