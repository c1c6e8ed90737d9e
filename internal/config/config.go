package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/geocine/geopress/internal/markdown"
	"github.com/pelletier/go-toml/v2"
)

// FileName is the site configuration file looked up in the site root.
const FileName = "site.toml"

// SiteConfig contains metadata about the site
type SiteConfig struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
	Language    string `toml:"language"`
	Src         string `toml:"src"` // Articles directory, defaults to "posts"
}

// DefaultSiteConfig returns a site config with defaults
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		Title:    "My Blog",
		Language: "en",
		Src:      "posts",
	}
}

// BuildConfig contains build settings
type BuildConfig struct {
	BuildDir string `toml:"build-dir"`
}

// MarkdownConfig controls article rendering
type MarkdownConfig struct {
	TrustedHTML    bool     `toml:"trusted-html"`
	UniqueIDs      bool     `toml:"unique-ids"`
	HighlightStyle string   `toml:"highlight-style"`
	LineNumbers    bool     `toml:"line-numbers"`
	Extensions     []string `toml:"extensions"`
}

// DefaultMarkdownConfig mirrors markdown.DefaultOptions
func DefaultMarkdownConfig() MarkdownConfig {
	d := markdown.DefaultOptions()
	return MarkdownConfig{
		TrustedHTML:    d.TrustedHTML,
		UniqueIDs:      d.UniqueIDs,
		HighlightStyle: d.HighlightStyle,
		LineNumbers:    d.LineNumbers,
		Extensions:     append([]string(nil), d.Extensions...),
	}
}

// PreviewConfig contains live preview server settings
type PreviewConfig struct {
	Hostname string `toml:"hostname"`
	Port     int    `toml:"port"`
	Debounce string `toml:"debounce"`
}

// ResolverConfig tunes the scroll-spy anchor resolver
type ResolverConfig struct {
	HeaderOffset float64 `toml:"header-offset"`
}

// Config is the top-level configuration
type Config struct {
	Site     SiteConfig             `toml:"site"`
	Build    BuildConfig            `toml:"build"`
	Markdown MarkdownConfig         `toml:"markdown"`
	Preview  PreviewConfig          `toml:"preview"`
	Resolver ResolverConfig         `toml:"resolver"`
	raw      map[string]interface{} // Raw TOML values
}

// NewDefaultConfig returns a config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Site:     DefaultSiteConfig(),
		Build:    BuildConfig{BuildDir: "public"},
		Markdown: DefaultMarkdownConfig(),
		Preview:  PreviewConfig{Hostname: "localhost", Port: 3000, Debounce: "200ms"},
		Resolver: ResolverConfig{HeaderOffset: 80},
		raw:      make(map[string]interface{}),
	}
}

// LoadFromFile loads configuration from a site.toml file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := LoadFromString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromString loads configuration from a TOML string
func LoadFromString(content string) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := toml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := toml.Unmarshal([]byte(content), &cfg.raw); err != nil {
		return nil, fmt.Errorf("failed to parse raw config: %w", err)
	}

	cfg.UpdateFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads site.toml from root, falling back to defaults when the file
// does not exist.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := NewDefaultConfig()
		cfg.UpdateFromEnv()
		return cfg, cfg.Validate()
	}
	return LoadFromFile(path)
}

// Validate reports settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Site.Src) == "" {
		return fmt.Errorf("site.src must not be empty")
	}
	if c.Preview.Port < 0 || c.Preview.Port > 65535 {
		return fmt.Errorf("preview.port %d out of range", c.Preview.Port)
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	if c.Resolver.HeaderOffset < 0 {
		return fmt.Errorf("resolver.header-offset must not be negative")
	}
	return nil
}

// UpdateFromEnv updates config from environment variables
// Variables starting with GEOPRESS_ are used
// GEOPRESS_FOO_BAR -> foo-bar
// GEOPRESS_FOO__BAR -> foo.bar
func (c *Config) UpdateFromEnv() {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "GEOPRESS_") {
			continue
		}

		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimPrefix(parts[0], "GEOPRESS_")
		configKey := strings.ToLower(key)
		configKey = strings.ReplaceAll(configKey, "__", ".")
		configKey = strings.ReplaceAll(configKey, "_", "-")

		c.Set(configKey, parts[1])
	}
}

// Set sets a configuration value using dot notation (e.g., "site.title", "markdown.unique-ids")
func (c *Config) Set(key, value string) {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		c.setRawValue(parts, value)
		return
	}

	field := strings.ToLower(parts[1])
	switch parts[0] {
	case "site":
		c.setSiteValue(field, value)
	case "build":
		if field == "build-dir" {
			c.Build.BuildDir = value
		}
	case "markdown":
		c.setMarkdownValue(field, value)
	case "preview":
		c.setPreviewValue(field, value)
	case "resolver":
		if field == "header-offset" {
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				c.Resolver.HeaderOffset = f
			}
		}
	}
	c.setRawValue(parts, value)
}

func (c *Config) setSiteValue(field, value string) {
	switch field {
	case "title":
		c.Site.Title = value
	case "description":
		c.Site.Description = value
	case "language":
		c.Site.Language = value
	case "src":
		c.Site.Src = value
	}
}

func (c *Config) setMarkdownValue(field, value string) {
	switch field {
	case "trusted-html":
		c.Markdown.TrustedHTML = parseBool(value)
	case "unique-ids":
		c.Markdown.UniqueIDs = parseBool(value)
	case "highlight-style":
		c.Markdown.HighlightStyle = value
	case "line-numbers":
		c.Markdown.LineNumbers = parseBool(value)
	case "extensions":
		var exts []string
		for _, e := range strings.Split(value, ",") {
			if e = strings.TrimSpace(e); e != "" {
				exts = append(exts, e)
			}
		}
		c.Markdown.Extensions = exts
	}
}

func (c *Config) setPreviewValue(field, value string) {
	switch field {
	case "hostname":
		c.Preview.Hostname = value
	case "port":
		if p, err := strconv.Atoi(value); err == nil {
			c.Preview.Port = p
		}
	case "debounce":
		c.Preview.Debounce = value
	}
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}

func (c *Config) setRawValue(parts []string, value string) {
	current := c.raw
	for _, part := range parts[:len(parts)-1] {
		m, ok := current[part].(map[string]interface{})
		if !ok {
			m = make(map[string]interface{})
			current[part] = m
		}
		current = m
	}
	current[parts[len(parts)-1]] = value
}

// Get retrieves a value from the config using dot notation
func (c *Config) Get(key string) (interface{}, bool) {
	current := c.raw
	parts := strings.Split(key, ".")
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return nil, false
		}
		m, isMap := v.(map[string]interface{})
		if !isMap {
			if i != len(parts)-1 {
				return nil, false
			}
			return v, true
		}
		current = m
	}
	return current, true
}

// GetString retrieves a string value from config
func (c *Config) GetString(key string, defaultVal string) string {
	val, ok := c.Get(key)
	if !ok {
		return defaultVal
	}
	if s, isStr := val.(string); isStr {
		return s
	}
	return defaultVal
}

// GetBool retrieves a bool value from config. String values set from the
// environment are parsed.
func (c *Config) GetBool(key string, defaultVal bool) bool {
	val, ok := c.Get(key)
	if !ok {
		return defaultVal
	}
	switch b := val.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// DebounceDuration parses preview.debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	if c.Preview.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Preview.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid preview.debounce %q: %w", c.Preview.Debounce, err)
	}
	return d, nil
}

// Address returns the preview listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Preview.Hostname, strconv.Itoa(c.Preview.Port))
}

// MarkdownOptions projects the [markdown] section onto renderer options.
func (c *Config) MarkdownOptions() markdown.Options {
	return markdown.Options{
		TrustedHTML:    c.Markdown.TrustedHTML,
		UniqueIDs:      c.Markdown.UniqueIDs,
		HighlightStyle: c.Markdown.HighlightStyle,
		LineNumbers:    c.Markdown.LineNumbers,
		Extensions:     append([]string(nil), c.Markdown.Extensions...),
	}
}
